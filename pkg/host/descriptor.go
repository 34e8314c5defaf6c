package host

import "github.com/jingkaihe/pkgveil/internal/errx"

// DescriptorResolver maps an opaque target descriptor to a package name.
type DescriptorResolver interface {
	PackageNameOf(target *PackageSetting) (string, error)
}

// DescriptorResolverFunc adapts a function into DescriptorResolver.
type DescriptorResolverFunc func(target *PackageSetting) (string, error)

func (f DescriptorResolverFunc) PackageNameOf(target *PackageSetting) (string, error) {
	return f(target)
}

// PackageNameOf is the default descriptor resolver. It fails only on a nil
// or unnamed descriptor.
func PackageNameOf(target *PackageSetting) (string, error) {
	if target == nil {
		return "", errx.With(ErrMalformedDescriptor, ": nil descriptor")
	}
	if target.Name == "" {
		return "", errx.With(ErrMalformedDescriptor, ": empty package name for app id %d", target.AppID)
	}
	return target.Name, nil
}

// DefaultDescriptorResolver resolves with PackageNameOf.
var DefaultDescriptorResolver DescriptorResolver = DescriptorResolverFunc(PackageNameOf)
