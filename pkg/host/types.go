// Package host describes the package-manager service the visibility hook
// attaches to, and provides an in-memory implementation of it.
//
// The interfaces here are the only surface the hook core depends on:
// PackageLookup resolves a caller identity to package names, Binder scopes
// identity elevation around that lookup, AppsFilter is the host's
// replaceable filtering delegate and MethodHooks is its interception point.
package host

import "github.com/jingkaihe/pkgveil/pkg/api"

// PackageSetting is the host record describing one installed package. The
// hook treats it as an opaque target descriptor.
type PackageSetting struct {
	Name           string
	AppID          api.UID
	System         bool
	ForceQueryable bool
	// Queries lists packages this package declares it needs to see.
	Queries []string
}

// SettingBase is the host record describing the caller.
type SettingBase struct {
	UID api.UID
}

// AppsFilter is the host capability that answers visibility questions. It
// is held in a mutable field of the service and may be substituted.
type AppsFilter interface {
	// ShouldFilterApplication reports whether target must be hidden from
	// the caller. This is the native filtering signature.
	ShouldFilterApplication(callingUID api.UID, callingSetting *SettingBase, target *PackageSetting, userID int) bool
	AddPackage(pkg *PackageSetting)
	RemovePackage(pkg *PackageSetting)
	GrantImplicitAccess(recipientUID, visibleUID api.UID)
	IsForceQueryable(name string) bool
}

// PackageLookup resolves the packages currently running under an identity.
type PackageLookup interface {
	PackagesForUID(uid api.UID) ([]string, error)
}

// Token restores a calling identity cleared by Binder.
type Token int64

// Binder scopes identity elevation. Every ClearCallingIdentity must be
// paired with RestoreCallingIdentity on all exit paths.
type Binder interface {
	ClearCallingIdentity() Token
	RestoreCallingIdentity(token Token)
}

// Capabilities are environment flags determined before the hook loads.
type Capabilities struct {
	// DelegateSubstitution reports that the service's AppsFilter field may
	// be replaced with a wrapping delegate.
	DelegateSubstitution bool
}

// Service is the package-manager service as seen by the hook installer.
type Service interface {
	PackageLookup
	Binder
	Capabilities() Capabilities
	AppsFilter() AppsFilter
	SetAppsFilter(filter AppsFilter) error
	FilterHooks() *MethodHooks
}
