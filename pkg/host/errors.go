package host

import "errors"

var (
	ErrMalformedDescriptor = errors.New("malformed package descriptor")
	ErrNilFilter           = errors.New("apps filter is nil")
	ErrPackageExists       = errors.New("package already installed")
	ErrPackageNotFound     = errors.New("package not found")
	ErrInvalidPackage      = errors.New("invalid package")
)
