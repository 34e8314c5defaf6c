package decision

import "errors"

var (
	ErrResolveCaller = errors.New("resolve caller packages")
	ErrResolveTarget = errors.New("resolve target package")
	ErrConsultPolicy = errors.New("consult policy authority")
)
