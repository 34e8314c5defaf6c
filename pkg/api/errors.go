package api

import "errors"

var (
	ErrReadConfig      = errors.New("read config file")
	ErrDecodeConfig    = errors.New("decode config")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidLogLevel = errors.New("invalid log level")
)
