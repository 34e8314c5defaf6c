package policy

import "errors"

var (
	ErrReadPolicy      = errors.New("read policy file")
	ErrDecodePolicy    = errors.New("decode policy")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrInvalidPattern  = errors.New("invalid package pattern")
	ErrNoRules         = errors.New("policy rules not loaded")
	ErrCreateWatcher   = errors.New("create policy watcher")
	ErrWatchPolicy     = errors.New("watch policy file")
)
