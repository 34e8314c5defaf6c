package lifecycle

import "errors"

var ErrInvalidTransition = errors.New("invalid hook state transition")
