package hook

import "errors"

var (
	ErrNoDelegate          = errors.New("host has no apps filter delegate")
	ErrSubstituteDelegate  = errors.New("substitute apps filter delegate")
	ErrRestoreDelegate     = errors.New("restore apps filter delegate")
	ErrNoInterceptionPoint = errors.New("host exposes no filter interception point")
	ErrDecisionPanic       = errors.New("decision panicked")
	ErrInstallPanic        = errors.New("hook install panicked")
	ErrRestorePanic        = errors.New("hook restore panicked")
)
