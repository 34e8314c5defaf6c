package hook

import (
	"sync"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/host"
	"github.com/jingkaihe/pkgveil/pkg/lifecycle"
)

const (
	StrategyOptimized = "optimized"
	StrategyFallback  = "fallback"

	interceptHookName = "pkgveil"
)

// guardFunc is the governed decision: true means hide.
type guardFunc func(uid api.UID, target *host.PackageSetting, userID int) bool

// strategy attaches a guard to the host's filtering call path.
type strategy interface {
	Name() string
	State() lifecycle.HookState
	Install(guard guardFunc) error
	Uninstall() error
}

// delegateStrategy swaps the service's AppsFilter for a proxy that runs
// the guard ahead of the original delegate.
type delegateStrategy struct {
	service host.Service

	mu    sync.Mutex
	orig  host.AppsFilter
	proxy *filterProxy
}

func newDelegateStrategy(service host.Service) *delegateStrategy {
	return &delegateStrategy{service: service}
}

func (s *delegateStrategy) Name() string               { return StrategyOptimized }
func (s *delegateStrategy) State() lifecycle.HookState { return lifecycle.StateOptimizedActive }

func (s *delegateStrategy) Install(guard guardFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig := s.service.AppsFilter()
	// A proxy left behind by a failed restore is unwrapped so the guard
	// runs once per call.
	for {
		p, ok := orig.(*filterProxy)
		if !ok {
			break
		}
		orig = p.orig
	}
	if orig == nil {
		return ErrNoDelegate
	}
	proxy := newFilterProxy(orig, guard)
	if err := s.service.SetAppsFilter(proxy); err != nil {
		return errx.Wrap(ErrSubstituteDelegate, err)
	}
	s.orig = orig
	s.proxy = proxy
	return nil
}

func (s *delegateStrategy) Uninstall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orig == nil {
		return nil
	}
	// Retired first: if the restore fails the proxy stays in the host
	// field but no longer consults the guard.
	s.proxy.retire()
	if err := s.service.SetAppsFilter(s.orig); err != nil {
		return errx.Wrap(ErrRestoreDelegate, err)
	}
	s.orig = nil
	s.proxy = nil
	return nil
}

// interceptStrategy runs the guard before the host's filtering method.
// A hide verdict supplies the result and the native filter never runs;
// otherwise the original method executes unchanged.
type interceptStrategy struct {
	service host.Service

	mu     sync.Mutex
	unhook host.Unhook
}

func newInterceptStrategy(service host.Service) *interceptStrategy {
	return &interceptStrategy{service: service}
}

func (s *interceptStrategy) Name() string               { return StrategyFallback }
func (s *interceptStrategy) State() lifecycle.HookState { return lifecycle.StateFallbackActive }

func (s *interceptStrategy) Install(guard guardFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hooks := s.service.FilterHooks()
	if hooks == nil {
		return ErrNoInterceptionPoint
	}
	s.unhook = hooks.HookBefore(interceptHookName, host.BeforeFilterFunc(func(call *host.FilterCall) {
		if guard(call.CallingUID, call.Target, call.UserID) {
			call.SetResult(true)
		}
	}))
	return nil
}

func (s *interceptStrategy) Uninstall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unhook != nil {
		s.unhook()
		s.unhook = nil
	}
	return nil
}
