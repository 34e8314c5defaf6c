// Package hook attaches the visibility decision to a host package-manager
// service and keeps it from ever destabilising the host.
//
// Two strategies are available. When the host supports delegate
// substitution the service's AppsFilter is replaced by a proxy that adds
// hiding on top of the native rules. Otherwise, or when substitution
// fails, a before-hook is placed on the host's filtering method. Any fault
// in the decision path disables the installer and restores the host.
package hook

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/decision"
	"github.com/jingkaihe/pkgveil/pkg/host"
	"github.com/jingkaihe/pkgveil/pkg/lifecycle"
)

// Decider evaluates a single visibility query.
type Decider interface {
	Evaluate(uid api.UID, target *host.PackageSetting) (decision.Verdict, error)
}

type Installer struct {
	service       host.Service
	decider       Decider
	baseLogger    *slog.Logger
	forceFallback bool

	machine  *lifecycle.Machine
	unloaded atomic.Bool
	logger   atomic.Pointer[slog.Logger]
	session  atomic.Pointer[string]
	name     atomic.Pointer[string]

	// mu serializes install and teardown work.
	mu     sync.Mutex
	active strategy

	eventMu sync.RWMutex
	eventFn func(decision.FilterEvent)
}

type Option func(*Installer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Installer) {
		if logger != nil {
			i.baseLogger = logger
		}
	}
}

// WithForceFallback skips delegate substitution regardless of host
// capabilities.
func WithForceFallback(force bool) Option {
	return func(i *Installer) { i.forceFallback = force }
}

func NewInstaller(service host.Service, decider Decider, opts ...Option) *Installer {
	i := &Installer{
		service:    service,
		decider:    decider,
		baseLogger: slog.Default(),
		machine:    lifecycle.NewMachine(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.baseLogger = i.baseLogger.With("component", "hook")
	i.logger.Store(i.baseLogger)
	return i
}

// SetEventFunc registers fn to receive every filter verdict.
func (i *Installer) SetEventFunc(fn func(decision.FilterEvent)) {
	i.eventMu.Lock()
	i.eventFn = fn
	i.eventMu.Unlock()
}

func (i *Installer) State() lifecycle.HookState {
	return i.machine.State()
}

// Session identifies the current installation in logs and events.
func (i *Installer) Session() string {
	if s := i.session.Load(); s != nil {
		return *s
	}
	return ""
}

// Strategy returns the name of the installed strategy, if any.
func (i *Installer) Strategy() string {
	if s := i.name.Load(); s != nil {
		return *s
	}
	return ""
}

func (i *Installer) log() *slog.Logger {
	return i.logger.Load()
}

// Load attaches the hook. It is a no-op unless the installer is unloaded.
func (i *Installer) Load() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.machine.State() != lifecycle.StateUnloaded || i.unloaded.Load() {
		return
	}

	session := uuid.NewString()
	i.session.Store(&session)
	i.logger.Store(i.baseLogger.With("session", session))
	i.log().Info("load hook")

	if i.service.Capabilities().DelegateSubstitution && !i.forceFallback {
		err := i.install(newDelegateStrategy(i.service))
		if err == nil {
			return
		}
		i.log().Error("failed to install optimized hook, using fallback", "error", err)
	}

	if err := i.install(newInterceptStrategy(i.service)); err != nil {
		i.log().Error("failed to install fallback hook, hook disabled", "error", err)
		i.unloaded.Store(true)
		i.transition(lifecycle.StateDisabled)
	}
}

func (i *Installer) install(s strategy) error {
	i.log().Info("installing hook", "strategy", s.Name())
	if err := attach(s, i.guard); err != nil {
		return err
	}
	name := s.Name()
	i.active = s
	i.name.Store(&name)
	i.transition(s.State())
	i.log().Info("hook installed", "strategy", name)
	return nil
}

// Unload detaches the hook and disables the installer. It is idempotent
// and safe to call concurrently; only the first call does teardown work.
func (i *Installer) Unload() {
	if !i.unloaded.CompareAndSwap(false, true) {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	defer i.log().Info("hook unloaded")
	defer i.transition(lifecycle.StateDisabled)

	if i.active != nil {
		if err := detach(i.active); err != nil {
			i.log().Error("failed to restore host filter", "strategy", i.active.Name(), "error", err)
		}
		i.active = nil
	}
}

// attach and detach run host mutations that may panic and report the
// panic as an error.
func attach(s strategy, guard guardFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errx.With(ErrInstallPanic, " (%s): %v", s.Name(), r)
		}
	}()
	return s.Install(guard)
}

func detach(s strategy) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errx.With(ErrRestorePanic, " (%s): %v", s.Name(), r)
		}
	}()
	return s.Uninstall()
}

// Reload re-attaches a disabled installer.
func (i *Installer) Reload() {
	i.mu.Lock()
	if i.machine.State() != lifecycle.StateDisabled {
		i.mu.Unlock()
		return
	}
	i.transition(lifecycle.StateUnloaded)
	i.name.Store(nil)
	i.unloaded.Store(false)
	i.mu.Unlock()

	i.Load()
}

func (i *Installer) transition(to lifecycle.HookState) {
	if err := i.machine.Transition(to); err != nil {
		i.log().Error("hook state transition rejected", "error", err)
	}
}
