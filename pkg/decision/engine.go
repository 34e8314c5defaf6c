// Package decision decides whether a calling identity may see a target
// package.
package decision

import (
	"log/slog"
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/host"
	"github.com/jingkaihe/pkgveil/pkg/policy"
)

// Verdict is the outcome of one decision. Caller is the first caller
// package the authority hid the target from, and is empty when Hide is
// false.
type Verdict struct {
	Hide   bool
	Caller string
	Target string
}

// Engine evaluates visibility queries. It holds no per-call state and is
// safe for concurrent use; nothing is cached between calls.
type Engine struct {
	lookup      host.PackageLookup
	binder      host.Binder
	descriptors host.DescriptorResolver
	authority   policy.Authority
	logger      *slog.Logger

	// lastFiltered only dedups info-level log lines.
	lastFiltered atomic.Pointer[string]
}

type Option func(*Engine)

// WithBinder scopes every package lookup in a cleared calling identity.
func WithBinder(binder host.Binder) Option {
	return func(e *Engine) { e.binder = binder }
}

func WithDescriptorResolver(r host.DescriptorResolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.descriptors = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(lookup host.PackageLookup, authority policy.Authority, opts ...Option) *Engine {
	e := &Engine{
		lookup:      lookup,
		authority:   authority,
		descriptors: host.DefaultDescriptorResolver,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "decision")
	return e
}

// Decide reports whether target must be hidden from uid.
func (e *Engine) Decide(uid api.UID, target *host.PackageSetting) (bool, error) {
	v, err := e.Evaluate(uid, target)
	return v.Hide, err
}

// Evaluate runs the decision and reports which caller package it was
// attributed to. Only the first matching caller package is charged.
func (e *Engine) Evaluate(uid api.UID, target *host.PackageSetting) (Verdict, error) {
	if uid == api.UIDSystem {
		return Verdict{}, nil
	}

	callers, err := e.callerPackages(uid)
	if err != nil {
		return Verdict{}, errx.With(ErrResolveCaller, " uid=%d: %w", uid, err)
	}
	if len(callers) == 0 {
		return Verdict{}, nil
	}

	targetName, err := e.descriptors.PackageNameOf(target)
	if err != nil {
		return Verdict{}, errx.With(ErrResolveTarget, " uid=%d: %w", uid, err)
	}

	for _, caller := range callers {
		hide, err := e.authority.ShouldHide(caller, targetName)
		if err != nil {
			return Verdict{}, errx.With(ErrConsultPolicy, " caller=%s target=%s: %w", caller, targetName, err)
		}
		if !hide {
			continue
		}
		e.authority.IncrementFilterCount()
		e.logFiltered(uid, caller, targetName)
		return Verdict{Hide: true, Caller: caller, Target: targetName}, nil
	}
	return Verdict{Target: targetName}, nil
}

func (e *Engine) callerPackages(uid api.UID) ([]string, error) {
	if e.binder != nil {
		token := e.binder.ClearCallingIdentity()
		defer e.binder.RestoreCallingIdentity(token)
	}
	return e.lookup.PackagesForUID(uid)
}

func (e *Engine) logFiltered(uid api.UID, caller, target string) {
	if last := e.lastFiltered.Swap(&caller); last == nil || *last != caller {
		e.logger.Info("filtered query", "caller", caller)
	}
	e.logger.Debug("filtered query", "uid", int(uid), "caller", caller, "target", target)
}
