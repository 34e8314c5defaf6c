package policy

import (
	"slices"
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/pkg/api"
)

type compiledApp struct {
	whitelist     bool
	excludeSystem bool
	patterns      []string
}

type ruleSet struct {
	alwaysVisible []string
	scope         map[string]compiledApp
}

// Engine is a rule-based Authority. Rules are swapped atomically by Update
// so in-flight decisions always see one consistent rule set.
type Engine struct {
	rules       atomic.Pointer[ruleSet]
	filterCount atomic.Int64
	isSystem    func(name string) bool
}

type EngineOption func(*Engine)

// WithSystemPackages supplies the check used by exclude_system_apps.
func WithSystemPackages(isSystem func(name string) bool) EngineOption {
	return func(e *Engine) { e.isSystem = isSystem }
}

func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if cfg != nil {
		if err := e.Update(cfg); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Update validates cfg and replaces the active rule set.
func (e *Engine) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.rules.Store(compile(cfg))
	return nil
}

func compile(cfg *Config) *ruleSet {
	rs := &ruleSet{
		alwaysVisible: append([]string{api.PackageAndroid}, cfg.AlwaysVisible...),
		scope:         make(map[string]compiledApp, len(cfg.Scope)),
	}
	for caller, app := range cfg.Scope {
		patterns := slices.Clone(app.ExtraApps)
		for _, name := range app.ApplyTemplates {
			tpl := cfg.Templates[name]
			if tpl.Whitelist == app.UseWhitelist {
				patterns = append(patterns, tpl.Apps...)
			}
		}
		rs.scope[caller] = compiledApp{
			whitelist:     app.UseWhitelist,
			excludeSystem: app.ExcludeSystemApps,
			patterns:      patterns,
		}
	}
	return rs
}

// InScope reports whether caller has hide rules.
func (e *Engine) InScope(caller string) bool {
	rs := e.rules.Load()
	if rs == nil {
		return false
	}
	_, ok := rs.scope[caller]
	return ok
}

func (e *Engine) ShouldHide(caller, target string) (bool, error) {
	rs := e.rules.Load()
	if rs == nil {
		return false, ErrNoRules
	}
	if caller == target || matchAny(rs.alwaysVisible, target) {
		return false, nil
	}
	app, ok := rs.scope[caller]
	if !ok {
		return false, nil
	}
	if app.excludeSystem && e.isSystem != nil && e.isSystem(target) {
		return false, nil
	}
	listed := matchAny(app.patterns, target)
	if app.whitelist {
		return !listed, nil
	}
	return listed, nil
}

func (e *Engine) IncrementFilterCount() {
	e.filterCount.Add(1)
}

func (e *Engine) FilterCount() int64 {
	return e.filterCount.Load()
}

var _ Authority = (*Engine)(nil)
