package host

import (
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/pkg/api"
)

// FilterCall carries the arguments of one ShouldFilterApplication
// invocation through the before-hooks. A hook that calls SetResult
// replaces the return value and the original method body is skipped.
type FilterCall struct {
	CallingUID     api.UID
	CallingSetting *SettingBase
	Target         *PackageSetting
	UserID         int

	result   bool
	returned bool
}

func (c *FilterCall) SetResult(filtered bool) {
	c.result = filtered
	c.returned = true
}

// Returned reports whether a hook supplied the result.
func (c *FilterCall) Returned() bool { return c.returned }

func (c *FilterCall) Result() bool { return c.result }

// BeforeFilterHook runs inline before the host's filtering method.
type BeforeFilterHook interface {
	BeforeFilter(call *FilterCall)
}

// BeforeFilterFunc adapts a function into BeforeFilterHook.
type BeforeFilterFunc func(call *FilterCall)

func (f BeforeFilterFunc) BeforeFilter(call *FilterCall) {
	if f == nil {
		return
	}
	f(call)
}

// Unhook removes an installed hook. It is safe to call more than once and
// from inside a running hook.
type Unhook func()

type registeredHook struct {
	id   uint64
	name string
	hook BeforeFilterHook
}

// MethodHooks is the interception point of the host's filtering method.
// Readers iterate an immutable snapshot so registration never blocks an
// in-flight call.
type MethodHooks struct {
	mu     sync.Mutex
	nextID uint64
	hooks  atomic.Pointer[[]registeredHook]
}

func NewMethodHooks() *MethodHooks {
	return &MethodHooks{}
}

// HookBefore installs hook ahead of the original method body.
func (h *MethodHooks) HookBefore(name string, hook BeforeFilterHook) Unhook {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	next := append(h.snapshot(), registeredHook{id: id, name: name, hook: hook})
	h.hooks.Store(&next)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *MethodHooks) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.snapshot()
	next := make([]registeredHook, 0, len(current))
	for _, r := range current {
		if r.id != id {
			next = append(next, r)
		}
	}
	h.hooks.Store(&next)
}

// snapshot returns a copy of the installed hooks.
func (h *MethodHooks) snapshot() []registeredHook {
	p := h.hooks.Load()
	if p == nil {
		return nil
	}
	return append([]registeredHook(nil), (*p)...)
}

// Len returns the number of installed hooks.
func (h *MethodHooks) Len() int {
	if h == nil {
		return 0
	}
	p := h.hooks.Load()
	if p == nil {
		return 0
	}
	return len(*p)
}

// Names returns the names of installed hooks in registration order.
func (h *MethodHooks) Names() []string {
	if h == nil {
		return nil
	}
	p := h.hooks.Load()
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(*p))
	for _, r := range *p {
		names = append(names, r.name)
	}
	return names
}

// Before runs the installed hooks in order until one supplies a result.
func (h *MethodHooks) Before(call *FilterCall) {
	if h == nil || call == nil {
		return
	}
	p := h.hooks.Load()
	if p == nil {
		return
	}
	for _, r := range *p {
		r.hook.BeforeFilter(call)
		if call.returned {
			return
		}
	}
}
