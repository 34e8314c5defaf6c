package host

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
)

type filterSlot struct {
	filter AppsFilter
}

// Memory is an in-process package-manager service. Every visibility check
// it performs goes through ShouldFilterApplication, which runs the
// installed method hooks and then the current AppsFilter delegate.
type Memory struct {
	mu       sync.RWMutex
	packages map[string]*PackageSetting
	order    []string

	filter atomic.Pointer[filterSlot]
	hooks  *MethodHooks
	caps   Capabilities

	nextToken   atomic.Int64
	outstanding atomic.Int64
}

type MemoryOption func(*Memory)

func WithCapabilities(caps Capabilities) MemoryOption {
	return func(m *Memory) { m.caps = caps }
}

func WithAppsFilter(filter AppsFilter) MemoryOption {
	return func(m *Memory) {
		if filter != nil {
			m.filter.Store(&filterSlot{filter: filter})
		}
	}
}

// NewMemory returns an empty service backed by a NativeFilter. Delegate
// substitution is supported unless overridden with WithCapabilities.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		packages: make(map[string]*PackageSetting),
		hooks:    NewMethodHooks(),
		caps:     Capabilities{DelegateSubstitution: true},
	}
	m.filter.Store(&filterSlot{filter: NewNativeFilter()})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Install(pkg *PackageSetting) error {
	if pkg == nil || pkg.Name == "" {
		return errx.With(ErrInvalidPackage, ": missing name")
	}
	m.mu.Lock()
	if _, ok := m.packages[pkg.Name]; ok {
		m.mu.Unlock()
		return errx.With(ErrPackageExists, " %q", pkg.Name)
	}
	m.packages[pkg.Name] = pkg
	m.order = append(m.order, pkg.Name)
	m.mu.Unlock()

	m.AppsFilter().AddPackage(pkg)
	return nil
}

func (m *Memory) Uninstall(name string) error {
	m.mu.Lock()
	pkg, ok := m.packages[name]
	if !ok {
		m.mu.Unlock()
		return errx.With(ErrPackageNotFound, " %q", name)
	}
	delete(m.packages, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	m.mu.Unlock()

	m.AppsFilter().RemovePackage(pkg)
	return nil
}

// Package returns the record for name without any visibility check.
func (m *Memory) Package(name string) (*PackageSetting, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pkg, ok := m.packages[name]
	return pkg, ok
}

func (m *Memory) IsSystemPackage(name string) bool {
	pkg, ok := m.Package(name)
	return ok && pkg.System
}

// PackagesForUID returns the packages sharing uid in install order, or nil
// when none are installed.
func (m *Memory) PackagesForUID(uid api.UID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for _, name := range m.order {
		if m.packages[name].AppID == uid {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *Memory) ClearCallingIdentity() Token {
	m.outstanding.Add(1)
	return Token(m.nextToken.Add(1))
}

func (m *Memory) RestoreCallingIdentity(token Token) {
	m.outstanding.Add(-1)
}

// OutstandingIdentityScopes returns the number of cleared identities not
// yet restored.
func (m *Memory) OutstandingIdentityScopes() int64 {
	return m.outstanding.Load()
}

func (m *Memory) Capabilities() Capabilities {
	return m.caps
}

func (m *Memory) AppsFilter() AppsFilter {
	return m.filter.Load().filter
}

func (m *Memory) SetAppsFilter(filter AppsFilter) error {
	if filter == nil {
		return ErrNilFilter
	}
	m.filter.Store(&filterSlot{filter: filter})
	return nil
}

func (m *Memory) FilterHooks() *MethodHooks {
	return m.hooks
}

// ShouldFilterApplication is the host's filtering entry point.
func (m *Memory) ShouldFilterApplication(callingUID api.UID, callingSetting *SettingBase, target *PackageSetting, userID int) bool {
	call := FilterCall{
		CallingUID:     callingUID,
		CallingSetting: callingSetting,
		Target:         target,
		UserID:         userID,
	}
	m.hooks.Before(&call)
	if call.Returned() {
		return call.Result()
	}
	return m.AppsFilter().ShouldFilterApplication(callingUID, callingSetting, target, userID)
}

// GrantImplicitAccess lets recipient see visible regardless of queries.
func (m *Memory) GrantImplicitAccess(recipientUID, visibleUID api.UID) {
	m.AppsFilter().GrantImplicitAccess(recipientUID, visibleUID)
}

// QueryPackage returns the record for name as seen by callingUID. A
// filtered package is reported as not found.
func (m *Memory) QueryPackage(callingUID api.UID, name string, userID int) (*PackageSetting, error) {
	pkg, ok := m.Package(name)
	if !ok || m.ShouldFilterApplication(callingUID, &SettingBase{UID: callingUID}, pkg, userID) {
		return nil, errx.With(ErrPackageNotFound, " %q", name)
	}
	return pkg, nil
}

// InstalledPackages lists the package names visible to callingUID.
func (m *Memory) InstalledPackages(callingUID api.UID, userID int) []string {
	m.mu.RLock()
	all := make([]*PackageSetting, 0, len(m.order))
	for _, name := range m.order {
		all = append(all, m.packages[name])
	}
	m.mu.RUnlock()

	caller := &SettingBase{UID: callingUID}
	visible := make([]string, 0, len(all))
	for _, pkg := range all {
		if !m.ShouldFilterApplication(callingUID, caller, pkg, userID) {
			visible = append(visible, pkg.Name)
		}
	}
	return visible
}

var _ Service = (*Memory)(nil)
