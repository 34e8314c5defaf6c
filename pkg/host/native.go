package host

import (
	"slices"
	"sync"

	"github.com/jingkaihe/pkgveil/pkg/api"
)

// QueryAll in PackageSetting.Queries grants visibility of every package.
const QueryAll = "*"

// NativeFilter is the host's own visibility policy: platform callers and
// the package itself see everything, force-queryable packages are visible
// to all, and otherwise the caller must declare the target in its queries
// or have been granted implicit access.
type NativeFilter struct {
	mu       sync.RWMutex
	byUID    map[api.UID][]*PackageSetting
	forced   map[string]bool
	implicit map[api.UID]map[api.UID]bool
}

func NewNativeFilter() *NativeFilter {
	return &NativeFilter{
		byUID:    make(map[api.UID][]*PackageSetting),
		forced:   make(map[string]bool),
		implicit: make(map[api.UID]map[api.UID]bool),
	}
}

func (f *NativeFilter) ShouldFilterApplication(callingUID api.UID, callingSetting *SettingBase, target *PackageSetting, userID int) bool {
	if target == nil || callingUID < api.FirstApplicationUID {
		return false
	}
	if callingUID == target.AppID || target.ForceQueryable {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.forced[target.Name] || f.implicit[callingUID][target.AppID] {
		return false
	}
	for _, caller := range f.byUID[callingUID] {
		if slices.Contains(caller.Queries, QueryAll) || slices.Contains(caller.Queries, target.Name) {
			return false
		}
	}
	return true
}

func (f *NativeFilter) AddPackage(pkg *PackageSetting) {
	if pkg == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.byUID[pkg.AppID] = append(f.byUID[pkg.AppID], pkg)
	if pkg.ForceQueryable {
		f.forced[pkg.Name] = true
	}
}

func (f *NativeFilter) RemovePackage(pkg *PackageSetting) {
	if pkg == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.forced, pkg.Name)
	remaining := slices.DeleteFunc(f.byUID[pkg.AppID], func(p *PackageSetting) bool {
		return p.Name == pkg.Name
	})
	if len(remaining) > 0 {
		f.byUID[pkg.AppID] = remaining
		return
	}

	delete(f.byUID, pkg.AppID)
	delete(f.implicit, pkg.AppID)
	for _, visible := range f.implicit {
		delete(visible, pkg.AppID)
	}
}

func (f *NativeFilter) GrantImplicitAccess(recipientUID, visibleUID api.UID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	visible := f.implicit[recipientUID]
	if visible == nil {
		visible = make(map[api.UID]bool)
		f.implicit[recipientUID] = visible
	}
	visible[visibleUID] = true
}

func (f *NativeFilter) IsForceQueryable(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.forced[name]
}
