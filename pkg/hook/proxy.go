package hook

import (
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/host"
)

// filterProxy wraps the host's AppsFilter. Every operation is forwarded
// except ShouldFilterApplication, which consults the guard first and falls
// through to the original so native hiding still applies. A retired proxy
// only forwards.
type filterProxy struct {
	orig    host.AppsFilter
	guard   guardFunc
	retired atomic.Bool
}

func newFilterProxy(orig host.AppsFilter, guard guardFunc) *filterProxy {
	return &filterProxy{orig: orig, guard: guard}
}

func (p *filterProxy) retire() { p.retired.Store(true) }

func (p *filterProxy) ShouldFilterApplication(callingUID api.UID, callingSetting *host.SettingBase, target *host.PackageSetting, userID int) bool {
	if !p.retired.Load() && p.guard(callingUID, target, userID) {
		return true
	}
	return p.orig.ShouldFilterApplication(callingUID, callingSetting, target, userID)
}

func (p *filterProxy) AddPackage(pkg *host.PackageSetting)    { p.orig.AddPackage(pkg) }
func (p *filterProxy) RemovePackage(pkg *host.PackageSetting) { p.orig.RemovePackage(pkg) }
func (p *filterProxy) IsForceQueryable(name string) bool      { return p.orig.IsForceQueryable(name) }

func (p *filterProxy) GrantImplicitAccess(recipientUID, visibleUID api.UID) {
	p.orig.GrantImplicitAccess(recipientUID, visibleUID)
}

var _ host.AppsFilter = (*filterProxy)(nil)
