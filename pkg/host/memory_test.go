package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pkgveil/pkg/api"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	for _, p := range []*PackageSetting{
		{Name: "com.a", AppID: 10050, Queries: []string{QueryAll}},
		{Name: "com.a.plugin", AppID: 10050},
		{Name: "com.b", AppID: 10060},
		{Name: "com.settings", AppID: api.UIDSystem, System: true},
	} {
		require.NoError(t, m.Install(p))
	}
	return m
}

func TestMemory_PackagesForUID(t *testing.T) {
	m := newTestMemory(t)

	names, err := m.PackagesForUID(10050)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.a", "com.a.plugin"}, names)

	names, err = m.PackagesForUID(19999)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemory_InstallErrors(t *testing.T) {
	m := newTestMemory(t)
	assert.ErrorIs(t, m.Install(&PackageSetting{Name: "com.a", AppID: 10070}), ErrPackageExists)
	assert.ErrorIs(t, m.Install(&PackageSetting{AppID: 10070}), ErrInvalidPackage)
	assert.ErrorIs(t, m.Uninstall("com.missing"), ErrPackageNotFound)
}

func TestMemory_QueryPackage(t *testing.T) {
	m := newTestMemory(t)

	pkg, err := m.QueryPackage(10050, "com.b", 0)
	require.NoError(t, err)
	assert.Equal(t, "com.b", pkg.Name)

	_, err = m.QueryPackage(10060, "com.a", 0)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	_, err = m.QueryPackage(10050, "com.missing", 0)
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestMemory_InstalledPackages(t *testing.T) {
	m := newTestMemory(t)
	assert.Equal(t, []string{"com.a", "com.a.plugin", "com.b", "com.settings"}, m.InstalledPackages(api.UIDSystem, 0))
	assert.Equal(t, []string{"com.b"}, m.InstalledPackages(10060, 0))

	m.GrantImplicitAccess(10060, 10050)
	assert.Equal(t, []string{"com.a", "com.a.plugin", "com.b"}, m.InstalledPackages(10060, 0))
}

func TestMemory_HooksPreemptDelegate(t *testing.T) {
	m := newTestMemory(t)
	unhook := m.FilterHooks().HookBefore("hide-b", BeforeFilterFunc(func(call *FilterCall) {
		if call.Target.Name == "com.b" {
			call.SetResult(true)
		}
	}))

	_, err := m.QueryPackage(10050, "com.b", 0)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	unhook()
	_, err = m.QueryPackage(10050, "com.b", 0)
	assert.NoError(t, err)
}

func TestMemory_SetAppsFilter(t *testing.T) {
	m := newTestMemory(t)
	orig := m.AppsFilter()

	assert.ErrorIs(t, m.SetAppsFilter(nil), ErrNilFilter)
	assert.Same(t, orig, m.AppsFilter())

	replacement := NewNativeFilter()
	require.NoError(t, m.SetAppsFilter(replacement))
	assert.Same(t, replacement, m.AppsFilter())
}

func TestMemory_IdentityScopes(t *testing.T) {
	m := NewMemory()
	t1 := m.ClearCallingIdentity()
	t2 := m.ClearCallingIdentity()
	assert.NotEqual(t, t1, t2)
	assert.Equal(t, int64(2), m.OutstandingIdentityScopes())

	m.RestoreCallingIdentity(t2)
	m.RestoreCallingIdentity(t1)
	assert.Equal(t, int64(0), m.OutstandingIdentityScopes())
}

func TestPackageNameOf(t *testing.T) {
	name, err := PackageNameOf(&PackageSetting{Name: "com.b"})
	require.NoError(t, err)
	assert.Equal(t, "com.b", name)

	_, err = PackageNameOf(nil)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	_, err = DefaultDescriptorResolver.PackageNameOf(&PackageSetting{AppID: 10060})
	assert.ErrorIs(t, err, ErrMalformedDescriptor)
}
