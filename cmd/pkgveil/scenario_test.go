package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pkgveil/pkg/decision"
	"github.com/jingkaihe/pkgveil/pkg/hook"
	"github.com/jingkaihe/pkgveil/pkg/lifecycle"
	"github.com/jingkaihe/pkgveil/pkg/policy"
)

const sampleScenario = `
packages:
  - {name: com.social, uid: 10001, queries: ["*"]}
  - {name: com.bank, uid: 10002}
  - {name: com.maps, uid: 10003}
  - {name: com.android.settings, uid: 1000, system: true}
policy:
  scope:
    com.social:
      exclude_system_apps: true
      extra_apps: [com.bank, com.android.*]
queries:
  - {caller: com.social, target: com.bank}
  - {caller: com.social, target: com.maps}
  - {caller: com.social, target: com.android.settings}
  - {uid: 1000, target: com.bank}
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(sampleScenario))
	require.NoError(t, err)
	assert.Len(t, s.Packages, 4)
	assert.Len(t, s.Queries, 4)
	require.NotNil(t, s.Policy)
	assert.True(t, s.capabilities().DelegateSubstitution)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{
			name: "unknown field",
			data: "pakages: []\n",
			err:  ErrDecodeScenario,
		},
		{
			name: "duplicate package",
			data: "packages:\n  - {name: com.a, uid: 10001}\n  - {name: com.a, uid: 10002}\n",
			err:  ErrInvalidScenario,
		},
		{
			name: "query without caller",
			data: "packages:\n  - {name: com.a, uid: 10001}\nqueries:\n  - {target: com.a}\n",
			err:  ErrInvalidScenario,
		},
		{
			name: "unknown target",
			data: "packages:\n  - {name: com.a, uid: 10001}\nqueries:\n  - {caller: com.a, target: com.b}\n",
			err:  ErrUnknownPackage,
		},
		{
			name: "bad policy",
			data: "policy:\n  scope:\n    com.a: {apply_templates: [missing]}\n",
			err:  policy.ErrUnknownTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.data))
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrReadScenario)
}

func runScenario(t *testing.T, data string, forceFallback bool) (*hook.Installer, []QueryResult) {
	t.Helper()
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	svc, err := s.Build()
	require.NoError(t, err)

	authority, err := policy.NewEngine(s.Policy, policy.WithSystemPackages(svc.IsSystemPackage))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := decision.NewEngine(svc, authority, decision.WithBinder(svc), decision.WithLogger(logger))
	installer := hook.NewInstaller(svc, engine, hook.WithLogger(logger), hook.WithForceFallback(forceFallback))
	installer.Load()
	t.Cleanup(installer.Unload)

	return installer, s.Run(svc)
}

func TestScenarioRunBothStrategies(t *testing.T) {
	for _, tc := range []struct {
		name     string
		fallback bool
		strategy string
		state    lifecycle.HookState
	}{
		{name: "optimized", strategy: hook.StrategyOptimized, state: lifecycle.StateOptimizedActive},
		{name: "fallback", fallback: true, strategy: hook.StrategyFallback, state: lifecycle.StateFallbackActive},
	} {
		t.Run(tc.name, func(t *testing.T) {
			installer, results := runScenario(t, sampleScenario, tc.fallback)
			assert.Equal(t, tc.state, installer.State())
			assert.Equal(t, tc.strategy, installer.Strategy())

			require.Len(t, results, 4)
			assert.True(t, results[0].Hidden, "bank is listed")
			assert.False(t, results[1].Hidden, "maps is not listed")
			assert.False(t, results[2].Hidden, "system apps excluded")
			assert.False(t, results[3].Hidden, "system uid bypasses the hook")
		})
	}
}

func TestScenarioDelegateSubstitutionDisabled(t *testing.T) {
	installer, results := runScenario(t, "delegate_substitution: false\n"+sampleScenario, false)
	assert.Equal(t, lifecycle.StateFallbackActive, installer.State())
	assert.True(t, results[0].Hidden)
}

func TestPrintSimulation(t *testing.T) {
	installer, results := runScenario(t, sampleScenario, false)

	var buf bytes.Buffer
	printSimulation(&buf, installer, results, 1, false)
	out := buf.String()
	assert.Contains(t, out, "hook: optimized_active (strategy=optimized")
	assert.Contains(t, out, "CALLER")
	assert.Contains(t, out, "hidden")
	assert.Contains(t, out, "filtered: 1")

	buf.Reset()
	printSimulation(&buf, installer, results, 1, true)
	assert.Contains(t, buf.String(), `"strategy": "optimized"`)
	assert.Contains(t, buf.String(), `"hidden": true`)
}

func TestLoadScenarioFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScenario), 0600))
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Len(t, s.Packages, 4)
}
