package main

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/host"
	"github.com/jingkaihe/pkgveil/pkg/policy"
)

// Scenario describes a simulated package service and the visibility
// queries to run against it.
//
//	delegate_substitution: true
//	packages:
//	  - {name: com.social, uid: 10001, queries: ["*"]}
//	  - {name: com.bank, uid: 10002}
//	policy:
//	  scope:
//	    com.social: {extra_apps: [com.bank]}
//	queries:
//	  - {caller: com.social, target: com.bank}
type Scenario struct {
	// DelegateSubstitution defaults to true when omitted.
	DelegateSubstitution *bool             `yaml:"delegate_substitution,omitempty"`
	Packages             []ScenarioPackage `yaml:"packages"`
	Policy               *policy.Config    `yaml:"policy,omitempty"`
	Queries              []ScenarioQuery   `yaml:"queries"`
}

type ScenarioPackage struct {
	Name           string   `yaml:"name"`
	UID            int      `yaml:"uid"`
	System         bool     `yaml:"system,omitempty"`
	ForceQueryable bool     `yaml:"force_queryable,omitempty"`
	Queries        []string `yaml:"queries,omitempty"`
}

// ScenarioQuery asks whether Target is hidden from a caller, identified
// either by package name or by raw UID.
type ScenarioQuery struct {
	Caller string `yaml:"caller,omitempty"`
	UID    int    `yaml:"uid,omitempty"`
	Target string `yaml:"target"`
	User   int    `yaml:"user,omitempty"`
}

type QueryResult struct {
	Caller string  `json:"caller"`
	UID    api.UID `json:"uid"`
	Target string  `json:"target"`
	User   int     `json:"user"`
	Hidden bool    `json:"hidden"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.With(ErrReadScenario, " %q: %w", path, err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	s := &Scenario{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, errx.Wrap(ErrDecodeScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) Validate() error {
	seen := make(map[string]bool, len(s.Packages))
	for _, p := range s.Packages {
		if p.Name == "" {
			return errx.With(ErrInvalidScenario, ": package without name")
		}
		if seen[p.Name] {
			return errx.With(ErrInvalidScenario, ": duplicate package %q", p.Name)
		}
		seen[p.Name] = true
	}
	for i, q := range s.Queries {
		if q.Target == "" {
			return errx.With(ErrInvalidScenario, ": query %d has no target", i)
		}
		if q.Caller == "" && q.UID == 0 {
			return errx.With(ErrInvalidScenario, ": query %d needs caller or uid", i)
		}
		if q.Caller != "" && !seen[q.Caller] {
			return errx.With(ErrUnknownPackage, " %q in query %d", q.Caller, i)
		}
		if !seen[q.Target] {
			return errx.With(ErrUnknownPackage, " %q in query %d", q.Target, i)
		}
	}
	if s.Policy != nil {
		if err := s.Policy.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) capabilities() host.Capabilities {
	caps := host.Capabilities{DelegateSubstitution: true}
	if s.DelegateSubstitution != nil {
		caps.DelegateSubstitution = *s.DelegateSubstitution
	}
	return caps
}

// Build returns a service with every scenario package installed.
func (s *Scenario) Build() (*host.Memory, error) {
	svc := host.NewMemory(host.WithCapabilities(s.capabilities()))
	for _, p := range s.Packages {
		err := svc.Install(&host.PackageSetting{
			Name:           p.Name,
			AppID:          api.UID(p.UID),
			System:         p.System,
			ForceQueryable: p.ForceQueryable,
			Queries:        p.Queries,
		})
		if err != nil {
			return nil, errx.With(ErrInstallScenario, " %q: %w", p.Name, err)
		}
	}
	return svc, nil
}

// Run asks svc every scenario query through its public filtering entry.
func (s *Scenario) Run(svc *host.Memory) []QueryResult {
	results := make([]QueryResult, 0, len(s.Queries))
	for _, q := range s.Queries {
		uid := api.UID(q.UID)
		if q.Caller != "" {
			if p, ok := svc.Package(q.Caller); ok {
				uid = p.AppID
			}
		}
		target, _ := svc.Package(q.Target)
		hidden := svc.ShouldFilterApplication(uid, &host.SettingBase{UID: uid}, target, q.User)
		results = append(results, QueryResult{
			Caller: q.Caller,
			UID:    uid,
			Target: q.Target,
			User:   q.User,
			Hidden: hidden,
		})
	}
	return results
}
