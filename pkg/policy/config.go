package policy

import (
	"bytes"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/pkgveil/internal/errx"
)

// Config is the on-disk rule set.
//
//	templates:
//	  finance:
//	    whitelist: false
//	    apps: ["com.bank", "com.wallet.*"]
//	scope:
//	  com.social:
//	    exclude_system_apps: true
//	    apply_templates: [finance]
//	    extra_apps: [com.dating]
type Config struct {
	// AlwaysVisible packages are never hidden from anyone. The framework
	// package is always included.
	AlwaysVisible []string             `yaml:"always_visible,omitempty" json:"always_visible,omitempty"`
	Templates     map[string]Template  `yaml:"templates,omitempty" json:"templates,omitempty"`
	Scope         map[string]AppConfig `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// Template is a named, reusable package list.
type Template struct {
	Whitelist bool     `yaml:"whitelist" json:"whitelist"`
	Apps      []string `yaml:"apps" json:"apps"`
}

// AppConfig configures hiding for one caller package. In blacklist mode
// listed packages are hidden; in whitelist mode everything except the
// listed packages is hidden. Only templates whose mode matches the app's
// mode contribute to its list.
type AppConfig struct {
	UseWhitelist      bool     `yaml:"use_whitelist" json:"use_whitelist"`
	ExcludeSystemApps bool     `yaml:"exclude_system_apps" json:"exclude_system_apps"`
	ApplyTemplates    []string `yaml:"apply_templates,omitempty" json:"apply_templates,omitempty"`
	ExtraApps         []string `yaml:"extra_apps,omitempty" json:"extra_apps,omitempty"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.With(ErrReadPolicy, " %q: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errx.Wrap(ErrDecodePolicy, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	for caller, app := range c.Scope {
		for _, name := range app.ApplyTemplates {
			if _, ok := c.Templates[name]; !ok {
				return errx.With(ErrUnknownTemplate, " %q referenced by %q", name, caller)
			}
		}
		if err := validatePatterns(app.ExtraApps); err != nil {
			return err
		}
	}
	for _, tpl := range c.Templates {
		if err := validatePatterns(tpl.Apps); err != nil {
			return err
		}
	}
	return validatePatterns(c.AlwaysVisible)
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return errx.With(ErrInvalidPattern, ": empty entry")
		}
		if strings.ContainsAny(p, " \t/") {
			return errx.With(ErrInvalidPattern, " %q", p)
		}
	}
	return nil
}
