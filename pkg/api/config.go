package api

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jingkaihe/pkgveil/internal/errx"
)

// EnvPrefix is the prefix for environment overrides, e.g. PKGVEIL_LOG_LEVEL.
const EnvPrefix = "PKGVEIL"

const (
	DefaultReloadDebounce = 500 * time.Millisecond
	DefaultStatsQueueSize = 128
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

type Config struct {
	Hook   HookConfig   `mapstructure:"hook" json:"hook"`
	Policy PolicyConfig `mapstructure:"policy" json:"policy"`
	Stats  StatsConfig  `mapstructure:"stats" json:"stats"`
	Log    LogConfig    `mapstructure:"log" json:"log"`
}

type HookConfig struct {
	// ForceFallback skips delegate substitution even when the host
	// supports it.
	ForceFallback bool `mapstructure:"force_fallback" json:"force_fallback,omitempty"`
}

type PolicyConfig struct {
	Path           string        `mapstructure:"path" json:"path,omitempty"`
	Watch          bool          `mapstructure:"watch" json:"watch,omitempty"`
	ReloadDebounce time.Duration `mapstructure:"reload_debounce" json:"reload_debounce,omitempty"`
}

type StatsConfig struct {
	// DBPath enables the filter event store when non-empty.
	DBPath    string `mapstructure:"db_path" json:"db_path,omitempty"`
	QueueSize int    `mapstructure:"queue_size" json:"queue_size,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level,omitempty"`
	Format string `mapstructure:"format" json:"format,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Policy: PolicyConfig{
			ReloadDebounce: DefaultReloadDebounce,
		},
		Stats: StatsConfig{
			QueueSize: DefaultStatsQueueSize,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// SetDefaults registers every config key on v so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("hook.force_fallback", def.Hook.ForceFallback)
	v.SetDefault("policy.path", def.Policy.Path)
	v.SetDefault("policy.watch", def.Policy.Watch)
	v.SetDefault("policy.reload_debounce", def.Policy.ReloadDebounce)
	v.SetDefault("stats.db_path", def.Stats.DBPath)
	v.SetDefault("stats.queue_size", def.Stats.QueueSize)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig reads the optional config file at path (any format viper
// understands) and merges defaults, environment and bound flags.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errx.With(ErrReadConfig, " %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errx.Wrap(ErrDecodeConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Policy.Watch && c.Policy.Path == "" {
		return errx.With(ErrInvalidConfig, ": policy.watch requires policy.path")
	}
	if c.Policy.ReloadDebounce < 0 {
		return errx.With(ErrInvalidConfig, ": policy.reload_debounce must not be negative")
	}
	if c.Stats.QueueSize <= 0 {
		return errx.With(ErrInvalidConfig, ": stats.queue_size must be positive, got %d", c.Stats.QueueSize)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errx.With(ErrInvalidConfig, ": log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
