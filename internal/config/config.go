package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for values that cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the application configuration
type Config struct {
	Home            HomeConfig       `yaml:"home"`
	Hue             HueConfig        `yaml:"hue"`
	Database        DatabaseConfig   `yaml:"database"`
	Log             LogConfig        `yaml:"log"`
	Reconciler      ReconcilerConfig `yaml:"reconciler"`
	Overrides       OverridesConfig  `yaml:"overrides"`
	Remotes         RemotesConfig    `yaml:"remotes"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	API             APIConfig        `yaml:"api"`
	EventBus        EventBusConfig   `yaml:"eventbus"`
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HomeConfig locates the home description.
type HomeConfig struct {
	Spec     string `yaml:"spec"`     // Path to the home spec YAML
	Timezone string `yaml:"timezone"` // Zone the time-of-day baseline follows (default: Local)
}

// Location resolves the configured time zone.
func (c HomeConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge string `yaml:"bridge"`
	Token  string `yaml:"token"`
	// DryRun logs targets instead of writing them; implied when Bridge is empty.
	DryRun bool `yaml:"dry_run"`

	// Event stream settings
	EventStream     bool     `yaml:"event_stream"`      // Listen for remote presses (default: true)
	MinRetryBackoff Duration `yaml:"min_retry_backoff"` // Minimum backoff between reconnects (default: 1s)
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"` // Maximum backoff between reconnects (default: 2m)
	RetryMultiplier float64  `yaml:"retry_multiplier"`  // Backoff multiplier (default: 2.0)
	MaxReconnects   int      `yaml:"max_reconnects"`    // Max reconnect attempts, 0 = infinite (default: 0)
}

// Offline reports whether no bridge should be contacted.
func (c HueConfig) Offline() bool {
	return c.DryRun || c.Bridge == ""
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// ReconcilerConfig contains reconciler settings
type ReconcilerConfig struct {
	PeriodicInterval Duration `yaml:"periodic_interval"` // Full re-resolve interval (default: 1m)
	Debounce         Duration `yaml:"debounce"`
	RateLimitRPS     float64  `yaml:"rate_limit_rps"`
	CacheSize        int      `yaml:"cache_size"` // Last-applied cache entries
	CacheTTL         Duration `yaml:"cache_ttl"`  // Applied states older than this are resent
}

// OverridesConfig controls temporary overrides.
type OverridesConfig struct {
	TemporaryTTL  Duration `yaml:"temporary_ttl"`  // Age after which temporary overrides are dropped (default: 3h)
	SweepInterval Duration `yaml:"sweep_interval"` // How often expired overrides are swept (default: 1m)
}

// RemotesConfig tunes remote control handling.
type RemotesConfig struct {
	RotaryQuiet Duration `yaml:"rotary_quiet"` // Dial rest time before steps are applied (default: 250ms)
	RotaryStep  float64  `yaml:"rotary_step"`  // Brightness change per dial step (default: 1/300)
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Retention returns the retention period.
func (c LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// APIConfig contains HTTP server settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Per-worker queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Config{
		// Defaults for booleans that are on unless disabled
		Hue: HueConfig{EventStream: true},
		API: APIConfig{Enabled: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./homebase.sqlite"
	}
	if cfg.Home.Spec == "" {
		cfg.Home.Spec = "home.yaml"
	}

	// Hue defaults
	if cfg.Hue.MinRetryBackoff == 0 {
		cfg.Hue.MinRetryBackoff = Duration(1 * time.Second)
	}
	if cfg.Hue.MaxRetryBackoff == 0 {
		cfg.Hue.MaxRetryBackoff = Duration(2 * time.Minute)
	}
	if cfg.Hue.RetryMultiplier == 0 {
		cfg.Hue.RetryMultiplier = 2.0
	}
	// MaxReconnects defaults to 0 (infinite), no need to set

	// Reconciler defaults
	if cfg.Reconciler.PeriodicInterval == 0 {
		cfg.Reconciler.PeriodicInterval = Duration(1 * time.Minute)
	}
	if cfg.Reconciler.Debounce == 0 {
		cfg.Reconciler.Debounce = Duration(50 * time.Millisecond)
	}
	if cfg.Reconciler.RateLimitRPS == 0 {
		cfg.Reconciler.RateLimitRPS = 10.0 // 10 requests per second
	}
	if cfg.Reconciler.CacheSize == 0 {
		cfg.Reconciler.CacheSize = 256
	}
	if cfg.Reconciler.CacheTTL == 0 {
		cfg.Reconciler.CacheTTL = Duration(10 * time.Minute)
	}

	// Override defaults
	if cfg.Overrides.TemporaryTTL == 0 {
		cfg.Overrides.TemporaryTTL = Duration(3 * time.Hour)
	}
	if cfg.Overrides.SweepInterval == 0 {
		cfg.Overrides.SweepInterval = Duration(1 * time.Minute)
	}

	// Remote defaults
	if cfg.Remotes.RotaryQuiet == 0 {
		cfg.Remotes.RotaryQuiet = Duration(250 * time.Millisecond)
	}
	if cfg.Remotes.RotaryStep == 0 {
		cfg.Remotes.RotaryStep = 1.0 / 300
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// API defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 9090
	}
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate rejects values no component can work with.
func (cfg *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(cfg.Overrides.TemporaryTTL > 0, "overrides.temporary_ttl must be positive, got %s", cfg.Overrides.TemporaryTTL.Duration())
	check(cfg.Overrides.SweepInterval > 0, "overrides.sweep_interval must be positive, got %s", cfg.Overrides.SweepInterval.Duration())
	check(cfg.Reconciler.PeriodicInterval >= 0, "reconciler.periodic_interval must not be negative")
	check(cfg.Reconciler.Debounce >= 0, "reconciler.debounce must not be negative")
	check(cfg.Reconciler.RateLimitRPS > 0, "reconciler.rate_limit_rps must be positive")
	check(cfg.Reconciler.CacheSize > 0, "reconciler.cache_size must be positive")
	check(cfg.Remotes.RotaryStep > 0 && cfg.Remotes.RotaryStep <= 1, "remotes.rotary_step must be in (0, 1]")
	check(cfg.Ledger.RetentionDays > 0, "ledger.retention_days must be positive")
	check(cfg.API.Port > 0 && cfg.API.Port < 65536, "api.port %d out of range", cfg.API.Port)
	check(cfg.Hue.RetryMultiplier >= 1, "hue.retry_multiplier must be at least 1")
	if _, err := cfg.Home.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
