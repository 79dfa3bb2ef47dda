package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("hue:\n  bridge: 192.168.1.2\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"log level", cfg.Log.Level, "info"},
		{"database path", cfg.Database.Path, "./homebase.sqlite"},
		{"home spec", cfg.Home.Spec, "home.yaml"},
		{"temporary ttl", cfg.Overrides.TemporaryTTL.Duration(), 3 * time.Hour},
		{"sweep interval", cfg.Overrides.SweepInterval.Duration(), time.Minute},
		{"periodic interval", cfg.Reconciler.PeriodicInterval.Duration(), time.Minute},
		{"rate limit", cfg.Reconciler.RateLimitRPS, 10.0},
		{"cache size", cfg.Reconciler.CacheSize, 256},
		{"event stream on", cfg.Hue.EventStream, true},
		{"api on", cfg.API.Enabled, true},
		{"api addr", cfg.API.Addr(), "0.0.0.0:9090"},
		{"retention", cfg.Ledger.Retention(), 30 * 24 * time.Hour},
		{"workers", cfg.EventBus.GetWorkers(), 4},
		{"queue size", cfg.EventBus.GetQueueSize(), 100},
		{"shutdown timeout", cfg.ShutdownTimeout.Duration(), 5 * time.Second},
		{"online", cfg.Hue.Offline(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("HOMEBASE_TOKEN", "secret")
	data := `
home:
  spec: /etc/homebase/home.yaml
  timezone: Europe/Berlin
hue:
  bridge: ${HOMEBASE_BRIDGE:10.0.0.2}
  token: ${HOMEBASE_TOKEN}
  event_stream: false
overrides:
  temporary_ttl: 90m
reconciler:
  debounce: 0s
  rate_limit_rps: 2.5
api:
  enabled: false
  port: 8080
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Hue.Bridge != "10.0.0.2" || cfg.Hue.Token != "secret" {
		t.Errorf("env expansion: bridge=%q token=%q", cfg.Hue.Bridge, cfg.Hue.Token)
	}
	if cfg.Hue.EventStream || cfg.API.Enabled {
		t.Error("explicit false must survive defaults")
	}
	if got := cfg.Overrides.TemporaryTTL.Duration(); got != 90*time.Minute {
		t.Errorf("temporary_ttl = %s", got)
	}
	if cfg.Reconciler.RateLimitRPS != 2.5 || cfg.API.Port != 8080 {
		t.Errorf("reconciler/api = %+v / %+v", cfg.Reconciler, cfg.API)
	}
	loc, err := cfg.Home.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"negative ttl", "overrides:\n  temporary_ttl: -1h\n"},
		{"negative sweep", "overrides:\n  sweep_interval: -5s\n"},
		{"negative rate", "reconciler:\n  rate_limit_rps: -1\n"},
		{"rotary step above one", "remotes:\n  rotary_step: 2\n"},
		{"port out of range", "api:\n  port: 70000\n"},
		{"unknown timezone", "home:\n  timezone: Mars/Olympus\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Parse() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParse_BadDuration(t *testing.T) {
	if _, err := Parse([]byte("overrides:\n  temporary_ttl: soon\n")); err == nil {
		t.Error("Parse() should reject an unparsable duration")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("hue:\n  dry_run: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Hue.Offline() {
		t.Error("dry run config should be offline")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HB_SET", "value")
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${HB_SET}", "value"},
		{"default used", "${HB_UNSET_VAR:fallback}", "fallback"},
		{"set beats default", "${HB_SET:fallback}", "value"},
		{"unset without default", "a${HB_UNSET_VAR}b", "ab"},
		{"plain text", "no vars", "no vars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
