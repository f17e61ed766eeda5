package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/embed-runtime/errors"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "embed.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Marshal.MapLoadFactor != 0.75 {
		t.Fatalf("map load factor = %g", cfg.Marshal.MapLoadFactor)
	}
	if cfg.Errors.PrintUncaught || cfg.Telemetry.Enabled || cfg.Lock.DeadlockDetection {
		t.Fatalf("optional features enabled by default: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
[log]
level = "debug"
format = "console"

[lock]
deadlock-detection = true
deadlock-timeout = "5s"

[errors]
print-uncaught = true

[telemetry]
enabled = true
endpoint = "localhost:4318"

[marshal]
map-load-factor = 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if !cfg.Lock.DeadlockDetection || cfg.Lock.DeadlockTimeout != 5*time.Second {
		t.Fatalf("lock = %+v", cfg.Lock)
	}
	if !cfg.Errors.PrintUncaught {
		t.Fatalf("print-uncaught not set")
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "localhost:4318" || cfg.Telemetry.ServiceName != "embed-runtime" {
		t.Fatalf("telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Marshal.MapLoadFactor != 0.5 {
		t.Fatalf("map load factor = %g", cfg.Marshal.MapLoadFactor)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
[log]
level = "debug"
`)
	t.Setenv("EMBED_LOG_LEVEL", "warn")
	t.Setenv("EMBED_PRINT_UNCAUGHT", "true")
	t.Setenv("EMBED_DEADLOCK_TIMEOUT", "2s")
	t.Setenv("EMBED_MAP_LOAD_FACTOR", "0.9")
	t.Setenv("EMBED_SERVICE_NAME", "inspect")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("level = %q, want env value", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("format = %q, want default", cfg.Log.Format)
	}
	if !cfg.Errors.PrintUncaught || cfg.Lock.DeadlockTimeout != 2*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Marshal.MapLoadFactor != 0.9 || cfg.Telemetry.ServiceName != "inspect" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("EMBED_LOG_FORMAT", "console")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "console" {
		t.Fatalf("format = %q", cfg.Log.Format)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		env  map[string]string
		kind errors.Kind
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.toml") }, nil, errors.KindNotFound},
		{"bad toml", func(t *testing.T) string { return writeFile(t, "[log\nlevel=") }, nil, errors.KindInvalidData},
		{"bad env", func(*testing.T) string { return "" }, map[string]string{"EMBED_MAP_LOAD_FACTOR": "lots"}, errors.KindInvalidData},
		{"invalid value", func(t *testing.T) string { return writeFile(t, "[log]\nlevel = \"loud\"\n") }, nil, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path(t))
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("Load error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"negative timeout", func(c *Config) { c.Lock.DeadlockTimeout = -time.Second }, false},
		{"zero load factor", func(c *Config) { c.Marshal.MapLoadFactor = 0 }, false},
		{"load factor above one", func(c *Config) { c.Marshal.MapLoadFactor = 1.5 }, false},
		{"load factor one", func(c *Config) { c.Marshal.MapLoadFactor = 1 }, true},
		{"telemetry without name", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.ServiceName = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.IsKind(err, errors.KindInvalidInput) {
				t.Fatalf("Validate() kind = %v", err)
			}
		})
	}
}
