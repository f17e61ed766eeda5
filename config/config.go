// Package config loads bridge settings from an optional TOML file and
// EMBED_* environment variables. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
)

// Config holds every bridge setting.
type Config struct {
	Log       Log       `toml:"log"`
	Lock      Lock      `toml:"lock"`
	Errors    Errors    `toml:"errors"`
	Telemetry Telemetry `toml:"telemetry"`
	Marshal   Marshal   `toml:"marshal"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `toml:"level" env:"EMBED_LOG_LEVEL"`
	Format string `toml:"format" env:"EMBED_LOG_FORMAT"`
}

// Lock configures the interpreter lock.
type Lock struct {
	DeadlockDetection bool          `toml:"deadlock-detection" env:"EMBED_DEADLOCK_DETECTION"`
	DeadlockTimeout   time.Duration `toml:"deadlock-timeout" env:"EMBED_DEADLOCK_TIMEOUT"`
}

// Errors configures exception handling at the boundary.
type Errors struct {
	// PrintUncaught prints the merged trace of errors escaping Bridge.Call.
	PrintUncaught bool `toml:"print-uncaught" env:"EMBED_PRINT_UNCAUGHT"`
}

// Telemetry configures OpenTelemetry tracing.
type Telemetry struct {
	Enabled     bool   `toml:"enabled" env:"EMBED_OTEL_ENABLED"`
	Endpoint    string `toml:"endpoint" env:"EMBED_OTEL_ENDPOINT"`
	ServiceName string `toml:"service-name" env:"EMBED_SERVICE_NAME"`
}

// Marshal configures value conversion.
type Marshal struct {
	MapLoadFactor float64 `toml:"map-load-factor" env:"EMBED_MAP_LOAD_FACTOR"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log:  Log{Level: "info", Format: "json"},
		Lock: Lock{DeadlockTimeout: 30 * time.Second},
		Telemetry: Telemetry{
			ServiceName: "embed-runtime",
		},
		Marshal: Marshal{MapLoadFactor: host.DefaultLoadFactor},
	}
}

// Load starts from Default, applies the TOML file at path when path is not
// empty, then the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+path)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is not json or console", c.Log.Format)
	}
	if c.Lock.DeadlockTimeout < 0 {
		return invalid("lock.deadlock-timeout %s is negative", c.Lock.DeadlockTimeout)
	}
	if c.Marshal.MapLoadFactor <= 0 || c.Marshal.MapLoadFactor > 1 {
		return invalid("marshal.map-load-factor %g is outside (0, 1]", c.Marshal.MapLoadFactor)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return invalid("telemetry.service-name is required when telemetry is enabled")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
}
