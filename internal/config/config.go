// Package config loads docstore settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the full server configuration.
type Config struct {
	Addr    string        `yaml:"addr" validate:"required"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	ACL     ACLConfig     `yaml:"acl"`
}

// HTTPConfig tunes the API server.
type HTTPConfig struct {
	// WriteRate caps write requests per second; 0 disables the limit.
	WriteRate  float64 `yaml:"write_rate" validate:"gte=0"`
	WriteBurst int     `yaml:"write_burst" validate:"gte=0"`
}

// StorageConfig selects and tunes the revision tree store.
type StorageConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=memory badger"`
	Path       string `yaml:"path" validate:"required_if=Backend badger"`
	SyncWrites bool   `yaml:"sync_writes"`
	// GCEvery runs value log GC after this many commits; 0 disables it.
	GCEvery int `yaml:"gc_every" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter string `yaml:"exporter" validate:"oneof=none stdout"`
}

// ACLConfig enables the write authorization hook and seeds its grants.
type ACLConfig struct {
	Enabled bool    `yaml:"enabled"`
	Grants  []Grant `yaml:"grants" validate:"dive"`
}

// Grant gives a user a role on every document id with the given prefix.
type Grant struct {
	Prefix string `yaml:"prefix"`
	User   string `yaml:"user" validate:"required"`
	Role   string `yaml:"role" validate:"oneof=reader writer admin"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr: ":5984",
		Storage: StorageConfig{
			Backend: BackendMemory,
			GCEvery: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{Exporter: "none"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = envOr("DOCSTORE_ADDR", c.Addr)
	c.Storage.Backend = envOr("DOCSTORE_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Path = envOr("DOCSTORE_STORAGE_PATH", c.Storage.Path)
	c.Storage.SyncWrites = envBool("DOCSTORE_STORAGE_SYNC_WRITES", c.Storage.SyncWrites)
	c.Storage.GCEvery = envInt("DOCSTORE_STORAGE_GC_EVERY", c.Storage.GCEvery)
	c.Log.Level = strings.ToLower(envOr("DOCSTORE_LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(envOr("DOCSTORE_LOG_FORMAT", c.Log.Format))
	c.Metrics.Enabled = envBool("DOCSTORE_METRICS_ENABLED", c.Metrics.Enabled)
	c.Tracing.Exporter = strings.ToLower(envOr("DOCSTORE_TRACING_EXPORTER", c.Tracing.Exporter))
	c.HTTP.WriteRate = envFloat("DOCSTORE_HTTP_WRITE_RATE", c.HTTP.WriteRate)
	c.HTTP.WriteBurst = envInt("DOCSTORE_HTTP_WRITE_BURST", c.HTTP.WriteBurst)
	c.ACL.Enabled = envBool("DOCSTORE_ACL_ENABLED", c.ACL.Enabled)
}

var validate = validator.New()

// Validate checks the struct tags and reports every failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}

	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return fallback
}
