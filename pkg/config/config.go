// Package config loads the causalview service configuration from YAML or TOML
// files with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-causalview/pkg/validation"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyMB       = 32
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML
var ErrUnsupportedFormat = errors.New("unsupported config format")

// ServerConfig is the service configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" toml:"addr"`
	LogLevel        string        `yaml:"log_level" toml:"log_level"`
	GraphFile       string        `yaml:"graph_file" toml:"graph_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	MaxBodyMB       int           `yaml:"max_body_mb" toml:"max_body_mb"`
	// Seed fixes the cluster-center random source; 0 means time seeded
	Seed        int64                       `yaml:"seed" toml:"seed"`
	CORSOrigins []string                    `yaml:"cors_origins" toml:"cors_origins"`
	Engine      visualization.PartialConfig `yaml:"engine" toml:"engine"`
}

// Default returns the configuration used when no file is given
func Default() *ServerConfig {
	return &ServerConfig{
		Addr:            DefaultAddr,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxBodyMB:       DefaultMaxBodyMB,
	}
}

// Load reads path (YAML or TOML by extension), applies environment overrides,
// fills defaults and validates. An empty path yields the defaults.
func Load(path string) (*ServerConfig, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return nil
}

// applyEnv overrides file values from CAUSALVIEW_* variables. The log level
// also honours the generic LOG_LEVEL.
func (c *ServerConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CAUSALVIEW_ADDR"); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("CAUSALVIEW_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("CAUSALVIEW_GRAPH_FILE"); ok && v != "" {
		c.GraphFile = v
	}
	if v, ok := lookup("CAUSALVIEW_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CAUSALVIEW_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v, ok := lookup("CAUSALVIEW_CORS_ORIGINS"); ok && v != "" {
		origins := strings.Split(v, ",")
		for i, o := range origins {
			origins[i] = strings.TrimSpace(o)
		}
		c.CORSOrigins = origins
	}
	return nil
}

func (c *ServerConfig) applyDefaults() {
	c.Addr = validation.DefaultOr(c.Addr, DefaultAddr)
	c.LogLevel = strings.ToLower(validation.DefaultOr(c.LogLevel, DefaultLogLevel))
	c.ShutdownTimeout = validation.DefaultOrDuration(c.ShutdownTimeout, DefaultShutdownTimeout)
	c.MaxBodyMB = validation.DefaultOr(c.MaxBodyMB, DefaultMaxBodyMB)
}

// Validate implements validation.Validatable
func (c *ServerConfig) Validate() error {
	e := c.Engine
	return validation.NewConfigValidator("config").
		Required("addr", c.Addr).
		OneOf("log_level", c.LogLevel, []string{"debug", "info", "warn", "error"}).
		RangeDuration("shutdown_timeout", c.ShutdownTimeout, time.Second, 10*time.Minute).
		RangeInt("max_body_mb", c.MaxBodyMB, 1, 1024).
		When(e.MaxNodes != nil, func(v *validation.ConfigValidator) {
			v.NonNegative("engine.max_nodes", *e.MaxNodes)
		}).
		When(e.ViewportBuffer != nil, func(v *validation.ConfigValidator) {
			v.NonNegativeFloat("engine.viewport_buffer", *e.ViewportBuffer)
		}).
		When(e.ClusteringThreshold != nil, func(v *validation.ConfigValidator) {
			v.RangeFloat("engine.clustering_threshold", *e.ClusteringThreshold, 0, 100)
		}).
		Ascending("engine.lod_levels", e.LODLevels).
		Validate()
}

