// Package config provides YAML configuration parsing for SlowPoll.
//
// This package enables running SlowPoll as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	service_name: async-slowapp
//	port: 8080
//	base_uri: ${PUBLIC_URL:-http://localhost:8080}
//	id_format: xid
//
//	defaults:
//	  complete_in: 5s
//	  final_status: 200
//
//	max_delay: 60s
//	retention: 10m
//	metrics: true
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/slowpoll/internal/ids"
)

const (
	defaultPort        = 8080
	defaultServiceName = "slowpoll"
	defaultCompleteIn  = 5 * time.Second
	defaultFinalStatus = 200
	defaultMaxDelay    = 60 * time.Second

	// minRetention is the smallest non-zero retention the janitor accepts.
	minRetention = time.Second
)

// Config is the root configuration structure for SlowPoll.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// ServiceName is reported by the ping endpoints. Defaults to "slowpoll".
	ServiceName string `yaml:"service_name"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// BaseURI prefixes every Content-Location. When empty, the scheme and
	// host of each incoming request are used.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURI string `yaml:"base_uri"`

	// IDFormat selects the operation id generator: "uuid" (default) or "xid".
	IDFormat string `yaml:"id_format"`

	// Defaults apply to /slow requests that omit the parameter.
	Defaults Defaults `yaml:"defaults"`

	// MaxDelay caps the delay parameter. Defaults to 60s.
	MaxDelay Duration `yaml:"max_delay"`

	// Retention is how long finished operations that nobody collects are
	// kept. Zero keeps them forever.
	Retention Duration `yaml:"retention"`

	// Metrics enables the /metrics endpoint. Defaults to true.
	Metrics *bool `yaml:"metrics"`
}

// Defaults holds the fallback values for /slow parameters.
type Defaults struct {
	// CompleteIn is used when complete_in is omitted. Defaults to 5s.
	CompleteIn Duration `yaml:"complete_in"`

	// FinalStatus is used when final_status is omitted. Defaults to 200.
	FinalStatus int `yaml:"final_status"`
}

// MetricsEnabled reports whether the metrics endpoint should be served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics == nil || *c.Metrics
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1 is the name, group 2 the ":-default" marker, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in base_uri. Defaults are applied for
// every omitted field before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.IDFormat == "" {
		c.IDFormat = ids.FormatUUID
	}
	if c.Defaults.CompleteIn == 0 {
		c.Defaults.CompleteIn = Duration(defaultCompleteIn)
	}
	if c.Defaults.FinalStatus == 0 {
		c.Defaults.FinalStatus = defaultFinalStatus
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = Duration(defaultMaxDelay)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("service_name cannot be blank")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.BaseURI != "" {
		expanded, err := expandEnvVars(c.BaseURI)
		if err != nil {
			return fmt.Errorf("base_uri: %w", err)
		}
		c.BaseURI = strings.TrimSuffix(expanded, "/")

		parsed, err := url.Parse(c.BaseURI)
		if err != nil {
			return fmt.Errorf("invalid base_uri: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("base_uri scheme must be http or https, got %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return errors.New("base_uri must include a host")
		}
	}

	if _, err := ids.ForFormat(c.IDFormat); err != nil {
		return fmt.Errorf("id_format: %w", err)
	}

	if c.Defaults.CompleteIn.Duration() < 0 {
		return fmt.Errorf("defaults.complete_in cannot be negative, got %s", c.Defaults.CompleteIn.Duration())
	}

	if c.Defaults.FinalStatus < 200 || c.Defaults.FinalStatus > 599 {
		return fmt.Errorf("defaults.final_status must be between 200 and 599, got %d", c.Defaults.FinalStatus)
	}

	if c.MaxDelay.Duration() < 0 {
		return fmt.Errorf("max_delay cannot be negative, got %s", c.MaxDelay.Duration())
	}

	if r := c.Retention.Duration(); r != 0 {
		if r < 0 {
			return fmt.Errorf("retention cannot be negative, got %s", r)
		}
		if r < minRetention {
			return fmt.Errorf("retention must be at least %s if specified, got %s", minRetention, r)
		}
	}

	return nil
}
