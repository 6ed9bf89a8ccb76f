// Package config loads and validates the YAML configuration shared by the
// ppenc-server and monstermac binaries. The Default/Load/Parse/Validate
// shape, and the ${VAR}/${VAR:-default} environment-variable expansion
// applied before YAML parsing, are adapted from the teacher's
// internal/config package.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for either binary; each loads the
// whole file but only reads the section it owns.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Stream     StreamConfig     `yaml:"stream"`
	MonsterMac MonsterMacConfig `yaml:"monstermac"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig configures the structured logger (internal/logging).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StreamConfig configures the PPEnc TCP stream server.
type StreamConfig struct {
	Address          string        `yaml:"address"`
	MonsterMacURL    string        `yaml:"monstermac_url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// MonsterMacMode selects how MonsterMac resolves the secret for a request
// (§6, SPEC_FULL.md §6/§9).
type MonsterMacMode string

const (
	MonsterMacMode0  MonsterMacMode = "MODE0"
	MonsterMacMode16 MonsterMacMode = "MODE16"
	MonsterMacMode32 MonsterMacMode = "MODE32"
)

// MonsterMacConfig configures the MonsterMac HTTP service. This replaces
// the original's lazily-loaded global mutable configuration (mode, secret
// path, global secret) with an explicit value constructed once at startup
// and passed into the request handler (§9 design note).
type MonsterMacConfig struct {
	Address string         `yaml:"address"`
	Mode    MonsterMacMode `yaml:"mode"`
	// Mode0SecretFile holds the single 32-byte secret used in MODE0.
	Mode0SecretFile string `yaml:"mode0_secret_file"`
	// SecretDir holds the per-key_id secret blobs used in MODE16/MODE32,
	// one file per upper-16-bits-of-key_id named as 4 lowercase hex
	// characters (little-endian uint16), each a sequence of 32-byte
	// secrets indexed by the lower 16 bits of key_id.
	SecretDir string `yaml:"secret_dir"`
}

// MetricsConfig is the metrics section of the configuration file. It is
// parsed and defaulted, but neither binary reads it: no metrics endpoint
// is served.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns a Config populated with this repository's defaults,
// matching SPEC_FULL.md §6's stated bind addresses and modes.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Stream: StreamConfig{
			Address:          "127.0.0.1:8080",
			MonsterMacURL:    "http://127.0.0.1:8081/",
			HandshakeTimeout: 10 * time.Second,
		},
		MonsterMac: MonsterMacConfig{
			Address:         "0.0.0.0:8081",
			Mode:            MonsterMacMode0,
			Mode0SecretFile: "secret",
			SecretDir:       "./secrets",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "127.0.0.1:9090",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applying environment
// variable expansion first and validating the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	// MONSTERMAC_MODE / MONSTERMAC_SECRET_PATH override the file, matching
	// SPEC_FULL.md §6's collaborator environment-variable surface.
	if v, ok := os.LookupEnv("MONSTERMAC_MODE"); ok {
		cfg.MonsterMac.Mode = MonsterMacMode(v)
	}
	if v, ok := os.LookupEnv("MONSTERMAC_SECRET_PATH"); ok {
		cfg.MonsterMac.SecretDir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their
// values, supporting ${VAR:-default} fallback syntax.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level: invalid level %q", c.Logging.Level))
	}
	if !isValidLogFormat(c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("logging.format: invalid format %q", c.Logging.Format))
	}
	if c.Stream.Address == "" {
		errs = append(errs, "stream.address: must not be empty")
	}
	if c.Stream.MonsterMacURL == "" {
		errs = append(errs, "stream.monstermac_url: must not be empty")
	}
	switch c.MonsterMac.Mode {
	case MonsterMacMode0, MonsterMacMode16, MonsterMacMode32:
	default:
		errs = append(errs, fmt.Sprintf("monstermac.mode: invalid mode %q", c.MonsterMac.Mode))
	}
	if c.MonsterMac.Mode0SecretFile == "" {
		errs = append(errs, "monstermac.mode0_secret_file: must not be empty")
	}
	if c.MonsterMac.SecretDir == "" {
		errs = append(errs, "monstermac.secret_dir: must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	default:
		return false
	}
}
