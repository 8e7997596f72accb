// Package config loads the host configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config is the host configuration.
type Config struct {
	// DataDir is the root directory for blobs.
	DataDir string `yaml:"data_dir"`
	// AspectsDir holds the aspect definition YAML files.
	AspectsDir string `yaml:"aspects_dir"`
	// Tenant names the tenant this instance serves.
	Tenant string `yaml:"tenant"`
	// JWTSecret signs and verifies host bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Embeddings enables the semantic-search path when a model is wired.
	Embeddings bool `yaml:"embeddings"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DataDir:    "./data",
		AspectsDir: "./aspects",
		Tenant:     "default",
		LogLevel:   "info",
	}
}

// Load reads the YAML file at path, then applies ARKIVO_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARKIVO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ARKIVO_ASPECTS_DIR"); v != "" {
		cfg.AspectsDir = v
	}
	if v := os.Getenv("ARKIVO_TENANT"); v != "" {
		cfg.Tenant = v
	}
	if v := os.Getenv("ARKIVO_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("ARKIVO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ARKIVO_EMBEDDINGS"); v != "" {
		cfg.Embeddings = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.AspectsDir, validation.Required),
		validation.Field(&c.Tenant, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}
