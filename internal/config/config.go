// Package config loads the mongodrift service configuration from a YAML
// file selected by environment, with ${VAR} substitution and a small set of
// direct environment overrides for batch runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the mongodrift service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Input      InputConfig      `yaml:"input"`
	Processing ProcessingConfig `yaml:"processing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// MongoConfig holds database connection settings. The URI is injected and
// passed to the driver untouched.
type MongoConfig struct {
	URI               string `yaml:"uri"`
	Database          string `yaml:"database"`
	VersionCollection string `yaml:"version_collection"`
}

// InputConfig locates the declarative input tree.
type InputConfig struct {
	Folder string `yaml:"folder"`
}

// ProcessingConfig tunes the processor.
type ProcessingConfig struct {
	Workers              int  `yaml:"workers"` // 0 = one per collection, capped
	AutoProcess          bool `yaml:"auto_process"`
	ExitAfterProcessing  bool `yaml:"exit_after_processing"`
	LoadTestData         bool `yaml:"load_test_data"`
	OperationTimeoutSec  int  `yaml:"operation_timeout_sec"`
	PipelineTimeoutSec   int  `yaml:"pipeline_timeout_sec"`
	TransitionTimeoutSec int  `yaml:"transition_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// OperationTimeout returns the per-database-operation bound.
func (p ProcessingConfig) OperationTimeout() time.Duration {
	return time.Duration(p.OperationTimeoutSec) * time.Second
}

// PipelineTimeout returns the per-migration-pipeline bound.
func (p ProcessingConfig) PipelineTimeout() time.Duration {
	return time.Duration(p.PipelineTimeoutSec) * time.Second
}

// TransitionTimeout returns the per-version-transition bound.
func (p ProcessingConfig) TransitionTimeout() time.Duration {
	return time.Duration(p.TransitionTimeoutSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local,
// dev, prod), applies defaults, environment overrides, and validation.
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting
// to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Mongo.VersionCollection == "" {
		c.Mongo.VersionCollection = "CollectionVersions"
	}
	if c.Input.Folder == "" {
		c.Input.Folder = "input"
	}
	if c.Processing.OperationTimeoutSec <= 0 {
		c.Processing.OperationTimeoutSec = 30
	}
	if c.Processing.PipelineTimeoutSec <= 0 {
		c.Processing.PipelineTimeoutSec = 600
	}
	if c.Processing.TransitionTimeoutSec <= 0 {
		c.Processing.TransitionTimeoutSec = 3600
	}
}

// applyEnvOverrides honors the batch-mode environment switches, which win
// over the file.
func (c *Config) applyEnvOverrides() {
	if v, ok := envBool("AUTO_PROCESS"); ok {
		c.Processing.AutoProcess = v
	}
	if v, ok := envBool("EXIT_AFTER_PROCESSING"); ok {
		c.Processing.ExitAfterProcessing = v
	}
	if v, ok := envBool("LOAD_TEST_DATA"); ok {
		c.Processing.LoadTestData = v
	}
	if folder := os.Getenv("INPUT_FOLDER"); folder != "" {
		c.Input.Folder = folder
	}
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		if path := filepath.Join(dir, filename); fileExists(path) {
			return path
		}
	}
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
