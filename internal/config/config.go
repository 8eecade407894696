package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
)

// DefaultFilename is looked up in the base directory when no --config is given.
const DefaultFilename = "docmake.yaml"

// Config represents the application configuration
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Build   BuildConfig   `yaml:"build"`
	Version VersionConfig `yaml:"version"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`

	// source is the file the config was read from; empty when defaults were used.
	source string
}

// PathsConfig locates the docs sources and the build artifacts.
// docs_dir, index_artifact and cache_artifact are relative to base_dir;
// version_file is relative to docs_dir.
type PathsConfig struct {
	BaseDir       string `yaml:"base_dir,omitempty"`
	DocsDir       string `yaml:"docs_dir"`
	VersionFile   string `yaml:"version_file"`
	IndexArtifact string `yaml:"index_artifact"`
	CacheArtifact string `yaml:"cache_artifact"`
}

// BuildConfig describes the external documentation build command.
type BuildConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"` // zero means no timeout
}

// VersionConfig controls the version stamping step.
type VersionConfig struct {
	CreateIfMissing bool `yaml:"create_if_missing"`
	RequireSemver   bool `yaml:"require_semver"`
}

// LoggingConfig holds the two logging thresholds and the output format.
type LoggingConfig struct {
	Level      LogLevel  `yaml:"level"`
	ShellLevel LogLevel  `yaml:"shell_level"`
	Format     LogFormat `yaml:"format"`
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	File string `yaml:"file,omitempty"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Source returns the path the configuration was loaded from, or "" for defaults.
func (c *Config) Source() string {
	return c.source
}

// Load reads the configuration.
//
// Files are located in baseDir, or in DOCMAKE_BASE_DIR from the process
// environment when baseDir is empty, or in the working directory. .env.local
// and .env are loaded from there first so the YAML can reference their
// variables. With an empty configPath, DefaultFilename is looked up and
// defaults are used when it is absent; an explicit configPath must exist.
// DOCMAKE_* overrides, defaults and validation follow the YAML.
func Load(configPath, baseDir string) (*Config, error) {
	lookupDir := baseDir
	if lookupDir == "" {
		o, err := readEnvOverrides(nil)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid DOCMAKE_* environment override").Fatal().Build()
		}
		lookupDir = o.BaseDir
	}

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(lookupDir, DefaultFilename)
	}

	envDir := lookupDir
	if envDir == "" && explicit {
		envDir = filepath.Dir(configPath)
	}
	if err := loadEnvFiles(envDir); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to load .env file").Fatal().Build()
	}

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to parse configuration").
				Fatal().
				WithContext("path", configPath).
				Build()
		}
		abs, absErr := filepath.Abs(configPath)
		if absErr != nil {
			abs = configPath
		}
		cfg.source = abs
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config file; defaults only
	case errors.Is(err, os.ErrNotExist):
		return nil, derrors.ConfigError("configuration file not found").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	default:
		return nil, derrors.ConfigError("failed to read configuration").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	if err := applyEnvOverrides(cfg, nil); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid DOCMAKE_* environment override").Fatal().Build()
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode expands ${VAR} references and rejects unknown keys.
func decode(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Init writes an example configuration holding the defaults.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("path", configPath).
			Build()
	}

	example := &Config{}
	applyDefaults(example)

	data, err := yaml.Marshal(example)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "failed to marshal config").Build()
	}

	// #nosec G306 -- config is not secret
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return nil
}
