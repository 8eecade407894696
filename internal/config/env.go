package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "DOCMAKE_"

// envFiles are loaded from the base directory, most specific first. godotenv
// never overrides variables that are already set, so the first file wins.
var envFiles = []string{".env.local", ".env"}

// loadEnvFiles loads .env.local and .env from dir when present.
// Existing process environment variables are not overwritten.
func loadEnvFiles(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		slog.Debug("Loaded environment variables", "path", path)
	}
	return nil
}

// envOverrides mirrors the config fields that may be set via DOCMAKE_*.
type envOverrides struct {
	BaseDir      string        `env:"BASE_DIR"`
	DocsDir      string        `env:"DOCS_DIR"`
	VersionFile  string        `env:"VERSION_FILE"`
	BuildCommand string        `env:"BUILD_COMMAND"`
	BuildArgs    []string      `env:"BUILD_ARGS" envSeparator:" "`
	BuildTimeout time.Duration `env:"BUILD_TIMEOUT"`
	LogLevel     string        `env:"LOG_LEVEL"`
	LogFormat    string        `env:"LOG_FORMAT"`
	MetricsFile  string        `env:"METRICS_FILE"`
}

// readEnvOverrides parses DOCMAKE_* values. A nil environ reads the process
// environment.
func readEnvOverrides(environ map[string]string) (envOverrides, error) {
	var o envOverrides
	err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix, Environment: environ})
	return o, err
}

// applyEnvOverrides copies non-empty DOCMAKE_* values onto cfg. A relative
// DOCMAKE_BASE_DIR is taken relative to the working directory, not the config
// file.
func applyEnvOverrides(cfg *Config, environ map[string]string) error {
	o, err := readEnvOverrides(environ)
	if err != nil {
		return err
	}

	if o.BaseDir != "" {
		abs, err := filepath.Abs(o.BaseDir)
		if err != nil {
			return fmt.Errorf("%sBASE_DIR: %w", EnvPrefix, err)
		}
		cfg.Paths.BaseDir = abs
	}
	setIf(&cfg.Paths.DocsDir, o.DocsDir)
	setIf(&cfg.Paths.VersionFile, o.VersionFile)
	setIf(&cfg.Build.Command, o.BuildCommand)
	if len(o.BuildArgs) > 0 {
		cfg.Build.Args = o.BuildArgs
	}
	if o.BuildTimeout > 0 {
		cfg.Build.Timeout = o.BuildTimeout
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = LogLevel(o.LogLevel)
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = LogFormat(o.LogFormat)
	}
	setIf(&cfg.Metrics.File, o.MetricsFile)
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
