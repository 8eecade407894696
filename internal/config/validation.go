package config

import (
	"strings"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied and
// normalizes the logging enums in place.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Build.Command) == "" {
		return derrors.ValidationError("build.command must not be empty").Build()
	}
	if c.Build.Timeout < 0 {
		return derrors.ValidationError("build.timeout must not be negative").
			WithContext("timeout", c.Build.Timeout.String()).
			Build()
	}

	for field, v := range map[string]string{
		"paths.docs_dir":       c.Paths.DocsDir,
		"paths.version_file":   c.Paths.VersionFile,
		"paths.index_artifact": c.Paths.IndexArtifact,
		"paths.cache_artifact": c.Paths.CacheArtifact,
	} {
		if strings.TrimSpace(v) == "" {
			return derrors.ValidationError(field + " must not be empty").Build()
		}
	}

	for field, raw := range map[string]*LogLevel{
		"logging.level":       &c.Logging.Level,
		"logging.shell_level": &c.Logging.ShellLevel,
	} {
		lvl, err := logLevelNormalizer.NormalizeWithError(string(*raw))
		if err != nil {
			return derrors.WrapError(err, derrors.CategoryValidation, "invalid "+field).Fatal().Build()
		}
		*raw = lvl
	}

	format, err := logFormatNormalizer.NormalizeWithError(string(c.Logging.Format))
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryValidation, "invalid logging.format").Fatal().Build()
	}
	c.Logging.Format = format
	return nil
}
