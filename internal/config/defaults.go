package config

import "time"

// Default values for a Sphinx-style docs tree.
const (
	DefaultDocsDir       = "_docs_sources"
	DefaultVersionFile   = "sh_version"
	DefaultIndexArtifact = "objects.inv"
	DefaultCacheArtifact = "doctrees"
	DefaultBuildCommand  = "make"
	DefaultWatchDebounce = 500 * time.Millisecond
)

// DefaultBuildArgs returns the arguments passed to DefaultBuildCommand.
func DefaultBuildArgs() []string {
	return []string{"html"}
}

func applyDefaults(cfg *Config) {
	if cfg.Paths.DocsDir == "" {
		cfg.Paths.DocsDir = DefaultDocsDir
	}
	if cfg.Paths.VersionFile == "" {
		cfg.Paths.VersionFile = DefaultVersionFile
	}
	if cfg.Paths.IndexArtifact == "" {
		cfg.Paths.IndexArtifact = DefaultIndexArtifact
	}
	if cfg.Paths.CacheArtifact == "" {
		cfg.Paths.CacheArtifact = DefaultCacheArtifact
	}

	if cfg.Build.Command == "" {
		cfg.Build.Command = DefaultBuildCommand
		if len(cfg.Build.Args) == 0 {
			cfg.Build.Args = DefaultBuildArgs()
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.ShellLevel == "" {
		cfg.Logging.ShellLevel = LogLevelError
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}
