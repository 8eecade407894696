package config

import (
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
)

// Layout holds the absolute paths a run works with.
//
// The artifacts sit next to BaseDir, not inside DocsDir. That mirrors where
// the docs Makefile drops them for this tree and is kept as-is.
type Layout struct {
	BaseDir       string
	DocsDir       string
	VersionFile   string
	IndexArtifact string
	CacheArtifact string
}

// ResolveLayout computes absolute paths. The base directory is, in order: the
// override (usually --base-dir), paths.base_dir (relative to the config file),
// the config file's directory, the working directory.
func (c *Config) ResolveLayout(override string) (Layout, error) {
	base, err := c.baseDir(override)
	if err != nil {
		return Layout{}, err
	}

	docs := under(base, c.Paths.DocsDir)
	return Layout{
		BaseDir:       base,
		DocsDir:       docs,
		VersionFile:   under(docs, c.Paths.VersionFile),
		IndexArtifact: under(base, c.Paths.IndexArtifact),
		CacheArtifact: under(base, c.Paths.CacheArtifact),
	}, nil
}

func (c *Config) baseDir(override string) (string, error) {
	var dir string
	switch {
	case override != "":
		dir = override
	case c.Paths.BaseDir != "" && c.source != "":
		dir = under(filepath.Dir(c.source), c.Paths.BaseDir)
	case c.Paths.BaseDir != "":
		dir = c.Paths.BaseDir
	case c.source != "":
		dir = filepath.Dir(c.source)
	default:
		wd, err := os.Getwd()
		if err != nil {
			return "", derrors.InternalError("failed to determine working directory").WithCause(err).Build()
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryConfig, "invalid base directory").
			WithContext("path", dir).
			Build()
	}
	return abs, nil
}

func under(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
