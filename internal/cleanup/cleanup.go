// Package cleanup removes the intermediate artifacts a docs build leaves next
// to the docs tree.
package cleanup

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
)

// Cleaner deletes the index file and the cache directory.
type Cleaner struct {
	// IndexFile must exist; removing it is strict.
	IndexFile string
	// CacheDir is removed recursively; a missing directory is fine.
	CacheDir string

	logger *slog.Logger
}

// New creates a Cleaner.
func New(indexFile, cacheDir string, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{IndexFile: indexFile, CacheDir: cacheDir, logger: logger}
}

// Clean removes IndexFile, then CacheDir. If the index file cannot be
// removed the cache directory is left alone.
func (c *Cleaner) Clean() error {
	c.logger.Info("Cleaning up build artifacts", logfields.Path(c.IndexFile), logfields.Dir(c.CacheDir))

	if err := os.Remove(c.IndexFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return derrors.WrapError(err, derrors.CategoryNotFound, "index artifact does not exist").
				Fatal().
				WithContext(logfields.KeyPath, c.IndexFile).
				Build()
		}
		return derrors.FileSystemError("failed to remove index artifact").
			WithCause(err).
			WithContext(logfields.KeyPath, c.IndexFile).
			Build()
	}

	if err := os.RemoveAll(c.CacheDir); err != nil {
		return derrors.FileSystemError("failed to remove cache directory").
			WithCause(err).
			WithContext(logfields.KeyPath, c.CacheDir).
			Build()
	}

	c.logger.Debug("Build artifacts removed")
	return nil
}
