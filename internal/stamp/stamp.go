// Package stamp writes a release version into the docs version file.
//
// The file is opened read/write in place: it must already exist (unless
// CreateIfMissing is set) and it is never truncated, so when the new version
// is shorter than the old content the old trailing bytes stay behind.
package stamp

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
)

// Stamper writes versions into Path.
type Stamper struct {
	Path string
	// CreateIfMissing switches from update-in-place to create-or-update.
	CreateIfMissing bool
	// RequireSemver rejects versions that are not semantic versions
	// (an optional leading "v" is accepted).
	RequireSemver bool

	logger *slog.Logger
}

// New creates a Stamper for path with the strict update-in-place behavior.
func New(path string, logger *slog.Logger) *Stamper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stamper{Path: path, logger: logger}
}

// Stamp writes version at the start of the file and reports whether it wrote
// anything. An empty version is skipped and is not an error.
func (s *Stamper) Stamp(version string) (bool, error) {
	if version == "" {
		s.logger.Debug("No version given, leaving version file untouched", logfields.Path(s.Path))
		return false, nil
	}

	if s.RequireSemver {
		if err := Validate(version); err != nil {
			return false, err
		}
	}

	flags := os.O_RDWR
	if s.CreateIfMissing {
		flags |= os.O_CREATE
	}

	// #nosec G304 -- path comes from local configuration
	f, err := os.OpenFile(s.Path, flags, 0o644)
	if err != nil {
		return false, openError(s.Path, err)
	}

	if _, err := f.WriteAt([]byte(version), 0); err != nil {
		_ = f.Close()
		return false, derrors.FileSystemError("failed to write version file").
			WithCause(err).
			WithContext(logfields.KeyPath, s.Path).
			Build()
	}
	if err := f.Close(); err != nil {
		return false, derrors.FileSystemError("failed to close version file").
			WithCause(err).
			WithContext(logfields.KeyPath, s.Path).
			Build()
	}

	s.logger.Info("Stamped version", logfields.Version(version), logfields.Path(s.Path))
	return true, nil
}

// Validate checks that version is a semantic version.
func Validate(version string) error {
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v")); err != nil {
		return derrors.WrapError(err, derrors.CategoryValidation, "version is not a valid semantic version").
			Fatal().
			WithContext(logfields.KeyVersion, version).
			Build()
	}
	return nil
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return derrors.WrapError(err, derrors.CategoryNotFound, "version file does not exist").
			Fatal().
			WithContext(logfields.KeyPath, path).
			Build()
	}
	return derrors.FileSystemError("failed to open version file").
		WithCause(err).
		WithContext(logfields.KeyPath, path).
		Build()
}
