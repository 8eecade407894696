// Package gitversion derives a release version from git tags.
package gitversion

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
)

// Nearest returns the name of the tag closest to HEAD in the repository that
// contains dir. When one commit carries several tags the highest semantic
// version wins, falling back to lexical order for non-semver names.
func Nearest(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryGit, "open repository").
			WithContext(logfields.KeyDir, dir).
			Build()
	}

	tagsByCommit, err := tagsByCommit(repo)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryGit, "list tags").
			WithContext(logfields.KeyDir, dir).
			Build()
	}

	head, err := repo.Head()
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryGit, "resolve HEAD").
			WithContext(logfields.KeyDir, dir).
			Build()
	}

	commits, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryGit, "walk history").
			WithContext(logfields.KeyDir, dir).
			Build()
	}
	defer commits.Close()

	var found string
	err = commits.ForEach(func(c *object.Commit) error {
		if names, ok := tagsByCommit[c.Hash]; ok {
			found = highest(names)
			return storer.ErrStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return "", derrors.WrapError(err, derrors.CategoryGit, "walk history").Build()
	}
	if found == "" {
		return "", derrors.GitError("no tag reachable from HEAD").
			WithContext(logfields.KeyDir, dir).
			Build()
	}
	return found, nil
}

// tagsByCommit resolves lightweight and annotated tags to the commits they point at.
func tagsByCommit(repo *git.Repository) (map[plumbing.Hash][]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, err
	}
	defer refs.Close()

	out := make(map[plumbing.Hash][]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		tag, err := repo.TagObject(target)
		switch {
		case err == nil:
			commit, err := tag.Commit()
			if err != nil {
				// annotated tag on a non-commit object
				return nil
			}
			target = commit.Hash
		case !errors.Is(err, plumbing.ErrObjectNotFound):
			return fmt.Errorf("resolve tag %s: %w", ref.Name().Short(), err)
		}
		out[target] = append(out[target], ref.Name().Short())
		return nil
	})
	return out, err
}

func highest(names []string) string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, ei := semver.NewVersion(strings.TrimPrefix(sorted[i], "v"))
		vj, ej := semver.NewVersion(strings.TrimPrefix(sorted[j], "v"))
		switch {
		case ei == nil && ej == nil:
			return vi.GreaterThan(vj)
		case ei == nil:
			return true
		case ej == nil:
			return false
		default:
			return sorted[i] > sorted[j]
		}
	})
	return sorted[0]
}
