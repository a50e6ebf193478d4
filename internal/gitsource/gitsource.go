// Package gitsource implements finder.Source over git repositories hosted in
// a directory on local disk.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/treefind/treefind/internal/finder"
	"go.uber.org/zap"
)

// Store serves repositories located under a root directory. A repository
// named "group/project" lives at <root>/group/project or
// <root>/group/project.git, bare or with a worktree.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a Store rooted at root.
func NewStore(root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		root:   root,
		logger: logger,
	}
}

// repoPath maps a repository name to its directory under the root. Names
// that would escape the root are rejected as unknown repositories.
func (s *Store) repoPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSuffix(name, ".git")))
	if name == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, finder.ErrRepositoryNotFound)
	}
	return filepath.Join(s.root, clean), nil
}

// open opens the named repository, trying both plain and bare layouts.
func (s *Store) open(name string) (*git.Repository, error) {
	dir, err := s.repoPath(name)
	if err != nil {
		return nil, err
	}

	for _, candidate := range []string{dir, dir + ".git"} {
		repo, err := git.PlainOpen(candidate)
		if err == nil {
			return repo, nil
		}
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("%s: %w", name, finder.ErrRepositoryNotFound)
}

// Resolve maps a revision spec to a branch ref path or a full commit hash.
// An empty revision resolves to HEAD: the full ref name when HEAD points at a
// branch, the commit hash when detached. Explicit revisions that name a
// branch resolve to the branch ref path; anything else (tag, hash prefix,
// rev expression) resolves to the commit hash.
func (s *Store) Resolve(_ context.Context, repository, revision string) (string, error) {
	repo, err := s.open(repository)
	if err != nil {
		return "", err
	}

	if revision == "" {
		head, err := repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return "", fmt.Errorf("%s: %w", repository, finder.ErrRepositoryEmpty)
			}
			return "", fmt.Errorf("head of %s: %w", repository, err)
		}
		if head.Name().IsBranch() {
			return head.Name().String(), nil
		}
		return head.Hash().String(), nil
	}

	branch := plumbing.NewBranchReferenceName(strings.TrimPrefix(revision, "refs/heads/"))
	if _, err := repo.Reference(branch, true); err == nil {
		return branch.String(), nil
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", fmt.Errorf("%s@%s: %w", repository, revision, finder.ErrRevisionNotFound)
	}
	return hash.String(), nil
}

// ListFiles returns every file path in the tree at the resolved revision.
func (s *Store) ListFiles(ctx context.Context, repository, resolvedRevision string) ([]string, error) {
	repo, err := s.open(repository)
	if err != nil {
		return nil, err
	}

	var hash plumbing.Hash
	if strings.HasPrefix(resolvedRevision, "refs/") {
		ref, err := repo.Reference(plumbing.ReferenceName(resolvedRevision), true)
		if err != nil {
			return nil, fmt.Errorf("%s@%s: %w", repository, resolvedRevision, finder.ErrRevisionNotFound)
		}
		hash = ref.Hash()
	} else {
		hash = plumbing.NewHash(resolvedRevision)
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s in %s: %w", resolvedRevision, repository, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s in %s: %w", resolvedRevision, repository, err)
	}

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree of %s: %w", repository, err)
	}
	return files, nil
}

// Repositories returns the sorted names of all repositories under the root
// that have at least one commit. It backs the default repository set when a
// request names none.
func (s *Store) Repositories() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == s.root {
			return nil
		}

		repo, err := git.PlainOpen(path)
		if err != nil {
			if errors.Is(err, git.ErrRepositoryNotExists) {
				return nil // not a repository, keep descending
			}
			return err
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), ".git")

		if _, err := repo.Head(); err != nil {
			s.logger.Debug("skipping repository without commits", zap.String("repository", name))
		} else {
			names = append(names, name)
		}
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	slices.Sort(names)
	return names, nil
}
