// Package ghsource implements finder.Source over the GitHub REST API.
package ghsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
	"github.com/treefind/treefind/internal/finder"
	"go.uber.org/zap"
)

// Options configures the GitHub API client.
type Options struct {
	AuthToken    string
	CacheDir     string
	CacheTTL     time.Duration
	DisableCache bool
}

// Client is a finder.Source for repositories named "owner/repo" on GitHub.
type Client struct {
	rest   *api.RESTClient
	logger *zap.Logger
}

// NewClient creates a new GitHub-backed source.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rest, err := api.NewRESTClient(api.ClientOptions{
		AuthToken:   opts.AuthToken,
		CacheDir:    opts.CacheDir,
		CacheTTL:    opts.CacheTTL,
		EnableCache: !opts.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	return &Client{
		rest:   rest,
		logger: logger,
	}, nil
}

// splitName parses an "owner/repo" repository name.
func splitName(name string) (owner, repo string, err error) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%q (expected owner/repo): %w", name, finder.ErrRepositoryNotFound)
	}
	return parts[0], parts[1], nil
}

// statusCode extracts the HTTP status from a go-gh API error, or 0.
func statusCode(err error) int {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// isCommitHash reports whether s is a full 40-character lowercase hex hash.
func isCommitHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Resolve maps a revision spec to a branch ref path or a commit hash. An
// empty revision resolves to the repository's default branch; a branch name
// resolves to its ref path; a tag resolves to the tagged object's hash; a
// full commit hash passes through untouched.
func (c *Client) Resolve(ctx context.Context, repository, revision string) (string, error) {
	owner, repo, err := splitName(repository)
	if err != nil {
		return "", err
	}

	if revision == "" {
		var result struct {
			DefaultBranch string `json:"default_branch"`
			Size          int    `json:"size"`
		}
		endpoint := fmt.Sprintf("repos/%s/%s", owner, repo)
		if err := c.rest.DoWithContext(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
			if statusCode(err) == http.StatusNotFound {
				return "", fmt.Errorf("%s: %w", repository, finder.ErrRepositoryNotFound)
			}
			return "", fmt.Errorf("failed to get repo %s: %w", repository, err)
		}
		if result.Size == 0 {
			return "", fmt.Errorf("%s: %w", repository, finder.ErrRepositoryEmpty)
		}
		return "refs/heads/" + result.DefaultBranch, nil
	}

	if isCommitHash(revision) {
		return revision, nil
	}

	rev := strings.TrimPrefix(revision, "refs/")
	candidates := []string{"heads/" + rev, "tags/" + rev}
	if strings.HasPrefix(rev, "heads/") || strings.HasPrefix(rev, "tags/") {
		candidates = []string{rev}
	}

	for _, refPath := range candidates {
		var ref struct {
			Ref    string `json:"ref"`
			Object struct {
				SHA string `json:"sha"`
			} `json:"object"`
		}
		endpoint := fmt.Sprintf("repos/%s/%s/git/ref/%s", owner, repo, refPath)
		err := c.rest.DoWithContext(ctx, http.MethodGet, endpoint, nil, &ref)
		if err == nil {
			if strings.HasPrefix(ref.Ref, "refs/heads/") {
				return ref.Ref, nil
			}
			return ref.Object.SHA, nil
		}
		if statusCode(err) != http.StatusNotFound {
			return "", fmt.Errorf("failed to resolve %s@%s: %w", repository, revision, err)
		}
	}

	return "", fmt.Errorf("%s@%s: %w", repository, revision, finder.ErrRevisionNotFound)
}

// ListFiles fetches the recursive tree at the resolved revision and returns
// the blob paths.
func (c *Client) ListFiles(ctx context.Context, repository, resolvedRevision string) ([]string, error) {
	owner, repo, err := splitName(repository)
	if err != nil {
		return nil, err
	}

	// The trees endpoint takes a branch name, not a ref path.
	rev := strings.TrimPrefix(resolvedRevision, "refs/heads/")

	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	endpoint := fmt.Sprintf("repos/%s/%s/git/trees/%s?recursive=1", owner, repo, rev)
	if err := c.rest.DoWithContext(ctx, http.MethodGet, endpoint, nil, &tree); err != nil {
		switch statusCode(err) {
		case http.StatusNotFound:
			return nil, fmt.Errorf("%s@%s: %w", repository, resolvedRevision, finder.ErrRevisionNotFound)
		case http.StatusConflict:
			// GitHub answers 409 for git data endpoints on empty repositories.
			return nil, fmt.Errorf("%s: %w", repository, finder.ErrRepositoryEmpty)
		}
		return nil, fmt.Errorf("failed to get tree for %s: %w", repository, err)
	}

	if tree.Truncated {
		c.logger.Warn("tree listing truncated by GitHub (100k entries or 7MB)",
			zap.String("repository", repository),
			zap.String("revision", resolvedRevision))
	}

	files := make([]string, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			files = append(files, entry.Path)
		}
	}
	return files, nil
}
