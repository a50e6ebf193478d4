// Package finder orchestrates pattern-based file search across repositories.
package finder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/treefind/treefind/internal/pattern"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultLimit caps the number of files returned when a request does not
// specify its own limit.
const DefaultLimit = 100

// Sentinel errors a Source reports for per-repository conditions the finder
// recovers from by contributing zero files for that repository.
var (
	// ErrRepositoryNotFound indicates the repository name is unknown.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrRepositoryEmpty indicates the repository has no commits.
	ErrRepositoryEmpty = errors.New("repository has no commits")
	// ErrRevisionNotFound indicates the revision could not be resolved.
	ErrRevisionNotFound = errors.New("revision not found")
)

// MissingParameterError reports a required request field that was absent or
// empty. It is a client error; the request performed no I/O.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return "missing or invalid parameter: " + e.Name
}

// Source resolves revisions and lists tree snapshots for named repositories.
// Implementations must be safe for concurrent use; the finder calls them from
// one goroutine per repository.
type Source interface {
	// Resolve maps a revision spec (empty means the repository default) to
	// either a full ref path ("refs/heads/main") or a 40-character commit
	// hash. It reports ErrRepositoryNotFound, ErrRepositoryEmpty, or
	// ErrRevisionNotFound for the recoverable per-repository conditions.
	Resolve(ctx context.Context, repository, revision string) (string, error)

	// ListFiles returns every file path (not directories) in the tree at the
	// resolved revision, slash-separated with no leading slash, in any order.
	ListFiles(ctx context.Context, repository, resolvedRevision string) ([]string, error)
}

// Request describes one find operation.
type Request struct {
	PathPattern string   // glob pattern, required
	Repos       []string // repositories to search, in order, required
	Revision    string   // revision spec applied to every repository; empty means default
	Limit       int      // global cap on returned files; <= 0 means DefaultLimit
}

// RepoResult holds one repository's matches. Files are sorted ascending with
// no duplicates.
type RepoResult struct {
	Repository string   `json:"repository"`
	Revision   string   `json:"revision"`
	Files      []string `json:"files"`
}

// Response is the assembled result of a find operation. TotalCount counts
// the files actually present in Results, after truncation; LimitHit reports
// whether any matching file was discarded because of the limit.
type Response struct {
	Pattern    string       `json:"pattern"`
	TotalCount int          `json:"totalCount"`
	LimitHit   bool         `json:"limitHit"`
	Results    []RepoResult `json:"results"`
}

// Finder matches a glob pattern against repository trees supplied by a
// Source. It holds no per-request state and is safe for concurrent use.
type Finder struct {
	source Source
	logger *zap.Logger
	jobs   int64
}

// New creates a Finder over source. jobs bounds how many repositories are
// searched concurrently per request.
func New(source Source, logger *zap.Logger, jobs int) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs < 1 {
		jobs = 1
	}
	return &Finder{
		source: source,
		logger: logger,
		jobs:   int64(jobs),
	}
}

// repoMatch is one repository's outcome from the parallel phase. A zero
// value (no files) means the repository was skipped or had no matches.
type repoMatch struct {
	revision string
	files    []string
}

// Find validates the request, matches the pattern against every requested
// repository's tree, and assembles the response. Repositories that cannot be
// resolved contribute zero files; any other collaborator failure fails the
// whole request. Cancelling ctx abandons in-flight work and returns the
// context error with no partial response.
func (f *Finder) Find(ctx context.Context, req *Request) (*Response, error) {
	if req.PathPattern == "" {
		return nil, &MissingParameterError{Name: "pathPattern"}
	}
	if len(req.Repos) == 0 {
		return nil, &MissingParameterError{Name: "repos"}
	}

	compiled := pattern.Compile(req.PathPattern)
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	// The request could name the same repository twice; deduplicate while
	// preserving input order so the merge below stays deterministic.
	seen := make(map[string]bool, len(req.Repos))
	repos := make([]string, 0, len(req.Repos))
	for _, repo := range req.Repos {
		if !seen[repo] {
			seen[repo] = true
			repos = append(repos, repo)
		}
	}

	// Parallel phase: each repository resolves, lists, and matches
	// independently. Results land in a fixed slot per repository so the
	// merge order never depends on goroutine scheduling.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	matches := make([]repoMatch, len(repos))
	sem := semaphore.NewWeighted(f.jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var searchErr error
	fail := func(err error) {
		mu.Lock()
		if searchErr == nil {
			searchErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, repo := range repos {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, repo string) {
			defer wg.Done()
			defer sem.Release(1)
			matches[i] = f.searchRepo(ctx, compiled, repo, req.Revision, fail)
		}(i, repo)
	}

	wg.Wait()

	if searchErr != nil {
		return nil, searchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Merge phase: single-threaded, in request order, truncating at the
	// global limit.
	resp := &Response{
		Pattern: req.PathPattern,
		Results: []RepoResult{},
	}
	for i, repo := range repos {
		m := matches[i]
		if len(m.files) == 0 {
			continue
		}

		remaining := limit - resp.TotalCount
		if remaining <= 0 {
			resp.LimitHit = true
			break
		}
		files := m.files
		if len(files) > remaining {
			files = files[:remaining]
			resp.LimitHit = true
		}

		resp.Results = append(resp.Results, RepoResult{
			Repository: repo,
			Revision:   m.revision,
			Files:      files,
		})
		resp.TotalCount += len(files)
	}

	return resp, nil
}

// searchRepo resolves one repository, lists its tree, and filters it through
// the compiled pattern. Recoverable resolution failures are logged and yield
// an empty repoMatch; anything else is reported through fail.
func (f *Finder) searchRepo(ctx context.Context, compiled pattern.Pattern, repo, revision string, fail func(error)) repoMatch {
	resolved, err := f.source.Resolve(ctx, repo, revision)
	if err != nil {
		if skippable(err) {
			f.logger.Debug("skipping repository",
				zap.String("repository", repo),
				zap.Error(err))
			return repoMatch{}
		}
		fail(fmt.Errorf("resolve %s: %w", repo, err))
		return repoMatch{}
	}

	files, err := f.source.ListFiles(ctx, repo, resolved)
	if err != nil {
		if skippable(err) {
			f.logger.Debug("skipping repository",
				zap.String("repository", repo),
				zap.Error(err))
			return repoMatch{}
		}
		fail(fmt.Errorf("list files %s@%s: %w", repo, resolved, err))
		return repoMatch{}
	}

	var found []string
	for _, file := range files {
		if compiled.Match(file) {
			found = append(found, file)
		}
	}
	slices.Sort(found)
	found = slices.Compact(found)

	return repoMatch{revision: resolved, files: found}
}

// skippable reports whether err is a per-repository condition the finder
// recovers from rather than failing the request.
func skippable(err error) bool {
	return errors.Is(err, ErrRepositoryNotFound) ||
		errors.Is(err, ErrRepositoryEmpty) ||
		errors.Is(err, ErrRevisionNotFound)
}
