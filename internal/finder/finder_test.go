package finder

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// fakeSource is an in-memory Source backed by fixed trees.
type fakeSource struct {
	revisions  map[string]string   // repository -> resolved revision
	files      map[string][]string // repository -> tree file paths
	resolveErr map[string]error
	listErr    map[string]error
}

func (s *fakeSource) Resolve(_ context.Context, repository, revision string) (string, error) {
	if err := s.resolveErr[repository]; err != nil {
		return "", err
	}
	resolved, ok := s.revisions[repository]
	if !ok {
		return "", fmt.Errorf("%s: %w", repository, ErrRepositoryNotFound)
	}
	if revision != "" {
		return revision, nil
	}
	return resolved, nil
}

func (s *fakeSource) ListFiles(_ context.Context, repository, _ string) ([]string, error) {
	if err := s.listErr[repository]; err != nil {
		return nil, err
	}
	return s.files[repository], nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		revisions: map[string]string{
			"alpha": "refs/heads/main",
			"beta":  "0123456789abcdef0123456789abcdef01234567",
		},
		files: map[string][]string{
			"alpha": {"a.txt", "b/c.txt", "x.go", "a/b.go", "a/b.txt"},
			"beta":  {"z.txt", "docs/z.txt", "docs/guide.md"},
		},
		resolveErr: map[string]error{},
		listErr:    map[string]error{},
	}
}

func TestFindValidation(t *testing.T) {
	f := New(newFakeSource(), nil, 4)

	tests := []struct {
		name      string
		req       *Request
		wantField string
	}{
		{
			name:      "missing pathPattern",
			req:       &Request{Repos: []string{"alpha"}},
			wantField: "pathPattern",
		},
		{
			name:      "missing repos",
			req:       &Request{PathPattern: "*"},
			wantField: "repos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Find(context.Background(), tt.req)
			var missing *MissingParameterError
			if !errors.As(err, &missing) {
				t.Fatalf("Find() error = %v, want MissingParameterError", err)
			}
			if missing.Name != tt.wantField {
				t.Errorf("Find() missing field = %q, want %q", missing.Name, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Find() error message %q does not name field %q", err.Error(), tt.wantField)
			}
		})
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		name         string
		req          *Request
		wantTotal    int
		wantLimitHit bool
		wantResults  []RepoResult
	}{
		{
			name:      "star matches only top-level entries",
			req:       &Request{PathPattern: "*", Repos: []string{"alpha"}},
			wantTotal: 2,
			wantResults: []RepoResult{
				{Repository: "alpha", Revision: "refs/heads/main", Files: []string{"a.txt", "x.go"}},
			},
		},
		{
			name:      "doublestar matches at any depth sorted",
			req:       &Request{PathPattern: "**/*.go", Repos: []string{"alpha"}},
			wantTotal: 2,
			wantResults: []RepoResult{
				{Repository: "alpha", Revision: "refs/heads/main", Files: []string{"a/b.go", "x.go"}},
			},
		},
		{
			name:        "no matches yields empty results",
			req:         &Request{PathPattern: "**/this_file_definitely_does_not_exist_12345.xyz", Repos: []string{"alpha", "beta"}},
			wantResults: []RepoResult{},
		},
		{
			name:         "limit truncates in order",
			req:          &Request{PathPattern: "**/*", Repos: []string{"alpha"}, Limit: 2},
			wantTotal:    2,
			wantLimitHit: true,
			wantResults: []RepoResult{
				{Repository: "alpha", Revision: "refs/heads/main", Files: []string{"a.txt", "a/b.go"}},
			},
		},
		{
			name:      "limit exactly met is not a hit",
			req:       &Request{PathPattern: "**/*", Repos: []string{"alpha"}, Limit: 5},
			wantTotal: 5,
			wantResults: []RepoResult{
				{Repository: "alpha", Revision: "refs/heads/main", Files: []string{"a.txt", "a/b.go", "a/b.txt", "b/c.txt", "x.go"}},
			},
		},
		{
			name:         "limit spans repositories in request order",
			req:          &Request{PathPattern: "**/*", Repos: []string{"beta", "alpha"}, Limit: 4},
			wantTotal:    4,
			wantLimitHit: true,
			wantResults: []RepoResult{
				{Repository: "beta", Revision: "0123456789abcdef0123456789abcdef01234567", Files: []string{"docs/guide.md", "docs/z.txt", "z.txt"}},
				{Repository: "alpha", Revision: "refs/heads/main", Files: []string{"a.txt"}},
			},
		},
		{
			name:         "repository beyond the limit is omitted entirely",
			req:          &Request{PathPattern: "**/*", Repos: []string{"beta", "alpha"}, Limit: 3},
			wantTotal:    3,
			wantLimitHit: true,
			wantResults: []RepoResult{
				{Repository: "beta", Revision: "0123456789abcdef0123456789abcdef01234567", Files: []string{"docs/guide.md", "docs/z.txt", "z.txt"}},
			},
		},
		{
			name:      "duplicate repositories are searched once",
			req:       &Request{PathPattern: "z.txt", Repos: []string{"beta", "beta"}},
			wantTotal: 1,
			wantResults: []RepoResult{
				{Repository: "beta", Revision: "0123456789abcdef0123456789abcdef01234567", Files: []string{"z.txt"}},
			},
		},
		{
			name:      "explicit revision echoed back",
			req:       &Request{PathPattern: "z.txt", Repos: []string{"beta"}, Revision: "refs/heads/dev"},
			wantTotal: 1,
			wantResults: []RepoResult{
				{Repository: "beta", Revision: "refs/heads/dev", Files: []string{"z.txt"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(newFakeSource(), nil, 4)

			resp, err := f.Find(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if resp.Pattern != tt.req.PathPattern {
				t.Errorf("Find() pattern = %q, want %q echoed verbatim", resp.Pattern, tt.req.PathPattern)
			}
			if resp.TotalCount != tt.wantTotal {
				t.Errorf("Find() totalCount = %d, want %d", resp.TotalCount, tt.wantTotal)
			}
			if resp.LimitHit != tt.wantLimitHit {
				t.Errorf("Find() limitHit = %v, want %v", resp.LimitHit, tt.wantLimitHit)
			}
			if !reflect.DeepEqual(resp.Results, tt.wantResults) {
				t.Errorf("Find() results = %+v, want %+v", resp.Results, tt.wantResults)
			}
		})
	}
}

func TestFindSkipsUnresolvableRepos(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unknown repository", err: ErrRepositoryNotFound},
		{name: "empty repository", err: ErrRepositoryEmpty},
		{name: "unknown revision", err: ErrRevisionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newFakeSource()
			source.resolveErr["beta"] = fmt.Errorf("beta: %w", tt.err)
			f := New(source, nil, 4)

			resp, err := f.Find(context.Background(), &Request{
				PathPattern: "**/*.txt",
				Repos:       []string{"alpha", "beta"},
			})
			if err != nil {
				t.Fatalf("Find() error = %v, want skipped repository", err)
			}
			if len(resp.Results) != 1 || resp.Results[0].Repository != "alpha" {
				t.Errorf("Find() results = %+v, want alpha only", resp.Results)
			}
		})
	}
}

func TestFindCollaboratorFault(t *testing.T) {
	source := newFakeSource()
	source.listErr["alpha"] = errors.New("object database corrupt")
	f := New(source, nil, 4)

	_, err := f.Find(context.Background(), &Request{
		PathPattern: "**/*",
		Repos:       []string{"alpha", "beta"},
	})
	if err == nil || !strings.Contains(err.Error(), "object database corrupt") {
		t.Fatalf("Find() error = %v, want request-level failure", err)
	}
}

func TestFindCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(newFakeSource(), nil, 4)
	_, err := f.Find(ctx, &Request{PathPattern: "*", Repos: []string{"alpha"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Find() error = %v, want context.Canceled", err)
	}
}

func TestFindIdempotent(t *testing.T) {
	f := New(newFakeSource(), nil, 4)
	req := &Request{PathPattern: "**/*", Repos: []string{"alpha", "beta"}, Limit: 6}

	first, err := f.Find(context.Background(), req)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	second, err := f.Find(context.Background(), req)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Find() is not idempotent: %+v != %+v", first, second)
	}
}

// TestFindLimitMonotonic checks that raising the limit only extends the
// returned file sequence, never reorders it.
func TestFindLimitMonotonic(t *testing.T) {
	f := New(newFakeSource(), nil, 4)

	flatten := func(resp *Response) []string {
		var files []string
		for _, result := range resp.Results {
			for _, file := range result.Files {
				files = append(files, result.Repository+":"+file)
			}
		}
		return files
	}

	prev := []string{}
	for limit := 1; limit <= 9; limit++ {
		resp, err := f.Find(context.Background(), &Request{
			PathPattern: "**/*",
			Repos:       []string{"alpha", "beta"},
			Limit:       limit,
		})
		if err != nil {
			t.Fatalf("Find(limit=%d) error = %v", limit, err)
		}
		files := flatten(resp)
		if len(files) != resp.TotalCount {
			t.Errorf("Find(limit=%d) totalCount = %d, but %d files returned", limit, resp.TotalCount, len(files))
		}
		if !reflect.DeepEqual(prev, files[:min(len(prev), len(files))]) {
			t.Errorf("Find(limit=%d) files %v are not an extension of %v", limit, files, prev)
		}
		wantHit := limit < 8 // alpha and beta hold 8 files in total
		if resp.LimitHit != wantHit {
			t.Errorf("Find(limit=%d) limitHit = %v, want %v", limit, resp.LimitHit, wantHit)
		}
		prev = files
	}
}
