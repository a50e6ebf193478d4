package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/spf13/cobra"
	"github.com/treefind/treefind/internal/config"
	"github.com/treefind/treefind/internal/finder"
	"github.com/treefind/treefind/internal/ghsource"
	"github.com/treefind/treefind/internal/gitsource"
)

// colorMode represents when to use colored output.
type colorMode string

const (
	colorAuto   colorMode = "auto"
	colorAlways colorMode = "always"
	colorNever  colorMode = "never"
)

// String is used both by fmt.Print and by Cobra in help text.
func (c *colorMode) String() string {
	return string(*c)
}

// Set must have pointer receiver to validate and set the value.
func (c *colorMode) Set(v string) error {
	switch v {
	case "auto", "always", "never":
		*c = colorMode(v)
		return nil
	default:
		return fmt.Errorf("must be one of \"auto\", \"always\", or \"never\"")
	}
}

// Type is only used in help text.
func (c *colorMode) Type() string {
	return "colorMode"
}

var (
	// Flags.
	findColor    = colorAuto
	findRevision string
	findLimit    int
	findJobs     int
	findRoot     string
	findGitHub   bool
)

var findCmd = &cobra.Command{
	Use:   "find [<pattern>] <repository>...",
	Short: "Find files from the command line",
	Long: `Search repositories once and print each match as repository:path.

When searching a single repository, pattern defaults to "*". When searching
multiple repositories, the first argument is the pattern and the rest are
repositories.

Repositories are looked up under the configured root directory by name. With
--github, they are owner/repo names on GitHub instead.

Examples:
  treefind find "*.go" website
  treefind find "**/*_test.go" website tooling
  treefind find -r v2.1.0 "**/README.md" website
  treefind find --github "*.go" cli/cli cli/go-gh`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if findJobs < 1 || findJobs > 100 {
			return fmt.Errorf("--jobs must be between 1 and 100, got %d", findJobs)
		}
		if findLimit < 1 {
			return fmt.Errorf("--limit must be positive, got %d", findLimit)
		}
		return nil
	},
	RunE: runFind,
}

func init() {
	findCmd.Flags().Var(&findColor, "color",
		"colorize output: auto, always, never")
	findCmd.Flags().StringVarP(&findRevision, "revision", "r", "",
		"revision to search (default: each repository's default branch)")
	findCmd.Flags().IntVarP(&findLimit, "limit", "l", finder.DefaultLimit,
		"maximum number of files to print")
	findCmd.Flags().IntVarP(&findJobs, "jobs", "j", 10,
		"maximum concurrent repository searches")
	findCmd.Flags().StringVar(&findRoot, "repos-root", "",
		"directory containing the repositories (overrides config)")
	findCmd.Flags().BoolVar(&findGitHub, "github", false,
		"search repositories on GitHub instead of the local root")
}

// parseArgs parses command-line arguments into a pattern and repositories.
func parseArgs(args []string) (pattern string, repos []string) {
	// Single arg: it's a repo (pattern defaults to "*")
	// Multiple args: first is pattern, rest are repos
	if len(args) == 1 {
		return "*", args
	}
	pattern = args[0]
	if pattern == "" {
		pattern = "*"
	}
	return pattern, args[1:]
}

func runFind(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if findRoot != "" {
		cfg.Repos.Root = findRoot
	}

	pattern, repos := parseArgs(args)

	var colorize bool
	switch findColor {
	case colorAlways:
		colorize = true
	case colorNever:
		colorize = false
	case colorAuto:
		colorize = term.FromEnv().IsColorEnabled()
	}

	var source finder.Source
	if findGitHub {
		source, err = ghsource.NewClient(ghsource.Options{
			AuthToken:    cfg.GitHub.Token,
			CacheDir:     cfg.GitHub.CacheDir,
			CacheTTL:     cfg.GitHub.CacheTTL,
			DisableCache: cfg.GitHub.DisableCache,
		}, nil)
		if err != nil {
			return err
		}
	} else {
		if cfg.Repos.Root == "" {
			return fmt.Errorf("repository root is required (--repos-root or repos.root in config)")
		}
		source = gitsource.NewStore(cfg.Repos.Root, nil)
	}

	f := finder.New(source, nil, findJobs)
	resp, err := f.Find(ctx, &finder.Request{
		PathPattern: pattern,
		Repos:       repos,
		Revision:    findRevision,
		Limit:       findLimit,
	})
	if err != nil {
		return err
	}

	output := finder.NewOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), colorize)
	for _, result := range resp.Results {
		for _, file := range result.Files {
			output.Match(result.Repository, file)
		}
	}
	if resp.LimitHit {
		output.Warningf("output truncated at %d files (raise with --limit)", findLimit)
	}

	return nil
}
