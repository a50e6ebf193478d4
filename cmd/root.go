package cmd

import (
	"github.com/spf13/cobra"
	"github.com/treefind/treefind/internal/config"
	"go.uber.org/zap"
)

var (
	version = "dev"

	// Persistent flags.
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "treefind",
	Short: "Find files in git repositories by glob pattern",
	Long: `treefind answers one question: which files in a set of git repositories,
at a resolved revision, match a glob pattern?

It runs either as an HTTP server over a directory of hosted repositories
(treefind serve) or as a one-shot search from the command line (treefind find).

Patterns use a shell-style syntax:
  *              Match any characters within one path segment (e.g., "*.go")
  **             Match across directories (e.g., "**/*.js")
  ?              Match a single character (e.g., "file?.txt")

Every pattern is valid; one that matches nothing simply returns no files.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (default ~/.config/treefind/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(findCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the configured profile.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
