package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/repograph"
	"github.com/jward/repograph/internal/config"
	"github.com/jward/repograph/internal/lang"
)

var (
	flagDB       string
	flagIndex    string
	flagFormat   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "repograph",
	Short:         "Function-level call graphs for Python, JavaScript and TypeScript repositories",
	Long:          "Repograph parses a repository with tree-sitter, records every function and the calls between them in SQLite, and indexes function documentation for search.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .repograph/graph.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagIndex, "index", "", "documentation index path (default: .repograph/docs.bleve relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

// settings is the resolved configuration for one command invocation.
type settings struct {
	cfg      *config.Config
	repoRoot string
	logger   *slog.Logger
}

// loadSettings loads config for the repository containing dir and applies
// the persistent flags over it. Relative paths are anchored at the repo
// root.
func loadSettings(dir string) (*settings, error) {
	repoRoot := findRepoRoot(dir)
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagIndex != "" {
		cfg.IndexPath = flagIndex
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	cfg.DBPath = anchor(repoRoot, cfg.DBPath)
	cfg.IndexPath = anchor(repoRoot, cfg.IndexPath)
	cfg.WorkDir = anchor(repoRoot, cfg.WorkDir)

	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	return &settings{cfg: cfg, repoRoot: repoRoot, logger: logger}, nil
}

func anchor(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// engineOptions translates config into Engine options.
func (s *settings) engineOptions() ([]repograph.Option, error) {
	opts := []repograph.Option{
		repograph.WithLogger(s.logger),
		repograph.WithParallel(s.cfg.Parallel),
		repograph.WithWorkers(s.cfg.Workers),
		repograph.WithCloneDepth(s.cfg.CloneDepth),
	}
	if len(s.cfg.Excludes) > 0 {
		opts = append(opts, repograph.WithExcludes(s.cfg.Excludes...))
	}
	if len(s.cfg.Languages) > 0 {
		tags := make([]lang.Tag, 0, len(s.cfg.Languages))
		for _, name := range s.cfg.Languages {
			tag, err := lang.ParseTag(name)
			if err != nil {
				return nil, err
			}
			tags = append(tags, tag)
		}
		opts = append(opts, repograph.WithLanguages(tags...))
	}
	return opts, nil
}

// openEngine creates the .repograph directories and opens an Engine.
func (s *settings) openEngine() (*repograph.Engine, error) {
	for _, p := range []string{s.cfg.DBPath, s.cfg.IndexPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
		}
	}
	opts, err := s.engineOptions()
	if err != nil {
		return nil, err
	}
	e, err := repograph.New(s.cfg.DBPath, s.cfg.IndexPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
