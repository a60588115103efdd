package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/repograph"
	"github.com/jward/repograph/internal/jobs"
	"github.com/jward/repograph/internal/lang"
	"github.com/jward/repograph/internal/source"
)

var (
	flagForce     bool
	flagLanguages string
	flagExcludes  []string
	flagSerial    bool
	flagWorkers   int
	flagDepth     int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path|url]",
	Short: "Build the call graph for a repository",
	Long:  "Discovers source files, extracts functions and calls, links calls to every function with the callee's name, and indexes documentation. A Git URL is shallow-cloned first.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Long += " Supported file extensions: " + strings.Join(lang.Extensions(), ", ") + "."
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and index before analyzing")
}

// addAnalysisFlags registers the flags shared by analyze and watch.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. python,typescript)")
	cmd.Flags().StringSliceVar(&flagExcludes, "exclude", nil, "glob of repository-relative paths to skip (repeatable)")
	cmd.Flags().BoolVar(&flagSerial, "serial", false, "extract files one at a time")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "extraction worker count (default: config or one per CPU)")
	cmd.Flags().IntVar(&flagDepth, "depth", -1, "clone depth for a Git URL, 0 for full history (default: config or 1)")
}

// applyAnalysisFlags overlays the analyze/watch flags onto s.
func applyAnalysisFlags(s *settings) {
	if flagLanguages != "" {
		var langs []string
		for _, l := range strings.Split(flagLanguages, ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		s.cfg.Languages = langs
	}
	if len(flagExcludes) > 0 {
		s.cfg.Excludes = append(s.cfg.Excludes, flagExcludes...)
	}
	if flagSerial {
		s.cfg.Parallel = false
	}
	if flagWorkers > 0 {
		s.cfg.Workers = flagWorkers
	}
	if flagDepth >= 0 {
		s.cfg.CloneDepth = flagDepth
	}
}

// resolveTarget returns the analysis argument and the directory whose
// repository owns the database. Local paths become absolute.
func resolveTarget(args []string) (target, base string, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("getting cwd: %w", err)
	}
	arg := "."
	if len(args) > 0 {
		arg = args[0]
	}
	if source.IsRemote(arg) {
		return arg, cwd, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", "", fmt.Errorf("resolving path %q: %w", arg, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, abs, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	target, base, err := resolveTarget(args)
	if err != nil {
		return outputError(cmd, "analyze", err)
	}
	s, err := loadSettings(base)
	if err != nil {
		return outputError(cmd, "analyze", err)
	}
	applyAnalysisFlags(s)

	if flagForce {
		for _, p := range []string{s.cfg.DBPath, s.cfg.IndexPath} {
			if err := os.RemoveAll(p); err != nil {
				return outputError(cmd, "analyze", fmt.Errorf("removing %s for --force: %w", p, err))
			}
		}
		s.logger.Info("cleared previous analysis", "db", s.cfg.DBPath, "index", s.cfg.IndexPath)
	}

	engine, err := s.openEngine()
	if err != nil {
		return outputError(cmd, "analyze", err)
	}
	defer engine.Close()

	manager, err := jobs.NewManager(s.cfg.JobRetention, s.logger)
	if err != nil {
		return outputError(cmd, "analyze", err)
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	job := manager.Submit(ctx, target, engine.JobFunc(target, s.cfg.WorkDir))
	done, err := manager.Wait(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return outputError(cmd, "analyze", err)
	}
	if done.State != jobs.Complete {
		return outputError(cmd, "analyze", fmt.Errorf("job %s %s: %s", done.ID, done.State, done.Error))
	}

	stats := done.Result.(*repograph.Stats)
	return outputResult(cmd, CLIResult{
		Command: "analyze",
		Results: statsToCLI(done.ID, stats, s.cfg.DBPath),
	})
}

func statsToCLI(jobID string, st *repograph.Stats, dbPath string) CLIAnalysis {
	failed := make([]CLIFileError, 0, len(st.Failed))
	for _, f := range st.Failed {
		failed = append(failed, CLIFileError{Path: f.Path, Error: f.Err})
	}
	return CLIAnalysis{
		JobID:      jobID,
		Root:       st.Root,
		Database:   dbPath,
		Files:      st.Files,
		Parsed:     st.Parsed,
		Failed:     failed,
		Functions:  st.Functions,
		Edges:      st.Edges,
		Documents:  st.Documents,
		DurationMS: st.Duration.Round(time.Millisecond).Milliseconds(),
	}
}
