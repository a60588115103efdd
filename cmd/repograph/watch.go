package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/repograph"
	"github.com/jward/repograph/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Analyze a repository and re-analyze whenever its source files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	addAnalysisFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before re-analysis")
}

func runWatch(cmd *cobra.Command, args []string) error {
	target, base, err := resolveTarget(args)
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	s, err := loadSettings(base)
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	applyAnalysisFlags(s)

	engine, err := s.openEngine()
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	root, err := analyzeOnce(ctx, cmd, engine, target, s)
	if err != nil {
		return outputError(cmd, "watch", err)
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")
	w, err := watch.New(root, func(ctx context.Context, changed []string) error {
		s.logger.Debug("re-analyzing", "changed", changed)
		_, err := analyzeOnce(ctx, cmd, engine, root, s)
		return err
	}, watch.WithDebounce(debounce), watch.WithLogger(s.logger))
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	s.logger.Info("watching for changes", "root", root)
	return w.Run(ctx)
}

// analyzeOnce runs one analysis and prints its stats, returning the local
// root that was analyzed.
func analyzeOnce(ctx context.Context, cmd *cobra.Command, engine *repograph.Engine, target string, s *settings) (string, error) {
	start := time.Now()
	stats, err := engine.AnalyzeSource(ctx, target, s.cfg.WorkDir)
	if err != nil {
		return "", err
	}
	s.logger.Debug("analysis finished", "elapsed", time.Since(start))
	return stats.Root, outputResult(cmd, CLIResult{
		Command: "watch",
		Results: statsToCLI("", stats, s.cfg.DBPath),
	})
}
