package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fileindex/internal/instance"
	"github.com/Aman-CERP/fileindex/internal/output"
	"github.com/Aman-CERP/fileindex/internal/pipeline"
	"github.com/Aman-CERP/fileindex/internal/preflight"
)

type watchOptions struct {
	poll         bool
	drainTimeout time.Duration
	skipCheck    bool
}

func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Index directories and keep the index in sync until interrupted",
		Long: `Index the given directories and keep the index in sync with them.

The initial scan runs alongside the watcher, so changes made while it is
still scanning are picked up. On Ctrl+C or SIGTERM the watcher stops
admitting events, finishes every queued job, and exits.

Only one watcher may use a data directory at a time. Use 'fileindex stop'
to stop a running watcher.`,
		Example: `  # Watch your documents
  fileindex watch ~/Documents

  # Use polling on a network filesystem
  fileindex watch --poll /mnt/share`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd, a, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.poll, "poll", false, "Poll for changes instead of using native notifications")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the first-run environment checks")
	cmd.Flags().DurationVar(&opts.drainTimeout, "drain-timeout", 0, "Give up on queued jobs after this long at shutdown (0 waits)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app, roots []string, opts watchOptions) error {
	logger, err := a.openLog(true)
	if err != nil {
		return err
	}
	defer a.closeLog()

	lock, err := instance.Acquire(a.cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release instance lock", slog.String("error", err.Error()))
		}
	}()

	if !opts.skipCheck && preflight.NeedsCheck(a.cfg.Storage.DataDir) {
		results := preflight.New(a.cfg, roots...).Run(ctx)
		if preflight.HasCriticalFailures(results) {
			printPreflight(output.New(cmd.ErrOrStderr()), results)
			return errPreflightFailed()
		}
		if err := preflight.MarkPassed(a.cfg.Storage.DataDir); err != nil {
			logger.Warn("failed to record preflight result", slog.String("error", err.Error()))
		}
	}

	p, err := pipeline.Open(ctx, a.cfg, pipeline.Options{
		Roots:        roots,
		ForcePolling: opts.poll,
		DrainTimeout: opts.drainTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close stores", slog.String("error", err.Error()))
		}
	}()

	output.New(cmd.ErrOrStderr()).Statusf(">", "Watching %s (Ctrl+C to stop)", strings.Join(p.Roots(), ", "))

	runErr := p.Watch(ctx)

	s := p.Progress().Snapshot()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(),
		"Stopped after %s: %d indexed, %d removed, %d moved, %d skipped, %d failed\n",
		(time.Duration(s.ElapsedSeconds) * time.Second).String(),
		s.Indexed, s.Removed, s.Moved, s.Skipped, s.Failed)
	return runErr
}
