package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/instance"
	"github.com/Aman-CERP/fileindex/internal/pipeline"
	"github.com/Aman-CERP/fileindex/internal/ui"
	"github.com/Aman-CERP/fileindex/internal/worker"
)

// progressInterval is how often the renderer is fed a progress snapshot.
const progressInterval = 100 * time.Millisecond

type indexOptions struct {
	plain   bool
	noColor bool
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <dir>...",
		Short: "Scan directories once and bring the index up to date",
		Long: `Scan the given directories once, index every supported file, remove
records for files that no longer exist, and exit when the queue is empty.

Progress is shown as an interactive display on a terminal and as plain
lines otherwise.`,
		Example: `  fileindex index ~/Documents ~/Pictures
  fileindex index --plain . > index.log`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, a, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain line output even on a terminal")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, roots []string, opts indexOptions) error {
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
		ui.WithTitle(strings.Join(roots, ", "))))
	_, interactive := renderer.(*ui.TUIRenderer)

	logger, err := a.openLog(!interactive)
	if err != nil {
		return err
	}
	defer a.closeLog()

	lock, err := instance.Acquire(a.cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	p, err := pipeline.Open(ctx, a.cfg, pipeline.Options{
		Roots:  roots,
		Logger: logger,
		OnResult: func(r worker.Result) {
			if r.Err != nil && !fierrors.IsNotFound(r.Err) {
				renderer.AddError(ui.ErrorEvent{File: r.Job.Key(), Err: r.Err})
			}
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close stores", slog.String("error", err.Error()))
		}
	}()

	if err := renderer.Start(ctx); err != nil {
		logger.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				renderer.UpdateProgress(progressEvent(p.Progress().Snapshot()))
			}
		}
	}()

	start := time.Now()
	sum, err := p.Index(ctx)
	close(done)

	if errors.Is(err, context.Canceled) {
		return fierrors.New(fierrors.ErrCodeInternal, "indexing interrupted", err).
			WithSuggestion("Run the same command again; unchanged files are re-indexed idempotently")
	}
	if err != nil {
		return err
	}

	s := p.Progress().Snapshot()
	renderer.Complete(ui.CompletionStats{
		Queued:   int(s.Queued),
		Indexed:  int(s.Indexed),
		Removed:  int(s.Removed),
		Moved:    int(s.Moved),
		Skipped:  int(s.Skipped),
		Failed:   int(s.Failed),
		Pruned:   int(sum.Pruned),
		Duration: time.Since(start),
		Space:    p.Space(),
	})
	return nil
}

func progressEvent(s pipeline.Snapshot) ui.ProgressEvent {
	return ui.ProgressEvent{
		Stage:       ui.StageFromName(string(s.Stage)),
		Processed:   int(s.Processed),
		Queued:      int(s.Queued),
		CurrentFile: s.LastPath,
	}
}
