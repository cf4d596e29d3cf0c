package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/logging"
	"github.com/Aman-CERP/fileindex/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd(a *app) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show or follow the fileindex log",
		Example: `  fileindex logs -n 100
  fileindex logs -f --level warn
  fileindex logs --filter 'ERR_5'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.file == "" {
				opts.file = a.cfg.LogFilePath()
			}
			return runLogs(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow new lines, like tail -f")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default: the configured log file)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return fierrors.ValidationError(fmt.Sprintf("unknown level %q", opts.level), nil)
	}
	var pattern *regexp.Regexp
	if opts.filter != "" {
		re, err := regexp.Compile(opts.filter)
		if err != nil {
			return fierrors.ValidationError("invalid filter pattern", err)
		}
		pattern = re
	}

	out := cmd.OutOrStdout()
	v := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor || !ui.IsTTY(out) || ui.DetectNoColor(),
	}, out)

	entries, err := v.Tail(opts.file, opts.lines)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fierrors.NotFound(opts.file, err).
				WithSuggestion("Nothing has been logged yet; run 'fileindex index' or 'fileindex watch' first")
		}
		return err
	}
	v.Print(entries)
	if !opts.follow {
		return nil
	}

	ch := make(chan logging.Entry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- v.Follow(ctx, opts.file, ch) }()
	for {
		select {
		case e := <-ch:
			_, _ = fmt.Fprintln(out, v.Format(e))
		case err := <-errCh:
			return err
		}
	}
}
