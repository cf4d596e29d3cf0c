package cmd

import (
	"errors"
	"syscall"

	"github.com/spf13/cobra"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/instance"
	"github.com/Aman-CERP/fileindex/internal/output"
)

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the watcher using this data directory",
		Long: `Send SIGTERM to the watcher holding the data directory lock. The
watcher finishes its queued jobs before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			pid, err := instance.Stop(a.cfg.Storage.DataDir, syscall.SIGTERM)
			if errors.Is(err, instance.ErrNotRunning) {
				out.Warningf("No watcher is running for %s", a.cfg.Storage.DataDir)
				return nil
			}
			if err != nil {
				return fierrors.InternalError("failed to stop watcher", err)
			}
			out.Successf("Sent SIGTERM to watcher (PID %d)", pid)
			out.Hint("It exits after finishing its queued jobs")
			return nil
		},
	}
}
