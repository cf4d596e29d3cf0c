package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/output"
	"github.com/Aman-CERP/fileindex/internal/preflight"
)

func newDoctorCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor [dir...]",
		Short: "Check that this machine can run a watcher",
		Long: `Check the data directory, disk space, open file limit, the embedder,
and for each given directory that it is readable and that the kernel can
watch all of its subdirectories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := preflight.New(a.cfg, args...).Run(cmd.Context())

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printPreflight(output.New(cmd.OutOrStdout()), results)
			}

			if preflight.HasCriticalFailures(results) {
				return errPreflightFailed()
			}
			return preflight.MarkPassed(a.cfg.Storage.DataDir)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printPreflight(out *output.Writer, results []preflight.Result) {
	for _, r := range results {
		out.Statusf("["+r.Status.String()+"]", "%s: %s", r.Name, r.Message)
		if r.Hint != "" && r.Status != preflight.StatusPass {
			out.Hint(r.Hint)
		}
	}
	out.Newline()
	out.Statusf("", "Status: %s", strings.ToUpper(preflight.Summary(results)))
}

func errPreflightFailed() error {
	return fierrors.ValidationError("environment checks failed", nil).
		WithSuggestion("Run 'fileindex doctor' to see which check failed")
}
