// Package cmd provides the fileindex CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fileindex/internal/config"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
	"github.com/Aman-CERP/fileindex/internal/logging"
	"github.com/Aman-CERP/fileindex/internal/profiling"
	"github.com/Aman-CERP/fileindex/pkg/version"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	configFile string
	dataDir    string
	debug      bool
	profile    profiling.Options

	cfg        *config.Config
	logCleanup func()
	profiler   *profiling.Session
}

// NewRootCmd creates the root command for the fileindex CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "fileindex",
		Short: "Keep a searchable index in sync with your files",
		Long: `fileindex watches directories and keeps a metadata store and a vector
store in sync with the files in them.

Every regular file gets a record with its category, a short description
and its timestamps, plus an embedding of the description. Creates,
edits, renames and deletes are reflected within a second or so.

Run 'fileindex index <dir>' once, or 'fileindex watch <dir>' to stay in sync.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetVersionTemplate("fileindex version {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fierrors.ValidationError(err.Error(), nil)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default: .fileindex.yaml in the working directory)")
	pf.StringVar(&a.dataDir, "data-dir", "", "Directory holding the stores and logs (default ~/.fileindex)")
	pf.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	pf.StringVar(&a.profile.Heap, "profile-mem", "", "Write heap profile to file on exit")
	pf.StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return a.start() }
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error { return a.stop() }

	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newStopCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// start loads configuration and begins profiling. Logging is opened by
// the commands that need it, since the TUI owns stderr.
func (a *app) start() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.profile.Enabled() {
		s, err := profiling.Start(a.profile)
		if err != nil {
			return fierrors.InternalError("failed to start profiling", err)
		}
		a.profiler = s
	}
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configFile != "" {
		if _, serr := os.Stat(a.configFile); serr != nil {
			return nil, fierrors.New(fierrors.ErrCodeConfigNotFound, "config file not found", serr).
				WithDetail("path", a.configFile).
				WithSuggestion("Run 'fileindex config init' to create one")
		}
		cfg, err = config.LoadFile(a.configFile)
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			return nil, fierrors.InternalError("failed to get working directory", werr)
		}
		cfg, err = config.Load(cwd)
	}
	if err != nil {
		return nil, fierrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check the YAML syntax, or run 'fileindex config show' with a valid file")
	}

	if a.dataDir != "" {
		cfg.Storage.DataDir = a.dataDir
	}
	if a.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openLog sets up the JSON logger and makes it the slog default.
func (a *app) openLog(stderr bool) (*slog.Logger, error) {
	cfg := a.cfg
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.LogFilePath(),
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		Stderr:    stderr && (cfg.Logging.Stderr || a.debug),
	})
	if err != nil {
		return nil, fierrors.InternalError("failed to set up logging", err)
	}
	a.logCleanup = cleanup
	slog.SetDefault(logger)
	logger.Debug("logging started",
		slog.String("log_file", cfg.LogFilePath()),
		slog.String("version", version.Short()))
	return logger, nil
}

// closeLog flushes the log file. Commands defer it because
// PersistentPostRunE does not run after a failed RunE.
func (a *app) closeLog() {
	if a.logCleanup != nil {
		a.logCleanup()
		a.logCleanup = nil
	}
}

func (a *app) stop() error {
	a.closeLog()
	if err := a.profiler.Stop(); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	a.profiler = nil
	return nil
}
