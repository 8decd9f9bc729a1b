// Package cmd provides the CLI commands for amanvis.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanvis/internal/config"
	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/logging"
	"github.com/Aman-CERP/amanvis/internal/profiling"
	"github.com/Aman-CERP/amanvis/pkg/version"
)

var (
	debugMode      bool
	noColor        bool
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the amanvis CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanvis",
		Short: "Extract visual features from image collections into a local index",
		Long: `amanvis walks a directory of images, extracts global visual descriptors
(color layout, edge histogram, CEDD, Tamura and more) and stores one record
per image in a local SQLite or Bleve index.

Run 'amanvis index' in a photo directory to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("amanvis version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.amanvis/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startLoggingAndProfiling
	cmd.PersistentPostRunE = stopLoggingAndProfiling

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newBuildersCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLoggingAndProfiling installs the file logger and starts requested
// profiles. The log level comes from the configuration in the working
// directory unless --debug is set.
func startLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	} else if cfg, err := config.Load("."); err == nil {
		logCfg.Level = cfg.Logging.Level
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging_started",
		slog.String("log_file", logCfg.FilePath),
		slog.String("version", version.Short()))

	if profileOpts.Enabled() {
		if profile, err = profiling.Start(profileOpts); err != nil {
			return err
		}
	}
	return nil
}

func stopLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	err := profile.Stop()
	profile = nil
	if err != nil {
		err = fmt.Errorf("failed to write profiles: %w", err)
	}

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints fatal errors.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), amerrors.FormatForCLI(err))
		// PersistentPostRunE does not run after a failed command.
		_ = stopLoggingAndProfiling(root, nil)
	}
	return err
}
