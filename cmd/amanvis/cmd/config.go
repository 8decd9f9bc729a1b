package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanvis/internal/config"
	"github.com/Aman-CERP/amanvis/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage amanvis configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/amanvis/config.yaml)
  3. Project config (.amanvis.yaml in the indexed directory)
  4. Environment variables (AMANVIS_*)
  5. Command flags`,
		Example: `  # Write .amanvis.yaml with the defaults
  amanvis config init

  # Show the effective configuration
  amanvis config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a project configuration file",
		Long: `Write .amanvis.yaml with the effective configuration into a directory.

An existing file is left alone unless --force is given, in which case it
is backed up next to itself first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			return runConfigInit(cmd, root, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration (a backup is kept)")

	return cmd
}

func runConfigInit(cmd *cobra.Command, root string, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.ProjectConfigPath(root)

	exists := fileExists(path)
	if exists && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("💡", "Use --force to overwrite (a backup is kept)")
		return nil
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	if exists {
		backup, err := config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("💾", "Backup: %s", backup)
	}

	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		defaults   bool
	)

	cmd := &cobra.Command{
		Use:   "show [path]",
		Short: "Show effective configuration",
		Long:  `Show the configuration after merging defaults, user and project files, and environment.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			if !defaults {
				root, err := resolveRoot(args)
				if err != nil {
					return err
				}
				if cfg, err = config.Load(root); err != nil {
					return err
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show only the built-in defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path [path]",
		Short: "Print configuration file locations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Field("user", config.GetUserConfigPath())
			out.Field("project", config.ProjectConfigPath(root))
			return nil
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
