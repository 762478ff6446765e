package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/vecbench/configs"
	"github.com/Aman-CERP/vecbench/internal/config"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
	"github.com/Aman-CERP/vecbench/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vecbench configuration",
	}
	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var (
		project  bool
		force    bool
		resolved bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long: `Write the annotated configuration template to the user config
(~/.config/vecbench/config.yaml), or with --project to .vecbench.yaml in
the working directory.

An existing file is kept unless --force is given; then it is backed up
first. --resolved writes the effective configuration instead of the
template.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path := config.GetUserConfigPath()
			if project {
				path = config.ProjectConfigFile
			}

			if _, err := os.Stat(path); err == nil {
				if !force {
					return vberrors.ValidationError(fmt.Sprintf("%s already exists", path), nil).
						WithSuggestion("Use --force to overwrite it; a backup is kept")
				}
				backup, err := config.BackupFile(path)
				if err != nil {
					return err
				}
				out.Statusf("", "Backed up existing config to %s", backup)
			}

			if resolved {
				if err := a.cfg.WriteYAML(path); err != nil {
					return err
				}
			} else {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
				if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
			}

			out.Successf("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Write .vecbench.yaml in the working directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file after backing it up")
	cmd.Flags().BoolVar(&resolved, "resolved", false, "Write the effective configuration instead of the template")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the user config, the project
config and VECBENCH_* environment variables are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			w := cmd.OutOrStdout()
			userState := "not found"
			if config.UserConfigExists() {
				userState = "loaded"
			}
			_, _ = fmt.Fprintf(w, "# user config:    %s (%s)\n", config.GetUserConfigPath(), userState)
			if p := config.ProjectConfigPath("."); p != "" {
				_, _ = fmt.Fprintf(w, "# project config: %s\n", p)
			}
			_, err = w.Write(data)
			return err
		},
	}
}
