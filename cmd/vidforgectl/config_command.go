package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidforge/vidforge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigSampleCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigSampleCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print or write the sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetPath == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
				return err
			}
			if !overwrite {
				if _, err := os.Stat(targetPath); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", targetPath)
				}
			}
			if err := os.WriteFile(targetPath, []byte(config.SampleConfig()), 0o600); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", targetPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid (%d users, storage enabled: %t)\n", len(cfg.Users), cfg.StorageEnabled())
			return nil
		},
	}
}
