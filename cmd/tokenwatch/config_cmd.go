package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tokenwatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve and validate the configuration, then print it with secrets masked",
	Long: `Resolve every configuration layer and validate the result.

Examples:
  tokenwatch config check
  tokenwatch config check --config ./config.yaml --env-file ./prod.env`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.NewConfigManager(cfgPath, "").Parse()
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, string(b))
		if err := config.Validate(cfg); err != nil {
			return err
		}
		fmt.Fprintln(out, "config OK")
		return nil
	},
}
