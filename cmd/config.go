package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hotplate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect hotplate configuration",
	Long: `Inspect the configuration hotplate resolves from flags, HOTPLATE_*
environment variables and .hotplate.yml.

Examples:
  hotplate config show                 # Effective configuration as YAML
  hotplate config show --format json
  hotplate config schema > hotplate.schema.json`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of .hotplate.yml",
	Args:  cobra.NoArgs,
	RunE:  runConfigSchema,
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(configFormat, "yaml", "json"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if configFormat == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	}
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(cfg)
}

func runConfigSchema(cmd *cobra.Command, _ []string) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return err
}
