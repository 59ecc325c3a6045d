package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the templates under the root",
	Long: `List every template name that can be passed to render, one per line.

Examples:
  hotplate list
  hotplate list --format json
  hotplate list -f yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "text", "Output format (text, json, yaml)")
}

type listing struct {
	Root      string   `json:"root" yaml:"root"`
	Templates []string `json:"templates" yaml:"templates"`
}

func runList(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(listFormat, "text", "json", "yaml"); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tmpl, err := openTemplates(cfg, logger, false)
	if err != nil {
		return err
	}

	result := listing{Root: tmpl.Root(), Templates: tmpl.Names()}
	out := cmd.OutOrStdout()
	switch listFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(result)
	default:
		for _, name := range result.Templates {
			fmt.Fprintln(out, name)
		}
		return nil
	}
}
