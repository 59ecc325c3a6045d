package cmd

import (
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/conneroisu/hotplate/internal/vars"
)

var renderCmd = &cobra.Command{
	Use:   "render <name>",
	Short: "Render one template",
	Long: `Render a template by its path relative to the root and print the result.

The context is built from --context files (JSON, YAML or TOML, merged in
order) and then --set assignments, which win. Dotted keys nest and values
that parse as JSON keep their type.

Examples:
  hotplate render pages/home.html --context site.yaml
  hotplate render mail.txt --set user.name=ada --set count=3
  hotplate render index.html -c site.toml -o public/index.html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderContexts []string
	renderSets     []string
	renderOutput   string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringArrayVarP(&renderContexts, "context", "c", nil, "Context file (repeatable, later files win)")
	renderCmd.Flags().StringArrayVarP(&renderSets, "set", "s", nil, "Context assignment key=value (repeatable)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, err := buildContext(renderContexts, renderSets)
	if err != nil {
		return err
	}

	tmpl, err := openTemplates(cfg, logger, false)
	if err != nil {
		return err
	}

	out, err := tmpl.Render(args[0], ctx)
	if err != nil {
		return err
	}

	if renderOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := atomic.WriteFile(renderOutput, strings.NewReader(out)); err != nil {
		return fmt.Errorf("failed to write %s: %w", renderOutput, err)
	}
	logger.Info(cmd.Context(), "rendered template", "template", args[0], "output", renderOutput, "bytes", len(out))
	return nil
}

func buildContext(files, assignments []string) (map[string]any, error) {
	layers := make([]map[string]any, 0, len(files)+1)
	for _, f := range files {
		m, err := vars.Load(f)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}

	set, err := vars.ParseAssignments(assignments)
	if err != nil {
		return nil, err
	}
	layers = append(layers, set)
	return vars.Merge(layers...), nil
}
