package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotplate/pkg/hotplate"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"c"},
	Short:   "Compile every template and report problems",
	Long: `Compile the template root the same way serve and render do and report
every problem found: syntax errors in any file and {{ template }} calls that
name a template no file defines.

Exits non-zero when anything fails to compile.

Examples:
  hotplate check
  hotplate check --root ./site --pattern '*.html'`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tmpl, err := openTemplates(cfg, logger, false)
	if err != nil {
		problems := hotplate.Problems(err)
		if len(problems) == 0 {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range problems {
			fmt.Fprintln(out, formatProblem(p))
		}
		return fmt.Errorf("%d problem(s) in %s", len(problems), cfg.Templates.Root)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d template(s) in %s\n", len(tmpl.Names()), tmpl.Root())
	return nil
}

// formatProblem renders a problem as file:line:col: message, omitting
// unknown positions.
func formatProblem(p hotplate.Problem) string {
	loc := p.File
	if p.Line > 0 {
		loc += fmt.Sprintf(":%d", p.Line)
		if p.Column > 0 {
			loc += fmt.Sprintf(":%d", p.Column)
		}
	}
	return loc + ": " + p.Message
}
