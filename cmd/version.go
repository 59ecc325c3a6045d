package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hotplate/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the hotplate version, git commit, build time, Go version and
target platform.

Examples:
  hotplate version
  hotplate version --detailed
  hotplate version --format json`,
	Args: cobra.NoArgs,
	// Version needs no configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(versionFormat, "text", "json"); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	info := version.GetBuildInfo()

	switch {
	case versionFormat == "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case versionShort:
		fmt.Fprintln(out, version.GetShortVersion())
	case versionDetailed:
		fmt.Fprintln(out, info.String())
	default:
		fmt.Fprintf(out, "hotplate %s\n", version.GetShortVersion())
		fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
	}
	return nil
}
