// Package cmd provides the command-line interface for hotplate.
//
// Configuration is resolved by Viper with this precedence, highest first:
//
//  1. Command-line flags (--root, --port, --log-level, ...)
//  2. HOTPLATE_* environment variables (HOTPLATE_SERVER_PORT, ...)
//  3. The config file: --config, then $HOTPLATE_CONFIG_FILE, then
//     .hotplate.yml in the working directory
//  4. Built-in defaults
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/hotplate/internal/config"
	"github.com/conneroisu/hotplate/internal/logging"
	"github.com/conneroisu/hotplate/pkg/hotplate"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hotplate",
	Short: "Render and preview text templates with hot reload",
	Long: `hotplate compiles a directory of Go text templates and renders them with
builtin functions, filters and tests. During development it recompiles the
directory whenever a file changes, keeping the last good set when an edit
does not compile.

Quick Start:
  hotplate check                     Compile every template and report problems
  hotplate render page.html --set title=Home
  hotplate serve                     Preview templates with live reload
  hotplate watch                     Recompile on change and report results`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .hotplate.yml, can also use HOTPLATE_CONFIG_FILE env var)")
	addTemplateFlags(flags)
	addReloadFlags(flags)
	addLogFlags(flags)
}

// initConfig binds flags and environment overrides into the global Viper
// instance and reads the config file before any command runs.
func initConfig(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := bindFlags(v); err != nil {
		return err
	}
	return config.Init(v, cfgFile)
}

// loadConfig decodes the effective configuration and builds the logger for
// it. Log output goes to the command's stderr.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(&logging.Config{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "cli",
	})
	return cfg, logger, nil
}

// openTemplates compiles the configured root.
func openTemplates(cfg *config.Config, logger logging.Logger, hotReload bool) (*hotplate.Templates, error) {
	tmpl, err := hotplate.New(cfg.Templates.Root,
		hotplate.WithLogger(logger),
		hotplate.WithPatterns(cfg.Templates.Patterns...),
		hotplate.WithBuiltins(cfg.Templates.Builtins),
		hotplate.WithHotReload(hotReload),
		hotplate.WithDebounce(cfg.Development.Debounce),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", cfg.Templates.Root, err)
	}
	return tmpl, nil
}
