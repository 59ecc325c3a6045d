package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/hotplate/internal/config"
)

type flagBinding struct {
	key  string
	flag *pflag.Flag
}

var flagBindings []flagBinding

// bindFlag ties a flag to a configuration key so that setting the flag
// overrides the environment and the config file. Bindings are applied to
// the global Viper instance by bindFlags.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	flag := flags.Lookup(name)
	if flag == nil {
		panic("bind flag: no flag named " + name)
	}
	flagBindings = append(flagBindings, flagBinding{key: key, flag: flag})
}

func bindFlags(v *viper.Viper) error {
	for _, b := range flagBindings {
		if err := v.BindPFlag(b.key, b.flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag.Name, err)
		}
	}
	return nil
}

func addTemplateFlags(flags *pflag.FlagSet) {
	flags.StringP("root", "r", "./templates", "Directory holding the templates")
	flags.StringSlice("pattern", nil, "Glob matched against file base names (repeatable)")
	flags.Bool("builtins", true, "Install the builtin functions, filters and tests")
	bindFlag(flags, "root", config.KeyTemplatesRoot)
	bindFlag(flags, "pattern", config.KeyTemplatesPatterns)
	bindFlag(flags, "builtins", config.KeyTemplatesBuiltins)
}

func addLogFlags(flags *pflag.FlagSet) {
	flags.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	bindFlag(flags, "log-level", config.KeyLogLevel)
	bindFlag(flags, "log-format", config.KeyLogFormat)
}

func addServerFlags(flags *pflag.FlagSet) {
	flags.IntP("port", "p", 8080, "Port to serve on")
	flags.String("host", "localhost", "Host to bind to")
	flags.Bool("live-reload", true, "Reload open pages after every successful recompile")
	bindFlag(flags, "port", config.KeyServerPort)
	bindFlag(flags, "host", config.KeyServerHost)
	bindFlag(flags, "live-reload", config.KeyLiveReload)
}

func addWatchFlag(flags *pflag.FlagSet) {
	flags.BoolP("watch", "w", false, "Recompile when files under the root change (overrides development.hot_reload)")
	bindFlag(flags, "watch", config.KeyHotReload)
}

func addReloadFlags(flags *pflag.FlagSet) {
	flags.Duration("debounce", config.DefaultDebounce, "Quiet period before a reload")
	bindFlag(flags, "debounce", config.KeyDebounce)
}

// validateFormat rejects --format values outside allowed.
func validateFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported format: %s (supported: %v)", format, allowed)
}
