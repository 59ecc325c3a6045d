// Package config loads hotplate settings using Viper, from command-line
// flags, HOTPLATE_* environment variables and a .hotplate.yml file, in that
// order of precedence.
package config

import (
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/conneroisu/hotplate/internal/errors"
)

// Keys understood by Load.
const (
	KeyTemplatesRoot     = "templates.root"
	KeyTemplatesPatterns = "templates.patterns"
	KeyTemplatesBuiltins = "templates.builtins"
	KeyHotReload         = "development.hot_reload"
	KeyDebounce          = "development.debounce"
	KeyServerHost        = "server.host"
	KeyServerPort        = "server.port"
	KeyLiveReload        = "server.live_reload"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
)

// EnvPrefix prefixes every environment override, e.g. HOTPLATE_SERVER_PORT.
const EnvPrefix = "HOTPLATE"

// EnvConfigFile names an alternative config file when --config is not given.
const EnvConfigFile = "HOTPLATE_CONFIG_FILE"

// DefaultDebounce is the quiet period used when development.debounce is unset.
const DefaultDebounce = 100 * time.Millisecond

var envReplacer = strings.NewReplacer(".", "_")

type Config struct {
	Templates   TemplatesConfig   `mapstructure:"templates" yaml:"templates" json:"templates"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
}

type TemplatesConfig struct {
	Root     string   `mapstructure:"root" yaml:"root" json:"root" jsonschema:"description=Directory holding the templates,default=./templates"`
	Patterns []string `mapstructure:"patterns" yaml:"patterns" json:"patterns,omitempty" jsonschema:"description=Glob patterns matched against file base names"`
	Builtins bool     `mapstructure:"builtins" yaml:"builtins" json:"builtins" jsonschema:"description=Install the builtin functions filters and testers,default=true"`
}

type DevelopmentConfig struct {
	HotReload bool          `mapstructure:"hot_reload" yaml:"hot_reload" json:"hot_reload" jsonschema:"description=Recompile templates when files change"`
	Debounce  time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce" jsonschema:"type=string,description=Quiet period before a reload such as 100ms"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host" yaml:"host" json:"host" jsonschema:"default=localhost"`
	Port       int    `mapstructure:"port" yaml:"port" json:"port" jsonschema:"minimum=0,maximum=65535,default=8080"`
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload" json:"live_reload" jsonschema:"description=Push reloads to open browser tabs,default=true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" jsonschema:"enum=text,enum=json"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTemplatesRoot, "./templates")
	v.SetDefault(KeyTemplatesPatterns, []string{})
	v.SetDefault(KeyTemplatesBuiltins, true)
	v.SetDefault(KeyHotReload, false)
	v.SetDefault(KeyDebounce, DefaultDebounce)
	v.SetDefault(KeyServerHost, "localhost")
	v.SetDefault(KeyServerPort, 8080)
	v.SetDefault(KeyLiveReload, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Init binds environment overrides and reads the config file into v. The
// file is, in order: file, $HOTPLATE_CONFIG_FILE, or .hotplate.yml in the
// working directory. Only the last may be missing.
func Init(v *viper.Viper, file string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to read config file "+file)
		}
		return nil
	}

	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName(".hotplate")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to read .hotplate.yml")
	}
	return nil
}

// Load decodes and validates the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates v. Defaults are applied for unset keys.
// Durations may be given as strings ("250ms") and patterns as a
// comma-separated string.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	if result := Validate(&cfg); result.HasErrors() {
		return nil, result.Err()
	}
	return &cfg, nil
}
