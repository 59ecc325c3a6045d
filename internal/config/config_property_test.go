//go:build property

package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

func TestConfigurationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("valid settings always load", prop.ForAll(
		func(port int, host string, debounceMs int) bool {
			v := viper.New()
			v.Set(KeyServerPort, port)
			v.Set(KeyServerHost, host)
			v.Set(KeyDebounce, fmt.Sprintf("%dms", debounceMs))

			cfg, err := LoadFrom(v)
			return err == nil &&
				cfg.Server.Port == port &&
				cfg.Server.Host == host &&
				cfg.Development.Debounce == time.Duration(debounceMs)*time.Millisecond
		},
		gen.IntRange(1024, 65535),
		gen.RegexMatch(`^[a-z][a-z0-9]{0,20}(\.[a-z][a-z0-9]{0,10}){0,3}$`),
		gen.IntRange(1, 10000),
	))

	properties.Property("ports outside 0-65535 are rejected", prop.ForAll(
		func(port int) bool {
			cfg := &Config{
				Templates:   TemplatesConfig{Root: "."},
				Development: DevelopmentConfig{Debounce: time.Millisecond},
				Server:      ServerConfig{Port: port},
				Log:         LogConfig{Level: "info", Format: "text"},
			}
			return Validate(cfg).HasErrors() == (port < 0 || port > 65535)
		},
		gen.IntRange(-100000, 100000),
	))

	properties.TestingRun(t)
}
