package hotplate

import (
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/hotplate/internal/logging"
	"github.com/conneroisu/hotplate/internal/reload"
)

type settings struct {
	logger    logging.Logger
	hotReload bool
	debounce  time.Duration
	patterns  []string
	fs        afero.Fs
	builtins  bool
}

func defaultSettings() settings {
	return settings{
		logger:   logging.Nop(),
		debounce: reload.DefaultDebounce,
		fs:       afero.NewOsFs(),
		builtins: true,
	}
}

// Option configures New.
type Option func(*settings)

// WithLogger sets the logger used for compile, reload and watch messages.
func WithLogger(logger logging.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHotReload enables Watch. It is off by default so production builds
// never touch the file system after construction.
func WithHotReload(enabled bool) Option {
	return func(s *settings) { s.hotReload = enabled }
}

// WithDebounce sets how long the watcher waits for a burst of changes to go
// quiet before reloading.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithPatterns restricts loading and watching to base names matching one of
// the glob patterns.
func WithPatterns(patterns ...string) Option {
	return func(s *settings) { s.patterns = append([]string(nil), patterns...) }
}

// WithFs loads templates from fs instead of the operating system. Hot reload
// still watches the real directory at root.
func WithFs(fs afero.Fs) Option {
	return func(s *settings) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithBuiltins controls whether the builtin functions, filters and testers
// are installed. They are on by default.
func WithBuiltins(enabled bool) Option {
	return func(s *settings) { s.builtins = enabled }
}
