package registry

import (
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/hotplate/internal/logging"
)

// Function is a named helper called from templates as {{ fn "name" args... }}.
type Function func(args ...any) (any, error)

// Filter transforms a value: {{ .x | filter "name" args... }}. The filtered
// value arrives as value, any extra template arguments as args.
type Filter func(value any, args ...any) (any, error)

// Tester reports whether a value passes a named test: {{ if is "name" args... .x }}.
type Tester func(value any, args ...any) (bool, error)

// Undefined is what {{ get }} yields for a key the context does not hold.
// It prints as nothing; the defined tester and the default filter treat it
// as absent.
type Undefined struct {
	Key string
}

func (Undefined) String() string { return "" }

// IsUndefined reports whether v came from a failed lookup.
func IsUndefined(v any) bool {
	_, ok := v.(Undefined)
	return ok
}

// Options configures a Registry.
type Options struct {
	// Fs is the filesystem templates are read from. Defaults to the OS.
	Fs afero.Fs

	// Patterns are matched against each file's base name. A file is
	// compiled when any pattern matches. Defaults to "*".
	Patterns []string

	Logger logging.Logger
}

// ReloadEvent describes one reload attempt.
type ReloadEvent struct {
	// Generation is the generation active after the attempt. It only
	// advances on success.
	Generation uint64
	Templates  int
	Err        error
	Timestamp  time.Time
	Duration   time.Duration
}

// Succeeded reports whether the attempt replaced the template set.
func (e ReloadEvent) Succeeded() bool {
	return e.Err == nil
}
