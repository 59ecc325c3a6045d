// Package hotplate renders text templates from a directory tree and can
// recompile them in place while a program is running.
//
// A Templates value is a cheap handle: Clone returns another handle over the
// same compiled set, so handlers and goroutines can each hold their own
// without reading the disk again. Rendering is safe from any number of
// goroutines while a reload or an extension registration is in progress.
//
//	t, err := hotplate.New("templates", hotplate.WithHotReload(dev))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if _, err := t.Watch(ctx); err != nil {
//		log.Fatal(err)
//	}
//	out, err := t.Render("pages/index.html", hotplate.Context{"user": u})
//
// Inside templates, extensions are reached through three builtins:
//
//	{{ fn "now" }}
//	{{ .title | filter "truncate" 20 }}
//	{{ if is "even" .count }}…{{ end }}
package hotplate

import (
	"context"
	"fmt"

	"github.com/conneroisu/hotplate/internal/extensions"
	"github.com/conneroisu/hotplate/internal/registry"
	"github.com/conneroisu/hotplate/internal/reload"
)

// Context is the data a template is rendered with.
type Context = map[string]any

// Extension signatures.
type (
	Function = registry.Function
	Filter   = registry.Filter
	Tester   = registry.Tester
)

// ReloadEvent describes one reload attempt.
type ReloadEvent = registry.ReloadEvent

// Undefined is the value {{ get "key" . }} yields for an absent key.
type Undefined = registry.Undefined

// IsUndefined reports whether v stands for an absent context key. Custom
// filters and testers use it to treat such values like the builtins do.
func IsUndefined(v any) bool { return registry.IsUndefined(v) }

// Templates is a handle over a shared template registry.
type Templates struct {
	reg      *registry.Registry
	settings settings
}

// New compiles every template under root. A compile error here means the
// template set is unusable and should be treated as fatal by the caller.
func New(root string, opts ...Option) (*Templates, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	reg, err := registry.New(root, registry.Options{
		Fs:       s.fs,
		Patterns: s.patterns,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	if s.builtins {
		extensions.Install(reg)
	}
	return &Templates{reg: reg, settings: s}, nil
}

// MustNew is like New but panics on error.
func MustNew(root string, opts ...Option) *Templates {
	t, err := New(root, opts...)
	if err != nil {
		panic(fmt.Sprintf("hotplate: %v", err))
	}
	return t
}

// Clone returns another handle over the same templates and extensions.
func (t *Templates) Clone() *Templates {
	return &Templates{reg: t.reg, settings: t.settings}
}

// Render executes the named template with ctx.
func (t *Templates) Render(name string, ctx Context) (string, error) {
	return t.reg.Render(name, ctx)
}

// RegisterFunction makes fn callable as {{ fn "name" args... }}. A later
// registration under the same name replaces it.
func (t *Templates) RegisterFunction(name string, fn Function) {
	t.reg.RegisterFunction(name, fn)
}

// RegisterFilter makes fn usable as {{ value | filter "name" args... }}.
func (t *Templates) RegisterFilter(name string, fn Filter) {
	t.reg.RegisterFilter(name, fn)
}

// RegisterTester makes fn usable as {{ if is "name" args... value }}.
func (t *Templates) RegisterTester(name string, fn Tester) {
	t.reg.RegisterTester(name, fn)
}

// Reload recompiles from disk. On failure the previous templates stay in use
// and the compile error is returned.
func (t *Templates) Reload() error {
	return t.reg.Reload()
}

// Names lists the loaded template names in sorted order.
func (t *Templates) Names() []string {
	return t.reg.Names()
}

// Has reports whether name is loaded.
func (t *Templates) Has(name string) bool {
	return t.reg.Has(name)
}

// Generation increases by one with every successful reload.
func (t *Templates) Generation() uint64 {
	return t.reg.Generation()
}

// Root returns the template directory.
func (t *Templates) Root() string {
	return t.reg.Root()
}

// HotReload reports whether Watch will start watching.
func (t *Templates) HotReload() bool {
	return t.settings.hotReload
}

// Subscribe returns a channel receiving every reload attempt. Slow readers
// miss events rather than block reloads.
func (t *Templates) Subscribe() <-chan ReloadEvent {
	return t.reg.Subscribe()
}

// Unsubscribe closes a channel returned by Subscribe.
func (t *Templates) Unsubscribe(ch <-chan ReloadEvent) {
	t.reg.Unsubscribe(ch)
}

// Watch starts reloading the templates whenever a file under the root
// changes. With hot reload disabled it returns an inactive session and no
// error. Each call starts an independent session.
func (t *Templates) Watch(ctx context.Context) (*WatchSession, error) {
	if !t.settings.hotReload {
		return &WatchSession{}, nil
	}

	session, err := reload.Start(ctx, t.reg, reload.Options{
		Debounce: t.settings.debounce,
		Patterns: t.settings.patterns,
		Logger:   t.settings.logger,
	})
	if err != nil {
		return nil, err
	}
	return &WatchSession{session: session}, nil
}
