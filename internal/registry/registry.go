// Package registry holds the compiled template set and the extension tables
// behind a single reader/writer lock.
//
// Renders take the read lock and never touch the filesystem. Registering a
// function, filter or tester takes the write lock. Reload recompiles the
// whole root without holding the lock, then takes the write lock only to
// swap in the new set, and only when compilation succeeded: a broken file
// never replaces the last good set.
package registry

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/hotplate/internal/errors"
	"github.com/conneroisu/hotplate/internal/logging"
)

// Registry manages the compiled template set and extension tables
type Registry struct {
	root     string
	fs       afero.Fs
	patterns []string
	logger   logging.Logger

	// mu guards set and the three extension tables.
	mu        sync.RWMutex
	set       *compiledSet
	functions map[string]Function
	filters   map[string]Filter
	testers   map[string]Tester

	// reloadMu serializes reloads so an older compile can never be
	// swapped in after a newer one.
	reloadMu sync.Mutex

	subsMu      sync.Mutex
	subscribers []chan ReloadEvent
}

// New compiles every template under root. A non-nil error is a compile error
// and no Registry is returned.
func New(root string, opts Options) (*Registry, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	r := &Registry{
		root:      root,
		fs:        opts.Fs,
		patterns:  opts.Patterns,
		logger:    opts.Logger.WithComponent("registry"),
		functions: make(map[string]Function),
		filters:   make(map[string]Filter),
		testers:   make(map[string]Tester),
	}

	set, err := r.compile()
	if err != nil {
		return nil, err
	}
	set.generation = 1
	r.set = set

	r.logger.Info(context.Background(), "templates compiled",
		"root", root,
		"templates", len(set.names))
	return r, nil
}

// Render executes the named template against ctx.
func (r *Registry) Render(name string, ctx map[string]any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t := r.set.lookup(name)
	if t == nil {
		return "", errors.NewRenderError(errors.ErrCodeTemplateNotFound, "template not found", nil).
			WithTemplate(name)
	}

	if ctx == nil {
		ctx = map[string]any{}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", classifyRenderError(name, err)
	}
	return buf.String(), nil
}

func classifyRenderError(name string, err error) error {
	var he *errors.HotplateError
	var ext *errors.ExtensionError

	switch {
	case stderrors.As(err, &ext):
		he = errors.NewRenderError(errors.ErrCodeExtensionFailed,
			fmt.Sprintf("%s %q failed", ext.Kind, ext.Name), err)
	default:
		if variable, ok := errors.MissingKey(err); ok {
			he = errors.NewRenderError(errors.ErrCodeMissingVariable, "missing context variable", err).
				WithVariable(variable)
		} else {
			he = errors.NewRenderError(errors.ErrCodeRenderFailed, "render failed", err)
		}
	}

	p := errors.ParseProblem(name, err)
	return he.WithTemplate(name).WithLocation(p.File, p.Line, p.Column)
}

// Reload recompiles the root and swaps the result in on success. On failure
// the previous set stays active and the compile error is returned.
func (r *Registry) Reload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	ctx := context.Background()
	op := logging.StartOperation(r.logger, "reload")

	next, err := r.compile()
	if err != nil {
		current := r.Generation()
		var he *errors.HotplateError
		if stderrors.As(err, &he) {
			he.WithContext("generation", current).WithContext("root", r.root)
		}
		op.EndWithError(ctx, err, "template reload failed, keeping last good set",
			"root", r.root,
			"generation", current)
		r.publish(ReloadEvent{
			Generation: current,
			Templates:  len(r.Names()),
			Err:        err,
			Timestamp:  time.Now(),
			Duration:   op.Elapsed(),
		})
		return err
	}

	r.mu.Lock()
	next.generation = r.set.generation + 1
	r.set = next
	r.mu.Unlock()

	op.End(ctx, "templates reloaded",
		"root", r.root,
		"generation", next.generation,
		"templates", len(next.names))
	r.publish(ReloadEvent{
		Generation: next.generation,
		Templates:  len(next.names),
		Timestamp:  time.Now(),
		Duration:   op.Elapsed(),
	})
	return nil
}

// RegisterFunction adds or replaces a function. A nil fn removes the entry.
func (r *Registry) RegisterFunction(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.functions, name)
		return
	}
	r.functions[name] = fn
}

// RegisterFilter adds or replaces a filter. A nil fn removes the entry.
func (r *Registry) RegisterFilter(name string, fn Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.filters, name)
		return
	}
	r.filters[name] = fn
}

// RegisterTester adds or replaces a tester. A nil fn removes the entry.
func (r *Registry) RegisterTester(name string, fn Tester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.testers, name)
		return
	}
	r.testers[name] = fn
}

// Names returns the file templates of the active set, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.set.names))
	copy(names, r.set.names)
	return names
}

// Has reports whether name can be rendered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.lookup(name) != nil
}

// Generation counts successful compilations, starting at 1.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.generation
}

// CompiledAt returns when the active set was compiled.
func (r *Registry) CompiledAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.compiledAt
}

// Root returns the directory the registry compiles from.
func (r *Registry) Root() string {
	return r.root
}

// Subscribe returns a channel that receives every reload attempt. Slow
// subscribers miss events rather than block reloads.
func (r *Registry) Subscribe() <-chan ReloadEvent {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	ch := make(chan ReloadEvent, 16)
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel and closes it
func (r *Registry) Unsubscribe(ch <-chan ReloadEvent) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for i, sub := range r.subscribers {
		if sub == ch {
			close(sub)
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			break
		}
	}
}

func (r *Registry) publish(event ReloadEvent) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for _, sub := range r.subscribers {
		select {
		case sub <- event:
		default:
			// Skip if channel is full
		}
	}
}
