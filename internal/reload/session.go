// Package reload drives recompilation of a template registry from file
// system changes.
package reload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/conneroisu/hotplate/internal/errors"
	"github.com/conneroisu/hotplate/internal/logging"
	"github.com/conneroisu/hotplate/internal/watcher"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// State is the lifecycle position of a Session.
type State int32

const (
	StateIdle State = iota
	StateWatching
	StateReloading
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateReloading:
		return "reloading"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Reloader is the part of a registry a Session drives.
type Reloader interface {
	Root() string
	Reload() error
}

// Options configures a Session.
type Options struct {
	Debounce time.Duration
	Patterns []string
	Logger   logging.Logger
}

// Stats summarises the reloads a Session has triggered. LastError is the
// result of the most recent attempt and is nil after a success.
type Stats struct {
	Reloads    uint64
	Failures   uint64
	LastError  error
	LastReload time.Time
}

// Session watches a registry's root and reloads it after each debounced
// batch of changes.
type Session struct {
	reloader Reloader
	watcher  *watcher.FileWatcher
	logger   logging.Logger
	cancel   context.CancelFunc

	state      *atomic.Int32
	reloads    *atomic.Uint64
	failures   *atomic.Uint64
	lastError  *atomic.Error
	lastReload *atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

// Start begins watching r.Root(). It returns a watch setup error when the
// root cannot be watched; the registry is left untouched either way.
func Start(ctx context.Context, r Reloader, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("reload")
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	root := r.Root()
	fw, err := watcher.NewFileWatcher(root, debounce, logger)
	if err != nil {
		return nil, errors.NewWatchSetupError(errors.ErrCodeWatchSetup, "failed to watch template root", err).
			WithLocation(root, 0, 0)
	}
	fw.AddFilter(watcher.IgnoreFilter)
	if len(opts.Patterns) > 0 {
		fw.AddFilter(watcher.PatternFilter(opts.Patterns...))
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		reloader:   r,
		watcher:    fw,
		logger:     logger,
		cancel:     cancel,
		state:      atomic.NewInt32(int32(StateIdle)),
		reloads:    atomic.NewUint64(0),
		failures:   atomic.NewUint64(0),
		lastError:  atomic.NewError(nil),
		lastReload: atomic.NewInt64(0),
		done:       make(chan struct{}),
	}
	fw.AddHandler(s.handle)

	if err := fw.Start(ctx); err != nil {
		cancel()
		_ = fw.Stop()
		return nil, errors.NewWatchSetupError(errors.ErrCodeWatchSetup, "failed to start watcher", err).
			WithLocation(root, 0, 0)
	}
	s.state.Store(int32(StateWatching))
	go s.wait(ctx)

	logger.Info(ctx, "watching templates for changes", "root", root, "debounce", debounce)
	return s, nil
}

func (s *Session) handle(ctx context.Context, events []watcher.ChangeEvent) error {
	if !s.state.CAS(int32(StateWatching), int32(StateReloading)) {
		return nil
	}
	defer s.state.CAS(int32(StateReloading), int32(StateWatching))

	s.logger.Debug(ctx, "changes detected, reloading", "changes", len(events))

	err := s.reloader.Reload()
	s.lastReload.Store(time.Now().UnixNano())
	s.lastError.Store(err)
	if err != nil {
		// The registry keeps serving its previous set; keep watching so the
		// next fix is picked up.
		s.failures.Inc()
		return nil
	}
	s.reloads.Inc()
	return nil
}

func (s *Session) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.watcher.Done():
	}
	s.Stop()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the reload counters.
func (s *Session) Stats() Stats {
	stats := Stats{
		Reloads:   s.reloads.Load(),
		Failures:  s.failures.Load(),
		LastError: s.lastError.Load(),
	}
	if ns := s.lastReload.Load(); ns != 0 {
		stats.LastReload = time.Unix(0, ns)
	}
	return stats
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop ends the session. It is safe to call more than once and from any
// goroutine.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateStopped))
		s.cancel()
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(context.Background(), err, "failed to close watcher")
		}
		s.logger.Info(context.Background(), "stopped watching templates",
			"reloads", s.reloads.Load(),
			"failures", s.failures.Load())
		close(s.done)
	})
}
