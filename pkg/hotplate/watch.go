package hotplate

import (
	"github.com/conneroisu/hotplate/internal/reload"
)

// WatchState is the lifecycle position of a WatchSession.
type WatchState = reload.State

const (
	WatchIdle      = reload.StateIdle
	WatchWatching  = reload.StateWatching
	WatchReloading = reload.StateReloading
	WatchStopped   = reload.StateStopped
)

// WatchStats counts the reloads a session has triggered.
type WatchStats = reload.Stats

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// WatchSession is the handle returned by Watch. The zero value is an
// inactive session, which is what Watch returns with hot reload disabled.
type WatchSession struct {
	session *reload.Session
}

// Active reports whether the session is still watching.
func (w *WatchSession) Active() bool {
	return w != nil && w.session != nil && w.session.State() != reload.StateStopped
}

// State returns WatchStopped for inactive sessions.
func (w *WatchSession) State() WatchState {
	if w == nil || w.session == nil {
		return WatchStopped
	}
	return w.session.State()
}

// Stats returns a snapshot of reload counters.
func (w *WatchSession) Stats() WatchStats {
	if w == nil || w.session == nil {
		return WatchStats{}
	}
	return w.session.Stats()
}

// Done is closed when the session stops. It is already closed for inactive
// sessions.
func (w *WatchSession) Done() <-chan struct{} {
	if w == nil || w.session == nil {
		return closedDone
	}
	return w.session.Done()
}

// Stop ends the session. Safe to call on inactive sessions and more than once.
func (w *WatchSession) Stop() {
	if w == nil || w.session == nil {
		return
	}
	w.session.Stop()
}
