// Package server is a development HTTP server that previews templates and
// pushes reload notifications to open browser tabs.
package server

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/hotplate/internal/config"
	"github.com/conneroisu/hotplate/internal/logging"
	"github.com/conneroisu/hotplate/internal/registry"
)

const shutdownTimeout = 5 * time.Second

// Templates is the part of a template set the server needs.
type Templates interface {
	Render(name string, ctx map[string]any) (string, error)
	Names() []string
	Has(name string) bool
	Generation() uint64
	Subscribe() <-chan registry.ReloadEvent
	Unsubscribe(ch <-chan registry.ReloadEvent)
}

// PreviewServer serves rendered templates with live reload
type PreviewServer struct {
	templates Templates
	config    config.ServerConfig
	logger    logging.Logger
	hub       *hub

	serverMutex sync.RWMutex
	httpServer  *http.Server
	listener    net.Listener
}

// New creates a preview server. A nil logger discards output.
func New(templates Templates, cfg config.ServerConfig, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")
	return &PreviewServer{
		templates: templates,
		config:    cfg,
		logger:    logger,
		hub:       newHub(logger),
	}
}

// Handler returns the routes of the server.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /_health", s.handleHealth)
	mux.HandleFunc("GET /_templates", s.handleTemplates)
	mux.HandleFunc("GET /_livereload", s.handleWebSocket)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /{name...}", s.handleRender)
	return s.logRequests(mux)
}

// Start listens on the configured host and port and serves until ctx is
// cancelled.
func (s *PreviewServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	events := s.templates.Subscribe()
	defer s.templates.Unsubscribe(events)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.run(hubCtx, events)

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Lock()
	s.httpServer = server
	s.listener = ln
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "preview server listening",
		"addr", ln.Addr().String(),
		"live_reload", s.config.LiveReload,
		"templates", len(s.templates.Names()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Live reload connections are hijacked, so Shutdown does not wait for
	// them. Closing the hub drops them.
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, err, "graceful shutdown incomplete")
		return err
	}
	s.logger.Info(shutdownCtx, "preview server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" before Serve.
func (s *PreviewServer) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients reports the number of connected live reload clients.
func (s *PreviewServer) Clients() int {
	return s.hub.count()
}

func (s *PreviewServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the live reload upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
