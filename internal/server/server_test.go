package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotplate/internal/config"
	"github.com/conneroisu/hotplate/internal/testutils"
	"github.com/conneroisu/hotplate/pkg/hotplate"
)

func newTemplates(t *testing.T, files map[string]string) (*hotplate.Templates, afero.Fs) {
	t.Helper()
	fs := testutils.MemTree(t, "/site", files)
	tmpl, err := hotplate.New("/site", hotplate.WithFs(fs))
	require.NoError(t, err)
	return tmpl, fs
}

var testFiles = map[string]string{
	"hello.html":     `<html><body>Hello {{ .who }}</body></html>`,
	"data.json":      `{"n": {{ .n }}}`,
	"notes.txt":      `{{ .user.name | filter "upper" }}`,
	"partials/a.tpl": `partial`,
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthAndTemplates(t *testing.T) {
	tmpl, _ := newTemplates(t, testFiles)
	srv := New(tmpl, config.ServerConfig{LiveReload: true}, nil)
	h := srv.Handler()

	rec := get(t, h, "/_health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(1), health.Generation)
	assert.Equal(t, 4, health.Templates)

	rec = get(t, h, "/_templates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var list templatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, uint64(1), list.Generation)
	assert.Equal(t, []string{"data.json", "hello.html", "notes.txt", "partials/a.tpl"}, list.Templates)
}

func TestRender(t *testing.T) {
	tmpl, _ := newTemplates(t, testFiles)

	t.Run("html with live reload", func(t *testing.T) {
		h := New(tmpl, config.ServerConfig{LiveReload: true}, nil).Handler()
		rec := get(t, h, "/hello.html?who=ada")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, "<html><body>Hello ada<script>"), body)
		assert.True(t, strings.HasSuffix(body, "</script>\n</body></html>"), body)
		assert.Contains(t, body, "/_livereload")
	})

	t.Run("html without live reload", func(t *testing.T) {
		h := New(tmpl, config.ServerConfig{}, nil).Handler()
		rec := get(t, h, "/hello.html?who=ada")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<html><body>Hello ada</body></html>", rec.Body.String())
	})

	t.Run("typed and nested query values", func(t *testing.T) {
		h := New(tmpl, config.ServerConfig{LiveReload: true}, nil).Handler()

		rec := get(t, h, "/data.json?n=3")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, `{"n": 3}`, rec.Body.String())

		rec = get(t, h, "/notes.txt?user.name=ada")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "ADA", rec.Body.String())
	})

	t.Run("query values are escaped in html", func(t *testing.T) {
		h := New(tmpl, config.ServerConfig{}, nil).Handler()
		rec := get(t, h, "/hello.html?who="+url.QueryEscape("<script>alert(1)</script>"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<html><body>Hello &lt;script&gt;alert(1)&lt;/script&gt;</body></html>", rec.Body.String())

		rec = get(t, h, "/notes.txt?user.name="+url.QueryEscape("<b>"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "<B>", rec.Body.String())
	})

	t.Run("nested template path", func(t *testing.T) {
		h := New(tmpl, config.ServerConfig{}, nil).Handler()
		rec := get(t, h, "/partials/a.tpl")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partial", rec.Body.String())
	})

	t.Run("errors", func(t *testing.T) {
		h := New(tmpl, config.ServerConfig{}, nil).Handler()

		rec := get(t, h, "/missing.html")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing.html")

		rec = get(t, h, "/hello.html")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "who")

		rec = get(t, h, "/hello.html?a=1&a.b=2")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestIndex(t *testing.T) {
	t.Run("listing", func(t *testing.T) {
		tmpl, _ := newTemplates(t, testFiles)
		rec := get(t, New(tmpl, config.ServerConfig{}, nil).Handler(), "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `<a href="/hello.html">hello.html</a>`)
		assert.Contains(t, rec.Body.String(), "generation 1")
	})

	t.Run("index.html", func(t *testing.T) {
		tmpl, _ := newTemplates(t, map[string]string{"index.html": "home {{ .page }}"})
		rec := get(t, New(tmpl, config.ServerConfig{}, nil).Handler(), "/?page=2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "home 2", rec.Body.String())
	})
}

func TestInjectScript(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"lowercase", "<body>x</body>", "<body>x<s></body>"},
		{"uppercase", "<BODY>x</BODY>", "<BODY>x<s></BODY>"},
		{"last body wins", "</body></body>", "</body><s></body>"},
		{"no body", "fragment", "fragment<s>"},
		{"empty", "", "<s>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, injectScript(tt.body, "<s>"))
		})
	}
}

func TestLiveReloadAndShutdown(t *testing.T) {
	tmpl, fs := newTemplates(t, testFiles)
	srv := New(tmpl, config.ServerConfig{Host: "127.0.0.1", LiveReload: true}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, ln) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, "ws://"+ln.Addr().String()+"/_livereload", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg Message
	require.NoError(t, wsjson.Read(dialCtx, conn, &msg))
	assert.Equal(t, MessageConnected, msg.Type)
	assert.Equal(t, uint64(1), msg.Generation)
	assert.Equal(t, 1, srv.Clients())
	assert.Equal(t, ln.Addr().String(), srv.Addr())

	require.NoError(t, afero.WriteFile(fs, "/site/hello.html", []byte("<body>v2</body>"), 0o644))
	require.NoError(t, tmpl.Reload())
	require.NoError(t, wsjson.Read(dialCtx, conn, &msg))
	assert.Equal(t, MessageReload, msg.Type)
	assert.Equal(t, uint64(2), msg.Generation)
	assert.Equal(t, 4, msg.Templates)

	require.NoError(t, afero.WriteFile(fs, "/site/hello.html", []byte("{{ .x"), 0o644))
	require.Error(t, tmpl.Reload())
	require.NoError(t, wsjson.Read(dialCtx, conn, &msg))
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, uint64(2), msg.Generation)
	assert.Contains(t, msg.Error, "hello.html")

	resp, err := http.Get("http://" + ln.Addr().String() + "/hello.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, _, err = conn.Read(dialCtx)
	assert.Error(t, err)
	assert.Equal(t, 0, srv.Clients())
}
