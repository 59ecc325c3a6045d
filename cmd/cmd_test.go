package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotplate/internal/config"
	"github.com/conneroisu/hotplate/internal/logging"
	"github.com/conneroisu/hotplate/internal/testutils"
	"github.com/conneroisu/hotplate/pkg/hotplate"
)

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeCapture(t, ctx, args...)
	return out, err
}

// executeCapture runs the root command and returns stdout and stderr.
func executeCapture(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func siteDir(t *testing.T) string {
	t.Helper()
	return testutils.TempTree(t, map[string]string{
		"layout.html":     `{{ define "layout" }}<h1>{{ .title }}</h1>{{ end }}`,
		"pages/home.html": `{{ template "layout" . }}{{ .user.name | filter "upper" }} x{{ .count }}`,
		"notes.txt":       `{{ .title | filter "lower" }}`,
	})
}

func TestCheck(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("ok", func(t *testing.T) {
		dir := siteDir(t)
		out, err := execute(t, "check", "--root", dir)
		require.NoError(t, err)
		assert.Equal(t, "ok: 3 template(s) in "+dir+"\n", out)
	})

	t.Run("problems", func(t *testing.T) {
		dir := testutils.TempTree(t, map[string]string{
			"a.html": "{{ .x",
			"b.html": "fine\n{{ end }}",
		})
		out, err := execute(t, "check", "--root", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 problem(s)")

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "a.html:1"), lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "b.html:2"), lines[1])
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := execute(t, "check", "--root", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Equal(t, hotplate.CodeRootNotFound, hotplate.Code(err))
	})
}

func TestRender(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := siteDir(t)

	ctxFile := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(ctxFile, []byte("title: Home\nuser:\n  name: ada\ncount: 1\n"), 0o644))

	t.Run("stdout", func(t *testing.T) {
		out, err := execute(t, "render", "pages/home.html", "--root", dir,
			"--context", ctxFile, "--set", "count=2")
		require.NoError(t, err)
		assert.Equal(t, "<h1>Home</h1>ADA x2", out)
	})

	t.Run("set only", func(t *testing.T) {
		out, err := execute(t, "render", "notes.txt", "--root", dir, "-s", "title=HELLO")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("output file", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "home.html")
		out, err := execute(t, "render", "pages/home.html", "--root", dir,
			"-c", ctxFile, "-o", target)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "<h1>Home</h1>ADA x1", string(data))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := execute(t, "render", "pages/home.html", "--root", dir)
		require.Error(t, err)
		assert.True(t, hotplate.IsRenderError(err))

		_, err = execute(t, "render", "missing.html", "--root", dir)
		assert.Equal(t, hotplate.CodeTemplateNotFound, hotplate.Code(err))

		_, err = execute(t, "render", "notes.txt", "--root", dir, "--set", "novalue")
		assert.Error(t, err)

		_, err = execute(t, "render", "--root", dir)
		assert.Error(t, err)
	})
}

func TestList(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := siteDir(t)

	out, err := execute(t, "list", "--root", dir)
	require.NoError(t, err)
	assert.Equal(t, "layout.html\nnotes.txt\npages/home.html\n", out)

	out, err = execute(t, "list", "--root", dir, "--pattern", "*.txt", "--format", "json")
	require.NoError(t, err)
	var got listing
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"notes.txt"}, got.Templates)

	out, err = execute(t, "list", "--root", dir, "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- pages/home.html")

	_, err = execute(t, "list", "--root", dir, "-f", "csv")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutils.WriteTree(t, dir, map[string]string{
		".hotplate.yml": "server:\n  port: 9000\n  host: 0.0.0.0\ndevelopment:\n  debounce: 250ms\n",
	})

	out, err := execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 250*time.Millisecond, cfg.Development.Debounce)
	assert.Equal(t, "./templates", cfg.Templates.Root)

	t.Setenv("HOTPLATE_SERVER_PORT", "9100")
	out, err = execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 9100, cfg.Server.Port)

	out, err = execute(t, "config", "show", "--root", "site", "--debounce", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, "root: site")
	assert.Contains(t, out, "debounce: 1s")

	other := filepath.Join(t.TempDir(), "other.yml")
	require.NoError(t, os.WriteFile(other, []byte("log:\n  level: verbose\n"), 0o644))
	_, err = execute(t, "config", "show", "--config", other)
	require.Error(t, err)
	assert.Equal(t, hotplate.CodeConfigInvalid, hotplate.Code(err))
}

func TestConfigSchema(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "hotplate configuration", schema["title"])
	assert.Contains(t, schema["properties"], "templates")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "hotplate "), out)

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "go_version")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := siteDir(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := executeContext(t, ctx, "serve", "--root", dir, "--host", "127.0.0.1", "--port", "0")
		errCh <- err
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeHotReloadSetting(t *testing.T) {
	const watching = "watching templates for changes"

	tests := []struct {
		name  string
		env   string
		args  []string
		watch bool
	}{
		{name: "default off"},
		{name: "enabled by env", env: "true", watch: true},
		{name: "disabled by env", env: "false"},
		{name: "flag overrides env", env: "false", args: []string{"--watch"}, watch: true},
		{name: "flag disables", env: "true", args: []string{"--watch=false"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			if tt.env != "" {
				t.Setenv("HOTPLATE_DEVELOPMENT_HOT_RELOAD", tt.env)
			}
			dir := siteDir(t)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			args := append([]string{"serve", "--root", dir, "--host", "127.0.0.1", "--port", "0"}, tt.args...)
			_, logs, err := executeCapture(t, ctx, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.watch, strings.Contains(logs, watching), logs)
		})
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchTemplates(t *testing.T) {
	dir := siteDir(t)
	tmpl, err := openTemplates(testutils.TestConfig(dir), logging.Nop(), true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- watchTemplates(ctx, tmpl, &out, "text") }()

	require.Eventually(t, func() bool {
		testutils.WriteTree(t, dir, map[string]string{"notes.txt": "v2"})
		return strings.Contains(out.String(), "generation 2: 3 template(s)")
	}, 5*time.Second, 100*time.Millisecond)

	testutils.WriteTree(t, dir, map[string]string{"notes.txt": "{{ .x"})
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "reload failed, keeping generation")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, out.String(), "  notes.txt:1")

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "stopped after")
}

func TestWriteEventJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeEvent(&out, "json", hotplate.ReloadEvent{
		Generation: 4,
		Templates:  2,
		Duration:   3 * time.Millisecond,
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}))

	var rec eventRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, eventRecord{
		Generation: 4,
		Templates:  2,
		OK:         true,
		DurationMs: 3,
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, rec)
}
