package hotplate

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotplate/internal/testutils"
)

func memTemplates(t *testing.T, files map[string]string, opts ...Option) (*Templates, afero.Fs) {
	t.Helper()
	fs := testutils.MemTree(t, "/site", files)
	tmpl, err := New("/site", append([]Option{WithFs(fs)}, opts...)...)
	require.NoError(t, err)
	return tmpl, fs
}

func writeTemplate(t *testing.T, root, name, content string) {
	t.Helper()
	testutils.WriteTree(t, root, map[string]string{name: content})
}

func TestNewAndRender(t *testing.T) {
	tmpl, _ := memTemplates(t, map[string]string{
		"layout.html":     `{{ define "layout" }}<h1>{{ .title | filter "title" }}</h1>{{ end }}`,
		"pages/home.html": `{{ template "layout" . }}{{ range fn "range" 2 }}.{{ end }}`,
	})

	assert.Equal(t, []string{"layout.html", "pages/home.html"}, tmpl.Names())
	assert.True(t, tmpl.Has("pages/home.html"))
	assert.Equal(t, "/site", tmpl.Root())
	assert.Equal(t, uint64(1), tmpl.Generation())

	out, err := tmpl.Render("pages/home.html", Context{"title": "hello there"})
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello There</h1>..", out)
}

func TestNewReportsCompileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/site/a.html", []byte("{{ .x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/site/b.html", []byte("ok\n{{ end }}"), 0o644))

	_, err := New("/site", WithFs(fs))
	require.Error(t, err)
	assert.True(t, IsCompileError(err))

	problems := Problems(err)
	require.Len(t, problems, 2)
	assert.Equal(t, "a.html", problems[0].File)
	assert.Equal(t, "b.html", problems[1].File)
	assert.Equal(t, 2, problems[1].Line)
}

func TestNewReportsUndefinedReferences(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/site/b.html", []byte(`{{ template "nope" }}`), 0o644))

	_, err := New("/site", WithFs(fs))
	require.Error(t, err)

	problems := Problems(err)
	require.Len(t, problems, 1)
	assert.Equal(t, "b.html", problems[0].File)
	assert.Contains(t, problems[0].Message, "nope")
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew("/does/not/exist", WithFs(afero.NewMemMapFs()))
	})
	assert.NotPanics(t, func() {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/site", 0o755))
		MustNew("/site", WithFs(fs))
	})
}

func TestRenderErrors(t *testing.T) {
	tmpl, _ := memTemplates(t, map[string]string{
		"page.html": `{{ .user.name }}`,
	})

	_, err := tmpl.Render("missing.html", nil)
	assert.True(t, IsRenderError(err))
	assert.Equal(t, CodeTemplateNotFound, Code(err))

	_, err = tmpl.Render("page.html", Context{})
	assert.True(t, IsRenderError(err))
	assert.Equal(t, CodeMissingVariable, Code(err))

	var he *Error
	require.True(t, stderrors.As(err, &he))
	assert.Equal(t, "user", he.Variable)
	assert.Equal(t, "page.html", he.Template)
}

func TestWithoutBuiltins(t *testing.T) {
	tmpl, _ := memTemplates(t, map[string]string{
		"page.html": `{{ .name | filter "upper" }}`,
	}, WithBuiltins(false))

	_, err := tmpl.Render("page.html", Context{"name": "x"})
	require.Error(t, err)
	assert.Equal(t, CodeExtensionFailed, Code(err))

	var ext *ExtensionError
	require.True(t, stderrors.As(err, &ext))
	assert.Equal(t, "filter", ext.Kind)
	assert.Equal(t, "upper", ext.Name)
}

func TestCloneSharesEverything(t *testing.T) {
	tmpl, fs := memTemplates(t, map[string]string{
		"page.html": `{{ .v | filter "shout" }}`,
	})

	clone := tmpl.Clone()
	assert.Equal(t, tmpl.Names(), clone.Names())

	// Extensions registered through either handle are visible to both.
	clone.RegisterFilter("shout", func(value any, _ ...any) (any, error) {
		return fmt.Sprintf("%v!", value), nil
	})
	a, err := tmpl.Render("page.html", Context{"v": "hi"})
	require.NoError(t, err)
	b, err := clone.Render("page.html", Context{"v": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi!", a)
	assert.Equal(t, a, b)

	// Cloning never reads the disk again.
	require.NoError(t, fs.RemoveAll("/site"))
	again := clone.Clone()
	c, err := again.Render("page.html", Context{"v": "hi"})
	require.NoError(t, err)
	assert.Equal(t, a, c)

	// Reloads through one handle are seen by all.
	require.NoError(t, fs.MkdirAll("/site", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/site/page.html", []byte("v2"), 0o644))
	require.NoError(t, again.Reload())
	out, err := tmpl.Render("page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", out)
	assert.Equal(t, uint64(2), clone.Generation())
}

func TestRegistrationPrecedence(t *testing.T) {
	tmpl, _ := memTemplates(t, map[string]string{
		"page.html": `{{ .v | filter "upper" }}`,
	})

	out, err := tmpl.Render("page.html", Context{"v": "a"})
	require.NoError(t, err)
	assert.Equal(t, "A", out)

	tmpl.RegisterFilter("upper", func(value any, _ ...any) (any, error) { return "first", nil })
	tmpl.RegisterFilter("upper", func(value any, _ ...any) (any, error) { return "second", nil })

	out, err = tmpl.Render("page.html", Context{"v": "a"})
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestReloadFailureKeepsPreviousTemplates(t *testing.T) {
	tmpl, fs := memTemplates(t, map[string]string{"page.html": "good"})
	events := tmpl.Subscribe()
	defer tmpl.Unsubscribe(events)

	require.NoError(t, afero.WriteFile(fs, "/site/page.html", []byte("{{ if }}"), 0o644))
	err := tmpl.Reload()
	require.Error(t, err)
	assert.True(t, IsCompileError(err))

	out, err := tmpl.Render("page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "good", out)
	assert.Equal(t, uint64(1), tmpl.Generation())

	select {
	case ev := <-events:
		assert.False(t, ev.Succeeded())
		assert.Error(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("no reload event")
	}
}

func TestWatchDisabledReturnsInactiveSession(t *testing.T) {
	tmpl, _ := memTemplates(t, map[string]string{"page.html": "x"})
	assert.False(t, tmpl.HotReload())

	session, err := tmpl.Watch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.False(t, session.Active())
	assert.Equal(t, WatchStopped, session.State())
	assert.Equal(t, WatchStats{}, session.Stats())

	select {
	case <-session.Done():
	default:
		t.Fatal("inactive session should be done")
	}
	session.Stop()
}

func TestWatchSetupFailure(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "page.html", "x")

	tmpl, err := New(root, WithHotReload(true))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	session, err := tmpl.Watch(context.Background())
	assert.Nil(t, session)
	require.Error(t, err)
	assert.True(t, IsWatchSetupError(err))
	assert.Equal(t, CodeWatchSetup, Code(err))

	// The templates stay usable.
	out, err := tmpl.Render("page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestWatchPicksUpEdits(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "page.html", "v1")

	tmpl, err := New(root, WithHotReload(true), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session, err := tmpl.Watch(ctx)
	require.NoError(t, err)
	defer session.Stop()
	assert.True(t, session.Active())

	render := func() string {
		out, err := tmpl.Render("page.html", nil)
		if err != nil {
			return err.Error()
		}
		return out
	}

	writeTemplate(t, root, "page.html", "v2")
	require.Eventually(t, func() bool { return render() == "v2" }, 3*time.Second, 10*time.Millisecond)

	// A broken save is logged and counted; the session keeps watching.
	writeTemplate(t, root, "page.html", "{{ .oops")
	require.Eventually(t, func() bool { return session.Stats().Failures >= 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "v2", render())
	assert.True(t, session.Active())

	writeTemplate(t, root, "page.html", "v3")
	require.Eventually(t, func() bool { return render() == "v3" }, 3*time.Second, 10*time.Millisecond)

	// New files in new directories are picked up too.
	writeTemplate(t, root, "blog/post.html", "post")
	require.Eventually(t, func() bool { return tmpl.Has("blog/post.html") }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on cancel")
	}
	assert.False(t, session.Active())
}

func TestConcurrentRenderDuringReloadAndRegistration(t *testing.T) {
	tmpl, fs := memTemplates(t, map[string]string{
		"page.html": `{{ .n | filter "tag" }}`,
	})
	tmpl.RegisterFilter("tag", func(value any, _ ...any) (any, error) { return "a", nil })

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := tmpl.Clone()
			for {
				select {
				case <-stop:
					return
				default:
				}
				out, err := h.Render("page.html", Context{"n": 1})
				if err != nil {
					errs <- err
					return
				}
				if !strings.HasPrefix(out, "a") && !strings.HasPrefix(out, "b") && out != "static" {
					errs <- fmt.Errorf("torn render %q", out)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			tmpl.RegisterFilter("tag", func(value any, _ ...any) (any, error) { return "b", nil })
		} else {
			tmpl.RegisterFilter("tag", func(value any, _ ...any) (any, error) { return "a", nil })
		}
		content := `{{ .n | filter "tag" }}`
		if i == 19 {
			content = "static"
		}
		require.NoError(t, afero.WriteFile(fs, "/site/page.html", []byte(content), 0o644))
		require.NoError(t, tmpl.Reload())
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, uint64(21), tmpl.Generation())
}

func TestCustomTesterSeesUndefined(t *testing.T) {
	tmpl, _ := memTemplates(t, map[string]string{
		"page.txt": `{{ if is "missing" (get "draft" .) }}published{{ else }}draft{{ end }}`,
	})
	tmpl.RegisterTester("missing", func(value any, _ ...any) (bool, error) {
		return IsUndefined(value), nil
	})

	out, err := tmpl.Render("page.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "published", out)

	out, err = tmpl.Render("page.txt", Context{"draft": true})
	require.NoError(t, err)
	assert.Equal(t, "draft", out)
}
