// Package testutils holds fixtures shared by the package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotplate/internal/config"
)

// WriteTree writes files, keyed by slash-separated path, under dir on the
// operating system. Intermediate directories are created.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// TempTree is WriteTree into a fresh t.TempDir. It returns the directory.
func TempTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteTree(t, dir, files)
	return dir
}

// MemTree returns an in-memory filesystem holding files under root.
func MemTree(t *testing.T, root string, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(root, 0o755))
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, fs.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0o644))
	}
	return fs
}

// TestConfig returns a valid configuration rooted at dir with a short
// debounce.
func TestConfig(dir string) *config.Config {
	return &config.Config{
		Templates:   config.TemplatesConfig{Root: dir, Builtins: true},
		Development: config.DevelopmentConfig{HotReload: true, Debounce: 20 * time.Millisecond},
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 0, LiveReload: true},
		Log:         config.LogConfig{Level: "info", Format: "text"},
	}
}
