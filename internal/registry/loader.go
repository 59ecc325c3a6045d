package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/conneroisu/hotplate/internal/errors"
)

// source is one template file read from disk.
type source struct {
	name    string // slash-separated path relative to the root
	path    string
	content string
}

// ignoredFile reports editor droppings and dotfiles that never hold templates.
func ignoredFile(base string) bool {
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx")
}

func matchesAny(patterns []string, base string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// discover walks root and returns every template file path, sorted.
func discover(fs afero.Fs, root string, patterns []string) ([]string, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, errors.NewCompileError(errors.ErrCodeRootNotFound, "template root is not accessible", err).
			WithLocation(root, 0, 0)
	}
	if !info.IsDir() {
		return nil, errors.NewCompileError(errors.ErrCodeRootNotFound, "template root is not a directory", nil).
			WithLocation(root, 0, 0)
	}

	var paths []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || ignoredFile(info.Name()) {
			return nil
		}
		if matchesAny(patterns, info.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, compileFailure(err, "walking template root")
	}

	sort.Strings(paths)
	return paths, nil
}

// loadSources reads every template under root. Files are read concurrently;
// parsing happens afterwards on a single goroutine because a template set is
// not safe for concurrent mutation.
func loadSources(fs afero.Fs, root string, patterns []string) ([]source, error) {
	paths, err := discover(fs, root, patterns)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[source]().
		WithErrors().
		WithMaxGoroutines(runtime.GOMAXPROCS(0))

	for _, path := range paths {
		p.Go(func() (source, error) {
			content, err := afero.ReadFile(fs, path)
			if err != nil {
				return source{}, errors.NewIOError(errors.ErrCodeFileRead, "cannot read template", err).
					WithLocation(path, 0, 0)
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return source{}, err
			}
			return source{
				name:    filepath.ToSlash(rel),
				path:    path,
				content: string(content),
			}, nil
		})
	}

	sources, err := p.Wait()
	if err != nil {
		return nil, compileFailure(err, "reading templates")
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].name < sources[j].name
	})
	return sources, nil
}

// compileFailure reports an I/O problem hit while (re)compiling. It stays
// recoverable so a reload can keep the last-good set.
func compileFailure(err error, message string) error {
	he := errors.Wrap(err, errors.ErrorTypeCompile, errors.ErrCodeFileRead, message)
	he.Recoverable = true
	return he
}
