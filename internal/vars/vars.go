// Package vars builds render contexts from context files and command-line
// assignments.
package vars

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hotplate/internal/errors"
)

// Load reads a context file from the operating system.
func Load(path string) (map[string]any, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads a context file, choosing the decoder by extension: .json,
// .yaml, .yml or .toml.
func LoadFs(fs afero.Fs, path string) (map[string]any, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileRead, "failed to read context file").
			WithLocation(path, 0, 0)
	}

	out := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &out)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	case ".toml":
		err = toml.Unmarshal(data, &out)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported context file type %q", ext)).WithLocation(path, 0, 0)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to decode context file").
			WithLocation(path, 0, 0)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ParseAssignments turns key=value pairs into a context. Dotted keys nest
// (user.name=ada). Values that parse as JSON keep their type; anything else
// is a string.
func ParseAssignments(assignments []string) (map[string]any, error) {
	out := map[string]any{}
	for _, a := range assignments {
		key, raw, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid assignment %q, want key=value", a))
		}

		var value any = raw
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			value = decoded
		}

		if err := set(out, strings.Split(key, "."), value); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid assignment %q: %v", a, err))
		}
	}
	return out, nil
}

func set(m map[string]any, path []string, value any) error {
	for i, part := range path[:len(path)-1] {
		next, exists := m[part]
		if !exists {
			child := map[string]any{}
			m[part] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a map", strings.Join(path[:i+1], "."))
		}
		m = child
	}
	m[path[len(path)-1]] = value
	return nil
}

// Merge deep-merges the given contexts into a new map. Later maps win;
// nested maps are merged rather than replaced.
func Merge(maps ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, m := range maps {
		mergeInto(out, m)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcChild, srcIsMap := v.(map[string]any)
		dstChild, dstIsMap := dst[k].(map[string]any)
		switch {
		case srcIsMap && dstIsMap:
			mergeInto(dstChild, srcChild)
		case srcIsMap:
			copied := map[string]any{}
			mergeInto(copied, srcChild)
			dst[k] = copied
		default:
			dst[k] = v
		}
	}
}
