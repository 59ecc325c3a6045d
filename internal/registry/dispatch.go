package registry

import (
	stderrors "errors"
	"reflect"
	"strings"
	"text/template"

	"github.com/conneroisu/hotplate/internal/errors"
)

// ErrUnknownExtension is wrapped when a template names an extension that is
// not registered in the corresponding table.
var ErrUnknownExtension = stderrors.New("not registered")

// ErrMissingValue is wrapped when a filter or tester is called without the
// value it should operate on.
var ErrMissingValue = stderrors.New("no value to operate on")

// dispatchFuncs are the only names compiled into a set besides get. They
// resolve the extension tables at render time, so registrations take effect
// without a recompile and the three namespaces never collide.
//
// They read the tables without locking: templates only execute inside
// Render, which already holds the read lock.
func (r *Registry) dispatchFuncs() template.FuncMap {
	return template.FuncMap{
		"fn":     r.callFunction,
		"filter": r.applyFilter,
		"is":     r.applyTester,
		"get":    get,
	}
}

// get looks up a dotted key in data without failing on absent keys, which
// plain field access does under missingkey=error:
//
//	{{ if is "defined" (get "user.name" .) }}
//	{{ get "title" . | filter "default" "Untitled" }}
func get(key string, data any) any {
	current := data
	for _, part := range strings.Split(key, ".") {
		v := reflect.ValueOf(current)
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return Undefined{Key: key}
			}
			v = v.Elem()
		}

		switch v.Kind() {
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return Undefined{Key: key}
			}
			elem := v.MapIndex(reflect.ValueOf(part).Convert(v.Type().Key()))
			if !elem.IsValid() {
				return Undefined{Key: key}
			}
			current = elem.Interface()
		case reflect.Struct:
			field := v.FieldByName(part)
			if !field.IsValid() || !field.CanInterface() {
				return Undefined{Key: key}
			}
			current = field.Interface()
		default:
			return Undefined{Key: key}
		}
	}
	return current
}

func (r *Registry) callFunction(name string, args ...any) (any, error) {
	fn, ok := r.functions[name]
	if !ok {
		return nil, &errors.ExtensionError{Kind: "function", Name: name, Err: ErrUnknownExtension}
	}
	out, err := fn(args...)
	if err != nil {
		return nil, &errors.ExtensionError{Kind: "function", Name: name, Err: err}
	}
	return out, nil
}

// applyFilter takes the filtered value last so it composes with pipelines:
// {{ .title | filter "truncate" 10 }} calls truncate(.title, 10).
func (r *Registry) applyFilter(name string, args ...any) (any, error) {
	fn, ok := r.filters[name]
	if !ok {
		return nil, &errors.ExtensionError{Kind: "filter", Name: name, Err: ErrUnknownExtension}
	}
	if len(args) == 0 {
		return nil, &errors.ExtensionError{Kind: "filter", Name: name, Err: ErrMissingValue}
	}
	value, params := args[len(args)-1], args[:len(args)-1]
	out, err := fn(value, params...)
	if err != nil {
		return nil, &errors.ExtensionError{Kind: "filter", Name: name, Err: err}
	}
	return out, nil
}

// applyTester follows the same argument order as applyFilter.
func (r *Registry) applyTester(name string, args ...any) (bool, error) {
	fn, ok := r.testers[name]
	if !ok {
		return false, &errors.ExtensionError{Kind: "tester", Name: name, Err: ErrUnknownExtension}
	}
	if len(args) == 0 {
		return false, &errors.ExtensionError{Kind: "tester", Name: name, Err: ErrMissingValue}
	}
	value, params := args[len(args)-1], args[:len(args)-1]
	ok, err := fn(value, params...)
	if err != nil {
		return false, &errors.ExtensionError{Kind: "tester", Name: name, Err: err}
	}
	return ok, nil
}
