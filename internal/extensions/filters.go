package extensions

import (
	stderrors "errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cast"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/hotplate/internal/registry"
)

// ugcPolicy is safe for concurrent use once built.
var ugcPolicy = bluemonday.UGCPolicy()

func arg(args []any, i int, name string) (any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument %q", name)
	}
	return args[i], nil
}

func upper(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func lower(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func title(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	// A Caser carries state and must not be shared across goroutines.
	return cases.Title(language.Und).String(s), nil
}

func capitalize(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return s, nil
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:]), nil
}

// trim strips surrounding whitespace, or the characters of an optional cutset.
func trim(value any, args ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return strings.TrimSpace(s), nil
	}
	cutset, err := cast.ToStringE(args[0])
	if err != nil {
		return nil, err
	}
	return strings.Trim(s, cutset), nil
}

// truncate shortens to a rune count, appending an ellipsis (or the optional
// second argument) when anything was cut.
func truncate(value any, args ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	n := 255
	if len(args) > 0 {
		if n, err = cast.ToIntE(args[0]); err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative length %d", n)
		}
	}
	end := "…"
	if len(args) > 1 {
		if end, err = cast.ToStringE(args[1]); err != nil {
			return nil, err
		}
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s, nil
	}
	return string(runes[:n]) + end, nil
}

func defaultFilter(value any, args ...any) (any, error) {
	fallback, err := arg(args, 0, "value")
	if err != nil {
		return nil, err
	}
	if isEmpty(value) {
		return fallback, nil
	}
	return value, nil
}

func length(value any, _ ...any) (any, error) {
	if value == nil || registry.IsUndefined(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return v.Len(), nil
	default:
		return nil, fmt.Errorf("length of %T is undefined", value)
	}
}

func join(value any, args ...any) (any, error) {
	sep := ""
	if len(args) > 0 {
		var err error
		if sep, err = cast.ToStringE(args[0]); err != nil {
			return nil, err
		}
	}
	items, err := toSlice(value)
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, err := cast.ToStringE(item)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

func replace(value any, args ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	from, err := arg(args, 0, "from")
	if err != nil {
		return nil, err
	}
	to, err := arg(args, 1, "to")
	if err != nil {
		return nil, err
	}
	return strings.ReplaceAll(s, cast.ToString(from), cast.ToString(to)), nil
}

// striptags drops every tag and keeps the text, with runs of whitespace
// collapsed to single spaces.
func striptags(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if stderrors.Is(z.Err(), io.EOF) {
				return strings.Join(strings.Fields(b.String()), " "), nil
			}
			return nil, z.Err()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

// sanitize keeps user-generated-content safe markup and strips the rest.
// The result is trusted by escaping templates.
func sanitize(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return htmltemplate.HTML(ugcPolicy.Sanitize(s)), nil
}

// safe marks a value as trusted markup so escaping templates emit it as is.
func safe(value any, _ ...any) (any, error) {
	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return htmltemplate.HTML(s), nil
}

func toSlice(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	if items, ok := value.([]any); ok {
		return items, nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, v.Len())
		for i := range items {
			items[i] = v.Index(i).Interface()
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%T is not a sequence", value)
	}
}

func isEmpty(value any) bool {
	if value == nil || registry.IsUndefined(value) {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
