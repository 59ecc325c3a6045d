package extensions

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"github.com/conneroisu/hotplate/internal/registry"
)

func defined(value any, _ ...any) (bool, error) {
	return value != nil && !registry.IsUndefined(value), nil
}

func none(value any, _ ...any) (bool, error) {
	if value == nil {
		return true, nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil(), nil
	}
	return false, nil
}

func empty(value any, _ ...any) (bool, error) {
	return isEmpty(value), nil
}

func even(value any, _ ...any) (bool, error) {
	n, err := cast.ToInt64E(value)
	if err != nil {
		return false, err
	}
	return n%2 == 0, nil
}

func odd(value any, _ ...any) (bool, error) {
	n, err := cast.ToInt64E(value)
	if err != nil {
		return false, err
	}
	return n%2 != 0, nil
}

func divisibleBy(value any, args ...any) (bool, error) {
	raw, err := arg(args, 0, "divisor")
	if err != nil {
		return false, err
	}
	divisor, err := cast.ToInt64E(raw)
	if err != nil {
		return false, err
	}
	if divisor == 0 {
		return false, fmt.Errorf("division by zero")
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		return false, err
	}
	return n%divisor == 0, nil
}

func isString(value any, _ ...any) (bool, error) {
	_, ok := value.(string)
	return ok, nil
}

func isNumber(value any, _ ...any) (bool, error) {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true, nil
	}
	return false, nil
}

func startingWith(value any, args ...any) (bool, error) {
	prefix, err := arg(args, 0, "prefix")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(cast.ToString(value), cast.ToString(prefix)), nil
}

func endingWith(value any, args ...any) (bool, error) {
	suffix, err := arg(args, 0, "suffix")
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(cast.ToString(value), cast.ToString(suffix)), nil
}

// containing checks substrings, sequence members and map keys.
func containing(value any, args ...any) (bool, error) {
	needle, err := arg(args, 0, "needle")
	if err != nil {
		return false, err
	}
	if s, ok := value.(string); ok {
		return strings.Contains(s, cast.ToString(needle)), nil
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if reflect.DeepEqual(v.Index(i).Interface(), needle) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		key := reflect.ValueOf(needle)
		if !key.IsValid() || !key.Type().AssignableTo(v.Type().Key()) {
			return false, nil
		}
		return v.MapIndex(key).IsValid(), nil
	default:
		return false, fmt.Errorf("cannot test membership in %T", value)
	}
}
