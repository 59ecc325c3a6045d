package extensions

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

const maxRange = 100_000

// now returns the current local time, or UTC when called as {{ fn "now" true }}.
func now(args ...any) (any, error) {
	t := time.Now()
	if len(args) > 0 {
		utc, err := cast.ToBoolE(args[0])
		if err != nil {
			return nil, err
		}
		if utc {
			t = t.UTC()
		}
	}
	return t, nil
}

// rangeFn mirrors range(end), range(start, end) and range(start, end, step).
func rangeFn(args ...any) (any, error) {
	ints := make([]int, len(args))
	for i, a := range args {
		n, err := cast.ToIntE(a)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}

	start, end, step := 0, 0, 1
	switch len(ints) {
	case 1:
		end = ints[0]
	case 2:
		start, end = ints[0], ints[1]
	case 3:
		start, end, step = ints[0], ints[1], ints[2]
	default:
		return nil, fmt.Errorf("range takes 1 to 3 arguments, got %d", len(ints))
	}
	if step == 0 {
		return nil, fmt.Errorf("range step must not be zero")
	}

	out := []int{}
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		if len(out) == maxRange {
			return nil, fmt.Errorf("range exceeds %d items", maxRange)
		}
		out = append(out, i)
	}
	return out, nil
}

func dict(args ...any) (any, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("dict needs key/value pairs, got %d arguments", len(args))
	}
	out := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, err := cast.ToStringE(args[i])
		if err != nil {
			return nil, err
		}
		out[key] = args[i+1]
	}
	return out, nil
}

func list(args ...any) (any, error) {
	out := make([]any, len(args))
	copy(out, args)
	return out, nil
}
