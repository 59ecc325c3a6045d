//go:build property

package watcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates batching invariants of the debouncer.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("a burst yields one batch with one event per path", prop.ForAll(
		func(paths []int) bool {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.stop()

			distinct := make(map[string]struct{})
			for _, p := range paths {
				name := fmt.Sprintf("file_%d.html", p)
				distinct[name] = struct{}{}
				d.add(ChangeEvent{Path: name})
			}

			select {
			case batch := <-d.Output():
				if len(batch) != len(distinct) {
					return false
				}
				for i := 1; i < len(batch); i++ {
					if batch[i-1].Path >= batch[i].Path {
						return false
					}
				}
			case <-time.After(time.Second):
				return false
			}

			select {
			case <-d.Output():
				return false
			case <-time.After(40 * time.Millisecond):
				return true
			}
		},
		gen.SliceOfN(25, gen.IntRange(0, 9)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}
