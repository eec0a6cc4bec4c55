//go:build property

package watcher

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("a burst becomes one sorted batch with one event per path", prop.ForAll(
		func(picks []int) bool {
			d := NewDebouncer(time.Hour)
			unique := map[string]bool{}
			for _, p := range picks {
				path := fmt.Sprintf("content/file%d.html", p)
				unique[path] = true
				d.add(ChangeEvent{Path: path})
			}
			d.stop()
			d.flush()

			if len(unique) == 0 {
				return len(d.output) == 0
			}
			events := <-d.output
			if len(events) != len(unique) {
				return false
			}
			return sort.SliceIsSorted(events, func(i, j int) bool {
				return events[i].Path < events[j].Path
			})
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
