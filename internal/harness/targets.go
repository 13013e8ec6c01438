package harness

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/speciate/internal/invoke"
)

// errNegative is returned by the checked target.
var errNegative = errors.New("negative input")

// targets are the built-in target functions.
var targets = map[string]any{
	"format3": func(prefix string, n int32, x int64) string {
		return fmt.Sprintf("%s-%d-%d", prefix, n, x)
	},
	"sum4": func(a, b, c, d int32) int64 {
		return int64(a) + int64(b) + int64(c) + int64(d)
	},
	"sum16": func(a0, a1, a2, a3, a4, a5, a6, a7, a8, a9, a10, a11, a12, a13, a14, a15 int32) int64 {
		var s int64
		for _, v := range []int32{a0, a1, a2, a3, a4, a5, a6, a7, a8, a9, a10, a11, a12, a13, a14, a15} {
			s += int64(v)
		}
		return s
	},
	"concat": func(a, b string) string {
		return a + b
	},
	"select": func(first bool, a, b any) any {
		if first {
			return a
		}
		return b
	},
	"scale": func(x float64, k float32, n int) float64 {
		return x * float64(k) * float64(n)
	},
	"checked": func(n int32) (int32, error) {
		if n < 0 {
			return 0, errNegative
		}
		return n * 2, nil
	},
	"discard": func(string, int64) {},
}

// Targets returns the names of the built-in targets.
func Targets() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewTarget returns a direct handle for a built-in target.
func NewTarget(rt *invoke.Runtime, name string) (*invoke.BoundHandle, error) {
	fn, ok := targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", name)
	}
	return rt.FromFunc(fn)
}
