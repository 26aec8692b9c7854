package encode

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/listingprep/core/frame"
)

// filled returns the entries of col forward-filled then back-filled. A nil
// entry remains only when the column has no present value at all.
func filled(col *frame.Column) []any {
	n := col.Len()
	out := make([]any, n)
	var last any
	for i := 0; i < n; i++ {
		if v := col.Value(i); v != nil {
			last = v
		}
		out[i] = last
	}
	var next any
	for i := n - 1; i >= 0; i-- {
		if out[i] == nil {
			out[i] = next
		} else {
			next = out[i]
		}
	}
	return out
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// mode returns the most frequent string form among entries accepted by keep.
// Ties go to the lexically smallest value.
func mode(values []any, keep func(any) bool) (string, bool) {
	counts := make(map[string]int)
	for _, v := range values {
		if v == nil || !keep(v) {
			continue
		}
		counts[str(v)]++
	}
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}

func notIntegerLike(v any) bool { return !frame.IsIntegerLike(v) }

func always(any) bool { return true }
