// Package parallel runs independent per-column work on a bounded set of goroutines.
package parallel

import (
	"fmt"
	"runtime"
	"sync"

	lperrors "github.com/YuminosukeSato/listingprep/pkg/errors"
)

// Workers resolves a requested worker count: values <= 0 mean one worker per CPU.
func Workers(requested int) int {
	if requested <= 0 {
		return runtime.NumCPU()
	}
	return requested
}

// Parallelize divides items into contiguous ranges, one per worker, and
// executes fn for each range (start, end) concurrently.
func Parallelize(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := Workers(workers)
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold. Below it fn runs once over the whole range.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, workers, fn)
}

// ForEach calls fn(i) for every i in [0, items) across workers and returns
// the combined errors in index order. A panic inside fn is converted into a
// PanicError for that index.
func ForEach(items, workers int, fn func(i int) error) error {
	errs := make([]error, items)
	Parallelize(items, workers, func(start, end int) {
		for i := start; i < end; i++ {
			idx := i
			errs[idx] = lperrors.SafeExecute(fmt.Sprintf("parallel.ForEach[%d]", idx), func() error {
				return fn(idx)
			})
		}
	})

	var combined error
	for _, err := range errs {
		if err != nil {
			combined = lperrors.Combine(combined, err)
		}
	}
	return combined
}
