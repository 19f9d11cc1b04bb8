// Package parallel runs independent tasks on a bounded number of goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a requested degree of parallelism: 0 or less means one
// worker per available CPU.
func Workers(threads int) int {
	if threads <= 0 {
		return runtime.NumCPU()
	}
	return threads
}

// For calls fn(i) for every i in [0, n) using at most Workers(threads)
// goroutines, and returns the first error encountered. With a single worker
// the calls run in order on the calling goroutine. fn must only write to
// state owned by index i; results then do not depend on scheduling.
func For(n, threads int, fn func(i int) error) error {
	workers := Workers(threads)
	if workers == 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}
