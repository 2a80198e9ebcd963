// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

// Package workload drives concurrent op mixes against a set and
// reconciles the outcome. It backs both the stress tests and the
// benchmark binary in example/.
package workload

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Set is the interface the drivers exercise.
type Set interface {
	Contains(key uint64) bool
	Add(key uint64) bool
	Remove(key uint64) bool
	Size() int
}

// Mix is the fraction of adds and removes in a run; the remainder are
// contains calls.
type Mix struct {
	Add    float64
	Remove float64
}

// Config describes one concurrent run.
type Config struct {
	Threads  int
	Ops      int // total across all threads
	Mix      Mix
	KeyRange uint64 // keys are drawn uniformly from [0, KeyRange)
	Seed     int64
}

// Report is the outcome of a run. A correct set always has
// Expected == Actual once the run has drained.
type Report struct {
	Ops      int
	Expected int // size before + successful adds - successful removes
	Actual   int // Size() after the run
	Elapsed  time.Duration
}

// Run fans the op mix out over cfg.Threads goroutines. Each goroutine
// draws keys from its own random stream and tracks its own size delta;
// the deltas reconcile against the set's final size.
func Run(s Set, cfg Config) Report {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	if cfg.KeyRange < 1 {
		cfg.KeyRange = 1
	}
	perThread := cfg.Ops / threads
	before := s.Size()
	deltas := make([]int64, threads)

	start := time.Now()
	var g errgroup.Group
	for t := 0; t < threads; t++ {
		t := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))
			var delta int64
			for i := 0; i < perThread; i++ {
				choice := rng.Float64()
				key := uint64(rng.Int63n(int64(cfg.KeyRange)))
				switch {
				case choice < cfg.Mix.Add:
					if s.Add(key) {
						delta++
					}
				case choice < cfg.Mix.Add+cfg.Mix.Remove:
					if s.Remove(key) {
						delta--
					}
				default:
					s.Contains(key)
				}
			}
			atomic.StoreInt64(&deltas[t], delta)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	expected := before
	for t := range deltas {
		expected += int(atomic.LoadInt64(&deltas[t]))
	}
	return Report{
		Ops:      perThread * threads,
		Expected: expected,
		Actual:   s.Size(),
		Elapsed:  elapsed,
	}
}

// Verify fills the set with the dense key range [base, base+n), checks
// every key is reported present, removes them all, and checks they are
// gone. The first discrepancy is returned as an error.
func Verify(s Set, base uint64, n int) error {
	for i := 0; i < n; i++ {
		if !s.Add(base + uint64(i)) {
			return fmt.Errorf("workload: add %d reported duplicate", base+uint64(i))
		}
	}
	for i := 0; i < n; i++ {
		if !s.Contains(base + uint64(i)) {
			return fmt.Errorf("workload: %d missing after fill", base+uint64(i))
		}
	}
	for i := 0; i < n; i++ {
		if !s.Remove(base + uint64(i)) {
			return fmt.Errorf("workload: remove %d reported absent", base+uint64(i))
		}
	}
	for i := 0; i < n; i++ {
		if s.Contains(base + uint64(i)) {
			return fmt.Errorf("workload: %d present after removal", base+uint64(i))
		}
	}
	return nil
}
