// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import "sync/atomic"

// Counters collects operation statistics. Every variant embeds one and
// keeps it current; the concurrent variants update it atomically, so
// always read through Snapshot.
type Counters struct {
	Elements  atomic.Int64 // elements currently in the set
	Inserts   atomic.Int64 // successful adds
	Deletes   atomic.Int64 // successful removes
	Lookups   atomic.Int64 // contains calls
	Bumps     atomic.Int64 // evicted elements during displacement
	Relocates atomic.Int64 // elements moved by the relocation engine
	Resizes   atomic.Int64 // table doublings
	Fails     atomic.Int64 // relocation failures upgraded to a resize
	MaxChain  atomic.Int64 // longest displacement chain observed
}

// CounterSnapshot is a plain copy of the counters at one instant.
type CounterSnapshot struct {
	Elements  int64
	Inserts   int64
	Deletes   int64
	Lookups   int64
	Bumps     int64
	Relocates int64
	Resizes   int64
	Fails     int64
	MaxChain  int64
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Elements:  c.Elements.Load(),
		Inserts:   c.Inserts.Load(),
		Deletes:   c.Deletes.Load(),
		Lookups:   c.Lookups.Load(),
		Bumps:     c.Bumps.Load(),
		Relocates: c.Relocates.Load(),
		Resizes:   c.Resizes.Load(),
		Fails:     c.Fails.Load(),
		MaxChain:  c.MaxChain.Load(),
	}
}

func (c *Counters) noteChain(n int64) {
	for {
		cur := c.MaxChain.Load()
		if n <= cur || c.MaxChain.CompareAndSwap(cur, n) {
			return
		}
	}
}
