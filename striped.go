// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// slot is one table entry of the striped variant: empty or one element.
type slot[T comparable] struct {
	val  T
	full bool
}

// StripedSet is the fine grained locking variant: one element per
// slot, one lock per slot, and a readers-writer barrier that suspends
// all operations during a resize. Safe for concurrent use.
//
// Operations take the barrier in shared mode and then the element's
// two bucket locks in canonical order. When both home slots are taken,
// Add escalates: it drops its locks, reacquires the barrier
// exclusively and restarts the displacement chain with the whole table
// to itself, resizing if the chain exhausts the bound.
type StripedSet[T comparable] struct {
	Counters
	hasher *hasher[T]
	limit  int
	log    *logrus.Logger
	seed   int64
	popSeq atomic.Int64

	// mu is the resize barrier. The fields below it are read under
	// mu.RLock and replaced only under mu.Lock.
	mu             sync.RWMutex
	n              int
	sd             seedPair
	t0, t1         []slot[T]
	locks0, locks1 stripe
	rnd            *rand.Rand // seed draws; exclusive section only
}

// NewStriped creates an empty concurrent set with n buckets per table
// and the given displacement bound.
func NewStriped[T comparable](n, limit int, opts ...Option[T]) (*StripedSet[T], error) {
	if n < 1 {
		return nil, ErrCapacity
	}
	if limit < 1 {
		return nil, ErrLimit
	}
	cfg := defaultConfig[T]()
	for _, o := range opts {
		o.apply(cfg)
	}
	h, err := newHasher(cfg)
	if err != nil {
		return nil, err
	}
	s := &StripedSet[T]{
		hasher: h,
		limit:  limit,
		log:    cfg.logger,
		n:      n,
		t0:     make([]slot[T], n),
		t1:     make([]slot[T], n),
		locks0: newStripe(n),
		locks1: newStripe(n),
		rnd:    cfg.rng(),
	}
	s.seed = cfg.seed
	s.sd = newSeedPair(s.rnd)
	return s, nil
}

func (s *StripedSet[T]) indexes(fp uint64) (uint64, uint64) {
	return (fp ^ s.sd.s0) % uint64(s.n), (fp ^ s.sd.s1) % uint64(s.n)
}

// Contains reports whether x is in the set.
func (s *StripedSet[T]) Contains(x T) bool {
	s.Lookups.Add(1)
	fp := s.hasher.fingerprint(x)

	s.mu.RLock()
	defer s.mu.RUnlock()
	i0, i1 := s.indexes(fp)
	lockPair(s.locks0, s.locks1, i0, i1)
	defer unlockPair(s.locks0, s.locks1, i0, i1)
	return (s.t0[i0].full && s.t0[i0].val == x) || (s.t1[i1].full && s.t1[i1].val == x)
}

// Add inserts x and reports whether it was absent. The common case
// places x into an empty home slot under the bucket locks; otherwise
// the displacement chain runs under the exclusive barrier and may
// resize.
func (s *StripedSet[T]) Add(x T) bool {
	fp := s.hasher.fingerprint(x)

	s.mu.RLock()
	i0, i1 := s.indexes(fp)
	lockPair(s.locks0, s.locks1, i0, i1)
	if (s.t0[i0].full && s.t0[i0].val == x) || (s.t1[i1].full && s.t1[i1].val == x) {
		unlockPair(s.locks0, s.locks1, i0, i1)
		s.mu.RUnlock()
		return false
	}
	if !s.t0[i0].full {
		s.t0[i0] = slot[T]{val: x, full: true}
		unlockPair(s.locks0, s.locks1, i0, i1)
		s.mu.RUnlock()
		s.Inserts.Add(1)
		s.Elements.Add(1)
		return true
	}
	if !s.t1[i1].full {
		s.t1[i1] = slot[T]{val: x, full: true}
		unlockPair(s.locks0, s.locks1, i0, i1)
		s.mu.RUnlock()
		s.Inserts.Add(1)
		s.Elements.Add(1)
		return true
	}
	unlockPair(s.locks0, s.locks1, i0, i1)
	s.mu.RUnlock()

	if !s.addSlow(x, fp) {
		return false
	}
	s.Inserts.Add(1)
	s.Elements.Add(1)
	return true
}

// addSlow restarts the insertion under the exclusive barrier. Another
// thread may have inserted x, or freed one of its home slots, between
// the fast path's release and our acquisition. The first case is caught
// by rechecking presence; in the second the chain simply runs on the
// current tables, placing x at once if its T0 home is now empty.
func (s *StripedSet[T]) addSlow(x T, fp uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i0, i1 := s.indexes(fp)
	if (s.t0[i0].full && s.t0[i0].val == x) || (s.t1[i1].full && s.t1[i1].val == x) {
		return false
	}
	s.insertLocked(x)
	return true
}

// Remove deletes x and reports whether it was present. T0 is checked
// first.
func (s *StripedSet[T]) Remove(x T) bool {
	fp := s.hasher.fingerprint(x)

	s.mu.RLock()
	i0, i1 := s.indexes(fp)
	lockPair(s.locks0, s.locks1, i0, i1)
	removed := false
	if s.t0[i0].full && s.t0[i0].val == x {
		s.t0[i0] = slot[T]{}
		removed = true
	} else if s.t1[i1].full && s.t1[i1].val == x {
		s.t1[i1] = slot[T]{}
		removed = true
	}
	unlockPair(s.locks0, s.locks1, i0, i1)
	s.mu.RUnlock()

	if removed {
		s.Deletes.Add(1)
		s.Elements.Add(-1)
	}
	return removed
}

// Size returns a best-effort element count; it is exact when the set
// is quiescent.
func (s *StripedSet[T]) Size() int {
	return int(s.Elements.Load())
}

// Capacity returns the current bucket count per table. It only grows.
func (s *StripedSet[T]) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Populate inserts n distinct elements drawn from gen, retrying each
// draw until it is accepted. Each call uses its own random stream, so
// concurrent Populate calls are safe.
func (s *StripedSet[T]) Populate(n int, gen func(*rand.Rand) T) {
	r := rand.New(rand.NewSource(s.seed ^ s.popSeq.Add(1)<<20))
	for i := 0; i < n; i++ {
		for !s.Add(gen(r)) {
		}
	}
}

// insertLocked places x while the exclusive barrier is held, growing
// the tables as often as needed. Also the reinsertion path of
// resizeLocked, so it must not touch the element counters.
func (s *StripedSet[T]) insertLocked(x T) {
	cur := x
	for {
		placed, carry, chain := s.displaceLocked(cur)
		s.noteChain(chain)
		if placed {
			return
		}
		s.resizeLocked()
		cur = carry
	}
}

func (s *StripedSet[T]) swapLocked(table int, i uint64, x T) (T, bool) {
	t := s.t0
	if table == 1 {
		t = s.t1
	}
	old := t[i]
	t[i] = slot[T]{val: x, full: true}
	return old.val, old.full
}

func (s *StripedSet[T]) displaceLocked(x T) (placed bool, carry T, chain int64) {
	cur := x
	for i := 0; i < s.limit; i++ {
		i0 := (s.hasher.fingerprint(cur) ^ s.sd.s0) % uint64(s.n)
		old, had := s.swapLocked(0, i0, cur)
		if !had {
			return true, cur, chain
		}
		chain++
		s.Bumps.Add(1)
		i1 := (s.hasher.fingerprint(old) ^ s.sd.s1) % uint64(s.n)
		old, had = s.swapLocked(1, i1, old)
		if !had {
			return true, cur, chain
		}
		chain++
		s.Bumps.Add(1)
		cur = old
	}
	return false, cur, chain
}

// resizeLocked doubles the tables under the exclusive barrier: fresh
// tables, fresh lock stripes, fresh seeds, then reinsertion of every
// element through the displacement path. Nested resizes are legal; the
// bucket count strictly grows.
func (s *StripedSet[T]) resizeLocked() {
	old0, old1 := s.t0, s.t1
	oldN := s.n

	s.n *= 2
	s.t0 = make([]slot[T], s.n)
	s.t1 = make([]slot[T], s.n)
	s.locks0 = newStripe(s.n)
	s.locks1 = newStripe(s.n)
	s.sd = newSeedPair(s.rnd)
	s.Resizes.Add(1)
	s.log.WithFields(logrus.Fields{"from": oldN, "to": s.n}).Debug("cuckooset: striped resize")

	for i := range old0 {
		if old0[i].full {
			s.insertLocked(old0[i].val)
		}
	}
	for i := range old1 {
		if old1[i].full {
			s.insertLocked(old1[i].val)
		}
	}
}
