// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

// Package cuckooset implements cuckoo hash sets of comparable
// elements. Every element has two candidate buckets given by seed
// mixed hashes of its fingerprint; insertion displaces incumbents
// along a chain until each element rests in one of its two homes, or a
// displacement bound forces the tables to double and reseed.
//
// Three variants share the same operations and hash machinery:
//
//   - Set is the sequential baseline with one element per slot. It is
//     not safe for concurrent use.
//   - StripedSet adds a per-bucket lock stripe and a table-wide resize
//     barrier and is safe for concurrent use.
//   - PhasedSet stores a bounded probe set per bucket and rebalances
//     overfull buckets by relocating their oldest element; it is also
//     safe for concurrent use.
package cuckooset

import (
	"errors"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/willf/bitset"
)

var (
	// ErrCapacity is returned when the initial bucket count is below one.
	ErrCapacity = errors.New("cuckooset: initial capacity must be at least 1")
	// ErrLimit is returned when the displacement bound is below one.
	ErrLimit = errors.New("cuckooset: displacement limit must be at least 1")
	// ErrProbe is returned when the probe set parameters are
	// inconsistent; the threshold must satisfy 1 <= threshold < probeSize.
	ErrProbe = errors.New("cuckooset: need 1 <= threshold < probe size")
)

// Set is the sequential baseline: two parallel tables with one element
// per slot, occupancy tracked in bitmaps. Not safe for concurrent use;
// wrap it or use StripedSet / PhasedSet instead.
type Set[T comparable] struct {
	Counters
	hasher     *hasher[T]
	limit      int
	n          int // buckets per table
	sd         seedPair
	t0, t1     []T
	occ0, occ1 *bitset.BitSet
	rnd        *rand.Rand
	log        *logrus.Logger
}

// New creates an empty set with n buckets per table and the given
// displacement bound.
func New[T comparable](n, limit int, opts ...Option[T]) (*Set[T], error) {
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
	s := &Set[T]{
		hasher: h,
		limit:  limit,
		n:      n,
		t0:     make([]T, n),
		t1:     make([]T, n),
		occ0:   bitset.New(uint(n)),
		occ1:   bitset.New(uint(n)),
		rnd:    cfg.rng(),
		log:    cfg.logger,
	}
	s.sd = newSeedPair(s.rnd)
	return s, nil
}

func (s *Set[T]) indexes(fp uint64) (uint64, uint64) {
	return (fp ^ s.sd.s0) % uint64(s.n), (fp ^ s.sd.s1) % uint64(s.n)
}

// Contains reports whether x is in the set.
func (s *Set[T]) Contains(x T) bool {
	s.Lookups.Add(1)
	return s.contains(x)
}

func (s *Set[T]) contains(x T) bool {
	i0, i1 := s.indexes(s.hasher.fingerprint(x))
	if s.occ0.Test(uint(i0)) && s.t0[i0] == x {
		return true
	}
	return s.occ1.Test(uint(i1)) && s.t1[i1] == x
}

// Add inserts x and reports whether it was absent. Insertion may
// trigger one or more resizes.
func (s *Set[T]) Add(x T) bool {
	if s.contains(x) {
		return false
	}
	s.insert(x)
	s.Inserts.Add(1)
	s.Elements.Add(1)
	return true
}

// Remove deletes x and reports whether it was present. T0 is checked
// first.
func (s *Set[T]) Remove(x T) bool {
	i0, i1 := s.indexes(s.hasher.fingerprint(x))
	var zero T
	if s.occ0.Test(uint(i0)) && s.t0[i0] == x {
		s.t0[i0] = zero
		s.occ0.Clear(uint(i0))
	} else if s.occ1.Test(uint(i1)) && s.t1[i1] == x {
		s.t1[i1] = zero
		s.occ1.Clear(uint(i1))
	} else {
		return false
	}
	s.Deletes.Add(1)
	s.Elements.Add(-1)
	return true
}

// Size returns the number of occupied slots.
func (s *Set[T]) Size() int {
	return int(s.occ0.Count() + s.occ1.Count())
}

// Capacity returns the current bucket count per table. It only grows.
func (s *Set[T]) Capacity() int {
	return s.n
}

// Populate inserts n distinct elements drawn from gen, retrying each
// draw until it is accepted.
func (s *Set[T]) Populate(n int, gen func(*rand.Rand) T) {
	for i := 0; i < n; i++ {
		for !s.Add(gen(s.rnd)) {
		}
	}
}

// insert places x, growing the tables as often as needed. The caller
// has already established that x is absent.
func (s *Set[T]) insert(x T) {
	cur := x
	for {
		placed, carry, chain := s.displace(cur)
		s.noteChain(chain)
		if placed {
			return
		}
		s.resize()
		cur = carry
	}
}

// swap stores x into the given slot and returns the incumbent, if any.
func (s *Set[T]) swap(table int, i uint64, x T) (T, bool) {
	t, occ := s.t0, s.occ0
	if table == 1 {
		t, occ = s.t1, s.occ1
	}
	old := t[i]
	had := occ.Test(uint(i))
	t[i] = x
	occ.Set(uint(i))
	return old, had
}

// displace runs the displacement chain for x: swap into the T0 home,
// chase the evicted element into its alternate table, and keep
// alternating with the carry until a swap lands in an empty slot or
// the bound is hit. On failure the final carry is returned so the
// caller can retry it after a resize.
func (s *Set[T]) displace(x T) (placed bool, carry T, chain int64) {
	cur := x
	for i := 0; i < s.limit; i++ {
		i0 := (s.hasher.fingerprint(cur) ^ s.sd.s0) % uint64(s.n)
		old, had := s.swap(0, i0, cur)
		if !had {
			return true, cur, chain
		}
		chain++
		s.Bumps.Add(1)
		i1 := (s.hasher.fingerprint(old) ^ s.sd.s1) % uint64(s.n)
		old, had = s.swap(1, i1, old)
		if !had {
			return true, cur, chain
		}
		chain++
		s.Bumps.Add(1)
		cur = old
	}
	return false, cur, chain
}

// resize doubles the bucket count, draws fresh seeds and reinserts
// every element. Reinsertion runs the normal displacement path and may
// grow the tables again.
func (s *Set[T]) resize() {
	old0, old1 := s.t0, s.t1
	occ0, occ1 := s.occ0, s.occ1
	oldN := s.n

	s.n *= 2
	s.t0 = make([]T, s.n)
	s.t1 = make([]T, s.n)
	s.occ0 = bitset.New(uint(s.n))
	s.occ1 = bitset.New(uint(s.n))
	s.sd = newSeedPair(s.rnd)
	s.Resizes.Add(1)
	s.log.WithFields(logrus.Fields{"from": oldN, "to": s.n}).Debug("cuckooset: resize")

	for i := 0; i < oldN; i++ {
		if occ0.Test(uint(i)) {
			s.insert(old0[i])
		}
	}
	for i := 0; i < oldN; i++ {
		if occ1.Test(uint(i)) {
			s.insert(old1[i])
		}
	}
}
