// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PhasedSet is the probe set variant: each bucket holds up to
// probeSize elements in insertion order, with a soft threshold below
// probeSize. An add that pushes a bucket past the threshold triggers
// the relocation engine, which moves the bucket's oldest element to
// its alternate bucket, chasing overflow along a chain; if relocation
// fails, the tables grow. Safe for concurrent use.
type PhasedSet[T comparable] struct {
	Counters
	hasher    *hasher[T]
	limit     int
	probeSize int
	threshold int
	log       *logrus.Logger
	seed      int64
	popSeq    atomic.Int64

	// mu is the resize barrier. The fields below it are read under
	// mu.RLock and replaced only under mu.Lock.
	mu             sync.RWMutex
	n              int
	sd             seedPair
	t0, t1         []probeBucket[T]
	locks0, locks1 stripe
	rnd            *rand.Rand // seed draws; exclusive section only
}

// NewPhased creates an empty probe set variant with n buckets per
// table, the given relocation bound, and per-bucket capacity
// probeSize with soft threshold (1 <= threshold < probeSize).
func NewPhased[T comparable](n, limit, probeSize, threshold int, opts ...Option[T]) (*PhasedSet[T], error) {
	if n < 1 {
		return nil, ErrCapacity
	}
	if limit < 1 {
		return nil, ErrLimit
	}
	if threshold < 1 || threshold >= probeSize {
		return nil, ErrProbe
	}
	cfg := defaultConfig[T]()
	for _, o := range opts {
		o.apply(cfg)
	}
	h, err := newHasher(cfg)
	if err != nil {
		return nil, err
	}
	p := &PhasedSet[T]{
		hasher:    h,
		limit:     limit,
		probeSize: probeSize,
		threshold: threshold,
		log:       cfg.logger,
		n:         n,
		t0:        make([]probeBucket[T], n),
		t1:        make([]probeBucket[T], n),
		locks0:    newStripe(n),
		locks1:    newStripe(n),
		rnd:       cfg.rng(),
	}
	p.seed = cfg.seed
	p.sd = newSeedPair(p.rnd)
	return p, nil
}

func (p *PhasedSet[T]) indexes(fp uint64) (uint64, uint64) {
	return (fp ^ p.sd.s0) % uint64(p.n), (fp ^ p.sd.s1) % uint64(p.n)
}

func (p *PhasedSet[T]) bucketAt(table int, i uint64) *probeBucket[T] {
	if table == 0 {
		return &p.t0[i]
	}
	return &p.t1[i]
}

func (p *PhasedSet[T]) lockAt(table int, i uint64) *stripeLock {
	if table == 0 {
		return &p.locks0[i]
	}
	return &p.locks1[i]
}

// Contains reports whether x is in the set.
func (p *PhasedSet[T]) Contains(x T) bool {
	p.Lookups.Add(1)
	fp := p.hasher.fingerprint(x)

	p.mu.RLock()
	defer p.mu.RUnlock()
	i0, i1 := p.indexes(fp)
	lockPair(p.locks0, p.locks1, i0, i1)
	defer unlockPair(p.locks0, p.locks1, i0, i1)
	return p.t0[i0].contains(x) || p.t1[i1].contains(x)
}

// Add inserts x and reports whether it was absent. Placement prefers
// the emptier side of the threshold; landing between the threshold and
// the probe size schedules a relocation of that bucket, and a bucket
// pair that is full on both sides forces a resize and a retry.
func (p *PhasedSet[T]) Add(x T) bool {
	fp := p.hasher.fingerprint(x)
	for {
		p.mu.RLock()
		capacity := p.n
		i0, i1 := p.indexes(fp)
		lockPair(p.locks0, p.locks1, i0, i1)
		b0, b1 := &p.t0[i0], &p.t1[i1]
		if b0.contains(x) || b1.contains(x) {
			unlockPair(p.locks0, p.locks1, i0, i1)
			p.mu.RUnlock()
			return false
		}
		relocTable, relocIndex := -1, uint64(0)
		placed := true
		switch {
		case b0.size() < p.threshold:
			b0.push(x)
		case b1.size() < p.threshold:
			b1.push(x)
		case b0.size() < p.probeSize:
			b0.push(x)
			relocTable, relocIndex = 0, i0
		case b1.size() < p.probeSize:
			b1.push(x)
			relocTable, relocIndex = 1, i1
		default:
			placed = false
		}
		unlockPair(p.locks0, p.locks1, i0, i1)
		p.mu.RUnlock()

		if !placed {
			p.resize(capacity)
			continue
		}
		p.Inserts.Add(1)
		p.Elements.Add(1)
		if relocTable >= 0 && !p.relocate(relocTable, relocIndex, capacity) {
			p.Fails.Add(1)
			p.log.WithFields(logrus.Fields{"table": relocTable, "index": relocIndex}).Debug("cuckooset: relocation failed")
			p.resize(capacity)
		}
		return true
	}
}

// Remove deletes x and reports whether it was present. T0 is checked
// first.
func (p *PhasedSet[T]) Remove(x T) bool {
	fp := p.hasher.fingerprint(x)

	p.mu.RLock()
	i0, i1 := p.indexes(fp)
	lockPair(p.locks0, p.locks1, i0, i1)
	removed := p.t0[i0].remove(x) || p.t1[i1].remove(x)
	unlockPair(p.locks0, p.locks1, i0, i1)
	p.mu.RUnlock()

	if removed {
		p.Deletes.Add(1)
		p.Elements.Add(-1)
	}
	return removed
}

// Size returns a best-effort element count; it is exact when the set
// is quiescent.
func (p *PhasedSet[T]) Size() int {
	return int(p.Elements.Load())
}

// Capacity returns the current bucket count per table. It only grows.
func (p *PhasedSet[T]) Capacity() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.n
}

// Populate inserts n distinct elements drawn from gen, retrying each
// draw until it is accepted. Each call uses its own random stream, so
// concurrent Populate calls are safe.
func (p *PhasedSet[T]) Populate(n int, gen func(*rand.Rand) T) {
	r := rand.New(rand.NewSource(p.seed ^ p.popSeq.Add(1)<<20))
	for i := 0; i < n; i++ {
		for !p.Add(gen(r)) {
		}
	}
}

// relocate tries to shrink an over-threshold bucket by moving its
// oldest element to the alternate bucket, for at most limit rounds.
// Overflow moves along the chain: when the destination ends up between
// the threshold and the probe size it becomes the next source. Every
// lock taken in a round is dropped before the next one, and a victim
// that another thread removed in the window between the peek and the
// lock acquisition is simply skipped. The capacity observed by the
// triggering add is passed in; if it changed, the tables were rebuilt
// and the bucket bound already holds again.
func (p *PhasedSet[T]) relocate(table int, index uint64, capacity int) bool {
	i, hi := table, index
	for round := 0; round < p.limit; round++ {
		p.mu.RLock()
		if p.n != capacity {
			p.mu.RUnlock()
			return true
		}

		// Peek at the oldest element under the source bucket's own lock.
		srcLock := p.lockAt(i, hi)
		srcLock.Lock()
		src := p.bucketAt(i, hi)
		if src.size() < p.threshold {
			srcLock.Unlock()
			p.mu.RUnlock()
			return true
		}
		y := src.oldest()
		srcLock.Unlock()

		// Now take both of y's bucket locks in canonical order. The
		// barrier is held in shared mode throughout the round, so the
		// seeds cannot change between the peek and here; y's home on
		// side i is still hi.
		fp := p.hasher.fingerprint(y)
		h0, h1 := p.indexes(fp)
		lockPair(p.locks0, p.locks1, h0, h1)
		src = p.bucketAt(i, hi)
		hj := h1
		if i == 1 {
			hj = h0
		}
		dst := p.bucketAt(1-i, hj)

		if !src.remove(y) {
			// y was removed or relocated by another thread.
			over := src.size() >= p.threshold
			unlockPair(p.locks0, p.locks1, h0, h1)
			p.mu.RUnlock()
			if over {
				continue
			}
			return true
		}
		switch {
		case dst.size() < p.threshold:
			dst.push(y)
			p.Relocates.Add(1)
			unlockPair(p.locks0, p.locks1, h0, h1)
			p.mu.RUnlock()
			return true
		case dst.size() < p.probeSize:
			dst.push(y)
			p.Relocates.Add(1)
			unlockPair(p.locks0, p.locks1, h0, h1)
			p.mu.RUnlock()
			i, hi = 1-i, hj
		default:
			src.push(y)
			unlockPair(p.locks0, p.locks1, h0, h1)
			p.mu.RUnlock()
			return false
		}
	}
	return false
}

// resize doubles the tables unless another thread already did so after
// the caller observed the given capacity.
func (p *PhasedSet[T]) resize(capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.n != capacity {
		return
	}
	p.resizeLocked()
}

// resizeLocked doubles the tables under the exclusive barrier: fresh
// buckets, fresh lock stripes, fresh seeds, then reinsertion of every
// element through the sequential placement path. Nested resizes are
// legal; the bucket count strictly grows.
func (p *PhasedSet[T]) resizeLocked() {
	old0, old1 := p.t0, p.t1
	oldN := p.n

	p.n *= 2
	p.t0 = make([]probeBucket[T], p.n)
	p.t1 = make([]probeBucket[T], p.n)
	p.locks0 = newStripe(p.n)
	p.locks1 = newStripe(p.n)
	p.sd = newSeedPair(p.rnd)
	p.Resizes.Add(1)
	p.log.WithFields(logrus.Fields{"from": oldN, "to": p.n}).Debug("cuckooset: phased resize")

	for b := range old0 {
		for _, x := range old0[b].items {
			p.insertLocked(x)
		}
	}
	for b := range old1 {
		for _, x := range old1[b].items {
			p.insertLocked(x)
		}
	}
}

// insertLocked places x while the exclusive barrier is held, following
// the same placement ladder as Add and growing the tables as often as
// needed. Also the reinsertion path of resizeLocked, so it must not
// touch the element counters.
func (p *PhasedSet[T]) insertLocked(x T) {
	fp := p.hasher.fingerprint(x)
	for {
		i0, i1 := p.indexes(fp)
		b0, b1 := &p.t0[i0], &p.t1[i1]
		switch {
		case b0.size() < p.threshold:
			b0.push(x)
			return
		case b1.size() < p.threshold:
			b1.push(x)
			return
		case b0.size() < p.probeSize:
			b0.push(x)
			if !p.relocateLocked(0, i0) {
				p.Fails.Add(1)
				p.log.WithFields(logrus.Fields{"table": 0, "index": i0}).Debug("cuckooset: relocation failed")
				p.resizeLocked()
			}
			return
		case b1.size() < p.probeSize:
			b1.push(x)
			if !p.relocateLocked(1, i1) {
				p.Fails.Add(1)
				p.log.WithFields(logrus.Fields{"table": 1, "index": i1}).Debug("cuckooset: relocation failed")
				p.resizeLocked()
			}
			return
		default:
			p.resizeLocked()
		}
	}
}

// relocateLocked is the relocation chain of the exclusive section; no
// bucket locks are needed and no other thread can interfere.
func (p *PhasedSet[T]) relocateLocked(table int, index uint64) bool {
	i, hi := table, index
	for round := 0; round < p.limit; round++ {
		src := p.bucketAt(i, hi)
		if src.size() < p.threshold {
			return true
		}
		y := src.oldest()
		fp := p.hasher.fingerprint(y)
		h0, h1 := p.indexes(fp)
		hj := h1
		if i == 1 {
			hj = h0
		}
		dst := p.bucketAt(1-i, hj)
		src.remove(y)
		switch {
		case dst.size() < p.threshold:
			dst.push(y)
			p.Relocates.Add(1)
			return true
		case dst.size() < p.probeSize:
			dst.push(y)
			p.Relocates.Add(1)
			i, hi = 1-i, hj
		default:
			src.push(y)
			return false
		}
	}
	return false
}
