// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestStripedBasic(t *testing.T) {
	s, err := NewStriped[uint64](8, 100)
	require.NoError(t, err)

	require.True(t, s.Add(5))
	require.False(t, s.Add(5))
	require.True(t, s.Contains(5))
	require.True(t, s.Remove(5))
	require.False(t, s.Contains(5))
	require.Equal(t, 0, s.Size())
}

func TestStripedGrowth(t *testing.T) {
	s, err := NewStriped[uint64](2, 3)
	require.NoError(t, err)
	for i := uint64(0); i < 8; i++ {
		require.True(t, s.Add(i))
	}
	require.GreaterOrEqual(t, s.Capacity(), 4)
	require.Equal(t, 8, s.Size())
	for i := uint64(0); i < 8; i++ {
		require.True(t, s.Contains(i))
	}
}

func TestStripedRoundTrip(t *testing.T) {
	s, err := NewStriped[uint64](8, 100)
	require.NoError(t, err)
	require.True(t, s.Add(9))
	require.True(t, s.Remove(9))
	require.False(t, s.Remove(9))
	require.Equal(t, 0, s.Size())
}

func TestStripedConcurrentDisjointAdds(t *testing.T) {
	s, err := NewStriped[uint64](8, 100)
	require.NoError(t, err)

	const perThread = 2000
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			base := uint64(w * perThread)
			for i := uint64(0); i < perThread; i++ {
				if !s.Add(base + i) {
					t.Errorf("duplicate reported for fresh key %d", base+i)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 8*perThread, s.Size())
	for i := uint64(0); i < 8*perThread; i++ {
		require.True(t, s.Contains(i))
	}
}

func TestStripedConcurrentSameKeys(t *testing.T) {
	s, err := NewStriped[uint64](4, 100)
	require.NoError(t, err)

	const keys = 100
	adds := make([]int, 8)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := uint64(0); i < keys; i++ {
				if s.Add(i) {
					adds[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	// Every key was accepted exactly once across all threads.
	total := 0
	for _, n := range adds {
		total += n
	}
	require.Equal(t, keys, total)
	require.Equal(t, keys, s.Size())
}

func TestStripedConcurrentRemove(t *testing.T) {
	s, err := NewStriped[uint64](16, 100)
	require.NoError(t, err)
	const keys = 4000
	for i := uint64(0); i < keys; i++ {
		require.True(t, s.Add(i))
	}

	removes := make([]int, 8)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := uint64(0); i < keys; i++ {
				if s.Remove(i) {
					removes[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range removes {
		total += n
	}
	require.Equal(t, keys, total)
	require.Equal(t, 0, s.Size())
}

func TestStripedResizeUnderContention(t *testing.T) {
	s, err := NewStriped[uint64](2, 4)
	require.NoError(t, err)

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		g.Go(func() error {
			base := uint64(w * 500)
			for i := uint64(0); i < 500; i++ {
				s.Add(base + i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 2000, s.Size())
	require.GreaterOrEqual(t, s.Capacity(), 4)
	for i := uint64(0); i < 2000; i++ {
		require.True(t, s.Contains(i))
	}
}

func TestStripedMixedWorkload(t *testing.T) {
	s, err := NewStriped[uint64](64, 100)
	require.NoError(t, err)

	deltas := make([]int, 8)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w) + 100))
			for i := 0; i < 5000; i++ {
				k := uint64(rng.Int63n(512))
				switch rng.Intn(3) {
				case 0:
					if s.Add(k) {
						deltas[w]++
					}
				case 1:
					if s.Remove(k) {
						deltas[w]--
					}
				default:
					s.Contains(k)
				}
			}
		}(w)
	}
	wg.Wait()

	expected := 0
	for _, d := range deltas {
		expected += d
	}
	require.Equal(t, expected, s.Size())
}

func TestStripedPopulate(t *testing.T) {
	s, err := NewStriped[uint64](16, 100)
	require.NoError(t, err)
	gen := func(r *rand.Rand) uint64 { return uint64(r.Int63n(1 << 20)) }
	s.Populate(500, gen)
	require.Equal(t, 500, s.Size())
}

func TestStripedValidation(t *testing.T) {
	_, err := NewStriped[uint64](0, 10)
	require.ErrorIs(t, err, ErrCapacity)
	_, err = NewStriped[uint64](8, 0)
	require.ErrorIs(t, err, ErrLimit)
}
