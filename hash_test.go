// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHasher[T comparable](t *testing.T, opts ...Option[T]) *hasher[T] {
	t.Helper()
	cfg := defaultConfig[T]()
	for _, o := range opts {
		o.apply(cfg)
	}
	h, err := newHasher(cfg)
	require.NoError(t, err)
	return h
}

func TestHashFamilies(t *testing.T) {
	for _, name := range []string{"", "murmur3", "xxhash", "city"} {
		sum, err := hashFamily(name)
		require.NoError(t, err, name)
		require.NotNil(t, sum, name)
		require.Equal(t, sum([]byte("abc")), sum([]byte("abc")), name)
	}
	_, err := hashFamily("fnv")
	require.Error(t, err)
}

func TestFingerprintDeterministic(t *testing.T) {
	h := newTestHasher[uint64](t)
	for i := uint64(0); i < 1000; i++ {
		require.Equal(t, h.fingerprint(i), h.fingerprint(i))
	}
	require.NotEqual(t, h.fingerprint(1), h.fingerprint(2))
}

func TestFingerprintFamiliesDiffer(t *testing.T) {
	m := newTestHasher[uint64](t, WithHashName[uint64]("murmur3"))
	x := newTestHasher[uint64](t, WithHashName[uint64]("xxhash"))
	differ := false
	for i := uint64(0); i < 16; i++ {
		if m.fingerprint(i) != x.fingerprint(i) {
			differ = true
			break
		}
	}
	require.True(t, differ)
}

func TestFingerprintStrings(t *testing.T) {
	h := newTestHasher[string](t)
	require.Equal(t, h.fingerprint("hello"), h.fingerprint("hello"))
	require.NotEqual(t, h.fingerprint("hello"), h.fingerprint("world"))
}

type point struct {
	X, Y int32
}

func TestFingerprintStructKeys(t *testing.T) {
	h := newTestHasher[point](t)
	a := point{X: 1, Y: 2}
	b := point{X: 1, Y: 2}
	c := point{X: 2, Y: 1}
	require.Equal(t, h.fingerprint(a), h.fingerprint(b))
	require.NotEqual(t, h.fingerprint(a), h.fingerprint(c))
}

func TestFingerprintConcurrent(t *testing.T) {
	h := newTestHasher[point](t)
	want := h.fingerprint(point{X: 7, Y: 9})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if h.fingerprint(point{X: 7, Y: 9}) != want {
					t.Error("fingerprint changed under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFingerprintCustomHash(t *testing.T) {
	h := newTestHasher[uint64](t, WithHash[uint64](func(b []byte) uint64 {
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}))
	require.Equal(t, uint64(0x0807060504030201), h.fingerprint(uint64(0x0102030405060708)))
}

func TestSeedPairDistinct(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		sd := newSeedPair(r)
		require.NotEqual(t, sd.s0, sd.s1)
	}
}
