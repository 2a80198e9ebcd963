// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"math/rand"
	"testing"
)

var benchKeys []uint64

func keysForBench(n int) []uint64 {
	if len(benchKeys) >= n {
		return benchKeys[:n]
	}
	r := rand.New(rand.NewSource(1))
	benchKeys = make([]uint64, n)
	for i := range benchKeys {
		benchKeys[i] = r.Uint64()
	}
	return benchKeys
}

func BenchmarkSetAdd(b *testing.B) {
	keys := keysForBench(b.N)
	s, _ := New[uint64](1024, 100)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Add(keys[i])
	}
}

func BenchmarkSetContains(b *testing.B) {
	keys := keysForBench(b.N)
	s, _ := New[uint64](1024, 100)
	for _, k := range keys {
		s.Add(k)
	}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Contains(keys[i])
	}
}

func BenchmarkStripedAdd(b *testing.B) {
	keys := keysForBench(b.N)
	s, _ := NewStriped[uint64](1024, 100)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Add(keys[i])
	}
}

func BenchmarkStripedContainsParallel(b *testing.B) {
	keys := keysForBench(1 << 16)
	s, _ := NewStriped[uint64](1024, 100)
	for _, k := range keys {
		s.Add(k)
	}
	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Contains(keys[i&(1<<16-1)])
			i++
		}
	})
}

func BenchmarkPhasedAdd(b *testing.B) {
	keys := keysForBench(b.N)
	s, _ := NewPhased[uint64](1024, 100, 4, 2)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Add(keys[i])
	}
}

func BenchmarkPhasedMixedParallel(b *testing.B) {
	s, _ := NewPhased[uint64](1024, 100, 4, 2)
	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			k := uint64(rng.Int63n(4096))
			switch rng.Intn(3) {
			case 0:
				s.Add(k)
			case 1:
				s.Remove(k)
			default:
				s.Contains(k)
			}
		}
	})
}

func BenchmarkGoMapAdd(b *testing.B) {
	keys := keysForBench(b.N)
	m := make(map[uint64]struct{})
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m[keys[i]] = struct{}{}
	}
}

func BenchmarkGoMapContains(b *testing.B) {
	keys := keysForBench(b.N)
	m := make(map[uint64]struct{})
	for _, k := range keys {
		m[k] = struct{}{}
	}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = m[keys[i]]
	}
}
