// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/alecthomas/binary"
	"github.com/cespare/xxhash"
	"github.com/dataence/cityhash"
	"github.com/spaolacci/murmur3"
	"leb.io/aeshash"
)

// Hash64 is a hash family over serialized keys. The family takes no
// seed of its own; the two bucket indexes are derived from one
// fingerprint by XORing the table seeds, so reseeding on resize remaps
// every element without touching the family.
type Hash64 func(b []byte) uint64

// Select a hash function by name.
func hashFamily(name string) (Hash64, error) {
	switch name {
	case "", "murmur3":
		return murmur3.Sum64, nil
	case "xxhash":
		return xxhash.Sum64, nil
	case "city":
		return func(b []byte) uint64 { return cityhash.CityHash64(b, uint32(len(b))) }, nil
	case "aes":
		return func(b []byte) uint64 { return aeshash.Hash(b, 0) }, nil
	default:
		return nil, fmt.Errorf("cuckooset: unknown hash family %q", name)
	}
}

// seedPair holds the two seeds that diversify the bucket indexes.
// Both are redrawn on every resize and are never equal.
type seedPair struct {
	s0, s1 uint64
}

func newSeedPair(r *rand.Rand) seedPair {
	s0 := r.Uint64()
	s1 := r.Uint64()
	for s1 == s0 {
		s1 = r.Uint64()
	}
	return seedPair{s0: s0, s1: s1}
}

var errKeyTooLarge = errors.New("cuckooset: serialized key exceeds 1024 bytes")

// keyBuf satisfies io.Writer and captures encoder output in a fixed
// buffer that can be handed to the hash without a copy.
type keyBuf struct {
	base [1024]byte
	i    int
}

func (b *keyBuf) Reset() {
	b.i = 0
}

func (b *keyBuf) Write(p []byte) (n int, err error) {
	n = copy(b.base[b.i:], p)
	b.i += n
	if n < len(p) {
		return n, errKeyTooLarge
	}
	return n, nil
}

func (b *keyBuf) bytes() []byte {
	return b.base[:b.i]
}

// keyEncoder pairs a reusable buffer with a binary encoder so keys
// without a numeric fast path can be serialized for hashing.
type keyEncoder struct {
	buf keyBuf
	enc *binary.Encoder
}

// hasher turns keys into 64 bit fingerprints. For a fixed hash family
// the fingerprint is a pure function of the key. Safe for concurrent
// use; the encoder fallback draws from a pool.
type hasher[T comparable] struct {
	sum      Hash64
	encoders sync.Pool
}

func newHasher[T comparable](cfg *config[T]) (*hasher[T], error) {
	sum := cfg.hash
	if sum == nil {
		var err error
		sum, err = hashFamily(cfg.hashName)
		if err != nil {
			return nil, err
		}
	}
	h := &hasher[T]{sum: sum}
	h.encoders.New = func() any {
		e := &keyEncoder{}
		e.enc = binary.NewEncoder(&e.buf)
		return e
	}
	return h, nil
}

// the following functions can be inlined.
func ui32tob(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func ui64tob(b []byte, v uint64) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	b[4], b[5], b[6], b[7] = byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56)
}

// fingerprint hashes a key. Common numeric and string keys are
// serialized in place; everything else goes through a pooled binary
// encoder.
func (h *hasher[T]) fingerprint(x T) uint64 {
	var b [8]byte
	switch k := any(x).(type) {
	case uint64:
		ui64tob(b[:], k)
		return h.sum(b[:])
	case int64:
		ui64tob(b[:], uint64(k))
		return h.sum(b[:])
	case int:
		ui64tob(b[:], uint64(k))
		return h.sum(b[:])
	case uint:
		ui64tob(b[:], uint64(k))
		return h.sum(b[:])
	case uintptr:
		ui64tob(b[:], uint64(k))
		return h.sum(b[:])
	case uint32:
		ui32tob(b[:4], k)
		return h.sum(b[:4])
	case int32:
		ui32tob(b[:4], uint32(k))
		return h.sum(b[:4])
	case string:
		return h.sum([]byte(k))
	default:
		e := h.encoders.Get().(*keyEncoder)
		e.buf.Reset()
		if err := e.enc.Encode(&x); err != nil {
			panic("cuckooset: encode key: " + err.Error())
		}
		fp := h.sum(e.buf.bytes())
		h.encoders.Put(e)
		return fp
	}
}
