// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

// probeBucket is one bucket of the phased variant: a bounded list that
// preserves insertion order. The front is the oldest element, which is
// the one the relocation engine moves first. Capacity is enforced by
// the callers, never here.
type probeBucket[T comparable] struct {
	items []T
}

func (b *probeBucket[T]) size() int {
	return len(b.items)
}

func (b *probeBucket[T]) contains(x T) bool {
	for _, y := range b.items {
		if y == x {
			return true
		}
	}
	return false
}

func (b *probeBucket[T]) push(x T) {
	b.items = append(b.items, x)
}

func (b *probeBucket[T]) oldest() T {
	return b.items[0]
}

// remove deletes the first occurrence of x, keeping the order of the
// remaining elements, and reports whether x was found.
func (b *probeBucket[T]) remove(x T) bool {
	for i, y := range b.items {
		if y == x {
			var zero T
			copy(b.items[i:], b.items[i+1:])
			b.items[len(b.items)-1] = zero
			b.items = b.items[:len(b.items)-1]
			return true
		}
	}
	return false
}
