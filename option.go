// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

package cuckooset

import (
	"io"
	"math/rand"

	"github.com/sirupsen/logrus"
)

type config[T comparable] struct {
	hashName string
	hash     Hash64
	seed     int64
	hasSeed  bool
	logger   *logrus.Logger
}

func defaultConfig[T comparable]() *config[T] {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &config[T]{logger: l}
}

// rng builds the random source used for seed draws (and, in the
// baseline Set, for Populate's key draws). Without WithSeed every set
// gets an independent source.
func (c *config[T]) rng() *rand.Rand {
	if !c.hasSeed {
		c.seed = rand.Int63()
	}
	return rand.New(rand.NewSource(c.seed))
}

// Option configures a set while it is being created.
type Option[T comparable] interface {
	apply(c *config[T])
}

type hashNameOption[T comparable] struct {
	name string
}

func (o hashNameOption[T]) apply(c *config[T]) { c.hashName = o.name }

// WithHashName selects a built-in hash family: "murmur3" (the
// default), "xxhash", "city" or "aes".
func WithHashName[T comparable](name string) Option[T] {
	return hashNameOption[T]{name: name}
}

type hashOption[T comparable] struct {
	hash Hash64
}

func (o hashOption[T]) apply(c *config[T]) { c.hash = o.hash }

// WithHash injects a hash family directly, overriding WithHashName.
// Alternate families can be supplied this way for testing.
func WithHash[T comparable](h Hash64) Option[T] {
	return hashOption[T]{hash: h}
}

type seedOption[T comparable] struct {
	seed int64
}

func (o seedOption[T]) apply(c *config[T]) {
	c.seed = o.seed
	c.hasSeed = true
}

// WithSeed fixes the random source used for hash seeds, making the
// bucket layout reproducible.
func WithSeed[T comparable](seed int64) Option[T] {
	return seedOption[T]{seed: seed}
}

type loggerOption[T comparable] struct {
	logger *logrus.Logger
}

func (o loggerOption[T]) apply(c *config[T]) { c.logger = o.logger }

// WithLogger routes debug output (resizes, relocation failures) to the
// given logger. By default output is discarded.
func WithLogger[T comparable](l *logrus.Logger) Option[T] {
	return loggerOption[T]{logger: l}
}
