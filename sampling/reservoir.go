// Package sampling implements reservoir sampling for row extraction.
//
// A reservoir without a size bound keeps every item in arrival order, which is
// how remote datasets are materialized in full.
package sampling

import (
	"math/rand/v2"

	"github.com/sevigo/gwdata/schema"
)

// Reservoir keeps a uniform random sample of at most size items from a stream
// of unknown length (Vitter's algorithm R).
type Reservoir[T any] struct {
	size  int
	seen  int
	items []T
	rng   *rand.Rand
}

// New creates a reservoir. A size <= 0 makes it unbounded.
func New[T any](size int, seed uint64) *Reservoir[T] {
	r := &Reservoir[T]{size: size}
	if size > 0 {
		r.items = make([]T, 0, size)
		r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return r
}

// FromConfig builds a reservoir matching cfg.
func FromConfig[T any](cfg schema.SamplingConfig) *Reservoir[T] {
	if cfg.Unbounded() {
		return New[T](0, 0)
	}
	return New[T](cfg.Size, cfg.Seed)
}

// Add offers one item to the reservoir.
func (r *Reservoir[T]) Add(item T) {
	r.seen++
	if r.size <= 0 || len(r.items) < r.size {
		r.items = append(r.items, item)
		return
	}
	if j := r.rng.IntN(r.seen); j < r.size {
		r.items[j] = item
	}
}

// Items returns the current sample. For an unbounded reservoir this is every
// item added, in order.
func (r *Reservoir[T]) Items() []T {
	return r.items
}

// Seen is the number of items offered so far.
func (r *Reservoir[T]) Seen() int {
	return r.seen
}

func (r *Reservoir[T]) Unbounded() bool {
	return r.size <= 0
}
