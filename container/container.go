// Package container provides a fixed-capacity store of records addressed by
// stable, generation-checked handles.
//
// A Container replaces raw pointer bookkeeping with a slot map: every record
// lives in a slot, and a Handle names a slot together with the generation the
// slot had when the record was created. Destroying a record bumps the slot's
// generation, so a stale Handle can never reach a newer occupant. Accessing
// anything that is not currently live returns ErrInvalidAddress.
package container

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidAddress is returned when a handle does not name a live record.
var ErrInvalidAddress = errors.New("invalid address")

// Handle names a record in a Container. The zero Handle is never live.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Pack encodes the handle as a single uint64 (generation in the high half).
func (h Handle) Pack() uint64 {
	return uint64(h.Gen)<<32 | uint64(h.Index)
}

// Unpack is the inverse of Handle.Pack.
func Unpack(v uint64) Handle {
	return Handle{Index: uint32(v), Gen: uint32(v >> 32)}
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.Gen == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index, h.Gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Container is a capacity-bounded slot map of T records. Slots are
// allocated individually, so record pointers stay valid while the
// container grows.
type Container[T any] struct {
	slots []*slot[T]
	free  []uint32
	live  int
	max   int
}

// New creates a container that holds at most max records. A max of zero or
// less means the container is unbounded.
func New[T any](max int) *Container[T] {
	return &Container[T]{max: max}
}

// Len returns the number of live records.
func (c *Container[T]) Len() int {
	return c.live
}

// Max returns the capacity, or zero for an unbounded container.
func (c *Container[T]) Max() int {
	return c.max
}

// Create allocates a zero T and returns its handle. The boolean is false when
// the container is full.
func (c *Container[T]) Create() (Handle, *T, bool) {
	if c.max > 0 && c.live >= c.max {
		return Handle{}, nil, false
	}

	var idx uint32
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		idx = uint32(len(c.slots))
		// Generations start at 1 so the zero Handle never matches.
		c.slots = append(c.slots, &slot[T]{gen: 1})
	}

	s := c.slots[idx]
	s.live = true
	c.live++
	return Handle{Index: idx, Gen: s.gen}, &s.value, true
}

// Contains reports whether h names a live record.
func (c *Container[T]) Contains(h Handle) bool {
	if int(h.Index) >= len(c.slots) {
		return false
	}
	s := c.slots[h.Index]
	return s.live && s.gen == h.Gen
}

// At returns the record named by h.
func (c *Container[T]) At(h Handle) (*T, error) {
	if !c.Contains(h) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, h)
	}
	return &c.slots[h.Index].value, nil
}

// Destroy releases the record named by h.
func (c *Container[T]) Destroy(h Handle) error {
	if !c.Contains(h) {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, h)
	}
	s := c.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	c.free = append(c.free, h.Index)
	c.live--
	return nil
}

// All iterates over live records in slot order. The yielded record may be
// destroyed during iteration; destroyed slots are never revisited.
func (c *Container[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i, s := range c.slots {
			if !s.live {
				continue
			}
			if !yield(Handle{Index: uint32(i), Gen: s.gen}, &s.value) {
				return
			}
		}
	}
}

// Handles returns a snapshot of all live handles.
func (c *Container[T]) Handles() []Handle {
	out := make([]Handle, 0, c.live)
	for h := range c.All() {
		out = append(out, h)
	}
	return out
}

// ---------------------------------------------------------------------------
// Iterator
// ---------------------------------------------------------------------------

// Iterator is a forward cursor over live records.
type Iterator[T any] struct {
	c   *Container[T]
	pos int
}

// Begin returns an iterator at the first live record.
func (c *Container[T]) Begin() Iterator[T] {
	return Iterator[T]{c: c, pos: c.seek(0)}
}

// End returns the past-the-end iterator.
func (c *Container[T]) End() Iterator[T] {
	return Iterator[T]{c: c, pos: len(c.slots)}
}

func (c *Container[T]) seek(from int) int {
	for i := from; i < len(c.slots); i++ {
		if c.slots[i].live {
			return i
		}
	}
	return len(c.slots)
}

// Valid reports whether the iterator points at a live record.
func (it Iterator[T]) Valid() bool {
	return it.c != nil && it.pos < len(it.c.slots) && it.c.slots[it.pos].live
}

// Handle returns the handle under the iterator.
func (it Iterator[T]) Handle() Handle {
	if !it.Valid() {
		return Handle{}
	}
	return Handle{Index: uint32(it.pos), Gen: it.c.slots[it.pos].gen}
}

// Value returns the record under the iterator, or nil at end.
func (it Iterator[T]) Value() *T {
	if !it.Valid() {
		return nil
	}
	return &it.c.slots[it.pos].value
}

// Next advances to the next live record.
func (it Iterator[T]) Next() Iterator[T] {
	if it.c == nil {
		return it
	}
	return Iterator[T]{c: it.c, pos: it.c.seek(it.pos + 1)}
}

// Erase destroys the record under it and returns an iterator to the next
// live record. Erasing at end is a no-op.
func (c *Container[T]) Erase(it Iterator[T]) Iterator[T] {
	if !it.Valid() || it.c != c {
		return c.End()
	}
	next := it.Next()
	_ = c.Destroy(it.Handle())
	return next
}
