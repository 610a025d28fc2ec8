package vm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/chazu/corevm/container"
)

// ObjectID names a live object in the heap (a packed container handle).
// The zero ObjectID never names an object.
type ObjectID uint64

func (id ObjectID) String() string {
	return fmt.Sprintf("obj#%s", container.Unpack(uint64(id)))
}

func (id ObjectID) handle() container.Handle {
	return container.Unpack(uint64(id))
}

// Flags is the object flag bitfield.
type Flags uint64

const (
	// FlagNotCollectible pins an object: the collector never removes it.
	FlagNotCollectible Flags = 1 << iota
	// FlagIndelible rejects DELATTR on the object.
	FlagIndelible
)

// Object is a dynamic VM object.
type Object struct {
	ID    ObjectID
	Flags Flags

	// Scheme state. Refs counts holders (object stack slots, frame
	// variables, argument lists, attributes of other objects). Marked is
	// owned by the mark-sweep scheme.
	Refs   int64
	Marked bool

	attrs  map[uint64]ObjectID
	native NativeKey
	hasNtv bool
}

// HasFlag reports whether all bits of f are set.
func (o *Object) HasFlag(f Flags) bool {
	return o.Flags&f == f
}

// SetFlag sets or clears f.
func (o *Object) SetFlag(f Flags, on bool) {
	if on {
		o.Flags |= f
	} else {
		o.Flags &^= f
	}
}

// Attr returns the object referenced by attribute key.
func (o *Object) Attr(key uint64) (ObjectID, bool) {
	id, ok := o.attrs[key]
	return id, ok
}

// AttrKeys returns the attribute keys in ascending order.
func (o *Object) AttrKeys() []uint64 {
	return slices.Sorted(maps.Keys(o.attrs))
}

// AttrCount returns the number of attributes.
func (o *Object) AttrCount() int {
	return len(o.attrs)
}

// Referents returns every object referenced through attributes.
func (o *Object) Referents() []ObjectID {
	out := make([]ObjectID, 0, len(o.attrs))
	for _, k := range o.AttrKeys() {
		out = append(out, o.attrs[k])
	}
	return out
}

// NativeKey returns the object's pool key, if it holds a native value.
func (o *Object) NativeKey() (NativeKey, bool) {
	return o.native, o.hasNtv
}

func (o *Object) setNative(k NativeKey) {
	o.native = k
	o.hasNtv = true
}

func (o *Object) clearNative() {
	o.native = 0
	o.hasNtv = false
}
