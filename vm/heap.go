package vm

import (
	"fmt"
	"iter"

	"github.com/chazu/corevm/container"
)

// ---------------------------------------------------------------------------
// Heap: dynamic object storage
// ---------------------------------------------------------------------------

// Heap stores dynamic objects in a bounded container. Every reference write
// goes through the heap so the active scheme sees it.
type Heap struct {
	objs   *container.Container[Object]
	scheme Scheme
}

// NewHeap creates a heap holding at most max objects. A nil scheme means
// reference counting.
func NewHeap(max int, scheme Scheme) *Heap {
	if scheme == nil {
		scheme = RefCountScheme{}
	}
	return &Heap{
		objs:   container.New[Object](max),
		scheme: scheme,
	}
}

// Scheme returns the heap's GC scheme.
func (h *Heap) Scheme() Scheme { return h.scheme }

// Size returns the number of live objects.
func (h *Heap) Size() int { return h.objs.Len() }

// MaxSize returns the heap capacity (zero when unbounded).
func (h *Heap) MaxSize() int { return h.objs.Max() }

// Create allocates a new object.
func (h *Heap) Create() (ObjectID, *Object, error) {
	hd, obj, ok := h.objs.Create()
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d objects", ErrHeapExhausted, h.Size())
	}
	id := ObjectID(hd.Pack())
	*obj = Object{ID: id}
	return id, obj, nil
}

// At returns the object named by id.
func (h *Heap) At(id ObjectID) (*Object, error) {
	obj, err := h.objs.At(id.handle())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrObjectNotFound, id, err)
	}
	return obj, nil
}

// Has reports whether id names a live object.
func (h *Heap) Has(id ObjectID) bool {
	return h.objs.Contains(id.handle())
}

// All iterates over live objects.
func (h *Heap) All() iter.Seq2[ObjectID, *Object] {
	return func(yield func(ObjectID, *Object) bool) {
		for hd, obj := range h.objs.All() {
			if !yield(ObjectID(hd.Pack()), obj) {
				return
			}
		}
	}
}

// Remove erases an object without consulting the scheme.
func (h *Heap) Remove(id ObjectID) error {
	if err := h.objs.Destroy(id.handle()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrObjectNotFound, id, err)
	}
	return nil
}

// Retain records a new reference to id.
func (h *Heap) Retain(id ObjectID) error {
	obj, err := h.At(id)
	if err != nil {
		return err
	}
	h.scheme.Retain(obj)
	return nil
}

// Release drops a reference to id.
func (h *Heap) Release(id ObjectID) error {
	obj, err := h.At(id)
	if err != nil {
		return err
	}
	h.scheme.Release(obj)
	return nil
}

// SetAttr makes obj.attrs[key] reference id, releasing any displaced
// referent.
func (h *Heap) SetAttr(obj *Object, key uint64, id ObjectID) error {
	if err := h.Retain(id); err != nil {
		return err
	}
	if obj.attrs == nil {
		obj.attrs = make(map[uint64]ObjectID)
	}
	prev, had := obj.attrs[key]
	obj.attrs[key] = id
	if had {
		// The displaced referent may already be gone; nothing to release then.
		_ = h.Release(prev)
	}
	return nil
}

// DelAttr removes attribute key from obj and releases its referent.
func (h *Heap) DelAttr(obj *Object, key uint64) error {
	id, ok := obj.attrs[key]
	if !ok {
		return fmt.Errorf("%w: %d on %s", ErrAttributeNotFound, key, obj.ID)
	}
	delete(obj.attrs, key)
	_ = h.Release(id)
	return nil
}
