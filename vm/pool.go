package vm

import (
	"fmt"

	"github.com/chazu/corevm/container"
	"github.com/chazu/corevm/types"
)

// NativeKey names a value in the native types pool.
type NativeKey uint64

func (k NativeKey) String() string {
	return fmt.Sprintf("ntv#%s", container.Unpack(uint64(k)))
}

// NativePool holds the native values attached to objects. It has its own
// capacity, independent of the heap's.
type NativePool struct {
	vals *container.Container[types.Value]
}

// NewNativePool returns a pool holding at most max values (zero is
// unbounded).
func NewNativePool(max int) *NativePool {
	return &NativePool{vals: container.New[types.Value](max)}
}

func (np *NativePool) Size() int    { return np.vals.Len() }
func (np *NativePool) MaxSize() int { return np.vals.Max() }

// Insert stores a copy of v.
func (np *NativePool) Insert(v types.Value) (NativeKey, error) {
	h, slot, ok := np.vals.Create()
	if !ok {
		return 0, fmt.Errorf("%w: pool full at %d", ErrNativeHandleInsertion, np.Size())
	}
	*slot = v
	return NativeKey(h.Pack()), nil
}

// At returns the value stored under k.
func (np *NativePool) At(k NativeKey) (types.Value, error) {
	v, err := np.vals.At(container.Unpack(uint64(k)))
	if err != nil {
		return types.Value{}, fmt.Errorf("%w: %s", ErrNativeHandleNotFound, k)
	}
	return *v, nil
}

// Set replaces the value stored under k, keeping its slot.
func (np *NativePool) Set(k NativeKey, v types.Value) error {
	slot, err := np.vals.At(container.Unpack(uint64(k)))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNativeHandleNotFound, k)
	}
	*slot = v
	return nil
}

// Erase removes the value stored under k.
func (np *NativePool) Erase(k NativeKey) error {
	if err := np.vals.Destroy(container.Unpack(uint64(k))); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNativeHandleDeletion, k, err)
	}
	return nil
}
