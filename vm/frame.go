package vm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/chazu/corevm/types"
)

// NoParent marks a closure with no lexically enclosing closure.
const NoParent = ^uint64(0)

// MainClosure is the id of the main instruction block.
const MainClosure uint64 = 0

// Closure is an instruction block in the process's instruction vector.
type Closure struct {
	ID       uint64
	ParentID uint64
	Start    int64
	Len      int64
}

// Frame is one activation record.
type Frame struct {
	closure    Closure
	returnAddr int64

	visible   map[uint64]ObjectID
	invisible map[uint64]ObjectID
	eval      []types.Value

	args   []ObjectID
	kwargs map[uint64]ObjectID
}

// NewFrame returns an empty frame for closure c returning to ret.
func NewFrame(c Closure, ret int64) *Frame {
	return &Frame{
		closure:    c,
		returnAddr: ret,
		visible:    make(map[uint64]ObjectID),
		invisible:  make(map[uint64]ObjectID),
		kwargs:     make(map[uint64]ObjectID),
	}
}

func (f *Frame) Closure() Closure  { return f.closure }
func (f *Frame) ReturnAddr() int64 { return f.returnAddr }

// ---------------------------------------------------------------------------
// Evaluation stack
// ---------------------------------------------------------------------------

func (f *Frame) PushEval(v types.Value) {
	f.eval = append(f.eval, v)
}

func (f *Frame) PopEval() (types.Value, error) {
	n := len(f.eval)
	if n == 0 {
		return types.Value{}, ErrEvalStackEmpty
	}
	v := f.eval[n-1]
	f.eval = f.eval[:n-1]
	return v, nil
}

func (f *Frame) TopEval() (types.Value, error) {
	if len(f.eval) == 0 {
		return types.Value{}, ErrEvalStackEmpty
	}
	return f.eval[len(f.eval)-1], nil
}

func (f *Frame) EvalLen() int { return len(f.eval) }

// ---------------------------------------------------------------------------
// Local variables
// ---------------------------------------------------------------------------

func getVar(m map[uint64]ObjectID, key uint64) (ObjectID, error) {
	id, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrLocalVarNotFound, key)
	}
	return id, nil
}

func popVar(m map[uint64]ObjectID, key uint64) (ObjectID, error) {
	id, err := getVar(m, key)
	if err == nil {
		delete(m, key)
	}
	return id, err
}

func setVar(m map[uint64]ObjectID, key uint64, id ObjectID) (ObjectID, bool) {
	prev, had := m[key]
	m[key] = id
	return prev, had
}

// GetVisibleVar returns the visible variable key.
func (f *Frame) GetVisibleVar(key uint64) (ObjectID, error) { return getVar(f.visible, key) }

// SetVisibleVar binds key to id and returns any displaced binding.
func (f *Frame) SetVisibleVar(key uint64, id ObjectID) (ObjectID, bool) {
	return setVar(f.visible, key, id)
}

// PopVisibleVar removes key and returns what it was bound to.
func (f *Frame) PopVisibleVar(key uint64) (ObjectID, error) { return popVar(f.visible, key) }

func (f *Frame) GetInvisibleVar(key uint64) (ObjectID, error) { return getVar(f.invisible, key) }

func (f *Frame) SetInvisibleVar(key uint64, id ObjectID) (ObjectID, bool) {
	return setVar(f.invisible, key, id)
}

func (f *Frame) PopInvisibleVar(key uint64) (ObjectID, error) { return popVar(f.invisible, key) }

// VisibleObjects returns the objects bound to visible variables.
func (f *Frame) VisibleObjects() []ObjectID {
	return slices.Collect(maps.Values(f.visible))
}

// InvisibleObjects returns the objects bound to invisible variables.
func (f *Frame) InvisibleObjects() []ObjectID {
	return slices.Collect(maps.Values(f.invisible))
}

// ---------------------------------------------------------------------------
// Call arguments
// ---------------------------------------------------------------------------

// Args returns the positional arguments not yet consumed.
func (f *Frame) Args() []ObjectID { return slices.Clone(f.args) }

// Kwargs returns the keyword arguments not yet consumed.
func (f *Frame) Kwargs() map[uint64]ObjectID { return maps.Clone(f.kwargs) }

// objects returns every object the frame holds a reference to.
func (f *Frame) objects() []ObjectID {
	out := make([]ObjectID, 0, len(f.visible)+len(f.invisible)+len(f.args)+len(f.kwargs))
	out = append(out, f.VisibleObjects()...)
	out = append(out, f.InvisibleObjects()...)
	out = append(out, f.args...)
	for _, id := range f.kwargs {
		out = append(out, id)
	}
	return out
}
