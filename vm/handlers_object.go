package vm

import (
	"fmt"

	"github.com/chazu/corevm/types"
)

func init() {
	register(NEW, execNew)
	register(LDOBJ, execLdobj)
	register(STOBJ, execStobj)
	register(GETATTR, execGetattr)
	register(SETATTR, execSetattr)
	register(DELATTR, execDelattr)
	register(POP, execPop)
	register(LDOBJ2, execLdobj2)
	register(STOBJ2, execStobj2)
	register(DELOBJ, execDelobj)
	register(DELOBJ2, execDelobj2)
	register(GETHNDL, execGethndl)
	register(SETHNDL, execSethndl)
	register(CLRHNDL, execClrhndl)
	register(OBJEQ, objCompare(true))
	register(OBJNEQ, objCompare(false))
	register(SETFLGC, execSetflgc)
	register(SWAP, execSwap)
}

func execNew(p *Process, in Instr) error {
	id, obj, err := p.heap.Create()
	if err != nil {
		return err
	}
	obj.Flags = Flags(in.Oprd1)
	return p.pushObj(id)
}

func execLdobj(p *Process, in Instr) error {
	id, err := p.lookupVisible(in.Oprd1)
	if err != nil {
		return err
	}
	return p.pushObj(id)
}

func execLdobj2(p *Process, in Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	id, err := f.GetInvisibleVar(in.Oprd1)
	if err != nil {
		return err
	}
	return p.pushObj(id)
}

// storeVar pops the object stack into a frame variable, releasing what the
// variable held before.
func (p *Process) storeVar(set func(uint64, ObjectID) (ObjectID, bool), key uint64) error {
	id, err := p.popObj()
	if err != nil {
		return err
	}
	if err := p.heap.Retain(id); err != nil {
		return err
	}
	if prev, had := set(key, id); had {
		_ = p.heap.Release(prev)
	}
	return nil
}

func execStobj(p *Process, in Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	return p.storeVar(f.SetVisibleVar, in.Oprd1)
}

func execStobj2(p *Process, in Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	return p.storeVar(f.SetInvisibleVar, in.Oprd1)
}

func execDelobj(p *Process, in Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	id, err := f.PopVisibleVar(in.Oprd1)
	if err != nil {
		return err
	}
	return p.heap.Release(id)
}

func execDelobj2(p *Process, in Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	id, err := f.PopInvisibleVar(in.Oprd1)
	if err != nil {
		return err
	}
	return p.heap.Release(id)
}

func execGetattr(p *Process, in Instr) error {
	id, err := p.popObj()
	if err != nil {
		return err
	}
	obj, err := p.heap.At(id)
	if err != nil {
		return err
	}
	attr, ok := obj.Attr(in.Oprd1)
	if !ok {
		return fmt.Errorf("%w: %d on %s", ErrAttributeNotFound, in.Oprd1, id)
	}
	return p.pushObj(attr)
}

func execSetattr(p *Process, in Instr) error {
	attr, err := p.popObj()
	if err != nil {
		return err
	}
	target, err := p.topObj()
	if err != nil {
		return err
	}
	return p.heap.SetAttr(target, in.Oprd1, attr)
}

func execDelattr(p *Process, in Instr) error {
	target, err := p.topObj()
	if err != nil {
		return err
	}
	if target.HasFlag(FlagIndelible) {
		return fmt.Errorf("%w: %s", ErrObjectIndelible, target.ID)
	}
	return p.heap.DelAttr(target, in.Oprd1)
}

func execPop(p *Process, _ Instr) error {
	_, err := p.popObj()
	return err
}

func execGethndl(p *Process, _ Instr) error {
	obj, err := p.topObj()
	if err != nil {
		return err
	}
	k, ok := obj.NativeKey()
	if !ok {
		return fmt.Errorf("%w: %s has none", ErrNativeHandleNotFound, obj.ID)
	}
	v, err := p.pool.At(k)
	if err != nil {
		return err
	}
	return p.pushEval(v)
}

func execSethndl(p *Process, _ Instr) error {
	v, err := p.popEval()
	if err != nil {
		return err
	}
	obj, err := p.topObj()
	if err != nil {
		return err
	}
	// Replacing reuses the slot.
	if old, ok := obj.NativeKey(); ok {
		return p.pool.Set(old, v)
	}
	k, err := p.pool.Insert(v)
	if err != nil {
		return err
	}
	obj.setNative(k)
	return nil
}

func execClrhndl(p *Process, _ Instr) error {
	obj, err := p.topObj()
	if err != nil {
		return err
	}
	if k, ok := obj.NativeKey(); ok {
		if err := p.pool.Erase(k); err != nil {
			return err
		}
		obj.clearNative()
	}
	return nil
}

func objCompare(equal bool) Handler {
	return func(p *Process, _ Instr) error {
		b, err := p.popObj()
		if err != nil {
			return err
		}
		a, err := p.popObj()
		if err != nil {
			return err
		}
		return p.pushEval(types.Bool((a == b) == equal))
	}
}

func execSetflgc(p *Process, in Instr) error {
	obj, err := p.topObj()
	if err != nil {
		return err
	}
	obj.SetFlag(FlagNotCollectible, in.Oprd1 == 0)
	return nil
}

func execSwap(p *Process, _ Instr) error {
	n := len(p.objStack)
	if n < 2 {
		return fmt.Errorf("%w: swap needs two objects, have %d", ErrObjectStackEmpty, n)
	}
	p.objStack[n-1], p.objStack[n-2] = p.objStack[n-2], p.objStack[n-1]
	return nil
}
