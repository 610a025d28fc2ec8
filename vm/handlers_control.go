package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/corevm/types"
)

func init() {
	// Control
	register(RTRN, execRtrn)
	register(JMP, execJmp)
	register(JMPIF, execJmpif)
	register(EXC, execExc)
	register(EXC2, execExc2)
	register(JMPEXC, execJmpexc)
	register(CLREXC, execClrexc)
	register(EXIT, execExit)

	// Function
	register(FRAME, execFrame)
	register(PUTARG, execPutarg)
	register(PUTKWARG, execPutkwarg)
	register(GETARG, execGetarg)
	register(GETKWARG, execGetkwarg)
	register(GETARGS, execGetargs)
	register(GETKWARGS, execGetkwargs)
	register(HASARGS, execHasargs)

	// Runtime
	register(GC, execGC)
	register(DEBUG, execDebug)
	register(PRINT, execPrint)
}

// ---------------------------------------------------------------------------
// Control
// ---------------------------------------------------------------------------

// RTRN out of the main frame ends the program.
func execRtrn(p *Process, _ Instr) error {
	f, err := p.popFrame()
	if err != nil {
		return err
	}
	if len(p.frames) == 0 {
		p.halt(0)
		return nil
	}
	return p.jumpTo(f.returnAddr + 1)
}

func execJmp(p *Process, in Instr) error {
	return p.jumpRel(in.Oprd1)
}

func execJmpif(p *Process, in Instr) error {
	v, err := p.popEval()
	if err != nil {
		return err
	}
	if types.Truthy(v) {
		return p.jumpRel(in.Oprd1)
	}
	return nil
}

// execExc raises the popped object and unwinds into the caller, which
// resumes after its FRAME instruction with the exception pending.
func execExc(p *Process, _ Instr) error {
	id, err := p.popObj()
	if err != nil {
		return err
	}
	if err := p.setException(id); err != nil {
		return err
	}
	if len(p.frames) <= 1 {
		return fmt.Errorf("%w: %s", ErrUncaughtException, id)
	}
	f, err := p.popFrame()
	if err != nil {
		return err
	}
	vmLog.Debugf("exception %s unwinds frame of closure %d", id, f.closure.ID)
	return p.jumpTo(f.returnAddr + 1)
}

func execExc2(p *Process, _ Instr) error {
	id, err := p.popObj()
	if err != nil {
		return err
	}
	return p.setException(id)
}

func execJmpexc(p *Process, in Instr) error {
	if !p.hasExc {
		return nil
	}
	return p.jumpRel(in.Oprd1)
}

func execClrexc(p *Process, _ Instr) error {
	if !p.hasExc {
		return ErrNoPendingException
	}
	id := p.exc
	if err := p.pushObj(id); err != nil {
		return err
	}
	p.exc, p.hasExc = 0, false
	return p.heap.Release(id)
}

func execExit(p *Process, in Instr) error {
	p.halt(int64(in.Oprd1))
	return nil
}

// ---------------------------------------------------------------------------
// Function calls
// ---------------------------------------------------------------------------

// execFrame calls a closure. The pending arguments move into the new frame
// together with their references.
func execFrame(p *Process, in Instr) error {
	c, ok := p.closures[in.Oprd1]
	if !ok {
		return fmt.Errorf("%w: %d", ErrClosureNotFound, in.Oprd1)
	}
	f := p.pushFrame(c, p.pc)
	f.args = p.pendingArgs
	f.kwargs = p.pendingKwargs
	p.pendingArgs = nil
	p.pendingKwargs = make(map[uint64]ObjectID)
	return p.jumpTo(c.Start)
}

func execPutarg(p *Process, _ Instr) error {
	id, err := p.popObj()
	if err != nil {
		return err
	}
	if err := p.heap.Retain(id); err != nil {
		return err
	}
	p.pendingArgs = append(p.pendingArgs, id)
	return nil
}

func execPutkwarg(p *Process, in Instr) error {
	id, err := p.popObj()
	if err != nil {
		return err
	}
	if err := p.heap.Retain(id); err != nil {
		return err
	}
	if prev, had := p.pendingKwargs[in.Oprd1]; had {
		_ = p.heap.Release(prev)
	}
	p.pendingKwargs[in.Oprd1] = id
	return nil
}

// execGetarg consumes the next positional argument.
func execGetarg(p *Process, _ Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	if len(f.args) == 0 {
		return fmt.Errorf("%w: no positional argument left", ErrMissingParameter)
	}
	id := f.args[0]
	f.args = f.args[1:]
	if err := p.pushObj(id); err != nil {
		return err
	}
	return p.heap.Release(id)
}

// execGetkwarg consumes a keyword argument.
func execGetkwarg(p *Process, in Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	id, ok := f.kwargs[in.Oprd1]
	if !ok {
		return fmt.Errorf("%w: keyword argument %d", ErrMissingParameter, in.Oprd1)
	}
	delete(f.kwargs, in.Oprd1)
	if err := p.pushObj(id); err != nil {
		return err
	}
	return p.heap.Release(id)
}

// collectArgs creates an object holding refs as attributes, with native
// value v describing them. The caller's references in refs are always
// dropped; on failure the half-built object goes with them.
func (p *Process) collectArgs(v types.Value, refs map[uint64]ObjectID) error {
	defer func() {
		for _, ref := range refs {
			_ = p.heap.Release(ref)
		}
	}()

	id, obj, err := p.heap.Create()
	if err != nil {
		return err
	}
	for key, ref := range refs {
		if err := p.heap.SetAttr(obj, key, ref); err != nil {
			p.discardObject(id, obj)
			return err
		}
	}
	k, err := p.pool.Insert(v)
	if err != nil {
		p.discardObject(id, obj)
		return err
	}
	obj.setNative(k)
	return p.pushObj(id)
}

// discardObject removes an object nothing references yet, releasing its
// attributes.
func (p *Process) discardObject(id ObjectID, obj *Object) {
	for key := range obj.attrs {
		_ = p.heap.DelAttr(obj, key)
	}
	_ = p.heap.Remove(id)
}

// execGetargs consumes the remaining positional arguments into an object
// whose native value is the array of their ids and whose attribute i is
// argument i.
func execGetargs(p *Process, _ Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	elems := make([]uint64, len(f.args))
	refs := make(map[uint64]ObjectID, len(f.args))
	for i, id := range f.args {
		elems[i] = uint64(id)
		refs[uint64(i)] = id
	}
	f.args = nil
	return p.collectArgs(types.Array(elems...), refs)
}

// execGetkwargs is execGetargs for keyword arguments; the native value maps
// each key to its object id.
func execGetkwargs(p *Process, _ Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	entries := make(map[uint64]uint64, len(f.kwargs))
	for k, id := range f.kwargs {
		entries[k] = uint64(id)
	}
	refs := f.kwargs
	f.kwargs = make(map[uint64]ObjectID)
	return p.collectArgs(types.Map(entries), refs)
}

func execHasargs(p *Process, _ Instr) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	f.PushEval(types.Bool(len(f.args) > 0))
	return nil
}

// ---------------------------------------------------------------------------
// Runtime
// ---------------------------------------------------------------------------

// execGC defers the collection to the end of the step.
func execGC(p *Process, _ Instr) error {
	p.gcRequested = true
	return nil
}

func execDebug(p *Process, _ Instr) error {
	vmLog.Info(p.describe())
	return nil
}

func execPrint(p *Process, _ Instr) error {
	v, err := p.popEval()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(p.out, types.Repr(v)); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}

// describe renders the process state for DEBUG.
func (p *Process) describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pc=%d frames=%d objects=%d heap=%d/%d pool=%d/%d",
		p.pc, len(p.frames), len(p.objStack),
		p.heap.Size(), p.heap.MaxSize(), p.pool.Size(), p.pool.MaxSize())
	if f, err := p.CurrentFrame(); err == nil {
		fmt.Fprintf(&sb, " closure=%d eval=%d vars=%d/%d args=%d",
			f.closure.ID, f.EvalLen(), len(f.visible), len(f.invisible), len(f.args))
	}
	if p.hasExc {
		fmt.Fprintf(&sb, " exception=%s", p.exc)
	}
	return sb.String()
}
