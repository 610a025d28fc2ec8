package vm

import (
	"fmt"

	"github.com/chazu/corevm/types"
)

// Handler executes one instruction against a process. Handlers move pc
// only through jumpTo/jumpRel; otherwise Step advances it.
type Handler func(p *Process, in Instr) error

// handlerTable is copied into every new process.
var handlerTable [256]Handler

func register(c InstrCode, h Handler) {
	if _, ok := instrInfoTable[c]; !ok {
		panic(fmt.Sprintf("vm: handler for undeclared instruction 0x%02X", uint32(c)))
	}
	handlerTable[c] = h
}

// ---------------------------------------------------------------------------
// Eval stack adapters
// ---------------------------------------------------------------------------

// pushing adapts a value producer into a handler pushing its result.
func pushing(fn func(p *Process, in Instr) (types.Value, error)) Handler {
	return func(p *Process, in Instr) error {
		v, err := fn(p, in)
		if err != nil {
			return err
		}
		return p.pushEval(v)
	}
}

// unary pops one value and pushes fn's result.
func unary(fn func(v types.Value, in Instr) (types.Value, error)) Handler {
	return func(p *Process, in Instr) error {
		f, err := p.CurrentFrame()
		if err != nil {
			return err
		}
		v, err := f.PopEval()
		if err != nil {
			return err
		}
		r, err := fn(v, in)
		if err != nil {
			return err
		}
		f.PushEval(r)
		return nil
	}
}

// binary pops the right-hand operand, then the left, and pushes fn's result.
func binary(fn func(a, b types.Value, in Instr) (types.Value, error)) Handler {
	return func(p *Process, in Instr) error {
		f, err := p.CurrentFrame()
		if err != nil {
			return err
		}
		b, err := f.PopEval()
		if err != nil {
			return err
		}
		a, err := f.PopEval()
		if err != nil {
			return err
		}
		r, err := fn(a, b, in)
		if err != nil {
			return err
		}
		f.PushEval(r)
		return nil
	}
}

// swapping pops two values of kind k and pushes them back exchanged.
func swapping(k types.Kind) Handler {
	return func(p *Process, in Instr) error {
		f, err := p.CurrentFrame()
		if err != nil {
			return err
		}
		b, err := f.PopEval()
		if err != nil {
			return err
		}
		a, err := f.PopEval()
		if err != nil {
			return err
		}
		if err := wantKind(a, k); err != nil {
			return err
		}
		if err := wantKind(b, k); err != nil {
			return err
		}
		f.PushEval(b)
		f.PushEval(a)
		return nil
	}
}

func wantKind(v types.Value, k types.Kind) error {
	if v.Kind() != k {
		return fmt.Errorf("%w: expected %s, got %s", types.ErrUnsupportedOperator, k, v.Kind())
	}
	return nil
}
