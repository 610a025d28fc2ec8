package vm

import (
	"errors"
	"fmt"
)

// Implementation faults. All of these are raised where the precondition is
// violated and halt the process; none are retried.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrHeapExhausted      = errors.New("object heap exhausted")
	ErrFrameNotFound      = errors.New("frame not found")
	ErrObjectStackEmpty   = errors.New("object stack empty")
	ErrEvalStackEmpty     = errors.New("evaluation stack empty")
	ErrLocalVarNotFound   = errors.New("local variable not found")
	ErrAttributeNotFound  = errors.New("object attribute not found")
	ErrObjectIndelible    = errors.New("object attributes are indelible")
	ErrInvalidInstr       = errors.New("invalid instruction")
	ErrInvalidInstrAddr   = errors.New("invalid instruction address")
	ErrMissingParameter   = errors.New("missing parameter")
	ErrEncodingNotFound   = errors.New("encoding not found")
	ErrClosureNotFound    = errors.New("closure not found")
	ErrDuplicateClosure   = errors.New("duplicate closure")
	ErrProcessHalted      = errors.New("process halted")
	ErrNoPendingException = errors.New("no pending exception")

	ErrNativeHandleNotFound  = errors.New("native type handle not found")
	ErrNativeHandleInsertion = errors.New("native type handle insertion failed")
	ErrNativeHandleDeletion  = errors.New("native type handle deletion failed")
)

// ErrUncaughtException is raised when a VM-level exception (EXC) has no
// frame left to unwind into. It is a bytecode-visible condition surfacing
// as a fault, distinct from the implementation faults above.
var ErrUncaughtException = errors.New("uncaught exception")

// StepError wraps a handler failure with the instruction that raised it.
type StepError struct {
	PC    int64
	Instr Instr
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pc %d %s: %v", e.PC, e.Instr, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
