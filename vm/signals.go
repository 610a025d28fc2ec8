package vm

import "fmt"

// Signal is a process-level signal number.
type Signal uint32

// SignalClosureBase offsets the closure ids of signal blocks so they never
// collide with program closures.
const SignalClosureBase uint64 = 1 << 32

// SignalHandler is a native handler run at a step boundary.
type SignalHandler func(p *Process, sig Signal) error

const signalQueueSize = 64

// SignalTable holds a process's signal registrations and its delivery
// queue. Registrations are made before the process runs; Deliver may be
// called from any goroutine.
type SignalTable struct {
	blocks   map[Signal]Closure
	handlers map[Signal]SignalHandler
	pending  chan Signal
}

func newSignalTable() *SignalTable {
	return &SignalTable{
		blocks:   make(map[Signal]Closure),
		handlers: make(map[Signal]SignalHandler),
		pending:  make(chan Signal, signalQueueSize),
	}
}

// SetSigInstrBlock installs an instruction block to run when sig arrives.
// The block runs in its own frame and returns with RTRN to the interrupted
// instruction.
func (p *Process) SetSigInstrBlock(sig Signal, instrs []Instr) error {
	c := Closure{ID: SignalClosureBase + uint64(sig), ParentID: MainClosure}
	if err := p.AppendInstrBlock(c, instrs); err != nil {
		return fmt.Errorf("signal %d: %w", sig, err)
	}
	p.signals.blocks[sig] = p.closures[c.ID]
	return nil
}

// HandleSignal installs a native handler for sig. An instruction block
// registered for the same signal takes precedence.
func (p *Process) HandleSignal(sig Signal, fn SignalHandler) {
	p.signals.handlers[sig] = fn
}

// Deliver queues sig for the next step boundary. It reports false when the
// queue is full and the signal was dropped.
func (p *Process) Deliver(sig Signal) bool {
	select {
	case p.signals.pending <- sig:
		return true
	default:
		vmLog.Warningf("signal %d dropped: queue full", sig)
		return false
	}
}

func (p *Process) dispatchSignals() error {
	for {
		select {
		case sig := <-p.signals.pending:
			if err := p.dispatchSignal(sig); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (p *Process) dispatchSignal(sig Signal) error {
	if c, ok := p.signals.blocks[sig]; ok {
		vmLog.Debugf("signal %d: running block at %d", sig, c.Start)
		// RTRN resumes at ret+1, which is the interrupted instruction.
		p.pushFrame(c, p.pc-1)
		p.pc = c.Start
		return nil
	}
	if fn, ok := p.signals.handlers[sig]; ok {
		vmLog.Debugf("signal %d: native handler", sig)
		if err := fn(p, sig); err != nil {
			return fmt.Errorf("signal %d: %w", sig, err)
		}
		return nil
	}
	vmLog.Debugf("signal %d: no handler, dropped", sig)
	return nil
}
