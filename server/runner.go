package server

import (
	"context"

	"github.com/chazu/corevm/vm"
)

// Runner drives a process on the calling goroutine and parks it while it
// is paused. Pause, Resume and Signal are safe from any goroutine.
type Runner struct {
	proc    *vm.Process
	resumed chan struct{}
	done    chan struct{}
}

// NewRunner wraps p.
func NewRunner(p *vm.Process) *Runner {
	return &Runner{
		proc:    p,
		resumed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Process returns the driven process.
func (r *Runner) Process() *vm.Process { return r.proc }

// Run executes the process until it halts, faults or ctx is cancelled.
// While paused, Run waits for Resume.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		if err := r.proc.Run(ctx); err != nil {
			return err
		}
		if r.proc.Halted() {
			return nil
		}
		select {
		case <-r.resumed:
		case <-ctx.Done():
			r.proc.Halt(-1)
			return ctx.Err()
		}
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Pause stops execution at the next step boundary.
func (r *Runner) Pause() bool {
	if r.proc.State() == vm.StateHalted {
		return false
	}
	r.proc.PauseExec()
	return true
}

// Resume continues a paused process.
func (r *Runner) Resume() bool {
	if r.proc.State() == vm.StateHalted {
		return false
	}
	r.proc.ResumeExec()
	select {
	case r.resumed <- struct{}{}:
	default:
	}
	return true
}

// Signal queues sig for delivery at the next step.
func (r *Runner) Signal(sig vm.Signal) bool {
	return r.proc.Deliver(sig)
}
