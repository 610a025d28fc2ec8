package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync/atomic"

	"github.com/chazu/corevm/types"
	"github.com/tliron/commonlog"
)

var vmLog = commonlog.GetLogger("corevm.vm")

// State is the externally visible execution state of a process.
type State uint32

const (
	StateConstructed State = iota
	StateRunning
	StatePaused
	StateHalted
)

var stateNames = [...]string{"constructed", "running", "paused", "halted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Options configures a process.
type Options struct {
	HeapMaxSize int     // object heap capacity, 0 = unbounded
	PoolMaxSize int     // native pool capacity, 0 = unbounded
	Scheme      Scheme  // nil = reference counting
	Rule        GCRule  // when to collect
	Cutoff      float64 // fill ratio for the size rules, 0 = DefaultCutoff
	Output      io.Writer
	Tracer      Tracer
}

// DefaultOptions returns the options used by NewProcess when none are given.
func DefaultOptions() Options {
	return Options{
		HeapMaxSize: 1 << 16,
		PoolMaxSize: 1 << 16,
		Scheme:      RefCountScheme{},
		Rule:        RuleByHeapSize,
		Cutoff:      DefaultCutoff,
		Output:      os.Stdout,
	}
}

// Stats is a snapshot of a process, safe to take from any goroutine.
type Stats struct {
	State       State
	PC          int64
	HeapSize    int
	HeapMax     int
	PoolSize    int
	PoolMax     int
	Frames      int
	ObjectStack int
	Steps       uint64
	GCPasses    uint64
	ExitCode    int64
}

// Process executes an instruction vector. A process is driven by a single
// goroutine; PauseExec, ResumeExec, Deliver and Stats may be called from
// others.
type Process struct {
	opts   Options
	out    io.Writer
	tracer Tracer

	pc        int64
	instrs    []Instr
	closures  map[uint64]Closure
	encodings map[uint64]string
	handlers  [256]Handler

	heap *Heap
	gc   *GarbageCollector
	pool *NativePool

	objStack []ObjectID
	frames   []*Frame

	pendingArgs   []ObjectID
	pendingKwargs map[uint64]ObjectID

	exc    ObjectID
	hasExc bool

	signals *SignalTable

	started      bool
	halted       bool
	exitCode     int64
	jumped       bool
	gcRequested  bool
	gcInProgress bool

	paused atomic.Bool
	pub    published
}

// published mirrors loop-owned state for readers on other goroutines.
type published struct {
	state    atomic.Uint32
	pc       atomic.Int64
	heap     atomic.Int64
	pool     atomic.Int64
	frames   atomic.Int64
	objStack atomic.Int64
	exitCode atomic.Int64
	steps    atomic.Uint64
	gcPasses atomic.Uint64
}

// NewProcess creates a process. Zero-valued options fall back to
// DefaultOptions, except the capacities where zero means unbounded.
func NewProcess(opts Options) *Process {
	if opts.Scheme == nil {
		opts.Scheme = RefCountScheme{}
	}
	if opts.Cutoff <= 0 {
		opts.Cutoff = DefaultCutoff
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	p := &Process{
		opts:          opts,
		out:           opts.Output,
		tracer:        opts.Tracer,
		pc:            -1,
		closures:      make(map[uint64]Closure),
		encodings:     make(map[uint64]string),
		handlers:      handlerTable,
		heap:          NewHeap(opts.HeapMaxSize, opts.Scheme),
		pool:          NewNativePool(opts.PoolMaxSize),
		pendingKwargs: make(map[uint64]ObjectID),
		signals:       newSignalTable(),
	}
	p.gc = NewGarbageCollector(p.heap, p.freeNative)
	p.closures[MainClosure] = Closure{ID: MainClosure, ParentID: NoParent}
	p.publish()
	return p
}

// ---------------------------------------------------------------------------
// Program setup
// ---------------------------------------------------------------------------

// AppendInstrs appends instructions to the main block. Main always starts
// at address 0 and stays contiguous; closure blocks after it are moved up,
// together with any frame addresses that point into them.
func (p *Process) AppendInstrs(instrs ...Instr) {
	n := int64(len(instrs))
	if n == 0 {
		return
	}
	main := p.closures[MainClosure]
	at := main.Start + main.Len
	p.instrs = slices.Insert(p.instrs, int(at), instrs...)
	main.Len += n
	p.closures[MainClosure] = main
	if at+n == int64(len(p.instrs)) && len(p.frames) == 0 {
		return
	}

	for id, c := range p.closures {
		if id != MainClosure {
			c.Start += n
			p.closures[id] = c
		}
	}
	for sig, c := range p.signals.blocks {
		p.signals.blocks[sig] = p.closures[c.ID]
	}
	// An address belongs to the block of the frame that resumes there.
	for i, f := range p.frames {
		f.closure = p.closures[f.closure.ID]
		if i > 0 && p.frames[i-1].closure.ID != MainClosure {
			f.returnAddr += n
		}
	}
	if k := len(p.frames); k > 0 && p.frames[k-1].closure.ID != MainClosure {
		p.pc += n
	}
	p.publish()
}

// AppendInstrBlock appends a closure block. Jump offsets inside the block are
// relative to its start.
func (p *Process) AppendInstrBlock(c Closure, instrs []Instr) error {
	if _, exists := p.closures[c.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateClosure, c.ID)
	}
	c.Start = int64(len(p.instrs))
	c.Len = int64(len(instrs))
	p.closures[c.ID] = c
	p.instrs = append(p.instrs, instrs...)
	return nil
}

// Closure returns the closure registered under id.
func (p *Process) Closure(id uint64) (Closure, bool) {
	c, ok := p.closures[id]
	return c, ok
}

// Instrs returns the instruction vector.
func (p *Process) Instrs() []Instr { return p.instrs }

// SetEncoding registers an encoded string under key.
func (p *Process) SetEncoding(key uint64, s string) {
	p.encodings[key] = s
}

// SetEncodingMap merges m into the encoding map.
func (p *Process) SetEncodingMap(m map[uint64]string) {
	for k, s := range m {
		p.encodings[k] = s
	}
}

// Encoding returns the string registered under key.
func (p *Process) Encoding(key uint64) (string, error) {
	s, ok := p.encodings[key]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrEncodingNotFound, key)
	}
	return s, nil
}

// Encodings returns the encoding map.
func (p *Process) Encodings() map[uint64]string { return p.encodings }

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Start pushes the main frame and points pc at the first instruction.
func (p *Process) Start() error {
	if p.halted {
		return ErrProcessHalted
	}
	if p.started {
		return nil
	}
	p.frames = append(p.frames, NewFrame(p.closures[MainClosure], -1))
	p.pc = 0
	p.started = true

	vmLog.Infof("process started: %d instructions, %s scheme, %s rule",
		len(p.instrs), p.heap.scheme.Name(), p.opts.Rule)
	if p.tracer != nil {
		p.tracer.OnStart(RunInfo{
			Instrs:  len(p.instrs),
			Scheme:  p.heap.scheme.Name(),
			Rule:    p.opts.Rule.String(),
			HeapMax: p.heap.MaxSize(),
			PoolMax: p.pool.MaxSize(),
		})
	}
	p.publish()
	return nil
}

// CanExecute reports whether the next Step would execute an instruction.
func (p *Process) CanExecute() bool {
	return p.started && !p.halted && !p.paused.Load() &&
		p.pc >= 0 && p.pc < int64(len(p.instrs))
}

// Run executes instructions until the process halts or is paused. Running
// off the end of the instruction vector without EXIT is a fault.
// Cancelling ctx halts the process with exit code -1.
func (p *Process) Run(ctx context.Context) error {
	if err := p.Start(); err != nil {
		return err
	}
	for p.CanExecute() {
		if err := ctx.Err(); err != nil {
			vmLog.Noticef("run cancelled at pc %d: %s", p.pc, err)
			p.halt(-1)
			p.publish()
			return err
		}
		if err := p.Step(); err != nil {
			return err
		}
	}
	if p.halted || p.paused.Load() {
		return nil
	}
	return p.fail(fmt.Errorf("%w: %d", ErrInvalidInstrAddr, p.pc))
}

// Step executes exactly one instruction, after delivering any pending
// signals. A returned error has halted the process.
func (p *Process) Step() error {
	if p.halted {
		return ErrProcessHalted
	}
	if err := p.Start(); err != nil {
		return err
	}
	if err := p.dispatchSignals(); err != nil {
		return p.fail(err)
	}
	if p.halted {
		p.publish()
		return nil
	}
	if err := p.checkPC(); err != nil {
		return p.fail(err)
	}

	in := p.instrs[p.pc]
	handler, info, err := p.lookup(in.Code)
	if err != nil {
		return p.fail(&StepError{PC: p.pc, Instr: in, Err: err})
	}

	p.jumped = false
	if err := handler(p, in); err != nil {
		return p.fail(&StepError{PC: p.pc, Instr: in, Err: err})
	}
	if !p.jumped && !p.halted {
		p.pc++
	}
	p.pub.steps.Add(1)

	switch {
	case p.gcRequested:
		p.gcRequested = false
		p.DoGC()
	case info.Allocates:
		p.MaybeGC()
	}
	p.publish()
	return nil
}

func (p *Process) lookup(c InstrCode) (Handler, InstrInfo, error) {
	info, ok := instrInfoTable[c]
	if !ok || int(c) >= len(p.handlers) || p.handlers[c] == nil {
		return nil, InstrInfo{}, fmt.Errorf("%w: 0x%02X", ErrInvalidInstr, uint32(c))
	}
	return p.handlers[c], info, nil
}

// PauseExec stops Run at the next step boundary.
func (p *Process) PauseExec() {
	if !p.paused.Swap(true) {
		vmLog.Info("process paused")
	}
}

// ResumeExec clears a pause; the caller runs the process again.
func (p *Process) ResumeExec() {
	if p.paused.Swap(false) {
		vmLog.Info("process resumed")
	}
}

// Paused reports whether the pause flag is set.
func (p *Process) Paused() bool { return p.paused.Load() }

// Halt requests termination with the given exit code.
func (p *Process) Halt(code int64) {
	p.halt(code)
	p.publish()
}

func (p *Process) halt(code int64) {
	if p.halted {
		return
	}
	p.halted = true
	p.exitCode = code
	vmLog.Infof("process halted with exit code %d", code)
	if p.tracer != nil {
		p.tracer.OnExit(code, nil)
	}
}

// fail halts the process on a fault and returns err.
func (p *Process) fail(err error) error {
	if !p.halted {
		p.halted = true
		p.exitCode = -1
		vmLog.Errorf("process fault: %s", err)
		if p.tracer != nil {
			p.tracer.OnExit(p.exitCode, err)
		}
	}
	p.publish()
	return err
}

// checkPC faults unless pc addresses an instruction of the current frame's
// block. Falling off the end of a block lands here.
func (p *Process) checkPC() error {
	if p.pc < 0 || p.pc >= int64(len(p.instrs)) {
		return fmt.Errorf("%w: %d", ErrInvalidInstrAddr, p.pc)
	}
	if k := len(p.frames); k > 0 {
		c := p.frames[k-1].closure
		if p.pc < c.Start || p.pc >= c.Start+c.Len {
			return fmt.Errorf("%w: %d outside closure %d [%d, %d)",
				ErrInvalidInstrAddr, p.pc, c.ID, c.Start, c.Start+c.Len)
		}
	}
	return nil
}

func (p *Process) jumpTo(addr int64) error {
	if addr < 0 || addr > int64(len(p.instrs)) {
		return fmt.Errorf("%w: %d", ErrInvalidInstrAddr, addr)
	}
	p.pc = addr
	p.jumped = true
	return nil
}

// jumpRel jumps to an offset within the current frame's block.
func (p *Process) jumpRel(offset uint64) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	if offset > uint64(f.closure.Len) {
		return fmt.Errorf("%w: offset %d past closure %d of length %d",
			ErrInvalidInstrAddr, offset, f.closure.ID, f.closure.Len)
	}
	return p.jumpTo(f.closure.Start + int64(offset))
}

// ---------------------------------------------------------------------------
// Garbage collection
// ---------------------------------------------------------------------------

// MaybeGC collects when the configured rule says so.
func (p *Process) MaybeGC() bool {
	if p.gcInProgress || !ShouldGC(p.opts.Rule, p, p.opts.Cutoff) {
		return false
	}
	p.DoGC()
	return true
}

// DoGC runs a collection pass unconditionally.
func (p *Process) DoGC() GCStats {
	if p.gcInProgress {
		return GCStats{Scheme: p.heap.scheme.Name()}
	}
	p.gcInProgress = true
	defer func() { p.gcInProgress = false }()

	stats := p.gc.Collect(p.roots())
	p.pub.gcPasses.Add(1)
	if p.tracer != nil {
		p.tracer.OnGC(stats)
	}
	return stats
}

func (p *Process) freeNative(id ObjectID, obj *Object) {
	k, ok := obj.NativeKey()
	if !ok {
		return
	}
	if err := p.pool.Erase(k); err != nil {
		gcLog.Warningf("%s: %s", id, err)
	}
	obj.clearNative()
}

// roots returns every object the process references directly.
func (p *Process) roots() []ObjectID {
	roots := append([]ObjectID(nil), p.objStack...)
	for _, f := range p.frames {
		roots = append(roots, f.objects()...)
	}
	roots = append(roots, p.pendingArgs...)
	for _, id := range p.pendingKwargs {
		roots = append(roots, id)
	}
	if p.hasExc {
		roots = append(roots, p.exc)
	}
	return roots
}

// ---------------------------------------------------------------------------
// Stacks
// ---------------------------------------------------------------------------

func (p *Process) pushObj(id ObjectID) error {
	if err := p.heap.Retain(id); err != nil {
		return err
	}
	p.objStack = append(p.objStack, id)
	return nil
}

func (p *Process) popObj() (ObjectID, error) {
	n := len(p.objStack)
	if n == 0 {
		return 0, ErrObjectStackEmpty
	}
	id := p.objStack[n-1]
	p.objStack = p.objStack[:n-1]
	if err := p.heap.Release(id); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Process) topObj() (*Object, error) {
	n := len(p.objStack)
	if n == 0 {
		return nil, ErrObjectStackEmpty
	}
	return p.heap.At(p.objStack[n-1])
}

func (p *Process) pushFrame(c Closure, ret int64) *Frame {
	f := NewFrame(c, ret)
	p.frames = append(p.frames, f)
	return f
}

// popFrame removes the top frame and drops every reference it holds.
func (p *Process) popFrame() (*Frame, error) {
	n := len(p.frames)
	if n == 0 {
		return nil, ErrFrameNotFound
	}
	f := p.frames[n-1]
	p.frames = p.frames[:n-1]
	for _, id := range f.objects() {
		_ = p.heap.Release(id)
	}
	return f, nil
}

func (p *Process) pushEval(v types.Value) error {
	f, err := p.CurrentFrame()
	if err != nil {
		return err
	}
	f.PushEval(v)
	return nil
}

func (p *Process) popEval() (types.Value, error) {
	f, err := p.CurrentFrame()
	if err != nil {
		return types.Value{}, err
	}
	return f.PopEval()
}

// lookupVisible resolves a visible variable in the current frame, then in
// the nearest frames of each enclosing closure.
func (p *Process) lookupVisible(key uint64) (ObjectID, error) {
	if len(p.frames) == 0 {
		return 0, ErrFrameNotFound
	}
	want := p.frames[len(p.frames)-1].closure.ID
	for i := len(p.frames) - 1; i >= 0; i-- {
		f := p.frames[i]
		if f.closure.ID != want {
			continue
		}
		if id, ok := f.visible[key]; ok {
			return id, nil
		}
		want = f.closure.ParentID
		if want == NoParent {
			break
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrLocalVarNotFound, key)
}

// setException replaces the pending exception.
func (p *Process) setException(id ObjectID) error {
	if err := p.heap.Retain(id); err != nil {
		return err
	}
	if p.hasExc {
		_ = p.heap.Release(p.exc)
	}
	p.exc = id
	p.hasExc = true
	return nil
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

func (p *Process) PC() int64             { return p.pc }
func (p *Process) Heap() *Heap           { return p.heap }
func (p *Process) Pool() *NativePool     { return p.pool }
func (p *Process) Options() Options      { return p.opts }
func (p *Process) Halted() bool          { return p.halted }
func (p *Process) ExitCode() int64       { return p.exitCode }
func (p *Process) FrameDepth() int       { return len(p.frames) }
func (p *Process) ObjectStack() []ObjectID { return append([]ObjectID(nil), p.objStack...) }

// CurrentFrame returns the top of the call stack.
func (p *Process) CurrentFrame() (*Frame, error) {
	if len(p.frames) == 0 {
		return nil, ErrFrameNotFound
	}
	return p.frames[len(p.frames)-1], nil
}

// TopObject returns the object on top of the object stack.
func (p *Process) TopObject() (ObjectID, error) {
	if len(p.objStack) == 0 {
		return 0, ErrObjectStackEmpty
	}
	return p.objStack[len(p.objStack)-1], nil
}

// PendingException returns the pending VM exception, if any.
func (p *Process) PendingException() (ObjectID, bool) {
	return p.exc, p.hasExc
}

// NativeValue returns the native value attached to an object.
func (p *Process) NativeValue(id ObjectID) (types.Value, error) {
	obj, err := p.heap.At(id)
	if err != nil {
		return types.Value{}, err
	}
	k, ok := obj.NativeKey()
	if !ok {
		return types.Value{}, fmt.Errorf("%w: %s has none", ErrNativeHandleNotFound, id)
	}
	return p.pool.At(k)
}

// State returns the current execution state.
func (p *Process) State() State {
	s := State(p.pub.state.Load())
	if s == StateRunning && p.paused.Load() {
		return StatePaused
	}
	return s
}

// Stats returns a snapshot of the last published step.
func (p *Process) Stats() Stats {
	return Stats{
		State:       p.State(),
		PC:          p.pub.pc.Load(),
		HeapSize:    int(p.pub.heap.Load()),
		HeapMax:     p.opts.HeapMaxSize,
		PoolSize:    int(p.pub.pool.Load()),
		PoolMax:     p.opts.PoolMaxSize,
		Frames:      int(p.pub.frames.Load()),
		ObjectStack: int(p.pub.objStack.Load()),
		Steps:       p.pub.steps.Load(),
		GCPasses:    p.pub.gcPasses.Load(),
		ExitCode:    p.pub.exitCode.Load(),
	}
}

func (p *Process) publish() {
	state := StateConstructed
	switch {
	case p.halted:
		state = StateHalted
	case p.started:
		state = StateRunning
	}
	p.pub.state.Store(uint32(state))
	p.pub.pc.Store(p.pc)
	p.pub.heap.Store(int64(p.heap.Size()))
	p.pub.pool.Store(int64(p.pool.Size()))
	p.pub.frames.Store(int64(len(p.frames)))
	p.pub.objStack.Store(int64(len(p.objStack)))
	p.pub.exitCode.Store(p.exitCode)
}
