package vm

// RunInfo describes a process as it starts.
type RunInfo struct {
	Instrs  int
	Scheme  string
	Rule    string
	HeapMax int
	PoolMax int
}

// Tracer receives process lifecycle events. Calls are made from the
// goroutine driving the process.
type Tracer interface {
	OnStart(info RunInfo)
	OnGC(stats GCStats)
	// OnExit is called once; err is nil for a normal halt.
	OnExit(code int64, err error)
}
