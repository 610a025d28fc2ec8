package vm

import (
	"time"

	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("corevm.gc")

// GCStats describes one collection pass.
type GCStats struct {
	Scheme    string
	Before    int // live objects before the pass
	After     int // live objects after the pass
	Swept     int
	Duration  time.Duration
	Timestamp time.Time
}

// FreeCallback is invoked for every object about to be erased.
type FreeCallback func(id ObjectID, obj *Object)

// GarbageCollector sweeps a heap with the heap's scheme.
type GarbageCollector struct {
	Heap     *Heap
	Callback FreeCallback
}

// NewGarbageCollector returns a collector for h.
func NewGarbageCollector(h *Heap, cb FreeCallback) *GarbageCollector {
	return &GarbageCollector{Heap: h, Callback: cb}
}

// Collect runs the scheme pass over roots and then frees every collectible
// object. It never fails.
func (gc *GarbageCollector) Collect(roots []ObjectID) GCStats {
	start := time.Now()
	before := gc.Heap.Size()

	gc.Heap.scheme.Prepare(gc.Heap, roots)
	swept := gc.Free()

	stats := GCStats{
		Scheme:    gc.Heap.scheme.Name(),
		Before:    before,
		After:     gc.Heap.Size(),
		Swept:     swept,
		Duration:  time.Since(start),
		Timestamp: start,
	}
	gcLog.Debugf("%s pass: %d -> %d objects (%d swept) in %s",
		stats.Scheme, stats.Before, stats.After, stats.Swept, stats.Duration)
	return stats
}

// Free makes one pass over the heap and erases collectible objects. Under
// reference counting, referents released by an erased object are picked up
// later in the same pass when they sit after it, otherwise on the next pass.
func (gc *GarbageCollector) Free() int {
	h := gc.Heap
	swept := 0

	it := h.objs.Begin()
	for it.Valid() {
		obj := it.Value()
		if !h.scheme.Collectible(obj) {
			it = it.Next()
			continue
		}

		if gc.Callback != nil {
			gc.Callback(obj.ID, obj)
		}
		for _, ref := range obj.Referents() {
			// Referents erased earlier in this pass are already gone.
			_ = h.Release(ref)
		}
		it = h.objs.Erase(it)
		swept++
	}
	return swept
}
