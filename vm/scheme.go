package vm

// ---------------------------------------------------------------------------
// GC schemes
// ---------------------------------------------------------------------------

// Scheme decides which objects are garbage and maintains whatever per-object
// state it needs to do so.
type Scheme interface {
	Name() string

	// Retain and Release are called on every reference write.
	Retain(o *Object)
	Release(o *Object)

	// Prepare runs the scheme-specific pass before a sweep.
	Prepare(h *Heap, roots []ObjectID)

	// Collectible reports whether the sweep may remove o.
	Collectible(o *Object) bool
}

type refCounter struct{}

func (refCounter) Retain(o *Object) { o.Refs++ }

func (refCounter) Release(o *Object) {
	if o.Refs > 0 {
		o.Refs--
	}
}

// RefCountScheme treats an object as garbage once nothing references it.
// Counts are maintained incrementally, so Prepare does nothing.
//
// Reference cycles are never reclaimed: two objects holding each other
// through attributes keep non-zero counts forever. Use MarkSweepScheme when
// programs build cyclic structures.
type RefCountScheme struct{ refCounter }

func (RefCountScheme) Name() string { return "refcount" }

func (RefCountScheme) Prepare(*Heap, []ObjectID) {}

func (RefCountScheme) Collectible(o *Object) bool {
	return o.Refs == 0 && !o.HasFlag(FlagNotCollectible)
}

// MarkSweepScheme marks everything reachable from the roots through
// attributes; unmarked objects are garbage. It keeps reference counts up to
// date for inspection but does not consult them.
type MarkSweepScheme struct{ refCounter }

func (MarkSweepScheme) Name() string { return "mark-sweep" }

func (MarkSweepScheme) Prepare(h *Heap, roots []ObjectID) {
	for _, obj := range h.All() {
		obj.Marked = false
	}

	work := append([]ObjectID(nil), roots...)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]

		obj, err := h.At(id)
		if err != nil || obj.Marked {
			continue
		}
		obj.Marked = true
		work = append(work, obj.Referents()...)
	}
}

func (MarkSweepScheme) Collectible(o *Object) bool {
	return !o.Marked && !o.HasFlag(FlagNotCollectible)
}

// SchemeByName returns the scheme for "refcount" or "mark-sweep".
func SchemeByName(name string) (Scheme, bool) {
	switch name {
	case "", "refcount":
		return RefCountScheme{}, true
	case "mark-sweep":
		return MarkSweepScheme{}, true
	}
	return nil, false
}
