package container

import (
	"errors"
	"math/rand"
	"testing"
)

func TestCreateAndAt(t *testing.T) {
	c := New[int](0)

	h, v, ok := c.Create()
	if !ok {
		t.Fatal("Create failed on unbounded container")
	}
	*v = 42

	got, err := c.At(h)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if *got != 42 {
		t.Errorf("At = %d, want 42", *got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestZeroHandleIsNeverLive(t *testing.T) {
	c := New[int](0)
	c.Create()

	if _, err := c.At(Handle{}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("At(zero) err = %v, want ErrInvalidAddress", err)
	}
}

func TestDestroyInvalidatesHandle(t *testing.T) {
	c := New[string](0)
	h, _, _ := c.Create()

	if err := c.Destroy(h); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := c.At(h); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("At after Destroy err = %v, want ErrInvalidAddress", err)
	}
	if err := c.Destroy(h); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("double Destroy err = %v, want ErrInvalidAddress", err)
	}

	// The slot is reused, but under a new generation.
	h2, _, _ := c.Create()
	if h2.Index != h.Index {
		t.Fatalf("expected slot reuse, got index %d want %d", h2.Index, h.Index)
	}
	if h2 == h {
		t.Error("reused slot kept the old generation")
	}
	if _, err := c.At(h); !errors.Is(err, ErrInvalidAddress) {
		t.Error("stale handle reached the new occupant")
	}
}

func TestCapacityExhaustion(t *testing.T) {
	c := New[int](2)
	c.Create()
	c.Create()

	if _, _, ok := c.Create(); ok {
		t.Error("Create succeeded past capacity")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestPackRoundTrip(t *testing.T) {
	h := Handle{Index: 7, Gen: 3}
	if got := Unpack(h.Pack()); got != h {
		t.Errorf("Unpack(Pack(%v)) = %v", h, got)
	}
}

// TestRandomInterleaving checks that Len always equals the number of live
// handles and that every dead handle is rejected.
func TestRandomInterleaving(t *testing.T) {
	c := New[int](64)
	rng := rand.New(rand.NewSource(1))

	live := map[Handle]bool{}
	var dead []Handle

	for i := 0; i < 2000; i++ {
		if rng.Intn(3) > 0 {
			h, _, ok := c.Create()
			if ok {
				live[h] = true
			} else if len(live) != 64 {
				t.Fatalf("Create failed with %d live", len(live))
			}
			continue
		}
		for h := range live {
			if err := c.Destroy(h); err != nil {
				t.Fatalf("Destroy(%v): %v", h, err)
			}
			delete(live, h)
			dead = append(dead, h)
			break
		}

		if c.Len() != len(live) {
			t.Fatalf("Len = %d, want %d", c.Len(), len(live))
		}
	}

	for _, h := range dead {
		if live[h] {
			continue
		}
		if _, err := c.At(h); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("dead handle %v still addressable", h)
		}
	}
}

func TestAllAllowsDestroyDuringIteration(t *testing.T) {
	c := New[int](0)
	for i := 0; i < 10; i++ {
		_, v, _ := c.Create()
		*v = i
	}

	seen := 0
	for h, v := range c.All() {
		seen++
		if *v%2 == 0 {
			if err := c.Destroy(h); err != nil {
				t.Fatalf("Destroy during iteration: %v", err)
			}
		}
	}
	if seen != 10 {
		t.Errorf("visited %d records, want 10", seen)
	}
	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5", c.Len())
	}
}

func TestIteratorErase(t *testing.T) {
	c := New[int](0)
	for i := 0; i < 4; i++ {
		_, v, _ := c.Create()
		*v = i
	}

	for it := c.Begin(); it.Valid(); {
		if *it.Value() == 1 || *it.Value() == 2 {
			it = c.Erase(it)
			continue
		}
		it = it.Next()
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	// Erase at end is a no-op.
	end := c.Erase(c.End())
	if end.Valid() || c.Len() != 2 {
		t.Error("Erase(End) changed the container")
	}
}

func TestRecordPointersSurviveGrowth(t *testing.T) {
	c := New[int](0)
	h, first, _ := c.Create()
	*first = 7

	for i := 0; i < 1000; i++ {
		c.Create()
	}

	*first = 8
	got, err := c.At(h)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if *got != 8 {
		t.Errorf("record = %d, want 8", *got)
	}
}
