package image

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/corevm/vm"
	"github.com/fxamacker/cbor/v2"
)

func sampleProgram() *Program {
	return New(
		vm.Instr{Code: vm.NEW},
		vm.Instr{Code: vm.INT32, Oprd1: 20},
		vm.Instr{Code: vm.SETHNDL},
		vm.Instr{Code: vm.PUTARG},
		vm.Instr{Code: vm.FRAME, Oprd1: 1},
		vm.Instr{Code: vm.GETHNDL},
		vm.Instr{Code: vm.PRINT},
		vm.Instr{Code: vm.EXIT, Oprd1: 0},
	).AddClosure(1, vm.MainClosure,
		vm.Instr{Code: vm.STR, Oprd1: 1},
		vm.Instr{Code: vm.PRINT},
		vm.Instr{Code: vm.GETARG},
		vm.Instr{Code: vm.GETHNDL},
		vm.Instr{Code: vm.INT32, Oprd1: 22},
		vm.Instr{Code: vm.ADD},
		vm.Instr{Code: vm.SETHNDL},
		vm.Instr{Code: vm.RTRN},
	).AddSignal(3,
		vm.Instr{Code: vm.RTRN},
	).SetEncoding(1, "adding")
}

func run(t *testing.T, p *Program) string {
	t.Helper()
	var out bytes.Buffer
	opts := vm.DefaultOptions()
	opts.Output = &out
	proc := vm.NewProcess(opts)
	if err := p.Load(proc); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := proc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestProgram_CBORRoundTrip(t *testing.T) {
	p := sampleProgram()

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Len() != p.Len() {
		t.Errorf("Len: got %d, want %d", got.Len(), p.Len())
	}
	if len(got.Closures) != 1 || got.Closures[0].ID != 1 || got.Closures[0].ParentID != vm.MainClosure {
		t.Errorf("Closures: %+v", got.Closures)
	}
	if got.Encodings[1] != "adding" {
		t.Errorf("Encodings: %v", got.Encodings)
	}
	if len(got.Signals) != 1 || got.Signals[0].Signal != 3 {
		t.Errorf("Signals: %+v", got.Signals)
	}

	// The decoded image executes exactly like the original.
	want := run(t, p)
	if out := run(t, got); out != want || out != "adding\n42\n" {
		t.Errorf("output: got %q, original %q", out, want)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(sampleProgram().SetEncoding(2, "b").SetEncoding(3, "c"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(sampleProgram().SetEncoding(3, "c").SetEncoding(2, "b"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding differs for equal programs")
	}
}

func TestDigest(t *testing.T) {
	a, err := Digest(sampleProgram().SetEncoding(2, "b").SetEncoding(3, "c"))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	b, err := Digest(sampleProgram().SetEncoding(3, "c").SetEncoding(2, "b"))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if a != b {
		t.Errorf("Expected equal digests, got %016x and %016x", a, b)
	}

	c, err := Digest(sampleProgram().SetEncoding(2, "x"))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if c == a {
		t.Error("Expected different digest for a different program")
	}
}

func TestUnmarshalRejectsForeignData(t *testing.T) {
	foreign, _ := cbor.Marshal(map[int]string{1: "NOPE", 2: "x"})
	if _, err := Unmarshal(foreign); err == nil {
		t.Error("expected error for foreign data")
	}

	bad, _ := cbor.Marshal(&Program{Magic: "NOPE", Version: 1})
	if _, err := Unmarshal(bad); !errors.Is(err, ErrBadMagic) {
		t.Errorf("bad magic err = %v", err)
	}

	future, _ := cbor.Marshal(&Program{Magic: Magic, Version: Version + 1})
	if _, err := Unmarshal(future); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("future version err = %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.cvmi")
	if err := WriteFile(path, sampleProgram()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if out := run(t, got); out != "adding\n42\n" {
		t.Errorf("output = %q", out)
	}
}

func TestLoadRejectsDuplicateClosure(t *testing.T) {
	p := New(vm.Instr{Code: vm.EXIT}).
		AddClosure(1, 0, vm.Instr{Code: vm.RTRN}).
		AddClosure(1, 0, vm.Instr{Code: vm.RTRN})

	proc := vm.NewProcess(vm.DefaultOptions())
	if err := p.Load(proc); !errors.Is(err, vm.ErrDuplicateClosure) {
		t.Errorf("Load err = %v", err)
	}
}
