package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/corevm/image"
	"github.com/chazu/corevm/trace"
	"github.com/chazu/corevm/vm"
)

const examplesDir = "../../examples"

func assembleExample(t *testing.T, name string) *image.Program {
	t.Helper()
	p, err := loadProgram(filepath.Join(examplesDir, name))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return p
}

func runExample(t *testing.T, prog *image.Program, opts vm.Options) (*vm.Process, string) {
	t.Helper()
	var out bytes.Buffer
	opts.Output = &out
	proc := vm.NewProcess(opts)
	if err := prog.Load(proc); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := proc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return proc, out.String()
}

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.cvma")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Examples
// ---------------------------------------------------------------------------

func TestExamples(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"hello.cvma", "hello, coreVM\n"},
		{"countdown.cvma", "3\n2\n1\nliftoff\n"},
		{"call.cvma", "adding\n42\n"},
		{"cycle.cvma", ""},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			proc, out := runExample(t, assembleExample(t, tt.file), vm.DefaultOptions())
			if out != tt.want {
				t.Errorf("Expected output %q, got %q", tt.want, out)
			}
			if proc.ExitCode() != 0 {
				t.Errorf("Expected exit 0, got %d", proc.ExitCode())
			}
		})
	}
}

func TestCycleExampleBySchemes(t *testing.T) {
	prog := assembleExample(t, "cycle.cvma")
	for _, tt := range []struct {
		scheme vm.Scheme
		want   int
	}{
		{vm.RefCountScheme{}, 2},
		{vm.MarkSweepScheme{}, 0},
	} {
		opts := vm.DefaultOptions()
		opts.Scheme = tt.scheme
		proc, _ := runExample(t, prog, opts)
		if proc.Heap().Size() != tt.want {
			t.Errorf("%s: Expected heap size %d, got %d", tt.scheme.Name(), tt.want, proc.Heap().Size())
		}
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestAsmCommand(t *testing.T) {
	src, err := os.ReadFile(filepath.Join(examplesDir, "call.cvma"))
	if err != nil {
		t.Fatal(err)
	}
	in := writeSource(t, string(src))
	out := filepath.Join(t.TempDir(), "call.cvmi")

	if code := handleAsmCommand([]string{"-o", out, in}); code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	prog, err := image.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, got := runExample(t, prog, vm.DefaultOptions()); got != "adding\n42\n" {
		t.Errorf("Expected %q, got %q", "adding\n42\n", got)
	}
}

func TestRunCommandExitCode(t *testing.T) {
	path := writeSource(t, "EXIT 3\n")
	if code := handleRunCommand([]string{"-v", "-4", path}); code != 3 {
		t.Errorf("Expected exit 3, got %d", code)
	}
}

func TestRunCommandFault(t *testing.T) {
	path := writeSource(t, "INT32 1\nINT32 0\nDIV\nEXIT 0\n")
	if code := handleRunCommand([]string{"-v", "-4", path}); code != 1 {
		t.Errorf("Expected exit 1, got %d", code)
	}
}

func TestRunCommandRejectsBadFlags(t *testing.T) {
	path := writeSource(t, "EXIT 0\n")
	if code := handleRunCommand([]string{"-v", "-4", "-gc-rule", "sometimes", path}); code != 1 {
		t.Errorf("Expected exit 1, got %d", code)
	}
	if code := handleRunCommand([]string{"-v", "-4", filepath.Join(t.TempDir(), "missing.cvmi")}); code != 1 {
		t.Errorf("Expected exit 1 for a missing image, got %d", code)
	}
}

func TestRunCommandTrace(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	path := writeSource(t, "NEW\nPOP\nGC\nEXIT 0\n")
	if code := handleRunCommand([]string{"-v", "-4", "-trace", db, "-gc-scheme", "mark-sweep", path}); code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}

	store, err := trace.Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	runs, err := store.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Scheme != "mark-sweep" || !runs[0].Finished {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	passes, err := store.GCPasses(runs[0].ID)
	if err != nil {
		t.Fatalf("GCPasses: %v", err)
	}
	if len(passes) != 1 || passes[0].Swept != 1 {
		t.Errorf("unexpected gc passes: %+v", passes)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	st := vm.Stats{Steps: 12345, GCPasses: 2, HeapSize: 1, HeapMax: 65536, ExitCode: 0}
	printSummary(&buf, "prog.cvmi", st, 1500*time.Microsecond, nil)

	got := buf.String()
	for _, want := range []string{"prog.cvmi: exit 0", "12,345 steps", "2 GC passes", "heap 1/65,536"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("summary to a buffer must not be colored")
	}

	buf.Reset()
	printSummary(&buf, "prog.cvmi", vm.Stats{ExitCode: -1}, time.Millisecond, errors.New("boom"))
	if !strings.Contains(buf.String(), "fault: boom") {
		t.Errorf("Expected fault in summary, got %q", buf.String())
	}
}
