package trace

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/chazu/corevm/vm"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func runTraced(t *testing.T, s *Store, opts vm.Options, instrs ...vm.Instr) error {
	t.Helper()
	opts.Output = io.Discard
	opts.Tracer = s
	p := vm.NewProcess(opts)
	p.AppendInstrs(instrs...)
	return p.Run(context.Background())
}

func TestStoreRecordsRun(t *testing.T) {
	s := openStore(t)

	opts := vm.DefaultOptions()
	opts.Rule = vm.RuleAlways
	err := runTraced(t, s, opts,
		vm.Instr{Code: vm.NEW},
		vm.Instr{Code: vm.POP},
		vm.Instr{Code: vm.NEW},
		vm.Instr{Code: vm.POP},
		vm.Instr{Code: vm.EXIT, Oprd1: 3},
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.ID != s.RunID() {
		t.Errorf("Expected run id %s, got %s", s.RunID(), r.ID)
	}
	if r.Instrs != 5 || r.Scheme != "refcount" || r.Rule != "always" {
		t.Errorf("unexpected run info: %+v", r)
	}
	if !r.Finished || r.ExitCode != 3 || r.Error != "" {
		t.Errorf("unexpected exit: finished=%v code=%d err=%q", r.Finished, r.ExitCode, r.Error)
	}

	passes, err := s.GCPasses(r.ID)
	if err != nil {
		t.Fatalf("GCPasses: %v", err)
	}
	// One pass after each NEW.
	if len(passes) != 2 {
		t.Fatalf("Expected 2 gc passes, got %d", len(passes))
	}
	if st := passes[0]; st.Scheme != "refcount" || st.Before != 1 || st.After != 1 {
		t.Errorf("first pass: %+v", st)
	}
	// The popped object is swept by the second pass.
	if st := passes[1]; st.Before != 2 || st.After != 1 || st.Swept != 1 {
		t.Errorf("second pass: %+v", st)
	}
}

func TestStoreRecordsFault(t *testing.T) {
	s := openStore(t)

	err := runTraced(t, s, vm.DefaultOptions(),
		vm.Instr{Code: vm.INT32, Oprd1: 1},
		vm.Instr{Code: vm.INT32, Oprd1: 0},
		vm.Instr{Code: vm.DIV},
		vm.Instr{Code: vm.EXIT},
	)
	if err == nil {
		t.Fatal("Expected division fault")
	}

	r, err := s.Run(s.RunID())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !r.Finished || r.ExitCode != -1 || r.Error == "" {
		t.Errorf("unexpected exit: finished=%v code=%d err=%q", r.Finished, r.ExitCode, r.Error)
	}
}

func TestStoreSeparatesRuns(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 3; i++ {
		if err := runTraced(t, s, vm.DefaultOptions(), vm.Instr{Code: vm.EXIT, Oprd1: uint64(i)}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	seen := map[string]bool{}
	for i, r := range runs {
		if seen[r.ID] {
			t.Errorf("duplicate run id %s", r.ID)
		}
		seen[r.ID] = true
		if r.ExitCode != int64(i) {
			t.Errorf("run %d: Expected exit %d, got %d", i, i, r.ExitCode)
		}
	}
}

func TestRunNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.Run("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestEventsBeforeStartAreIgnored(t *testing.T) {
	s := openStore(t)
	s.OnGC(vm.GCStats{Scheme: "refcount"})
	s.OnExit(0, nil)

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected no runs, got %d", len(runs))
	}
}
