package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/chazu/corevm/vm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const haltSignal vm.Signal = 5

// newLoopRunner returns a runner over a process that spins until signal 5
// halts it with exit code 7.
func newLoopRunner() *Runner {
	opts := vm.DefaultOptions()
	opts.Output = io.Discard
	p := vm.NewProcess(opts)
	p.AppendInstrs(
		vm.Instr{Code: vm.JMP, Oprd1: 0},
	)
	p.HandleSignal(haltSignal, func(p *vm.Process, sig vm.Signal) error {
		p.Halt(7)
		return nil
	})
	return NewRunner(p)
}

type testEnv struct {
	Runner *Runner
	Server *Server
	Client *Client
	errc   chan error
	cancel context.CancelFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r := newLoopRunner()
	s := New(r)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	return &testEnv{
		Runner: r,
		Server: s,
		Client: NewClient(hs.Client(), hs.URL),
		errc:   errc,
		cancel: cancel,
	}
}

func (e *testEnv) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-e.errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
		return nil
	}
}

func waitForState(t *testing.T, p *vm.Process, want vm.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for p.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected state %s, got %s", want, p.State())
		}
		time.Sleep(time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// Connect procedures
// ---------------------------------------------------------------------------

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	waitForState(t, env.Runner.Process(), vm.StateRunning)

	fields, err := env.Client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if fields["state"] != "running" {
		t.Errorf("Expected state running, got %v", fields["state"])
	}
	if fields["frames"] != float64(1) {
		t.Errorf("Expected 1 frame, got %v", fields["frames"])
	}
	if fields["heap_max"] != float64(vm.DefaultOptions().HeapMaxSize) {
		t.Errorf("Expected heap_max %d, got %v", vm.DefaultOptions().HeapMaxSize, fields["heap_max"])
	}

	env.cancel()
	env.wait(t)
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t)
	p := env.Runner.Process()
	ctx := context.Background()

	if err := env.Client.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	waitForState(t, p, vm.StatePaused)

	// The step in flight when the flag was set may still complete.
	time.Sleep(10 * time.Millisecond)
	before := p.Stats().Steps
	time.Sleep(10 * time.Millisecond)
	if after := p.Stats().Steps; after != before {
		t.Errorf("paused process advanced from %d to %d steps", before, after)
	}

	if err := env.Client.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitForState(t, p, vm.StateRunning)

	deadline := time.Now().Add(5 * time.Second)
	for p.Stats().Steps == before {
		if time.Now().After(deadline) {
			t.Fatal("resumed process did not advance")
		}
		time.Sleep(time.Millisecond)
	}

	env.cancel()
	env.wait(t)
}

func TestSignalHalts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.Client.Signal(ctx, uint32(haltSignal)); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if err := env.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code := env.Runner.Process().ExitCode(); code != 7 {
		t.Errorf("Expected exit code 7, got %d", code)
	}

	// A halted process refuses control requests.
	err := env.Client.Pause(ctx)
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeFailedPrecondition {
		t.Errorf("Expected FailedPrecondition, got %v", err)
	}
	if err := env.Client.Signal(ctx, 1); connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("Expected FailedPrecondition for signal, got %v", err)
	}
}

func TestSignalWhilePaused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.Client.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	waitForState(t, env.Runner.Process(), vm.StatePaused)

	// Signals queue while paused and are handled once resumed.
	if err := env.Client.Signal(ctx, uint32(haltSignal)); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if err := env.Client.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := env.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code := env.Runner.Process().ExitCode(); code != 7 {
		t.Errorf("Expected exit code 7, got %d", code)
	}
}

func TestCancelWhilePaused(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Client.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	waitForState(t, env.Runner.Process(), vm.StatePaused)

	env.cancel()
	if err := env.wait(t); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if code := env.Runner.Process().ExitCode(); code != -1 {
		t.Errorf("Expected exit code -1, got %d", code)
	}
	select {
	case <-env.Runner.Done():
	default:
		t.Error("Done not closed after Run returned")
	}
}

// ---------------------------------------------------------------------------
// gRPC health
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := New(newLoopRunner())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	gs := grpc.NewServer()
	s.RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	hc := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: InspectServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %s", resp.GetStatus())
	}

	s.SetServing(false)
	resp, err = hc.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING, got %s", resp.GetStatus())
	}
}

func TestStatsFields(t *testing.T) {
	f := StatsFields(vm.Stats{State: vm.StateHalted, PC: 3, ExitCode: 2, GCPasses: 4})
	if f["state"] != "halted" || f["pc"] != int64(3) || f["exit_code"] != int64(2) || f["gc_passes"] != uint64(4) {
		t.Errorf("unexpected fields: %v", f)
	}
}
