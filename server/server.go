// Package server exposes a running coreVM process for inspection. It
// serves Connect (HTTP/JSON and gRPC-compatible) unary procedures on one
// port and the standard gRPC health service on another.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/chazu/corevm/vm"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var log = commonlog.GetLogger("corevm.server")

const (
	// InspectServiceName is the fully-qualified name of the inspection service.
	InspectServiceName = "corevm.v1.InspectService"

	StatsProcedure  = "/" + InspectServiceName + "/Stats"
	PauseProcedure  = "/" + InspectServiceName + "/Pause"
	ResumeProcedure = "/" + InspectServiceName + "/Resume"
	SignalProcedure = "/" + InspectServiceName + "/Signal"
)

// Server is the inspection server wrapping a runner.
type Server struct {
	runner *Runner
	mux    *http.ServeMux
	health *health.Server
}

// New creates a Server for r.
func New(r *Runner) *Server {
	s := &Server{
		runner: r,
		mux:    http.NewServeMux(),
		health: health.NewServer(),
	}

	s.mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, s.stats))
	s.mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, s.pause))
	s.mux.Handle(ResumeProcedure, connect.NewUnaryHandler(ResumeProcedure, s.resume))
	s.mux.Handle(SignalProcedure, connect.NewUnaryHandler(SignalProcedure, s.signal))

	s.SetServing(true)
	return s
}

// Handler returns the HTTP handler serving the Connect procedures.
func (s *Server) Handler() http.Handler { return s.mux }

// Health returns the gRPC health server.
func (s *Server) Health() *health.Server { return s.health }

// SetServing updates the health status of the server and the inspection
// service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(InspectServiceName, status)
}

// RegisterGRPC registers the health service on gs.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.health)
}

// ---------------------------------------------------------------------------
// Serving
// ---------------------------------------------------------------------------

// ListenAndServe serves the Connect procedures on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Noticef("inspection server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, StatsProcedure)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// ServeGRPC serves the health service on addr until ctx is done.
func (s *Server) ServeGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	s.RegisterGRPC(gs)
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	log.Noticef("gRPC health service listening on %s", lis.Addr())
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

func (s *Server) stats(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(StatsFields(s.runner.Process().Stats()))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Server) pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if !s.runner.Pause() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, vm.ErrProcessHalted)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (s *Server) resume(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	if !s.runner.Resume() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, vm.ErrProcessHalted)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (s *Server) signal(
	ctx context.Context,
	req *connect.Request[wrapperspb.UInt32Value],
) (*connect.Response[emptypb.Empty], error) {
	if s.runner.Process().State() == vm.StateHalted {
		return nil, connect.NewError(connect.CodeFailedPrecondition, vm.ErrProcessHalted)
	}
	if !s.runner.Signal(vm.Signal(req.Msg.GetValue())) {
		return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("signal queue full"))
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// StatsFields flattens a stats snapshot for structpb.
func StatsFields(st vm.Stats) map[string]any {
	return map[string]any{
		"state":        st.State.String(),
		"pc":           st.PC,
		"heap_size":    st.HeapSize,
		"heap_max":     st.HeapMax,
		"pool_size":    st.PoolSize,
		"pool_max":     st.PoolMax,
		"frames":       st.Frames,
		"object_stack": st.ObjectStack,
		"steps":        st.Steps,
		"gc_passes":    st.GCPasses,
		"exit_code":    st.ExitCode,
	}
}
