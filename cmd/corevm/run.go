package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chazu/corevm/config"
	"github.com/chazu/corevm/image"
	"github.com/chazu/corevm/server"
	"github.com/chazu/corevm/trace"
	"github.com/chazu/corevm/vm"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"
)

// handleRunCommand processes `corevm run`.
func handleRunCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default: corevm.toml or corevm.yaml in the working directory)")
	verbose := fs.Int("v", -1, "Log verbosity, overrides config (-4 quiet .. 2 debug)")
	rule := fs.String("gc-rule", "", "GC rule: always, heap-size, pool-size")
	scheme := fs.String("gc-scheme", "", "GC scheme: refcount, mark-sweep")
	traceDB := fs.String("trace", "", "Record the run in this SQLite trace database")
	httpAddr := fs.String("http", "", "Serve the inspection service on this address")
	grpcAddr := fs.String("grpc", "", "Serve gRPC health on this address")
	linger := fs.Bool("linger", false, "Keep servers up after the process halts, until interrupted")
	summary := fs.Bool("summary", false, "Print a run summary to stderr")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: corevm run [options] <image>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Log.Verbosity = *verbose
		case "gc-rule":
			cfg.GC.Rule = *rule
		case "gc-scheme":
			cfg.GC.Scheme = *scheme
		case "trace":
			cfg.Trace.Enabled = true
			cfg.Trace.Path = *traceDB
		case "http":
			cfg.Server.HTTP = *httpAddr
		case "grpc":
			cfg.Server.GRPC = *grpcAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(cfg)

	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.Trace.Enabled {
		store, err := trace.Open(cfg.Trace.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: trace: %v\n", err)
			return 1
		}
		defer store.Close()
		opts.Tracer = store
	}

	path := fs.Arg(0)
	prog, err := loadProgram(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	proc := vm.NewProcess(opts)
	if err := prog.Load(proc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	runErr := run(ctx, cfg, server.NewRunner(proc), *linger)
	elapsed := time.Since(start)

	if *summary {
		printSummary(os.Stderr, path, proc.Stats(), elapsed, runErr)
	}
	switch {
	case errors.Is(runErr, context.Canceled):
		return 130
	case runErr != nil:
		if !*summary {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		}
		return 1
	}
	return int(proc.ExitCode())
}

// run drives the process and, when configured, the inspection servers.
// Servers stop when the process halts unless linger is set.
func run(ctx context.Context, cfg *config.Config, r *server.Runner, linger bool) error {
	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServers := context.WithCancel(gctx)
	defer stopServers()

	var srv *server.Server
	if cfg.Server.HTTP != "" || cfg.Server.GRPC != "" {
		srv = server.New(r)
	}
	if cfg.Server.HTTP != "" {
		g.Go(func() error { return srv.ListenAndServe(srvCtx, cfg.Server.HTTP) })
	}
	if cfg.Server.GRPC != "" {
		g.Go(func() error { return srv.ServeGRPC(srvCtx, cfg.Server.GRPC) })
	}

	g.Go(func() error {
		err := r.Run(gctx)
		if srv != nil {
			srv.SetServing(false)
		}
		if !linger || srv == nil {
			stopServers()
		}
		return err
	})
	return g.Wait()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FindAndLoad(".")
}

func configureLogging(cfg *config.Config) {
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

// loadProgram reads an image, or assembles a .cvma source file.
func loadProgram(path string) (*image.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".cvma") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return image.Assemble(f)
	}
	return image.ReadFile(path)
}

// ---------------------------------------------------------------------------
// Summary
// ---------------------------------------------------------------------------

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printSummary(w io.Writer, path string, st vm.Stats, elapsed time.Duration, runErr error) {
	status := fmt.Sprintf("exit %d", st.ExitCode)
	color := ansiGreen
	if runErr != nil || st.ExitCode != 0 {
		color = ansiRed
	}
	if runErr != nil {
		status = fmt.Sprintf("fault: %v", runErr)
	}
	if useColor(w) {
		status = color + status + ansiReset
	}

	size := ""
	if fi, err := os.Stat(path); err == nil {
		size = ", image " + humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(w, "%s: %s after %s steps in %s (%s GC passes, heap %s/%s, pool %s/%s%s)\n",
		filepath.Base(path), status,
		humanize.Comma(int64(st.Steps)), elapsed.Round(time.Microsecond),
		humanize.Comma(int64(st.GCPasses)),
		humanize.Comma(int64(st.HeapSize)), humanize.Comma(int64(st.HeapMax)),
		humanize.Comma(int64(st.PoolSize)), humanize.Comma(int64(st.PoolMax)),
		size)
}
