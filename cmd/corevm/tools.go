package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/corevm/image"
	"github.com/chazu/corevm/server"
	"github.com/chazu/corevm/trace"
	"github.com/dustin/go-humanize"
)

// handleAsmCommand processes `corevm asm`.
func handleAsmCommand(args []string) int {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	out := fs.String("o", "", "Output image path (default: source with .cvmi extension)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: corevm asm [-o out.cvmi] <src.cvma>")
		return 2
	}

	src := fs.Arg(0)
	f, err := os.Open(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	prog, err := image.Assemble(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", src, err)
		return 1
	}
	dst := *out
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + ".cvmi"
	}
	if err := image.WriteFile(dst, prog); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	digest, _ := image.Digest(prog)
	fmt.Printf("Wrote %s (%d instructions, digest %016x)\n", dst, prog.Len(), digest)
	return 0
}

// handleDisCommand processes `corevm dis`.
func handleDisCommand(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: corevm dis <image>")
		return 2
	}
	prog, err := loadProgram(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if digest, err := image.Digest(prog); err == nil {
		fmt.Printf("; %s  version %d  digest %016x\n", args[0], prog.Version, digest)
	}
	if err := image.Disassemble(os.Stdout, prog); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// handleInspectCommand processes `corevm inspect`.
//
//	corevm inspect stats
//	corevm inspect pause
//	corevm inspect resume
//	corevm inspect signal <n>
func handleInspectCommand(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Inspection server base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: corevm inspect [-addr url] [stats|pause|resume|signal <n>]")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := server.NewClient(nil, *addr)

	var err error
	switch fs.Arg(0) {
	case "stats":
		var fields map[string]any
		fields, err = client.Stats(ctx)
		if err == nil {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Printf("%-14s %v\n", k, fields[k])
			}
		}
	case "pause":
		err = client.Pause(ctx)
	case "resume":
		err = client.Resume(ctx)
	case "signal":
		if fs.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "Usage: corevm inspect signal <n>")
			return 2
		}
		n, perr := strconv.ParseUint(fs.Arg(1), 0, 32)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Error: bad signal %q\n", fs.Arg(1))
			return 2
		}
		err = client.Signal(ctx, uint32(n))
	default:
		fmt.Fprintf(os.Stderr, "Unknown inspect action: %s\n", fs.Arg(0))
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// handleRunsCommand processes `corevm runs`.
func handleRunsCommand(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	db := fs.String("db", "corevm-trace.db", "Trace database")
	gc := fs.Bool("gc", false, "List GC passes of each run")
	fs.Parse(args)

	store, err := trace.Open(*db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, r := range runs {
		status := "running"
		if r.Finished {
			status = fmt.Sprintf("exit %d", r.ExitCode)
			if r.Error != "" {
				status += ": " + r.Error
			}
		}
		fmt.Printf("%s  %s  %s instrs  %s/%s  %s\n",
			r.ID, humanize.Time(r.Started), humanize.Comma(int64(r.Instrs)), r.Scheme, r.Rule, status)

		if !*gc {
			continue
		}
		passes, err := store.GCPasses(r.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		for i, p := range passes {
			fmt.Printf("    gc %-4d %d -> %d (%d swept) in %s\n", i+1, p.Before, p.After, p.Swept, p.Duration)
		}
	}
	return 0
}
