// corevm CLI - runs, assembles and inspects coreVM program images
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	args := os.Args[2:]
	var code int
	switch os.Args[1] {
	case "run":
		code = handleRunCommand(args)
	case "asm":
		code = handleAsmCommand(args)
	case "dis":
		code = handleDisCommand(args)
	case "inspect":
		code = handleInspectCommand(args)
	case "runs":
		code = handleRunsCommand(args)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: corevm <command> [options] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run <image>            Run a program image (.cvmi) or assembly file (.cvma)\n")
	fmt.Fprintf(os.Stderr, "  asm -o <out> <src>     Assemble a .cvma file into an image\n")
	fmt.Fprintf(os.Stderr, "  dis <image>            Print an image as assembly\n")
	fmt.Fprintf(os.Stderr, "  inspect <action>       Talk to a running process: stats, pause, resume, signal <n>\n")
	fmt.Fprintf(os.Stderr, "  runs                   List runs recorded in a trace database\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  corevm run prog.cvmi\n")
	fmt.Fprintf(os.Stderr, "  corevm run -http :8080 -grpc :8081 prog.cvmi\n")
	fmt.Fprintf(os.Stderr, "  corevm inspect -addr http://localhost:8080 pause\n")
	fmt.Fprintf(os.Stderr, "\nRun 'corevm <command> -h' for command options.\n")
}
