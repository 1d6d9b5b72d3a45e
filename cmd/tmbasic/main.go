// tmbasic CLI - compiles, runs and tests TMBASIC programs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli carries the standard streams through the subcommands.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: tmbasic [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  build [-o out.tmb] [-disasm] [file.bas]   Compile to a bytecode artifact\n")
	fmt.Fprintf(w, "  run [-max-cycles n] [file.bas|file.tmb]   Compile if needed and run\n")
	fmt.Fprintf(w, "  check [file.bas]                          Report compile errors\n")
	fmt.Fprintf(w, "  disasm [file.bas|file.tmb]                Print the bytecode listing\n")
	fmt.Fprintf(w, "  test [files...]                           Run Markdown and txtar doc tests\n")
	fmt.Fprintf(w, "  serve [-addr :4567] [-grpc-addr :4568]    Start the compile/run service\n")
	fmt.Fprintf(w, "  lsp                                       Start the language server on stdio\n")
	fmt.Fprintf(w, "  version                                   Print the version\n")
	fmt.Fprintf(w, "\nWithout a file argument, commands use the tmbasic.toml project found\n")
	fmt.Fprintf(w, "in the current directory or one of its parents.\n")
	fmt.Fprintf(w, "\nOptions:\n")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tmbasic", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Int("v", 0, "Log verbosity, higher logs more")
	logFile := fs.String("log", "", "Write logs to this file instead of stderr")
	fs.Usage = func() {
		usage(stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var logPath *string
	if *logFile != "" {
		logPath = logFile
	}
	commonlog.Configure(*verbose, logPath)

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	command, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch command {
	case "build":
		err = c.handleBuildCommand(rest)
	case "run":
		return c.handleRunCommand(rest)
	case "check":
		return c.handleCheckCommand(rest)
	case "disasm":
		err = c.handleDisasmCommand(rest)
	case "test":
		return c.handleTestCommand(rest)
	case "serve":
		err = c.handleServeCommand(rest)
	case "lsp":
		err = c.handleLspCommand(rest)
	case "version":
		fmt.Fprintf(stdout, "tmbasic %s\n", version)
	case "help", "-h", "--help":
		fs.Usage()
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		fs.Usage()
		return 2
	}
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var log = commonlog.GetLogger("tmbasic")
