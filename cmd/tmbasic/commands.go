package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tmbasic-lang/tmbasic-sub000/doctest"
	"github.com/tmbasic-lang/tmbasic-sub000/manifest"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/server"
	"github.com/tmbasic-lang/tmbasic-sub000/store"
	"github.com/tmbasic-lang/tmbasic-sub000/vm"
)

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("tmbasic "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// reportBuildError prints compile diagnostics, or the error itself.
func (c *cli) reportBuildError(t *target, err error) {
	if text, ok := formatCompileErrors(t.name, err); ok {
		fmt.Fprint(c.stderr, text)
		return
	}
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
}

// handleBuildCommand processes `tmbasic build`.
//
//	tmbasic build                 # project: writes [build] output
//	tmbasic build -o x.tmb a.bas  # loose file
func (c *cli) handleBuildCommand(args []string) error {
	fs := c.flags("build")
	output := fs.String("o", "", "Artifact path (default from tmbasic.toml, or the source name with .tmb)")
	disasm := fs.Bool("disasm", false, "Print the bytecode listing after building")
	noCache := fs.Bool("no-cache", false, "Compile without consulting the project cache")
	if err := fs.Parse(args); err != nil {
		return err
	}

	t, err := resolveTarget(fs.Args())
	if err != nil {
		return err
	}
	if t.artifact != nil {
		return fmt.Errorf("%s is already an artifact", t.name)
	}
	a, err := t.build(!*noCache)
	if err != nil {
		c.reportBuildError(t, err)
		return errors.New("build failed")
	}

	out := *output
	if out == "" {
		if t.manifest != nil {
			out = t.manifest.OutputPath()
		} else {
			out = t.name[:len(t.name)-len(filepath.Ext(t.name))] + ".tmb"
		}
	}
	if err := store.WriteArtifact(out, a); err != nil {
		return err
	}
	log.Infof("wrote %s", out)

	if *disasm {
		return c.printListing(a)
	}
	return nil
}

func (c *cli) printListing(a *store.Artifact) error {
	p, err := a.LoadProgram()
	if err != nil {
		return err
	}
	text, err := bytecode.DisassembleProgram(p, a.Procedures)
	fmt.Fprint(c.stdout, text)
	return err
}

// handleDisasmCommand processes `tmbasic disasm`.
func (c *cli) handleDisasmCommand(args []string) error {
	fs := c.flags("disasm")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := resolveTarget(fs.Args())
	if err != nil {
		return err
	}
	a, err := t.build(true)
	if err != nil {
		c.reportBuildError(t, err)
		return errors.New("build failed")
	}
	return c.printListing(a)
}

// handleCheckCommand processes `tmbasic check`. It exits 1 when the
// program has compile errors.
func (c *cli) handleCheckCommand(args []string) int {
	fs := c.flags("check")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	t, err := resolveTarget(fs.Args())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := t.build(false); err != nil {
		c.reportBuildError(t, err)
		return 1
	}
	fmt.Fprintf(c.stdout, "%s: ok\n", t.name)
	return 0
}

// handleRunCommand processes `tmbasic run`. The exit status is 1 when the
// program fails to build or ends with an error.
func (c *cli) handleRunCommand(args []string) int {
	fs := c.flags("run")
	maxCycles := fs.Int("max-cycles", 0, "Instructions per scheduling slice (default from tmbasic.toml)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	t, err := resolveTarget(fs.Args())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	_, p, err := t.program(true)
	if err != nil {
		c.reportBuildError(t, err)
		return 1
	}

	slice := manifest.DefaultMaxCycles
	input := c.stdin
	if t.manifest != nil {
		slice = t.manifest.Run.MaxCycles
		if path := t.manifest.InputPath(); path != "" {
			f, err := os.Open(path)
			if err != nil {
				fmt.Fprintf(c.stderr, "Error: %v\n", err)
				return 1
			}
			defer f.Close()
			input = f
		}
	}
	if *maxCycles > 0 {
		slice = *maxCycles
	}

	if err := execute(p, input, c.stdout, slice); err != nil {
		if u, ok := vm.Uncaught(err); ok {
			fmt.Fprintf(c.stderr, "Uncaught %s\n", u.Error())
		} else {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func execute(p *bytecode.Program, stdin io.Reader, stdout io.Writer, slice int) error {
	in, err := vm.NewInterpreter(p, vm.NewConsole(stdin, stdout))
	if err != nil {
		return err
	}
	for {
		more, err := in.Run(slice)
		if err != nil || !more {
			return err
		}
	}
}

// handleTestCommand processes `tmbasic test`. Without arguments it runs
// tests/*.md and tests/*.txtar next to tmbasic.toml.
func (c *cli) handleTestCommand(args []string) int {
	fs := c.flags("test")
	verbose := fs.Bool("verbose", false, "List every case, not only failures")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	files := fs.Args()
	if len(files) == 0 {
		found, err := projectTests()
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		files = found
	}
	if len(files) == 0 {
		fmt.Fprintln(c.stderr, "No test files found")
		return 1
	}

	runner := doctest.NewRunner(nil)
	passed, failed := 0, 0
	for _, file := range files {
		results, err := runner.RunFile(file)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			failed++
			continue
		}
		for _, r := range results {
			if r.Passed() {
				passed++
				if *verbose {
					fmt.Fprintf(c.stdout, "ok   %s:%d %s\n", file, r.Case.Line, r.Case.Name)
				}
				continue
			}
			failed++
			fmt.Fprintf(c.stdout, "FAIL %s:%d %s\n     %s\n", file, r.Case.Line, r.Case.Name, r.Failure)
		}
	}
	fmt.Fprintf(c.stdout, "%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func projectTests() ([]string, error) {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	dir := "tests"
	if m != nil {
		dir = filepath.Join(m.Dir, "tests")
	}
	var files []string
	for _, pattern := range []string{"*.md", "*.txtar"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// handleServeCommand processes `tmbasic serve`.
func (c *cli) handleServeCommand(args []string) error {
	fs := c.flags("serve")
	addr := fs.String("addr", ":4567", "Connect (HTTP) listen address")
	grpcAddr := fs.String("grpc-addr", "", "gRPC listen address (disabled when empty)")
	budget := fs.Int("budget", server.DefaultRunBudget, "Default instruction budget of Run requests")
	cacheAge := fs.Duration("cache-max-age", 30*24*time.Hour, "Drop cached builds older than this at startup (0 keeps all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := []server.ServerOption{server.WithRunBudget(*budget)}
	if m, err := manifest.FindAndLoad("."); err == nil && m != nil {
		t := &target{manifest: m}
		cache, err := t.openCache()
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer cache.Close()
		if *cacheAge > 0 {
			n, err := cache.Prune(time.Now().Add(-*cacheAge))
			if err != nil {
				return fmt.Errorf("pruning cache: %w", err)
			}
			log.Infof("pruned %d cached builds", n)
		}
		opts = append(opts, server.WithCache(cache))
	}

	srv := server.New(opts...)
	defer srv.Stop()

	errs := make(chan error, 2)
	if *grpcAddr != "" {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			return err
		}
		go func() { errs <- srv.ServeGRPC(lis) }()
	}
	go func() { errs <- srv.ListenAndServe(*addr) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errs:
		return err
	case <-stop:
		return nil
	}
}

// handleLspCommand processes `tmbasic lsp`.
func (c *cli) handleLspCommand(args []string) error {
	fs := c.flags("lsp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return server.NewLSP(nil).Run()
}
