package doctest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/vm"
)

var log = commonlog.GetLogger("tmbasic.doctest")

// MaxCycles bounds each case so that a runaway loop fails the case
// instead of hanging the run.
var MaxCycles = 50_000_000

// Result is the outcome of one case.
type Result struct {
	Case   *Case
	Output string
	Error  string // uncaught error or compile diagnostic, if any
	// Failure describes the mismatch; empty when the case passed.
	Failure string
}

// Passed reports whether the case met its expectations.
func (r *Result) Passed() bool { return r.Failure == "" }

// Runner compiles and runs cases with a shared compiler.
type Runner struct {
	compiler *compiler.Compiler
}

// NewRunner creates a Runner. c may be nil.
func NewRunner(c *compiler.Compiler) *Runner {
	if c == nil {
		c = compiler.NewCompiler()
	}
	return &Runner{compiler: c}
}

// Run loads path and runs every case in it.
func Run(path string) ([]*Result, error) {
	return NewRunner(nil).RunFile(path)
}

// RunFile loads path and runs every case in it.
func (r *Runner) RunFile(path string) ([]*Result, error) {
	cases, err := Load(path)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(cases))
	for _, c := range cases {
		results = append(results, r.RunCase(c))
	}
	return results, nil
}

// RunCase compiles and runs c and compares the results.
func (r *Runner) RunCase(c *Case) *Result {
	res := &Result{Case: c}
	log.Debugf("running %s:%d %s", c.File, c.Line, c.Name)

	prog, err := r.compiler.CompileText(c.Source)
	if err != nil {
		res.Error = compileErrorText(err)
		switch {
		case c.CompileError == "":
			res.Failure = "compile failed: " + res.Error
		case !strings.Contains(res.Error, c.CompileError):
			res.Failure = fmt.Sprintf("compile error %q does not contain %q", res.Error, c.CompileError)
		}
		return res
	}
	if c.CompileError != "" {
		res.Failure = fmt.Sprintf("expected compile error %q, but the program compiled", c.CompileError)
		return res
	}

	var out strings.Builder
	in, err := vm.NewInterpreter(prog.Program, vm.NewConsole(strings.NewReader(c.Input), &out))
	if err != nil {
		res.Failure = err.Error()
		return res
	}
	runErr := execute(in)
	res.Output = out.String()
	if runErr != nil {
		if u, ok := vm.Uncaught(runErr); ok {
			res.Error = u.Error()
		} else {
			res.Error = runErr.Error()
		}
	}

	switch {
	case res.Error != c.Error && c.Error == "":
		res.Failure = "unexpected error: " + res.Error
	case res.Error != c.Error:
		res.Failure = fmt.Sprintf("error = %q, want %q", res.Error, c.Error)
	case res.Output != c.Output:
		res.Failure = fmt.Sprintf("output = %q, want %q", res.Output, c.Output)
	}
	return res
}

var errTooManyCycles = errors.New("instruction limit exceeded")

func execute(in *vm.Interpreter) error {
	const slice = 10_000
	for used := 0; used < MaxCycles; used += slice {
		more, err := in.Run(slice)
		if err != nil || !more {
			return err
		}
	}
	return errTooManyCycles
}

// compileErrorText is the first diagnostic with its position.
func compileErrorText(err error) string {
	var list compiler.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return list[0].Error()
	}
	return err.Error()
}
