package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/store"
	"github.com/tmbasic-lang/tmbasic-sub000/vm"
)

const (
	// CompilerServiceName is the fully-qualified name of the service.
	CompilerServiceName = "tmbasic.v1.CompilerService"
	// CompileProcedure is the path of the Compile RPC.
	CompileProcedure = "/tmbasic.v1.CompilerService/Compile"
	// RunProcedure is the path of the Run RPC.
	RunProcedure = "/tmbasic.v1.CompilerService/Run"
)

const (
	// DefaultRunBudget bounds the instructions a Run request may execute
	// when it does not set maxCycles.
	DefaultRunBudget = 10_000_000
	runSlice         = 10_000
)

// CompilerService compiles and runs programs on behalf of remote clients.
// Requests and responses are google.protobuf.Struct messages.
type CompilerService struct {
	worker   *Worker
	programs *ProgramStore
	cache    *store.Cache
	budget   int
}

// NewCompilerService creates a CompilerService. cache may be nil.
func NewCompilerService(worker *Worker, programs *ProgramStore, cache *store.Cache) *CompilerService {
	return &CompilerService{
		worker:   worker,
		programs: programs,
		cache:    cache,
		budget:   DefaultRunBudget,
	}
}

// Compile compiles {source} and answers
// {ok, diagnostics, procedures, programId, cached}.
func (s *CompilerService) Compile(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	out, err := s.compile(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(out), nil
}

// Run runs {source} or a previously compiled {programId} with the given
// {input} and answers {ok, output, error}. Compile failures answer
// ok=false with the diagnostics.
func (s *CompilerService) Run(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	out, err := s.run(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(out), nil
}

// buildOutcome is the worker's answer to a build job.
type buildOutcome struct {
	artifact *store.Artifact
	cached   bool
	err      error
}

func (s *CompilerService) build(source string) (*buildOutcome, error) {
	result, err := s.worker.Do(func(c *compiler.Compiler) any {
		a, _, cached, err := store.Build(c, s.cache, source)
		return &buildOutcome{artifact: a, cached: cached, err: err}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	outcome := result.(*buildOutcome)
	var list compiler.ErrorList
	if outcome.err != nil && !errors.As(outcome.err, &list) {
		return nil, connect.NewError(connect.CodeInternal, outcome.err)
	}
	return outcome, nil
}

func (s *CompilerService) compile(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	source := stringField(msg, "source")
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	outcome, err := s.build(source)
	if err != nil {
		return nil, err
	}
	if outcome.err != nil {
		return newStruct(map[string]any{
			"ok":          false,
			"diagnostics": diagnosticsValue(diagnosticsOf(outcome.err)),
		})
	}

	id := s.programs.Add(outcome.artifact)
	return newStruct(map[string]any{
		"ok":          true,
		"diagnostics": []any{},
		"procedures":  proceduresValue(outcome.artifact.Procedures),
		"programId":   id,
		"cached":      outcome.cached,
	})
}

func (s *CompilerService) run(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	var artifact *store.Artifact
	if id := stringField(msg, "programId"); id != "" {
		a, ok := s.programs.Lookup(id)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("program %s not found", id))
		}
		artifact = a
	} else {
		source := stringField(msg, "source")
		if source == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source or programId is required"))
		}
		outcome, err := s.build(source)
		if err != nil {
			return nil, err
		}
		if outcome.err != nil {
			diags := diagnosticsOf(outcome.err)
			return newStruct(map[string]any{
				"ok":          false,
				"output":      "",
				"error":       diags[0].Message,
				"diagnostics": diagnosticsValue(diags),
			})
		}
		artifact = outcome.artifact
	}

	budget := s.budget
	if n := numberField(msg, "maxCycles"); n > 0 {
		budget = n
	}
	output, runErr := execute(ctx, artifact, stringField(msg, "input"), budget)
	switch {
	case errors.Is(runErr, context.Canceled):
		return nil, connect.NewError(connect.CodeCanceled, runErr)
	case errors.Is(runErr, context.DeadlineExceeded):
		return nil, connect.NewError(connect.CodeDeadlineExceeded, runErr)
	}

	resp := map[string]any{"ok": runErr == nil, "output": output, "error": ""}
	if runErr != nil {
		resp["error"] = runErrorText(runErr)
	}
	return newStruct(resp)
}

// errBudgetExhausted stops a run that used up its instruction budget.
var errBudgetExhausted = errors.New("instruction limit exceeded")

// execute runs artifact to completion or until budget instructions have
// executed, checking ctx between slices.
func execute(ctx context.Context, artifact *store.Artifact, input string, budget int) (string, error) {
	prog, err := artifact.LoadProgram()
	if err != nil {
		return "", err
	}
	var out strings.Builder
	in, err := vm.NewInterpreter(prog, vm.NewConsole(strings.NewReader(input), &out))
	if err != nil {
		return "", err
	}
	for remaining := budget; ; remaining -= runSlice {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}
		if remaining <= 0 {
			return out.String(), errBudgetExhausted
		}
		more, err := in.Run(min(runSlice, remaining))
		if err != nil {
			return out.String(), err
		}
		if !more {
			return out.String(), nil
		}
	}
}

func runErrorText(err error) string {
	if u, ok := vm.Uncaught(err); ok {
		return u.Error()
	}
	return err.Error()
}

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func numberField(msg *structpb.Struct, name string) int {
	return int(msg.GetFields()[name].GetNumberValue())
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return st, nil
}

func diagnosticsValue(diags []diagnostic) []any {
	out := make([]any, len(diags))
	for i, d := range diags {
		out[i] = map[string]any{
			"code":    d.Code,
			"message": d.Message,
			"line":    d.Line + 1,
			"column":  d.Column + 1,
		}
	}
	return out
}

// proceduresValue drops the synthesized startup procedure, which is
// always last.
func proceduresValue(names []string) []any {
	if len(names) > 0 {
		names = names[:len(names)-1]
	}
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
