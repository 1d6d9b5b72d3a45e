package server

import (
	"context"
	"os"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

var testWorker *Worker

// TestMain starts one worker shared by every test.
func TestMain(m *testing.M) {
	testWorker = NewWorker(compiler.NewCompiler())
	code := m.Run()
	testWorker.Stop()
	os.Exit(code)
}

func newTestCompilerService() *CompilerService {
	return NewCompilerService(testWorker, NewProgramStore(), nil)
}

func bg() context.Context { return context.Background() }

func request(t *testing.T, fields map[string]any) *connect.Request[structpb.Struct] {
	t.Helper()
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return connect.NewRequest(msg)
}

const helloSource = "sub Main()\n    print \"Hello\"\nend sub\n"

const echoSource = `sub Main()
    dim name as String
    input name
    print "Hi "; name
end sub
`

const loopForeverSource = `sub Main()
    while true
    wend
end sub
`
