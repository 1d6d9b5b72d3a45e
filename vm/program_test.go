package vm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"golang.org/x/tools/txtar"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
)

// TestPrograms compiles and runs each testdata/*.txtar archive. An archive
// holds program.bas, the expected output, and optionally the console input
// and the uncaught error the run ends with.
func TestPrograms(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	be.Err(t, err, nil)
	be.True(t, len(files) > 0)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".txtar")
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(file)
			be.Err(t, err, nil)
			archive := txtar.Parse(data)
			sections := map[string]string{}
			for _, f := range archive.Files {
				sections[f.Name] = string(f.Data)
			}

			prog, err := compiler.NewCompiler().CompileText(sections["program.bas"])
			if err != nil {
				t.Fatalf("compile: %v", err)
			}

			var out strings.Builder
			in, err := NewInterpreter(prog.Program, NewConsole(strings.NewReader(sections["input"]), &out))
			be.Err(t, err, nil)
			runErr := in.Execute()

			be.Equal(t, out.String(), sections["output"])
			if want, ok := sections["error"]; ok {
				u, isUncaught := Uncaught(runErr)
				be.True(t, isUncaught)
				be.Equal(t, u.Error(), strings.TrimSpace(want))
			} else {
				be.Err(t, runErr, nil)
			}
		})
	}
}
