package compiler

import "testing"

// ---------------------------------------------------------------------------
// FuzzTokenize: the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzTokenize(f *testing.F) {
	seeds := []string{
		`( ) [ ] { } : ; , + - * / ^ = < > <= >= <>`,
		`42`, `-1.5`, `1e10`, `.5`, `-.`,
		`"hello"`, `""`, `"say ""hi"""`, `"unterminated`,
		`foo`, `Foo_Bar1`, `dim`, `END SUB`,
		"' comment\nprint 1",
		"sub Main()\n    print \"hi\"\nend sub\n",
		"#procedure\nsub Main()\nend sub\n",
		`é`, `こんにちは`, "\t\r\n", ``,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Tokenize panicked on input %q: %v", data, r)
			}
		}()
		for _, mode := range []TokenizeMode{TokenizeCompile, TokenizeFormat} {
			tokens := Tokenize(data, mode, nil)
			if mode == TokenizeCompile && (len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEndOfLine) {
				t.Fatalf("token stream for %q does not end with end of line", data)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzCompile: the whole pipeline reports errors instead of panicking.
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	seeds := []string{
		"sub Main()\nprint \"hi\"\nend sub\n",
		"sub Main()\ndim x = 1\nx = x + 1\nprint x\nend sub\n",
		"function F(a as Number) as Number\nreturn a * 2\nend function\nsub Main()\nprint F(2)\nend sub\n",
		"type P\nx as Number\nend type\nsub Main()\ndim p as P\np.x = 1\nend sub\n",
		"dim shared g = [1, 2]\nsub Main()\nprint Len(g)\nend sub\n",
		"sub Main()\ndim list l\nyield 1\nend dim\nend sub\n",
		"sub Main()\ntry\nthrow 1, \"x\"\ncatch\nprint ErrorMessage()\nend try\nend sub\n",
		"sub Main()\nif\nend sub\n",
		"sub Main(\n",
		"function F() as Number\nend function\n",
		"type A\na as A\nend type\n",
		"sub Main()\nfor i = 1 to\nnext\nend sub\n",
		"",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	c := NewCompiler()
	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Compile panicked on input %q: %v", data, r)
			}
		}()
		prog, err := c.CompileText(data)
		if prog == nil {
			t.Fatalf("Compile returned no program for %q", data)
		}
		if (err == nil) != prog.OK() {
			t.Fatalf("error %v disagrees with %d diagnostics", err, len(prog.Errors))
		}
		if err == nil && prog.Program.Procedures[prog.Program.StartupProcedureIndex] == nil {
			t.Fatalf("successful compile of %q has no startup procedure", data)
		}
	})
}
