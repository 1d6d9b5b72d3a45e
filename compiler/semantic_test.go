package compiler

import (
	"strings"
	"testing"
)

func compileProgram(t *testing.T, src string) *CompiledProgram {
	t.Helper()
	prog, _ := NewCompiler().CompileText(src)
	if prog == nil {
		t.Fatal("Compile returned a nil program")
	}
	return prog
}

func mainProgram(body string) string {
	return "sub Main()\n" + body + "\nend sub\n"
}

func expectOK(t *testing.T, src string) *CompiledProgram {
	t.Helper()
	prog := compileProgram(t, src)
	if !prog.OK() {
		t.Fatalf("unexpected errors: %v", ErrorList(prog.Errors))
	}
	return prog
}

func expectCode(t *testing.T, src string, want ErrorCode) {
	t.Helper()
	prog := compileProgram(t, src)
	if prog.OK() {
		t.Fatalf("compiled cleanly, want %s", want)
	}
	if got := prog.Errors[0].Code; got != want {
		t.Fatalf("first error = %s (%v), want %s", got, prog.Errors[0], want)
	}
}

func TestScoping(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ErrorCode
		ok   bool
	}{
		{"sibling dim", "dim a = 1\nprint a", 0, true},
		{"use before dim", "print a\ndim a = 1", ErrSymbolNotFound, false},
		{"same name in if and else", "if true then\ndim a = 1\nelse\ndim a = 2\nend if", 0, true},
		{"shadow in nested body", "dim a = 1\nif true then\ndim a = \"x\"\nprint a\nend if", 0, true},
		{"if body local leaks", "if true then\ndim a = 1\nend if\nprint a", ErrSymbolNotFound, false},
		{"duplicate at one level", "dim a = 1\ndim a = 2", ErrDuplicateSymbolName, false},
		{"duplicate differs by case", "dim a = 1\ndim A = 2", ErrDuplicateSymbolName, false},
		{"for variable scoped to loop", "for i = 1 to 3\nprint i\nnext\nprint i", ErrSymbolNotFound, false},
		{"dim list body is its own scope", "dim list l\ndim x = 1\nyield x\nend dim\nprint x", ErrSymbolNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := mainProgram(tt.body)
			if tt.ok {
				expectOK(t, src)
			} else {
				expectCode(t, src, tt.want)
			}
		})
	}
}

func TestRecursiveTypes(t *testing.T) {
	tests := []struct {
		name  string
		types string
		ok    bool
	}{
		{"self", "type A\nself as A\nend type\n", false},
		{"mutual", "type A\nb as B\nend type\ntype B\na as A\nend type\n", false},
		{"through list", "type A\nchildren as List of A\nend type\n", true},
		{"through optional", "type A\nparent as Optional A\nend type\n", true},
		{"chain without cycle", "type A\nb as B\nend type\ntype B\nn as Number\nend type\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.types + mainProgram("")
			if tt.ok {
				expectOK(t, src)
			} else {
				expectCode(t, src, ErrRecursiveRecordType)
			}
		})
	}
}

func TestMissingReturns(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"plain return", "return 1", true},
		{"no return", "dim x = 1", false},
		{"if without else", "if true then\nreturn 1\nend if", false},
		{"if with else", "if true then\nreturn 1\nelse\nreturn 2\nend if", true},
		{"else if branch falls through", "if true then\nreturn 1\nelse if false then\nprint \"x\"\nelse\nreturn 2\nend if", false},
		{"throw counts", "throw 5, \"bad\"", true},
		{"do loop without exit", "do\nreturn 1\nloop while true", true},
		{"do loop with exit", "do\nif true then\nexit do\nend if\nreturn 1\nloop while true", false},
		{"select case with default", "select case 1\ncase 1\nreturn 1\ncase else\nreturn 2\nend select", true},
		{"select case without default", "select case 1\ncase 1\nreturn 1\nend select", false},
		{"try and catch both return", "try\nreturn 1\ncatch\nreturn 2\nend try", true},
		{"catch falls through", "try\nreturn 1\ncatch\nprint \"x\"\nend try", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "function F() as Number\n" + tt.body + "\nend function\n" + mainProgram("print F()")
			if tt.ok {
				expectOK(t, src)
			} else {
				expectCode(t, src, ErrControlReachesEndOfFunction)
			}
		})
	}
}

func TestTypeCheckErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ErrorCode
	}{
		{"assign wrong type", "dim x = 1\nx = \"a\"", ErrTypeMismatch},
		{"non-boolean condition", "if 1 then\nprint \"a\"\nend if", ErrTypeMismatch},
		{"while condition", "while \"yes\"\nwend", ErrTypeMismatch},
		{"string plus number", "print \"a\" + 1", ErrTypeMismatch},
		{"print a list", "print [1, 2]", ErrTypeMismatch},
		{"mixed list literal", "dim l = [1, \"a\"]", ErrTypeMismatch},
		{"empty list literal", "dim l = []", ErrEmptyLiteralList},
		{"exit outside loop", "exit do", ErrExitOutsideLoop},
		{"exit wrong loop", "while true\nexit do\nwend", ErrExitTypeMismatch},
		{"continue outside loop", "continue for", ErrContinueOutsideLoop},
		{"continue wrong loop", "do\ncontinue while\nloop while false", ErrContinueTypeMismatch},
		{"yield outside collection", "yield 1", ErrYieldOutsideDimCollection},
		{"collection without yield", "dim list l\nprint \"a\"\nend dim", ErrNoYieldsInDimCollection},
		{"map yield without to", "dim map m\nyield 1\nend dim", ErrInvalidYieldType},
		{"list yield with to", "dim list l\nyield 1 to 2\nend dim", ErrInvalidYieldType},
		{"yield types disagree", "dim list l\nyield 1\nyield \"a\"\nend dim", ErrInvalidYieldType},
		{"two case else", "select case 1\ncase else\nprint \"a\"\ncase else\nprint \"b\"\nend select", ErrMultipleSelectCaseDefaults},
		{"return value from sub", "return 1", ErrInvalidReturn},
		{"unknown procedure", "Frobnicate 1", ErrProcedureNotFound},
		{"no matching overload", "print Len(1)", ErrProcedureNotFound},
		{"sub used as function", "print Main()", ErrSubCalledAsFunction},
		{"function used as statement", "Len \"abc\"", ErrSubCalledAsFunction},
		{"unknown field", "dim r = {a: 1}\nprint r.b", ErrFieldNotFound},
		{"duplicate record field", "dim r = {a: 1, a: 2}", ErrDuplicateSymbolName},
		{"list index not number", "dim l = [1]\nprint l(\"a\")", ErrInvalidListIndex},
		{"two list indexes", "dim l = [1]\nprint l(0, 1)", ErrTooManyIndexArguments},
		{"bad conversion", "dim d = true as Date", ErrInvalidTypeConversion},
		{"input literal", "input 1", ErrInputTargetNotVariableName},
		{"input list variable", "dim l = [1]\ninput l", ErrInputTargetNotVariableName},
		{"assign string character", "dim s = \"abc\"\ns(0) = \"x\"", ErrInvalidAssignmentTarget},
		{"assign constant", "const c = 1\nc = 2", ErrInvalidAssignmentTarget},
		{"unknown type", "dim x as Widget", ErrTypeNotFound},
		{"range on boolean", "select case true\ncase false to true\nprint \"a\"\nend select", ErrTypeMismatch},
		{"boolean less than", "print true < false", ErrTypeMismatch},
		{"throw message not string", "throw 1, 2", ErrTypeMismatch},
		{"for each over number", "for each x in 5\nnext", ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectCode(t, mainProgram(tt.body), tt.want)
		})
	}
}

func TestProgramLevelErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ErrorCode
	}{
		{"missing main", "sub Other()\nend sub\n", ErrMissingMainSub},
		{"main with parameters only", "sub Main(x as Number)\nend sub\n", ErrMissingMainSub},
		{"computed global", "dim g = 1 + 2\n" + mainProgram(""), ErrInvalidGlobalVariableType},
		{"duplicate global", "dim g = 1\ndim g = 2\n" + mainProgram(""), ErrDuplicateSymbolName},
		{"duplicate procedure signature", "function F(x as Number) as Number\nreturn 1\nend function\nfunction f(y as Number) as Number\nreturn 2\nend function\n" + mainProgram(""), ErrDuplicateSymbolName},
		{"sub repeats function signature", "function F(x as Number) as Number\nreturn 1\nend function\nsub F(y as Number)\nend sub\n" + mainProgram(""), ErrDuplicateSymbolName},
		{"duplicate type", "type A\nx as Number\nend type\ntype A\ny as Number\nend type\n" + mainProgram(""), ErrDuplicateTypeName},
		{"type shadows builtin", "type Color\nx as Number\nend type\n" + mainProgram(""), ErrDuplicateTypeName},
		{"syntax", mainProgram("print +"), ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectCode(t, tt.src, tt.want)
		})
	}
}

func TestErrorsFromSeveralMembers(t *testing.T) {
	src := "sub A()\nprint x\nend sub\nsub B()\nexit for\nend sub\n" + mainProgram("")
	prog := compileProgram(t, src)
	if len(prog.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(prog.Errors), ErrorList(prog.Errors))
	}
	if prog.Errors[0].Code != ErrSymbolNotFound || prog.Errors[1].Code != ErrExitOutsideLoop {
		t.Errorf("codes = %s, %s", prog.Errors[0].Code, prog.Errors[1].Code)
	}
}

func TestValidPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"collections", mainProgram(`dim list squares
    for i = 1 to 3
        yield i * i
    next
end dim
dim total = 0
for each n in squares
    total = total + n
next
dim map names
    yield 1 to "one"
    yield 2 to "two"
end dim
dim set seen
    yield "a"
end dim
print total; names(1); Len(seen)`)},
		{"records and fields", `type Point
x as Number
y as Number
end type
` + mainProgram(`dim p as Point
p.x = 3
dim q = {x: 1, y: 2}
print p.x + q.y`)},
		{"nested assignment", mainProgram(`dim grid = [[1, 2], [3, 4]]
grid(1)(0) = 9
dim m = [{name: "a"}]
m(0).name = "b"
print grid(1)(0); m(0).name`)},
		{"optionals", mainProgram(`dim o = no Number
dim p as Optional Number
p = 5
print HasValue(p)`)},
		{"user function overloads", `function Twice(x as Number) as Number
return x * 2
end function
function Twice(s as String) as String
return s + s
end function
` + mainProgram(`print Twice(2); Twice("ab")`)},
		{"try and catch", mainProgram(`try
throw 42, "oops"
catch
print ErrorCode(); ErrorMessage()
end try`)},
		{"select case ranges", mainProgram(`dim n = 5
select case n
case 1 to 3, 7
print "low"
case else
print "other"
end select`)},
		{"globals", "dim shared count = 3\nconst greeting = \"hi\"\n" + mainProgram("count = count + 1\nprint greeting; count")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := expectOK(t, tt.src)
			for i, code := range prog.Program.Procedures {
				if len(code) == 0 {
					t.Errorf("procedure %d has no code", i)
				}
			}
		})
	}
}

// typeDump lists the evaluated type of every expression in order.
func typeDump(proc *Procedure) string {
	var b strings.Builder
	WalkStatements(proc.Body, func(s Stmt) bool {
		for _, e := range StatementExprs(s) {
			WalkExpr(e, func(x Expr) {
				if t := x.EvaluatedType(); t != nil {
					b.WriteString(t.String())
				} else {
					b.WriteString("?")
				}
				b.WriteString(";")
			})
		}
		return true
	})
	return b.String()
}

func TestTypeCheckIsIdempotent(t *testing.T) {
	src := `sub Main()
dim list l
    for i = 1 to 3
        yield {n: i, s: i as String}
    next
end dim
dim total = 0
for each r in l
    total = total + r.n
next
dim o as Optional Number
print total; l(0).s; HasValue(o)
end sub
`
	prog, err := ParseProgram(NewGrammar(), src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	proc := prog.Members[0].(*Procedure)
	table := NewSymbolTable()
	globals := NewScope(NewBuiltinScope(table))
	globals.AddProcedure(proc)
	if err := NewTypeRegistry().ResolveProcedure(proc); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := BindProcedure(table, globals, proc); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := CheckProcedure(table, globals, proc); err != nil {
		t.Fatalf("first check: %v", err)
	}
	first := typeDump(proc)
	if err := CheckProcedure(table, globals, proc); err != nil {
		t.Fatalf("second check: %v", err)
	}
	if second := typeDump(proc); second != first {
		t.Errorf("types changed between checks:\nfirst:  %s\nsecond: %s", first, second)
	}
	if strings.Contains(first, "?") {
		t.Errorf("some expressions have no type: %s", first)
	}
}

func TestIndexProcedureSplitsSlots(t *testing.T) {
	prog := expectOK(t, `sub Main()
end sub
sub Mixed(a as Number, s as String, b as Boolean, l as List of Number)
dim x = 1
dim t = "t"
for i = 1 to 2
next
end sub
`)
	proc, ok := prog.LookupProcedure("mixed")
	if !ok {
		t.Fatal("Mixed not found")
	}
	p := proc.Node
	if p.NumArgValues != 2 || p.NumArgObjects != 2 {
		t.Errorf("args = %d values, %d objects; want 2, 2", p.NumArgValues, p.NumArgObjects)
	}
	wantIndex := []int{0, 0, 1, 1}
	for i, param := range p.Parameters {
		if param.Index != wantIndex[i] {
			t.Errorf("parameter %s index = %d, want %d", param.Name, param.Index, wantIndex[i])
		}
	}
	// x, i and the two for temporaries are values; t is an object.
	if p.NumLocalValues != 4 || p.NumLocalObjects != 1 {
		t.Errorf("locals = %d values, %d objects; want 4, 1", p.NumLocalValues, p.NumLocalObjects)
	}
}
