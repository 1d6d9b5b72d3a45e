package compiler

import (
	"strings"
	"testing"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func disassemble(t *testing.T, prog *CompiledProgram) string {
	t.Helper()
	text, err := bytecode.DisassembleProgram(prog.Program, prog.ProcedureNames())
	if err != nil {
		t.Fatalf("disassemble: %v\n%s", err, text)
	}
	return text
}

func TestCompileHelloWorld(t *testing.T) {
	prog := expectOK(t, mainProgram(`print "hi"`))
	if got := prog.Program.StartupProcedureIndex; got != 1 {
		t.Errorf("startup index = %d, want 1", got)
	}
	text := disassemble(t, prog)
	for _, want := range []string{
		"; === Main (0) ===",
		`PushImmediateUtf8 "hi"`,
		"SystemCall PrintString (0 values, 1 objects)",
		"ReturnIfError",
		"; === <startup> (1) ===",
		"Call 0 (0 values, 0 objects)",
		"Exit",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("listing lacks %q:\n%s", want, text)
		}
	}
}

func TestCompileLocalsAreInitialized(t *testing.T) {
	prog := expectOK(t, mainProgram("dim n = 1\ndim s = \"a\"\nprint n; s"))
	text := disassemble(t, prog)
	if !strings.Contains(text, "InitLocals 1 1") {
		t.Errorf("listing lacks InitLocals 1 1:\n%s", text)
	}
}

func TestCompileFunctionCall(t *testing.T) {
	prog := expectOK(t, `function Add(a as Number, b as Number) as Number
return a + b
end function
`+mainProgram("print Add(1, 2)"))
	text := disassemble(t, prog)
	for _, want := range []string{"PushArgumentValue 0", "PushArgumentValue 1", "ReturnValue", "CallV 0 (2 values, 0 objects)"} {
		if !strings.Contains(text, want) {
			t.Errorf("listing lacks %q:\n%s", want, text)
		}
	}
}

func TestCompileTryUsesCatchBranch(t *testing.T) {
	prog := expectOK(t, mainProgram("try\nprint \"a\"\ncatch\nprint ErrorMessage()\nend try"))
	text := disassemble(t, prog)
	if !strings.Contains(text, "PopBranchIfError 0 0 -> ") {
		t.Errorf("listing lacks a PopBranchIfError:\n%s", text)
	}
}

func TestCompileGlobalInitialState(t *testing.T) {
	prog := expectOK(t, `dim shared n = 5
dim shared flag = true
dim shared s = "x"
dim shared zone as TimeZone
dim shared l = [1, 2]
`+mainProgram("print n; flag; s; Len(l)"))
	p := prog.Program
	if len(p.GlobalValues) != 2 || len(p.GlobalObjects) != 3 {
		t.Fatalf("globals = %d values, %d objects; want 2, 3", len(p.GlobalValues), len(p.GlobalObjects))
	}
	if got := decimal.Format(p.GlobalValues[0]); got != "5" {
		t.Errorf("n = %s, want 5", got)
	}
	if got := decimal.Format(p.GlobalValues[1]); got != "1" {
		t.Errorf("flag = %s, want 1", got)
	}
	wantObjects := []bytecode.GlobalObject{
		{Type: bytecode.ObjectString, Text: "x"},
		{Type: bytecode.ObjectTimeZone, Text: "UTC"},
		{Type: bytecode.ObjectValueList},
	}
	for i, want := range wantObjects {
		if p.GlobalObjects[i] != want {
			t.Errorf("global object %d = %+v, want %+v", i, p.GlobalObjects[i], want)
		}
	}
	// The list global is built by the startup procedure.
	text := disassemble(t, prog)
	if !strings.Contains(text, "SetGlobalObject 2") {
		t.Errorf("startup does not initialize the list global:\n%s", text)
	}
}

func TestCompiledProgramNames(t *testing.T) {
	prog := expectOK(t, "dim shared Total = 0\nsub Helper()\nend sub\n"+mainProgram("Helper"))
	names := prog.ProcedureNames()
	want := []string{"Helper", "Main", "<startup>"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("procedure names = %v, want %v", names, want)
	}
	if globals := prog.GlobalNames(); len(globals) != 1 || !strings.EqualFold(globals[0], "total") {
		t.Errorf("global names = %v", globals)
	}
	if _, ok := prog.LookupProcedure("HELPER"); !ok {
		t.Error("LookupProcedure is case sensitive")
	}
}

func TestCompiledProgramSerializes(t *testing.T) {
	prog := expectOK(t, "dim shared s = \"hello\"\n"+mainProgram("dim l = [1, 2, 3]\nprint s; Len(l)"))
	data, err := prog.Program.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	back, err := bytecode.Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Procedures) != len(prog.Program.Procedures) {
		t.Fatalf("got %d procedures, want %d", len(back.Procedures), len(prog.Program.Procedures))
	}
	for i := range back.Procedures {
		if string(back.Procedures[i]) != string(prog.Program.Procedures[i]) {
			t.Errorf("procedure %d differs after round trip", i)
		}
	}
}

func TestCompileEveryStatementKind(t *testing.T) {
	src := `type Item
name as String
qty as Number
end type
function Total(items as List of Item) as Number
dim sum = 0
for each it in items
sum = sum + it.qty
next
return sum
end function
` + mainProgram(`dim items as List of Item
items = items + {name: "a", qty: 2}
items(0).qty = 5
dim i = 0
while i < 3
i = i + 1
if i = 2 then
continue while
end if
wend
do
i = i - 1
if i = 0 then
exit do
end if
loop while true
for j = 10 to 0 step -2
print j;
next
print ""
dim map counts
yield "x" to 1
end dim
counts("y") = 2
select case i
case 0
print "zero"
case 1 to 5
print "few"
case else
print "many"
end select
try
throw 7, "seven"
catch
print ErrorCode()
end try
print Total(items)`)
	prog := expectOK(t, src)
	text := disassemble(t, prog)
	if strings.Contains(text, "<failed to compile>") {
		t.Errorf("a procedure failed to compile:\n%s", text)
	}
}
