package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// assemble builds a one-procedure program whose body is written by fn.
func assemble(t *testing.T, procs ...func(a *bytecode.Assembler)) *bytecode.Program {
	t.Helper()
	p := &bytecode.Program{StartupProcedureIndex: uint32(len(procs) - 1)}
	for _, fn := range procs {
		a := bytecode.NewAssembler()
		fn(a)
		code, err := a.Finish()
		be.Err(t, err, nil)
		p.Procedures = append(p.Procedures, code)
	}
	return p
}

func execute(t *testing.T, p *bytecode.Program, input string) (string, error) {
	t.Helper()
	var out strings.Builder
	in, err := NewInterpreter(p, NewConsole(strings.NewReader(input), &out))
	be.Err(t, err, nil)
	err = in.Execute()
	be.True(t, in.Finished())
	return out.String(), err
}

// printA converts register A to a string and prints it.
func printA(a *bytecode.Assembler) {
	a.Emit(bytecode.OpNumberAToStringX)
	a.Emit(bytecode.OpPushX)
	a.EmitSystemCall(bytecode.SysPrintString)
}

func TestPrintString(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitString("hello")
		a.EmitSystemCall(bytecode.SysPrintString)
		a.Emit(bytecode.OpExit)
	})
	out, err := execute(t, p, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "hello")
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		x, y string
		want string
	}{
		{bytecode.OpAAddB, "1.5", "2.25", "3.75"},
		{bytecode.OpASubtractB, "1", "3", "-2"},
		{bytecode.OpAMultiplyB, "1.5", "2", "3"},
		{bytecode.OpADivideB, "1", "4", "0.25"},
		{bytecode.OpADivideB, "1", "0", "Inf"},
		{bytecode.OpAModuloB, "7", "3", "1"},
		{bytecode.OpAPowerB, "2", "10", "1024"},
		{bytecode.OpALessThanB, "1", "2", "1"},
		{bytecode.OpAGreaterThanEqualsB, "1", "2", "0"},
		{bytecode.OpAEqualsB, "2.0", "2", "1"},
		{bytecode.OpANotEqualsB, "2", "2", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String()+" "+tt.x+" "+tt.y, func(t *testing.T) {
			p := assemble(t, func(a *bytecode.Assembler) {
				_, err := a.EmitDecimal(decimal.MustParse(tt.x))
				be.Err(t, err, nil)
				_, err = a.EmitDecimal(decimal.MustParse(tt.y))
				be.Err(t, err, nil)
				a.Emit(bytecode.OpPopB)
				a.Emit(bytecode.OpPopA)
				a.Emit(tt.op)
				printA(a)
				a.Emit(bytecode.OpExit)
			})
			out, err := execute(t, p, "")
			be.Err(t, err, nil)
			be.Equal(t, out, tt.want)
		})
	}
}

func TestCallPassesArgumentsAndReturnsValue(t *testing.T) {
	double := func(a *bytecode.Assembler) {
		a.EmitU8(bytecode.OpPushArgumentValue, 0)
		a.Emit(bytecode.OpPopA)
		a.EmitU8(bytecode.OpPushArgumentValue, 0)
		a.Emit(bytecode.OpPopB)
		a.Emit(bytecode.OpAAddB)
		a.Emit(bytecode.OpPushA)
		a.Emit(bytecode.OpReturnValue)
	}
	startup := func(a *bytecode.Assembler) {
		a.EmitInt64(21)
		a.EmitCall(bytecode.OpCallV, 0, 1, 0)
		a.Emit(bytecode.OpPopA)
		printA(a)
		a.Emit(bytecode.OpExit)
	}
	out, err := execute(t, assemble(t, double, startup), "")
	be.Err(t, err, nil)
	be.Equal(t, out, "42")
}

func TestLocals(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitU16U16(bytecode.OpInitLocals, 2, 1)
		a.EmitInt64(5)
		a.EmitU16(bytecode.OpSetLocalValue, 1)
		a.EmitString("five")
		a.EmitU16(bytecode.OpSetLocalObject, 0)
		a.EmitU16(bytecode.OpPushLocalObject, 0)
		a.EmitSystemCall(bytecode.SysPrintString)
		a.EmitU16(bytecode.OpPushLocalValue, 1)
		a.Emit(bytecode.OpPopA)
		printA(a)
		a.EmitU16(bytecode.OpPushLocalValue, 0)
		a.Emit(bytecode.OpPopA)
		printA(a)
		a.Emit(bytecode.OpExit)
	})
	out, err := execute(t, p, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "five50")
}

func TestCaughtError(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		catch := a.NewLabel()
		a.EmitInt64(5)
		a.EmitString("boom")
		a.Emit(bytecode.OpSetError)
		a.EmitPopBranchIfError(0, 0, catch)
		a.EmitString("not reached")
		a.EmitSystemCall(bytecode.SysPrintString)
		a.Emit(bytecode.OpExit)
		a.Bind(catch)
		a.Emit(bytecode.OpClearError)
		a.Emit(bytecode.OpPushErrorMessage)
		a.EmitSystemCall(bytecode.SysPrintString)
		a.Emit(bytecode.OpPushErrorCode)
		a.Emit(bytecode.OpPopA)
		printA(a)
		a.Emit(bytecode.OpExit)
	})
	out, err := execute(t, p, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "boom5")
}

func TestFailingSystemCallPushesPlaceholder(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		catch := a.NewLabel()
		a.EmitString("Nowhere/Nothing")
		a.EmitSystemCall(bytecode.SysTimeZoneFromName)
		a.EmitPopBranchIfError(0, 1, catch)
		a.Emit(bytecode.OpExit)
		a.Bind(catch)
		a.Emit(bytecode.OpClearError)
		a.Emit(bytecode.OpPushErrorCode)
		a.Emit(bytecode.OpPopA)
		printA(a)
		a.Emit(bytecode.OpExit)
	})
	out, err := execute(t, p, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "1003")
}

func TestErrorUnwindsToCaller(t *testing.T) {
	thrower := func(a *bytecode.Assembler) {
		a.EmitInt64(9)
		a.EmitString("deep")
		a.Emit(bytecode.OpSetError)
		a.Emit(bytecode.OpReturnIfError)
		a.EmitInt64(1)
		a.Emit(bytecode.OpReturnValue)
	}
	startup := func(a *bytecode.Assembler) {
		catch := a.NewLabel()
		a.EmitCall(bytecode.OpCallV, 0, 0, 0)
		a.EmitPopBranchIfError(1, 0, catch)
		a.Emit(bytecode.OpExit)
		a.Bind(catch)
		a.Emit(bytecode.OpClearError)
		a.Emit(bytecode.OpPushErrorMessage)
		a.EmitSystemCall(bytecode.SysPrintString)
		a.Emit(bytecode.OpExit)
	}
	out, err := execute(t, assemble(t, thrower, startup), "")
	be.Err(t, err, nil)
	be.Equal(t, out, "deep")
}

func TestUncaughtErrorIsFatal(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitInt64(7)
		a.EmitString("seven")
		a.Emit(bytecode.OpSetError)
		a.Emit(bytecode.OpReturnIfError)
		a.Emit(bytecode.OpExit)
	})
	_, err := execute(t, p, "")
	be.Err(t, err, "uncaught error")

	var fe *FatalError
	be.True(t, errors.As(err, &fe))
	u, ok := Uncaught(err)
	be.True(t, ok)
	be.Equal(t, decimal.Format(u.Code), "7")
	be.Equal(t, u.Message, "seven")
}

func TestRunawayRecursionIsFatal(t *testing.T) {
	recurse := func(a *bytecode.Assembler) {
		a.EmitCall(bytecode.OpCall, 0, 0, 0)
		a.Emit(bytecode.OpReturn)
	}
	startup := func(a *bytecode.Assembler) {
		a.EmitCall(bytecode.OpCall, 0, 0, 0)
		a.Emit(bytecode.OpExit)
	}
	_, err := execute(t, assemble(t, recurse, startup), "")
	be.Err(t, err, "call stack overflow")
}

func TestCallToFailedProcedureIsFatal(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitCall(bytecode.OpCall, 0, 0, 0)
		a.Emit(bytecode.OpExit)
	})
	p.Procedures = append([][]byte{nil}, p.Procedures...)
	p.StartupProcedureIndex = 1
	_, err := execute(t, p, "")
	be.Err(t, err, "failed to compile")
}

func TestRunIsBounded(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitInt64(1)
		a.Emit(bytecode.OpPopValue)
		a.Emit(bytecode.OpExit)
	})
	in, err := NewInterpreter(p, NewConsole(nil, nil))
	be.Err(t, err, nil)

	more, err := in.Run(1)
	be.Err(t, err, nil)
	be.True(t, more)
	more, err = in.Run(1)
	be.Err(t, err, nil)
	be.True(t, more)
	more, err = in.Run(1)
	be.Err(t, err, nil)
	be.True(t, !more)
	be.True(t, in.Finished())
}

func TestListOpcodes(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		catch := a.NewLabel()
		a.Emit(bytecode.OpValueListBuilderBegin)
		for _, n := range []int64{10, 20, 30} {
			a.EmitInt64(n)
			a.Emit(bytecode.OpPopA)
			a.Emit(bytecode.OpValueListBuilderAddA)
		}
		a.Emit(bytecode.OpValueListBuilderEnd)
		a.Emit(bytecode.OpPopX)
		a.EmitInt64(1)
		a.Emit(bytecode.OpPopA)
		a.Emit(bytecode.OpListRemove)
		a.Emit(bytecode.OpCount)
		a.Emit(bytecode.OpPushX)
		printA(a)
		a.Emit(bytecode.OpPopX)
		a.EmitInt64(5)
		a.Emit(bytecode.OpPopA)
		a.Emit(bytecode.OpValueListGet)
		a.EmitPopBranchIfError(0, 0, catch)
		a.Emit(bytecode.OpExit)
		a.Bind(catch)
		a.Emit(bytecode.OpClearError)
		a.Emit(bytecode.OpPushErrorMessage)
		a.EmitSystemCall(bytecode.SysPrintString)
		a.Emit(bytecode.OpExit)
	})
	out, err := execute(t, p, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "2List index out of range.")
}

// printValueListLocal prints the first n elements of a value list held in
// local object slot.
func printValueListLocal(a *bytecode.Assembler, slot uint16, n int) {
	for i := 0; i < n; i++ {
		a.EmitU16(bytecode.OpPushLocalObject, slot)
		a.Emit(bytecode.OpPopX)
		a.EmitInt64(int64(i))
		a.Emit(bytecode.OpPopA)
		a.Emit(bytecode.OpValueListGet)
		printA(a)
		a.EmitString(" ")
		a.EmitSystemCall(bytecode.SysPrintString)
	}
}

func TestListOpcodesLeaveAliasUntouched(t *testing.T) {
	tests := []struct {
		name  string
		op    bytecode.Opcode
		index int64
		count int
		want  string
	}{
		{"set", bytecode.OpValueListSet, 1, 3, "10 99 30 "},
		{"insert", bytecode.OpValueListInsert, 0, 4, "99 10 20 30 "},
		{"remove", bytecode.OpListRemove, 1, 2, "10 30 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := assemble(t, func(a *bytecode.Assembler) {
				a.EmitU16U16(bytecode.OpInitLocals, 0, 2)
				a.Emit(bytecode.OpValueListBuilderBegin)
				for _, n := range []int64{10, 20, 30} {
					a.EmitInt64(n)
					a.Emit(bytecode.OpPopA)
					a.Emit(bytecode.OpValueListBuilderAddA)
				}
				a.Emit(bytecode.OpValueListBuilderEnd)
				a.EmitU16(bytecode.OpSetLocalObject, 0)

				// Both locals now refer to the same list object.
				a.EmitU16(bytecode.OpPushLocalObject, 0)
				a.EmitU16(bytecode.OpSetLocalObject, 1)

				a.EmitU16(bytecode.OpPushLocalObject, 1)
				a.Emit(bytecode.OpPopX)
				a.EmitInt64(tt.index)
				a.Emit(bytecode.OpPopA)
				a.EmitInt64(99)
				a.Emit(bytecode.OpPopB)
				a.Emit(tt.op)
				a.Emit(bytecode.OpPushX)
				a.EmitU16(bytecode.OpSetLocalObject, 1)

				printValueListLocal(a, 0, 3)
				a.EmitString("| ")
				a.EmitSystemCall(bytecode.SysPrintString)
				printValueListLocal(a, 1, tt.count)
				a.Emit(bytecode.OpExit)
			})
			out, err := execute(t, p, "")
			be.Err(t, err, nil)
			be.Equal(t, out, "10 20 30 | "+tt.want)
		})
	}
}

func TestInputAndNumberFromString(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitSystemCall(bytecode.SysInputString)
		a.EmitSystemCall(bytecode.SysNumberFromString)
		a.Emit(bytecode.OpPopA)
		a.EmitInt64(1)
		a.Emit(bytecode.OpPopB)
		a.Emit(bytecode.OpAAddB)
		printA(a)
		a.Emit(bytecode.OpExit)
	})
	out, err := execute(t, p, "41\n")
	be.Err(t, err, nil)
	be.Equal(t, out, "42")
}

func TestGlobalsAreInitialized(t *testing.T) {
	p := assemble(t, func(a *bytecode.Assembler) {
		a.EmitU16(bytecode.OpPushGlobalObject, 0)
		a.EmitSystemCall(bytecode.SysPrintString)
		a.EmitU16(bytecode.OpPushGlobalValue, 0)
		a.Emit(bytecode.OpPopA)
		printA(a)
		a.Emit(bytecode.OpExit)
	})
	p.GlobalValues = []Value{decimal.FromInt64(3)}
	p.GlobalObjects = []bytecode.GlobalObject{{Type: bytecode.ObjectString, Text: "g"}}
	out, err := execute(t, p, "")
	be.Err(t, err, nil)
	be.Equal(t, out, "g3")
}
