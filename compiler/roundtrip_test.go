package compiler

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// randomSource writes a small valid program: a few shared globals of
// assorted types, an optional helper function, and a Main that declares
// locals from arithmetic over earlier names and prints some of them.
func randomSource(rng *rand.Rand) string {
	var b strings.Builder
	var numbers, strs, lists []string

	literal := func() string {
		if rng.Intn(3) == 0 {
			return fmt.Sprintf("%d.%d", rng.Intn(1000), rng.Intn(100))
		}
		return fmt.Sprint(rng.Intn(1000))
	}

	for i, n := 0, rng.Intn(5); i < n; i++ {
		name := fmt.Sprintf("g%d", i)
		switch rng.Intn(5) {
		case 0:
			fmt.Fprintf(&b, "dim shared %s = %s\n", name, literal())
			numbers = append(numbers, name)
		case 1:
			fmt.Fprintf(&b, "dim shared %s as Number\n", name)
			numbers = append(numbers, name)
		case 2:
			fmt.Fprintf(&b, "dim shared %s = \"%c%d\"\n", name, 'a'+rng.Intn(26), rng.Intn(100))
			strs = append(strs, name)
		case 3:
			fmt.Fprintf(&b, "dim shared %s = [%s, %s]\n", name, literal(), literal())
			lists = append(lists, name)
		default:
			fmt.Fprintf(&b, "dim shared %s = %v\n", name, rng.Intn(2) == 0)
		}
	}

	helper := rng.Intn(2) == 0
	if helper {
		fmt.Fprintf(&b, "function Scale(x as Number) as Number\n    return x * %s\nend function\n", literal())
	}

	operand := func() string {
		if len(numbers) > 0 && rng.Intn(2) == 0 {
			return numbers[rng.Intn(len(numbers))]
		}
		return literal()
	}
	ops := []string{"+", "-", "*"}

	b.WriteString("sub Main()\n")
	for i, n := 0, 1+rng.Intn(6); i < n; i++ {
		name := fmt.Sprintf("v%d", i)
		expr := operand()
		for j := rng.Intn(3); j > 0; j-- {
			expr += " " + ops[rng.Intn(len(ops))] + " " + operand()
		}
		if helper && rng.Intn(3) == 0 {
			expr = "Scale(" + expr + ")"
		}
		fmt.Fprintf(&b, "    dim %s = %s\n", name, expr)
		numbers = append(numbers, name)
		if rng.Intn(2) == 0 {
			fmt.Fprintf(&b, "    print %s\n", name)
		}
	}
	for _, s := range strs {
		fmt.Fprintf(&b, "    print %s\n", s)
	}
	for _, l := range lists {
		fmt.Fprintf(&b, "    print Len(%s); \" \"; %s(0)\n", l, l)
	}
	b.WriteString("end sub\n")
	return b.String()
}

func TestCompiledProgramRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := NewCompiler()
	for iter := 0; iter < 100; iter++ {
		src := randomSource(rng)
		prog, err := c.CompileText(src)
		if err != nil {
			t.Fatalf("iteration %d: compile: %v\n%s", iter, err, src)
		}
		p := prog.Program
		data, err := p.Serialize()
		if err != nil {
			t.Fatalf("iteration %d: serialize: %v", iter, err)
		}
		back, err := bytecode.Deserialize(data)
		if err != nil {
			t.Fatalf("iteration %d: deserialize: %v", iter, err)
		}

		if back.StartupProcedureIndex != p.StartupProcedureIndex {
			t.Fatalf("iteration %d: startup %d, want %d", iter, back.StartupProcedureIndex, p.StartupProcedureIndex)
		}
		if len(back.Procedures) != len(p.Procedures) {
			t.Fatalf("iteration %d: %d procedures, want %d", iter, len(back.Procedures), len(p.Procedures))
		}
		for i := range p.Procedures {
			if !bytes.Equal(back.Procedures[i], p.Procedures[i]) {
				t.Fatalf("iteration %d: procedure %d differs\n%s", iter, i, src)
			}
		}
		if len(back.GlobalValues) != len(p.GlobalValues) {
			t.Fatalf("iteration %d: %d global values, want %d", iter, len(back.GlobalValues), len(p.GlobalValues))
		}
		for i := range p.GlobalValues {
			if !decimal.Equal(back.GlobalValues[i], p.GlobalValues[i]) {
				t.Fatalf("iteration %d: global value %d = %s, want %s", iter, i,
					decimal.Format(back.GlobalValues[i]), decimal.Format(p.GlobalValues[i]))
			}
		}
		if len(back.GlobalObjects) != len(p.GlobalObjects) {
			t.Fatalf("iteration %d: %d global objects, want %d", iter, len(back.GlobalObjects), len(p.GlobalObjects))
		}
		for i := range p.GlobalObjects {
			if back.GlobalObjects[i] != p.GlobalObjects[i] {
				t.Fatalf("iteration %d: global object %d = %+v, want %+v", iter, i, back.GlobalObjects[i], p.GlobalObjects[i])
			}
		}
	}
}
