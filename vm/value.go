package vm

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// Value is the content of a value stack slot. Booleans are 0 and 1; dates,
// date-times and time spans are counts of milliseconds. Values are shared
// freely and must never be mutated.
type Value = *apd.Decimal

// truncContext rounds toward zero when converting values to integers.
var truncContext = func() *apd.Context {
	c := decimal.Context.WithPrecision(decimal.Precision)
	c.Rounding = apd.RoundDown
	return c
}()

// roundContext rounds half away from zero for the Round built-in.
var roundContext = func() *apd.Context {
	c := decimal.Context.WithPrecision(decimal.Precision)
	c.Rounding = apd.RoundHalfUp
	return c
}()

func boolValue(b bool) Value {
	if b {
		return decimal.One()
	}
	return decimal.Zero()
}

func isTrue(v Value) bool {
	return v != nil && !v.IsZero()
}

// intValue truncates v to an integer. ok is false for NaN, infinities and
// numbers outside the int64 range.
func intValue(v Value) (n int64, ok bool) {
	if v == nil {
		return 0, true
	}
	if v.Form != apd.Finite {
		return 0, false
	}
	var t apd.Decimal
	if _, err := truncContext.RoundToIntegralValue(&t, v); err != nil {
		return 0, false
	}
	n, err := t.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// mustInt is intValue for numbers that are integers by construction, such as
// dates. Out-of-range input yields 0.
func mustInt(v Value) int64 {
	n, _ := intValue(v)
	return n
}

func nan() Value {
	return &apd.Decimal{Form: apd.NaN}
}

type binaryFunc func(d, x, y *apd.Decimal) (apd.Condition, error)

type unaryFunc func(d, x *apd.Decimal) (apd.Condition, error)

// arith applies op and returns a fresh decimal. Errors that the context does
// not turn into NaN or an infinity still produce NaN.
func arith(op binaryFunc, x, y Value) Value {
	d := new(apd.Decimal)
	if _, err := op(d, orZero(x), orZero(y)); err != nil {
		return nan()
	}
	return d
}

func arith1(op unaryFunc, x Value) Value {
	d := new(apd.Decimal)
	if _, err := op(d, orZero(x)); err != nil {
		return nan()
	}
	return d
}

func orZero(v Value) Value {
	if v == nil {
		return decimal.Zero()
	}
	return v
}

// compareNumbers orders a and b for the comparison opcodes. ok is false
// when either operand is NaN, in which case every ordering test fails.
func compareNumbers(a, b Value) (c int, ok bool) {
	a, b = orZero(a), orZero(b)
	if a.Form == apd.NaN || b.Form == apd.NaN {
		return 0, false
	}
	return a.Cmp(b), true
}

func floatValue(v Value) float64 {
	f, err := orZero(v).Float64()
	if err != nil {
		return 0
	}
	return f
}

func fromFloat(f float64) Value {
	d := new(apd.Decimal)
	if _, err := d.SetFloat64(f); err != nil {
		return nan()
	}
	return d
}
