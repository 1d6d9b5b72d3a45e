// Package decimal wraps apd decimals with the literal syntax, canonical
// formatting and 128-bit wire triple used by TMBASIC numbers.
package decimal

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Precision is the number of significant digits kept by arithmetic.
const Precision = 34

// Context is the arithmetic context shared by the compiler and the VM.
// Division by zero produces an infinity and invalid operations produce NaN
// instead of Go errors.
var Context = newContext()

func newContext() *apd.Context {
	c := apd.BaseContext.WithPrecision(Precision)
	c.Traps = 0
	return c
}

// Wire sign bytes.
const (
	SignPositive    byte = 0
	SignNegative    byte = 1
	SignPositiveInf byte = 2
	SignNegativeInf byte = 3
	SignNaN         byte = 4
)

var (
	zero = apd.New(0, 0)
	one  = apd.New(1, 0)
)

// Zero returns the shared zero decimal. Callers must not mutate it.
func Zero() *apd.Decimal { return zero }

// One returns the shared one decimal. Callers must not mutate it.
func One() *apd.Decimal { return one }

// FromInt64 returns a new decimal holding n.
func FromInt64(n int64) *apd.Decimal {
	return apd.New(n, 0)
}

// Parse parses a number literal: an optional minus sign, digits and an
// optional fraction, or one of inf, -inf and nan in any letter case.
func Parse(text string) (*apd.Decimal, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch lower {
	case "inf", "+inf", "infinity":
		return &apd.Decimal{Form: apd.Infinite}, nil
	case "-inf", "-infinity":
		return &apd.Decimal{Form: apd.Infinite, Negative: true}, nil
	case "nan":
		return &apd.Decimal{Form: apd.NaN}, nil
	}
	d, _, err := apd.NewFromString(lower)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", text, err)
	}
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return d, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) *apd.Decimal {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders d in canonical form: no exponent, no trailing fraction
// zeros, no negative zero, and Inf, -Inf or NaN for the special forms.
func Format(d *apd.Decimal) string {
	if d == nil {
		return "0"
	}
	switch d.Form {
	case apd.Infinite:
		if d.Negative {
			return "-Inf"
		}
		return "Inf"
	case apd.NaN, apd.NaNSignaling:
		return "NaN"
	}
	if d.IsZero() {
		return "0"
	}
	var reduced apd.Decimal
	reduced.Reduce(d)
	return reduced.Text('f')
}

// ToTriple splits d into the wire form: sign byte, high and low halves of
// the coefficient magnitude, and the exponent.
func ToTriple(d *apd.Decimal) (sign byte, hi, lo uint64, exp int64, err error) {
	if d == nil {
		return SignPositive, 0, 0, 0, nil
	}
	switch d.Form {
	case apd.Infinite:
		if d.Negative {
			return SignNegativeInf, 0, 0, 0, nil
		}
		return SignPositiveInf, 0, 0, 0, nil
	case apd.NaN, apd.NaNSignaling:
		return SignNaN, 0, 0, 0, nil
	}

	var reduced apd.Decimal
	reduced.Reduce(d)
	coeff := reduced.Coeff.MathBigInt()
	coeff.Abs(coeff)
	if coeff.BitLen() > 128 {
		return 0, 0, 0, 0, fmt.Errorf("coefficient of %s does not fit in 128 bits", Format(d))
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo = new(big.Int).And(coeff, mask).Uint64()
	hi = new(big.Int).Rsh(coeff, 64).Uint64()

	sign = SignPositive
	if reduced.Negative && !reduced.IsZero() {
		sign = SignNegative
	}
	return sign, hi, lo, int64(reduced.Exponent), nil
}

// FromTriple rebuilds a decimal from its wire form.
func FromTriple(sign byte, hi, lo uint64, exp int64) (*apd.Decimal, error) {
	switch sign {
	case SignPositiveInf:
		return &apd.Decimal{Form: apd.Infinite}, nil
	case SignNegativeInf:
		return &apd.Decimal{Form: apd.Infinite, Negative: true}, nil
	case SignNaN:
		return &apd.Decimal{Form: apd.NaN}, nil
	case SignPositive, SignNegative:
	default:
		return nil, fmt.Errorf("invalid decimal sign byte %d", sign)
	}
	if exp < apd.MinExponent || exp > apd.MaxExponent {
		return nil, fmt.Errorf("decimal exponent %d out of range", exp)
	}

	coeff := new(big.Int).SetUint64(hi)
	coeff.Lsh(coeff, 64)
	coeff.Or(coeff, new(big.Int).SetUint64(lo))

	d := new(apd.Decimal)
	d.Coeff.SetMathBigInt(coeff)
	d.Exponent = int32(exp)
	d.Negative = sign == SignNegative && coeff.Sign() != 0
	return d, nil
}

// Equal reports whether a and b hold the same number. NaN equals NaN so
// that decimals can serve as map keys.
func Equal(a, b *apd.Decimal) bool {
	if a == nil {
		a = zero
	}
	if b == nil {
		b = zero
	}
	if a.Form == apd.NaN || b.Form == apd.NaN {
		return a.Form == b.Form
	}
	return a.Cmp(b) == 0
}

// Compare orders a and b; NaN sorts before every other number.
func Compare(a, b *apd.Decimal) int {
	if a == nil {
		a = zero
	}
	if b == nil {
		b = zero
	}
	aNaN, bNaN := a.Form == apd.NaN, b.Form == apd.NaN
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	}
	return a.Cmp(b)
}
