package decimal

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
)

func TestParseFormatRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0001234567890", "1234567890"},
		{"-123456.7890", "-123456.789"},
		{"0.12345678901234567", "0.12345678901234567"},
		{"inf", "Inf"},
		{"-inf", "-Inf"},
		{"nan", "NaN"},
		{"-0", "0"},
		{"1000", "1000"},
		{"12.500", "12.5"},
		{"INF", "Inf"},
	}

	for _, tt := range tests {
		d, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.input, err)
		}
		if got := Format(d); got != tt.want {
			t.Errorf("Format(Parse(%q)) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "--1"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestTripleRoundTrip(t *testing.T) {
	inputs := []string{
		"0", "1", "-1", "123.456", "-0.000001", "79228162514264337593543950335",
		"340282366920938463463374607431768211455", "inf", "-inf", "nan",
	}
	for _, input := range inputs {
		d := MustParse(input)
		sign, hi, lo, exp, err := ToTriple(d)
		if err != nil {
			t.Fatalf("ToTriple(%s) error: %v", input, err)
		}
		back, err := FromTriple(sign, hi, lo, exp)
		if err != nil {
			t.Fatalf("FromTriple(%s) error: %v", input, err)
		}
		if Format(back) != Format(d) {
			t.Errorf("triple round trip of %s = %s", input, Format(back))
		}
	}
}

func TestTripleTooWide(t *testing.T) {
	d := MustParse("340282366920938463463374607431768211457")
	if _, _, _, _, err := ToTriple(d); err == nil {
		t.Error("expected error for a coefficient wider than 128 bits")
	}
}

func TestTripleSigns(t *testing.T) {
	tests := []struct {
		input string
		sign  byte
	}{
		{"5", SignPositive},
		{"-5", SignNegative},
		{"-0", SignPositive},
		{"inf", SignPositiveInf},
		{"-inf", SignNegativeInf},
		{"nan", SignNaN},
	}
	for _, tt := range tests {
		sign, _, _, _, err := ToTriple(MustParse(tt.input))
		if err != nil {
			t.Fatal(err)
		}
		if sign != tt.sign {
			t.Errorf("sign of %s = %d, want %d", tt.input, sign, tt.sign)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	d := new(apd.Decimal)
	if _, err := Context.Quo(d, One(), Zero()); err != nil {
		t.Fatalf("Quo error: %v", err)
	}
	if Format(d) != "Inf" {
		t.Errorf("1/0 = %s, want Inf", Format(d))
	}
}

func TestCompareAndEqual(t *testing.T) {
	if !Equal(MustParse("1.50"), MustParse("1.5")) {
		t.Error("1.50 should equal 1.5")
	}
	if !Equal(MustParse("nan"), MustParse("nan")) {
		t.Error("NaN should equal NaN for keying")
	}
	if Compare(MustParse("2"), MustParse("10")) >= 0 {
		t.Error("2 should sort before 10")
	}
	if Compare(MustParse("nan"), MustParse("-inf")) >= 0 {
		t.Error("NaN should sort first")
	}
}
