package object

import (
	"errors"
	"testing"
)

func TestFormatFloat(t *testing.T) {
	data := []float64{0, 42, -7, 1.5, 123456789, 1234567890, 0.000001, 1.0 / 3}

	testCases := []struct {
		name string
		exp  string
	}{
		{"Zero", "0"},
		{"Whole", "42"},
		{"Negative", "-7"},
		{"Fraction", "1.5"},
		{"FullDigits", "123456789"},
		{"Exponent", "1.23456789E+9"},
		{"Small", "0.000001"},
		{"Third", "0.333333333"},
	}

	for ind, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := DefaultNumeric.FormatFloat(data[ind])
			if res != tc.exp {
				t.Errorf("Expected %v, got %v instead", tc.exp, res)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	testCases := []struct {
		name     string
		settings NumericSettings
		text     string
		exp      string
	}{
		{"TrailingZeros", DefaultNumeric, "2.500", "2.5"},
		{"WholeWithExponent", DefaultNumeric, "12E+2", "1200"},
		{"RoundsHalfUp", DefaultNumeric, "1.234567895", "1.2345679"},
		{"TinyFraction", DefaultNumeric, "1E-20", "1E-20"},
		{"LongFraction", DefaultNumeric, "0.000000000000000001", "0.000000000000000001"},
		{"Large", DefaultNumeric, "-98765432100", "-9.87654321E+10"},
		{"Engineering", NumericSettings{Digits: 9, Form: Engineering}, "12345678900", "12.3456789E+9"},
		{"EngineeringPadded", NumericSettings{Digits: 3, Form: Engineering}, "100000", "100E+3"},
		{"FewDigits", NumericSettings{Digits: 3}, "1234", "1.23E+3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := ParseNumber(tc.text)
			if !ok {
				t.Fatalf("Expected %q to be a number", tc.text)
			}
			if res := tc.settings.Format(d); res != tc.exp {
				t.Errorf("Expected %v, got %v instead", tc.exp, res)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	testCases := []struct {
		name  string
		op    Operator
		left  string
		right string
		exp   string
		err   error
	}{
		{"Add", OpAdd, "1", "2", "3", nil},
		{"AddBlanks", OpAdd, " 1 ", "2.5", "3.5", nil},
		{"Subtract", OpSubtract, "1", "3", "-2", nil},
		{"Multiply", OpMultiply, "1.5", "4", "6", nil},
		{"Divide", OpDivide, "1", "4", "0.25", nil},
		{"IntDivide", OpIntDivide, "7", "2", "3", nil},
		{"IntDivideNegative", OpIntDivide, "-7", "2", "-3", nil},
		{"Remainder", OpRemainder, "-7", "2", "-1", nil},
		{"Power", OpPower, "2", "10", "1024", nil},
		{"DivideByZero", OpDivide, "1", "0", "", ErrDivideByZero},
		{"RemainderByZero", OpRemainder, "1", "0", "", ErrDivideByZero},
		{"ZeroToNegativePower", OpPower, "0", "-1", "", ErrDivideByZero},
		{"NegativePower", OpPower, "2", "-2", "0.25", nil},
		{"DivideRounds", OpDivide, "2", "3", "0.666666667", nil},
		{"DecimalFractions", OpAdd, "0.1", "0.2", "0.3", nil},
		{"IntDivideTooLarge", OpIntDivide, "1E+12", "1", "", ErrOverflow},
		{"FractionalPower", OpPower, "2", "0.5", "", ErrPowerInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := DefaultNumeric.Arithmetic(tc.op, tc.left, tc.right)
			if !errors.Is(err, tc.err) {
				t.Fatalf("Expected error %v, got %v instead", tc.err, err)
			}
			if res != tc.exp {
				t.Errorf("Expected %v, got %v instead", tc.exp, res)
			}
		})
	}
}

func TestArithmeticHighPrecision(t *testing.T) {
	settings := NumericSettings{Digits: 20}
	testCases := []struct {
		name  string
		op    Operator
		left  string
		right string
		exp   string
	}{
		{"AddLarge", OpAdd, "12345678901234567890", "1", "12345678901234567891"},
		{"DecimalFractions", OpAdd, "0.1", "0.2", "0.3"},
		{"Divide", OpDivide, "1", "3", "0.33333333333333333333"},
		{"Multiply", OpMultiply, "99999999999", "99999999999", "9.9999999998E+21"},
		{"Power", OpPower, "2", "64", "18446744073709551616"},
		{"RoundsToDigits", OpAdd, "123456789012345678901", "0", "1.234567890123456789E+20"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := settings.Arithmetic(tc.op, tc.left, tc.right)
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			if res != tc.exp {
				t.Errorf("Expected %v, got %v instead", tc.exp, res)
			}
		})
	}
}

func TestArithmeticConversion(t *testing.T) {
	_, err := DefaultNumeric.Arithmetic(OpAdd, "abc", "1")
	var conv *ConversionError
	if !errors.As(err, &conv) || conv.Value != "abc" {
		t.Errorf("Expected a conversion error for abc, got %v instead", err)
	}
}

func TestCompareFuzz(t *testing.T) {
	testCases := []struct {
		name     string
		settings NumericSettings
		left     string
		right    string
		exp      int
	}{
		{"Less", DefaultNumeric, "1", "2", -1},
		{"Equal", DefaultNumeric, "2.0", "2", 0},
		{"Greater", DefaultNumeric, "10", "9", 1},
		{"Distinct", NumericSettings{Digits: 4}, "1000", "1001", -1},
		{"Fuzzed", NumericSettings{Digits: 4, Fuzz: 1}, "1000", "1001", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := tc.settings.Compare(tc.left, tc.right)
			if !ok || res != tc.exp {
				t.Errorf("Expected %v, got %v instead", tc.exp, res)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	valid := []string{"1", " -2 ", "+3.5", ".5", "1e3", "1E-2", "- 4"}
	invalid := []string{"", "abc", ".", "1e", "e1", "1-2", "1..2x"}
	for _, s := range valid {
		if _, ok := ParseNumber(s); !ok {
			t.Errorf("Expected %q to be a number", s)
		}
	}
	for _, s := range invalid {
		if _, ok := ParseNumber(s); ok {
			t.Errorf("Expected %q not to be a number", s)
		}
	}
}

func TestWholeNumber(t *testing.T) {
	if n, ok := DefaultNumeric.WholeNumber("12"); !ok || n != 12 {
		t.Errorf("Expected 12, got %v instead", n)
	}
	if _, ok := DefaultNumeric.WholeNumber("1.5"); ok {
		t.Errorf("Expected 1.5 not to be whole")
	}
	if _, ok := DefaultNumeric.WholeNumber("1e10"); ok {
		t.Errorf("Expected 1e10 to exceed the digits setting")
	}
}
