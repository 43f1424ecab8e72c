package object

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/glossopoeia/rexxcore/util"
)

type Form int

const (
	Scientific Form = iota
	Engineering
)

func (f Form) String() string {
	switch f {
	case Scientific:
		return "SCIENTIFIC"
	case Engineering:
		return "ENGINEERING"
	default:
		panic("Invalid numeric form encountered.")
	}
}

// The arithmetic operators of the language.
type Operator int

const (
	OpAdd Operator = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpIntDivide
	OpRemainder
	OpPower
)

func (op Operator) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpIntDivide:
		return "%"
	case OpRemainder:
		return "//"
	case OpPower:
		return "**"
	default:
		panic("Invalid arithmetic operator encountered.")
	}
}

// NUMERIC DIGITS, FUZZ and FORM as a value. Activations carry their own copy
// and the activity keeps a snapshot of the current activation's settings.
type NumericSettings struct {
	Digits int
	Fuzz   int
	Form   Form
}

var DefaultNumeric = NumericSettings{Digits: 9, Fuzz: 0, Form: Scientific}

var (
	ErrDivideByZero = errors.New("divisor must not be zero")
	ErrOverflow     = errors.New("arithmetic overflow")
	ErrPowerInvalid = errors.New("power must be a whole number")
)

// Raised when an operand is not a valid number.
type ConversionError struct {
	Value string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("nonnumeric value (%q) used in arithmetic operation", e.Value)
}

// Parse the text of a number: optional blanks, an optional sign, digits with
// an optional decimal point, and an optional exponent.
func ParseNumber(text string) (*apd.Decimal, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, false
	}
	body := s
	if body[0] == '+' || body[0] == '-' {
		body = strings.TrimSpace(body[1:])
	}
	if body == "" || body[0] == '.' && len(body) == 1 {
		return nil, false
	}
	sawDigit := false
	for i, c := range body {
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
		case c == '.':
		case c == 'e' || c == 'E':
			if i == 0 {
				return nil, false
			}
		case c == '+' || c == '-':
			if i == 0 || (body[i-1] != 'e' && body[i-1] != 'E') {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	if !sawDigit {
		return nil, false
	}
	if s[0] == '-' {
		body = "-" + body
	}
	d, _, err := apd.NewFromString(body)
	if err != nil {
		return nil, false
	}
	return d, true
}

// Parse a number for code that works in binary floating point.
func ParseFloat(text string) (float64, bool) {
	d, ok := ParseNumber(text)
	if !ok {
		return 0, false
	}
	f, err := d.Float64()
	return f, err == nil
}

// A decimal context rounding half up to the given number of significant
// digits.
func decimalContext(digits int) *apd.Context {
	return &apd.Context{
		Precision:   uint32(max(digits, 1)),
		MaxExponent: apd.MaxExponent,
		MinExponent: apd.MinExponent,
		Traps:       apd.DefaultTraps,
		Rounding:    apd.RoundHalfUp,
	}
}

func isWhole(d *apd.Decimal) bool {
	var frac apd.Decimal
	d.Modf(nil, &frac)
	return frac.IsZero()
}

// Render a number the way the language does under these settings: rounded
// to DIGITS significant digits without trailing zeros, in plain notation
// unless the integer part needs more than DIGITS places or the fraction more
// than twice DIGITS, in which case an exponent is used.
func (n NumericSettings) Format(d *apd.Decimal) string {
	if d.Form != apd.Finite {
		return d.String()
	}
	if d.IsZero() {
		return "0"
	}
	v := new(apd.Decimal)
	decimalContext(n.Digits).Round(v, d)
	v.Reduce(v)
	digits := v.Coeff.String()
	exp := int(v.Exponent)
	sign := ""
	if v.Negative {
		sign = "-"
	}
	sci := len(digits) - 1 + exp
	if sci < n.Digits && -exp <= 2*n.Digits {
		return sign + plainNotation(digits, exp)
	}
	before := 1
	if n.Form == Engineering {
		shift := util.Modulo(sci, 3)
		before += shift
		sci -= shift
	}
	if len(digits) < before {
		digits += strings.Repeat("0", before-len(digits))
	}
	mantissa := digits[:before]
	if len(digits) > before {
		mantissa += "." + digits[before:]
	}
	switch {
	case sci == 0:
		return sign + mantissa
	case sci > 0:
		return fmt.Sprintf("%s%sE+%d", sign, mantissa, sci)
	default:
		return fmt.Sprintf("%s%sE%d", sign, mantissa, sci)
	}
}

func plainNotation(digits string, exp int) string {
	if exp >= 0 {
		return digits + strings.Repeat("0", exp)
	}
	point := len(digits) + exp
	if point > 0 {
		return digits[:point] + "." + digits[point:]
	}
	return "0." + strings.Repeat("0", -point) + digits
}

// Render a binary floating point result, as native routines return them.
func (n NumericSettings) FormatFloat(f float64) string {
	d, err := new(apd.Decimal).SetFloat64(f)
	if err != nil {
		return strconv.FormatFloat(f, 'g', n.Digits, 64)
	}
	return n.Format(d)
}

// Perform an arithmetic operation on two numeric strings, with the result
// rounded to DIGITS significant digits.
func (n NumericSettings) Arithmetic(op Operator, left string, right string) (string, error) {
	l, ok := ParseNumber(left)
	if !ok {
		return "", &ConversionError{left}
	}
	r, ok := ParseNumber(right)
	if !ok {
		return "", &ConversionError{right}
	}
	ctx := decimalContext(n.Digits)
	res := new(apd.Decimal)
	var err error
	switch op {
	case OpAdd:
		_, err = ctx.Add(res, l, r)
	case OpSubtract:
		_, err = ctx.Sub(res, l, r)
	case OpMultiply:
		_, err = ctx.Mul(res, l, r)
	case OpDivide, OpIntDivide, OpRemainder:
		if r.IsZero() {
			return "", ErrDivideByZero
		}
		switch op {
		case OpDivide:
			_, err = ctx.Quo(res, l, r)
		case OpIntDivide:
			// truncated toward zero, and must fit in DIGITS
			_, err = ctx.QuoInteger(res, l, r)
		default:
			// sign follows the dividend
			_, err = ctx.Rem(res, l, r)
		}
	case OpPower:
		if !isWhole(r) {
			return "", ErrPowerInvalid
		}
		if l.IsZero() && r.Negative {
			return "", ErrDivideByZero
		}
		_, err = ctx.Pow(res, l, r)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return n.Format(res), nil
}

func (n NumericSettings) Negate(value string) (string, error) {
	return n.Arithmetic(OpSubtract, "0", value)
}

// Compare two strings numerically: both are rounded to DIGITS minus FUZZ
// significant digits before they are subtracted. Returns false for ok if
// either string is not a number.
func (n NumericSettings) Compare(left string, right string) (cmp int, ok bool) {
	l, lok := ParseNumber(left)
	r, rok := ParseNumber(right)
	if !lok || !rok {
		return 0, false
	}
	ctx := decimalContext(n.Digits - n.Fuzz)
	var a, b, diff apd.Decimal
	ctx.Round(&a, l)
	ctx.Round(&b, r)
	if _, err := ctx.Sub(&diff, &a, &b); err != nil {
		return a.Cmp(&b), true
	}
	return diff.Sign(), true
}

// Convert a string into a whole number under these settings.
func (n NumericSettings) WholeNumber(text string) (int, bool) {
	d, ok := ParseNumber(text)
	if !ok || !isWhole(d) {
		return 0, false
	}
	if d.IsZero() {
		return 0, true
	}
	v, _ := new(apd.Decimal).Reduce(d)
	if v.NumDigits()+int64(v.Exponent) > int64(n.Digits) {
		return 0, false
	}
	i, err := v.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}
