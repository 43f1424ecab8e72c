package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// Error codes raised by the interpreter.
const (
	ErrProgramInterrupted  = "4.1"
	ErrLabelNotFound       = "16.1"
	ErrUnexpectedProcedure = "17.1"
	ErrUnexpectedExpose    = "17.2"
	ErrTraceOption         = "24.1"
	ErrInvalidWhole        = "26.1"
	ErrInvalidLeave        = "28.1"
	ErrInvalidIterate      = "28.2"
	ErrLeaveName           = "28.3"
	ErrDigitsValue         = "33.1"
	ErrFuzzValue           = "33.2"
	ErrFormValue           = "33.3"
	ErrLogicalValue        = "34.1"
	ErrRoutineFailed       = "40.1"
	ErrTooFewArgs          = "40.3"
	ErrTooManyArgs         = "40.4"
	ErrMissingArg          = "40.5"
	ErrArgWhole            = "40.12"
	ErrArgNonNegative      = "40.13"
	ErrArgOption           = "40.28"
	ErrRandomOrder         = "40.33"
	ErrRandomRange         = "40.34"
	ErrNonNumeric          = "41.1"
	ErrOverflow            = "42.1"
	ErrDivideByZero        = "42.3"
	ErrRoutineNotFound     = "43.1"
	ErrNoFunctionResult    = "44.1"
	ErrReturnNoData        = "45.1"
	ErrSystemService       = "48.1"
	ErrInternalRecursion   = "49.1"
	ErrNoMethod            = "97.1"
	ErrRecursiveRequires   = "98.902"
	ErrReplyIssued         = "98.934"
	ErrReplyReturn         = "98.935"
	ErrDeadlockDetected    = "98.936"
	ErrReplyInterpret      = "98.937"
	ErrStemDefault         = "98.940"
	ErrInterpret           = "99.1"
)

var errorTexts = map[int]string{
	4:  "Program interrupted",
	16: "Label not found",
	17: "Unexpected PROCEDURE",
	24: "Invalid TRACE request",
	26: "Invalid whole number",
	28: "Invalid LEAVE or ITERATE",
	33: "Invalid expression result",
	34: "Logical value not 0 or 1",
	40: "Incorrect call to routine",
	41: "Bad arithmetic conversion",
	42: "Arithmetic overflow/underflow",
	43: "Routine not found",
	44: "Function or message did not return data",
	45: "No data specified on function RETURN",
	48: "Failure in system service",
	49: "Interpretation error",
	97: "Object method not found",
	98: "Execution error",
	99: "Translation error",
}

var messageTexts = map[string]string{
	ErrProgramInterrupted:  "Program interrupted with HALT condition: &1",
	ErrLabelNotFound:       `Label "&1" specified by SIGNAL, SIGNAL ON or CALL ON was not found`,
	ErrUnexpectedProcedure: "PROCEDURE is valid only as the first instruction executed after an internal CALL or function invocation",
	ErrUnexpectedExpose:    "EXPOSE is valid only as the first instruction executed by a method",
	ErrTraceOption:         `TRACE request letter must be one of "ACEFILNOR"; found "&1"`,
	ErrInvalidWhole:        `Whole numbers must fit within the current DIGITS setting (&1); found "&2"`,
	ErrInvalidLeave:        "LEAVE is valid only within a repetitive DO loop",
	ErrInvalidIterate:      "ITERATE is valid only within a repetitive DO loop",
	ErrLeaveName:           `Symbol following LEAVE or ITERATE ("&1") must match the control variable of a current DO loop`,
	ErrDigitsValue:         `Value of NUMERIC DIGITS "&1" must be a positive whole number larger than NUMERIC FUZZ`,
	ErrFuzzValue:           `Value of NUMERIC FUZZ "&1" must be zero or a positive whole number smaller than NUMERIC DIGITS`,
	ErrFormValue:           `Value of NUMERIC FORM "&1" must be "ENGINEERING" or "SCIENTIFIC"`,
	ErrLogicalValue:        `Logical value must be exactly "0" or "1"; found "&1"`,
	ErrRoutineFailed:       `External routine "&1" failed`,
	ErrTooFewArgs:          "Not enough arguments in invocation of &1; minimum expected is &2",
	ErrTooManyArgs:         "Too many arguments in invocation of &1; maximum expected is &2",
	ErrMissingArg:          "Missing argument in invocation of &1; argument &2 is required",
	ErrArgWhole:            `&1 argument &2 must be a whole number; found "&3"`,
	ErrArgNonNegative:      `&1 argument &2 must be zero or positive; found "&3"`,
	ErrArgOption:           `&1 argument &2, option must start with one of "&3"; found "&4"`,
	ErrRandomOrder:         `&1 argument 1 must be less than or equal to argument 2; found "&2" and "&3"`,
	ErrRandomRange:         `&1 arguments 1 and 2 must differ by no more than 100000; found "&2" and "&3"`,
	ErrNonNumeric:          `Nonnumeric value ("&1") used in arithmetic operation`,
	ErrOverflow:            "Arithmetic overflow; &1",
	ErrDivideByZero:        "Arithmetic overflow; divisor must not be zero",
	ErrRoutineNotFound:     `Could not find routine "&1"`,
	ErrNoFunctionResult:    `No data returned from function "&1"`,
	ErrReturnNoData:        `Data expected on RETURN instruction because routine "&1" was called as a function`,
	ErrSystemService:       "Failure in system service: &1",
	ErrInternalRecursion:   "Interpretation error: recursive failure while formatting the message for error &1",
	ErrNoMethod:            `Object "&1" does not understand message "&2"`,
	ErrRecursiveRequires:   `Circular ::REQUIRES of "&1"`,
	ErrReplyIssued:         "REPLY has already been issued for this activation",
	ErrReplyReturn:         "RETURN cannot supply a value after REPLY has been issued",
	ErrDeadlockDetected:    "Deadlock detected while waiting for &1",
	ErrReplyInterpret:      "REPLY cannot be issued by INTERPRET code",
	ErrStemDefault:         "A stem object cannot be the default value of a stem",
	ErrInterpret:           "Error translating INTERPRET string: &1",
}

// The primary message for a major error number.
func ErrorText(major int) string {
	if text, ok := errorTexts[major]; ok {
		return text
	}
	return "Unknown error " + strconv.Itoa(major)
}

// Substitute &1, &2, ... in the secondary message of an error code.
func MessageText(code string, substitutions []string) string {
	template, ok := messageTexts[code]
	if !ok {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '&' && i+1 < len(template) && template[i+1] >= '1' && template[i+1] <= '9' {
			n := int(template[i+1] - '1')
			if n < len(substitutions) {
				b.WriteString(substitutions[n])
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// The two-line display of an unhandled error.
func FormatError(cond *Condition) []string {
	major := cond.Major()
	location := cond.Program
	if cond.Line > 0 {
		location = fmt.Sprintf("%s line %d", cond.Program, cond.Line)
	}
	primary := fmt.Sprintf("Error %d running %s:  %s.", major, location, cond.ErrorText)
	if cond.Message == "" {
		return []string{primary}
	}
	return []string{primary, fmt.Sprintf("Error %s:  %s.", cond.Code, cond.Message)}
}
