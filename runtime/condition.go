package runtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/rjNemo/underscore"
)

// Condition names known to the interpreter. Any other name raised through
// RAISE USER is a user condition.
const (
	CondSyntax     = "SYNTAX"
	CondError      = "ERROR"
	CondFailure    = "FAILURE"
	CondHalt       = "HALT"
	CondNovalue    = "NOVALUE"
	CondNotReady   = "NOTREADY"
	CondLostDigits = "LOSTDIGITS"
	CondNoMethod   = "NOMETHOD"
	CondNoString   = "NOSTRING"
	CondAny        = "ANY"
)

// Conditions that only SIGNAL ON may trap. A CALL ON ANY trap never catches
// them either.
var signalOnly = []string{CondSyntax, CondNovalue, CondLostDigits, CondNoMethod, CondNoString}

var (
	// The wait would complete a cycle of activities waiting on each other.
	ErrDeadlock = errors.New("deadlock detected")
	// The manager has been shut down and no longer runs work.
	ErrShutdown = errors.New("activity manager is shut down")
)

// A Condition is a raised, catchable event together with its payload. The
// same object is handed to trap handlers and presented to programs through
// CONDITION() and the condition directory.
type Condition struct {
	Name        string
	Code        string
	RC          object.Value
	Description string
	Additional  []object.Value
	Result      object.Value
	Traceback   []string
	Propagated  bool
	// Either "CALL" or "SIGNAL" once a trap has accepted the condition.
	Instruction string
	Program     string
	Line        int
	ErrorText   string
	Message     string
}

// Create a condition with no error code, as RAISE and commands do.
func NewCondition(name string, description string) *Condition {
	return &Condition{Name: strings.ToUpper(name), Description: description}
}

// True if the condition is an interpreter error.
func (c *Condition) IsSyntax() bool {
	return c.Name == CondSyntax
}

// The major error number of a SYNTAX condition, or 0.
func (c *Condition) Major() int {
	major, _, _ := strings.Cut(c.Code, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

// Present the condition as the directory programs see.
func (c *Condition) Directory() *object.Directory {
	dir := object.NewDirectory()
	dir.Put("CONDITION", object.String(c.Name))
	dir.Put("DESCRIPTION", object.String(c.Description))
	dir.Put("PROPAGATED", object.Bool(c.Propagated))
	if c.Instruction != "" {
		dir.Put("INSTRUCTION", object.String(c.Instruction))
	}
	if c.Code != "" {
		dir.Put("CODE", object.String(c.Code))
		dir.Put("ERRORTEXT", object.String(c.ErrorText))
		dir.Put("MESSAGE", object.String(c.Message))
	}
	if c.RC != nil {
		dir.Put("RC", c.RC)
	}
	if c.Additional != nil {
		dir.Put("ADDITIONAL", object.NewArray(c.Additional...))
	}
	if c.Result != nil {
		dir.Put("RESULT", c.Result)
	}
	if c.Program != "" {
		dir.Put("PROGRAM", object.String(c.Program))
		dir.Put("POSITION", object.String(strconv.Itoa(c.Line)))
	}
	tb := make([]object.Value, len(c.Traceback))
	for i, line := range c.Traceback {
		tb[i] = object.String(line)
	}
	dir.Put("TRACEBACK", object.NewArray(tb...))
	return dir
}

// A condition travelling up the Go call stack. Every activation it passes
// through has already been offered the condition and declined it, and has
// run its termination.
type ConditionError struct {
	Condition *Condition
}

func (e *ConditionError) Error() string {
	if e.Condition.Code != "" {
		return fmt.Sprintf("error %s: %s", e.Condition.Code, e.Condition.Message)
	}
	return fmt.Sprintf("condition %s raised: %s", e.Condition.Name, e.Condition.Description)
}

// The process return code for a program ending with this error.
func (e *ConditionError) ExitCode() int {
	return -e.Condition.Major()
}

// A SIGNAL, or a SIGNAL ON trap firing, unwinding to the activation owning
// the label.
type signalUnwind struct {
	target    *Activation
	label     string
	condition *Condition
	line      int
}

func (s *signalUnwind) Error() string {
	return fmt.Sprintf("signal to label %s", s.label)
}

// EXIT unwinding to the program level, or RETURN from inside INTERPRET
// unwinding to the routine that owns the interpreted code.
type exitSignal struct {
	result object.Value
	exit   bool
}

func (s *exitSignal) Error() string {
	if s.exit {
		return "exit"
	}
	return "return"
}

func isSignalOnly(condition string) bool {
	return underscore.Contains(signalOnly, condition)
}

// Whether err is a raised condition or a SIGNAL or EXIT on its way up the
// activation chain, rather than a plain Go failure.
func isControlTransfer(err error) bool {
	var condErr *ConditionError
	var unwind *signalUnwind
	var exit *exitSignal
	return errors.As(err, &condErr) || errors.As(err, &unwind) || errors.As(err, &exit)
}
