package runtime

import (
	"fmt"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
)

// A TRACE setting, named by its option letter.
type TraceSetting byte

const (
	TraceAll           TraceSetting = 'A'
	TraceCommands      TraceSetting = 'C'
	TraceErrors        TraceSetting = 'E'
	TraceFailure       TraceSetting = 'F'
	TraceIntermediates TraceSetting = 'I'
	TraceLabels        TraceSetting = 'L'
	TraceNormal        TraceSetting = 'N'
	TraceOff           TraceSetting = 'O'
	TraceResults       TraceSetting = 'R'
)

// Parse a TRACE option. Only the first letter counts; an empty option
// means NORMAL. Interactive prefixes are accepted and ignored.
func ParseTrace(option string) (TraceSetting, bool) {
	option = strings.TrimLeft(strings.TrimSpace(option), "?")
	if option == "" {
		return TraceNormal, true
	}
	letter := TraceSetting(strings.ToUpper(option)[0])
	if !strings.ContainsRune("ACEFILNOR", rune(letter)) {
		return 0, false
	}
	return letter, true
}

func (t TraceSetting) String() string {
	return string(t)
}

func (t TraceSetting) clauses() bool {
	return t == TraceAll || t == TraceResults || t == TraceIntermediates
}

func (t TraceSetting) labels() bool {
	return t.clauses() || t == TraceLabels
}

func (t TraceSetting) results() bool {
	return t == TraceResults || t == TraceIntermediates
}

func (t TraceSetting) intermediates() bool {
	return t == TraceIntermediates
}

func (t TraceSetting) commands() bool {
	return t.clauses() || t == TraceCommands
}

// Whether a command with this return code is traced after it runs.
func (t TraceSetting) commandFailures(rc int) bool {
	switch t {
	case TraceOff:
		return false
	case TraceFailure:
		return rc < 0
	default:
		return rc != 0
	}
}

func (a *Activation) traceClause(ins Instruction) {
	_, isLabel := ins.(*Label)
	if !a.settings.Trace.clauses() && !isLabel {
		return
	}
	line := ins.Line()
	if line == 0 {
		return
	}
	// clauses compiled to several instructions trace once
	if a.current == a.lastTraced+1 && a.current > 0 && a.code.Instructions[a.current-1].Line() == line {
		a.lastTraced = a.current
		return
	}
	a.lastTraced = a.current
	a.activity.traceOutput(a, fmt.Sprintf("%6d *-* %s", line, a.code.SourceLine(line)))
}

// Trace the result of an expression at TRACE R or I.
func (a *Activation) traceResult(v object.Value) {
	if a.settings.Trace.results() {
		a.activity.traceOutput(a, fmt.Sprintf("       >>>   %q", object.RequestText(v)))
	}
}

// Trace an intermediate value at TRACE I. The prefix letter says what
// produced it: V variable, L literal, F function, M message, O operator,
// C compound name, P prefix operator, = parsed word.
func (a *Activation) traceIntermediate(prefix byte, v object.Value) {
	if a.settings.Trace.intermediates() {
		a.activity.traceOutput(a, fmt.Sprintf("       >%c>   %q", prefix, object.RequestText(v)))
	}
}

func (a *Activation) traceCommand(command string) {
	if a.settings.Trace.commands() && !a.settings.Trace.clauses() {
		line := a.Line()
		a.activity.traceOutput(a, fmt.Sprintf("%6d *-* %s", line, a.code.SourceLine(line)))
	}
}

func (a *Activation) traceCommandFailure(rc int) {
	if a.settings.Trace.commandFailures(rc) {
		a.activity.traceOutput(a, fmt.Sprintf("       +++ RC=%d +++", rc))
	}
}
