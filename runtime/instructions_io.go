package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog/log"
)

// ADDRESS [env [command]] or ADDRESS VALUE expr. Without operands the
// current and alternate environments swap.
type Address struct {
	Clause
	Environment string
	Value       Expression
	Command     Expression
}

func (i *Address) Execute(act *Activation, stack *EvaluationStack) error {
	if i.Command != nil {
		text, err := evaluateText(act, stack, i.Command)
		if err != nil {
			return err
		}
		return act.runCommand(strings.ToUpper(i.Environment), text)
	}
	env := i.Environment
	if i.Value != nil {
		text, err := evaluateText(act, stack, i.Value)
		if err != nil {
			return err
		}
		env = text
	}
	act.settings.SetAddress(env)
	return nil
}

func (i *Address) String() string {
	return fmt.Sprintf("ADDRESS %s %v %v", i.Environment, i.Value, i.Command)
}

// A command clause, sent to the current ADDRESS environment.
type Command struct {
	Clause
	Value Expression
}

func (i *Command) Execute(act *Activation, stack *EvaluationStack) error {
	text, err := evaluateText(act, stack, i.Value)
	if err != nil {
		return err
	}
	return act.runCommand(act.settings.Address, text)
}

func (i *Command) String() string {
	return fmt.Sprintf("COMMAND %v", i.Value)
}

// Run a command, set RC and raise ERROR or FAILURE for nonzero return
// codes. An environment without a handler fails with RC -3.
func (a *Activation) runCommand(env string, command string) error {
	a.traceCommand(command)
	if a.settings.Security != nil {
		if err := a.settings.Security.CheckCommand(env, command); err != nil {
			return a.RaiseError(ErrSystemService, object.String(err.Error()))
		}
	}

	rc := 0
	description := command
	req := &ExitRequest{Kind: ExitCommand, Text: command, Environment: env}
	handled, err := a.activity.callExit(a, req)
	switch {
	case err != nil:
		return err
	case handled:
		rc = req.RC
	default:
		handler, ok := a.activity.manager.command(env)
		if !ok {
			rc = -3
		} else if rc, err = handler(a, command); err != nil {
			log.Debug().Err(err).Str("environment", env).Msg("command failed")
			if rc >= 0 {
				rc = -1
			}
		}
	}

	rcText := object.String(strconv.Itoa(rc))
	a.SetLocal("RC", rcText)
	a.traceCommandFailure(rc)
	if rc == 0 {
		return nil
	}
	if rc < 0 {
		cond := NewCondition(CondFailure, description)
		cond.RC = rcText
		if handled, err := a.offer(cond); handled {
			return err
		}
	}
	// an untrapped FAILURE raises ERROR instead
	cond := NewCondition(CondError, description)
	cond.RC = rcText
	return a.RaiseCondition(cond)
}

type NumericKind int

const (
	NumericDigits NumericKind = iota
	NumericFuzz
	NumericForm
)

// NUMERIC DIGITS, FUZZ or FORM. A missing value restores the default.
type Numeric struct {
	Clause
	Kind  NumericKind
	Value Expression
}

func (i *Numeric) Execute(act *Activation, stack *EvaluationStack) error {
	n := act.settings.Numeric
	defaults := act.activity.manager.options.Numeric
	text, err := evaluateText(act, stack, i.Value)
	if err != nil {
		return err
	}
	switch i.Kind {
	case NumericDigits:
		n.Digits = defaults.Digits
		if i.Value != nil {
			digits, ok := n.WholeNumber(text)
			if !ok || digits <= 0 || digits <= n.Fuzz {
				return act.RaiseError(ErrDigitsValue, object.String(text))
			}
			n.Digits = digits
		}
	case NumericFuzz:
		n.Fuzz = defaults.Fuzz
		if i.Value != nil {
			fuzz, ok := n.WholeNumber(text)
			if !ok || fuzz < 0 || fuzz >= n.Digits {
				return act.RaiseError(ErrFuzzValue, object.String(text))
			}
			n.Fuzz = fuzz
		}
	case NumericForm:
		switch strings.ToUpper(strings.TrimSpace(text)) {
		case "", "SCIENTIFIC":
			n.Form = object.Scientific
		case "ENGINEERING":
			n.Form = object.Engineering
		default:
			return act.RaiseError(ErrFormValue, object.String(text))
		}
	}
	act.SetNumeric(n)
	return nil
}

func (i *Numeric) String() string {
	kinds := []string{"DIGITS", "FUZZ", "FORM"}
	return fmt.Sprintf("NUMERIC %s %v", kinds[i.Kind], i.Value)
}

type Trace struct {
	Clause
	Value Expression
}

func (i *Trace) Execute(act *Activation, stack *EvaluationStack) error {
	text, err := evaluateText(act, stack, i.Value)
	if err != nil {
		return err
	}
	setting, ok := ParseTrace(text)
	if !ok {
		return act.RaiseError(ErrTraceOption, object.String(text))
	}
	act.settings.Trace = setting
	return nil
}

func (i *Trace) String() string {
	return fmt.Sprintf("TRACE %v", i.Value)
}

// Split text into blank-delimited words for a parsing template. Each target
// but the last gets one word and the last gets the rest; nil targets are
// placeholders.
func parseWords(act *Activation, text string, targets []VariableRef, upper bool) error {
	if upper {
		text = strings.ToUpper(text)
	}
	for n, target := range targets {
		text = strings.TrimLeft(text, " ")
		var value string
		if n == len(targets)-1 {
			value = text
		} else {
			value, text, _ = strings.Cut(text, " ")
		}
		if target == nil {
			continue
		}
		act.traceIntermediate('=', object.String(value))
		if err := target.Assign(act, object.String(value)); err != nil {
			return err
		}
	}
	return nil
}

// PULL, or PARSE PULL when Upper is false.
type Pull struct {
	Clause
	Targets []VariableRef
	Upper   bool
}

func (i *Pull) Execute(act *Activation, stack *EvaluationStack) error {
	line, err := act.activity.pull(act)
	if err != nil {
		return act.RaiseError(ErrSystemService, object.String(err.Error()))
	}
	return parseWords(act, line, i.Targets, i.Upper)
}

func (i *Pull) String() string {
	return fmt.Sprintf("PULL %v", i.Targets)
}

// PUSH when Lifo is set, QUEUE otherwise.
type Push struct {
	Clause
	Value Expression
	Lifo  bool
}

func (i *Push) Execute(act *Activation, stack *EvaluationStack) error {
	text, err := evaluateText(act, stack, i.Value)
	if err != nil {
		return err
	}
	return act.activity.queueLine(act, text, i.Lifo)
}

func (i *Push) String() string {
	if i.Lifo {
		return fmt.Sprintf("PUSH %v", i.Value)
	}
	return fmt.Sprintf("QUEUE %v", i.Value)
}

// ARG, or PARSE ARG when Upper is false: parse the first argument into
// words.
type Arg struct {
	Clause
	Targets []VariableRef
	Upper   bool
}

func (i *Arg) Execute(act *Activation, stack *EvaluationStack) error {
	text := ""
	if len(act.args) > 0 && act.args[0] != nil {
		text = object.RequestText(act.args[0])
	}
	return parseWords(act, text, i.Targets, i.Upper)
}

func (i *Arg) String() string {
	return fmt.Sprintf("ARG %v", i.Targets)
}

// USE ARG: bind arguments to variables by position. Omitted arguments drop
// the variable.
type UseArg struct {
	Clause
	Targets []VariableRef
}

func (i *UseArg) Execute(act *Activation, stack *EvaluationStack) error {
	for n, target := range i.Targets {
		if target == nil {
			continue
		}
		var err error
		if n < len(act.args) && act.args[n] != nil {
			err = target.Assign(act, act.args[n])
		} else {
			err = target.Drop(act)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (i *UseArg) String() string {
	return fmt.Sprintf("USE ARG %v", i.Targets)
}
