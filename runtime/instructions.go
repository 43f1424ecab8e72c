package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
)

// Clause carries the source line of an instruction.
type Clause struct {
	LineNo int
}

func (c Clause) Line() int {
	return c.LineNo
}

func evaluateText(act *Activation, stack *EvaluationStack, e Expression) (string, error) {
	if e == nil {
		return "", nil
	}
	v, err := e.Evaluate(act, stack)
	if err != nil {
		return "", err
	}
	return object.RequestText(v), nil
}

func evaluateOptional(act *Activation, stack *EvaluationStack, e Expression) (object.Value, error) {
	if e == nil {
		return nil, nil
	}
	v, err := e.Evaluate(act, stack)
	if err != nil {
		return nil, err
	}
	act.traceResult(v)
	return v, nil
}

type Nop struct {
	Clause
}

func (i *Nop) Execute(act *Activation, stack *EvaluationStack) error {
	return nil
}

func (i *Nop) String() string {
	return "NOP"
}

type Label struct {
	Clause
	Name string
}

func (i *Label) Execute(act *Activation, stack *EvaluationStack) error {
	return nil
}

func (i *Label) String() string {
	return "LABEL " + i.Name
}

type Assign struct {
	Clause
	Target VariableRef
	Value  Expression
}

func (i *Assign) Execute(act *Activation, stack *EvaluationStack) error {
	v, err := i.Value.Evaluate(act, stack)
	if err != nil {
		return err
	}
	act.traceResult(v)
	return i.Target.Assign(act, v)
}

func (i *Assign) String() string {
	return fmt.Sprintf("ASSIGN %s = %v", i.Target.Name(), i.Value)
}

type Say struct {
	Clause
	Value Expression
}

func (i *Say) Execute(act *Activation, stack *EvaluationStack) error {
	v, err := evaluateOptional(act, stack, i.Value)
	if err != nil {
		return err
	}
	text := ""
	if v != nil {
		text = object.RequestText(v)
	}
	return act.activity.say(act, text)
}

func (i *Say) String() string {
	return fmt.Sprintf("SAY %v", i.Value)
}

// Snapshot the tails of exposed compound variables in the caller's
// variables, before the names are rebound.
func exposeTails(act *Activation, names []VariableRef) ([]string, error) {
	tails := make([]string, len(names))
	for n, ref := range names {
		if c, ok := ref.(*CompoundVariable); ok {
			tail, err := c.tail(act)
			if err != nil {
				return nil, err
			}
			tails[n] = tail
		}
	}
	return tails, nil
}

// Bind names of the from dictionary into the activation's variables.
func exposeNames(act *Activation, from *variables.Dictionary, names []VariableRef, tails []string) {
	for n, ref := range names {
		switch ref := ref.(type) {
		case *CompoundVariable:
			real := from.Stem(ref.Stem).ExposeCompoundVariable(tails[n])
			act.locals.Dictionary().Stem(ref.Stem).ExposeAlias(tails[n], real)
		default:
			act.locals.Expose(from.Get(ref.Name()))
		}
	}
}

// PROCEDURE [EXPOSE names]: give an internal routine its own variables.
type Procedure struct {
	Clause
	Expose []VariableRef
}

func (i *Procedure) Execute(act *Activation, stack *EvaluationStack) error {
	if !act.procedureValid || act.context != ContextInternal {
		return act.RaiseError(ErrUnexpectedProcedure)
	}
	tails, err := exposeTails(act, i.Expose)
	if err != nil {
		return err
	}
	old := act.locals.Dictionary()
	act.locals.Procedure()
	exposeNames(act, old, i.Expose, tails)
	return nil
}

func (i *Procedure) String() string {
	return fmt.Sprintf("PROCEDURE EXPOSE %v", i.Expose)
}

// EXPOSE names: bind object variables of the method's scope.
type Expose struct {
	Clause
	Names []VariableRef
}

func (i *Expose) Execute(act *Activation, stack *EvaluationStack) error {
	if !act.procedureValid || act.context != ContextMethod || act.scope == nil {
		return act.RaiseError(ErrUnexpectedExpose)
	}
	tails, err := exposeTails(act, i.Names)
	if err != nil {
		return err
	}
	exposeNames(act, act.scope.variables, i.Names, tails)
	return nil
}

func (i *Expose) String() string {
	return fmt.Sprintf("EXPOSE %v", i.Names)
}

type Drop struct {
	Clause
	Targets []VariableRef
}

func (i *Drop) Execute(act *Activation, stack *EvaluationStack) error {
	for _, t := range i.Targets {
		if err := t.Drop(act); err != nil {
			return err
		}
	}
	return nil
}

func (i *Drop) String() string {
	return fmt.Sprintf("DROP %v", i.Targets)
}

// CALL name [args]. RESULT is set to the returned value or dropped.
type Call struct {
	Clause
	Name   string
	Args   []Expression
	Quoted bool
}

func (i *Call) Execute(act *Activation, stack *EvaluationStack) error {
	args, err := evaluateArgs(act, stack, i.Args)
	if err != nil {
		return err
	}
	result, err := act.CallRoutine(i.Name, args, !i.Quoted, false)
	if err != nil {
		return err
	}
	if result != nil {
		act.SetLocal("RESULT", result)
	} else {
		act.DropLocal("RESULT")
	}
	return nil
}

func (i *Call) String() string {
	return fmt.Sprintf("CALL %s %v", i.Name, i.Args)
}

// CALL ON, CALL OFF, SIGNAL ON and SIGNAL OFF.
type SetTrap struct {
	Clause
	Kind      TrapKind
	Condition string
	Label     string
	On        bool
}

func (i *SetTrap) Execute(act *Activation, stack *EvaluationStack) error {
	act.SetTrap(i.Condition, i.Kind, i.Label, i.On)
	return nil
}

func (i *SetTrap) String() string {
	state := "OFF"
	if i.On {
		state = "ON"
	}
	return fmt.Sprintf("%v %s %s NAME %s", i.Kind, state, i.Condition, i.Label)
}

// SIGNAL label, or SIGNAL VALUE expr.
type Signal struct {
	Clause
	Label string
	Value Expression
}

func (i *Signal) Execute(act *Activation, stack *EvaluationStack) error {
	label := i.Label
	if i.Value != nil {
		text, err := evaluateText(act, stack, i.Value)
		if err != nil {
			return err
		}
		label = strings.ToUpper(text)
	}
	return act.signalTo(label, nil)
}

func (i *Signal) String() string {
	if i.Value != nil {
		return fmt.Sprintf("SIGNAL VALUE %v", i.Value)
	}
	return "SIGNAL " + i.Label
}

type Return struct {
	Clause
	Value Expression
}

func (i *Return) Execute(act *Activation, stack *EvaluationStack) error {
	v, err := evaluateOptional(act, stack, i.Value)
	if err != nil {
		return err
	}
	if v == nil && act.calledAsFunction && act.context == ContextInternal {
		return act.RaiseError(ErrReturnNoData, object.String(act.name))
	}
	return act.returnFrom(v)
}

func (i *Return) String() string {
	return fmt.Sprintf("RETURN %v", i.Value)
}

// EXIT ends the program, or the routine or method when run as one.
type Exit struct {
	Clause
	Value Expression
}

func (i *Exit) Execute(act *Activation, stack *EvaluationStack) error {
	v, err := evaluateOptional(act, stack, i.Value)
	if err != nil {
		return err
	}
	if act.replyIssued && v != nil {
		return act.RaiseError(ErrReplyReturn)
	}
	return &exitSignal{result: v, exit: true}
}

func (i *Exit) String() string {
	return fmt.Sprintf("EXIT %v", i.Value)
}

type Reply struct {
	Clause
	Value Expression
}

func (i *Reply) Execute(act *Activation, stack *EvaluationStack) error {
	v, err := evaluateOptional(act, stack, i.Value)
	if err != nil {
		return err
	}
	return act.Reply(v)
}

func (i *Reply) String() string {
	return fmt.Sprintf("REPLY %v", i.Value)
}

type Interpret struct {
	Clause
	Value Expression
}

func (i *Interpret) Execute(act *Activation, stack *EvaluationStack) error {
	text, err := evaluateText(act, stack, i.Value)
	if err != nil {
		return err
	}
	act.traceResult(object.String(text))
	return act.Interpret(text)
}

func (i *Interpret) String() string {
	return fmt.Sprintf("INTERPRET %v", i.Value)
}

// RAISE condition with its options. For SYNTAX the RC is the error code.
type Raise struct {
	Clause
	Condition   string
	RC          Expression
	Description Expression
	Additional  []Expression
	Result      Expression
	Exit        bool
	Return      bool
	Propagate   bool
}

func (i *Raise) Execute(act *Activation, stack *EvaluationStack) error {
	rc, err := evaluateOptional(act, stack, i.RC)
	if err != nil {
		return err
	}
	description, err := evaluateText(act, stack, i.Description)
	if err != nil {
		return err
	}
	additional, err := evaluateArgs(act, stack, i.Additional)
	if err != nil {
		return err
	}
	result, err := evaluateOptional(act, stack, i.Result)
	if err != nil {
		return err
	}

	if i.Propagate {
		if current := act.settings.condition; current != nil && strings.EqualFold(current.Name, i.Condition) {
			if i.RC != nil {
				current.RC = rc
			}
			if i.Description != nil {
				current.Description = description
			}
			if i.Additional != nil {
				current.Additional = additional
			}
			if i.Result != nil {
				current.Result = result
			}
			return act.propagate(current, result)
		}
	}

	var cond *Condition
	if strings.EqualFold(i.Condition, CondSyntax) {
		cond, err = act.newError(object.RequestText(rc), additional)
		if err != nil {
			return err
		}
		cond.Description = description
	} else {
		cond = NewCondition(i.Condition, description)
		cond.RC = rc
		if i.Additional != nil {
			cond.Additional = additional
		}
	}
	cond.Result = result

	if i.Propagate {
		cond.Program = act.code.Name
		cond.Line = act.Line()
		cond.Traceback = act.activity.traceback()
		return act.propagate(cond, result)
	}
	if err := act.RaiseCondition(cond); err != nil {
		return err
	}
	switch {
	case i.Exit:
		return &exitSignal{result: result, exit: true}
	case i.Return:
		return act.returnFrom(result)
	}
	return nil
}

func (i *Raise) String() string {
	return "RAISE " + i.Condition
}

// GUARD ON or OFF, optionally waiting for an expression over object
// variables to become true.
type Guard struct {
	Clause
	On   bool
	When Expression
}

func (i *Guard) Execute(act *Activation, stack *EvaluationStack) error {
	if act.scope == nil {
		return nil
	}
	if i.On && !act.reserved {
		if err := act.reserveScope(); err != nil {
			return err
		}
	} else if !i.On && act.reserved {
		act.scope.Release(act.activity)
		act.reserved = false
	}
	if i.When == nil {
		return nil
	}
	for {
		v, err := i.When.Evaluate(act, stack)
		if err != nil {
			return err
		}
		ready, err := act.logical(v)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if err := act.scope.waitForChange(act.activity); err != nil {
			if errors.Is(err, ErrDeadlock) {
				return act.RaiseError(ErrDeadlockDetected, object.String("an object variable scope"))
			}
			return err
		}
	}
}

func (i *Guard) String() string {
	if i.On {
		return fmt.Sprintf("GUARD ON WHEN %v", i.When)
	}
	return fmt.Sprintf("GUARD OFF WHEN %v", i.When)
}

// FORWARD [TO receiver] [MESSAGE name] [ARGUMENTS args] [CONTINUE].
type Forward struct {
	Clause
	To       Expression
	Message  string
	Args     []Expression
	HasArgs  bool
	Continue bool
}

func (i *Forward) Execute(act *Activation, stack *EvaluationStack) error {
	receiver, err := evaluateOptional(act, stack, i.To)
	if err != nil {
		return err
	}
	var args []object.Value
	if i.HasArgs {
		if args, err = evaluateArgs(act, stack, i.Args); err != nil {
			return err
		}
	}
	result, err := act.Forward(receiver, i.Message, args, i.Continue)
	if err != nil {
		return err
	}
	if i.Continue {
		if result != nil {
			act.SetLocal("RESULT", result)
		} else {
			act.DropLocal("RESULT")
		}
	}
	return nil
}

func (i *Forward) String() string {
	return fmt.Sprintf("FORWARD TO %v MESSAGE %s", i.To, i.Message)
}

type Requires struct {
	Clause
	Name string
}

func (i *Requires) Execute(act *Activation, stack *EvaluationStack) error {
	return act.Requires(i.Name)
}

func (i *Requires) String() string {
	return "REQUIRES " + i.Name
}

// A clause consisting of a message term. RESULT is set to what it returns.
type Message struct {
	Clause
	Value Expression
}

func (i *Message) Execute(act *Activation, stack *EvaluationStack) error {
	var v object.Value
	var err error
	if send, ok := i.Value.(*MessageSend); ok {
		v, err = send.dispatch(act, stack)
	} else {
		v, err = i.Value.Evaluate(act, stack)
	}
	if err != nil {
		return err
	}
	if v != nil {
		act.SetLocal("RESULT", v)
	} else {
		act.DropLocal("RESULT")
	}
	return nil
}

func (i *Message) String() string {
	return fmt.Sprintf("MESSAGE %v", i.Value)
}
