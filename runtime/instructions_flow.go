package runtime

import (
	"fmt"
	"strconv"

	"github.com/glossopoeia/rexxcore/object"
)

// An active repetitive DO loop.
type doBlock struct {
	start     int
	end       int
	control   VariableRef
	to        string
	hasTo     bool
	by        string
	remaining int
	hasFor    bool
	while     Expression
	until     Expression
}

func (b *doBlock) name() string {
	if b.control == nil {
		return ""
	}
	return b.control.Name()
}

// Whether another iteration runs. Counting down FOR happens here.
func (b *doBlock) proceed(act *Activation, stack *EvaluationStack) (bool, error) {
	if b.hasFor {
		if b.remaining <= 0 {
			return false, nil
		}
		b.remaining--
	}
	if b.control != nil && b.hasTo {
		v, err := b.control.Evaluate(act, stack)
		if err != nil {
			return false, err
		}
		cmp, ok := act.settings.Numeric.Compare(object.RequestText(v), b.to)
		if !ok {
			return false, act.RaiseError(ErrNonNumeric, v)
		}
		descending := len(b.by) > 0 && b.by[0] == '-'
		if (!descending && cmp > 0) || (descending && cmp < 0) {
			return false, nil
		}
	}
	if b.while != nil {
		v, err := b.while.Evaluate(act, stack)
		if err != nil {
			return false, err
		}
		return act.logical(v)
	}
	return true, nil
}

// Start of a repetitive DO loop: DO [control = from [TO to] [BY by]
// [FOR count]] [WHILE cond | UNTIL cond], or DO FOREVER. End is the index of
// the matching DoEnd.
type DoStart struct {
	Clause
	Control VariableRef
	From    Expression
	To      Expression
	By      Expression
	For     Expression
	While   Expression
	Until   Expression
	End     int
}

func (i *DoStart) numeric(act *Activation, stack *EvaluationStack, e Expression) (string, error) {
	v, err := e.Evaluate(act, stack)
	if err != nil {
		return "", err
	}
	res, err := act.settings.Numeric.Arithmetic(object.OpAdd, "0", object.RequestText(v))
	if err != nil {
		return "", act.arithmeticError(err)
	}
	return res, nil
}

func (i *DoStart) Execute(act *Activation, stack *EvaluationStack) error {
	block := &doBlock{start: act.current, end: i.End, while: i.While, until: i.Until, by: "1"}
	if i.Control != nil {
		from, err := i.numeric(act, stack, i.From)
		if err != nil {
			return err
		}
		if i.To != nil {
			if block.to, err = i.numeric(act, stack, i.To); err != nil {
				return err
			}
			block.hasTo = true
		}
		if i.By != nil {
			if block.by, err = i.numeric(act, stack, i.By); err != nil {
				return err
			}
		}
		block.control = i.Control
		if err := i.Control.Assign(act, object.String(from)); err != nil {
			return err
		}
	}
	if i.For != nil {
		text, err := evaluateText(act, stack, i.For)
		if err != nil {
			return err
		}
		count, ok := act.settings.Numeric.WholeNumber(text)
		if !ok || count < 0 {
			return act.RaiseError(ErrInvalidWhole, object.String(strconv.Itoa(act.settings.Numeric.Digits)), object.String(text))
		}
		block.remaining = count
		block.hasFor = true
	}

	act.doStack = append(act.doStack, block)
	ok, err := block.proceed(act, stack)
	if err != nil {
		return err
	}
	if !ok {
		act.popDo(len(act.doStack) - 1)
		act.next = i.End + 1
	}
	return nil
}

func (i *DoStart) String() string {
	if i.Control != nil {
		return fmt.Sprintf("DO %s = %v TO %v BY %v FOR %v WHILE %v UNTIL %v -> %04d", i.Control.Name(), i.From, i.To, i.By, i.For, i.While, i.Until, i.End)
	}
	return fmt.Sprintf("DO FOR %v WHILE %v UNTIL %v -> %04d", i.For, i.While, i.Until, i.End)
}

// End of a repetitive DO loop: UNTIL, step, and the next iteration check.
type DoEnd struct {
	Clause
	Start int
}

func (i *DoEnd) Execute(act *Activation, stack *EvaluationStack) error {
	n := len(act.doStack)
	if n == 0 || act.doStack[n-1].start != i.Start {
		// entered by SIGNAL; the loop is no longer active
		return nil
	}
	block := act.doStack[n-1]
	if block.until != nil {
		v, err := block.until.Evaluate(act, stack)
		if err != nil {
			return err
		}
		done, err := act.logical(v)
		if err != nil {
			return err
		}
		if done {
			act.popDo(n - 1)
			return nil
		}
	}
	if block.control != nil {
		v, err := block.control.Evaluate(act, stack)
		if err != nil {
			return err
		}
		next, err := act.settings.Numeric.Arithmetic(object.OpAdd, object.RequestText(v), block.by)
		if err != nil {
			return act.arithmeticError(err)
		}
		if err := block.control.Assign(act, object.String(next)); err != nil {
			return err
		}
	}
	ok, err := block.proceed(act, stack)
	if err != nil {
		return err
	}
	if ok {
		act.next = block.start + 1
	} else {
		act.popDo(n - 1)
	}
	return nil
}

func (i *DoEnd) String() string {
	return fmt.Sprintf("END -> %04d", i.Start)
}

// Discard the loop at index and every loop nested in it.
func (a *Activation) popDo(index int) {
	clear(a.doStack[index:])
	a.doStack = a.doStack[:index]
}

// Find the innermost active loop, or the one with the named control
// variable.
func (a *Activation) findDo(name string, leave bool) (int, error) {
	for n := len(a.doStack) - 1; n >= 0; n-- {
		if name == "" || a.doStack[n].name() == name {
			return n, nil
		}
	}
	switch {
	case name != "":
		return 0, a.RaiseError(ErrLeaveName, object.String(name))
	case leave:
		return 0, a.RaiseError(ErrInvalidLeave)
	default:
		return 0, a.RaiseError(ErrInvalidIterate)
	}
}

type Leave struct {
	Clause
	Name string
}

func (i *Leave) Execute(act *Activation, stack *EvaluationStack) error {
	n, err := act.findDo(i.Name, true)
	if err != nil {
		return err
	}
	end := act.doStack[n].end
	act.popDo(n)
	act.next = end + 1
	return nil
}

func (i *Leave) String() string {
	return "LEAVE " + i.Name
}

type Iterate struct {
	Clause
	Name string
}

func (i *Iterate) Execute(act *Activation, stack *EvaluationStack) error {
	n, err := act.findDo(i.Name, false)
	if err != nil {
		return err
	}
	act.popDo(n + 1)
	act.next = act.doStack[n].end
	return nil
}

func (i *Iterate) String() string {
	return "ITERATE " + i.Name
}

// Continue at Target unless the condition is true, as IF and WHEN do.
type JumpFalse struct {
	Clause
	Condition Expression
	Target    int
}

func (i *JumpFalse) Execute(act *Activation, stack *EvaluationStack) error {
	v, err := i.Condition.Evaluate(act, stack)
	if err != nil {
		return err
	}
	act.traceResult(v)
	ok, err := act.logical(v)
	if err != nil {
		return err
	}
	if !ok {
		act.next = i.Target
	}
	return nil
}

func (i *JumpFalse) String() string {
	return fmt.Sprintf("IF NOT %v -> %04d", i.Condition, i.Target)
}

type Jump struct {
	Clause
	Target int
}

func (i *Jump) Execute(act *Activation, stack *EvaluationStack) error {
	act.next = i.Target
	return nil
}

func (i *Jump) String() string {
	return fmt.Sprintf("JUMP -> %04d", i.Target)
}
