package runtime

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog/log"
)

// Offer a condition to this activation's traps. Returns true if a trap
// accepted it; the error is the control transfer a SIGNAL trap requires.
// CALL traps are queued for the next clause boundary.
func (a *Activation) trap(cond *Condition) (bool, error) {
	if a.forwarded && a.sender != nil {
		return a.sender.trap(cond)
	}
	trap, ok := a.settings.Traps[cond.Name]
	if !ok {
		trap, ok = a.settings.Traps[CondAny]
		if ok && trap.Kind == TrapCall && isSignalOnly(cond.Name) {
			ok = false
		}
	}
	if !ok {
		return false, nil
	}

	log.Debug().Str("condition", cond.Name).Str("kind", trap.Kind.String()).Str("label", trap.Label).Msg("condition trapped")
	cond.Instruction = trap.Kind.String()
	if trap.Kind == TrapSignal {
		// SIGNAL ON traps fire once
		delete(a.settings.Traps, trap.Condition)
		return true, a.signalTo(trap.Label, cond)
	}
	a.conditionQueue.Enqueue(cond)
	a.handlerQueue.Enqueue(trap)
	a.pendingCount++
	a.clauseBoundary = true
	return true, nil
}

// Raise a condition in this activation. It is offered to each activation up
// to the nearest program, routine or method level. An untrapped SYNTAX
// condition comes back as a *ConditionError; other untrapped conditions are
// ignored.
func (a *Activation) raise(cond *Condition) error {
	if handled, err := a.offer(cond); handled {
		return err
	}
	if cond.IsSyntax() {
		return &ConditionError{Condition: cond}
	}
	return nil
}

// Offer a condition to this activation and its callers up to the nearest
// program, routine or method level.
func (a *Activation) offer(cond *Condition) (bool, error) {
	for act := a; act != nil; act = act.sender {
		if act != a {
			cond.Propagated = true
		}
		if handled, err := act.trap(cond); handled {
			return true, err
		}
		if act.context.TopLevel() {
			break
		}
	}
	return false, nil
}

// RAISE PROPAGATE: the condition is raised again in the caller of this
// activation, keeping its traceback, and this activation ends as if it
// returned. A SIGNAL trap in the caller unwinds through this activation.
func (a *Activation) propagate(cond *Condition, result object.Value) error {
	cond.Propagated = true
	caller := a.signalTarget().sender
	log.Debug().Str("condition", cond.Name).Str("program", a.code.Name).Msg("condition propagated")
	if caller == nil {
		if cond.IsSyntax() {
			return &ConditionError{Condition: cond}
		}
		return a.returnFrom(result)
	}
	if err := caller.raise(cond); err != nil {
		return err
	}
	return a.returnFrom(result)
}

// Raise a SYNTAX error with message substitutions. The returned error is
// never nil.
func (a *Activation) RaiseError(code string, subs ...object.Value) error {
	cond, err := a.newError(code, subs)
	if err != nil {
		return err
	}
	return a.raise(cond)
}

// Raise a named condition, as RAISE and native code do. Returns nil if the
// condition was not trapped and is not fatal.
func (a *Activation) RaiseCondition(cond *Condition) error {
	if cond.Program == "" {
		cond.Program = a.code.Name
		cond.Line = a.Line()
	}
	if cond.Traceback == nil {
		cond.Traceback = a.activity.traceback()
	}
	return a.raise(cond)
}

func (a *Activation) newError(code string, subs []object.Value) (*Condition, error) {
	texts := make([]string, len(subs))
	for i, s := range subs {
		text, err := a.substitution(s)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}
	if a.activity.formattingMessage {
		texts = []string{code}
		code = ErrInternalRecursion
	}
	cond := &Condition{
		Name:       CondSyntax,
		Code:       code,
		Additional: subs,
		Program:    a.code.Name,
		Line:       a.Line(),
		Traceback:  a.activity.traceback(),
		Message:    MessageText(code, texts),
	}
	cond.RC = object.String(strconv.Itoa(cond.Major()))
	cond.ErrorText = ErrorText(cond.Major())
	return cond, nil
}

// The string form of an error message substitution. Objects without one are
// asked for it through a STRING message; an error raised while doing so is
// an internal recursion.
func (a *Activation) substitution(v object.Value) (string, error) {
	if s, ok := object.Text(v); ok {
		return s, nil
	}
	messenger := a.activity.manager.options.Messenger
	if messenger == nil || a.activity.formattingMessage {
		return object.DefaultName(v), nil
	}
	a.activity.formattingMessage = true
	res, err := messenger.Send(a, v, "STRING", nil)
	a.activity.formattingMessage = false
	if err != nil {
		return "", err
	}
	return object.RequestText(res), nil
}

// Run the CALL ON handlers queued at earlier clauses, in the order their
// conditions arrived. A handler whose trap is in DELAY state is moved to the
// back of the queue and tried again at the next boundary.
func (a *Activation) processTraps() error {
	for i := a.pendingCount; i > 0; i-- {
		c, ok := a.conditionQueue.Dequeue()
		if !ok {
			break
		}
		h, _ := a.handlerQueue.Dequeue()
		cond := c.(*Condition)
		trap := h.(*Trap)
		if trap.State == TrapDelay {
			a.conditionQueue.Enqueue(cond)
			a.handlerQueue.Enqueue(trap)
			continue
		}
		a.pendingCount--
		trap.State = TrapDelay
		_, err := a.internalCall(trap.Label, nil, cond, false)
		if current, ok := a.settings.Traps[trap.Condition]; ok && current == trap && trap.State == TrapDelay {
			trap.State = TrapOn
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Install or remove a trap, as CALL ON, SIGNAL ON, CALL OFF and SIGNAL OFF
// do.
func (a *Activation) SetTrap(condition string, kind TrapKind, label string, on bool) {
	if !on {
		delete(a.settings.Traps, condition)
		return
	}
	if label == "" {
		label = condition
	}
	a.settings.Traps[condition] = &Trap{Condition: condition, Kind: kind, Label: label, State: TrapOn}
}

// Run a callee activation and deal with what comes back. A SYNTAX condition
// leaving a routine or method is raised again here; conditions leaving an
// internal call or INTERPRET were offered to this activation already.
func (a *Activation) runCallee(callee *Activation, args []object.Value) (object.Value, error) {
	topLevel := callee.context.TopLevel()
	result, err := callee.Run(args)
	if err == nil {
		return result, nil
	}
	var condErr *ConditionError
	if topLevel && errors.As(err, &condErr) {
		return nil, a.raise(condErr.Condition)
	}
	return nil, err
}

// The traceback of the frames above the nearest marker, innermost first.
func (a *Activity) traceback() []string {
	lines := []string{}
	for i := len(a.stack) - 1; i >= 0; i-- {
		switch f := a.stack[i].(type) {
		case *stackMarker:
			return lines
		case *Activation:
			line := f.Line()
			lines = append(lines, fmt.Sprintf("%6d *-* %s", line, f.code.SourceLine(line)))
		case *NativeActivation:
			lines = append(lines, fmt.Sprintf("       *-* Compiled routine %q", f.name))
		}
	}
	return lines
}
