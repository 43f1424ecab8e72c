package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
	"github.com/rs/zerolog/log"
)

// An Activation is one call frame of interpreted code: a program, an
// external routine, a method, an internal call, or an INTERPRET string.
type Activation struct {
	activity *Activity
	code     *Code
	sender   *Activation
	context  CallContext
	name     string
	receiver object.Value
	scope    *ObjectScope
	guarded  bool
	reserved bool
	// A REPLY could not hand the scope reservation to the new activity; the
	// continuation reserves it again before running.
	transferFailed bool

	args   []object.Value
	result object.Value

	current  int
	next     int
	locals   LocalVariables
	stack    EvaluationStack
	settings Settings
	doStack  []*doBlock

	conditionQueue *linkedlistqueue.Queue
	handlerQueue   *linkedlistqueue.Queue
	pendingCount   int

	state            ExecutionState
	replyIssued      bool
	clauseBoundary   bool
	procedureValid   bool
	forwarded        bool
	calledAsFunction bool
	senderWasNested  bool
	instructionCount int
	terminated       bool
	lastTraced       int
	// Every TIME call within one clause sees the same clock reading.
	timestamp time.Time
}

func (a *Activation) Activity() *Activity {
	return a.activity
}

func (a *Activation) Code() *Code {
	return a.code
}

func (a *Activation) Sender() *Activation {
	return a.sender
}

func (a *Activation) Context() CallContext {
	return a.context
}

func (a *Activation) Name() string {
	return a.name
}

func (a *Activation) Receiver() object.Value {
	return a.receiver
}

func (a *Activation) Args() []object.Value {
	return a.args
}

func (a *Activation) State() ExecutionState {
	return a.state
}

func (a *Activation) Locals() *LocalVariables {
	return &a.locals
}

func (a *Activation) Settings() *Settings {
	return &a.settings
}

func (a *Activation) Numeric() object.NumericSettings {
	return a.settings.Numeric
}

func (a *Activation) SetNumeric(n object.NumericSettings) {
	a.settings.Numeric = n
	a.activity.numeric = n
}

// The line of the clause being executed.
func (a *Activation) Line() int {
	if a.current < 0 || a.current >= len(a.code.Instructions) {
		return 0
	}
	return a.code.Instructions[a.current].Line()
}

// Executions are not migrated between processes.
func (a *Activation) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

// Make the activation a method activation on a receiver. Guarded methods
// reserve the object scope before running.
func (a *Activation) SetMethod(receiver object.Value, scope *ObjectScope, guarded bool) {
	a.receiver = receiver
	a.scope = scope
	a.guarded = guarded
}

// Prepare a freshly allocated or recycled activation.
func (a *Activation) init(activity *Activity, code *Code, sender *Activation, context CallContext, name string) {
	a.activity = activity
	a.code = code
	a.sender = sender
	a.context = context
	a.name = name
	a.conditionQueue = linkedlistqueue.New()
	a.handlerQueue = linkedlistqueue.New()
	a.current = -1
	a.lastTraced = -2

	inherit := sender != nil && (context == ContextInternal || context == ContextInterpret)
	if inherit {
		a.settings.copyFrom(&sender.settings)
		a.settings.condition = nil
		if context == ContextInterpret {
			a.settings.condition = sender.settings.condition
		}
	} else {
		opts := activity.manager.options
		a.settings = Settings{
			Trace:      opts.Trace,
			Numeric:    opts.Numeric,
			Address:    opts.Address,
			Alternate:  opts.Address,
			Traps:      make(map[string]*Trap),
			Security:   opts.Security,
			randomSeed: activity.randomSeed,
		}
	}

	a.stack.init(activity.frames.allocate(code.MaxStack))
	slots := activity.frames.allocate(code.LocalSize())
	if inherit {
		a.locals.init(slots, sender.locals.Dictionary(), true)
	} else {
		a.locals.init(slots, variables.NewDictionary(), false)
	}
}

// Run the activation until it returns or replies, returning its result. On
// REPLY the result comes back immediately and the rest of the activation
// continues on another activity.
func (a *Activation) Run(args []object.Value) (object.Value, error) {
	a.args = args
	a.activity.pushFrame(a)

	if a.context == ContextInternal {
		for a.next < len(a.code.Instructions) {
			if _, isLabel := a.code.Instructions[a.next].(*Label); !isLabel {
				break
			}
			a.next++
		}
		a.procedureValid = true
	}
	if a.context == ContextMethod {
		a.procedureValid = true
	}
	if a.guarded && a.scope != nil {
		if err := a.reserveScope(); err != nil {
			a.termination()
			return nil, err
		}
	}
	return a.execute()
}

func (a *Activation) execute() (object.Value, error) {
	err := a.runClauses()
	for err != nil {
		var unwind *signalUnwind
		if errors.As(err, &unwind) && unwind.target == a {
			err = a.jump(unwind)
			if err == nil {
				err = a.runClauses()
			}
			continue
		}
		var exit *exitSignal
		if errors.As(err, &exit) && a.catchesExit(exit) {
			if !a.replyIssued {
				a.result = exit.result
			}
			a.state = StateReturned
			err = nil
			break
		}
		var cond *ConditionError
		if errors.As(err, &cond) && a.sender != nil {
			cond.Condition.Propagated = true
		}
		a.termination()
		return nil, err
	}

	result := a.result
	if a.state == StateReplied {
		return result, a.reply()
	}
	a.termination()
	return result, nil
}

func (a *Activation) catchesExit(exit *exitSignal) bool {
	if exit.exit {
		return a.context.TopLevel()
	}
	return a.context != ContextInterpret
}

func (a *Activation) runClauses() error {
	for a.state == StateActive {
		if a.next >= len(a.code.Instructions) {
			// falling off the end is an implicit RETURN
			a.state = StateReturned
			break
		}
		a.current = a.next
		a.next++
		ins := a.code.Instructions[a.current]
		if a.settings.Trace.labels() {
			a.traceClause(ins)
		}
		err := ins.Execute(a, &a.stack)
		a.procedureValid = false
		a.timestamp = time.Time{}
		a.stack.Clear()
		if err != nil {
			return err
		}
		if a.state != StateActive {
			break
		}
		if err := a.clauseEnd(); err != nil {
			return err
		}
	}
	return nil
}

// Deferred work between two clauses.
func (a *Activation) clauseEnd() error {
	if a.clauseBoundary || a.activity.hasRequests() {
		if err := a.processClauseBoundary(); err != nil {
			return err
		}
	}
	if _, ok := a.activity.exits[ExitHalt]; ok {
		if err := a.pollHaltExit(); err != nil {
			return err
		}
	}
	a.instructionCount++
	if a.instructionCount >= a.activity.manager.options.MaxInstructions {
		a.instructionCount = 0
		a.activity.relinquish()
	}
	return nil
}

func (a *Activation) processClauseBoundary() error {
	a.clauseBoundary = false
	if a.pendingCount > 0 {
		if err := a.processTraps(); err != nil {
			return err
		}
	}
	req := a.activity.takeRequests()
	switch req.trace {
	case traceRequestOn:
		a.settings.Trace = TraceResults
	case traceRequestOff:
		a.settings.Trace = TraceOff
	}
	if req.halt {
		if err := a.halt(req.haltDescription); err != nil {
			return err
		}
	}
	if req.yield {
		a.activity.relinquish()
	}
	// handlers still delayed are retried at the next boundary
	if a.pendingCount > 0 {
		a.clauseBoundary = true
	}
	return nil
}

// Transfer control to a label after SIGNAL or a SIGNAL ON trap. All active
// loops are abandoned.
func (a *Activation) jump(unwind *signalUnwind) error {
	idx, ok := a.code.Label(unwind.label)
	if !ok {
		return a.RaiseError(ErrLabelNotFound, object.String(unwind.label))
	}
	a.doStack = nil
	if unwind.condition != nil {
		a.settings.condition = unwind.condition
		if unwind.condition.IsSyntax() {
			a.SetLocal("RC", unwind.condition.RC)
		}
	}
	a.SetLocal("SIGL", object.String(fmt.Sprint(unwind.line)))
	a.next = idx
	a.state = StateActive
	return nil
}

// The activation a SIGNAL from this one lands in. INTERPRET code uses the
// labels of the code that interpreted it.
func (a *Activation) signalTarget() *Activation {
	target := a
	for target.context == ContextInterpret && target.sender != nil {
		target = target.sender
	}
	return target
}

// The code whose labels internal calls and SIGNAL resolve against.
func (a *Activation) labelCode() *Code {
	return a.signalTarget().code
}

// Build the unwind for a SIGNAL to a label.
func (a *Activation) signalTo(label string, cond *Condition) error {
	return &signalUnwind{target: a.signalTarget(), label: label, condition: cond, line: a.Line()}
}

// Mark the activation returned with a result.
func (a *Activation) returnFrom(result object.Value) error {
	if a.replyIssued && result != nil {
		return a.RaiseError(ErrReplyReturn)
	}
	if a.context == ContextInterpret {
		return &exitSignal{result: result}
	}
	if !a.replyIssued {
		a.result = result
	}
	a.state = StateReturned
	return nil
}

// Release everything the activation holds and pop it from its activity.
// Runs exactly once per activation.
func (a *Activation) termination() {
	if a.terminated {
		panic("Activation terminated twice.")
	}
	a.terminated = true
	a.state = StateReturned

	if a.reserved {
		a.scope.Release(a.activity)
		a.reserved = false
	}
	if a.context == ContextInterpret && a.sender != nil {
		a.mergeIntoSender()
	} else if a.context == ContextInternal && a.sender != nil {
		// delayed handlers still fire once the caller resumes
		a.movePendingTraps(a.sender)
	}

	frames := &a.activity.frames
	frames.release(a.locals.storage())
	frames.release(a.stack.storage())

	activity := a.activity
	activity.popFrame(a)
	activity.manager.cacheActivation(a)
}

// INTERPRET hands its settings and pending traps back to the sender.
func (a *Activation) mergeIntoSender() {
	s := a.sender
	s.settings.Trace = a.settings.Trace
	s.settings.Numeric = a.settings.Numeric
	s.settings.Address = a.settings.Address
	s.settings.Alternate = a.settings.Alternate
	s.settings.Traps = a.settings.Traps
	s.settings.elapsed = a.settings.elapsed
	s.settings.hasElapsed = a.settings.hasElapsed
	s.activity.numeric = s.settings.Numeric
	if !a.senderWasNested {
		s.locals.ClearNested()
	}
	s.locals.flush()
	a.movePendingTraps(s)
}

func (a *Activation) movePendingTraps(to *Activation) {
	for a.pendingCount > 0 {
		cond, _ := a.conditionQueue.Dequeue()
		trap, _ := a.handlerQueue.Dequeue()
		to.conditionQueue.Enqueue(cond)
		to.handlerQueue.Enqueue(trap)
		to.pendingCount++
		a.pendingCount--
		to.clauseBoundary = true
	}
}

// Reset a terminated activation for reuse.
func (a *Activation) reset() {
	*a = Activation{}
}

// Set a local variable by name.
func (a *Activation) SetLocal(name string, v object.Value) {
	a.locals.Dictionary().Get(name).Set(v)
}

func (a *Activation) DropLocal(name string) {
	if v := a.locals.Lookup(name); v != nil {
		v.Drop()
	}
}

// Get the value of a local variable, or nil when unset.
func (a *Activation) Local(name string) object.Value {
	if v := a.locals.Lookup(name); v != nil {
		return v.Value()
	}
	return nil
}

// Supply the value of an unset variable: the NOVALUE exit first, then a
// NOVALUE trap. Returns nil when the variable name itself is the value.
func (a *Activation) HandleNovalue(name string) (object.Value, error) {
	req := &ExitRequest{Kind: ExitNovalue, Name: name}
	if handled, err := a.activity.callExit(a, req); err != nil {
		return nil, err
	} else if handled && req.Value != nil {
		return req.Value, nil
	}
	cond := NewCondition(CondNovalue, name)
	if err := a.raise(cond); err != nil {
		return nil, err
	}
	return nil, nil
}

// Reserve the object scope of a guarded method.
func (a *Activation) reserveScope() error {
	if err := a.scope.Reserve(a.activity); err != nil {
		if errors.Is(err, ErrDeadlock) {
			return a.RaiseError(ErrDeadlockDetected, object.String("an object variable scope"))
		}
		return err
	}
	a.reserved = true
	return nil
}

// The cooperative HALT request, applied at a clause boundary.
func (a *Activation) halt(description string) error {
	log.Debug().Str("program", a.code.Name).Str("description", description).Msg("halt requested")
	cond := NewCondition(CondHalt, description)
	handled, err := a.trap(cond)
	if handled {
		return err
	}
	return a.RaiseError(ErrProgramInterrupted, object.String(description))
}

func (a *Activation) pollHaltExit() error {
	req := &ExitRequest{Kind: ExitHalt}
	handled, err := a.activity.callExit(a, req)
	if err != nil {
		return err
	}
	if handled && req.Halt {
		return a.halt(req.Description)
	}
	return nil
}
