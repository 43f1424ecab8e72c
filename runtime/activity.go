package runtime

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog/log"
)

// Something an activity can block on. Deadlock detection follows the chain
// from a waitable to the activity that will release it.
type waitable interface {
	waitOwner() *Activity
}

type traceRequest int

const (
	traceRequestNone traceRequest = iota
	traceRequestOn
	traceRequestOff
)

// Requests posted to an activity from outside, applied by the running
// activation at its next clause boundary.
type activityRequests struct {
	halt            bool
	haltDescription string
	trace           traceRequest
	yield           bool
}

// An Activity is one thread of interpretation: a goroutine with a stack of
// frames. Only the activity holding the kernel lock touches interpreter
// state.
type Activity struct {
	manager *ActivityManager
	id      int

	stack   []Frame
	current *Activation
	frames  frameStack

	runSem   chan struct{}
	guardSem chan struct{}
	work     chan func()
	done     chan struct{}

	// The fatal condition that ended the last program run here.
	condition  *Condition
	requires   map[string]bool
	numeric    object.NumericSettings
	exits      map[ExitKind]ExitHandler
	randomSeed uint64
	waitingOn  waitable
	// Set while the STRING form of an error substitution is requested.
	formattingMessage bool

	pending  atomic.Bool
	reqMutex sync.Mutex
	requests activityRequests
}

func newActivity(m *ActivityManager, id int) *Activity {
	a := &Activity{
		manager:  m,
		id:       id,
		runSem:   make(chan struct{}, 1),
		guardSem: make(chan struct{}, 1),
		work:     make(chan func(), 1),
		done:     make(chan struct{}),
		requires: make(map[string]bool),
		numeric:  m.options.Numeric,
		exits:    make(map[ExitKind]ExitHandler),
	}
	for kind, handler := range m.options.Exits {
		a.exits[kind] = handler
	}
	a.randomSeed = m.seedSource()
	go a.loop()
	return a
}

func (a *Activity) ID() int {
	return a.id
}

func (a *Activity) Manager() *ActivityManager {
	return a.manager
}

// The innermost interpreter activation above the nearest marker.
func (a *Activity) Current() *Activation {
	return a.current
}

func (a *Activity) Numeric() object.NumericSettings {
	return a.numeric
}

// The number of frames on the activity, markers included.
func (a *Activity) Depth() int {
	return len(a.stack)
}

// Activities are not migrated between processes.
func (a *Activity) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

func (a *Activity) loop() {
	for task := range a.work {
		a.runTask(task)
	}
	close(a.done)
}

func (a *Activity) runTask(task func()) {
	a.lockKernel()
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Int("activity", a.id).Interface("panic", r).Msg("activity task panicked")
				a.stack = nil
				a.current = nil
				a.frames = frameStack{}
			}
		}()
		task()
	}()
	a.unlockKernel()
	a.manager.returnActivity(a)
	a.manager.inflight.Done()
}

func (a *Activity) pushFrame(f Frame) {
	a.stack = append(a.stack, f)
	a.updateFrameMarkers()
}

// Pop a frame. Frames leave in the order they arrived; anything else is a
// broken invariant.
func (a *Activity) popFrame(f Frame) {
	n := len(a.stack)
	if n == 0 || a.stack[n-1] != f {
		panic("Activity frame popped out of order.")
	}
	a.stack[n-1] = nil
	a.stack = a.stack[:n-1]
	a.updateFrameMarkers()
}

func (a *Activity) updateFrameMarkers() {
	a.current = nil
	for i := len(a.stack) - 1; i >= 0; i-- {
		switch f := a.stack[i].(type) {
		case *stackMarker:
			return
		case *Activation:
			a.current = f
			a.numeric = f.settings.Numeric
			return
		}
	}
}

// Pop everything above a depth, as a native frame does before raising a
// condition.
func (a *Activity) restoreLevel(depth int) {
	for len(a.stack) > depth {
		a.stack[len(a.stack)-1] = nil
		a.stack = a.stack[:len(a.stack)-1]
	}
	a.updateFrameMarkers()
}

// Run code as an independent invocation on this activity.
func (a *Activity) runCode(code *Code, context CallContext, args []object.Value, setup func(*Activation)) (object.Value, error) {
	marker := &stackMarker{name: code.Name}
	a.pushFrame(marker)
	act := a.manager.newActivation()
	act.init(a, code, nil, context, code.Name)
	if setup != nil {
		setup(act)
	}
	result, err := act.Run(args)
	a.popFrame(marker)
	if err != nil {
		a.reportUnhandled(err)
	}
	return result, err
}

// Display an error that ended a program.
func (a *Activity) reportUnhandled(err error) {
	var condErr *ConditionError
	if !errors.As(err, &condErr) {
		log.Error().Err(err).Int("activity", a.id).Msg("program ended abnormally")
		return
	}
	a.condition = condErr.Condition
	out := a.manager.options.Streams.Error
	for _, line := range condErr.Condition.Traceback {
		fmt.Fprintln(out, line)
	}
	for _, line := range FormatError(condErr.Condition) {
		fmt.Fprintln(out, line)
	}
}

func (a *Activity) lockKernel() {
	a.manager.lockKernel(a)
}

func (a *Activity) unlockKernel() {
	a.manager.unlockKernel(a)
}

// Let the next waiting activity run. Returns once this activity holds the
// kernel again.
func (a *Activity) relinquish() {
	a.manager.relinquish(a)
}

// Give up the kernel until the semaphore is posted.
func (a *Activity) releaseAndWait(sem chan struct{}) {
	a.unlockKernel()
	<-sem
	a.lockKernel()
}

func post(sem chan struct{}) {
	select {
	case sem <- struct{}{}:
	default:
	}
}

// Check whether blocking on target would close a wait cycle back to this
// activity.
func (a *Activity) checkDeadlock(target waitable) error {
	visited := map[*Activity]bool{}
	for owner := target.waitOwner(); owner != nil; {
		if owner == a {
			return ErrDeadlock
		}
		if visited[owner] || owner.waitingOn == nil {
			return nil
		}
		visited[owner] = true
		owner = owner.waitingOn.waitOwner()
	}
	return nil
}

// Ask the activity to raise HALT at its next clause boundary.
func (a *Activity) Halt(description string) {
	a.reqMutex.Lock()
	a.requests.halt = true
	a.requests.haltDescription = description
	a.reqMutex.Unlock()
	a.pending.Store(true)
}

// Ask the activity to switch tracing on or off at its next clause boundary.
func (a *Activity) SetTrace(on bool) {
	a.reqMutex.Lock()
	if on {
		a.requests.trace = traceRequestOn
	} else {
		a.requests.trace = traceRequestOff
	}
	a.reqMutex.Unlock()
	a.pending.Store(true)
}

// Ask the activity to give up the kernel at its next clause boundary.
func (a *Activity) Yield() {
	a.reqMutex.Lock()
	a.requests.yield = true
	a.reqMutex.Unlock()
	a.pending.Store(true)
}

func (a *Activity) hasRequests() bool {
	return a.pending.Load()
}

func (a *Activity) takeRequests() activityRequests {
	a.reqMutex.Lock()
	defer a.reqMutex.Unlock()
	req := a.requests
	a.requests = activityRequests{}
	a.pending.Store(false)
	return req
}

// Reset per-run state before the activity goes back into the pool.
func (a *Activity) recycle() {
	a.stack = a.stack[:0]
	a.current = nil
	a.condition = nil
	a.waitingOn = nil
	clear(a.requires)
	a.takeRequests()
	clear(a.exits)
	for kind, handler := range a.manager.options.Exits {
		a.exits[kind] = handler
	}
	a.numeric = a.manager.options.Numeric
}
