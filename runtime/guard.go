package runtime

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
)

// The object variables one class scope of an object contributes, and the
// reservation guarded methods take on them. Reservations are per activity
// and nest.
type ObjectScope struct {
	Object    object.Value
	variables *variables.Dictionary

	owner        *Activity
	reserveCount int
	waiting      *linkedlistqueue.Queue
	guardWaiters []*Activity
}

func NewObjectScope(obj object.Value) *ObjectScope {
	s := &ObjectScope{
		Object:    obj,
		variables: variables.NewDictionary(),
		waiting:   linkedlistqueue.New(),
	}
	s.variables.SetWatcher(s)
	return s
}

func (s *ObjectScope) Variables() *variables.Dictionary {
	return s.variables
}

func (s *ObjectScope) waitOwner() *Activity {
	return s.owner
}

// The activity holding the reservation, if any.
func (s *ObjectScope) Owner() *Activity {
	return s.owner
}

// Reserve the scope for an activity, waiting for other holders to release
// it. Fails with ErrDeadlock instead of waiting on a cycle.
func (s *ObjectScope) Reserve(act *Activity) error {
	if s.owner == act {
		s.reserveCount++
		return nil
	}
	if s.owner == nil {
		s.owner = act
		s.reserveCount = 1
		return nil
	}
	if err := act.checkDeadlock(s); err != nil {
		return err
	}
	s.waiting.Enqueue(act)
	act.waitingOn = s
	for s.owner != act {
		act.releaseAndWait(act.guardSem)
	}
	act.waitingOn = nil
	return nil
}

// Release one reservation. The last release hands the scope to the next
// waiting activity.
func (s *ObjectScope) Release(act *Activity) {
	if s.owner != act {
		panic("Object scope released by an activity that does not hold it.")
	}
	s.reserveCount--
	if s.reserveCount > 0 {
		return
	}
	next, ok := s.waiting.Dequeue()
	if !ok {
		s.owner = nil
		return
	}
	waiter := next.(*Activity)
	s.owner = waiter
	s.reserveCount = 1
	post(waiter.guardSem)
}

// Move a single reservation from one activity to another, as REPLY does.
// Nested reservations stay behind: one is dropped and false is returned.
func (s *ObjectScope) transfer(from *Activity, to *Activity) bool {
	if s.owner != from {
		return false
	}
	if s.reserveCount == 1 {
		s.owner = to
		return true
	}
	s.reserveCount--
	return false
}

// Wake every activity waiting in GUARD WHEN.
func (s *ObjectScope) VariableChanged() {
	for _, waiter := range s.guardWaiters {
		post(waiter.guardSem)
	}
	s.guardWaiters = s.guardWaiters[:0]
}

// Wait for a change to the scope's variables. A held reservation is given
// up while waiting and taken again afterwards.
func (s *ObjectScope) waitForChange(act *Activity) error {
	held := 0
	if s.owner == act {
		held = s.reserveCount
		s.reserveCount = 1
		s.Release(act)
	}
	s.guardWaiters = append(s.guardWaiters, act)
	act.releaseAndWait(act.guardSem)
	for held > 0 {
		if err := s.Reserve(act); err != nil {
			return err
		}
		held--
	}
	return nil
}

// The pending result of work started on another activity.
type MessageResult struct {
	activity *Activity
	mutex    sync.Mutex
	done     bool
	result   object.Value
	err      error
	// Activities blocked in Wait; only touched with the kernel held.
	waiters []*Activity
	doneCh  chan struct{}
}

func newMessageResult(activity *Activity) *MessageResult {
	return &MessageResult{activity: activity, doneCh: make(chan struct{})}
}

func (r *MessageResult) waitOwner() *Activity {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.done {
		return nil
	}
	return r.activity
}

// Called by the running activity, with the kernel held.
func (r *MessageResult) complete(result object.Value, err error) {
	r.mutex.Lock()
	r.done = true
	r.result = result
	r.err = err
	r.mutex.Unlock()
	for _, waiter := range r.waiters {
		post(waiter.guardSem)
	}
	r.waiters = nil
	close(r.doneCh)
}

// Wait for the result from inside a running activation.
func (r *MessageResult) Wait(act *Activation) (object.Value, error) {
	activity := act.activity
	if err := activity.checkDeadlock(r); err != nil {
		return nil, act.RaiseError(ErrDeadlockDetected, object.String("a message result"))
	}
	activity.waitingOn = r
	for !r.isDone() {
		r.waiters = append(r.waiters, activity)
		activity.releaseAndWait(activity.guardSem)
	}
	activity.waitingOn = nil
	return r.result, r.err
}

func (r *MessageResult) isDone() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.done
}

// Wait for the result from outside the interpreter. Cancelling the context
// raises HALT in the activity doing the work, which still has to finish.
func (r *MessageResult) Await(ctx context.Context) (object.Value, error) {
	select {
	case <-r.doneCh:
	case <-ctx.Done():
		r.mutex.Lock()
		if !r.done {
			r.activity.Halt(ctx.Err().Error())
		}
		r.mutex.Unlock()
		<-r.doneCh
	}
	return r.result, r.err
}

// Done is closed once the result is available.
func (r *MessageResult) Done() <-chan struct{} {
	return r.doneCh
}
