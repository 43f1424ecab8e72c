package runtime

import (
	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog/log"
)

// Return a result to the sender early and keep running. The rest of the
// activation continues concurrently once the sender has its result.
// INTERPRET code shares its caller's frames and cannot reply.
func (a *Activation) Reply(result object.Value) error {
	if a.context == ContextInterpret {
		return a.RaiseError(ErrReplyInterpret)
	}
	if a.replyIssued {
		return a.RaiseError(ErrReplyIssued)
	}
	a.replyIssued = true
	a.result = result
	a.state = StateReplied
	return nil
}

// Move the activation onto a new activity and schedule the continuation
// there. Frame storage migrates in allocation order and is released on the
// old activity in reverse.
func (a *Activation) reply() error {
	old := a.activity
	next := old.manager.spawnActivity(old)

	oldStack := a.stack.moveTo(&next.frames)
	oldLocals := a.locals.moveTo(&next.frames)
	if len(a.args) > 0 {
		a.args = append([]object.Value(nil), a.args...)
	}
	old.frames.release(oldLocals)
	old.frames.release(oldStack)

	old.popFrame(a)
	a.activity = next
	a.sender = nil
	next.pushFrame(a)

	if a.reserved && !a.scope.transfer(old, next) {
		// the old activity still holds nested reservations of the scope
		a.reserved = false
		a.transferFailed = true
		log.Warn().Str("method", a.name).Msg("guard transfer failed after REPLY, reserving again")
	}
	log.Debug().Int("from", old.id).Int("to", next.id).Str("name", a.name).Msg("activation replied")
	old.manager.dispatch(next, a.resume)
	return nil
}

// Continue a replied activation on its new activity.
func (a *Activation) resume() {
	activity := a.activity
	a.state = StateActive
	if a.transferFailed {
		a.transferFailed = false
		if err := a.reserveScope(); err != nil {
			a.termination()
			activity.reportUnhandled(err)
			return
		}
	}
	if _, err := a.execute(); err != nil {
		activity.reportUnhandled(err)
	}
}
