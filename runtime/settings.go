package runtime

import (
	"strings"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"golang.org/x/exp/maps"
)

type ExecutionState int

const (
	StateActive ExecutionState = iota
	StateReplied
	StateReturned
)

func (s ExecutionState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateReplied:
		return "REPLIED"
	case StateReturned:
		return "RETURNED"
	default:
		panic("Invalid execution state encountered.")
	}
}

// How an activation was entered.
type CallContext int

const (
	ContextProgram CallContext = iota
	ContextExternal
	ContextMethod
	ContextInternal
	ContextInterpret
)

func (c CallContext) String() string {
	switch c {
	case ContextProgram:
		return "PROGRAM"
	case ContextExternal:
		return "ROUTINE"
	case ContextMethod:
		return "METHOD"
	case ContextInternal:
		return "INTERNAL"
	case ContextInterpret:
		return "INTERPRET"
	default:
		panic("Invalid call context encountered.")
	}
}

// True for activations that are the outermost frame of a program, routine
// or method, where EXIT ends up.
func (c CallContext) TopLevel() bool {
	return c == ContextProgram || c == ContextExternal || c == ContextMethod
}

type TrapKind int

const (
	TrapCall TrapKind = iota
	TrapSignal
)

func (k TrapKind) String() string {
	if k == TrapSignal {
		return "SIGNAL"
	}
	return "CALL"
}

type TrapState int

const (
	TrapOn TrapState = iota
	// A CALL ON handler for the trap is running; further conditions queue up
	// behind it.
	TrapDelay
)

// A condition trap installed by CALL ON or SIGNAL ON.
type Trap struct {
	Condition string
	Kind      TrapKind
	Label     string
	State     TrapState
}

// Consulted before commands and external calls run.
type SecurityManager interface {
	CheckCommand(address string, command string) error
	CheckRoutine(name string) error
}

// The per-activation settings block. Internal calls start with a copy of the
// caller's settings; INTERPRET copies its changes back to the sender.
type Settings struct {
	Trace     TraceSetting
	Numeric   object.NumericSettings
	Address   string
	Alternate string
	Traps     map[string]*Trap
	Security  SecurityManager
	// Set on the first TIME('E') or TIME('R') call.
	elapsed    time.Time
	hasElapsed bool
	randomSeed uint64
	// The condition being handled, for CONDITION().
	condition *Condition
}

func (s *Settings) copyFrom(other *Settings) {
	*s = *other
	s.Traps = maps.Clone(other.Traps)
	if s.Traps == nil {
		s.Traps = make(map[string]*Trap)
	}
}

// Swap the current and alternate command environments, or make env current
// and the old current the alternate.
func (s *Settings) SetAddress(env string) {
	if env == "" {
		s.Address, s.Alternate = s.Alternate, s.Address
		return
	}
	s.Alternate = s.Address
	s.Address = strings.ToUpper(env)
}
