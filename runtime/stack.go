package runtime

import (
	"github.com/glossopoeia/rexxcore/object"
)

// The operand stack of one activation. Its storage comes from the
// activity's frame stack, sized by the code's declared maximum depth, and
// spills into the Go heap if a clause goes deeper.
type EvaluationStack struct {
	base   []object.Value
	values []object.Value
}

func (s *EvaluationStack) init(base []object.Value) {
	s.base = base
	s.values = base[:0]
}

func (s *EvaluationStack) Push(v object.Value) {
	s.values = append(s.values, v)
}

func (s *EvaluationStack) Pop() object.Value {
	stackLen := len(s.values)
	if stackLen <= 0 {
		panic("Stack underflow detected.")
	}

	result := s.values[stackLen-1]
	s.values[stackLen-1] = nil
	s.values = s.values[:stackLen-1]
	return result
}

// Pop the top count values, returned bottom-most first.
func (s *EvaluationStack) PopN(count int) []object.Value {
	stackLen := len(s.values)
	if stackLen < count {
		panic("Stack underflow detected.")
	}

	result := make([]object.Value, count)
	copy(result, s.values[stackLen-count:])
	clear(s.values[stackLen-count:])
	s.values = s.values[:stackLen-count]
	return result
}

// Look at a value without popping it; 0 is the top of the stack.
func (s *EvaluationStack) Peek(depth int) object.Value {
	stackLen := len(s.values)
	if stackLen <= depth {
		panic("Stack underflow detected.")
	}
	return s.values[stackLen-1-depth]
}

func (s *EvaluationStack) Depth() int {
	return len(s.values)
}

// Discard everything left over from the clause.
func (s *EvaluationStack) Clear() {
	clear(s.values)
	s.values = s.values[:0]
}

// Copy the stack storage onto another frame stack, keeping the contents.
// Returns the old storage for the caller to release.
func (s *EvaluationStack) moveTo(to *frameStack) []object.Value {
	old := s.base
	moved := to.migrate(s.base)
	depth := len(s.values)
	if depth <= len(moved) {
		copy(moved, s.values)
		s.values = moved[:depth]
	}
	s.base = moved
	return old
}

func (s *EvaluationStack) storage() []object.Value {
	return s.base
}
