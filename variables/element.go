package variables

import (
	"github.com/glossopoeia/rexxcore/object"
)

// Index of a node within the arena of its owning table.
type nodeIndex int32

const noNode nodeIndex = -1

// A Binding is anything a program can assign to, read, or drop: a simple
// variable, a whole stem, or a single compound element.
type Binding interface {
	VariableName() string
	Value() object.Value
	Set(v object.Value)
	Drop()
}

// A Watcher is told when a variable it watches is assigned or dropped. The
// object-variable scope of guarded methods watches its variables to wake up
// activities blocked in GUARD ON WHEN.
type Watcher interface {
	VariableChanged()
}

// A CompoundElement binds a single tail of a stem. Elements are nodes in the
// search tree of their stem's CompoundTable, and stay in the tree after being
// dropped so that a later reference finds the same node again.
//
// An element may instead be an alias for an element of a different stem,
// established by PROCEDURE EXPOSE of a compound variable. Reads and writes
// then go through to the real element. Aliases are never chained: the real
// element is always a concrete element of the exposing frame.
type CompoundElement struct {
	tail  string
	stem  *Stem
	value object.Value
	real  *CompoundElement

	index      nodeIndex
	left       nodeIndex
	right      nodeIndex
	parent     nodeIndex
	leftDepth  int
	rightDepth int
}

func (e *CompoundElement) Tail() string {
	return e.tail
}

// The full compound name of the element, e.g. "A.1.X".
func (e *CompoundElement) VariableName() string {
	return e.stem.name + e.tail
}

// Resolve the alias, if any, to the element that actually holds the value.
func (e *CompoundElement) RealVariable() *CompoundElement {
	if e.real != nil {
		return e.real
	}
	return e
}

// True if this element forwards to an element of another stem.
func (e *CompoundElement) IsAlias() bool {
	return e.real != nil
}

// Make this element an alias of the given element.
func (e *CompoundElement) Expose(real *CompoundElement) {
	real = real.RealVariable()
	if real == e {
		return
	}
	e.real = real
	e.value = nil
}

func (e *CompoundElement) Value() object.Value {
	return e.RealVariable().value
}

func (e *CompoundElement) Set(v object.Value) {
	r := e.RealVariable()
	r.value = v
	r.stem.changed()
}

// Dropping an element unbinds its value but keeps the node.
func (e *CompoundElement) Drop() {
	r := e.RealVariable()
	r.value = nil
	r.stem.changed()
}

func (e *CompoundElement) IsDropped() bool {
	return e.Value() == nil
}
