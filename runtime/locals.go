package runtime

import (
	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
)

// The local variable frame of an activation: the variable dictionary plus a
// per-activation cache of the variables the compiler gave slot numbers to.
//
// A nested frame shares its dictionary with the sender, which is the case for
// internal calls without PROCEDURE and for INTERPRET.
type LocalVariables struct {
	dict   *variables.Dictionary
	slots  []object.Value
	nested bool
}

func (l *LocalVariables) init(slots []object.Value, dict *variables.Dictionary, nested bool) {
	l.slots = slots
	l.dict = dict
	l.nested = nested
}

func (l *LocalVariables) Dictionary() *variables.Dictionary {
	return l.dict
}

func (l *LocalVariables) IsNested() bool {
	return l.nested
}

func (l *LocalVariables) SetNested() {
	l.nested = true
}

func (l *LocalVariables) ClearNested() {
	l.nested = false
}

// Replace a shared dictionary with a fresh one, as PROCEDURE does.
func (l *LocalVariables) Procedure() {
	l.dict = variables.NewDictionary()
	l.nested = false
	clear(l.slots)
}

// Get a variable, through the slot cache if the compiler assigned one.
func (l *LocalVariables) Get(index int, name string) *variables.Variable {
	if index < 0 || index >= len(l.slots) {
		return l.dict.Get(name)
	}
	if v, ok := l.slots[index].(*variables.Variable); ok {
		return v
	}
	v := l.dict.Get(name)
	l.slots[index] = v
	return v
}

func (l *LocalVariables) Lookup(name string) *variables.Variable {
	return l.dict.Lookup(name)
}

func (l *LocalVariables) Stem(index int, name string) *variables.Stem {
	return l.Get(index, name).Stem()
}

// Bind a variable owned by another frame into this one.
func (l *LocalVariables) Expose(v *variables.Variable) {
	l.dict.Put(v)
	// the cache may still hold the variable this name was bound to before
	clear(l.slots)
}

// Forget cached slots after another frame rebound names in a shared
// dictionary.
func (l *LocalVariables) flush() {
	clear(l.slots)
}

// Move the slot cache onto another frame stack. Returns the old storage for
// the caller to release.
func (l *LocalVariables) moveTo(to *frameStack) []object.Value {
	old := l.slots
	l.slots = to.migrate(old)
	return old
}

func (l *LocalVariables) storage() []object.Value {
	return l.slots
}
