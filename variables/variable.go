package variables

import (
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// True if the name is a stem name, i.e. it ends with a period.
func IsStemName(name string) bool {
	return strings.HasSuffix(name, ".")
}

// A Variable binds a simple symbol or a stem name. Stem variables always
// hold a *Stem once referenced. EXPOSE shares a Variable between two
// dictionaries, so the variable is the unit of aliasing for simple names.
type Variable struct {
	name    string
	value   object.Value
	watcher Watcher
}

func NewVariable(name string) *Variable {
	return &Variable{name: name}
}

func (v *Variable) VariableName() string {
	return v.name
}

func (v *Variable) Value() object.Value {
	return v.value
}

func (v *Variable) IsStem() bool {
	return IsStemName(v.name)
}

// Assign a value. Assigning a non-stem value to a stem variable sets the
// default value of a fresh stem, as stem assignment does in a program.
func (v *Variable) Set(val object.Value) {
	if v.IsStem() {
		if stem, ok := val.(*Stem); ok {
			v.value = stem
		} else {
			stem := NewStem(v.name)
			stem.watcher = v.watcher
			// stems cannot default to stems; the check above rules that out
			_ = stem.SetValue(val)
			v.value = stem
		}
	} else {
		v.value = val
	}
	v.notify()
}

// Drop the variable. A dropped stem variable gets a new, empty stem.
func (v *Variable) Drop() {
	if v.IsStem() {
		stem := NewStem(v.name)
		stem.watcher = v.watcher
		v.value = stem
	} else {
		v.value = nil
	}
	v.notify()
}

func (v *Variable) IsDropped() bool {
	if v.IsStem() {
		stem, ok := v.value.(*Stem)
		return !ok || stem.dropped && stem.tails.Len() == 0
	}
	return v.value == nil
}

// Get the stem held by a stem variable, creating it on first reference.
func (v *Variable) Stem() *Stem {
	if stem, ok := v.value.(*Stem); ok {
		return stem
	}
	stem := NewStem(v.name)
	stem.watcher = v.watcher
	v.value = stem
	return stem
}

func (v *Variable) notify() {
	if v.watcher != nil {
		v.watcher.VariableChanged()
	}
}

// A Dictionary maps names to variables. It backs the local variables of an
// activation and the object variables of a method scope.
type Dictionary struct {
	variables map[string]*Variable
	watcher   Watcher
}

func NewDictionary() *Dictionary {
	return &Dictionary{variables: make(map[string]*Variable)}
}

// Register a watcher told about every change to variables of this
// dictionary, including ones created later.
func (d *Dictionary) SetWatcher(w Watcher) {
	d.watcher = w
	for _, v := range d.variables {
		v.watcher = w
		if stem, ok := v.value.(*Stem); ok {
			stem.setWatcher(w)
		}
	}
}

// Look up a variable without creating it.
func (d *Dictionary) Lookup(name string) *Variable {
	return d.variables[name]
}

// Get a variable, creating an unset one if needed.
func (d *Dictionary) Get(name string) *Variable {
	if v, ok := d.variables[name]; ok {
		return v
	}
	v := &Variable{name: name, watcher: d.watcher}
	d.variables[name] = v
	return v
}

// Bind a name to an existing variable, replacing any previous binding. Used
// to expose a variable owned by another dictionary.
func (d *Dictionary) Put(v *Variable) {
	d.variables[v.name] = v
}

// Get the stem for a stem name, creating the variable and stem if needed.
func (d *Dictionary) Stem(name string) *Stem {
	if !IsStemName(name) {
		name += "."
	}
	return d.Get(name).Stem()
}

func (d *Dictionary) Len() int {
	return len(d.variables)
}

// The variable names in sorted order.
func (d *Dictionary) Names() []string {
	names := maps.Keys(d.variables)
	slices.Sort(names)
	return names
}

// Copy the bindings of another dictionary into this one, sharing the
// variables themselves.
func (d *Dictionary) Merge(other *Dictionary) {
	for name, v := range other.variables {
		d.variables[name] = v
	}
}
