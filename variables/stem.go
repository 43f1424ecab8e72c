package variables

import (
	"errors"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
)

var (
	// A stem cannot be the default value of another stem.
	ErrStemDefault = errors.New("a stem object cannot be used as a stem default value")
	// Assignments through the bracket operator need a value.
	ErrMissingValue = errors.New("missing value for stem assignment")
)

// Supplies the value of an unset compound variable when a stem has no
// default. The activation implements this by raising NOVALUE or consulting
// the NOVALUE exit. A nil value with a nil error means "use the name".
type NovalueHandler interface {
	HandleNovalue(name string) (object.Value, error)
}

// A Stem is a named associative array: a default value plus the compound
// variables set through it. The default starts out as the stem name itself
// and the stem counts as dropped until a default is explicitly assigned.
type Stem struct {
	name    string
	value   object.Value
	dropped bool
	tails   *CompoundTable
	watcher Watcher
}

// Create a stem. The name is normalized to end in a period.
func NewStem(name string) *Stem {
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	s := &Stem{name: name, value: object.String(name), dropped: true}
	s.tails = newCompoundTable(s)
	return s
}

// Build a tail from its parts, e.g. ("1", "X") gives "1.X".
func MakeTail(parts ...string) string {
	return strings.Join(parts, ".")
}

// Build a tail from index values, as the bracket operators do.
func TailFromValues(parts []object.Value) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = object.RequestText(p)
	}
	return MakeTail(strs...)
}

func (s *Stem) Name() string {
	return s.name
}

func (s *Stem) Table() *CompoundTable {
	return s.tails
}

// The current default value.
func (s *Stem) Value() object.Value {
	return s.value
}

func (s *Stem) IsDropped() bool {
	return s.dropped
}

func (s *Stem) String() string {
	if text, ok := object.Text(s.value); ok {
		return text
	}
	return s.name
}

func (s *Stem) setWatcher(w Watcher) {
	s.watcher = w
}

func (s *Stem) changed() {
	if s.watcher != nil {
		s.watcher.VariableChanged()
	}
}

// Assign a new default value. Every compound variable of the stem is reset,
// as assigning to the stem itself does in a program.
func (s *Stem) SetValue(v object.Value) error {
	if _, isStem := v.(*Stem); isStem {
		return ErrStemDefault
	}
	s.value = v
	s.dropped = false
	s.tails.Clear()
	s.changed()
	return nil
}

// Return the stem to its initial state: no default and no tails.
func (s *Stem) DropValue() {
	s.value = object.String(s.name)
	s.dropped = true
	s.tails.Clear()
	s.changed()
}

// Remove every tail but keep the default value.
func (s *Stem) Empty() {
	s.tails.Clear()
	s.changed()
}

// Get the element for a tail, creating it if needed, resolved through any
// alias.
func (s *Stem) GetCompoundVariable(tail string) *CompoundElement {
	return s.tails.FindEntry(tail, true).RealVariable()
}

// Get the element for a tail for exposure to another frame. A newly created
// element inherits the stem default, if there is one; an existing element is
// returned as is, even if dropped.
func (s *Stem) ExposeCompoundVariable(tail string) *CompoundElement {
	if e := s.tails.FindEntry(tail, false); e != nil {
		return e.RealVariable()
	}
	e := s.tails.FindEntry(tail, true)
	if !s.dropped {
		e.value = s.value
	}
	return e
}

// Install an alias for a tail of this stem that forwards to an element of
// another stem.
func (s *Stem) ExposeAlias(tail string, real *CompoundElement) *CompoundElement {
	e := s.tails.FindEntry(tail, true)
	e.Expose(real)
	return e
}

// Look up the element for a tail without creating it. Returns nil if the
// tail has never been referenced.
func (s *Stem) FindCompoundVariable(tail string) *CompoundElement {
	e := s.tails.FindEntry(tail, false)
	if e == nil {
		return nil
	}
	return e.RealVariable()
}

// The value of a compound variable without NOVALUE processing: the bound
// value, the default value, or nil when neither exists.
func (s *Stem) GetCompoundVariableValue(tail string) object.Value {
	if e := s.FindCompoundVariable(tail); e != nil {
		if v := e.Value(); v != nil {
			return v
		}
	}
	if !s.dropped {
		return s.value
	}
	return nil
}

// The value of a compound variable as seen by expression evaluation. Unset
// tails fall back to the default value; without a default, the NOVALUE
// handler is consulted and the synthesized compound name is the value of
// last resort.
func (s *Stem) EvaluateCompoundVariableValue(ctx NovalueHandler, tail string) (object.Value, error) {
	if v := s.GetCompoundVariableValue(tail); v != nil {
		return v, nil
	}
	name := s.name + tail
	if ctx != nil {
		v, err := ctx.HandleNovalue(name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return object.String(name), nil
}

func (s *Stem) SetCompoundVariable(tail string, v object.Value) {
	s.GetCompoundVariable(tail).Set(v)
}

// Unbind a compound variable. The element stays in the table.
func (s *Stem) DropCompoundVariable(tail string) {
	s.GetCompoundVariable(tail).Drop()
}

// The bracket read: no index returns the default value, otherwise the
// compound variable for the joined index.
func (s *Stem) Bracket(indexes ...object.Value) object.Value {
	if len(indexes) == 0 {
		return s.value
	}
	v, _ := s.EvaluateCompoundVariableValue(nil, TailFromValues(indexes))
	return v
}

// The bracket assignment. args[0] is the value, the rest form the index.
// With no index this sets the default value, which resets the whole table.
func (s *Stem) BracketEqual(args ...object.Value) error {
	if len(args) == 0 || args[0] == nil {
		return ErrMissingValue
	}
	if len(args) == 1 {
		return s.SetValue(args[0])
	}
	s.SetCompoundVariable(TailFromValues(args[1:]), args[0])
	return nil
}

// Drop the compound variable for an index, returning its previous value.
func (s *Stem) Remove(indexes ...object.Value) object.Value {
	if len(indexes) == 0 {
		return nil
	}
	e := s.FindCompoundVariable(TailFromValues(indexes))
	if e == nil {
		return nil
	}
	old := e.Value()
	e.Drop()
	return old
}

// The number of compound variables that currently have a value.
func (s *Stem) Items() int {
	count := 0
	s.tails.Each(func(e *CompoundElement) bool {
		if e.Value() != nil {
			count++
		}
		return true
	})
	return count
}

// Search the bound elements for one whose value equals target.
func (s *Stem) FindByValue(target object.Value) *CompoundElement {
	var found *CompoundElement
	s.tails.Each(func(e *CompoundElement) bool {
		if v := e.Value(); v != nil && object.Equal(v, target) {
			found = e
			return false
		}
		return true
	})
	return found
}

func (s *Stem) HasItem(target object.Value) bool {
	return s.FindByValue(target) != nil
}

// The tail of the first element holding target.
func (s *Stem) Index(target object.Value) (string, bool) {
	e := s.FindByValue(target)
	if e == nil {
		return "", false
	}
	return e.tail, true
}

// Drop the first element holding target and return the removed value.
func (s *Stem) RemoveItem(target object.Value) object.Value {
	e := s.FindByValue(target)
	if e == nil {
		return nil
	}
	old := e.Value()
	e.Drop()
	return old
}

// Snapshot the values of the bound elements in tail order.
func (s *Stem) AllItems() []object.Value {
	res := make([]object.Value, 0, s.Items())
	s.tails.Each(func(e *CompoundElement) bool {
		if v := e.Value(); v != nil {
			res = append(res, v)
		}
		return true
	})
	return res
}

// Snapshot the tails of the bound elements in tail order.
func (s *Stem) AllIndexes() []string {
	res := make([]string, 0, s.Items())
	s.tails.Each(func(e *CompoundElement) bool {
		if e.Value() != nil {
			res = append(res, e.tail)
		}
		return true
	})
	return res
}

// Paired snapshots of tails and values, positionally matched.
func (s *Stem) Supplier() ([]string, []object.Value) {
	indexes := make([]string, 0, s.Items())
	items := make([]object.Value, 0, s.Items())
	s.tails.Each(func(e *CompoundElement) bool {
		if v := e.Value(); v != nil {
			indexes = append(indexes, e.tail)
			items = append(items, v)
		}
		return true
	})
	return indexes, items
}

// A directory of the bound elements, indexed by tail.
func (s *Stem) ToDirectory() *object.Directory {
	res := object.NewDirectory()
	indexes, items := s.Supplier()
	for i, idx := range indexes {
		res.Put(idx, items[i])
	}
	return res
}

// A deep copy of the stem with the same default and an identical table.
func (s *Stem) Copy() *Stem {
	res := &Stem{name: s.name, value: s.value, dropped: s.dropped}
	res.tails = s.tails.Copy(res)
	return res
}
