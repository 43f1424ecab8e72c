package variables

import (
	"github.com/glossopoeia/rexxcore/object"
)

// A PoolIterator walks the variables of a dictionary one name/value pair at
// a time, the way external code fetches variables through the variable pool
// interface. Simple variables come in name order; when a variable holds a
// stem, the stem itself is followed by each of its bound compound variables
// in tail order. Unset variables are skipped.
type PoolIterator struct {
	dict    *Dictionary
	names   []string
	next    int
	stem    *Stem
	element *CompoundElement
}

// Start a fresh iteration over the dictionary. The set of simple names is
// captured now; variables created later are not visited.
func NewPoolIterator(dict *Dictionary) *PoolIterator {
	return &PoolIterator{dict: dict, names: dict.Names()}
}

// Fetch the next name/value pair. Returns false once every variable has been
// visited.
func (it *PoolIterator) Next() (string, object.Value, bool) {
	for {
		if it.stem != nil {
			if e := it.nextElement(); e != nil {
				return e.VariableName(), e.Value(), true
			}
			it.stem = nil
		}
		if it.next >= len(it.names) {
			return "", nil, false
		}
		v := it.dict.Lookup(it.names[it.next])
		it.next++
		if v == nil {
			continue
		}
		if stem, ok := v.Value().(*Stem); ok {
			it.stem = stem
			it.element = nil
			if stem.IsDropped() {
				// no default, so only the tails are visible
				continue
			}
			return v.VariableName(), stem.Value(), true
		}
		if v.Value() == nil {
			continue
		}
		return v.VariableName(), v.Value(), true
	}
}

func (it *PoolIterator) nextElement() *CompoundElement {
	table := it.stem.Table()
	var e *CompoundElement
	if it.element == nil {
		e = table.First()
	} else {
		e = table.Next(it.element)
	}
	for e != nil && e.Value() == nil {
		e = table.Next(e)
	}
	it.element = e
	return e
}

// Restart the iteration from the first variable.
func (it *PoolIterator) Reset() {
	it.names = it.dict.Names()
	it.next = 0
	it.stem = nil
	it.element = nil
}
