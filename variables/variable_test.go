package variables

import (
	"testing"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/google/go-cmp/cmp"
)

type countingWatcher struct {
	changes int
}

func (w *countingWatcher) VariableChanged() {
	w.changes++
}

type poolEntry struct {
	Name  string
	Value object.Value
}

func TestVariableStemAssignment(t *testing.T) {
	dict := NewDictionary()
	v := dict.Get("S.")
	v.Stem().SetCompoundVariable("1", object.String("x"))

	v.Set(object.String("D"))
	stem := v.Stem()
	if stem.IsDropped() || stem.Value() != object.String("D") {
		t.Errorf("Expected assignment to give the stem a default, got %v instead", stem.Value())
	}
	if stem.Items() != 0 {
		t.Errorf("Expected assignment to reset the tails")
	}

	v.Drop()
	if !v.IsDropped() || v.Stem() == stem {
		t.Errorf("Expected dropping a stem variable to install a new empty stem")
	}

	other := NewStem("T")
	v.Set(other)
	if v.Stem() != other {
		t.Errorf("Expected a stem value to be shared, not copied")
	}
}

func TestDictionarySharing(t *testing.T) {
	caller := NewDictionary()
	callee := NewDictionary()
	callee.Put(caller.Get("X"))

	callee.Get("X").Set(object.String("1"))
	if caller.Lookup("X").Value() != object.String("1") {
		t.Errorf("Expected exposed variables to be shared")
	}
	if callee.Lookup("Y") != nil {
		t.Errorf("Expected lookup not to create variables")
	}
	if !cmp.Equal(callee.Names(), []string{"X"}) {
		t.Errorf("Expected only X, got %v instead", callee.Names())
	}
}

func TestDictionaryWatcher(t *testing.T) {
	dict := NewDictionary()
	dict.Get("A").Set(object.String("before"))
	w := &countingWatcher{}
	dict.SetWatcher(w)

	dict.Get("A").Set(object.String("1"))
	dict.Get("B").Set(object.String("2"))
	dict.Stem("S").SetCompoundVariable("1", object.String("3"))
	dict.Get("A").Drop()

	if w.changes != 4 {
		t.Errorf("Expected 4 changes, got %v instead", w.changes)
	}
}

func TestPoolIterator(t *testing.T) {
	dict := NewDictionary()
	dict.Get("B").Set(object.String("b"))
	dict.Get("A").Set(object.String("a"))
	dict.Get("UNSET")
	stem := dict.Stem("S.")
	stem.SetCompoundVariable("2", object.String("s2"))
	stem.SetCompoundVariable("1", object.String("s1"))
	stem.SetCompoundVariable("3", object.String("s3"))
	stem.DropCompoundVariable("3")
	withDefault := dict.Stem("T.")
	if err := withDefault.SetValue(object.String("t")); err != nil {
		t.Fatal(err)
	}
	withDefault.SetCompoundVariable("X", object.String("tx"))

	exp := []poolEntry{
		{"A", object.String("a")},
		{"B", object.String("b")},
		{"S.1", object.String("s1")},
		{"S.2", object.String("s2")},
		{"T.", object.String("t")},
		{"T.X", object.String("tx")},
	}

	it := NewPoolIterator(dict)
	for pass := 0; pass < 2; pass++ {
		res := []poolEntry{}
		for {
			name, value, ok := it.Next()
			if !ok {
				break
			}
			res = append(res, poolEntry{name, value})
		}
		if !cmp.Equal(res, exp) {
			t.Errorf("Pass %d: expected %v, got %v instead", pass, exp, res)
		}
		it.Reset()
	}
}
