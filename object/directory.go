package object

import (
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// A Directory is a string-indexed collection that remembers insertion
// order. Names are case-insensitive and stored uppercase. Condition objects
// are presented to programs as directories.
type Directory struct {
	entries *linkedhashmap.Map
}

func NewDirectory() *Directory {
	return &Directory{linkedhashmap.New()}
}

func (d *Directory) Put(name string, v Value) {
	d.entries.Put(strings.ToUpper(name), v)
}

func (d *Directory) At(name string) (Value, bool) {
	return d.entries.Get(strings.ToUpper(name))
}

func (d *Directory) HasEntry(name string) bool {
	_, found := d.entries.Get(strings.ToUpper(name))
	return found
}

func (d *Directory) Remove(name string) {
	d.entries.Remove(strings.ToUpper(name))
}

func (d *Directory) Size() int {
	return d.entries.Size()
}

// The entry names in insertion order.
func (d *Directory) Names() []string {
	keys := d.entries.Keys()
	res := make([]string, len(keys))
	for i, k := range keys {
		res[i] = k.(string)
	}
	return res
}

// A shallow copy: the entries are new but the values are shared.
func (d *Directory) Copy() *Directory {
	res := NewDirectory()
	it := d.entries.Iterator()
	for it.Next() {
		res.entries.Put(it.Key(), it.Value())
	}
	return res
}

func (d *Directory) String() string {
	return "a Directory"
}
