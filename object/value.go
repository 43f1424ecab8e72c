package object

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Every piece of data the interpreter manipulates is a Value. Character
// strings are by far the most common values, and are represented by the
// String type. Other objects (stems, arrays, directories, or anything the
// host hands to the interpreter) are stored as-is and only need to provide a
// string form when one is requested.
type Value interface{}

// The string type of the language. All variable values produced by the
// interpreter itself are Strings.
type String string

func (s String) String() string {
	return string(s)
}

// An ordered collection of values, used for argument lists handed to native
// code and for snapshots of collection contents.
type Array struct {
	items []Value
}

func NewArray(items ...Value) *Array {
	arr := &Array{make([]Value, len(items))}
	copy(arr.items, items)
	return arr
}

func (a *Array) Size() int {
	return len(a.items)
}

// Get the value at a 1-based index. Out of range indexes and omitted
// entries both return nil.
func (a *Array) At(index int) Value {
	if index < 1 || index > len(a.items) {
		return nil
	}
	return a.items[index-1]
}

func (a *Array) Append(v Value) {
	a.items = append(a.items, v)
}

// Get a copy of the array contents.
func (a *Array) Items() []Value {
	res := make([]Value, len(a.items))
	copy(res, a.items)
	return res
}

func (a *Array) String() string {
	return "an Array"
}

// Request the string value of an object. Returns false if the object has no
// string representation, in which case the caller decides whether to raise
// NOSTRING or fall back on the default object name.
func Text(v Value) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case String:
		return string(v), true
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case float64:
		return DefaultNumeric.FormatFloat(v), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// Get the string value of an object, using the default object name when the
// object has no string form.
func RequestText(v Value) string {
	if s, ok := Text(v); ok {
		return s
	}
	return DefaultName(v)
}

// The default name of an object is "a" or "an" followed by its type name,
// the way the language describes objects that cannot render themselves.
func DefaultName(v Value) string {
	if v == nil {
		return "The NIL object"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if strings.ContainsRune("AEIOUaeiou", rune(name[0])) {
		return "an " + name
	}
	return "a " + name
}

// True if the value is a String, or a Go string handed in by a host.
func IsString(v Value) bool {
	switch v.(type) {
	case String, string:
		return true
	default:
		return false
	}
}

// Value equality as used by collection searches: strings compare by exact
// text, everything else by identity.
func Equal(a Value, b Value) bool {
	if IsString(a) || IsString(b) {
		if !IsString(a) || !IsString(b) {
			return false
		}
		as, _ := Text(a)
		bs, _ := Text(b)
		return as == bs
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// Convert a boolean into the language's logical string values.
func Bool(b bool) String {
	if b {
		return "1"
	}
	return "0"
}

// Interpret a string as a logical value. Only "0" and "1" are logical.
func Logical(v Value) (bool, bool) {
	s, ok := Text(v)
	if !ok {
		return false, false
	}
	switch strings.TrimSpace(s) {
	case "1":
		return true, true
	case "0":
		return false, true
	default:
		return false, false
	}
}
