package variables

import (
	"strconv"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"golang.org/x/exp/slices"
)

type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

type SortCase int

const (
	CaseSensitive SortCase = iota
	CaseIgnore
)

// How a stem sort selects and compares its elements. Indexes and columns are
// 1-based; a zero Last means "up to the size in the .0 element" and a zero
// LastCol means "to the end of the string".
type SortOptions struct {
	Prefix   string
	Order    SortOrder
	Case     SortCase
	First    int
	Last     int
	FirstCol int
	LastCol  int
}

type sortEntry struct {
	element *CompoundElement
	value   string
}

// Sort the array-style elements PREFIX1 ... PREFIXn of the stem in place.
// The element PREFIX0 holds the number of elements. Values are moved between
// the existing elements; the elements themselves keep their tails. Returns
// false without changing anything if the size element is missing or not a
// whole number, the range exceeds the size, or any element in the range has
// no value.
func (s *Stem) Sort(opts SortOptions) bool {
	sizeElement := s.FindCompoundVariable(opts.Prefix + "0")
	if sizeElement == nil || sizeElement.Value() == nil {
		return false
	}
	sizeText, ok := object.Text(sizeElement.Value())
	if !ok {
		return false
	}
	size, err := strconv.Atoi(strings.TrimSpace(sizeText))
	if err != nil || size < 0 {
		return false
	}
	first := opts.First
	if first <= 0 {
		first = 1
	}
	last := opts.Last
	if last <= 0 {
		last = size
	}
	if last > size {
		return false
	}
	if first > last {
		// an empty array is already sorted
		return true
	}

	entries := make([]sortEntry, 0, last-first+1)
	for i := first; i <= last; i++ {
		e := s.FindCompoundVariable(opts.Prefix + strconv.Itoa(i))
		if e == nil || e.Value() == nil {
			return false
		}
		entries = append(entries, sortEntry{e, object.RequestText(e.Value())})
	}

	values := make([]string, len(entries))
	for i, e := range entries {
		values[i] = e.value
	}
	slices.SortStableFunc(values, sortComparator(opts))
	for i, e := range entries {
		e.element.Set(object.String(values[i]))
	}
	return true
}

// Build one of the four comparison variants, optionally restricted to a
// column window of each string.
func sortComparator(opts SortOptions) func(a string, b string) bool {
	key := func(s string) string { return s }
	if opts.FirstCol > 1 || opts.LastCol > 0 {
		key = columnWindow(opts.FirstCol, opts.LastCol)
	}
	compare := strings.Compare
	if opts.Case == CaseIgnore {
		compare = func(a string, b string) int {
			return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
		}
	}
	if opts.Order == Descending {
		return func(a string, b string) bool { return compare(key(b), key(a)) < 0 }
	}
	return func(a string, b string) bool { return compare(key(a), key(b)) < 0 }
}

func columnWindow(firstCol int, lastCol int) func(s string) string {
	start := max(firstCol, 1) - 1
	return func(s string) string {
		if start >= len(s) {
			return ""
		}
		end := len(s)
		if lastCol > 0 && lastCol < end {
			end = lastCol
		}
		if end <= start {
			return ""
		}
		return s[start:end]
	}
}
