package variables

import (
	"strconv"
	"testing"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/google/go-cmp/cmp"
)

func arrayStem(prefix string, size string, values ...string) *Stem {
	stem := NewStem("A")
	if size != "" {
		stem.SetCompoundVariable(prefix+"0", object.String(size))
	}
	for i, v := range values {
		stem.SetCompoundVariable(prefix+strconv.Itoa(i+1), object.String(v))
	}
	return stem
}

func arrayValues(stem *Stem, prefix string, n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = object.RequestText(stem.GetCompoundVariableValue(prefix + strconv.Itoa(i+1)))
	}
	return res
}

func TestStemSort(t *testing.T) {
	values := []string{"pear", "Apple", "banana", "apple", "Cherry"}

	testCases := []struct {
		name string
		opts SortOptions
		exp  []string
	}{
		{"Ascending", SortOptions{}, []string{"Apple", "Cherry", "apple", "banana", "pear"}},
		{"Descending", SortOptions{Order: Descending}, []string{"pear", "banana", "apple", "Cherry", "Apple"}},
		{"IgnoreCase", SortOptions{Case: CaseIgnore}, []string{"Apple", "apple", "banana", "Cherry", "pear"}},
		{"IgnoreCaseDescending", SortOptions{Order: Descending, Case: CaseIgnore}, []string{"pear", "Cherry", "banana", "Apple", "apple"}},
		{"Range", SortOptions{First: 2, Last: 4}, []string{"pear", "Apple", "apple", "banana", "Cherry"}},
		{"Columns", SortOptions{FirstCol: 2, LastCol: 2}, []string{"banana", "pear", "Cherry", "Apple", "apple"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stem := arrayStem("", "5", values...)
			if !stem.Sort(tc.opts) {
				t.Fatalf("Expected the sort to succeed")
			}
			res := arrayValues(stem, "", len(values))
			if !cmp.Equal(res, tc.exp) {
				t.Errorf("Expected %v, got %v instead", tc.exp, res)
			}
		})
	}
}

func TestStemSortReverses(t *testing.T) {
	values := []string{"d", "a", "c", "e", "b"}
	stem := arrayStem("X.", "5", values...)
	if !stem.Sort(SortOptions{Prefix: "X."}) {
		t.Fatalf("Expected the ascending sort to succeed")
	}
	asc := arrayValues(stem, "X.", 5)
	if !stem.Sort(SortOptions{Prefix: "X.", Order: Descending}) {
		t.Fatalf("Expected the descending sort to succeed")
	}
	desc := arrayValues(stem, "X.", 5)
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("Expected %v reversed, got %v instead", asc, desc)
		}
	}
}

func TestStemSortMovesValuesNotElements(t *testing.T) {
	stem := arrayStem("", "2", "b", "a")
	first := stem.GetCompoundVariable("1")
	if !stem.Sort(SortOptions{}) {
		t.Fatalf("Expected the sort to succeed")
	}
	if stem.GetCompoundVariable("1") != first {
		t.Errorf("Expected tail 1 to keep its element")
	}
	if first.Value() != object.String("a") {
		t.Errorf("Expected a, got %v instead", first.Value())
	}
}

func TestStemSortFailure(t *testing.T) {
	data := []*Stem{
		arrayStem("", "", "b", "a"),
		arrayStem("", "two", "b", "a"),
		arrayStem("", "2", "b", "a"),
		arrayStem("", "3", "b", "a"),
	}

	testCases := []struct {
		name string
		opts SortOptions
	}{
		{"NoSize", SortOptions{}},
		{"BadSize", SortOptions{}},
		{"PastSize", SortOptions{Last: 3}},
		{"MissingElement", SortOptions{}},
	}

	for ind, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stem := data[ind]
			if stem.Sort(tc.opts) {
				t.Fatalf("Expected the sort to fail")
			}
			res := arrayValues(stem, "", 2)
			if !cmp.Equal(res, []string{"b", "a"}) {
				t.Errorf("Expected data to be unmodified, got %v instead", res)
			}
		})
	}
}

func TestStemSortEmpty(t *testing.T) {
	stem := arrayStem("", "0")
	if !stem.Sort(SortOptions{}) {
		t.Errorf("Expected an empty array to sort")
	}
}
