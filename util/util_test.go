package util

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestModulo(t *testing.T) {
	data := []struct{ n, m, exp int }{
		{7, 3, 1},
		{-7, 3, 2},
		{7, -3, -2},
		{-6, 3, 0},
	}

	for _, d := range data {
		if res := Modulo(d.n, d.m); res != d.exp {
			t.Errorf("Modulo(%d, %d): Expected %v, got %v instead", d.n, d.m, d.exp, res)
		}
	}
}

func TestAbsInt(t *testing.T) {
	for _, n := range []int{0, 5, -5} {
		exp := n
		if n < 0 {
			exp = -n
		}
		if res := AbsInt(n); res != exp {
			t.Errorf("Expected %v, got %v instead", exp, res)
		}
	}
}

func TestUniqueBy(t *testing.T) {
	res := UniqueBy([]string{"a", "B", "A", "c", "b"}, strings.ToUpper)
	if diff := cmp.Diff([]string{"a", "B", "c"}, res); diff != "" {
		t.Errorf("UniqueBy mismatch (-want +got):\n%s", diff)
	}
}
