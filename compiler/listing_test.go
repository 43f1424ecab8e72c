package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const greetListing = `name: greet
clauses:
  - say: "'hello' name"
  - call: [greet, "'world'"]
  - say: result
  - do:
      control: i
      from: 1
      to: 3
      body:
        - say: i
  - assign:
      target: x
      value: "1"
  - if:
      cond: "x = 1"
      then:
        - say: "'one'"
      else:
        - say: "'other'"
  - if:
      cond: "x = 2"
      then: [say 'two']
  - |
    n = 0
    do while n < 2; n = n + 1; end
    say 'n is' n
  - call:
      name: twice
      args: ["'ab'"]
  - say: result
  - label: done
  - exit
routines:
  greet:
    - use arg who
    - return 'hi' who
  twice:
    - use arg s
    - return greet(s || s)
`

func compileListingText(t *testing.T, text string) ([]string, error) {
	t.Helper()
	listing, err := ParseListing([]byte(text))
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	code, err := CompileListing(listing, "TEST", strings.Split(text, "\n"))
	if err != nil {
		return nil, err
	}
	m, output := newTestManager(t, "", nil)
	if _, err := runCode(t, m, code); err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	return output.lines(), nil
}

func TestCompileListing(t *testing.T) {
	output, err := compileListingText(t, greetListing)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	exp := []string{"hello NAME", "hi world", "1", "2", "3", "one", "n is 2", "hi abab"}
	if diff := cmp.Diff(exp, output); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestListingStructure(t *testing.T) {
	listing, err := ParseListing([]byte(greetListing))
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	code, err := CompileListing(listing, "FALLBACK", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if code.Name != "greet" {
		t.Errorf("Expected %v, got %v instead", "greet", code.Name)
	}
	if _, ok := code.Label("DONE"); !ok {
		t.Error("Expected the DONE label")
	}
	for _, name := range []string{"GREET", "TWICE"} {
		routine, ok := code.Routine(name)
		if !ok {
			t.Fatalf("Expected routine %v", name)
		}
		if routine.Name != name {
			t.Errorf("Expected %v, got %v instead", name, routine.Name)
		}
	}
	// the block scalar's clauses start on the line after its indicator
	lines := []int{}
	for _, ins := range code.Instructions {
		lines = append(lines, ins.Line())
	}
	if !containsAll(lines, 25, 26, 27) {
		t.Errorf("Expected clauses on lines 25 to 27, got %v instead", lines)
	}
}

func containsAll(ls []int, want ...int) bool {
	for _, w := range want {
		found := false
		for _, l := range ls {
			if l == w {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestListingSource(t *testing.T) {
	output, err := compileListingText(t, "source: |\n  x = 'free'\n  say x 'form'\n")
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if diff := cmp.Diff([]string{"free form"}, output); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestListingErrors(t *testing.T) {
	testCases := []struct {
		name string
		text string
		line int
	}{
		{"TwoKeys", "clauses:\n  - say: 1\n    nop: x\n", 2},
		{"UnknownMapping", "clauses:\n  - say:\n      value: 1\n", 2},
		{"NestedSequence", "clauses:\n  - [say 1]\n", 2},
		{"ControlWithoutFrom", "clauses:\n  - do:\n      control: i\n", 2},
		{"BadClause", "clauses:\n  - nop\n  - say: 1 +\n", 3},
		{"BadRoutine", "routines:\n  r:\n    - end\n", 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			listing, err := ParseListing([]byte(tc.text))
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			_, err = CompileListing(listing, "T", nil)
			var syntax *SyntaxError
			if !errors.As(err, &syntax) {
				t.Fatalf("Expected a syntax error, got %v instead", err)
			}
			if syntax.Line != tc.line {
				t.Errorf("Expected %v, got %v instead", tc.line, syntax.Line)
			}
		})
	}
}

func TestListingSourceAndClauses(t *testing.T) {
	listing, err := ParseListing([]byte("source: say 1\nclauses:\n  - say 2\n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if _, err := CompileListing(listing, "T", nil); err == nil {
		t.Error("Expected an error for a listing with both source and clauses")
	}
}
