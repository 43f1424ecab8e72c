package runtime

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// An Instruction is one clause of a compiled program. Execute carries out the
// clause against the activation; any error returned is either a control
// transfer (SIGNAL, EXIT, a propagated condition) or a raised condition.
type Instruction interface {
	Execute(act *Activation, stack *EvaluationStack) error
	Line() int
}

// The compiled form of a program, routine or INTERPRET string: a flat list of
// instructions with a label table. Immutable once built.
type Code struct {
	Name         string
	Instructions []Instruction
	// Label name to instruction index. The label instruction itself sits at
	// that index.
	Labels map[string]int
	// Simple variable names that the compiler assigned a local slot.
	Variables []string
	MaxStack  int
	Source    []string
	// Public routines packaged with this code.
	Routines map[string]*Code
}

func NewCode(name string) *Code {
	return &Code{
		Name:     name,
		Labels:   make(map[string]int),
		Routines: make(map[string]*Code),
	}
}

// Append an instruction, returning its index.
func (c *Code) Add(ins Instruction) int {
	c.Instructions = append(c.Instructions, ins)
	return len(c.Instructions) - 1
}

// Record a label. The first definition of a name wins, as in the language.
func (c *Code) AddLabel(name string, index int) {
	name = strings.ToUpper(name)
	if _, exists := c.Labels[name]; !exists {
		c.Labels[name] = index
	}
}

func (c *Code) Label(name string) (int, bool) {
	idx, ok := c.Labels[strings.ToUpper(name)]
	return idx, ok
}

// Get the slot index for a simple variable name, adding one if needed.
func (c *Code) VariableIndex(name string) int {
	if idx := slices.Index(c.Variables, name); idx >= 0 {
		return idx
	}
	c.Variables = append(c.Variables, name)
	return len(c.Variables) - 1
}

// The number of local variable slots an activation of this code needs.
func (c *Code) LocalSize() int {
	return len(c.Variables)
}

// The source text of a 1-based line, or an empty string.
func (c *Code) SourceLine(line int) string {
	if line < 1 || line > len(c.Source) {
		return ""
	}
	return c.Source[line-1]
}

func (c *Code) Routine(name string) (*Code, bool) {
	r, ok := c.Routines[strings.ToUpper(name)]
	return r, ok
}

func (c *Code) AddRoutine(name string, routine *Code) {
	c.Routines[strings.ToUpper(name)] = routine
}

func (c *Code) String() string {
	return c.Name
}

// Write a listing of the code and every routine it packages.
func (c *Code) Disassemble(w io.Writer) {
	c.disassembleBody(w)
	names := maps.Keys(c.Routines)
	slices.Sort(names)
	for _, name := range names {
		// routines may share the table, so only their bodies are listed
		if routine := c.Routines[name]; routine != c {
			fmt.Fprintln(w)
			routine.disassembleBody(w)
		}
	}
}

func (c *Code) disassembleBody(w io.Writer) {
	fmt.Fprintf(w, "%s:\n", c.Name)
	labelsAt := make(map[int][]string)
	for name, idx := range c.Labels {
		labelsAt[idx] = append(labelsAt[idx], name)
	}
	for i := range c.Instructions {
		for _, l := range labelsAt[i] {
			fmt.Fprintf(w, "%s:\n", l)
		}
		c.DisassembleInstruction(w, i)
	}
}

func (c *Code) DisassembleInstruction(w io.Writer, offset int) {
	ins := c.Instructions[offset]
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Instructions[offset-1].Line() == ins.Line() {
		fmt.Fprintf(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", ins.Line())
	}
	fmt.Fprintln(w, ins)
}
