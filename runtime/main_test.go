package runtime

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type testOutput struct {
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func (o testOutput) lines() []string {
	return strings.Split(strings.TrimSuffix(o.out.String(), "\n"), "\n")
}

func newTestManager(t *testing.T, configure func(opts *Options)) (*ActivityManager, testOutput) {
	t.Helper()
	output := testOutput{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	opts := DefaultOptions()
	opts.Streams = Streams{
		Output: output.out,
		Error:  output.errOut,
		Input:  NewLineReader(strings.NewReader("")),
		Queue:  NewDataQueue(),
	}
	opts.Seed = func() uint64 { return 42 }
	if configure != nil {
		configure(&opts)
	}
	m := NewActivityManager(opts)
	t.Cleanup(m.Shutdown)
	return m, output
}

// Build a program from instructions. Label instructions are entered in the
// label table.
func program(name string, instructions ...Instruction) *Code {
	code := NewCode(name)
	for _, ins := range instructions {
		idx := code.Add(ins)
		if label, ok := ins.(*Label); ok {
			code.AddLabel(label.Name, idx)
		}
	}
	code.MaxStack = 8
	return code
}

func runProgram(t *testing.T, m *ActivityManager, code *Code, args ...object.Value) (object.Value, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := m.RunProgram(ctx, code, args)
	m.Wait()
	return res, err
}

func lit(text string) Expression {
	return &Literal{Value: object.String(text)}
}

func ref(name string) *SimpleVariable {
	return &SimpleVariable{Symbol: name, Index: -1}
}

func at(line int) Clause {
	return Clause{LineNo: line}
}

func call(name string, args ...Expression) Expression {
	return &FunctionCall{Function: name, Args: args}
}

type translatorFunc func(source string) (*Code, error)

func (f translatorFunc) Translate(source string) (*Code, error) {
	return f(source)
}

type loaderFunc func(name string) (*Code, error)

func (f loaderFunc) Load(name string) (*Code, error) {
	return f(name)
}

// A value with no string form.
type opaque struct {
	n int
}

// The condition behind an untrapped error, or nil for any other error.
func conditionOf(err error) *Condition {
	var condErr *ConditionError
	if !errors.As(err, &condErr) {
		return nil
	}
	return condErr.Condition
}

func conditionCode(err error) string {
	if cond := conditionOf(err); cond != nil {
		return cond.Code
	}
	return ""
}
