package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/runtime"
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

func newTestManager(t *testing.T, input string, configure func(opts *runtime.Options)) (*runtime.ActivityManager, testOutput) {
	t.Helper()
	output := testOutput{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	opts := runtime.DefaultOptions()
	opts.Streams = runtime.Streams{
		Output: output.out,
		Error:  output.errOut,
		Input:  runtime.NewLineReader(strings.NewReader(input)),
		Queue:  runtime.NewDataQueue(),
	}
	opts.Translator = Translator{}
	opts.Seed = func() uint64 { return 42 }
	if configure != nil {
		configure(&opts)
	}
	m := runtime.NewActivityManager(opts)
	t.Cleanup(m.Shutdown)
	return m, output
}

func runCode(t *testing.T, m *runtime.ActivityManager, code *runtime.Code, args ...object.Value) (object.Value, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := m.RunProgram(ctx, code, args)
	m.Wait()
	return res, err
}

// Compile free-form source and run it, returning what it said.
func runSource(t *testing.T, source string, args ...object.Value) ([]string, error) {
	t.Helper()
	code, err := CompileSource("T", source)
	if err != nil {
		t.Fatalf("Expected no compile error, got %v instead", err)
	}
	m, output := newTestManager(t, "", nil)
	_, err = runCode(t, m, code, args...)
	return output.lines(), err
}

func conditionCode(err error) string {
	var condErr *runtime.ConditionError
	if errors.As(err, &condErr) {
		return condErr.Condition.Code
	}
	return ""
}
