package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/google/go-cmp/cmp"
)

func TestReply(t *testing.T) {
	testCases := []struct {
		name   string
		code   *Code
		result object.Value
		output []string
		errOut string
	}{
		{
			"ContinuesAfterReply",
			program("T",
				&Say{at(1), lit("one")},
				&Reply{at(2), lit("early")},
				&Say{at(3), lit("two")},
			),
			object.String("early"),
			[]string{"one", "two"},
			"",
		},
		{
			"SecondReply",
			program("T",
				&Reply{at(1), lit("a")},
				&Reply{at(2), lit("b")},
			),
			object.String("a"),
			[]string{""},
			"Error 98.934:  REPLY has already been issued for this activation.",
		},
		{
			"ReturnValueAfterReply",
			program("T",
				&Reply{at(1), lit("a")},
				&Return{at(2), lit("b")},
			),
			object.String("a"),
			[]string{""},
			"Error 98.935:  RETURN cannot supply a value after REPLY has been issued.",
		},
		{
			"ReturnWithoutValueAfterReply",
			program("T",
				&Reply{at(1), lit("a")},
				&Return{at(2), nil},
			),
			object.String("a"),
			[]string{""},
			"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, output := newTestManager(t, nil)
			res, err := runProgram(t, m, tc.code)
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			if res != tc.result {
				t.Errorf("Expected %v, got %v instead", tc.result, res)
			}
			if diff := cmp.Diff(tc.output, output.lines()); diff != "" {
				t.Errorf("Output mismatch (-want +got):\n%s", diff)
			}
			if tc.errOut == "" && output.errOut.Len() > 0 {
				t.Errorf("Expected no error output, got %q instead", output.errOut.String())
			}
			if !strings.Contains(output.errOut.String(), tc.errOut) {
				t.Errorf("Expected error output to contain %q, got %q instead", tc.errOut, output.errOut.String())
			}
		})
	}
}

func TestReplyFromInterpret(t *testing.T) {
	translator := translatorFunc(func(source string) (*Code, error) {
		return program("INTERPRET", &Reply{at(1), lit(source)}), nil
	})
	m, output := newTestManager(t, func(opts *Options) {
		opts.Translator = translator
	})
	code := program("T",
		&Interpret{at(1), lit("early")},
		&Say{at(2), lit("not reached")},
	)
	_, err := runProgram(t, m, code)
	if errCode := conditionCode(err); errCode != ErrReplyInterpret {
		t.Errorf("Expected %v, got %v instead", ErrReplyInterpret, errCode)
	}
	if out := output.out.String(); out != "" {
		t.Errorf("Expected no output, got %q instead", out)
	}
}

func TestReplyMovesToNewActivity(t *testing.T) {
	var mutex sync.Mutex
	ids := []int{}
	routine, err := NewNativeRoutine("record", "void:", func(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
		mutex.Lock()
		ids = append(ids, ctx.activity.ID())
		mutex.Unlock()
		return NativeValue{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	m, _ := newTestManager(t, nil)
	m.RegisterNative(routine)
	code := program("T",
		&Call{Clause: at(1), Name: "RECORD"},
		&Reply{at(2), nil},
		&Call{Clause: at(3), Name: "RECORD"},
	)
	if _, err := runProgram(t, m, code); err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}

	if len(ids) != 2 {
		t.Fatalf("Expected %v, got %v instead", 2, len(ids))
	}
	if ids[0] == ids[1] {
		t.Errorf("Expected the continuation on a new activity, both ran on %v", ids[0])
	}
	if active, _, _ := m.ActivityCounts(); active != 0 {
		t.Errorf("Expected %v, got %v instead", 0, active)
	}
}

func TestReplyTransfersGuard(t *testing.T) {
	scope := NewObjectScope(object.String("OBJ"))
	var mutex sync.Mutex
	held := []bool{}
	routine, err := NewNativeRoutine("check", "void:", func(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
		ctx.withKernel(func() {
			mutex.Lock()
			held = append(held, scope.Owner() == ctx.activity)
			mutex.Unlock()
		})
		return NativeValue{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	m, _ := newTestManager(t, nil)
	m.RegisterNative(routine)
	method := program("METHOD",
		&Call{Clause: at(1), Name: "CHECK"},
		&Reply{at(2), lit("r")},
		&Call{Clause: at(3), Name: "CHECK"},
	)
	res, err := m.StartMethod(method, scope.Object, scope, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := res.Await(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	m.Wait()

	if v != object.String("r") {
		t.Errorf("Expected %v, got %v instead", "r", v)
	}
	if diff := cmp.Diff([]bool{true, true}, held); diff != "" {
		t.Errorf("Guard ownership mismatch (-want +got):\n%s", diff)
	}
	if scope.Owner() != nil {
		t.Error("Expected the scope to be released")
	}
}
