package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/google/go-cmp/cmp"
)

func TestObjectScopeNesting(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 1)
	scope := NewObjectScope(object.String("OBJ"))

	for i := 0; i < 3; i++ {
		if err := scope.Reserve(acts[0]); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		scope.Release(acts[0])
		if scope.Owner() != acts[0] {
			t.Fatalf("Expected the scope to stay reserved after %d releases", i+1)
		}
	}
	scope.Release(acts[0])
	if scope.Owner() != nil {
		t.Error("Expected the scope to be free")
	}
}

func TestObjectScopeReleaseByNonOwnerPanics(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 2)
	scope := NewObjectScope(object.String("OBJ"))
	if err := scope.Reserve(acts[0]); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected a panic")
		}
	}()
	scope.Release(acts[1])
}

func TestObjectScopeDeadlock(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 2)
	first := NewObjectScope(object.String("FIRST"))
	second := NewObjectScope(object.String("SECOND"))

	if err := first.Reserve(acts[1]); err != nil {
		t.Fatal(err)
	}
	if err := second.Reserve(acts[0]); err != nil {
		t.Fatal(err)
	}
	// acts[1] waits for second, held by acts[0]
	acts[1].waitingOn = second

	if err := first.Reserve(acts[0]); !errors.Is(err, ErrDeadlock) {
		t.Errorf("Expected %v, got %v instead", ErrDeadlock, err)
	}
	if first.Owner() != acts[1] {
		t.Error("Expected the reservation to be unchanged")
	}
}

func TestObjectScopeHandoff(t *testing.T) {
	m, _ := newTestManager(t, nil)
	acts := testActivities(t, m, 2)
	scope := NewObjectScope(object.String("OBJ"))
	if err := scope.Reserve(acts[0]); err != nil {
		t.Fatal(err)
	}

	locked := make(chan struct{})
	reserved := make(chan bool)
	go func() {
		m.lockKernel(acts[1])
		close(locked)
		err := scope.Reserve(acts[1])
		owner := scope.Owner() == acts[1]
		m.unlockKernel(acts[1])
		reserved <- err == nil && owner
	}()

	<-locked
	// granted once acts[1] gives up the kernel to wait for the scope
	m.lockKernel(acts[0])
	scope.Release(acts[0])
	m.unlockKernel(acts[0])

	select {
	case ok := <-reserved:
		if !ok {
			t.Error("Expected the waiting activity to own the scope")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the scope handoff")
	}
}

func TestMessageResultSelfWaitDeadlock(t *testing.T) {
	results := make(chan *MessageResult, 1)
	routine, err := NewNativeRoutine("waitself", "void:", func(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
		_, err := ctx.WaitResult(<-results)
		return NativeValue{}, err
	})
	if err != nil {
		t.Fatal(err)
	}

	m, output := newTestManager(t, nil)
	m.RegisterNative(routine)
	res, err := m.StartRoutine(program("T", &Call{Clause: at(1), Name: "WAITSELF"}), nil)
	if err != nil {
		t.Fatal(err)
	}
	results <- res
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Await(ctx)
	m.Wait()

	var condErr *ConditionError
	if !errors.As(err, &condErr) || condErr.Condition.Code != ErrDeadlockDetected {
		t.Fatalf("Expected error %v, got %v instead", ErrDeadlockDetected, err)
	}
	exp := "Error 98.936:  Deadlock detected while waiting for a message result."
	if !strings.Contains(output.errOut.String(), exp) {
		t.Errorf("Expected error output to contain %q, got %q instead", exp, output.errOut.String())
	}
}

func TestMessageResultWait(t *testing.T) {
	m, output := newTestManager(t, nil)
	worker := program("WORKER", &Return{at(1), lit("work done")})
	routine, err := NewNativeRoutine("startwork", "object:", func(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
		res, err := m.StartRoutine(worker, nil)
		if err != nil {
			return NativeValue{}, err
		}
		v, err := ctx.WaitResult(res)
		return ObjectValue(v), err
	})
	if err != nil {
		t.Fatal(err)
	}
	m.RegisterNative(routine)

	code := program("T", &Say{at(1), call("STARTWORK")})
	if _, err := runProgram(t, m, code); err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if diff := cmp.Diff([]string{"work done"}, output.lines()); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestGuardWhenWaitsForObjectVariable(t *testing.T) {
	m, output := newTestManager(t, nil)
	scope := NewObjectScope(object.String("OBJ"))
	waiter := program("WAITER",
		&Expose{at(1), []VariableRef{ref("FLAG")}},
		&Guard{at(2), true, &Binary{BinEqual, ref("FLAG"), lit("1")}},
		&Say{at(3), lit("released")},
	)
	setter := program("SETTER",
		&Expose{at(1), []VariableRef{ref("FLAG")}},
		&Assign{at(2), ref("FLAG"), lit("1")},
	)

	first, err := m.StartMethod(waiter, scope.Object, scope, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.StartMethod(setter, scope.Object, scope, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, res := range []*MessageResult{first, second} {
		if _, err := res.Await(ctx); err != nil {
			t.Fatalf("Expected no error, got %v instead", err)
		}
	}
	m.Wait()

	if diff := cmp.Diff([]string{"released"}, output.lines()); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
	if scope.Owner() != nil {
		t.Error("Expected the scope to be released")
	}
}

func TestExposeOutsideMethod(t *testing.T) {
	m, _ := newTestManager(t, nil)
	code := program("T", &Expose{at(1), []VariableRef{ref("X")}})
	_, err := runProgram(t, m, code)
	var condErr *ConditionError
	if !errors.As(err, &condErr) || condErr.Condition.Code != ErrUnexpectedExpose {
		t.Errorf("Expected error %v, got %v instead", ErrUnexpectedExpose, err)
	}
}
