package runtime

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/google/go-cmp/cmp"
)

func TestParseDescriptor(t *testing.T) {
	data := []string{
		"int: int, opt size, cstring",
		"void:",
		"object: self, arglist",
		" double : opt double ",
		"name: NAME, opt pointer, object",
	}
	testCases := []Descriptor{
		{ArgSpec{KindInt, false}, []ArgSpec{{KindInt, false}, {KindSize, true}, {KindCString, false}}},
		{ArgSpec{KindVoid, false}, nil},
		{ArgSpec{KindObject, false}, []ArgSpec{{KindSelf, false}, {KindArgList, false}}},
		{ArgSpec{KindDouble, false}, []ArgSpec{{KindDouble, true}}},
		{ArgSpec{KindName, false}, []ArgSpec{{KindName, false}, {KindPointer, true}, {KindObject, false}}},
	}

	for i, text := range data {
		t.Run(text, func(t *testing.T) {
			desc, err := ParseDescriptor(text)
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			if diff := cmp.Diff(testCases[i], desc); diff != "" {
				t.Errorf("Descriptor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDescriptorErrors(t *testing.T) {
	data := []string{
		"int",
		"opt int: int",
		"int: void",
		"int: widget",
		"int: opt opt int",
	}

	for _, text := range data {
		t.Run(text, func(t *testing.T) {
			if _, err := ParseDescriptor(text); err == nil {
				t.Errorf("Expected an error for %q", text)
			}
		})
	}
}

func TestOmittedSentinels(t *testing.T) {
	data := []ValueKind{KindInt, KindSize, KindDouble, KindCString, KindName, KindObject}

	for _, kind := range data {
		t.Run(kind.String(), func(t *testing.T) {
			v := omitted(kind)
			if !v.Omitted() {
				t.Errorf("Expected the %v sentinel to read as omitted", kind)
			}
		})
	}
	if !math.IsInf(omitted(KindDouble).Double, 1) {
		t.Error("Expected the double sentinel to be positive infinity")
	}
	if IntValue(0).Omitted() || StringValue("").Omitted() {
		t.Error("Expected zero values to be present")
	}
}

func nativeAdd(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
	if args[1].Omitted() {
		return args[0], nil
	}
	return IntValue(args[0].Int + args[1].Int), nil
}

func nativeFail(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
	return NativeValue{}, errors.New("native failure")
}

func nativeRaiseUser(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
	ctx.RaiseCondition("USER OOPS", args[0].String, nil, nil)
	return NativeValue{}, nil
}

func nativeSetX(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
	old := ctx.GetVariable("x")
	ctx.SetVariable("x", object.String(fmt.Sprintf("%v!", old)))
	ctx.DropVariable("y")
	return NativeValue{}, nil
}

func nativePool(ctx *NativeActivation, args []NativeValue) (NativeValue, error) {
	if _, _, _, err := ctx.FetchNextVariable(); !errors.Is(err, ErrPoolDisabled) {
		return NativeValue{}, fmt.Errorf("expected a disabled pool, got %v", err)
	}
	ctx.EnableVariablePool()
	defer ctx.DisableVariablePool()
	pairs := []string{}
	for {
		name, value, ok, err := ctx.FetchNextVariable()
		if err != nil {
			return NativeValue{}, err
		}
		if !ok {
			break
		}
		pairs = append(pairs, name+"="+object.RequestText(value))
	}
	return StringValue(strings.Join(pairs, " ")), nil
}

func TestNativeRoutines(t *testing.T) {
	natives := []struct {
		name       string
		descriptor string
		fn         NativeFunc
	}{
		{"add", "int: int, opt int", nativeAdd},
		{"fail", "void:", nativeFail},
		{"raiseuser", "void: cstring", nativeRaiseUser},
		{"setx", "void:", nativeSetX},
		{"pool", "cstring:", nativePool},
	}

	testCases := []struct {
		name    string
		code    *Code
		output  []string
		errCode string
		message string
	}{
		{
			"Arguments",
			program("T",
				&Say{at(1), call("ADD", lit("2"), lit("3"))},
				&Say{at(2), call("ADD", lit("2"))},
			),
			[]string{"5", "2"},
			"",
			"",
		},
		{
			"MissingArgument",
			program("T", &Say{at(1), call("ADD", nil, lit("3"))}),
			nil,
			ErrMissingArg,
			"Missing argument in invocation of ADD; argument 1 is required",
		},
		{
			"TooManyArguments",
			program("T", &Say{at(1), call("ADD", lit("1"), lit("2"), lit("3"))}),
			nil,
			ErrTooManyArgs,
			"Too many arguments in invocation of ADD; maximum expected is 2",
		},
		{
			"NotWholeNumber",
			program("T", &Say{at(1), call("ADD", lit("x"))}),
			nil,
			ErrArgWhole,
			`ADD argument 1 must be a whole number; found "x"`,
		},
		{
			"GoError",
			program("T", &Call{Clause: at(1), Name: "FAIL"}),
			nil,
			ErrRoutineFailed,
			`External routine "FAIL" failed`,
		},
		{
			"NoResult",
			program("T", &Say{at(1), call("SETX")}),
			nil,
			ErrNoFunctionResult,
			`No data returned from function "SETX"`,
		},
		{
			"RaisedCondition",
			program("T",
				&SetTrap{at(1), TrapSignal, "USER OOPS", "HANDLER", true},
				&Call{Clause: at(2), Name: "RAISEUSER", Args: []Expression{lit("from go")}},
				&Say{at(3), lit("not reached")},
				&Label{at(4), "HANDLER"},
				&Say{at(5), call("CONDITION", lit("D"))},
			),
			[]string{"from go"},
			"",
			"",
		},
		{
			"VariableAccess",
			program("T",
				&Assign{at(1), ref("X"), lit("hi")},
				&Assign{at(2), ref("Y"), lit("gone")},
				&Call{Clause: at(3), Name: "SETX"},
				&Say{at(4), ref("X")},
				&Say{at(5), ref("Y")},
			),
			[]string{"hi!", "Y"},
			"",
			"",
		},
		{
			"VariablePool",
			program("T",
				&Assign{at(1), ref("B"), lit("2")},
				&Assign{at(2), ref("A"), lit("1")},
				&Assign{at(3), &CompoundVariable{Stem: "S.", Index: -1, Tails: []Expression{lit("X")}}, lit("3")},
				&Say{at(4), call("POOL")},
			),
			[]string{"A=1 B=2 S.X=3"},
			"",
			"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, output := newTestManager(t, nil)
			for _, n := range natives {
				routine, err := NewNativeRoutine(n.name, n.descriptor, n.fn)
				if err != nil {
					t.Fatal(err)
				}
				m.RegisterNative(routine)
			}
			_, err := runProgram(t, m, tc.code)
			if tc.errCode != "" {
				var condErr *ConditionError
				if !errors.As(err, &condErr) {
					t.Fatalf("Expected error %v, got %v instead", tc.errCode, err)
				}
				if condErr.Condition.Code != tc.errCode {
					t.Errorf("Expected %v, got %v instead", tc.errCode, condErr.Condition.Code)
				}
				if condErr.Condition.Message != tc.message {
					t.Errorf("Expected %v, got %v instead", tc.message, condErr.Condition.Message)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			if diff := cmp.Diff(tc.output, output.lines()); diff != "" {
				t.Errorf("Output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
