package runtime

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func send(receiver Expression, message string, args ...Expression) Expression {
	return &MessageSend{Receiver: receiver, Message: message, Args: args}
}

func TestDefaultMessenger(t *testing.T) {
	stem := &StemVariable{Symbol: "S.", Index: -1}
	setup := []Instruction{
		&Assign{at(1), elem("S.", "1"), lit("one")},
		&Assign{at(2), elem("S.", "2"), lit("two")},
	}
	testCases := []struct {
		name   string
		value  Expression
		output string
	}{
		{"StemItems", send(stem, "items"), "2"},
		{"StemBracket", send(stem, "[]", lit("2")), "two"},
		{"StemHasIndex", send(stem, "HASINDEX", lit("1")), "1"},
		{"StemMissingIndex", send(stem, "HASINDEX", lit("9")), "0"},
		{"StemHasItem", send(stem, "HASITEM", lit("one")), "1"},
		{"StemIndex", send(stem, "INDEX", lit("two")), "2"},
		{"StemAllIndexes", send(send(stem, "ALLINDEXES"), "ITEMS"), "2"},
		{"StemToDirectory", send(send(stem, "TODIRECTORY"), "AT", lit("1")), "one"},
		{"StemDefaultValue", send(stem, "LENGTH"), "2"},
		{"StemIsEmpty", send(stem, "ISEMPTY"), "0"},
		{"StringUpper", send(lit("Hello"), "UPPER"), "HELLO"},
		{"StringLower", send(lit("Hello"), "lower"), "hello"},
		{"StringLength", send(lit("Hello"), "LENGTH"), "5"},
		{"StringReverse", send(lit("Hello"), "REVERSE"), "olleH"},
		{"StringForm", send(lit("Hello"), "STRING"), "Hello"},
		{"EmptyConditionObject", send(call("CONDITION", lit("O")), "ITEMS"), "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, output := newTestManager(t, nil)
			code := program("T", append(setup, &Say{at(3), tc.value})...)
			if _, err := runProgram(t, m, code); err != nil {
				t.Fatalf("Expected no error, got %v instead", err)
			}
			if diff := cmp.Diff([]string{tc.output}, output.lines()); diff != "" {
				t.Errorf("Output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStemMessagesChangeStem(t *testing.T) {
	m, output := newTestManager(t, nil)
	stem := &StemVariable{Symbol: "S.", Index: -1}
	code := program("T",
		&Message{at(1), send(stem, "[]=", lit("v"), lit("K"))},
		&Say{at(2), elem("S.", "K")},
		&Say{at(3), send(stem, "REMOVE", lit("K"))},
		&Say{at(4), elem("S.", "K")},
		&Message{at(5), send(stem, "[]=", lit("dflt"))},
		&Say{at(6), elem("S.", "ANY")},
		&Message{at(7), send(stem, "EMPTY")},
		&Say{at(8), send(stem, "ITEMS")},
	)
	if _, err := runProgram(t, m, code); err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	exp := []string{"v", "v", "S.K", "dflt", "0"}
	if diff := cmp.Diff(exp, output.lines()); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}

func TestMessengerErrors(t *testing.T) {
	stem := &StemVariable{Symbol: "S.", Index: -1}
	testCases := []struct {
		name    string
		value   Expression
		errCode string
		message string
	}{
		{
			"NoMethod",
			send(lit("abc"), "FOO"),
			ErrNoMethod,
			`Object "a String" does not understand message "FOO"`,
		},
		{
			"StemAsDefault",
			send(stem, "[]=", &StemVariable{Symbol: "T.", Index: -1}),
			ErrStemDefault,
			"A stem object cannot be the default value of a stem",
		},
		{
			"NoResult",
			send(stem, "EMPTY"),
			ErrNoFunctionResult,
			`No data returned from function "EMPTY"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestManager(t, nil)
			_, err := runProgram(t, m, program("T", &Say{at(1), tc.value}))
			if code := conditionCode(err); code != tc.errCode {
				t.Fatalf("Expected %v, got %v instead", tc.errCode, err)
			}
			if msg := conditionOf(err).Message; msg != tc.message {
				t.Errorf("Expected %v, got %v instead", tc.message, msg)
			}
		})
	}
}

func TestNoMethodTrap(t *testing.T) {
	m, output := newTestManager(t, nil)
	code := program("T",
		&SetTrap{at(1), TrapSignal, CondNoMethod, "MISSING", true},
		&Say{at(2), send(lit("abc"), "FOO")},
		&Say{at(3), lit("not reached")},
		&Label{at(4), "MISSING"},
		&Say{at(5), call("CONDITION", lit("C"))},
		&Say{at(6), call("CONDITION", lit("D"))},
		&Say{at(7), send(call("CONDITION", lit("A")), "[]", lit("2"))},
	)
	if _, err := runProgram(t, m, code); err != nil {
		t.Fatalf("Expected no error, got %v instead", err)
	}
	if diff := cmp.Diff([]string{"NOMETHOD", "FOO", "FOO"}, output.lines()); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}
