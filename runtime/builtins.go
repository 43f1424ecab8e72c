package runtime

import (
	"strconv"
	"strings"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
)

// A built-in function. It runs in the activation that invoked it; omitted
// arguments are nil.
type BuiltinFunc func(act *Activation, args []object.Value) (object.Value, error)

func defaultBuiltins() map[string]BuiltinFunc {
	return map[string]BuiltinFunc{
		"ADDRESS":     builtinAddress,
		"ARG":         builtinArg,
		"CONDITION":   builtinCondition,
		"DIGITS":      builtinDigits,
		"FORM":        builtinForm,
		"FUZZ":        builtinFuzz,
		"QUEUED":      builtinQueued,
		"RANDOM":      builtinRandom,
		"SYSSTEMSORT": builtinStemSort,
		"TIME":        builtinTime,
		"TRACE":       builtinTrace,
		"VALUE":       builtinValue,
	}
}

func checkArity(act *Activation, name string, args []object.Value, min int, max int) error {
	if len(args) > max {
		return act.RaiseError(ErrTooManyArgs, object.String(name), object.String(strconv.Itoa(max)))
	}
	if len(args) < min {
		return act.RaiseError(ErrTooFewArgs, object.String(name), object.String(strconv.Itoa(min)))
	}
	for i := 0; i < min; i++ {
		if args[i] == nil {
			return act.RaiseError(ErrMissingArg, object.String(name), object.String(strconv.Itoa(i+1)))
		}
	}
	return nil
}

func optionalArg(args []object.Value, n int) object.Value {
	if n < len(args) {
		return args[n]
	}
	return nil
}

// The first letter of an option argument, upper cased. An omitted option
// gives def.
func optionLetter(act *Activation, name string, args []object.Value, n int, valid string, def byte) (byte, error) {
	v := optionalArg(args, n)
	if v == nil {
		return def, nil
	}
	text := strings.ToUpper(strings.TrimSpace(object.RequestText(v)))
	if text == "" || !strings.ContainsRune(valid, rune(text[0])) {
		return 0, act.RaiseError(ErrArgOption, object.String(name), object.String(strconv.Itoa(n+1)), object.String(valid), v)
	}
	return text[0], nil
}

func wholeArg(act *Activation, name string, args []object.Value, n int, def int) (int, error) {
	v := optionalArg(args, n)
	if v == nil {
		return def, nil
	}
	value, ok := act.settings.Numeric.WholeNumber(object.RequestText(v))
	if !ok {
		return 0, act.RaiseError(ErrArgWhole, object.String(name), object.String(strconv.Itoa(n+1)), v)
	}
	if value < 0 {
		return 0, act.RaiseError(ErrArgNonNegative, object.String(name), object.String(strconv.Itoa(n+1)), v)
	}
	return value, nil
}

func builtinAddress(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "ADDRESS", args, 0, 0); err != nil {
		return nil, err
	}
	return object.String(act.settings.Address), nil
}

// ARG() counts arguments, ARG(n) returns one, and ARG(n, 'E' | 'O') tests
// whether it exists or was omitted.
func builtinArg(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "ARG", args, 0, 2); err != nil {
		return nil, err
	}
	if optionalArg(args, 0) == nil {
		if optionalArg(args, 1) != nil {
			return nil, act.RaiseError(ErrMissingArg, object.String("ARG"), object.String("1"))
		}
		count := len(act.args)
		for count > 0 && act.args[count-1] == nil {
			count--
		}
		return object.String(strconv.Itoa(count)), nil
	}
	n, err := wholeArg(act, "ARG", args, 0, 0)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, act.RaiseError(ErrArgNonNegative, object.String("ARG"), object.String("1"), args[0])
	}
	exists := n <= len(act.args) && act.args[n-1] != nil
	option, err := optionLetter(act, "ARG", args, 1, "AEO", 'A')
	if err != nil {
		return nil, err
	}
	switch option {
	case 'E':
		return object.Bool(exists), nil
	case 'O':
		return object.Bool(!exists), nil
	}
	if !exists {
		return object.String(""), nil
	}
	return act.args[n-1], nil
}

// CONDITION(C | D | I | S | O) describes the condition being handled by a
// CALL ON or SIGNAL ON trap.
func builtinCondition(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "CONDITION", args, 0, 1); err != nil {
		return nil, err
	}
	option, err := optionLetter(act, "CONDITION", args, 0, "ACDIOS", 'I')
	if err != nil {
		return nil, err
	}
	cond := act.settings.condition
	if cond == nil {
		if option == 'O' {
			return object.NewDirectory(), nil
		}
		return object.String(""), nil
	}
	switch option {
	case 'A':
		return object.NewArray(cond.Additional...), nil
	case 'C':
		return object.String(cond.Name), nil
	case 'D':
		return object.String(cond.Description), nil
	case 'O':
		return cond.Directory(), nil
	case 'S':
		trap, ok := act.settings.Traps[cond.Name]
		switch {
		case !ok:
			return object.String("OFF"), nil
		case trap.State == TrapDelay:
			return object.String("DELAY"), nil
		default:
			return object.String("ON"), nil
		}
	}
	return object.String(cond.Instruction), nil
}

func builtinDigits(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "DIGITS", args, 0, 0); err != nil {
		return nil, err
	}
	return object.String(strconv.Itoa(act.settings.Numeric.Digits)), nil
}

func builtinFuzz(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "FUZZ", args, 0, 0); err != nil {
		return nil, err
	}
	return object.String(strconv.Itoa(act.settings.Numeric.Fuzz)), nil
}

func builtinForm(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "FORM", args, 0, 0); err != nil {
		return nil, err
	}
	return object.String(act.settings.Numeric.Form.String()), nil
}

func builtinQueued(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "QUEUED", args, 0, 0); err != nil {
		return nil, err
	}
	return object.String(strconv.Itoa(act.activity.manager.Queue().Size())), nil
}

func builtinRandom(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "RANDOM", args, 0, 3); err != nil {
		return nil, err
	}
	return act.Random(optionalArg(args, 0), optionalArg(args, 1), optionalArg(args, 2))
}

// TIME(N | E | R). Elapsed time starts at the first E or R request and R
// restarts it. All calls in one clause see the same clock reading.
func builtinTime(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "TIME", args, 0, 1); err != nil {
		return nil, err
	}
	option, err := optionLetter(act, "TIME", args, 0, "ENR", 'N')
	if err != nil {
		return nil, err
	}
	if act.timestamp.IsZero() {
		act.timestamp = time.Now()
	}
	now := act.timestamp
	if option == 'N' {
		return object.String(now.Format("15:04:05")), nil
	}
	if !act.settings.hasElapsed {
		act.settings.elapsed = now
		act.settings.hasElapsed = true
		return object.String("0"), nil
	}
	elapsed := now.Sub(act.settings.elapsed)
	if option == 'R' {
		act.settings.elapsed = now
	}
	return object.String(strconv.FormatFloat(elapsed.Seconds(), 'f', 6, 64)), nil
}

// TRACE([option]) returns the current setting and optionally changes it.
func builtinTrace(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "TRACE", args, 0, 1); err != nil {
		return nil, err
	}
	old := object.String(act.settings.Trace.String())
	if v := optionalArg(args, 0); v != nil {
		setting, ok := ParseTrace(object.RequestText(v))
		if !ok {
			return nil, act.RaiseError(ErrTraceOption, v)
		}
		act.settings.Trace = setting
	}
	return old, nil
}

// VALUE(name[, new]) returns a variable's value, or its name when unset,
// and optionally assigns a new one.
func builtinValue(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "VALUE", args, 1, 2); err != nil {
		return nil, err
	}
	name := strings.ToUpper(strings.TrimSpace(object.RequestText(args[0])))
	old := act.lookupVariable(name)
	if old == nil {
		old = object.String(act.derivedName(name))
	}
	if v := optionalArg(args, 1); v != nil {
		act.assignVariable(name, v)
	}
	return old, nil
}

// SYSSTEMSORT(stem[, order[, case[, first[, last[, firstcol[, lastcol]]]]]])
// sorts the array-style elements of a stem in place. Returns 0 on success
// and 1 when the stem does not hold a sortable array.
func builtinStemSort(act *Activation, args []object.Value) (object.Value, error) {
	if err := checkArity(act, "SYSSTEMSORT", args, 1, 7); err != nil {
		return nil, err
	}
	name := strings.ToUpper(strings.TrimSpace(object.RequestText(args[0])))
	stemName, prefix, _ := strings.Cut(name, ".")
	opts := variables.SortOptions{Prefix: prefix}

	order, err := optionLetter(act, "SYSSTEMSORT", args, 1, "AD", 'A')
	if err != nil {
		return nil, err
	}
	if order == 'D' {
		opts.Order = variables.Descending
	}
	sensitivity, err := optionLetter(act, "SYSSTEMSORT", args, 2, "CI", 'C')
	if err != nil {
		return nil, err
	}
	if sensitivity == 'I' {
		opts.Case = variables.CaseIgnore
	}
	bounds := []*int{&opts.First, &opts.Last, &opts.FirstCol, &opts.LastCol}
	for i, bound := range bounds {
		if *bound, err = wholeArg(act, "SYSSTEMSORT", args, i+3, 0); err != nil {
			return nil, err
		}
	}

	stem := act.locals.Stem(-1, stemName+".")
	if !stem.Sort(opts) {
		return object.String("1"), nil
	}
	return object.String("0"), nil
}
