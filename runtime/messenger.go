package runtime

import (
	"strconv"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
	"github.com/rjNemo/underscore"
)

// The messenger used when a host supplies none. It understands the stem,
// directory, array and string messages the runtime itself produces. Anything
// else raises NOMETHOD.
type DefaultMessenger struct{}

func (DefaultMessenger) Send(act *Activation, receiver object.Value, message string, args []object.Value) (object.Value, error) {
	if message == "STRING" {
		return object.String(object.RequestText(receiver)), nil
	}
	var (
		result object.Value
		known  bool
		err    error
	)
	switch r := receiver.(type) {
	case *variables.Stem:
		result, known, err = sendStem(act, r, message, args)
	case *object.Directory:
		result, known = sendDirectory(r, message, args)
	case *object.Array:
		result, known = sendArray(act, r, message, args)
	default:
		if s, ok := receiver.(object.String); ok {
			result, known = sendString(string(s), message)
		}
	}
	if err != nil || known {
		return result, err
	}
	return nil, noMethod(act, receiver, message)
}

func noMethod(act *Activation, receiver object.Value, message string) error {
	cond := NewCondition(CondNoMethod, message)
	cond.Additional = []object.Value{receiver, object.String(message)}
	if handled, err := act.offer(cond); handled {
		return err
	}
	return act.RaiseError(ErrNoMethod, object.String(object.DefaultName(receiver)), object.String(message))
}

func firstArg(args []object.Value) object.Value {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// Messages a stem does not understand are sent on to its default value.
func sendStem(act *Activation, stem *variables.Stem, message string, args []object.Value) (object.Value, bool, error) {
	switch message {
	case "[]":
		return stem.Bracket(args...), true, nil
	case "[]=":
		if err := stem.BracketEqual(args...); err != nil {
			if err == variables.ErrStemDefault {
				return nil, true, act.RaiseError(ErrStemDefault)
			}
			return nil, true, act.RaiseError(ErrMissingArg, object.String("[]="), object.String("1"))
		}
		return nil, true, nil
	case "ITEMS":
		return object.String(strconv.Itoa(stem.Items())), true, nil
	case "HASINDEX":
		return object.Bool(stem.FindCompoundVariable(variables.TailFromValues(args)) != nil &&
			stem.GetCompoundVariableValue(variables.TailFromValues(args)) != nil), true, nil
	case "REMOVE":
		return stem.Remove(args...), true, nil
	case "ALLITEMS":
		return object.NewArray(stem.AllItems()...), true, nil
	case "ALLINDEXES":
		indexes := stem.AllIndexes()
		return object.NewArray(underscore.Map(indexes, func(s string) object.Value { return object.String(s) })...), true, nil
	case "HASITEM":
		return object.Bool(stem.HasItem(firstArg(args))), true, nil
	case "INDEX":
		if tail, ok := stem.Index(firstArg(args)); ok {
			return object.String(tail), true, nil
		}
		return nil, true, nil
	case "REMOVEITEM":
		return stem.RemoveItem(firstArg(args)), true, nil
	case "EMPTY":
		stem.Empty()
		return nil, true, nil
	case "ISEMPTY":
		return object.Bool(stem.Items() == 0), true, nil
	case "TODIRECTORY":
		return stem.ToDirectory(), true, nil
	}
	res, err := act.Send(stem.Value(), message, args)
	return res, true, err
}

func sendDirectory(dir *object.Directory, message string, args []object.Value) (object.Value, bool) {
	name := strings.ToUpper(object.RequestText(firstArg(args)))
	switch message {
	case "AT", "[]":
		v, _ := dir.At(name)
		return v, true
	case "HASENTRY":
		return object.Bool(dir.HasEntry(name)), true
	case "ITEMS":
		return object.String(strconv.Itoa(dir.Size())), true
	}
	return nil, false
}

func sendArray(act *Activation, arr *object.Array, message string, args []object.Value) (object.Value, bool) {
	switch message {
	case "SIZE", "ITEMS":
		return object.String(strconv.Itoa(arr.Size())), true
	case "AT", "[]":
		index, ok := act.settings.Numeric.WholeNumber(object.RequestText(firstArg(args)))
		if !ok {
			return nil, true
		}
		return arr.At(index), true
	}
	return nil, false
}

func sendString(s string, message string) (object.Value, bool) {
	switch message {
	case "LENGTH":
		return object.String(strconv.Itoa(len(s))), true
	case "UPPER":
		return object.String(strings.ToUpper(s)), true
	case "LOWER":
		return object.String(strings.ToLower(s)), true
	case "REVERSE":
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return object.String(string(runes)), true
	}
	return nil, false
}
