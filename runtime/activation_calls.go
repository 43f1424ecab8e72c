package runtime

import (
	"strconv"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog/log"
)

// Call a label of the current program. The callee shares the variables of
// the caller until it executes PROCEDURE. A condition, when given, becomes
// the callee's current condition, as for CALL ON handlers.
func (a *Activation) internalCall(label string, args []object.Value, cond *Condition, function bool) (object.Value, error) {
	code := a.labelCode()
	idx, ok := code.Label(label)
	if !ok {
		return nil, a.RaiseError(ErrLabelNotFound, object.String(label))
	}
	a.SetLocal("SIGL", object.String(strconv.Itoa(a.Line())))

	callee := a.activity.manager.newActivation()
	callee.init(a.activity, code, a, ContextInternal, strings.ToUpper(label))
	callee.next = idx
	callee.calledAsFunction = function
	if cond != nil {
		callee.settings.condition = cond
	}
	return a.runCallee(callee, args)
}

// Run another program or routine as an external call.
func (a *Activation) externalCall(code *Code, name string, args []object.Value, function bool) (object.Value, error) {
	callee := a.activity.manager.newActivation()
	callee.init(a.activity, code, a, ContextExternal, name)
	callee.calledAsFunction = function
	return a.runCallee(callee, args)
}

// Translate and run a string in the context of this activation.
func (a *Activation) Interpret(source string) error {
	translator := a.activity.manager.options.Translator
	if translator == nil {
		return a.RaiseError(ErrInterpret, object.String("no translator is installed"))
	}
	code, err := translator.Translate(source)
	if err != nil {
		return a.RaiseError(ErrInterpret, object.String(err.Error()))
	}

	callee := a.activity.manager.newActivation()
	callee.init(a.activity, code, a, ContextInterpret, "INTERPRET")
	callee.senderWasNested = a.locals.IsNested()
	a.locals.SetNested()
	_, err = a.runCallee(callee, nil)
	return err
}

// Call a routine by name. Labels in the current program come first unless
// the name was given as a string literal, then built-in functions, routines
// packaged with the program or installed by REQUIRES, registered native
// routines, and finally anything the loader can find.
func (a *Activation) CallRoutine(name string, args []object.Value, searchLabels bool, function bool) (object.Value, error) {
	upper := strings.ToUpper(name)
	if searchLabels {
		if _, ok := a.labelCode().Label(upper); ok {
			return a.internalCall(upper, args, nil, function)
		}
	}
	m := a.activity.manager
	if builtin, ok := m.builtins[upper]; ok {
		return builtin(a, args)
	}
	if code, ok := a.labelCode().Routine(upper); ok {
		return a.externalCall(code, upper, args, function)
	}
	if code, ok := m.installedRoutine(upper); ok {
		return a.externalCall(code, upper, args, function)
	}

	if err := a.checkRoutine(upper); err != nil {
		return nil, err
	}
	if native, ok := m.native(upper); ok {
		return a.callNative(native, args)
	}
	if loader := m.options.Loader; loader != nil {
		code, err := loader.Load(name)
		if err != nil {
			log.Debug().Err(err).Str("routine", name).Msg("routine load failed")
			return nil, a.RaiseError(ErrRoutineFailed, object.String(upper))
		}
		if code != nil {
			return a.externalCall(code, upper, args, function)
		}
	}
	return nil, a.RaiseError(ErrRoutineNotFound, object.String(upper))
}

// Call a routine as a function: the routine must return a result.
func (a *Activation) CallFunction(name string, args []object.Value, searchLabels bool) (object.Value, error) {
	result, err := a.CallRoutine(name, args, searchLabels, true)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, a.RaiseError(ErrNoFunctionResult, object.String(strings.ToUpper(name)))
	}
	return result, nil
}

func (a *Activation) checkRoutine(name string) error {
	if a.settings.Security == nil {
		return nil
	}
	if err := a.settings.Security.CheckRoutine(name); err != nil {
		return a.RaiseError(ErrSystemService, object.String(err.Error()))
	}
	return nil
}

func (a *Activation) callNative(native *NativeRoutine, args []object.Value) (object.Value, error) {
	frame := newNativeActivation(a.activity, a, native)
	return frame.Run(args)
}

// Send a message to an object through the installed messenger.
func (a *Activation) Send(receiver object.Value, message string, args []object.Value) (object.Value, error) {
	return a.activity.manager.options.Messenger.Send(a, receiver, strings.ToUpper(message), args)
}

// Forward the current message to another receiver with the same arguments.
// Without CONTINUE the activation returns whatever the forwarded message
// returns.
func (a *Activation) Forward(receiver object.Value, message string, args []object.Value, cont bool) (object.Value, error) {
	if receiver == nil {
		receiver = a.receiver
	}
	if message == "" {
		message = a.name
	}
	if args == nil {
		args = a.args
	}
	if !cont {
		a.forwarded = true
	}
	result, err := a.Send(receiver, message, args)
	if err != nil {
		return nil, err
	}
	if !cont {
		return result, a.returnFrom(result)
	}
	return result, nil
}

// Install a package of routines once per manager. A package that requires
// itself, directly or indirectly, is an error.
func (a *Activation) Requires(name string) error {
	upper := strings.ToUpper(name)
	m := a.activity.manager
	if m.isInstalled(upper) {
		return nil
	}
	if a.activity.requires[upper] {
		return a.RaiseError(ErrRecursiveRequires, object.String(name))
	}
	if m.options.Loader == nil {
		return a.RaiseError(ErrRoutineNotFound, object.String(upper))
	}
	code, err := m.options.Loader.Load(name)
	if err != nil || code == nil {
		return a.RaiseError(ErrRoutineNotFound, object.String(upper))
	}

	a.activity.requires[upper] = true
	defer delete(a.activity.requires, upper)
	// the package prolog runs like a routine call
	if _, err := a.externalCall(code, upper, nil, false); err != nil {
		return err
	}
	m.install(upper, code)
	return nil
}
