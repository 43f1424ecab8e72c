package runtime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
)

// The type tags of native routine arguments and results.
type ValueKind int

const (
	KindVoid ValueKind = iota
	KindInt
	KindSize
	KindDouble
	KindPointer
	KindCString
	KindObject
	KindSelf
	KindArgList
	KindName
)

var kindNames = map[string]ValueKind{
	"void":    KindVoid,
	"int":     KindInt,
	"size":    KindSize,
	"double":  KindDouble,
	"pointer": KindPointer,
	"cstring": KindCString,
	"object":  KindObject,
	"self":    KindSelf,
	"arglist": KindArgList,
	"name":    KindName,
}

func (k ValueKind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	panic("Invalid value kind encountered.")
}

// Values standing for an omitted optional argument.
const (
	NoInt      = math.MaxInt
	NoSize     = ^uint(0)
	NullString = "\x00"
)

var NoDouble = math.Inf(1)

// One argument or result slot of a native routine.
type ArgSpec struct {
	Kind     ValueKind
	Optional bool
}

// The signature of a native routine: result kind, then arguments.
type Descriptor struct {
	Result ArgSpec
	Args   []ArgSpec
}

// Parse a descriptor such as "int: int, opt size, cstring". The part before
// the colon is the result kind.
func ParseDescriptor(text string) (Descriptor, error) {
	result, args, found := strings.Cut(text, ":")
	if !found {
		return Descriptor{}, fmt.Errorf("descriptor %q has no result kind", text)
	}
	res, err := parseArgSpec(result)
	if err != nil {
		return Descriptor{}, err
	}
	if res.Optional {
		return Descriptor{}, fmt.Errorf("result kind cannot be optional in %q", text)
	}
	desc := Descriptor{Result: res}
	if strings.TrimSpace(args) == "" {
		return desc, nil
	}
	for _, part := range strings.Split(args, ",") {
		spec, err := parseArgSpec(part)
		if err != nil {
			return Descriptor{}, err
		}
		if spec.Kind == KindVoid {
			return Descriptor{}, fmt.Errorf("argument kind cannot be void in %q", text)
		}
		desc.Args = append(desc.Args, spec)
	}
	return desc, nil
}

func parseArgSpec(text string) (ArgSpec, error) {
	fields := strings.Fields(strings.ToLower(text))
	spec := ArgSpec{}
	if len(fields) == 2 && fields[0] == "opt" {
		spec.Optional = true
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return spec, fmt.Errorf("invalid argument kind %q", strings.TrimSpace(text))
	}
	kind, ok := kindNames[fields[0]]
	if !ok {
		return spec, fmt.Errorf("unknown argument kind %q", fields[0])
	}
	spec.Kind = kind
	return spec, nil
}

// A value crossing the native boundary, tagged with its kind.
type NativeValue struct {
	Kind    ValueKind
	Int     int
	Size    uint
	Double  float64
	Pointer any
	String  string
	Object  object.Value
	Args    []object.Value
}

func (v NativeValue) Omitted() bool {
	switch v.Kind {
	case KindInt:
		return v.Int == NoInt
	case KindSize:
		return v.Size == NoSize
	case KindDouble:
		return math.IsInf(v.Double, 1)
	case KindCString, KindName:
		return v.String == NullString
	case KindPointer:
		return v.Pointer == nil
	case KindObject:
		return v.Object == nil
	default:
		return false
	}
}

// Build native return values.
func IntValue(n int) NativeValue { return NativeValue{Kind: KindInt, Int: n} }
func SizeValue(n uint) NativeValue { return NativeValue{Kind: KindSize, Size: n} }
func DoubleValue(f float64) NativeValue { return NativeValue{Kind: KindDouble, Double: f} }
func StringValue(s string) NativeValue { return NativeValue{Kind: KindCString, String: s} }
func ObjectValue(v object.Value) NativeValue { return NativeValue{Kind: KindObject, Object: v} }
func PointerValue(p any) NativeValue { return NativeValue{Kind: KindPointer, Pointer: p} }

// The Go side of a native routine.
type NativeFunc func(ctx *NativeActivation, args []NativeValue) (NativeValue, error)

// A routine implemented in Go, callable by name from programs.
type NativeRoutine struct {
	Name       string
	Descriptor Descriptor
	Func       NativeFunc
}

func NewNativeRoutine(name string, descriptor string, fn NativeFunc) (*NativeRoutine, error) {
	desc, err := ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	return &NativeRoutine{Name: strings.ToUpper(name), Descriptor: desc, Func: fn}, nil
}

// Fetching from the variable pool needs EnableVariablePool first.
var ErrPoolDisabled = errors.New("variable pool access is not enabled")

// Panic payload used by RaiseCondition to leave the native routine.
type nativeRaise struct {
	condition *Condition
}

// A NativeActivation is the frame of a Go routine called from a program. The
// routine runs without the kernel lock; every callback into the interpreter
// takes it again for the duration of the call.
type NativeActivation struct {
	activity *Activity
	sender   *Activation
	routine  *NativeRoutine
	name     string
	depth    int

	poolEnabled bool
	pool        *variables.PoolIterator
	raised      *Condition
}

func newNativeActivation(activity *Activity, sender *Activation, routine *NativeRoutine) *NativeActivation {
	return &NativeActivation{activity: activity, sender: sender, routine: routine, name: routine.Name}
}

func (n *NativeActivation) Name() string {
	return n.name
}

func (n *NativeActivation) Sender() *Activation {
	return n.sender
}

// Call the routine with program arguments and convert its result back.
func (n *NativeActivation) Run(args []object.Value) (object.Value, error) {
	n.depth = len(n.activity.stack)
	n.activity.pushFrame(n)
	defer n.activity.restoreLevel(n.depth)

	values, err := n.marshalArgs(args)
	if err != nil {
		return nil, err
	}
	result, err := n.invoke(values)
	if n.raised != nil {
		return nil, n.sender.RaiseCondition(n.raised)
	}
	if err != nil {
		if isControlTransfer(err) {
			// raised by a callback into the interpreter
			return nil, err
		}
		return nil, n.sender.RaiseError(ErrRoutineFailed, object.String(n.name))
	}
	return n.convertResult(result)
}

func (n *NativeActivation) invoke(values []NativeValue) (result NativeValue, err error) {
	n.activity.unlockKernel()
	defer n.activity.lockKernel()
	defer func() {
		if r := recover(); r != nil {
			raise, ok := r.(*nativeRaise)
			if !ok {
				panic(r)
			}
			n.raised = raise.condition
		}
	}()
	return n.routine.Func(n, values)
}

func (n *NativeActivation) marshalArgs(args []object.Value) ([]NativeValue, error) {
	specs := n.routine.Descriptor.Args
	values := make([]NativeValue, 0, len(specs))
	pos := 0
	for _, spec := range specs {
		switch spec.Kind {
		case KindSelf:
			values = append(values, NativeValue{Kind: KindSelf, Object: n.sender.receiver})
			continue
		case KindArgList:
			values = append(values, NativeValue{Kind: KindArgList, Args: args})
			pos = len(args)
			continue
		}
		var arg object.Value
		if pos < len(args) {
			arg = args[pos]
		}
		pos++
		if arg == nil {
			if !spec.Optional {
				return nil, n.sender.RaiseError(ErrMissingArg, object.String(n.name), object.String(strconv.Itoa(pos)))
			}
			values = append(values, omitted(spec.Kind))
			continue
		}
		v, err := n.convertArg(spec.Kind, arg, pos)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if pos < len(args) {
		return nil, n.sender.RaiseError(ErrTooManyArgs, object.String(n.name), object.String(strconv.Itoa(pos)))
	}
	return values, nil
}

func omitted(kind ValueKind) NativeValue {
	switch kind {
	case KindInt:
		return IntValue(NoInt)
	case KindSize:
		return SizeValue(NoSize)
	case KindDouble:
		return DoubleValue(NoDouble)
	case KindCString, KindName:
		return NativeValue{Kind: kind, String: NullString}
	default:
		return NativeValue{Kind: kind}
	}
}

func (n *NativeActivation) convertArg(kind ValueKind, arg object.Value, pos int) (NativeValue, error) {
	text := object.RequestText(arg)
	numeric := n.sender.settings.Numeric
	switch kind {
	case KindInt:
		i, ok := numeric.WholeNumber(text)
		if !ok {
			return NativeValue{}, n.sender.RaiseError(ErrArgWhole, object.String(n.name), object.String(strconv.Itoa(pos)), arg)
		}
		return IntValue(i), nil
	case KindSize:
		i, ok := numeric.WholeNumber(text)
		if !ok {
			return NativeValue{}, n.sender.RaiseError(ErrArgWhole, object.String(n.name), object.String(strconv.Itoa(pos)), arg)
		}
		if i < 0 {
			return NativeValue{}, n.sender.RaiseError(ErrArgNonNegative, object.String(n.name), object.String(strconv.Itoa(pos)), arg)
		}
		return SizeValue(uint(i)), nil
	case KindDouble:
		f, ok := object.ParseFloat(text)
		if !ok {
			return NativeValue{}, n.sender.RaiseError(ErrNonNumeric, arg)
		}
		return DoubleValue(f), nil
	case KindCString:
		return StringValue(text), nil
	case KindName:
		return NativeValue{Kind: KindName, String: strings.ToUpper(text)}, nil
	case KindPointer:
		return PointerValue(arg), nil
	default:
		return ObjectValue(arg), nil
	}
}

// Convert a routine result according to the declared result kind.
func (n *NativeActivation) convertResult(v NativeValue) (object.Value, error) {
	switch n.routine.Descriptor.Result.Kind {
	case KindVoid:
		return nil, nil
	case KindInt:
		return object.String(strconv.Itoa(v.Int)), nil
	case KindSize:
		return object.String(strconv.FormatUint(uint64(v.Size), 10)), nil
	case KindDouble:
		return object.String(n.sender.settings.Numeric.FormatFloat(v.Double)), nil
	case KindCString, KindName:
		if v.String == NullString {
			return nil, nil
		}
		return object.String(v.String), nil
	case KindPointer:
		if v.Pointer == nil {
			return nil, nil
		}
		return v.Pointer, nil
	default:
		return v.Object, nil
	}
}

// Run fn with the kernel held.
func (n *NativeActivation) withKernel(fn func()) {
	n.activity.lockKernel()
	defer n.activity.unlockKernel()
	fn()
}

// Get a variable of the calling activation, or nil when unset.
func (n *NativeActivation) GetVariable(name string) object.Value {
	var res object.Value
	n.withKernel(func() {
		res = n.sender.lookupVariable(strings.ToUpper(name))
	})
	return res
}

func (n *NativeActivation) SetVariable(name string, v object.Value) {
	n.withKernel(func() {
		n.sender.assignVariable(strings.ToUpper(name), v)
	})
}

func (n *NativeActivation) DropVariable(name string) {
	n.withKernel(func() {
		n.sender.dropVariable(strings.ToUpper(name))
	})
}

// Call a routine from native code.
func (n *NativeActivation) CallRoutine(name string, args []object.Value) (object.Value, error) {
	var res object.Value
	var err error
	n.withKernel(func() {
		res, err = n.sender.CallRoutine(name, args, false, false)
	})
	return res, err
}

// Wait for a result from another activity.
func (n *NativeActivation) WaitResult(r *MessageResult) (object.Value, error) {
	var res object.Value
	var err error
	n.withKernel(func() {
		res, err = r.Wait(n.sender)
	})
	return res, err
}

// Allow FetchNextVariable and start the iteration over.
func (n *NativeActivation) EnableVariablePool() {
	n.withKernel(func() {
		n.poolEnabled = true
		n.pool = variables.NewPoolIterator(n.sender.locals.Dictionary())
	})
}

func (n *NativeActivation) DisableVariablePool() {
	n.withKernel(func() {
		n.poolEnabled = false
		n.pool = nil
	})
}

// Get the next variable of the caller's pool, stem tails included. The last
// return is false once the pool is exhausted.
func (n *NativeActivation) FetchNextVariable() (string, object.Value, bool, error) {
	if !n.poolEnabled {
		return "", nil, false, ErrPoolDisabled
	}
	var name string
	var value object.Value
	var ok bool
	n.withKernel(func() {
		name, value, ok = n.pool.Next()
	})
	return name, value, ok, nil
}

// Raise a condition in the caller. Does not return.
func (n *NativeActivation) RaiseCondition(name string, description string, additional []object.Value, result object.Value) {
	cond := NewCondition(name, description)
	cond.Additional = additional
	cond.Result = result
	n.withKernel(func() {
		n.activity.restoreLevel(n.depth + 1)
	})
	panic(&nativeRaise{cond})
}

// Raise a SYNTAX error in the caller. Does not return.
func (n *NativeActivation) RaiseError(code string, subs ...object.Value) {
	var cond *Condition
	n.withKernel(func() {
		n.activity.restoreLevel(n.depth + 1)
		var err error
		cond, err = n.sender.newError(code, subs)
		if err != nil {
			var condErr *ConditionError
			if errors.As(err, &condErr) {
				cond = condErr.Condition
			}
		}
	})
	if cond == nil {
		cond = &Condition{Name: CondSyntax, Code: ErrInternalRecursion}
	}
	panic(&nativeRaise{cond})
}
