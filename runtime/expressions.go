package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/variables"
)

// An Expression computes a value within an activation. Subexpression
// results go through the activation's evaluation stack.
type Expression interface {
	Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error)
}

// Something a program can assign to or drop.
type VariableRef interface {
	Expression
	Assign(act *Activation, v object.Value) error
	Drop(act *Activation) error
	Name() string
}

type Literal struct {
	Value object.Value
}

func (l *Literal) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	act.traceIntermediate('L', l.Value)
	return l.Value, nil
}

func (l *Literal) String() string {
	return fmt.Sprintf("%q", object.RequestText(l.Value))
}

// A simple symbol. Index is the local slot the compiler assigned, or -1.
type SimpleVariable struct {
	Symbol string
	Index  int
}

func (v *SimpleVariable) Name() string {
	return v.Symbol
}

func (v *SimpleVariable) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	value := act.locals.Get(v.Index, v.Symbol).Value()
	if value == nil {
		replacement, err := act.HandleNovalue(v.Symbol)
		if err != nil {
			return nil, err
		}
		if replacement == nil {
			replacement = object.String(v.Symbol)
		}
		value = replacement
	}
	act.traceIntermediate('V', value)
	return value, nil
}

func (v *SimpleVariable) Assign(act *Activation, value object.Value) error {
	act.locals.Get(v.Index, v.Symbol).Set(value)
	return nil
}

func (v *SimpleVariable) Drop(act *Activation) error {
	act.locals.Get(v.Index, v.Symbol).Drop()
	return nil
}

func (v *SimpleVariable) String() string {
	return v.Symbol
}

// A stem name such as "S.". Evaluates to the stem itself.
type StemVariable struct {
	Symbol string
	Index  int
}

func (v *StemVariable) Name() string {
	return v.Symbol
}

func (v *StemVariable) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	stem := act.locals.Stem(v.Index, v.Symbol)
	act.traceIntermediate('V', stem)
	return stem, nil
}

// Assigning to a stem gives it a new default value and empties it, or
// shares another stem.
func (v *StemVariable) Assign(act *Activation, value object.Value) error {
	act.locals.Get(v.Index, v.Symbol).Set(value)
	return nil
}

func (v *StemVariable) Drop(act *Activation) error {
	act.locals.Get(v.Index, v.Symbol).Drop()
	return nil
}

func (v *StemVariable) String() string {
	return v.Symbol
}

// A compound symbol: a stem plus tail parts. Parts are constant symbols
// (literals) or simple variables, whose values are substituted; an unset
// tail variable stands for its own name.
type CompoundVariable struct {
	Stem  string
	Index int
	Tails []Expression
}

func (v *CompoundVariable) Name() string {
	parts := make([]string, len(v.Tails))
	for i, t := range v.Tails {
		parts[i] = fmt.Sprint(t)
	}
	return v.Stem + strings.Join(parts, ".")
}

func (v *CompoundVariable) tail(act *Activation) (string, error) {
	parts := make([]string, len(v.Tails))
	for i, t := range v.Tails {
		switch t := t.(type) {
		case *SimpleVariable:
			value := act.locals.Get(t.Index, t.Symbol).Value()
			if value == nil {
				parts[i] = t.Symbol
			} else {
				parts[i] = object.RequestText(value)
			}
		case *Literal:
			parts[i] = object.RequestText(t.Value)
		default:
			value, err := t.Evaluate(act, &act.stack)
			if err != nil {
				return "", err
			}
			parts[i] = object.RequestText(value)
		}
	}
	return variables.MakeTail(parts...), nil
}

func (v *CompoundVariable) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	tail, err := v.tail(act)
	if err != nil {
		return nil, err
	}
	act.traceIntermediate('C', object.String(v.Stem+tail))
	value, err := act.locals.Stem(v.Index, v.Stem).EvaluateCompoundVariableValue(act, tail)
	if err != nil {
		return nil, err
	}
	act.traceIntermediate('V', value)
	return value, nil
}

func (v *CompoundVariable) Assign(act *Activation, value object.Value) error {
	tail, err := v.tail(act)
	if err != nil {
		return err
	}
	act.locals.Stem(v.Index, v.Stem).SetCompoundVariable(tail, value)
	return nil
}

func (v *CompoundVariable) Drop(act *Activation) error {
	tail, err := v.tail(act)
	if err != nil {
		return err
	}
	act.locals.Stem(v.Index, v.Stem).DropCompoundVariable(tail)
	return nil
}

func (v *CompoundVariable) String() string {
	return v.Name()
}

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSubtract
	BinMultiply
	BinDivide
	BinIntDivide
	BinRemainder
	BinPower
	BinConcat
	BinConcatBlank
	BinEqual
	BinNotEqual
	BinGreater
	BinGreaterEqual
	BinLess
	BinLessEqual
	BinStrictEqual
	BinStrictNotEqual
	BinStrictGreater
	BinStrictGreaterEqual
	BinStrictLess
	BinStrictLessEqual
	BinAnd
	BinOr
	BinXor
)

var binaryNames = []string{
	"+", "-", "*", "/", "%", "//", "**", "||", " ",
	"=", "\\=", ">", ">=", "<", "<=",
	"==", "\\==", ">>", ">>=", "<<", "<<=",
	"&", "|", "&&",
}

func (op BinaryOp) String() string {
	return binaryNames[op]
}

// Look up an operator by its source spelling.
func ParseBinaryOp(text string) (BinaryOp, bool) {
	switch text {
	case "<>", "><":
		return BinNotEqual, true
	case "\\>", "¬>":
		return BinLessEqual, true
	case "\\<", "¬<":
		return BinGreaterEqual, true
	}
	for i, name := range binaryNames {
		if name == text {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

var arithmeticOps = map[BinaryOp]object.Operator{
	BinAdd:       object.OpAdd,
	BinSubtract:  object.OpSubtract,
	BinMultiply:  object.OpMultiply,
	BinDivide:    object.OpDivide,
	BinIntDivide: object.OpIntDivide,
	BinRemainder: object.OpRemainder,
	BinPower:     object.OpPower,
}

type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (b *Binary) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	left, err := b.Left.Evaluate(act, stack)
	if err != nil {
		return nil, err
	}
	// logical operators short-circuit nothing; both sides are evaluated
	stack.Push(left)
	right, err := b.Right.Evaluate(act, stack)
	if err != nil {
		return nil, err
	}
	left = stack.Pop()
	result, err := act.binary(b.Op, left, right)
	if err != nil {
		return nil, err
	}
	act.traceIntermediate('O', result)
	return result, nil
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%v %v %v)", b.Left, b.Op, b.Right)
}

func (a *Activation) binary(op BinaryOp, left object.Value, right object.Value) (object.Value, error) {
	l := object.RequestText(left)
	r := object.RequestText(right)
	if arith, ok := arithmeticOps[op]; ok {
		res, err := a.settings.Numeric.Arithmetic(arith, l, r)
		if err != nil {
			return nil, a.arithmeticError(err)
		}
		return object.String(res), nil
	}
	switch op {
	case BinConcat:
		return object.String(l + r), nil
	case BinConcatBlank:
		return object.String(l + " " + r), nil
	case BinEqual:
		return object.Bool(a.compare(l, r) == 0), nil
	case BinNotEqual:
		return object.Bool(a.compare(l, r) != 0), nil
	case BinGreater:
		return object.Bool(a.compare(l, r) > 0), nil
	case BinGreaterEqual:
		return object.Bool(a.compare(l, r) >= 0), nil
	case BinLess:
		return object.Bool(a.compare(l, r) < 0), nil
	case BinLessEqual:
		return object.Bool(a.compare(l, r) <= 0), nil
	case BinStrictEqual:
		return object.Bool(l == r), nil
	case BinStrictNotEqual:
		return object.Bool(l != r), nil
	case BinStrictGreater:
		return object.Bool(l > r), nil
	case BinStrictGreaterEqual:
		return object.Bool(l >= r), nil
	case BinStrictLess:
		return object.Bool(l < r), nil
	case BinStrictLessEqual:
		return object.Bool(l <= r), nil
	}

	lb, err := a.logical(left)
	if err != nil {
		return nil, err
	}
	rb, err := a.logical(right)
	if err != nil {
		return nil, err
	}
	switch op {
	case BinAnd:
		return object.Bool(lb && rb), nil
	case BinOr:
		return object.Bool(lb || rb), nil
	case BinXor:
		return object.Bool(lb != rb), nil
	default:
		panic("Invalid binary operator encountered.")
	}
}

// Normal comparison: numerically under NUMERIC FUZZ when both sides are
// numbers, otherwise as strings without leading and trailing blanks, the
// shorter one padded with blanks.
func (a *Activation) compare(l string, r string) int {
	if cmp, ok := a.settings.Numeric.Compare(l, r); ok {
		return cmp
	}
	l = strings.TrimSpace(l)
	r = strings.TrimSpace(r)
	if len(l) < len(r) {
		l += strings.Repeat(" ", len(r)-len(l))
	} else if len(r) < len(l) {
		r += strings.Repeat(" ", len(l)-len(r))
	}
	return strings.Compare(l, r)
}

func (a *Activation) logical(v object.Value) (bool, error) {
	b, ok := object.Logical(v)
	if !ok {
		return false, a.RaiseError(ErrLogicalValue, v)
	}
	return b, nil
}

func (a *Activation) arithmeticError(err error) error {
	var conv *object.ConversionError
	switch {
	case errors.As(err, &conv):
		return a.RaiseError(ErrNonNumeric, object.String(conv.Value))
	case errors.Is(err, object.ErrDivideByZero):
		return a.RaiseError(ErrDivideByZero)
	case errors.Is(err, object.ErrPowerInvalid):
		return a.RaiseError(ErrInvalidWhole, object.String(fmt.Sprint(a.settings.Numeric.Digits)), object.String("power"))
	default:
		return a.RaiseError(ErrOverflow, object.String(err.Error()))
	}
}

type UnaryOp int

const (
	UnaryMinus UnaryOp = iota
	UnaryPlus
	UnaryNot
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryMinus:
		return "-"
	case UnaryPlus:
		return "+"
	case UnaryNot:
		return "\\"
	default:
		panic("Invalid unary operator encountered.")
	}
}

type Unary struct {
	Op      UnaryOp
	Operand Expression
}

func (u *Unary) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	v, err := u.Operand.Evaluate(act, stack)
	if err != nil {
		return nil, err
	}
	var result object.Value
	switch u.Op {
	case UnaryNot:
		b, err := act.logical(v)
		if err != nil {
			return nil, err
		}
		result = object.Bool(!b)
	case UnaryMinus:
		res, err := act.settings.Numeric.Negate(object.RequestText(v))
		if err != nil {
			return nil, act.arithmeticError(err)
		}
		result = object.String(res)
	case UnaryPlus:
		res, err := act.settings.Numeric.Arithmetic(object.OpAdd, "0", object.RequestText(v))
		if err != nil {
			return nil, act.arithmeticError(err)
		}
		result = object.String(res)
	}
	act.traceIntermediate('P', result)
	return result, nil
}

func (u *Unary) String() string {
	return fmt.Sprintf("(%v%v)", u.Op, u.Operand)
}

// Evaluate argument expressions onto the stack and pop them as a list.
// Omitted arguments are nil expressions and nil values.
func evaluateArgs(act *Activation, stack *EvaluationStack, args []Expression) ([]object.Value, error) {
	for _, arg := range args {
		if arg == nil {
			stack.Push(nil)
			continue
		}
		v, err := arg.Evaluate(act, stack)
		if err != nil {
			return nil, err
		}
		stack.Push(v)
	}
	return stack.PopN(len(args)), nil
}

// A function call. A name written as a string literal skips the labels of
// the program.
type FunctionCall struct {
	Function string
	Args     []Expression
	Quoted   bool
}

func (f *FunctionCall) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	args, err := evaluateArgs(act, stack, f.Args)
	if err != nil {
		return nil, err
	}
	result, err := act.CallFunction(f.Function, args, !f.Quoted)
	if err != nil {
		return nil, err
	}
	act.traceIntermediate('F', result)
	return result, nil
}

func (f *FunctionCall) String() string {
	return fmt.Sprintf("%s(%v)", f.Function, f.Args)
}

// A message term, receiver~message(args).
type MessageSend struct {
	Receiver Expression
	Message  string
	Args     []Expression
}

// Send the message. The result may be nil, as for a message instruction.
func (m *MessageSend) dispatch(act *Activation, stack *EvaluationStack) (object.Value, error) {
	receiver, err := m.Receiver.Evaluate(act, stack)
	if err != nil {
		return nil, err
	}
	stack.Push(receiver)
	args, err := evaluateArgs(act, stack, m.Args)
	if err != nil {
		return nil, err
	}
	receiver = stack.Pop()
	return act.Send(receiver, m.Message, args)
}

func (m *MessageSend) Evaluate(act *Activation, stack *EvaluationStack) (object.Value, error) {
	result, err := m.dispatch(act, stack)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, act.RaiseError(ErrNoFunctionResult, object.String(m.Message))
	}
	act.traceIntermediate('M', result)
	return result, nil
}

func (m *MessageSend) String() string {
	return fmt.Sprintf("%v~%s(%v)", m.Receiver, m.Message, m.Args)
}

// Resolve a variable name given as a string, as the variable pool
// interface does: "X", "S." or "S.TAIL" with tail symbols substituted.
func (a *Activation) resolveName(name string) VariableRef {
	stem, tail, compound := strings.Cut(name, ".")
	if !compound {
		return &SimpleVariable{Symbol: name, Index: -1}
	}
	if tail == "" {
		return &StemVariable{Symbol: stem + ".", Index: -1}
	}
	parts := strings.Split(tail, ".")
	tails := make([]Expression, len(parts))
	for i, p := range parts {
		if p == "" || (p[0] >= '0' && p[0] <= '9') {
			tails[i] = &Literal{Value: object.String(p)}
		} else {
			tails[i] = &SimpleVariable{Symbol: p, Index: -1}
		}
	}
	return &CompoundVariable{Stem: stem + ".", Index: -1, Tails: tails}
}

// The value of a named variable without NOVALUE processing, or nil.
func (a *Activation) lookupVariable(name string) object.Value {
	switch ref := a.resolveName(name).(type) {
	case *SimpleVariable:
		return a.Local(ref.Symbol)
	case *StemVariable:
		return a.locals.Stem(-1, ref.Symbol)
	case *CompoundVariable:
		tail, _ := ref.tail(a)
		return a.locals.Stem(-1, ref.Stem).GetCompoundVariableValue(tail)
	}
	return nil
}

// The name with tail substitution done, as an unset variable evaluates to.
func (a *Activation) derivedName(name string) string {
	if ref, ok := a.resolveName(name).(*CompoundVariable); ok {
		if tail, err := ref.tail(a); err == nil {
			return ref.Stem + tail
		}
	}
	return name
}

func (a *Activation) assignVariable(name string, v object.Value) {
	_ = a.resolveName(name).Assign(a, v)
}

func (a *Activation) dropVariable(name string) {
	_ = a.resolveName(name).Drop(a)
}
