package compiler

import (
	"fmt"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/runtime"
)

// Parses the expressions and variable references of one clause. Symbols
// named in stops end an expression, which is how keyword clauses such as
// DO and IF delimit their operands.
type parser struct {
	tokens []token
	pos    int
	code   *runtime.Code
	stops  []string
}

func newParser(code *runtime.Code, tokens []token) *parser {
	return &parser{tokens: tokens, code: code}
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEnd {
		p.pos++
	}
	return t
}

func (p *parser) atEnd() bool {
	return p.peek().kind == tokEnd
}

func (p *parser) atStop() bool {
	kw := p.peek().keyword()
	for _, s := range p.stops {
		if kw == s {
			return true
		}
	}
	return false
}

// Consume the keyword if it is next.
func (p *parser) keyword(kw string) bool {
	if p.peek().keyword() == kw {
		p.next()
		return true
	}
	return false
}

func (p *parser) isOperator(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOperator {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("expected %v, found %v", kind, t)
	}
	return t, nil
}

func (p *parser) expectEnd() error {
	if !p.atEnd() {
		return fmt.Errorf("unexpected %v", p.peek())
	}
	return nil
}

// The text that remains from the current token on.
func (p *parser) rest(text string) string {
	if p.atEnd() {
		return ""
	}
	return strings.TrimSpace(text[p.peek().pos:])
}

// Parse an expression that ends at any of the stop keywords, then restore
// the previous stops.
func (p *parser) expressionUntil(stops ...string) (runtime.Expression, error) {
	saved := p.stops
	p.stops = stops
	defer func() { p.stops = saved }()
	return p.expression()
}

// An optional expression: nil when the clause or operand list ends here.
func (p *parser) optionalExpression(stops ...string) (runtime.Expression, error) {
	saved := p.stops
	p.stops = stops
	defer func() { p.stops = saved }()
	if p.atEnd() || p.atStop() || p.peek().kind == tokComma {
		return nil, nil
	}
	return p.expression()
}

func (p *parser) expression() (runtime.Expression, error) {
	if p.atEnd() || p.atStop() {
		return nil, fmt.Errorf("expression expected, found %v", p.peek())
	}
	e, err := p.orExpression()
	if err != nil {
		return nil, err
	}
	p.track(stackDepth(e))
	return e, nil
}

// Grow the code's operand stack to at least depth entries.
func (p *parser) track(depth int) {
	p.code.MaxStack = max(p.code.MaxStack, depth)
}

func (p *parser) binaryLevel(operand func() (runtime.Expression, error), ops ...string) (runtime.Expression, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.isOperator(ops...) {
		text := p.next().text
		op, ok := runtime.ParseBinaryOp(text)
		if !ok {
			return nil, fmt.Errorf("invalid operator %q", text)
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &runtime.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) orExpression() (runtime.Expression, error) {
	return p.binaryLevel(p.andExpression, "|", "&&")
}

func (p *parser) andExpression() (runtime.Expression, error) {
	return p.binaryLevel(p.comparison, "&")
}

func (p *parser) comparison() (runtime.Expression, error) {
	return p.binaryLevel(p.concatenation,
		"=", "\\=", ">", "<", ">=", "<=", "<>", "><", "\\>", "\\<",
		"==", "\\==", ">>", "<<", ">>=", "<<=")
}

// Explicit || and implicit concatenation: a blank between two terms keeps
// one blank, abuttal keeps none.
func (p *parser) concatenation() (runtime.Expression, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		var op runtime.BinaryOp
		switch {
		case p.isOperator("||"):
			p.next()
			op = runtime.BinConcat
		case p.startsTerm():
			op = runtime.BinConcat
			if p.peek().spaced {
				op = runtime.BinConcatBlank
			}
		default:
			return left, nil
		}
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &runtime.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) startsTerm() bool {
	switch p.peek().kind {
	case tokString, tokLeft:
		return true
	case tokSymbol:
		return !p.atStop()
	}
	return false
}

func (p *parser) additive() (runtime.Expression, error) {
	return p.binaryLevel(p.multiplicative, "+", "-")
}

func (p *parser) multiplicative() (runtime.Expression, error) {
	return p.binaryLevel(p.power, "*", "/", "%", "//")
}

func (p *parser) power() (runtime.Expression, error) {
	return p.binaryLevel(p.prefix, "**")
}

func (p *parser) prefix() (runtime.Expression, error) {
	var op runtime.UnaryOp
	switch {
	case p.isOperator("-"):
		op = runtime.UnaryMinus
	case p.isOperator("+"):
		op = runtime.UnaryPlus
	case p.isOperator("\\"):
		op = runtime.UnaryNot
	default:
		return p.term()
	}
	p.next()
	operand, err := p.prefix()
	if err != nil {
		return nil, err
	}
	return &runtime.Unary{Op: op, Operand: operand}, nil
}

// A primary followed by any number of message sends.
func (p *parser) term() (runtime.Expression, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokTwiddle {
		p.next()
		name, err := p.messageName()
		if err != nil {
			return nil, err
		}
		send := &runtime.MessageSend{Receiver: e, Message: name}
		if p.peek().kind == tokLeft && !p.peek().spaced {
			if send.Args, err = p.arguments(); err != nil {
				return nil, err
			}
		}
		e = send
	}
	return e, nil
}

func (p *parser) messageName() (string, error) {
	t := p.next()
	switch {
	case t.kind == tokSymbol || t.kind == tokString:
		return strings.ToUpper(t.text), nil
	case t.kind == tokOperator && t.text == "=":
		return "=", nil
	}
	return "", fmt.Errorf("message name expected, found %v", t)
}

func (p *parser) primary() (runtime.Expression, error) {
	t := p.next()
	switch t.kind {
	case tokLeft:
		e, err := p.expressionUntil()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRight); err != nil {
			return nil, err
		}
		return e, nil
	case tokString:
		if p.peek().kind == tokLeft && !p.peek().spaced {
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			return &runtime.FunctionCall{Function: strings.ToUpper(t.text), Args: args, Quoted: true}, nil
		}
		return &runtime.Literal{Value: object.String(t.text)}, nil
	case tokSymbol:
		if p.peek().kind == tokLeft && !p.peek().spaced {
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			return &runtime.FunctionCall{Function: strings.ToUpper(t.text), Args: args}, nil
		}
		return p.symbol(t.text), nil
	}
	return nil, fmt.Errorf("unexpected %v", t)
}

// A parenthesized argument list. Omitted arguments are nil.
func (p *parser) arguments() ([]runtime.Expression, error) {
	if _, err := p.expect(tokLeft); err != nil {
		return nil, err
	}
	saved := p.stops
	p.stops = nil
	defer func() { p.stops = saved }()
	if p.peek().kind == tokRight {
		p.next()
		return nil, nil
	}
	args, err := p.argumentList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRight); err != nil {
		return nil, err
	}
	return args, nil
}

// Comma separated optional expressions, up to a closing parenthesis, a stop
// keyword or the end of the clause.
func (p *parser) argumentList() ([]runtime.Expression, error) {
	args := []runtime.Expression{}
	for {
		var arg runtime.Expression
		if k := p.peek().kind; k != tokComma && k != tokRight && k != tokEnd && !p.atStop() {
			var err error
			if arg, err = p.orExpression(); err != nil {
				return nil, err
			}
		}
		args = append(args, arg)
		if p.peek().kind != tokComma {
			return args, nil
		}
		p.next()
	}
}

func isConstantSymbol(name string) bool {
	return name[0] == '.' || isDigit(name[0])
}

// A symbol in an expression: a constant, simple, stem or compound variable.
func (p *parser) symbol(text string) runtime.Expression {
	name := strings.ToUpper(text)
	if isConstantSymbol(name) {
		return &runtime.Literal{Value: object.String(name)}
	}
	return p.variable(name)
}

// Build the reference for a variable symbol, allocating slots for the
// simple and stem names.
func (p *parser) variable(name string) runtime.VariableRef {
	stem, tail, compound := strings.Cut(name, ".")
	if !compound {
		return &runtime.SimpleVariable{Symbol: name, Index: p.code.VariableIndex(name)}
	}
	stem += "."
	index := p.code.VariableIndex(stem)
	if tail == "" {
		return &runtime.StemVariable{Symbol: stem, Index: index}
	}
	parts := strings.Split(tail, ".")
	tails := make([]runtime.Expression, len(parts))
	for i, part := range parts {
		if part == "" || isConstantSymbol(part) {
			tails[i] = &runtime.Literal{Value: object.String(part)}
		} else {
			tails[i] = &runtime.SimpleVariable{Symbol: part, Index: p.code.VariableIndex(part)}
		}
	}
	return &runtime.CompoundVariable{Stem: stem, Index: index, Tails: tails}
}

// The next token as an assignable variable.
func (p *parser) reference() (runtime.VariableRef, error) {
	t := p.next()
	if t.kind != tokSymbol {
		return nil, fmt.Errorf("variable symbol expected, found %v", t)
	}
	name := strings.ToUpper(t.text)
	if isConstantSymbol(name) {
		return nil, fmt.Errorf("variable symbol expected, found constant %v", t)
	}
	return p.variable(name), nil
}

// Blank separated variable names, as DROP, EXPOSE and PULL take them. A
// period stands for a placeholder when placeholders are allowed and reads
// as nil.
func (p *parser) references(placeholders bool) ([]runtime.VariableRef, error) {
	refs := []runtime.VariableRef{}
	for !p.atEnd() && !p.atStop() {
		if placeholders && p.peek().kind == tokSymbol && p.peek().text == "." {
			p.next()
			refs = append(refs, nil)
			continue
		}
		ref, err := p.reference()
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// A name given as a symbol, upper cased, or as a string, kept as written.
func (p *parser) name() (string, bool, error) {
	t := p.next()
	switch t.kind {
	case tokSymbol:
		return strings.ToUpper(t.text), false, nil
	case tokString:
		return t.text, true, nil
	}
	return "", false, fmt.Errorf("name expected, found %v", t)
}

// The operand stack depth evaluating an expression needs.
func stackDepth(e runtime.Expression) int {
	switch e := e.(type) {
	case *runtime.Binary:
		return max(stackDepth(e.Left), 1+stackDepth(e.Right))
	case *runtime.Unary:
		return stackDepth(e.Operand)
	case *runtime.FunctionCall:
		return argumentsDepth(e.Args)
	case *runtime.MessageSend:
		return max(stackDepth(e.Receiver), 1+argumentsDepth(e.Args))
	}
	return 0
}

func argumentsDepth(args []runtime.Expression) int {
	depth := len(args)
	for i, arg := range args {
		if arg != nil {
			depth = max(depth, i+stackDepth(arg))
		}
	}
	return depth
}
