package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/runtime"
	"github.com/glossopoeia/rexxcore/util"
	"github.com/rjNemo/underscore"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// A compile failure and the source line it happened on.
type SyntaxError struct {
	Program string
	Line    int
	Err     error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Program, e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// One clause waiting to be compiled: free-form text, or a structured listing
// node when node is set.
type clauseItem struct {
	line int
	text string
	node *yaml.Node
}

func textItems(clauses []sourceClause) []clauseItem {
	return underscore.Map(clauses, func(c sourceClause) clauseItem {
		return clauseItem{line: c.line, text: c.text}
	})
}

// The upper cased symbol a free-form clause starts with.
func (item clauseItem) leading() string {
	if item.node != nil {
		return ""
	}
	end := 0
	for end < len(item.text) && isSymbolChar(item.text[end]) {
		end++
	}
	return strings.ToUpper(item.text[:end])
}

// Clause keywords that only make sense as part of an enclosing clause.
var dependentKeywords = []string{"END", "THEN", "ELSE", "WHEN", "OTHERWISE"}

var conditionNames = []string{
	runtime.CondSyntax, runtime.CondError, runtime.CondFailure, runtime.CondHalt,
	runtime.CondNovalue, runtime.CondNotReady, runtime.CondLostDigits,
	runtime.CondNoMethod, runtime.CondNoString, runtime.CondAny,
}

type compiler struct {
	code  *runtime.Code
	items []clauseItem
	pos   int
}

func newCompiler(name string) *compiler {
	return &compiler{code: runtime.NewCode(name)}
}

func (c *compiler) errorf(line int, format string, args ...any) error {
	return &SyntaxError{Program: c.code.Name, Line: line, Err: fmt.Errorf(format, args...)}
}

func (c *compiler) wrap(line int, err error) error {
	var syntax *SyntaxError
	if errors.As(err, &syntax) {
		return err
	}
	return &SyntaxError{Program: c.code.Name, Line: line, Err: err}
}

// Compile a list of clauses in order, keeping the enclosing list's position.
func (c *compiler) compileItems(items []clauseItem) error {
	savedItems, savedPos := c.items, c.pos
	c.items, c.pos = items, 0
	defer func() { c.items, c.pos = savedItems, savedPos }()
	for c.pos < len(c.items) {
		if err := c.compileNext(); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileNext() error {
	item := c.items[c.pos]
	c.pos++
	if item.node != nil {
		return c.structured(item)
	}
	if err := c.freeForm(item); err != nil {
		return c.wrap(item.line, err)
	}
	return nil
}

// Put the remainder of a clause back as the next one to compile.
func (c *compiler) pushBack(line int, text string) {
	c.items = slices.Insert(slices.Clip(c.items), c.pos, clauseItem{line: line, text: text})
}

// Whether the next clause starts with the keyword.
func (c *compiler) nextIs(keyword string) bool {
	return c.pos < len(c.items) && c.items[c.pos].leading() == keyword
}

func (c *compiler) add(ins runtime.Instruction) int {
	return c.code.Add(ins)
}

func (c *compiler) here() int {
	return len(c.code.Instructions)
}

func (c *compiler) freeForm(item clauseItem) error {
	tokens, err := tokenize(item.text)
	if err != nil {
		return err
	}
	p := newParser(c.code, tokens)
	clause := runtime.Clause{LineNo: item.line}
	first := p.peek()

	if first.kind == tokSymbol && p.peekAt(1).kind == tokColon {
		p.next()
		p.next()
		name := strings.ToUpper(first.text)
		c.code.AddLabel(name, c.add(&runtime.Label{Clause: clause, Name: name}))
		if rest := p.rest(item.text); rest != "" {
			c.pushBack(item.line, rest)
		}
		return nil
	}
	if first.kind == tokSymbol && p.peekAt(1).kind == tokOperator && p.peekAt(1).text == "=" {
		return c.assignment(p, clause)
	}

	kw := first.keyword()
	if underscore.Contains(dependentKeywords, kw) {
		return fmt.Errorf("unexpected %s", kw)
	}
	if compile, ok := keywordClauses[kw]; ok {
		p.next()
		return compile(c, p, clause, item.text)
	}
	return c.commandClause(p, clause)
}

func (c *compiler) assignment(p *parser, clause runtime.Clause) error {
	target, err := p.reference()
	if err != nil {
		return err
	}
	p.next()
	value, err := p.expression()
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Assign{Clause: clause, Target: target, Value: value})
	return nil
}

// A clause that is only an expression: a message term is sent for effect,
// anything else is a command for the current environment.
func (c *compiler) commandClause(p *parser, clause runtime.Clause) error {
	value, err := p.expression()
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	if _, ok := value.(*runtime.MessageSend); ok {
		c.add(&runtime.Message{Clause: clause, Value: value})
	} else {
		c.add(&runtime.Command{Clause: clause, Value: value})
	}
	return nil
}

type clauseFunc func(c *compiler, p *parser, clause runtime.Clause, text string) error

var keywordClauses map[string]clauseFunc

func init() {
	keywordClauses = map[string]clauseFunc{
		"ADDRESS":   (*compiler).addressClause,
		"ARG":       (*compiler).argClause,
		"CALL":      (*compiler).callClause,
		"DO":        (*compiler).doClause,
		"DROP":      (*compiler).dropClause,
		"EXIT":      (*compiler).exitClause,
		"EXPOSE":    (*compiler).exposeClause,
		"FORWARD":   (*compiler).forwardClause,
		"GUARD":     (*compiler).guardClause,
		"IF":        (*compiler).ifClause,
		"INTERPRET": (*compiler).interpretClause,
		"ITERATE":   (*compiler).iterateClause,
		"LEAVE":     (*compiler).leaveClause,
		"NOP":       (*compiler).nopClause,
		"NUMERIC":   (*compiler).numericClause,
		"PARSE":     (*compiler).parseClause,
		"PROCEDURE": (*compiler).procedureClause,
		"PULL":      (*compiler).pullClause,
		"PUSH":      (*compiler).pushClause,
		"QUEUE":     (*compiler).queueClause,
		"RAISE":     (*compiler).raiseClause,
		"REPLY":     (*compiler).replyClause,
		"REQUIRES":  (*compiler).requiresClause,
		"RETURN":    (*compiler).returnClause,
		"SAY":       (*compiler).sayClause,
		"SIGNAL":    (*compiler).signalClause,
		"TRACE":     (*compiler).traceClause,
		"USE":       (*compiler).useClause,
	}
}

// The single optional expression most keyword clauses take.
func optionalOperand(p *parser) (runtime.Expression, error) {
	e, err := p.optionalExpression()
	if err != nil {
		return nil, err
	}
	return e, p.expectEnd()
}

func (c *compiler) sayClause(p *parser, clause runtime.Clause, text string) error {
	e, err := optionalOperand(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Say{Clause: clause, Value: e})
	return nil
}

func (c *compiler) nopClause(p *parser, clause runtime.Clause, text string) error {
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Nop{Clause: clause})
	return nil
}

func (c *compiler) returnClause(p *parser, clause runtime.Clause, text string) error {
	e, err := optionalOperand(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Return{Clause: clause, Value: e})
	return nil
}

func (c *compiler) exitClause(p *parser, clause runtime.Clause, text string) error {
	e, err := optionalOperand(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Exit{Clause: clause, Value: e})
	return nil
}

func (c *compiler) replyClause(p *parser, clause runtime.Clause, text string) error {
	e, err := optionalOperand(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Reply{Clause: clause, Value: e})
	return nil
}

func (c *compiler) interpretClause(p *parser, clause runtime.Clause, text string) error {
	e, err := p.expression()
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Interpret{Clause: clause, Value: e})
	return nil
}

func (c *compiler) pushClause(p *parser, clause runtime.Clause, text string) error {
	e, err := optionalOperand(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Push{Clause: clause, Value: e, Lifo: true})
	return nil
}

func (c *compiler) queueClause(p *parser, clause runtime.Clause, text string) error {
	e, err := optionalOperand(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Push{Clause: clause, Value: e})
	return nil
}

// A condition name, with the user condition name following USER.
func conditionName(p *parser) (string, error) {
	t := p.next()
	kw := t.keyword()
	if kw == "USER" {
		name := p.next()
		if name.kind != tokSymbol {
			return "", fmt.Errorf("user condition name expected, found %v", name)
		}
		return "USER " + name.keyword(), nil
	}
	if !underscore.Contains(conditionNames, kw) {
		return "", fmt.Errorf("condition name expected, found %v", t)
	}
	return kw, nil
}

// CALL ON or SIGNAL ON and their OFF forms. The trap label defaults to the
// condition name, or the user condition's own name.
func (c *compiler) trapClause(p *parser, clause runtime.Clause, kind runtime.TrapKind, on bool) error {
	cond, err := conditionName(p)
	if err != nil {
		return err
	}
	words := strings.Fields(cond)
	label := words[len(words)-1]
	if on && p.keyword("NAME") {
		if label, _, err = p.name(); err != nil {
			return err
		}
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.SetTrap{Clause: clause, Kind: kind, Condition: cond, Label: label, On: on})
	return nil
}

func (c *compiler) callClause(p *parser, clause runtime.Clause, text string) error {
	switch {
	case p.keyword("ON"):
		return c.trapClause(p, clause, runtime.TrapCall, true)
	case p.keyword("OFF"):
		return c.trapClause(p, clause, runtime.TrapCall, false)
	}
	name, quoted, err := p.name()
	if err != nil {
		return err
	}
	var args []runtime.Expression
	if !p.atEnd() {
		if args, err = p.argumentList(); err != nil {
			return err
		}
		p.track(argumentsDepth(args))
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Call{Clause: clause, Name: name, Args: args, Quoted: quoted})
	return nil
}

func (c *compiler) signalClause(p *parser, clause runtime.Clause, text string) error {
	switch {
	case p.keyword("ON"):
		return c.trapClause(p, clause, runtime.TrapSignal, true)
	case p.keyword("OFF"):
		return c.trapClause(p, clause, runtime.TrapSignal, false)
	case p.keyword("VALUE"):
		e, err := p.expression()
		if err != nil {
			return err
		}
		if err := p.expectEnd(); err != nil {
			return err
		}
		c.add(&runtime.Signal{Clause: clause, Value: e})
		return nil
	}
	label, _, err := p.name()
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Signal{Clause: clause, Label: label})
	return nil
}

// Variable names for DROP and EXPOSE, each name once.
func (c *compiler) nameList(p *parser) ([]runtime.VariableRef, error) {
	refs, err := p.references(false)
	if err != nil {
		return nil, err
	}
	return util.UniqueBy(refs, runtime.VariableRef.Name), nil
}

func (c *compiler) dropClause(p *parser, clause runtime.Clause, text string) error {
	refs, err := c.nameList(p)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return errors.New("DROP needs at least one variable")
	}
	c.add(&runtime.Drop{Clause: clause, Targets: refs})
	return nil
}

func (c *compiler) exposeClause(p *parser, clause runtime.Clause, text string) error {
	refs, err := c.nameList(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Expose{Clause: clause, Names: refs})
	return nil
}

func (c *compiler) procedureClause(p *parser, clause runtime.Clause, text string) error {
	var refs []runtime.VariableRef
	if p.keyword("EXPOSE") {
		var err error
		if refs, err = c.nameList(p); err != nil {
			return err
		}
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Procedure{Clause: clause, Expose: refs})
	return nil
}

func (c *compiler) addressClause(p *parser, clause runtime.Clause, text string) error {
	ins := &runtime.Address{Clause: clause}
	switch {
	case p.atEnd():
	case p.keyword("VALUE"):
		e, err := p.expression()
		if err != nil {
			return err
		}
		ins.Value = e
	default:
		env, _, err := p.name()
		if err != nil {
			return err
		}
		ins.Environment = env
		if ins.Command, err = p.optionalExpression(); err != nil {
			return err
		}
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(ins)
	return nil
}

func (c *compiler) numericClause(p *parser, clause runtime.Clause, text string) error {
	ins := &runtime.Numeric{Clause: clause}
	var err error
	switch kw := p.next().keyword(); kw {
	case "DIGITS":
		ins.Kind = runtime.NumericDigits
		ins.Value, err = p.optionalExpression()
	case "FUZZ":
		ins.Kind = runtime.NumericFuzz
		ins.Value, err = p.optionalExpression()
	case "FORM":
		ins.Kind = runtime.NumericForm
		switch k := p.peek().keyword(); {
		case k == "VALUE":
			p.next()
			ins.Value, err = p.expression()
		case k == "SCIENTIFIC" || k == "ENGINEERING":
			p.next()
			ins.Value = &runtime.Literal{Value: object.String(k)}
		default:
			ins.Value, err = p.optionalExpression()
		}
	default:
		return fmt.Errorf("DIGITS, FUZZ or FORM expected, found %q", kw)
	}
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(ins)
	return nil
}

func (c *compiler) traceClause(p *parser, clause runtime.Clause, text string) error {
	ins := &runtime.Trace{Clause: clause, Value: &runtime.Literal{Value: object.String("N")}}
	switch t := p.peek(); {
	case t.keyword() == "VALUE":
		p.next()
		e, err := p.expression()
		if err != nil {
			return err
		}
		ins.Value = e
	case t.kind == tokSymbol || t.kind == tokString:
		p.next()
		ins.Value = &runtime.Literal{Value: object.String(t.text)}
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(ins)
	return nil
}

func (c *compiler) pullClause(p *parser, clause runtime.Clause, text string) error {
	refs, err := p.references(true)
	if err != nil {
		return err
	}
	c.add(&runtime.Pull{Clause: clause, Targets: refs, Upper: true})
	return nil
}

func (c *compiler) argClause(p *parser, clause runtime.Clause, text string) error {
	refs, err := p.references(true)
	if err != nil {
		return err
	}
	c.add(&runtime.Arg{Clause: clause, Targets: refs, Upper: true})
	return nil
}

// PARSE [UPPER] PULL or ARG followed by a word template.
func (c *compiler) parseClause(p *parser, clause runtime.Clause, text string) error {
	upper := p.keyword("UPPER")
	source := p.next().keyword()
	refs, err := p.references(true)
	if err != nil {
		return err
	}
	switch source {
	case "PULL":
		c.add(&runtime.Pull{Clause: clause, Targets: refs, Upper: upper})
	case "ARG":
		c.add(&runtime.Arg{Clause: clause, Targets: refs, Upper: upper})
	default:
		return fmt.Errorf("PULL or ARG expected after PARSE, found %q", source)
	}
	return nil
}

// USE ARG with comma separated targets; an empty position skips that
// argument.
func (c *compiler) useClause(p *parser, clause runtime.Clause, text string) error {
	if !p.keyword("ARG") {
		return fmt.Errorf("ARG expected after USE, found %v", p.peek())
	}
	targets := []runtime.VariableRef{}
	for !p.atEnd() {
		var target runtime.VariableRef
		if p.peek().kind != tokComma {
			var err error
			if target, err = p.reference(); err != nil {
				return err
			}
		}
		targets = append(targets, target)
		if p.peek().kind == tokComma {
			p.next()
			if p.atEnd() {
				targets = append(targets, nil)
			}
		} else if err := p.expectEnd(); err != nil {
			return err
		}
	}
	c.add(&runtime.UseArg{Clause: clause, Targets: targets})
	return nil
}

func (c *compiler) loopName(p *parser) (string, error) {
	name := ""
	if t := p.peek(); t.kind == tokSymbol {
		p.next()
		name = t.keyword()
	}
	return name, p.expectEnd()
}

func (c *compiler) leaveClause(p *parser, clause runtime.Clause, text string) error {
	name, err := c.loopName(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Leave{Clause: clause, Name: name})
	return nil
}

func (c *compiler) iterateClause(p *parser, clause runtime.Clause, text string) error {
	name, err := c.loopName(p)
	if err != nil {
		return err
	}
	c.add(&runtime.Iterate{Clause: clause, Name: name})
	return nil
}

func (c *compiler) requiresClause(p *parser, clause runtime.Clause, text string) error {
	name, _, err := p.name()
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(&runtime.Requires{Clause: clause, Name: name})
	return nil
}

func (c *compiler) guardClause(p *parser, clause runtime.Clause, text string) error {
	ins := &runtime.Guard{Clause: clause}
	switch {
	case p.keyword("ON"):
		ins.On = true
	case p.keyword("OFF"):
	default:
		return fmt.Errorf("ON or OFF expected after GUARD, found %v", p.peek())
	}
	if p.keyword("WHEN") {
		e, err := p.expression()
		if err != nil {
			return err
		}
		ins.When = e
	}
	if err := p.expectEnd(); err != nil {
		return err
	}
	c.add(ins)
	return nil
}

var raiseOptions = []string{"RC", "DESCRIPTION", "ADDITIONAL", "ARRAY", "RETURN", "EXIT", "PROPAGATE"}

func (c *compiler) raiseClause(p *parser, clause runtime.Clause, text string) error {
	cond, err := conditionName(p)
	if err != nil {
		return err
	}
	ins := &runtime.Raise{Clause: clause, Condition: cond}
	switch cond {
	case runtime.CondSyntax, runtime.CondError, runtime.CondFailure:
		if ins.RC, err = p.optionalExpression(raiseOptions...); err != nil {
			return err
		}
	}
	for !p.atEnd() {
		kw := p.next().keyword()
		switch kw {
		case "RC":
			ins.RC, err = p.expressionUntil(raiseOptions...)
		case "DESCRIPTION":
			ins.Description, err = p.expressionUntil(raiseOptions...)
		case "ADDITIONAL":
			var e runtime.Expression
			if e, err = p.expressionUntil(raiseOptions...); err == nil {
				ins.Additional = []runtime.Expression{e}
			}
		case "ARRAY":
			if ins.Additional, err = p.arguments(); err == nil {
				p.track(argumentsDepth(ins.Additional))
				if ins.Additional == nil {
					ins.Additional = []runtime.Expression{}
				}
			}
		case "RETURN":
			ins.Return = true
			ins.Result, err = p.optionalExpression(raiseOptions...)
		case "EXIT":
			ins.Exit = true
			ins.Result, err = p.optionalExpression(raiseOptions...)
		case "PROPAGATE":
			ins.Propagate = true
		default:
			return fmt.Errorf("unexpected %q in RAISE", kw)
		}
		if err != nil {
			return err
		}
	}
	if ins.Exit && ins.Return {
		return errors.New("RAISE cannot both EXIT and RETURN")
	}
	c.add(ins)
	return nil
}

var forwardOptions = []string{"CONTINUE", "TO", "MESSAGE", "ARRAY"}

func (c *compiler) forwardClause(p *parser, clause runtime.Clause, text string) error {
	ins := &runtime.Forward{Clause: clause}
	for !p.atEnd() {
		var err error
		switch kw := p.next().keyword(); kw {
		case "CONTINUE":
			ins.Continue = true
		case "TO":
			ins.To, err = p.expressionUntil(forwardOptions...)
		case "MESSAGE":
			ins.Message, _, err = p.name()
			ins.Message = strings.ToUpper(ins.Message)
		case "ARRAY":
			ins.HasArgs = true
			if ins.Args, err = p.arguments(); err == nil {
				p.track(argumentsDepth(ins.Args))
			}
		default:
			return fmt.Errorf("unexpected %q in FORWARD", kw)
		}
		if err != nil {
			return err
		}
	}
	c.add(ins)
	return nil
}

// IF cond THEN clause [ELSE clause]. THEN and ELSE may share a line with
// what follows them or start a clause of their own.
func (c *compiler) ifClause(p *parser, clause runtime.Clause, text string) error {
	cond, err := p.expressionUntil("THEN")
	if err != nil {
		return err
	}
	switch {
	case p.keyword("THEN"):
		if rest := p.rest(text); rest != "" {
			c.pushBack(clause.LineNo, rest)
		}
	case p.atEnd() && c.nextIs("THEN"):
		if err := c.splitKeyword("THEN"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("THEN expected, found %v", p.peek())
	}
	test := &runtime.JumpFalse{Clause: clause, Condition: cond}
	c.add(test)
	if c.pos >= len(c.items) {
		return errors.New("THEN has no clause")
	}
	if err := c.compileNext(); err != nil {
		return err
	}
	if !c.nextIs("ELSE") {
		test.Target = c.here()
		return nil
	}
	skip := &runtime.Jump{Clause: clause}
	c.add(skip)
	test.Target = c.here()
	line := c.items[c.pos].line
	if err := c.splitKeyword("ELSE"); err != nil {
		return err
	}
	if c.pos >= len(c.items) {
		return c.errorf(line, "ELSE has no clause")
	}
	if err := c.compileNext(); err != nil {
		return err
	}
	skip.Target = c.here()
	return nil
}

// Consume the next clause's leading keyword, keeping what follows it as a
// clause of its own.
func (c *compiler) splitKeyword(keyword string) error {
	item := c.items[c.pos]
	c.pos++
	tokens, err := tokenize(item.text)
	if err != nil {
		return c.wrap(item.line, err)
	}
	p := newParser(c.code, tokens)
	if !p.keyword(keyword) {
		return c.errorf(item.line, "%s expected", keyword)
	}
	if rest := p.rest(item.text); rest != "" {
		c.pushBack(item.line, rest)
	}
	return nil
}

var doOptions = []string{"TO", "BY", "FOR", "WHILE", "UNTIL"}

// DO [FOREVER | control = from [TO] [BY] [FOR] | count] [WHILE | UNTIL].
// A plain DO only groups clauses and compiles to nothing of its own.
func (c *compiler) doClause(p *parser, clause runtime.Clause, text string) error {
	start := &runtime.DoStart{Clause: clause}
	repetitive := true
	var err error
	switch t := p.peek(); {
	case p.atEnd():
		repetitive = false
	case t.kind == tokSymbol && p.peekAt(1).kind == tokOperator && p.peekAt(1).text == "=":
		if start.Control, err = p.reference(); err != nil {
			return err
		}
		p.next()
		if start.From, err = p.expressionUntil(doOptions...); err != nil {
			return err
		}
		if err := c.loopOptions(p, start); err != nil {
			return err
		}
	case p.keyword("FOREVER"):
	case t.keyword() == "WHILE" || t.keyword() == "UNTIL":
	default:
		if start.For, err = p.expressionUntil("WHILE", "UNTIL"); err != nil {
			return err
		}
	}
	switch {
	case p.keyword("WHILE"):
		start.While, err = p.expression()
	case p.keyword("UNTIL"):
		start.Until, err = p.expression()
	}
	if err != nil {
		return err
	}
	if err := p.expectEnd(); err != nil {
		return err
	}

	if !repetitive {
		_, _, err := c.untilEnd(clause.LineNo)
		return err
	}
	index := c.add(start)
	name, line, err := c.untilEnd(clause.LineNo)
	if err != nil {
		return err
	}
	if name != "" && (start.Control == nil || start.Control.Name() != name) {
		return c.errorf(line, "END %s does not match the DO on line %d", name, clause.LineNo)
	}
	start.End = c.add(&runtime.DoEnd{Clause: runtime.Clause{LineNo: line}, Start: index})
	return nil
}

func (c *compiler) loopOptions(p *parser, start *runtime.DoStart) error {
	seen := []string{}
	for {
		kw := p.peek().keyword()
		if kw != "TO" && kw != "BY" && kw != "FOR" {
			return nil
		}
		if underscore.Contains(seen, kw) {
			return fmt.Errorf("%s given twice in DO", kw)
		}
		seen = append(seen, kw)
		p.next()
		e, err := p.expressionUntil(doOptions...)
		if err != nil {
			return err
		}
		switch kw {
		case "TO":
			start.To = e
		case "BY":
			start.By = e
		case "FOR":
			start.For = e
		}
	}
}

// Compile clauses up to the END closing a DO opened on line, returning the
// name given on END and END's line.
func (c *compiler) untilEnd(line int) (string, int, error) {
	for {
		if c.pos >= len(c.items) {
			return "", 0, c.errorf(line, "DO has no matching END")
		}
		if c.nextIs("END") {
			item := c.items[c.pos]
			c.pos++
			tokens, err := tokenize(item.text)
			if err != nil {
				return "", 0, c.wrap(item.line, err)
			}
			p := newParser(c.code, tokens)
			p.next()
			name, err := c.loopName(p)
			if err != nil {
				return "", 0, c.wrap(item.line, err)
			}
			return name, item.line, nil
		}
		if err := c.compileNext(); err != nil {
			return "", 0, err
		}
	}
}
