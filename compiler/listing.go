package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glossopoeia/rexxcore/runtime"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// A program listing as read from YAML. The program body is either free-form
// source text or a sequence of clauses, where each clause is a string of
// free-form text or a single-key mapping naming the instruction:
//
//	name: greet
//	clauses:
//	  - say: "'hello' name"
//	  - call: [greet, "'world'"]
//	  - do:
//	      control: i
//	      from: "1"
//	      to: "3"
//	      body:
//	        - say: i
//	  - exit
//	routines:
//	  greet:
//	    - use arg who
//	    - return 'hi' who
//
// Scalar values are source text, so string literals need their own quotes
// inside the YAML string.
type Listing struct {
	Name     string               `yaml:"name"`
	Source   string               `yaml:"source"`
	Clauses  yaml.Node            `yaml:"clauses"`
	Routines map[string]yaml.Node `yaml:"routines"`
}

type doListing struct {
	Control string    `yaml:"control"`
	From    string    `yaml:"from"`
	To      string    `yaml:"to"`
	By      string    `yaml:"by"`
	For     string    `yaml:"for"`
	While   string    `yaml:"while"`
	Until   string    `yaml:"until"`
	Forever bool      `yaml:"forever"`
	Body    yaml.Node `yaml:"body"`
}

type ifListing struct {
	Cond string    `yaml:"cond"`
	Then yaml.Node `yaml:"then"`
	Else yaml.Node `yaml:"else"`
}

type assignListing struct {
	Target string `yaml:"target"`
	Value  string `yaml:"value"`
}

type callListing struct {
	Name   string   `yaml:"name"`
	Args   []string `yaml:"args"`
	Quoted bool     `yaml:"quoted"`
}

// Parse a YAML listing.
func ParseListing(data []byte) (*Listing, error) {
	listing := &Listing{}
	if err := yaml.Unmarshal(data, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Compile a listing and its routines. name is used when the listing does not
// name itself; lines becomes the code's source text for tracing.
func CompileListing(listing *Listing, name string, lines []string) (*runtime.Code, error) {
	if listing.Name != "" {
		name = listing.Name
	}
	code, err := compileBody(name, listing.Source, &listing.Clauses, lines)
	if err != nil {
		return nil, err
	}
	routines := maps.Keys(listing.Routines)
	slices.Sort(routines)
	for _, routine := range routines {
		body := listing.Routines[routine]
		compiled, err := compileBody(strings.ToUpper(routine), "", &body, lines)
		if err != nil {
			return nil, err
		}
		// routines see each other as the program does
		compiled.Routines = code.Routines
		code.AddRoutine(routine, compiled)
	}
	return code, nil
}

func compileBody(name string, source string, clauses *yaml.Node, lines []string) (*runtime.Code, error) {
	c := newCompiler(name)
	c.code.Source = lines
	var items []clauseItem
	var err error
	switch {
	case source != "" && clauses.Kind != 0:
		return nil, fmt.Errorf("%s: a listing gives either source or clauses, not both", name)
	case source != "":
		parsed, err := splitClauses(source, 1)
		if err != nil {
			return nil, &SyntaxError{Program: name, Err: err}
		}
		items = textItems(parsed)
	default:
		if items, err = c.nodeItems(clauses); err != nil {
			return nil, err
		}
	}
	if err := c.compileItems(items); err != nil {
		return nil, err
	}
	return c.code, nil
}

// Compile free-form source text, as INTERPRET and plain program files give.
func CompileSource(name string, source string) (*runtime.Code, error) {
	c := newCompiler(name)
	c.code.Source = strings.Split(source, "\n")
	clauses, err := splitClauses(source, 1)
	if err != nil {
		return nil, &SyntaxError{Program: name, Err: err}
	}
	if err := c.compileItems(textItems(clauses)); err != nil {
		return nil, err
	}
	return c.code, nil
}

// The clause items of a listing sequence. A missing node is an empty body.
func (c *compiler) nodeItems(node *yaml.Node) ([]clauseItem, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return c.scalarItems(node)
	case yaml.SequenceNode:
	default:
		return nil, c.errorf(node.Line, "clauses must be a sequence")
	}
	items := []clauseItem{}
	for _, child := range node.Content {
		switch child.Kind {
		case yaml.ScalarNode:
			more, err := c.scalarItems(child)
			if err != nil {
				return nil, err
			}
			items = append(items, more...)
		case yaml.MappingNode:
			items = append(items, clauseItem{line: child.Line, node: child})
		default:
			return nil, c.errorf(child.Line, "a clause is a string or a single-key mapping")
		}
	}
	return items, nil
}

// Block scalars start on the line after their indicator.
func (c *compiler) scalarItems(node *yaml.Node) ([]clauseItem, error) {
	first := node.Line
	if node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		first++
	}
	clauses, err := splitClauses(node.Value, first)
	if err != nil {
		return nil, c.wrap(node.Line, err)
	}
	return textItems(clauses), nil
}

// Compile a single-key mapping clause. Scalar and sequence values read as
// the free-form clause "KEY value"; do, if, assign and call also take a
// mapping of their parts.
func (c *compiler) structured(item clauseItem) error {
	node := item.node
	if len(node.Content) != 2 {
		return c.errorf(item.line, "a clause mapping must have exactly one key")
	}
	key := strings.ToLower(node.Content[0].Value)
	value := node.Content[1]
	switch value.Kind {
	case yaml.ScalarNode:
		text := value.Value
		if value.Tag == "!!null" {
			text = ""
		}
		return c.compileText(item.line, keyedText(key, text))
	case yaml.SequenceNode:
		words := []string{}
		for _, word := range value.Content {
			if word.Kind != yaml.ScalarNode {
				return c.errorf(word.Line, "%s takes a list of strings", key)
			}
			words = append(words, word.Value)
		}
		if key == "call" && len(words) > 0 {
			return c.compileText(item.line, "call "+words[0]+" "+strings.Join(words[1:], ", "))
		}
		return c.compileText(item.line, keyedText(key, strings.Join(words, " ")))
	case yaml.MappingNode:
	default:
		return c.errorf(item.line, "unsupported %s clause", key)
	}

	var err error
	switch key {
	case "do":
		var do doListing
		if err = value.Decode(&do); err == nil {
			err = c.structuredDo(item.line, &do)
		}
	case "if":
		var cond ifListing
		if err = value.Decode(&cond); err == nil {
			err = c.structuredIf(item.line, &cond)
		}
	case "assign":
		var assign assignListing
		if err = value.Decode(&assign); err == nil {
			err = c.compileText(item.line, assign.Target+" = "+assign.Value)
		}
	case "call":
		var call callListing
		if err = value.Decode(&call); err == nil {
			err = c.structuredCall(item.line, &call)
		}
	default:
		return c.errorf(item.line, "%s does not take a mapping", key)
	}
	if err != nil {
		return c.wrap(item.line, err)
	}
	return nil
}

func keyedText(key string, text string) string {
	switch key {
	case "label":
		return text + ":"
	case "assign", "command":
		return text
	}
	return strings.TrimSpace(key + " " + text)
}

// Compile one free-form clause at the current position.
func (c *compiler) compileText(line int, text string) error {
	if err := c.freeForm(clauseItem{line: line, text: text}); err != nil {
		return c.wrap(line, err)
	}
	return nil
}

func (c *compiler) parseExpression(text string) (runtime.Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := newParser(c.code, tokens)
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	return e, p.expectEnd()
}

func (c *compiler) structuredDo(line int, do *doListing) error {
	start := &runtime.DoStart{Clause: runtime.Clause{LineNo: line}}
	var err error
	if do.Control != "" {
		tokens, err := tokenize(do.Control)
		if err != nil {
			return err
		}
		p := newParser(c.code, tokens)
		if start.Control, err = p.reference(); err != nil {
			return err
		}
		if err := p.expectEnd(); err != nil {
			return err
		}
		if do.From == "" {
			return errors.New("a controlled loop needs from")
		}
	} else if do.From != "" || do.To != "" || do.By != "" {
		return errors.New("from, to and by need a control variable")
	}
	if do.While != "" && do.Until != "" {
		return errors.New("a loop takes either while or until")
	}
	parts := []struct {
		text   string
		target *runtime.Expression
	}{
		{do.From, &start.From},
		{do.To, &start.To},
		{do.By, &start.By},
		{do.For, &start.For},
		{do.While, &start.While},
		{do.Until, &start.Until},
	}
	for _, part := range parts {
		if *part.target, err = c.parseExpression(part.text); err != nil {
			return err
		}
	}

	items, err := c.nodeItems(&do.Body)
	if err != nil {
		return err
	}
	repetitive := do.Forever || start.Control != nil || start.For != nil || start.While != nil || start.Until != nil
	if !repetitive {
		return c.compileItems(items)
	}
	index := c.add(start)
	if err := c.compileItems(items); err != nil {
		return err
	}
	start.End = c.add(&runtime.DoEnd{Clause: runtime.Clause{LineNo: line}, Start: index})
	return nil
}

func (c *compiler) structuredIf(line int, cond *ifListing) error {
	test, err := c.parseExpression(cond.Cond)
	if err != nil {
		return err
	}
	if test == nil {
		return errors.New("if needs cond")
	}
	then, err := c.nodeItems(&cond.Then)
	if err != nil {
		return err
	}
	otherwise, err := c.nodeItems(&cond.Else)
	if err != nil {
		return err
	}
	clause := runtime.Clause{LineNo: line}
	jump := &runtime.JumpFalse{Clause: clause, Condition: test}
	c.add(jump)
	if err := c.compileItems(then); err != nil {
		return err
	}
	if len(otherwise) == 0 {
		jump.Target = c.here()
		return nil
	}
	skip := &runtime.Jump{Clause: clause}
	c.add(skip)
	jump.Target = c.here()
	if err := c.compileItems(otherwise); err != nil {
		return err
	}
	skip.Target = c.here()
	return nil
}

func (c *compiler) structuredCall(line int, call *callListing) error {
	if call.Name == "" {
		return errors.New("call needs name")
	}
	args := make([]runtime.Expression, len(call.Args))
	for i, text := range call.Args {
		arg, err := c.parseExpression(text)
		if err != nil {
			return err
		}
		args[i] = arg
	}
	c.code.MaxStack = max(c.code.MaxStack, argumentsDepth(args))
	name := call.Name
	if !call.Quoted {
		name = strings.ToUpper(name)
	}
	c.add(&runtime.Call{Clause: runtime.Clause{LineNo: line}, Name: name, Args: args, Quoted: call.Quoted})
	return nil
}
