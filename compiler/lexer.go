package compiler

import (
	"encoding/hex"
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEnd tokenKind = iota
	tokSymbol
	tokString
	tokOperator
	tokLeft
	tokRight
	tokComma
	tokTwiddle
	tokColon
)

func (k tokenKind) String() string {
	switch k {
	case tokEnd:
		return "end of clause"
	case tokSymbol:
		return "symbol"
	case tokString:
		return "string"
	case tokOperator:
		return "operator"
	case tokLeft:
		return "("
	case tokRight:
		return ")"
	case tokComma:
		return ","
	case tokTwiddle:
		return "~"
	case tokColon:
		return ":"
	default:
		panic("Invalid token kind encountered.")
	}
}

// One lexical token of a clause. Spaced records whether blanks came before
// it, which decides between blank and abuttal concatenation.
type token struct {
	kind   tokenKind
	text   string
	spaced bool
	pos    int
}

func (t token) String() string {
	if t.kind == tokEnd {
		return t.kind.String()
	}
	return fmt.Sprintf("%q", t.text)
}

// Upper case symbol text, or "" for anything that is not a symbol.
func (t token) keyword() string {
	if t.kind != tokSymbol {
		return ""
	}
	return strings.ToUpper(t.text)
}

// Longest spellings first.
var operators = []string{
	"\\==", ">>=", "<<=",
	"**", "||", "//", "\\=", "==", ">=", "<=", "<>", "><", ">>", "<<", "&&", "\\>", "\\<",
	"=", ">", "<", "+", "-", "*", "/", "%", "&", "|", "\\",
}

func isSymbolChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '.' || c == '!' || c == '?' || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// Split one clause into tokens. The final token is always tokEnd.
func tokenize(text string) ([]token, error) {
	tokens := []token{}
	spaced := false
	for i := 0; i < len(text); {
		c := text[i]
		if isBlank(c) {
			spaced = true
			i++
			continue
		}
		start := i
		switch {
		case c == '\'' || c == '"':
			value, end, err := scanString(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tokString, value, spaced, start})
			i = end
		case isSymbolChar(c):
			for i < len(text) && isSymbolChar(text[i]) {
				i++
			}
			// exponent sign of a number such as 1E+3
			if isDigit(c) || c == '.' {
				last := text[i-1]
				if (last == 'e' || last == 'E') && i+1 < len(text) &&
					(text[i] == '+' || text[i] == '-') && isDigit(text[i+1]) {
					i++
					for i < len(text) && isDigit(text[i]) {
						i++
					}
				}
			}
			tokens = append(tokens, token{tokSymbol, text[start:i], spaced, start})
		case c == '(':
			tokens = append(tokens, token{tokLeft, "(", spaced, start})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRight, ")", spaced, start})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", spaced, start})
			i++
		case c == '~':
			tokens = append(tokens, token{tokTwiddle, "~", spaced, start})
			i++
		case c == ':':
			tokens = append(tokens, token{tokColon, ":", spaced, start})
			i++
		default:
			op := ""
			for _, candidate := range operators {
				if strings.HasPrefix(text[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("invalid character %q at position %d", c, i+1)
			}
			tokens = append(tokens, token{tokOperator, op, spaced, start})
			i += len(op)
		}
		spaced = false
	}
	return append(tokens, token{tokEnd, "", spaced, len(text)}), nil
}

// Scan a quoted string starting at text[start]. A doubled quote stands for
// itself and an X directly after the closing quote makes a hex string.
func scanString(text string, start int) (string, int, error) {
	quote := text[start]
	var b strings.Builder
	i := start + 1
	for {
		if i >= len(text) {
			return "", 0, fmt.Errorf("unmatched quote at position %d", start+1)
		}
		if text[i] == quote {
			if i+1 < len(text) && text[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			i++
			break
		}
		b.WriteByte(text[i])
		i++
	}
	if i < len(text) && (text[i] == 'x' || text[i] == 'X') && (i+1 >= len(text) || !isSymbolChar(text[i+1])) {
		decoded, err := hex.DecodeString(strings.Join(strings.Fields(b.String()), ""))
		if err != nil {
			return "", 0, fmt.Errorf("invalid hexadecimal string at position %d", start+1)
		}
		return string(decoded), i + 1, nil
	}
	return b.String(), i, nil
}

// A clause of source text and the line it starts on.
type sourceClause struct {
	line int
	text string
}

// Split source text into clauses at semicolons and line ends, dropping
// comments and empty clauses. A trailing comma continues a clause on the
// next line.
func splitClauses(source string, firstLine int) ([]sourceClause, error) {
	clauses := []sourceClause{}
	var b strings.Builder
	line, clauseLine := firstLine, firstLine
	flush := func() {
		text := strings.TrimSpace(b.String())
		if text != "" {
			clauses = append(clauses, sourceClause{clauseLine, text})
		}
		b.Reset()
		clauseLine = line
	}

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(source[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("line %d: unmatched quote", line)
			}
			if b.Len() == 0 {
				clauseLine = line
			}
			b.WriteString(source[i : i+end+2])
			i += end + 1
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			end := strings.Index(source[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unterminated comment", line)
			}
			comment := source[i : i+end+4]
			line += strings.Count(comment, "\n")
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			i += len(comment) - 1
		case c == ';':
			flush()
		case c == '\n':
			line++
			if strings.HasSuffix(strings.TrimRight(b.String(), " \t\r"), ",") {
				text := strings.TrimRight(b.String(), " \t\r")
				b.Reset()
				b.WriteString(text[:len(text)-1])
				b.WriteByte(' ')
				continue
			}
			flush()
		default:
			if b.Len() == 0 && isBlank(c) {
				continue
			}
			if b.Len() == 0 {
				clauseLine = line
			}
			b.WriteByte(c)
		}
	}
	flush()
	return clauses, nil
}
