// Package jsontok tokenizes a JSON document into a flat, fixed-capacity token
// table and extracts typed fields from it without building an object graph.
package jsontok

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"
)

// Token capacities per document class.
const (
	MessageCapacity  = 2048
	KeyStoreCapacity = 64
)

// Kind is the lexical class of a token.
type Kind int

const (
	Undefined Kind = iota
	Object
	Array
	String
	Primitive
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case Array:
		return "array"
	case String:
		return "string"
	case Primitive:
		return "primitive"
	default:
		return "undefined"
	}
}

// Token is one lexical unit. Start and End are byte offsets into the source
// document; for strings the span excludes the quotes. Size is the number of
// direct children: pairs for an object, elements for an array, 1 for an object
// key and 0 for any other scalar.
type Token struct {
	Kind  Kind
	Start int
	End   int
	Size  int
}

// Parser fills a reusable token table. A Parser must not be shared between
// goroutines.
type Parser struct {
	capacity int
	tokens   []Token
}

// NewParser returns a parser whose table holds at most capacity tokens.
func NewParser(capacity int) *Parser {
	return &Parser{
		capacity: capacity,
		tokens:   make([]Token, 0, capacity),
	}
}

// Parse tokenizes json into a new table of at most capacity tokens.
func Parse(json []byte, capacity int) (*Doc, error) {
	doc, err := NewParser(capacity).Parse(json)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Parse tokenizes json. The returned Doc shares the parser's table and is
// valid until the next call to Parse.
func (p *Parser) Parse(json []byte) (*Doc, error) {
	p.tokens = p.tokens[:0]
	if !gjson.ValidBytes(json) {
		return nil, fmt.Errorf("%w: invalid or truncated document", ErrSyntax)
	}

	start := 0
	for start < len(json) && isSpace(json[start]) {
		start++
	}
	end := len(bytes.TrimRight(json, " \t\r\n"))
	if start >= end {
		return nil, fmt.Errorf("%w: empty document", ErrSyntax)
	}

	root := gjson.ParseBytes(json)
	root.Raw = string(json[start:end])
	root.Index = start
	if err := p.add(json, root); err != nil {
		return nil, err
	}
	return &Doc{JSON: json, Tokens: p.tokens}, nil
}

func (p *Parser) push(t Token) (int, error) {
	if len(p.tokens) >= p.capacity {
		return 0, fmt.Errorf("%w: more than %d tokens", ErrCapacity, p.capacity)
	}
	p.tokens = append(p.tokens, t)
	return len(p.tokens) - 1, nil
}

// add appends the token for v and, recursively, for its children.
func (p *Parser) add(json []byte, v gjson.Result) error {
	start, end := v.Index, v.Index+len(v.Raw)
	if start < 0 || end > len(json) || start >= end {
		return fmt.Errorf("%w: value span [%d,%d) out of range", ErrSyntax, start, end)
	}

	switch v.Type {
	case gjson.String:
		_, err := p.push(Token{Kind: String, Start: start + 1, End: end - 1})
		return err
	case gjson.JSON:
	default:
		_, err := p.push(Token{Kind: Primitive, Start: start, End: end})
		return err
	}

	kind := Array
	if json[start] == '{' {
		kind = Object
	}
	idx, err := p.push(Token{Kind: kind, Start: start, End: end})
	if err != nil {
		return err
	}

	size := 0
	v.ForEach(func(key, value gjson.Result) bool {
		if kind == Object {
			err = p.addKey(json, key, value)
			if err != nil {
				return false
			}
		}
		if err = p.add(json, value); err != nil {
			return false
		}
		size++
		return true
	})
	if err != nil {
		return err
	}
	p.tokens[idx].Size = size
	return nil
}

// addKey appends the key token preceding value. The key's span is located by
// scanning back from the value over the colon separator.
func (p *Parser) addKey(json []byte, key, value gjson.Result) error {
	i := value.Index - 1
	for i >= 0 && isSpace(json[i]) {
		i--
	}
	if i < 0 || json[i] != ':' {
		return fmt.Errorf("%w: missing ':' before offset %d", ErrSyntax, value.Index)
	}
	i--
	for i >= 0 && isSpace(json[i]) {
		i--
	}
	end := i
	start := end - (len(key.Raw) - 2)
	if len(key.Raw) < 2 || start < 1 || json[end] != '"' || json[start-1] != '"' {
		return fmt.Errorf("%w: malformed key before offset %d", ErrSyntax, value.Index)
	}
	_, err := p.push(Token{Kind: String, Start: start, End: end, Size: 1})
	return err
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
