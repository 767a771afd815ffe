// Package txtprot implements a schema-driven codec for line-oriented,
// tagged text protocols. A protocol is declared as a set of message
// declarations, each mapping a tag to an ordered list of typed fields.
// Lines are split on a configurable separator; the first token selects the
// declaration, the remaining tokens are converted positionally.
//
// Field values must not contain the separator character. The codec performs
// no escaping; callers guarantee this through their own input validation.
package txtprot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownTag reports a line whose tag has no declaration. Callers
	// decide whether this is fatal; the pipe backend logs and answers FAIL.
	ErrUnknownTag = errors.New("unknown message tag")

	// ErrBadFraming reports a line with a known tag but a wrong field count.
	ErrBadFraming = errors.New("field count mismatch")
)

// Field declares a single positional message field.
type Field struct {
	name   string
	lex    func(string) (any, error)
	format func(any) string
}

// String declares a field holding an uninterpreted string.
func String(name string) Field {
	return Field{
		name:   name,
		lex:    func(s string) (any, error) { return s, nil },
		format: func(v any) string { return fmt.Sprint(v) },
	}
}

// Int declares a field holding a decimal integer.
func Int(name string) Field {
	return Field{
		name: name,
		lex: func(s string) (any, error) {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			return n, nil
		},
		format: func(v any) string { return fmt.Sprint(v) },
	}
}

// Decl declares a message type: a tag and its ordered fields.
type Decl struct {
	tag    string
	fields []Field
}

func Declare(tag string, fields ...Field) Decl {
	return Decl{tag: tag, fields: fields}
}

func (d Decl) Tag() string {
	return d.tag
}

// New constructs a message of this declaration from positional values. The
// value count must match the declaration; a mismatch is a programming
// error and reported to the caller rather than panicking.
func (d Decl) New(values ...any) (Message, error) {
	if len(values) != len(d.fields) {
		return Message{}, fmt.Errorf("%s: %w: declared %d, got %d",
			d.tag, ErrBadFraming, len(d.fields), len(values))
	}
	return Message{decl: d, values: values}, nil
}

// Message is a parsed or constructed instance of a declaration. Field
// values carry the types their converters produced.
type Message struct {
	decl   Decl
	values []any
}

func (m Message) Tag() string {
	return m.decl.tag
}

func (m Message) field(name string) any {
	for i, f := range m.decl.fields {
		if f.name == name {
			return m.values[i]
		}
	}
	return nil
}

// String returns the named string field, or "" if absent.
func (m Message) String(name string) string {
	if s, ok := m.field(name).(string); ok {
		return s
	}
	return ""
}

// Int returns the named integer field, or 0 if absent.
func (m Message) Int(name string) int {
	if n, ok := m.field(name).(int); ok {
		return n
	}
	return 0
}

// Lexer turns wire lines into messages for a fixed set of declarations.
type Lexer struct {
	sep   string
	decls map[string]Decl
}

func NewLexer(sep string, decls ...Decl) *Lexer {
	m := make(map[string]Decl, len(decls))
	for _, d := range decls {
		m[d.tag] = d
	}
	return &Lexer{sep: sep, decls: m}
}

// Lex parses one line. Trailing newline and surrounding whitespace are
// stripped before splitting.
func (l *Lexer) Lex(line string) (Message, error) {
	parts := strings.Split(strings.TrimSpace(line), l.sep)
	tag, raw := parts[0], parts[1:]

	decl, ok := l.decls[tag]
	if !ok {
		return Message{}, fmt.Errorf("%q: %w", tag, ErrUnknownTag)
	}
	if len(raw) != len(decl.fields) {
		return Message{}, fmt.Errorf("%s: %w: declared %d, got %d",
			tag, ErrBadFraming, len(decl.fields), len(raw))
	}

	values := make([]any, len(raw))
	for i, f := range decl.fields {
		v, err := f.lex(raw[i])
		if err != nil {
			return Message{}, fmt.Errorf("%s: %w", tag, err)
		}
		values[i] = v
	}
	return Message{decl: decl, values: values}, nil
}

// Formatter turns messages into wire lines for a fixed set of declarations.
type Formatter struct {
	sep   string
	decls map[string]Decl
}

func NewFormatter(sep string, decls ...Decl) *Formatter {
	m := make(map[string]Decl, len(decls))
	for _, d := range decls {
		m[d.tag] = d
	}
	return &Formatter{sep: sep, decls: m}
}

// Format renders a message into a line without trailing newline.
func (f *Formatter) Format(msg Message) (string, error) {
	decl, ok := f.decls[msg.decl.tag]
	if !ok {
		return "", fmt.Errorf("%q: %w", msg.decl.tag, ErrUnknownTag)
	}
	tokens := make([]string, 0, len(msg.values)+1)
	tokens = append(tokens, decl.tag)
	for i, f := range decl.fields {
		tokens = append(tokens, f.format(msg.values[i]))
	}
	return strings.Join(tokens, f.sep), nil
}
