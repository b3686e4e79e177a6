package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Kind identifies the type of an operand.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindName
	KindArray
	KindDict
	KindBool
	KindNull
)

// Operand is a single operand of a content stream operation.
type Operand struct {
	Kind   Kind
	Number float64
	Bytes  []byte    // decoded string bytes
	Name   string    // name without the leading slash, or bool keyword
	Elems  []Operand // array elements, or alternating key/value for dicts
	Raw    []byte    // source text of the operand
}

// Operation is an operator with its operands and its byte span in the source stream.
type Operation struct {
	Operator string
	Operands []Operand
	Start    int
	End      int
}

var errUnterminated = errors.New("unterminated token")

// Parse splits a decoded content stream into operations. Inline images (BI ... ID ... EI)
// are kept as a single opaque "BI" operation so their binary payload is never interpreted.
func Parse(content []byte) ([]Operation, error) {
	l := &lexer{src: content}
	var (
		ops     []Operation
		pending []Operand
		start   = -1
	)

	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			break
		}

		tokStart := l.pos
		operand, isOperand, err := l.operand()
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", tokStart, err)
		}
		if isOperand {
			if start < 0 {
				start = tokStart
			}
			pending = append(pending, operand)
			continue
		}

		keyword := l.keyword()
		if keyword == "" {
			// stray delimiter such as ')' or '}'
			l.pos++
			continue
		}
		if start < 0 {
			start = tokStart
		}
		if keyword == "BI" {
			if err := l.skipInlineImage(); err != nil {
				return nil, fmt.Errorf("offset %d: inline image: %w", tokStart, err)
			}
		}

		ops = append(ops, Operation{
			Operator: keyword,
			Operands: pending,
			Start:    start,
			End:      l.pos,
		})
		pending = nil
		start = -1
	}

	return ops, nil
}

type lexer struct {
	src []byte
	pos int
}

func isWhite(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isWhite(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// operand reads the next operand. It reports false, without consuming input,
// when the next token is an operator keyword.
func (l *lexer) operand() (Operand, bool, error) {
	start := l.pos
	c := l.src[l.pos]

	var (
		op  Operand
		err error
	)
	switch {
	case c == '/':
		op = Operand{Kind: KindName, Name: l.name()}
	case c == '(':
		var s []byte
		s, err = l.literalString()
		op = Operand{Kind: KindString, Bytes: s}
	case c == '<' && l.peek(1) == '<':
		op, err = l.dict()
	case c == '<':
		var s []byte
		s, err = l.hexString()
		op = Operand{Kind: KindString, Bytes: s}
	case c == '[':
		op, err = l.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		op = Operand{Kind: KindNumber, Number: l.number()}
	default:
		word := l.peekKeyword()
		switch word {
		case "true", "false":
			l.pos += len(word)
			op = Operand{Kind: KindBool, Name: word}
		case "null":
			l.pos += len(word)
			op = Operand{Kind: KindNull}
		default:
			return Operand{}, false, nil
		}
	}
	if err != nil {
		return Operand{}, false, err
	}

	op.Raw = l.src[start:l.pos]
	return op, true, nil
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) peekKeyword() string {
	end := l.pos
	for end < len(l.src) && !isWhite(l.src[end]) && !isDelim(l.src[end]) {
		end++
	}
	return string(l.src[l.pos:end])
}

func (l *lexer) keyword() string {
	word := l.peekKeyword()
	l.pos += len(word)
	return word
}

func (l *lexer) number() float64 {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			l.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(string(l.src[start:l.pos]), 64)
	if err != nil {
		// malformed numbers such as "--1" are read as zero, like most viewers do
		return 0
	}
	return v
}

func (l *lexer) name() string {
	l.pos++ // '/'
	var b bytes.Buffer
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isWhite(c) || isDelim(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.src) {
			if v, err := strconv.ParseUint(string(l.src[l.pos+1:l.pos+3]), 16, 8); err == nil {
				b.WriteByte(byte(v))
				l.pos += 3
				continue
			}
		}
		b.WriteByte(c)
		l.pos++
	}
	return b.String()
}

func (l *lexer) literalString() ([]byte, error) {
	l.pos++ // '('
	depth := 1
	var out []byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.src) {
				return nil, errUnterminated
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.src); i++ {
					d := l.src[l.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					l.pos++
				}
				out = append(out, byte(v))
			default:
				out = append(out, e)
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return nil, errUnterminated
}

func (l *lexer) hexString() ([]byte, error) {
	l.pos++ // '<'
	var digits []byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				v, err := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
				if err != nil {
					return nil, fmt.Errorf("bad hex string: %w", err)
				}
				out[i] = byte(v)
			}
			return out, nil
		}
		if isWhite(c) {
			continue
		}
		digits = append(digits, c)
	}
	return nil, errUnterminated
}

func (l *lexer) array() (Operand, error) {
	l.pos++ // '['
	arr := Operand{Kind: KindArray}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return Operand{}, errUnterminated
		}
		if l.src[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		elem, ok, err := l.operand()
		if err != nil {
			return Operand{}, err
		}
		if !ok {
			return Operand{}, fmt.Errorf("unexpected keyword %q in array", l.peekKeyword())
		}
		arr.Elems = append(arr.Elems, elem)
	}
}

func (l *lexer) dict() (Operand, error) {
	l.pos += 2 // '<<'
	d := Operand{Kind: KindDict}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return Operand{}, errUnterminated
		}
		if l.src[l.pos] == '>' && l.peek(1) == '>' {
			l.pos += 2
			return d, nil
		}
		elem, ok, err := l.operand()
		if err != nil {
			return Operand{}, err
		}
		if !ok {
			return Operand{}, fmt.Errorf("unexpected keyword %q in dictionary", l.peekKeyword())
		}
		d.Elems = append(d.Elems, elem)
	}
}

// skipInlineImage advances past the image dictionary, the ID keyword and the binary data up to EI.
func (l *lexer) skipInlineImage() error {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return errUnterminated
		}
		if _, ok, err := l.operand(); err != nil {
			return err
		} else if ok {
			continue
		}
		if l.keyword() == "ID" {
			break
		}
	}
	// a single white-space byte separates ID from the data
	l.pos++
	for i := l.pos; i+1 < len(l.src); i++ {
		if l.src[i] != 'E' || l.src[i+1] != 'I' {
			continue
		}
		before := i == 0 || isWhite(l.src[i-1])
		after := i+2 >= len(l.src) || isWhite(l.src[i+2])
		if before && after {
			l.pos = i + 2
			return nil
		}
	}
	return errUnterminated
}
