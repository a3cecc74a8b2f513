// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tsawler/tabula/core"
)

// Operation is one content-stream operator with its operands. Inline
// images (BI ... ID ... EI) are a single Operation with Operator "BI".
type Operation struct {
	Operator string
	Operands []core.Object
	Inline   *InlineImage
}

// InlineImage holds the parameters and raw samples of an inline image.
type InlineImage struct {
	Dict core.Dict
	Data []byte
}

// ParseContent tokenizes a decoded content stream. The parser keeps no
// package state and may be used from multiple goroutines.
func ParseContent(data []byte) ([]Operation, error) {
	l := &contentLexer{data: data}
	var (
		ops      []Operation
		operands []core.Object
	)
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			break
		}
		c := l.data[l.pos]
		if isRegular(c) && !isNumberStart(c) {
			word := l.readWord()
			switch word {
			case "true":
				operands = append(operands, core.Bool(true))
				continue
			case "false":
				operands = append(operands, core.Bool(false))
				continue
			case "null":
				operands = append(operands, core.Null{})
				continue
			case "BI":
				img, err := l.readInlineImage()
				if err != nil {
					return nil, err
				}
				ops = append(ops, Operation{Operator: "BI", Inline: img})
				operands = nil
				continue
			}
			ops = append(ops, Operation{Operator: word, Operands: operands})
			operands = nil
			continue
		}
		obj, err := l.readObject()
		if err != nil {
			return nil, err
		}
		operands = append(operands, obj)
	}
	return ops, nil
}

type contentLexer struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isSpace(c) && !isDelim(c) }

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (l *contentLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *contentLexer) readWord() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *contentLexer) readObject() (core.Object, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("content: unexpected end of stream")
	}
	c := l.data[l.pos]
	switch {
	case isNumberStart(c):
		return l.readNumber()
	case c == '(':
		return l.readLiteral()
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		return l.readDict()
	case c == '<':
		return l.readHex()
	case c == '/':
		return l.readName(), nil
	case c == '[':
		return l.readArray()
	case isRegular(c):
		switch w := l.readWord(); w {
		case "true":
			return core.Bool(true), nil
		case "false":
			return core.Bool(false), nil
		case "null":
			return core.Null{}, nil
		default:
			return nil, fmt.Errorf("content: unexpected keyword %q inside operand at %d", w, l.pos)
		}
	}
	return nil, fmt.Errorf("content: unexpected byte %q at %d", c, l.pos)
}

func (l *contentLexer) readNumber() (core.Object, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			l.pos++
			continue
		}
		break
	}
	tok := string(l.data[start:l.pos])
	if !strings.Contains(tok, ".") {
		if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return core.Int(v), nil
		}
	}
	if tok == "-" || tok == "+" || tok == "." {
		return core.Int(0), nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("content: bad number %q at %d", tok, start)
	}
	return core.Real(v), nil
}

func (l *contentLexer) readLiteral() (core.Object, error) {
	start := l.pos
	l.pos++ // (
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return core.String(out), nil
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("content: unterminated string at %d", start)
			}
			e := l.data[l.pos]
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
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos < len(l.data); k++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return nil, fmt.Errorf("content: unterminated string at %d", start)
}

func (l *contentLexer) readHex() (core.Object, error) {
	start := l.pos
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				out[i] = hexNibble(digits[2*i])<<4 | hexNibble(digits[2*i+1])
			}
			return core.String(out), nil
		}
		if isSpace(c) {
			continue
		}
		if !isHex(c) {
			return nil, fmt.Errorf("content: bad hex digit %q at %d", c, l.pos-1)
		}
		digits = append(digits, c)
	}
	return nil, fmt.Errorf("content: unterminated hex string at %d", start)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func (l *contentLexer) readName() core.Name {
	l.pos++ // /
	var out []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) && isHex(l.data[l.pos+1]) && isHex(l.data[l.pos+2]) {
			out = append(out, hexNibble(l.data[l.pos+1])<<4|hexNibble(l.data[l.pos+2]))
			l.pos += 3
			continue
		}
		out = append(out, c)
		l.pos++
	}
	return core.Name(out)
}

func (l *contentLexer) readArray() (core.Object, error) {
	l.pos++ // [
	var arr core.Array
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("content: unterminated array")
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		obj, err := l.readObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (l *contentLexer) readDict() (core.Object, error) {
	l.pos += 2 // <<
	d := core.Dict{}
	for {
		l.skipSpace()
		if l.pos+1 < len(l.data) && l.data[l.pos] == '>' && l.data[l.pos+1] == '>' {
			l.pos += 2
			return d, nil
		}
		if l.pos >= len(l.data) || l.data[l.pos] != '/' {
			return nil, fmt.Errorf("content: dictionary key expected at %d", l.pos)
		}
		key := l.readName()
		val, err := l.readObject()
		if err != nil {
			return nil, err
		}
		d[string(key)] = val
	}
}

// readInlineImage reads the key/value pairs after BI, the ID keyword and
// the raw samples up to EI.
func (l *contentLexer) readInlineImage() (*InlineImage, error) {
	d := core.Dict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("content: unterminated inline image")
		}
		if l.data[l.pos] != '/' {
			w := l.readWord()
			if w != "ID" {
				return nil, fmt.Errorf("content: unexpected %q in inline image header", w)
			}
			break
		}
		key := l.readName()
		val, err := l.readObject()
		if err != nil {
			return nil, err
		}
		d[string(key)] = val
	}
	if l.pos < len(l.data) && isSpace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	for i := start; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if i > start && !isSpace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isSpace(l.data[i+2]) {
			continue
		}
		end := i
		if end > start && isSpace(l.data[end-1]) {
			end--
		}
		l.pos = i + 2
		return &InlineImage{Dict: d, Data: append([]byte(nil), l.data[start:end]...)}, nil
	}
	return nil, fmt.Errorf("content: inline image without EI")
}
