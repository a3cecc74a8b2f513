// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"math"
	"sort"
	"strconv"

	"github.com/tsawler/tabula/core"
)

// AppendObject appends the PDF syntax for obj to b. Strings are written
// in hex form so that arbitrary bytes survive. Dictionary keys are sorted
// so output is deterministic. A stream is written with its dictionary,
// its Length set to the raw data size.
func AppendObject(b []byte, obj core.Object) []byte {
	switch v := obj.(type) {
	case nil, core.Null:
		return append(b, "null"...)
	case core.Bool:
		if v {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case core.Int:
		return strconv.AppendInt(b, int64(v), 10)
	case core.Real:
		return AppendReal(b, float64(v))
	case core.String:
		b = append(b, '<')
		for i := 0; i < len(v); i++ {
			b = append(b, hexDigits[v[i]>>4], hexDigits[v[i]&0x0f])
		}
		return append(b, '>')
	case core.Name:
		return appendName(b, string(v))
	case core.Array:
		b = append(b, '[')
		for i, e := range v {
			if i > 0 {
				b = append(b, ' ')
			}
			b = AppendObject(b, e)
		}
		return append(b, ']')
	case core.Dict:
		return appendDict(b, v, nil)
	case core.IndirectRef:
		b = strconv.AppendInt(b, int64(v.Number), 10)
		b = append(b, ' ')
		b = strconv.AppendInt(b, int64(v.Generation), 10)
		return append(b, " R"...)
	case *core.Stream:
		b = appendDict(b, v.Dict, core.Int(len(v.Data)))
		b = append(b, "\nstream\n"...)
		b = append(b, v.Data...)
		return append(b, "\nendstream"...)
	}
	return append(b, "null"...)
}

const hexDigits = "0123456789ABCDEF"

// AppendReal formats a number without exponent notation.
func AppendReal(b []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(b, '0')
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(b, int64(f), 10)
	}
	return strconv.AppendFloat(b, f, 'f', -1, 64)
}

func appendName(b []byte, name string) []byte {
	b = append(b, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelim(c) {
			b = append(b, '#', hexDigits[c>>4], hexDigits[c&0x0f])
			continue
		}
		b = append(b, c)
	}
	return b
}

// appendDict writes d; a non-nil length overrides the Length entry.
func appendDict(b []byte, d core.Dict, length core.Object) []byte {
	keys := make([]string, 0, len(d)+1)
	for k := range d {
		if length != nil && k == "Length" {
			continue
		}
		keys = append(keys, k)
	}
	if length != nil {
		keys = append(keys, "Length")
	}
	sort.Strings(keys)
	b = append(b, "<<"...)
	for _, k := range keys {
		b = appendName(b, k)
		b = append(b, ' ')
		if length != nil && k == "Length" {
			b = AppendObject(b, length)
		} else {
			b = AppendObject(b, d[k])
		}
		b = append(b, ' ')
	}
	return append(b, ">>"...)
}

// AppendContent serializes operations back into content-stream syntax.
func AppendContent(b []byte, ops []Operation) []byte {
	for _, op := range ops {
		if op.Inline != nil {
			b = append(b, "BI"...)
			keys := make([]string, 0, len(op.Inline.Dict))
			for k := range op.Inline.Dict {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b = append(b, ' ')
				b = appendName(b, k)
				b = append(b, ' ')
				b = AppendObject(b, op.Inline.Dict[k])
			}
			b = append(b, " ID "...)
			b = append(b, op.Inline.Data...)
			b = append(b, "\nEI\n"...)
			continue
		}
		for _, o := range op.Operands {
			b = AppendObject(b, o)
			b = append(b, ' ')
		}
		b = append(b, op.Operator...)
		b = append(b, '\n')
	}
	return b
}
