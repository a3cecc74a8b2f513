// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/tabula/core"
)

func TestParseContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Operation
	}{
		{
			name:  "show text with escapes",
			input: `BT /F1 12 Tf (a\(b\)c\101) Tj ET`,
			want: []Operation{
				{Operator: "BT"},
				{Operator: "Tf", Operands: []core.Object{core.Name("F1"), core.Int(12)}},
				{Operator: "Tj", Operands: []core.Object{core.String("a(b)cA")}},
				{Operator: "ET"},
			},
		},
		{
			name:  "quote operators and comments",
			input: "% header\n(x) ' 1 .5 (y) \" T*",
			want: []Operation{
				{Operator: "'", Operands: []core.Object{core.String("x")}},
				{Operator: "\"", Operands: []core.Object{core.Int(1), core.Real(0.5), core.String("y")}},
				{Operator: "T*"},
			},
		},
		{
			name:  "TJ array with hex and nested parens",
			input: "[<4869> -250 (a(b)c)] TJ",
			want: []Operation{
				{Operator: "TJ", Operands: []core.Object{core.Array{core.String("Hi"), core.Int(-250), core.String("a(b)c")}}},
			},
		},
		{
			name:  "dictionary operand and escaped name",
			input: "/OC <</MCID 3 /Alt (x)>> BDC /A#20B gs EMC",
			want: []Operation{
				{Operator: "BDC", Operands: []core.Object{core.Name("OC"), core.Dict{"MCID": core.Int(3), "Alt": core.String("x")}}},
				{Operator: "gs", Operands: []core.Object{core.Name("A B")}},
				{Operator: "EMC"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContent([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseContentInlineImage(t *testing.T) {
	input := "q BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff\nEI Q"
	ops, err := ParseContent([]byte(input))
	require.NoError(t, err)
	require.Len(t, ops, 3)
	require.NotNil(t, ops[1].Inline)
	assert.Equal(t, []byte{0x00, 0xff}, ops[1].Inline.Data)
	assert.Equal(t, core.Int(2), ops[1].Inline.Dict["W"])
	assert.Equal(t, "Q", ops[2].Operator)
}

func TestParseContentErrors(t *testing.T) {
	for _, input := range []string{"(unterminated", "<4G> Tj", "[1 2", "BI /W 1 ID abc"} {
		_, err := ParseContent([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestAppendContentRoundTrip(t *testing.T) {
	input := "q 1 0 0 1 72.5 700 cm BT /F1 12 Tf [(Jane) -120 <00ff>] TJ ET BI /W 1 /H 1 ID \x7f\nEI Q"
	ops, err := ParseContent([]byte(input))
	require.NoError(t, err)

	again, err := ParseContent(AppendContent(nil, ops))
	require.NoError(t, err)
	assert.Equal(t, ops, again)
}

func TestAppendObject(t *testing.T) {
	obj := core.Dict{
		"Type":   core.Name("XObject"),
		"Kids":   core.Array{core.IndirectRef{Number: 4}, core.Null{}},
		"Scale":  core.Real(0.25),
		"Whole":  core.Real(3),
		"Secret": core.String("hi"),
	}
	got := string(AppendObject(nil, obj))
	assert.Equal(t, "<</Kids [4 0 R null] /Scale 0.25 /Secret <6869> /Type /XObject /Whole 3 >>", got)

	st := &core.Stream{Dict: core.Dict{"Length": core.Int(99)}, Data: []byte("abc")}
	assert.Equal(t, "<</Length 3 >>\nstream\nabc\nendstream", string(AppendObject(nil, st)))
}
