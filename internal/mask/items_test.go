// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/pii-masker/pkg/types"
)

func TestItemsFromEntities(t *testing.T) {
	text := "Kim 010-1234-5678\fcall 010-1234-5678 or 010-1234-5678"
	ents := []types.Entity{
		{Text: "010-1234-5678", Type: types.PiiPhone, Score: 0.95, StartChar: 4, EndChar: 17},
		{Text: "010-1234-5678", Type: types.PiiPhone, Score: 0.85, StartChar: 40, EndChar: 53},
		{
			Text: "Kim", Type: types.PiiPersonName, Score: 0.75, StartChar: 0, EndChar: 3,
			Coordinates: []types.Coordinate{
				{PageIndex: 0, BBox: types.Rect{X0: 1, Y0: 2, X1: 3, Y1: 4}, FieldText: "Kim"},
				{PageIndex: 1, BBox: types.Rect{X0: 5, Y0: 6, X1: 7, Y1: 8}, FieldText: "Kim,"},
			},
		},
	}

	got := ItemsFromEntities("scan.pdf", text, ents)
	assert.Len(t, got, 4)

	assert.Equal(t, types.PIIItem{
		Filename: "scan.pdf", Type: types.PiiPhone, Text: "010-1234-5678", PageIndex: 0, InstanceIndex: 0, Score: 0.95,
	}, got[0])
	assert.Equal(t, 1, got[1].PageIndex)
	assert.Equal(t, 1, got[1].InstanceIndex, "second occurrence on the second page")

	assert.Equal(t, &types.Rect{X0: 1, Y0: 2, X1: 3, Y1: 4}, got[2].BBox)
	assert.Equal(t, 1, got[3].PageIndex)
	assert.Equal(t, "Kim,", got[3].FieldText)
}

func TestCountBeforeOverlapping(t *testing.T) {
	assert.Equal(t, 2, countBefore([]rune("aaaa"), []rune("aa"), 2))
	assert.Equal(t, 0, countBefore([]rune("aaaa"), []rune("aa"), 0))
}
