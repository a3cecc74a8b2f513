// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import (
	"strings"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// maxTokenSpan bounds how many consecutive OCR words one match may cover.
const maxTokenSpan = 4

// coordinates returns one coordinate per run of consecutive tokens on a
// page whose space-joined text contains text. Runs are minimal: dropping
// the first token would lose the match.
func coordinates(text string, tokens []types.OCRToken) []types.Coordinate {
	want := normalize(text)
	if want == "" {
		return nil
	}
	var out []types.Coordinate
	for i := range tokens {
		first := normalize(tokens[i].Text)
		joined := first
		box := tokens[i].BBox.Normalize()
		for j := i; j < len(tokens) && j < i+maxTokenSpan; j++ {
			if j > i {
				if tokens[j].PageIndex != tokens[i].PageIndex {
					break
				}
				joined += " " + normalize(tokens[j].Text)
				box = box.Union(tokens[j].BBox.Normalize())
			}
			if !strings.Contains(joined, want) {
				continue
			}
			if j == i || !strings.Contains(strings.TrimPrefix(joined, first+" "), want) {
				out = append(out, types.Coordinate{PageIndex: tokens[i].PageIndex, BBox: box, FieldText: joinRaw(tokens[i : j+1])})
			}
			break
		}
	}
	return out
}

func joinRaw(tokens []types.OCRToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}
