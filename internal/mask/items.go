// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mask

import (
	"github.com/pdiddy/pii-masker/pkg/types"
)

// ItemsFromEntities turns recognizer output for one file into masking
// items. text is the extracted text the entities were found in, with
// pages separated by form feeds. Entities carrying OCR coordinates yield
// one boxed item per coordinate; the rest are addressed by page and by
// which occurrence of their text on that page they are.
func ItemsFromEntities(filename, text string, ents []types.Entity) []types.PIIItem {
	runes := []rune(text)
	var out []types.PIIItem
	for _, e := range ents {
		if len(e.Coordinates) > 0 {
			for _, c := range e.Coordinates {
				box := c.BBox
				out = append(out, types.PIIItem{
					Filename:  filename,
					Type:      e.Type,
					Text:      e.Text,
					PageIndex: c.PageIndex,
					BBox:      &box,
					FieldText: c.FieldText,
					Score:     e.Score,
				})
			}
			continue
		}
		page, start := pageOf(runes, e.StartChar)
		out = append(out, types.PIIItem{
			Filename:      filename,
			Type:          e.Type,
			Text:          e.Text,
			PageIndex:     page,
			InstanceIndex: countBefore(runes[start:], []rune(e.Text), e.StartChar-start),
			Score:         e.Score,
		})
	}
	return out
}

// pageOf returns the page holding rune offset off and the offset at which
// that page starts.
func pageOf(runes []rune, off int) (page, start int) {
	for i := 0; i < off && i < len(runes); i++ {
		if runes[i] == '\f' {
			page++
			start = i + 1
		}
	}
	return page, start
}

// countBefore counts occurrences of needle in page, overlapping ones
// included, that start before off.
func countBefore(page, needle []rune, off int) int {
	n := 0
	for i := 0; i < off && i+len(needle) <= len(page); i++ {
		match := true
		for j, r := range needle {
			if page[i+j] != r {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}
