// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle in page space with the origin at the
// top-left corner. Units are pixels for raster pages and points for PDF
// pages. A Rect marshals as the four-element array [x0, y0, x1, y1].
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Normalize orders the corners so that X0<=X1 and Y0<=Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

// Width returns X1-X0.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns Y1-Y0.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Clamp restricts r to bounds. Clamping a rect already inside bounds
// returns it unchanged.
func (r Rect) Clamp(bounds Rect) Rect {
	r.X0 = math.Min(math.Max(r.X0, bounds.X0), bounds.X1)
	r.X1 = math.Min(math.Max(r.X1, bounds.X0), bounds.X1)
	r.Y0 = math.Min(math.Max(r.Y0, bounds.Y0), bounds.Y1)
	r.Y1 = math.Min(math.Max(r.Y1, bounds.Y0), bounds.Y1)
	return r
}

// Intersects reports whether r and o share any area.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Union returns the smallest rect containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Outward rounds r to whole units, never shrinking it.
func (r Rect) Outward() Rect {
	return Rect{
		X0: math.Floor(r.X0),
		Y0: math.Floor(r.Y0),
		X1: math.Ceil(r.X1),
		Y1: math.Ceil(r.Y1),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", r.X0, r.Y0, r.X1, r.Y1)
}

// MarshalJSON encodes r as [x0, y0, x1, y1].
func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{r.X0, r.Y0, r.X1, r.Y1})
}

// UnmarshalJSON decodes [x0, y0, x1, y1].
func (r *Rect) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: want 4 numbers, got %d", len(v))
	}
	*r = Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	return nil
}

// MarshalYAML encodes r as a flow sequence.
func (r Rect) MarshalYAML() (any, error) {
	return []float64{r.X0, r.Y0, r.X1, r.Y1}, nil
}

// UnmarshalYAML decodes a four-element sequence.
func (r *Rect) UnmarshalYAML(unmarshal func(any) error) error {
	var v []float64
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: want 4 numbers, got %d", len(v))
	}
	*r = Rect{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	return nil
}
