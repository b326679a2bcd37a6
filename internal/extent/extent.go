// Package extent computes the axis-aligned bounding rectangle of the
// coordinates found in a GeoJSON-like FeatureCollection.
//
// The reducer is tolerant: it never returns an error. Missing or malformed
// fields at any depth contribute zero coordinates, and a document without a
// single usable coordinate reports "no extent" through the boolean result.
package extent

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// Extent is a rectangle (MinX, MinY, MaxX, MaxY) in longitude/latitude.
// A zero-area extent (MinX == MaxX, MinY == MaxY) is valid.
type Extent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// At returns the zero-area extent of a single coordinate.
func At(x, y float64) Extent {
	return Extent{MinX: x, MinY: y, MaxX: x, MaxY: y}
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) Extent {
	return Extent{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// Bound converts the extent to an orb.Bound.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.MinX, e.MinY},
		Max: orb.Point{e.MaxX, e.MaxY},
	}
}

// Extend grows the extent to include (x, y).
func (e Extent) Extend(x, y float64) Extent {
	if x < e.MinX {
		e.MinX = x
	}
	if x > e.MaxX {
		e.MaxX = x
	}
	if y < e.MinY {
		e.MinY = y
	}
	if y > e.MaxY {
		e.MaxY = y
	}
	return e
}

// Union returns the smallest extent covering both e and o.
// It is commutative and associative, so partial extents can be merged in any order.
func (e Extent) Union(o Extent) Extent {
	return e.Extend(o.MinX, o.MinY).Extend(o.MaxX, o.MaxY)
}

// Center returns the midpoint as (x, y).
func (e Extent) Center() [2]float64 {
	return [2]float64{(e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2}
}

// IsPoint reports whether the extent has zero area in both dimensions.
func (e Extent) IsPoint() bool {
	return e.MinX == e.MaxX && e.MinY == e.MaxY
}

// String implements fmt.Stringer.
func (e Extent) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// MarshalJSON encodes the extent in GeoJSON bbox order: [minX, minY, maxX, maxY].
func (e Extent) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{e.MinX, e.MinY, e.MaxX, e.MaxY})
}

// UnmarshalJSON decodes a four-element bbox array.
func (e *Extent) UnmarshalJSON(data []byte) error {
	var b [4]float64
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("extent: %w", err)
	}
	*e = Extent{MinX: b[0], MinY: b[1], MaxX: b[2], MaxY: b[3]}
	return nil
}

// MarshalYAML encodes the extent as a flow sequence for the CLI output.
func (e Extent) MarshalYAML() (any, error) {
	return []float64{e.MinX, e.MinY, e.MaxX, e.MaxY}, nil
}
