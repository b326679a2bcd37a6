package extent

import (
	"encoding/json"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Builder accumulates coordinates into a running extent.
// The zero value is an empty builder.
type Builder struct {
	ext   Extent
	count int
}

// Add records one coordinate.
func (b *Builder) Add(x, y float64) {
	if b.count == 0 {
		b.ext = At(x, y)
	} else {
		b.ext = b.ext.Extend(x, y)
	}
	b.count++
}

// AddNode records every coordinate in a tree.
func (b *Builder) AddNode(n Node) {
	Walk(n, func(c Coord) { b.Add(c.X, c.Y) })
}

// Merge folds another builder's result into b.
func (b *Builder) Merge(o Builder) {
	if o.count == 0 {
		return
	}
	if b.count == 0 {
		b.ext = o.ext
	} else {
		b.ext = b.ext.Union(o.ext)
	}
	b.count += o.count
}

// Count returns the number of coordinates recorded.
func (b *Builder) Count() int { return b.count }

// Extent returns the accumulated extent, or false if nothing was recorded.
func (b *Builder) Extent() (Extent, bool) {
	if b.count == 0 {
		return Extent{}, false
	}
	return b.ext, true
}

// Of computes the extent of a decoded FeatureCollection.
//
// doc is usually the result of json.Unmarshal into an `any`. A nil document,
// a document without a features list, and features without
// geometry.coordinates all contribute nothing. The second result is false
// when no coordinate was found.
func Of(doc any) (Extent, bool) {
	var b Builder
	for _, f := range Features(doc) {
		b.AddNode(Parse(Coordinates(f)))
	}
	return b.Extent()
}

// OfJSON decodes data and computes its extent. Undecodable input has no extent.
func OfJSON(data []byte) (Extent, bool) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Extent{}, false
	}
	return Of(doc)
}

// OfGeometry computes the extent of a single orb geometry.
func OfGeometry(g orb.Geometry) (Extent, bool) {
	var b Builder
	if g != nil {
		b.AddNode(Parse(g))
	}
	return b.Extent()
}

// OfParallel computes the same result as Of, splitting the features across
// up to workers goroutines and merging the partial extents.
func OfParallel(doc any, workers int) (Extent, bool) {
	features := Features(doc)
	if workers < 2 || len(features) < 2*workers {
		return Of(doc)
	}

	chunk := (len(features) + workers - 1) / workers
	partials := make([]Builder, 0, workers)
	for start := 0; start < len(features); start += chunk {
		partials = append(partials, Builder{})
	}

	var wg sync.WaitGroup
	for i := range partials {
		start := i * chunk
		end := min(start+chunk, len(features))
		wg.Go(func() {
			for _, f := range features[start:end] {
				partials[i].AddNode(Parse(Coordinates(f)))
			}
		})
	}
	wg.Wait()

	var b Builder
	for _, p := range partials {
		b.Merge(p)
	}
	return b.Extent()
}

// Features returns the feature list of a decoded document, or nil when the
// document has none. Typed orb collections are accepted as well.
func Features(doc any) []any {
	switch d := doc.(type) {
	case map[string]any:
		features, _ := d["features"].([]any)
		return features
	case geojson.FeatureCollection:
		return Features(&d)
	case *geojson.FeatureCollection:
		if d == nil {
			return nil
		}
		out := make([]any, len(d.Features))
		for i, f := range d.Features {
			out[i] = f
		}
		return out
	}
	return nil
}

// Coordinates returns a feature's geometry.coordinates value, or nil.
func Coordinates(feature any) any {
	switch f := feature.(type) {
	case map[string]any:
		geometry, _ := f["geometry"].(map[string]any)
		if geometry == nil {
			return nil
		}
		return geometry["coordinates"]
	case *geojson.Feature:
		if f == nil || f.Geometry == nil {
			return nil
		}
		return f.Geometry
	}
	return nil
}
