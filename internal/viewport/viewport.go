// Package viewport turns extents into map cameras.
//
// It owns the caller-side policy around the extent reducer: choosing one
// source's extent by a fixed preference order, and fitting a Web Mercator
// viewport of a given pixel size around it.
package viewport

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
)

// DefaultTileSize is the pixel size of a web map tile.
const DefaultTileSize = 256

// Size is a viewport size in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Options controls how an extent is fitted.
type Options struct {
	Padding       int           `json:"padding" yaml:"padding"`
	MinZoom       float64       `json:"minZoom" yaml:"minZoom"`
	MaxZoom       float64       `json:"maxZoom" yaml:"maxZoom"`
	TileSize      int           `json:"tileSize" yaml:"tileSize"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	DefaultCenter [2]float64    `json:"defaultCenter" yaml:"defaultCenter"`
	DefaultZoom   float64       `json:"defaultZoom" yaml:"defaultZoom"`
}

// Camera is where the map should look.
type Camera struct {
	Center     [2]float64     `json:"center" doc:"Longitude and latitude of the view centre"`
	Zoom       float64        `json:"zoom" doc:"Web Mercator zoom level"`
	Bounds     *extent.Extent `json:"bounds,omitempty" doc:"Fitted extent as [minX, minY, maxX, maxY]"`
	Padding    int            `json:"padding" doc:"Padding in pixels on each side"`
	DurationMS int64          `json:"durationMs" doc:"Animated transition length in milliseconds"`
	Fitted     bool           `json:"fitted" doc:"False when the camera is the configured default"`
}

// Choose returns the extent of the first source in order that has one.
// Extents are never merged across sources.
func Choose(order []string, extents map[string]extent.Extent) (string, extent.Extent, bool) {
	for _, name := range order {
		if ext, ok := extents[name]; ok {
			return name, ext, true
		}
	}
	return "", extent.Extent{}, false
}

// Fit returns the camera that shows ext inside a viewport of the given size.
func Fit(ext extent.Extent, size Size, opts Options) Camera {
	opts = opts.withDefaults()

	zoom := opts.MaxZoom
	if !ext.IsPoint() {
		zoom = fitZoom(ext, size, opts)
	}
	zoom = math.Max(opts.MinZoom, math.Min(opts.MaxZoom, zoom))

	bounds := ext
	return Camera{
		Center:     ext.Center(),
		Zoom:       zoom,
		Bounds:     &bounds,
		Padding:    opts.Padding,
		DurationMS: opts.Duration.Milliseconds(),
		Fitted:     true,
	}
}

// Default returns the camera used when no source has an extent.
func Default(opts Options) Camera {
	opts = opts.withDefaults()
	return Camera{
		Center:     opts.DefaultCenter,
		Zoom:       opts.DefaultZoom,
		Padding:    opts.Padding,
		DurationMS: opts.Duration.Milliseconds(),
	}
}

// fitZoom finds the largest fractional zoom at which the projected extent,
// plus padding on both sides, fits the viewport.
func fitZoom(ext extent.Extent, size Size, opts Options) float64 {
	// Tile fractions grow southward, so the north-west corner is the minimum.
	nw := maptile.Fraction(orb.Point{ext.MinX, ext.MaxY}, 0)
	se := maptile.Fraction(orb.Point{ext.MaxX, ext.MinY}, 0)
	dx := math.Abs(se[0] - nw[0])
	dy := math.Abs(se[1] - nw[1])

	w := float64(max(size.Width-2*opts.Padding, 1))
	h := float64(max(size.Height-2*opts.Padding, 1))
	tile := float64(opts.TileSize)

	zoom := math.Inf(1)
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(w/(dx*tile)))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(h/(dy*tile)))
	}
	if math.IsInf(zoom, 1) {
		return opts.MaxZoom
	}
	return zoom
}

func (o Options) withDefaults() Options {
	if o.TileSize <= 0 {
		o.TileSize = DefaultTileSize
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = 18
	}
	if o.MinZoom > o.MaxZoom {
		o.MinZoom = o.MaxZoom
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
	return o
}
