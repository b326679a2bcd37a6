// Package service contains the business logic behind the map API: layer
// configuration, source documents, viewport loading and map state.
package service

import (
	"errors"

	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidName   = errors.New("invalid name")
	ErrUnknownMode   = errors.New("unknown style mode")
	ErrHidden        = errors.New("layer is hidden")
)

// LayerConfig represents a map layer configuration.
// Huma reads the tags for OpenAPI and validation.
type LayerConfig struct {
	ID             string       `json:"id,omitempty" doc:"Unique layer identifier" example:"fire_districts"`
	Name           string       `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Fire districts"`
	Source         string       `json:"source" required:"true" doc:"Configured source name" example:"boundary"`
	Role           string       `json:"role,omitempty" enum:"boundary,asset,line" doc:"What the layer represents" example:"boundary"`
	GeomType       string       `json:"geomType" required:"true" enum:"polygon,line,point" doc:"Geometry type" example:"polygon" default:"polygon"`
	DefaultVisible bool         `json:"defaultVisible" default:"true" doc:"Whether layer is visible by default" example:"true"`
	Fill           string       `json:"fill,omitempty" doc:"Fill color (CSS)" example:"#3388ff" default:"#3388ff"`
	Stroke         string       `json:"stroke,omitempty" doc:"Stroke color (CSS)" example:"#2266cc" default:"#2266cc"`
	Opacity        float64      `json:"opacity,omitempty" minimum:"0" maximum:"1" default:"0.7" doc:"Layer opacity (0-1)" example:"0.7"`
	Styles         []Style      `json:"styles,omitempty" doc:"Named style variants, one per style mode"`
	RenderRules    []RenderRule `json:"renderRules,omitempty" doc:"Attribute-driven styling used in risk mode"`
	Legend         []LegendItem `json:"legend,omitempty" doc:"Legend entries for this layer"`
}

// RenderRule styles features whose FilterProp equals FilterValue.
type RenderRule struct {
	FilterProp  string  `json:"filterProp,omitempty" doc:"Property name to filter on" example:"risk"`
	FilterValue string  `json:"filterValue,omitempty" doc:"Value to match" example:"high"`
	Fill        string  `json:"fill" doc:"Fill color (CSS)"`
	Stroke      string  `json:"stroke,omitempty" doc:"Stroke color (CSS)"`
	Opacity     float64 `json:"opacity,omitempty" doc:"Opacity (0-1)"`
	Width       float64 `json:"width,omitempty" doc:"Line width"`
	Radius      float64 `json:"radius,omitempty" doc:"Point radius"`
}

// LegendItem defines a legend entry.
type LegendItem struct {
	Label string `json:"label" doc:"Legend label"`
	Color string `json:"color" doc:"Legend color (CSS)"`
}

// Style is a named style variant for a layer.
type Style struct {
	Name    string  `json:"name" required:"true" minLength:"1" maxLength:"50" doc:"Style name, matched against the style mode"`
	Fill    string  `json:"fill,omitempty" default:"#3388ff" doc:"Fill color (CSS)"`
	Stroke  string  `json:"stroke,omitempty" default:"#2266cc" doc:"Stroke color (CSS)"`
	Opacity float64 `json:"opacity,omitempty" default:"0.7" minimum:"0" maximum:"1" doc:"Opacity (0-1)"`
}

// SourceFile represents a GeoJSON file in the sources directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"boundary.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// SourceRef is a configured source and its place in the preference order.
type SourceRef struct {
	Name string `json:"name" doc:"Source name" example:"boundary"`
	Ref  string `json:"ref" doc:"File name under the sources directory or http(s) URL" example:"boundary.geojson"`
	Rank int    `json:"rank" doc:"Position in the viewport preference order, 0 first, -1 if not preferred"`
}

// FeatureInfo is the attribute view of one feature, as shown in the side panel.
type FeatureInfo struct {
	Index        int            `json:"index" doc:"Position of the feature in its collection"`
	ID           any            `json:"id,omitempty" doc:"Feature id, if any"`
	GeometryType string         `json:"geometryType,omitempty" doc:"Declared geometry type" example:"Point"`
	Properties   map[string]any `json:"properties" doc:"Feature attributes"`
	Extent       *extent.Extent `json:"extent,omitempty" doc:"Extent of this feature's coordinates"`
	Layer        string         `json:"layer,omitempty" doc:"Layer whose style was applied"`
	Style        *Style         `json:"style,omitempty" doc:"Style for the active mode, absent when no layer draws from the source"`
}
