package extent

import "github.com/danielgtaylor/huma/v2"

// Schema describes the bbox array form in OpenAPI documents.
func (Extent) Schema(r huma.Registry) *huma.Schema {
	four := 4
	return &huma.Schema{
		Type:        huma.TypeArray,
		Description: "Bounding box as [minX, minY, maxX, maxY] in longitude/latitude",
		Items:       &huma.Schema{Type: huma.TypeNumber},
		MinItems:    &four,
		MaxItems:    &four,
		Examples:    []any{[]float64{-122.5, 37.5, -122.0, 37.9}},
	}
}
