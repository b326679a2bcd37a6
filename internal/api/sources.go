package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/akshaydinakar/wb-builder-exercise/internal/humastar"
	"github.com/akshaydinakar/wb-builder-exercise/internal/service"
)

type SourcesBody struct {
	Configured []service.SourceRef  `json:"configured" doc:"Sources named in the map configuration, in preference order"`
	Files      []service.SourceFile `json:"files" doc:"GeoJSON files present in the sources directory"`
}

type SourceInput struct {
	Name string `path:"name" doc:"Configured source name" example:"boundary"`
}

// StyleInput picks the layer whose style is applied to inspected features.
type StyleInput struct {
	Layer string `query:"layer" doc:"Layer to style features with; defaults to the first layer drawing from the source" example:"hydrants"`
}

type FeaturesInput struct {
	SourceInput
	StyleInput
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Index of the first feature"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type FeatureInput struct {
	SourceInput
	StyleInput
	Index int `path:"index" minimum:"0" doc:"Feature index"`
}

type ViewportInput struct {
	Width  int `query:"width" minimum:"0" doc:"Map width in pixels, 0 for the configured width"`
	Height int `query:"height" minimum:"0" doc:"Map height in pixels, 0 for the configured height"`
}

// RegisterSources registers source listing and inspection routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
	huma.Get(api, "/api/v1/sources/{name}/extent", h.GetSourceExtent, huma.OperationTags("sources"))
	huma.Get(api, "/api/v1/sources/{name}/features", h.GetFeatures, huma.OperationTags("sources"))
	huma.Get(api, "/api/v1/sources/{name}/features/{index}", h.GetFeature, huma.OperationTags("sources"))
}

// RegisterViewport registers the viewport fit route.
func (h *APIHandler) RegisterViewport(api huma.API) {
	huma.Get(api, "/api/v1/viewport", h.GetViewport, huma.OperationTags("viewport"))
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body SourcesBody }, error) {
	files, err := h.svc.Source.List()
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body SourcesBody }{Body: SourcesBody{
		Configured: h.svc.Loader.Sources(),
		Files:      files,
	}}, nil
}

// GetSourceExtent loads one source and returns its extent. A source without
// coordinates is not an error: the result simply has no extent.
func (h *APIHandler) GetSourceExtent(ctx context.Context, input *SourceInput) (*struct{ Body service.Result }, error) {
	res := h.svc.Loader.Extent(ctx, input.Name)
	if res.Err != nil {
		return nil, sourceError(res.Err)
	}
	return &struct{ Body service.Result }{Body: res}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *FeaturesInput) (*struct {
	Body humastar.PageBody[service.FeatureInfo]
}, error) {
	doc, err := h.document(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	page, total := service.Inspect(doc, input.Offset, input.Limit)
	if err := h.style(page, input.Name, input.Layer); err != nil {
		return nil, err
	}
	return &struct {
		Body humastar.PageBody[service.FeatureInfo]
	}{Body: humastar.PageBody[service.FeatureInfo]{
		Total:  total,
		Offset: input.Offset,
		Limit:  input.Limit,
		Data:   page,
	}}, nil
}

func (h *APIHandler) GetFeature(ctx context.Context, input *FeatureInput) (*struct{ Body service.FeatureInfo }, error) {
	doc, err := h.document(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	info, err := service.InspectOne(doc, input.Index)
	if err != nil {
		return nil, toHumaError(err)
	}
	infos := []service.FeatureInfo{info}
	if err := h.style(infos, input.Name, input.Layer); err != nil {
		return nil, err
	}
	return &struct{ Body service.FeatureInfo }{Body: infos[0]}, nil
}

// style applies the active mode's styling of a layer drawing from source.
// Without an explicit layer the first matching one is used; with none the
// features stay unstyled.
func (h *APIHandler) style(infos []service.FeatureInfo, source, layerID string) error {
	var (
		layer service.LayerConfig
		ok    bool
	)
	if layerID == "" {
		layer, ok = h.svc.Layer.ForSource(source)
		if !ok {
			return nil
		}
	} else {
		layer, ok = h.svc.Layer.Get(layerID)
		if !ok {
			return huma.Error404NotFound("layer not found")
		}
		if layer.Source != source {
			return huma.Error400BadRequest(fmt.Sprintf("layer %q draws from source %q", layerID, layer.Source))
		}
	}
	service.StyleFeatures(infos, layer, h.svc.State.Mode())
	return nil
}

func (h *APIHandler) document(ctx context.Context, name string) (any, error) {
	doc, err := h.svc.Loader.Document(ctx, name)
	if err != nil {
		return nil, sourceError(err)
	}
	return doc, nil
}

// sourceError reports fetch and decode failures as 502 unless a sentinel
// says otherwise.
func sourceError(err error) error {
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidName) || errors.Is(err, context.DeadlineExceeded) {
		return toHumaError(err)
	}
	return huma.Error502BadGateway("source unavailable", err)
}

func (h *APIHandler) GetViewport(ctx context.Context, input *ViewportInput) (*struct{ Body service.ViewportResult }, error) {
	size := h.svc.Config.Viewport.Size()
	if input.Width > 0 {
		size.Width = input.Width
	}
	if input.Height > 0 {
		size.Height = input.Height
	}
	return &struct{ Body service.ViewportResult }{Body: h.svc.Loader.Viewport(ctx, size)}, nil
}
