package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	DataDir    string   `json:"data_dir" doc:"Data directory path"`
	DB         bool     `json:"db" doc:"Whether the extent catalog is available"`
	Sources    int      `json:"sources" doc:"Number of configured sources"`
	Preference []string `json:"preference" doc:"Viewport source preference order"`
	Streams    int      `json:"streams" doc:"Open event stream subscribers"`
	Features   []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-extent",
		Version:    Version,
		DataDir:    h.svc.DataDir,
		DB:         h.svc.Catalog != nil,
		Sources:    len(h.svc.Config.Sources),
		Preference: h.svc.Config.Preference,
		Streams:    h.svc.Bus.Subscribers(),
		Features:   []string{"extent", "viewport", "map-state", "duckdb", "datastar"},
	}}, nil
}
