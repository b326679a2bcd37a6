// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/akshaydinakar/wb-builder-exercise/internal/config"
	"github.com/akshaydinakar/wb-builder-exercise/internal/db"
	"github.com/akshaydinakar/wb-builder-exercise/internal/logging"
	"github.com/akshaydinakar/wb-builder-exercise/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.2.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Config  *config.Config
	Layer   *service.LayerService
	Source  *service.SourceService
	State   *service.MapState
	Loader  *service.Loader
	Catalog *db.Catalog
	Bus     *service.EventBus
	DataDir string
}

// RegisterRoutes registers every API operation.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	NewDBHandler(svc.Catalog).RegisterRoutes(api)
	NewEventHandler(svc.State, svc.Bus).RegisterRoutes(api)
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"fire_districts"`
}

type LayerOutput struct {
	Body service.LayerConfig
}

type LayersOutput struct {
	Body map[string]service.LayerConfig
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type CreatedLayerBody struct {
	ID      string              `json:"id" doc:"Generated layer ID"`
	Layer   service.LayerConfig `json:"layer" doc:"Created layer configuration"`
	Message string              `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.2.0"`
}

type VisibilityBody struct {
	Visible bool `json:"visible" required:"true" doc:"Whether the layer is shown"`
}

type VisibilityOutput struct {
	Body struct {
		ID      string `json:"id" doc:"Layer ID"`
		Visible bool   `json:"visible" doc:"Whether the layer is shown"`
	}
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer CRUD routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers", h.CreateLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}", h.PutLayer, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}/visibility", h.PutVisibility, huma.OperationTags("layers", "state"))
}

// toHumaError maps service sentinels to HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrAlreadyExists), errors.Is(err, service.ErrHidden):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidName), errors.Is(err, service.ErrUnknownMode):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	return &LayersOutput{Body: h.svc.Layer.List()}, nil
}

func (h *APIHandler) CreateLayer(ctx context.Context, input *struct{ Body service.LayerConfig }) (*struct{ Body CreatedLayerBody }, error) {
	created, err := h.svc.Layer.Create(input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	logging.FromContext(ctx).Info("layer created", slog.String("id", created.ID), slog.String("source", created.Source))
	return &struct{ Body CreatedLayerBody }{Body: CreatedLayerBody{
		ID: created.ID, Layer: created, Message: "Layer created",
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	layer, ok := h.svc.Layer.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: layer}, nil
}

func (h *APIHandler) PutLayer(ctx context.Context, input *struct {
	IDInput
	Body service.LayerConfig
}) (*LayerOutput, error) {
	updated, err := h.svc.Layer.Update(input.ID, input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &LayerOutput{Body: updated}, nil
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Layer.Delete(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	h.svc.State.Forget(input.ID)
	logging.FromContext(ctx).Info("layer deleted", slog.String("id", input.ID))
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer deleted"}}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *struct {
	IDInput
	Body VisibilityBody
}) (*VisibilityOutput, error) {
	if err := h.svc.State.SetVisible(input.ID, input.Body.Visible); err != nil {
		return nil, toHumaError(err)
	}
	out := &VisibilityOutput{}
	out.Body.ID = input.ID
	out.Body.Visible = input.Body.Visible
	return out, nil
}
