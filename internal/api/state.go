package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/akshaydinakar/wb-builder-exercise/internal/humastar"
	"github.com/akshaydinakar/wb-builder-exercise/internal/service"
)

type SnapshotOutput struct {
	Body service.Snapshot
}

type ModeInput struct {
	Body struct {
		Mode string `json:"mode" enum:"default,risk" doc:"Style mode" example:"risk"`
	}
}

type SelectInput struct {
	Body struct {
		LayerID string `json:"layerId" minLength:"1" doc:"Layer of the feature" example:"hydrants"`
		Index   int    `json:"index" minimum:"0" doc:"Feature index within the layer's source"`
	}
}

// RegisterState registers map state routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("state"))
	huma.Put(api, "/api/v1/state/mode", h.PutMode, huma.OperationTags("state"))
	huma.Put(api, "/api/v1/state/selection", h.PutSelection, huma.OperationTags("state"))
	huma.Delete(api, "/api/v1/state/selection", h.DeleteSelection, huma.OperationTags("state"))
	huma.Post(api, "/api/v1/state/signals", h.PostSignals, huma.OperationTags("state", "datastar"))
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*SnapshotOutput, error) {
	return &SnapshotOutput{Body: h.svc.State.Snapshot()}, nil
}

func (h *APIHandler) PutMode(ctx context.Context, input *ModeInput) (*SnapshotOutput, error) {
	if err := h.svc.State.SetMode(input.Body.Mode); err != nil {
		return nil, toHumaError(err)
	}
	return &SnapshotOutput{Body: h.svc.State.Snapshot()}, nil
}

func (h *APIHandler) PutSelection(ctx context.Context, input *SelectInput) (*struct{ Body service.Selection }, error) {
	sel, err := h.svc.State.Select(input.Body.LayerID, input.Body.Index)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body service.Selection }{Body: sel}, nil
}

func (h *APIHandler) DeleteSelection(ctx context.Context, input *struct{}) (*SnapshotOutput, error) {
	h.svc.State.ClearSelection()
	return &SnapshotOutput{Body: h.svc.State.Snapshot()}, nil
}

// PostSignals applies Datastar signals from the map UI and answers with the
// new state as patched signals. Recognised signals: mode, toggle (layer ID),
// layerId with index (select), clear.
func (h *APIHandler) PostSignals(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	if err := h.applySignals(signals); err != nil {
		return nil, toHumaError(err)
	}

	snap := h.svc.State.Snapshot()
	return humastar.Stream(func(sse humastar.SSE) {
		sse.Signals(snap)
	}), nil
}

// signalPlan is a validated set of signal changes.
type signalPlan struct {
	mode     string
	setMode  bool
	toggle   string
	clear    bool
	selectID string
	index    int
}

// planSignals checks every signal against the current state so that a
// rejected request changes nothing.
func (h *APIHandler) planSignals(s humastar.Signals) (signalPlan, error) {
	p := signalPlan{
		toggle: s.String("toggle"),
		clear:  s.Bool("clear"),
	}
	if s.Has("mode") {
		if _, err := service.ParseStyleMode(s.String("mode")); err != nil {
			return p, err
		}
		p.mode, p.setMode = s.String("mode"), true
	}
	if p.toggle != "" {
		if _, err := h.svc.State.Visible(p.toggle); err != nil {
			return p, err
		}
	}
	if id := s.String("layerId"); id != "" && s.Has("index") {
		visible, err := h.svc.State.Visible(id)
		if err != nil {
			return p, err
		}
		if id == p.toggle {
			visible = !visible
		}
		if !visible {
			return p, fmt.Errorf("layer %q: %w", id, service.ErrHidden)
		}
		p.index = s.Int("index")
		if p.index < 0 {
			return p, fmt.Errorf("feature %d: %w", p.index, service.ErrNotFound)
		}
		p.selectID = id
	}
	return p, nil
}

func (h *APIHandler) applySignals(s humastar.Signals) error {
	p, err := h.planSignals(s)
	if err != nil {
		return err
	}

	state := h.svc.State
	if p.setMode {
		if err := state.SetMode(p.mode); err != nil {
			return err
		}
	}
	if p.toggle != "" {
		if _, err := state.Toggle(p.toggle); err != nil {
			return err
		}
	}
	if p.clear {
		state.ClearSelection()
	}
	if p.selectID != "" {
		if _, err := state.Select(p.selectID, p.index); err != nil {
			return err
		}
	}
	return nil
}
