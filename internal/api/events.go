package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/akshaydinakar/wb-builder-exercise/internal/humastar"
	"github.com/akshaydinakar/wb-builder-exercise/internal/service"
)

// EventHandler streams map state to the Datastar UI via SSE.
type EventHandler struct {
	state *service.MapState
	bus   *service.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(state *service.MapState, bus *service.EventBus) *EventHandler {
	return &EventHandler{state: state, bus: bus}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags("state", "datastar"),
	)
}

// Events sends the current snapshot, then a fresh snapshot and a
// resource-changed event for every published change.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return humastar.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		if err := sse.Signals(h.state.Snapshot()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := sse.Signals(h.state.Snapshot()); err != nil {
					return
				}
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}
