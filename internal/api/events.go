package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-ogc/internal/humastar"
	"github.com/joeblew999/plat-ogc/internal/service"
)

// EventHandler streams registry and background changes over SSE.
type EventHandler struct {
	humastar.Handler
	bus *service.EventBus
}

func NewEventHandler(bus *service.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events, huma.OperationTags("events"))
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if err := sse.Event("resource-changed", ev); err != nil {
					return
				}
			}
		}
	}), nil
}
