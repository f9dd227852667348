package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-ogc/internal/service"
)

type MapsBody struct {
	Maps []string `json:"maps" doc:"IDs of the maps with a background layer"`
}

type BackgroundOutput struct {
	Body service.BackgroundLayer
}

type SetBackgroundInput struct {
	MapInput
	Body service.BackgroundLayer
}

type SetBackgroundBody struct {
	Current  *service.BackgroundLayer `json:"current,omitempty" doc:"New background layer"`
	Previous *service.BackgroundLayer `json:"previous,omitempty" doc:"Replaced background layer"`
}

type DimensionsInput struct {
	MapInput
	Body struct {
		Dimensions map[string]string `json:"dimensions" doc:"Dimension values by key" example:"{\"TIME\":\"2020\"}"`
	}
}

type DimensionsBody struct {
	Updated int `json:"updated" doc:"Number of layers whose dimensions changed"`
}

// RegisterBackground registers background layer routes.
func (h *APIHandler) RegisterBackground(api huma.API) {
	huma.Get(api, "/api/v1/maps", h.ListMaps, huma.OperationTags("background"))
	huma.Get(api, "/api/v1/maps/{map}/background", h.GetBackground, huma.OperationTags("background"))
	huma.Put(api, "/api/v1/maps/{map}/background", h.SetBackground, huma.OperationTags("background"))
	huma.Delete(api, "/api/v1/maps/{map}/background", h.RemoveBackground, huma.OperationTags("background"))
	huma.Put(api, "/api/v1/maps/{map}/background/dimensions", h.UpdateDimensions, huma.OperationTags("background"))
}

func (h *APIHandler) ListMaps(ctx context.Context, input *struct{}) (*struct{ Body MapsBody }, error) {
	return &struct{ Body MapsBody }{Body: MapsBody{Maps: h.svc.Background.Maps()}}, nil
}

func (h *APIHandler) GetBackground(ctx context.Context, input *MapInput) (*BackgroundOutput, error) {
	l, ok := h.svc.Background.Get(input.Map)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("map %q has no background layer", input.Map))
	}
	return &BackgroundOutput{Body: l}, nil
}

func (h *APIHandler) SetBackground(ctx context.Context, input *SetBackgroundInput) (*struct{ Body SetBackgroundBody }, error) {
	layer := input.Body
	previous, err := h.svc.Background.Set(input.Map, &layer)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body SetBackgroundBody }{Body: SetBackgroundBody{Current: &layer, Previous: previous}}, nil
}

func (h *APIHandler) RemoveBackground(ctx context.Context, input *MapInput) (*struct{ Body SetBackgroundBody }, error) {
	previous, err := h.svc.Background.Set(input.Map, nil)
	if err != nil {
		return nil, humaError(err)
	}
	if previous == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("map %q has no background layer", input.Map))
	}
	return &struct{ Body SetBackgroundBody }{Body: SetBackgroundBody{Previous: previous}}, nil
}

func (h *APIHandler) UpdateDimensions(ctx context.Context, input *DimensionsInput) (*struct{ Body DimensionsBody }, error) {
	if _, ok := h.svc.Background.Get(input.Map); !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("map %q has no background layer", input.Map))
	}
	n := h.svc.Background.UpdateDimensions(input.Map, input.Body.Dimensions)
	return &struct{ Body DimensionsBody }{Body: DimensionsBody{Updated: n}}, nil
}
