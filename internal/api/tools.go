package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-ogc/internal/measure"
	"github.com/joeblew999/plat-ogc/internal/timeopt"
)

type TimeOptionsInput struct {
	Body timeopt.Property
}

type AzimuthInput struct {
	Body struct {
		Coordinates [][2]float64 `json:"coordinates" minItems:"2" doc:"Line vertices; the first two define the azimuth" example:"[[0,0],[300,400]]"`
		Geographic  bool         `json:"geographic,omitempty" doc:"Coordinates are lon/lat degrees"`
		Decimals    int          `json:"decimals,omitempty" minimum:"0" maximum:"10" default:"0" doc:"Azimuth decimals"`
		Precision   int          `json:"precision,omitempty" minimum:"0" maximum:"10" default:"0" doc:"Length decimals"`
	}
}

type AzimuthBody struct {
	Azimuth   float64 `json:"azimuth" doc:"Degrees from north, clockwise"`
	Length    float64 `json:"length" doc:"Length in meters"`
	Formatted string  `json:"formatted" doc:"Display label" example:"36.87°, 500.0 m"`
}

// RegisterTools registers the time dimension and measuring routes.
func (h *APIHandler) RegisterTools(api huma.API) {
	huma.Post(api, "/api/v1/time/options", h.TimeOptions, huma.OperationTags("tools"))
	huma.Post(api, "/api/v1/measure/azimuth", h.Azimuth, huma.OperationTags("tools"))
}

func (h *APIHandler) TimeOptions(ctx context.Context, input *TimeOptionsInput) (*struct{ Body timeopt.SliderOptions }, error) {
	opts, err := timeopt.GetOptions(input.Body)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body timeopt.SliderOptions }{Body: opts}, nil
}

func (h *APIHandler) Azimuth(ctx context.Context, input *AzimuthInput) (*struct{ Body AzimuthBody }, error) {
	line := make(orb.LineString, len(input.Body.Coordinates))
	for i, c := range input.Body.Coordinates {
		line[i] = orb.Point(c)
	}
	az, err := measure.Azimuth(line)
	if err != nil {
		return nil, humaError(err)
	}
	length, err := measure.Length(line, input.Body.Geographic)
	if err != nil {
		return nil, humaError(err)
	}
	label, err := measure.FormatAzimuthRadius(line, input.Body.Geographic, input.Body.Decimals, input.Body.Precision)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body AzimuthBody }{Body: AzimuthBody{Azimuth: az, Length: length, Formatted: label}}, nil
}
