// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-ogc/internal/datasource"
	"github.com/joeblew999/plat-ogc/internal/measure"
	"github.com/joeblew999/plat-ogc/internal/ogc"
	"github.com/joeblew999/plat-ogc/internal/service"
	"github.com/joeblew999/plat-ogc/internal/timeopt"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	DataSources *service.DataSourceService
	Background  *service.BackgroundLayerService
	Bus         *service.EventBus
	Log         *slog.Logger
}

// Types

type IDInput struct {
	ID int `path:"id" doc:"Data source ID" example:"1"`
}

type MapInput struct {
	Map string `path:"map" doc:"Map ID" example:"main"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

// humaError maps service errors to HTTP problems.
func humaError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrDuplicate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, datasource.ErrInvalidConfig),
		errors.Is(err, service.ErrInvalidBackground),
		errors.Is(err, service.ErrNotQueryable),
		errors.Is(err, service.ErrUnsupported),
		errors.Is(err, service.ErrInvalidQuery),
		errors.Is(err, ogc.ErrInvalidEndpoint),
		errors.Is(err, timeopt.ErrMissing),
		errors.Is(err, timeopt.ErrInvalid),
		errors.Is(err, measure.ErrDegenerate):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
