package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc     *Services
	dataDir string
	store   string
}

func NewInfoHandler(svc *Services, dataDir, store string) *InfoHandler {
	return &InfoHandler{svc: svc, dataDir: dataDir, store: store}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string   `json:"name" doc:"Service name"`
	Version     string   `json:"version" doc:"Service version"`
	DataDir     string   `json:"data_dir,omitempty" doc:"Data directory path"`
	Store       string   `json:"store" doc:"Data source store backend" example:"duckdb"`
	DataSources int      `json:"datasources" doc:"Registered data sources"`
	Maps        int      `json:"maps" doc:"Maps with a background layer"`
	Features    []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:        "plat-ogc",
		Version:     Version,
		DataDir:     h.dataDir,
		Store:       h.store,
		DataSources: len(h.svc.DataSources.List()),
		Maps:        len(h.svc.Background.Maps()),
		Features:    []string{"wms", "wmts", "wfs", "getfeatureinfo", "time", "measure"},
	}}, nil
}
