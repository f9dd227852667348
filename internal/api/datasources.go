package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-ogc/internal/datasource"
	"github.com/joeblew999/plat-ogc/internal/humastar"
	"github.com/joeblew999/plat-ogc/internal/ogc"
	"github.com/joeblew999/plat-ogc/internal/service"
)

var dataSourceActions = []humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/datasources/%s", Method: "DELETE", Title: "Delete data source"},
	{Rel: "layers", Pattern: "/api/v1/datasources/%s/layers", Method: "GET", Title: "OGC layers in range"},
}

// DataSourceBody is a data source with its state-dependent actions.
type DataSourceBody struct {
	service.DataSourceView
}

func (b DataSourceBody) Actions() []humastar.Action {
	id := strconv.Itoa(b.ID)
	actions := humastar.ActionsFor(id, dataSourceActions)
	visible := humastar.Action{
		Rel:    "show",
		Href:   "/api/v1/datasources/" + id + "/visible",
		Method: "PUT",
		Title:  "Show data source",
	}
	if b.Visible {
		visible.Rel, visible.Title = "hide", "Hide data source"
	}
	actions = append(actions, visible)
	if b.SupportsWFS && b.Queryable {
		actions = append(actions, humastar.Action{Rel: "getfeature", Href: "/api/v1/datasources/" + id + "/getfeature", Method: "GET", Title: "WFS GetFeature request"})
	}
	if b.SupportsWMS && b.Queryable {
		actions = append(actions, humastar.Action{Rel: "getfeatureinfo", Href: "/api/v1/datasources/" + id + "/getfeatureinfo", Method: "GET", Title: "WMS GetFeatureInfo request"})
	}
	return actions
}

type DataSourceOutput struct {
	Body DataSourceBody
}

type ListInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type VisibleInput struct {
	IDInput
	Body struct {
		Visible bool `json:"visible" doc:"Show or hide the data source"`
	}
}

type LayersInput struct {
	IDInput
	Resolution    float64 `query:"resolution" required:"true" minimum:"0" doc:"View resolution"`
	QueryableOnly bool    `query:"queryableOnly" doc:"Only queryable layers"`
}

type LayersBody struct {
	Layers []string `json:"layers" doc:"OGC layer names in range, in configuration order"`
}

type CombinableInput struct {
	IDInput
	Other   int    `path:"other" doc:"Other data source ID" example:"2"`
	Service string `query:"service" enum:"WFS,WMS" default:"WFS" doc:"Query protocol"`
}

type CombinableBody struct {
	Combinable bool `json:"combinable" doc:"Both can be fetched with one request"`
}

type GetFeatureInput struct {
	IDInput
	BBox        string  `query:"bbox" doc:"minx,miny,maxx,maxy" example:"2600000,1200000,2601000,1201000"`
	SRS         string  `query:"srs" doc:"Spatial reference system" example:"EPSG:2056"`
	MaxFeatures int     `query:"maxFeatures" minimum:"0" doc:"Maximum number of features"`
	Resolution  float64 `query:"resolution" minimum:"0" doc:"Restrict to the queryable layers in range at this resolution"`
}

type GetFeatureInfoInput struct {
	IDInput
	BBox         string  `query:"bbox" required:"true" doc:"Map extent minx,miny,maxx,maxy"`
	Width        int     `query:"width" required:"true" minimum:"1" doc:"Map width in pixels"`
	Height       int     `query:"height" required:"true" minimum:"1" doc:"Map height in pixels"`
	I            int     `query:"i" minimum:"0" doc:"Pixel column"`
	J            int     `query:"j" minimum:"0" doc:"Pixel row"`
	CRS          string  `query:"crs" doc:"Coordinate reference system" example:"EPSG:2056"`
	FeatureCount int     `query:"featureCount" minimum:"0" doc:"Maximum number of features"`
	Resolution   float64 `query:"resolution" minimum:"0" doc:"Restrict to the queryable layers in range at this resolution"`
}

type RequestURLBody struct {
	URL string `json:"url" doc:"OGC request URL"`
}

type ViewInput struct {
	Body struct {
		Resolution float64 `json:"resolution" minimum:"0" doc:"View resolution"`
	}
}

type ViewBody struct {
	Changed []int `json:"changed" doc:"IDs whose in-range state changed"`
}

type QueryGroupsInput struct {
	Resolution float64 `query:"resolution" required:"true" minimum:"0" doc:"View resolution"`
	Service    string  `query:"service" enum:"WFS,WMS" default:"WFS" doc:"Query protocol"`
}

// RegisterDataSources registers data source routes.
func (h *APIHandler) RegisterDataSources(api huma.API) {
	huma.Get(api, "/api/v1/datasources", h.ListDataSources, huma.OperationTags("datasources"))
	huma.Post(api, "/api/v1/datasources", h.CreateDataSource, huma.OperationTags("datasources"))
	huma.Get(api, "/api/v1/datasources/{id}", h.GetDataSource, huma.OperationTags("datasources"))
	huma.Delete(api, "/api/v1/datasources/{id}", h.DeleteDataSource, huma.OperationTags("datasources"))
	huma.Put(api, "/api/v1/datasources/{id}/visible", h.SetVisible, huma.OperationTags("datasources"))
	huma.Get(api, "/api/v1/datasources/{id}/layers", h.InRangeLayers, huma.OperationTags("datasources"))
	huma.Get(api, "/api/v1/datasources/{id}/combinable/{other}", h.Combinable, huma.OperationTags("datasources"))
	huma.Get(api, "/api/v1/datasources/{id}/getfeature", h.GetFeature, huma.OperationTags("query"))
	huma.Get(api, "/api/v1/datasources/{id}/getfeatureinfo", h.GetFeatureInfo, huma.OperationTags("query"))
}

// RegisterView registers view synchronization and query grouping routes.
func (h *APIHandler) RegisterView(api huma.API) {
	huma.Post(api, "/api/v1/view", h.SyncView, huma.OperationTags("view"))
	huma.Get(api, "/api/v1/query/groups", h.QueryGroups, huma.OperationTags("query"))
}

func (h *APIHandler) ListDataSources(ctx context.Context, input *ListInput) (*struct {
	Body humastar.PageBody[service.DataSourceView]
}, error) {
	page := humastar.NewPage(h.svc.DataSources.List(), input.Offset, input.Limit)
	return &struct {
		Body humastar.PageBody[service.DataSourceView]
	}{Body: page}, nil
}

func (h *APIHandler) CreateDataSource(ctx context.Context, input *struct{ Body datasource.Options }) (*DataSourceOutput, error) {
	view, err := h.svc.DataSources.Create(ctx, input.Body)
	if err != nil {
		return nil, humaError(err)
	}
	return &DataSourceOutput{Body: DataSourceBody{view}}, nil
}

func (h *APIHandler) GetDataSource(ctx context.Context, input *IDInput) (*DataSourceOutput, error) {
	view, err := h.svc.DataSources.Get(input.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &DataSourceOutput{Body: DataSourceBody{view}}, nil
}

func (h *APIHandler) DeleteDataSource(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.DataSources.Delete(ctx, input.ID); err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Data source deleted"}}, nil
}

func (h *APIHandler) SetVisible(ctx context.Context, input *VisibleInput) (*DataSourceOutput, error) {
	view, err := h.svc.DataSources.SetVisible(input.ID, input.Body.Visible)
	if err != nil {
		return nil, humaError(err)
	}
	return &DataSourceOutput{Body: DataSourceBody{view}}, nil
}

func (h *APIHandler) InRangeLayers(ctx context.Context, input *LayersInput) (*struct{ Body LayersBody }, error) {
	layers, err := h.svc.DataSources.InRangeLayers(input.ID, input.Resolution, input.QueryableOnly)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body LayersBody }{Body: LayersBody{Layers: layers}}, nil
}

func (h *APIHandler) Combinable(ctx context.Context, input *CombinableInput) (*struct{ Body CombinableBody }, error) {
	ok, err := h.svc.DataSources.Combinable(input.ID, input.Other, service.OGCService(input.Service))
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body CombinableBody }{Body: CombinableBody{Combinable: ok}}, nil
}

func (h *APIHandler) GetFeature(ctx context.Context, input *GetFeatureInput) (*struct{ Body RequestURLBody }, error) {
	q := ogc.GetFeatureQuery{SRS: input.SRS, MaxFeatures: input.MaxFeatures}
	if input.BBox != "" {
		b, err := parseBBox(input.BBox)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		q.BBox = &b
	}
	if input.Resolution > 0 {
		layers, err := h.inRangeQueryable(input.ID, input.Resolution)
		if err != nil {
			return nil, err
		}
		q.FeatureTypes = layers
	}
	u, err := h.svc.DataSources.GetFeatureURL(input.ID, q)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body RequestURLBody }{Body: RequestURLBody{URL: u}}, nil
}

func (h *APIHandler) GetFeatureInfo(ctx context.Context, input *GetFeatureInfoInput) (*struct{ Body RequestURLBody }, error) {
	b, err := parseBBox(input.BBox)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	q := ogc.GetFeatureInfoQuery{
		CRS:          input.CRS,
		BBox:         b,
		Width:        input.Width,
		Height:       input.Height,
		I:            input.I,
		J:            input.J,
		FeatureCount: input.FeatureCount,
	}
	if input.Resolution > 0 {
		layers, err := h.inRangeQueryable(input.ID, input.Resolution)
		if err != nil {
			return nil, err
		}
		q.Layers = layers
	}
	u, err := h.svc.DataSources.GetFeatureInfoURL(input.ID, q)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body RequestURLBody }{Body: RequestURLBody{URL: u}}, nil
}

func (h *APIHandler) inRangeQueryable(id int, res float64) ([]string, error) {
	layers, err := h.svc.DataSources.InRangeLayers(id, res, true)
	if err != nil {
		return nil, humaError(err)
	}
	if len(layers) == 0 {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("data source %d has no queryable layer in range at %v", id, res))
	}
	return layers, nil
}

func (h *APIHandler) SyncView(ctx context.Context, input *ViewInput) (*struct{ Body ViewBody }, error) {
	changed := h.svc.DataSources.SyncResolution(input.Body.Resolution)
	return &struct{ Body ViewBody }{Body: ViewBody{Changed: changed}}, nil
}

func (h *APIHandler) QueryGroups(ctx context.Context, input *QueryGroupsInput) (*struct{ Body []service.QueryGroup }, error) {
	groups, err := h.svc.DataSources.QueryGroups(input.Resolution, service.OGCService(input.Service))
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body []service.QueryGroup }{Body: groups}, nil
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min exceeds max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
