// Package service contains business logic for the plat-ogc catalog service.
package service

import (
	"errors"

	"github.com/joeblew999/plat-ogc/internal/datasource"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already exists")
	ErrNotQueryable = errors.New("not queryable")
	ErrUnsupported  = errors.New("unsupported service")
	ErrInvalidQuery = errors.New("invalid query")

	ErrInvalidBackground = errors.New("invalid background layer")
)

// OGCService names a query protocol.
type OGCService string

const (
	ServiceWFS OGCService = "WFS"
	ServiceWMS OGCService = "WMS"
)

// DataSourceView is the read model of a data source: its static properties
// plus the mutable flags and derived predicates at the time of reading.
type DataSourceView struct {
	datasource.Props

	InRange                bool     `json:"inRange" doc:"Within the resolution bounds of the current view"`
	Visible                bool     `json:"visible" doc:"Shown on the map"`
	SupportsWFS            bool     `json:"supportsWFS"`
	SupportsWMS            bool     `json:"supportsWMS"`
	SupportsWMTS           bool     `json:"supportsWMTS"`
	SupportsDynamicInRange bool     `json:"supportsDynamicInRange"`
	Queryable              bool     `json:"queryable"`
	QueryableLayers        []string `json:"queryableLayers" doc:"Queryable OGC layer names"`
}

func viewOf(ds *datasource.DataSource) DataSourceView {
	return DataSourceView{
		Props:                  ds.Props(),
		InRange:                ds.InRange(),
		Visible:                ds.Visible(),
		SupportsWFS:            ds.SupportsWFS(),
		SupportsWMS:            ds.SupportsWMS(),
		SupportsWMTS:           ds.SupportsWMTS(),
		SupportsDynamicInRange: ds.SupportsDynamicInRange(),
		Queryable:              ds.Queryable(),
		QueryableLayers:        ds.QueryableOGCLayerNames(),
	}
}

// QueryGroup is a set of data sources a single request can serve.
type QueryGroup struct {
	Service OGCService `json:"service" enum:"WFS,WMS"`
	URL     string     `json:"url" doc:"Shared service endpoint"`
	IDs     []int      `json:"ids" doc:"Member data source ids, ascending"`
	Layers  []string   `json:"layers" doc:"Queryable OGC layers in range, in member order"`
}

// BackgroundLayerType is the kind of a background layer.
type BackgroundLayerType string

const (
	BackgroundWMS   BackgroundLayerType = "WMS"
	BackgroundWMTS  BackgroundLayerType = "WMTS"
	BackgroundGroup BackgroundLayerType = "group"
)

// BackgroundLayer is the base layer of a map. Dimensions lists the dimension
// keys the source declares with their current values. A group holds its
// children in Layers.
type BackgroundLayer struct {
	Name       string              `json:"name" yaml:"name" toml:"name" minLength:"1" doc:"Layer name" example:"ortho"`
	Type       BackgroundLayerType `json:"type" yaml:"type" toml:"type" enum:"WMS,WMTS,group" doc:"Layer kind"`
	URL        string              `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty" doc:"Service endpoint"`
	Dimensions map[string]string   `json:"dimensions,omitempty" yaml:"dimensions,omitempty" toml:"dimensions,omitempty" doc:"Declared dimensions and their values"`
	Layers     []BackgroundLayer   `json:"layers,omitempty" yaml:"layers,omitempty" toml:"layers,omitempty" doc:"Children of a group"`
}

func (l BackgroundLayer) clone() BackgroundLayer {
	if l.Dimensions != nil {
		dims := make(map[string]string, len(l.Dimensions))
		for k, v := range l.Dimensions {
			dims[k] = v
		}
		l.Dimensions = dims
	}
	if l.Layers != nil {
		children := make([]BackgroundLayer, len(l.Layers))
		for i, c := range l.Layers {
			children[i] = c.clone()
		}
		l.Layers = children
	}
	return l
}

// BackgroundChange is the payload of background events.
type BackgroundChange struct {
	Current  *BackgroundLayer `json:"current,omitempty"`
	Previous *BackgroundLayer `json:"previous,omitempty"`
}
