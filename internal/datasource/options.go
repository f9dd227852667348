package datasource

import (
	"fmt"
	"strings"
)

// Defaults applied to omitted optional options.
const (
	DefaultGeometryName      = "the_geom"
	DefaultImageType         = "image/png"
	DefaultSnappingTolerance = 10.0

	WFSFeatureNSMapServer   = "http://mapserver.gis.umn.edu/mapserver"
	WFSFeaturePrefixFeature = "feature"
	WFSOutputFormatGML3     = "GML3"
	WMSInfoFormatGML        = "application/vnd.ogc.gml"
)

// OGCServerType is the flavour of OGC server behind the data source urls.
type OGCServerType string

const (
	OGCServerTypeGeoServer OGCServerType = "geoserver"
	OGCServerTypeMapServer OGCServerType = "mapserver"
	OGCServerTypeQGIS      OGCServerType = "qgis"
)

// Valid reports whether t is one of the known server types.
func (t OGCServerType) Valid() bool {
	switch t {
	case OGCServerTypeGeoServer, OGCServerTypeMapServer, OGCServerTypeQGIS:
		return true
	}
	return false
}

func (t OGCServerType) String() string { return string(t) }

func (t OGCServerType) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

func (t *OGCServerType) UnmarshalText(b []byte) error {
	v := OGCServerType(strings.ToLower(strings.TrimSpace(string(b))))
	if v != "" && !v.Valid() {
		return fmt.Errorf("%w: unknown ogcServerType %q", ErrInvalidConfig, string(b))
	}
	*t = v
	return nil
}

// OGCType is the imagery protocol used to display the data source.
type OGCType string

const (
	OGCTypeWMS  OGCType = "WMS"
	OGCTypeWMTS OGCType = "WMTS"
)

// Valid reports whether t is one of the known OGC types.
func (t OGCType) Valid() bool {
	return t == OGCTypeWMS || t == OGCTypeWMTS
}

func (t OGCType) String() string { return string(t) }

func (t OGCType) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

func (t *OGCType) UnmarshalText(b []byte) error {
	v := OGCType(strings.ToUpper(strings.TrimSpace(string(b))))
	if v != "" && !v.Valid() {
		return fmt.Errorf("%w: unknown ogcType %q", ErrInvalidConfig, string(b))
	}
	*t = v
	return nil
}

// OGCLayer is a named sub-unit of a data source used in WMS and WFS requests.
// A nil resolution bound means the layer is unbounded on that side.
type OGCLayer struct {
	Name          string   `json:"name" yaml:"name" toml:"name" doc:"OGC layer name" example:"roads"`
	Queryable     bool     `json:"queryable,omitempty" yaml:"queryable" toml:"queryable" doc:"Whether the layer answers feature queries"`
	MinResolution *float64 `json:"minResolution,omitempty" yaml:"minResolution,omitempty" toml:"minResolution,omitempty" doc:"Minimum resolution (inclusive)"`
	MaxResolution *float64 `json:"maxResolution,omitempty" yaml:"maxResolution,omitempty" toml:"maxResolution,omitempty" doc:"Maximum resolution (inclusive)"`
}

// InRange reports whether res falls within the layer bounds. Bounds are inclusive.
func (l OGCLayer) InRange(res float64) bool {
	if l.MinResolution != nil && res < *l.MinResolution {
		return false
	}
	if l.MaxResolution != nil && res > *l.MaxResolution {
		return false
	}
	return true
}

// Options is the configuration a data source is built from. ID and Name are
// required; every other field falls back to a documented default. Empty
// strings on optional string fields mean "not set".
type Options struct {
	ID   *int   `json:"id" yaml:"id" toml:"id" doc:"Unique data source identifier" example:"1"`
	Name string `json:"name" yaml:"name" toml:"name" doc:"Human readable name" example:"Roads"`

	InRange *bool `json:"inRange,omitempty" yaml:"inRange,omitempty" toml:"inRange,omitempty" doc:"Initial in-range state (default true)"`
	Visible bool  `json:"visible,omitempty" yaml:"visible,omitempty" toml:"visible,omitempty" doc:"Initial visibility"`

	Copyable            bool     `json:"copyable,omitempty" yaml:"copyable,omitempty" toml:"copyable,omitempty" doc:"Geometries may be copied to other data sources"`
	GeometryName        string   `json:"geometryName,omitempty" yaml:"geometryName,omitempty" toml:"geometryName,omitempty" doc:"Geometry attribute name" default:"the_geom"`
	IdentifierAttribute string   `json:"identifierAttribute,omitempty" yaml:"identifierAttribute,omitempty" toml:"identifierAttribute,omitempty" doc:"Attribute identifying records"`
	MaxResolution       *float64 `json:"maxResolution,omitempty" yaml:"maxResolution,omitempty" toml:"maxResolution,omitempty" doc:"Maximum resolution for display and queries"`
	MinResolution       *float64 `json:"minResolution,omitempty" yaml:"minResolution,omitempty" toml:"minResolution,omitempty" doc:"Minimum resolution for display and queries"`

	OGCImageType  string        `json:"ogcImageType,omitempty" yaml:"ogcImageType,omitempty" toml:"ogcImageType,omitempty" doc:"Image MIME type for WMS/WMTS" default:"image/png"`
	OGCLayers     []OGCLayer    `json:"ogcLayers,omitempty" yaml:"ogcLayers,omitempty" toml:"ogcLayers,omitempty" doc:"Layers used by WMS and WFS requests"`
	OGCServerType OGCServerType `json:"ogcServerType,omitempty" yaml:"ogcServerType,omitempty" toml:"ogcServerType,omitempty" doc:"OGC server flavour: geoserver, mapserver or qgis, case-insensitive" default:"mapserver"`
	OGCType       OGCType       `json:"ogcType,omitempty" yaml:"ogcType,omitempty" toml:"ogcType,omitempty" doc:"Imagery protocol: WMS or WMTS, case-insensitive" default:"WMS"`

	Snappable         bool     `json:"snappable,omitempty" yaml:"snappable,omitempty" toml:"snappable,omitempty" doc:"Edited features may snap to this data source"`
	SnappingToEdges   *bool    `json:"snappingToEdges,omitempty" yaml:"snappingToEdges,omitempty" toml:"snappingToEdges,omitempty" doc:"Snap to edges (default true)"`
	SnappingToVertice *bool    `json:"snappingToVertice,omitempty" yaml:"snappingToVertice,omitempty" toml:"snappingToVertice,omitempty" doc:"Snap to vertices (default true)"`
	SnappingTolerance *float64 `json:"snappingTolerance,omitempty" yaml:"snappingTolerance,omitempty" toml:"snappingTolerance,omitempty" doc:"Snapping tolerance in pixels (default 10)"`

	WFSFeatureNS     string `json:"wfsFeatureNS,omitempty" yaml:"wfsFeatureNS,omitempty" toml:"wfsFeatureNS,omitempty" doc:"WFS feature namespace"`
	WFSFeaturePrefix string `json:"wfsFeaturePrefix,omitempty" yaml:"wfsFeaturePrefix,omitempty" toml:"wfsFeaturePrefix,omitempty" doc:"WFS feature prefix" default:"feature"`
	WFSOutputFormat  string `json:"wfsOutputFormat,omitempty" yaml:"wfsOutputFormat,omitempty" toml:"wfsOutputFormat,omitempty" doc:"WFS output format" default:"GML3"`
	WFSURL           string `json:"wfsUrl,omitempty" yaml:"wfsUrl,omitempty" toml:"wfsUrl,omitempty" doc:"WFS endpoint" example:"https://example.com/wfs"`

	WMSInfoFormat   string `json:"wmsInfoFormat,omitempty" yaml:"wmsInfoFormat,omitempty" toml:"wmsInfoFormat,omitempty" doc:"WMS GetFeatureInfo format" default:"application/vnd.ogc.gml"`
	WMSIsSingleTile bool   `json:"wmsIsSingleTile,omitempty" yaml:"wmsIsSingleTile,omitempty" toml:"wmsIsSingleTile,omitempty" doc:"Request WMS images as a single tile"`
	WMSURL          string `json:"wmsUrl,omitempty" yaml:"wmsUrl,omitempty" toml:"wmsUrl,omitempty" doc:"WMS endpoint" example:"https://example.com/wms"`

	WMTSLayer string `json:"wmtsLayer,omitempty" yaml:"wmtsLayer,omitempty" toml:"wmtsLayer,omitempty" doc:"WMTS layer name"`
	WMTSURL   string `json:"wmtsUrl,omitempty" yaml:"wmtsUrl,omitempty" toml:"wmtsUrl,omitempty" doc:"WMTS capabilities url"`
}

// Props is the resolved, immutable part of a data source.
type Props struct {
	ID                  int           `json:"id"`
	Name                string        `json:"name"`
	Copyable            bool          `json:"copyable"`
	GeometryName        string        `json:"geometryName"`
	IdentifierAttribute *string       `json:"identifierAttribute,omitempty"`
	MaxResolution       *float64      `json:"maxResolution,omitempty"`
	MinResolution       *float64      `json:"minResolution,omitempty"`
	OGCImageType        string        `json:"ogcImageType"`
	OGCLayers           []OGCLayer    `json:"ogcLayers,omitempty"`
	OGCServerType       OGCServerType `json:"ogcServerType"`
	OGCType             OGCType       `json:"ogcType"`
	Snappable           bool          `json:"snappable"`
	SnappingToEdges     bool          `json:"snappingToEdges"`
	SnappingToVertice   bool          `json:"snappingToVertice"`
	SnappingTolerance   float64       `json:"snappingTolerance"`
	WFSFeatureNS        string        `json:"wfsFeatureNS"`
	WFSFeaturePrefix    string        `json:"wfsFeaturePrefix"`
	WFSOutputFormat     string        `json:"wfsOutputFormat"`
	WFSURL              *string       `json:"wfsUrl,omitempty"`
	WMSInfoFormat       string        `json:"wmsInfoFormat"`
	WMSIsSingleTile     bool          `json:"wmsIsSingleTile"`
	WMSURL              *string       `json:"wmsUrl,omitempty"`
	WMTSLayer           *string       `json:"wmtsLayer,omitempty"`
	WMTSURL             *string       `json:"wmtsUrl,omitempty"`
}

func (p Props) clone() Props {
	if p.OGCLayers != nil {
		layers := make([]OGCLayer, len(p.OGCLayers))
		copy(layers, p.OGCLayers)
		p.OGCLayers = layers
	}
	return p
}

func resolve(o Options) (Props, error) {
	if o.ID == nil {
		return Props{}, fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(o.Name) == "" {
		return Props{}, fmt.Errorf("%w: name is required (id %d)", ErrInvalidConfig, *o.ID)
	}

	serverType := OGCServerType(strings.ToLower(string(o.OGCServerType)))
	if serverType == "" {
		serverType = OGCServerTypeMapServer
	}
	if !serverType.Valid() {
		return Props{}, fmt.Errorf("%w: unknown ogcServerType %q", ErrInvalidConfig, serverType)
	}
	ogcType := OGCType(strings.ToUpper(string(o.OGCType)))
	if ogcType == "" {
		ogcType = OGCTypeWMS
	}
	if !ogcType.Valid() {
		return Props{}, fmt.Errorf("%w: unknown ogcType %q", ErrInvalidConfig, ogcType)
	}

	p := Props{
		ID:                  *o.ID,
		Name:                o.Name,
		Copyable:            o.Copyable,
		GeometryName:        orDefault(o.GeometryName, DefaultGeometryName),
		IdentifierAttribute: optional(o.IdentifierAttribute),
		MaxResolution:       copyFloat(o.MaxResolution),
		MinResolution:       copyFloat(o.MinResolution),
		OGCImageType:        orDefault(o.OGCImageType, DefaultImageType),
		OGCServerType:       serverType,
		OGCType:             ogcType,
		Snappable:           o.Snappable,
		SnappingToEdges:     o.SnappingToEdges == nil || *o.SnappingToEdges,
		SnappingToVertice:   o.SnappingToVertice == nil || *o.SnappingToVertice,
		SnappingTolerance:   DefaultSnappingTolerance,
		WFSFeatureNS:        orDefault(o.WFSFeatureNS, WFSFeatureNSMapServer),
		WFSFeaturePrefix:    orDefault(o.WFSFeaturePrefix, WFSFeaturePrefixFeature),
		WFSOutputFormat:     orDefault(o.WFSOutputFormat, WFSOutputFormatGML3),
		WFSURL:              optional(o.WFSURL),
		WMSInfoFormat:       orDefault(o.WMSInfoFormat, WMSInfoFormatGML),
		WMSIsSingleTile:     o.WMSIsSingleTile,
		WMSURL:              optional(o.WMSURL),
		WMTSLayer:           optional(o.WMTSLayer),
		WMTSURL:             optional(o.WMTSURL),
	}
	if o.SnappingTolerance != nil {
		p.SnappingTolerance = *o.SnappingTolerance
	}
	if o.OGCLayers != nil {
		p.OGCLayers = make([]OGCLayer, len(o.OGCLayers))
		for i, l := range o.OGCLayers {
			l.MinResolution = copyFloat(l.MinResolution)
			l.MaxResolution = copyFloat(l.MaxResolution)
			p.OGCLayers[i] = l
		}
	}
	return p, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
