// Package datasource models a single geospatial data source that may be served
// by WMS, WMTS and WFS endpoints at the same time.
//
// A DataSource is built once from Options. Its static properties never change;
// only the in-range and visibility flags are mutated afterwards, by whatever
// keeps the data source synchronized with a map view. A DataSource does no
// locking of its own: callers sharing one across goroutines must guard the
// mutable flags themselves.
package datasource

import "errors"

// ErrInvalidConfig is wrapped by every error New returns.
var ErrInvalidConfig = errors.New("invalid data source configuration")

// FormatBuilder builds the request formats a queryable data source caches.
// Results are opaque to this package.
type FormatBuilder interface {
	WFSFormat(featureNS string, featureTypes []string) any
	WMSGetFeatureInfoFormat(layers []string) any
}

// DataSource is one logical dataset and the OGC services that expose it.
type DataSource struct {
	props Props

	inRange bool
	visible bool

	queryableLayers []string
	wfsFormat       any
	wmsFormat       any
}

// New resolves opts and computes the cached request formats with b.
// A nil builder leaves both formats unset.
func New(opts Options, b FormatBuilder) (*DataSource, error) {
	props, err := resolve(opts)
	if err != nil {
		return nil, err
	}

	ds := &DataSource{
		props:   props,
		inRange: opts.InRange == nil || *opts.InRange,
		visible: opts.Visible,
	}

	// queryability is a data-source wide gate: a source that is not
	// queryable exposes no layer names even if some layers are flagged
	layers := []string{}
	if ds.Queryable() {
		for _, l := range props.OGCLayers {
			if l.Queryable {
				layers = append(layers, l.Name)
			}
		}
	}
	ds.queryableLayers = layers

	if b != nil && len(layers) > 0 {
		if ds.SupportsWFS() {
			ds.wfsFormat = b.WFSFormat(props.WFSFeatureNS, cloneStrings(layers))
		}
		// only GML is understood for GetFeatureInfo responses
		if ds.SupportsWMS() && props.WMSInfoFormat == WMSInfoFormatGML {
			ds.wmsFormat = b.WMSGetFeatureInfoFormat(cloneStrings(layers))
		}
	}
	return ds, nil
}

func (ds *DataSource) ID() int { return ds.props.ID }

func (ds *DataSource) Name() string { return ds.props.Name }

// Props returns a copy of the static properties.
func (ds *DataSource) Props() Props { return ds.props.clone() }

// InRange reports whether the data source is within the resolution bounds of
// the view it is synchronized with. It is true unless configured otherwise.
func (ds *DataSource) InRange() bool { return ds.inRange }

func (ds *DataSource) SetInRange(v bool) { ds.inRange = v }

func (ds *DataSource) Visible() bool { return ds.visible }

func (ds *DataSource) SetVisible(v bool) { ds.visible = v }

func (ds *DataSource) SupportsWFS() bool { return ds.props.WFSURL != nil }

func (ds *DataSource) SupportsWMS() bool { return ds.props.WMSURL != nil }

func (ds *DataSource) SupportsWMTS() bool { return ds.props.WMTSURL != nil }

// SupportsDynamicInRange reports whether the in-range flag can be computed
// from a view resolution, i.e. whether any resolution bound is set.
func (ds *DataSource) SupportsDynamicInRange() bool {
	return ds.props.MaxResolution != nil || ds.props.MinResolution != nil
}

// Queryable requires WMS or WFS support and at least one queryable OGC layer.
func (ds *DataSource) Queryable() bool {
	if !ds.SupportsWMS() && !ds.SupportsWFS() {
		return false
	}
	for _, l := range ds.props.OGCLayers {
		if l.Queryable {
			return true
		}
	}
	return false
}

// CombinableForWFS always holds for now; finer rules may come later.
func (ds *DataSource) CombinableForWFS() bool { return true }

// CombinableForWMS always holds for now; finer rules may come later.
func (ds *DataSource) CombinableForWMS() bool { return true }

// CombinableWithDataSourceForWFS reports whether ds and other can be fetched
// with a single WFS request. Urls must match exactly.
func (ds *DataSource) CombinableWithDataSourceForWFS(other *DataSource) bool {
	if other == nil {
		return false
	}
	return ds.CombinableForWFS() && other.CombinableForWFS() &&
		ds.SupportsWFS() && other.SupportsWFS() &&
		ds.Queryable() && other.Queryable() &&
		*ds.props.WFSURL == *other.props.WFSURL
}

// CombinableWithDataSourceForWMS reports whether ds and other can be fetched
// with a single WMS request. Urls must match exactly.
func (ds *DataSource) CombinableWithDataSourceForWMS(other *DataSource) bool {
	if other == nil {
		return false
	}
	return ds.CombinableForWMS() && other.CombinableForWMS() &&
		ds.SupportsWMS() && other.SupportsWMS() &&
		ds.Queryable() && other.Queryable() &&
		*ds.props.WMSURL == *other.props.WMSURL
}

// InRangeOGCLayerNames returns, in configuration order, the names of the OGC
// layers whose bounds contain res. With queryableOnly set, non queryable
// layers are skipped. The result is never nil.
func (ds *DataSource) InRangeOGCLayerNames(res float64, queryableOnly bool) []string {
	names := []string{}
	for _, l := range ds.props.OGCLayers {
		if !l.InRange(res) {
			continue
		}
		if queryableOnly && !l.Queryable {
			continue
		}
		names = append(names, l.Name)
	}
	return names
}

// IsAnyOGCLayerInRange reports whether InRangeOGCLayerNames would be non-empty.
func (ds *DataSource) IsAnyOGCLayerInRange(res float64, queryableOnly bool) bool {
	return len(ds.InRangeOGCLayerNames(res, queryableOnly)) > 0
}

// QueryableOGCLayerNames returns the layer names the cached formats were built with.
func (ds *DataSource) QueryableOGCLayerNames() []string {
	return cloneStrings(ds.queryableLayers)
}

// WFSFormat returns the cached WFS format, or nil.
func (ds *DataSource) WFSFormat() any { return ds.wfsFormat }

// WMSFormat returns the cached WMS GetFeatureInfo format, or nil.
func (ds *DataSource) WMSFormat() any { return ds.wmsFormat }

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
