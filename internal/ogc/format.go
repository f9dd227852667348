// Package ogc builds the WFS GetFeature and WMS GetFeatureInfo requests a
// queryable data source is able to answer.
package ogc

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

const (
	WFSVersion = "1.1.0"
	WMSVersion = "1.3.0"

	DefaultSRS = "EPSG:3857"
)

var ErrInvalidEndpoint = errors.New("invalid OGC endpoint")

// WFSFormat is the cached WFS reading format of a data source.
type WFSFormat struct {
	FeatureNS    string   `json:"featureNS"`
	FeatureTypes []string `json:"featureTypes"`
}

// WMSGetFeatureInfoFormat is the cached GetFeatureInfo reading format of a
// data source.
type WMSGetFeatureInfoFormat struct {
	Layers []string `json:"layers"`
}

// Builder creates the concrete formats. The zero value is ready to use.
type Builder struct{}

func (Builder) WFSFormat(featureNS string, featureTypes []string) any {
	return &WFSFormat{FeatureNS: featureNS, FeatureTypes: featureTypes}
}

func (Builder) WMSGetFeatureInfoFormat(layers []string) any {
	return &WMSGetFeatureInfoFormat{Layers: layers}
}

// GetFeatureQuery holds the per-request part of a WFS GetFeature call.
type GetFeatureQuery struct {
	FeaturePrefix string
	OutputFormat  string
	SRS           string
	BBox          *orb.Bound
	MaxFeatures   int
	// FeatureTypes narrows the request, e.g. to the layers in range. Empty
	// means every feature type of the format.
	FeatureTypes []string
}

// GetFeatureParams returns the KVP parameters of a GetFeature request.
func (f *WFSFormat) GetFeatureParams(q GetFeatureQuery) (url.Values, error) {
	types := q.FeatureTypes
	if len(types) == 0 {
		types = f.FeatureTypes
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("wfs: no feature types")
	}

	qualified := make([]string, len(types))
	for i, t := range types {
		if q.FeaturePrefix != "" && !strings.Contains(t, ":") {
			t = q.FeaturePrefix + ":" + t
		}
		qualified[i] = t
	}

	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", WFSVersion)
	params.Set("request", "GetFeature")
	params.Set("typeName", strings.Join(qualified, ","))
	if q.OutputFormat != "" {
		params.Set("outputFormat", q.OutputFormat)
	}
	srs := q.SRS
	if srs == "" {
		srs = DefaultSRS
	}
	params.Set("srsName", srs)
	if q.BBox != nil {
		params.Set("bbox", bboxString(*q.BBox)+","+srs)
	}
	if q.MaxFeatures > 0 {
		params.Set("maxFeatures", strconv.Itoa(q.MaxFeatures))
	}
	if q.FeaturePrefix != "" && f.FeatureNS != "" {
		params.Set("namespace", fmt.Sprintf("xmlns(%s=%s)", q.FeaturePrefix, f.FeatureNS))
	}
	return params, nil
}

// GetFeatureInfoQuery holds the per-request part of a WMS GetFeatureInfo call.
// I and J are pixel coordinates within a Width x Height map of BBox.
type GetFeatureInfoQuery struct {
	InfoFormat   string
	CRS          string
	BBox         orb.Bound
	Width        int
	Height       int
	I            int
	J            int
	FeatureCount int
	Layers       []string
}

// GetFeatureInfoParams returns the KVP parameters of a GetFeatureInfo request.
func (f *WMSGetFeatureInfoFormat) GetFeatureInfoParams(q GetFeatureInfoQuery) (url.Values, error) {
	layers := q.Layers
	if len(layers) == 0 {
		layers = f.Layers
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("wms: no layers")
	}
	if q.Width <= 0 || q.Height <= 0 {
		return nil, fmt.Errorf("wms: invalid map size %dx%d", q.Width, q.Height)
	}
	if q.I < 0 || q.I >= q.Width || q.J < 0 || q.J >= q.Height {
		return nil, fmt.Errorf("wms: pixel %d,%d outside %dx%d", q.I, q.J, q.Width, q.Height)
	}

	crs := q.CRS
	if crs == "" {
		crs = DefaultSRS
	}
	joined := strings.Join(layers, ",")

	params := url.Values{}
	params.Set("SERVICE", "WMS")
	params.Set("VERSION", WMSVersion)
	params.Set("REQUEST", "GetFeatureInfo")
	params.Set("LAYERS", joined)
	params.Set("QUERY_LAYERS", joined)
	params.Set("STYLES", "")
	if q.InfoFormat != "" {
		params.Set("INFO_FORMAT", q.InfoFormat)
	}
	params.Set("CRS", crs)
	params.Set("BBOX", bboxString(q.BBox))
	params.Set("WIDTH", strconv.Itoa(q.Width))
	params.Set("HEIGHT", strconv.Itoa(q.Height))
	params.Set("I", strconv.Itoa(q.I))
	params.Set("J", strconv.Itoa(q.J))
	if q.FeatureCount > 0 {
		params.Set("FEATURE_COUNT", strconv.Itoa(q.FeatureCount))
	}
	return params, nil
}

// RequestURL appends params to base, keeping any query string base already
// carries. Keys present in both are overridden by params. base is either an
// absolute URL or a path such as a same-origin proxy ("/mapserv_proxy").
func RequestURL(base string, params url.Values) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, base, err)
	}
	switch {
	case u.Scheme != "" && u.Host == "":
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, base)
	case u.Scheme == "" && u.Host == "" && u.Path == "":
		return "", fmt.Errorf("%w: %q has no path", ErrInvalidEndpoint, base)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func bboxString(b orb.Bound) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return strings.Join([]string{f(b.Min[0]), f(b.Min[1]), f(b.Max[0]), f(b.Max[1])}, ",")
}
