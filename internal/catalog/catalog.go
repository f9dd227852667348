// Package catalog loads the data sources and background layers a server
// starts with. Catalogs are YAML, TOML or JSON documents; unknown keys are
// rejected in every format.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-ogc/internal/datasource"
	"github.com/joeblew999/plat-ogc/internal/service"
)

// Format is a catalog serialization.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown catalog format")

// Catalog is the content of a catalog file.
type Catalog struct {
	DataSources      []datasource.Options               `json:"dataSources" yaml:"dataSources" toml:"dataSources"`
	BackgroundLayers map[string]service.BackgroundLayer `json:"backgroundLayers,omitempty" yaml:"backgroundLayers,omitempty" toml:"backgroundLayers,omitempty"`
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads, decodes and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := Build(c, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode reads a catalog in the given format without validating it.
func Decode(r io.Reader, format Format) (*Catalog, error) {
	var c Catalog
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&c)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("decode toml: unknown keys %s", strings.Join(keys, ", "))
		}
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &c, nil
}

// Build constructs every data source of c with b. The first invalid entry
// fails the whole catalog, identified by its position.
func Build(c *Catalog, b datasource.FormatBuilder) ([]*datasource.DataSource, error) {
	out := make([]*datasource.DataSource, 0, len(c.DataSources))
	seen := make(map[int]int, len(c.DataSources))
	for i, o := range c.DataSources {
		ds, err := datasource.New(o, b)
		if err != nil {
			return nil, fmt.Errorf("dataSources[%d]: %w", i, err)
		}
		if first, dup := seen[ds.ID()]; dup {
			return nil, fmt.Errorf("dataSources[%d]: id %d already used by dataSources[%d]: %w",
				i, ds.ID(), first, datasource.ErrInvalidConfig)
		}
		seen[ds.ID()] = i
		out = append(out, ds)
	}
	return out, nil
}

// Seed registers the catalog content with the services.
func Seed(c *Catalog, ds *service.DataSourceService, bg *service.BackgroundLayerService) error {
	if err := ds.Register(c.DataSources...); err != nil {
		return err
	}
	maps := make([]string, 0, len(c.BackgroundLayers))
	for id := range c.BackgroundLayers {
		maps = append(maps, id)
	}
	sort.Strings(maps)
	for _, id := range maps {
		l := c.BackgroundLayers[id]
		if _, err := bg.Set(id, &l); err != nil {
			return fmt.Errorf("backgroundLayers[%s]: %w", id, err)
		}
	}
	return nil
}
