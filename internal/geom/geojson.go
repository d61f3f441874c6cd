package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Metadata is the summary block the watershed grid endpoint attaches to a
// response, either as "metadata" or as top-level "properties".
type Metadata struct {
	PointCount   int     `json:"point_count"`
	GridSpacingM float64 `json:"grid_spacing_m"`
	DEMCellSizeM float64 `json:"dem_cell_size_m"`
	MinAreaHa    float64 `json:"min_area_ha"`
	MaxAreaHa    float64 `json:"max_area_ha"`
	MinTcMin     float64 `json:"min_tc_min"`
	MaxTcMin     float64 `json:"max_tc_min"`
}

// Grid is a decoded watershed grid: one polygon feature per cell.
type Grid struct {
	Features    *geojson.FeatureCollection
	Metadata    Metadata
	HasMetadata bool
}

// ParseGrid decodes a watershed grid feature collection.
func ParseGrid(data []byte) (*Grid, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	var env struct {
		Metadata   json.RawMessage `json:"metadata"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	g := &Grid{Features: fc}
	raw := env.Metadata
	if isNullJSON(raw) {
		raw = env.Properties
	}
	if !isNullJSON(raw) {
		if err := json.Unmarshal(raw, &g.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		g.HasMetadata = true
	}
	return g, nil
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// LoadGrid reads a saved grid response from disk.
func LoadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	g, err := ParseGrid(data)
	if err != nil {
		return nil, err
	}
	if g.Len() == 0 {
		return nil, errors.New("no features found")
	}
	return g, nil
}

func (g *Grid) Len() int {
	if g == nil || g.Features == nil {
		return 0
	}
	return len(g.Features.Features)
}

// BBox is the extent of every feature geometry; ok is false for an empty grid.
func (g *Grid) BBox() (BBox, bool) {
	if g.Len() == 0 {
		return BBox{}, false
	}
	var b orb.Bound
	first := true
	for _, f := range g.Features.Features {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if first {
			b = fb
			first = false
			continue
		}
		b = b.Union(fb)
	}
	if first {
		return BBox{}, false
	}
	return FromBound(b), true
}

// Float reads a numeric property. Missing keys, JSON null and a nil
// property map all report ok=false.
func Float(props geojson.Properties, key string) (float64, bool) {
	if props == nil {
		return 0, false
	}
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Polygons flattens a feature geometry into the polygons it draws.
// Non-areal geometries yield nothing.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch t := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{t}
	case orb.MultiPolygon:
		return []orb.Polygon(t)
	case orb.Bound:
		return []orb.Polygon{t.ToPolygon()}
	}
	return nil
}
