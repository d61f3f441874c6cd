package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MinExtent is the smallest lon/lat extent, in degrees (~10 m), for a drawn
// rectangle to count as a drag rather than a stray click.
const MinExtent = 0.0001

// BBox is an axis-aligned rectangle in WGS84 degrees (X = lon, Y = lat).
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// FromCorners normalizes two arbitrary corners into a BBox.
func FromCorners(a, b orb.Point) BBox {
	return BBox{
		MinX: math.Min(a[0], b[0]),
		MinY: math.Min(a[1], b[1]),
		MaxX: math.Max(a[0], b[0]),
		MaxY: math.Max(a[1], b[1]),
	}
}

// FromBound converts an orb bound.
func FromBound(b orb.Bound) BBox {
	return FromCorners(b.Min, b.Max)
}

// IsSignificant reports whether both extents are strictly greater than eps.
func (b BBox) IsSignificant(eps float64) bool {
	return b.MaxX-b.MinX > eps && b.MaxY-b.MinY > eps
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

func (b BBox) Center() orb.Point {
	return orb.Point{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// Ring returns the closed 5-point ring, counter-clockwise from the SW corner.
func (b BBox) Ring() orb.Ring {
	return orb.Ring{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}
}

func (b BBox) Polygon() orb.Polygon { return orb.Polygon{b.Ring()} }

// Feature wraps the rectangle as a GeoJSON polygon feature with empty properties.
func (b BBox) Feature() *geojson.Feature {
	return geojson.NewFeature(b.Polygon())
}

func (b BBox) String() string {
	return fmt.Sprintf("[%.5f, %.5f, %.5f, %.5f]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

var (
	ErrNotFinite   = errors.New("coordinate is not a finite number")
	ErrOutOfRange  = errors.New("coordinate out of range")
	ErrEmptyExtent = errors.New("extent below minimum size")
)

// ValidateCoord rejects manual-entry coordinates before they reach the map.
func ValidateCoord(lon, lat float64) error {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return ErrNotFinite
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("lat %g: %w", lat, ErrOutOfRange)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("lon %g: %w", lon, ErrOutOfRange)
	}
	return nil
}
