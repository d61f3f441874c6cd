// Package render draws the watershed scene into the terminal as either a
// planar Web-Mercator map or a perspective globe. Both expose the same
// Renderer surface so the drawer and the app treat them alike.
package render

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"shedmap/internal/draw"
	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
)

type ViewMode int

const (
	View2D ViewMode = iota
	View3D
)

func (v ViewMode) String() string {
	if v == View3D {
		return "3D"
	}
	return "2D"
}

func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2d", "":
		return View2D, nil
	case "3d":
		return View3D, nil
	}
	return View2D, fmt.Errorf("unknown view mode %q", s)
}

// Renderer is one mounted map view.
type Renderer interface {
	draw.Surface

	Mode() ViewMode
	Resize(w, h int)
	// Drag pans (2D) or rotates (3D) by a cell delta; refused while
	// gestures are locked by a drawing session.
	Drag(dx, dy int) bool
	Zoom(steps int)
	Center() orb.Point
	SetCenter(p orb.Point)
	ZoomLevel() float64

	SetRect(r *geom.BBox)
	SetHeatmap(g *geom.Grid, mode heatmap.Mode)
	// Hit returns the hover label of the feature under a cell.
	Hit(x, y int) (string, bool)

	Render() string
	// Close destroys every entity the renderer owns.
	Close()
	Entities() int
	Count(prefix string) int
	GesturesLocked() bool
}

// Tilter is implemented by views with a camera pitch.
type Tilter interface {
	Tilt(deltaDeg float64)
	PitchDeg() float64
}

// Options carry the camera and globe settings from configuration.
type Options struct {
	Center    orb.Point
	Zoom      float64
	PitchDeg  float64
	FovDeg    float64
	Ellipsoid Ellipsoid
	Logger    *slog.Logger
}

// New mounts a renderer for the view mode.
func New(mode ViewMode, opts Options) Renderer {
	if mode == View3D {
		return NewGlobe(opts)
	}
	return NewPlanar(opts)
}
