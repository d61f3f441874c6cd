package render

import (
	"math"

	"github.com/paulmach/orb"

	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
)

const (
	tileSize   = 256.0 // micro-pixels per world at zoom 0
	maxLat     = 85.05112878
	minZoom    = 0.0
	maxZoom    = 19.0
	zoomStep   = 0.5
	microPerCX = 2
	microPerCY = 4
)

var planarPalette = palette{
	background: mustHex("#0b0f14"),
	graticule:  mustHex("#243141"),
	preview: look{
		fill:      mustHex("#3388ff"),
		fillAlpha: 0.2,
		stroke:    mustHex("#3388ff"),
		outline:   true,
	},
	rect: look{
		fill:      mustHex("#0066cc"),
		fillAlpha: 0.1,
		stroke:    mustHex("#0066cc"),
		outline:   true,
		dashed:    true,
	},
	cell: func(st heatmap.Style) look {
		fill, stroke := fromRGBA(st)
		// hairline strokes vanish at terminal resolution
		return look{fill: fill, fillAlpha: st.FillOpacity, stroke: stroke, outline: st.StrokeWeight >= 1}
	},
}

// Planar is the 2D Web-Mercator map. Pan and zoom move the center; the
// drawer's gesture lock disables pan.
type Planar struct {
	layers
	w, h   int
	center orb.Point
	zoom   float64
}

func NewPlanar(opts Options) *Planar {
	p := &Planar{layers: newLayers(planarPalette, opts.Logger), center: clampPoint(opts.Center)}
	p.zoom = clampf(opts.Zoom, minZoom, maxZoom)
	return p
}

func (p *Planar) Mode() ViewMode        { return View2D }
func (p *Planar) Resize(w, h int)       { p.w, p.h = w, h }
func (p *Planar) Center() orb.Point     { return p.center }
func (p *Planar) ZoomLevel() float64    { return p.zoom }
func (p *Planar) SetCenter(c orb.Point) { p.center = clampPoint(c) }

func (p *Planar) Zoom(steps int) {
	p.zoom = clampf(p.zoom+float64(steps)*zoomStep, minZoom, maxZoom)
}

func (p *Planar) Drag(dx, dy int) bool {
	if p.locked {
		return false
	}
	wm, hm := p.micro()
	p.center = p.unproject(wm/2-float64(dx*microPerCX), hm/2-float64(dy*microPerCY))
	return true
}

func (p *Planar) micro() (float64, float64) {
	return float64(p.w * microPerCX), float64(p.h * microPerCY)
}

func (p *Planar) worldSize() float64 { return tileSize * math.Pow(2, p.zoom) }

// mercator returns normalized world coords in [0,1].
func mercator(pt orb.Point) (float64, float64) {
	lat := clampf(pt[1], -maxLat, maxLat) * math.Pi / 180
	x := (pt[0] + 180) / 360
	y := (1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2
	return x, y
}

func inverseMercator(x, y float64) orb.Point {
	lon := x*360 - 180
	n := math.Pi * (1 - 2*y)
	lat := math.Atan(math.Sinh(n)) * 180 / math.Pi
	return orb.Point{lon, lat}
}

func (p *Planar) project(pt orb.Point) (float64, float64, bool) {
	wm, hm := p.micro()
	cx, cy := mercator(p.center)
	x, y := mercator(pt)
	s := p.worldSize()
	return (x-cx)*s + wm/2, (y-cy)*s + hm/2, true
}

func (p *Planar) unproject(mx, my float64) orb.Point {
	wm, hm := p.micro()
	cx, cy := mercator(p.center)
	s := p.worldSize()
	x := clampf(cx+(mx-wm/2)/s, 0, 1)
	y := clampf(cy+(my-hm/2)/s, 0, 1)
	return inverseMercator(x, y)
}

// Locate resolves the center of a cell. The plane is unbounded, so the
// pick only fails before the first resize.
func (p *Planar) Locate(x, y int) (orb.Point, bool) {
	if p.w <= 0 || p.h <= 0 {
		return orb.Point{}, false
	}
	return p.unproject(float64(x*microPerCX)+1, float64(y*microPerCY)+2), true
}

func (p *Planar) Hit(x, y int) (string, bool) {
	pt, ok := p.Locate(x, y)
	if !ok {
		return "", false
	}
	return p.hit(pt)
}

// visible is the lon/lat extent of the viewport.
func (p *Planar) visible() geom.BBox {
	a, _ := p.Locate(0, 0)
	b, _ := p.Locate(p.w-1, p.h-1)
	return geom.FromCorners(a, b)
}

func (p *Planar) Render() string {
	if p.w <= 0 || p.h <= 0 {
		return ""
	}
	c := NewCanvas(p.w, p.h, p.pal.background)
	view := p.visible()
	graticule(c, view, p.project, p.pal.graticule, 1)
	p.paint(c, view.Bound(), p.Locate, p.project, 1)
	return c.String()
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPoint(c orb.Point) orb.Point {
	return orb.Point{clampf(c[0], -180, 180), clampf(c[1], -maxLat, maxLat)}
}
