package render

import (
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
)

const (
	minPitch     = -90.0
	maxPitch     = -15.0
	defaultPitch = -45.0
	defaultFov   = 60.0
	baseRange    = 40e6 // camera range at zoom 0, halved per level
	metersPerDeg = 111320.0
)

type vec3 struct{ X, Y, Z float64 }

func (a vec3) add(b vec3) vec3      { return vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a vec3) sub(b vec3) vec3      { return vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a vec3) scale(s float64) vec3 { return vec3{a.X * s, a.Y * s, a.Z * s} }
func (a vec3) dot(b vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a vec3) norm() float64        { return math.Sqrt(a.dot(a)) }
func (a vec3) unit() vec3           { return a.scale(1 / a.norm()) }

// Ellipsoid is an oblate spheroid with semi-axes A (equatorial) and B
// (polar), in meters.
type Ellipsoid struct {
	Name string
	A, B float64
}

var (
	WGS84  = Ellipsoid{Name: "wgs84", A: 6378137, B: 6356752.314245179}
	Sphere = Ellipsoid{Name: "sphere", A: 6371008.8, B: 6371008.8}
)

func ParseEllipsoid(s string) (Ellipsoid, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wgs84", "":
		return WGS84, nil
	case "sphere":
		return Sphere, nil
	}
	return Ellipsoid{}, fmt.Errorf("unknown ellipsoid %q", s)
}

func (e Ellipsoid) e2() float64 { return 1 - (e.B*e.B)/(e.A*e.A) }

// ToECEF converts geodetic lon/lat (degrees) and height (meters).
func (e Ellipsoid) ToECEF(p orb.Point, h float64) vec3 {
	lon, lat := p[0]*math.Pi/180, p[1]*math.Pi/180
	sl, cl := math.Sin(lat), math.Cos(lat)
	n := e.A / math.Sqrt(1-e.e2()*sl*sl)
	return vec3{
		(n + h) * cl * math.Cos(lon),
		(n + h) * cl * math.Sin(lon),
		(n*(1-e.e2()) + h) * sl,
	}
}

// Surface returns the geodetic lon/lat of a point lying on the ellipsoid.
func (e Ellipsoid) Surface(v vec3) orb.Point {
	lon := math.Atan2(v.Y, v.X)
	lat := math.Atan2(v.Z, (1-e.e2())*math.Hypot(v.X, v.Y))
	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}

// Normal is the outward surface normal at a geodetic position.
func (e Ellipsoid) Normal(p orb.Point) vec3 {
	lon, lat := p[0]*math.Pi/180, p[1]*math.Pi/180
	return vec3{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
}

// Intersect returns the first point where the ray meets the ellipsoid.
func (e Ellipsoid) Intersect(origin, dir vec3) (vec3, bool) {
	o := vec3{origin.X / e.A, origin.Y / e.A, origin.Z / e.B}
	d := vec3{dir.X / e.A, dir.Y / e.A, dir.Z / e.B}
	a := d.dot(d)
	b := 2 * o.dot(d)
	c := o.dot(o) - 1
	disc := b*b - 4*a*c
	if a == 0 || disc < 0 {
		return vec3{}, false
	}
	sq := math.Sqrt(disc)
	t := (-b - sq) / (2 * a)
	if t < 0 {
		t = (-b + sq) / (2 * a)
	}
	if t < 0 {
		return vec3{}, false
	}
	return origin.add(dir.scale(t)), true
}

var globePalette = palette{
	background: mustHex("#000000"),
	graticule:  mustHex("#2b4a66"),
	preview: look{
		fill:      mustHex("#00ffff"),
		fillAlpha: 0.3,
		stroke:    mustHex("#00ffff"),
		outline:   true,
	},
	rect: look{
		fill:      mustHex("#00ffff"),
		fillAlpha: 0.1,
		stroke:    mustHex("#00ffff"),
		outline:   true,
	},
	cell: func(st heatmap.Style) look {
		fill, _ := fromRGBA(st)
		return look{
			fill:      fill,
			fillAlpha: st.FillOpacity,
			stroke:    fill.BlendRgb(colorful.Color{}, 0.5),
			outline:   true,
		}
	},
}

var globeSurface = mustHex("#0f2a44")

// Globe is the 3D view: an orbit camera looking at the center point from
// a range set by zoom, tilted by pitch.
type Globe struct {
	layers
	w, h   int
	center orb.Point
	zoom   float64
	pitch  float64
	fov    float64
	ell    Ellipsoid
}

func NewGlobe(opts Options) *Globe {
	g := &Globe{
		layers: newLayers(globePalette, opts.Logger),
		center: clampGlobe(opts.Center),
		zoom:   clampf(opts.Zoom, minZoom, maxZoom),
		pitch:  opts.PitchDeg,
		fov:    opts.FovDeg,
		ell:    opts.Ellipsoid,
	}
	if g.pitch == 0 {
		g.pitch = defaultPitch
	}
	g.pitch = clampf(g.pitch, minPitch, maxPitch)
	if g.fov <= 0 || g.fov >= 180 {
		g.fov = defaultFov
	}
	if g.ell.A <= 0 || g.ell.B <= 0 {
		g.ell = WGS84
	}
	return g
}

func (g *Globe) Mode() ViewMode        { return View3D }
func (g *Globe) Resize(w, h int)       { g.w, g.h = w, h }
func (g *Globe) Center() orb.Point     { return g.center }
func (g *Globe) ZoomLevel() float64    { return g.zoom }
func (g *Globe) PitchDeg() float64     { return g.pitch }
func (g *Globe) SetCenter(c orb.Point) { g.center = clampGlobe(c) }

func (g *Globe) Zoom(steps int) {
	g.zoom = clampf(g.zoom+float64(steps)*zoomStep, minZoom, maxZoom)
}

func (g *Globe) Tilt(delta float64) {
	g.pitch = clampf(g.pitch+delta, minPitch, maxPitch)
}

func (g *Globe) rangeM() float64 { return baseRange / math.Pow(2, g.zoom) }

// Drag rotates the globe under the camera by a cell delta.
func (g *Globe) Drag(dx, dy int) bool {
	if g.locked {
		return false
	}
	_, hm := g.micro()
	if hm == 0 {
		return true
	}
	mpm := 2 * g.rangeM() * math.Tan(g.fov*math.Pi/360) / hm
	degPerM := 1 / metersPerDeg
	cos := math.Max(math.Cos(g.center[1]*math.Pi/180), 0.01)
	lon := g.center[0] - float64(dx*microPerCX)*mpm*degPerM/cos
	lat := g.center[1] + float64(dy*microPerCY)*mpm*degPerM
	g.center = clampGlobe(orb.Point{lon, lat})
	return true
}

func (g *Globe) micro() (float64, float64) {
	return float64(g.w * microPerCX), float64(g.h * microPerCY)
}

type camera struct {
	pos, dir, up, right vec3
	tanHalf, aspect     float64
	wm, hm              float64
}

func (g *Globe) camera() camera {
	lon, lat := g.center[0]*math.Pi/180, g.center[1]*math.Pi/180
	east := vec3{-math.Sin(lon), math.Cos(lon), 0}
	north := vec3{-math.Sin(lat) * math.Cos(lon), -math.Sin(lat) * math.Sin(lon), math.Cos(lat)}
	upN := g.ell.Normal(g.center)
	p := g.pitch * math.Pi / 180
	dir := north.scale(math.Cos(p)).add(upN.scale(math.Sin(p)))
	up := north.scale(-math.Sin(p)).add(upN.scale(math.Cos(p)))
	target := g.ell.ToECEF(g.center, 0)
	wm, hm := g.micro()
	return camera{
		pos:     target.sub(dir.scale(g.rangeM())),
		dir:     dir,
		up:      up,
		right:   east,
		tanHalf: math.Tan(g.fov * math.Pi / 360),
		aspect:  wm / hm,
		wm:      wm,
		hm:      hm,
	}
}

func (cam camera) ray(mx, my float64) vec3 {
	nx := mx/cam.wm*2 - 1
	ny := 1 - my/cam.hm*2
	return cam.dir.
		add(cam.right.scale(nx * cam.tanHalf * cam.aspect)).
		add(cam.up.scale(ny * cam.tanHalf)).unit()
}

func (g *Globe) pick(cam camera, mx, my float64) (orb.Point, bool) {
	hit, ok := g.ell.Intersect(cam.pos, cam.ray(mx, my))
	if !ok {
		return orb.Point{}, false
	}
	return g.ell.Surface(hit), true
}

// Locate casts a ray through the cell center. Cells showing sky fail.
func (g *Globe) Locate(x, y int) (orb.Point, bool) {
	if g.w <= 0 || g.h <= 0 {
		return orb.Point{}, false
	}
	return g.pick(g.camera(), float64(x*microPerCX)+1, float64(y*microPerCY)+2)
}

// project maps a surface point to micro coords; points behind the camera
// or past the horizon are culled.
func (g *Globe) project(cam camera, pt orb.Point) (float64, float64, bool) {
	p := g.ell.ToECEF(pt, 0)
	if cam.pos.sub(p).dot(g.ell.Normal(pt)) <= 0 {
		return 0, 0, false
	}
	v := p.sub(cam.pos)
	z := v.dot(cam.dir)
	if z <= 0 {
		return 0, 0, false
	}
	nx := v.dot(cam.right) / (z * cam.tanHalf * cam.aspect)
	ny := v.dot(cam.up) / (z * cam.tanHalf)
	return (nx + 1) / 2 * cam.wm, (1 - ny) / 2 * cam.hm, true
}

func (g *Globe) Hit(x, y int) (string, bool) {
	pt, ok := g.Locate(x, y)
	if !ok {
		return "", false
	}
	return g.hit(pt)
}

func (g *Globe) Render() string {
	if g.w <= 0 || g.h <= 0 {
		return ""
	}
	cam := g.camera()
	c := NewCanvas(g.w, g.h, g.pal.background)

	// one pick per cell, shared by the surface fill and the layers
	picks := make([]orb.Point, g.w*g.h)
	hits := make([]bool, g.w*g.h)
	var view orb.Bound
	seen := false
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			pt, ok := g.pick(cam, float64(x*microPerCX)+1, float64(y*microPerCY)+2)
			if !ok {
				continue
			}
			picks[y*g.w+x], hits[y*g.w+x] = pt, true
			c.Fill(x, y, globeSurface, 1)
			if !seen {
				view, seen = orb.Bound{Min: pt, Max: pt}, true
				continue
			}
			view = view.Extend(pt)
		}
	}
	if !seen {
		return c.String()
	}
	locate := func(x, y int) (orb.Point, bool) {
		i := y*g.w + x
		return picks[i], hits[i]
	}
	project := func(pt orb.Point) (float64, float64, bool) { return g.project(cam, pt) }

	vb := geom.FromBound(view)
	if vb.Width() > 180 {
		vb = geom.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	}
	graticule(c, vb, project, g.pal.graticule, 16)
	g.paint(c, vb.Bound(), locate, project, 8)
	return c.String()
}

// clampGlobe wraps longitude into [-180, 180] and keeps the camera off
// the poles.
func clampGlobe(c orb.Point) orb.Point {
	lon := c[0]
	if lon < -180 || lon > 180 {
		lon = math.Mod(lon+180, 360)
		if lon < 0 {
			lon += 360
		}
		lon -= 180
	}
	return orb.Point{lon, clampf(c[1], -89, 89)}
}
