package render

import (
	"fmt"
	"log/slog"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"shedmap/internal/draw"
	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
)

// look is the renderer-native form of a style.
type look struct {
	fill      colorful.Color
	fillAlpha float64
	stroke    colorful.Color
	outline   bool
	dashed    bool
}

type palette struct {
	background colorful.Color
	graticule  colorful.Color
	preview    look
	rect       look
	// cell converts a heatmap style into this renderer's look.
	cell func(heatmap.Style) look
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func fromRGBA(st heatmap.Style) (colorful.Color, colorful.Color) {
	fill, _ := colorful.MakeColor(st.FillColor)
	stroke, _ := colorful.MakeColor(st.StrokeColor)
	return fill, stroke
}

// layers is the entity bookkeeping both renderers share: the preview
// shape lent to the drawer, the committed rectangle and the heatmap.
type layers struct {
	store  *Store
	pal    palette
	locked bool
	log    *slog.Logger
}

func newLayers(pal palette, log *slog.Logger) layers {
	if log == nil {
		log = slog.Default()
	}
	return layers{store: NewStore(), pal: pal, log: log}
}

func (l *layers) LockGestures(lock bool) { l.locked = lock }
func (l *layers) GesturesLocked() bool   { return l.locked }

func (l *layers) AddPreview(b geom.BBox) draw.Handle {
	return l.store.Add(&Entity{
		Tag:   tagPreview,
		Kind:  KindPreview,
		Polys: []orb.Polygon{b.Polygon()},
		Bound: b.Bound(),
		Look:  l.pal.preview,
	})
}

func (l *layers) UpdatePreview(h draw.Handle, b geom.BBox) {
	e, ok := l.store.Get(h)
	if !ok {
		return
	}
	e.Polys[0] = b.Polygon()
	e.Bound = b.Bound()
}

func (l *layers) RemovePreview(h draw.Handle) { l.store.Remove(h) }

// SetRect replaces the committed-rectangle echo; nil removes it.
func (l *layers) SetRect(r *geom.BBox) {
	l.store.RemovePrefix(tagRect)
	if r == nil {
		return
	}
	l.store.Add(&Entity{
		Tag:   tagRect,
		Kind:  KindRect,
		Polys: []orb.Polygon{r.Polygon()},
		Bound: r.Bound(),
		Look:  l.pal.rect,
	})
}

// SetHeatmap replaces every heatmap cell; nil clears them. Features
// without areal geometry are skipped, features without properties are
// drawn with the fallback style.
func (l *layers) SetHeatmap(g *geom.Grid, mode heatmap.Mode) {
	removed := l.store.RemovePrefix(tagHeatmap)
	if g.Len() == 0 {
		if removed > 0 {
			l.log.Debug("heatmap cleared", "removed", removed)
		}
		return
	}
	added := 0
	for i, f := range g.Features.Features {
		if f.Geometry == nil {
			continue
		}
		polys := geom.Polygons(f.Geometry)
		if len(polys) == 0 {
			continue
		}
		l.store.Add(&Entity{
			Tag:   fmt.Sprintf("%s%d", tagHeatmap, i),
			Kind:  KindCell,
			Polys: polys,
			Bound: f.Geometry.Bound(),
			Look:  l.pal.cell(heatmap.StyleFor(f, mode)),
			Label: heatmap.Label(f),
		})
		added++
	}
	l.log.Debug("heatmap rebuilt", "removed", removed, "added", added, "mode", mode.String())
}

// Close destroys every entity and releases the gesture lock.
func (l *layers) Close() {
	l.store.Clear()
	l.locked = false
}

func (l *layers) Entities() int { return l.store.Len() }

// Count reports entities whose tag starts with prefix.
func (l *layers) Count(prefix string) int { return l.store.Count(prefix) }

// hit returns the label of the topmost labelled entity under p.
func (l *layers) hit(p orb.Point) (string, bool) {
	label, found := "", false
	l.store.Each(func(_ draw.Handle, e *Entity) {
		if e.Label != "" && e.contains(p) {
			label, found = e.Label, true
		}
	})
	return label, found
}

// paint draws fills by picking every cell center and outlines by
// projecting ring vertices. Entities outside view are skipped. segments
// subdivides each edge so long edges follow the surface on the globe.
func (l *layers) paint(c *Canvas, view orb.Bound, locate func(x, y int) (orb.Point, bool), project func(orb.Point) (float64, float64, bool), segments int) {
	var fills, outlines []*Entity
	l.store.Each(func(_ draw.Handle, e *Entity) {
		if !e.Bound.Intersects(view) {
			return
		}
		if e.Look.fillAlpha > 0 {
			fills = append(fills, e)
		}
		if e.Look.outline {
			outlines = append(outlines, e)
		}
	})
	if len(fills) > 0 {
		for cy := 0; cy < c.h; cy++ {
			for cx := 0; cx < c.w; cx++ {
				p, ok := locate(cx, cy)
				if !ok {
					continue
				}
				for _, e := range fills {
					if e.contains(p) {
						c.Fill(cx, cy, e.Look.fill, e.Look.fillAlpha)
					}
				}
			}
		}
	}
	for _, e := range outlines {
		for _, poly := range e.Polys {
			for _, ring := range poly {
				strokeRing(c, ring, project, segments, e.Look)
			}
		}
	}
}

func strokeRing(c *Canvas, ring orb.Ring, project func(orb.Point) (float64, float64, bool), segments int, lk look) {
	if segments < 1 {
		segments = 1
	}
	for i := 0; i+1 < len(ring); i++ {
		a, b := ring[i], ring[i+1]
		px, py, pok := project(a)
		for s := 1; s <= segments; s++ {
			t := float64(s) / float64(segments)
			q := orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
			qx, qy, qok := project(q)
			if pok && qok {
				c.Line(px, py, qx, qy, lk.stroke, lk.dashed)
			}
			px, py, pok = qx, qy, qok
		}
	}
}

// graticule draws meridians and parallels across the visible extent.
func graticule(c *Canvas, view geom.BBox, project func(orb.Point) (float64, float64, bool), col colorful.Color, samples int) {
	span := math.Max(view.Width(), view.Height())
	if span <= 0 {
		return
	}
	step := gridStep(span)
	line := func(a, b orb.Point) {
		px, py, pok := project(a)
		for s := 1; s <= samples; s++ {
			t := float64(s) / float64(samples)
			q := orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
			qx, qy, qok := project(q)
			if pok && qok {
				c.Line(px, py, qx, qy, col, true)
			}
			px, py, pok = qx, qy, qok
		}
	}
	for lon := math.Ceil(view.MinX/step) * step; lon <= view.MaxX; lon += step {
		line(orb.Point{lon, view.MinY}, orb.Point{lon, view.MaxY})
	}
	for lat := math.Ceil(view.MinY/step) * step; lat <= view.MaxY; lat += step {
		line(orb.Point{view.MinX, lat}, orb.Point{view.MaxX, lat})
	}
}

// gridStep picks a round spacing giving roughly four to ten lines.
func gridStep(span float64) float64 {
	steps := []float64{0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 15, 30}
	for _, s := range steps {
		if span/s <= 10 {
			return s
		}
	}
	return 30
}
