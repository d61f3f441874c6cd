// Package draw implements the rectangle-drawing interaction shared by the
// planar map and the globe. A renderer supplies a Surface that resolves
// screen cells to geographic coordinates and owns the preview shape; the
// Drawer holds the transition logic.
package draw

import (
	"log/slog"

	"github.com/paulmach/orb"

	"shedmap/internal/geom"
)

// Handle identifies a renderer-owned visual entity.
type Handle uint64

// Surface is what a renderer exposes to the drawer.
type Surface interface {
	// Locate resolves a screen cell to lon/lat. ok is false when the
	// point misses the surface (sky around a tilted globe).
	Locate(x, y int) (orb.Point, bool)
	// LockGestures disables (true) or restores (false) pan and rotate.
	LockGestures(lock bool)
	AddPreview(b geom.BBox) Handle
	UpdatePreview(h Handle, b geom.BBox)
	RemovePreview(h Handle)
}

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Drawer turns pointer down/move/up into at most one committed rectangle
// per drag.
type Drawer struct {
	surface  Surface
	onCommit func(geom.BBox)
	minSize  float64
	log      *slog.Logger

	enabled bool
	state   State
	anchor  orb.Point
	current geom.BBox
	preview Handle
	hasPrev bool
}

type Option func(*Drawer)

// WithMinExtent overrides geom.MinExtent.
func WithMinExtent(eps float64) Option {
	return func(d *Drawer) { d.minSize = eps }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Drawer) { d.log = l }
}

// New returns a disabled drawer. onCommit may be nil.
func New(s Surface, onCommit func(geom.BBox), opts ...Option) *Drawer {
	d := &Drawer{surface: s, onCommit: onCommit, minSize: geom.MinExtent, log: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Drawer) Enabled() bool { return d.enabled }
func (d *Drawer) State() State  { return d.state }

// Preview returns the live rectangle while dragging.
func (d *Drawer) Preview() (geom.BBox, bool) {
	return d.current, d.state == Dragging
}

// Enable attaches the drawer to pointer input.
func (d *Drawer) Enable() { d.enabled = true }

// Disable detaches the drawer, cancelling any drag without committing.
func (d *Drawer) Disable() {
	d.Cancel()
	d.enabled = false
}

// Close releases everything the drawer holds; the drawer is unusable after.
func (d *Drawer) Close() {
	d.Disable()
	d.onCommit = nil
}

// Cancel ends a live drag without committing.
func (d *Drawer) Cancel() {
	if d.state == Dragging {
		d.log.Debug("draw cancelled")
	}
	d.end()
}

// Down starts a drag. A down while already dragging restarts from the
// new anchor. Returns false when the event was ignored.
func (d *Drawer) Down(x, y int) bool {
	if !d.enabled {
		return false
	}
	p, ok := d.surface.Locate(x, y)
	if !ok {
		return false
	}
	if d.state == Dragging {
		d.log.Debug("draw restarted without release")
		d.end()
	}
	d.state = Dragging
	d.anchor = p
	d.current = geom.FromCorners(p, p)
	d.surface.LockGestures(true)
	d.preview = d.surface.AddPreview(d.current)
	d.hasPrev = true
	return true
}

// Move updates the preview in place.
func (d *Drawer) Move(x, y int) bool {
	if d.state != Dragging {
		return false
	}
	p, ok := d.surface.Locate(x, y)
	if !ok {
		return false
	}
	d.current = geom.FromCorners(d.anchor, p)
	if d.hasPrev {
		d.surface.UpdatePreview(d.preview, d.current)
	}
	return true
}

// Up finishes the drag. The rectangle is committed only when it exceeds
// the minimum extent; the preview and gesture lock are released either
// way, even if the commit callback panics. A failed pick leaves the drag
// running.
func (d *Drawer) Up(x, y int) (geom.BBox, bool) {
	if d.state != Dragging {
		return geom.BBox{}, false
	}
	p, ok := d.surface.Locate(x, y)
	if !ok {
		return geom.BBox{}, false
	}
	defer d.end()

	final := geom.FromCorners(d.anchor, p)
	if !final.IsSignificant(d.minSize) {
		d.log.Debug("draw discarded below minimum extent", "bbox", final.String())
		return geom.BBox{}, false
	}
	d.log.Info("rectangle committed", "bbox", final.String())
	if d.onCommit != nil {
		d.onCommit(final)
	}
	return final, true
}

func (d *Drawer) end() {
	if d.hasPrev {
		d.surface.RemovePreview(d.preview)
		d.hasPrev = false
	}
	if d.state == Dragging {
		d.surface.LockGestures(false)
	}
	d.state = Idle
	d.anchor = orb.Point{}
	d.current = geom.BBox{}
}
