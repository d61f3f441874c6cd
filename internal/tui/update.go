package tui

import (
	"context"
	"fmt"
	"strings"

	list "github.com/charmbracelet/bubbles/list"
	spinner "github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"shedmap/internal/draw"
	"shedmap/internal/geom"
	"shedmap/internal/render"
)

// gridMsg carries a fetch result back with the sequence it was issued
// under.
type gridMsg struct {
	seq  uint64
	grid *geom.Grid
	err  error
}

const tiltStep = 5.0

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case gridMsg:
		return m.applyGrid(msg), nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// If list is visible and filtering, send keys to list and ignore global commands
		if m.showSidebar && m.l.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		if m.input != inputNone {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.invalidate()
			m.drawer.Close()
			m.view.Close()
			return m, tea.Quit
		case "d":
			return m.toggleDraw(), nil
		case "v":
			return m.switchView(), nil
		case "m":
			m.metric = m.metric.Toggle()
			m.view.SetHeatmap(m.grid, m.metric)
			m.status = "metric: " + m.metric.Title()
		case "<", ",":
			return m.setSpacing(m.spacing - m.cfg.Grid.StepM)
		case ">", ".":
			return m.setSpacing(m.spacing + m.cfg.Grid.StepM)
		case "[", "]":
			t, ok := m.view.(render.Tilter)
			if !ok {
				m.status = "tilt is only available in 3D"
				break
			}
			if msg.String() == "[" {
				t.Tilt(-tiltStep)
			} else {
				t.Tilt(tiltStep)
			}
			m.status = fmt.Sprintf("pitch: %.0f°", t.PitchDeg())
		case "+", "=":
			m.view.Zoom(1)
			m.status = fmt.Sprintf("zoom: %.1f", m.view.ZoomLevel())
		case "-", "_":
			m.view.Zoom(-1)
			m.status = fmt.Sprintf("zoom: %.1f", m.view.ZoomLevel())
		case "up":
			m.pan(0, 2)
		case "down":
			m.pan(0, -2)
		case "left":
			m.pan(4, 0)
		case "right":
			m.pan(-4, 0)
		case "g":
			m.openInput(inputGoto, "lat, lon  e.g. 35.2271, -80.8431. Enter to go; Esc to cancel.")
		case "e":
			m.openInput(inputExtent, "Paste WKT extent (POLYGON, LINESTRING, MULTIPOINT) or minx,miny,maxx,maxy. Enter to query; Esc to cancel.")
		case "tab":
			m.showSidebar = !m.showSidebar
			if m.showSidebar {
				m.refreshDir()
			}
			m.resize()
		case "h":
			m.helpVisible = !m.helpVisible
		case "i":
			m.showStats = !m.showStats
			if m.showStats {
				m.showAttrs = false
			}
		case "a":
			m.showAttrs = !m.showAttrs
			if m.showAttrs {
				m.showStats = false
				m.refreshAttrsFromCurrent()
			}
		case "esc":
			if m.drawer.State() == draw.Dragging {
				m.drawer.Cancel()
				m.status = "draw cancelled"
			}
			m.showStats, m.showAttrs = false, false
		case "enter":
			if m.showSidebar {
				if it, ok := m.l.SelectedItem().(fileItem); ok {
					m.loadPath(it.path)
				}
			}
		}
		if m.showAttrs {
			var cmd tea.Cmd
			m.tbl, cmd = m.tbl.Update(msg)
			return m, cmd
		}
	case tea.MouseMsg:
		return m.updateMouse(msg)
	}
	// Pass messages to list when visible
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

// mapHidden reports whether an overlay replaces the map area.
func (m Model) mapHidden() bool {
	return m.showStats || m.showAttrs || m.input != inputNone
}

func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mapHidden() {
		return m, nil
	}
	f := m.layout()
	x, y, inside := f.cell(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			if inside {
				m.view.Zoom(1)
			}
		case tea.MouseButtonWheelDown:
			if inside {
				m.view.Zoom(-1)
			}
		case tea.MouseButtonLeft:
			if !inside {
				break
			}
			if m.drawMode {
				if !m.drawer.Down(x, y) {
					m.status = "nothing to draw on here"
				}
				break
			}
			m.panning, m.panX, m.panY = true, x, y
		}
	case tea.MouseActionMotion:
		if m.drawer.State() == draw.Dragging && msg.Button == tea.MouseButtonLeft {
			m.drawer.Move(x, y)
			if b, ok := m.drawer.Preview(); ok {
				m.status = "drawing " + b.String()
			}
		} else if m.panning && msg.Button == tea.MouseButtonLeft {
			if m.view.Drag(x-m.panX, y-m.panY) {
				m.panX, m.panY = x, y
			}
		}
		m.hover(x, y, inside)
	case tea.MouseActionRelease:
		m.panning = false
		if m.drawer.State() == draw.Dragging {
			if b, ok := m.drawer.Up(x, y); ok {
				return m.commit(b)
			}
			if m.drawer.State() == draw.Idle {
				m.status = "selection too small"
				break
			}
			// Released off the surface. The terminal sends no second
			// release, so end the session here.
			m.drawer.Cancel()
			m.status = "released off the globe: draw cancelled"
		}
	}
	return m, nil
}

func (m *Model) hover(x, y int, inside bool) {
	m.hoverHasGeo, m.hoverLabel = false, ""
	if !inside {
		return
	}
	if p, ok := m.view.Locate(x, y); ok {
		m.hoverHasGeo = true
		m.hoverLon, m.hoverLat = p[0], p[1]
	}
	if label, ok := m.view.Hit(x, y); ok {
		m.hoverLabel = label
	}
}

func (m *Model) pan(dx, dy int) {
	if !m.view.Drag(dx, dy) {
		m.status = "map locked while drawing"
	}
}

// commit shows the rectangle and requests its grid.
func (m Model) commit(b geom.BBox) (tea.Model, tea.Cmd) {
	m.rect = &b
	m.view.SetRect(m.rect)
	m.status = "selected " + b.String()
	return m, m.request()
}

// request starts a fetch for the current rectangle. Earlier requests are
// cancelled and their results will be dropped.
func (m *Model) request() tea.Cmd {
	if m.rect == nil || m.fetch == nil {
		return nil
	}
	m.invalidate()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.loading = true
	seq, rect, spacing, fetch := m.seq, *m.rect, m.spacing, m.fetch
	m.log.Info("requesting watershed grid", "seq", seq, "bbox", rect.String(), "spacing_m", spacing)
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		g, err := fetch.WatershedGrid(ctx, rect, spacing)
		return gridMsg{seq: seq, grid: g, err: err}
	})
}

// invalidate makes every outstanding result stale.
func (m *Model) invalidate() {
	m.seq++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.loading = false
}

func (m Model) applyGrid(msg gridMsg) Model {
	if msg.seq != m.seq {
		m.log.Debug("dropping stale grid", "seq", msg.seq, "current", m.seq)
		return m
	}
	m.loading = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if msg.err != nil {
		m.log.Error("watershed request failed", "seq", msg.seq, "err", msg.err)
		m.grid = nil
		m.view.SetHeatmap(nil, m.metric)
		m.status = "grid error: " + msg.err.Error()
		return m
	}
	m.grid = msg.grid
	m.selPath = ""
	m.view.SetHeatmap(m.grid, m.metric)
	m.log.Info("watershed grid received", "seq", msg.seq, "features", m.grid.Len())
	m.status = fmt.Sprintf("grid: %d features", m.grid.Len())
	if m.showAttrs {
		m.refreshAttrsFromCurrent()
	}
	return m
}

// toggleDraw flips draw mode. Turning it off clears the selection and its
// heatmap and drops any request in flight.
func (m Model) toggleDraw() Model {
	m.drawMode = !m.drawMode
	if m.drawMode {
		m.drawer.Enable()
		m.panning = false
		m.status = "draw mode: drag a rectangle"
		return m
	}
	m.drawer.Disable()
	m.invalidate()
	m.rect, m.grid = nil, nil
	m.view.SetRect(nil)
	m.view.SetHeatmap(nil, m.metric)
	m.status = "draw mode off"
	return m
}

// switchView unmounts the active renderer and mounts the other one with
// the same camera center, rectangle and grid.
func (m Model) switchView() Model {
	next := render.View3D
	if m.view.Mode() == render.View3D {
		next = render.View2D
	}
	opts := m.cfg.RenderOptions()
	opts.Center = m.view.Center()
	opts.Zoom = m.view.ZoomLevel()

	m.drawer.Close()
	m.view.Close()
	m.panning = false

	m.view = m.mount(next, opts)
	m.resize()
	m.view.SetRect(m.rect)
	m.view.SetHeatmap(m.grid, m.metric)
	m.status = "view: " + next.String()
	return m
}

func (m Model) setSpacing(v int) (tea.Model, tea.Cmd) {
	g := m.cfg.Grid
	v = min(max(v, g.MinM), g.MaxM)
	if v == m.spacing {
		return m, nil
	}
	m.spacing = v
	m.status = fmt.Sprintf("grid spacing: %d m", v)
	return m, m.request()
}

func (m *Model) openInput(mode inputMode, placeholder string) {
	m.input = mode
	m.ta.Placeholder = placeholder
	m.ta.SetValue("")
	m.ta.Focus()
	m.status = "input mode"
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input = inputNone
		m.ta.Blur()
		m.status = "view mode"
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.ta.Value())
		if text == "" {
			m.status = "input: empty"
			return m, nil
		}
		mode := m.input
		m.input = inputNone
		m.ta.Blur()
		if mode == inputGoto {
			p, err := geom.ParseLatLon(text)
			if err != nil {
				m.status = "location error: " + err.Error()
				return m, nil
			}
			m.view.SetCenter(p)
			m.status = fmt.Sprintf("centered on %.5f, %.5f", p[1], p[0])
			return m, nil
		}
		b, err := geom.ParseExtent(text)
		if err == nil && !b.IsSignificant(m.cfg.Draw.MinExtentDeg) {
			err = geom.ErrEmptyExtent
		}
		if err != nil {
			m.status = "extent error: " + err.Error()
			return m, nil
		}
		m.view.SetCenter(b.Center())
		return m.commit(b)
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

// resize hands the map area to the renderer.
func (m *Model) resize() {
	f := m.layout()
	m.view.Resize(f.mapW, f.mapH)
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, f.contentH-2)
	}
}
