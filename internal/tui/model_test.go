package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"shedmap/internal/config"
	"shedmap/internal/draw"
	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
	"shedmap/internal/render"
)

const gridJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-81,35],[-80.8,35],[-80.8,35.4],[-81,35.4],[-81,35]]]},
     "properties": {"area_ha": 1.5, "tc_min": 3, "jet_value_area": 0, "jet_value_tc": 1}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-80.8,35],[-80.6,35],[-80.6,35.4],[-80.8,35.4],[-80.8,35]]]},
     "properties": {"area_ha": 9, "tc_min": 20, "jet_value_area": 1, "jet_value_tc": 0}}
  ],
  "metadata": {"point_count": 2, "grid_spacing_m": 100, "dem_cell_size_m": 10,
               "min_area_ha": 1.5, "max_area_ha": 9, "min_tc_min": 3, "max_tc_min": 20}
}`

type call struct {
	bbox    geom.BBox
	spacing int
}

// fakeFetcher answers from respond, recording every call.
type fakeFetcher struct {
	calls   []call
	respond func(n int) (*geom.Grid, error)
}

func (f *fakeFetcher) WatershedGrid(_ context.Context, b geom.BBox, spacing int) (*geom.Grid, error) {
	f.calls = append(f.calls, call{b, spacing})
	return f.respond(len(f.calls))
}

func mustGrid(t *testing.T) *geom.Grid {
	t.Helper()
	g, err := geom.ParseGrid([]byte(gridJSON))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		API:  config.APIConfig{BaseURL: "http://localhost/api", TimeoutSeconds: 5},
		Grid: config.GridConfig{SpacingM: 100, MinM: 50, MaxM: 500, StepM: 50},
		View: config.ViewConfig{
			Mode: "2d", Metric: "area", CenterLat: 35.2, CenterLon: -80.8,
			Zoom: 14, PitchDeg: -45, FovDeg: 60, Ellipsoid: "wgs84", GridDir: t.TempDir(),
		},
		Draw: config.DrawConfig{MinExtentDeg: geom.MinExtent},
		Log:  config.LogConfig{Level: "info", Format: "text"},
	}
}

func newTestModel(t *testing.T, f Fetcher) Model {
	t.Helper()
	return newModelWith(t, testConfig(t), f)
}

func newModelWith(t *testing.T, cfg *config.Config, f Fetcher) Model {
	t.Helper()
	m := New(cfg, f, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	m, _ = stepCmd(t, m, msg)
	return m
}

func stepCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mouse(x, y int, action tea.MouseAction) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

// drag performs a left-button drag between two map cells and returns the
// command produced by the release.
func drag(t *testing.T, m Model, x0, y0, x1, y1 int) (Model, tea.Cmd) {
	t.Helper()
	f := m.layout()
	m = step(t, m, mouse(f.mapX+x0, f.mapY+y0, tea.MouseActionPress))
	m = step(t, m, mouse(f.mapX+(x0+x1)/2, f.mapY+(y0+y1)/2, tea.MouseActionMotion))
	return stepCmd(t, m, mouse(f.mapX+x1, f.mapY+y1, tea.MouseActionRelease))
}

// gridResults runs cmd, expanding batches, and keeps the fetch results.
func gridResults(cmd tea.Cmd) []gridMsg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []gridMsg
		for _, c := range msg {
			out = append(out, gridResults(c)...)
		}
		return out
	case gridMsg:
		return []gridMsg{msg}
	}
	return nil
}

func single(t *testing.T, cmd tea.Cmd) gridMsg {
	t.Helper()
	res := gridResults(cmd)
	if len(res) != 1 {
		t.Fatalf("got %d grid results, want 1", len(res))
	}
	return res[0]
}

func TestDrawCommitFetchesGrid(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return grid, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))

	a, _ := m.view.Locate(10, 5)
	b, _ := m.view.Locate(40, 15)
	want := geom.FromCorners(a, b)

	m, cmd := drag(t, m, 10, 5, 40, 15)
	if m.rect == nil || *m.rect != want {
		t.Fatalf("rect = %v, want %v", m.rect, want)
	}
	if !m.loading || cmd == nil {
		t.Fatal("commit should start a request")
	}
	if m.view.Count("drawn-rectangle") != 1 || m.view.GesturesLocked() {
		t.Error("rectangle not echoed or gestures still locked")
	}

	m = step(t, m, single(t, cmd))
	if len(f.calls) != 1 || f.calls[0].bbox != want || f.calls[0].spacing != 100 {
		t.Errorf("calls = %+v", f.calls)
	}
	if m.loading || m.grid != grid {
		t.Error("grid not applied")
	}
	if n := m.view.Count("heatmap-"); n != 2 {
		t.Errorf("heatmap cells = %d", n)
	}
}

func TestStaleResultDropped(t *testing.T) {
	first, second := mustGrid(t), mustGrid(t)
	f := &fakeFetcher{respond: func(n int) (*geom.Grid, error) {
		if n == 1 {
			return first, nil
		}
		return second, nil
	}}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))

	m, cmd1 := drag(t, m, 10, 5, 40, 15)
	m, cmd2 := drag(t, m, 20, 8, 60, 20)
	r1, r2 := single(t, cmd1), single(t, cmd2)

	m = step(t, m, r2)
	m = step(t, m, r1)
	if m.grid != second {
		t.Fatal("older response overwrote the latest one")
	}
	a, _ := m.view.Locate(20, 8)
	b, _ := m.view.Locate(60, 20)
	if *m.rect != geom.FromCorners(a, b) {
		t.Errorf("rect = %v", *m.rect)
	}
}

func TestFetchErrorKeepsRectangle(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(n int) (*geom.Grid, error) {
		if n == 1 {
			return grid, nil
		}
		return nil, errors.New("DEM unavailable")
	}}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))

	m, cmd := drag(t, m, 10, 5, 40, 15)
	m = step(t, m, single(t, cmd))
	m, cmd = drag(t, m, 12, 6, 30, 12)
	m = step(t, m, single(t, cmd))

	if m.grid != nil || m.view.Count("heatmap-") != 0 {
		t.Error("failed request should clear the heatmap")
	}
	if m.rect == nil || m.view.Count("drawn-rectangle") != 1 {
		t.Error("failed request should keep the rectangle")
	}
	if !strings.Contains(m.status, "DEM unavailable") {
		t.Errorf("status = %q", m.status)
	}
}

func TestDrawOffClearsAndInvalidates(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return grid, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))
	m, cmd := drag(t, m, 10, 5, 40, 15)

	m = step(t, m, keyMsg("d"))
	if m.drawMode || m.rect != nil || m.view.Entities() != 0 {
		t.Fatal("draw off should clear the scene")
	}
	m = step(t, m, single(t, cmd))
	if m.grid != nil || m.view.Entities() != 0 {
		t.Error("in-flight result applied after draw mode was turned off")
	}
}

func TestTinyDragIgnored(t *testing.T) {
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return nil, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))
	m, cmd := drag(t, m, 10, 5, 10, 5)
	if cmd != nil || m.rect != nil {
		t.Fatal("zero-size drag should not commit")
	}
	if m.status != "selection too small" || m.view.Count("preview") != 0 {
		t.Errorf("status = %q previews = %d", m.status, m.view.Count("preview"))
	}
}

func TestPanWithoutDrawMode(t *testing.T) {
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return nil, nil }}
	m := newTestModel(t, f)
	before := m.view.Center()
	m, cmd := drag(t, m, 10, 5, 40, 15)
	if cmd != nil || m.rect != nil {
		t.Fatal("drag outside draw mode should not commit")
	}
	if m.view.Center() == before {
		t.Error("drag outside draw mode should pan")
	}
}

func TestSwitchViewMovesScene(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return grid, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))
	m, cmd := drag(t, m, 10, 5, 40, 15)
	m = step(t, m, single(t, cmd))

	old := m.view
	center := old.Center()
	m = step(t, m, keyMsg("v"))
	if old.Entities() != 0 {
		t.Errorf("old renderer kept %d entities", old.Entities())
	}
	if m.view.Mode() != render.View3D || m.view.Center() != center {
		t.Errorf("mode=%v center=%v", m.view.Mode(), m.view.Center())
	}
	if m.view.Count("heatmap-") != 2 || m.view.Count("drawn-rectangle") != 1 {
		t.Error("new renderer did not receive the scene")
	}
	if !m.drawer.Enabled() {
		t.Error("draw mode lost across the switch")
	}

	for i := 0; i < 4; i++ {
		m = step(t, m, keyMsg("v"))
	}
	if m.view.Mode() != render.View3D || m.view.Entities() != 3 {
		t.Errorf("after toggling: mode=%v entities=%d", m.view.Mode(), m.view.Entities())
	}
}

func TestTiltOnlyIn3D(t *testing.T) {
	m := newTestModel(t, nil)
	m = step(t, m, keyMsg("["))
	if !strings.Contains(m.status, "only available in 3D") {
		t.Errorf("status = %q", m.status)
	}
	m = step(t, m, keyMsg("v"))
	m = step(t, m, keyMsg("["))
	if got := m.view.(render.Tilter).PitchDeg(); got != -50 {
		t.Errorf("pitch = %f", got)
	}
}

func TestExtentInput(t *testing.T) {
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return nil, errors.New("x") }}
	m := newTestModel(t, f)

	m = step(t, m, keyMsg("e"))
	m.ta.SetValue("POLYGON((-80.9 35.1, -80.7 35.1, -80.7 35.3, -80.9 35.3, -80.9 35.1))")
	m, cmd := stepCmd(t, m, keyMsg("enter"))
	want := geom.BBox{MinX: -80.9, MinY: 35.1, MaxX: -80.7, MaxY: 35.3}
	if m.rect == nil || *m.rect != want || cmd == nil {
		t.Fatalf("rect = %v cmd = %v", m.rect, cmd != nil)
	}
	if m.input != inputNone {
		t.Error("input mode not closed")
	}

	m = step(t, m, keyMsg("e"))
	m.ta.SetValue("POINT(1 2)")
	m = step(t, m, keyMsg("enter"))
	if !strings.HasPrefix(m.status, "extent error") || *m.rect != want {
		t.Errorf("status = %q rect = %v", m.status, m.rect)
	}
}

func TestGotoInput(t *testing.T) {
	m := newTestModel(t, nil)
	m = step(t, m, keyMsg("g"))
	m.ta.SetValue("35.3, -80.7")
	m = step(t, m, keyMsg("enter"))
	if c := m.view.Center(); c[0] != -80.7 || c[1] != 35.3 {
		t.Errorf("center = %v", c)
	}

	m = step(t, m, keyMsg("g"))
	m.ta.SetValue("95, 0")
	m = step(t, m, keyMsg("enter"))
	if !strings.HasPrefix(m.status, "location error") {
		t.Errorf("status = %q", m.status)
	}

	m = step(t, m, keyMsg("g"))
	m = step(t, m, keyMsg("esc"))
	if m.input != inputNone {
		t.Error("esc should leave input mode")
	}
}

func TestSpacingBounds(t *testing.T) {
	m := newTestModel(t, nil)
	m = step(t, m, keyMsg(">"))
	if m.spacing != 150 {
		t.Errorf("spacing = %d", m.spacing)
	}
	for i := 0; i < 5; i++ {
		m = step(t, m, keyMsg("<"))
	}
	if m.spacing != 50 {
		t.Errorf("spacing = %d", m.spacing)
	}
	for i := 0; i < 20; i++ {
		m = step(t, m, keyMsg(">"))
	}
	if m.spacing != 500 {
		t.Errorf("spacing = %d", m.spacing)
	}
}

func TestSpacingRefetches(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return grid, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))
	m, cmd := drag(t, m, 10, 5, 40, 15)
	m = step(t, m, single(t, cmd))

	m, cmd = stepCmd(t, m, keyMsg(">"))
	single(t, cmd)
	if len(f.calls) != 2 || f.calls[1].spacing != 150 || f.calls[1].bbox != *m.rect {
		t.Errorf("calls = %+v", f.calls)
	}
}

func TestPanLockedWhileDrawing(t *testing.T) {
	m := newTestModel(t, nil)
	m = step(t, m, keyMsg("d"))
	f := m.layout()
	m = step(t, m, mouse(f.mapX+10, f.mapY+5, tea.MouseActionPress))
	before := m.view.Center()
	m = step(t, m, keyMsg("up"))
	if m.view.Center() != before || m.status != "map locked while drawing" {
		t.Errorf("center moved or status = %q", m.status)
	}
	m = step(t, m, keyMsg("esc"))
	if m.view.GesturesLocked() || m.view.Count("preview") != 0 {
		t.Error("esc should cancel the drag")
	}
}

func TestMetricToggle(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return grid, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))
	m, cmd := drag(t, m, 10, 5, 40, 15)
	m = step(t, m, single(t, cmd))

	m = step(t, m, keyMsg("m"))
	if m.metric != heatmap.TimeOfConcentration || m.view.Count("heatmap-") != 2 {
		t.Errorf("metric = %v cells = %d", m.metric, m.view.Count("heatmap-"))
	}
	lo, hi, ok := metricRange(m.grid, m.metric)
	if !ok || lo != 3 || hi != 20 {
		t.Errorf("range = %v %v %v", lo, hi, ok)
	}
}

func TestMetricRangeWithoutMetadata(t *testing.T) {
	g := mustGrid(t)
	g.HasMetadata = false
	lo, hi, ok := metricRange(g, heatmap.Area)
	if !ok || lo != 1.5 || hi != 9 {
		t.Errorf("range = %v %v %v", lo, hi, ok)
	}
	if _, _, ok := metricRange(nil, heatmap.Area); ok {
		t.Error("nil grid has no range")
	}
}

func TestLoadSavedGrid(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.View.GridDir, "saved.geojson")
	if err := os.WriteFile(path, []byte(gridJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewWithPath(cfg, nil, nil, path)
	if m.grid.Len() != 2 || m.view.Count("heatmap-") != 2 {
		t.Fatalf("grid not loaded: %q", m.status)
	}
	if n := len(m.l.Items()); n != 1 {
		t.Errorf("sidebar items = %d", n)
	}
	if !strings.Contains(m.statsText(), "source: saved.geojson") {
		t.Errorf("stats should name the loaded file:\n%s", m.statsText())
	}
	if c := m.view.Center(); math.Abs(c[0]+80.8) > 1e-9 || math.Abs(c[1]-35.2) > 1e-9 {
		t.Errorf("center = %v", c)
	}

	bad := NewWithPath(cfg, nil, nil, filepath.Join(cfg.View.GridDir, "missing.json"))
	if bad.grid != nil || !strings.HasPrefix(bad.status, "load error") {
		t.Errorf("status = %q", bad.status)
	}
}

func TestBuildAttributes(t *testing.T) {
	cols, rows := buildAttributes(mustGrid(t))
	want := []string{"area_ha", "jet_value_area", "jet_value_tc", "tc_min"}
	if strings.Join(cols, ",") != strings.Join(want, ",") {
		t.Fatalf("cols = %v", cols)
	}
	if len(rows) != 2 || rows[1][0] != "9" {
		t.Errorf("rows = %v", rows)
	}
	if c, r := buildAttributes(nil); c != nil || r != nil {
		t.Error("nil grid should have no attributes")
	}
}

func TestViewRenders(t *testing.T) {
	m := newTestModel(t, nil)
	out := m.View()
	if !strings.Contains(out, "shedmap") || !strings.Contains(out, "draw:off") {
		t.Error("header missing")
	}
	m = step(t, m, keyMsg("i"))
	if !strings.Contains(m.View(), "Watershed query") {
		t.Error("stats panel missing")
	}
}

func TestQuitReleasesRenderer(t *testing.T) {
	grid := mustGrid(t)
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return grid, nil }}
	m := newTestModel(t, f)
	m = step(t, m, keyMsg("d"))
	m, cmd := drag(t, m, 10, 5, 40, 15)
	m = step(t, m, single(t, cmd))
	view := m.view
	_, quit := stepCmd(t, m, keyMsg("q"))
	if quit == nil || view.Entities() != 0 {
		t.Error("quit should tear down the renderer")
	}
}

func TestReleaseOverSkyEndsDrag(t *testing.T) {
	cfg := testConfig(t)
	cfg.View.Mode = "3d"
	cfg.View.PitchDeg = -15
	f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return mustGrid(t), nil }}
	m := newModelWith(t, cfg, f)
	m = step(t, m, keyMsg("d"))
	fr := m.layout()
	if _, ok := m.view.Locate(50, 0); ok {
		t.Fatal("top row should be sky at this pitch")
	}

	m = step(t, m, mouse(fr.mapX+40, fr.mapY+20, tea.MouseActionPress))
	m = step(t, m, mouse(fr.mapX+50, fr.mapY+16, tea.MouseActionMotion))
	if m.drawer.State() != draw.Dragging || !m.view.GesturesLocked() {
		t.Fatal("press on the globe should start a locked drag")
	}
	m, cmd := stepCmd(t, m, mouse(fr.mapX+50, fr.mapY, tea.MouseActionRelease))
	if cmd != nil || m.rect != nil || len(f.calls) != 0 {
		t.Error("release over sky must not commit")
	}
	if m.drawer.State() != draw.Idle || m.view.GesturesLocked() || m.view.Count("preview") != 0 {
		t.Errorf("session left open: state=%v locked=%v previews=%d",
			m.drawer.State(), m.view.GesturesLocked(), m.view.Count("preview"))
	}
	if !strings.Contains(m.status, "draw cancelled") {
		t.Errorf("status = %q", m.status)
	}

	hover := tea.MouseMsg{X: fr.mapX + 60, Y: fr.mapY + 18, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone}
	m = step(t, m, hover)
	if m.view.Count("preview") != 0 {
		t.Error("hovering after the release should not draw")
	}
	if !m.view.Drag(1, 1) {
		t.Error("gestures should be restored")
	}
}

func TestMotionWithoutButtonKeepsPreview(t *testing.T) {
	m := newTestModel(t, nil)
	m = step(t, m, keyMsg("d"))
	fr := m.layout()
	m = step(t, m, mouse(fr.mapX+10, fr.mapY+5, tea.MouseActionPress))
	m = step(t, m, mouse(fr.mapX+20, fr.mapY+10, tea.MouseActionMotion))
	before, _ := m.drawer.Preview()
	hover := tea.MouseMsg{X: fr.mapX + 40, Y: fr.mapY + 20, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone}
	m = step(t, m, hover)
	if after, _ := m.drawer.Preview(); after != before {
		t.Errorf("preview followed a buttonless motion: %v -> %v", before, after)
	}
}

func TestMouseIgnoredUnderOverlay(t *testing.T) {
	for _, key := range []string{"i", "a", "e", "g"} {
		t.Run(key, func(t *testing.T) {
			f := &fakeFetcher{respond: func(int) (*geom.Grid, error) { return mustGrid(t), nil }}
			m := newTestModel(t, f)
			m = step(t, m, keyMsg("d"))
			m = step(t, m, keyMsg(key))
			if !m.mapHidden() {
				t.Fatalf("%q should cover the map", key)
			}
			m, cmd := drag(t, m, 10, 5, 60, 20)
			if cmd != nil || m.rect != nil || len(f.calls) != 0 {
				t.Errorf("drag under overlay committed rect=%v fetches=%d", m.rect, len(f.calls))
			}
			if m.drawer.State() != draw.Idle || m.view.Count("preview") != 0 {
				t.Error("drag under overlay reached the drawer")
			}
		})
	}
}

func TestExtentInputUsesConfiguredMinimum(t *testing.T) {
	const tiny = "-80.8,35.2,-80.79995,35.20005"

	m := newTestModel(t, nil)
	m = step(t, m, keyMsg("e"))
	m.ta.SetValue(tiny)
	m = step(t, m, keyMsg("enter"))
	if m.rect != nil || !strings.HasPrefix(m.status, "extent error") {
		t.Errorf("default minimum: rect=%v status=%q", m.rect, m.status)
	}

	cfg := testConfig(t)
	cfg.Draw.MinExtentDeg = 1e-6
	m = newModelWith(t, cfg, nil)
	m = step(t, m, keyMsg("e"))
	m.ta.SetValue(tiny)
	m = step(t, m, keyMsg("enter"))
	if m.rect == nil {
		t.Errorf("smaller minimum should accept the extent: %q", m.status)
	}
}
