package tui

import (
	"context"
	"log/slog"

	list "github.com/charmbracelet/bubbles/list"
	spinner "github.com/charmbracelet/bubbles/spinner"
	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"shedmap/internal/config"
	"shedmap/internal/draw"
	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
	"shedmap/internal/render"
)

// Fetcher resolves a committed rectangle into a watershed grid.
type Fetcher interface {
	WatershedGrid(ctx context.Context, b geom.BBox, spacingM int) (*geom.Grid, error)
}

type inputMode int

const (
	inputNone inputMode = iota
	inputGoto
	inputExtent
)

type Model struct {
	width  int
	height int

	showSidebar bool
	helpVisible bool

	status string

	cfg   *config.Config
	fetch Fetcher
	log   *slog.Logger

	// Scene
	view     render.Renderer
	drawer   *draw.Drawer
	drawMode bool
	rect     *geom.BBox
	grid     *geom.Grid
	metric   heatmap.Mode
	spacing  int

	// Request bookkeeping: only the result tagged with seq is applied.
	loading bool
	seq     uint64
	cancel  context.CancelFunc
	spin    spinner.Model

	// File explorer
	cwd     string
	l       list.Model
	selPath string // saved grid currently shown, "" for a fetched grid

	// location / extent entry
	input inputMode
	ta    textarea.Model

	// stats popup
	showStats bool

	// hover state
	hoverHasGeo bool
	hoverLon    float64
	hoverLat    float64
	hoverLabel  string

	// pan drag when not drawing
	panning    bool
	panX, panY int

	// attributes table
	showAttrs bool
	tbl       table.Model
}

func New(cfg *config.Config, f Fetcher, log *slog.Logger) Model {
	if log == nil {
		log = slog.Default()
	}
	m := Model{
		helpVisible: true,
		status:      "shedmap ready  press d to draw",
		cfg:         cfg,
		fetch:       f,
		log:         log,
		spacing:     cfg.Grid.SpacingM,
		cwd:         cfg.View.GridDir,
	}
	m.metric, _ = heatmap.ParseMode(cfg.View.Metric)
	mode, _ := render.ParseViewMode(cfg.View.Mode)
	m.view = m.mount(mode, cfg.RenderOptions())

	m.spin = spinner.New()
	m.spin.Spinner = spinner.Dot
	m.spin.Style = titleStyle

	// list setup
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.l = list.New(nil, d, 0, 0)
	m.l.Title = "Grids"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)
	// textarea setup
	m.ta = textarea.New()
	m.ta.CharLimit = 0
	m.ta.SetWidth(50)
	m.ta.SetHeight(6)
	// attributes table setup (columns are inferred per grid)
	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)
	m.refreshDir()
	return m
}

// NewWithPath preloads a saved grid at launch.
func NewWithPath(cfg *config.Config, f Fetcher, log *slog.Logger, path string) Model {
	m := New(cfg, f, log)
	m.loadPath(path)
	return m
}

func (m Model) Init() tea.Cmd { return nil }

// mount creates a renderer and a drawer bound to it.
func (m *Model) mount(mode render.ViewMode, opts render.Options) render.Renderer {
	opts.Logger = m.log
	v := render.New(mode, opts)
	m.drawer = draw.New(v, nil,
		draw.WithMinExtent(m.cfg.Draw.MinExtentDeg),
		draw.WithLogger(m.log.With("view", mode.String())),
	)
	if m.drawMode {
		m.drawer.Enable()
	}
	return v
}
