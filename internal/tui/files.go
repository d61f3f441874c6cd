package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	list "github.com/charmbracelet/bubbles/list"

	"shedmap/internal/geom"
)

type fileItem struct {
	title, desc string
	path        string
}

func (f fileItem) Title() string       { return f.title }
func (f fileItem) Description() string { return f.desc }
func (f fileItem) FilterValue() string { return f.title }

func (m *Model) refreshDir() {
	if m.cwd == "" {
		m.cwd, _ = os.Getwd()
	}
	entries, err := os.ReadDir(m.cwd)
	if err != nil {
		m.status = "read dir error: " + err.Error()
		return
	}
	var items []list.Item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".geojson" || ext == ".json" {
			items = append(items, fileItem{title: name, desc: ext, path: filepath.Join(m.cwd, name)})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].(fileItem).Title() < items[j].(fileItem).Title() })
	m.l.SetItems(items)
}

// loadPath shows a saved grid response. Any in-flight request is dropped
// so it cannot overwrite the loaded grid.
func (m *Model) loadPath(p string) {
	g, err := geom.LoadGrid(p)
	if err != nil {
		m.status = "load error: " + err.Error()
		return
	}
	m.invalidate()
	m.selPath = p
	m.grid = g
	m.view.SetHeatmap(g, m.metric)
	if bb, ok := g.BBox(); ok {
		m.view.SetCenter(bb.Center())
	}
	m.log.Info("grid loaded", "path", p, "features", g.Len())
	m.status = fmt.Sprintf("loaded: %s  features=%d", filepath.Base(p), g.Len())
	if m.showAttrs {
		m.refreshAttrsFromCurrent()
	}
}
