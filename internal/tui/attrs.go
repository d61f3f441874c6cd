package tui

import (
	"encoding/json"
	"fmt"
	"sort"

	table "github.com/charmbracelet/bubbles/table"

	"shedmap/internal/geom"
)

// refreshAttrsFromCurrent rebuilds the table columns/rows from the current grid
func (m *Model) refreshAttrsFromCurrent() {
	cols, rows := buildAttributes(m.grid)
	// If there are no columns or rows, disable attributes view to avoid rendering panics
	if len(cols) == 0 || len(rows) == 0 {
		m.showAttrs = false
		m.status = "no attributes for current grid"
		return
	}
	tcols := make([]table.Column, 0, len(cols)+1)
	tcols = append(tcols, table.Column{Title: "#", Width: 4})
	maxColW := 24
	for _, c := range cols {
		w := min(len(c)+2, maxColW)
		tcols = append(tcols, table.Column{Title: c, Width: max(w, 8)})
	}
	trows := make([]table.Row, 0, len(rows))
	for i, r := range rows {
		row := make([]string, 0, len(r)+1)
		row = append(row, fmt.Sprintf("%d", i+1))
		row = append(row, r...)
		trows = append(trows, table.Row(row))
	}
	// Avoid transient mismatch: clear rows, set columns, then set rows
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(trows)
}

// buildAttributes unions property keys across the grid's features and
// returns one row per feature. Features without properties get empty
// cells.
func buildAttributes(g *geom.Grid) ([]string, [][]string) {
	if g.Len() == 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	var order []string
	for _, f := range g.Features.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	sort.Strings(order)
	rows := make([][]string, 0, g.Len())
	for _, f := range g.Features.Features {
		vals := make([]string, 0, len(order))
		for _, k := range order {
			vals = append(vals, cellText(f.Properties[k]))
		}
		rows = append(rows, vals)
	}
	return order, rows
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		bs, _ := json.Marshal(t)
		return string(bs)
	}
}
