package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"shedmap/internal/colormap"
	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
)

// metricRange is the value span of the active metric, from the response
// metadata when present, otherwise scanned from feature properties.
func metricRange(g *geom.Grid, mode heatmap.Mode) (float64, float64, bool) {
	if g.Len() == 0 {
		return 0, 0, false
	}
	if g.HasMetadata {
		if mode == heatmap.TimeOfConcentration {
			return g.Metadata.MinTcMin, g.Metadata.MaxTcMin, true
		}
		return g.Metadata.MinAreaHa, g.Metadata.MaxAreaHa, true
	}
	key := "area_ha"
	if mode == heatmap.TimeOfConcentration {
		key = "tc_min"
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, f := range g.Features.Features {
		if v, ok := geom.Float(f.Properties, key); ok {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0, false
	}
	return lo, hi, true
}

func unit(mode heatmap.Mode) string {
	if mode == heatmap.TimeOfConcentration {
		return "min"
	}
	return "ha"
}

// statsText is the query panel: request, grid summary and active range.
func (m Model) statsText() string {
	lines := []string{titleStyle.Render("Watershed query")}
	if m.rect != nil {
		lines = append(lines, "bbox: "+m.rect.String())
	} else {
		lines = append(lines, "bbox: none (press d and drag)")
	}
	if m.selPath != "" {
		lines = append(lines, "source: "+filepath.Base(m.selPath))
	}
	lines = append(lines, fmt.Sprintf("spacing: %d m", m.spacing))
	switch {
	case m.loading:
		lines = append(lines, "status: loading "+m.spin.View())
	case m.grid == nil:
		lines = append(lines, "status: no grid")
	default:
		count := m.grid.Len()
		if m.grid.HasMetadata && m.grid.Metadata.PointCount > 0 {
			count = m.grid.Metadata.PointCount
		}
		lines = append(lines, fmt.Sprintf("points: %d", count))
		if m.grid.HasMetadata {
			lines = append(lines,
				fmt.Sprintf("grid spacing: %g m", m.grid.Metadata.GridSpacingM),
				fmt.Sprintf("DEM resolution: %g m", m.grid.Metadata.DEMCellSizeM),
			)
		}
		if lo, hi, ok := metricRange(m.grid, m.metric); ok {
			lines = append(lines, fmt.Sprintf("%s: %.2f - %.2f", m.metric.Title(), lo, hi))
		}
	}
	lines = append(lines, "", m.legend())
	return strings.Join(lines, "\n")
}

// legend renders the five jet stops between the active range bounds.
func (m Model) legend() string {
	var sb strings.Builder
	for i := 0; i <= 4; i++ {
		sb.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(colormap.Hex(float64(i) / 4))).Render("  "))
	}
	lo, hi, ok := metricRange(m.grid, m.metric)
	if !ok {
		return dimStyle.Render("low ") + sb.String() + dimStyle.Render(" high")
	}
	return dimStyle.Render(fmt.Sprintf("%.2f ", lo)) + sb.String() + dimStyle.Render(fmt.Sprintf(" %.2f %s", hi, unit(m.metric)))
}
