package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	f := m.layout()

	// Header
	header := titleStyle.Render(" shedmap ─ watershed grid explorer ") + " " + m.badges()
	header = lipgloss.NewStyle().Width(f.contentW).MaxHeight(headerHeight).Render(header)

	// Sidebar
	var sidebar string
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, f.contentH-2)
		sidebar = lipgloss.NewStyle().Width(f.sideW).Render(m.l.View())
	}

	// Map viewport
	var mapView string
	switch {
	case m.showAttrs:
		// infer a reasonable width from columns
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		maxW := min(f.mapW, max(32, colW))
		m.tbl.SetWidth(maxW - 4)
		m.tbl.SetHeight(min(f.mapH-2, 20))
		box := boxStyle.Width(maxW).Render(m.tbl.View())
		mapView = lipgloss.Place(f.mapW, f.mapH, lipgloss.Center, lipgloss.Center, box)
	case m.showStats:
		box := boxStyle.MaxWidth(min(f.mapW, 60)).Render(m.statsText())
		mapView = lipgloss.Place(f.mapW, f.mapH, lipgloss.Center, lipgloss.Center, box)
	case m.input != inputNone:
		m.ta.SetWidth(f.mapW)
		m.ta.SetHeight(min(f.mapH, 12))
		mapView = lipgloss.NewStyle().Width(f.mapW).Height(f.mapH).Render(m.ta.View())
	default:
		mapView = lipgloss.NewStyle().Width(f.mapW).Height(f.mapH).Render(m.view.Render())
	}

	// Body row
	body := mapView
	if m.showSidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	}

	// Footer: status and help, then legend and hover readout
	status := dimStyle.Render(" " + m.status + " ")
	if m.loading {
		status = m.spin.View() + status
	}
	line1 := lipgloss.JoinHorizontal(lipgloss.Bottom, status, m.renderHelp())

	coords := ""
	if m.hoverHasGeo {
		coords = fmt.Sprintf("lat=%.5f lon=%.5f", m.hoverLat, m.hoverLon)
	}
	if m.hoverLabel != "" {
		coords = m.hoverLabel + "  " + coords
	}
	coords = dimStyle.Render("  " + coords + "  ")
	left := " " + m.legend()
	spacerW := max(0, f.contentW-lipgloss.Width(left)-lipgloss.Width(coords))
	line2 := left + strings.Repeat(" ", spacerW) + coords
	footer := lipgloss.NewStyle().Width(f.contentW).MaxHeight(footerHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, line1, line2))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(f.contentW).Height(m.height).Render(ui)
}

func (m Model) badges() string {
	draw := "off"
	if m.drawMode {
		draw = "on"
	}
	parts := []string{
		m.view.Mode().String(),
		"draw:" + draw,
		"metric:" + m.metric.String(),
		fmt.Sprintf("spacing:%dm", m.spacing),
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"d draw",
		"v 2D/3D",
		"m metric",
		"</> spacing",
		"[/] tilt",
		"↑↓←→ pan",
		"+/- zoom",
		"g goto",
		"e extent",
		"Tab grids",
		"i stats",
		"a attrs",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
