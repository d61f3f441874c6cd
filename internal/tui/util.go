package tui

const (
	sidebarWidth = 28
	headerHeight = 1
	footerHeight = 2
)

// frame is the screen layout shared by Update (mouse hit-testing) and View.
type frame struct {
	contentW, contentH int
	sideW              int
	mapX, mapY         int
	mapW, mapH         int
}

func (m Model) layout() frame {
	f := frame{contentW: max(10, m.width)}
	f.contentH = max(4, m.height-headerHeight-footerHeight)
	gap := 0
	if m.showSidebar {
		f.sideW = sidebarWidth
		gap = 1
	}
	f.mapX = f.sideW + gap
	f.mapY = headerHeight
	f.mapW = max(10, f.contentW-f.mapX)
	f.mapH = f.contentH
	return f
}

// cell converts screen coords to map cell coords.
func (f frame) cell(x, y int) (int, int, bool) {
	cx, cy := x-f.mapX, y-f.mapY
	return cx, cy, cx >= 0 && cy >= 0 && cx < f.mapW && cy < f.mapH
}
