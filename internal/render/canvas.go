package render

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Canvas is a cell grid with a braille micro-grid (2x4 dots per cell) for
// strokes and a per-cell background for fills.
type Canvas struct {
	w, h int // in cells
	mask [][]uint8
	fg   [][]colorful.Color
	bg   [][]colorful.Color
	dash int
}

func NewCanvas(w, h int, bg colorful.Color) *Canvas {
	c := &Canvas{w: w, h: h}
	c.mask = make([][]uint8, h)
	c.fg = make([][]colorful.Color, h)
	c.bg = make([][]colorful.Color, h)
	for y := 0; y < h; y++ {
		c.mask[y] = make([]uint8, w)
		c.fg[y] = make([]colorful.Color, w)
		c.bg[y] = make([]colorful.Color, w)
		for x := 0; x < w; x++ {
			c.bg[y][x] = bg
		}
	}
	return c
}

func (c *Canvas) inside(cx, cy int) bool {
	return cx >= 0 && cy >= 0 && cx < c.w && cy < c.h
}

// SetPixel sets a micro-pixel at micro coords (2x4 per cell).
func (c *Canvas) SetPixel(mx, my int, col colorful.Color) {
	if mx < 0 || my < 0 {
		return
	}
	cx, rx := mx/2, mx%2
	cy, ry := my/4, my%4
	if !c.inside(cx, cy) {
		return
	}
	var bit uint8
	if rx == 0 {
		switch ry {
		case 0:
			bit = 0x01
		case 1:
			bit = 0x02
		case 2:
			bit = 0x04
		case 3:
			bit = 0x40
		}
	} else {
		switch ry {
		case 0:
			bit = 0x08
		case 1:
			bit = 0x10
		case 2:
			bit = 0x20
		case 3:
			bit = 0x80
		}
	}
	c.mask[cy][cx] |= bit
	c.fg[cy][cx] = col
}

// Line draws a clipped Bresenham line on the micro-grid. Dashed lines
// alternate 3 dots on, 2 off.
func (c *Canvas) Line(x0, y0, x1, y1 float64, col colorful.Color, dashed bool) {
	x0, y0, x1, y1, ok := clipSegment(x0, y0, x1, y1, float64(c.w*2), float64(c.h*4))
	if !ok {
		return
	}
	ax, ay := int(math.Floor(x0)), int(math.Floor(y0))
	bx, by := int(math.Floor(x1)), int(math.Floor(y1))
	dx := abs(bx - ax)
	sx := -1
	if ax < bx {
		sx = 1
	}
	dy := -abs(by - ay)
	sy := -1
	if ay < by {
		sy = 1
	}
	err := dx + dy
	for {
		if !dashed || c.dash%5 < 3 {
			c.SetPixel(ax, ay, col)
		}
		c.dash++
		if ax == bx && ay == by {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			ax += sx
		}
		if e2 <= dx {
			err += dx
			ay += sy
		}
	}
}

// Fill blends col over the cell background at the given opacity.
func (c *Canvas) Fill(cx, cy int, col colorful.Color, alpha float64) {
	if !c.inside(cx, cy) {
		return
	}
	if alpha >= 1 {
		c.bg[cy][cx] = col
		return
	}
	c.bg[cy][cx] = c.bg[cy][cx].BlendRgb(col, alpha)
}

// Rune is what the cell will print.
func (c *Canvas) Rune(cx, cy int) rune {
	if !c.inside(cx, cy) {
		return ' '
	}
	if m := c.mask[cy][cx]; m != 0 {
		return rune(0x2800 + int(m))
	}
	return ' '
}

// String renders rows, grouping runs of equal colors into one style.
func (c *Canvas) String() string {
	lines := make([]string, c.h)
	for y := 0; y < c.h; y++ {
		var sb strings.Builder
		start := 0
		for x := 1; x <= c.w; x++ {
			if x < c.w && c.fgHex(x, y) == c.fgHex(start, y) && c.bg[y][x] == c.bg[y][start] {
				continue
			}
			run := make([]rune, 0, x-start)
			for i := start; i < x; i++ {
				run = append(run, c.Rune(i, y))
			}
			st := lipgloss.NewStyle().
				Foreground(lipgloss.Color(c.fgHex(start, y))).
				Background(lipgloss.Color(c.bg[y][start].Hex()))
			sb.WriteString(st.Render(string(run)))
			start = x
		}
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}

func (c *Canvas) fgHex(x, y int) string {
	if c.mask[y][x] == 0 {
		return c.bg[y][x].Hex()
	}
	return c.fg[y][x].Hex()
}

// clipSegment clips to [0,w)x[0,h) (Liang-Barsky).
func clipSegment(x0, y0, x1, y1, w, h float64) (float64, float64, float64, float64, bool) {
	for _, v := range []float64{x0, y0, x1, y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, 0, false
		}
	}
	t0, t1 := 0.0, 1.0
	dx, dy := x1-x0, y1-y0
	maxX, maxY := w-1e-9, h-1e-9
	edges := [4][2]float64{
		{-dx, x0},
		{dx, maxX - x0},
		{-dy, y0},
		{dy, maxY - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
