// Package colormap maps normalized scalars to the jet palette shared by
// both map views and both watershed metrics.
//
// Stops sit at 0, 0.25, 0.5, 0.75 and 1: blue (0,0,255), cyan (0,255,255),
// green (0,255,0), yellow (255,255,0) and red (255,0,0). Inside a segment
// with local position t in [0,1) the channels are
//
//	[0, .25)   r=0               g=round(255t)     b=255
//	[.25, .5)  r=0               g=255             b=round(255(1-t))
//	[.5, .75)  r=round(255t)     g=255             b=0
//	[.75, 1]   r=255             g=round(255(1-t)) b=0
//
// where round is math.Round (half away from zero).
package colormap

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Jet clamps v to [0,1] (NaN counts as 0) and returns its palette color.
func Jet(v float64) color.RGBA {
	v = clamp(v)
	var r, g, b float64
	switch {
	case v < 0.25:
		t := v / 0.25
		r, g, b = 0, math.Round(t*255), 255
	case v < 0.5:
		t := (v - 0.25) / 0.25
		r, g, b = 0, 255, math.Round((1-t)*255)
	case v < 0.75:
		t := (v - 0.5) / 0.25
		r, g, b = math.Round(t*255), 255, 0
	default:
		t := (v - 0.75) / 0.25
		r, g, b = 255, math.Round((1-t)*255), 0
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xff}
}

// Hex returns Jet(v) as "#rrggbb".
func Hex(v float64) string {
	c, _ := colorful.MakeColor(Jet(v))
	return c.Hex()
}

// Stops returns the five breakpoint colors, low to high, for legends.
func Stops() []color.RGBA {
	return []color.RGBA{Jet(0), Jet(0.25), Jet(0.5), Jet(0.75), Jet(1)}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
