// Package heatmap turns watershed grid features into per-feature styles
// and hover labels for either map view.
package heatmap

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/paulmach/orb/geojson"

	"shedmap/internal/colormap"
	"shedmap/internal/geom"
)

// Mode selects which pre-normalized metric drives the fill color.
type Mode int

const (
	Area Mode = iota
	TimeOfConcentration
)

func (m Mode) String() string {
	if m == TimeOfConcentration {
		return "tc"
	}
	return "area"
}

// Title is the human name shown in the query panel.
func (m Mode) Title() string {
	if m == TimeOfConcentration {
		return "Time of Concentration (minutes)"
	}
	return "Watershed Area (hectares)"
}

// Key is the feature property holding the metric, already in [0,1].
func (m Mode) Key() string {
	if m == TimeOfConcentration {
		return "jet_value_tc"
	}
	return "jet_value_area"
}

// Toggle flips between the two metrics.
func (m Mode) Toggle() Mode {
	if m == Area {
		return TimeOfConcentration
	}
	return Area
}

// ParseMode accepts "area" or "tc".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "area", "":
		return Area, nil
	case "tc", "time-of-concentration":
		return TimeOfConcentration, nil
	}
	return Area, fmt.Errorf("unknown heatmap mode %q", s)
}

// Style is the renderer-neutral look of one feature.
type Style struct {
	FillColor    color.RGBA
	FillOpacity  float64
	StrokeColor  color.RGBA
	StrokeWeight float64
}

var (
	black   = color.RGBA{A: 0xff}
	neutral = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
)

// Fallback is used for features carrying no properties at all.
var Fallback = Style{FillColor: neutral, FillOpacity: 0.6, StrokeColor: black, StrokeWeight: 0.5}

// StyleFor styles a feature for the given metric. Missing values map to
// the low end of the palette; a feature without properties gets Fallback.
// Values are trusted to be normalized upstream.
func StyleFor(f *geojson.Feature, mode Mode) Style {
	if f == nil || f.Properties == nil {
		return Fallback
	}
	v, _ := geom.Float(f.Properties, mode.Key())
	return Style{
		FillColor:    colormap.Jet(v),
		FillOpacity:  0.7,
		StrokeColor:  black,
		StrokeWeight: 0.5,
	}
}

// Label is the hover text combining both raw metrics.
func Label(f *geojson.Feature) string {
	var props geojson.Properties
	if f != nil {
		props = f.Properties
	}
	return fmt.Sprintf("Area: %s ha  Tc: %s min", fixed2(props, "area_ha"), fixed2(props, "tc_min"))
}

func fixed2(props geojson.Properties, key string) string {
	v, ok := geom.Float(props, key)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v)
}
