package geom

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ParseExtent turns a pasted WKT geometry into the rectangle that bounds it.
// Supported: POLYGON((x y, ...)), LINESTRING(x y, ...), MULTIPOINT(x y, ...)
// and the bare form "minx,miny,maxx,maxy". The size is not checked; callers
// apply their own minimum extent.
func ParseExtent(wkt string) (BBox, error) {
	s := strings.TrimSpace(wkt)
	if s == "" {
		return BBox{}, errors.New("empty extent")
	}
	up := strings.ToUpper(s)
	var pts []orb.Point
	var err error
	switch {
	case strings.HasPrefix(up, "POLYGON"):
		i := strings.Index(s, "((")
		j := strings.LastIndex(s, "))")
		if i < 0 || j <= i {
			return BBox{}, errors.New("wkt polygon: invalid")
		}
		// only the outer ring bounds the extent
		outer := s[i+2 : j]
		if k := strings.Index(outer, ")"); k >= 0 {
			outer = outer[:k]
		}
		pts, err = parseTuples(outer)
	case strings.HasPrefix(up, "LINESTRING"), strings.HasPrefix(up, "MULTIPOINT"):
		i := strings.Index(s, "(")
		j := strings.LastIndex(s, ")")
		if i < 0 || j <= i {
			return BBox{}, errors.New("wkt: invalid")
		}
		block := strings.NewReplacer("(", "", ")", "").Replace(s[i+1 : j])
		pts, err = parseTuples(block)
	default:
		pts, err = parseBare(s)
	}
	if err != nil {
		return BBox{}, err
	}
	if len(pts) < 2 {
		return BBox{}, errors.New("wkt: need at least two coordinates")
	}
	b := FromCorners(pts[0], pts[0])
	for _, p := range pts[1:] {
		b = BBox{
			MinX: min(b.MinX, p[0]),
			MinY: min(b.MinY, p[1]),
			MaxX: max(b.MaxX, p[0]),
			MaxY: max(b.MaxY, p[1]),
		}
	}
	return b, nil
}

// parseTuples reads comma separated "x y" tuples. Unlike a lenient
// viewer, a malformed tuple fails the whole extent.
func parseTuples(block string) ([]orb.Point, error) {
	var out []orb.Point
	for _, tup := range strings.Split(block, ",") {
		parts := strings.Fields(strings.TrimSpace(tup))
		if len(parts) == 0 {
			continue
		}
		if len(parts) < 2 {
			return nil, errors.New("wkt: coordinate needs x and y")
		}
		p, err := parsePoint(parts[0], parts[1])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseBare(s string) ([]orb.Point, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) != 4 {
		return nil, errors.New("extent: want minx,miny,maxx,maxy or WKT")
	}
	a, err := parsePoint(parts[0], parts[1])
	if err != nil {
		return nil, err
	}
	b, err := parsePoint(parts[2], parts[3])
	if err != nil {
		return nil, err
	}
	return []orb.Point{a, b}, nil
}

func parsePoint(xs, ys string) (orb.Point, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return orb.Point{}, ErrNotFinite
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return orb.Point{}, ErrNotFinite
	}
	if err := ValidateCoord(x, y); err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}

// ParseLatLon reads a "lat, lon" location the way users type it.
func ParseLatLon(s string) (orb.Point, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) != 2 {
		return orb.Point{}, errors.New("location: want \"lat, lon\"")
	}
	// parsePoint takes x (lon) first
	return parsePoint(parts[1], parts[0])
}
