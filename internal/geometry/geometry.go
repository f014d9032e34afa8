package geometry

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Epsilon is the tolerance used when comparing point coordinates.
// Two points closer than this on both axes are considered equal.
const Epsilon = 1e-9

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equal reports whether q lies within Epsilon of p on both axes.
func (p Point) Equal(q Point) bool {
	return math.Abs(p.X-q.X) < Epsilon && math.Abs(p.Y-q.Y) < Epsilon
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// ParsePoint parses a comma-separated "x,y" coordinate pair. Surrounding
// whitespace in either part is tolerated. The returned error describes what
// was malformed; both coordinates must be finite numbers.
func ParsePoint(s string) (Point, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return Point{}, fmt.Errorf("missing comma")
	}

	xStr := strings.TrimSpace(s[:comma])
	yStr := strings.TrimSpace(s[comma+1:])
	if xStr == "" || yStr == "" {
		return Point{}, fmt.Errorf("empty coordinate")
	}

	x, err := strconv.ParseFloat(xStr, 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid number %q", xStr)
	}
	y, err := strconv.ParseFloat(yStr, 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid number %q", yStr)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return Point{}, fmt.Errorf("coordinate not finite")
	}

	return Point{X: x, Y: y}, nil
}

// cross returns the z component of (a-o) x (b-o). Positive means the turn
// o->a->b is counterclockwise (strictly left).
func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ConvexHull computes the convex hull of pts using Andrew's monotone chain,
// returning the hull vertices in counterclockwise order. Collinear points on
// a hull edge are dropped. Input with fewer than two points is returned as a
// copy, unchanged. The input slice is never mutated.
func ConvexHull(pts []Point) []Point {
	if len(pts) <= 1 {
		return append([]Point(nil), pts...)
	}

	sorted := append([]Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	hull := make([]Point, 0, len(sorted)+1)

	// Lower chain.
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper chain.
	lower := len(hull)
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) > lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Last point repeats the first.
	if len(hull) > 1 {
		hull = hull[:len(hull)-1]
	}
	return hull
}

// PolygonArea computes the area of the polygon described by poly (vertices in
// order) via the shoelace formula. Fewer than three vertices yields 0.
func PolygonArea(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	area := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		area += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(area) / 2
}

// HullArea is shorthand for PolygonArea(ConvexHull(pts)).
func HullArea(pts []Point) float64 {
	return PolygonArea(ConvexHull(pts))
}
