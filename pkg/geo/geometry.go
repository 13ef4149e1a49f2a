// Package geo provides planar geometry types and the visibility predicates
// used to decide whether a drawing entity touches a clip polygon.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MinPolygonPoints is the smallest number of points that forms a ring.
const MinPolygonPoints = 3

// Point is a 2D coordinate in drawing units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String implements fmt.Stringer
func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Polygon is a single implicitly closed ring. The edge from the last point
// back to the first is always part of the boundary.
type Polygon []Point

// Valid reports whether the ring has enough points to enclose an area.
func (p Polygon) Valid() bool {
	return len(p) >= MinPolygonPoints
}

// Edges calls fn for every boundary edge, closing edge last.
// Iteration stops early when fn returns false.
func (p Polygon) Edges(fn func(a, b Point) bool) {
	n := len(p)
	if n < 2 {
		return
	}
	for i := 0; i < n-1; i++ {
		if !fn(p[i], p[i+1]) {
			return
		}
	}
	fn(p[n-1], p[0])
}

// Bounds returns the axis-aligned bounding box of the ring.
func (p Polygon) Bounds() BBox {
	return BoundsOf(p)
}

// BBox is an axis-aligned rectangle.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// BoundsOf returns the bounding box of the given points.
// A NaN coordinate poisons the corresponding extent so that every
// overlap comparison against it is false.
func BoundsOf(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	b := BBox{
		MinX: points[0].X,
		MinY: points[0].Y,
		MaxX: points[0].X,
		MaxY: points[0].Y,
	}
	for _, pt := range points[1:] {
		b.MinX = math.Min(b.MinX, pt.X)
		b.MinY = math.Min(b.MinY, pt.Y)
		b.MaxX = math.Max(b.MaxX, pt.X)
		b.MaxY = math.Max(b.MaxY, pt.Y)
	}
	return b
}

// CircleBounds returns the bounding box of a circle.
func CircleBounds(center Point, radius float64) BBox {
	return BBox{
		MinX: center.X - radius,
		MinY: center.Y - radius,
		MaxX: center.X + radius,
		MaxY: center.Y + radius,
	}
}

// Overlaps reports whether two boxes share any area or boundary.
func (b BBox) Overlaps(o BBox) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX &&
		b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

// ParseCoordinate reads a numeric field. Text that is not a number yields
// NaN instead of an error so that a malformed coordinate is simply never
// inside anything and never crosses anything. Out of range values keep
// their infinite result.
func ParseCoordinate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}
