package geo

import (
	"math"
	"sort"
)

// PointInPolygon reports whether pt lies inside the ring using horizontal
// ray casting. The strict y comparison keeps a vertex shared by two edges
// from being counted twice. Points exactly on the boundary may fall on
// either side.
func PointInPolygon(pt Point, poly Polygon) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y

		if (yi > pt.Y) != (yj > pt.Y) &&
			pt.X < (xj-xi)*(pt.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// SegmentsIntersect reports whether segment p1-p2 properly crosses q1-q2.
// Touching at an endpoint does not count, and parallel or collinear
// segments never intersect.
func SegmentsIntersect(p1, p2, q1, q2 Point) bool {
	det := (p2.X-p1.X)*(q2.Y-q1.Y) - (q2.X-q1.X)*(p2.Y-p1.Y)
	if det == 0 {
		return false
	}
	lambda := ((q2.Y-q1.Y)*(q2.X-p1.X) + (q1.X-q2.X)*(q2.Y-p1.Y)) / det
	gamma := ((p1.Y-p2.Y)*(q2.X-p1.X) + (p2.X-p1.X)*(q2.Y-p1.Y)) / det
	return 0 < lambda && lambda < 1 && 0 < gamma && gamma < 1
}

// PolylineVisible reports whether any vertex lies inside the ring or any
// segment of the polyline crosses any edge of the ring. A segment that only
// grazes ring vertices (a diagonal running corner to corner, for example)
// is visible when it passes through the interior between those contacts.
// An empty vertex list is never visible.
func PolylineVisible(vertices []Point, poly Polygon) bool {
	if len(vertices) == 0 {
		return false
	}

	for _, v := range vertices {
		if PointInPolygon(v, poly) {
			return true
		}
	}

	// All vertices outside: a long segment may still pass through the window.
	for i := 0; i < len(vertices)-1; i++ {
		p1, p2 := vertices[i], vertices[i+1]
		crossed := false
		poly.Edges(func(a, b Point) bool {
			crossed = SegmentsIntersect(p1, p2, a, b)
			return !crossed
		})
		if crossed || passesThroughInterior(p1, p2, poly) {
			return true
		}
	}

	return false
}

// passesThroughInterior handles segments whose only contact with the ring
// is at vertices, where SegmentsIntersect reports no proper crossing. It
// collects every parameter along p1-p2 at which the segment meets a
// non-parallel edge, endpoints included, and tests the midpoint between
// consecutive contacts. The midpoint must be strictly interior: a segment
// running along an edge touches the ring without entering it.
func passesThroughInterior(p1, p2 Point, poly Polygon) bool {
	var contacts []float64
	poly.Edges(func(a, b Point) bool {
		if t, ok := segmentContact(p1, p2, a, b); ok {
			contacts = append(contacts, t)
		}
		return true
	})
	if len(contacts) < 2 {
		return false
	}
	sort.Float64s(contacts)

	for i := 1; i < len(contacts); i++ {
		t0, t1 := contacts[i-1], contacts[i]
		if t1-t0 <= contactEpsilon {
			continue
		}
		mid := (t0 + t1) / 2
		pt := Point{
			X: p1.X + mid*(p2.X-p1.X),
			Y: p1.Y + mid*(p2.Y-p1.Y),
		}
		if PointInPolygon(pt, poly) && !onBoundary(pt, poly) {
			return true
		}
	}
	return false
}

// onBoundary reports whether pt lies on an edge of the ring, within a
// relative tolerance.
func onBoundary(pt Point, poly Polygon) bool {
	found := false
	poly.Edges(func(a, b Point) bool {
		found = onSegment(pt, a, b)
		return !found
	})
	return found
}

func onSegment(pt, a, b Point) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	px, py := pt.X-a.X, pt.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return px == 0 && py == 0
	}
	if math.Abs(dx*py-dy*px) > boundaryEpsilon*length*math.Max(length, math.Hypot(px, py)) {
		return false
	}
	dot := dx*px + dy*py
	return dot >= 0 && dot <= length*length
}

// boundaryEpsilon is the sine of the largest angle at which a point still
// counts as lying on an edge.
const boundaryEpsilon = 1e-12

// contactEpsilon merges contacts that land on the same shared vertex.
const contactEpsilon = 1e-12

// segmentContact returns the parameter along p1-p2 where it meets q1-q2,
// counting contacts at either segment's endpoints.
func segmentContact(p1, p2, q1, q2 Point) (float64, bool) {
	det := (p2.X-p1.X)*(q2.Y-q1.Y) - (q2.X-q1.X)*(p2.Y-p1.Y)
	if det == 0 {
		return 0, false
	}
	lambda := ((q2.Y-q1.Y)*(q2.X-p1.X) + (q1.X-q2.X)*(q2.Y-p1.Y)) / det
	gamma := ((p1.Y-p2.Y)*(q2.X-p1.X) + (p2.X-p1.X)*(q2.Y-p1.Y)) / det
	if lambda >= 0 && lambda <= 1 && gamma >= 0 && gamma <= 1 {
		return lambda, true
	}
	return 0, false
}

// CircleVisible reports whether a circle or arc should be considered to
// touch the ring: either its center is inside, or, for a positive radius,
// its bounding box overlaps the ring's bounding box. The box test
// over-approximates; a disk near a corner of the ring may be kept even
// though it does not touch the ring itself.
func CircleVisible(center Point, radius float64, poly Polygon) bool {
	if PointInPolygon(center, poly) {
		return true
	}
	if radius > 0 {
		return CircleBounds(center, radius).Overlaps(poly.Bounds())
	}
	return false
}
