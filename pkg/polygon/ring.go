// Package polygon is the small planar geometry kernel used by the mask engines:
// rings and polygons with holes in grid index coordinates, their areas, point
// containment, clipping against voxel cells, and the intersection tests needed
// to classify the contours of one plane.
package polygon

import (
	"math"

	"github.com/golang/geo/r2"
	geom "github.com/twpayne/go-geom"
)

// Zeroish merges points closer than this and absorbs rounding error in
// orientation tests. Coordinates are grid indices, so this is a tiny fraction
// of a voxel.
const Zeroish = 1e-9

// Ring is a closed sequence of points. The closing edge from the last point to
// the first is implicit.
type Ring []r2.Point

// NewRing copies pts, dropping consecutive duplicates and an explicit closing point.
func NewRing(pts []r2.Point) Ring {
	r := make(Ring, 0, len(pts))
	for _, p := range pts {
		if n := len(r); n > 0 && samePoint(r[n-1], p) {
			continue
		}
		r = append(r, p)
	}
	for len(r) > 1 && samePoint(r[0], r[len(r)-1]) {
		r = r[:len(r)-1]
	}
	return r
}

func samePoint(a, b r2.Point) bool {
	return math.Abs(a.X-b.X) <= Zeroish && math.Abs(a.Y-b.Y) <= Zeroish
}

// Valid reports whether the ring has at least three distinct points.
func (r Ring) Valid() bool {
	return len(r) >= 3
}

// Area returns the unsigned enclosed area.
func (r Ring) Area() float64 {
	return ringArea(r)
}

// Bound returns the axis-aligned bounding rectangle.
func (r Ring) Bound() r2.Rect {
	return r2.RectFromPoints(r...)
}

// edge returns the segment from point i to point i+1 (wrapping).
func (r Ring) edge(i int) (r2.Point, r2.Point) {
	j := i + 1
	if j == len(r) {
		j = 0
	}
	return r[i], r[j]
}

// Contains reports whether p lies inside the ring (even-odd rule). Points on
// the boundary may go either way; use OnBoundary to tell.
func (r Ring) Contains(p r2.Point) bool {
	inside := false
	for i := range r {
		a, b := r.edge(i)
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// OnBoundary reports whether p lies on one of the ring's edges.
func (r Ring) OnBoundary(p r2.Point) bool {
	for i := range r {
		a, b := r.edge(i)
		if math.Abs(orient(a, b, p)) <= Zeroish && onSegment(a, b, p) {
			return true
		}
	}
	return false
}

// SelfIntersects reports whether two non-adjacent edges of the ring touch or cross.
func (r Ring) SelfIntersects() bool {
	n := len(r)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := r.edge(i)
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent through the closing edge
			}
			b1, b2 := r.edge(j)
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// Crosses reports whether any edge of r touches or crosses any edge of o.
func (r Ring) Crosses(o Ring) bool {
	if !r.Bound().Intersects(o.Bound()) {
		return false
	}
	for i := range r {
		a1, a2 := r.edge(i)
		ea := r2.RectFromPoints(a1, a2)
		for j := range o {
			b1, b2 := o.edge(j)
			if !ea.Intersects(r2.RectFromPoints(b1, b2)) {
				continue
			}
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// Within reports whether r lies entirely inside o without touching it.
func (r Ring) Within(o Ring) bool {
	if !o.Bound().Contains(r.Bound()) || r.Crosses(o) {
		return false
	}
	// Without crossings every vertex is on the same side of o.
	for _, p := range r {
		if !o.OnBoundary(p) {
			return o.Contains(p)
		}
	}
	return false
}

// ClipArea returns the area of the part of the ring that lies inside cell.
// The cell is convex, so clipping the ring against its four sides one after the
// other yields a polygon of the right area even for concave rings.
func (r Ring) ClipArea(cell r2.Rect) float64 {
	b := r.Bound()
	if !b.Intersects(cell) {
		return 0
	}
	if cell.Contains(b) {
		return r.Area()
	}

	pts := []r2.Point(r)
	pts = clipSide(pts, func(p r2.Point) bool { return p.X >= cell.X.Lo }, func(a, b r2.Point) r2.Point {
		return atX(a, b, cell.X.Lo)
	})
	pts = clipSide(pts, func(p r2.Point) bool { return p.X <= cell.X.Hi }, func(a, b r2.Point) r2.Point {
		return atX(a, b, cell.X.Hi)
	})
	pts = clipSide(pts, func(p r2.Point) bool { return p.Y >= cell.Y.Lo }, func(a, b r2.Point) r2.Point {
		return atY(a, b, cell.Y.Lo)
	})
	pts = clipSide(pts, func(p r2.Point) bool { return p.Y <= cell.Y.Hi }, func(a, b r2.Point) r2.Point {
		return atY(a, b, cell.Y.Hi)
	})
	if len(pts) < 3 {
		return 0
	}
	return ringArea(pts)
}

func clipSide(in []r2.Point, inside func(r2.Point) bool, cut func(a, b r2.Point) r2.Point) []r2.Point {
	if len(in) == 0 {
		return nil
	}
	out := make([]r2.Point, 0, len(in)+4)
	prev := in[len(in)-1]
	prevIn := inside(prev)
	for _, cur := range in {
		curIn := inside(cur)
		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, cut(prev, cur), cur)
		case !curIn && prevIn:
			out = append(out, cut(prev, cur))
		}
		prev, prevIn = cur, curIn
	}
	return out
}

func atX(a, b r2.Point, x float64) r2.Point {
	t := (x - a.X) / (b.X - a.X)
	return r2.Point{X: x, Y: a.Y + t*(b.Y-a.Y)}
}

func atY(a, b r2.Point, y float64) r2.Point {
	t := (y - a.Y) / (b.Y - a.Y)
	return r2.Point{X: a.X + t*(b.X-a.X), Y: y}
}

// ringArea closes the ring and measures it with go-geom's shoelace.
func ringArea(pts []r2.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	flat := make([]float64, 0, 2*(len(pts)+1))
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	flat = append(flat, pts[0].X, pts[0].Y)
	return math.Abs(geom.NewLinearRingFlat(geom.XY, flat).Area())
}

// orient is twice the signed area of triangle abc; positive when c is left of a->b.
func orient(a, b, c r2.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether p, known to be collinear with a-b, lies between them.
func onSegment(a, b, p r2.Point) bool {
	return math.Min(a.X, b.X)-Zeroish <= p.X && p.X <= math.Max(a.X, b.X)+Zeroish &&
		math.Min(a.Y, b.Y)-Zeroish <= p.Y && p.Y <= math.Max(a.Y, b.Y)+Zeroish
}

func sign(v float64) int {
	switch {
	case v > Zeroish:
		return 1
	case v < -Zeroish:
		return -1
	default:
		return 0
	}
}

// segmentsIntersect reports whether segments p1-p2 and q1-q2 touch or cross.
func segmentsIntersect(p1, p2, q1, q2 r2.Point) bool {
	d1 := sign(orient(q1, q2, p1))
	d2 := sign(orient(q1, q2, p2))
	d3 := sign(orient(p1, p2, q1))
	d4 := sign(orient(p1, p2, q2))

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}
