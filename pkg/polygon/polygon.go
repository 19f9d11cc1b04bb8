package polygon

import (
	"math"

	"github.com/golang/geo/r2"
)

// Polygon is an outer ring with optional holes.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Area returns the outer area minus the hole areas.
func (p Polygon) Area() float64 {
	a := p.Outer.Area()
	for _, h := range p.Holes {
		a -= h.Area()
	}
	return math.Max(a, 0)
}

// Bound returns the bounding rectangle of the outer ring.
func (p Polygon) Bound() r2.Rect {
	return p.Outer.Bound()
}

// Contains reports whether pt is inside the outer ring and outside every hole.
func (p Polygon) Contains(pt r2.Point) bool {
	if !p.Outer.Contains(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.Contains(pt) {
			return false
		}
	}
	return true
}

// ClipArea returns the area of the polygon inside cell.
func (p Polygon) ClipArea(cell r2.Rect) float64 {
	a := p.Outer.ClipArea(cell)
	if a == 0 {
		return 0
	}
	for _, h := range p.Holes {
		a -= h.ClipArea(cell)
	}
	return math.Max(a, 0)
}

// Topology describes how the rings of one contour plane relate to each other.
type Topology struct {
	// Donut is set when two nested rings were merged into a polygon with a hole.
	Donut bool
	// SelfIntersecting is set when a ring touches or crosses itself.
	SelfIntersecting bool
	// Overlapping is set when rings touch, cross or contain one another and
	// could not be read as a donut.
	Overlapping bool
}

// Clean reports whether the rings can be voxelized exactly.
func (t Topology) Clean() bool {
	return !t.SelfIntersecting && !t.Overlapping
}

// Assemble turns the rings of one plane into polygons. Exactly two nested,
// non-touching rings form a donut: the outer ring with the inner one as its
// hole. In every other case each ring becomes its own polygon and the returned
// Topology says whether they interfere.
func Assemble(rings []Ring) ([]Polygon, Topology) {
	var topo Topology
	for _, r := range rings {
		if r.SelfIntersects() {
			topo.SelfIntersecting = true
			break
		}
	}

	if len(rings) == 2 {
		a, b := rings[0], rings[1]
		switch {
		case a.Within(b):
			topo.Donut = true
			return []Polygon{{Outer: b, Holes: []Ring{a}}}, topo
		case b.Within(a):
			topo.Donut = true
			return []Polygon{{Outer: a, Holes: []Ring{b}}}, topo
		}
	}

	polys := make([]Polygon, len(rings))
	for i, r := range rings {
		polys[i] = Polygon{Outer: r}
	}

	for i := 0; i < len(rings) && !topo.Overlapping; i++ {
		for j := i + 1; j < len(rings); j++ {
			if rings[i].Crosses(rings[j]) || rings[i].Within(rings[j]) || rings[j].Within(rings[i]) {
				topo.Overlapping = true
				break
			}
		}
	}
	return polys, topo
}
