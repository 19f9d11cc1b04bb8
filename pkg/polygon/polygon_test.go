package polygon

import (
	"math"
	"testing"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(x0, y0, x1, y1 float64) Ring {
	return NewRing([]r2.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}})
}

func cell(x, y float64) r2.Rect {
	return r2.Rect{X: r1.Interval{Lo: x - 0.5, Hi: x + 0.5}, Y: r1.Interval{Lo: y - 0.5, Hi: y + 0.5}}
}

func TestNewRingDropsDuplicates(t *testing.T) {
	r := NewRing([]r2.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}})
	require.Len(t, r, 3)
	assert.True(t, r.Valid())
	assert.False(t, NewRing([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}).Valid())
}

func TestRingArea(t *testing.T) {
	tests := []struct {
		name string
		ring Ring
		want float64
	}{
		{"unit square", rect(0, 0, 1, 1), 1},
		{"rectangle", rect(1, 1, 6, 3), 10},
		{"clockwise", NewRing([]r2.Point{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 0}}), 4},
		{"triangle", NewRing([]r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 3}}), 6},
		{"degenerate", NewRing([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.ring.Area(), 1e-12)
		})
	}
}

func TestContains(t *testing.T) {
	r := rect(0, 0, 4, 4)
	assert.True(t, r.Contains(r2.Point{X: 2, Y: 2}))
	assert.False(t, r.Contains(r2.Point{X: 5, Y: 2}))
	assert.True(t, r.OnBoundary(r2.Point{X: 4, Y: 1}))
	assert.False(t, r.OnBoundary(r2.Point{X: 2, Y: 2}))

	donut := Polygon{Outer: r, Holes: []Ring{rect(1, 1, 3, 3)}}
	assert.False(t, donut.Contains(r2.Point{X: 2, Y: 2}))
	assert.True(t, donut.Contains(r2.Point{X: 0.5, Y: 2}))
}

func TestClipAreaRectangleFractions(t *testing.T) {
	// Rectangle edges through voxel centres 1 and 6.
	r := rect(1, 1, 6, 6)

	assert.InDelta(t, 0.25, r.ClipArea(cell(1, 1)), 1e-12, "corner")
	assert.InDelta(t, 0.5, r.ClipArea(cell(3, 1)), 1e-12, "edge")
	assert.InDelta(t, 0.5, r.ClipArea(cell(6, 4)), 1e-12, "edge")
	assert.InDelta(t, 1.0, r.ClipArea(cell(3, 3)), 1e-12, "interior")
	assert.InDelta(t, 0.0, r.ClipArea(cell(0, 3)), 1e-12, "outside")
	assert.InDelta(t, 0.0, r.ClipArea(cell(8, 8)), 1e-12, "far outside")
}

func TestClipAreaConcave(t *testing.T) {
	// L shape covering three quarters of the 2x2 square centred on (1,1)
	l := NewRing([]r2.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}})
	win := r2.Rect{X: r1.Interval{Lo: 0, Hi: 2}, Y: r1.Interval{Lo: 0, Hi: 2}}
	assert.InDelta(t, 3.0, l.ClipArea(win), 1e-12)

	// A cell straddling the notch corner
	assert.InDelta(t, 0.75, l.ClipArea(cell(1, 1)), 1e-12)
}

func TestClipAreaSumsToRingArea(t *testing.T) {
	// Circle of radius 3.3 sampled at 64 points, centred off-grid.
	var pts []r2.Point
	for i := 0; i < 64; i++ {
		a := 2 * math.Pi * float64(i) / 64
		pts = append(pts, r2.Point{X: 5.2 + 3.3*math.Cos(a), Y: 4.9 + 3.3*math.Sin(a)})
	}
	r := NewRing(pts)

	sum := 0.0
	for x := 0; x <= 10; x++ {
		for y := 0; y <= 10; y++ {
			sum += r.ClipArea(cell(float64(x), float64(y)))
		}
	}
	assert.InDelta(t, r.Area(), sum, 1e-9)
}

func TestDonutClipArea(t *testing.T) {
	p := Polygon{Outer: rect(0, 0, 4, 4), Holes: []Ring{rect(1, 1, 3, 3)}}
	assert.InDelta(t, 12, p.Area(), 1e-12)
	// Cell centred on (1,1) has a quarter inside the hole.
	assert.InDelta(t, 0.75, p.ClipArea(cell(1, 1)), 1e-12)
	assert.InDelta(t, 0.0, p.ClipArea(cell(2, 2)), 1e-12)
}

func TestSelfIntersects(t *testing.T) {
	bowtie := NewRing([]r2.Point{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}})
	assert.True(t, bowtie.SelfIntersects())
	assert.False(t, rect(0, 0, 1, 1).SelfIntersects())
	assert.False(t, NewRing([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}).SelfIntersects())
}

func TestAssemble(t *testing.T) {
	t.Run("donut", func(t *testing.T) {
		polys, topo := Assemble([]Ring{rect(1, 1, 3, 3), rect(0, 0, 4, 4)})
		require.Len(t, polys, 1)
		assert.True(t, topo.Donut)
		assert.True(t, topo.Clean())
		assert.InDelta(t, 12, polys[0].Area(), 1e-12)
	})

	t.Run("disjoint", func(t *testing.T) {
		polys, topo := Assemble([]Ring{rect(0, 0, 1, 1), rect(3, 3, 4, 4)})
		require.Len(t, polys, 2)
		assert.False(t, topo.Donut)
		assert.True(t, topo.Clean())
	})

	t.Run("overlapping", func(t *testing.T) {
		_, topo := Assemble([]Ring{rect(0, 0, 2, 2), rect(1, 1, 3, 3)})
		assert.True(t, topo.Overlapping)
		assert.False(t, topo.Clean())
	})

	t.Run("three nested", func(t *testing.T) {
		polys, topo := Assemble([]Ring{rect(0, 0, 6, 6), rect(1, 1, 5, 5), rect(2, 2, 4, 4)})
		assert.Len(t, polys, 3)
		assert.True(t, topo.Overlapping)
	})

	t.Run("touching nested", func(t *testing.T) {
		_, topo := Assemble([]Ring{rect(0, 0, 4, 4), rect(0, 1, 2, 3)})
		assert.False(t, topo.Donut)
		assert.True(t, topo.Overlapping)
	})

	t.Run("self intersecting", func(t *testing.T) {
		bowtie := NewRing([]r2.Point{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}})
		_, topo := Assemble([]Ring{bowtie})
		assert.True(t, topo.SelfIntersecting)
	})
}
