package mask

import (
	"math"
	"sort"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dosevolume/internal/parallel"
	"dosevolume/pkg/grid"
	"dosevolume/pkg/polygon"
	"dosevolume/pkg/rterr"
	"dosevolume/pkg/structure"
)

// ContourMask is the area-weighted voxelization engine. Every contour plane is
// rasterized by intersecting each voxel cell of its bounding box with the
// plane's polygons; the planes are then spread over the dose slices they
// overlap in z.
type ContourMask struct {
	settings
}

// NewContourMask creates the engine.
func NewContourMask(opts ...Option) *ContourMask {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &ContourMask{settings: s}
}

// Compute implements Engine.
func (m *ContourMask) Compute(geo *grid.GeometricInfo, s *structure.Structure) ([]Voxel, error) {
	return voxelize(geo, s, m.settings, areaCoverage)
}

// coverageFunc returns the covered fraction of a unit cell.
type coverageFunc func(polys []polygon.Polygon, cell r2.Rect) float64

func areaCoverage(polys []polygon.Polygon, cell r2.Rect) float64 {
	sum := 0.0
	for _, p := range polys {
		sum += p.ClipArea(cell)
	}
	return math.Min(sum, 1)
}

// contourPlane holds the rings of all contours sharing one z position.
type contourPlane struct {
	z      float64
	rings  []polygon.Ring
	polys  []polygon.Polygon
	bounds r2.Rect
}

// voxelPlane is the dense coverage of a contour plane over its cell range.
type voxelPlane struct {
	slab    r1.Interval
	polys   []polygon.Polygon
	x0, y0  int
	w, h    int
	weights []float64
}

func voxelize(geo *grid.GeometricInfo, s *structure.Structure, cfg settings, cover coverageFunc) ([]Voxel, error) {
	if geo == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "geometric info is nil")
	}
	if s == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "structure is nil")
	}
	if !geo.IsHomogeneous() {
		return nil, errors.Wrap(rterr.ErrUnsupportedGrid, "voxelization requires uniform slice spacing")
	}
	log := cfg.logger.With(zap.String("structure", s.Label()), zap.String("uid", s.UID()))

	planes, err := groupContours(geo, s, cfg.zTolerance, log)
	if err != nil {
		return nil, err
	}
	if len(planes) == 0 {
		log.Warn("structure has no voxelizable contours")
		return []Voxel{}, nil
	}

	for i := range planes {
		p := &planes[i]
		polys, topo := polygon.Assemble(p.rings)
		if !topo.Clean() {
			if cfg.strict {
				return nil, errors.Wrapf(rterr.ErrSelfIntersection,
					"contours at z index %.3f intersect (self=%t overlap=%t)", p.z, topo.SelfIntersecting, topo.Overlapping)
			}
			log.Warn("intersecting contours, mask may be inaccurate",
				zap.Float64("z", p.z), zap.Bool("self", topo.SelfIntersecting), zap.Bool("overlap", topo.Overlapping))
		}
		p.polys = polys
	}

	slabs, homogeneous := planeSlabs(planes, cfg.zTolerance)
	if !homogeneous {
		log.Warn("contour planes are not evenly spaced, each plane extends to the midpoints with its neighbours",
			zap.Int("planes", len(planes)))
	}

	dims := geo.Dimensions()
	vplanes := make([]voxelPlane, 0, len(planes))
	for i, p := range planes {
		x0, x1, okX := cellRange(p.bounds.X.Lo, p.bounds.X.Hi, dims[0])
		y0, y1, okY := cellRange(p.bounds.Y.Lo, p.bounds.Y.Hi, dims[1])
		if !okX || !okY {
			log.Debug("contour plane outside the grid", zap.Float64("z", p.z))
			continue
		}
		w, h := x1-x0+1, y1-y0+1
		vplanes = append(vplanes, voxelPlane{slab: slabs[i], polys: p.polys, x0: x0, y0: y0, w: w, h: h, weights: make([]float64, w*h)})
	}

	if err := rasterizePlanes(vplanes, cfg.threads, cover); err != nil {
		return nil, err
	}

	voxels := foldPlanes(vplanes, dims)
	log.Debug("mask computed", zap.Int("planes", len(vplanes)), zap.Int("voxels", len(voxels)))
	return voxels, nil
}

// groupContours converts the contours to continuous grid indices, rejects
// tilted ones and groups them by z.
func groupContours(geo *grid.GeometricInfo, s *structure.Structure, tol float64, log *zap.Logger) ([]contourPlane, error) {
	type flatContour struct {
		z    float64
		ring polygon.Ring
	}

	var contours []flatContour
	for i, p := range s.Polygons() {
		if p.Type == structure.Point || len(p.Points) < 3 {
			log.Debug("skipping contour without area", zap.Int("polygon", i), zap.Stringer("type", p.Type))
			continue
		}
		pts := make([]r2.Point, len(p.Points))
		zMin, zMax := math.Inf(1), math.Inf(-1)
		for j, w := range p.Points {
			c := geo.WorldToContinuousIndex(w)
			pts[j] = r2.Point{X: c.X, Y: c.Y}
			zMin = math.Min(zMin, c.Z)
			zMax = math.Max(zMax, c.Z)
		}
		if zMax-zMin > tol {
			return nil, errors.Wrapf(rterr.ErrTiltedPlane,
				"polygon %d spans z index %.4f..%.4f", i, zMin, zMax)
		}
		ring := polygon.NewRing(pts)
		if !ring.Valid() {
			log.Debug("skipping degenerate contour", zap.Int("polygon", i))
			continue
		}
		contours = append(contours, flatContour{z: (zMin + zMax) / 2, ring: ring})
	}

	sort.SliceStable(contours, func(i, j int) bool { return contours[i].z < contours[j].z })

	var planes []contourPlane
	for _, c := range contours {
		if n := len(planes); n > 0 && c.z-planes[n-1].z <= tol {
			last := &planes[n-1]
			last.rings = append(last.rings, c.ring)
			last.bounds = last.bounds.Union(c.ring.Bound())
			continue
		}
		planes = append(planes, contourPlane{z: c.z, rings: []polygon.Ring{c.ring}, bounds: c.ring.Bound()})
	}
	return planes, nil
}

// planeSlabs returns the z extent, in slices, that each contour plane
// represents. A plane reaches halfway to its neighbours; the first and last
// planes reach as far outwards as inwards, and a single plane covers one
// slice. The second result is false when the spacing varies.
func planeSlabs(planes []contourPlane, tol float64) ([]r1.Interval, bool) {
	slabs := make([]r1.Interval, len(planes))
	if len(planes) == 1 {
		slabs[0] = r1.Interval{Lo: planes[0].z - 0.5, Hi: planes[0].z + 0.5}
		return slabs, true
	}
	minGap, maxGap := math.Inf(1), 0.0
	for i := range planes {
		z := planes[i].z
		var below, above float64
		if i > 0 {
			below = (z - planes[i-1].z) / 2
		}
		if i < len(planes)-1 {
			above = (planes[i+1].z - z) / 2
			minGap = math.Min(minGap, 2*above)
			maxGap = math.Max(maxGap, 2*above)
		}
		if i == 0 {
			below = above
		}
		if i == len(planes)-1 {
			above = below
		}
		slabs[i] = r1.Interval{Lo: z - below, Hi: z + above}
	}
	return slabs, maxGap-minGap <= tol
}

// cellRange returns the indices of the cells [i-0.5, i+0.5) touched by
// [lo, hi], clipped to [0, dim).
func cellRange(lo, hi float64, dim int) (int, int, bool) {
	i0 := int(math.Floor(lo + 0.5))
	i1 := int(math.Floor(hi + 0.5))
	if i0 < 0 {
		i0 = 0
	}
	if i1 > dim-1 {
		i1 = dim - 1
	}
	return i0, i1, i0 <= i1
}

func unitCell(x, y int) r2.Rect {
	fx, fy := float64(x), float64(y)
	return r2.Rect{
		X: r1.Interval{Lo: fx - 0.5, Hi: fx + 0.5},
		Y: r1.Interval{Lo: fy - 0.5, Hi: fy + 0.5},
	}
}

// rasterizePlanes fills the weights of every voxel plane. Rows are independent
// tasks writing disjoint parts of the weight arrays.
func rasterizePlanes(vplanes []voxelPlane, threads int, cover coverageFunc) error {
	offsets := make([]int, len(vplanes)+1)
	for i, vp := range vplanes {
		offsets[i+1] = offsets[i] + vp.h
	}

	return parallel.For(offsets[len(vplanes)], threads, func(task int) error {
		pi := sort.SearchInts(offsets, task+1) - 1
		vp := &vplanes[pi]
		row := task - offsets[pi]

		y := vp.y0 + row
		dst := vp.weights[row*vp.w : (row+1)*vp.w]
		for col := range dst {
			dst[col] = cover(vp.polys, unitCell(vp.x0+col, y))
		}
		return nil
	})
}

// foldPlanes spreads every voxel plane over the dose slices overlapping its
// slab, weighting by the overlap, and returns the non-zero voxels ordered by
// id.
func foldPlanes(vplanes []voxelPlane, dims [3]int) []Voxel {
	gx0, gy0 := math.MaxInt, math.MaxInt
	gx1, gy1 := -1, -1
	for _, vp := range vplanes {
		gx0 = min(gx0, vp.x0)
		gy0 = min(gy0, vp.y0)
		gx1 = max(gx1, vp.x0+vp.w-1)
		gy1 = max(gy1, vp.y0+vp.h-1)
	}
	if gx1 < gx0 || gy1 < gy0 {
		return []Voxel{}
	}
	gw, gh := gx1-gx0+1, gy1-gy0+1

	slices := make(map[int][]float64)
	for _, vp := range vplanes {
		lo, hi := vp.slab.Lo, vp.slab.Hi
		k0, k1, ok := cellRange(lo, hi, dims[2])
		if !ok {
			continue
		}
		for k := k0; k <= k1; k++ {
			overlap := math.Min(hi, float64(k)+0.5) - math.Max(lo, float64(k)-0.5)
			if overlap <= polygon.Zeroish {
				continue
			}
			dst, ok := slices[k]
			if !ok {
				dst = make([]float64, gw*gh)
				slices[k] = dst
			}
			for r := 0; r < vp.h; r++ {
				base := (vp.y0+r-gy0)*gw + (vp.x0 - gx0)
				src := vp.weights[r*vp.w : (r+1)*vp.w]
				for c, v := range src {
					dst[base+c] += overlap * v
				}
			}
		}
	}

	ks := make([]int, 0, len(slices))
	for k := range slices {
		ks = append(ks, k)
	}
	sort.Ints(ks)

	plane := dims[0] * dims[1]
	var voxels []Voxel
	for _, k := range ks {
		data := slices[k]
		for r := 0; r < gh; r++ {
			for c := 0; c < gw; c++ {
				f := data[r*gw+c]
				if f <= fractionFloor {
					continue
				}
				id := k*plane + (gy0+r)*dims[0] + (gx0 + c)
				voxels = append(voxels, Voxel{ID: grid.VoxelGridID(id), Fraction: math.Min(f, 1)})
			}
		}
	}
	if voxels == nil {
		voxels = []Voxel{}
	}
	return voxels
}
