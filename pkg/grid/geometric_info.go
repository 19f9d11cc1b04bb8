// Package grid describes rectilinear voxel grids: their placement in world
// space, their dimensions and the mapping between linear voxel ids and 3D
// voxel indices.
package grid

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"dosevolume/pkg/rterr"
)

// sliceOffsetTolerance is the largest deviation (mm) between an explicit slice
// offset step and the z spacing that still counts as a homogeneous grid.
const sliceOffsetTolerance = 1e-4

// VoxelGridID is the linear id of a voxel: z*dimX*dimY + y*dimX + x.
type VoxelGridID int

// VoxelGridIndex3D is the (x, y, z) index of a voxel.
type VoxelGridIndex3D struct {
	X, Y, Z int
}

func (i VoxelGridIndex3D) String() string {
	return fmt.Sprintf("(%d,%d,%d)", i.X, i.Y, i.Z)
}

// GeometricInfo is an immutable description of a voxel grid.
//
// The world position of the centre of voxel (i, j, k) is
//
//	origin + R * (i*sx, j*sy, k*sz)
//
// where R is the orientation matrix whose columns are the grid axis directions.
// Continuous indices therefore place voxel centres on integers; voxel (i, j, k)
// covers [i-0.5, i+0.5) x [j-0.5, j+0.5) x [k-0.5, k+0.5).
type GeometricInfo struct {
	origin       r3.Vector
	spacing      r3.Vector
	dims         [3]int
	orientation  *mat.Dense
	inverse      *mat.Dense
	sliceOffsets []float64
}

// Option configures optional GeometricInfo properties.
type Option func(*GeometricInfo) error

// WithOrientation sets the 3x3 orientation matrix (columns are axis directions).
func WithOrientation(m mat.Matrix) Option {
	return func(g *GeometricInfo) error {
		if m == nil {
			return errors.Wrap(rterr.ErrInvalidParameter, "orientation matrix is nil")
		}
		if r, c := m.Dims(); r != 3 || c != 3 {
			return errors.Wrapf(rterr.ErrInvalidParameter, "orientation must be 3x3, got %dx%d", r, c)
		}
		g.orientation = mat.DenseCopyOf(m)
		return nil
	}
}

// WithSliceOffsets sets explicit z positions (mm, relative to the origin) for
// every slice, as found in dose grids with a frame offset vector. A grid whose
// offsets do not step by the z spacing is inhomogeneous.
func WithSliceOffsets(offsets []float64) Option {
	return func(g *GeometricInfo) error {
		g.sliceOffsets = append([]float64(nil), offsets...)
		return nil
	}
}

// NewGeometricInfo creates a grid description. Spacings and dimensions must be
// positive and the orientation matrix invertible.
func NewGeometricInfo(origin, spacing r3.Vector, dims [3]int, opts ...Option) (*GeometricInfo, error) {
	if spacing.X <= 0 || spacing.Y <= 0 || spacing.Z <= 0 {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "spacing must be positive, got %v", spacing)
	}
	for i, d := range dims {
		if d <= 0 {
			return nil, errors.Wrapf(rterr.ErrInvalidParameter, "dimension %d must be positive, got %d", i, d)
		}
	}

	g := &GeometricInfo{
		origin:      origin,
		spacing:     spacing,
		dims:        dims,
		orientation: identity(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	if g.sliceOffsets != nil && len(g.sliceOffsets) != dims[2] {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter,
			"got %d slice offsets for %d slices", len(g.sliceOffsets), dims[2])
	}

	var inv mat.Dense
	if err := inv.Inverse(g.orientation); err != nil {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "orientation matrix is not invertible: %v", err)
	}
	g.inverse = &inv

	return g, nil
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// Origin returns the world position of the centre of voxel (0,0,0).
func (g *GeometricInfo) Origin() r3.Vector { return g.origin }

// Spacing returns the voxel size along each grid axis in mm.
func (g *GeometricInfo) Spacing() r3.Vector { return g.spacing }

// Dimensions returns the number of voxels along x, y and z.
func (g *GeometricInfo) Dimensions() [3]int { return g.dims }

// Orientation returns a copy of the orientation matrix.
func (g *GeometricInfo) Orientation() *mat.Dense { return mat.DenseCopyOf(g.orientation) }

// SliceOffsets returns a copy of the explicit slice offsets, or nil.
func (g *GeometricInfo) SliceOffsets() []float64 {
	if g.sliceOffsets == nil {
		return nil
	}
	return append([]float64(nil), g.sliceOffsets...)
}

// NumberOfVoxels returns dimX*dimY*dimZ.
func (g *GeometricInfo) NumberOfVoxels() int {
	return g.dims[0] * g.dims[1] * g.dims[2]
}

// ValidID reports whether id addresses a voxel of the grid.
func (g *GeometricInfo) ValidID(id VoxelGridID) bool {
	return id >= 0 && int(id) < g.NumberOfVoxels()
}

// ValidIndex reports whether idx lies inside the grid.
func (g *GeometricInfo) ValidIndex(idx VoxelGridIndex3D) bool {
	return idx.X >= 0 && idx.X < g.dims[0] &&
		idx.Y >= 0 && idx.Y < g.dims[1] &&
		idx.Z >= 0 && idx.Z < g.dims[2]
}

// ID converts a 3D index to a linear id.
func (g *GeometricInfo) ID(idx VoxelGridIndex3D) (VoxelGridID, bool) {
	if !g.ValidIndex(idx) {
		return -1, false
	}
	return VoxelGridID(idx.Z*g.dims[0]*g.dims[1] + idx.Y*g.dims[0] + idx.X), true
}

// Index converts a linear id to a 3D index.
func (g *GeometricInfo) Index(id VoxelGridID) (VoxelGridIndex3D, bool) {
	if !g.ValidID(id) {
		return VoxelGridIndex3D{}, false
	}
	n := int(id)
	plane := g.dims[0] * g.dims[1]
	return VoxelGridIndex3D{
		X: n % g.dims[0],
		Y: (n % plane) / g.dims[0],
		Z: n / plane,
	}, true
}

// WorldToContinuousIndex maps a world position (mm) to fractional grid indices.
func (g *GeometricInfo) WorldToContinuousIndex(p r3.Vector) r3.Vector {
	d := p.Sub(g.origin)
	var c mat.VecDense
	c.MulVec(g.inverse, mat.NewVecDense(3, []float64{d.X, d.Y, d.Z}))
	return r3.Vector{
		X: c.AtVec(0) / g.spacing.X,
		Y: c.AtVec(1) / g.spacing.Y,
		Z: c.AtVec(2) / g.spacing.Z,
	}
}

// ContinuousIndexToWorld is the inverse of WorldToContinuousIndex.
func (g *GeometricInfo) ContinuousIndexToWorld(c r3.Vector) r3.Vector {
	var w mat.VecDense
	w.MulVec(g.orientation, mat.NewVecDense(3, []float64{
		c.X * g.spacing.X,
		c.Y * g.spacing.Y,
		c.Z * g.spacing.Z,
	}))
	return g.origin.Add(r3.Vector{X: w.AtVec(0), Y: w.AtVec(1), Z: w.AtVec(2)})
}

// IndexToWorld returns the world position of a voxel centre.
func (g *GeometricInfo) IndexToWorld(idx VoxelGridIndex3D) r3.Vector {
	return g.ContinuousIndexToWorld(r3.Vector{X: float64(idx.X), Y: float64(idx.Y), Z: float64(idx.Z)})
}

// IsHomogeneous reports whether all slices are evenly spaced by the z spacing.
func (g *GeometricInfo) IsHomogeneous() bool {
	for i := 1; i < len(g.sliceOffsets); i++ {
		step := g.sliceOffsets[i] - g.sliceOffsets[i-1]
		if math.Abs(math.Abs(step)-g.spacing.Z) > sliceOffsetTolerance {
			return false
		}
	}
	return true
}

// VoxelVolume returns the volume of one voxel in cm³. Inhomogeneous grids have
// no single voxel volume.
func (g *GeometricInfo) VoxelVolume() (float64, error) {
	if !g.IsHomogeneous() {
		return 0, errors.Wrap(rterr.ErrUnsupportedGrid, "voxel volume of an inhomogeneous grid")
	}
	return g.spacing.X * g.spacing.Y * g.spacing.Z / 1000, nil
}

// Equal reports whether two grids have the same dimensions and, within tol,
// the same origin, spacing and orientation.
func (g *GeometricInfo) Equal(o *GeometricInfo, tol float64) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.dims != o.dims {
		return false
	}
	if !vecClose(g.origin, o.origin, tol) || !vecClose(g.spacing, o.spacing, tol) {
		return false
	}
	return mat.EqualApprox(g.orientation, o.orientation, tol)
}

func vecClose(a, b r3.Vector, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func (g *GeometricInfo) String() string {
	return fmt.Sprintf("GeometricInfo{dims=%v spacing=%v origin=%v homogeneous=%t}",
		g.dims, g.spacing, g.origin, g.IsHomogeneous())
}
