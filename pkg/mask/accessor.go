package mask

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
	"dosevolume/pkg/structure"
)

// Accessor computes a structure's mask once and serves it afterwards.
// Computation happens on the first UpdateMask or RelevantVoxels call; point
// queries never trigger it.
type Accessor struct {
	geo       *grid.GeometricInfo
	structure *structure.Structure
	engine    Engine
	uid       string

	mu       sync.RWMutex
	computed bool
	voxels   []Voxel
}

// NewAccessor creates an accessor for s on geo. A nil engine selects ContourMask
// with default options.
func NewAccessor(s *structure.Structure, geo *grid.GeometricInfo, engine Engine) (*Accessor, error) {
	if s == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "structure is nil")
	}
	if geo == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "geometric info is nil")
	}
	if rterr.IsNil(engine) {
		engine = NewContourMask()
	}
	return &Accessor{
		geo:       geo,
		structure: s,
		engine:    engine,
		uid:       "Mask_" + uuid.New().String(),
	}, nil
}

// UpdateMask computes the mask unless it already exists. A failed computation
// leaves the accessor without a mask, so a later call tries again.
func (a *Accessor) UpdateMask() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.computed {
		return nil
	}
	voxels, err := a.engine.Compute(a.geo, a.structure)
	if err != nil {
		return errors.Wrapf(err, "computing mask for %q", a.structure.Label())
	}
	a.voxels = voxels
	a.computed = true
	return nil
}

// IsUpToDate reports whether the mask has been computed.
func (a *Accessor) IsUpToDate() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.computed
}

// RelevantVoxels returns every voxel with a non-zero fraction, ordered by id,
// computing the mask if needed. The slice is shared and must not be modified.
func (a *Accessor) RelevantVoxels() ([]Voxel, error) {
	if err := a.UpdateMask(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.voxels, nil
}

// RelevantVoxelsAbove returns a new slice holding the voxels whose fraction
// exceeds threshold.
func (a *Accessor) RelevantVoxelsAbove(threshold float64) ([]Voxel, error) {
	all, err := a.RelevantVoxels()
	if err != nil {
		return nil, err
	}
	out := make([]Voxel, 0, len(all))
	for _, v := range all {
		if v.Fraction > threshold {
			out = append(out, v)
		}
	}
	return out, nil
}

// MaskAt returns the mask entry for id. The second result is false when the
// mask has not been computed yet, id is outside the grid, or the voxel is not
// covered; the returned fraction is then 0.
func (a *Accessor) MaskAt(id grid.VoxelGridID) (Voxel, bool) {
	empty := Voxel{ID: id}
	if !a.geo.ValidID(id) {
		return empty, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.computed {
		return empty, false
	}
	i := sort.Search(len(a.voxels), func(i int) bool { return a.voxels[i].ID >= id })
	if i < len(a.voxels) && a.voxels[i].ID == id {
		return a.voxels[i], true
	}
	return empty, false
}

// MaskAtIndex is MaskAt for a 3D index.
func (a *Accessor) MaskAtIndex(idx grid.VoxelGridIndex3D) (Voxel, bool) {
	id, ok := a.geo.ID(idx)
	if !ok {
		return Voxel{ID: -1}, false
	}
	return a.MaskAt(id)
}

// Plane returns the fractions of slice z as a dense row-major dimX*dimY array,
// computing the mask if needed.
func (a *Accessor) Plane(z int) ([]float64, error) {
	dims := a.geo.Dimensions()
	if z < 0 || z >= dims[2] {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "slice %d outside [0,%d)", z, dims[2])
	}
	voxels, err := a.RelevantVoxels()
	if err != nil {
		return nil, err
	}
	n := dims[0] * dims[1]
	lo := grid.VoxelGridID(z * n)
	hi := lo + grid.VoxelGridID(n)
	plane := make([]float64, n)
	start := sort.Search(len(voxels), func(i int) bool { return voxels[i].ID >= lo })
	for _, v := range voxels[start:] {
		if v.ID >= hi {
			break
		}
		plane[v.ID-lo] = v.Fraction
	}
	return plane, nil
}

// MaskUID returns the accessor's unique id.
func (a *Accessor) MaskUID() string { return a.uid }

// GeometricInfo returns the grid the mask is computed on.
func (a *Accessor) GeometricInfo() *grid.GeometricInfo { return a.geo }

// Structure returns the voxelized structure.
func (a *Accessor) Structure() *structure.Structure { return a.structure }

// IsGridHomogeneous reports whether the grid has uniform slice spacing. The
// engines reject inhomogeneous grids.
func (a *Accessor) IsGridHomogeneous() bool { return a.geo.IsHomogeneous() }
