// Package dose provides access to dose distributions on voxel grids and the
// cursors that walk them, either over the whole grid or over the voxels of a
// structure mask.
package dose

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
)

// Accessor is a dose distribution: a grid plus one value (Gy) per voxel.
type Accessor interface {
	GeometricInfo() *grid.GeometricInfo
	// ValueAt returns the dose of voxel id; false if id is outside the grid.
	ValueAt(id grid.VoxelGridID) (float64, bool)
	ValueAtIndex(idx grid.VoxelGridIndex3D) (float64, bool)
	UID() string
}

// ArrayAccessor holds a dose distribution in memory, ordered by voxel id.
type ArrayAccessor struct {
	geo    *grid.GeometricInfo
	values []float64
	uid    string
}

// NewArrayAccessor wraps values, which must hold one dose per voxel of geo.
// An empty uid is replaced by a generated one. values is not copied.
func NewArrayAccessor(geo *grid.GeometricInfo, values []float64, uid string) (*ArrayAccessor, error) {
	if geo == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "geometric info is nil")
	}
	if len(values) != geo.NumberOfVoxels() {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter,
			"got %d dose values for %d voxels", len(values), geo.NumberOfVoxels())
	}
	if uid == "" {
		uid = "Dose_" + uuid.New().String()
	}
	return &ArrayAccessor{geo: geo, values: values, uid: uid}, nil
}

// NewConstantAccessor creates a dose distribution with the same value in
// every voxel.
func NewConstantAccessor(geo *grid.GeometricInfo, value float64, uid string) (*ArrayAccessor, error) {
	if geo == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "geometric info is nil")
	}
	values := make([]float64, geo.NumberOfVoxels())
	for i := range values {
		values[i] = value
	}
	return NewArrayAccessor(geo, values, uid)
}

func (a *ArrayAccessor) GeometricInfo() *grid.GeometricInfo { return a.geo }

func (a *ArrayAccessor) ValueAt(id grid.VoxelGridID) (float64, bool) {
	if !a.geo.ValidID(id) {
		return 0, false
	}
	return a.values[id], true
}

func (a *ArrayAccessor) ValueAtIndex(idx grid.VoxelGridIndex3D) (float64, bool) {
	id, ok := a.geo.ID(idx)
	if !ok {
		return 0, false
	}
	return a.values[id], true
}

func (a *ArrayAccessor) UID() string { return a.uid }

// Max returns the largest dose value, or 0 for an empty distribution.
func (a *ArrayAccessor) Max() float64 {
	if len(a.values) == 0 {
		return 0
	}
	return floats.Max(a.values)
}
