package dose

import (
	"github.com/pkg/errors"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/mask"
	"dosevolume/pkg/rterr"
)

// GeometryTolerance is the largest difference (mm) in origin and spacing
// between a mask grid and a dose grid that are still considered the same.
const GeometryTolerance = 1e-5

// Iterator is a forward cursor over dose voxels. A new iterator is not
// positioned; Reset moves it to the first voxel. The Current methods are only
// meaningful while IsPositionValid reports true. An Iterator is not safe for
// concurrent use.
type Iterator interface {
	Reset() error
	Next()
	IsPositionValid() bool
	CurrentDoseValue() float64
	// CurrentVoxelVolume is the volume of one voxel in cm³.
	CurrentVoxelVolume() float64
	// CurrentRelevantVolumeFraction is the part of the current voxel that
	// belongs to the iterated region, in [0,1].
	CurrentRelevantVolumeFraction() float64
	CurrentVoxelGridID() grid.VoxelGridID
	DoseUID() string
}

// MaskSource is what a MaskedIterator needs from a mask.
// *mask.Accessor implements it.
type MaskSource interface {
	RelevantVoxels() ([]mask.Voxel, error)
	GeometricInfo() *grid.GeometricInfo
	MaskUID() string
}

// Masked is implemented by iterators restricted to a mask.
type Masked interface {
	MaskUID() string
}

// GridIterator visits every voxel of a dose distribution in id order with a
// relevant volume fraction of 1.
type GridIterator struct {
	dose    Accessor
	pos     int
	n       int
	volume  float64
	started bool
}

// NewGridIterator creates an iterator over the whole grid of d.
func NewGridIterator(d Accessor) (*GridIterator, error) {
	if rterr.IsNil(d) {
		return nil, errors.Wrap(rterr.ErrNullPointer, "dose accessor is nil")
	}
	return &GridIterator{dose: d}, nil
}

func (it *GridIterator) Reset() error {
	vol, err := it.dose.GeometricInfo().VoxelVolume()
	if err != nil {
		it.started = false
		return err
	}
	it.volume = vol
	it.n = it.dose.GeometricInfo().NumberOfVoxels()
	it.pos = 0
	it.started = true
	return nil
}

func (it *GridIterator) Next() {
	if it.IsPositionValid() {
		it.pos++
	}
}

func (it *GridIterator) IsPositionValid() bool { return it.started && it.pos < it.n }

func (it *GridIterator) CurrentDoseValue() float64 {
	v, _ := it.dose.ValueAt(it.CurrentVoxelGridID())
	return v
}

func (it *GridIterator) CurrentVoxelVolume() float64 { return it.volume }

func (it *GridIterator) CurrentRelevantVolumeFraction() float64 { return 1 }

func (it *GridIterator) CurrentVoxelGridID() grid.VoxelGridID {
	if !it.IsPositionValid() {
		return -1
	}
	return grid.VoxelGridID(it.pos)
}

func (it *GridIterator) DoseUID() string { return it.dose.UID() }

// MaskedIterator visits the voxels covered by a mask, in id order, and reports
// the mask fraction as relevant volume fraction.
type MaskedIterator struct {
	mask    MaskSource
	dose    Accessor
	voxels  []mask.Voxel
	pos     int
	volume  float64
	started bool
}

// NewMaskedIterator combines a mask with a dose distribution. Both must live
// on the same grid.
func NewMaskedIterator(m MaskSource, d Accessor) (*MaskedIterator, error) {
	if rterr.IsNil(m) {
		return nil, errors.Wrap(rterr.ErrNullPointer, "mask is nil")
	}
	if rterr.IsNil(d) {
		return nil, errors.Wrap(rterr.ErrNullPointer, "dose accessor is nil")
	}
	mg, dg := m.GeometricInfo(), d.GeometricInfo()
	if !mg.Equal(dg, GeometryTolerance) {
		return nil, errors.Wrapf(rterr.ErrGeometryMismatch, "mask grid %v, dose grid %v", mg, dg)
	}
	return &MaskedIterator{mask: m, dose: d}, nil
}

// Reset computes the mask if necessary and positions the cursor on the first
// covered voxel.
func (it *MaskedIterator) Reset() error {
	it.started = false
	vol, err := it.dose.GeometricInfo().VoxelVolume()
	if err != nil {
		return err
	}
	voxels, err := it.mask.RelevantVoxels()
	if err != nil {
		return err
	}
	it.voxels = voxels
	it.volume = vol
	it.pos = 0
	it.started = true
	return nil
}

func (it *MaskedIterator) Next() {
	if it.IsPositionValid() {
		it.pos++
	}
}

func (it *MaskedIterator) IsPositionValid() bool { return it.started && it.pos < len(it.voxels) }

func (it *MaskedIterator) CurrentDoseValue() float64 {
	if !it.IsPositionValid() {
		return 0
	}
	v, _ := it.dose.ValueAt(it.voxels[it.pos].ID)
	return v
}

func (it *MaskedIterator) CurrentVoxelVolume() float64 { return it.volume }

func (it *MaskedIterator) CurrentRelevantVolumeFraction() float64 {
	if !it.IsPositionValid() {
		return 0
	}
	return it.voxels[it.pos].Fraction
}

func (it *MaskedIterator) CurrentVoxelGridID() grid.VoxelGridID {
	if !it.IsPositionValid() {
		return -1
	}
	return it.voxels[it.pos].ID
}

func (it *MaskedIterator) DoseUID() string { return it.dose.UID() }

// MaskUID returns the id of the iterated mask.
func (it *MaskedIterator) MaskUID() string { return it.mask.MaskUID() }
