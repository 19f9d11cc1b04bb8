package mask

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
	"dosevolume/pkg/structure"
)

// countingEngine fails for the first failures calls and counts every call.
type countingEngine struct {
	inner    Engine
	failures int
	calls    int
}

func (e *countingEngine) Compute(geo *grid.GeometricInfo, s *structure.Structure) ([]Voxel, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("engine unavailable")
	}
	return e.inner.Compute(geo, s)
}

func boxAccessor(t *testing.T, engine Engine) (*Accessor, *grid.GeometricInfo) {
	t.Helper()
	g := newGrid(t, [3]int{10, 10, 2}, unitSpacing())
	s := structure.New("box", "", []structure.Polygon{rectContour(1, 1, 6, 6, 0)})
	a, err := NewAccessor(s, g, engine)
	require.NoError(t, err)
	return a, g
}

func TestAccessorComputesOnce(t *testing.T) {
	engine := &countingEngine{inner: NewContourMask(WithThreads(1))}
	a, _ := boxAccessor(t, engine)

	assert.False(t, a.IsUpToDate())
	require.NoError(t, a.UpdateMask())
	first, err := a.RelevantVoxels()
	require.NoError(t, err)
	require.NoError(t, a.UpdateMask())
	second, err := a.RelevantVoxels()
	require.NoError(t, err)

	assert.True(t, a.IsUpToDate())
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, first, second)
	assert.Len(t, first, 36)
}

func TestAccessorRetriesAfterFailure(t *testing.T) {
	engine := &countingEngine{inner: NewContourMask(), failures: 1}
	a, _ := boxAccessor(t, engine)

	assert.Error(t, a.UpdateMask())
	assert.False(t, a.IsUpToDate())
	require.NoError(t, a.UpdateMask())
	assert.True(t, a.IsUpToDate())
	assert.Equal(t, 2, engine.calls)
}

func TestMaskAt(t *testing.T) {
	a, g := boxAccessor(t, nil)
	inside := grid.VoxelGridIndex3D{X: 3, Y: 3, Z: 0}

	_, ok := a.MaskAtIndex(inside)
	assert.False(t, ok, "point queries do not compute the mask")

	require.NoError(t, a.UpdateMask())

	v, ok := a.MaskAtIndex(inside)
	require.True(t, ok)
	assert.InDelta(t, 1.0, v.Fraction, 1e-12)

	v, ok = a.MaskAtIndex(grid.VoxelGridIndex3D{X: 1, Y: 1, Z: 0})
	require.True(t, ok)
	assert.InDelta(t, 0.25, v.Fraction, 1e-12)

	v, ok = a.MaskAtIndex(grid.VoxelGridIndex3D{X: 3, Y: 3, Z: 1})
	assert.False(t, ok, "contour only covers slice 0")
	assert.Zero(t, v.Fraction)

	_, ok = a.MaskAt(grid.VoxelGridID(g.NumberOfVoxels()))
	assert.False(t, ok)
	_, ok = a.MaskAtIndex(grid.VoxelGridIndex3D{X: -1})
	assert.False(t, ok)
}

func TestRelevantVoxelsAbove(t *testing.T) {
	a, _ := boxAccessor(t, nil)
	above, err := a.RelevantVoxelsAbove(0.5)
	require.NoError(t, err)
	assert.Len(t, above, 16)

	all, err := a.RelevantVoxelsAbove(0)
	require.NoError(t, err)
	assert.Len(t, all, 36)
}

func TestPlane(t *testing.T) {
	a, _ := boxAccessor(t, nil)

	plane, err := a.Plane(0)
	require.NoError(t, err)
	require.Len(t, plane, 100)
	sum := 0.0
	for _, f := range plane {
		sum += f
	}
	assert.InDelta(t, 25.0, sum, 1e-9)
	assert.InDelta(t, 1.0, plane[3*10+3], 1e-12)

	empty, err := a.Plane(1)
	require.NoError(t, err)
	for _, f := range empty {
		assert.Zero(t, f)
	}

	_, err = a.Plane(2)
	assert.True(t, errors.Is(err, rterr.ErrInvalidParameter))
}

func TestNewAccessorValidation(t *testing.T) {
	g := newGrid(t, [3]int{2, 2, 1}, unitSpacing())
	_, err := NewAccessor(nil, g, nil)
	assert.True(t, errors.Is(err, rterr.ErrNullPointer))
	_, err = NewAccessor(structure.New("s", "", nil), nil, nil)
	assert.True(t, errors.Is(err, rterr.ErrNullPointer))

	a, err := NewAccessor(structure.New("s", "", nil), g, nil)
	require.NoError(t, err)
	b, err := NewAccessor(structure.New("s", "", nil), g, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.MaskUID(), "Mask_"))
	assert.NotEqual(t, a.MaskUID(), b.MaskUID())
	assert.True(t, a.IsGridHomogeneous())

	voxels, err := a.RelevantVoxels()
	require.NoError(t, err)
	assert.Empty(t, voxels)
}
