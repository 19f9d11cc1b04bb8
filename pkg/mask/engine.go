// Package mask voxelizes structures onto dose grids. A mask is a list of
// (voxel id, fraction) pairs where the fraction is the part of the voxel's
// volume enclosed by the structure.
package mask

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
	"dosevolume/pkg/structure"
)

// Default tolerances, in grid index units.
const (
	// DefaultZTolerance bounds the z extent of a planar contour and merges
	// contours into one plane.
	DefaultZTolerance = 1e-3

	// fractionFloor drops coverage that is only rounding noise.
	fractionFloor = 1e-12
)

// Voxel is one entry of a mask: a voxel id and the fraction of the voxel
// covered by the structure, in [0,1].
type Voxel struct {
	ID       grid.VoxelGridID
	Fraction float64
}

// Engine turns a structure into a mask on a grid.
type Engine interface {
	Compute(geo *grid.GeometricInfo, s *structure.Structure) ([]Voxel, error)
}

// Engine names accepted by NewEngine.
const (
	EngineContour = "contour"
	EngineCenter  = "center"
)

type settings struct {
	strict     bool
	threads    int
	zTolerance float64
	logger     *zap.Logger
}

func defaultSettings() settings {
	return settings{
		threads:    0,
		zTolerance: DefaultZTolerance,
		logger:     zap.NewNop(),
	}
}

// Option configures an engine.
type Option func(*settings)

// WithStrict makes self-intersecting or overlapping contours an error instead
// of a best-effort approximation.
func WithStrict(strict bool) Option {
	return func(s *settings) { s.strict = strict }
}

// WithThreads sets the number of workers; 0 uses every CPU and 1 runs sequentially.
func WithThreads(n int) Option {
	return func(s *settings) { s.threads = n }
}

// WithZTolerance sets the planarity and plane-merging tolerance in index units.
func WithZTolerance(tol float64) Option {
	return func(s *settings) {
		if tol > 0 {
			s.zTolerance = tol
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewEngine returns the engine registered under name.
func NewEngine(name string, opts ...Option) (Engine, error) {
	switch name {
	case "", EngineContour:
		return NewContourMask(opts...), nil
	case EngineCenter:
		return NewCenterMask(opts...), nil
	default:
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "unknown mask engine %q", name)
	}
}

// ComputeMask voxelizes s on geo with the area-weighted contour engine.
func ComputeMask(geo *grid.GeometricInfo, s *structure.Structure, strict bool, threads int) ([]Voxel, error) {
	return NewContourMask(WithStrict(strict), WithThreads(threads)).Compute(geo, s)
}
