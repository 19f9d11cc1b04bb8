package mask

import (
	"github.com/golang/geo/r2"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/polygon"
	"dosevolume/pkg/structure"
)

// CenterMask is the coarse voxelization engine: a voxel is inside when its
// centre is inside one of the plane's polygons. In-plane fractions are 0 or 1;
// z weighting is the same as ContourMask's.
type CenterMask struct {
	settings
}

// NewCenterMask creates the engine.
func NewCenterMask(opts ...Option) *CenterMask {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &CenterMask{settings: s}
}

// Compute implements Engine.
func (m *CenterMask) Compute(geo *grid.GeometricInfo, s *structure.Structure) ([]Voxel, error) {
	return voxelize(geo, s, m.settings, centerCoverage)
}

func centerCoverage(polys []polygon.Polygon, cell r2.Rect) float64 {
	c := cell.Center()
	for _, p := range polys {
		if p.Contains(c) {
			return 1
		}
	}
	return 0
}
