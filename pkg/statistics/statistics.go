// Package statistics computes dose statistics over the voxels of a dose
// iterator: scalar summaries in a single pass, and on demand the
// percentile-style measures Dx, Vx, MOHx, MOCx, MaxOHx and MinOCx.
package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
)

// Kind identifies a measure.
type Kind int

const (
	// Dx is the minimum dose received by the hottest x cm³.
	Dx Kind = iota
	// Vx is the volume (cm³) receiving at least x Gy.
	Vx
	// MOHx is the mean dose of the hottest x cm³.
	MOHx
	// MOCx is the mean dose of the coldest x cm³.
	MOCx
	// MaxOHx is the dose just outside the hottest x cm³.
	MaxOHx
	// MinOCx is the dose just outside the coldest x cm³.
	MinOCx
)

// Kinds lists every measure in a stable order.
var Kinds = []Kind{Dx, Vx, MOHx, MOCx, MaxOHx, MinOCx}

func (k Kind) String() string {
	switch k {
	case Dx:
		return "Dx"
	case Vx:
		return "Vx"
	case MOHx:
		return "MOHx"
	case MOCx:
		return "MOCx"
	case MaxOHx:
		return "MaxOHx"
	case MinOCx:
		return "MinOCx"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ByDose reports whether the threshold of k is a dose rather than a volume.
func (k Kind) ByDose() bool { return k == Vx }

// keyTolerance is the relative tolerance of threshold lookups.
const keyTolerance = 1e-9

// Measure is one evaluated threshold.
type Measure struct {
	X     float64
	Value float64
}

// MeasureCollection maps absolute thresholds (cm³, or Gy for Vx) to results.
// A nil collection holds nothing; lookups on it report ErrDataNotAvailable.
type MeasureCollection struct {
	kind      Kind
	reference float64
	measures  []Measure
}

func newCollection(kind Kind, reference float64, measures []Measure) *MeasureCollection {
	sorted := append([]Measure(nil), measures...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	return &MeasureCollection{kind: kind, reference: reference, measures: sorted}
}

// Kind returns the measure kind.
func (m *MeasureCollection) Kind() Kind { return m.kind }

// Reference returns the quantity relative thresholds are scaled by: the total
// volume for volume thresholds, the reference dose for Vx.
func (m *MeasureCollection) Reference() float64 { return m.reference }

// Get returns the value at absolute threshold x.
func (m *MeasureCollection) Get(x float64) (float64, error) {
	if m == nil {
		return 0, errors.Wrapf(rterr.ErrDataNotAvailable, "no measures computed for x=%g", x)
	}
	tol := keyTolerance * math.Max(1, math.Abs(x))
	i := sort.Search(len(m.measures), func(i int) bool { return m.measures[i].X >= x-tol })
	if i < len(m.measures) && math.Abs(m.measures[i].X-x) <= tol {
		return m.measures[i].Value, nil
	}
	return 0, errors.Wrapf(rterr.ErrDataNotAvailable, "%s was not computed for x=%g", m.kind, x)
}

// GetRelative returns the value at threshold rel*Reference().
func (m *MeasureCollection) GetRelative(rel float64) (float64, error) {
	if m == nil {
		return 0, errors.Wrapf(rterr.ErrDataNotAvailable, "no measures computed for relative x=%g", rel)
	}
	return m.Get(rel * m.reference)
}

// AllValues returns every measure ordered by threshold.
func (m *MeasureCollection) AllValues() []Measure {
	if m == nil {
		return nil
	}
	return append([]Measure(nil), m.measures...)
}

// Len returns the number of thresholds.
func (m *MeasureCollection) Len() int {
	if m == nil {
		return 0
	}
	return len(m.measures)
}

// DoseStatistics is the result of one calculation. Collections are nil unless
// the complex measures were requested.
type DoseStatistics struct {
	// Dose summary in Gy, weighted by relevant volume fraction
	Minimum      float64
	Maximum      float64
	Mean         float64
	StdDeviation float64
	Variance     float64

	// NumberOfVoxels is the sum of relevant volume fractions.
	NumberOfVoxels float64
	// Volume is the iterated volume in cm³.
	Volume float64
	// ReferenceDose scales relative dose thresholds.
	ReferenceDose float64

	// Up to MaxExtremePositions voxels at the minimum and maximum dose
	MinimumPositions []grid.VoxelGridID
	MaximumPositions []grid.VoxelGridID

	DoseUID string

	collections map[Kind]*MeasureCollection
}

// Collection returns the measures of kind k, or nil when they were not computed.
func (s *DoseStatistics) Collection(k Kind) *MeasureCollection {
	return s.collections[k]
}

// HasComplexMeasures reports whether the measure collections were computed.
func (s *DoseStatistics) HasComplexMeasures() bool { return len(s.collections) > 0 }

// Get returns measure k at absolute threshold x.
func (s *DoseStatistics) Get(k Kind, x float64) (float64, error) {
	return s.Collection(k).Get(x)
}

// GetRelative returns measure k at a threshold relative to the total volume,
// or to the reference dose for Vx.
func (s *DoseStatistics) GetRelative(k Kind, rel float64) (float64, error) {
	return s.Collection(k).GetRelative(rel)
}

func (s *DoseStatistics) String() string {
	return fmt.Sprintf("DoseStatistics{min=%.4g max=%.4g mean=%.4g sd=%.4g voxels=%.4g volume=%.4gcm³}",
		s.Minimum, s.Maximum, s.Mean, s.StdDeviation, s.NumberOfVoxels, s.Volume)
}
