// Package dvh builds differential dose-volume histograms from dose iterators.
package dvh

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"dosevolume/pkg/rterr"
)

// DVH is a differential dose-volume histogram. Bin i holds the number of
// voxels (weighted by their relevant volume fraction) whose dose lies in
// [i*DeltaD, (i+1)*DeltaD). Multiplying a bin by DeltaV gives its volume.
type DVH struct {
	bins         []float64
	deltaD       float64
	deltaV       float64
	structureUID string
	doseUID      string
	maskUID      string
	label        string
}

// New creates a DVH from differential bin counts. bins is copied.
func New(bins []float64, deltaD, deltaV float64, structureUID, doseUID string) (*DVH, error) {
	if len(bins) == 0 {
		return nil, errors.Wrap(rterr.ErrInvalidParameter, "histogram has no bins")
	}
	if deltaD <= 0 || deltaV < 0 {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "deltaD=%g deltaV=%g", deltaD, deltaV)
	}
	for i, b := range bins {
		if b < 0 || math.IsNaN(b) {
			return nil, errors.Wrapf(rterr.ErrInvalidParameter, "bin %d holds %g", i, b)
		}
	}
	return &DVH{
		bins:         append([]float64(nil), bins...),
		deltaD:       deltaD,
		deltaV:       deltaV,
		structureUID: structureUID,
		doseUID:      doseUID,
	}, nil
}

// SetMaskUID records the voxelization the histogram was computed from.
func (d *DVH) SetMaskUID(uid string) { d.maskUID = uid }

// SetLabel sets a display label, usually the structure name.
func (d *DVH) SetLabel(label string) { d.label = label }

func (d *DVH) MaskUID() string      { return d.maskUID }
func (d *DVH) Label() string        { return d.label }
func (d *DVH) StructureUID() string { return d.structureUID }
func (d *DVH) DoseUID() string      { return d.doseUID }

// DeltaD is the bin width in Gy.
func (d *DVH) DeltaD() float64 { return d.deltaD }

// DeltaV is the volume of one voxel in cm³.
func (d *DVH) DeltaV() float64 { return d.deltaV }

// NumberOfBins returns the bin count.
func (d *DVH) NumberOfBins() int { return len(d.bins) }

// NumberOfVoxels returns the sum of all bins.
func (d *DVH) NumberOfVoxels() float64 { return floats.Sum(d.bins) }

// TotalVolume returns the histogram volume in cm³.
func (d *DVH) TotalVolume() float64 { return d.NumberOfVoxels() * d.deltaV }

// Differential returns a copy of the bins. absolute scales them to cm³,
// otherwise they are voxel counts. See Relative for fractions.
func (d *DVH) Differential(absolute bool) []float64 {
	out := append([]float64(nil), d.bins...)
	if absolute {
		floats.Scale(d.deltaV, out)
	}
	return out
}

// Cumulative returns, for every bin i, the amount receiving at least
// i*DeltaD. absolute selects cm³ over voxel counts.
func (d *DVH) Cumulative(absolute bool) []float64 {
	n := len(d.bins)
	out := make([]float64, n)
	running := 0.0
	for i := n - 1; i >= 0; i-- {
		running += d.bins[i]
		out[i] = running
	}
	if absolute {
		floats.Scale(d.deltaV, out)
	}
	return out
}

// Relative divides a differential or cumulative series by the total voxel
// count so that it sums (or starts) at 1. An empty histogram yields zeros.
func (d *DVH) Relative(series []float64) []float64 {
	out := append([]float64(nil), series...)
	if total := d.NumberOfVoxels(); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

// Minimum returns the lower edge of the lowest non-empty bin.
func (d *DVH) Minimum() float64 {
	for i, b := range d.bins {
		if b > 0 {
			return float64(i) * d.deltaD
		}
	}
	return 0
}

// Maximum returns the upper edge of the highest non-empty bin.
func (d *DVH) Maximum() float64 {
	for i := len(d.bins) - 1; i >= 0; i-- {
		if d.bins[i] > 0 {
			return float64(i+1) * d.deltaD
		}
	}
	return 0
}

func (d *DVH) binCentre(i int) float64 { return (float64(i) + 0.5) * d.deltaD }

// Mean returns the volume-weighted mean of the bin centres.
func (d *DVH) Mean() float64 {
	total := d.NumberOfVoxels()
	if total == 0 {
		return 0
	}
	sum := 0.0
	for i, b := range d.bins {
		sum += b * d.binCentre(i)
	}
	return sum / total
}

// Median returns the centre of the bin where half of the volume is reached.
func (d *DVH) Median() float64 {
	half := d.NumberOfVoxels() / 2
	if half == 0 {
		return 0
	}
	running := 0.0
	for i, b := range d.bins {
		running += b
		if running >= half {
			return d.binCentre(i)
		}
	}
	return d.binCentre(len(d.bins) - 1)
}

// Modal returns the centre of the fullest bin.
func (d *DVH) Modal() float64 {
	if d.NumberOfVoxels() == 0 {
		return 0
	}
	return d.binCentre(floats.MaxIdx(d.bins))
}

// Vx returns the volume (cm³) in bins at or above the one containing dose x.
func (d *DVH) Vx(x float64) float64 {
	if x <= 0 {
		return d.TotalVolume()
	}
	i := int(math.Floor(x / d.deltaD))
	if i >= len(d.bins) {
		return 0
	}
	return floats.Sum(d.bins[i:]) * d.deltaV
}

// Dx returns the lower edge of the highest bin at which the cumulative volume
// from the top reaches x cm³, or 0 when x exceeds the total volume.
func (d *DVH) Dx(x float64) float64 {
	if d.deltaV == 0 {
		return 0
	}
	target := x / d.deltaV
	running := 0.0
	for i := len(d.bins) - 1; i >= 0; i-- {
		running += d.bins[i]
		if running > 0 && running >= target {
			return float64(i) * d.deltaD
		}
	}
	return 0
}

func (d *DVH) String() string {
	return fmt.Sprintf("DVH{structure=%s dose=%s bins=%d deltaD=%g volume=%.4gcm³}",
		d.structureUID, d.doseUID, len(d.bins), d.deltaD, d.TotalVolume())
}
