package dvh

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dosevolume/pkg/dose"
	"dosevolume/pkg/rterr"
)

const (
	// DefaultNumberOfBins is the bin count used when none is configured.
	DefaultNumberOfBins = 201

	// fallbackDeltaD is the bin width used when the dose is zero everywhere.
	fallbackDeltaD = 0.1

	// headroom widens the automatic dose range above the maximum dose.
	headroom = 1.5
)

// Calculator builds a DVH from a dose iterator.
type Calculator struct {
	it           dose.Iterator
	structureUID string
	doseUID      string
	deltaD       float64
	numBins      int
	logger       *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithDeltaD sets the bin width in Gy. 0 derives it from the maximum dose.
func WithDeltaD(deltaD float64) Option {
	return func(c *Calculator) { c.deltaD = deltaD }
}

// WithNumberOfBins sets the bin count.
func WithNumberOfBins(n int) Option {
	return func(c *Calculator) { c.numBins = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCalculator validates the binning and, when no bin width is given, scans
// the iterator once for its maximum dose and uses max*1.5/numBins.
func NewCalculator(it dose.Iterator, structureUID, doseUID string, opts ...Option) (*Calculator, error) {
	if rterr.IsNil(it) {
		return nil, errors.Wrap(rterr.ErrNullPointer, "dose iterator is nil")
	}
	c := &Calculator{
		it:           it,
		structureUID: structureUID,
		doseUID:      doseUID,
		numBins:      DefaultNumberOfBins,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.numBins <= 0 {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "number of bins must be positive, got %d", c.numBins)
	}
	if c.deltaD < 0 || math.IsNaN(c.deltaD) {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "deltaD must not be negative, got %g", c.deltaD)
	}

	if c.deltaD == 0 {
		maxDose, err := scanMax(it)
		if err != nil {
			return nil, err
		}
		c.deltaD = maxDose * headroom / float64(c.numBins)
		if c.deltaD <= 0 {
			c.logger.Warn("maximum dose is zero, using fallback bin width", zap.Float64("deltaD", fallbackDeltaD))
			c.deltaD = fallbackDeltaD
		}
		c.logger.Debug("derived bin width", zap.Float64("maxDose", maxDose), zap.Float64("deltaD", c.deltaD))
	}
	return c, nil
}

func scanMax(it dose.Iterator) (float64, error) {
	if err := it.Reset(); err != nil {
		return 0, errors.Wrap(err, "scanning for maximum dose")
	}
	maxDose := 0.0
	for ; it.IsPositionValid(); it.Next() {
		maxDose = math.Max(maxDose, it.CurrentDoseValue())
	}
	return maxDose, nil
}

// DeltaD returns the bin width in use.
func (c *Calculator) DeltaD() float64 { return c.deltaD }

// NumberOfBins returns the bin count in use.
func (c *Calculator) NumberOfBins() int { return c.numBins }

// Generate iterates the dose once and returns the histogram. A dose that falls
// outside the configured bins is an error, not clamped into the last bin.
func (c *Calculator) Generate() (*DVH, error) {
	if err := c.it.Reset(); err != nil {
		return nil, errors.Wrap(err, "resetting dose iterator")
	}

	bins := make([]float64, c.numBins)
	deltaV := 0.0
	visited := 0
	for ; c.it.IsPositionValid(); c.it.Next() {
		d := c.it.CurrentDoseValue()
		bin := int(math.Floor(d / c.deltaD))
		if bin < 0 || bin >= c.numBins {
			return nil, errors.Wrapf(rterr.ErrInvalidParameter,
				"dose %g Gy falls in bin %d of %d (deltaD %g)", d, bin, c.numBins, c.deltaD)
		}
		bins[bin] += c.it.CurrentRelevantVolumeFraction()
		deltaV = c.it.CurrentVoxelVolume()
		visited++
	}

	h, err := New(bins, c.deltaD, deltaV, c.structureUID, c.doseUID)
	if err != nil {
		return nil, err
	}
	if m, ok := c.it.(dose.Masked); ok {
		h.SetMaskUID(m.MaskUID())
	}
	c.logger.Debug("dvh generated",
		zap.String("structure", c.structureUID), zap.Int("voxels", visited), zap.Float64("volume", h.TotalVolume()))
	return h, nil
}
