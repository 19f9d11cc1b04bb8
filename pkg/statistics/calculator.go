package statistics

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dosevolume/internal/parallel"
	"dosevolume/pkg/dose"
	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
)

// MaxExtremePositions bounds the number of voxel ids recorded at the minimum
// and at the maximum dose.
const MaxExtremePositions = 100

// Default relative thresholds used by complex calculations without explicit lists.
var (
	DefaultDoseThresholds   = []float64{0.02, 0.05, 0.1, 0.9, 0.95, 0.98}
	DefaultVolumeThresholds = []float64{0.02, 0.05, 0.1, 0.9, 0.95, 0.98}
)

// Calculator computes DoseStatistics from a dose iterator. Thresholds are
// relative: dose thresholds are fractions of the reference dose, volume
// thresholds fractions of the iterated volume. A Calculator is not safe for
// concurrent use.
type Calculator struct {
	it      dose.Iterator
	threads int
	logger  *zap.Logger

	doseThresholds   []float64
	volumeThresholds []float64
	referenceDose    float64

	data *samples
	base *DoseStatistics
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithThreads sets the number of workers evaluating thresholds; 0 uses every
// CPU and 1 runs sequentially.
func WithThreads(n int) Option {
	return func(c *Calculator) { c.threads = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCalculator creates a calculator reading from it.
func NewCalculator(it dose.Iterator, opts ...Option) (*Calculator, error) {
	if rterr.IsNil(it) {
		return nil, errors.Wrap(rterr.ErrNullPointer, "dose iterator is nil")
	}
	c := &Calculator{it: it, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Calculate iterates the dose and returns its statistics, using the maximum
// dose as reference dose. The measure collections are computed when complex
// is set or a threshold list is given; complex without lists uses the default
// thresholds.
func (c *Calculator) Calculate(complex bool, doseThresholds, volumeThresholds []float64) (*DoseStatistics, error) {
	return c.calculate(complex, doseThresholds, volumeThresholds, 0)
}

// CalculateWithReferenceDose is Calculate with an explicit reference dose,
// which must be positive.
func (c *Calculator) CalculateWithReferenceDose(referenceDose float64, complex bool, doseThresholds, volumeThresholds []float64) (*DoseStatistics, error) {
	if referenceDose <= 0 || math.IsNaN(referenceDose) {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "reference dose must be positive, got %g", referenceDose)
	}
	return c.calculate(complex, doseThresholds, volumeThresholds, referenceDose)
}

func (c *Calculator) calculate(complex bool, doseThresholds, volumeThresholds []float64, referenceDose float64) (*DoseStatistics, error) {
	if err := validateThresholds(doseThresholds); err != nil {
		return nil, err
	}
	if err := validateThresholds(volumeThresholds); err != nil {
		return nil, err
	}

	data, base, err := c.simplePass()
	if err != nil {
		return nil, err
	}
	c.data, c.base = data, base

	c.referenceDose = referenceDose
	c.doseThresholds = mergeThresholds(nil, doseThresholds)
	c.volumeThresholds = mergeThresholds(nil, volumeThresholds)

	if !complex && len(doseThresholds) == 0 && len(volumeThresholds) == 0 {
		stats := *base
		stats.ReferenceDose = c.reference()
		return &stats, nil
	}
	if complex && len(c.doseThresholds) == 0 {
		c.doseThresholds = mergeThresholds(nil, DefaultDoseThresholds)
	}
	if complex && len(c.volumeThresholds) == 0 {
		c.volumeThresholds = mergeThresholds(nil, DefaultVolumeThresholds)
	}
	return c.withMeasures()
}

// AddPrecomputeDoseValues adds relative dose thresholds. Values must lie in
// [0,1]. Call Recalculate to evaluate them.
func (c *Calculator) AddPrecomputeDoseValues(values ...float64) error {
	if err := validateThresholds(values); err != nil {
		return err
	}
	c.doseThresholds = mergeThresholds(c.doseThresholds, values)
	return nil
}

// AddPrecomputeVolumeValues adds relative volume thresholds. Values must lie
// in [0,1]. Call Recalculate to evaluate them.
func (c *Calculator) AddPrecomputeVolumeValues(values ...float64) error {
	if err := validateThresholds(values); err != nil {
		return err
	}
	c.volumeThresholds = mergeThresholds(c.volumeThresholds, values)
	return nil
}

// DoseThresholds returns the relative dose thresholds that will be evaluated.
func (c *Calculator) DoseThresholds() []float64 { return append([]float64(nil), c.doseThresholds...) }

// VolumeThresholds returns the relative volume thresholds that will be evaluated.
func (c *Calculator) VolumeThresholds() []float64 {
	return append([]float64(nil), c.volumeThresholds...)
}

// Recalculate evaluates every measure for the current thresholds on the data
// of the last calculation, without iterating the dose again.
func (c *Calculator) Recalculate() (*DoseStatistics, error) {
	if c.data == nil {
		return nil, errors.Wrap(rterr.ErrMissingInput, "statistics have not been calculated yet")
	}
	return c.withMeasures()
}

func (c *Calculator) reference() float64 {
	if c.referenceDose > 0 {
		return c.referenceDose
	}
	return c.base.Maximum
}

// simplePass iterates the dose once, computing the scalar statistics and
// collecting the samples sorted by descending dose.
func (c *Calculator) simplePass() (*samples, *DoseStatistics, error) {
	if err := c.it.Reset(); err != nil {
		return nil, nil, errors.Wrap(err, "resetting dose iterator")
	}

	var (
		doses       []float64
		proportions []float64
		ids         []grid.VoxelGridID
		voxelVolume float64
	)
	for ; c.it.IsPositionValid(); c.it.Next() {
		doses = append(doses, c.it.CurrentDoseValue())
		proportions = append(proportions, c.it.CurrentRelevantVolumeFraction())
		ids = append(ids, c.it.CurrentVoxelGridID())
		voxelVolume = c.it.CurrentVoxelVolume()
	}
	if len(doses) == 0 {
		return nil, nil, errors.Wrap(rterr.ErrMissingInput, "dose iterator has no voxels")
	}

	numVoxels := floats.Sum(proportions)
	stats := &DoseStatistics{
		Minimum:        floats.Min(doses),
		Maximum:        floats.Max(doses),
		NumberOfVoxels: numVoxels,
		Volume:         numVoxels * voxelVolume,
		DoseUID:        c.it.DoseUID(),
	}
	if numVoxels > 0 {
		stats.Mean, stats.Variance = stat.PopMeanVariance(doses, proportions)
		stats.Variance = math.Max(stats.Variance, 0)
		stats.StdDeviation = math.Sqrt(stats.Variance)
	}
	for i, d := range doses {
		if d == stats.Minimum && len(stats.MinimumPositions) < MaxExtremePositions {
			stats.MinimumPositions = append(stats.MinimumPositions, ids[i])
		}
		if d == stats.Maximum && len(stats.MaximumPositions) < MaxExtremePositions {
			stats.MaximumPositions = append(stats.MaximumPositions, ids[i])
		}
	}

	order := make([]int, len(doses))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return doses[order[a]] > doses[order[b]] })
	data := &samples{
		doses:       make([]float64, len(order)),
		proportions: make([]float64, len(order)),
		voxelVolume: voxelVolume,
	}
	for i, j := range order {
		data.doses[i] = doses[j]
		data.proportions[i] = proportions[j]
	}

	c.logger.Debug("simple statistics",
		zap.Int("voxels", len(doses)), zap.Float64("volume", stats.Volume),
		zap.Float64("min", stats.Minimum), zap.Float64("max", stats.Maximum))
	return data, stats, nil
}

type task struct {
	kind Kind
	slot int
	x    float64
}

// withMeasures evaluates every kind at every threshold. Each task writes its
// own result slot, so the collections do not depend on scheduling.
func (c *Calculator) withMeasures() (*DoseStatistics, error) {
	stats := *c.base
	ref := c.reference()
	stats.ReferenceDose = ref

	results := make(map[Kind][]Measure, len(Kinds))
	var tasks []task
	for _, k := range Kinds {
		rels, scale := c.volumeThresholds, stats.Volume
		if k.ByDose() {
			rels, scale = c.doseThresholds, ref
		}
		results[k] = make([]Measure, len(rels))
		for i, rel := range rels {
			tasks = append(tasks, task{kind: k, slot: i, x: rel * scale})
		}
	}

	err := parallel.For(len(tasks), c.threads, func(i int) error {
		t := tasks[i]
		results[t.kind][t.slot] = Measure{X: t.x, Value: c.data.evaluate(t.kind, t.x)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.collections = make(map[Kind]*MeasureCollection, len(Kinds))
	for _, k := range Kinds {
		scale := stats.Volume
		if k.ByDose() {
			scale = ref
		}
		stats.collections[k] = newCollection(k, scale, results[k])
	}
	c.logger.Debug("complex statistics",
		zap.Int("tasks", len(tasks)), zap.Float64("referenceDose", ref))
	return &stats, nil
}

func validateThresholds(values []float64) error {
	for _, v := range values {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return errors.Wrapf(rterr.ErrInvalidParameter, "relative threshold %g outside [0,1]", v)
		}
	}
	return nil
}

// mergeThresholds returns the sorted union of a and b without duplicates.
func mergeThresholds(a, b []float64) []float64 {
	out := append(append([]float64(nil), a...), b...)
	sort.Float64s(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}
