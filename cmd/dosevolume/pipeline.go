package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dosevolume/internal/models"
	"dosevolume/pkg/dose"
	"dosevolume/pkg/grid"
	"dosevolume/pkg/mask"
	"dosevolume/pkg/structure"
)

// inputs are the loaded contents of a job file.
type inputs struct {
	job        *models.Job
	geo        *grid.GeometricInfo
	dose       *dose.ArrayAccessor
	structures []*structure.Structure
}

func (a *app) loadInputs(withDose bool) (*inputs, error) {
	job, err := models.LoadJob(a.jobPath)
	if err != nil {
		return nil, err
	}
	geo, err := job.Grid.GeometricInfo()
	if err != nil {
		return nil, errors.Wrap(err, "building dose grid")
	}
	in := &inputs{job: job, geo: geo}
	a.log.Debug("grid loaded", zap.Stringer("grid", geo))

	for _, src := range job.Structures {
		s, err := structure.LoadGeoJSON(job.Resolve(src.File), src.Label, src.UID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading structure %s", src.File)
		}
		a.log.Debug("structure loaded",
			zap.String("label", s.Label()), zap.Int("contours", s.NumberOfPolygons()))
		in.structures = append(in.structures, s)
	}

	if withDose {
		in.dose, err = loadDose(job, geo)
		if err != nil {
			return nil, err
		}
		a.log.Debug("dose loaded", zap.String("uid", in.dose.UID()), zap.Float64("max", in.dose.Max()))
	}
	return in, nil
}

func loadDose(job *models.Job, geo *grid.GeometricInfo) (*dose.ArrayAccessor, error) {
	src := job.Dose
	if src.File == "" {
		return dose.NewConstantAccessor(geo, src.Constant, src.UID)
	}
	return dose.LoadRaw(job.Resolve(src.File), geo, src.Format, src.Scale, src.UID)
}

func (a *app) newEngine() (mask.Engine, error) {
	p := a.cfg.Processing
	return mask.NewEngine(p.MaskEngine,
		mask.WithStrict(p.Strict),
		mask.WithThreads(p.NumCores),
		mask.WithZTolerance(p.ZTolerance),
		mask.WithLogger(a.log),
	)
}

// computeMasks voxelizes every structure of the job. The masks are fully
// computed before they are returned.
func (a *app) computeMasks(in *inputs) ([]*mask.Accessor, error) {
	engine, err := a.newEngine()
	if err != nil {
		return nil, err
	}
	masks := make([]*mask.Accessor, 0, len(in.structures))
	for _, s := range in.structures {
		m, err := mask.NewAccessor(s, in.geo, engine)
		if err != nil {
			return nil, err
		}
		if err := m.UpdateMask(); err != nil {
			return nil, err
		}
		masks = append(masks, m)
	}
	return masks, nil
}
