package models

import (
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
)

// Grid describes the dose grid of a job
type Grid struct {
	// Origin is the world position (mm) of the centre of voxel (0,0,0)
	Origin [3]float64 `yaml:"origin"`

	// Spacing is the voxel size in mm along x, y and z
	Spacing [3]float64 `yaml:"spacing"`

	// Dimensions is the number of voxels along x, y and z
	Dimensions [3]int `yaml:"dimensions"`

	// Orientation is an optional row-major 3x3 matrix whose columns are the
	// grid axis directions
	Orientation []float64 `yaml:"orientation,omitempty"`

	// SliceOffsets are optional per-slice z offsets in mm
	SliceOffsets []float64 `yaml:"sliceOffsets,omitempty"`
}

// DoseSource names where the dose values come from
type DoseSource struct {
	// File is a raw little-endian volume in voxel id order; relative paths
	// are resolved against the job file
	File string `yaml:"file,omitempty"`

	// Format is "float32" or "float64"
	Format string `yaml:"format,omitempty"`

	// Scale multiplies every sample, e.g. a dose grid scaling factor
	Scale float64 `yaml:"scale,omitempty"`

	// Constant fills the grid with one value when no file is given
	Constant float64 `yaml:"constant,omitempty"`

	// UID identifies the dose; generated when empty
	UID string `yaml:"uid,omitempty"`
}

// StructureSource names a structure to evaluate
type StructureSource struct {
	// File is a GeoJSON feature collection holding the contours
	File string `yaml:"file"`

	// Label overrides the label found in the file
	Label string `yaml:"label,omitempty"`

	// UID overrides the UID found in the file
	UID string `yaml:"uid,omitempty"`
}

// Job is one evaluation: a dose on a grid and the structures to evaluate it on
type Job struct {
	Grid       Grid              `yaml:"grid"`
	Dose       DoseSource        `yaml:"dose"`
	Structures []StructureSource `yaml:"structures"`

	// dir is the directory of the job file
	dir string
}

// LoadJob reads a job description from a YAML file
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading job file")
	}
	job := &Job{}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, errors.Wrap(err, "error parsing job file")
	}
	job.dir = filepath.Dir(path)
	if err := job.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid job file %s", path)
	}
	return job, nil
}

// Validate checks that the job names its inputs.
func (j *Job) Validate() error {
	if len(j.Structures) == 0 {
		return errors.Wrap(rterr.ErrMissingInput, "job has no structures")
	}
	for i, s := range j.Structures {
		if s.File == "" {
			return errors.Wrapf(rterr.ErrMissingInput, "structure %d has no file", i)
		}
	}
	if n := len(j.Grid.Orientation); n != 0 && n != 9 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "orientation needs 9 values, got %d", n)
	}
	return nil
}

// Resolve returns path relative to the job file's directory.
func (j *Job) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || j.dir == "" {
		return path
	}
	return filepath.Join(j.dir, path)
}

// GeometricInfo builds the grid description.
func (g Grid) GeometricInfo() (*grid.GeometricInfo, error) {
	var opts []grid.Option
	if len(g.Orientation) == 9 {
		opts = append(opts, grid.WithOrientation(mat.NewDense(3, 3, append([]float64(nil), g.Orientation...))))
	}
	if len(g.SliceOffsets) > 0 {
		opts = append(opts, grid.WithSliceOffsets(g.SliceOffsets))
	}
	return grid.NewGeometricInfo(
		r3.Vector{X: g.Origin[0], Y: g.Origin[1], Z: g.Origin[2]},
		r3.Vector{X: g.Spacing[0], Y: g.Spacing[1], Z: g.Spacing[2]},
		g.Dimensions,
		opts...,
	)
}
