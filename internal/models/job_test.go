package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
)

const jobYAML = `
grid:
  origin: [-10, -10, 0]
  spacing: [2, 2, 3]
  dimensions: [10, 10, 4]
dose:
  file: dose.raw
  format: float32
  scale: 0.01
structures:
  - file: ptv.geojson
    label: PTV
  - file: /data/rectum.geojson
`

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte(jobYAML), 0644); err != nil {
		t.Fatal(err)
	}

	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}
	if len(job.Structures) != 2 {
		t.Fatalf("Expected 2 structures, got %d", len(job.Structures))
	}
	if job.Structures[0].Label != "PTV" {
		t.Errorf("Expected label PTV, got %q", job.Structures[0].Label)
	}
	if got, want := job.Resolve(job.Dose.File), filepath.Join(dir, "dose.raw"); got != want {
		t.Errorf("Expected dose path %s, got %s", want, got)
	}
	if got := job.Resolve(job.Structures[1].File); got != "/data/rectum.geojson" {
		t.Errorf("Absolute paths must be kept, got %s", got)
	}

	geo, err := job.Grid.GeometricInfo()
	if err != nil {
		t.Fatalf("GeometricInfo failed: %v", err)
	}
	if geo.Dimensions() != [3]int{10, 10, 4} {
		t.Errorf("Unexpected dimensions %v", geo.Dimensions())
	}
	w := geo.IndexToWorld(grid.VoxelGridIndex3D{X: 1, Y: 0, Z: 2})
	if w.Sub(r3.Vector{X: -8, Y: -10, Z: 6}).Norm() > 1e-12 {
		t.Errorf("Unexpected world position %v", w)
	}
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want error
	}{
		{"no structures", Job{}, rterr.ErrMissingInput},
		{"no structure file", Job{Structures: []StructureSource{{Label: "x"}}}, rterr.ErrMissingInput},
		{"bad orientation", Job{Grid: Grid{Orientation: []float64{1, 0, 0}}, Structures: []StructureSource{{File: "a"}}}, rterr.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.job.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGridOrientation(t *testing.T) {
	g := Grid{
		Spacing:     [3]float64{1, 1, 1},
		Dimensions:  [3]int{4, 4, 4},
		Orientation: []float64{0, -1, 0, 1, 0, 0, 0, 0, 1},
	}
	geo, err := g.GeometricInfo()
	if err != nil {
		t.Fatalf("GeometricInfo failed: %v", err)
	}
	// The x axis of the grid points along world +y.
	w := geo.ContinuousIndexToWorld(r3.Vector{X: 1})
	if w.Sub(r3.Vector{Y: 1}).Norm() > 1e-12 {
		t.Errorf("Expected grid x axis along world y, got %v", w)
	}

	g.Spacing[0] = 0
	if _, err := g.GeometricInfo(); !errors.Is(err, rterr.ErrInvalidParameter) {
		t.Errorf("Expected invalid parameter for zero spacing, got %v", err)
	}
}
