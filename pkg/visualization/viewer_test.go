package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"

	"dosevolume/pkg/dose"
	"dosevolume/pkg/dvh"
	"dosevolume/pkg/grid"
	"dosevolume/pkg/mask"
	"dosevolume/pkg/structure"
)

func testGrid(t *testing.T) *grid.GeometricInfo {
	t.Helper()
	g, err := grid.NewGeometricInfo(r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}, [3]int{10, 8, 3})
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

func TestNewViewerValidation(t *testing.T) {
	if _, err := NewViewer(make([]float64, 10), 2, 2, 2); err == nil {
		t.Error("Expected error for mismatched volume length, got nil")
	}
	if _, err := NewViewer(nil, 0, 2, 2); err == nil {
		t.Error("Expected error for zero width, got nil")
	}
}

// TestExtractSlice verifies slice dimensions and grey levels along each axis.
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 4
	volumeData := make([]float64, width*height*depth)

	// Each slice along Z has a unique value
	for z := 0; z < depth; z++ {
		for i := 0; i < width*height; i++ {
			volumeData[z*width*height+i] = float64(z) / float64(depth)
		}
	}

	viewer, err := NewViewer(volumeData, width, height, depth)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
		}
		gray, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		want := toGray(float64(z) / float64(depth)).Y
		if got := gray.Gray16At(width/2, height/2).Y; got != want {
			t.Errorf("Expected Z slice value %d at center, got %d", want, got)
		}
	}

	tests := []struct {
		axis  string
		pos   int
		wantW int
		wantH int
	}{
		{"x", width / 2, depth, height},
		{"Y", height / 2, width, depth},
	}
	for _, tt := range tests {
		img, err := viewer.ExtractSlice(tt.axis, tt.pos)
		if err != nil {
			t.Fatalf("Failed to extract %s slice: %v", tt.axis, err)
		}
		if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Expected %s slice dimensions %dx%d, got %dx%d", tt.axis, tt.wantW, tt.wantH, b.Dx(), b.Dy())
		}
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

func TestMaskViewer(t *testing.T) {
	g := testGrid(t)
	s := structure.New("box", "", []structure.Polygon{{
		Points: []r3.Vector{{X: 1, Y: 1, Z: 1}, {X: 6, Y: 1, Z: 1}, {X: 6, Y: 6, Z: 1}, {X: 1, Y: 6, Z: 1}},
		Type:   structure.ClosedPlanar,
	}})
	m, err := mask.NewAccessor(s, g, nil)
	if err != nil {
		t.Fatalf("Failed to create mask: %v", err)
	}
	viewer, err := NewMaskViewer(m)
	if err != nil {
		t.Fatalf("Failed to create mask viewer: %v", err)
	}

	img, err := viewer.ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	gray := img.(*image.Gray16)
	if got := gray.Gray16At(3, 3).Y; got != 65535 {
		t.Errorf("Expected interior voxel to be white, got %d", got)
	}
	if got := gray.Gray16At(1, 1).Y; got != toGray(0.25).Y {
		t.Errorf("Expected corner voxel at quarter grey, got %d", got)
	}

	empty, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := empty.(*image.Gray16).Gray16At(3, 3).Y; got != 0 {
		t.Errorf("Expected uncovered slice to be black, got %d", got)
	}
}

func TestDoseViewer(t *testing.T) {
	g := testGrid(t)
	values := make([]float64, g.NumberOfVoxels())
	values[5] = 4
	values[6] = 2
	d, err := dose.NewArrayAccessor(g, values, "")
	if err != nil {
		t.Fatalf("Failed to create dose: %v", err)
	}
	viewer, err := NewDoseViewer(d, 0)
	if err != nil {
		t.Fatalf("Failed to create dose viewer: %v", err)
	}
	img, _ := viewer.ExtractSlice("z", 0)
	gray := img.(*image.Gray16)
	if got := gray.Gray16At(5, 0).Y; got != 65535 {
		t.Errorf("Expected maximum dose to be white, got %d", got)
	}
	if got := gray.Gray16At(6, 0).Y; got != toGray(0.5).Y {
		t.Errorf("Expected half dose at mid grey, got %d", got)
	}
}

func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	width, height, depth := 5, 5, 3
	volumeData := make([]float64, width*height*depth)
	for i := range volumeData {
		volumeData[i] = 0.5
	}
	viewer, err := NewViewer(volumeData, width, height, depth)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "slices")
	n, err := viewer.SaveSliceSequence("z", outputDir)
	if err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	if n != depth {
		t.Errorf("Expected %d files, got %d", depth, n)
	}
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if _, err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

func TestDVHPlot(t *testing.T) {
	h, err := dvh.New([]float64{0, 2, 4, 2, 0}, 0.5, 0.25, "ptv", "plan")
	if err != nil {
		t.Fatalf("Failed to create DVH: %v", err)
	}
	h.SetLabel("PTV")

	pts := DVHPoints(h, PlotOptions{Cumulative: true, Relative: true})
	if len(pts) != 5 {
		t.Fatalf("Expected 5 points, got %d", len(pts))
	}
	if pts[0].Y != 1 || pts[2].X != 1 || pts[2].Y != 0.75 {
		t.Errorf("Unexpected cumulative relative curve: %v", pts)
	}
	diff := DVHPoints(h, PlotOptions{})
	if diff[2].Y != 1 {
		t.Errorf("Expected 1 cm³ in bin 2, got %g", diff[2].Y)
	}

	if _, err := NewDVHPlot(nil, PlotOptions{}); err == nil {
		t.Error("Expected error for empty histogram list, got nil")
	}

	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	filename := filepath.Join(t.TempDir(), "dvh.png")
	if err := SaveDVHPlot([]*dvh.DVH{h}, PlotOptions{Cumulative: true}, filename); err != nil {
		t.Fatalf("Failed to save plot: %v", err)
	}
	if info, err := os.Stat(filename); err != nil || info.Size() == 0 {
		t.Errorf("Expected non-empty plot file, got %v", err)
	}
}
