package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"dosevolume/pkg/dose"
	"dosevolume/pkg/grid"
	"dosevolume/pkg/mask"
	"dosevolume/pkg/rterr"
)

// Viewer renders slices of a voxel volume whose values lie in [0,1], such as
// mask fractions or a normalized dose.
type Viewer struct {
	// volumeData holds one value per voxel in voxel id order
	volumeData []float64

	// dimensions of the volume
	width  int
	height int
	depth  int
}

// NewViewer wraps a volume of width*height*depth values.
func NewViewer(volumeData []float64, width, height, depth int) (*Viewer, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "dimensions %dx%dx%d", width, height, depth)
	}
	if len(volumeData) != width*height*depth {
		return nil, errors.Wrapf(rterr.ErrInvalidParameter,
			"got %d values for %dx%dx%d voxels", len(volumeData), width, height, depth)
	}
	return &Viewer{volumeData: volumeData, width: width, height: height, depth: depth}, nil
}

// NewMaskViewer renders the fractions of a mask, computing it if needed.
func NewMaskViewer(m *mask.Accessor) (*Viewer, error) {
	if m == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "mask is nil")
	}
	voxels, err := m.RelevantVoxels()
	if err != nil {
		return nil, err
	}
	dims := m.GeometricInfo().Dimensions()
	data := make([]float64, m.GeometricInfo().NumberOfVoxels())
	for _, v := range voxels {
		data[v.ID] = v.Fraction
	}
	return NewViewer(data, dims[0], dims[1], dims[2])
}

// NewDoseViewer renders a dose distribution scaled so that maxDose maps to
// white. A maxDose of 0 scales by the largest value.
func NewDoseViewer(d dose.Accessor, maxDose float64) (*Viewer, error) {
	if rterr.IsNil(d) {
		return nil, errors.Wrap(rterr.ErrNullPointer, "dose accessor is nil")
	}
	geo := d.GeometricInfo()
	dims := geo.Dimensions()
	data := make([]float64, geo.NumberOfVoxels())
	for i := range data {
		data[i], _ = d.ValueAt(grid.VoxelGridID(i))
	}
	if maxDose <= 0 && len(data) > 0 {
		maxDose = floats.Max(data)
	}
	if maxDose > 0 {
		for i := range data {
			data[i] /= maxDose
		}
	}
	return NewViewer(data, dims[0], dims[1], dims[2])
}

func toGray(v float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, v*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, toGray(v.volumeData[z*v.width*v.height+y*v.width+position]))
			}
		}

	case "y", "Y":
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, toGray(v.volumeData[z*v.width*v.height+position*v.width+x]))
			}
		}

	case "z", "Z":
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, toGray(v.volumeData[position*v.width*v.height+y*v.width+x]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// and returns the number of files written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
