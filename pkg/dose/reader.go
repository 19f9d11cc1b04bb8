package dose

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"dosevolume/pkg/grid"
	"dosevolume/pkg/rterr"
)

// Sample formats of raw dose volumes.
const (
	Float32 = "float32"
	Float64 = "float64"
)

// ReadRaw reads one little-endian sample per voxel of geo, in voxel id order,
// and multiplies every sample by scale (a scale of 0 means 1).
func ReadRaw(r io.Reader, geo *grid.GeometricInfo, format string, scale float64) ([]float64, error) {
	if geo == nil {
		return nil, errors.Wrap(rterr.ErrNullPointer, "geometric info is nil")
	}
	if scale == 0 {
		scale = 1
	}
	n := geo.NumberOfVoxels()
	values := make([]float64, n)

	switch strings.ToLower(format) {
	case "", Float32:
		raw := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, errors.Wrapf(err, "reading %d float32 samples", n)
		}
		for i, v := range raw {
			values[i] = float64(v) * scale
		}
	case Float64:
		if err := binary.Read(r, binary.LittleEndian, values); err != nil {
			return nil, errors.Wrapf(err, "reading %d float64 samples", n)
		}
		if scale != 1 {
			for i := range values {
				values[i] *= scale
			}
		}
	default:
		return nil, errors.Wrapf(rterr.ErrInvalidParameter, "unknown sample format %q", format)
	}
	return values, nil
}

// LoadRaw reads a raw dose volume file into an ArrayAccessor.
func LoadRaw(path string, geo *grid.GeometricInfo, format string, scale float64, uid string) (*ArrayAccessor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dose file")
	}
	defer f.Close()

	values, err := ReadRaw(bufio.NewReader(f), geo, format, scale)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dose file %s", path)
	}
	return NewArrayAccessor(geo, values, uid)
}
