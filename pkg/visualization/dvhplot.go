// Package visualization renders dose-volume histograms as plots and voxel
// volumes (masks, dose) as slice images.
package visualization

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"dosevolume/pkg/dvh"
	"dosevolume/pkg/rterr"
)

// PlotOptions selects the DVH representation.
type PlotOptions struct {
	// Cumulative plots volume receiving at least each dose instead of the
	// per-bin volume
	Cumulative bool
	// Relative plots fractions of each structure's volume instead of cm³
	Relative bool
	Title    string
}

var palette = []color.Color{
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

// DVHPoints returns the curve of h as dose (bin lower edge) against volume.
func DVHPoints(h *dvh.DVH, opts PlotOptions) plotter.XYs {
	var ys []float64
	if opts.Cumulative {
		ys = h.Cumulative(!opts.Relative)
	} else {
		ys = h.Differential(!opts.Relative)
	}
	if opts.Relative {
		ys = h.Relative(ys)
	}
	pts := make(plotter.XYs, len(ys))
	for i, y := range ys {
		pts[i] = plotter.XY{X: float64(i) * h.DeltaD(), Y: y}
	}
	return pts
}

// NewDVHPlot draws one line per histogram.
func NewDVHPlot(hists []*dvh.DVH, opts PlotOptions) (*plot.Plot, error) {
	if len(hists) == 0 {
		return nil, errors.Wrap(rterr.ErrMissingInput, "no histograms to plot")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = "Dose-volume histogram"
	}
	p.X.Label.Text = "Dose (Gy)"
	switch {
	case opts.Relative:
		p.Y.Label.Text = "Volume (fraction)"
	default:
		p.Y.Label.Text = "Volume (cm³)"
	}
	p.Add(plotter.NewGrid())

	for i, h := range hists {
		if h == nil {
			return nil, errors.Wrapf(rterr.ErrNullPointer, "histogram %d is nil", i)
		}
		line, err := plotter.NewLine(DVHPoints(h, opts))
		if err != nil {
			return nil, errors.Wrapf(err, "plotting histogram %d", i)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1.5)
		p.Add(line)

		label := h.Label()
		if label == "" {
			label = h.StructureUID()
		}
		p.Legend.Add(label, line)
	}
	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SaveDVHPlot writes the plot to filename; the extension selects the format.
func SaveDVHPlot(hists []*dvh.DVH, opts PlotOptions, filename string) error {
	p, err := NewDVHPlot(hists, opts)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filename); err != nil {
		return errors.Wrapf(err, "saving plot to %s", filename)
	}
	return nil
}
