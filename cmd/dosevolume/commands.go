package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dosevolume/pkg/config"
	"dosevolume/pkg/dose"
	"dosevolume/pkg/dvh"
	"dosevolume/pkg/statistics"
	"dosevolume/pkg/visualization"
)

func newMaskCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Voxelize the job's structures and report their masks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := a.loadInputs(false)
			if err != nil {
				return err
			}
			masks, err := a.computeMasks(in)
			if err != nil {
				return err
			}
			voxelVolume, err := in.geo.VoxelVolume()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range masks {
				voxels, err := m.RelevantVoxelsAbove(a.cfg.Output.MaskThreshold)
				if err != nil {
					return err
				}
				covered := 0.0
				for _, v := range voxels {
					covered += v.Fraction
				}
				fmt.Fprintf(out, "%s (%s)\n", m.Structure().Label(), m.MaskUID())
				fmt.Fprintf(out, "  voxels: %d\n", len(voxels))
				fmt.Fprintf(out, "  volume: %.4f cm³\n", covered*voxelVolume)
				if list {
					for _, v := range voxels {
						idx, _ := in.geo.Index(v.ID)
						fmt.Fprintf(out, "  %d %v %.6f\n", v.ID, idx, v.Fraction)
					}
				}

				if dir := a.cfg.Output.MaskImageDir; dir != "" {
					viewer, err := visualization.NewMaskViewer(m)
					if err != nil {
						return err
					}
					target := filepath.Join(dir, sanitize(m.Structure().Label()))
					n, err := viewer.SaveSliceSequence("z", target)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  %d slice images written to %s\n", n, target)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print every mask voxel")
	return cmd
}

func newDVHCmd(a *app) *cobra.Command {
	var (
		cumulative bool
		relative   bool
		plotFile   string
	)
	cmd := &cobra.Command{
		Use:   "dvh",
		Short: "Compute dose-volume histograms of the job's structures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := a.loadInputs(true)
			if err != nil {
				return err
			}
			masks, err := a.computeMasks(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			hists := make([]*dvh.DVH, 0, len(masks))
			for _, m := range masks {
				it, err := dose.NewMaskedIterator(m, in.dose)
				if err != nil {
					return err
				}
				calc, err := dvh.NewCalculator(it, m.Structure().UID(), in.dose.UID(),
					dvh.WithDeltaD(a.cfg.DVH.DeltaD),
					dvh.WithNumberOfBins(a.cfg.DVH.NumberOfBins),
					dvh.WithLogger(a.log),
				)
				if err != nil {
					return err
				}
				h, err := calc.Generate()
				if err != nil {
					return err
				}
				h.SetLabel(m.Structure().Label())
				hists = append(hists, h)

				fmt.Fprintf(out, "%s\n", h.Label())
				fmt.Fprintf(out, "  bins: %d x %.4f Gy\n", h.NumberOfBins(), h.DeltaD())
				fmt.Fprintf(out, "  volume: %.4f cm³\n", h.TotalVolume())
				fmt.Fprintf(out, "  min/mean/median/max: %.3f / %.3f / %.3f / %.3f Gy\n",
					h.Minimum(), h.Mean(), h.Median(), h.Maximum())
				if cumulative {
					series := h.Cumulative(!relative)
					if relative {
						series = h.Relative(series)
					}
					for i, v := range series {
						fmt.Fprintf(out, "  %.4f %.6f\n", float64(i)*h.DeltaD(), v)
					}
				}
			}

			if plotFile == "" {
				plotFile = a.cfg.Output.PlotFile
			}
			if plotFile != "" {
				opts := visualization.PlotOptions{Cumulative: true, Relative: relative}
				if err := visualization.SaveDVHPlot(hists, opts, plotFile); err != nil {
					return err
				}
				fmt.Fprintf(out, "DVH plot saved to: %s\n", plotFile)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cumulative, "cumulative", false, "print the cumulative histogram")
	cmd.Flags().BoolVar(&relative, "relative", false, "report volumes as fractions of the structure volume")
	cmd.Flags().StringVar(&plotFile, "plot", "", "write a cumulative DVH plot (overrides output.plotFile)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var complexMeasures bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute dose statistics of the job's structures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := a.loadInputs(true)
			if err != nil {
				return err
			}
			masks, err := a.computeMasks(in)
			if err != nil {
				return err
			}

			sc := a.cfg.Statistics
			withMeasures := sc.Complex || complexMeasures
			for _, m := range masks {
				it, err := dose.NewMaskedIterator(m, in.dose)
				if err != nil {
					return err
				}
				calc, err := statistics.NewCalculator(it,
					statistics.WithThreads(a.cfg.Processing.NumCores),
					statistics.WithLogger(a.log),
				)
				if err != nil {
					return err
				}

				var doseT, volT []float64
				if withMeasures {
					doseT, volT = sc.DoseThresholds, sc.VolumeThresholds
				}
				var stats *statistics.DoseStatistics
				if sc.ReferenceDose > 0 {
					stats, err = calc.CalculateWithReferenceDose(sc.ReferenceDose, withMeasures, doseT, volT)
				} else {
					stats, err = calc.Calculate(withMeasures, doseT, volT)
				}
				if err != nil {
					return err
				}
				printStatistics(cmd, m.Structure().Label(), stats)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&complexMeasures, "complex", false, "compute Dx, Vx, MOHx, MOCx, MaxOHx and MinOCx (overrides statistics.complex)")
	return cmd
}

func printStatistics(cmd *cobra.Command, label string, s *statistics.DoseStatistics) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", label)
	fmt.Fprintf(out, "  voxels: %.3f\n", s.NumberOfVoxels)
	fmt.Fprintf(out, "  volume: %.4f cm³\n", s.Volume)
	fmt.Fprintf(out, "  min: %.4f Gy\n", s.Minimum)
	fmt.Fprintf(out, "  max: %.4f Gy\n", s.Maximum)
	fmt.Fprintf(out, "  mean: %.4f Gy\n", s.Mean)
	fmt.Fprintf(out, "  std deviation: %.4f Gy\n", s.StdDeviation)
	fmt.Fprintf(out, "  reference dose: %.4f Gy\n", s.ReferenceDose)
	if !s.HasComplexMeasures() {
		return
	}
	for _, k := range statistics.Kinds {
		unit, valueUnit := "cm³", "Gy"
		if k.ByDose() {
			unit, valueUnit = "Gy", "cm³"
		}
		fmt.Fprintf(out, "  %s:\n", k)
		for _, m := range s.Collection(k).AllValues() {
			fmt.Fprintf(out, "    x=%.4f %s: %.4f %s\n", m.X, unit, m.Value, valueUnit)
		}
	}
}

func newInitConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		// The config file may not exist yet.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to: %s\n", path)
			return nil
		},
	}
}

func sanitize(label string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	if s := r.Replace(label); s != "" {
		return s
	}
	return "structure"
}
