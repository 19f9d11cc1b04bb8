package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dosevolume/pkg/config"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	jobPath    string

	// flag overrides, applied when set on the command line
	cores   int
	strict  bool
	verbose bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dosevolume",
		Short: "Dose-volume evaluation of radiotherapy structures",
		Long: `dosevolume converts structure contours into fractional voxel masks on a dose
grid and derives dose-volume histograms and dose statistics from the masked dose.

Inputs are described by a job file (YAML) naming the grid, the dose volume and
the GeoJSON structure files; processing options come from the config file.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "dosevolume.yaml", "configuration file (defaults are used when it does not exist)")
	flags.StringVarP(&a.jobPath, "job", "j", "job.yaml", "job file naming grid, dose and structures")
	flags.IntVar(&a.cores, "cores", 0, "number of workers, 0 uses every core (overrides processing.numCores)")
	flags.BoolVar(&a.strict, "strict", false, "fail on intersecting contours (overrides processing.strict)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging (overrides output.verbose)")

	root.AddCommand(
		newMaskCmd(a),
		newDVHCmd(a),
		newStatsCmd(a),
		newInitConfigCmd(a),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("cores") {
		cfg.Processing.NumCores = a.cores
	}
	if flags.Changed("strict") {
		cfg.Processing.Strict = a.strict
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = a.verbose
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log, err = newLogger(cfg.Output.Verbose)
	return err
}

func newLogger(verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if verbose {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return l, nil
}
