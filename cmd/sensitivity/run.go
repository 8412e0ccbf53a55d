package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/sensitivity-calculator/internal/config"
	"github.com/signalsfoundry/sensitivity-calculator/internal/ensemble"
	"github.com/signalsfoundry/sensitivity-calculator/internal/logging"
	"github.com/signalsfoundry/sensitivity-calculator/internal/observability"
	"github.com/signalsfoundry/sensitivity-calculator/internal/report"
	"github.com/signalsfoundry/sensitivity-calculator/internal/runner"
	"github.com/signalsfoundry/sensitivity-calculator/internal/trial"
)

type runFlags struct {
	settingsPath string
	metricsAddr  string
}

func newRunCmd() *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run [experiment.yaml]",
		Short: "Evaluate an experiment and write sensitivity tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cmd.Flags().Set("experiment", args[0]); err != nil {
					return err
				}
			}
			s, err := config.LoadSettings(rf.settingsPath, cmd.Flags())
			if err != nil {
				return err
			}
			log := logging.New(s.Log)
			ctx := cmd.Context()

			tracing, err := observability.InitTracing(ctx, s.Tracing, log)
			if err != nil {
				return err
			}
			defer tracing.Shutdown(context.WithoutCancel(ctx))

			reg := prometheus.NewRegistry()
			collector, err := observability.NewRunCollector(reg)
			if err != nil {
				return err
			}
			if rf.metricsAddr != "" {
				srv := serveMetrics(rf.metricsAddr, collector, log)
				defer srv.Close()
			}

			_, err = execute(ctx, s, log, collector, cmd.OutOrStdout())
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.settingsPath, "config", "", "program settings file (yaml, json or toml)")
	f.StringVar(&rf.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics while the run lasts")
	d := config.DefaultSettings()
	f.String("experiment", d.Experiment, "experiment definition file")
	f.Int("trials", d.Trials, "number of Monte Carlo trials")
	f.Int("observations", d.Observations, "sky draws per trial")
	f.Int("workers", d.Workers, "parallel trial workers (0 uses every CPU)")
	f.Uint64("seed", d.Seed, "base random seed")
	f.Bool("nominal", d.Nominal, "evaluate every parameter at its mean")
	f.String("elevation", d.Elevation, "fixed elevation in degrees, or NA")
	f.String("pwv", d.PWV, "fixed PWV in mm, or NA")
	f.Float64("spec-res", d.SpecRes, "frequency grid spacing in GHz")
	f.Bool("foregrounds", d.Foregrounds, "add dust and synchrotron to the sky")
	f.Bool("correlations", d.Correlations, "include correlated photon noise")
	f.Float64("bunching", d.Bunching, "photon bunching factor")
	f.String("atmosphere-dir", d.AtmosphereDir, "directory of atm_<elev>deg_<pwv>um.txt spectra")
	f.String("output-dir", d.OutputDir, "directory for tables and plots")
	f.String("plot", d.Plot, "NET plot format: png, svg or none")
	f.Duration("progress", d.Progress, "interval between progress logs (0 disables)")
	return cmd
}

// execute loads the experiment named by s, runs every trial and writes the
// reports. The experiment table is echoed to out.
func execute(ctx context.Context, s config.Settings, log logging.Logger, collector *observability.RunCollector, out io.Writer) (*runner.Report, error) {
	if s.Experiment == "" {
		return nil, fmt.Errorf("no experiment file given: %w", config.ErrInvalidConfig)
	}
	exp, err := config.LoadExperiment(s.Experiment)
	if err != nil {
		return nil, err
	}
	tables, err := config.BuildTables(exp, s)
	if err != nil {
		return nil, err
	}
	opts, err := s.TrialOptions()
	if err != nil {
		return nil, err
	}
	env, err := trial.NewEnvironment(exp, tables, opts)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "experiment loaded",
		logging.String("experiment", exp.Name),
		logging.Int("telescopes", len(exp.Telescopes)),
		logging.Int("channels", exp.ChannelCount()),
	)

	r := runner.New(env,
		runner.WithLogger(log),
		runner.WithMetrics(collector),
		runner.WithTracer(observability.Tracer()),
		runner.WithProgress(s.Progress),
	)
	rep, err := r.Run(ctx, s.RunnerConfig())
	if err != nil {
		return rep, err
	}

	paths, err := report.WriteDir(s.OutputDir, rep, s.Plot)
	if err != nil {
		return rep, err
	}
	for _, p := range paths {
		log.Info(ctx, "wrote output", logging.String("path", p))
	}
	if n := len(rep.Tables); n > 0 && rep.Tables[n-1].Level == ensemble.LevelExperiment {
		if err := report.WriteSensitivity(out, rep.Tables[n-1]); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func serveMetrics(addr string, collector *observability.RunCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
