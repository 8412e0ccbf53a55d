package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/sensitivity-calculator/internal/config"
	"github.com/signalsfoundry/sensitivity-calculator/internal/trial"
)

func newValidateCmd() *cobra.Command {
	var atmDir string
	cmd := &cobra.Command{
		Use:   "validate experiment.yaml",
		Short: "Check an experiment definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := config.LoadExperiment(args[0])
			if err != nil {
				return err
			}
			s := config.DefaultSettings()
			s.AtmosphereDir = atmDir
			tables, err := config.BuildTables(exp, s)
			if err != nil {
				return err
			}
			opts := trial.DefaultOptions()
			opts.Nominal = true
			env, err := trial.NewEnvironment(exp, tables, opts)
			if err != nil {
				return err
			}
			if _, err := env.Run(cmd.Context(), 0, 0); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d telescopes, %d channels OK\n",
				exp.Name, len(exp.Telescopes), exp.ChannelCount())
			return err
		},
	}
	cmd.Flags().StringVar(&atmDir, "atmosphere-dir", "", "directory of atm_<elev>deg_<pwv>um.txt spectra")
	return cmd
}
