// Package report renders run results as text tables and plots.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/signalsfoundry/sensitivity-calculator/internal/ensemble"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Display scale factors from SI.
const (
	toGHz    = 1e-9
	toPW     = 1e12
	toAW     = 1e18
	toUK     = 1e6
	toPerUK2 = 1e-12
)

type column struct {
	header string
	value  func(model.SensitivityRecord) string
}

func est(get func(model.SensitivityRecord) model.Estimate, scale float64, verb string) func(model.SensitivityRecord) string {
	return func(r model.SensitivityRecord) string {
		e := get(r)
		return fmt.Sprintf(verb+" +/- "+verb, e.Mean*scale, e.Spread*scale)
	}
}

var sensitivityColumns = []column{
	{"Channel", func(r model.SensitivityRecord) string { return r.Channel }},
	{"Freq [GHz]", est(func(r model.SensitivityRecord) model.Estimate { return r.Freq }, toGHz, "%.1f")},
	{"Frac BW", est(func(r model.SensitivityRecord) model.Estimate { return r.FracBW }, 1, "%.3f")},
	{"Num Det", func(r model.SensitivityRecord) string { return fmt.Sprintf("%.0f", r.NumDet) }},
	{"Ap Eff", est(func(r model.SensitivityRecord) model.Estimate { return r.ApertureEff }, 1, "%.3f")},
	{"Popt [pW]", est(func(r model.SensitivityRecord) model.Estimate { return r.OpticalPower }, toPW, "%.3f")},
	{"NEP Ph [aW/rtHz]", est(func(r model.SensitivityRecord) model.Estimate { return r.NEPPhoton }, toAW, "%.2f")},
	{"NEP Ph Corr [aW/rtHz]", est(func(r model.SensitivityRecord) model.Estimate { return r.NEPPhotonCorr }, toAW, "%.2f")},
	{"NEP Bolo [aW/rtHz]", est(func(r model.SensitivityRecord) model.Estimate { return r.NEPBolo }, toAW, "%.2f")},
	{"NEP Read [aW/rtHz]", func(r model.SensitivityRecord) string {
		s := fmt.Sprintf("%.2f +/- %.2f", r.NEPReadout.Mean*toAW, r.NEPReadout.Spread*toAW)
		if r.ReadoutEstimated {
			s += "*"
		}
		return s
	}},
	{"NEP Total [aW/rtHz]", est(func(r model.SensitivityRecord) model.Estimate { return r.NEPTotal }, toAW, "%.2f")},
	{"NET [uK-rts]", est(func(r model.SensitivityRecord) model.Estimate { return r.NET }, toUK, "%.1f")},
	{"NET Corr [uK-rts]", est(func(r model.SensitivityRecord) model.Estimate { return r.NETCorr }, toUK, "%.1f")},
	{"NET Arr [uK-rts]", est(func(r model.SensitivityRecord) model.Estimate { return r.NETArray }, toUK, "%.2f")},
	{"Map Speed [1/(uK^2 s)]", est(func(r model.SensitivityRecord) model.Estimate { return r.MappingSpeed }, toPerUK2, "%.4f")},
	{"Sens [uK-arcmin]", est(func(r model.SensitivityRecord) model.Estimate { return r.Sensitivity }, toUK, "%.2f")},
}

// WriteSensitivity writes one summary table followed by its total row.
func WriteSensitivity(w io.Writer, t ensemble.Table) error {
	if _, err := fmt.Fprintf(w, "# %s (%s)\n", t.Name(), t.Level); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headers := make([]string, len(sensitivityColumns))
	for i, c := range sensitivityColumns {
		headers[i] = c.header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	estimated := false
	for _, r := range t.Channels {
		writeRow(tw, r)
		estimated = estimated || r.ReadoutEstimated
	}
	total := t.Total
	total.Channel = ensemble.TotalTag
	writeRow(tw, total)
	if err := tw.Flush(); err != nil {
		return err
	}
	if estimated {
		if _, err := fmt.Fprintln(w, "* readout NEP estimated from the read noise fraction"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func writeRow(tw io.Writer, r model.SensitivityRecord) {
	cells := make([]string, len(sensitivityColumns))
	for i, c := range sensitivityColumns {
		cells[i] = c.value(r)
	}
	fmt.Fprintln(tw, strings.Join(cells, "\t"))
}

// WriteTables writes every table in order.
func WriteTables(w io.Writer, tables []ensemble.Table) error {
	for _, t := range tables {
		if err := WriteSensitivity(w, t); err != nil {
			return fmt.Errorf("table %s: %w", t.Name(), err)
		}
	}
	return nil
}

// WriteBreakdown writes the optical power breakdown of one channel.
func WriteBreakdown(w io.Writer, b model.PowerBreakdown) error {
	if _, err := fmt.Fprintf(w, "# %s/%s %s\n", b.Telescope, b.Camera, b.Channel); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Element\tEmissivity\tEfficiency\tCum Eff\tTemp [K]\tPower Emitted [pW]\tPower to Det [pW]")
	for _, e := range b.Elements {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.2f\t%.4f\t%.4f\n",
			e.Name, e.Emissivity, e.Efficiency, e.CumulativeEff, e.Temperature,
			e.PowerEmitted*toPW, e.PowerAtDetector*toPW)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Sky: %.4f pW  Receiver: %.4f pW  HWP: %.4f pW  Total: %.4f pW\n\n",
		b.Sky*toPW, b.Receiver*toPW, b.HWP*toPW, b.Total()*toPW)
	return err
}
