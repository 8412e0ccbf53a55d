// Package ensemble reduces trial outputs: the per-channel combination of
// stochastic trials and the merge of channels that share a tag into
// camera, telescope and experiment tables.
package ensemble

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

var (
	// ErrNoTrials is returned when there is nothing to combine.
	ErrNoTrials = errors.New("no trials to combine")
	// ErrMisaligned is returned when trials disagree on the channel list.
	ErrMisaligned = errors.New("trial records are not aligned")
	// ErrTagMismatch is returned when merging records with different tags.
	ErrTagMismatch = errors.New("records have different channel tags")
)

// estimates returns pointers to every Estimate field of r, in a fixed
// order.
func estimates(r *model.SensitivityRecord) []*model.Estimate {
	return []*model.Estimate{
		&r.Freq, &r.FracBW, &r.ApertureEff, &r.OpticalPower,
		&r.NEPPhoton, &r.NEPPhotonCorr, &r.NEPBolo, &r.NEPReadout, &r.NEPTotal,
		&r.NET, &r.NETCorr, &r.NETArray, &r.MappingSpeed, &r.Sensitivity,
	}
}

func sameChannel(a, b model.SensitivityRecord) bool {
	return a.Telescope == b.Telescope && a.Camera == b.Camera && a.Channel == b.Channel
}

// Combine reduces N trials, each a channel-aligned record list, to one
// record per channel. The reported mean is the mean of the trial means and
// the spread is the mean trial spread plus the standard deviation of the
// trial means. A single trial is returned unchanged.
func Combine(trials [][]model.SensitivityRecord) ([]model.SensitivityRecord, error) {
	if len(trials) == 0 {
		return nil, ErrNoTrials
	}
	n := len(trials[0])
	for i, t := range trials {
		if len(t) != n {
			return nil, fmt.Errorf("trial %d has %d records, want %d: %w", i, len(t), n, ErrMisaligned)
		}
	}

	out := make([]model.SensitivityRecord, n)
	means := make([]float64, len(trials))
	spreads := make([]float64, len(trials))
	numDet := make([]float64, len(trials))
	for c := range n {
		ref := trials[0][c]
		res := ref
		for i, t := range trials {
			if !sameChannel(t[c], ref) {
				return nil, fmt.Errorf("trial %d record %d is %s/%s/%s, want %s/%s/%s: %w",
					i, c, t[c].Telescope, t[c].Camera, t[c].Channel, ref.Telescope, ref.Camera, ref.Channel, ErrMisaligned)
			}
			numDet[i] = t[c].NumDet
			res.ReadoutEstimated = res.ReadoutEstimated || t[c].ReadoutEstimated
		}
		res.NumDet = stat.Mean(numDet, nil)

		dst := estimates(&res)
		for f := range dst {
			for i := range trials {
				e := estimates(&trials[i][c])[f]
				means[i], spreads[i] = e.Mean, e.Spread
			}
			*dst[f] = combineEstimate(means, spreads)
		}
		out[c] = res
	}
	return out, nil
}

func combineEstimate(means, spreads []float64) model.Estimate {
	if len(means) == 1 {
		return model.Estimate{Mean: means[0], Spread: spreads[0]}
	}
	mean, std := stat.PopMeanStdDev(means, nil)
	return model.Estimate{Mean: mean, Spread: stat.Mean(spreads, nil) + std}
}

// CombineBreakdowns averages channel-aligned power breakdowns over trials.
func CombineBreakdowns(trials [][]model.PowerBreakdown) ([]model.PowerBreakdown, error) {
	if len(trials) == 0 {
		return nil, ErrNoTrials
	}
	n := len(trials[0])
	w := 1 / float64(len(trials))
	out := make([]model.PowerBreakdown, n)
	for c := range n {
		ref := trials[0][c]
		res := model.PowerBreakdown{
			Telescope: ref.Telescope,
			Camera:    ref.Camera,
			Channel:   ref.Channel,
			Elements:  make([]model.ElementPower, len(ref.Elements)),
		}
		for i, t := range trials {
			if len(t) != n || len(t[c].Elements) != len(ref.Elements) || t[c].Channel != ref.Channel {
				return nil, fmt.Errorf("trial %d breakdown %d: %w", i, c, ErrMisaligned)
			}
			res.Sky += w * t[c].Sky
			res.Receiver += w * t[c].Receiver
			res.HWP += w * t[c].HWP
			for j, e := range t[c].Elements {
				d := &res.Elements[j]
				d.Name = e.Name
				d.Emissivity += w * e.Emissivity
				d.Efficiency += w * e.Efficiency
				d.Temperature += w * e.Temperature
				d.PowerEmitted += w * e.PowerEmitted
				d.PowerAtDetector += w * e.PowerAtDetector
				d.CumulativeEff += w * e.CumulativeEff
			}
		}
		out[c] = res
	}
	return out, nil
}
