package ensemble

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/sensitivity-calculator/core"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// TotalTag names the summary row of a table.
const TotalTag = "Total"

// Merge folds records that share a channel tag into one. Detector counts
// add; array NET and map depth combine by inverse variance and mapping
// speed is recomputed from the merged array NET. Per-detector quantities
// are averaged with each record weighted by the number of channels already
// folded into it, so the result does not depend on merge order.
func Merge(recs ...model.SensitivityRecord) (model.SensitivityRecord, error) {
	if len(recs) == 0 {
		return model.SensitivityRecord{}, ErrNoTrials
	}
	tag := recs[0].Channel
	w := make([]float64, len(recs))
	for i, r := range recs {
		if r.Channel != tag {
			return model.SensitivityRecord{}, fmt.Errorf("%q and %q: %w", tag, r.Channel, ErrTagMismatch)
		}
		w[i] = float64(max(r.Merged, 1))
	}
	if len(recs) == 1 {
		return recs[0], nil
	}

	out := model.SensitivityRecord{
		Telescope: common(recs, func(r model.SensitivityRecord) string { return r.Telescope }),
		Camera:    common(recs, func(r model.SensitivityRecord) string { return r.Camera }),
		Channel:   tag,
	}
	for _, r := range recs {
		out.NumDet += r.NumDet
		out.Merged += max(r.Merged, 1)
		out.ReadoutEstimated = out.ReadoutEstimated || r.ReadoutEstimated
	}

	pick := func(fn func(r model.SensitivityRecord) model.Estimate) []model.Estimate {
		es := make([]model.Estimate, len(recs))
		for i, r := range recs {
			es[i] = fn(r)
		}
		return es
	}
	out.Freq = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.Freq }), w)
	out.FracBW = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.FracBW }), w)
	out.ApertureEff = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.ApertureEff }), w)
	out.OpticalPower = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.OpticalPower }), w)
	out.NEPPhoton = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NEPPhoton }), w)
	out.NEPPhotonCorr = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NEPPhotonCorr }), w)
	out.NEPBolo = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NEPBolo }), w)
	out.NEPReadout = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NEPReadout }), w)
	out.NEPTotal = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NEPTotal }), w)
	out.NET = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NET }), w)
	out.NETCorr = averaged(pick(func(r model.SensitivityRecord) model.Estimate { return r.NETCorr }), w)

	out.NETArray = inverseVariance(pick(func(r model.SensitivityRecord) model.Estimate { return r.NETArray }), w)
	out.Sensitivity = inverseVariance(pick(func(r model.SensitivityRecord) model.Estimate { return r.Sensitivity }), w)
	out.MappingSpeed = rescaled(pick(func(r model.SensitivityRecord) model.Estimate { return r.MappingSpeed }), w,
		core.MappingSpeed(out.NETArray.Mean))
	return out, nil
}

// averaged is the weighted mean; its spread is the weighted scatter of the
// means plus the weighted mean spread.
func averaged(es []model.Estimate, w []float64) model.Estimate {
	means, spreads := split(es)
	mean, std := stat.PopMeanStdDev(means, w)
	return model.Estimate{Mean: mean, Spread: std + stat.Mean(spreads, w)}
}

// inverseVariance combines noise-like quantities as 1/sqrt(sum 1/x^2) and
// carries the weighted mean relative spread over to the result.
func inverseVariance(es []model.Estimate, w []float64) model.Estimate {
	means, spreads := split(es)
	x := core.InvVar(means...)
	rel := make([]float64, len(es))
	for i := range es {
		if means[i] != 0 {
			rel[i] = spreads[i] / means[i]
		}
	}
	return model.Estimate{Mean: x, Spread: x * stat.Mean(rel, w)}
}

// rescaled replaces the mean by target and scales each input spread by
// target over that input's mean before averaging.
func rescaled(es []model.Estimate, w []float64, target float64) model.Estimate {
	scaled := make([]float64, len(es))
	for i, e := range es {
		if e.Mean != 0 {
			scaled[i] = e.Spread * target / e.Mean
		}
	}
	return model.Estimate{Mean: target, Spread: stat.Mean(scaled, w)}
}

func split(es []model.Estimate) (means, spreads []float64) {
	means = make([]float64, len(es))
	spreads = make([]float64, len(es))
	for i, e := range es {
		means[i], spreads[i] = e.Mean, e.Spread
	}
	return means, spreads
}

func common(recs []model.SensitivityRecord, fn func(model.SensitivityRecord) string) string {
	v := fn(recs[0])
	for _, r := range recs[1:] {
		if fn(r) != v {
			return ""
		}
	}
	return v
}

// MergeByTag merges every group of records sharing a channel tag and
// returns one record per tag ordered by frequency.
func MergeByTag(recs []model.SensitivityRecord) ([]model.SensitivityRecord, error) {
	var order []string
	groups := make(map[string][]model.SensitivityRecord)
	for _, r := range recs {
		if _, ok := groups[r.Channel]; !ok {
			order = append(order, r.Channel)
		}
		groups[r.Channel] = append(groups[r.Channel], r)
	}
	out := make([]model.SensitivityRecord, 0, len(order))
	for _, tag := range order {
		m, err := Merge(groups[tag]...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b model.SensitivityRecord) int {
		return cmp.Compare(a.Freq.Mean, b.Freq.Mean)
	})
	return out, nil
}

// Total summarizes the channels of a table: summed detectors and mapping
// speed, inverse-variance array NET and map depth.
func Total(recs []model.SensitivityRecord) model.SensitivityRecord {
	out := model.SensitivityRecord{Channel: TotalTag}
	if len(recs) == 0 {
		return out
	}
	out.Telescope = common(recs, func(r model.SensitivityRecord) string { return r.Telescope })
	out.Camera = common(recs, func(r model.SensitivityRecord) string { return r.Camera })

	w := make([]float64, len(recs))
	net := make([]model.Estimate, len(recs))
	sens := make([]model.Estimate, len(recs))
	ms := make([]float64, len(recs))
	msSpread := make([]float64, len(recs))
	for i, r := range recs {
		w[i] = 1
		out.NumDet += r.NumDet
		out.Merged += max(r.Merged, 1)
		net[i], sens[i] = r.NETArray, r.Sensitivity
		ms[i], msSpread[i] = r.MappingSpeed.Mean, r.MappingSpeed.Spread
	}
	out.NETArray = inverseVariance(net, w)
	out.Sensitivity = inverseVariance(sens, w)
	out.MappingSpeed = model.Estimate{Mean: floats.Sum(ms), Spread: floats.Sum(msSpread)}
	return out
}
