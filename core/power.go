package core

import (
	"fmt"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Contribution is the share of detector power originating in one element.
type Contribution struct {
	Name  string
	Group Group
	HWP   bool
	// Cumulative is emissivity times downstream efficiency, per frequency.
	Cumulative []float64
	Downstream []float64
	// Power is the band-integrated power this element deposits on the
	// detector, in W.
	Power float64

	cum  Curve
	temp Curve
}

// Density is the element's detector-incident power spectral density at f.
func (c Contribution) Density(f, nModes float64) float64 {
	return PowerSpectrum(c.cum.At(f), f, c.temp.At(f), nModes)
}

// PowerResult is the integrated optical load of a chain.
type PowerResult struct {
	Chain         Chain
	Contributions []Contribution
	Total         float64
	Sky           float64
	Receiver      float64
	HWP           float64
}

// IntegratePower integrates the cascaded blackbody emission of every chain
// element, attenuated by everything detector-side of it, over the band.
func IntegratePower(c Chain) (PowerResult, error) {
	res := PowerResult{Chain: c, Contributions: make([]Contribution, len(c.Elements))}
	for j, el := range c.Elements {
		down := c.DownstreamEfficiency(j)
		cum := make([]float64, len(down))
		for i := range down {
			cum[i] = el.Emissivity[i] * down[i]
		}
		cumCurve, err := c.Band.Curve(cum)
		if err != nil {
			return PowerResult{}, fmt.Errorf("power from %q: %w", el.Name, err)
		}
		tempCurve, err := c.Band.Curve(el.Temperature)
		if err != nil {
			return PowerResult{}, fmt.Errorf("power from %q: %w", el.Name, err)
		}
		con := Contribution{
			Name:       el.Name,
			Group:      el.Group,
			HWP:        model.IsHWP(el.Name),
			Cumulative: cum,
			Downstream: down,
			cum:        cumCurve,
			temp:       tempCurve,
		}
		p, err := c.Band.Integrate(func(f float64) float64 { return con.Density(f, c.NModes) })
		if err != nil {
			return PowerResult{}, fmt.Errorf("power from %q: %w", el.Name, err)
		}
		if p < 0 {
			return PowerResult{}, fmt.Errorf("power from %q is %g W: %w", el.Name, p, ErrNonPhysical)
		}
		con.Power = p
		res.Contributions[j] = con
		res.Total += p
		if el.Group == GroupSky {
			res.Sky += p
		} else {
			res.Receiver += p
		}
		if con.HWP {
			res.HWP += p
		}
	}
	return res, nil
}

// Density is the total detector-incident power spectral density at f.
func (r PowerResult) Density(f float64) float64 {
	var p float64
	for _, c := range r.Contributions {
		p += c.Density(f, r.Chain.NModes)
	}
	return p
}

// Breakdown reports each element's band-averaged optical properties, the
// power it emits and the power that reaches the detector.
func (r PowerResult) Breakdown() ([]model.ElementPower, error) {
	b := r.Chain.Band
	out := make([]model.ElementPower, len(r.Contributions))
	for j, con := range r.Contributions {
		el := r.Chain.Elements[j]
		emiss, err := b.Average(el.Emissivity)
		if err != nil {
			return nil, err
		}
		eff, err := b.Average(el.Efficiency)
		if err != nil {
			return nil, err
		}
		temp, err := b.Average(el.Temperature)
		if err != nil {
			return nil, err
		}
		cumEff, err := b.Average(con.Downstream)
		if err != nil {
			return nil, err
		}
		ec, err := b.Curve(el.Emissivity)
		if err != nil {
			return nil, err
		}
		tc, err := b.Curve(el.Temperature)
		if err != nil {
			return nil, err
		}
		emitted, err := b.Integrate(func(f float64) float64 {
			return PowerSpectrum(ec.At(f), f, tc.At(f), r.Chain.NModes)
		})
		if err != nil {
			return nil, err
		}
		out[j] = model.ElementPower{
			Name:            el.Name,
			Emissivity:      emiss,
			Efficiency:      eff,
			Temperature:     temp,
			PowerEmitted:    emitted,
			PowerAtDetector: con.Power,
			CumulativeEff:   cumEff,
		}
	}
	return out, nil
}
