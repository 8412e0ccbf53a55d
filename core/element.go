package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Group classifies a chain element for the power breakdown.
type Group int

const (
	GroupSky Group = iota
	GroupOptic
	GroupDetector
)

// Element is one resolved link of an optical chain. The per-frequency
// slices are tabulated on the owning chain's band grid.
type Element struct {
	Name        string
	Group       Group
	Kind        model.ElementKind
	Emissivity  []float64
	Efficiency  []float64
	Temperature []float64
}

// IsStop reports whether the element is the aperture stop.
func (e Element) IsStop() bool {
	return e.Group == GroupOptic && e.Kind == model.KindApertureStop
}

// Geometry is the focal-plane geometry of a channel, needed by the
// aperture-stop and primary-spillover models.
type Geometry struct {
	PixelSize   float64 // m
	FNumber     float64
	WaistFactor float64
}

// SpillEff is the stop spill efficiency at freq.
func (g Geometry) SpillEff(freq float64) float64 {
	return SpillEfficiency(freq, g.PixelSize, g.FNumber, g.WaistFactor)
}

// Primary spillover fit for a 45 cm large-aperture receiver: row i holds
// polynomial coefficients in frequency (GHz, highest order first) of the
// i-th coefficient of a polynomial in edge taper (dB).
var primarySpillCoeffs = [3][3]float64{
	{8.99403547e-10, -5.94688018e-07, 1.89966392e-04},
	{-4.43582650e-08, 2.72620964e-05, -7.15209427e-03},
	{6.03942212e-07, -3.45691036e-04, 7.81613979e-02},
}

// PrimarySpillover returns the spillover past the primary mirror for a
// channel at center frequency freq. It is never negative.
func PrimarySpillover(freq float64, g Geometry) float64 {
	et := -EdgeTaper(g.SpillEff(freq))
	ghz := freq * 1e-9
	var outer [3]float64
	for i, row := range primarySpillCoeffs {
		outer[i] = polyval(row[:], ghz)
	}
	y := polyval(outer[:], et)
	if y < 0 || math.IsNaN(y) {
		return 0
	}
	return y
}

// polyval evaluates a polynomial with coefficients in decreasing order.
func polyval(c []float64, x float64) float64 {
	var y float64
	for _, v := range c {
		y = y*x + v
	}
	return y
}

// ReflectedPowerRatio is the band-integrated blackbody power at t1 over
// that at t2, the weight that turns a spilled or scattered fraction into
// an emissivity referred to the element temperature.
func ReflectedPowerRatio(band Band, t1, t2 float64) (float64, error) {
	if t1 == t2 {
		return 1, nil
	}
	num, err := band.Integrate(func(f float64) float64 { return PowerSpectrum(1, f, t1, 1) })
	if err != nil {
		return 0, err
	}
	den, err := band.Integrate(func(f float64) float64 { return PowerSpectrum(1, f, t2, 1) })
	if err != nil {
		return 0, err
	}
	if den <= 0 {
		return 0, fmt.Errorf("reference temperature %g K has no in-band power: %w", t2, ErrNonPhysical)
	}
	return num / den, nil
}

// OpticResult is a resolved optical element plus the band-averaged
// aperture efficiency when the element is the stop.
type OpticResult struct {
	Element     Element
	ApertureEff model.Value
}

// ResolveOptic evaluates one optic spec over the channel band. Explicit
// parameters override the computed defaults of the element kind. The
// absorbed, reflected and spilled fractions are clamped in that order so
// that they never sum past 1.
func ResolveOptic(spec model.OpticSpec, s *Sampler, band Band, bandID int, g Geometry) (OpticResult, error) {
	kind := spec.ResolvedKind()
	wrap := func(err error) error { return fmt.Errorf("optic %q: %w", spec.Name, err) }

	temp, err := s.Require("temperature", spec.Temperature, bandID, Positive)
	if err != nil {
		return OpticResult{}, wrap(err)
	}

	n := len(band.Grid)
	var measured []float64
	if spec.Band != nil {
		raw := s.SampleCurve(spec.Band)
		if measured, err = Resample(spec.Band.Freq, raw, band.Grid); err != nil {
			return OpticResult{}, wrap(err)
		}
		for i := range measured {
			measured[i] = Clamp01(measured[i])
		}
	}

	absorb, err := absorption(spec, kind, s, band, bandID, g, measured)
	if err != nil {
		return OpticResult{}, wrap(err)
	}
	refl, err := reflection(spec, kind, s, band, bandID, measured, absorb)
	if err != nil {
		return OpticResult{}, wrap(err)
	}

	spill := 0.0
	if v, ok := s.Sample(spec.Spillover, bandID, Fraction).Get(); ok {
		spill = v
	} else if kind == model.KindPrimary {
		spill = PrimarySpillover(band.Center, g)
	}
	spillTemp := s.Sample(spec.SpillTemp, bandID, Positive).Or(temp)
	scatter := s.Sample(spec.ScatterFrac, bandID, Fraction).Or(0)
	scatterTemp := s.Sample(spec.ScatterTemp, bandID, Positive).Or(temp)

	spillRatio, scatterRatio := 1.0, 1.0
	if spill > 0 {
		if spillRatio, err = ReflectedPowerRatio(band, spillTemp, temp); err != nil {
			return OpticResult{}, wrap(err)
		}
	}
	if scatter > 0 {
		if scatterRatio, err = ReflectedPowerRatio(band, scatterTemp, temp); err != nil {
			return OpticResult{}, wrap(err)
		}
	}

	el := Element{
		Name:        spec.Name,
		Group:       GroupOptic,
		Kind:        kind,
		Emissivity:  make([]float64, n),
		Efficiency:  make([]float64, n),
		Temperature: constant(n, temp),
	}
	for i := range band.Grid {
		a := Clamp01(absorb[i])
		r := math.Min(Clamp01(refl[i]), 1-a)
		sp := math.Min(Clamp01(spill), 1-a-r)
		el.Efficiency[i] = Clamp01(1 - a - r - sp)
		el.Emissivity[i] = math.Max(0, a+scatter*r*scatterRatio+sp*spillRatio)
	}

	res := OpticResult{Element: el}
	if kind == model.KindApertureStop {
		apEff, err := band.Average(el.Efficiency)
		if err != nil {
			return OpticResult{}, wrap(err)
		}
		res.ApertureEff = model.Some(apEff)
	}
	return res, nil
}

func absorption(spec model.OpticSpec, kind model.ElementKind, s *Sampler, band Band, bandID int, g Geometry, measured []float64) ([]float64, error) {
	n := len(band.Grid)
	if v, ok := s.Sample(spec.Absorption, bandID, Fraction).Get(); ok {
		return constant(n, v), nil
	}
	out := make([]float64, n)
	switch kind {
	case model.KindApertureStop:
		for i, f := range band.Grid {
			if measured != nil {
				out[i] = 1 - measured[i]
			} else {
				out[i] = 1 - g.SpillEff(f)
			}
		}
	case model.KindMirror, model.KindPrimary:
		sigma, err := s.Require("conductivity", spec.Conductivity, bandID, Positive)
		if err != nil {
			return nil, err
		}
		if sigma <= 0 {
			return nil, fmt.Errorf("conductivity %g S/m: %w", sigma, ErrNonPhysical)
		}
		for i, f := range band.Grid {
			out[i] = 1 - OhmicEfficiency(f, sigma)
		}
	default:
		thick, err := s.Require("thickness", spec.Thickness, bandID, Positive)
		if err != nil {
			return nil, err
		}
		index, err := s.Require("index", spec.Index, bandID, Positive)
		if err != nil {
			return nil, err
		}
		lossTan, err := s.Require("loss tangent", spec.LossTangent, bandID, Positive)
		if err != nil {
			return nil, err
		}
		for i, f := range band.Grid {
			out[i] = DielectricLoss(f, thick, index, lossTan)
		}
	}
	return out, nil
}

func reflection(spec model.OpticSpec, kind model.ElementKind, s *Sampler, band Band, bandID int, measured, absorb []float64) ([]float64, error) {
	n := len(band.Grid)
	if measured != nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1 - measured[i] - absorb[i]
		}
		return out, nil
	}
	if v, ok := s.Sample(spec.Reflection, bandID, Fraction).Get(); ok {
		return constant(n, v), nil
	}
	if kind != model.KindMirror && kind != model.KindPrimary {
		return make([]float64, n), nil
	}
	rough, err := s.Require("surface roughness", spec.SurfaceRough, bandID, Positive)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, f := range band.Grid {
		out[i] = 1 - RuzeEfficiency(f, rough)
	}
	return out, nil
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
