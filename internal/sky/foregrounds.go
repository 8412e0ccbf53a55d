package sky

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/sensitivity-calculator/core"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Foregrounds holds one trial's polarized galactic foreground parameters.
type Foregrounds struct {
	DustTemp  float64 // K
	DustIndex float64
	DustAmp   float64
	DustFreq  float64 // Hz
	SyncIndex float64
	SyncAmp   float64
}

// DefaultForegrounds are Planck-derived dust and synchrotron parameters.
func DefaultForegrounds() Foregrounds {
	return Foregrounds{
		DustTemp:  19.7,
		DustIndex: 1.5,
		DustAmp:   2e-3,
		DustFreq:  353e9,
		SyncIndex: -3.0,
		SyncAmp:   6e3,
	}
}

// SampleForegrounds draws the foreground parameters; fields left NA, or a
// nil spec, keep the defaults.
func SampleForegrounds(spec *model.ForegroundSpec, s *core.Sampler) (Foregrounds, error) {
	fg := DefaultForegrounds()
	if spec == nil {
		return fg, nil
	}
	fg.DustTemp = s.Sample(spec.DustTemp, 0, core.Positive).Or(fg.DustTemp)
	fg.DustIndex = s.Sample(spec.DustIndex, 0, core.Unconstrained).Or(fg.DustIndex)
	fg.DustAmp = s.Sample(spec.DustAmp, 0, core.Positive).Or(fg.DustAmp)
	fg.DustFreq = s.Sample(spec.DustFreq, 0, core.Positive).Or(fg.DustFreq)
	fg.SyncIndex = s.Sample(spec.SyncIndex, 0, core.Unconstrained).Or(fg.SyncIndex)
	fg.SyncAmp = s.Sample(spec.SyncAmp, 0, core.Positive).Or(fg.SyncAmp)
	if fg.DustTemp <= 0 || fg.DustFreq <= 0 {
		return Foregrounds{}, fmt.Errorf("dust temperature %g K, scale frequency %g Hz: %w", fg.DustTemp, fg.DustFreq, core.ErrNonPhysical)
	}
	return fg, nil
}

// Dust is a modified blackbody: emissivity A (f/f0)^beta at the dust
// temperature.
func (fg Foregrounds) Dust(band core.Band) core.Element {
	n := len(band.Grid)
	el := core.Element{
		Name:        "DUST",
		Group:       core.GroupSky,
		Emissivity:  make([]float64, n),
		Efficiency:  fill(n, 1),
		Temperature: fill(n, fg.DustTemp),
	}
	for i, f := range band.Grid {
		el.Emissivity[i] = fg.DustAmp * math.Pow(f/fg.DustFreq, fg.DustIndex)
	}
	return el
}

// SyncRadiance is the synchrotron spectral radiance A f^beta, in
// W/(m^2 sr Hz) with f in Hz.
func (fg Foregrounds) SyncRadiance(f float64) float64 {
	return fg.SyncAmp * math.Pow(f, fg.SyncIndex)
}

// Synchrotron is an emissivity-1 term at the brightness temperature that
// reproduces the synchrotron radiance.
func (fg Foregrounds) Synchrotron(band core.Band) core.Element {
	n := len(band.Grid)
	el := core.Element{
		Name:        "SYNC",
		Group:       core.GroupSky,
		Emissivity:  fill(n, 1),
		Efficiency:  fill(n, 1),
		Temperature: make([]float64, n),
	}
	for i, f := range band.Grid {
		el.Temperature[i] = core.BrightnessTemperature(fg.SyncRadiance(f), f)
	}
	return el
}
