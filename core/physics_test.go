package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccupancy_ZeroTemperature(t *testing.T) {
	if got := Occupancy(150e9, 0); got != 0 {
		t.Errorf("Occupancy at 0 K = %g, want 0", got)
	}
}

func TestBrightnessTemperature_InvertsPlanck(t *testing.T) {
	for _, temp := range []float64{2.725, 19.7, 300} {
		for _, f := range []float64{30e9, 150e9, 850e9} {
			rad := SpecRadiance(1, f, temp)
			assert.InEpsilon(t, temp, BrightnessTemperature(rad, f), 1e-9, "T=%g f=%g", temp, f)
		}
	}
}

func TestPowerSpectrum_MatchesPhotonEnergyTimesOccupancy(t *testing.T) {
	f, temp := 90e9, 10.0
	want := Planck * f * Occupancy(f, temp)
	assert.InEpsilon(t, want, PowerSpectrum(1, f, temp, 1), 1e-12)
}

func TestAnisotropyPowerSpectrum_IsTemperatureDerivative(t *testing.T) {
	f, temp, dT := 150e9, TCMB, 1e-5
	num := (PowerSpectrum(1, f, temp+dT, 1) - PowerSpectrum(1, f, temp-dT, 1)) / (2 * dT)
	assert.InEpsilon(t, num, AnisotropyPowerSpectrum(1, f, temp), 1e-6)
}

func TestEfficiencies_WithinUnitInterval(t *testing.T) {
	for _, f := range []float64{27e9, 93e9, 145e9, 280e9} {
		checks := map[string]float64{
			"ruze":       RuzeEfficiency(f, 30e-6),
			"ohmic":      OhmicEfficiency(f, 36.9e6),
			"spill":      SpillEfficiency(f, 5.3e-3, 2.0, 3.0),
			"dielectric": DielectricLoss(f, 5e-3, 3.1, 3e-4),
		}
		for name, v := range checks {
			if v < 0 || v > 1 {
				t.Errorf("%s at %g Hz = %g, outside [0, 1]", name, f, v)
			}
		}
	}
}

func TestInvVar(t *testing.T) {
	assert.InDelta(t, 1/math.Sqrt2, InvVar(1, 1), 1e-15)
	assert.InDelta(t, InvVar(3, 4, 5), InvVar(5, 3, 4), 1e-15)
	assert.InDelta(t, InvVar(InvVar(3, 4), 5), InvVar(3, InvVar(4, 5)), 1e-15)
	if !math.IsInf(InvVar(), 1) {
		t.Errorf("InvVar of nothing should be +Inf")
	}
}

func TestEdgeTaper_Decibels(t *testing.T) {
	assert.InDelta(t, -10, EdgeTaper(0.9), 1e-12)
}
