package model

import "math"

// Estimate is a reported quantity with its 1-sigma uncertainty.
type Estimate struct {
	Mean   float64
	Spread float64
}

// Exact is an Estimate with zero spread.
func Exact(v float64) Estimate { return Estimate{Mean: v} }

// Valid reports whether both members are finite and the spread non-negative.
func (e Estimate) Valid() bool {
	return !math.IsNaN(e.Mean) && !math.IsInf(e.Mean, 0) &&
		!math.IsNaN(e.Spread) && !math.IsInf(e.Spread, 0) && e.Spread >= 0
}

// SensitivityRecord is the per-channel result of one trial, or of a
// combination of trials and channels. Frequencies are in Hz, powers in W,
// NEPs in W/sqrt(Hz), NETs in K*sqrt(s), sensitivity in K*arcmin and
// mapping speed in 1/(K^2 s).
type SensitivityRecord struct {
	Telescope string
	Camera    string
	Channel   string

	Freq         Estimate
	FracBW       Estimate
	NumDet       float64
	ApertureEff  Estimate
	OpticalPower Estimate

	NEPPhoton     Estimate
	NEPPhotonCorr Estimate
	NEPBolo       Estimate
	NEPReadout    Estimate
	NEPTotal      Estimate

	NET          Estimate
	NETCorr      Estimate
	NETArray     Estimate
	MappingSpeed Estimate
	Sensitivity  Estimate

	// ReadoutEstimated marks NEPReadout as the empirical fallback rather
	// than a value computed from a measured NEI.
	ReadoutEstimated bool
	// Merged counts the channels folded into this record.
	Merged int
}

// ElementPower is one row of the optical power breakdown, band-averaged
// where the underlying quantity is per-frequency.
type ElementPower struct {
	Name        string
	Emissivity  float64
	Efficiency  float64
	Temperature float64
	// PowerEmitted is the power the element would deliver with no
	// downstream loss; PowerAtDetector includes it.
	PowerEmitted    float64
	PowerAtDetector float64
	CumulativeEff   float64
}

// PowerBreakdown splits a channel's optical power by origin.
type PowerBreakdown struct {
	Telescope string
	Camera    string
	Channel   string
	Elements  []ElementPower
	Sky       float64
	Receiver  float64
	HWP       float64
}

// Total returns the summed detector-incident power.
func (b PowerBreakdown) Total() float64 { return b.Sky + b.Receiver }
