package model

import "fmt"

// Parameter is a nominal value plus a 1-sigma spread. Scalars hold a single
// entry; per-band parameters hold one entry per band ID (1-based).
//
// A Parameter with NotApplicable set carries no numbers at all and every
// lookup on it yields NA.
type Parameter struct {
	Mean          []float64
	Spread        []float64
	NotApplicable bool
}

// Scalar builds a scalar parameter with the given spread.
func Scalar(mean, spread float64) Parameter {
	return Parameter{Mean: []float64{mean}, Spread: []float64{spread}}
}

// Fixed builds a scalar parameter with zero spread.
func Fixed(mean float64) Parameter { return Scalar(mean, 0) }

// PerBand builds a per-band parameter. spread may be nil for zero spread.
func PerBand(mean, spread []float64) Parameter {
	if spread == nil {
		spread = make([]float64, len(mean))
	}
	return Parameter{Mean: mean, Spread: spread}
}

// NotApplicableParam is the "NA" parameter.
func NotApplicableParam() Parameter { return Parameter{NotApplicable: true} }

// IsNA reports whether the parameter is not applicable. An empty parameter
// (no Mean entries) is treated the same way.
func (p Parameter) IsNA() bool { return p.NotApplicable || len(p.Mean) == 0 }

// Validate checks the structural invariants: matching lengths and
// non-negative spreads.
func (p Parameter) Validate() error {
	if p.IsNA() {
		return nil
	}
	if len(p.Spread) != len(p.Mean) {
		return fmt.Errorf("parameter has %d means but %d spreads", len(p.Mean), len(p.Spread))
	}
	for i, s := range p.Spread {
		if s < 0 {
			return fmt.Errorf("parameter spread[%d] = %g is negative", i, s)
		}
	}
	return nil
}

// Fetch returns the mean and spread for the given band ID. Scalars ignore the
// band ID. ok is false for NA parameters or out-of-range band IDs.
func (p Parameter) Fetch(bandID int) (mean, spread float64, ok bool) {
	if p.IsNA() {
		return 0, 0, false
	}
	if len(p.Mean) == 1 {
		return p.Mean[0], spreadAt(p.Spread, 0), true
	}
	i := bandID - 1
	if i < 0 || i >= len(p.Mean) {
		return 0, 0, false
	}
	return p.Mean[i], spreadAt(p.Spread, i), true
}

// Nominal returns the mean for the band, or NA.
func (p Parameter) Nominal(bandID int) Value {
	m, _, ok := p.Fetch(bandID)
	if !ok {
		return NA
	}
	return Some(m)
}

// Scale multiplies means and spreads by factor (unit conversion).
func (p Parameter) Scale(factor float64) Parameter {
	if p.IsNA() {
		return p
	}
	out := Parameter{Mean: make([]float64, len(p.Mean)), Spread: make([]float64, len(p.Spread))}
	for i := range p.Mean {
		out.Mean[i] = p.Mean[i] * factor
	}
	for i := range p.Spread {
		out.Spread[i] = p.Spread[i] * factor
	}
	if factor < 0 {
		for i := range out.Spread {
			out.Spread[i] = -out.Spread[i]
		}
	}
	return out
}

func (p Parameter) String() string {
	if p.IsNA() {
		return "NA"
	}
	if len(p.Mean) == 1 {
		return fmt.Sprintf("%g +/- %g", p.Mean[0], spreadAt(p.Spread, 0))
	}
	return fmt.Sprintf("%v +/- %v", p.Mean, p.Spread)
}

func spreadAt(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}
