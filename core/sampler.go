package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Constraint clamps a stochastic draw. Min and Max are applied first, then
// Positive (floor at 0), then Normalized (ceiling at 1).
type Constraint struct {
	Positive   bool
	Normalized bool
	Min        model.Value
	Max        model.Value
}

// Common constraints.
var (
	Unconstrained = Constraint{}
	Positive      = Constraint{Positive: true}
	Fraction      = Constraint{Positive: true, Normalized: true}
)

// Apply clamps v.
func (c Constraint) Apply(v float64) float64 {
	if lo, ok := c.Min.Get(); ok && v < lo {
		v = lo
	}
	if hi, ok := c.Max.Get(); ok && v > hi {
		v = hi
	}
	if c.Positive && v < 0 {
		v = 0
	}
	if c.Normalized && v > 1 {
		v = 1
	}
	return v
}

// Sampler turns Parameters into concrete values. A nominal sampler always
// returns the mean; a stochastic one draws once from a normal distribution
// per call. A Sampler is not safe for concurrent use; each trial owns one.
type Sampler struct {
	nominal bool
	src     rand.Source
}

// NominalSampler returns a sampler that never draws.
func NominalSampler() *Sampler {
	return &Sampler{nominal: true}
}

// NewSampler returns a stochastic sampler. The same seed reproduces the
// same sequence of draws.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Nominal reports whether the sampler returns means only.
func (s *Sampler) Nominal() bool { return s.nominal }

// Sample returns a value for the given band ID. NA parameters, and per-band
// parameters without an entry for bandID, yield model.NA. Deterministic
// draws (nominal mode or zero spread) return the mean without clamping.
func (s *Sampler) Sample(p model.Parameter, bandID int, c Constraint) model.Value {
	mean, spread, ok := p.Fetch(bandID)
	if !ok {
		return model.NA
	}
	if s.nominal || spread == 0 {
		return model.Some(mean)
	}
	v := distuv.Normal{Mu: mean, Sigma: spread, Src: s.src}.Rand()
	return model.Some(c.Apply(v))
}

// Require is Sample for physically critical quantities: NA is reported as
// ErrMalformedSpec naming the field.
func (s *Sampler) Require(name string, p model.Parameter, bandID int, c Constraint) (float64, error) {
	v, ok := s.Sample(p, bandID, c).Get()
	if !ok {
		return 0, fmt.Errorf("%s is required (band %d): %w", name, bandID, ErrMalformedSpec)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s = %g: %w", name, v, ErrNonPhysical)
	}
	return v, nil
}

// SampleCurve draws one realization of a measured curve: each point is
// drawn independently from its spread and clamped to [0, 1].
func (s *Sampler) SampleCurve(bc *model.BandCurve) []float64 {
	out := make([]float64, len(bc.Eff))
	for i, e := range bc.Eff {
		sd := 0.0
		if i < len(bc.Spread) {
			sd = bc.Spread[i]
		}
		if s.nominal || sd <= 0 {
			out[i] = Clamp01(e)
			continue
		}
		out[i] = Fraction.Apply(distuv.Normal{Mu: e, Sigma: sd, Src: s.src}.Rand())
	}
	return out
}

// Source exposes the random source for other distributions drawn within
// the same trial. It is nil for nominal samplers.
func (s *Sampler) Source() rand.Source { return s.src }
