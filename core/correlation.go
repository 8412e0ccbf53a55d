package core

import (
	"fmt"
	"math"
)

// Regime is the photon coupling regime of a detector.
type Regime int

const (
	Coherent Regime = iota
	Incoherent
)

func (r Regime) String() string {
	if r == Incoherent {
		return "incoherent"
	}
	return "coherent"
}

// RegimeFor returns Coherent for single-moded detectors and Incoherent
// otherwise.
func RegimeFor(nModes float64) Regime {
	if nModes <= 1 {
		return Coherent
	}
	return Incoherent
}

// CorrelationTable maps detector pitch, in units of F*lambda, to the
// fraction of photon bunching noise shared by neighbouring detectors.
type CorrelationTable struct {
	Pitch  []float64
	Factor []float64
	curve  Curve
}

// NewCorrelationTable validates and indexes a pitch/factor table.
func NewCorrelationTable(pitch, factor []float64) (*CorrelationTable, error) {
	if len(pitch) != len(factor) || len(pitch) < 2 {
		return nil, fmt.Errorf("correlation table needs matching columns with at least 2 rows: %w", ErrMalformedSpec)
	}
	for i := 1; i < len(pitch); i++ {
		if !(pitch[i] > pitch[i-1]) {
			return nil, fmt.Errorf("correlation table pitch not increasing at row %d: %w", i, ErrMalformedSpec)
		}
	}
	for i, f := range factor {
		if f < 0 || f > 1 || math.IsNaN(f) {
			return nil, fmt.Errorf("correlation factor %g at row %d outside [0, 1]: %w", f, i, ErrMalformedSpec)
		}
	}
	curve, err := newCurve(pitch, factor)
	if err != nil {
		return nil, fmt.Errorf("correlation table: %w", err)
	}
	return &CorrelationTable{Pitch: pitch, Factor: factor, curve: curve}, nil
}

// At returns the correlation factor for a detector pitch. Pitches outside
// the table take the end values.
func (t *CorrelationTable) At(pitch float64) float64 {
	if t == nil {
		return 0
	}
	return Clamp01(t.curve.At(pitch))
}

// CorrelationModel holds the four lookup tables of the correlated photon
// noise estimate: one per (element position, coupling regime). Sky-side
// elements, up to the aperture stop, use the Aperture tables; the stop
// itself uses the Stop tables; elements after the stop and the detector
// are taken as uncorrelated.
//
// This is a heuristic approximation, not a first-principles result.
type CorrelationModel struct {
	Aperture [2]*CorrelationTable
	Stop     [2]*CorrelationTable
}

// Pitch returns the detector spacing in F*lambda at the band center.
func Pitch(g Geometry, center float64) float64 {
	return g.PixelSize / (g.FNumber * Lambda(center))
}

// Factors returns one correlation factor per chain element.
func (m CorrelationModel) Factors(c Chain, g Geometry) []float64 {
	pitch := Pitch(g, c.Band.Center)
	reg := RegimeFor(c.NModes)
	stop := c.StopIndex()
	out := make([]float64, len(c.Elements))
	for j, el := range c.Elements {
		switch {
		case el.Group == GroupDetector:
		case stop >= 0 && j == stop:
			out[j] = m.Stop[reg].At(pitch)
		case el.Group == GroupSky || (stop >= 0 && j < stop):
			out[j] = m.Aperture[reg].At(pitch)
		}
	}
	return out
}

// DefaultCorrelationModel builds the tables from analytic beam-overlap
// profiles sampled over 0 to 5 F*lambda. The aperture tables use the Airy
// overlap (2 J1(pi x)/(pi x))^2, the stop tables a Gaussian overlap with
// the truncated pixel beam. Incoherent coupling squares the coherent
// factor.
func DefaultCorrelationModel() CorrelationModel {
	const n = 101
	pitch := make([]float64, n)
	airy := make([]float64, n)
	gauss := make([]float64, n)
	for i := range pitch {
		x := 5 * float64(i) / float64(n-1)
		pitch[i] = x
		airy[i] = airyOverlap(x)
		gauss[i] = math.Exp(-math.Pi * math.Pi * x * x / 8)
	}
	sq := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = x * x
		}
		return out
	}
	mk := func(f []float64) *CorrelationTable {
		t, err := NewCorrelationTable(pitch, f)
		if err != nil {
			panic(err)
		}
		return t
	}
	return CorrelationModel{
		Aperture: [2]*CorrelationTable{Coherent: mk(airy), Incoherent: mk(sq(airy))},
		Stop:     [2]*CorrelationTable{Coherent: mk(gauss), Incoherent: mk(sq(gauss))},
	}
}

func airyOverlap(x float64) float64 {
	if x == 0 {
		return 1
	}
	u := math.Pi * x
	a := 2 * math.J1(u) / u
	return a * a
}
