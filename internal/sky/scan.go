package sky

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ScanStrategy is a discrete distribution of observing elevations.
type ScanStrategy struct {
	Elevations []float64 // deg
	Weights    []float64
}

// DefaultScanStrategy is the elevation mix of a large-aperture survey.
func DefaultScanStrategy() ScanStrategy {
	return ScanStrategy{
		Elevations: []float64{30.00, 35.21, 45.52, 47.74, 49.97, 50.00, 52.19, 54.41, 55.00, 56.63, 58.86, 60.00, 61.08, 63.30, 65.52},
		Weights:    []float64{10.02, 10.02, 0.82, 0.82, 0.82, 31.99, 0.82, 0.82, 19.85, 0.82, 0.82, 19.87, 0.82, 0.82, 0.82},
	}
}

// Validate checks that the strategy can be sampled.
func (s ScanStrategy) Validate() error {
	if len(s.Elevations) == 0 || len(s.Elevations) != len(s.Weights) {
		return fmt.Errorf("scan strategy needs matching elevations and weights (got %d, %d)", len(s.Elevations), len(s.Weights))
	}
	var sum float64
	for i, w := range s.Weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("scan strategy weight %d is %g", i, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("scan strategy weights sum to zero")
	}
	return nil
}

// Sample draws one elevation.
func (s ScanStrategy) Sample(src rand.Source) float64 {
	i := int(distuv.NewCategorical(s.Weights, src).Rand())
	return s.Elevations[i]
}

// PWV bounds in mm.
const (
	MinPWV    = 0.0
	MaxPWV    = 8.0
	MedianPWV = 0.934
)

// PWVDistribution draws precipitable water vapour. A tabulated
// distribution (Values, Weights) takes precedence; otherwise PWV is
// log-normal with the given median and log-space Sigma.
type PWVDistribution struct {
	Values  []float64
	Weights []float64
	Median  float64
	Sigma   float64
}

// DefaultPWVDistribution approximates a high dry site.
func DefaultPWVDistribution() PWVDistribution {
	return PWVDistribution{Median: MedianPWV, Sigma: 0.6}
}

// Validate checks that the distribution can be sampled.
func (d PWVDistribution) Validate() error {
	if len(d.Values) > 0 {
		if len(d.Values) != len(d.Weights) {
			return fmt.Errorf("PWV table has %d values and %d weights", len(d.Values), len(d.Weights))
		}
		return nil
	}
	if !(d.Median > 0) || d.Sigma < 0 {
		return fmt.Errorf("PWV median %g, sigma %g", d.Median, d.Sigma)
	}
	return nil
}

// Sample draws one PWV value, clamped to [MinPWV, MaxPWV].
func (d PWVDistribution) Sample(src rand.Source) float64 {
	var v float64
	if len(d.Values) > 0 {
		v = d.Values[int(distuv.NewCategorical(d.Weights, src).Rand())]
	} else if d.Sigma == 0 {
		v = d.Median
	} else {
		v = distuv.LogNormal{Mu: math.Log(d.Median), Sigma: d.Sigma, Src: src}.Rand()
	}
	return math.Min(math.Max(v, MinPWV), MaxPWV)
}
