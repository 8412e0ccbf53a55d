package core

import (
	"fmt"
)

// Chain is the ordered optical path of one channel for one observation:
// sky terms first, then the optics from sky side to detector side, then
// the detector. Every element is tabulated on Band.Grid.
type Chain struct {
	Band     Band
	NModes   float64
	Elements []Element
}

// NewChain assembles a chain in the fixed order sky, optics, detector.
func NewChain(band Band, nModes float64, sky, optics []Element, detector Element) (Chain, error) {
	els := make([]Element, 0, len(sky)+len(optics)+1)
	els = append(els, sky...)
	els = append(els, optics...)
	els = append(els, detector)
	n := len(band.Grid)
	for _, e := range els {
		if len(e.Emissivity) != n || len(e.Efficiency) != n || len(e.Temperature) != n {
			return Chain{}, fmt.Errorf("element %q is not tabulated on the %d-point band grid: %w", e.Name, n, ErrMalformedSpec)
		}
	}
	if !(nModes > 0) {
		nModes = 1
	}
	return Chain{Band: band, NModes: nModes, Elements: els}, nil
}

// DownstreamEfficiency is the per-frequency product of the efficiencies of
// every element strictly detector-side of element j. The empty product is
// 1.
func (c Chain) DownstreamEfficiency(j int) []float64 {
	out := constant(len(c.Band.Grid), 1)
	for k := j + 1; k < len(c.Elements); k++ {
		for i, e := range c.Elements[k].Efficiency {
			out[i] *= e
		}
	}
	return out
}

// SkyEfficiency is the end-to-end efficiency of the whole path, the
// product of every element's efficiency.
func (c Chain) SkyEfficiency() []float64 {
	return c.DownstreamEfficiency(-1)
}

// StopIndex returns the index of the first aperture-stop element, or -1.
func (c Chain) StopIndex() int {
	for i, e := range c.Elements {
		if e.IsStop() {
			return i
		}
	}
	return -1
}
