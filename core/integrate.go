package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/interp"
)

const (
	// MinGridPoints is the smallest frequency grid a band is built with.
	MinGridPoints = 32
	// DefaultSpecRes is the default grid spacing in Hz.
	DefaultSpecRes = 1e9

	// measuredBandPad widens the grid of measured bands so that the
	// tails of a measured curve are integrated too.
	measuredBandPad = 0.65

	quadOrder  = 64
	quadRelTol = 1e-4
)

// BandMode selects how a band is gridded and integrated.
type BandMode int

const (
	// BandAnalytic: every element is smooth in frequency. Gauss-Legendre
	// between the band edges.
	BandAnalytic BandMode = iota
	// BandTabulated: some element comes from a lookup table (atmosphere).
	// Trapezoid on a grid spanning the band edges.
	BandTabulated
	// BandMeasured: some element has a measured transmission curve.
	// Trapezoid on a grid widened past the band edges.
	BandMeasured
)

// Band is the integration domain of one channel in one trial: the band
// edges and the grid every per-frequency array of the chain is tabulated
// on.
type Band struct {
	Center float64
	FracBW float64
	Lo     float64
	Hi     float64
	Grid   []float64
	// Sampled bands are integrated with the trapezoid rule directly on
	// Grid. Otherwise the integrand is evaluated at Gauss-Legendre nodes
	// between Lo and Hi.
	Sampled bool
}

// NewBand builds the band around center with fractional bandwidth fbw and
// grid spacing specRes.
func NewBand(center, fbw, specRes float64, mode BandMode) (Band, error) {
	if !(center > 0) || !(fbw > 0) || fbw >= 2 {
		return Band{}, fmt.Errorf("band center %g Hz, fbw %g: %w", center, fbw, ErrMalformedSpec)
	}
	if !(specRes > 0) {
		specRes = DefaultSpecRes
	}
	lo, hi := BandEdges(center, fbw)
	if mode == BandMeasured {
		lo = center * (1 - measuredBandPad*fbw)
		hi = center * (1 + measuredBandPad*fbw)
		if lo <= 0 {
			lo = center * 1e-3
		}
	}
	n := int(math.Ceil((hi-lo)/specRes)) + 1
	if n < MinGridPoints {
		n = MinGridPoints
	}
	return Band{
		Center:  center,
		FracBW:  fbw,
		Lo:      lo,
		Hi:      hi,
		Grid:    floats.Span(make([]float64, n), lo, hi),
		Sampled: mode != BandAnalytic,
	}, nil
}

// Width is the integration width in Hz.
func (b Band) Width() float64 { return b.Hi - b.Lo }

// InBand reports whether f lies between the nominal band edges.
func (b Band) InBand(f float64) bool {
	lo, hi := BandEdges(b.Center, b.FracBW)
	return f >= lo && f <= hi
}

// Integrate integrates fn over the band.
func (b Band) Integrate(fn func(f float64) float64) (float64, error) {
	if b.Sampled {
		ys := make([]float64, len(b.Grid))
		for i, f := range b.Grid {
			ys[i] = fn(f)
		}
		v := integrate.Trapezoidal(b.Grid, ys)
		if !isFinite(v) {
			return 0, fmt.Errorf("trapezoid over [%g, %g] Hz gave %g: %w", b.Lo, b.Hi, v, ErrIntegration)
		}
		return v, nil
	}
	coarse := quad.Fixed(fn, b.Lo, b.Hi, quadOrder, nil, 0)
	fine := quad.Fixed(fn, b.Lo, b.Hi, 2*quadOrder, nil, 0)
	if !isFinite(fine) || !isFinite(coarse) {
		return 0, fmt.Errorf("quadrature over [%g, %g] Hz gave %g: %w", b.Lo, b.Hi, fine, ErrIntegration)
	}
	if math.Abs(fine-coarse) > quadRelTol*math.Abs(fine) {
		return 0, fmt.Errorf("quadrature over [%g, %g] Hz did not converge (%g vs %g): %w",
			b.Lo, b.Hi, coarse, fine, ErrIntegration)
	}
	return fine, nil
}

// Average returns the band average of a grid-tabulated quantity between
// the nominal band edges. Measured bands average only the grid points
// inside the edges, not the padded tails.
func (b Band) Average(ys []float64) (float64, error) {
	if len(ys) != len(b.Grid) {
		return 0, fmt.Errorf("%d values on a %d-point grid: %w", len(ys), len(b.Grid), ErrMalformedSpec)
	}
	if !b.Sampled {
		c, err := b.Curve(ys)
		if err != nil {
			return 0, err
		}
		v, err := b.Integrate(c.At)
		if err != nil {
			return 0, err
		}
		return v / b.Width(), nil
	}
	lo, hi := BandEdges(b.Center, b.FracBW)
	var xs, in []float64
	for i, f := range b.Grid {
		if f >= lo && f <= hi {
			xs = append(xs, f)
			in = append(in, ys[i])
		}
	}
	if len(xs) < 2 {
		c, err := b.Curve(ys)
		if err != nil {
			return 0, err
		}
		return c.At(b.Center), nil
	}
	v := integrate.Trapezoidal(xs, in)
	if !isFinite(v) {
		return 0, fmt.Errorf("band average over [%g, %g] Hz gave %g: %w", lo, hi, v, ErrIntegration)
	}
	return v / (xs[len(xs)-1] - xs[0]), nil
}

// Curve wraps values tabulated on the band grid for evaluation at any
// frequency.
func (b Band) Curve(ys []float64) (Curve, error) {
	return newCurve(b.Grid, ys)
}

// Curve is a piecewise-linear per-frequency quantity. Outside its
// frequency range it holds the end values.
type Curve struct {
	pl    interp.PiecewiseLinear
	konst float64
	flat  bool
}

// newCurve fits ys over strictly increasing xs.
func newCurve(xs, ys []float64) (Curve, error) {
	if len(ys) == 0 {
		return Curve{flat: true}, nil
	}
	if len(xs) != len(ys) {
		return Curve{}, fmt.Errorf("curve has %d frequencies and %d values: %w", len(xs), len(ys), ErrMalformedSpec)
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return Curve{}, fmt.Errorf("curve frequencies not strictly increasing at index %d: %w", i, ErrMalformedSpec)
		}
	}
	if len(xs) < 2 || isConstant(ys) {
		return Curve{flat: true, konst: ys[0]}, nil
	}
	var c Curve
	if err := c.pl.Fit(xs, ys); err != nil {
		return Curve{}, fmt.Errorf("fit curve: %w", err)
	}
	return c, nil
}

// At evaluates the curve at f.
func (c Curve) At(f float64) float64 {
	if c.flat {
		return c.konst
	}
	return c.pl.Predict(f)
}

// Resample interpolates a measured curve (xs strictly increasing) onto grid.
func Resample(xs, ys, grid []float64) ([]float64, error) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return nil, fmt.Errorf("curve needs matching axes with at least 2 points (got %d, %d): %w",
			len(xs), len(ys), ErrMalformedSpec)
	}
	c, err := newCurve(xs, ys)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(grid))
	for i, f := range grid {
		out[i] = c.At(f)
	}
	return out, nil
}

func isConstant(ys []float64) bool {
	for _, y := range ys[1:] {
		if y != ys[0] {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
