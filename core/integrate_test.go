package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBand_Grid(t *testing.T) {
	b, err := NewBand(150e9, 0.3, 1e9, BandAnalytic)
	require.NoError(t, err)
	assert.InDelta(t, 127.5e9, b.Lo, 1)
	assert.InDelta(t, 172.5e9, b.Hi, 1)
	assert.Len(t, b.Grid, 46)
	assert.Equal(t, b.Lo, b.Grid[0])
	assert.Equal(t, b.Hi, b.Grid[len(b.Grid)-1])
	assert.False(t, b.Sampled)
}

func TestNewBand_MinimumGrid(t *testing.T) {
	b, err := NewBand(30e9, 0.2, 1e9, BandTabulated)
	require.NoError(t, err)
	assert.Len(t, b.Grid, MinGridPoints)
	assert.True(t, b.Sampled)
}

func TestNewBand_MeasuredIsWider(t *testing.T) {
	b, err := NewBand(100e9, 0.2, 1e9, BandMeasured)
	require.NoError(t, err)
	assert.InDelta(t, 87e9, b.Lo, 1)
	assert.InDelta(t, 113e9, b.Hi, 1)
	assert.True(t, b.InBand(100e9))
	assert.False(t, b.InBand(88e9))
}

func TestNewBand_Rejects(t *testing.T) {
	for _, c := range []struct{ center, fbw float64 }{{0, 0.3}, {150e9, 0}, {150e9, 2}, {-1, 0.2}} {
		if _, err := NewBand(c.center, c.fbw, 1e9, BandAnalytic); !errors.Is(err, ErrMalformedSpec) {
			t.Errorf("NewBand(%g, %g) err = %v, want ErrMalformedSpec", c.center, c.fbw, err)
		}
	}
}

func TestBandIntegrate_Quadratic(t *testing.T) {
	sq := func(f float64) float64 { return f * f * 1e-18 }
	for _, mode := range []BandMode{BandAnalytic, BandTabulated} {
		b, err := NewBand(100e9, 0.2, 0.5e9, mode)
		require.NoError(t, err)
		got, err := b.Integrate(sq)
		require.NoError(t, err)
		want := (b.Hi*b.Hi*b.Hi - b.Lo*b.Lo*b.Lo) / 3 * 1e-18
		assert.InEpsilon(t, want, got, 1e-4, "mode %d", mode)
	}
}

func TestBandAverage_Constant(t *testing.T) {
	b, err := NewBand(93e9, 0.3, 1e9, BandAnalytic)
	require.NoError(t, err)
	avg, err := b.Average(constant(len(b.Grid), 0.42))
	require.NoError(t, err)
	assert.InDelta(t, 0.42, avg, 1e-12)
}

func TestBandAverage_MeasuredUsesNominalEdges(t *testing.T) {
	b, err := NewBand(150e9, 0.3, 1e9, BandMeasured)
	require.NoError(t, err)
	ys := make([]float64, len(b.Grid))
	for i, f := range b.Grid {
		if b.InBand(f) {
			ys[i] = 1
		}
	}
	avg, err := b.Average(ys)
	require.NoError(t, err)
	assert.InDelta(t, 1, avg, 1e-12)
}

func TestBandCurve_RejectsLengthMismatch(t *testing.T) {
	b, err := NewBand(93e9, 0.3, 1e9, BandTabulated)
	require.NoError(t, err)
	if _, err := b.Curve([]float64{0.1, 0.2, 0.3}); !errors.Is(err, ErrMalformedSpec) {
		t.Fatalf("Curve error = %v, want ErrMalformedSpec", err)
	}
	if _, err := b.Average([]float64{0.1, 0.2}); !errors.Is(err, ErrMalformedSpec) {
		t.Fatalf("Average error = %v, want ErrMalformedSpec", err)
	}
}

func TestBandIntegrate_MeasuredSharpEdge(t *testing.T) {
	b, err := NewBand(145e9, 0.22, 1e9, BandMeasured)
	require.NoError(t, err)
	edge, err := Resample([]float64{100e9, 150.2e9, 150.5e9, 200e9}, []float64{0.97, 0.97, 0.02, 0.02}, b.Grid)
	require.NoError(t, err)
	c, err := b.Curve(edge)
	require.NoError(t, err)
	v, err := b.Integrate(func(f float64) float64 { return PowerSpectrum(c.At(f), f, TCMB, 1) })
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
}

func TestResample_ClampsOutsideRange(t *testing.T) {
	out, err := Resample([]float64{1, 2, 3}, []float64{0, 1, 0.5}, []float64{0, 1.5, 2.5, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 0.75, 0.5}, out)
}

func TestResample_RejectsUnsorted(t *testing.T) {
	_, err := Resample([]float64{1, 3, 2}, []float64{0, 1, 0.5}, []float64{1})
	assert.ErrorIs(t, err, ErrMalformedSpec)
}
