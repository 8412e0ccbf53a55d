package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

var testGeom = Geometry{PixelSize: 5.3e-3, FNumber: 1.9, WaistFactor: 3.0}

func analyticBand(t *testing.T, center, fbw float64) Band {
	t.Helper()
	b, err := NewBand(center, fbw, 1e9, BandAnalytic)
	require.NoError(t, err)
	return b
}

func TestResolveOptic_LossesNeverExceedUnity(t *testing.T) {
	spec := model.OpticSpec{
		Name:        "Filter",
		Temperature: model.Scalar(4, 1),
		Reflection:  model.Scalar(0.8, 0.5),
		Absorption:  model.Scalar(0.7, 0.5),
		Spillover:   model.Scalar(0.5, 0.5),
		ScatterFrac: model.Scalar(0.3, 0.3),
		SpillTemp:   model.Fixed(4),
	}
	band := analyticBand(t, 150e9, 0.3)
	for seed := uint64(0); seed < 50; seed++ {
		res, err := ResolveOptic(spec, NewSampler(seed), band, 1, testGeom)
		require.NoError(t, err)
		for i, eff := range res.Element.Efficiency {
			if eff < 0 || eff > 1 {
				t.Fatalf("seed %d: efficiency[%d] = %g", seed, i, eff)
			}
			if res.Element.Emissivity[i] < 0 {
				t.Fatalf("seed %d: emissivity[%d] = %g", seed, i, res.Element.Emissivity[i])
			}
		}
	}
}

func TestResolveOptic_DielectricLoss(t *testing.T) {
	spec := model.OpticSpec{
		Name:        "Window",
		Temperature: model.Fixed(280),
		Thickness:   model.Fixed(3e-3),
		Index:       model.Fixed(1.525),
		LossTangent: model.Fixed(3e-4),
	}
	band := analyticBand(t, 93e9, 0.3)
	res, err := ResolveOptic(spec, NominalSampler(), band, 1, testGeom)
	require.NoError(t, err)
	for i, f := range band.Grid {
		want := DielectricLoss(f, 3e-3, 1.525, 3e-4)
		assert.InDelta(t, want, res.Element.Emissivity[i], 1e-15)
		assert.InDelta(t, 1-want, res.Element.Efficiency[i], 1e-15)
	}
	assert.True(t, res.ApertureEff.IsNA())
}

func TestResolveOptic_MirrorDefaults(t *testing.T) {
	spec := model.OpticSpec{
		Name:         "Secondary Mirror",
		Temperature:  model.Fixed(273),
		Conductivity: model.Fixed(36.9e6),
		SurfaceRough: model.Fixed(0),
	}
	band := analyticBand(t, 145e9, 0.25)
	res, err := ResolveOptic(spec, NominalSampler(), band, 1, testGeom)
	require.NoError(t, err)
	assert.Equal(t, model.KindMirror, res.Element.Kind)
	for i, f := range band.Grid {
		assert.InDelta(t, OhmicEfficiency(f, 36.9e6), res.Element.Efficiency[i], 1e-15)
	}
}

func TestResolveOptic_ApertureStop(t *testing.T) {
	spec := model.OpticSpec{Name: "Lyot Stop", Temperature: model.Fixed(1)}
	band := analyticBand(t, 90e9, 0.3)
	res, err := ResolveOptic(spec, NominalSampler(), band, 1, testGeom)
	require.NoError(t, err)
	require.True(t, res.Element.IsStop())
	apEff, ok := res.ApertureEff.Get()
	require.True(t, ok)
	assert.InEpsilon(t, testGeom.SpillEff(90e9), apEff, 0.05)
}

func TestResolveOptic_MeasuredCurve(t *testing.T) {
	band, err := NewBand(150e9, 0.3, 1e9, BandMeasured)
	require.NoError(t, err)
	spec := model.OpticSpec{
		Name:        "Low-pass Edge",
		Temperature: model.Fixed(1),
		Absorption:  model.Fixed(0.01),
		Band: &model.BandCurve{
			Freq: []float64{50e9, 250e9},
			Eff:  []float64{0.9, 0.9},
		},
	}
	res, err := ResolveOptic(spec, NominalSampler(), band, 1, testGeom)
	require.NoError(t, err)
	for _, eff := range res.Element.Efficiency {
		assert.InDelta(t, 0.9, eff, 1e-12)
	}
}

func TestResolveOptic_MissingDielectricField(t *testing.T) {
	spec := model.OpticSpec{Name: "Lens", Temperature: model.Fixed(4), Thickness: model.Fixed(1e-2)}
	_, err := ResolveOptic(spec, NominalSampler(), analyticBand(t, 150e9, 0.3), 1, testGeom)
	if !errors.Is(err, ErrMalformedSpec) {
		t.Errorf("err = %v, want ErrMalformedSpec", err)
	}
}

func TestPrimarySpillover_NonNegative(t *testing.T) {
	for _, f := range []float64{27e9, 39e9, 93e9, 145e9, 225e9, 280e9} {
		if v := PrimarySpillover(f, testGeom); v < 0 || v > 1 {
			t.Errorf("primary spillover at %g Hz = %g", f, v)
		}
	}
}

func TestReflectedPowerRatio(t *testing.T) {
	band := analyticBand(t, 150e9, 0.3)
	r, err := ReflectedPowerRatio(band, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)
	r, err = ReflectedPowerRatio(band, 300, 4)
	require.NoError(t, err)
	assert.Greater(t, r, 1.0)
}
