package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

func flatElement(name string, group Group, n int, emiss, eff, temp float64) Element {
	return Element{
		Name:        name,
		Group:       group,
		Emissivity:  constant(n, emiss),
		Efficiency:  constant(n, eff),
		Temperature: constant(n, temp),
	}
}

// cmbChain is a single CMB sky term seen by a lossless detector.
func cmbChain(t *testing.T) Chain {
	t.Helper()
	band := analyticBand(t, 150e9, 0.3)
	n := len(band.Grid)
	c, err := NewChain(band, 1,
		[]Element{flatElement("CMB", GroupSky, n, 1, 1, TCMB)},
		nil,
		flatElement("Detector", GroupDetector, n, 0, 1, 0.1))
	require.NoError(t, err)
	return c
}

func TestPhotonNEP_CMBOnlyMatchesDirectIntegral(t *testing.T) {
	pr, err := IntegratePower(cmbChain(t))
	require.NoError(t, err)
	got, err := PhotonNEP(pr, 1)
	require.NoError(t, err)

	const h, k = 6.6261e-34, 1.3806e-23
	lo, hi := 127.5e9, 172.5e9
	const steps = 20000
	df := (hi - lo) / steps
	var sum float64
	for i := 0; i < steps; i++ {
		f := lo + (float64(i)+0.5)*df
		p := h * f / (math.Exp(h*f/(k*2.725)) - 1)
		sum += (2*h*f*p + 2*p*p) * df
	}
	assert.InEpsilon(t, math.Sqrt(sum), got, 0.01)
	assert.Equal(t, pr.Total, pr.Sky)
	assert.Zero(t, pr.Receiver)
}

func TestIntegratePower_DownstreamLoss(t *testing.T) {
	band := analyticBand(t, 93e9, 0.3)
	n := len(band.Grid)
	c, err := NewChain(band, 1,
		[]Element{flatElement("CMB", GroupSky, n, 1, 1, TCMB)},
		[]Element{flatElement("HWP", GroupOptic, n, 0.02, 0.5, 280)},
		flatElement("Detector", GroupDetector, n, 0, 0.8, 0.1))
	require.NoError(t, err)
	pr, err := IntegratePower(c)
	require.NoError(t, err)

	cmb, err := band.Integrate(func(f float64) float64 { return PowerSpectrum(0.4, f, TCMB, 1) })
	require.NoError(t, err)
	hwp, err := band.Integrate(func(f float64) float64 { return PowerSpectrum(0.02*0.8, f, 280, 1) })
	require.NoError(t, err)

	assert.InEpsilon(t, cmb, pr.Sky, 1e-9)
	assert.InEpsilon(t, hwp, pr.HWP, 1e-9)
	assert.InEpsilon(t, pr.Sky+pr.Receiver, pr.Total, 1e-12)
	assert.InDelta(t, 0.4, c.SkyEfficiency()[0], 1e-15)

	rows, err := pr.Breakdown()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.InDelta(t, 0.8, rows[1].CumulativeEff, 1e-12)
	assert.Greater(t, rows[1].PowerEmitted, rows[1].PowerAtDetector)
}

func TestNewChain_RejectsMisalignedElement(t *testing.T) {
	band := analyticBand(t, 93e9, 0.3)
	_, err := NewChain(band, 1, nil, []Element{flatElement("Bad", GroupOptic, 3, 0, 1, 4)},
		flatElement("Detector", GroupDetector, len(band.Grid), 0, 1, 0.1))
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestSaturationPower_FromFactor(t *testing.T) {
	psat, err := SaturationPower(model.NA, model.Some(2.5), 4e-12)
	require.NoError(t, err)
	assert.InDelta(t, 10e-12, psat, 1e-24)

	psat, err = SaturationPower(model.Some(7e-12), model.Some(2.5), 4e-12)
	require.NoError(t, err)
	assert.Equal(t, 7e-12, psat)

	_, err = SaturationPower(model.NA, model.NA, 4e-12)
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestBolometerNEP_Reference(t *testing.T) {
	got := BolometerNEP(2.5*4e-12, 3, 0.400, 0.280)
	assert.InEpsilon(t, 2.5546525151925872e-17, got, 1e-9)
}

func TestNETFromNEP_Monotonic(t *testing.T) {
	const dpdt = 2e-17
	prev := 0.0
	for nep := 1e-18; nep < 1e-15; nep *= 1.7 {
		net := NETFromNEP(nep, dpdt, 1.1)
		if net <= prev {
			t.Fatalf("NET %g at NEP %g not above previous %g", net, nep, prev)
		}
		prev = net
	}
}

func TestReadoutFallbackFactor(t *testing.T) {
	assert.InDelta(t, math.Sqrt(0.21), ReadoutFallbackFactor(0.1), 1e-15)
	assert.Zero(t, ReadoutFallbackFactor(0))
}

func testChannel(band Band) ChannelParams {
	return ChannelParams{
		Tag:           "150",
		BandID:        1,
		Band:          band,
		Geom:          testGeom,
		NModes:        1,
		NumDet:        1000,
		Yield:         0.8,
		DetEff:        1,
		Tb:            0.280,
		Tc:            0.400,
		CarrierIndex:  3,
		Psat:          model.NA,
		PsatFactor:    model.Some(2.5),
		NEI:           model.NA,
		BoloR:         model.NA,
		ReadNoiseFrac: 0.1,
	}
}

func TestComputeNoise_EstimatedReadout(t *testing.T) {
	c := cmbChain(t)
	pr, err := IntegratePower(c)
	require.NoError(t, err)
	res, err := ComputeNoise(testChannel(c.Band), pr, NoiseOptions{NETMargin: 1})
	require.NoError(t, err)

	assert.True(t, res.ReadoutEstimated)
	assert.InEpsilon(t, 2.5*pr.Total, res.Psat, 1e-12)
	assert.InEpsilon(t, math.Sqrt(0.21)*math.Hypot(res.NEPPhoton, res.NEPBolo), res.NEPReadout, 1e-12)
	assert.InEpsilon(t, math.Sqrt(res.NEPPhoton*res.NEPPhoton+res.NEPBolo*res.NEPBolo+res.NEPReadout*res.NEPReadout), res.NEPTotal, 1e-12)
	assert.InEpsilon(t, res.NEPTotal/(math.Sqrt2*res.DPdT), res.NET, 1e-12)
	assert.Equal(t, res.NET, res.NETCorr)
}

func TestComputeNoise_MeasuredReadout(t *testing.T) {
	c := cmbChain(t)
	pr, err := IntegratePower(c)
	require.NoError(t, err)
	ch := testChannel(c.Band)
	ch.Psat = model.Some(10e-12)
	ch.NEI = model.Some(45e-12)
	ch.BoloR = model.Some(7e-3)
	res, err := ComputeNoise(ch, pr, NoiseOptions{NETMargin: 1})
	require.NoError(t, err)

	assert.False(t, res.ReadoutEstimated)
	assert.InEpsilon(t, math.Sqrt(7e-3*(10e-12-pr.Total))*45e-12, res.NEPReadout, 1e-12)
}

func TestComputeNoise_NETGrowsWithBolometerNoise(t *testing.T) {
	c := cmbChain(t)
	pr, err := IntegratePower(c)
	require.NoError(t, err)
	ch := testChannel(c.Band)
	ch.Psat = model.Some(5e-12)
	low, err := ComputeNoise(ch, pr, NoiseOptions{})
	require.NoError(t, err)
	ch.Psat = model.Some(20e-12)
	high, err := ComputeNoise(ch, pr, NoiseOptions{})
	require.NoError(t, err)
	assert.Greater(t, high.NEPBolo, low.NEPBolo)
	assert.Greater(t, high.NET, low.NET)
}

func TestComputeNoise_RejectsTcBelowTb(t *testing.T) {
	c := cmbChain(t)
	pr, err := IntegratePower(c)
	require.NoError(t, err)
	ch := testChannel(c.Band)
	ch.Tc = 0.2
	_, err = ComputeNoise(ch, pr, NoiseOptions{})
	if !errors.Is(err, ErrNonPhysical) {
		t.Errorf("err = %v, want ErrNonPhysical", err)
	}
}

func TestCorrelatedPhotonNEP(t *testing.T) {
	pr, err := IntegratePower(cmbChain(t))
	require.NoError(t, err)
	plain, err := PhotonNEP(pr, 1)
	require.NoError(t, err)

	zero, err := CorrelatedPhotonNEP(pr, 1, []float64{0, 0})
	require.NoError(t, err)
	assert.InEpsilon(t, plain, zero, 1e-12)

	full, err := CorrelatedPhotonNEP(pr, 1, []float64{1, 0})
	require.NoError(t, err)
	assert.Greater(t, full, plain)

	_, err = CorrelatedPhotonNEP(pr, 1, []float64{1})
	assert.ErrorIs(t, err, ErrMalformedSpec)
}

func TestPhotonNEPApprox_CloseToIntegral(t *testing.T) {
	pr, err := IntegratePower(cmbChain(t))
	require.NoError(t, err)
	exact, err := PhotonNEP(pr, 1)
	require.NoError(t, err)
	approx := PhotonNEPApprox(pr.Total, 150e9, 0.3*150e9)
	assert.InEpsilon(t, exact, approx, 0.15)
}
