package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// DefaultBunching is the photon bunching factor for uncorrelated
// detectors.
const DefaultBunching = 1.0

// PhotonNEP integrates 2hfP + 2*bf*P^2 over the band, where P is the total
// detector-incident power spectral density. W/sqrt(Hz).
func PhotonNEP(pr PowerResult, bunching float64) (float64, error) {
	v, err := pr.Chain.Band.Integrate(func(f float64) float64 {
		p := pr.Density(f)
		return 2*Planck*f*p + 2*bunching*p*p
	})
	if err != nil {
		return 0, fmt.Errorf("photon NEP: %w", err)
	}
	return math.Sqrt(math.Max(v, 0)), nil
}

// CorrelatedPhotonNEP is PhotonNEP with the bunching term raised by the
// pairwise correlated share sum_ij c_i c_j P_i P_j, with one factor c per
// chain element. The double sum is evaluated as (sum_i c_i P_i)^2.
func CorrelatedPhotonNEP(pr PowerResult, bunching float64, factors []float64) (float64, error) {
	if len(factors) != len(pr.Contributions) {
		return 0, fmt.Errorf("got %d correlation factors for %d elements: %w",
			len(factors), len(pr.Contributions), ErrMalformedSpec)
	}
	nModes := pr.Chain.NModes
	v, err := pr.Chain.Band.Integrate(func(f float64) float64 {
		var p, pc float64
		for j, c := range pr.Contributions {
			d := c.Density(f, nModes)
			p += d
			pc += factors[j] * d
		}
		return 2*Planck*f*p + 2*bunching*(p*p+pc*pc)
	})
	if err != nil {
		return 0, fmt.Errorf("correlated photon NEP: %w", err)
	}
	return math.Sqrt(math.Max(v, 0)), nil
}

// PhotonNEPApprox is the single-frequency estimate sqrt(2(h f P + P^2/df))
// for power pOpt in a band of width bandwidth centered on freq. It
// overestimates the integrated value by a few percent.
func PhotonNEPApprox(pOpt, freq, bandwidth float64) float64 {
	return math.Sqrt(2 * (Planck*freq*pOpt + pOpt*pOpt/bandwidth))
}

// BolometerNEP is the thermal-carrier (phonon) noise of a bolometer with
// saturation power psat, carrier index n, critical temperature tc and bath
// temperature tb.
func BolometerNEP(psat, n, tc, tb float64) float64 {
	r := tc / tb
	g := (n + 1) * (n + 1) / (2*n + 3)
	f := (math.Pow(r, 2*n+3) - 1) / math.Pow(math.Pow(r, n+1)-1, 2)
	return math.Sqrt(4 * Boltzmann * psat * tb * g * f)
}

// SaturationPower returns psat when given, else psatFactor times the
// optical power popt.
func SaturationPower(psat, psatFactor model.Value, popt float64) (float64, error) {
	if v, ok := psat.Get(); ok {
		return v, nil
	}
	f, ok := psatFactor.Get()
	if !ok {
		return 0, fmt.Errorf("neither Psat nor Psat factor set: %w", ErrMalformedSpec)
	}
	return f * popt, nil
}

// ReadoutNEP is the readout noise for electrical bias power pelec, bolometer
// resistance boloR and SQUID NEI in A/sqrt(Hz).
func ReadoutNEP(pelec, boloR, nei float64) float64 {
	return math.Sqrt(boloR*pelec) * nei
}

// ReadoutFallbackFactor maps a read-noise fraction r, the fractional rise
// of the total noise due to readout, onto the readout NEP as a fraction of
// the photon-plus-bolometer NEP: sqrt((1+r)^2 - 1). r = 0.1 gives
// sqrt(0.21).
func ReadoutFallbackFactor(r float64) float64 {
	return math.Sqrt((1+r)*(1+r) - 1)
}

// DPdT is the band-integrated response of detector power to a CMB
// temperature change through the whole optical path, in W/K.
func DPdT(c Chain) (float64, error) {
	eff, err := c.Band.Curve(c.SkyEfficiency())
	if err != nil {
		return 0, fmt.Errorf("dP/dT: %w", err)
	}
	v, err := c.Band.Integrate(func(f float64) float64 {
		return AnisotropyPowerSpectrum(eff.At(f), f, TCMB)
	})
	if err != nil {
		return 0, fmt.Errorf("dP/dT: %w", err)
	}
	return v, nil
}

// NETFromNEP converts NEP to NET (K*sqrt(s)) for response dpdt, scaled by
// the experiment NET margin.
func NETFromNEP(nep, dpdt, margin float64) float64 {
	return nep / (math.Sqrt2 * dpdt) * margin
}

// NoiseOptions configures the noise budget of a channel.
type NoiseOptions struct {
	NETMargin float64
	Bunching  float64
	// Correlations enables the correlated photon estimate when non-nil.
	Correlations *CorrelationModel
}

// NoiseResult is the noise budget of one channel observation.
type NoiseResult struct {
	OpticalPower float64
	Psat         float64
	DPdT         float64

	NEPPhoton     float64
	NEPPhotonCorr float64
	NEPBolo       float64
	NEPReadout    float64
	NEPTotal      float64
	NEPTotalCorr  float64

	NET     float64
	NETCorr float64

	ReadoutEstimated bool
}

// ComputeNoise composes photon, bolometer and readout noise for a channel
// whose chain power has been integrated, and converts the total to NET.
// Without correlations the correlated fields equal the uncorrelated ones.
func ComputeNoise(ch ChannelParams, pr PowerResult, opts NoiseOptions) (NoiseResult, error) {
	bunching := opts.Bunching
	if bunching == 0 {
		bunching = DefaultBunching
	}
	margin := opts.NETMargin
	if margin == 0 {
		margin = 1
	}
	res := NoiseResult{OpticalPower: pr.Total}
	if !(pr.Total >= 0) {
		return NoiseResult{}, fmt.Errorf("optical power %g W: %w", pr.Total, ErrNonPhysical)
	}

	var err error
	if res.NEPPhoton, err = PhotonNEP(pr, bunching); err != nil {
		return NoiseResult{}, err
	}
	res.NEPPhotonCorr = res.NEPPhoton
	if opts.Correlations != nil {
		factors := opts.Correlations.Factors(pr.Chain, ch.Geom)
		if res.NEPPhotonCorr, err = CorrelatedPhotonNEP(pr, bunching, factors); err != nil {
			return NoiseResult{}, err
		}
	}

	if res.Psat, err = SaturationPower(ch.Psat, ch.PsatFactor, pr.Total); err != nil {
		return NoiseResult{}, err
	}
	if !(ch.Tc > ch.Tb) || ch.Tb <= 0 {
		return NoiseResult{}, fmt.Errorf("Tc %g K, Tb %g K: %w", ch.Tc, ch.Tb, ErrNonPhysical)
	}
	res.NEPBolo = BolometerNEP(res.Psat, ch.CarrierIndex, ch.Tc, ch.Tb)

	readout := func(ph float64) float64 {
		if nei, ok := ch.NEI.Get(); ok {
			pelec := math.Max(res.Psat-pr.Total, 0)
			return ReadoutNEP(pelec, ch.BoloR.Must(), nei)
		}
		return ReadoutFallbackFactor(ch.ReadNoiseFrac) * math.Sqrt(ph*ph+res.NEPBolo*res.NEPBolo)
	}
	res.ReadoutEstimated = ch.NEI.IsNA()
	res.NEPReadout = readout(res.NEPPhoton)
	res.NEPTotal = quadSum(res.NEPPhoton, res.NEPBolo, res.NEPReadout)
	res.NEPTotalCorr = quadSum(res.NEPPhotonCorr, res.NEPBolo, readout(res.NEPPhotonCorr))

	if res.DPdT, err = DPdT(pr.Chain); err != nil {
		return NoiseResult{}, err
	}
	if !(res.DPdT > 0) {
		return NoiseResult{}, fmt.Errorf("dP/dT %g W/K: %w", res.DPdT, ErrNonPhysical)
	}
	res.NET = NETFromNEP(res.NEPTotal, res.DPdT, margin)
	res.NETCorr = NETFromNEP(res.NEPTotalCorr, res.DPdT, margin)
	if !isFinite(res.NET) || !isFinite(res.NETCorr) {
		return NoiseResult{}, fmt.Errorf("NET %g: %w", res.NET, ErrNonPhysical)
	}
	return res, nil
}

func quadSum(xs ...float64) float64 {
	var s float64
	for _, x := range xs {
		s += x * x
	}
	return math.Sqrt(s)
}
