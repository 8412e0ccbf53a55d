package core

import "math"

// Physical constants, SI units.
const (
	Planck    = 6.6261e-34   // J s
	Boltzmann = 1.3806e-23   // J/K
	LightC    = 299792458.0  // m/s
	TCMB      = 2.725        // K
	Mu0       = 1.256637e-6  // H/m
	Epsilon0  = 8.854188e-12 // F/m
)

// Z0 is the impedance of free space in ohms.
var Z0 = math.Sqrt(Mu0 / Epsilon0)

// BandEdges returns the lower and upper frequency of a band.
func BandEdges(center, fbw float64) (lo, hi float64) {
	return center * (1 - fbw/2), center * (1 + fbw/2)
}

// Lambda returns the free-space wavelength in metres.
func Lambda(freq float64) float64 { return LightC / freq }

// Occupancy is the Bose-Einstein photon occupation number. It is zero for
// non-positive temperatures.
func Occupancy(freq, temp float64) float64 {
	if temp <= 0 {
		return 0
	}
	return 1 / math.Expm1(Planck*freq/(Boltzmann*temp))
}

// AOmega is the diffraction-limited throughput for nModes modes.
func AOmega(freq, nModes float64) float64 {
	l := Lambda(freq)
	return nModes * l * l
}

// SpecRadiance is the blackbody spectral radiance scaled by emissivity,
// in W/(m^2 sr Hz).
func SpecRadiance(emiss, freq, temp float64) float64 {
	return emiss * 2 * Planck * freq * freq * freq / (LightC * LightC) * Occupancy(freq, temp)
}

// PowerSpectrum is the single-polarization power spectral density
// delivered to a diffraction-limited detector, in W/Hz.
func PowerSpectrum(emiss, freq, temp, nModes float64) float64 {
	return 0.5 * AOmega(freq, nModes) * SpecRadiance(emiss, freq, temp)
}

// AnisotropyPowerSpectrum is dP/dT per unit bandwidth at temperature temp,
// in W/(K Hz).
func AnisotropyPowerSpectrum(emiss, freq, temp float64) float64 {
	if temp <= 0 {
		return 0
	}
	x := Planck * freq / (Boltzmann * temp)
	n := Occupancy(freq, temp)
	return (Planck * Planck / Boltzmann) * emiss * n * n * freq * freq / (temp * temp) * math.Exp(x)
}

// BrightnessTemperature inverts the Planck law: it returns the temperature
// of an ideal blackbody with the given spectral radiance at freq.
func BrightnessTemperature(radiance, freq float64) float64 {
	if radiance <= 0 {
		return 0
	}
	return Planck * freq / (Boltzmann * math.Log1p(2*Planck*freq*freq*freq/(radiance*LightC*LightC)))
}

// SpillEfficiency is the fraction of a Gaussian beam launched from a pixel
// of diameter pixSize (beam waist pixSize/waistFactor) that passes a stop
// seen at F-number fnum.
func SpillEfficiency(freq, pixSize, fnum, waistFactor float64) float64 {
	x := pixSize / (waistFactor * fnum * Lambda(freq))
	return 1 - math.Exp(-math.Pi*math.Pi/2*x*x)
}

// EdgeTaper is the aperture edge taper in dB for a given spill efficiency.
func EdgeTaper(spillEff float64) float64 {
	return 10 * math.Log10(1-spillEff)
}

// RuzeEfficiency is the reflection efficiency of a surface with rms
// roughness sigma.
func RuzeEfficiency(freq, sigma float64) float64 {
	x := 4 * math.Pi * sigma / Lambda(freq)
	return math.Exp(-x * x)
}

// OhmicEfficiency is the reflection efficiency of a metal of conductivity
// sigma in S/m.
func OhmicEfficiency(freq, sigma float64) float64 {
	return 1 - 4*math.Sqrt(math.Pi*freq*Mu0/sigma)/Z0
}

// DielectricLoss is the absorption of a slab with the given thickness,
// refractive index and loss tangent.
func DielectricLoss(freq, thick, index, lossTan float64) float64 {
	return 1 - math.Exp(-2*math.Pi*index*lossTan*thick/Lambda(freq))
}

// InvVar combines independent noise figures in inverse quadrature:
// 1/sqrt(sum 1/x_i^2). Zero or non-finite inputs are skipped.
func InvVar(xs ...float64) float64 {
	var sum float64
	for _, x := range xs {
		if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		sum += 1 / (x * x)
	}
	if sum == 0 {
		return math.Inf(1)
	}
	return 1 / math.Sqrt(sum)
}

// Clamp01 restricts x to [0, 1]; NaN maps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
