package core

import (
	"fmt"
	"math"
	"strconv"

	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// CameraParams is one trial's realization of the camera-level parameters.
type CameraParams struct {
	Name            string
	OpticalCoupling float64
	FNumber         float64
	BathTemp        float64 // K
}

// SampleCamera draws the camera-level parameters.
func SampleCamera(spec model.CameraSpec, s *Sampler) (CameraParams, error) {
	wrap := func(err error) error { return fmt.Errorf("camera %q: %w", spec.Name, err) }
	coupling, err := s.Require("optical coupling", spec.OpticalCoupling, 0, Fraction)
	if err != nil {
		return CameraParams{}, wrap(err)
	}
	fnum, err := s.Require("F-number", spec.FNumber, 0, Positive)
	if err != nil {
		return CameraParams{}, wrap(err)
	}
	tb, err := s.Require("bath temperature", spec.BathTemp, 0, Positive)
	if err != nil {
		return CameraParams{}, wrap(err)
	}
	if fnum <= 0 || tb <= 0 {
		return CameraParams{}, wrap(fmt.Errorf("F-number %g, bath temperature %g K: %w", fnum, tb, ErrNonPhysical))
	}
	return CameraParams{Name: spec.Name, OpticalCoupling: coupling, FNumber: fnum, BathTemp: tb}, nil
}

// ChannelParams is one trial's realization of a channel: its band, focal
// plane geometry, detector count and bolometer properties.
type ChannelParams struct {
	Tag    string
	BandID int
	Band   Band
	Geom   Geometry
	NModes float64

	NumDet float64
	Yield  float64

	DetEff        float64 // includes the camera optical coupling
	Tb            float64
	Tc            float64
	CarrierIndex  float64
	Psat          model.Value
	PsatFactor    model.Value
	NEI           model.Value
	BoloR         model.Value
	ReadNoiseFrac float64

	detCurve []float64
}

const (
	// DefaultReadNoiseFrac is used when a channel leaves the read-noise
	// fraction unset.
	DefaultReadNoiseFrac = 0.1
	minWaistFactor       = 2.0
	minTcFrac            = 1.01
	tcFloorOverTb        = 0.001 // K
)

// ChannelTag returns the merge tag of a channel: its explicit tag, or the
// nominal band center in GHz.
func ChannelTag(spec model.ChannelSpec) string {
	if spec.Tag != "" {
		return spec.Tag
	}
	if v, ok := spec.BandCenter.Nominal(spec.BandID).Get(); ok {
		return strconv.FormatFloat(v/1e9, 'f', -1, 64)
	}
	return strconv.Itoa(spec.BandID)
}

// SampleChannel draws one realization of a channel of the given camera.
// mode selects how the channel band is integrated; a measured detector
// curve forces BandMeasured.
func SampleChannel(spec model.ChannelSpec, cam CameraParams, s *Sampler, specRes float64, mode BandMode) (ChannelParams, error) {
	tag := ChannelTag(spec)
	wrap := func(err error) error { return fmt.Errorf("channel %s/%s: %w", cam.Name, tag, err) }
	id := spec.BandID
	p := ChannelParams{Tag: tag, BandID: id, NModes: 1, Tb: cam.BathTemp}

	var err error
	req := func(dst *float64, name string, par model.Parameter, c Constraint) {
		if err != nil {
			return
		}
		*dst, err = s.Require(name, par, id, c)
	}

	var center, fbw, perWafer, wafers, tubes float64
	req(&center, "band center", spec.BandCenter, Positive)
	req(&fbw, "fractional bandwidth", spec.FracBW, Fraction)
	req(&p.Geom.PixelSize, "pixel size", spec.PixelSize, Positive)
	req(&p.Geom.WaistFactor, "waist factor", spec.WaistFactor, Constraint{Positive: true, Min: model.Some(minWaistFactor)})
	req(&perWafer, "detectors per wafer", spec.NumDetPerWafer, Positive)
	req(&wafers, "wafers per tube", spec.NumWaferPerOT, Positive)
	req(&tubes, "optics tubes", spec.NumOT, Positive)
	req(&p.Yield, "yield", spec.Yield, Fraction)
	req(&p.DetEff, "detector efficiency", spec.DetEff, Fraction)
	req(&p.CarrierIndex, "carrier index", spec.CarrierIndex, Positive)
	if err != nil {
		return ChannelParams{}, wrap(err)
	}
	p.Geom.FNumber = cam.FNumber
	p.DetEff *= cam.OpticalCoupling
	p.NumDet = math.Trunc(perWafer) * math.Trunc(wafers) * math.Trunc(tubes)
	if p.NumDet <= 0 {
		return ChannelParams{}, wrap(fmt.Errorf("detector count %g: %w", p.NumDet, ErrNonPhysical))
	}

	if spec.DetBand != nil {
		mode = BandMeasured
	}
	if p.Band, err = NewBand(center, fbw, specRes, mode); err != nil {
		return ChannelParams{}, wrap(err)
	}
	if spec.DetBand != nil {
		raw := s.SampleCurve(spec.DetBand)
		if p.detCurve, err = Resample(spec.DetBand.Freq, raw, p.Band.Grid); err != nil {
			return ChannelParams{}, wrap(err)
		}
	}

	if p.Tc, err = sampleTc(spec, s, id, cam.BathTemp); err != nil {
		return ChannelParams{}, wrap(err)
	}

	p.Psat = s.Sample(spec.Psat, id, Positive)
	p.PsatFactor = s.Sample(spec.PsatFactor, id, Positive)
	if p.Psat.IsNA() && p.PsatFactor.IsNA() {
		return ChannelParams{}, wrap(fmt.Errorf("one of Psat or Psat factor is required: %w", ErrMalformedSpec))
	}
	p.NEI = s.Sample(spec.NEI, id, Positive)
	p.BoloR = s.Sample(spec.BoloR, id, Positive)
	if !p.NEI.IsNA() && p.BoloR.IsNA() {
		return ChannelParams{}, wrap(fmt.Errorf("bolometer resistance is required with a SQUID NEI: %w", ErrMalformedSpec))
	}
	p.ReadNoiseFrac = s.Sample(spec.ReadNoiseFrac, id, Positive).Or(DefaultReadNoiseFrac)
	return p, nil
}

// sampleTc draws Tc, falling back to Tc fraction times Tb when Tc is NA.
func sampleTc(spec model.ChannelSpec, s *Sampler, id int, tb float64) (float64, error) {
	tc, ok := s.Sample(spec.Tc, id, Constraint{Min: model.Some(tb + tcFloorOverTb)}).Get()
	if !ok {
		frac, ok := s.Sample(spec.TcFrac, id, Constraint{Min: model.Some(minTcFrac)}).Get()
		if !ok {
			return 0, fmt.Errorf("one of Tc or Tc fraction is required: %w", ErrMalformedSpec)
		}
		tc = frac * tb
	}
	if !(tc > tb) {
		return 0, fmt.Errorf("Tc %g K must exceed Tb %g K: %w", tc, tb, ErrNonPhysical)
	}
	return tc, nil
}

// Detector returns the detector as the final chain element: a top-hat at
// DetEff between the band edges, or the measured detector curve.
func (p ChannelParams) Detector() Element {
	n := len(p.Band.Grid)
	el := Element{
		Name:        "Detector",
		Group:       GroupDetector,
		Emissivity:  make([]float64, n),
		Efficiency:  make([]float64, n),
		Temperature: constant(n, p.Tb),
	}
	for i, f := range p.Band.Grid {
		switch {
		case p.detCurve != nil:
			el.Efficiency[i] = Clamp01(p.detCurve[i])
		case p.Band.InBand(f):
			el.Efficiency[i] = p.DetEff
		}
	}
	return el
}
