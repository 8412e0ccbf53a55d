// Package config loads experiment definitions and program settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/sensitivity-calculator/kb"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// ErrInvalidConfig wraps every loader failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Param is a parameter in the file notation. Plain scalars and flow
// sequences are both accepted.
type Param string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = Param(node.Value)
	case yaml.SequenceNode:
		vals := make([]string, len(node.Content))
		for i, c := range node.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: nested sequence in parameter: %w", c.Line, ErrInvalidConfig)
			}
			vals[i] = c.Value
		}
		*p = Param("[" + strings.Join(vals, ", ") + "]")
	default:
		return fmt.Errorf("line %d: parameter must be a scalar or a list: %w", node.Line, ErrInvalidConfig)
	}
	return nil
}

// ExperimentFile is the YAML layout of an experiment definition.
type ExperimentFile struct {
	Name       string          `yaml:"name"`
	Telescopes []TelescopeFile `yaml:"telescopes"`
}

// TelescopeFile is one telescope. Observation time is in years.
type TelescopeFile struct {
	Name          string       `yaml:"name"`
	ObsTime       Param        `yaml:"observation_time"`
	SkyFraction   Param        `yaml:"sky_fraction"`
	ObsEfficiency Param        `yaml:"observation_efficiency"`
	NETMargin     Param        `yaml:"net_margin"`
	Sky           SkyFile      `yaml:"sky"`
	Cameras       []CameraFile `yaml:"cameras"`
}

// SkyFile configures the site. Elevation is in degrees and PWV in mm.
type SkyFile struct {
	Atmosphere     *bool           `yaml:"atmosphere"`
	AtmosphereFile string          `yaml:"atmosphere_file"`
	Elevation      Param           `yaml:"elevation"`
	PWV            Param           `yaml:"pwv"`
	Foregrounds    *ForegroundFile `yaml:"foregrounds"`
}

// ForegroundFile holds foreground amplitudes; the dust scale frequency is
// in GHz.
type ForegroundFile struct {
	DustTemp  Param `yaml:"dust_temperature"`
	DustIndex Param `yaml:"dust_spec_index"`
	DustAmp   Param `yaml:"dust_amplitude"`
	DustFreq  Param `yaml:"dust_scale_frequency"`
	SyncIndex Param `yaml:"sync_spec_index"`
	SyncAmp   Param `yaml:"sync_amplitude"`
}

// CameraFile is one camera and its optical chain, sky side first.
type CameraFile struct {
	Name            string        `yaml:"name"`
	OpticalCoupling Param         `yaml:"optical_coupling"`
	FNumber         Param         `yaml:"f_number"`
	BathTemp        Param         `yaml:"bath_temp"`
	Optics          []OpticFile   `yaml:"optics"`
	Channels        []ChannelFile `yaml:"channels"`
}

// OpticFile is one element. Thickness is in mm, loss tangent in 1e-4,
// conductivity in MS/m and surface roughness in um.
type OpticFile struct {
	Element      string `yaml:"element"`
	Kind         string `yaml:"kind"`
	Temperature  Param  `yaml:"temperature"`
	Absorption   Param  `yaml:"absorption"`
	Reflection   Param  `yaml:"reflection"`
	Thickness    Param  `yaml:"thickness"`
	Index        Param  `yaml:"index"`
	LossTangent  Param  `yaml:"loss_tangent"`
	Conductivity Param  `yaml:"conductivity"`
	SurfaceRough Param  `yaml:"surface_rough"`
	Spillover    Param  `yaml:"spillover"`
	SpillTemp    Param  `yaml:"spillover_temp"`
	ScatterFrac  Param  `yaml:"scatter_frac"`
	ScatterTemp  Param  `yaml:"scatter_temp"`
	BandFile     string `yaml:"band_file"`
}

// ChannelFile is one channel. Band center is in GHz, pixel size in mm,
// Psat in pW and NEI in pA/rtHz.
type ChannelFile struct {
	Tag            string `yaml:"tag"`
	BandID         int    `yaml:"band_id"`
	PixelID        int    `yaml:"pixel_id"`
	BandCenter     Param  `yaml:"band_center"`
	FracBW         Param  `yaml:"fractional_bw"`
	PixelSize      Param  `yaml:"pixel_size"`
	WaistFactor    Param  `yaml:"waist_factor"`
	NumDetPerWafer Param  `yaml:"num_det_per_wafer"`
	NumWaferPerOT  Param  `yaml:"num_wafer_per_ot"`
	NumOT          Param  `yaml:"num_ot"`
	Yield          Param  `yaml:"yield"`
	DetEff         Param  `yaml:"det_eff"`
	Psat           Param  `yaml:"psat"`
	PsatFactor     Param  `yaml:"psat_factor"`
	CarrierIndex   Param  `yaml:"carrier_index"`
	Tc             Param  `yaml:"tc"`
	TcFrac         Param  `yaml:"tc_fraction"`
	NEI            Param  `yaml:"squid_nei"`
	BoloR          Param  `yaml:"bolo_resistance"`
	ReadNoiseFrac  Param  `yaml:"read_noise_frac"`
	BandFile       string `yaml:"band_file"`
}

// LoadExperiment reads an experiment definition. Relative band and
// atmosphere file paths resolve against the file's directory.
func LoadExperiment(path string) (model.ExperimentSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ExperimentSpec{}, fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}
	defer f.Close()
	return DecodeExperiment(f, filepath.Dir(path))
}

// DecodeExperiment parses an experiment definition from r. Unknown keys
// are rejected.
func DecodeExperiment(r io.Reader, baseDir string) (model.ExperimentSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file ExperimentFile
	if err := dec.Decode(&file); err != nil {
		return model.ExperimentSpec{}, fmt.Errorf("decode experiment: %v: %w", err, ErrInvalidConfig)
	}
	b := builder{baseDir: baseDir}
	return b.experiment(file)
}

// builder converts the file layout to model specs, remembering the first
// error.
type builder struct {
	baseDir string
	err     error
	where   string
}

func (b *builder) param(field string, p Param, unit float64) model.Parameter {
	if b.err != nil {
		return model.Parameter{}
	}
	out, err := ParseParameter(string(p), unit)
	if err != nil {
		b.err = fmt.Errorf("%s %s: %w", b.where, field, err)
	}
	return out
}

func (b *builder) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.baseDir, p)
}

func (b *builder) experiment(f ExperimentFile) (model.ExperimentSpec, error) {
	exp := model.ExperimentSpec{Name: f.Name}
	if len(f.Telescopes) == 0 {
		return exp, fmt.Errorf("experiment %q has no telescopes: %w", f.Name, ErrInvalidConfig)
	}
	for _, tf := range f.Telescopes {
		tel, err := b.telescope(tf)
		if err != nil {
			return model.ExperimentSpec{}, err
		}
		exp.Telescopes = append(exp.Telescopes, tel)
	}
	return exp, nil
}

func (b *builder) telescope(f TelescopeFile) (model.TelescopeSpec, error) {
	if f.Name == "" {
		return model.TelescopeSpec{}, fmt.Errorf("telescope without a name: %w", ErrInvalidConfig)
	}
	b.where = "telescope " + f.Name
	tel := model.TelescopeSpec{
		Name:      f.Name,
		ObsTime:   b.param("observation_time", f.ObsTime, UnitYear),
		SkyFrac:   b.param("sky_fraction", f.SkyFraction, UnitNone),
		ObsEff:    b.param("observation_efficiency", f.ObsEfficiency, UnitNone),
		NETMargin: b.param("net_margin", f.NETMargin, UnitNone),
		Sky: model.SkySpec{
			Atmosphere:     f.Sky.Atmosphere == nil || *f.Sky.Atmosphere,
			AtmosphereFile: b.path(f.Sky.AtmosphereFile),
			Elevation:      b.param("sky.elevation", f.Sky.Elevation, UnitNone),
			PWV:            b.param("sky.pwv", f.Sky.PWV, UnitNone),
		},
	}
	if fg := f.Sky.Foregrounds; fg != nil {
		tel.Sky.Foregrounds = &model.ForegroundSpec{
			DustTemp:  b.param("dust_temperature", fg.DustTemp, UnitNone),
			DustIndex: b.param("dust_spec_index", fg.DustIndex, UnitNone),
			DustAmp:   b.param("dust_amplitude", fg.DustAmp, UnitNone),
			DustFreq:  b.param("dust_scale_frequency", fg.DustFreq, UnitGHz),
			SyncIndex: b.param("sync_spec_index", fg.SyncIndex, UnitNone),
			SyncAmp:   b.param("sync_amplitude", fg.SyncAmp, UnitNone),
		}
	}
	if b.err != nil {
		return model.TelescopeSpec{}, b.err
	}
	if len(f.Cameras) == 0 {
		return model.TelescopeSpec{}, fmt.Errorf("telescope %q has no cameras: %w", f.Name, ErrInvalidConfig)
	}
	for _, cf := range f.Cameras {
		cam, err := b.camera(f.Name, cf)
		if err != nil {
			return model.TelescopeSpec{}, err
		}
		tel.Cameras = append(tel.Cameras, cam)
	}
	return tel, nil
}

func (b *builder) camera(tel string, f CameraFile) (model.CameraSpec, error) {
	b.where = fmt.Sprintf("camera %s/%s", tel, f.Name)
	cam := model.CameraSpec{
		Name:            f.Name,
		OpticalCoupling: b.param("optical_coupling", f.OpticalCoupling, UnitNone),
		FNumber:         b.param("f_number", f.FNumber, UnitNone),
		BathTemp:        b.param("bath_temp", f.BathTemp, UnitNone),
	}
	for _, of := range f.Optics {
		cam.Optics = append(cam.Optics, b.optic(of))
	}
	for _, chf := range f.Channels {
		cam.Channels = append(cam.Channels, b.channel(chf))
	}
	if b.err != nil {
		return model.CameraSpec{}, b.err
	}
	if len(cam.Channels) == 0 {
		return model.CameraSpec{}, fmt.Errorf("%s has no channels: %w", b.where, ErrInvalidConfig)
	}
	return cam, nil
}

func (b *builder) optic(f OpticFile) model.OpticSpec {
	o := model.OpticSpec{
		Name:         f.Element,
		Temperature:  b.param(f.Element+" temperature", f.Temperature, UnitNone),
		Absorption:   b.param(f.Element+" absorption", f.Absorption, UnitNone),
		Reflection:   b.param(f.Element+" reflection", f.Reflection, UnitNone),
		Thickness:    b.param(f.Element+" thickness", f.Thickness, UnitMM),
		Index:        b.param(f.Element+" index", f.Index, UnitNone),
		LossTangent:  b.param(f.Element+" loss_tangent", f.LossTangent, UnitLossTangent),
		Conductivity: b.param(f.Element+" conductivity", f.Conductivity, UnitMSPerM),
		SurfaceRough: b.param(f.Element+" surface_rough", f.SurfaceRough, UnitUM),
		Spillover:    b.param(f.Element+" spillover", f.Spillover, UnitNone),
		SpillTemp:    b.param(f.Element+" spillover_temp", f.SpillTemp, UnitNone),
		ScatterFrac:  b.param(f.Element+" scatter_frac", f.ScatterFrac, UnitNone),
		ScatterTemp:  b.param(f.Element+" scatter_temp", f.ScatterTemp, UnitNone),
	}
	if f.Element == "" && b.err == nil {
		b.err = fmt.Errorf("%s: optic without an element name: %w", b.where, ErrInvalidConfig)
	}
	if f.Kind != "" && b.err == nil {
		kind, err := parseKind(f.Kind)
		if err != nil {
			b.err = fmt.Errorf("%s %s: %w", b.where, f.Element, err)
		}
		o.Kind, o.HasKind = kind, true
	}
	o.Band = b.bandCurve(f.BandFile)
	return o
}

func (b *builder) channel(f ChannelFile) model.ChannelSpec {
	id := f.BandID
	if id == 0 {
		id = 1
	}
	return model.ChannelSpec{
		Tag:            f.Tag,
		BandID:         id,
		PixelID:        f.PixelID,
		BandCenter:     b.param("band_center", f.BandCenter, UnitGHz),
		FracBW:         b.param("fractional_bw", f.FracBW, UnitNone),
		PixelSize:      b.param("pixel_size", f.PixelSize, UnitMM),
		WaistFactor:    b.param("waist_factor", f.WaistFactor, UnitNone),
		NumDetPerWafer: b.param("num_det_per_wafer", f.NumDetPerWafer, UnitNone),
		NumWaferPerOT:  b.param("num_wafer_per_ot", f.NumWaferPerOT, UnitNone),
		NumOT:          b.param("num_ot", f.NumOT, UnitNone),
		Yield:          b.param("yield", f.Yield, UnitNone),
		DetEff:         b.param("det_eff", f.DetEff, UnitNone),
		Psat:           b.param("psat", f.Psat, UnitPW),
		PsatFactor:     b.param("psat_factor", f.PsatFactor, UnitNone),
		CarrierIndex:   b.param("carrier_index", f.CarrierIndex, UnitNone),
		Tc:             b.param("tc", f.Tc, UnitNone),
		TcFrac:         b.param("tc_fraction", f.TcFrac, UnitNone),
		NEI:            b.param("squid_nei", f.NEI, UnitPAPerRtHz),
		BoloR:          b.param("bolo_resistance", f.BoloR, UnitNone),
		ReadNoiseFrac:  b.param("read_noise_frac", f.ReadNoiseFrac, UnitNone),
		DetBand:        b.bandCurve(f.BandFile),
	}
}

// bandCurve loads a measured band: freq [GHz], efficiency and an optional
// spread column.
func (b *builder) bandCurve(path string) *model.BandCurve {
	if path == "" || b.err != nil {
		return nil
	}
	c, err := ReadBandFile(b.path(path))
	if err != nil {
		b.err = fmt.Errorf("%s: %w", b.where, err)
		return nil
	}
	return c
}

// ReadBandFile parses a measured band file.
func ReadBandFile(path string) (*model.BandCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}
	defer f.Close()
	cols, err := kb.ReadColumns(f)
	if err != nil {
		return nil, fmt.Errorf("band file %s: %v: %w", path, err, ErrInvalidConfig)
	}
	if len(cols) < 2 || len(cols[0]) < 2 {
		return nil, fmt.Errorf("band file %s needs freq and efficiency columns with 2+ rows: %w", path, ErrInvalidConfig)
	}
	c := &model.BandCurve{Freq: make([]float64, len(cols[0])), Eff: cols[1]}
	for i, ghz := range cols[0] {
		c.Freq[i] = ghz * UnitGHz
		if i > 0 && !(c.Freq[i] > c.Freq[i-1]) {
			return nil, fmt.Errorf("band file %s: frequencies not increasing at row %d: %w", path, i+1, ErrInvalidConfig)
		}
	}
	if len(cols) > 2 {
		c.Spread = cols[2]
	}
	return c, nil
}

func parseKind(s string) (model.ElementKind, error) {
	switch strings.ToLower(s) {
	case "dielectric":
		return model.KindDielectric, nil
	case "mirror":
		return model.KindMirror, nil
	case "primary":
		return model.KindPrimary, nil
	case "aperture", "stop", "lyot":
		return model.KindApertureStop, nil
	}
	return 0, fmt.Errorf("unknown element kind %q: %w", s, ErrInvalidConfig)
}
