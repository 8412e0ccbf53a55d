// Package sky models what a telescope looks through: the CMB, optional
// galactic foregrounds and optional atmosphere, observed at an elevation
// and precipitable water vapour drawn per observation.
package sky

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/sensitivity-calculator/core"
	"github.com/signalsfoundry/sensitivity-calculator/kb"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Config is the static description of a site.
type Config struct {
	// Atmosphere adds the tabulated atmosphere term.
	Atmosphere bool
	// Elevation and PWV pin the observing conditions; NA draws them.
	Elevation model.Value
	PWV       model.Value
	Scan      ScanStrategy
	PWVDist   PWVDistribution
	// Foregrounds adds synchrotron and dust terms.
	Foregrounds bool
}

// DefaultConfig has the atmosphere on, foregrounds off and both
// observing conditions drawn from their default distributions.
func DefaultConfig() Config {
	return Config{
		Atmosphere: true,
		Scan:       DefaultScanStrategy(),
		PWVDist:    DefaultPWVDistribution(),
	}
}

// Site is shared read-only by every channel of a telescope.
type Site struct {
	cfg    Config
	tables *kb.KnowledgeBase
}

// NewSite validates cfg. The KB must hold an atmosphere when cfg enables
// it.
func NewSite(cfg Config, tables *kb.KnowledgeBase) (*Site, error) {
	if cfg.Elevation.IsNA() {
		if err := cfg.Scan.Validate(); err != nil {
			return nil, fmt.Errorf("sky: %w", err)
		}
	}
	if cfg.PWV.IsNA() {
		if err := cfg.PWVDist.Validate(); err != nil {
			return nil, fmt.Errorf("sky: %w", err)
		}
	}
	if cfg.Atmosphere && (tables == nil || !tables.HasAtmosphere()) {
		return nil, fmt.Errorf("sky: atmosphere enabled but no spectra loaded: %w", kb.ErrSpectrumNotFound)
	}
	return &Site{cfg: cfg, tables: tables}, nil
}

// BandMode is the integration mode channels observing this site need.
func (s *Site) BandMode() core.BandMode {
	if s.cfg.Atmosphere {
		return core.BandTabulated
	}
	return core.BandAnalytic
}

// Observation is one draw of observing conditions.
type Observation struct {
	Elevation float64 // deg
	PWV       float64 // mm
}

// Observe draws the conditions of one observation. Pinned values take
// precedence over the distributions.
func (s *Site) Observe(src rand.Source) Observation {
	obs := Observation{}
	if v, ok := s.cfg.Elevation.Get(); ok {
		obs.Elevation = v
	} else {
		obs.Elevation = s.cfg.Scan.Sample(src)
	}
	if v, ok := s.cfg.PWV.Get(); ok {
		obs.PWV = math.Min(math.Max(v, MinPWV), MaxPWV)
	} else {
		obs.PWV = s.cfg.PWVDist.Sample(src)
	}
	return obs
}

// Realize draws the per-trial foreground parameters and returns the sky
// seen by that trial.
func (s *Site) Realize(smp *core.Sampler, spec *model.ForegroundSpec) (*Sky, error) {
	k := &Sky{site: s}
	if s.cfg.Foregrounds {
		fg, err := SampleForegrounds(spec, smp)
		if err != nil {
			return nil, err
		}
		k.fg = &fg
	}
	return k, nil
}

// Sky is one trial's realization of a site.
type Sky struct {
	site *Site
	fg   *Foregrounds
}

// Site returns the static site.
func (k *Sky) Site() *Site { return k.site }

// Elements returns the sky terms of the chain, in order CMB, synchrotron,
// dust, atmosphere, tabulated on band.
func (k *Sky) Elements(obs Observation, band core.Band) ([]core.Element, error) {
	n := len(band.Grid)
	els := []core.Element{{
		Name:        "CMB",
		Group:       core.GroupSky,
		Emissivity:  fill(n, 1),
		Efficiency:  fill(n, 1),
		Temperature: fill(n, core.TCMB),
	}}
	if k.fg != nil {
		els = append(els, k.fg.Synchrotron(band), k.fg.Dust(band))
	}
	if k.site.cfg.Atmosphere {
		atm, err := k.atmosphere(obs, band)
		if err != nil {
			return nil, err
		}
		els = append(els, atm)
	}
	return els, nil
}

// atmosphere is an emissivity-1 term at the atmospheric brightness
// temperature whose efficiency is the transmission.
func (k *Sky) atmosphere(obs Observation, band core.Band) (core.Element, error) {
	spec, err := k.site.tables.Spectrum(obs.Elevation, obs.PWV)
	if err != nil {
		return core.Element{}, err
	}
	temp, err := core.Resample(spec.Freq, spec.Temp, band.Grid)
	if err != nil {
		return core.Element{}, err
	}
	trans, err := core.Resample(spec.Freq, spec.Trans, band.Grid)
	if err != nil {
		return core.Element{}, err
	}
	for i := range trans {
		trans[i] = core.Clamp01(trans[i])
		temp[i] = math.Max(temp[i], 0)
	}
	return core.Element{
		Name:        "ATM",
		Group:       core.GroupSky,
		Emissivity:  fill(len(band.Grid), 1),
		Efficiency:  trans,
		Temperature: temp,
	}, nil
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
