package sky

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/sensitivity-calculator/core"
	"github.com/signalsfoundry/sensitivity-calculator/kb"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

func flatSpectrum(temp, trans float64) kb.Spectrum {
	s := kb.Spectrum{}
	for f := 10e9; f <= 400e9; f += 5e9 {
		s.Freq = append(s.Freq, f)
		s.Temp = append(s.Temp, temp)
		s.Trans = append(s.Trans, trans)
	}
	return s
}

func tabulatedBand(t *testing.T) core.Band {
	t.Helper()
	b, err := core.NewBand(150e9, 0.3, core.DefaultSpecRes, core.BandTabulated)
	require.NoError(t, err)
	return b
}

func TestNewSite_AtmosphereNeedsSpectra(t *testing.T) {
	cfg := DefaultConfig()
	_, err := NewSite(cfg, kb.NewKnowledgeBase())
	if !errors.Is(err, kb.ErrSpectrumNotFound) {
		t.Fatalf("NewSite error = %v, want ErrSpectrumNotFound", err)
	}

	cfg.Atmosphere = false
	site, err := NewSite(cfg, nil)
	require.NoError(t, err)
	if site.BandMode() != core.BandAnalytic {
		t.Fatalf("BandMode without atmosphere = %v, want analytic", site.BandMode())
	}
}

func TestObserve_OverridesTakePrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Atmosphere = false
	cfg.Elevation = model.Some(45)
	cfg.PWV = model.Some(12)
	site, err := NewSite(cfg, nil)
	require.NoError(t, err)

	src := rand.NewPCG(1, 2)
	for range 10 {
		obs := site.Observe(src)
		if obs.Elevation != 45 {
			t.Fatalf("elevation = %g, want 45", obs.Elevation)
		}
		if obs.PWV != MaxPWV {
			t.Fatalf("PWV = %g, want clamp to %g", obs.PWV, MaxPWV)
		}
	}
}

func TestObserve_DrawsFromDistributions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Atmosphere = false
	site, err := NewSite(cfg, nil)
	require.NoError(t, err)

	allowed := map[float64]bool{}
	for _, e := range cfg.Scan.Elevations {
		allowed[e] = true
	}
	src := rand.NewPCG(7, 7)
	for range 200 {
		obs := site.Observe(src)
		if !allowed[obs.Elevation] {
			t.Fatalf("elevation %g not in scan strategy", obs.Elevation)
		}
		if obs.PWV < MinPWV || obs.PWV > MaxPWV {
			t.Fatalf("PWV %g outside [%g, %g]", obs.PWV, MinPWV, MaxPWV)
		}
	}
}

func TestElements_OrderAndAtmosphere(t *testing.T) {
	tables := kb.NewKnowledgeBase()
	require.NoError(t, tables.AddSpectrum(50, 1.0, flatSpectrum(12, 0.95)))

	cfg := DefaultConfig()
	cfg.Foregrounds = true
	site, err := NewSite(cfg, tables)
	require.NoError(t, err)
	if site.BandMode() != core.BandTabulated {
		t.Fatalf("BandMode with atmosphere = %v, want tabulated", site.BandMode())
	}
	k, err := site.Realize(core.NominalSampler(), nil)
	require.NoError(t, err)

	band := tabulatedBand(t)
	els, err := k.Elements(Observation{Elevation: 50, PWV: 1.0}, band)
	require.NoError(t, err)

	var names []string
	for _, el := range els {
		names = append(names, el.Name)
		if el.Group != core.GroupSky {
			t.Fatalf("%s group = %v, want sky", el.Name, el.Group)
		}
		if len(el.Efficiency) != len(band.Grid) {
			t.Fatalf("%s has %d samples, want %d", el.Name, len(el.Efficiency), len(band.Grid))
		}
	}
	assert.Equal(t, []string{"CMB", "SYNC", "DUST", "ATM"}, names)

	atm := els[3]
	for i := range band.Grid {
		assert.InDelta(t, 0.95, atm.Efficiency[i], 1e-12)
		assert.InDelta(t, 12, atm.Temperature[i], 1e-12)
	}

	_, err = k.Elements(Observation{Elevation: 40, PWV: 1.0}, band)
	if !errors.Is(err, kb.ErrSpectrumNotFound) {
		t.Fatalf("missing spectrum error = %v, want ErrSpectrumNotFound", err)
	}
}

func TestForegrounds_DustFollowsPowerLaw(t *testing.T) {
	fg := DefaultForegrounds()
	band := tabulatedBand(t)
	dust := fg.Dust(band)
	for i, f := range band.Grid {
		want := fg.DustAmp * math.Pow(f/fg.DustFreq, fg.DustIndex)
		assert.InDelta(t, want, dust.Emissivity[i], 1e-15)
		assert.Equal(t, fg.DustTemp, dust.Temperature[i])
	}
}

func TestForegrounds_SynchrotronReproducesRadiance(t *testing.T) {
	fg := DefaultForegrounds()
	band := tabulatedBand(t)
	sync := fg.Synchrotron(band)
	for i, f := range band.Grid {
		got := core.SpecRadiance(1, f, sync.Temperature[i])
		want := fg.SyncRadiance(f)
		assert.InEpsilon(t, want, got, 1e-9)
	}
}

func TestSampleForegrounds_NAKeepsDefaults(t *testing.T) {
	spec := &model.ForegroundSpec{DustTemp: model.Fixed(25)}
	fg, err := SampleForegrounds(spec, core.NominalSampler())
	require.NoError(t, err)
	def := DefaultForegrounds()
	assert.Equal(t, 25.0, fg.DustTemp)
	assert.Equal(t, def.SyncIndex, fg.SyncIndex)
	assert.Equal(t, def.DustFreq, fg.DustFreq)
}
