// Package trial evaluates one ensemble member: the whole experiment
// sampled once from a seed, observed nobs times.
package trial

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/sensitivity-calculator/core"
	"github.com/signalsfoundry/sensitivity-calculator/internal/sky"
	"github.com/signalsfoundry/sensitivity-calculator/kb"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// Options configures how trials are evaluated.
type Options struct {
	// Observations is the number of sky draws per trial.
	Observations int
	// SpecRes is the frequency grid spacing in Hz.
	SpecRes float64
	// Nominal disables parameter sampling. Observations are still drawn.
	Nominal bool
	// Elevation and PWV override every telescope's site when set.
	Elevation model.Value
	PWV       model.Value
	// Foregrounds adds dust and synchrotron to every sky.
	Foregrounds  bool
	Correlations bool
	Bunching     float64
}

// DefaultOptions evaluates one observation per trial at 1 GHz resolution.
func DefaultOptions() Options {
	return Options{Observations: 1, SpecRes: core.DefaultSpecRes}
}

// Tables selects the lookup tables each telescope reads.
type Tables struct {
	Default *kb.KnowledgeBase
	// Telescope holds per-telescope tables, used for fixed atmosphere
	// files.
	Telescope map[string]*kb.KnowledgeBase
}

// For returns the tables of the named telescope.
func (t Tables) For(name string) *kb.KnowledgeBase {
	if k, ok := t.Telescope[name]; ok {
		return k
	}
	return t.Default
}

// Environment is the read-only state shared by every trial of a run.
type Environment struct {
	Experiment model.ExperimentSpec
	opts       Options
	sites      []*sky.Site
	corr       *core.CorrelationModel
}

// NewEnvironment validates the options and builds one site per telescope.
func NewEnvironment(exp model.ExperimentSpec, tables Tables, opts Options) (*Environment, error) {
	if opts.Observations <= 0 {
		return nil, fmt.Errorf("observations per trial must be positive, got %d: %w", opts.Observations, core.ErrMalformedSpec)
	}
	if opts.SpecRes <= 0 {
		opts.SpecRes = core.DefaultSpecRes
	}
	if len(exp.Telescopes) == 0 {
		return nil, fmt.Errorf("experiment %q has no telescopes: %w", exp.Name, core.ErrMalformedSpec)
	}
	env := &Environment{Experiment: exp, opts: opts}
	for _, tel := range exp.Telescopes {
		site, err := sky.NewSite(siteConfig(tel.Sky, opts), tables.For(tel.Name))
		if err != nil {
			return nil, fmt.Errorf("telescope %q: %w", tel.Name, err)
		}
		env.sites = append(env.sites, site)
	}
	if opts.Correlations {
		src := tables.Default
		if src == nil {
			src = kb.NewKnowledgeBase()
		}
		m := src.CorrelationModel()
		env.corr = &m
	}
	return env, nil
}

func siteConfig(spec model.SkySpec, opts Options) sky.Config {
	cfg := sky.DefaultConfig()
	cfg.Atmosphere = spec.Atmosphere
	cfg.Foregrounds = opts.Foregrounds || spec.Foregrounds != nil
	cfg.Elevation = spec.Elevation.Nominal(0)
	cfg.PWV = spec.PWV.Nominal(0)
	if !opts.Elevation.IsNA() {
		cfg.Elevation = opts.Elevation
	}
	if !opts.PWV.IsNA() {
		cfg.PWV = opts.PWV
	}
	return cfg
}

// Options returns the options the environment was built with.
func (env *Environment) Options() Options { return env.opts }

// Result is the output of one trial.
type Result struct {
	Index int
	Seed  uint64
	// Records holds one record per channel in experiment order, with
	// mean and spread taken across the trial's observations.
	Records    []model.SensitivityRecord
	Breakdowns []model.PowerBreakdown
}

// Run evaluates one trial. It is a pure function of seed and the
// environment; ctx is checked between channels.
func (env *Environment) Run(ctx context.Context, index int, seed uint64) (*Result, error) {
	smp := core.NewSampler(seed)
	if env.opts.Nominal {
		smp = core.NominalSampler()
	}
	obsSrc := rand.NewPCG(seed^0x5851f42d4c957f2d, seed)

	res := &Result{Index: index, Seed: seed}
	for ti, tel := range env.Experiment.Telescopes {
		site := env.sites[ti]
		prog, err := SampleProgram(tel, smp)
		if err != nil {
			return nil, err
		}
		skyReal, err := site.Realize(smp, tel.Sky.Foregrounds)
		if err != nil {
			return nil, fmt.Errorf("telescope %q: %w", tel.Name, err)
		}
		obs := make([]sky.Observation, env.opts.Observations)
		for i := range obs {
			obs[i] = site.Observe(obsSrc)
		}
		for _, camSpec := range tel.Cameras {
			cam, err := core.SampleCamera(camSpec, smp)
			if err != nil {
				return nil, fmt.Errorf("telescope %q: %w", tel.Name, err)
			}
			for _, chSpec := range camSpec.Channels {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				ev := channelEval{
					env: env, tel: tel.Name, camSpec: camSpec, cam: cam,
					sky: skyReal, prog: prog, obs: obs,
				}
				rec, bd, err := ev.run(chSpec, smp, site.BandMode())
				if err != nil {
					return nil, fmt.Errorf("telescope %q: %w", tel.Name, err)
				}
				res.Records = append(res.Records, rec)
				res.Breakdowns = append(res.Breakdowns, bd)
			}
		}
	}
	return res, nil
}

// SampleProgram draws a telescope's observing program. The NET margin
// defaults to 1.
func SampleProgram(tel model.TelescopeSpec, s *core.Sampler) (core.Program, error) {
	wrap := func(err error) error { return fmt.Errorf("telescope %q: %w", tel.Name, err) }
	var (
		prog core.Program
		err  error
	)
	if prog.ObsTime, err = s.Require("observation time", tel.ObsTime, 0, core.Positive); err != nil {
		return core.Program{}, wrap(err)
	}
	if prog.SkyFrac, err = s.Require("sky fraction", tel.SkyFrac, 0, core.Fraction); err != nil {
		return core.Program{}, wrap(err)
	}
	if prog.ObsEff, err = s.Require("observation efficiency", tel.ObsEff, 0, core.Fraction); err != nil {
		return core.Program{}, wrap(err)
	}
	prog.NETMargin = s.Sample(tel.NETMargin, 0, core.Positive).Or(1)
	return prog, nil
}

// channelEval carries the per-camera state needed to evaluate a channel.
type channelEval struct {
	env     *Environment
	tel     string
	camSpec model.CameraSpec
	cam     core.CameraParams
	sky     *sky.Sky
	prog    core.Program
	obs     []sky.Observation
}

// observation is one evaluated (channel, observation) pair.
type observation struct {
	noise core.NoiseResult
	array core.ArrayResult
	power []model.ElementPower
	pr    core.PowerResult
}

func (ev channelEval) run(spec model.ChannelSpec, smp *core.Sampler, mode core.BandMode) (model.SensitivityRecord, model.PowerBreakdown, error) {
	ch, err := core.SampleChannel(spec, ev.cam, smp, ev.env.opts.SpecRes, cameraBandMode(mode, ev.camSpec))
	if err != nil {
		return model.SensitivityRecord{}, model.PowerBreakdown{}, err
	}
	wrap := func(err error) error { return fmt.Errorf("channel %s/%s: %w", ev.cam.Name, ch.Tag, err) }

	optics := make([]core.Element, 0, len(ev.camSpec.Optics))
	apEff := model.NA
	for _, o := range ev.camSpec.Optics {
		r, err := core.ResolveOptic(o, smp, ch.Band, ch.BandID, ch.Geom)
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		optics = append(optics, r.Element)
		if !r.ApertureEff.IsNA() {
			apEff = r.ApertureEff
		}
	}
	det := ch.Detector()

	nopts := core.NoiseOptions{
		NETMargin:    ev.prog.NETMargin,
		Bunching:     ev.env.opts.Bunching,
		Correlations: ev.env.corr,
	}
	evals := make([]observation, len(ev.obs))
	for i, o := range ev.obs {
		skyEls, err := ev.sky.Elements(o, ch.Band)
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		chain, err := core.NewChain(ch.Band, ch.NModes, skyEls, optics, det)
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		pr, err := core.IntegratePower(chain)
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		noise, err := core.ComputeNoise(ch, pr, nopts)
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		arr, err := core.Aggregate(noise.NET, ch.NumDet, ch.Yield, ev.prog)
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		power, err := pr.Breakdown()
		if err != nil {
			return model.SensitivityRecord{}, model.PowerBreakdown{}, wrap(err)
		}
		evals[i] = observation{noise: noise, array: arr, power: power, pr: pr}
	}

	rec := model.SensitivityRecord{
		Telescope:        ev.tel,
		Camera:           ev.cam.Name,
		Channel:          ch.Tag,
		Freq:             model.Exact(ch.Band.Center),
		FracBW:           model.Exact(ch.Band.FracBW),
		NumDet:           ch.NumDet,
		ApertureEff:      model.Exact(apEff.Or(0)),
		OpticalPower:     across(evals, func(o observation) float64 { return o.noise.OpticalPower }),
		NEPPhoton:        across(evals, func(o observation) float64 { return o.noise.NEPPhoton }),
		NEPPhotonCorr:    across(evals, func(o observation) float64 { return o.noise.NEPPhotonCorr }),
		NEPBolo:          across(evals, func(o observation) float64 { return o.noise.NEPBolo }),
		NEPReadout:       across(evals, func(o observation) float64 { return o.noise.NEPReadout }),
		NEPTotal:         across(evals, func(o observation) float64 { return o.noise.NEPTotal }),
		NET:              across(evals, func(o observation) float64 { return o.noise.NET }),
		NETCorr:          across(evals, func(o observation) float64 { return o.noise.NETCorr }),
		NETArray:         across(evals, func(o observation) float64 { return o.array.NETArray }),
		MappingSpeed:     across(evals, func(o observation) float64 { return o.array.MappingSpeed }),
		Sensitivity:      across(evals, func(o observation) float64 { return o.array.Sensitivity }),
		ReadoutEstimated: evals[0].noise.ReadoutEstimated,
		Merged:           1,
	}
	return rec, breakdown(ev.tel, ev.cam.Name, ch.Tag, evals), nil
}

// cameraBandMode raises mode to BandMeasured when any optic of the camera
// carries a measured transmission curve.
func cameraBandMode(mode core.BandMode, cam model.CameraSpec) core.BandMode {
	for _, o := range cam.Optics {
		if o.Band != nil {
			return core.BandMeasured
		}
	}
	return mode
}

// across is the mean and population standard deviation of a quantity over
// a trial's observations.
func across(evals []observation, fn func(observation) float64) model.Estimate {
	xs := make([]float64, len(evals))
	for i, o := range evals {
		xs[i] = fn(o)
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	return model.Estimate{Mean: mean, Spread: std}
}

// breakdown averages the element power tables over the observations.
func breakdown(tel, cam, tag string, evals []observation) model.PowerBreakdown {
	n := float64(len(evals))
	out := model.PowerBreakdown{
		Telescope: tel,
		Camera:    cam,
		Channel:   tag,
		Elements:  make([]model.ElementPower, len(evals[0].power)),
	}
	for _, o := range evals {
		out.Sky += o.pr.Sky / n
		out.Receiver += o.pr.Receiver / n
		out.HWP += o.pr.HWP / n
		for j, p := range o.power {
			e := &out.Elements[j]
			e.Name = p.Name
			e.Emissivity += p.Emissivity / n
			e.Efficiency += p.Efficiency / n
			e.Temperature += p.Temperature / n
			e.PowerEmitted += p.PowerEmitted / n
			e.PowerAtDetector += p.PowerAtDetector / n
			e.CumulativeEff += p.CumulativeEff / n
		}
	}
	return out
}
