package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trial outcome labels.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// RunCollector bundles Prometheus metrics for Monte-Carlo runs.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Trials            *prometheus.CounterVec
	TrialDuration     prometheus.Histogram
	ChannelsEvaluated prometheus.Counter

	TrialsRequested prometheus.Gauge
	TrialsExcluded  prometheus.Gauge
}

// NewRunCollector registers run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	trials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trials_total",
		Help: "Total number of evaluated trials, labeled by result.",
	}, []string{"result"})
	trials, err := registerCounterVec(reg, trials, "trials_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trial_duration_seconds",
		Help:    "Wall time of one trial in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "trial_duration_seconds")
	if err != nil {
		return nil, err
	}

	channels, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channels_evaluated_total",
		Help: "Total number of channel evaluations across all trials.",
	}), "channels_evaluated_total")
	if err != nil {
		return nil, err
	}

	requested, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "run_trials_requested",
		Help: "Number of trials requested by the current run.",
	}), "run_trials_requested")
	if err != nil {
		return nil, err
	}
	excluded, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "run_trials_excluded",
		Help: "Number of failed trials excluded from the current run.",
	}), "run_trials_excluded")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:          gatherer,
		Trials:            trials,
		TrialDuration:     duration,
		ChannelsEvaluated: channels,
		TrialsRequested:   requested,
		TrialsExcluded:    excluded,
	}, nil
}

// ObserveTrial records the outcome of one trial. A nil collector is a
// no-op.
func (c *RunCollector) ObserveTrial(d time.Duration, channels int, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	c.Trials.WithLabelValues(result).Inc()
	c.TrialDuration.Observe(d.Seconds())
	if err == nil {
		c.ChannelsEvaluated.Add(float64(channels))
	}
}

// SetRun sets the per-run gauges.
func (c *RunCollector) SetRun(requested, excluded int) {
	if c == nil {
		return
	}
	c.TrialsRequested.Set(float64(requested))
	c.TrialsExcluded.Set(float64(excluded))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
