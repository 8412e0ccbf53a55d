package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveTrialRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}

	collector.ObserveTrial(20*time.Millisecond, 6, nil)
	collector.ObserveTrial(5*time.Millisecond, 6, errors.New("boom"))

	if got := testutil.ToFloat64(collector.Trials.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("trials_total{result=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Trials.WithLabelValues(ResultFailed)); got != 1 {
		t.Fatalf("trials_total{result=failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ChannelsEvaluated); got != 6 {
		t.Fatalf("channels_evaluated_total = %v, want 6", got)
	}
	if count := histogramSampleCount(t, reg, "trial_duration_seconds", nil); count != 2 {
		t.Fatalf("trial_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestNewRunCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}
	second, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("second NewRunCollector: %v", err)
	}
	first.ObserveTrial(time.Millisecond, 1, nil)
	if got := testutil.ToFloat64(second.Trials.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("shared trials_total = %v, want 1", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *RunCollector
	c.ObserveTrial(time.Second, 3, nil)
	c.SetRun(10, 2)
}

func TestMetricsHandlerExposesRunGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}
	collector.SetRun(17, 3)
	collector.ObserveTrial(time.Millisecond, 2, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"trials_total",
		"trial_duration_seconds",
		"channels_evaluated_total",
		"run_trials_requested 17",
		"run_trials_excluded 3",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
