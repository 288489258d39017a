package metrics

import (
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveJob("combined", "succeeded", time.Second)
	m.OwnerFailed("master", "upstream")
	m.DocumentWritten("analysis_document")
	m.SetWashFlagged("m1", 2)
	m.CacheResult("hit")
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
	if m.Handler() == nil {
		t.Fatalf("expected default handler")
	}
}

func TestCounters(t *testing.T) {
	m := New("ta")
	m.ObserveJob("combined", "partial", 2*time.Second)
	m.ObserveJob("combined", "partial", time.Second)
	m.OwnerFailed("admin", "persistence")
	m.SetWashFlagged("m1", 3)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				values[mf.GetName()] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	cases := map[string]float64{
		"ta_job_runs_total":           2,
		"ta_job_duration_seconds":     2,
		"ta_owner_failures_total":     1,
		"ta_wash_trade_flagged_users": 3,
	}
	for name, want := range cases {
		if got := values[name]; got != want {
			t.Fatalf("%s=%v want=%v", name, got, want)
		}
	}
}
