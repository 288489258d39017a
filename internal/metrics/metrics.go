// Package metrics holds the prometheus collectors of the analytics service.
// Every method is safe on a nil *Metrics so components can run without it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	OwnerFailures    *prometheus.CounterVec
	DocumentsWritten *prometheus.CounterVec
	WashFlagged      *prometheus.GaugeVec
	CacheRequests    *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}
	m.JobRuns = m.newCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Finished job runs by job and terminal status.",
	}, []string{"job", "status"})
	m.JobDuration = m.newHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of job runs.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"job"})
	m.OwnerFailures = m.newCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "owner_failures_total",
		Help:      "Owners whose materialization failed, by scope and error kind.",
	}, []string{"scope", "kind"})
	m.DocumentsWritten = m.newCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_written_total",
		Help:      "Upserted analysis documents and user snapshots.",
	}, []string{"kind"})
	m.WashFlagged = m.newGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "wash_trade_flagged_users",
		Help:      "Users flagged for wash trading in the latest master run.",
	}, []string{"master_id"})
	m.CacheRequests = m.newCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Analysis cache lookups by result (hit, miss, error).",
	}, []string{"result"})
	return m
}

func (m *Metrics) newCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labels)
	m.registry.MustRegister(cv)
	return cv
}

func (m *Metrics) newGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labels)
	m.registry.MustRegister(gv)
	return gv
}

func (m *Metrics) newHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labels)
	m.registry.MustRegister(hv)
	return hv
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveJob(job, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, status).Inc()
	m.JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) OwnerFailed(scope, kind string) {
	if m == nil {
		return
	}
	m.OwnerFailures.WithLabelValues(scope, kind).Inc()
}

func (m *Metrics) DocumentWritten(kind string) {
	if m == nil {
		return
	}
	m.DocumentsWritten.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetWashFlagged(masterID string, n int) {
	if m == nil {
		return
	}
	m.WashFlagged.WithLabelValues(masterID).Set(float64(n))
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}
