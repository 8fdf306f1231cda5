// Package monitoring exposes Prometheus metrics for the prospecting
// pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	JobsTotal        *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	AgentCalls       *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Passing a fresh registry keeps tests
// independent; production uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_jobs_total",
			Help: "Prospecting jobs by terminal outcome.",
		}, []string{"outcome"}), // complete, failed
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_analysis_cache_lookups_total",
			Help: "Analysis cache lookups by result.",
		}, []string{"result"}), // hit, miss
		AgentCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_agent_calls_total",
			Help: "Model agent calls by agent name and status.",
		}, []string{"agent", "status"}), // status: ok, error
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prospector_pipeline_duration_seconds",
			Help:    "Duration of full pipeline runs.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		}, []string{"chain"}), // prospect, competitor
	}
}

// Default creates metrics registered on the global Prometheus registry.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AgentCall(agent string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AgentCalls.WithLabelValues(agent, status).Inc()
}

func (m *Metrics) ObservePipeline(chain string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(chain).Observe(d.Seconds())
}
