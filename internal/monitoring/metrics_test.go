package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.JobFinished("complete")
	m.JobFinished("complete")
	m.JobFinished("failed")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("failed")))

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))

	m.AgentCall("company", nil)
	m.AgentCall("company", assert.AnError)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentCalls.WithLabelValues("company", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentCalls.WithLabelValues("company", "error")))
}

func TestObservePipeline(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePipeline("prospect", 3*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PipelineDuration))
}

func TestNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	m.JobFinished("complete")
	m.CacheLookup(true)
	m.AgentCall("company", nil)
	m.ObservePipeline("prospect", time.Second)
}
