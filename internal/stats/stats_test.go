package stats_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/ism433/internal/record"
	"github.com/doismellburning/ism433/internal/stats"
)

func TestCountersReportOnlyNonZeroFails(t *testing.T) {
	reg := stats.NewRegistry(prometheus.NewRegistry())
	c := reg.For("acme-sensor")
	c.Event()
	c.Fail(stats.FailMIC)
	c.Fail(stats.FailMIC)

	rec := reg.ReportAll()
	v, ok := rec.Get("stats")
	require.True(t, ok)

	fields := v.([]record.Field)
	found := false
	for _, f := range fields {
		if f.Key == "fail_mic" {
			found = true
			assert.EqualValues(t, 2, f.Value)
		}
		assert.NotEqual(t, "abort_length", f.Key, "zero-valued counters must be omitted")
	}
	assert.True(t, found, "expected a fail_mic field")
}

func TestCountersResetAfterReport(t *testing.T) {
	reg := stats.NewRegistry(prometheus.NewRegistry())
	c := reg.For("acme-sensor")
	c.Event()
	c.Fail(stats.AbortEarly)

	_ = reg.ReportAll()

	rec2 := reg.ReportAll()
	v, ok := rec2.Get("stats")
	require.True(t, ok)
	assert.NotNil(t, v)

	for _, f := range v.([]record.Field) {
		assert.NotEqual(t, "abort_early", f.Key, "failure counts must be reset after a report")
		if f.Key == "events" {
			assert.EqualValues(t, 0, f.Value, "event count must be reset after a report")
		}
	}
}
