package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureMetrics_Lifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewFixtureMetrics(reg)
	require.NoError(t, err)

	m.ObserveStart(2*time.Second, nil)
	m.ObserveStart(0, errors.New("image pull failed"))
	m.IncReadinessPoll()
	m.IncReadinessPoll()
	m.ObserveReadinessWait(600 * time.Millisecond)
	m.ObserveSeed(nil)
	m.ObserveReset(7, nil)
	m.ObserveReset(0, errors.New("delete failed"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.starts.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.starts.WithLabelValues(ResultError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.live), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.readinessPolls), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.seeds.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resets.WithLabelValues(ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resets.WithLabelValues(ResultError)), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(m.docsDeleted), 0)

	m.ObserveStop()
	assert.InDelta(t, 0, testutil.ToFloat64(m.live), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.stops), 0)

	assert.Equal(t, 1, testutil.CollectAndCount(m.startDuration))
}

func TestNewFixtureMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewFixtureMetrics(reg)
	require.NoError(t, err)

	_, err = NewFixtureMetrics(reg)
	assert.Error(t, err)
}

func TestNewFixtureMetrics_FailedRegistrationIsRolledBack(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	conflict := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "container_stops_total",
		Help:      "Conflicting collector.",
	})
	require.NoError(t, reg.Register(conflict))

	_, err := NewFixtureMetrics(reg)
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1, "only the conflicting collector should remain")
	assert.Equal(t, "dbfixture_container_stops_total", families[0].GetName())

	require.True(t, reg.Unregister(conflict))
	m, err := NewFixtureMetrics(reg)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestFixtureMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *FixtureMetrics
	assert.NotPanics(t, func() {
		m.ObserveStart(time.Second, nil)
		m.IncReadinessPoll()
		m.ObserveReadinessWait(time.Second)
		m.ObserveSeed(nil)
		m.ObserveReset(1, nil)
		m.ObserveStop()
	})
}
