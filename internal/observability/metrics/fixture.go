// Package metrics exposes Prometheus metrics for the database fixture.
package metrics

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dbfixture"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// FixtureMetrics records fixture lifecycle metrics. A nil *FixtureMetrics is
// valid and records nothing.
type FixtureMetrics struct {
	startDuration  prometheus.Histogram
	starts         *prometheus.CounterVec
	readinessPolls prometheus.Counter
	readinessWait  prometheus.Histogram
	seeds          *prometheus.CounterVec
	resets         *prometheus.CounterVec
	docsDeleted    prometheus.Counter
	stops          prometheus.Counter
	live           prometheus.Gauge
}

// NewFixtureMetrics creates the fixture metrics and registers them with reg.
func NewFixtureMetrics(reg prometheus.Registerer) (*FixtureMetrics, error) {
	m := &FixtureMetrics{
		startDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "container_start_duration_seconds",
			Help:      "Time from container request until the mapped port is known.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_starts_total",
			Help:      "Container start attempts by result.",
		}, []string{"result"}),
		readinessPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_polls_total",
			Help:      "Connection state probes issued while waiting for readiness.",
		}),
		readinessWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for the database to report connected.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		seeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_seeds_total",
			Help:      "Auth record inserts by result.",
		}, []string{"result"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Clean-all runs by result.",
		}, []string{"result"}),
		docsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_deleted_total",
			Help:      "Documents removed by clean-all runs.",
		}),
		stops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_stops_total",
			Help:      "Containers torn down.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "container_live",
			Help:      "1 while a fixture container is live.",
		}),
	}

	collectors := []prometheus.Collector{
		m.startDuration, m.starts, m.readinessPolls, m.readinessWait,
		m.seeds, m.resets, m.docsDeleted, m.stops, m.live,
	}
	var (
		merr       *multierror.Error
		registered []prometheus.Collector
	)
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		registered = append(registered, c)
	}
	if err := merr.ErrorOrNil(); err != nil {
		// Leave reg as it was so a later attempt can register cleanly.
		for _, c := range registered {
			reg.Unregister(c)
		}
		return nil, err
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveStart records a container start attempt.
func (m *FixtureMetrics) ObserveStart(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.starts.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.startDuration.Observe(d.Seconds())
		m.live.Set(1)
	}
}

// IncReadinessPoll counts one connection state probe.
func (m *FixtureMetrics) IncReadinessPoll() {
	if m == nil {
		return
	}
	m.readinessPolls.Inc()
}

// ObserveReadinessWait records how long AwaitReady took to succeed.
func (m *FixtureMetrics) ObserveReadinessWait(d time.Duration) {
	if m == nil {
		return
	}
	m.readinessWait.Observe(d.Seconds())
}

// ObserveSeed records an auth seed attempt.
func (m *FixtureMetrics) ObserveSeed(err error) {
	if m == nil {
		return
	}
	m.seeds.WithLabelValues(result(err)).Inc()
}

// ObserveReset records a clean-all run and the documents it removed.
func (m *FixtureMetrics) ObserveReset(deleted int64, err error) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(result(err)).Inc()
	if deleted > 0 {
		m.docsDeleted.Add(float64(deleted))
	}
}

// ObserveStop records a teardown of a live container.
func (m *FixtureMetrics) ObserveStop() {
	if m == nil {
		return
	}
	m.stops.Inc()
	m.live.Set(0)
}
