package cassandrapool

import "github.com/prometheus/client_golang/prometheus"

// PrometheusListener is an optional PoolListener exporting pool activity as
// five counter vectors labeled by pool_id; it exports no gauge. Grounded on reddit's thriftbp client pool wiring
// prometheus.Labels directly around pool gets/releases.
type PrometheusListener struct {
	BasePoolListener

	checkedOut *prometheus.CounterVec
	checkedIn  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	disposed   *prometheus.CounterVec
	atMax      *prometheus.CounterVec
}

// NewPrometheusListener builds and registers a PrometheusListener's vectors
// against reg. Pass prometheus.DefaultRegisterer for the global registry.
func NewPrometheusListener(reg prometheus.Registerer) (*PrometheusListener, error) {
	l := &PrometheusListener{
		checkedOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cassandrapool_checked_out_total",
			Help: "Connections checked out of the pool.",
		}, []string{"pool_id"}),
		checkedIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cassandrapool_checked_in_total",
			Help: "Connections returned to the pool.",
		}, []string{"pool_id"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cassandrapool_failures_total",
			Help: "Connection failures: failed dials and transient RPC errors seen by the retry interceptor.",
		}, []string{"pool_id"}),
		disposed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cassandrapool_disposed_total",
			Help: "Connections closed and removed from circulation.",
		}, []string{"pool_id"}),
		atMax: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cassandrapool_at_max_total",
			Help: "Checkouts that timed out and failed because the pool (including overflow) was exhausted.",
		}, []string{"pool_id"}),
	}

	for _, c := range []prometheus.Collector{l.checkedOut, l.checkedIn, l.failures, l.disposed, l.atMax} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *PrometheusListener) ConnectionCheckedOut(ev ConnectionCheckedOutEvent) {
	l.checkedOut.WithLabelValues(ev.PoolID).Inc()
}

func (l *PrometheusListener) ConnectionCheckedIn(ev ConnectionCheckedInEvent) {
	l.checkedIn.WithLabelValues(ev.PoolID).Inc()
}

func (l *PrometheusListener) ConnectionFailed(ev ConnectionFailedEvent) {
	l.failures.WithLabelValues(ev.PoolID).Inc()
}

func (l *PrometheusListener) ConnectionDisposed(ev ConnectionDisposedEvent) {
	l.disposed.WithLabelValues(ev.PoolID).Inc()
}

func (l *PrometheusListener) PoolAtMax(ev PoolAtMaxEvent) {
	l.atMax.WithLabelValues(ev.PoolID).Inc()
}
