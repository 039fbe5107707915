package green_cosigner

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOk    = "ok"
	outcomeError = "error"
)

type metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMetrics registers the rpc metrics on the given registerer. A nil
// registerer disables them.
func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	if registerer == nil {
		return nil, nil
	}

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "green",
		Subsystem: "cosigner",
		Name:      "rpc_calls_total",
		Help:      "Number of calls to the remote cosigner by procedure and outcome.",
	}, []string{"procedure", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "green",
		Subsystem: "cosigner",
		Name:      "rpc_call_duration_seconds",
		Help:      "Latency of calls to the remote cosigner by procedure.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})

	var err error
	if calls, err = registerOrReuse(registerer, calls); err != nil {
		return nil, err
	}
	if duration, err = registerOrReuse(registerer, duration); err != nil {
		return nil, err
	}
	return &metrics{calls, duration}, nil
}

func (m *metrics) observe(procedure string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOk
	if err != nil {
		outcome = outcomeError
	}
	m.calls.WithLabelValues(procedure, outcome).Inc()
	m.duration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
}

func registerOrReuse[T prometheus.Collector](
	registerer prometheus.Registerer, collector T,
) (T, error) {
	if err := registerer.Register(collector); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}
