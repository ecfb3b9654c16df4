package abi

import (
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/resource"
)

// Metrics holds Prometheus collectors for calls across the bridge.
// A nil *Metrics records nothing.
type Metrics struct {
	Calls     *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Errors    *prometheus.CounterVec
	Instances *prometheus.GaugeVec
}

// NewMetrics registers the collectors with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the collectors with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "savefile",
				Subsystem: "abi",
				Name:      "calls_total",
				Help:      "Total number of method calls by result status",
			},
			[]string{"interface", "method", "status"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "savefile",
				Subsystem: "abi",
				Name:      "call_duration_seconds",
				Help:      "Method call duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"interface", "method"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "savefile",
				Subsystem: "abi",
				Name:      "errors_total",
				Help:      "Total number of failed calls by error kind",
			},
			[]string{"interface", "kind"},
		),
		Instances: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "savefile",
				Subsystem: "abi",
				Name:      "instances",
				Help:      "Number of live exported instances",
			},
			[]string{"interface"},
		),
	}
}

func (m *Metrics) observeCall(iface, method string, status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(iface, method, status.String()).Inc()
	m.Latency.WithLabelValues(iface, method).Observe(d.Seconds())
}

func (m *Metrics) observeError(iface string, err error) {
	if m == nil {
		return
	}
	kind := "unknown"
	var e *errors.Error
	if stderrors.As(err, &e) {
		kind = string(e.Kind)
	}
	m.Errors.WithLabelValues(iface, kind).Inc()
}

// InstanceObserver returns a table observer that tracks live instances
// per interface.
func (m *Metrics) InstanceObserver() resource.Observer {
	return resource.ObserverFunc(func(e resource.Event) {
		switch e.Kind {
		case resource.EventCreated:
			m.Instances.WithLabelValues(e.Interface).Inc()
		case resource.EventDropped:
			m.Instances.WithLabelValues(e.Interface).Dec()
		}
	})
}
