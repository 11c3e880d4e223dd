// Package metrics provides Prometheus metrics for the command bus and
// the fulfillment saga manager.
//
// Basic usage:
//
//	m := metrics.New(metrics.WithServiceName("orderflow"))
//	m.MustRegister()
//	bus.Use(m.CommandMiddleware())
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	orderflow "github.com/orderflow-io/orderflow"
	"github.com/orderflow-io/orderflow/fulfillment"
)

// Metric labels.
const (
	LabelService     = "service"
	LabelCommandType = "command_type"
	LabelStatus      = "status"
	LabelErrorType   = "error_type"
	LabelSagaState   = "saga_state"
	LabelAction      = "action"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	namespace   string
	serviceName string

	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	commandsInFlight *prometheus.GaugeVec

	sagasByState       *prometheus.GaugeVec
	compensationsTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

var _ orderflow.MetricsCollector = (*Metrics)(nil)

// Option configures Metrics.
type Option func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithServiceName sets the service name label.
func WithServiceName(name string) Option {
	return func(m *Metrics) {
		m.serviceName = name
	}
}

// New creates a Metrics instance with default settings.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		namespace:   "orderflow",
		serviceName: "unknown",
	}
	for _, opt := range opts {
		opt(m)
	}

	m.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "commands_total",
			Help:      "Total number of commands processed.",
		},
		[]string{LabelService, LabelCommandType, LabelStatus},
	)

	m.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of command processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelCommandType},
	)

	m.commandsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "commands_in_flight",
			Help:      "Number of commands currently being processed.",
		},
		[]string{LabelService, LabelCommandType},
	)

	m.sagasByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "sagas_by_state",
			Help:      "Number of fulfillment sagas in each state.",
		},
		[]string{LabelService, LabelSagaState},
	)

	m.compensationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "compensations_total",
			Help:      "Total number of compensation actions executed.",
		},
		[]string{LabelService, LabelAction, LabelStatus},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by type.",
		},
		[]string{LabelService, LabelErrorType},
	)

	return m
}

// Collectors returns all Prometheus collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal,
		m.commandDuration,
		m.commandsInFlight,
		m.sagasByState,
		m.compensationsTotal,
		m.errorsTotal,
	}
}

// MustRegister registers all collectors with the default registry.
// Panics if registration fails.
func (m *Metrics) MustRegister() {
	prometheus.MustRegister(m.Collectors()...)
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordCommand implements orderflow.MetricsCollector.
func (m *Metrics) RecordCommand(cmdType string, duration time.Duration, success bool, err error) {
	m.commandDuration.WithLabelValues(m.serviceName, cmdType).Observe(duration.Seconds())

	status := StatusSuccess
	if !success {
		status = StatusError
		m.recordError(err)
	}
	m.commandsTotal.WithLabelValues(m.serviceName, cmdType, status).Inc()
}

// RecordCompensation records one executed compensation action.
func (m *Metrics) RecordCompensation(action fulfillment.CompensationAction, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
	}
	m.compensationsTotal.WithLabelValues(m.serviceName, string(action), status).Inc()
}

// ObserveSagaStats updates the per-state saga gauges from a stats snapshot.
// States absent from the snapshot are reset to zero.
func (m *Metrics) ObserveSagaStats(stats fulfillment.Stats) {
	m.sagasByState.Reset()
	for state, count := range stats.ByState {
		m.sagasByState.WithLabelValues(m.serviceName, string(state)).Set(float64(count))
	}
}

// CommandMiddleware returns middleware that records command metrics,
// including an in-flight gauge the plain collector hook cannot track.
func (m *Metrics) CommandMiddleware() orderflow.Middleware {
	return func(next orderflow.MiddlewareFunc) orderflow.MiddlewareFunc {
		return func(ctx context.Context, cmd orderflow.Command) (orderflow.CommandResult, error) {
			cmdType := cmd.CommandType()

			m.commandsInFlight.WithLabelValues(m.serviceName, cmdType).Inc()
			defer m.commandsInFlight.WithLabelValues(m.serviceName, cmdType).Dec()

			start := time.Now()
			result, err := next(ctx, cmd)
			duration := time.Since(start)

			recordErr := err
			if recordErr == nil && result.Error != nil {
				recordErr = result.Error
			}
			m.RecordCommand(cmdType, duration, err == nil && result.IsSuccess(), recordErr)

			return result, err
		}
	}
}

func (m *Metrics) recordError(err error) {
	if err == nil {
		return
	}

	errorType := "unknown"
	switch {
	case errors.Is(err, orderflow.ErrConcurrencyConflict):
		errorType = "concurrency_conflict"
	case errors.Is(err, orderflow.ErrStreamNotFound):
		errorType = "stream_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		errorType = "timeout"
	case errors.Is(err, context.Canceled):
		errorType = "cancelled"
	default:
		var validationErr *orderflow.ValidationError
		var multiErr *orderflow.MultiValidationError
		if errors.As(err, &validationErr) || errors.As(err, &multiErr) {
			errorType = "validation"
		}
	}

	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}
