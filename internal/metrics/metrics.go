// Package metrics provides Prometheus metrics collection and reporting for the socket gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// unknownValue is used when a metric label value is not available.
	unknownValue = "unknown"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// bufferedBytesBuckets covers 64 B up to 4 MiB of queued outbound data.
var bufferedBytesBuckets = prometheus.ExponentialBuckets(64, 4, 10)

// Registry holds all Prometheus metrics.
type Registry struct {
	registry *prometheus.Registry

	// Connection metrics
	ConnectionsTotal    prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	ConnectionsRejected prometheus.Counter

	// Message metrics
	MessagesTotal    *prometheus.CounterVec
	BytesTotal       *prometheus.CounterVec
	DecodeErrors     prometheus.Counter
	DispatchDuration *prometheus.HistogramVec
	RegistryFailures *prometheus.CounterVec
	PeersBound       prometheus.Counter
	PeerDisconnects  prometheus.Counter

	// Backpressure metrics
	SendsDropped  prometheus.Counter
	BufferedBytes prometheus.Histogram

	// Lifecycle metrics
	BindFailures prometheus.Counter

	// Error metrics
	ErrorsTotal       *prometheus.CounterVec
	ErrorsByType      *prometheus.CounterVec
	ErrorsBySeverity  *prometheus.CounterVec
	ErrorsByComponent *prometheus.CounterVec
}

type connectionMetricsSet struct {
	total    prometheus.Counter
	active   prometheus.Gauge
	rejected prometheus.Counter
}

func createConnectionMetrics(factory promauto.Factory) connectionMetricsSet {
	return connectionMetricsSet{
		total: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_connections_total",
			Help: "Total number of accepted connections",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "socket_gateway_connections_active",
			Help: "Number of currently open connections",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_connections_rejected_total",
			Help: "Total number of upgrades refused by the connection limit",
		}),
	}
}

type messageMetricsSet struct {
	messages    *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	decode      prometheus.Counter
	dispatch    *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	bound       prometheus.Counter
	disconnects prometheus.Counter
}

func createMessageMetrics(factory promauto.Factory) messageMetricsSet {
	return messageMetricsSet{
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_messages_total",
			Help: "Total messages by direction and outcome",
		}, []string{"direction", "result"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_bytes_total",
			Help: "Total payload bytes transferred",
		}, []string{"direction"}),
		decode: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_decode_errors_total",
			Help: "Total inbound payloads that failed to decode",
		}),
		dispatch: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socket_gateway_dispatch_duration_seconds",
			Help:    "Registry message processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_registry_failures_total",
			Help: "Total registry failures by kind",
		}, []string{"kind"}),
		bound: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_peers_bound_total",
			Help: "Total peer identities created",
		}),
		disconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_peer_disconnects_total",
			Help: "Total disconnect notifications delivered to the registry",
		}),
	}
}

type errorMetricsSet struct {
	total       *prometheus.CounterVec
	byType      *prometheus.CounterVec
	bySeverity  *prometheus.CounterVec
	byComponent *prometheus.CounterVec
}

func createErrorMetrics(factory promauto.Factory) errorMetricsSet {
	return errorMetricsSet{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_errors_total",
			Help: "Total number of errors by code and component",
		}, []string{"code", "component", "operation"}),
		byType: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_errors_by_type_total",
			Help: "Total number of errors by error type",
		}, []string{"type"}),
		bySeverity: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_errors_by_severity_total",
			Help: "Total number of errors by severity level",
		}, []string{"severity"}),
		byComponent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_gateway_errors_by_component_total",
			Help: "Total number of errors by component",
		}, []string{"component"}),
	}
}

// InitializeMetricsRegistry creates and configures a metrics collection registry.
// Each call uses its own prometheus.Registry so several gateways can coexist in one process.
func InitializeMetricsRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	conn := createConnectionMetrics(factory)
	msg := createMessageMetrics(factory)
	errs := createErrorMetrics(factory)

	return &Registry{
		registry:            reg,
		ConnectionsTotal:    conn.total,
		ConnectionsActive:   conn.active,
		ConnectionsRejected: conn.rejected,
		MessagesTotal:       msg.messages,
		BytesTotal:          msg.bytes,
		DecodeErrors:        msg.decode,
		DispatchDuration:    msg.dispatch,
		RegistryFailures:    msg.failures,
		PeersBound:          msg.bound,
		PeerDisconnects:     msg.disconnects,
		SendsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_sends_dropped_total",
			Help: "Total outbound messages dropped because of backpressure",
		}),
		BufferedBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "socket_gateway_buffered_bytes",
			Help:    "Outbound bytes still queued when a connection drained",
			Buckets: bufferedBytesBuckets,
		}),
		BindFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "socket_gateway_bind_failures_total",
			Help: "Total failures to bind the listen address",
		}),
		ErrorsTotal:       errs.total,
		ErrorsByType:      errs.byType,
		ErrorsBySeverity:  errs.bySeverity,
		ErrorsByComponent: errs.byComponent,
	}
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// IncrementConnections records an opened connection.
func (r *Registry) IncrementConnections() {
	r.ConnectionsTotal.Inc()
	r.ConnectionsActive.Inc()
}

// DecrementConnections records a closed connection.
func (r *Registry) DecrementConnections() {
	r.ConnectionsActive.Dec()
}

// IncrementConnectionsRejected increments rejected connections.
func (r *Registry) IncrementConnectionsRejected() {
	r.ConnectionsRejected.Inc()
}

// IncrementMessages increments the message counter.
func (r *Registry) IncrementMessages(direction, result string) {
	r.MessagesTotal.WithLabelValues(direction, result).Inc()
}

// AddBytes adds to the payload bytes counter.
func (r *Registry) AddBytes(direction string, bytes int) {
	r.BytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// IncrementDecodeErrors counts a payload that failed to decode.
func (r *Registry) IncrementDecodeErrors() {
	r.DecodeErrors.Inc()
}

// RecordDispatchDuration records registry processing time.
func (r *Registry) RecordDispatchDuration(result string, duration time.Duration) {
	r.DispatchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// IncrementRegistryFailures counts a registry failure by kind.
func (r *Registry) IncrementRegistryFailures(kind string) {
	if kind == "" {
		kind = unknownValue
	}

	r.RegistryFailures.WithLabelValues(kind).Inc()
}

// IncrementPeersBound counts a created peer identity.
func (r *Registry) IncrementPeersBound() {
	r.PeersBound.Inc()
}

// IncrementPeerDisconnects counts a disconnect notification.
func (r *Registry) IncrementPeerDisconnects() {
	r.PeerDisconnects.Inc()
}

// IncrementSendsDropped counts an outbound message dropped for backpressure.
func (r *Registry) IncrementSendsDropped() {
	r.SendsDropped.Inc()
}

// ObserveBufferedBytes records the buffered outbound amount seen on drain.
func (r *Registry) ObserveBufferedBytes(bytes int) {
	r.BufferedBytes.Observe(float64(bytes))
}

// IncrementBindFailures counts a failed bind.
func (r *Registry) IncrementBindFailures() {
	r.BindFailures.Inc()
}

// IncrementErrors increments error count with detailed labels.
func (r *Registry) IncrementErrors(code, component, operation string) {
	r.ErrorsTotal.WithLabelValues(orUnknown(code), orUnknown(component), orUnknown(operation)).Inc()
}

// IncrementErrorsByType increments errors by type.
func (r *Registry) IncrementErrorsByType(errorType string) {
	r.ErrorsByType.WithLabelValues(orUnknown(errorType)).Inc()
}

// IncrementErrorsBySeverity increments errors by severity level.
func (r *Registry) IncrementErrorsBySeverity(severity string) {
	r.ErrorsBySeverity.WithLabelValues(orUnknown(severity)).Inc()
}

// IncrementErrorsByComponent increments errors by component.
func (r *Registry) IncrementErrorsByComponent(component string) {
	r.ErrorsByComponent.WithLabelValues(orUnknown(component)).Inc()
}

func orUnknown(value string) string {
	if value == "" {
		return unknownValue
	}

	return value
}
