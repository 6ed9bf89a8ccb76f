// Package metrics provides Prometheus metrics for ppenc-server and
// monstermac.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "ppenc"
)

// Metrics contains all Prometheus metrics for both binaries. A single
// struct is shared so the stream server and MonsterMac can register
// against one registry when run as a combined process.
type Metrics struct {
	// Channel lifecycle
	ChannelsActive     prometheus.Gauge
	ChannelsEstablished prometheus.Counter
	HandshakeLatency   prometheus.Histogram
	HandshakeErrors    *prometheus.CounterVec

	// Frame processing
	FramesAccepted   prometheus.Counter
	FramesRejected   *prometheus.CounterVec
	BodyBytesIn      prometheus.Counter
	BodyBytesOut     prometheus.Counter
	BodyKeyRotations prometheus.Counter

	// MonsterMac
	MonsterMacRequests     *prometheus.CounterVec
	MonsterMacLatency      prometheus.Histogram
	MonsterMacSecretErrors prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide default metrics instance, registered
// against the global Prometheus registry.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered against the
// default Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance registered
// against reg, so tests and embedders can use an isolated registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChannelsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_active",
			Help:      "Number of currently established PPEnc channels",
		}),
		ChannelsEstablished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_established_total",
			Help:      "Total number of PPEnc channels established",
		}),
		HandshakeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_latency_seconds",
			Help:      "Histogram of channel-establishment handshake latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		HandshakeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_errors_total",
			Help:      "Total handshake failures by reason",
		}, []string{"reason"}),

		FramesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_accepted_total",
			Help:      "Total PPEnc frames accepted by a receiver",
		}),
		FramesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Total PPEnc frames rejected, by error kind",
		}, []string{"error_kind"}),
		BodyBytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_bytes_in_total",
			Help:      "Total padded body bytes received",
		}),
		BodyBytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_bytes_out_total",
			Help:      "Total padded body bytes sent",
		}),
		BodyKeyRotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_key_rotations_total",
			Help:      "Total body key generation advances observed",
		}),

		MonsterMacRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monstermac_requests_total",
			Help:      "Total MonsterMac requests by mode and status",
		}, []string{"mode", "status"}),
		MonsterMacLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monstermac_latency_seconds",
			Help:      "Histogram of MonsterMac request handling latency",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
		}),
		MonsterMacSecretErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monstermac_secret_errors_total",
			Help:      "Total errors resolving a MonsterMac secret",
		}),
	}
}

// RecordHandshake records a successful channel-establishment handshake.
func (m *Metrics) RecordHandshake(latencySeconds float64) {
	m.ChannelsActive.Inc()
	m.ChannelsEstablished.Inc()
	m.HandshakeLatency.Observe(latencySeconds)
}

// RecordHandshakeError records a failed handshake attempt.
func (m *Metrics) RecordHandshakeError(reason string) {
	m.HandshakeErrors.WithLabelValues(reason).Inc()
}

// RecordChannelClosed records a channel going away.
func (m *Metrics) RecordChannelClosed() {
	m.ChannelsActive.Dec()
}

// RecordFrameAccepted records a successfully read and decrypted frame.
func (m *Metrics) RecordFrameAccepted(bodyBytes int) {
	m.FramesAccepted.Inc()
	m.BodyBytesIn.Add(float64(bodyBytes))
}

// RecordFrameRejected records a frame rejected for the given error kind.
func (m *Metrics) RecordFrameRejected(errorKind string) {
	m.FramesRejected.WithLabelValues(errorKind).Inc()
}

// RecordFrameSent records a frame written by a sender.
func (m *Metrics) RecordFrameSent(bodyBytes int) {
	m.BodyBytesOut.Add(float64(bodyBytes))
}

// RecordBodyKeyRotation records a body key generation advance.
func (m *Metrics) RecordBodyKeyRotation() {
	m.BodyKeyRotations.Inc()
}

// RecordMonsterMacRequest records a completed MonsterMac request.
func (m *Metrics) RecordMonsterMacRequest(mode, status string, latencySeconds float64) {
	m.MonsterMacRequests.WithLabelValues(mode, status).Inc()
	m.MonsterMacLatency.Observe(latencySeconds)
}

// RecordMonsterMacSecretError records a failure resolving a secret.
func (m *Metrics) RecordMonsterMacSecretError() {
	m.MonsterMacSecretErrors.Inc()
}
