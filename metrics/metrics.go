package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	amqperrors "github.com/maxpert/amqp-wire/errors"
	"github.com/maxpert/amqp-wire/protocol"
)

// Collector holds the Prometheus metrics of the frame reader, writer and tap.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Frame metrics
	FramesDecoded *prometheus.CounterVec
	FramesEncoded *prometheus.CounterVec
	Heartbeats    prometheus.Counter
	DecodeErrors  *prometheus.CounterVec

	// Byte metrics
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter

	// Message metrics
	MessagesAssembled prometheus.Counter
	MessageBodyBytes  prometheus.Counter

	// Tap connection metrics
	ConnectionsActive  prometheus.Gauge
	ConnectionsCreated prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "amqp_wire"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		FramesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Total number of frames decoded, by frame type",
		}, []string{"type"}),
		FramesEncoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_encoded_total",
			Help:      "Total number of frames encoded, by frame type",
		}, []string{"type"}),
		Heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Total number of heartbeat frames decoded",
		}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of fatal decode errors, by error kind",
		}, []string{"kind"}),

		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total number of bytes consumed by the frame decoder",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total number of frame bytes written",
		}),

		MessagesAssembled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_assembled_total",
			Help:      "Total number of content messages assembled from method, header and body frames",
		}),
		MessageBodyBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_body_bytes_total",
			Help:      "Total body bytes of assembled messages",
		}),

		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tap_connections",
			Help:      "Current number of proxied connections",
		}),
		ConnectionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tap_connections_created_total",
			Help:      "Total number of proxied connections accepted",
		}),
	}
}

// RecordFrameDecoded records one decoded frame of n wire bytes
func (c *Collector) RecordFrameDecoded(frameType byte, n int) {
	if c == nil {
		return
	}
	c.FramesDecoded.WithLabelValues(protocol.FrameTypeName(frameType)).Inc()
	c.BytesRead.Add(float64(n))
	if frameType == protocol.FrameHeartbeat {
		c.Heartbeats.Inc()
	}
}

// RecordFrameEncoded records one written frame of n wire bytes
func (c *Collector) RecordFrameEncoded(frameType byte, n int) {
	if c == nil {
		return
	}
	c.FramesEncoded.WithLabelValues(protocol.FrameTypeName(frameType)).Inc()
	c.BytesWritten.Add(float64(n))
}

// RecordDecodeError counts err under its error kind
func (c *Collector) RecordDecodeError(err error) {
	if c == nil || err == nil {
		return
	}
	c.DecodeErrors.WithLabelValues(amqperrors.KindName(err)).Inc()
}

// RecordMessage records an assembled message
func (c *Collector) RecordMessage(msg *protocol.Message) {
	if c == nil || msg == nil || !msg.HasContent() {
		return
	}
	c.MessagesAssembled.Inc()
	c.MessageBodyBytes.Add(float64(len(msg.Body)))
}

// RecordConnectionOpened increments the connection counter and gauge
func (c *Collector) RecordConnectionOpened() {
	if c == nil {
		return
	}
	c.ConnectionsCreated.Inc()
	c.ConnectionsActive.Inc()
}

// RecordConnectionClosed decrements the connection gauge
func (c *Collector) RecordConnectionClosed() {
	if c == nil {
		return
	}
	c.ConnectionsActive.Dec()
}
