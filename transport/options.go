// Package transport moves AMQP frames over byte streams. Reader buffers a
// stream and feeds the stateless frame decoder until a whole frame is
// available, Writer serializes encoded frames onto a stream and Tap proxies a
// connection while decoding both directions.
package transport

import (
	"go.uber.org/zap"

	"github.com/maxpert/amqp-wire/config"
	"github.com/maxpert/amqp-wire/metrics"
	"github.com/maxpert/amqp-wire/protocol"
)

const (
	defaultReadBufferSize  = 8192
	defaultWriteBufferSize = 8192
)

type options struct {
	logger          *zap.Logger
	metrics         *metrics.Collector
	decoder         protocol.FrameDecoder
	readBufferSize  int
	writeBufferSize int
	frameMax        uint32
}

// Option configures a Reader, Writer or Tap.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		logger:          zap.NewNop(),
		readBufferSize:  defaultReadBufferSize,
		writeBufferSize: defaultWriteBufferSize,
		frameMax:        protocol.DefaultFrameMax,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.logger = logger
	}
}

// WithMetrics records frame and byte counts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithFrameDecoder replaces the unbounded default decoder.
func WithFrameDecoder(d protocol.FrameDecoder) Option {
	return func(o *options) { o.decoder = d }
}

// WithBufferSizes sets the initial read buffer and the write buffer sizes.
func WithBufferSizes(read, write int) Option {
	return func(o *options) {
		if read > 0 {
			o.readBufferSize = read
		}
		if write > 0 {
			o.writeBufferSize = write
		}
	}
}

// WithFrameMax sets the frame-max, framing bytes included, that Writer
// splits message bodies to. Zero sends each body in one frame.
func WithFrameMax(frameMax uint32) Option {
	return func(o *options) { o.frameMax = frameMax }
}

// FromConfig applies the codec and transport sections of cfg.
func FromConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.decoder = cfg.FrameDecoder()
		o.frameMax = cfg.Codec.MaxFrameSize
		WithBufferSizes(cfg.Transport.ReadBufferSize, cfg.Transport.WriteBufferSize)(o)
	}
}
