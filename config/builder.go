package config

import (
	"time"
)

// Builder provides a fluent API for building configuration
type Builder struct {
	config *Config
}

// NewBuilder creates a new configuration builder with defaults
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// FromConfig creates a builder from an existing configuration
func FromConfig(config *Config) *Builder {
	builder := NewBuilder()
	*builder.config = *config
	return builder
}

// Codec Configuration

// WithMaxFrameSize sets the frame-max, framing bytes included
func (b *Builder) WithMaxFrameSize(size uint32) *Builder {
	b.config.Codec.MaxFrameSize = size
	return b
}

// WithChannelMax sets the highest channel number
func (b *Builder) WithChannelMax(max uint16) *Builder {
	b.config.Codec.ChannelMax = max
	return b
}

// Transport Configuration

// WithBufferSizes sets read and write buffer sizes
func (b *Builder) WithBufferSizes(readSize, writeSize int) *Builder {
	b.config.Transport.ReadBufferSize = readSize
	b.config.Transport.WriteBufferSize = writeSize
	return b
}

// WithDialTimeout sets the upstream dial timeout
func (b *Builder) WithDialTimeout(timeout time.Duration) *Builder {
	b.config.Transport.DialTimeout = timeout
	return b
}

// WithLogging configures logging settings
func (b *Builder) WithLogging(level, logFile string) *Builder {
	b.config.Log.Level = level
	b.config.Log.File = logFile
	return b
}

// WithMetrics enables the metrics server on address
func (b *Builder) WithMetrics(address string) *Builder {
	b.config.Metrics.Enabled = true
	b.config.Metrics.Address = address
	return b
}

// WithMetricsNamespace sets the Prometheus namespace
func (b *Builder) WithMetricsNamespace(namespace string) *Builder {
	b.config.Metrics.Namespace = namespace
	return b
}

// WithCapture records tapped frames to path
func (b *Builder) WithCapture(path string) *Builder {
	b.config.Capture.Path = path
	return b
}

// Build returns the configured Config
func (b *Builder) Build() (*Config, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}

// BuildUnsafe returns the configured Config without validation
func (b *Builder) BuildUnsafe() *Config {
	return b.config
}
