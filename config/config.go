package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/maxpert/amqp-wire/protocol"
)

// EnvPrefix is the prefix of environment variables that override file
// settings. A double underscore separates sections, so
// AMQPWIRE_CODEC__MAX_FRAME_SIZE sets codec.max_frame_size.
const EnvPrefix = "AMQPWIRE_"

// Config holds the settings of the codec, its transport and the CLI.
type Config struct {
	Codec     CodecConfig     `koanf:"codec" yaml:"codec"`
	Transport TransportConfig `koanf:"transport" yaml:"transport"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Capture   CaptureConfig   `koanf:"capture" yaml:"capture"`
}

// CodecConfig bounds what the frame decoder accepts.
type CodecConfig struct {
	// MaxFrameSize is the negotiated frame-max including the 8 framing
	// bytes. Zero disables the limit.
	MaxFrameSize uint32 `koanf:"max_frame_size" yaml:"max_frame_size"`
	ChannelMax   uint16 `koanf:"channel_max" yaml:"channel_max"`
	Version      string `koanf:"version" yaml:"version"`
}

// TransportConfig configures the streaming reader and writer.
type TransportConfig struct {
	ReadBufferSize  int           `koanf:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `koanf:"write_buffer_size" yaml:"write_buffer_size"`
	DialTimeout     time.Duration `koanf:"dial_timeout" yaml:"dial_timeout"`
}

// LogConfig selects the zap logger level and output.
type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
	File  string `koanf:"file" yaml:"file"`
}

// MetricsConfig configures the Prometheus exposition server.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled" yaml:"enabled"`
	Namespace string `koanf:"namespace" yaml:"namespace"`
	Address   string `koanf:"address" yaml:"address"`
}

// CaptureConfig names the file tapped frames are recorded to.
type CaptureConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// DefaultConfig creates a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Codec: CodecConfig{
			MaxFrameSize: protocol.DefaultFrameMax,
			ChannelMax:   2047,
			Version:      "0-9-1",
		},
		Transport: TransportConfig{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			DialTimeout:     30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "amqp_wire",
			Address:   ":9419",
		},
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Codec.MaxFrameSize != 0 && c.Codec.MaxFrameSize < protocol.FrameMinSize {
		return fmt.Errorf("max frame size must be 0 or at least %d: %d", protocol.FrameMinSize, c.Codec.MaxFrameSize)
	}

	if c.Codec.Version != "0-9-1" {
		return fmt.Errorf("unsupported protocol version: %q", c.Codec.Version)
	}

	if c.Transport.ReadBufferSize <= 0 {
		return fmt.Errorf("read buffer size must be positive: %d", c.Transport.ReadBufferSize)
	}

	if c.Transport.WriteBufferSize <= 0 {
		return fmt.Errorf("write buffer size must be positive: %d", c.Transport.WriteBufferSize)
	}

	if c.Transport.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive: %v", c.Transport.DialTimeout)
	}

	if !logLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics address required when metrics are enabled")
	}

	return nil
}

// FrameDecoder returns a decoder bounded by the configured frame-max.
func (c *Config) FrameDecoder() protocol.FrameDecoder {
	if c.Codec.MaxFrameSize == 0 {
		return protocol.FrameDecoder{}
	}
	return protocol.FrameDecoder{MaxFrameSize: c.Codec.MaxFrameSize - protocol.FrameOverhead}
}

// Load layers a YAML file, when source is not empty, and then AMQPWIRE_*
// environment variables over the current values of c.
func (c *Config) Load(source string) error {
	k := koanf.New(".")

	if source != "" {
		ext := filepath.Ext(source)
		if ext != ".yaml" && ext != ".yml" {
			return fmt.Errorf("unsupported configuration format: %s (only YAML supported)", ext)
		}
		if err := k.Load(file.Provider(source), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if err := k.Unmarshal("", c); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	return c.Validate()
}

// Load returns the defaults overlaid with source and the environment.
func Load(source string) (*Config, error) {
	c := DefaultConfig()
	if err := c.Load(source); err != nil {
		return nil, err
	}
	return c, nil
}

// Save saves configuration to a YAML file
func (c *Config) Save(destination string) error {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(destination, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}
