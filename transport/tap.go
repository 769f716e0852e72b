package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxpert/amqp-wire/capture"
	"github.com/maxpert/amqp-wire/metrics"
	"github.com/maxpert/amqp-wire/protocol"
)

// FrameHandler observes frames passing through a Tap. It is called from the
// goroutine of the frame's direction.
type FrameHandler func(dir capture.Direction, channel uint16, frame protocol.FrameValue)

// Tap is a TCP proxy between AMQP clients and a broker that decodes every
// frame in both directions. Bytes are forwarded exactly as received, one
// decoded frame at a time; a connection whose stream cannot be decoded is
// closed.
type Tap struct {
	// Upstream is the broker address, host:port.
	Upstream    string
	DialTimeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Collector
	// Capture, when set, records every forwarded frame.
	Capture *capture.Writer
	// Decoder bounds the frames accepted from either peer.
	Decoder protocol.FrameDecoder
	// OnFrame, when set, is called for every forwarded frame.
	OnFrame FrameHandler
}

// Serve accepts connections on ln until ctx is cancelled. It closes ln and
// waits for proxied connections to finish before returning.
func (t *Tap) Serve(ctx context.Context, ln net.Listener) error {
	logger := t.logger()
	logger.Info("tap listening", zap.String("address", ln.Addr().String()), zap.String("upstream", t.Upstream))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			t.handle(ctx, conn)
		}()
	}
}

func (t *Tap) handle(ctx context.Context, client net.Conn) {
	logger := t.logger().With(zap.String("client", client.RemoteAddr().String()))
	defer client.Close()

	dialer := &net.Dialer{Timeout: t.DialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", t.Upstream)
	if err != nil {
		logger.Error("upstream dial failed", zap.String("upstream", t.Upstream), zap.Error(err))
		return
	}
	defer upstream.Close()

	t.Metrics.RecordConnectionOpened()
	defer t.Metrics.RecordConnectionClosed()
	logger.Info("connection opened")

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() {
		client.Close()
		upstream.Close()
	})
	defer stop()

	g.Go(func() error { return t.pipe(client, upstream, capture.ClientToServer, logger) })
	g.Go(func() error { return t.pipe(upstream, client, capture.ServerToClient, logger) })

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		logger.Info("connection closed")
	default:
		logger.Warn("connection aborted", zap.Error(err))
	}
}

// pipe forwards frames from src to dst until src ends. It always returns a
// non-nil error so the opposite direction is torn down with it.
func (t *Tap) pipe(src io.Reader, dst io.Writer, dir capture.Direction, logger *zap.Logger) error {
	logger = logger.With(zap.Stringer("direction", dir))
	reader := NewReader(src, WithFrameDecoder(t.Decoder), WithLogger(logger), WithMetrics(t.Metrics))
	assembler := protocol.NewAssembler()

	for {
		channel, frame, err := reader.ReadFrame()
		if err != nil {
			return err
		}

		raw := reader.Raw()
		if _, err := dst.Write(raw); err != nil {
			return err
		}

		if t.Capture != nil {
			if err := t.Capture.WriteFrame(dir, raw); err != nil {
				logger.Error("capture failed", zap.Error(err))
			}
		}
		if t.OnFrame != nil {
			t.OnFrame(dir, channel, frame)
		}

		msg, err := assembler.Feed(channel, frame)
		if err != nil {
			logger.Warn("frame out of sequence", zap.Uint16("channel", channel), zap.Error(err))
			assembler.Reset(channel)
			continue
		}
		if msg != nil {
			t.Metrics.RecordMessage(msg)
			logger.Debug("message", zap.Stringer("message", msg))
		}
	}
}

func (t *Tap) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
