package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-wire/auth"
	"github.com/maxpert/amqp-wire/capture"
	"github.com/maxpert/amqp-wire/metrics"
	"github.com/maxpert/amqp-wire/protocol"
	"github.com/maxpert/amqp-wire/transport"
)

type tapCmdConfig struct {
	Listen   string
	Upstream string
	Capture  string
	Print    bool
}

func newTapCmd(c *cli) *cobra.Command {
	var opts tapCmdConfig
	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Proxy AMQP connections to a broker and decode the traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.runTap(ctx, cmd.OutOrStdout(), opts)
		},
		Example: "# amqp-wire tap --listen :5673 --upstream localhost:5672 --capture session.cbor",
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", ":5673", "Address to accept client connections on")
	cmd.Flags().StringVar(&opts.Upstream, "upstream", "localhost:5672", "Broker address")
	cmd.Flags().StringVar(&opts.Capture, "capture", "", "Record every frame to this file (default from config)")
	cmd.Flags().BoolVar(&opts.Print, "print", true, "Print every frame")
	return cmd
}

func (c *cli) runTap(ctx context.Context, out io.Writer, opts tapCmdConfig) error {
	tap := &transport.Tap{
		Upstream:    opts.Upstream,
		DialTimeout: c.cfg.Transport.DialTimeout,
		Logger:      c.logger,
		Decoder:     c.cfg.FrameDecoder(),
	}

	if c.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		tap.Metrics = metrics.NewCollector(c.cfg.Metrics.Namespace, reg)

		srv := metrics.NewServer(c.cfg.Metrics.Address, reg)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdown)
		}()
		c.logger.Info("metrics enabled", zap.String("address", srv.Address()))
	}

	capturePath := opts.Capture
	if capturePath == "" {
		capturePath = c.cfg.Capture.Path
	}
	if capturePath != "" {
		w, err := capture.Create(capturePath)
		if err != nil {
			return err
		}
		defer w.Close()
		tap.Capture = w
	}

	if opts.Print {
		var mu sync.Mutex
		tap.OnFrame = func(dir capture.Direction, channel uint16, frame protocol.FrameValue) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s %-14s ch=%-5d %s\n", time.Now().Format("15:04:05.000"), dir, channel, auth.RedactFrame(frame))
		}
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return err
	}
	return tap.Serve(ctx, ln)
}
