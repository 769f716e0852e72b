package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-wire/protocol"
	"github.com/maxpert/amqp-wire/transport"
)

type benchCmdConfig struct {
	Workers    int
	Duration   time.Duration
	Size       int
	FrameMax   uint32
	Persistent bool
}

// benchStats tracks benchmark statistics
type benchStats struct {
	encoded   atomic.Int64
	decoded   atomic.Int64
	bytes     atomic.Int64
	latencies []time.Duration
	latencyMu sync.Mutex
	startTime time.Time
}

func (s *benchStats) recordLatency(d []time.Duration) {
	s.latencyMu.Lock()
	s.latencies = append(s.latencies, d...)
	s.latencyMu.Unlock()
}

func newBenchCmd(c *cli) *cobra.Command {
	var opts benchCmdConfig
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure codec throughput by encoding and decoding Basic.Publish messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.FrameMax == 0 {
				opts.FrameMax = c.cfg.Codec.MaxFrameSize
			}
			return runBench(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "Number of concurrent encode/decode loops")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 10*time.Second, "Test duration")
	cmd.Flags().IntVar(&opts.Size, "size", 1024, "Message body size in bytes")
	cmd.Flags().Uint32Var(&opts.FrameMax, "frame-max", 0, "Frame-max used to split bodies (default from config)")
	cmd.Flags().BoolVar(&opts.Persistent, "persistent", false, "Mark messages persistent")
	return cmd
}

func runBench(ctx context.Context, out io.Writer, opts benchCmdConfig) error {
	if opts.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if opts.FrameMax != 0 && opts.FrameMax < protocol.FrameMinSize {
		return fmt.Errorf("frame-max must be 0 or at least %d", protocol.FrameMinSize)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	stats := &benchStats{startTime: time.Now()}
	errs := make(chan error, opts.Workers)
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func(channel uint16) {
			defer wg.Done()
			if err := benchWorker(ctx, channel, opts, stats); err != nil {
				errs <- err
			}
		}(uint16(i + 1))
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}

	printBenchResults(out, stats)
	return nil
}

// benchWorker encodes a batch of messages into a buffer and decodes it back
// until ctx is done.
func benchWorker(ctx context.Context, channel uint16, opts benchCmdConfig, stats *benchStats) error {
	const batch = 64

	method, err := protocol.BuildMethod("Basic.Publish", map[string]interface{}{"routing_key": "bench"})
	if err != nil {
		return err
	}
	props := protocol.NewBasicProperties()
	if err := props.Set("content_type", "application/octet-stream"); err != nil {
		return err
	}
	deliveryMode := protocol.Transient
	if opts.Persistent {
		deliveryMode = protocol.Persistent
	}
	if err := props.Set("delivery_mode", deliveryMode); err != nil {
		return err
	}

	body := make([]byte, opts.Size)
	for i := range body {
		body[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	w := transport.NewWriter(&buf, transport.WithFrameMax(opts.FrameMax))
	latencies := make([]time.Duration, 0, batch)

	for ctx.Err() == nil {
		buf.Reset()
		start := time.Now()
		for i := 0; i < batch; i++ {
			if err := w.WriteMessage(channel, method, props, body); err != nil {
				return err
			}
		}
		stats.encoded.Add(batch)
		stats.bytes.Add(int64(buf.Len()))

		r := transport.NewReader(bytes.NewReader(buf.Bytes()))
		for i := 0; i < batch; i++ {
			msg, err := r.ReadMessage()
			if err != nil {
				return err
			}
			if len(msg.Body) != len(body) {
				return fmt.Errorf("decoded body of %d bytes, want %d", len(msg.Body), len(body))
			}
		}
		stats.decoded.Add(batch)

		per := time.Since(start) / batch
		latencies = latencies[:0]
		for i := 0; i < batch; i++ {
			latencies = append(latencies, per)
		}
		stats.recordLatency(latencies)
	}
	return nil
}

func printBenchResults(out io.Writer, s *benchStats) {
	elapsed := time.Since(s.startTime)
	enc := s.encoded.Load()
	dec := s.decoded.Load()

	fmt.Fprintln(out, "=== Codec Benchmark Results ===")
	fmt.Fprintf(out, "Duration: %.2fs\n", elapsed.Seconds())
	fmt.Fprintf(out, "\nThroughput:\n")
	fmt.Fprintf(out, "  Encoded: %d messages (%.0f msg/s)\n", enc, float64(enc)/elapsed.Seconds())
	fmt.Fprintf(out, "  Decoded: %d messages (%.0f msg/s)\n", dec, float64(dec)/elapsed.Seconds())
	fmt.Fprintf(out, "  Wire:    %.1f MiB/s\n", float64(s.bytes.Load())/elapsed.Seconds()/(1<<20))

	if len(s.latencies) == 0 {
		return
	}
	sorted := slices.Clone(s.latencies)
	slices.Sort(sorted)

	fmt.Fprintf(out, "\nRound-trip latency per message:\n")
	fmt.Fprintf(out, "  min:    %v\n", sorted[0])
	fmt.Fprintf(out, "  median: %v\n", sorted[len(sorted)/2])
	fmt.Fprintf(out, "  95th:   %v\n", sorted[len(sorted)*95/100])
	fmt.Fprintf(out, "  99th:   %v\n", sorted[len(sorted)*99/100])
	fmt.Fprintf(out, "  max:    %v\n", sorted[len(sorted)-1])
}
