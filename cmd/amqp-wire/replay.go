package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-wire/auth"
	"github.com/maxpert/amqp-wire/capture"
	"github.com/maxpert/amqp-wire/protocol"
)

type replayCmdConfig struct {
	Messages bool
}

func newReplayCmd(c *cli) *cobra.Command {
	var opts replayCmdConfig
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Print the frames recorded by tap --capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.replay(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Messages, "messages", false, "Assemble frames into messages per direction")
	return cmd
}

func (c *cli) replay(out io.Writer, path string, opts replayCmdConfig) error {
	r, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	// Each direction of a connection has its own channel state
	assemblers := map[capture.Direction]*protocol.Assembler{
		capture.ClientToServer: protocol.NewAssembler(),
		capture.ServerToClient: protocol.NewAssembler(),
	}

	for n := 0; ; n++ {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		frame, err := rec.Decode()
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}

		stamp := rec.Time.Format(time.RFC3339Nano)
		if !opts.Messages {
			fmt.Fprintf(out, "%s %-14s ch=%-5d %s\n", stamp, rec.Direction, rec.Channel, auth.RedactFrame(frame))
			continue
		}

		a, ok := assemblers[rec.Direction]
		if !ok {
			return fmt.Errorf("record %d: unknown direction %s", n, rec.Direction)
		}
		msg, err := a.Feed(rec.Channel, frame)
		if err != nil {
			c.logger.Sugar().Warnf("record %d: %v", n, err)
			a.Reset(rec.Channel)
			continue
		}
		if msg != nil {
			fmt.Fprintf(out, "%s %-14s %s\n", stamp, rec.Direction, msg)
		}
	}
}
