package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxpert/amqp-wire/auth"
	"github.com/maxpert/amqp-wire/protocol"
	"github.com/maxpert/amqp-wire/transport"
)

type decodeCmdConfig struct {
	Hex      bool
	Messages bool
}

func newDecodeCmd(c *cli) *cobra.Command {
	var opts decodeCmdConfig
	cmd := &cobra.Command{
		Use:   "decode FILE...",
		Short: "Decode files holding raw AMQP frames",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]bytes.Buffer, len(args))

			var g errgroup.Group
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, path := range args {
				g.Go(func() error {
					return c.decodeFile(&reports[i], path, opts)
				})
			}
			err := g.Wait()

			out := cmd.OutOrStdout()
			for i := range reports {
				if len(args) > 1 {
					fmt.Fprintf(out, "==> %s <==\n", args[i])
				}
				if _, werr := reports[i].WriteTo(out); werr != nil {
					return werr
				}
			}
			return err
		},
		Example: "# amqp-wire decode session.bin\n# amqp-wire decode --hex frame.txt",
	}
	cmd.Flags().BoolVar(&opts.Hex, "hex", false, "Input is hex text; whitespace is ignored")
	cmd.Flags().BoolVar(&opts.Messages, "messages", false, "Assemble frames into messages")
	return cmd
}

func (c *cli) decodeFile(out io.Writer, path string, opts decodeCmdConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if opts.Hex {
		if data, err = decodeHex(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	logger := c.logger.With(zap.String("file", path))
	r := transport.NewReader(bytes.NewReader(data), transport.FromConfig(c.cfg), transport.WithLogger(logger))

	if opts.Messages {
		for {
			msg, err := r.ReadMessage()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintln(out, msg)
		}
	}

	offset := 0
	for {
		channel, frame, err := r.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: offset %d: %w", path, offset, err)
		}
		fmt.Fprintf(out, "%08x  ch=%-5d %-15s %s\n", offset, channel, protocol.FrameTypeName(frame.FrameType()), auth.RedactFrame(frame))
		offset += len(r.Raw())
	}
}

func decodeHex(data []byte) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(data))
	compact = strings.TrimPrefix(strings.TrimPrefix(compact, "0x"), "0X")
	return hex.DecodeString(compact)
}
