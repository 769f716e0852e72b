// Command amqp-wire decodes, proxies and replays AMQP 0-9-1 traffic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-wire/protocol"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	gitHash   = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "amqp-wire: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "amqp-wire %s (git %s, built %s), AMQP %d-%d-%d\n",
				version, gitHash, buildTime, protocol.VersionMajor, protocol.VersionMinor, protocol.VersionRevision)
		},
	}
}
