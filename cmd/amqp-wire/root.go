package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-wire/config"
)

// cli holds what the persistent flags resolve to before a subcommand runs.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "amqp-wire",
		Short:         "Inspect AMQP 0-9-1 wire traffic",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Configuration file path (YAML)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newDecodeCmd(c),
		newTapCmd(c),
		newReplayCmd(c),
		newBenchCmd(c),
		newMethodsCmd(),
		newVersionCmd(),
	)
	return root
}

func (c *cli) setup() error {
	cfg := config.DefaultConfig()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}
