package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/levy-ai/levy/pkg/engine"
	"github.com/levy-ai/levy/pkg/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the cache as MCP tools over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			// stdout carries the protocol; setupLogger writes to stderr.
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := engine.New(ctx, cfg, engine.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			return mcp.New(e, version, logger).Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
