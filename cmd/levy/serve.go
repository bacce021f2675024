package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/levy-ai/levy/pkg/engine"
	"github.com/levy-ai/levy/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Levy HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if listen != "" {
				cfg.Listen = listen
			}
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := engine.New(ctx, cfg, engine.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("init engine: %w", err)
			}
			defer func() { _ = e.Close() }()

			logger.Info("starting levy",
				"config", configPath,
				"llm", cfg.LLM.Provider,
				"embedding", cfg.Embedding.Provider,
				"store", cfg.Store.Backend,
				"exact", cfg.Cache.Exact,
				"similarity", cfg.Cache.Similarity,
				"threshold", cfg.Cache.SimilarityThreshold)
			return server.New(cfg.Listen, e, logger).ListenAndServe(ctx)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
