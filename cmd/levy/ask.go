package main

import (
	"fmt"
	"strings"

	"github.com/levy-ai/levy/pkg/engine"
	"github.com/levy-ai/levy/pkg/models"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		configPath  string
		maxTokens   int
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Answer a single prompt through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := engine.New(ctx, cfg, engine.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			params := models.Params{MaxTokens: maxTokens}
			if cmd.Flags().Changed("temperature") {
				params.Temperature = &temperature
			}

			res, err := e.Respond(ctx, strings.Join(args, " "), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			fmt.Fprintf(out, "\n[source=%s latency=%.2fms", res.Source, res.LatencyMs)
			if res.SimilarityScore != nil {
				fmt.Fprintf(out, " score=%.4f", *res.SimilarityScore)
			}
			fmt.Fprintln(out, "]")
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum output tokens (default 256)")
	cmd.Flags().Float64Var(&temperature, "temperature", models.DefaultTemperature, "sampling temperature")
	return cmd
}
