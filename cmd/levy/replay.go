package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/levy-ai/levy/pkg/config"
	"github.com/levy-ai/levy/pkg/engine"
	"github.com/levy-ai/levy/pkg/metrics"
	"github.com/levy-ai/levy/pkg/models"
	"github.com/spf13/cobra"
)

// samplePrompts mixes exact repeats with paraphrases.
var samplePrompts = []string{
	"What is the capital of France?",
	"What is the capital of France?",
	"Tell me the capital city of France",
	"How do I cook pasta?",
	"Recipe for cooking pasta",
	"What is the capital of Germany?",
	"Who is the president of USA?",
	"What is the capital of France?",
}

type experiment struct {
	name string
	cfg  *config.Config
}

func newReplayCmd() *cobra.Command {
	var (
		configPath string
		compare    bool
	)

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay prompts through a fresh in-memory cache and report hit rates",
		Long: `Replay runs each prompt (one per line, blank lines skipped) through a new
engine backed by an in-memory store. Without a file a built-in sample of
repeated and paraphrased questions is used. With --compare the prompts are
replayed three times: without caching, exact-match only, and exact plus
similarity matching.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}

			prompts := samplePrompts
			if len(args) == 1 {
				if prompts, err = readPrompts(args[0]); err != nil {
					return err
				}
			}

			cfg.Store.Backend = "memory"
			runs := []experiment{{name: "Configured", cfg: cfg}}
			if compare {
				runs = compareExperiments(cfg)
			}

			out := cmd.OutOrStdout()
			for _, run := range runs {
				e, err := engine.New(cmd.Context(), run.cfg, engine.WithLogger(logger))
				if err != nil {
					return fmt.Errorf("%s: %w", run.name, err)
				}
				err = replay(cmd.Context(), out, run, e, prompts)
				e.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&compare, "compare", false, "compare no cache, exact only and exact+similarity")
	return cmd
}

func compareExperiments(base *config.Config) []experiment {
	variant := func(exact, similarity bool) *config.Config {
		c := *base
		c.Cache.Exact = exact
		c.Cache.Similarity = similarity
		return &c
	}
	return []experiment{
		{name: "Baseline (no cache)", cfg: variant(false, false)},
		{name: "Exact cache only", cfg: variant(true, false)},
		{name: "Exact + similarity cache", cfg: variant(true, true)},
	}
}

func replay(ctx context.Context, out io.Writer, run experiment, e *engine.Engine, prompts []string) error {
	c := run.cfg.Cache
	fmt.Fprintf(out, "\n--- %s ---\n", run.name)
	fmt.Fprintf(out, "exact=%t similarity=%t threshold=%.2f\n\n", c.Exact, c.Similarity, c.SimilarityThreshold)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSOURCE\tLATENCY\tSCORE\tPROMPT")
	for i, p := range prompts {
		res, err := e.Respond(ctx, p, models.Params{})
		if err != nil {
			return fmt.Errorf("prompt %d: %w", i+1, err)
		}
		score := "-"
		if res.SimilarityScore != nil {
			score = fmt.Sprintf("%.4f", *res.SimilarityScore)
		}
		fmt.Fprintf(w, "%d\t%s\t%.2fms\t%s\t%s\n", i+1, res.Source, res.LatencyMs, score, p)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	snap := e.Metrics()
	fmt.Fprintf(out, "\n%s\n", metrics.Summary(snap))
	fmt.Fprintf(out, "tokens saved: %s across %s requests\n",
		humanize.Comma(snap.TokensSaved), humanize.Comma(snap.TotalRequests))
	return nil
}

func readPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer f.Close()

	var prompts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no prompts in %s", path)
	}
	return prompts, nil
}
