package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/levy-ai/levy/pkg/server"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache metrics from a running Levy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			base := strings.TrimRight(addr, "/")
			if !strings.Contains(base, "://") {
				base = "http://" + base
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/v1/metrics", nil)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch metrics: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch metrics: unexpected status %s", resp.Status)
			}

			var m server.MetricsResponse
			if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
				return fmt.Errorf("decode metrics: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REQUESTS\tEXACT\tSIMILARITY\tMISSES\tHIT RATE\tTOKENS SAVED\tAVG LATENCY")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%s\t%.2fms\n",
				humanize.Comma(m.TotalRequests),
				humanize.Comma(m.ExactHits),
				humanize.Comma(m.SimilarityHits),
				humanize.Comma(m.Misses),
				m.HitRate*100,
				humanize.Comma(m.TokensSaved),
				m.AvgLatencyMs)
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "address of the Levy server")
	return cmd
}
