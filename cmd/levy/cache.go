package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/levy-ai/levy/pkg/engine"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the configured cache store",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			s, err := engine.OpenStore(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			n, err := s.Len(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend:  %s\nEntries:  %s\nCapacity: %s\n",
				cfg.Store.Backend, humanize.Comma(int64(n)), humanize.Comma(int64(cfg.Cache.MaxSize)))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			s, err := engine.OpenStore(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
