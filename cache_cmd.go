package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/handguide/internal/cache"
)

var (
	clearCache bool

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show or clear the synthesized speech cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Cache.Directory == "" {
				return errors.New("no cache directory configured")
			}
			m, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			out := cmd.OutOrStdout()
			if clearCache {
				if err := m.Clear(); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				fmt.Fprintln(out, "Cleared", cfg.Cache.Directory)
				return nil
			}

			fmt.Fprintln(out, header("Speech cache"), faint(cfg.Cache.Directory))
			if disk, ok := m.LevelStats(cache.LevelDisk); ok {
				fmt.Fprintln(out, disk)
			}
			return nil
		},
	}
)

func init() {
	cacheCmd.Flags().BoolVar(&clearCache, "clear", false, "delete every cached sentence")
}
