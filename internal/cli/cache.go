package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent source cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [shi...]",
	Short: "Drop cached source content",
	Long: `Clear removes cached source content. With no arguments the whole cache
is emptied; otherwise only the entries of the given full Source Hash
Identifiers are dropped, so the next audit fetches those sources again.

Example:
  veracity cache clear
  veracity cache clear $(veracity shi https://example.org/report)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store := cache.NewStore(cfg.Cache)
		if store == nil {
			fmt.Fprintf(os.Stderr, "Source cache is disabled (cache.enabled: false)\n")
			return nil
		}

		if err := clearCache(store, args); err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "✓ Cleared source cache\n")
		} else {
			fmt.Fprintf(os.Stderr, "✓ Dropped %d cached source(s)\n", len(args))
		}
		return nil
	},
}

// clearCache drops the entries of hashes, or everything when none are given
func clearCache(store cache.Store, hashes []string) error {
	if len(hashes) == 0 {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		return nil
	}
	for _, h := range hashes {
		if err := store.Delete(cache.ContentKey(h)); err != nil {
			return fmt.Errorf("drop %s: %w", h, err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
