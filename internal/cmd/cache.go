package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/metrics"
	"github.com/namelens/entryguard/internal/observability"
)

var (
	cachePurgeExpired bool
	cachePurgeCheck   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and purge the upstream response cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached rank and handle responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		checkType, err := parseCacheCheck(cachePurgeCheck)
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		purged, err := db.PurgeCache(cmd.Context(), checkType, cachePurgeExpired)
		if err != nil {
			return err
		}
		metrics.SetCachePurged(purged)

		observability.CLILogger.Debug("Cache purged",
			zap.String("check", string(checkType)),
			zap.Bool("expired_only", cachePurgeExpired),
			zap.Int64("rows", purged))

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Purged %s cached response(s)\n", humanize.Comma(purged))
		return err
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached response counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		stats, err := db.CacheStats(cmd.Context())
		if err != nil {
			return err
		}

		lines := []string{
			"Response Cache",
			"",
			fmt.Sprintf("store:   %s", db.Driver()),
			fmt.Sprintf("enabled: %t", cfg.Cache.Enabled),
			fmt.Sprintf("entries: %s (%s expired)", humanize.Comma(int64(stats.Entries)), humanize.Comma(int64(stats.Expired))),
		}

		checks := make([]string, 0, len(stats.ByCheck))
		for check := range stats.ByCheck {
			checks = append(checks, string(check))
		}
		sort.Strings(checks)
		for _, check := range checks {
			lines = append(lines, fmt.Sprintf("  %-8s %s", check, humanize.Comma(int64(stats.ByCheck[core.CheckType(check)]))))
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return err
	},
}

// parseCacheCheck maps --check to a cached check type; empty means all.
func parseCacheCheck(value string) (core.CheckType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return "", nil
	case string(core.CheckTypeRank):
		return core.CheckTypeRank, nil
	case string(core.CheckTypeHandle):
		return core.CheckTypeHandle, nil
	default:
		return "", fmt.Errorf("unsupported check %q (use rank or handle)", value)
	}
}

func init() {
	cachePurgeCmd.Flags().BoolVar(&cachePurgeExpired, "expired", false, "Only delete expired entries")
	cachePurgeCmd.Flags().StringVar(&cachePurgeCheck, "check", "", "Limit to one check: rank|handle")

	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
