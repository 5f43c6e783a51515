package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core/store"
	"github.com/namelens/entryguard/internal/observability"
	"github.com/namelens/entryguard/internal/output"
)

var resetFlags struct {
	all, yes, dryRun    bool
	endpoint, prefix    string
	format, out, outDir string
}

type resetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

func (r resetResult) String() string {
	if r.DryRun {
		return fmt.Sprintf("Would clear %d endpoint(s)", r.Matched)
	}
	return fmt.Sprintf("Cleared %d/%d endpoint(s)", r.Deleted, r.Matched)
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear persisted limiter state",
	Long: `Clear persisted limiter state, including any backoff a host imposed
with a 403 or 429.

Select rows with --endpoint (exact host), --prefix, or --all. --all needs --yes
unless --dry-run is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := adminFormat(resetFlags.format)
		if err != nil {
			return err
		}

		query := store.RateLimitQuery{
			All:      resetFlags.all,
			Endpoint: strings.TrimSpace(resetFlags.endpoint),
			Prefix:   strings.TrimSpace(resetFlags.prefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !resetFlags.yes && !resetFlags.dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		result := resetResult{DryRun: resetFlags.dryRun}
		if result.Matched, err = db.CountRateLimits(cmd.Context(), query); err != nil {
			return err
		}
		if !result.DryRun {
			if result.Deleted, err = db.ResetRateLimits(cmd.Context(), query); err != nil {
				return err
			}
			observability.CLILogger.Debug("Rate limit state cleared",
				zap.String("endpoint", query.Endpoint),
				zap.String("prefix", query.Prefix),
				zap.Int64("rows", result.Deleted))
		}

		out, err := sinkTarget{out: resetFlags.out, outDir: resetFlags.outDir, name: "rate-limit.reset", format: format}.open()
		if err != nil {
			return err
		}
		defer out.Close() // nolint:errcheck // best-effort cleanup

		if format == output.FormatJSON {
			return writeIndentedJSON(out, result)
		}
		_, err = fmt.Fprintln(out, result)
		return err
	},
}

func init() {
	flags := rateLimitResetCmd.Flags()
	flags.BoolVar(&resetFlags.all, "all", false, "Reset all endpoints")
	flags.StringVar(&resetFlags.endpoint, "endpoint", "", "Reset a single endpoint (exact match)")
	flags.StringVar(&resetFlags.prefix, "prefix", "", "Reset endpoints with matching prefix")
	flags.BoolVar(&resetFlags.yes, "yes", false, "Confirm destructive reset")
	flags.BoolVar(&resetFlags.dryRun, "dry-run", false, "Show what would be cleared")
	addSinkFlags(rateLimitResetCmd, &resetFlags.format, &resetFlags.out, &resetFlags.outDir)
}
