package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/namelens/entryguard/internal/core/store"
	"github.com/namelens/entryguard/internal/output"
)

var listFlags struct {
	prefix              string
	format, out, outDir string
}

type rateLimitRow struct {
	Endpoint     string     `json:"endpoint"`
	RequestCount int        `json:"request_count"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	BackingOff   bool       `json:"backing_off"`
}

func newRateLimitRow(entry store.RateLimitEntry, now time.Time) rateLimitRow {
	return rateLimitRow{
		Endpoint:     entry.Endpoint,
		RequestCount: entry.State.RequestCount,
		WindowStart:  entry.State.WindowStart.UTC(),
		BackoffUntil: entry.State.BackoffUntil,
		BackingOff:   entry.BackingOff(now),
	}
}

// line renders the row for the boxed table view.
func (r rateLimitRow) line() string {
	backoff := "-"
	if r.BackingOff {
		backoff = humanize.Time(*r.BackoffUntil)
	}
	return fmt.Sprintf("%s: requests=%d window=%s backoff=%s",
		r.Endpoint, r.RequestCount, humanize.Time(r.WindowStart), backoff)
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted limiter state per upstream host",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := adminFormat(listFlags.format)
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.RateLimitQuery{Prefix: strings.TrimSpace(listFlags.prefix)}
		query.All = query.Prefix == ""

		entries, err := db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		now := time.Now()
		rows := make([]rateLimitRow, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, newRateLimitRow(entry, now))
		}

		out, err := sinkTarget{out: listFlags.out, outDir: listFlags.outDir, name: "rate-limit.list", format: format}.open()
		if err != nil {
			return err
		}
		defer out.Close() // nolint:errcheck // best-effort cleanup

		if format == output.FormatJSON {
			return writeIndentedJSON(out, rows)
		}

		lines := []string{"Rate Limits", ""}
		if len(rows) == 0 {
			lines = append(lines, "(no stored rate limit state)")
		}
		for _, row := range rows {
			lines = append(lines, row.line())
		}
		_, err = fmt.Fprint(out, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return err
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&listFlags.prefix, "prefix", "", "List endpoints with matching prefix (default all)")
	addSinkFlags(rateLimitListCmd, &listFlags.format, &listFlags.out, &listFlags.outDir)
}
