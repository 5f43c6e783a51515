package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/namelens/entryguard/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Manage persisted rate limit state",
	Long: `Inspect or clear the limiter state kept per upstream host.

Hosts are keyed by name (api.github.com, api.similarweb.com, www.facebook.com).
State persists in the configured store, so a backoff requested by one run also
applies to the next until it expires or is reset here.`,
}

// adminFormat accepts the two formats the admin commands render.
func adminFormat(value string) (output.Format, error) {
	format, err := output.ParseFormat(value)
	if err != nil {
		return "", err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
	return format, nil
}

// addSinkFlags registers the shared output flags of the admin commands.
func addSinkFlags(cmd *cobra.Command, format, out, outDir *string) {
	cmd.Flags().StringVar(format, "output-format", string(output.FormatTable), "Output format: table|json")
	cmd.Flags().StringVar(out, "out", "", "Write output to a file (default stdout)")
	cmd.Flags().StringVar(outDir, "out-dir", "", "Write output to a directory")
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd, rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
