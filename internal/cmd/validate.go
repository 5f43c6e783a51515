package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core/report"
	"github.com/namelens/entryguard/internal/core/store"
	"github.com/namelens/entryguard/internal/observability"
	"github.com/namelens/entryguard/internal/output"
)

var (
	validateOutput  string
	validateOut     string
	validateOutDir  string
	validateNoCache bool
	validateStrict  bool
)

// ErrValidationFailed is returned by validate --strict when the run reported
// errors.
var ErrValidationFailed = errors.New("validation reported errors")

var validateCmd = &cobra.Command{
	Use:   "validate <repository> <pr>",
	Short: "Validate the entries of one pull request",
	Long: `Validate the entries a pull request adds or changes and print the report.

The repository may be given as owner/name or as a bare name, in which case the
configured github.owner is used. The default output is the annotation body the
HTTP endpoint returns.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repository := strings.TrimSpace(args[0])
		pr, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil || pr <= 0 {
			return fmt.Errorf("invalid pull request number %q", args[1])
		}

		format, err := output.ParseFormat(validateOutput)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := observability.CLILogger

		var db *store.Store
		if cfg.Cache.Enabled && !validateNoCache {
			db, err = store.Open(cmd.Context(), cfg.Store)
			if err == nil {
				err = db.Migrate(cmd.Context())
			}
			if err != nil {
				logger.Warn("Response cache unavailable, continuing without it", zap.Error(err))
				if db != nil {
					_ = db.Close()
				}
				db = nil
			}
		}
		if db != nil {
			defer db.Close() // nolint:errcheck // best-effort cleanup
		}

		pipeline := buildPipeline(cfg, db, logger, pipelineOptions{noCache: validateNoCache})
		result, runErr := pipeline.Run(cmd.Context(), repository, pr)

		out, err := sinkTarget{
			out:    validateOut,
			outDir: validateOutDir,
			name:   fmt.Sprintf("%s-%d", repository, pr),
			format: format,
		}.open()
		if err != nil {
			return err
		}
		defer out.Close() // nolint:errcheck // best-effort cleanup

		rendered, err := output.NewFormatter(format).FormatRun(result, runErr)
		if err != nil {
			return err
		}
		if rendered != "" {
			if _, err := fmt.Fprintln(out, rendered); err != nil {
				return err
			}
		}

		if runErr != nil {
			return runErr
		}

		summary := report.Summarize(result)
		logger.Debug("Validation complete",
			zap.String("run_id", result.ID),
			zap.Int("entries", summary.Entries),
			zap.Int("errors", summary.Errors),
			zap.Int("warnings", summary.Warnings),
			zap.Int("faults", summary.Faults))

		if validateStrict && (!summary.Passed() || summary.Faults > 0) {
			return ErrValidationFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", string(output.FormatAnnotations), "Output format: annotations|table|json|yaml|markdown")
	validateCmd.Flags().StringVar(&validateOut, "out", "", "Write output to a file (default stdout)")
	validateCmd.Flags().StringVar(&validateOutDir, "out-dir", "", "Write output to a directory")
	validateCmd.Flags().BoolVar(&validateNoCache, "no-cache", false, "Bypass the response cache")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Exit non-zero when any entry has errors")
}
