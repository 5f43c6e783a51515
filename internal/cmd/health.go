package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/namelens/entryguard/internal/errors"
	"github.com/namelens/entryguard/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify version info, configuration and the response store before serving.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Store unavailable", errwrap.WrapDatabaseError(cmd.Context(), err, "store open failed"))
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		enabled := 0
		for _, on := range cfg.Directories {
			if on {
				enabled++
			}
		}
		if enabled == 0 {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "No directory enabled", errwrap.NewConfigInvalidError("no directory is enabled"))
			return
		}

		logger.Info("Health check passed",
			zap.String("store", db.Driver()),
			zap.Int("directories", enabled),
			zap.Int("api_keys", len(cfg.Rank.APIKeys)))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
