package cmd

import (
	"context"
	"fmt"

	"github.com/namelens/entryguard/internal/config"
	"github.com/namelens/entryguard/internal/core/store"
)

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return db, cfg, nil
}
