package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/freshlane/pkg/config"
	"github.com/angelmondragon/freshlane/pkg/db"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

// MaybeRunDev applies pending migrations on boot for local and dev
// environments with FRESHLANE_AUTO_MIGRATE enabled. The SQL files target
// Postgres, so sqlite-backed runs are skipped.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return fmt.Errorf("config and db client required")
	}
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"dir":    DefaultDir,
		"driver": cfg.DB.Driver,
	})
	if client.DB().Dialector.Name() != "postgres" {
		logg.Warn(ctx, "auto-migrate skipped for non-postgres driver")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	logg.Info(ctx, "applying migrations")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
