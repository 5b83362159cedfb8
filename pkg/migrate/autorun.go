package migrate

import (
	"context"
	"fmt"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup when running in dev
// with ECOM_AUTO_MIGRATE enabled. Other environments migrate via cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	runner, err := NewRunner(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "applying embedded migrations")
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "migrations up to date")
	return nil
}
