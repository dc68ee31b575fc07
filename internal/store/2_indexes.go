package store

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	// Migration 2: indexes
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",
			"CREATE INDEX IF NOT EXISTS idx_runs_years ON runs(target_year, climatic_year)",
			"CREATE INDEX IF NOT EXISTS idx_units_run ON generation_units(run_id)",
			"CREATE INDEX IF NOT EXISTS idx_units_country_type ON generation_units(country, agg_prod_type)",
			"CREATE INDEX IF NOT EXISTS idx_exports_run ON exports(run_id)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_runs_status",
			"DROP INDEX IF EXISTS idx_runs_years",
			"DROP INDEX IF EXISTS idx_units_run",
			"DROP INDEX IF EXISTS idx_units_country_type",
			"DROP INDEX IF EXISTS idx_exports_run",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
