package store

import (
	"context"

	"github.com/uptrace/bun"
)

// SaveRun inserts a run and its generation units in a transaction. Units get
// their run foreign key set from the inserted run.
func SaveRun(ctx context.Context, db *bun.DB, run *Run, units []*GenerationUnit) error {
	if err := run.Validate(); err != nil {
		return err
	}
	for _, unit := range units {
		if err := unit.Validate(); err != nil {
			return err
		}
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(run).Exec(ctx); err != nil {
			return err
		}

		for _, unit := range units {
			unit.RunID = run.ID
		}

		if len(units) > 0 {
			if _, err := tx.NewInsert().Model(&units).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetRun fetches a run by its external identifier with related data.
func GetRun(ctx context.Context, db *bun.DB, runID string) (*Run, error) {
	run := new(Run)
	err := db.NewSelect().
		Model(run).
		Where("run_id = ?", runID).
		Relation("Units").
		Relation("Exports").
		Scan(ctx)

	return run, err
}

// LatestRuns returns the most recently created runs, newest first.
func LatestRuns(ctx context.Context, db *bun.DB, limit int) ([]*Run, error) {
	var runs []*Run
	err := db.NewSelect().
		Model(&runs).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Scan(ctx)

	return runs, err
}

// UnitsForCountry returns one run's units restricted to a country, ordered
// by name.
func UnitsForCountry(ctx context.Context, db *bun.DB, runID int64, country string) ([]*GenerationUnit, error) {
	var units []*GenerationUnit
	err := db.NewSelect().
		Model(&units).
		Where("run_id = ?", runID).
		Where("country = ?", country).
		Order("name ASC").
		Scan(ctx)

	return units, err
}

// UpsertUnits performs a batch upsert on generation units keyed by
// (run, name).
func UpsertUnits(ctx context.Context, db *bun.DB, units []*GenerationUnit) error {
	if len(units) == 0 {
		return nil
	}
	_, err := db.NewInsert().
		Model(&units).
		On("CONFLICT (run_id, name) DO UPDATE").
		Set("country = EXCLUDED.country").
		Set("agg_prod_type = EXCLUDED.agg_prod_type").
		Set("p_nom = EXCLUDED.p_nom").
		Set("committable = EXCLUDED.committable").
		Set("params = EXCLUDED.params").
		Exec(ctx)

	return err
}

// RecordExport persists one produced artifact.
func RecordExport(ctx context.Context, db *bun.DB, export *Export) error {
	if err := export.Validate(); err != nil {
		return err
	}
	_, err := db.NewInsert().Model(export).Exec(ctx)
	return err
}

// SetRunStatus updates a run's lifecycle status.
func SetRunStatus(ctx context.Context, db *bun.DB, runID int64, status RunStatus) error {
	_, err := db.NewUpdate().
		Model((*Run)(nil)).
		Set("status = ?", status).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", runID).
		Exec(ctx)

	return err
}
