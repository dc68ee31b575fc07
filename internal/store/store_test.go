package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/dataset"
)

func testDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := Open(dsn, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := RunMigrations(context.Background(), db, zap.NewNop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func testRun(runID string) *Run {
	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Run{
		RunID:        runID,
		Phase:        "monozone_toy_uc_model",
		TargetYear:   2030,
		ClimaticYear: 1982,
		Countries:    StringList{"FR"},
		PeriodStart:  start,
		PeriodEnd:    start.AddDate(0, 0, 9),
		Status:       RunStatusPrepared,
	}
}

func TestRunValidate(t *testing.T) {
	if err := testRun("run-1").Validate(); err != nil {
		t.Fatalf("expected valid run, got error: %v", err)
	}
	invalid := &Run{}
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected error for invalid run")
	}
	bad := testRun("run-2")
	bad.PeriodEnd = bad.PeriodStart
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty period")
	}
}

func TestNewGenerationUnit(t *testing.T) {
	pNom := 1500.0
	committable := false
	unit, err := NewGenerationUnit("FR", &dataset.GenerationUnitData{
		Name:        "FR_failure",
		Type:        "failure",
		PNom:        &pNom,
		Committable: &committable,
	})
	if err != nil {
		t.Fatalf("new generation unit: %v", err)
	}
	if err := unit.Validate(); err != nil {
		t.Fatalf("expected valid unit, got error: %v", err)
	}
	if unit.Country != "FR" || unit.AggProdType != "failure" {
		t.Fatalf("got %+v", unit)
	}
	if unit.PNom == nil || *unit.PNom != 1500 {
		t.Fatalf("p_nom: got %v", unit.PNom)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	pNom := 1500.0
	units := []*GenerationUnit{
		{Name: "FR_failure", Country: "FR", AggProdType: "failure", PNom: &pNom, Params: "{}"},
		{Name: "FR_nuclear", Country: "FR", AggProdType: "nuclear", Params: "{}"},
	}
	if err := SaveRun(ctx, db, testRun("run-1"), units); err != nil {
		t.Fatalf("save run: %v", err)
	}

	run, err := GetRun(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if len(run.Units) != 2 {
		t.Fatalf("units: got %d, want 2", len(run.Units))
	}
	for _, unit := range run.Units {
		if unit.RunID != run.ID {
			t.Fatalf("unit %s not linked to run", unit.Name)
		}
	}
}

func TestSaveRunRejectsInvalidUnit(t *testing.T) {
	db := testDB(t)
	units := []*GenerationUnit{{Name: "FR_failure"}}
	if err := SaveRun(context.Background(), db, testRun("run-1"), units); err == nil {
		t.Fatalf("expected error for incomplete unit")
	}
}

func TestUpsertUnits(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	run := testRun("run-1")
	pNom := 1000.0
	units := []*GenerationUnit{
		{Name: "FR_batteries", Country: "FR", AggProdType: "batteries", PNom: &pNom, Params: "{}"},
	}
	if err := SaveRun(ctx, db, run, units); err != nil {
		t.Fatalf("save run: %v", err)
	}

	updated := 1234.0
	if err := UpsertUnits(ctx, db, []*GenerationUnit{
		{RunID: run.ID, Name: "FR_batteries", Country: "FR", AggProdType: "batteries",
			PNom: &updated, Params: `{"p_nom": 1234}`},
	}); err != nil {
		t.Fatalf("upsert units: %v", err)
	}

	got, err := UnitsForCountry(ctx, db, run.ID, "FR")
	if err != nil {
		t.Fatalf("units for country: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("units: got %d, want 1", len(got))
	}
	if got[0].PNom == nil || *got[0].PNom != 1234 {
		t.Fatalf("p_nom after upsert: got %v", got[0].PNom)
	}
}

func TestRecordExportAndStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	run := testRun("run-1")
	if err := SaveRun(ctx, db, run, nil); err != nil {
		t.Fatalf("save run: %v", err)
	}
	export := &Export{
		RunID:    run.ID,
		Kind:     "plot",
		DataType: "demand",
		FileName: "demand_fra_2030_cy1982.png",
		NCases:   1,
	}
	if err := RecordExport(ctx, db, export); err != nil {
		t.Fatalf("record export: %v", err)
	}
	if err := SetRunStatus(ctx, db, run.ID, RunStatusAnalyzed); err != nil {
		t.Fatalf("set run status: %v", err)
	}

	got, err := GetRun(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != RunStatusAnalyzed {
		t.Fatalf("status: got %s", got.Status)
	}
	if len(got.Exports) != 1 || got.Exports[0].FileName != export.FileName {
		t.Fatalf("exports: got %+v", got.Exports)
	}
}
