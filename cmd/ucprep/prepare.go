package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/config"
	"github.com/eraatools/ucprep/internal/dataset"
	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/runparams"
	"github.com/eraatools/ucprep/internal/store"
)

var (
	preparePhase string
	prepareRunID string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Read the selected ERAA data and derive the UC model generation units",
	RunE:  runPrepare,
}

func init() {
	prepareCmd.Flags().StringVar(&preparePhase, "phase", config.PhaseMonozoneUC,
		fmt.Sprintf("run phase (%s or %s)", config.PhaseMonozoneUC, config.PhaseMultizonesUC))
	prepareCmd.Flags().StringVar(&prepareRunID, "run-id", "",
		"re-prepare an existing run, replacing its stored units")
}

// prepareDataTypes gives the datatypes to read, dropping the interconnection
// capacities when the usage params do not ask for them.
func prepareDataTypes(addingIntercoCapas bool) []eraa.DataType {
	types := slices.Clone(eraa.AllDataTypes)
	if !addingIntercoCapas {
		types = slices.DeleteFunc(types, func(dt eraa.DataType) bool {
			return dt == eraa.IntercoCapa
		})
	}
	return types
}

func runPrepare(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv()
	if err != nil {
		return err
	}
	log := env.Log
	defer log.Sync()

	params, violations, err := config.LoadRunParams(env.Paths.RunParams,
		optional(env.Paths.CountryFilesDir), optional(env.Paths.FuelSources),
		env.Usage, preparePhase, env.Descr, log)
	if err != nil {
		return err
	}
	exitOnViolations(violations)

	reader := dataset.NewReader(env.Paths.Data, env.Cfg.FilesFormat, params.StressTest, log)
	if env.Usage.ResCFStressTestFolder != "" {
		reader.StressTestFolder = env.Usage.ResCFStressTestFolder
	}
	ds := dataset.New(env.Paths.Data, params.StressTest, log)
	opts := dataset.ReadOptions{DataTypes: prepareDataTypes(env.Usage.AddingIntercoCapas)}
	if err := ds.ReadCountriesData(reader, params, env.Descr, opts); err != nil {
		return err
	}
	ds.CompleteData()

	static, err := config.LoadStaticUnitParams(env.Paths.StaticUnitParams)
	if err != nil {
		return err
	}
	if err := ds.BuildGenerationUnits(params, env.Descr); err != nil {
		return err
	}
	exitOnViolations(ds.ControlMinUnitParams(static.MinUnitParamsPerAggType))

	// the monozone toy model solves a linear relaxation
	if preparePhase == config.PhaseMonozoneUC {
		ds.SetCommittableFalse()
	}

	solver, err := config.LoadSolverParams(env.Paths.SolverParams, log)
	if err != nil {
		return err
	}
	log.Info("Optim. solver selected", zap.String("name", solver.Name))

	if err := os.MkdirAll(env.Cfg.OutputFolder, 0o755); err != nil {
		return err
	}
	unitsFile := filepath.Join(env.Cfg.OutputFolder, fmt.Sprintf("gen-units_%s.json", preparePhase))
	if err := ds.DumpUnitsJSON(unitsFile); err != nil {
		return err
	}
	log.Info("Generation units written", zap.String("file", unitsFile))

	return persistRun(cmd.Context(), env, params, ds)
}

// persistRun records the prepared run and its derived units in the local
// database.
func persistRun(ctx context.Context, env *runEnv, params *runparams.Params, ds *dataset.Dataset) error {
	db, err := store.Open(env.Cfg.DatabaseFile, debugSQL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.RunMigrations(ctx, db, env.Log); err != nil {
		return err
	}

	var units []*store.GenerationUnit
	for country, countryUnits := range ds.Units {
		for _, data := range countryUnits {
			unit, err := store.NewGenerationUnit(country, data)
			if err != nil {
				return err
			}
			units = append(units, unit)
		}
	}

	if prepareRunID != "" {
		return replaceRunUnits(ctx, db, env, prepareRunID, units)
	}

	run := &store.Run{
		RunID: fmt.Sprintf("%s_%d_cy%d_%s", preparePhase, params.TargetYear,
			params.ClimaticYear, uuid.New().String()[:8]),
		Phase:        preparePhase,
		TargetYear:   params.TargetYear,
		ClimaticYear: params.ClimaticYear,
		StressTest:   params.StressTest,
		Countries:    store.StringList(params.Countries),
		PeriodStart:  params.PeriodStart,
		PeriodEnd:    params.PeriodEnd,
		Status:       store.RunStatusPrepared,
	}

	if err := store.SaveRun(ctx, db, run, units); err != nil {
		return err
	}
	env.Log.Info("Run persisted", zap.String("run_id", run.RunID), zap.Int("n_units", len(units)))
	return nil
}

// replaceRunUnits stores the freshly derived units under an existing run,
// overwriting any previous unit with the same name.
func replaceRunUnits(ctx context.Context, db *bun.DB, env *runEnv, runID string,
	units []*store.GenerationUnit) error {

	existing, err := store.GetRun(ctx, db, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	for _, unit := range units {
		unit.RunID = existing.ID
		if err := unit.Validate(); err != nil {
			return err
		}
	}
	if err := store.UpsertUnits(ctx, db, units); err != nil {
		return err
	}
	if err := store.SetRunStatus(ctx, db, existing.ID, store.RunStatusPrepared); err != nil {
		return err
	}
	env.Log.Info("Run units replaced", zap.String("run_id", runID), zap.Int("n_units", len(units)))
	return nil
}
