package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/analysis"
	"github.com/eraatools/ucprep/internal/config"
	"github.com/eraatools/ucprep/internal/dataset"
	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/runparams"
	"github.com/eraatools/ucprep/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the requested data analyses (plots and CSV extractions)",
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv()
	if err != nil {
		return err
	}
	log := env.Log
	defer log.Sync()

	analyses, violations, err := config.LoadAnalyses(env.Paths.Analyses, env.Descr,
		env.Cfg.NCurvesMax, log)
	if err != nil {
		return err
	}
	exitOnViolations(violations)
	if len(analyses) == 0 {
		log.Warn("No data analysis requested")
		return nil
	}

	style, err := config.LoadPlotStyle(env.Paths.PlotParams, config.PhaseDataAnalysis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(env.Cfg.OutputFolder, 0o755); err != nil {
		return err
	}

	db, err := store.Open(env.Cfg.DatabaseFile, debugSQL)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()
	if err := store.RunMigrations(ctx, db, log); err != nil {
		return err
	}
	run, err := saveAnalysisRun(ctx, db, analyses)
	if err != nil {
		return err
	}

	for _, a := range analyses {
		log.Info("Applying data analysis", zap.String("description", a.Describe()))
		perCase, err := gatherCases(env, a)
		if err != nil {
			return err
		}
		ts, file, err := a.Apply(perCase, env.Cfg.OutputFolder, "", style)
		if err != nil {
			return err
		}
		if file == "" {
			continue
		}
		export := &store.Export{
			RunID:    run.ID,
			Kind:     string(a.Kind),
			DataType: string(a.DataType),
			FileName: file,
			NCases:   len(ts.Keys()),
		}
		if err := store.RecordExport(ctx, db, export); err != nil {
			return err
		}
	}
	return store.SetRunStatus(ctx, db, run.ID, store.RunStatusAnalyzed)
}

// saveAnalysisRun records one analyze invocation; the run row carries the
// first analysis' selection as its identity and the union of all requested
// countries.
func saveAnalysisRun(ctx context.Context, db *bun.DB, analyses []*analysis.Analysis) (*store.Run, error) {
	first := analyses[0]
	seen := map[string]bool{}
	var countries store.StringList
	for _, a := range analyses {
		for _, country := range a.Countries {
			if !seen[country] {
				seen[country] = true
				countries = append(countries, country)
			}
		}
	}

	run := &store.Run{
		RunID: fmt.Sprintf("%s_%d_cy%d_%s", config.PhaseDataAnalysis, first.Years[0],
			first.ClimaticYears[0], uuid.New().String()[:8]),
		Phase:        config.PhaseDataAnalysis,
		TargetYear:   first.Years[0],
		ClimaticYear: first.ClimaticYears[0],
		Countries:    countries,
		PeriodStart:  first.PeriodStart,
		PeriodEnd:    first.PeriodEnd,
		Status:       store.RunStatusPrepared,
	}
	if err := store.SaveRun(ctx, db, run, nil); err != nil {
		return nil, err
	}
	return run, nil
}

// gatherCases reads the data slice of every (country, year, climatic year,
// extra params) combination of one analysis.
func gatherCases(env *runEnv, a *analysis.Analysis) (map[analysis.DataKey]analysis.CaseData, error) {
	perCase := map[analysis.DataKey]analysis.CaseData{}
	period := dataset.Period{Start: a.PeriodStart, End: a.PeriodEnd}

	extraIndices := []int{0}
	extras := map[int]*analysis.ExtraParams{}
	if len(a.ExtraParams) > 0 {
		extraIndices = extraIndices[:0]
		for _, params := range a.ExtraParams {
			if params == nil {
				extraIndices = append(extraIndices, 0)
				continue
			}
			extraIndices = append(extraIndices, params.Index)
			extras[params.Index] = params
		}
	}

	for _, country := range a.Countries {
		for _, year := range a.Years {
			for _, cy := range a.ClimaticYears {
				stressTest := env.Descr.IsStressTestYear(cy)
				reader := dataset.NewReader(env.Paths.Data, env.Cfg.FilesFormat, stressTest, env.Log)
				if env.Usage.ResCFStressTestFolder != "" {
					reader.StressTestFolder = env.Usage.ResCFStressTestFolder
				}
				for _, extraIdx := range extraIndices {
					data, err := readCase(env, a, reader, country, year, cy, extras[extraIdx], period)
					if err != nil {
						env.Log.Error("Cannot read data for analysis case",
							zap.String("country", country), zap.Int("year", year),
							zap.Int("climatic_year", cy), zap.Error(err))
						continue
					}
					perCase[analysis.DataKey{
						Country: country, Year: year, ClimaticYear: cy, ExtraIdx: extraIdx,
					}] = data
				}
			}
		}
	}
	return perCase, nil
}

// readCase reads one case's slice for the analysis datatype. Net demand is
// derived through the dataset pipeline, using the case's fixed CF capacities
// when extra parameters carry them.
func readCase(env *runEnv, a *analysis.Analysis, r *dataset.Reader, country string,
	year, cy int, extra *analysis.ExtraParams, period dataset.Period) (analysis.CaseData, error) {

	switch a.DataType {
	case eraa.Demand:
		points, err := r.Demand(country, year, cy, period)
		if err != nil {
			return analysis.CaseData{}, err
		}
		return analysis.CaseData{Points: points}, nil

	case eraa.CapaFactor:
		cfTaxonomy := env.Descr.AggProdTypesDef[string(eraa.CapaFactor)]
		points, err := r.CapacityFactors(country, year, cy, a.AggProdTypes, cfTaxonomy, period)
		if err != nil {
			return analysis.CaseData{}, err
		}
		return analysis.CaseData{CFPoints: points}, nil

	case eraa.NetDemand:
		params := &runparams.Params{
			ClimaticYear: cy,
			TargetYear:   year,
			Countries:    []string{country},
			ProdTypes:    map[string][]string{country: env.Descr.AggProdTypesFor(country, year)},
			PeriodStart:  a.PeriodStart,
			PeriodEnd:    a.PeriodEnd,
			StressTest:   env.Descr.IsStressTestYear(cy),
		}
		ds := dataset.New(env.Paths.Data, params.StressTest, env.Log)
		opts := dataset.ReadOptions{
			DataTypes:    []eraa.DataType{eraa.NetDemand},
			CFCapacities: extra.CFCapacities(),
		}
		if err := ds.ReadCountriesData(r, params, env.Descr, opts); err != nil {
			return analysis.CaseData{}, err
		}
		return analysis.CaseData{Points: ds.NetDemand[country]}, nil
	}
	return analysis.CaseData{}, fmt.Errorf("data analysis not handled for datatype %q", a.DataType)
}
