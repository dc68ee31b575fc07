// Command ucprep prepares European unit-commitment model inputs from an
// ERAA-like dataset: it validates the run selection, derives generation
// units and runs the requested data analyses.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/config"
	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/report"
)

var (
	configPath string
	debugSQL   bool
)

var rootCmd = &cobra.Command{
	Use:           "ucprep",
	Short:         "Prepare unit-commitment model inputs from ERAA data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ucprep.yml", "tool configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugSQL, "debug-sql", false, "log database queries")
	rootCmd.AddCommand(prepareCmd, analyzeCmd, runsCmd)
}

// Execute runs the CLI; it is the only place that turns errors into a
// process exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitOnViolations prints the grouped coherence-check report and stops the
// process; incoherent inputs must not produce model data.
func exitOnViolations(violations *report.Violations) {
	if violations.Empty() {
		return
	}
	fmt.Fprintln(os.Stderr, violations.Format())
	os.Exit(1)
}

// inputPaths locates the user-editable files below the input folder.
type inputPaths struct {
	Data             string
	UsageParams      string
	FixedParams      string
	AvailableValues  string
	RunParams        string
	CountryFilesDir  string
	FuelSources      string
	StaticUnitParams string
	SolverParams     string
	Analyses         string
	PlotParams       string
}

func newInputPaths(inputFolder string) inputPaths {
	return inputPaths{
		Data:             filepath.Join(inputFolder, "data"),
		UsageParams:      filepath.Join(inputFolder, "usage_params.json"),
		FixedParams:      filepath.Join(inputFolder, "elec-europe_params_fixed.json"),
		AvailableValues:  filepath.Join(inputFolder, "elec-europe_eraa-available-values.json"),
		RunParams:        filepath.Join(inputFolder, "elec-europe_params_to-be-modif.json"),
		CountryFilesDir:  filepath.Join(inputFolder, "countries"),
		FuelSources:      filepath.Join(inputFolder, "fuel-sources_params_to-be-modif.json"),
		StaticUnitParams: filepath.Join(inputFolder, "pypsa_static_params.json"),
		SolverParams:     filepath.Join(inputFolder, "solver_params.json"),
		Analyses:         filepath.Join(inputFolder, "data-analysis_params.json"),
		PlotParams:       filepath.Join(inputFolder, "plot_params.json"),
	}
}

// optional returns path when the file exists, "" otherwise.
func optional(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// runEnv is the context shared by all subcommands: configuration, usage
// parameters, dataset description and the process logger.
type runEnv struct {
	Cfg   config.Config
	Paths inputPaths
	Usage *config.UsageParams
	Descr *eraa.Description
	Log   *zap.Logger
}

func newRunEnv() (*runEnv, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	paths := newInputPaths(cfg.InputFolder)

	usage, err := config.LoadUsageParams(paths.UsageParams)
	if err != nil {
		return nil, err
	}
	logLevel := cfg.LogLevel
	if usage.LogLevel != "" {
		logLevel = usage.LogLevel
	}
	log, err := config.NewLogger(logLevel)
	if err != nil {
		return nil, err
	}

	descr, violations, err := config.LoadDescription(paths.FixedParams, paths.AvailableValues)
	if err != nil {
		return nil, err
	}
	exitOnViolations(violations)

	return &runEnv{Cfg: cfg, Paths: paths, Usage: usage, Descr: descr, Log: log}, nil
}
