package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/eraa"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load([]byte("input_folder: /srv/eraa\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.InputFolder != "/srv/eraa" {
		t.Fatalf("input folder: got %q", cfg.InputFolder)
	}
	if cfg.OutputFolder != "output" {
		t.Fatalf("output folder default: got %q", cfg.OutputFolder)
	}
	if cfg.FilesFormat.ColumnSep != ";" || cfg.FilesFormat.DecimalSep != "." {
		t.Fatalf("files format default: got %+v", cfg.FilesFormat)
	}
	if cfg.NCurvesMax != 6 {
		t.Fatalf("n curves max default: got %d", cfg.NCurvesMax)
	}
}

func TestLoadFileMissingYieldsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestUsageParamsProcess(t *testing.T) {
	usage := &UsageParams{
		Mode: ModeEurope,
		RawApplyPerCountryFiles: map[string]string{
			PhaseDataAnalysis: "False",
			PhaseMonozoneUC:   "True",
		},
	}
	if err := usage.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	if usage.LogLevel != "info" {
		t.Fatalf("log level default: got %q", usage.LogLevel)
	}
	if usage.ApplyPerCountryFiles[PhaseDataAnalysis] || !usage.ApplyPerCountryFiles[PhaseMonozoneUC] {
		t.Fatalf("apply per country files: got %v", usage.ApplyPerCountryFiles)
	}

	usage = &UsageParams{}
	if err := usage.Process(); err != nil {
		t.Fatalf("process empty: %v", err)
	}
	if usage.Mode != ModeSolo {
		t.Fatalf("mode default: got %q", usage.Mode)
	}
	if usage.ApplyPerCountryFiles[PhaseDataAnalysis] || !usage.ApplyPerCountryFiles[PhaseMultizonesUC] {
		t.Fatalf("apply per country files default: got %v", usage.ApplyPerCountryFiles)
	}

	usage = &UsageParams{RawApplyPerCountryFiles: map[string]string{PhaseMonozoneUC: "yes"}}
	if err := usage.Process(); err == nil {
		t.Fatal("want error for non-boolean string")
	}
	usage = &UsageParams{Mode: "duo"}
	if err := usage.Process(); err == nil {
		t.Fatal("want error for unknown mode")
	}
}

func TestStaticUnitParamsAllUnitsExpansion(t *testing.T) {
	static := &StaticUnitParams{
		MinUnitParamsPerAggType: map[string][]string{
			AllUnitsKey: {"name", "p_nom"},
			"batteries": {"max_hours"},
			"failure":   {"marginal_cost"},
		},
	}
	static.Process()
	if _, ok := static.MinUnitParamsPerAggType[AllUnitsKey]; ok {
		t.Fatal("all_units key must be folded in")
	}
	got := static.MinUnitParamsPerAggType["batteries"]
	want := []string{"max_hours", "name", "p_nom"}
	if !slices.Equal(got, want) {
		t.Fatalf("batteries params: got %v, want %v", got, want)
	}
	if n := len(static.MinUnitParamsPerAggType["failure"]); n != 3 {
		t.Fatalf("failure params: got %d entries", n)
	}
}

func TestLoadSolverParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solver.json")
	writeFile(t, path, `{"name": "highs", "threads": 4}`)
	solver, err := LoadSolverParams(path, zap.NewNop())
	if err != nil {
		t.Fatalf("load solver params: %v", err)
	}
	if solver.Name != "highs" || solver.LicenseFile != "" {
		t.Fatalf("got %+v", solver)
	}

	writeFile(t, path, `{"license_file": "gurobi.lic"}`)
	if _, err := LoadSolverParams(path, zap.NewNop()); err == nil {
		t.Fatal("want error for missing solver name")
	}
}

func TestLoadDescriptionMergesAvailableValues(t *testing.T) {
	dir := t.TempDir()
	fixed := filepath.Join(dir, "fixed.json")
	avail := filepath.Join(dir, "avail.json")
	writeFile(t, fixed, `{
		"aggreg_prod_types_def": {"res_capa-factors": {"wind_onshore": ["Wind Onshore"]}},
		"agg_prod_types_with_cf_data": ["wind_onshore"],
		"eraa_edition": "2023.2",
		"gps_coordinates": {"FR": [46.2, 2.2]},
		"pypsa_unit_params_per_agg_pt": {"failure": {"carrier": "failure", "committable": "False"}},
		"units_complem_params_per_agg_pt": {"wind_onshore": {"capa_factors": "from_eraa_data"}}
	}`)
	writeFile(t, avail, `{
		"climatic_years": [1982, 1989],
		"countries": ["FR", "DE"],
		"aggreg_prod_types": {"FR": {"2030": ["wind_onshore"]}},
		"intercos": ["FR2DE"],
		"target_years": [2030]
	}`)
	descr, violations, err := LoadDescription(fixed, avail)
	if err != nil {
		t.Fatalf("load description: %v", err)
	}
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	if !descr.HasCountry("DE") || !descr.HasTargetYear(2030) {
		t.Fatal("availability tables not merged")
	}
	if descr.Edition != "2023-2" {
		t.Fatalf("edition: got %q", descr.Edition)
	}
	if committable := descr.UnitParamsPerAggType["failure"]["committable"]; committable != false {
		t.Fatalf("committable: got %v (%T)", committable, committable)
	}
	if got := descr.AggProdTypesFor("FR", 2030); !slices.Contains(got, eraa.FailureAsset) {
		t.Fatalf("failure asset not injected: %v", got)
	}
}

func testDescr(t *testing.T) *eraa.Description {
	t.Helper()
	descr := &eraa.Description{
		AvailableCountries:     []string{"FR", "DE"},
		AvailableTargetYears:   []int{2030},
		AvailableClimaticYears: []int{1982, 1989},
		RawAvailableAggProdTypes: map[string]map[string][]string{
			"FR": {"2030": {"wind_onshore", "nuclear"}},
			"DE": {"2030": {"wind_onshore"}},
		},
	}
	if err := descr.Process(); err != nil {
		t.Fatalf("process description: %v", err)
	}
	return descr
}

func TestLoadRunParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	writeFile(t, path, `{
		"selected_climatic_year": 1982,
		"selected_target_year": 2030,
		"selected_countries": ["FR"],
		"uc_period_start": "1900/01/01",
		"failure_penalty": 10000
	}`)
	usage := &UsageParams{}
	if err := usage.Process(); err != nil {
		t.Fatalf("process usage: %v", err)
	}
	params, violations, err := LoadRunParams(path, "", "", usage, PhaseMonozoneUC, testDescr(t), zap.NewNop())
	if err != nil {
		t.Fatalf("load run params: %v", err)
	}
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	got := params.ProdTypes["FR"]
	if !slices.Contains(got, "nuclear") || !slices.Contains(got, eraa.FailureAsset) {
		t.Fatalf("all keyword not expanded: %v", got)
	}
}

func TestLoadRunParamsIntercoOverwriteToggle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	writeFile(t, path, `{
		"selected_climatic_year": 1982,
		"selected_target_year": 2030,
		"selected_countries": ["FR"],
		"uc_period_start": "1900/01/01",
		"interco_capas_tb_overwritten": {"FR2DE": 1500}
	}`)

	usage := &UsageParams{OverwritingIntercoCapas: true}
	if err := usage.Process(); err != nil {
		t.Fatalf("process usage: %v", err)
	}
	params, violations, err := LoadRunParams(path, "", "", usage, PhaseMonozoneUC, testDescr(t), zap.NewNop())
	if err != nil {
		t.Fatalf("load run params: %v", err)
	}
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	key := eraa.Interconnection{Origin: "FR", Destination: "DE"}
	if got := params.IntercoOverrides[key]; got != 1500 {
		t.Fatalf("interco override with toggle on: got %g", got)
	}

	// the same file with the toggle off must keep the dataset values
	usage = &UsageParams{}
	if err := usage.Process(); err != nil {
		t.Fatalf("process usage: %v", err)
	}
	params, violations, err = LoadRunParams(path, "", "", usage, PhaseMonozoneUC, testDescr(t), zap.NewNop())
	if err != nil {
		t.Fatalf("load run params: %v", err)
	}
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	if len(params.IntercoOverrides) != 0 {
		t.Fatalf("interco overrides with toggle off: got %v", params.IntercoOverrides)
	}
}

func TestLoadRunParamsShapeViolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	writeFile(t, path, `{
		"selected_climatic_year": [1982, 1989],
		"selected_target_year": 2030,
		"selected_countries": ["FR"],
		"uc_period_start": "1900/01/01"
	}`)
	usage := &UsageParams{}
	if err := usage.Process(); err != nil {
		t.Fatalf("process usage: %v", err)
	}
	params, violations, err := LoadRunParams(path, "", "", usage, PhaseMonozoneUC, testDescr(t), zap.NewNop())
	if err != nil {
		t.Fatalf("load run params: %v", err)
	}
	if params != nil {
		t.Fatal("params must not be returned when the shape check fails")
	}
	if !violations.Contains("selected_climatic_year") {
		t.Fatalf("violations: %v", violations.Items())
	}
}

func TestApplyCountryFilesSoloMode(t *testing.T) {
	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "params.json")
	writeFile(t, paramsPath, `{
		"selected_climatic_year": 1982,
		"selected_target_year": 2030,
		"selected_countries": ["FR", "DE"],
		"selected_prod_types": {"FR": ["wind_onshore"], "DE": ["wind_onshore"]},
		"uc_period_start": "1900/01/01"
	}`)
	countryDir := filepath.Join(dir, "countries")
	if err := os.Mkdir(countryDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// own file may update any country in solo mode
	writeFile(t, filepath.Join(countryDir, "fr.json"), `{
		"team": "FR",
		"capacities_tb_overwritten": {"DE": {"wind_onshore": 1234}}
	}`)
	// other team's file is skipped
	writeFile(t, filepath.Join(countryDir, "de.json"), `{
		"team": "DE",
		"capacities_tb_overwritten": {"DE": {"wind_onshore": 9999}}
	}`)
	usage := &UsageParams{Team: "FR"}
	if err := usage.Process(); err != nil {
		t.Fatalf("process usage: %v", err)
	}
	params, violations, err := LoadRunParams(paramsPath, countryDir, "", usage,
		PhaseMonozoneUC, testDescr(t), zap.NewNop())
	if err != nil {
		t.Fatalf("load run params: %v", err)
	}
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	if got := params.CapacityOverrides["DE"]["wind_onshore"]; got != 1234 {
		t.Fatalf("capacity override: got %g", got)
	}
}

func TestApplyCountryFilesEuropeMode(t *testing.T) {
	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "params.json")
	writeFile(t, paramsPath, `{
		"selected_climatic_year": 1982,
		"selected_target_year": 2030,
		"selected_countries": ["FR", "DE"],
		"selected_prod_types": {"FR": ["wind_onshore"], "DE": ["wind_onshore"]},
		"uc_period_start": "1900/01/01"
	}`)
	countryDir := filepath.Join(dir, "countries")
	if err := os.Mkdir(countryDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// a file only speaks for its own country in europe mode
	writeFile(t, filepath.Join(countryDir, "fr.json"), `{
		"team": "FR",
		"capacities_tb_overwritten": {"FR": {"nuclear": 61000}, "DE": {"wind_onshore": 9999}}
	}`)
	usage := &UsageParams{Mode: ModeEurope}
	if err := usage.Process(); err != nil {
		t.Fatalf("process usage: %v", err)
	}
	params, violations, err := LoadRunParams(paramsPath, countryDir, "", usage,
		PhaseMonozoneUC, testDescr(t), zap.NewNop())
	if err != nil {
		t.Fatalf("load run params: %v", err)
	}
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	if got := params.CapacityOverrides["FR"]["nuclear"]; got != 61000 {
		t.Fatalf("own-country override: got %g", got)
	}
	if _, ok := params.CapacityOverrides["DE"]; ok {
		t.Fatal("override for other country must be ignored")
	}
}

func TestLoadPlotStyleDefaults(t *testing.T) {
	style, err := LoadPlotStyle(filepath.Join(t.TempDir(), "absent.json"), PhaseDataAnalysis)
	if err != nil {
		t.Fatalf("load plot style: %v", err)
	}
	if style.WidthInches <= 0 || len(style.Palette) == 0 {
		t.Fatalf("default style not applied: %+v", style)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
