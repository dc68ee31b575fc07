package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/analysis"
	"github.com/eraatools/ucprep/internal/checker"
	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/report"
	"github.com/eraatools/ucprep/internal/runparams"
	"github.com/eraatools/ucprep/internal/timeseries"
)

// Phases of the teaching environment; some behaviours are toggled per
// phase in the usage-parameters file.
const (
	PhaseDataAnalysis = "data_analysis"
	PhaseMonozoneUC   = "monozone_toy_uc_model"
	PhaseMultizonesUC = "multizones_uc_model"
)

// Run modes: "solo" restricts per-country override files to the user's own
// team country, "europe" applies each file to its declaring country only.
const (
	ModeSolo   = "solo"
	ModeEurope = "europe"
)

func readJSONFile(path, fileDescr string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s file %s: %w", fileDescr, path, err)
	}
	return data, nil
}

// UsageParams control the behaviour of a run: mode, team, feature toggles.
type UsageParams struct {
	Mode     string `json:"mode"`
	Team     string `json:"team"`
	LogLevel string `json:"log_level"`

	// read interconnection capacities at all, and allow the run params to
	// overwrite the dataset values?
	AddingIntercoCapas      bool `json:"adding_interco_capas"`
	OverwritingIntercoCapas bool `json:"overwriting_eraa_interco_capa_vals"`

	// per phase, apply the per-country JSON override files? Strings in the
	// JSON file, parsed to booleans by Process.
	RawApplyPerCountryFiles map[string]string `json:"apply_per_country_json_file_params"`
	ApplyPerCountryFiles    map[string]bool   `json:"-"`

	// alternative climatic-year subfolder for RES stress tests; empty keeps
	// the standard one
	ResCFStressTestFolder string `json:"res_cf_stress_test_folder"`
}

// LoadUsageParams reads and normalizes the usage-parameters file.
func LoadUsageParams(path string) (*UsageParams, error) {
	data, err := readJSONFile(path, "JSON usage params")
	if err != nil {
		return nil, err
	}
	usage := &UsageParams{}
	if err := json.Unmarshal(data, usage); err != nil {
		return nil, fmt.Errorf("parse usage params: %w", err)
	}
	if err := usage.Process(); err != nil {
		return nil, err
	}
	return usage, nil
}

// Process fills defaults and parses the string-encoded booleans.
func (u *UsageParams) Process() error {
	if u.Mode == "" {
		u.Mode = ModeSolo
	}
	if u.Mode != ModeSolo && u.Mode != ModeEurope {
		return fmt.Errorf("unknown mode %q (allowed: %s, %s)", u.Mode, ModeSolo, ModeEurope)
	}
	if u.LogLevel == "" {
		u.LogLevel = "info"
	}
	if u.RawApplyPerCountryFiles == nil {
		u.ApplyPerCountryFiles = map[string]bool{
			PhaseDataAnalysis: false,
			PhaseMonozoneUC:   true,
			PhaseMultizonesUC: true,
		}
		return nil
	}
	u.ApplyPerCountryFiles = make(map[string]bool, len(u.RawApplyPerCountryFiles))
	for phase, raw := range u.RawApplyPerCountryFiles {
		value, err := castStrToBool(raw)
		if err != nil {
			return fmt.Errorf("usage param apply_per_country_json_file_params[%s]: %w", phase, err)
		}
		u.ApplyPerCountryFiles[phase] = value
	}
	return nil
}

func castStrToBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("cannot cast %q to bool", s)
}

// LoadDescription reads the fixed-parameters file, merges in the
// availability tables (their keys prefixed with "available_") and returns
// the processed dataset description.
func LoadDescription(fixedPath, availValuesPath string) (*eraa.Description, *report.Violations, error) {
	fixedData, err := readJSONFile(fixedPath, "JSON fixed params")
	if err != nil {
		return nil, nil, err
	}
	availData, err := readJSONFile(availValuesPath, "JSON ERAA available values")
	if err != nil {
		return nil, nil, err
	}
	var fixed, avail map[string]json.RawMessage
	if err := json.Unmarshal(fixedData, &fixed); err != nil {
		return nil, nil, fmt.Errorf("parse fixed params: %w", err)
	}
	if err := json.Unmarshal(availData, &avail); err != nil {
		return nil, nil, fmt.Errorf("parse available values: %w", err)
	}
	for key, value := range avail {
		fixed["available_"+key] = value
	}
	merged, err := json.Marshal(fixed)
	if err != nil {
		return nil, nil, err
	}
	descr, violations, err := eraa.ParseDescription(merged)
	if err != nil || !violations.Empty() {
		return nil, violations, err
	}
	if err := descr.Process(); err != nil {
		return nil, nil, err
	}
	return descr, violations, nil
}

// runParamsSchema declares the expected shape of the user-editable run
// params. Scalar year fields are checked here so a list sneaking through
// is a reported configuration error, not a decode panic.
var runParamsSchema = checker.Schema{
	"selected_climatic_year": checker.KindInt,
	"selected_target_year":   checker.KindInt,
	"selected_countries":     checker.KindListOfString,
	"uc_period_start":        checker.KindString,
}

const runParamsName = "Long-term UC run params - from JSON params to-be-modified file"

// countryFile is one per-country override file.
type countryFile struct {
	Team              string                        `json:"team"`
	CapacityOverrides map[string]map[string]float64 `json:"capacities_tb_overwritten"`
	ProdTypes         map[string][]string           `json:"selected_prod_types"`
}

// LoadRunParams reads the collective run-params file, overlays the
// per-country override files according to the mode, attaches the fuel
// source overrides, then processes and coherence-checks the result. The
// returned violations are non-empty when the run must not proceed.
func LoadRunParams(paramsPath, countriesDir, fuelSourcesPath string, usage *UsageParams,
	phase string, descr *eraa.Description, log *zap.Logger) (*runparams.Params, *report.Violations, error) {

	data, err := readJSONFile(paramsPath, "JSON params to be modif.")
	if err != nil {
		return nil, nil, err
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, nil, fmt.Errorf("parse run params: %w", err)
	}
	if violations := checker.Check(attrs, runParamsSchema, runParamsName); !violations.Empty() {
		return nil, violations, nil
	}

	params := &runparams.Params{}
	if err := json.Unmarshal(data, params); err != nil {
		return nil, nil, fmt.Errorf("parse run params: %w", err)
	}

	// default selection: everything available, for every selected country
	if params.ProdTypes == nil {
		params.ProdTypes = map[string][]string{}
	}
	for _, country := range params.Countries {
		if len(params.ProdTypes[country]) == 0 {
			params.ProdTypes[country] = []string{eraa.AllKeyword}
		}
	}
	if params.CapacityOverrides == nil {
		params.CapacityOverrides = map[string]map[string]float64{}
	}

	if usage.ApplyPerCountryFiles[phase] && countriesDir != "" {
		if err := applyCountryFiles(params, countriesDir, usage, descr, log); err != nil {
			return nil, nil, err
		}
	}

	if fuelSourcesPath != "" {
		fuelData, err := readJSONFile(fuelSourcesPath, "JSON fuel sources params to be modif.")
		if err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(fuelData, &params.FuelSourceOverrides); err != nil {
			return nil, nil, fmt.Errorf("parse fuel source overrides: %w", err)
		}
	}

	if !usage.OverwritingIntercoCapas && len(params.RawIntercoOverrides) > 0 {
		log.Info("Overwriting of interco. capacities disabled in usage params -> ignoring values",
			zap.Int("n_ignored", len(params.RawIntercoOverrides)))
		params.RawIntercoOverrides = nil
	}

	if err := params.Process(descr.AvailableCountries, log); err != nil {
		return nil, nil, err
	}
	params.SetStressTest(descr)
	return params, params.CoherenceCheck(descr, log), nil
}

// applyCountryFiles overlays the per-country override files. In solo mode
// only the user's own team file applies, but it may update any country; in
// europe mode each file updates its declaring country only.
func applyCountryFiles(params *runparams.Params, dir string, usage *UsageParams,
	descr *eraa.Description, log *zap.Logger) error {

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, file := range files {
		data, err := readJSONFile(file, "JSON country capacities")
		if err != nil {
			return err
		}
		var cf countryFile
		if err := json.Unmarshal(data, &cf); err != nil {
			return fmt.Errorf("parse country file %s: %w", file, err)
		}
		if usage.Mode == ModeSolo && usage.Team != cf.Team {
			continue
		}
		if !descr.HasCountry(cf.Team) {
			return fmt.Errorf("incorrect country found in file %s: %s is not available in dataset",
				file, cf.Team)
		}
		if usage.Mode == ModeSolo {
			for country, capas := range cf.CapacityOverrides {
				log.Info("Updating capacities from country file", zap.String("country", country),
					zap.String("file", file))
				params.CapacityOverrides[country] = capas
			}
			for country, prodTypes := range cf.ProdTypes {
				log.Info("Selected production type(s) overwritten", zap.String("country", country),
					zap.Strings("prod_types", prodTypes))
				params.ProdTypes[country] = prodTypes
			}
			continue
		}
		// europe mode: a file only speaks for its own country
		if capas, ok := cf.CapacityOverrides[cf.Team]; ok {
			log.Info("Updating capacities from country file", zap.String("country", cf.Team),
				zap.String("file", file))
			params.CapacityOverrides[cf.Team] = capas
		}
		if prodTypes, ok := cf.ProdTypes[cf.Team]; ok {
			log.Info("Selected production type(s) overwritten", zap.String("country", cf.Team),
				zap.Strings("prod_types", prodTypes))
			params.ProdTypes[cf.Team] = prodTypes
		}
		for country := range cf.CapacityOverrides {
			if country != cf.Team {
				log.Warn("Ignoring override for other country in country file",
					zap.String("country", country), zap.String("file", file))
			}
		}
	}
	return nil
}

// AllUnitsKey, as a pseudo aggregate type in the minimum-required parameter
// map, adds its parameters to every declared type.
const AllUnitsKey = "all_units"

// StaticUnitParams is the static optimizer-framework configuration: the
// minimum parameter set per unit type and the framework-level defaults.
type StaticUnitParams struct {
	MinUnitParamsPerAggType map[string][]string `json:"min_unit_params_per_agg_pt"`
	GeneratorDefaults       map[string]any      `json:"generator_params_default_vals"`
}

// LoadStaticUnitParams reads and expands the static unit-parameters file.
func LoadStaticUnitParams(path string) (*StaticUnitParams, error) {
	data, err := readJSONFile(path, "JSON static unit params")
	if err != nil {
		return nil, err
	}
	static := &StaticUnitParams{}
	if err := json.Unmarshal(data, static); err != nil {
		return nil, fmt.Errorf("parse static unit params: %w", err)
	}
	static.Process()
	return static, nil
}

// Process folds the all_units entry into every declared type's list.
func (s *StaticUnitParams) Process() {
	common, ok := s.MinUnitParamsPerAggType[AllUnitsKey]
	if !ok {
		return
	}
	delete(s.MinUnitParamsPerAggType, AllUnitsKey)
	for aggType := range s.MinUnitParamsPerAggType {
		s.MinUnitParamsPerAggType[aggType] = append(s.MinUnitParamsPerAggType[aggType], common...)
	}
}

// SolverParams selects the external optimizer. Only name and license_file
// are recognized.
type SolverParams struct {
	Name        string `json:"name"`
	LicenseFile string `json:"license_file"`
}

// LoadSolverParams reads the solver-selection file; unknown keys are warned
// about and dropped, a missing name is an error.
func LoadSolverParams(path string, log *zap.Logger) (*SolverParams, error) {
	data, err := readJSONFile(path, "JSON solver params")
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("parse solver params: %w", err)
	}
	if _, ok := attrs["name"]; !ok {
		return nil, fmt.Errorf("mandatory param name missing in %s", path)
	}
	if _, ok := attrs["license_file"]; !ok {
		log.Info("Param license_file missing -> default optim. solver licensing will be used",
			zap.String("file", path))
	}
	var unknown []string
	for key := range attrs {
		if key != "name" && key != "license_file" {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		log.Warn("There are unknown parameters in solver params file: will not be used",
			zap.String("file", path), zap.Strings("params", unknown))
	}
	solver := &SolverParams{}
	if err := json.Unmarshal(data, solver); err != nil {
		return nil, fmt.Errorf("parse solver params: %w", err)
	}
	return solver, nil
}

// LoadAnalyses reads the data-analysis request list, processes each entry
// against the description and accumulates all coherence violations.
func LoadAnalyses(path string, descr *eraa.Description, nCurvesMax int,
	log *zap.Logger) ([]*analysis.Analysis, *report.Violations, error) {

	data, err := readJSONFile(path, "JSON data analysis params")
	if err != nil {
		return nil, nil, err
	}
	var file struct {
		DataAnalysisList json.RawMessage `json:"data_analysis_list"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse data analysis params: %w", err)
	}
	analyses, violations, err := analysis.ParseAnalyses(file.DataAnalysisList, log)
	if err != nil {
		return nil, nil, err
	}
	if !violations.Empty() {
		return nil, violations, nil
	}
	for _, a := range analyses {
		if err := a.Process(descr); err != nil {
			return nil, nil, err
		}
		violations.Merge(a.CoherenceCheck(descr, nCurvesMax))
	}
	return analyses, violations, nil
}

// LoadPlotStyle reads the figure style declared for one phase in the
// plot-params file; a missing file or key yields the default style.
func LoadPlotStyle(path, phase string) (*timeseries.Style, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return timeseries.DefaultStyle(), nil
	}
	if err != nil {
		return nil, err
	}
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("parse plot params: %w", err)
	}
	raw, ok := attrs["fig_style_"+phase]
	if !ok {
		return timeseries.DefaultStyle(), nil
	}
	return timeseries.ParseStyle(raw)
}
