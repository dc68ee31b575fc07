package eraa

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/eraatools/ucprep/internal/checker"
	"github.com/eraatools/ucprep/internal/report"
)

// descriptionSchema declares the raw shapes expected right after JSON
// decoding, so that erroneous files are rejected with a complete list of
// offending attributes.
var descriptionSchema = checker.Schema{
	"aggreg_prod_types_def":          checker.KindTwoLevelDictStrStrListOfString,
	"agg_prod_types_with_cf_data":    checker.KindListOfString,
	"available_climatic_years":       checker.KindListOfInt,
	"available_countries":            checker.KindListOfString,
	"available_aggreg_prod_types":    checker.KindTwoLevelDictStrStrListOfString,
	"available_intercos":             checker.KindListOfString,
	"available_target_years":         checker.KindListOfInt,
	"eraa_edition":                   checker.KindString,
	"gps_coordinates":                checker.KindDictStrListOfFloat,
	"pypsa_unit_params_per_agg_pt":   checker.KindDictStrDict,
	"units_complem_params_per_agg_pt": checker.KindTwoLevelDictStrStrStr,
}

// Coordinates is a (latitude, longitude) pair, only used for network plots.
type Coordinates [2]float64

// Description is the normalized reference metadata of one dataset edition.
// Raw* fields keep the values as decoded from JSON; Process derives the
// typed, query-ready fields from them and is therefore idempotent.
type Description struct {
	// {datatype: {aggreg. prod. type: list of raw ERAA prod. types}}
	AggProdTypesDef map[string]map[string][]string `json:"aggreg_prod_types_def"`
	// aggreg. prod. types for which capacity-factor data exists
	ProdTypesWithCF         []string `json:"agg_prod_types_with_cf_data"`
	AvailableClimaticYears  []int    `json:"available_climatic_years"`
	StressTestClimaticYears []int    `json:"available_climatic_years_stress_test"`
	AvailableCountries      []string `json:"available_countries"`
	AvailableTargetYears    []int    `json:"available_target_years"`

	RawAvailableAggProdTypes map[string]map[string][]string `json:"available_aggreg_prod_types"`
	RawIntercos              []string                       `json:"available_intercos"`
	RawEdition               string                         `json:"eraa_edition"`
	RawGPSCoordinates        map[string][]float64           `json:"gps_coordinates"`

	// per aggreg. prod. type default generator parameter template
	UnitParamsPerAggType map[string]map[string]any `json:"pypsa_unit_params_per_agg_pt"`
	// per aggreg. prod. type {complem. param name: "from_json_tb_modif"/"from_eraa_data"}
	ComplemParamsPerAggType map[string]map[string]string `json:"units_complem_params_per_agg_pt"`

	// derived by Process
	AvailableAggProdTypes map[string]map[int][]string `json:"-"`
	Intercos              []Interconnection           `json:"-"`
	Edition               string                      `json:"-"`
	GPSCoordinates        map[string]Coordinates      `json:"-"`
}

// ParseDescription decodes the fixed-parameters JSON (already merged with
// the availability tables) into a Description. Shape violations are
// accumulated and returned for the caller to report; they are not fatal to
// decoding itself only when the typed unmarshal also succeeds.
func ParseDescription(data []byte) (*Description, *report.Violations, error) {
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, nil, fmt.Errorf("decode dataset description: %w", err)
	}
	violations := checker.Check(attrs, descriptionSchema, "ERAA description data - fixed ones -")
	if !violations.Empty() {
		return nil, violations, nil
	}
	descr := new(Description)
	if err := json.Unmarshal(data, descr); err != nil {
		return nil, nil, fmt.Errorf("decode dataset description: %w", err)
	}
	return descr, violations, nil
}

// Process normalizes the raw decoded fields:
// string-encoded booleans in generator templates, GPS pairs, interconnection
// tuples, integer year keys, the synthetic failure asset, and the edition
// string used in file-path suffixes. Calling it again recomputes the same
// derived values from the untouched raw fields.
func (d *Description) Process() error {
	for _, params := range d.UnitParamsPerAggType {
		for name, value := range params {
			if b, ok := parseBoolString(value); ok {
				params[name] = b
			}
		}
	}

	d.GPSCoordinates = make(map[string]Coordinates, len(d.RawGPSCoordinates))
	for country, coords := range d.RawGPSCoordinates {
		if len(coords) != 2 {
			return fmt.Errorf("GPS coordinates of %s: want 2 values, got %d", country, len(coords))
		}
		d.GPSCoordinates[country] = Coordinates{coords[0], coords[1]}
	}

	intercos, err := ParseInterconnections(d.RawIntercos)
	if err != nil {
		return err
	}
	d.Intercos = intercos

	d.AvailableAggProdTypes = make(map[string]map[int][]string, len(d.RawAvailableAggProdTypes))
	for country, perYear := range d.RawAvailableAggProdTypes {
		d.AvailableAggProdTypes[country] = make(map[int][]string, len(perYear))
		for yearStr, prodTypes := range perYear {
			year, err := strconv.Atoi(yearStr)
			if err != nil {
				return fmt.Errorf("available aggreg. prod. types of %s: year key %q: %w", country, yearStr, err)
			}
			prodTypes = slices.Clone(prodTypes)
			if !slices.Contains(prodTypes, FailureAsset) {
				prodTypes = append(prodTypes, FailureAsset)
			}
			d.AvailableAggProdTypes[country][year] = prodTypes
		}
	}

	d.Edition = strings.ReplaceAll(d.RawEdition, ".", "-")
	return nil
}

// AggProdTypesFor returns the available aggregate production types of one
// (country, target year) pair, nil when unknown.
func (d *Description) AggProdTypesFor(country string, year int) []string {
	perYear, ok := d.AvailableAggProdTypes[country]
	if !ok {
		return nil
	}
	return perYear[year]
}

// HasCountry reports whether country is part of the dataset.
func (d *Description) HasCountry(country string) bool {
	return slices.Contains(d.AvailableCountries, country)
}

// HasTargetYear reports whether year is a known capacity-scenario year.
func (d *Description) HasTargetYear(year int) bool {
	return slices.Contains(d.AvailableTargetYears, year)
}

// HasClimaticYear reports whether year belongs to the standard or, when
// stressTest is set, the stress-test climatic year set.
func (d *Description) HasClimaticYear(year int, stressTest bool) bool {
	if stressTest {
		return slices.Contains(d.StressTestClimaticYears, year)
	}
	return slices.Contains(d.AvailableClimaticYears, year)
}

// IsStressTestYear reports whether year belongs to the stress-test set.
func (d *Description) IsStressTestYear(year int) bool {
	return slices.Contains(d.StressTestClimaticYears, year)
}

// HasCFData reports whether the aggregate production type carries
// capacity-factor data.
func (d *Description) HasCFData(aggProdType string) bool {
	return slices.Contains(d.ProdTypesWithCF, aggProdType)
}

// parseBoolString recognizes the string-encoded booleans found in generator
// parameter templates.
func parseBoolString(value any) (bool, bool) {
	s, ok := value.(string)
	if !ok {
		return false, false
	}
	switch s {
	case "True", "true":
		return true, true
	case "False", "false":
		return false, true
	}
	return false, false
}
