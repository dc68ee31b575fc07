// Package runparams holds one simulation's user-editable selection and the
// coherence checks run against the dataset description before any data is
// read.
package runparams

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/report"
)

const (
	unknownTargetYearError   = "Unknown target year"
	unknownClimaticYearError = "Unknown climatic year"
)

// Params is one run's selection. Raw* fields mirror the user-editable JSON;
// the remaining ones are derived by Process.
type Params struct {
	ClimaticYear int                 `json:"selected_climatic_year"`
	TargetYear   int                 `json:"selected_target_year"`
	Countries    []string            `json:"selected_countries"`
	ProdTypes    map[string][]string `json:"selected_prod_types"`

	RawPeriodStart string `json:"uc_period_start"`
	RawPeriodEnd   string `json:"uc_period_end"`

	FailurePowerCapa float64 `json:"failure_power_capa"`
	FailurePenalty   float64 `json:"failure_penalty"`

	RawIntercoOverrides map[string]float64            `json:"interco_capas_tb_overwritten"`
	CapacityOverrides   map[string]map[string]float64 `json:"capacities_tb_overwritten"`

	// per fuel source {param name: value}; nil values are stripped by Process
	FuelSourceOverrides map[string]map[string]*float64 `json:"-"`

	PeriodStart      time.Time                        `json:"-"`
	PeriodEnd        time.Time                        `json:"-"`
	IntercoOverrides map[eraa.Interconnection]float64 `json:"-"`
	StressTest       bool                             `json:"-"`
}

// Describe returns the run's descriptive string, logged once the params
// have been found coherent.
func (p *Params) Describe() string {
	var b strings.Builder
	b.WriteString("UC long-term model run with params:")
	fmt.Fprintf(&b, "\n- %d country(ies): %v", len(p.Countries), p.Countries)
	fmt.Fprintf(&b, "\n- year: %d, on period [%s, %s) (last time-slot excluded)",
		p.TargetYear, p.PeriodStart.Format(eraa.DateLayoutJSON), p.PeriodEnd.Format(eraa.DateLayoutJSON))
	fmt.Fprintf(&b, "\n- climatic year: %d", p.ClimaticYear)
	return b.String()
}

// Process parses the period bounds, fills the production-type selection for
// every available country, converts interconnection override names to
// tuples and strips nil fuel-source override values.
func (p *Params) Process(availableCountries []string, log *zap.Logger) error {
	var err error
	p.PeriodStart, err = time.Parse(eraa.DateLayoutJSON, p.RawPeriodStart)
	if err != nil {
		return fmt.Errorf("parse UC period start: %w", err)
	}
	if p.RawPeriodEnd == "" {
		p.PeriodEnd = p.PeriodStart.AddDate(0, 0, eraa.DefaultUCDays)
		if p.PeriodEnd.After(eraa.MaxDate) {
			p.PeriodEnd = eraa.MaxDate
		}
		log.Info("End of period set to default value",
			zap.String("period_end", p.PeriodEnd.Format(eraa.DateLayoutJSON)),
			zap.Int("n_days_default", eraa.DefaultUCDays))
	} else {
		p.PeriodEnd, err = time.Parse(eraa.DateLayoutJSON, p.RawPeriodEnd)
		if err != nil {
			return fmt.Errorf("parse UC period end: %w", err)
		}
	}

	if p.ProdTypes == nil {
		p.ProdTypes = make(map[string][]string)
	}
	for _, country := range availableCountries {
		if p.ProdTypes[country] == nil {
			p.ProdTypes[country] = []string{}
		}
	}

	p.IntercoOverrides = make(map[eraa.Interconnection]float64, len(p.RawIntercoOverrides))
	for name, value := range p.RawIntercoOverrides {
		interco, err := eraa.ParseInterconnection(name)
		if err != nil {
			return fmt.Errorf("interconnection capa. override: %w", err)
		}
		p.IntercoOverrides[interco] = value
	}

	for source, params := range p.FuelSourceOverrides {
		for name, value := range params {
			if value == nil {
				delete(params, name)
			}
		}
		if len(params) == 0 {
			delete(p.FuelSourceOverrides, source)
		}
	}
	return nil
}

// SetStressTest derives the stress-test flag from climatic-year membership.
func (p *Params) SetStressTest(descr *eraa.Description) {
	p.StressTest = descr.IsStressTestYear(p.ClimaticYear)
}

// checkYears validates target and climatic year against the description's
// availability tables.
func (p *Params) checkYears(descr *eraa.Description, violations *report.Violations) {
	if !descr.HasTargetYear(p.TargetYear) {
		violations.Add("%s %d", unknownTargetYearError, p.TargetYear)
	}
	if !descr.HasClimaticYear(p.ClimaticYear, p.StressTest) {
		suffix := ""
		if p.StressTest {
			suffix = " (in stress test mode)"
		}
		violations.Add("%s %d%s", unknownClimaticYearError, p.ClimaticYear, suffix)
	}
}

// CoherenceCheck runs every check against the description, accumulating all
// violations instead of stopping at the first. The failure asset is injected
// into selected countries missing it (logged, not an error). The caller
// decides what to do with a non-empty result.
func (p *Params) CoherenceCheck(descr *eraa.Description, log *zap.Logger) *report.Violations {
	violations := report.NewViolations("in JSON params to be modif. file")
	p.checkYears(descr, violations)

	countrySet := make(map[string]bool, len(p.Countries))
	repeated := false
	for _, country := range p.Countries {
		if countrySet[country] {
			repeated = true
		}
		countrySet[country] = true
	}
	if repeated {
		violations.Add("Repetition in selected countries")
	}
	var unknownCountries []string
	for country := range countrySet {
		if !descr.HasCountry(country) {
			unknownCountries = append(unknownCountries, country)
		}
	}
	sort.Strings(unknownCountries)
	if len(unknownCountries) > 0 {
		violations.Add("Unknown selected country(ies): %v", unknownCountries)
	}

	// "all" expansion needs the availability table of the target year, so it
	// is skipped when that year is unknown.
	coherentTY := !violations.Contains(unknownTargetYearError)
	if coherentTY {
		for country, prodTypes := range p.ProdTypes {
			if len(prodTypes) == 1 && prodTypes[0] == eraa.AllKeyword {
				p.ProdTypes[country] = slices.Clone(descr.AggProdTypesFor(country, p.TargetYear))
			}
		}
	}

	msgSuffix := "in keys of dict. of aggreg. prod. types selection"
	var unknownSelectionCountries []string
	for country := range p.ProdTypes {
		if !descr.HasCountry(country) {
			unknownSelectionCountries = append(unknownSelectionCountries, country)
		}
	}
	sort.Strings(unknownSelectionCountries)
	if len(unknownSelectionCountries) > 0 {
		violations.Add("Unknown countrie(s) %s: %v", msgSuffix, unknownSelectionCountries)
	}

	var selectionCountries []string
	for country, prodTypes := range p.ProdTypes {
		if len(prodTypes) > 0 {
			selectionCountries = append(selectionCountries, country)
		}
	}
	sort.Strings(selectionCountries)
	sortedSelected := slices.Clone(p.Countries)
	sort.Strings(sortedSelected)
	if !slices.Equal(selectionCountries, sortedSelected) {
		violations.Add("Countries are different in selection list (%v) versus keys of aggreg. prod. "+
			"types selection dict. - wo None value (%v)", p.Countries, selectionCountries)
	}

	var countriesWithAddedFailure []string
	for _, country := range p.Countries {
		if !descr.HasCountry(country) {
			continue
		}
		if !slices.Contains(p.ProdTypes[country], eraa.FailureAsset) {
			countriesWithAddedFailure = append(countriesWithAddedFailure, country)
			p.ProdTypes[country] = append(p.ProdTypes[country], eraa.FailureAsset)
		}
	}
	if len(countriesWithAddedFailure) > 0 {
		log.Info("A failure asset has been added (to get a feasible UC resolution)",
			zap.Strings("countries", countriesWithAddedFailure))
	}

	if coherentTY {
		msgSuffix := "in values of dict. of aggreg. prod. types selection, for country"
		for country, prodTypes := range p.ProdTypes {
			if slices.Contains(unknownSelectionCountries, country) {
				continue
			}
			available := descr.AggProdTypesFor(country, p.TargetYear)
			seen := make(map[string]bool, len(prodTypes))
			var unknown []string
			for _, prodType := range prodTypes {
				if seen[prodType] {
					violations.Add("Repetition of aggreg. prod. types %s %s", msgSuffix, country)
					break
				}
				seen[prodType] = true
			}
			for _, prodType := range prodTypes {
				if !slices.Contains(available, prodType) {
					unknown = append(unknown, prodType)
				}
			}
			if len(unknown) > 0 {
				violations.Add("Unknown/not available aggreg. prod. types %s %s: %v", msgSuffix, country, unknown)
			}
		}
	}

	allowedPeriod := fmt.Sprintf("[%s, %s]",
		eraa.MinDate.Format(eraa.DateLayoutJSON), eraa.MaxDate.Format(eraa.DateLayoutJSON))
	if p.PeriodStart.Before(eraa.MinDate) || p.PeriodStart.After(eraa.MaxDate) {
		violations.Add("UC period start %s not in allowed period %s",
			p.PeriodStart.Format(eraa.DateLayoutJSON), allowedPeriod)
	}
	if p.PeriodEnd.Before(eraa.MinDate) || p.PeriodEnd.After(eraa.MaxDate) {
		violations.Add("UC period end %s not in allowed period %s",
			p.PeriodEnd.Format(eraa.DateLayoutJSON), allowedPeriod)
	}

	for source, params := range p.FuelSourceOverrides {
		for name, value := range params {
			if value != nil && *value < 0 {
				violations.Add("Updated fuel source %s param %s must be non-negative; but value read %g",
					source, name, *value)
			}
		}
	}

	if violations.Empty() {
		log.Info("Modified LONG-TERM UC PARAMETERS ARE COHERENT!")
		log.Info("SIMULATION CAN START", zap.String("run", p.Describe()))
	}
	return violations
}
