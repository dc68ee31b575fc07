// Package analysis expresses one data-analysis request: a cross-product of
// (country, year, climatic year, extra-params, aggregate type) selections
// driving a CSV export or a plot of previously read data.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/checker"
	"github.com/eraatools/ucprep/internal/dataset"
	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/report"
	"github.com/eraatools/ucprep/internal/timeseries"
)

// Kind is the analysis type requested in the JSON file.
type Kind string

const (
	KindExtract           Kind = "extract"
	KindExtractToMat      Kind = "extract_to_mat"
	KindPlot              Kind = "plot"
	KindPlotDurationCurve Kind = "plot_duration_curve"
)

// AllKinds lists the allowed analysis types.
var AllKinds = []Kind{KindExtract, KindExtractToMat, KindPlot, KindPlotDurationCurve}

func (k Kind) Known() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsPlot reports whether the analysis renders curves, and is therefore
// subject to the curve-count ceiling.
func (k Kind) IsPlot() bool {
	return k == KindPlot || k == KindPlotDurationCurve
}

// defaultCYMode fixes how a missing climatic-year selection is resolved:
// "first" picks the minimum available year, "last" the maximum.
const defaultCYMode = "first"

func defaultClimaticYear(available []int) int {
	cy := available[0]
	for _, y := range available[1:] {
		if defaultCYMode == "last" {
			if y > cy {
				cy = y
			}
		} else if y < cy {
			cy = y
		}
	}
	return cy
}

// ExtraParamCFCapacities is the only recognized extra-parameter name:
// fixed capacities of CF-bearing prod. types, used for net-demand
// calculation in place of the dataset values.
const ExtraParamCFCapacities = "capas_aggreg_pt_with_cf"

// ExtraParams is one extra-parameter case of an analysis; each case adds
// one dimension value to the cross-product.
type ExtraParams struct {
	Values map[string]map[string]float64 `json:"values"`
	Label  string                        `json:"label"`
	Index  int                           `json:"-"`
}

// Process assigns the default label from the 1-based case index.
func (e *ExtraParams) Process() {
	if e.Label == "" {
		e.Label = fmt.Sprintf("case %d", e.Index)
	}
}

// CoherenceCheck validates the extra-parameter names and the aggregate
// types they refer to.
func (e *ExtraParams) CoherenceCheck(descr *eraa.Description) *report.Violations {
	violations := report.NewViolations("in data analysis extra-params")
	var unknownNames []string
	for name := range e.Values {
		if name != ExtraParamCFCapacities {
			unknownNames = append(unknownNames, name)
		}
	}
	if len(unknownNames) > 0 {
		sort.Strings(unknownNames)
		violations.Add("Unknown extra-param names (keys of value dict.): %v", unknownNames)
	}
	if cfCapas, ok := e.Values[ExtraParamCFCapacities]; ok {
		var unknownTypes []string
		for aggType := range cfCapas {
			if !descr.HasCFData(aggType) {
				unknownTypes = append(unknownTypes, aggType)
			}
		}
		if len(unknownTypes) > 0 {
			sort.Strings(unknownTypes)
			violations.Add("Unknown aggreg. prod. type with capa. factor data: %v", unknownTypes)
		}
	}
	return violations
}

// CFCapacities returns the fixed capacities carried by this case, nil when
// none.
func (e *ExtraParams) CFCapacities() map[string]float64 {
	if e == nil {
		return nil
	}
	return e.Values[ExtraParamCFCapacities]
}

// Analysis is one entry of the data-analysis request list.
type Analysis struct {
	Kind          Kind
	DataType      eraa.DataType
	Countries     []string
	Years         []int
	ClimaticYears []int
	AggProdTypes  []string
	ExtraParams   []*ExtraParams

	RawPeriodStart string
	RawPeriodEnd   string
	PeriodStart    time.Time
	PeriodEnd      time.Time

	log *zap.Logger
}

// analysisSchema declares the expected shape of one raw analysis entry.
// Scalar country/year values are tolerated and broadcast while building the
// typed struct.
var analysisSchema = checker.Schema{
	"analysis_type":     checker.KindString,
	"data_type":         checker.KindString,
	"aggreg_prod_types": checker.KindStringOrListOfString,
	"country":           checker.KindStringOrListOfString,
	"year":              checker.KindIntOrListOfInt,
	"climatic_year":     checker.KindIntOrListOfInt,
}

const analysisParamName = "Data analysis params - to set the calc./plot to be done"

// ParseAnalyses decodes the data-analysis JSON list. Shape violations are
// accumulated across all entries and returned for the caller to report.
func ParseAnalyses(data []byte, log *zap.Logger) ([]*Analysis, *report.Violations, error) {
	var rawEntries []map[string]any
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		return nil, nil, fmt.Errorf("parse data-analysis file: %w", err)
	}
	violations := report.NewViolations(analysisParamName)
	analyses := make([]*Analysis, 0, len(rawEntries))
	for _, raw := range rawEntries {
		attrs := map[string]any{}
		for key, value := range raw {
			if value != nil {
				attrs[key] = value
			}
		}
		violations.Merge(checker.Check(attrs, analysisSchema, analysisParamName))
		analyses = append(analyses, analysisFromRaw(attrs, log))
	}
	return analyses, violations, nil
}

func analysisFromRaw(attrs map[string]any, log *zap.Logger) *Analysis {
	a := &Analysis{log: log}
	if s, ok := attrs["analysis_type"].(string); ok {
		a.Kind = Kind(s)
	}
	if s, ok := attrs["data_type"].(string); ok {
		a.DataType = eraa.DataType(s)
	}
	a.Countries = asStringList(attrs["country"])
	a.Years = asIntList(attrs["year"])
	a.ClimaticYears = asIntList(attrs["climatic_year"])
	a.AggProdTypes = asStringList(attrs["aggreg_prod_types"])
	if s, ok := attrs["period_start"].(string); ok {
		a.RawPeriodStart = s
	}
	if s, ok := attrs["period_end"].(string); ok {
		a.RawPeriodEnd = s
	}
	a.ExtraParams = extraParamsFromRaw(attrs["extra_params"])
	return a
}

// asStringList broadcasts a scalar string to a single-element list.
func asStringList(v any) []string {
	switch value := v.(type) {
	case string:
		return []string{value}
	case []any:
		var out []string
		for _, elt := range value {
			if s, ok := elt.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// asIntList broadcasts a scalar to a single-element list. JSON numbers
// decode as float64.
func asIntList(v any) []int {
	switch value := v.(type) {
	case float64:
		return []int{int(value)}
	case []any:
		var out []int
		for _, elt := range value {
			if f, ok := elt.(float64); ok {
				out = append(out, int(f))
			}
		}
		return out
	}
	return nil
}

// extraParamsFromRaw decodes the extra-params entry, a dict or list of
// dicts in JSON.
func extraParamsFromRaw(v any) []*ExtraParams {
	var rawCases []any
	switch value := v.(type) {
	case map[string]any:
		rawCases = []any{value}
	case []any:
		rawCases = value
	default:
		return nil
	}
	var out []*ExtraParams
	for _, rawCase := range rawCases {
		dict, ok := rawCase.(map[string]any)
		if !ok {
			out = append(out, nil)
			continue
		}
		params := &ExtraParams{Values: map[string]map[string]float64{}}
		if label, ok := dict["label"].(string); ok {
			params.Label = label
		}
		if values, ok := dict["values"].(map[string]any); ok {
			for name, rawVals := range values {
				if inner, ok := rawVals.(map[string]any); ok {
					converted := map[string]float64{}
					for key, rawVal := range inner {
						if f, ok := rawVal.(float64); ok {
							converted[key] = f
						}
					}
					params.Values[name] = converted
				} else {
					params.Values[name] = nil
				}
			}
		}
		out = append(out, params)
	}
	return out
}

// Describe returns the request's descriptive string, logged once found
// coherent.
func (a *Analysis) Describe() string {
	var b strings.Builder
	b.WriteString("ERAA data analysis with params:")
	fmt.Fprintf(&b, "\n- of type %s", a.Kind)
	fmt.Fprintf(&b, "\n- for data type: %s", a.DataType)
	fmt.Fprintf(&b, "\n- countries: %v", a.Countries)
	fmt.Fprintf(&b, "\n- years: %v", a.Years)
	fmt.Fprintf(&b, "\n- climatic years: %v", a.ClimaticYears)
	if len(a.AggProdTypes) > 0 {
		fmt.Fprintf(&b, "\n- aggreg. prod. types: %v", a.AggProdTypes)
	}
	if !a.PeriodStart.IsZero() && !a.PeriodEnd.IsZero() {
		fmt.Fprintf(&b, "\n- period: [%s, %s)", a.PeriodStart.Format(eraa.DateLayoutJSON),
			a.PeriodEnd.Format(eraa.DateLayoutJSON))
	}
	return b.String()
}

// Process normalizes the request: defaults the climatic year, resolves the
// aggregate-type dimension for capacity-factor analyses, parses the period
// and indexes the extra-parameter cases.
func (a *Analysis) Process(descr *eraa.Description) error {
	if len(a.ClimaticYears) == 0 {
		cy := defaultClimaticYear(descr.AvailableClimaticYears)
		a.log.Info("Default climatic year used (as not defined in DataAnalysis JSON file)",
			zap.Int("climatic_year", cy))
		a.ClimaticYears = []int{cy}
	}

	if len(a.AggProdTypes) == 0 && a.DataType == eraa.CapaFactor {
		types, err := a.cfAggProdTypesIntersection(descr)
		if err != nil {
			return err
		}
		a.AggProdTypes = types
	}

	if err := a.setPeriod(); err != nil {
		return err
	}

	for i, params := range a.ExtraParams {
		if params == nil {
			continue
		}
		params.Index = i + 1
		params.Process()
	}
	return nil
}

// cfAggProdTypesIntersection derives the CF-bearing aggregate types
// available for every (country, year) pair of the request. The sets must be
// identical across pairs; an ambiguous aggregation target is rejected, not
// silently narrowed.
func (a *Analysis) cfAggProdTypesIntersection(descr *eraa.Description) ([]string, error) {
	var reference []string
	for _, country := range a.Countries {
		for _, year := range a.Years {
			var withCF []string
			for _, aggType := range descr.AggProdTypesFor(country, year) {
				if descr.HasCFData(aggType) {
					withCF = append(withCF, aggType)
				}
			}
			sort.Strings(withCF)
			if reference == nil {
				reference = withCF
				continue
			}
			if !equalStringSlices(reference, withCF) {
				return nil, fmt.Errorf("not possible to analyse capa factors data without aggreg. "+
					"prod. type(s) selection for multiple countrie(s)*year(s) with different sets of "+
					"available agg. prod types with CF data: %s/%d has %v, expected %v",
					country, year, withCF, reference)
			}
		}
	}
	return reference, nil
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// setPeriod parses the period bounds and fills the defaults: start of the
// fictive calendar, then a fixed number of days capped at the calendar end.
func (a *Analysis) setPeriod() error {
	var err error
	a.PeriodStart = eraa.MinDate
	if a.RawPeriodStart != "" {
		a.PeriodStart, err = time.Parse(eraa.DateLayoutJSON, a.RawPeriodStart)
		if err != nil {
			return fmt.Errorf("parse analysis period start: %w", err)
		}
	}
	if a.RawPeriodEnd != "" {
		a.PeriodEnd, err = time.Parse(eraa.DateLayoutJSON, a.RawPeriodEnd)
		if err != nil {
			return fmt.Errorf("parse analysis period end: %w", err)
		}
	} else {
		a.PeriodEnd = a.PeriodStart.AddDate(0, 0, eraa.DefaultAnalysisDays)
		if a.PeriodEnd.After(eraa.MaxDate) {
			a.PeriodEnd = eraa.MaxDate
		}
		a.log.Info("Period end set from start and default number of days in period",
			zap.String("period_start", a.PeriodStart.Format(eraa.DateLayoutJSON)),
			zap.Int("n_days", eraa.DefaultAnalysisDays))
	}
	return nil
}

// CoherenceCheck validates the request against the descriptor, applies the
// plot curve-count ceiling and coerces the period bounds onto the fictive
// calendar year. All violations are accumulated.
func (a *Analysis) CoherenceCheck(descr *eraa.Description, nCurvesMax int) *report.Violations {
	violations := report.NewViolations("in data analysis params")
	if !a.Kind.Known() {
		violations.Add("Unknown data analysis type: %s", a.Kind)
	}
	var unknownCountries []string
	for _, country := range a.Countries {
		if !descr.HasCountry(country) {
			unknownCountries = append(unknownCountries, country)
		}
	}
	if len(unknownCountries) > 0 {
		violations.Add("Unknown selected countries: %v", unknownCountries)
	}
	var unknownYears []int
	for _, year := range a.Years {
		if !descr.HasTargetYear(year) {
			unknownYears = append(unknownYears, year)
		}
	}
	if len(unknownYears) > 0 {
		violations.Add("Unknown target years: %v", unknownYears)
	}
	var unknownClimaticYears []int
	for _, cy := range a.ClimaticYears {
		if !descr.HasClimaticYear(cy, false) && !descr.HasClimaticYear(cy, true) {
			unknownClimaticYears = append(unknownClimaticYears, cy)
		}
	}
	if len(unknownClimaticYears) > 0 {
		violations.Add("Unknown climatic years: %v", unknownClimaticYears)
	}

	if a.Kind.IsPlot() {
		a.checkCurveCount(nCurvesMax, violations)
	}

	if !a.PeriodEnd.After(a.PeriodStart) {
		violations.Add("Period end %s before start %s", a.PeriodEnd.Format(eraa.DateLayoutJSON),
			a.PeriodStart.Format(eraa.DateLayoutJSON))
	}

	a.PeriodStart, a.PeriodEnd = a.setPeriodToCommonYear(a.PeriodStart, a.PeriodEnd)
	a.PeriodStart, a.PeriodEnd = a.setPeriodToFixedYear(a.PeriodStart, a.PeriodEnd,
		eraa.FictiveCalendarYear)

	for _, params := range a.ExtraParams {
		if params != nil {
			violations.Merge(params.CoherenceCheck(descr))
		}
	}
	return violations
}

// checkCurveCount rejects plots whose dimension-cardinality product exceeds
// the configured ceiling, listing every contributing dimension.
func (a *Analysis) checkCurveCount(nCurvesMax int, violations *report.Violations) {
	nCurves := len(a.Countries) * len(a.Years) * len(a.ClimaticYears)
	dims := []string{
		strings.Join(a.Countries, ", "),
		joinInts(a.Years),
		joinInts(a.ClimaticYears),
	}
	if len(a.ExtraParams) > 0 {
		nCurves *= len(a.ExtraParams)
		labels := make([]string, len(a.ExtraParams))
		for i, params := range a.ExtraParams {
			if params != nil {
				labels[i] = params.Label
			}
		}
		dims = append(dims, strings.Join(labels, ", "))
	}
	if len(a.AggProdTypes) > 0 {
		nCurves *= len(a.AggProdTypes)
		dims = append(dims, strings.Join(a.AggProdTypes, ", "))
	}
	if nCurves > nCurvesMax {
		violations.Add("Too many curves for %s: %d (vs. max allowed %d) - with product of cases:\n* %s",
			a.Kind, nCurves, nCurvesMax, strings.Join(dims, "\n* "))
	}
}

func joinInts(values []int) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.Itoa(v)
	}
	return strings.Join(strs, ", ")
}

// setPeriodToCommonYear reconciles period bounds declared in different
// years: the end bound is moved into the start's year, unless that would
// invert the period, in which case the start moves instead. The choice is
// heuristic when the period straddles a year boundary.
func (a *Analysis) setPeriodToCommonYear(start, end time.Time) (time.Time, time.Time) {
	if start.Year() == end.Year() {
		return start, end
	}
	startYear, endYear := start.Year(), end.Year()
	endBis := setYear(end, startYear)
	commonYear, changed := startYear, "end"
	if endBis.Before(start) {
		start = setYear(start, endYear)
		commonYear, changed = endYear, "start"
	} else {
		end = endBis
	}
	a.log.Warn("Start and end of period do not share same year -> common year considered",
		zap.Int("start_year", startYear), zap.Int("end_year", endYear),
		zap.Int("common_year", commonYear), zap.String("changed_extremity", changed))
	return start, end
}

// setPeriodToFixedYear moves both bounds into the fictive modeling year.
func (a *Analysis) setPeriodToFixedYear(start, end time.Time, year int) (time.Time, time.Time) {
	if start.Year() == year && end.Year() == year {
		return start, end
	}
	a.log.Info("Period bounds not in fixed year -> modified",
		zap.String("period_start", start.Format(eraa.DateLayoutJSON)),
		zap.String("period_end", end.Format(eraa.DateLayoutJSON)), zap.Int("year", year))
	return setYear(start, year), setYear(end, year)
}

func setYear(d time.Time, year int) time.Time {
	return time.Date(year, d.Month(), d.Day(), d.Hour(), d.Minute(), 0, 0, d.Location())
}

// ExtraLabels maps extra-parameter case indices to display labels.
func (a *Analysis) ExtraLabels() map[int]string {
	labels := map[int]string{}
	for _, params := range a.ExtraParams {
		if params != nil {
			labels[params.Index] = params.Label
		}
	}
	return labels
}

// DataKey identifies one read data slice of the analysis cross-product.
type DataKey struct {
	Country      string
	Year         int
	ClimaticYear int
	ExtraIdx     int
}

// CaseData is the data read for one DataKey. Points carries demand-like
// series; CFPoints the aggregate-tagged capacity-factor rows, from which a
// per-aggregate-type slice is selected when the analysis declares that
// dimension.
type CaseData struct {
	Points   []dataset.TimePoint
	CFPoints []dataset.CFPoint
}

// Apply walks the declared cross-product in dimension-list order, shapes
// the surviving cases into a timeseries and dispatches it to the export or
// plot renderer selected by the analysis kind. Missing slices are logged
// and skipped; partial results are allowed.
func (a *Analysis) Apply(perCase map[DataKey]CaseData, outputDir, dtSuffix string,
	style *timeseries.Style) (*timeseries.Timeseries, string, error) {

	name := timeseries.BuildName(a.DataType, a.Countries, a.Years, a.ClimaticYears,
		len(a.ExtraParams), a.AggProdTypes)
	ts := timeseries.New(name, a.DataType, a.log)

	extraIndices := []int{0}
	if len(a.ExtraParams) > 0 {
		extraIndices = extraIndices[:0]
		for _, params := range a.ExtraParams {
			if params == nil {
				extraIndices = append(extraIndices, 0)
			} else {
				extraIndices = append(extraIndices, params.Index)
			}
		}
	}
	aggProdTypes := []string{""}
	if len(a.AggProdTypes) > 0 {
		aggProdTypes = a.AggProdTypes
	}

	for _, country := range a.Countries {
		for _, year := range a.Years {
			for _, cy := range a.ClimaticYears {
				for _, extraIdx := range extraIndices {
					for _, aggType := range aggProdTypes {
						dates, values, ok := caseSlice(perCase, DataKey{country, year, cy, extraIdx}, aggType)
						if !ok {
							a.log.Error("No dates obtained from data -> not integrated in this data analysis",
								zap.String("data_type", string(a.DataType)), zap.String("country", country),
								zap.Int("year", year), zap.Int("climatic_year", cy),
								zap.Int("extra_params_idx", extraIdx))
							continue
						}
						// move fictive-calendar dates into the target year
						for i := range dates {
							dates[i] = setYear(dates[i], year)
						}
						ts.Add(timeseries.CaseKey{
							Country: country, Year: year, ClimaticYear: cy,
							ExtraIdx: extraIdx, AggProdType: aggType,
						}, dates, values)
					}
				}
			}
		}
	}

	if ts.Empty() {
		a.log.Warn("No data obtained for type -> analysis (plot/save to .csv) not done",
			zap.String("data_type", string(a.DataType)))
		return ts, "", nil
	}

	labels := a.ExtraLabels()
	var file string
	var err error
	switch a.Kind {
	case KindPlot:
		file, err = ts.Plot(outputDir, dtSuffix, style, labels)
	case KindPlotDurationCurve:
		file, err = ts.PlotDurationCurve(outputDir, dtSuffix, style, labels)
	case KindExtract:
		file, err = ts.ExportCSV(outputDir, dtSuffix, labels)
	case KindExtractToMat:
		file, err = ts.ExportMatrixCSV(outputDir, dtSuffix, labels)
	default:
		err = fmt.Errorf("unknown analysis kind %q", a.Kind)
	}
	return ts, file, err
}

// caseSlice extracts one case's (dates, values) pair, selecting the
// aggregate-type rows when that dimension applies.
func caseSlice(perCase map[DataKey]CaseData, key DataKey, aggType string) ([]time.Time, []float64, bool) {
	cd, ok := perCase[key]
	if !ok {
		return nil, nil, false
	}
	var dates []time.Time
	var values []float64
	if aggType == "" {
		for _, pt := range cd.Points {
			dates = append(dates, pt.Date)
			values = append(values, pt.Value)
		}
	} else {
		for _, pt := range cd.CFPoints {
			if pt.AggProdType == aggType {
				dates = append(dates, pt.Date)
				values = append(values, pt.Value)
			}
		}
	}
	if len(dates) == 0 {
		return nil, nil, false
	}
	return dates, values, true
}
