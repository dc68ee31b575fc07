// Package timeseries shapes selected data slices for rendering or tabular
// export: one Timeseries holds, per selection case, a date vector and a
// value vector, keyed by the (country, year, climatic year, extra-params,
// aggregate type) tuple that produced it.
package timeseries

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/eraa"
)

const (
	nameSep    = "_"
	subNameSep = "-"
)

// CaseKey identifies one selection case of an analysis cross-product.
// ExtraIdx is the 1-based extra-parameter case index, 0 when the case
// carries none. AggProdType is empty when no aggregate-type dimension
// applies.
type CaseKey struct {
	Country      string
	Year         int
	ClimaticYear int
	ExtraIdx     int
	AggProdType  string
}

// Timeseries is the per-case data of one analysis, in insertion order.
type Timeseries struct {
	Name     string
	DataType eraa.DataType
	Unit     string

	keys   []CaseKey
	dates  map[CaseKey][]time.Time
	values map[CaseKey][]float64

	log *zap.Logger
}

// New returns an empty timeseries.
func New(name string, dataType eraa.DataType, log *zap.Logger) *Timeseries {
	return &Timeseries{
		Name:     name,
		DataType: dataType,
		Unit:     eraa.UnitPerDataType[dataType],
		dates:    map[CaseKey][]time.Time{},
		values:   map[CaseKey][]float64{},
		log:      log,
	}
}

// Add records one case's data. Re-adding a key overwrites its data but
// keeps its original position.
func (ts *Timeseries) Add(key CaseKey, dates []time.Time, values []float64) {
	if _, ok := ts.dates[key]; !ok {
		ts.keys = append(ts.keys, key)
	}
	ts.dates[key] = dates
	ts.values[key] = values
}

// Keys lists the cases in insertion order, which is the declared dimension
// iteration order of the analysis that built the timeseries.
func (ts *Timeseries) Keys() []CaseKey { return ts.keys }

// Empty reports whether no case carries data.
func (ts *Timeseries) Empty() bool { return len(ts.keys) == 0 }

func (ts *Timeseries) Dates(key CaseKey) []time.Time { return ts.dates[key] }
func (ts *Timeseries) Values(key CaseKey) []float64  { return ts.values[key] }

// BuildName builds a timeseries name from the analysis dimensions, e.g.
// "demand_fra-ger_2030_cy1982" or "res_capa-factors_3-countries_2030-2033_cy1982_2-aggpts".
func BuildName(dataType eraa.DataType, countries []string, years, climaticYears []int,
	nExtraParams int, aggProdTypes []string) string {

	var countriesSuffix string
	switch n := len(countries); {
	case n == 1:
		countriesSuffix = countries[0]
	case n == 2:
		trigrams := make([]string, n)
		for i, c := range countries {
			trigrams[i] = trigram(c)
		}
		countriesSuffix = strings.Join(trigrams, subNameSep)
	default:
		countriesSuffix = fmt.Sprintf("%d%scountries", n, subNameSep)
	}

	parts := []string{string(dataType), countriesSuffix, yearsSuffix(years, ""),
		yearsSuffix(climaticYears, "cy")}
	if nExtraParams > 0 {
		parts = append(parts, fmt.Sprintf("%d%sextraparams", nExtraParams, subNameSep))
	}
	if len(aggProdTypes) > 0 {
		parts = append(parts, fmt.Sprintf("%d%saggpts", len(aggProdTypes), subNameSep))
	}
	return strings.Join(parts, nameSep)
}

func trigram(country string) string {
	if len(country) > 3 {
		return country[:3]
	}
	return country
}

func yearsSuffix(years []int, prefix string) string {
	strs := make([]string, len(years))
	for i, y := range years {
		strs[i] = strconv.Itoa(y)
	}
	return prefix + strings.Join(strs, subNameSep)
}

// NameWithDataTypeSuffix inserts a suffix right after the datatype part of
// the timeseries name, to identify variants of an output file.
func (ts *Timeseries) NameWithDataTypeSuffix(suffix string) string {
	if suffix == "" {
		return ts.Name
	}
	n := len(string(ts.DataType))
	return strings.Join([]string{ts.Name[:n], suffix, ts.Name[n+1:]}, nameSep)
}

// periodSuffix formats the covered period as mmdd-mmdd for file names.
func (ts *Timeseries) periodSuffix() string {
	var minDate, maxDate time.Time
	first := true
	for _, dates := range ts.dates {
		for _, d := range dates {
			if first || d.Before(minDate) {
				minDate = d
			}
			if first || d.After(maxDate) {
				maxDate = d
			}
			first = false
		}
	}
	if first {
		return ""
	}
	return fmt.Sprintf("_%02d%02d-%02d%02d", minDate.Month(), minDate.Day(),
		maxDate.Month(), maxDate.Day())
}

// ExportCSV writes all cases to one CSV file, each row carrying the key
// columns of its case. The extra-params and aggregate-type columns are
// dropped when entirely empty. extraLabels maps extra-param case indices to
// their display labels.
func (ts *Timeseries) ExportCSV(outputDir, dtSuffix string, extraLabels map[int]string) (string, error) {
	withExtra, withAggPT := false, false
	for _, key := range ts.keys {
		if key.ExtraIdx > 0 {
			withExtra = true
		}
		if key.AggProdType != "" {
			withAggPT = true
		}
	}

	header := []string{"country", "year", "climatic_year"}
	if withExtra {
		header = append(header, "extra_params")
	}
	if withAggPT {
		header = append(header, "aggreg_prod_type")
	}
	header = append(header, "date", "value")

	name := strings.ToLower(ts.NameWithDataTypeSuffix(dtSuffix))
	path := filepath.Join(outputDir, name+ts.periodSuffix()+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, key := range ts.keys {
		dates, values := ts.dates[key], ts.values[key]
		for i := range values {
			row := []string{key.Country, strconv.Itoa(key.Year), strconv.Itoa(key.ClimaticYear)}
			if withExtra {
				row = append(row, extraLabels[key.ExtraIdx])
			}
			if withAggPT {
				row = append(row, key.AggProdType)
			}
			row = append(row, dates[i].Format(eraa.DateLayoutCSV),
				strconv.FormatFloat(values[i], 'g', -1, 64))
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	ts.log.Info("Timeseries saved to CSV", zap.String("file", path))
	return path, nil
}

// ExportMatrixCSV writes all cases side by side: one date column, then one
// value column per case, labeled by its discriminating dimensions. Dates
// are taken from the first case; shorter series leave trailing cells empty.
func (ts *Timeseries) ExportMatrixCSV(outputDir, dtSuffix string, extraLabels map[int]string) (string, error) {
	if ts.Empty() {
		return "", fmt.Errorf("no data to export for %s", ts.Name)
	}
	attrs := ts.attrsInLegend()
	header := []string{"date"}
	for _, key := range ts.keys {
		label := curveLabel(attrs, key, extraLabels)
		if label == "" {
			label = "value"
		}
		header = append(header, label)
	}

	name := strings.ToLower(ts.NameWithDataTypeSuffix(dtSuffix))
	path := filepath.Join(outputDir, name+ts.periodSuffix()+"_mat.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	dates := ts.dates[ts.keys[0]]
	for i, date := range dates {
		row := []string{date.Format(eraa.DateLayoutCSV)}
		for _, key := range ts.keys {
			values := ts.values[key]
			if i < len(values) {
				row = append(row, strconv.FormatFloat(values[i], 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	ts.log.Info("Timeseries saved to matrix CSV", zap.String("file", path))
	return path, nil
}

// legendAttrs lists the key dimensions taking more than one value across
// the cases; only those appear in curve labels.
type legendAttrs struct {
	country, year, climaticYear, extra, aggProdType bool
}

func (ts *Timeseries) attrsInLegend() legendAttrs {
	countries := map[string]bool{}
	years := map[int]bool{}
	climaticYears := map[int]bool{}
	extras := map[int]bool{}
	aggTypes := map[string]bool{}
	for _, key := range ts.keys {
		countries[key.Country] = true
		years[key.Year] = true
		climaticYears[key.ClimaticYear] = true
		extras[key.ExtraIdx] = true
		aggTypes[key.AggProdType] = true
	}
	return legendAttrs{
		country:      len(countries) > 1,
		year:         len(years) > 1,
		climaticYear: len(climaticYears) > 1,
		extra:        len(extras) > 1,
		aggProdType:  len(aggTypes) > 1,
	}
}

// curveLabel builds the legend label of one case from the discriminating
// dimensions.
func curveLabel(attrs legendAttrs, key CaseKey, extraLabels map[int]string) string {
	var parts []string
	if attrs.country {
		parts = append(parts, trigram(key.Country))
	}
	if attrs.year {
		parts = append(parts, fmt.Sprintf("TY=%d", key.Year))
	}
	if attrs.climaticYear {
		parts = append(parts, fmt.Sprintf("CY=%d", key.ClimaticYear))
	}
	if attrs.aggProdType && key.AggProdType != "" {
		parts = append(parts, key.AggProdType)
	}
	if attrs.extra {
		if label, ok := extraLabels[key.ExtraIdx]; ok {
			parts = append(parts, label)
		} else {
			parts = append(parts, "no extra-args")
		}
	}
	return strings.Join(parts, ", ")
}
