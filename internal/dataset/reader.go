package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/eraatools/ucprep/internal/eraa"
)

// Per-datatype subfolders under the dataset root.
const (
	demandSubfolder       = "demand"
	cfSubfolder           = "res_capa-factors"
	genCapasSubfolder     = "generation_capas"
	intercoCapasSubfolder = "interco_capas"
	// alternate subfolder carrying the stress-test climatic years
	stressTestSubfolder = "cy_stress-test"
)

// Fixed column names of the input CSV files; consumed by name, not position.
const (
	colDate            = "date"
	colClimaticYear    = "climatic_year"
	colValue           = "value"
	colProdType        = "production_type"
	colZoneOrigin      = "zone_origin"
	colZoneDestination = "zone_destination"
)

// capacityColumns are the value columns of the installed-capacity files,
// summed within each aggregate group.
var capacityColumns = []string{
	"power_capacity",
	"power_capacity_turbine",
	"power_capacity_pumping",
	"power_capacity_injection",
	"power_capacity_offtake",
	"energy_capacity",
}

// FileFormat configures the CSV dialect of the input files.
type FileFormat struct {
	ColumnSep  string `yaml:"column_sep" json:"column_sep"`
	DecimalSep string `yaml:"decimal_sep" json:"decimal_sep"`
}

// DefaultFileFormat matches the published dataset files.
func DefaultFileFormat() FileFormat {
	return FileFormat{ColumnSep: ";", DecimalSep: "."}
}

// Reader reads per-country CSV slices from one dataset root folder.
type Reader struct {
	Root       string
	Format     FileFormat
	StressTest bool
	// subfolder holding the stress-test climatic years of each stress-testable
	// datatype
	StressTestFolder string
	Log              *zap.Logger
}

// NewReader returns a reader with zeroed format fields replaced by defaults.
func NewReader(root string, format FileFormat, stressTest bool, log *zap.Logger) *Reader {
	def := DefaultFileFormat()
	if format.ColumnSep == "" {
		format.ColumnSep = def.ColumnSep
	}
	if format.DecimalSep == "" {
		format.DecimalSep = def.DecimalSep
	}
	return &Reader{Root: root, Format: format, StressTest: stressTest,
		StressTestFolder: stressTestSubfolder, Log: log}
}

// fileSuffix is the common {target year}_{country} suffix of per-country files.
func fileSuffix(targetYear int, country string) string {
	return fmt.Sprintf("%d_%s", targetYear, country)
}

func (r *Reader) subfolder(datatype string, stressTestable bool) string {
	dir := filepath.Join(r.Root, datatype)
	if stressTestable && r.StressTest {
		dir = filepath.Join(dir, r.StressTestFolder)
	}
	return dir
}

// Demand reads the demand file of one (country, target year), filtered to
// the requested period and climatic year.
func (r *Reader) Demand(country string, targetYear, climaticYear int, period Period) ([]TimePoint, error) {
	file := filepath.Join(r.subfolder(demandSubfolder, true),
		fmt.Sprintf("demand_%s.csv", fileSuffix(targetYear, country)))
	rows, err := r.readRows(file)
	if err != nil {
		return nil, err
	}
	return r.filterTimePoints(rows, climaticYear, period)
}

// CapacityFactors reads, for each CF-bearing aggregate production type in
// aggTypes, one file per underlying raw type, filters identically to demand,
// then reduces many raw series to one per aggregate type by averaging per
// (aggregate type, date). Missing files and empty selections are warnings:
// the corresponding types are simply not accounted for.
func (r *Reader) CapacityFactors(country string, targetYear, climaticYear int, aggTypes []string,
	cfTaxonomy map[string][]string, period Period) ([]CFPoint, error) {

	folder := r.subfolder(cfSubfolder, true)
	suffix := fileSuffix(targetYear, country)
	var all []CFPoint
	for _, aggType := range aggTypes {
		var perAgg []CFPoint
		for _, rawType := range cfTaxonomy[aggType] {
			file := filepath.Join(folder, fmt.Sprintf("res_capa-factor_%s_%s.csv", rawType, suffix))
			rows, err := r.readRows(file)
			if errors.Is(err, fs.ErrNotExist) {
				r.Log.Warn("RES capa. factor data file does not exist: prod. type not accounted for here",
					zap.String("prod_type", rawType), zap.String("country", country))
				continue
			}
			if err != nil {
				return nil, err
			}
			points, err := r.filterTimePoints(rows, climaticYear, period)
			if err != nil {
				return nil, err
			}
			if len(points) == 0 {
				r.Log.Warn("No RES capa. factor data for prod. type and climatic year",
					zap.String("prod_type", rawType), zap.Int("climatic_year", climaticYear))
				continue
			}
			for _, pt := range points {
				perAgg = append(perAgg, CFPoint{
					AggProdType: aggType, Date: pt.Date, ClimaticYear: pt.ClimaticYear, Value: pt.Value,
				})
			}
		}
		if len(perAgg) == 0 {
			r.Log.Warn("No data available for aggregate RES prod. type -> not accounted for in UC model here",
				zap.String("agg_prod_type", aggType))
			continue
		}
		all = append(all, perAgg...)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return aggregateCFPoints(all), nil
}

// aggregateCFPoints averages the values sharing one (aggregate type, date)
// key. The reduction is order-independent: rows are grouped by key, and the
// output is sorted by (aggregate type, date).
func aggregateCFPoints(points []CFPoint) []CFPoint {
	type key struct {
		aggType string
		date    time.Time
	}
	groups := make(map[key][]float64)
	climaticYears := make(map[key]int)
	for _, pt := range points {
		k := key{pt.AggProdType, pt.Date}
		groups[k] = append(groups[k], pt.Value)
		climaticYears[k] = pt.ClimaticYear
	}
	out := make([]CFPoint, 0, len(groups))
	for k, values := range groups {
		out = append(out, CFPoint{
			AggProdType:  k.aggType,
			Date:         k.date,
			ClimaticYear: climaticYears[k],
			Value:        stat.Mean(values, nil),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AggProdType != out[j].AggProdType {
			return out[i].AggProdType < out[j].AggProdType
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// InstalledCapacities reads the one-per-country capacity file, sanitizes raw
// labels, maps them onto aggregate types via the taxonomy, sums the value
// columns per aggregate group and restricts to the selected types. A missing
// file is a warning: the country is not accounted for.
func (r *Reader) InstalledCapacities(country string, targetYear int, capaTaxonomy map[string][]string,
	selectedAggTypes []string) ([]CapacityRecord, error) {

	file := filepath.Join(r.subfolder(genCapasSubfolder, false),
		fmt.Sprintf("generation_capas_%s.csv", fileSuffix(targetYear, country)))
	rows, err := r.readRows(file)
	if errors.Is(err, fs.ErrNotExist) {
		r.Log.Warn("Generation capas data file does not exist: country not accounted for here",
			zap.String("country", country))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(selectedAggTypes))
	for _, aggType := range selectedAggTypes {
		selected[aggType] = true
	}

	sums := make(map[string]*CapacityRecord)
	var order []string
	for _, row := range rows {
		raw := SanitizeProdTypeLabel(row[colProdType])
		aggType := aggTypeOfRaw(raw, capaTaxonomy)
		if aggType == "" || !selected[aggType] {
			continue
		}
		rec, ok := sums[aggType]
		if !ok {
			rec = &CapacityRecord{AggProdType: aggType}
			sums[aggType] = rec
			order = append(order, aggType)
		}
		for i, col := range capacityColumns {
			value, err := r.parseFloat(row[col])
			if err != nil {
				return nil, fmt.Errorf("%s: column %s: %w", file, col, err)
			}
			switch i {
			case 0:
				rec.PowerCapacity += value
			case 1:
				rec.PowerCapacityTurbine += value
			case 2:
				rec.PowerCapacityPumping += value
			case 3:
				rec.PowerCapacityInjection += value
			case 4:
				rec.PowerCapacityOfftake += value
			case 5:
				rec.EnergyCapacity += value
			}
		}
	}
	sort.Strings(order)
	records := make([]CapacityRecord, 0, len(order))
	for _, aggType := range order {
		records = append(records, *sums[aggType])
	}
	return records, nil
}

// ErrIntercoFileMissing marks the absence of the interconnection-capacity
// file, fatal only for multi-country runs.
var ErrIntercoFileMissing = errors.New("interconnection capas data file does not exist")

// IntercoCapacities reads the one-per-target-year interconnection file and
// keeps only links whose both endpoints are selected. With more than one
// selected country a missing file is an error (the UC model cannot run
// without cross-zone flows); with one it is only a warning.
func (r *Reader) IntercoCapacities(countries []string, targetYear int) (map[eraa.Interconnection]float64, error) {
	file := filepath.Join(r.subfolder(intercoCapasSubfolder, false),
		fmt.Sprintf("interco_capas_%d.csv", targetYear))
	rows, err := r.readRows(file)
	if errors.Is(err, fs.ErrNotExist) {
		if len(countries) > 1 {
			return nil, fmt.Errorf("%w: impossible to run UC model given that %d > 1 countries considered",
				ErrIntercoFileMissing, len(countries))
		}
		r.Log.Warn("Interconnection capas data file does not exist")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	selected := make(map[string]bool, len(countries))
	for _, country := range countries {
		selected[country] = true
	}
	capas := make(map[eraa.Interconnection]float64)
	for _, row := range rows {
		origin, destination := row[colZoneOrigin], row[colZoneDestination]
		if !selected[origin] || !selected[destination] {
			continue
		}
		value, err := r.parseFloat(row[colValue])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		capas[eraa.Interconnection{Origin: origin, Destination: destination}] = value
	}
	return capas, nil
}

// readRows reads a CSV file into one map per row, keyed by header name.
func (r *Reader) readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = []rune(r.Format.ColumnSep)[0]
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	var rows []map[string]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[strings.TrimSpace(name)] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// filterTimePoints keeps the rows of the requested climatic year whose date
// falls inside the period.
func (r *Reader) filterTimePoints(rows []map[string]string, climaticYear int, period Period) ([]TimePoint, error) {
	var points []TimePoint
	for _, row := range rows {
		cy, err := strconv.Atoi(strings.TrimSpace(row[colClimaticYear]))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", colClimaticYear, err)
		}
		if cy != climaticYear {
			continue
		}
		date, err := parseDate(row[colDate])
		if err != nil {
			return nil, err
		}
		if !period.Contains(date) {
			continue
		}
		value, err := r.parseFloat(row[colValue])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", colValue, err)
		}
		points = append(points, TimePoint{Date: date, ClimaticYear: cy, Value: value})
	}
	return points, nil
}

// parseDate accepts the dataset's datetime format, falling back to a bare
// date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(eraa.DateLayoutCSV, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func (r *Reader) parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if r.Format.DecimalSep != "." {
		s = strings.ReplaceAll(s, r.Format.DecimalSep, ".")
	}
	return strconv.ParseFloat(s, 64)
}
