// Package eraa holds the typed description of the ERAA reference dataset:
// taxonomies, availability tables and the normalization applied to them
// before any per-run selection is resolved.
package eraa

import "time"

// DataType names one family of input data read from the dataset.
type DataType string

const (
	Demand        DataType = "demand"
	CapaFactor    DataType = "res_capa-factors"
	InstalledCapa DataType = "generation_capas"
	IntercoCapa   DataType = "interco_capas"
	NetDemand     DataType = "net_demand"
)

// AllDataTypes lists every readable datatype. Net demand is derived, not
// read, and is only requested explicitly by data analyses.
var AllDataTypes = []DataType{Demand, CapaFactor, InstalledCapa, IntercoCapa}

// UnitPerDataType gives the physical unit used in plot labels and exports.
var UnitPerDataType = map[DataType]string{
	Demand:        "MW",
	NetDemand:     "MW",
	CapaFactor:    "p.u.",
	InstalledCapa: "MW",
	IntercoCapa:   "MW",
}

// FailureAsset is the synthetic very-high-cost generator injected per
// country/year so that unmet demand stays feasible in the UC model.
const FailureAsset = "failure"

// AllKeyword, as a single-element production-type selection, expands to the
// full available list for the (country, target year) pair.
const AllKeyword = "all"

// The dataset uses a fictive single-year calendar.
const FictiveCalendarYear = 1900

var (
	// MinDate is the first date in the data.
	MinDate = time.Date(FictiveCalendarYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	// MaxDate is the first date NOT in the data (364-day fictive calendar).
	MaxDate = time.Date(FictiveCalendarYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// DateLayoutJSON is the format of period bounds in user-editable JSON files.
const DateLayoutJSON = "2006/01/02"

// DateLayoutCSV is the format of the date column of input CSV files.
const DateLayoutCSV = "2006-01-02 15:04"

// Default period lengths, in days, when the user gives only a start date.
const (
	DefaultUCDays       = 9
	DefaultAnalysisDays = 14
)
