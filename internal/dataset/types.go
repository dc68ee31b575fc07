// Package dataset reads the per-country CSV slices selected by one run,
// reconciles them against the reference taxonomy and derives the
// generation-unit records fed to the external optimizer.
package dataset

import "time"

// TimePoint is one row of a demand (or net-demand) timeseries.
type TimePoint struct {
	Date         time.Time
	ClimaticYear int
	Value        float64
}

// CFPoint is one row of aggregated capacity-factor data, tagged with the
// aggregate production type it was reduced to.
type CFPoint struct {
	AggProdType  string
	Date         time.Time
	ClimaticYear int
	Value        float64
}

// CapacityRecord is the installed-capacity row of one aggregate production
// type, after raw labels have been mapped and summed.
type CapacityRecord struct {
	AggProdType            string
	PowerCapacity          float64
	PowerCapacityTurbine   float64
	PowerCapacityPumping   float64
	PowerCapacityInjection float64
	PowerCapacityOfftake   float64
	EnergyCapacity         float64
}

// Period is a [Start, End) date range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether date falls inside the half-open range.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.Start) && date.Before(p.End)
}
