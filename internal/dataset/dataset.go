package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/eraa"
	"github.com/eraatools/ucprep/internal/report"
	"github.com/eraatools/ucprep/internal/runparams"
)

// Dataset is the resolved per-country data of one run-parameter selection,
// plus the generation-unit records derived from it. It is mutated
// incrementally while each datatype is read and is owned by a single run.
type Dataset struct {
	Source     string
	StressTest bool

	Demand      map[string][]TimePoint
	NetDemand   map[string][]TimePoint
	CapaFactors map[string][]CFPoint
	Capacities  map[string][]CapacityRecord
	IntercoCapas map[eraa.Interconnection]float64
	// {country: list of associated generation units}
	Units map[string][]*GenerationUnitData

	log *zap.Logger
}

// New returns an empty dataset for one run.
func New(source string, stressTest bool, log *zap.Logger) *Dataset {
	return &Dataset{Source: source, StressTest: stressTest, log: log}
}

// ReadOptions narrows what ReadCountriesData reads. Zero value reads every
// datatype except net demand, which is derived and only requested by data
// analyses.
type ReadOptions struct {
	DataTypes []eraa.DataType
	// optional restriction of the aggregate prod. types read for CF data
	SubTypes []string
	// capacities of CF-bearing prod. types fixed by the caller, used in
	// place of the dataset values for net-demand calculation only
	CFCapacities map[string]float64
}

// ReadCountriesData reads, per selected country, the requested datatypes
// from the reader, applies the run's overrides and derives net demand when
// asked for. Interconnection capacities are read once, not per country.
func (d *Dataset) ReadCountriesData(r *Reader, params *runparams.Params, descr *eraa.Description,
	opts ReadOptions) error {

	selected := opts.DataTypes
	if selected == nil {
		selected = slices.Clone(eraa.AllDataTypes)
	}
	toRead := slices.Clone(selected)
	if slices.Contains(selected, eraa.NetDemand) {
		for _, dt := range []eraa.DataType{eraa.Demand, eraa.InstalledCapa, eraa.CapaFactor} {
			if !slices.Contains(toRead, dt) {
				toRead = append(toRead, dt)
			}
		}
	}

	d.Demand = map[string][]TimePoint{}
	d.NetDemand = map[string][]TimePoint{}
	d.CapaFactors = map[string][]CFPoint{}
	d.Capacities = map[string][]CapacityRecord{}

	period := Period{Start: params.PeriodStart, End: params.PeriodEnd}
	cfTaxonomy := descr.AggProdTypesDef[string(eraa.CapaFactor)]
	capaTaxonomy := descr.AggProdTypesDef[string(eraa.InstalledCapa)]

	for _, country := range params.Countries {
		d.log.Info("### For country", zap.String("country", country),
			zap.Strings("selected_agg_prod_types", params.ProdTypes[country]))

		var demand []TimePoint
		if slices.Contains(toRead, eraa.Demand) {
			var err error
			demand, err = r.Demand(country, params.TargetYear, params.ClimaticYear, period)
			if err != nil {
				return fmt.Errorf("demand data for %s: %w", country, err)
			}
			if slices.Contains(selected, eraa.Demand) {
				d.Demand[country] = demand
			}
		}

		var cfTypes []string
		var cfPoints []CFPoint
		if slices.Contains(toRead, eraa.CapaFactor) {
			cfTypes = cfProdTypesToRead(params.ProdTypes[country], descr.ProdTypesWithCF, opts.SubTypes)
			var err error
			cfPoints, err = r.CapacityFactors(country, params.TargetYear, params.ClimaticYear,
				cfTypes, cfTaxonomy, period)
			if err != nil {
				return fmt.Errorf("capacity-factor data for %s: %w", country, err)
			}
			if len(cfTypes) > 0 && cfPoints == nil {
				d.log.Warn("No RES data available for country -> not accounted for in UC model here",
					zap.String("country", country))
			}
			if slices.Contains(selected, eraa.CapaFactor) {
				d.CapaFactors[country] = cfPoints
			}
		}

		var capas []CapacityRecord
		if slices.Contains(toRead, eraa.InstalledCapa) {
			if len(opts.CFCapacities) > 0 {
				d.log.Warn("Dataset capas for CF-bearing prod. types replaced by fixed values, "+
					"for net demand calculation only", zap.Any("capas", opts.CFCapacities))
			}
			var err error
			capas, err = r.InstalledCapacities(country, params.TargetYear, capaTaxonomy,
				params.ProdTypes[country])
			if err != nil {
				return fmt.Errorf("installed-capacity data for %s: %w", country, err)
			}
			if slices.Contains(params.ProdTypes[country], eraa.FailureAsset) {
				capas = append(capas, CapacityRecord{
					AggProdType:   eraa.FailureAsset,
					PowerCapacity: params.FailurePowerCapa,
				})
			}
			capas = d.overrideCapacities(capas, params.CapacityOverrides[country])
			if slices.Contains(selected, eraa.InstalledCapa) {
				d.Capacities[country] = capas
			}
			d.logPowerCapacities(country, capas)
		}

		if slices.Contains(selected, eraa.NetDemand) {
			d.NetDemand[country] = d.calcNetDemand(country, demand, capas, cfPoints, cfTypes,
				opts.CFCapacities)
		}
	}

	if slices.Contains(selected, eraa.IntercoCapa) {
		capas, err := r.IntercoCapacities(params.Countries, params.TargetYear)
		if err != nil {
			return err
		}
		if capas != nil {
			for link, value := range params.IntercoOverrides {
				capas[link] = value
			}
		}
		d.IntercoCapas = capas
	}
	return nil
}

// cfProdTypesToRead restricts the country's selection to the CF-bearing
// aggregate types, optionally intersected with a sub-datatype selection.
func cfProdTypesToRead(selectedAggTypes, typesWithCF, subTypes []string) []string {
	candidates := selectedAggTypes
	if subTypes != nil {
		candidates = nil
		for _, aggType := range selectedAggTypes {
			if slices.Contains(subTypes, aggType) {
				candidates = append(candidates, aggType)
			}
		}
	}
	var out []string
	for _, aggType := range candidates {
		if slices.Contains(typesWithCF, aggType) {
			out = append(out, aggType)
		}
	}
	return out
}

// overrideCapacities replaces power-capacity values by the user-supplied
// ones, keyed by aggregate type.
func (d *Dataset) overrideCapacities(capas []CapacityRecord, overrides map[string]float64) []CapacityRecord {
	if len(capas) == 0 || len(overrides) == 0 {
		return capas
	}
	d.log.Info("OVERWRITTEN ERAA prod. capacity values, in MW", zap.Any("new_capas", overrides))
	for i := range capas {
		if value, ok := overrides[capas[i].AggProdType]; ok {
			capas[i].PowerCapacity = value
		}
	}
	return capas
}

func (d *Dataset) logPowerCapacities(country string, capas []CapacityRecord) {
	powerCapas := make(map[string]float64, len(capas))
	for _, rec := range capas {
		powerCapas[rec.AggProdType] = rec.PowerCapacity
	}
	d.log.Info("-> power capacity values, in MW", zap.String("country", country),
		zap.Any("capas", powerCapas))
}

// calcNetDemand subtracts, for each CF-bearing selected type, capacity times
// capacity factor from demand at each timestep. Capacity-factor values are
// matched by date; a type with no CF rows contributes zero, with a warning.
func (d *Dataset) calcNetDemand(country string, demand []TimePoint, capas []CapacityRecord,
	cfPoints []CFPoint, cfTypes []string, fixedCapas map[string]float64) []TimePoint {

	net := make([]TimePoint, len(demand))
	copy(net, demand)

	var typesWithoutCF []string
	var typesWithFixedCapa []string
	for _, aggType := range cfTypes {
		capacity, fromArg := fixedCapas[aggType]
		if fromArg {
			typesWithFixedCapa = append(typesWithFixedCapa, aggType)
		} else {
			for _, rec := range capas {
				if rec.AggProdType == aggType {
					capacity = rec.PowerCapacity
					break
				}
			}
		}
		cfByDate := make(map[time.Time]float64)
		for _, pt := range cfPoints {
			if pt.AggProdType == aggType {
				cfByDate[pt.Date] = pt.Value
			}
		}
		if len(cfByDate) == 0 {
			typesWithoutCF = append(typesWithoutCF, aggType)
			continue
		}
		for i := range net {
			net[i].Value -= capacity * cfByDate[net[i].Date]
		}
	}
	if len(typesWithoutCF) > 0 {
		d.log.Warn("No capa. factor data available to account for prod. types in net demand calculation",
			zap.String("country", country), zap.Strings("prod_types", typesWithoutCF))
	}
	if len(typesWithFixedCapa) > 0 {
		used := make(map[string]float64, len(typesWithFixedCapa))
		for _, aggType := range typesWithFixedCapa {
			used[aggType] = fixedCapas[aggType]
		}
		d.log.Info("For net demand calculation, prod types with capa values fixed by caller, in MW",
			zap.Any("capas", used))
	}
	return net
}

// CompleteData replaces missing per-country entries with empty placeholders
// so downstream lookups never hit a nil slice.
func (d *Dataset) CompleteData() {
	for _, m := range []map[string][]TimePoint{d.Demand, d.NetDemand} {
		for country, points := range m {
			if points == nil {
				m[country] = []TimePoint{}
			}
		}
	}
	for country, points := range d.CapaFactors {
		if points == nil {
			d.CapaFactors[country] = []CFPoint{}
		}
	}
	for country, recs := range d.Capacities {
		if recs == nil {
			d.Capacities[country] = []CapacityRecord{}
		}
	}
}

// AggProdTypes lists the aggregate production types present in one
// country's capacity data, in file order.
func (d *Dataset) AggProdTypes(country string) []string {
	recs := d.Capacities[country]
	types := make([]string, 0, len(recs))
	for _, rec := range recs {
		types = append(types, rec.AggProdType)
	}
	return types
}

// BuildGenerationUnits derives, for each country and each aggregate type
// present in its capacity data, one generation-unit record: the descriptor's
// default template, then the complementary parameters it declares, then
// failure-specific values, then storage-derived parameters, a user-declared
// power capacity winning last.
func (d *Dataset) BuildGenerationUnits(params *runparams.Params, descr *eraa.Description) error {
	d.Units = map[string][]*GenerationUnitData{}
	for _, country := range params.Countries {
		if _, ok := d.Capacities[country]; !ok {
			continue
		}
		d.log.Debug("- for country", zap.String("country", country))
		units := []*GenerationUnitData{}
		for _, rec := range d.Capacities[country] {
			aggType := rec.AggProdType
			d.log.Debug("  * for aggreg. prod. type", zap.String("agg_prod_type", aggType))

			unit := &GenerationUnitData{}
			template, ok := descr.UnitParamsPerAggType[aggType]
			if !ok {
				return fmt.Errorf("no unit parameter template for aggregate prod. type %q", aggType)
			}
			unit.applyTemplate(template, d.log)
			unit.Name = UnitName(country, aggType)
			unit.Type = aggType

			complem := descr.ComplemParamsPerAggType[aggType]
			switch {
			case len(complem) > 0:
				if _, ok := complem[complemPowerCapa]; ok {
					unit.PNom = floatPtr(rec.PowerCapacity)
				}
				if _, ok := complem[complemCapaFactors]; ok {
					unit.PMaxPUSeries = d.cfSeries(country, aggType)
				}
			case aggType == eraa.FailureAsset:
				unit.PNom = floatPtr(rec.PowerCapacity)
				unit.MarginalCost = floatPtr(params.FailurePenalty)
				unit.Committable = boolPtr(false)
			}

			switch {
			case rec.EnergyCapacity > 0:
				unit.applyStorageParams(rec)
				if rec.PowerCapacity > 0 {
					unit.PNom = floatPtr(rec.PowerCapacity)
				}
			case rec.PowerCapacityTurbine > 0:
				// DSR-like asset: reinjection at declared turbine power
				unit.PNom = floatPtr(maxAbs(rec.PowerCapacityTurbine, 0))
				unit.PMinPU = floatPtr(0)
				unit.PMaxPU = floatPtr(1)
				if rec.PowerCapacity > 0 {
					unit.PNom = floatPtr(rec.PowerCapacity)
				}
			}
			units = append(units, unit)
		}
		d.Units[country] = units
	}
	return nil
}

// cfSeries extracts one aggregate type's capacity-factor values for a
// country, in date order.
func (d *Dataset) cfSeries(country, aggType string) []float64 {
	var values []float64
	for _, pt := range d.CapaFactors[country] {
		if pt.AggProdType == aggType {
			values = append(values, pt.Value)
		}
	}
	return values
}

// ControlMinUnitParams checks that every unit carries the minimum required
// parameter set declared for its type, reporting every missing combination.
func (d *Dataset) ControlMinUnitParams(minParamsPerAggType map[string][]string) *report.Violations {
	violations := report.NewViolations("in generation units parameters")
	for country, units := range d.Units {
		for _, unit := range units {
			required, ok := minParamsPerAggType[unit.Type]
			if !ok {
				violations.Add("country %s, unit name %s: no minimal parameter set declared for type %s",
					country, unit.Name, unit.Type)
				continue
			}
			set := unit.NonNullAttrNames()
			var missing []string
			for _, name := range required {
				if !slices.Contains(set, name) {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				violations.Add("country %s, unit name %s and type %s with missing parameters: %v",
					country, unit.Name, unit.Type, missing)
			}
		}
	}
	return violations
}

// SetCommittableFalse disables dynamic constraints on every unit, logging
// the units whose value actually changed.
func (d *Dataset) SetCommittableFalse() {
	modified := map[string][]string{}
	for country, units := range d.Units {
		for _, unit := range units {
			if unit.Committable != nil && *unit.Committable {
				modified[country] = append(modified[country], unit.Name)
			}
			unit.Committable = boolPtr(false)
		}
	}
	d.log.Info("Set committable parameter to False, i.e. run without dynamic constraints",
		zap.Any("modified_units", modified))
}

// DumpUnitsJSON saves the generation-unit records, keyed by country.
func (d *Dataset) DumpUnitsJSON(path string) error {
	d.log.Info("Save generation units data into JSON file", zap.String("file", path))
	data, err := json.MarshalIndent(d.Units, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
