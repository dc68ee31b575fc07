package dataset

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Canonical parameter names of the optimizer framework. Unit templates in the
// reference JSON files address parameters by these names.
const (
	ParamName               = "name"
	ParamType               = "type"
	ParamCarrier            = "carrier"
	ParamPNom               = "p_nom"
	ParamPMinPU             = "p_min_pu"
	ParamPMaxPU             = "p_max_pu"
	ParamMarginalCost       = "marginal_cost"
	ParamEfficiency         = "efficiency"
	ParamCommittable        = "committable"
	ParamMaxHours           = "max_hours"
	ParamSOCInit            = "state_of_charge_initial"
	ParamEfficiencyStore    = "efficiency_store"
	ParamEfficiencyDispatch = "efficiency_dispatch"
)

// Names of the complementary parameters whose source is declared per
// aggregate type in the descriptor (value "from_eraa_data" or
// "from_json_tb_modif").
const (
	complemPowerCapa   = "power_capa"
	complemCapaFactors = "capa_factors"
)

// GenerationUnitData is the flat parameter record of one simulatable asset,
// consumed by the external optimizer. Identity is by Name. Optional scalar
// parameters are pointers so an unset parameter is distinguishable from zero.
type GenerationUnitData struct {
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Carrier            string    `json:"carrier,omitempty"`
	PNom               *float64  `json:"p_nom,omitempty"`
	PMinPU             *float64  `json:"p_min_pu,omitempty"`
	PMaxPU             *float64  `json:"p_max_pu,omitempty"`
	PMaxPUSeries       []float64 `json:"p_max_pu_series,omitempty"`
	MarginalCost       *float64  `json:"marginal_cost,omitempty"`
	Efficiency         *float64  `json:"efficiency,omitempty"`
	Committable        *bool     `json:"committable,omitempty"`
	MaxHours           *float64  `json:"max_hours,omitempty"`
	SOCInit            *float64  `json:"state_of_charge_initial,omitempty"`
	EfficiencyStore    *float64  `json:"efficiency_store,omitempty"`
	EfficiencyDispatch *float64  `json:"efficiency_dispatch,omitempty"`
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

// UnitName builds the name of a generation unit from its country and
// aggregate production type.
func UnitName(country, aggProdType string) string {
	return country + "_" + aggProdType
}

// NonNullAttrNames lists the canonical names of the parameters carrying a
// value, for comparison against the per-type minimum-required sets. A
// per-unit capacity-factor series counts as p_max_pu, the name the optimizer
// reads it under.
func (u *GenerationUnitData) NonNullAttrNames() []string {
	names := []string{ParamName, ParamType}
	if u.Carrier != "" {
		names = append(names, ParamCarrier)
	}
	if u.PNom != nil {
		names = append(names, ParamPNom)
	}
	if u.PMinPU != nil {
		names = append(names, ParamPMinPU)
	}
	if u.PMaxPU != nil || u.PMaxPUSeries != nil {
		names = append(names, ParamPMaxPU)
	}
	if u.MarginalCost != nil {
		names = append(names, ParamMarginalCost)
	}
	if u.Efficiency != nil {
		names = append(names, ParamEfficiency)
	}
	if u.Committable != nil {
		names = append(names, ParamCommittable)
	}
	if u.MaxHours != nil {
		names = append(names, ParamMaxHours)
	}
	if u.SOCInit != nil {
		names = append(names, ParamSOCInit)
	}
	if u.EfficiencyStore != nil {
		names = append(names, ParamEfficiencyStore)
	}
	if u.EfficiencyDispatch != nil {
		names = append(names, ParamEfficiencyDispatch)
	}
	sort.Strings(names)
	return names
}

// applyTemplate copies the descriptor's default parameter values for one
// aggregate type into the unit. Recognized keys are enumerated; unknown keys
// are warned about and dropped.
func (u *GenerationUnitData) applyTemplate(template map[string]any, log *zap.Logger) {
	for key, raw := range template {
		switch key {
		case ParamName:
			if s, ok := raw.(string); ok {
				u.Name = s
			}
		case ParamType:
			if s, ok := raw.(string); ok {
				u.Type = s
			}
		case ParamCarrier:
			if s, ok := raw.(string); ok {
				u.Carrier = s
			}
		case ParamPNom:
			if v, ok := asFloat(raw); ok {
				u.PNom = floatPtr(v)
			}
		case ParamPMinPU:
			if v, ok := asFloat(raw); ok {
				u.PMinPU = floatPtr(v)
			}
		case ParamPMaxPU:
			if v, ok := asFloat(raw); ok {
				u.PMaxPU = floatPtr(v)
			}
		case ParamMarginalCost:
			if v, ok := asFloat(raw); ok {
				u.MarginalCost = floatPtr(v)
			}
		case ParamEfficiency:
			if v, ok := asFloat(raw); ok {
				u.Efficiency = floatPtr(v)
			}
		case ParamCommittable:
			if b, ok := raw.(bool); ok {
				u.Committable = boolPtr(b)
			}
		case ParamMaxHours:
			if v, ok := asFloat(raw); ok {
				u.MaxHours = floatPtr(v)
			}
		case ParamSOCInit:
			if v, ok := asFloat(raw); ok {
				u.SOCInit = floatPtr(v)
			}
		case ParamEfficiencyStore:
			if v, ok := asFloat(raw); ok {
				u.EfficiencyStore = floatPtr(v)
			}
		case ParamEfficiencyDispatch:
			if v, ok := asFloat(raw); ok {
				u.EfficiencyDispatch = floatPtr(v)
			}
		default:
			log.Warn("Unknown unit parameter in template, dropped", zap.String("param", key))
		}
	}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// applyStorageParams derives the storage parameters of an asset carrying an
// energy capacity. Hydro-like assets declare turbine/pumping powers,
// stock-like ones injection/offtake; when both are present the stock pair
// wins, matching the declaration order of the capacity files.
func (u *GenerationUnitData) applyStorageParams(rec CapacityRecord) {
	if rec.PowerCapacityTurbine > 0 {
		pNom := maxAbs(rec.PowerCapacityTurbine, rec.PowerCapacityPumping)
		u.PNom = floatPtr(pNom)
		u.PMinPU = floatPtr(rec.PowerCapacityPumping / pNom)
		u.PMaxPU = floatPtr(rec.PowerCapacityTurbine / pNom)
		u.MaxHours = floatPtr(rec.EnergyCapacity / pNom)
	}
	if rec.PowerCapacityInjection > 0 {
		pNom := maxAbs(rec.PowerCapacityInjection, rec.PowerCapacityOfftake)
		u.PNom = floatPtr(pNom)
		u.PMinPU = floatPtr(-rec.PowerCapacityOfftake / pNom)
		u.PMaxPU = floatPtr(rec.PowerCapacityInjection / pNom)
		u.MaxHours = floatPtr(rec.EnergyCapacity / pNom)
	}
}

func maxAbs(a, b float64) float64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

func (u *GenerationUnitData) String() string {
	return fmt.Sprintf("unit %s (type %s)", u.Name, u.Type)
}
