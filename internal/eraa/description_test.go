package eraa

import (
	"slices"
	"testing"
)

func TestParseInterconnection(t *testing.T) {
	interco, err := ParseInterconnection("FR2DE")
	if err != nil {
		t.Fatalf("parse interconnection: %v", err)
	}
	if interco.Origin != "FR" || interco.Destination != "DE" {
		t.Fatalf("got %+v", interco)
	}
	if interco.String() != "FR2DE" {
		t.Fatalf("round trip: got %q", interco.String())
	}
	for _, name := range []string{"", "FR", "2DE", "FR2"} {
		if _, err := ParseInterconnection(name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestParseDescriptionShapeViolations(t *testing.T) {
	_, violations, err := ParseDescription([]byte(`{
		"available_countries": "FR",
		"available_target_years": [2030]
	}`))
	if err != nil {
		t.Fatalf("parse description: %v", err)
	}
	if violations.Empty() || !violations.Contains("available_countries") {
		t.Fatalf("violations: %v", violations.Items())
	}
}

func TestDescriptionProcess(t *testing.T) {
	descr := &Description{
		AvailableCountries:      []string{"FR", "DE"},
		AvailableClimaticYears:  []int{1982, 1989},
		StressTestClimaticYears: []int{3033},
		RawAvailableAggProdTypes: map[string]map[string][]string{
			"FR": {"2030": {"wind_onshore"}},
		},
		RawIntercos:       []string{"FR2DE", "DE2FR"},
		RawEdition:        "2023.2",
		RawGPSCoordinates: map[string][]float64{"FR": {46.2, 2.2}},
		UnitParamsPerAggType: map[string]map[string]any{
			"failure": {"committable": "False", "carrier": "failure"},
		},
	}
	if err := descr.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	if descr.Edition != "2023-2" {
		t.Fatalf("edition: got %q", descr.Edition)
	}
	if len(descr.Intercos) != 2 || descr.Intercos[0].Origin != "FR" {
		t.Fatalf("intercos: got %v", descr.Intercos)
	}
	if descr.GPSCoordinates["FR"] != (Coordinates{46.2, 2.2}) {
		t.Fatalf("coordinates: got %v", descr.GPSCoordinates["FR"])
	}
	// string-encoded booleans are converted, other values untouched
	if descr.UnitParamsPerAggType["failure"]["committable"] != false {
		t.Fatalf("committable: got %v", descr.UnitParamsPerAggType["failure"]["committable"])
	}
	if descr.UnitParamsPerAggType["failure"]["carrier"] != "failure" {
		t.Fatalf("carrier: got %v", descr.UnitParamsPerAggType["failure"]["carrier"])
	}
	// the failure asset is always available
	if got := descr.AggProdTypesFor("FR", 2030); !slices.Contains(got, FailureAsset) {
		t.Fatalf("failure asset not injected: %v", got)
	}

	if !descr.HasClimaticYear(1982, false) || descr.HasClimaticYear(3033, false) {
		t.Fatal("standard climatic year set")
	}
	if !descr.HasClimaticYear(3033, true) || !descr.IsStressTestYear(3033) {
		t.Fatal("stress-test climatic year set")
	}
}

func TestDescriptionProcessIdempotent(t *testing.T) {
	descr := &Description{
		RawIntercos: []string{"FR2DE"},
		RawEdition:  "2023.2",
		RawAvailableAggProdTypes: map[string]map[string][]string{
			"FR": {"2030": {"wind_onshore"}},
		},
	}
	if err := descr.Process(); err != nil {
		t.Fatalf("first process: %v", err)
	}
	first := len(descr.AggProdTypesFor("FR", 2030))
	if err := descr.Process(); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if got := len(descr.AggProdTypesFor("FR", 2030)); got != first {
		t.Fatalf("derived values changed on reprocess: %d vs %d", got, first)
	}
}
