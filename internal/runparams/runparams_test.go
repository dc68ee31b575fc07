package runparams

import (
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/eraa"
)

func testDescr(t *testing.T) *eraa.Description {
	t.Helper()
	descr := &eraa.Description{
		AvailableCountries:      []string{"FR", "DE"},
		AvailableTargetYears:    []int{2030, 2033},
		AvailableClimaticYears:  []int{1982, 1989},
		StressTestClimaticYears: []int{3033},
		RawAvailableAggProdTypes: map[string]map[string][]string{
			"FR": {"2030": {"wind_onshore", "nuclear"}},
			"DE": {"2030": {"wind_onshore"}},
		},
	}
	if err := descr.Process(); err != nil {
		t.Fatalf("process description: %v", err)
	}
	return descr
}

func testParams() *Params {
	return &Params{
		ClimaticYear:   1982,
		TargetYear:     2030,
		Countries:      []string{"FR"},
		ProdTypes:      map[string][]string{"FR": {eraa.AllKeyword}},
		RawPeriodStart: "1900/01/01",
	}
}

func TestProcessDefaultsPeriodEnd(t *testing.T) {
	p := testParams()
	if err := p.Process([]string{"FR", "DE"}, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	want := time.Date(1900, 1, 1+eraa.DefaultUCDays, 0, 0, 0, 0, time.UTC)
	if !p.PeriodEnd.Equal(want) {
		t.Fatalf("period end: got %v, want %v", p.PeriodEnd, want)
	}
	// non-selected available countries get an empty selection entry
	if prodTypes, ok := p.ProdTypes["DE"]; !ok || len(prodTypes) != 0 {
		t.Fatalf("DE selection: got %v", p.ProdTypes["DE"])
	}
}

func TestProcessIntercoOverrides(t *testing.T) {
	p := testParams()
	p.RawIntercoOverrides = map[string]float64{"FR2DE": 1500}
	if err := p.Process([]string{"FR", "DE"}, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	key := eraa.Interconnection{Origin: "FR", Destination: "DE"}
	if got := p.IntercoOverrides[key]; got != 1500 {
		t.Fatalf("interco override: got %g", got)
	}

	p = testParams()
	p.RawIntercoOverrides = map[string]float64{"FRDE": 1500}
	if err := p.Process([]string{"FR", "DE"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for malformed interconnection name")
	}
}

func TestCoherenceCheckExpandsAllAndAddsFailure(t *testing.T) {
	descr := testDescr(t)
	p := testParams()
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	p.SetStressTest(descr)
	if p.StressTest {
		t.Fatal("1982 must not be a stress-test year")
	}
	violations := p.CoherenceCheck(descr, zap.NewNop())
	if !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
	got := p.ProdTypes["FR"]
	if !slices.Contains(got, "nuclear") || !slices.Contains(got, "wind_onshore") {
		t.Fatalf("all keyword not expanded: %v", got)
	}
	if !slices.Contains(got, eraa.FailureAsset) {
		t.Fatalf("failure asset not added: %v", got)
	}
}

func TestCoherenceCheckAccumulatesViolations(t *testing.T) {
	descr := testDescr(t)
	p := testParams()
	p.TargetYear = 2050
	p.ClimaticYear = 1800
	p.Countries = []string{"FR", "XX"}
	p.ProdTypes = map[string][]string{"FR": {eraa.AllKeyword}, "XX": {eraa.AllKeyword}}
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	p.SetStressTest(descr)
	violations := p.CoherenceCheck(descr, zap.NewNop())
	if !violations.Contains("Unknown target year 2050") {
		t.Fatalf("missing target year violation: %v", violations.Items())
	}
	if !violations.Contains("Unknown climatic year 1800") {
		t.Fatalf("missing climatic year violation: %v", violations.Items())
	}
	if !violations.Contains("Unknown selected country(ies)") {
		t.Fatalf("missing country violation: %v", violations.Items())
	}
}

func TestCoherenceCheckDuplicateThenUnknownCountry(t *testing.T) {
	descr := testDescr(t)
	p := testParams()
	p.Countries = []string{"FR", "FR", "XX"}
	p.ProdTypes = map[string][]string{"FR": {"nuclear"}, "XX": {"wind_onshore"}}
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	violations := p.CoherenceCheck(descr, zap.NewNop())
	if !violations.Contains("Repetition in selected countries") {
		t.Fatalf("missing repetition violation: %v", violations.Items())
	}
	// the unknown country after the duplicate must still be reported
	if !violations.Contains("Unknown selected country(ies): [XX]") {
		t.Fatalf("missing unknown country violation: %v", violations.Items())
	}
}

func TestCoherenceCheckNoFailureAssetForUnknownCountry(t *testing.T) {
	descr := testDescr(t)
	p := testParams()
	p.Countries = []string{"FR", "XX"}
	p.ProdTypes = map[string][]string{"FR": {"nuclear"}, "XX": {"wind_onshore"}}
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	violations := p.CoherenceCheck(descr, zap.NewNop())
	if !violations.Contains("Unknown selected country(ies): [XX]") {
		t.Fatalf("missing unknown country violation: %v", violations.Items())
	}
	if slices.Contains(p.ProdTypes["XX"], eraa.FailureAsset) {
		t.Fatalf("failure asset injected into unknown country: %v", p.ProdTypes["XX"])
	}
	if !slices.Contains(p.ProdTypes["FR"], eraa.FailureAsset) {
		t.Fatalf("failure asset missing for known country: %v", p.ProdTypes["FR"])
	}
}

func TestCoherenceCheckStressTestYear(t *testing.T) {
	descr := testDescr(t)
	p := testParams()
	p.ClimaticYear = 3033
	p.ProdTypes = map[string][]string{"FR": {"wind_onshore"}}
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	p.SetStressTest(descr)
	if !p.StressTest {
		t.Fatal("3033 must be detected as a stress-test year")
	}
	if violations := p.CoherenceCheck(descr, zap.NewNop()); !violations.Empty() {
		t.Fatalf("violations: %v", violations.Items())
	}
}

func TestCoherenceCheckRejectsSelectionMismatch(t *testing.T) {
	descr := testDescr(t)
	p := testParams()
	// DE has a non-empty selection but is not a selected country
	p.ProdTypes = map[string][]string{"FR": {"nuclear"}, "DE": {"wind_onshore"}}
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	violations := p.CoherenceCheck(descr, zap.NewNop())
	if !violations.Contains("Countries are different in selection list") {
		t.Fatalf("missing mismatch violation: %v", violations.Items())
	}
}

func TestCoherenceCheckFuelSourceOverrides(t *testing.T) {
	descr := testDescr(t)
	negative := -5.0
	p := testParams()
	p.FuelSourceOverrides = map[string]map[string]*float64{
		"gas": {"price_per_mwh": &negative},
	}
	if err := p.Process(descr.AvailableCountries, zap.NewNop()); err != nil {
		t.Fatalf("process: %v", err)
	}
	violations := p.CoherenceCheck(descr, zap.NewNop())
	if !violations.Contains("must be non-negative") {
		t.Fatalf("missing fuel source violation: %v", violations.Items())
	}
}
