package timeseries

import (
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eraatools/ucprep/internal/eraa"
)

func day(d int) time.Time {
	return time.Date(1900, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildName(t *testing.T) {
	cases := []struct {
		countries    []string
		years        []int
		climatic     []int
		nExtraParams int
		aggProdTypes []string
		want         string
	}{
		{[]string{"FR"}, []int{2030}, []int{1982}, 0, nil, "demand_FR_2030_cy1982"},
		{[]string{"France", "Germany"}, []int{2030}, []int{1982}, 0, nil, "demand_Fra-Ger_2030_cy1982"},
		{[]string{"FR", "DE", "ES"}, []int{2030, 2033}, []int{1982}, 0, nil, "demand_3-countries_2030-2033_cy1982"},
		{[]string{"FR"}, []int{2030}, []int{1982}, 2, []string{"wind_onshore", "solar_pv"},
			"demand_FR_2030_cy1982_2-extraparams_2-aggpts"},
	}
	for _, c := range cases {
		got := BuildName(eraa.Demand, c.countries, c.years, c.climatic, c.nExtraParams, c.aggProdTypes)
		if got != c.want {
			t.Fatalf("got %q, want %q", got, c.want)
		}
	}
}

func TestNameWithDataTypeSuffix(t *testing.T) {
	ts := New("demand_FR_2030_cy1982", eraa.Demand, zap.NewNop())
	got := ts.NameWithDataTypeSuffix("residual")
	if got != "demand_residual_FR_2030_cy1982" {
		t.Fatalf("unexpected name %q", got)
	}
	if ts.NameWithDataTypeSuffix("") != ts.Name {
		t.Fatalf("empty suffix must keep name unchanged")
	}
}

func TestExportCSVDropsEmptyKeyColumns(t *testing.T) {
	ts := New("demand_FR_2030_cy1982", eraa.Demand, zap.NewNop())
	key := CaseKey{Country: "FR", Year: 2030, ClimaticYear: 1982}
	ts.Add(key, []time.Time{day(1), day(2)}, []float64{1000, 1100})

	dir := t.TempDir()
	path, err := ts.ExportCSV(dir, "", nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "country,year,climatic_year,date,value" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("expected 2 data rows, got %d", len(lines)-1)
	}
	if !strings.HasPrefix(lines[1], "FR,2030,1982,1900-01-01 00:00,1000") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(path, "_0101-0102.csv") {
		t.Fatalf("expected period suffix in file name, got %q", path)
	}
}

func TestExportCSVWithAggProdTypeColumn(t *testing.T) {
	ts := New("res_capa-factors_FR_2030_cy1982_2-aggpts", eraa.CapaFactor, zap.NewNop())
	ts.Add(CaseKey{Country: "FR", Year: 2030, ClimaticYear: 1982, AggProdType: "wind_onshore"},
		[]time.Time{day(1)}, []float64{0.3})
	ts.Add(CaseKey{Country: "FR", Year: 2030, ClimaticYear: 1982, AggProdType: "solar_pv"},
		[]time.Time{day(1)}, []float64{0.1})

	path, err := ts.ExportCSV(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "country,year,climatic_year,aggreg_prod_type,date,value" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	// insertion order preserved
	if !strings.Contains(lines[1], "wind_onshore") || !strings.Contains(lines[2], "solar_pv") {
		t.Fatalf("rows out of order: %v", lines[1:])
	}
}

func TestCurveLabelOnlyDiscriminatingDims(t *testing.T) {
	ts := New("demand_fra-ger_2030_cy1982", eraa.Demand, zap.NewNop())
	ts.Add(CaseKey{Country: "France", Year: 2030, ClimaticYear: 1982}, []time.Time{day(1)}, []float64{1})
	ts.Add(CaseKey{Country: "Germany", Year: 2030, ClimaticYear: 1982}, []time.Time{day(1)}, []float64{2})

	attrs := ts.attrsInLegend()
	if !attrs.country || attrs.year || attrs.climaticYear {
		t.Fatalf("only country should discriminate: %+v", attrs)
	}
	label := curveLabel(attrs, ts.Keys()[0], nil)
	if label != "Fra" {
		t.Fatalf("unexpected label %q", label)
	}
}

func TestParseStyleDefaults(t *testing.T) {
	style, err := ParseStyle([]byte(`{"palette": ["#000000"]}`))
	if err != nil {
		t.Fatalf("parse style: %v", err)
	}
	if style.WidthInches != 10 || style.HeightInches != 6 {
		t.Fatalf("expected default figure size, got %+v", style)
	}
	if len(style.Palette) != 1 {
		t.Fatalf("palette must not be replaced when provided")
	}
}
