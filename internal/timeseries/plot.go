package timeseries

import (
	"encoding/json"
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Style carries the figure styling read from the plot-params JSON file.
type Style struct {
	WidthInches  float64  `json:"width_inches"`
	HeightInches float64  `json:"height_inches"`
	// hex colors, cycled over the curves in case order
	Palette []string `json:"palette"`
}

// DefaultStyle is used when no plot-params file is provided.
func DefaultStyle() *Style {
	return &Style{
		WidthInches:  10,
		HeightInches: 6,
		Palette: []string{
			"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
			"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
		},
	}
}

// ParseStyle decodes a plot-params JSON document, filling zeroed fields
// with defaults.
func ParseStyle(data []byte) (*Style, error) {
	style := &Style{}
	if err := json.Unmarshal(data, style); err != nil {
		return nil, fmt.Errorf("parse plot params: %w", err)
	}
	def := DefaultStyle()
	if style.WidthInches == 0 {
		style.WidthInches = def.WidthInches
	}
	if style.HeightInches == 0 {
		style.HeightInches = def.HeightInches
	}
	if len(style.Palette) == 0 {
		style.Palette = def.Palette
	}
	return style, nil
}

// colorAt cycles the palette; a malformed hex entry falls back to black.
func (s *Style) colorAt(i int) color.Color {
	hex := s.Palette[i%len(s.Palette)]
	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Black
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func (ts *Timeseries) yLabel() string {
	label := strings.ReplaceAll(string(ts.DataType), "_", " ")
	label = strings.ReplaceAll(label, "-", " ")
	if ts.Unit != "" {
		label += fmt.Sprintf(" (%s)", strings.ToUpper(ts.Unit))
	}
	return label
}

// Plot renders one line per case against dates, saved as PNG.
func (ts *Timeseries) Plot(outputDir, dtSuffix string, style *Style, extraLabels map[int]string) (string, error) {
	if style == nil {
		style = DefaultStyle()
	}
	p := plot.New()
	p.Title.Text = ts.periodTitle()
	p.X.Label.Text = "date"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02"}
	p.Y.Label.Text = ts.yLabel()

	attrs := ts.attrsInLegend()
	for i, key := range ts.keys {
		dates, values := ts.dates[key], ts.values[key]
		xys := make(plotter.XYs, len(values))
		for j := range values {
			xys[j].X = float64(dates[j].Unix())
			xys[j].Y = values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", err
		}
		line.Color = style.colorAt(i)
		p.Add(line)
		if label := curveLabel(attrs, key, extraLabels); label != "" {
			p.Legend.Add(label, line)
		}
	}

	name := strings.ToLower(ts.NameWithDataTypeSuffix(dtSuffix))
	path := filepath.Join(outputDir, name+".png")
	if err := p.Save(vg.Length(style.WidthInches)*vg.Inch,
		vg.Length(style.HeightInches)*vg.Inch, path); err != nil {
		return "", err
	}
	ts.log.Info("Timeseries plot saved", zap.String("file", path))
	return path, nil
}

// PlotDurationCurve renders one monotone non-increasing curve per case:
// values sorted descending against their time-slot rank.
func (ts *Timeseries) PlotDurationCurve(outputDir, dtSuffix string, style *Style,
	extraLabels map[int]string) (string, error) {

	if style == nil {
		style = DefaultStyle()
	}
	p := plot.New()
	p.Title.Text = ts.periodTitle()
	p.X.Label.Text = "time slots"
	p.Y.Label.Text = ts.yLabel()

	attrs := ts.attrsInLegend()
	for i, key := range ts.keys {
		values := ts.values[key]
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		xys := make(plotter.XYs, len(sorted))
		for j, v := range sorted {
			xys[j].X = float64(j + 1)
			xys[j].Y = v
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", err
		}
		line.Color = style.colorAt(i)
		p.Add(line)
		if label := curveLabel(attrs, key, extraLabels); label != "" {
			p.Legend.Add(label, line)
		}
	}

	name := strings.ToLower(ts.NameWithDataTypeSuffix(dtSuffix))
	path := filepath.Join(outputDir, name+"_duration-curve.png")
	if err := p.Save(vg.Length(style.WidthInches)*vg.Inch,
		vg.Length(style.HeightInches)*vg.Inch, path); err != nil {
		return "", err
	}
	ts.log.Info("Duration-curve plot saved", zap.String("file", path))
	return path, nil
}

// periodTitle formats the covered period for plot titles.
func (ts *Timeseries) periodTitle() string {
	suffix := ts.periodSuffix()
	if suffix == "" {
		return ""
	}
	bounds := strings.Split(strings.TrimPrefix(suffix, "_"), "-")
	return fmt.Sprintf("Period %s to %s", bounds[0], bounds[1])
}
