// Package chart shapes a MetricSummary into the data the two dashboard
// widgets consume. Rendering itself happens client-side.
package chart

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"offer-clv/pkg/models"
)

const (
	LabelControl      = "Control"
	LabelExperimental = "Experimental"

	CategoryExperiment = "Experiment group"
	CategoryControl    = "Control group"
)

// Slice is one segment of the radial chart.
type Slice struct {
	Label    string  `json:"label"`
	SubLabel string  `json:"subLabel"`
	Angle    float64 `json:"angle"`
}

// RadialChart is the repeaters pie.
type RadialChart struct {
	Title      string  `json:"title"`
	ShowLabels bool    `json:"showLabels"`
	Data       []Slice `json:"data"`
}

// Bar is one category of the bar chart.
type Bar struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// BarChart is the CLV comparison, values in thousands.
type BarChart struct {
	Title string `json:"title"`
	XType string `json:"xType"`
	YUnit string `json:"yUnit"`
	Data  []Bar  `json:"data"`
}

// Repeaters builds the control vs experimental repeater pie.
func Repeaters(s models.MetricSummary) RadialChart {
	return RadialChart{
		Title:      "Total repeaters",
		ShowLabels: true,
		Data: []Slice{
			{Label: LabelControl, SubLabel: strconv.Itoa(s.ControlRepeaters), Angle: float64(s.ControlRepeaters)},
			{Label: LabelExperimental, SubLabel: strconv.Itoa(s.ExperimentalRepeaters), Angle: float64(s.ExperimentalRepeaters)},
		},
	}
}

// CLV builds the experiment vs control bar chart, CLV divided by 1000.
func CLV(s models.MetricSummary) BarChart {
	return BarChart{
		Title: "Total CLV (experiment group vs. control) to date",
		XType: "ordinal",
		YUnit: "k$",
		Data: []Bar{
			{X: CategoryExperiment, Y: s.ExperimentalCLV / 1000},
			{X: CategoryControl, Y: s.ControlCLV / 1000},
		},
	}
}

// FormatThousands renders a y-axis tick already expressed in thousands: 12.5 → "$12.5k".
func FormatThousands(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("$%dk", int64(v))
	}
	return "$" + strconv.FormatFloat(v, 'f', -1, 64) + "k"
}

// WriteCSV writes label,value rows for a RadialChart or a BarChart.
func WriteCSV(w io.Writer, c any) error {
	cw := csv.NewWriter(w)
	switch c := c.(type) {
	case RadialChart:
		_ = cw.Write([]string{"label", "value"})
		for _, s := range c.Data {
			_ = cw.Write([]string{s.Label, fmtNum(s.Angle)})
		}
	case BarChart:
		_ = cw.Write([]string{"category", "value"})
		for _, b := range c.Data {
			_ = cw.Write([]string{b.X, fmtNum(b.Y)})
		}
	default:
		return fmt.Errorf("unsupported chart type %T", c)
	}
	cw.Flush()
	return cw.Error()
}

func fmtNum(v float64) string {
	// Whole numbers → no decimals
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
