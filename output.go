package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"offer-clv/pkg/chart"
	"offer-clv/pkg/models"
)

type report struct {
	AsOf      string                 `json:"asOf"`
	Result    models.AggregateResult `json:"result"`
	Repeaters chart.RadialChart      `json:"repeaters"`
	CLV       chart.BarChart         `json:"clv"`
}

func writeReport(w io.Writer, format, asOf string, res models.AggregateResult) error {
	rep := report{
		AsOf:      asOf,
		Result:    res,
		Repeaters: chart.Repeaters(res.Summary),
		CLV:       chart.CLV(res.Summary),
	}

	switch format {
	case "pretty":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "text":
		return writeText(w, rep)
	case "csv":
		return writeMetricsCSV(w, res.Summary)
	default:
		return json.NewEncoder(w).Encode(rep)
	}
}

func writeText(w io.Writer, rep report) error {
	s := rep.Result.Summary
	_, err := fmt.Fprintf(w,
		"Customer Analysis\n%s\nTotal offers sent to date: %d\nTotal repeaters: %s %d / %s %d\nTotal CLV (experiment group vs. control) to date: %s %s / %s %s\n",
		rep.AsOf,
		s.Total,
		chart.LabelControl, s.ControlRepeaters,
		chart.LabelExperimental, s.ExperimentalRepeaters,
		chart.CategoryExperiment, chart.FormatThousands(rep.CLV.Data[0].Y),
		chart.CategoryControl, chart.FormatThousands(rep.CLV.Data[1].Y),
	)
	if err != nil {
		return err
	}
	if n := rep.Result.MissingOffers + rep.Result.InvalidValues; n > 0 {
		_, err = fmt.Fprintf(w, "Events priced at zero cost: %d (unknown offer %d, invalid value %d)\n",
			n, rep.Result.MissingOffers, rep.Result.InvalidValues)
	}
	return err
}

func writeMetricsCSV(w io.Writer, s models.MetricSummary) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"metric", "value"},
		{"total", strconv.Itoa(s.Total)},
		{"control_clv", strconv.FormatFloat(s.ControlCLV, 'f', -1, 64)},
		{"experimental_clv", strconv.FormatFloat(s.ExperimentalCLV, 'f', -1, 64)},
		{"control_repeaters", strconv.Itoa(s.ControlRepeaters)},
		{"experimental_repeaters", strconv.Itoa(s.ExperimentalRepeaters)},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
