package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-clv/pkg/models"
)

var sampleResult = models.AggregateResult{
	Summary: models.MetricSummary{
		Total:                 4,
		ControlCLV:            -2500,
		ExperimentalCLV:       12500,
		ControlRepeaters:      1,
		ExperimentalRepeaters: 2,
	},
	EventsPriced:    3,
	MissingOffers:   1,
	UnmatchedOffers: []string{"9"},
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "text", "2021-04-30", sampleResult))
	assert.Equal(t,
		"Customer Analysis\n2021-04-30\nTotal offers sent to date: 4\n"+
			"Total repeaters: Control 1 / Experimental 2\n"+
			"Total CLV (experiment group vs. control) to date: Experiment group $12.5k / Control group $-2.5k\n"+
			"Events priced at zero cost: 1 (unknown offer 1, invalid value 0)\n",
		buf.String())
}

func TestWriteReport_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "csv", "", sampleResult))
	assert.Equal(t,
		"metric,value\ntotal,4\ncontrol_clv,-2500\nexperimental_clv,12500\ncontrol_repeaters,1\nexperimental_repeaters,2\n",
		buf.String())
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "json", "2021-04-30", sampleResult))

	var rep report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, "2021-04-30", rep.AsOf)
	assert.Equal(t, sampleResult, rep.Result)
	assert.Equal(t, 12.5, rep.CLV.Data[0].Y)
}

func TestSummaryCommand_EndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "offer_lookup.csv"),
		[]byte("offer_id,offervalue\n1,10\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "offer_history.csv"),
		[]byte("offer_id,in_controlgroup,is_repeater\n1,1,0\n1,0,1\n"), 0o644))
	out := filepath.Join(root, "out.csv")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"summary",
		"--config", filepath.Join(root, "none.yaml"),
		"--data-root", root,
		"--format", "csv",
		"--out", out,
	})
	require.NoError(t, cmd.Execute())

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"metric,value\ntotal,2\ncontrol_clv,-10\nexperimental_clv,40\ncontrol_repeaters,0\nexperimental_repeaters,1\n",
		string(got))
}

func TestSummaryCommand_LoadFailure(t *testing.T) {
	root := t.TempDir()
	cmd := newRootCmd()
	cmd.SetArgs([]string{"summary", "--config", filepath.Join(root, "none.yaml"), "--data-root", root})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
