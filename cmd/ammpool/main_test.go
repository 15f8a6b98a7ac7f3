package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammPool/internal/pool"
)

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	out, err := execute(t, "quote", "--config", emptyConfig(t),
		"--reserve-in", "1000", "--reserve-out", "1000", "--amount-in", "100", "--fee", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "amount_out: 90.909090909090909091\n")
	assert.Contains(t, out, "spot_price: 1\n")
	assert.Contains(t, out, "effective_price: 1.1\n")
	assert.Contains(t, out, "price_impact: 0.1\n")
}

func TestQuoteRejectsEmptyReserve(t *testing.T) {
	_, err := execute(t, "quote", "--config", emptyConfig(t),
		"--reserve-in", "0", "--reserve-out", "1000", "--amount-in", "100")
	require.Error(t, err)
}

func TestQuoteRejectsFeeOutsideUnitRange(t *testing.T) {
	for _, fee := range []string{"-0.1", "1.5", "abc"} {
		_, err := execute(t, "quote", "--config", emptyConfig(t),
			"--reserve-in", "1000", "--reserve-out", "1000", "--amount-in", "100", "--fee="+fee)
		require.ErrorIs(t, err, pool.ErrInvalidFeeRate, fee)
	}
}

func TestSimulateCommand(t *testing.T) {
	dir := t.TempDir()
	scenario := filepath.Join(dir, "scenario.jsonl")
	lines := `{"op":"fund","timestamp":1700000000,"account":"lp","asset":"0x00000000000000000000000000000000000000aa","amount":"1000"}
{"op":"fund","account":"lp","asset":"0x00000000000000000000000000000000000000bb","amount":"1000"}
{"op":"create","account":"lp","pool":"p","asset_a":"0x00000000000000000000000000000000000000aa","amount_a":"1000","asset_b":"0x00000000000000000000000000000000000000bb","amount_b":"1000","fee":"0.003"}
{"op":"price","account":"lp","pool":"p"}
`
	require.NoError(t, os.WriteFile(scenario, []byte(lines), 0o644))

	events := filepath.Join(dir, "out", "events.jsonl")
	metrics := filepath.Join(dir, "out", "metrics.prom")
	out, err := execute(t, "simulate", "--config", emptyConfig(t),
		"--scenario", scenario, "--out", events, "--metrics-out", metrics, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "operations=4 applied=4 rejected=0 failed=0 pools=1")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ammpool_pool_created_total 1")

	_, err = os.Stat(events)
	require.NoError(t, err)
}
