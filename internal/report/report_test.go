package report_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/report"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/store"
)

func sampleResults() []*backtest.StrategyResult {
	return []*backtest.StrategyResult{
		{
			Symbol:       "RELIANCE",
			RuleStack:    []ruleset.RuleDef{{Name: "rsi_oversold", Type: "rsi_oversold"}},
			Metrics:      backtest.Metrics{EdgeScore: 0.71, WinPct: 0.6, Sharpe: 1.2, TotalReturn: 0.15, TotalTrades: 12},
			RunTimestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			ConfigHash:   "abcd1234",
		},
	}
}

func TestWriteStrategiesJSONAndCSV(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults()

	require.NoError(t, report.WriteStrategiesJSON(results, dir))
	require.NoError(t, report.WriteStrategiesCSV(results, dir))

	jsonBytes, err := os.ReadFile(filepath.Join(dir, "strategies.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), "RELIANCE")

	csvBytes, err := os.ReadFile(filepath.Join(dir, "strategies.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csvBytes), "rsi_oversold")
	assert.Contains(t, string(csvBytes), "0.7100")
}

func TestWritePositionsCSVLeavesOpenPositionFieldsBlank(t *testing.T) {
	dir := t.TempDir()
	stack := []ruleset.RuleDef{{Name: "sma_cross", Type: "sma_cross"}}
	open := store.NewPosition("INFY", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 1500, stack)

	require.NoError(t, report.WritePositionsCSV([]store.Position{open}, dir))

	csvBytes, err := os.ReadFile(filepath.Join(dir, "positions.csv"))
	require.NoError(t, err)
	content := string(csvBytes)
	assert.Contains(t, content, "INFY")
	assert.Contains(t, content, "OPEN")
	assert.Contains(t, content, "sma_cross")
	assert.Contains(t, content, "sma_cross,,,,,\n")
}

func TestWritePositionsCSVIncludesExitFieldsForClosedPosition(t *testing.T) {
	dir := t.TempDir()
	stack := []ruleset.RuleDef{{Name: "sma_cross", Type: "sma_cross"}}
	entry := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	exit := entry.AddDate(0, 0, 5)
	exitPrice := 1600.0
	returnPct := 0.0667
	days := 5
	reason := "Time limit: 5 days"
	pos := store.NewPosition("INFY", entry, 1500, stack)
	pos.Status = store.PositionClosed
	pos.ExitDate = &exit
	pos.ExitPrice = &exitPrice
	pos.FinalReturnPct = &returnPct
	pos.DaysHeld = &days
	pos.ExitReason = &reason

	require.NoError(t, report.WritePositionsCSV([]store.Position{pos}, dir))

	csvBytes, err := os.ReadFile(filepath.Join(dir, "positions.csv"))
	require.NoError(t, err)
	content := string(csvBytes)
	assert.Contains(t, content, "CLOSED")
	assert.Contains(t, content, "Time limit: 5 days")
}
