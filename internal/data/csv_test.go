package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCSVDataProviderGetDailyBarsFiltersByDateRange(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "RELIANCE.csv"), "date,open,high,low,close,volume\n"+
		"2024-01-01,100,101,99,100.5,1000\n"+
		"2024-01-02,100.5,102,100,101.5,1200\n"+
		"2024-01-10,105,106,104,105.5,900\n")

	p := NewCSVDataProvider(dir, "NIFTY.csv", nil)
	bars, err := p.GetDailyBars("reliance", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.InDelta(t, 100.5, bars[0].Close, 1e-9)
}

func TestCSVDataProviderGetIndexBarsReadsTheConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "NIFTY.csv"), "date,open,high,low,close,volume\n"+
		"2024-01-01,20000,20100,19900,20050,0\n")

	p := NewCSVDataProvider(dir, "NIFTY.csv", nil)
	bars, err := p.GetIndexBars(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.InDelta(t, 20050, bars[0].Close, 1e-9)
}

func TestCSVDataProviderFallsBackToSecondaryWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	fallback := NewSyntheticProvider(nil)
	p := NewCSVDataProvider(dir, "NIFTY.csv", fallback)

	bars, err := p.GetDailyBars("MISSING", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, bars, "secondary synthetic provider should fill in when the CSV file doesn't exist")
}
