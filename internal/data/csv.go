package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// csvDataProvider reads daily bars from one CSV file per symbol in a
// directory, plus one CSV file for the benchmark index — the teacher's
// local-file provider generalized from an options-specific layout
// (intervals.csv, strike-rounding lookups) to a plain equities one.
// Consolidates what the teacher split (and duplicated, under the same type
// name) across localCSV.go/localFiles.go into one file.
type csvDataProvider struct {
	dir       string
	indexFile string
	secondary Provider
}

// NewCSVDataProvider reads "<dir>/<symbol>.csv" for GetDailyBars and
// "<dir>/<indexFile>" for GetIndexBars. Each CSV is headered
// date,open,high,low,close,volume.
func NewCSVDataProvider(dir, indexFile string, secondary Provider) Provider {
	return &csvDataProvider{dir: dir, indexFile: indexFile, secondary: secondary}
}

func (c *csvDataProvider) Secondary() Provider { return c.secondary }

func (c *csvDataProvider) GetDailyBars(symbol string, from, to time.Time) ([]ohlcv.Bar, error) {
	bars, err := c.readFile(filepath.Join(c.dir, strings.ToUpper(symbol)+".csv"), from, to)
	if err != nil && c.secondary != nil {
		return c.secondary.GetDailyBars(symbol, from, to)
	}
	return bars, err
}

func (c *csvDataProvider) GetIndexBars(from, to time.Time) ([]ohlcv.Bar, error) {
	bars, err := c.readFile(filepath.Join(c.dir, c.indexFile), from, to)
	if err != nil && c.secondary != nil {
		return c.secondary.GetIndexBars(from, to)
	}
	return bars, err
}

func (c *csvDataProvider) readFile(path string, from, to time.Time) ([]ohlcv.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Dataf("data.csv", path, "open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.Dataf("data.csv", path, "read: %w", err)
	}

	var out []ohlcv.Bar
	for i, row := range records {
		if i == 0 {
			continue // header
		}
		if len(row) < 6 {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			return nil, apperrors.Dataf("data.csv", path, "row %d: bad date %q: %w", i, row[0], err)
		}
		if date.Before(from) || date.After(to) {
			continue
		}
		bar, err := parseBarRow(row)
		if err != nil {
			return nil, apperrors.Dataf("data.csv", path, "row %d: %w", i, err)
		}
		bar.Date = date
		out = append(out, bar)
	}
	return out, nil
}

func parseBarRow(row []string) (ohlcv.Bar, error) {
	vals := make([]float64, 5)
	for i, s := range row[1:6] {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return ohlcv.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return ohlcv.Bar{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}
