// Package report writes a completed run's results to disk: ranked
// strategies as JSON and CSV, and the position ledger as CSV. Generalized
// from the teacher's option-trade JSON/CSV writer (spec's StrategyResult
// and Position replace the teacher's engine.Result/engine.Trade).
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// WriteStrategiesJSON writes the full StrategyResult slice, including each
// result's trade log and ConfigSnapshot, as indented JSON.
func WriteStrategiesJSON(results []*backtest.StrategyResult, outdir string) error {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "strategies.json"), b, 0644)
}

// WriteStrategiesCSV writes one row per StrategyResult: symbol, rule stack,
// and the composite/component metrics used to rank it.
func WriteStrategiesCSV(results []*backtest.StrategyResult, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, "strategies.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"symbol", "rule_stack", "edge_score", "win_pct", "sharpe", "total_return", "total_trades", "run_timestamp", "config_hash"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Symbol,
			ruleset.RuleStackString(r.RuleStack),
			fmt.Sprintf("%.4f", r.Metrics.EdgeScore),
			fmt.Sprintf("%.4f", r.Metrics.WinPct),
			fmt.Sprintf("%.4f", r.Metrics.Sharpe),
			fmt.Sprintf("%.4f", r.Metrics.TotalReturn),
			fmt.Sprintf("%d", r.Metrics.TotalTrades),
			r.RunTimestamp.Format("2006-01-02"),
			r.ConfigHash,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
