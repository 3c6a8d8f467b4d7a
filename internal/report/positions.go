package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/store"
)

// WritePositionsCSV writes one row per position (open or closed). Nullable
// exit fields are written as empty strings rather than "0" so a report
// reader can tell "still open" from "closed at zero".
func WritePositionsCSV(positions []store.Position, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, "positions.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"id", "symbol", "entry_date", "entry_price", "status", "rule_stack_used", "exit_date", "exit_price", "final_return_pct", "days_held", "exit_reason"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, p := range positions {
		row := []string{
			p.ID,
			p.Symbol,
			p.EntryDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", p.EntryPrice),
			string(p.Status),
			ruleset.RuleStackString(p.RuleStackUsed),
			formatOptionalDate(p.ExitDate),
			formatOptionalFloat(p.ExitPrice),
			formatOptionalPct(p.FinalReturnPct),
			formatOptionalInt(p.DaysHeld),
			formatOptionalString(p.ExitReason),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatOptionalPct(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *v)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func formatOptionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
