// Package report renders a user's signal history into shareable formats:
// an XLSX workbook for offline review and a Notion care-summary page for
// the care team.
package report

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// ExportStore is the read surface the workbook writer needs.
type ExportStore interface {
	SignalRecords(ctx context.Context, userID int64, since time.Time) ([]model.SignalRecord, error)
	ScoresSince(ctx context.Context, userID int64, since time.Time) ([]model.Score, error)
	Baselines(ctx context.Context, userID int64) (map[string]model.Baseline, error)
}

// WriteWorkbook loads a user's records, score history, and baselines since
// the given time and saves them as a three-sheet workbook.
func WriteWorkbook(ctx context.Context, st ExportStore, userID int64, since time.Time, path string) error {
	f, err := BuildWorkbook(ctx, st, userID, since)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save workbook %s", path)
}

// BuildWorkbook assembles the workbook in memory so callers can save it or
// stream it elsewhere.
func BuildWorkbook(ctx context.Context, st ExportStore, userID int64, since time.Time) (*xlsx.File, error) {
	records, err := st.SignalRecords(ctx, userID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "report: load records for user %d", userID)
	}
	scores, err := st.ScoresSince(ctx, userID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "report: load scores for user %d", userID)
	}
	baselines, err := st.Baselines(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "report: load baselines for user %d", userID)
	}

	f := xlsx.NewFile()
	if err := addSignalsSheet(f, records); err != nil {
		return nil, err
	}
	if err := addScoresSheet(f, scores); err != nil {
		return nil, err
	}
	if err := addBaselinesSheet(f, baselines); err != nil {
		return nil, err
	}
	return f, nil
}

// columnHeader renders a signal as a spreadsheet column title, e.g.
// "Heart Rate (bpm)".
func columnHeader(signal string) string {
	title := cases.Title(language.English).String(model.DisplayName(signal))
	if unit := model.Unit(signal); unit != "" {
		return title + " (" + unit + ")"
	}
	return title
}

func addSignalsSheet(f *xlsx.File, records []model.SignalRecord) error {
	sheet, err := f.AddSheet("Signals")
	if err != nil {
		return eris.Wrap(err, "report: add signals sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Recorded At")
	header.AddCell().SetString("Source")
	for _, signal := range model.Signals {
		header.AddCell().SetString(columnHeader(signal))
	}
	header.AddCell().SetString("Symptoms")

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.RecordedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(r.Source)
		for _, signal := range model.Signals {
			cell := row.AddCell()
			if v, ok := r.Value(signal); ok {
				cell.SetFloatWithFormat(v, "0.00")
			}
		}
		row.AddCell().SetString(r.Symptoms)
	}
	return nil
}

func addScoresSheet(f *xlsx.File, scores []model.Score) error {
	sheet, err := f.AddSheet("Scores")
	if err != nil {
		return eris.Wrap(err, "report: add scores sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Computed At", "Aggregate", "Status", "Severity", "Persistence",
		"Cross-Signal", "Manual Modifier", "Drift", "Confidence", "Stability",
		"Deviating Signals", "Explanation",
	} {
		header.AddCell().SetString(h)
	}

	for _, sc := range scores {
		row := sheet.AddRow()
		row.AddCell().SetString(sc.ComputedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetFloatWithFormat(sc.Aggregate, "0.0")
		row.AddCell().SetString(string(sc.Status))
		row.AddCell().SetFloatWithFormat(sc.Severity, "0.0")
		row.AddCell().SetFloatWithFormat(sc.Persistence, "0.0")
		row.AddCell().SetFloatWithFormat(sc.CrossSignal, "0.0")
		row.AddCell().SetFloatWithFormat(sc.ManualModifier, "0.0")
		row.AddCell().SetFloatWithFormat(sc.Drift, "0.0")
		row.AddCell().SetFloatWithFormat(sc.Confidence, "0.0")
		row.AddCell().SetFloatWithFormat(sc.Stability, "0.0")
		row.AddCell().SetString(deviatingSignals(sc.Deviations))
		row.AddCell().SetString(sc.Explanation)
	}
	return nil
}

func deviatingSignals(devs []model.Deviation) string {
	names := make([]string, 0, len(devs))
	for _, d := range devs {
		names = append(names, model.DisplayName(d.Signal))
	}
	return strings.Join(names, "; ")
}

func addBaselinesSheet(f *xlsx.File, baselines map[string]model.Baseline) error {
	sheet, err := f.AddSheet("Baselines")
	if err != nil {
		return eris.Wrap(err, "report: add baselines sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Signal", "Mean", "Std Dev", "Samples", "Computed At"} {
		header.AddCell().SetString(h)
	}

	// Canonical signal order keeps the sheet stable across exports.
	for _, signal := range model.Signals {
		b, ok := baselines[signal]
		if !ok {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(columnHeader(signal))
		row.AddCell().SetFloatWithFormat(b.Mean, "0.00")
		row.AddCell().SetFloatWithFormat(b.StdDev, "0.00")
		row.AddCell().SetInt(b.SampleCount)
		row.AddCell().SetString(b.ComputedAt.UTC().Format(time.RFC3339))
	}
	return nil
}
