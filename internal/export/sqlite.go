package export

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// parseSQLite writes the embedded database to a temp file, opens it
// read-only, and runs every recognized category's extractor. Category
// failures land on res.Errors; only open/enumeration failures abort.
func parseSQLite(ctx context.Context, payload []byte, userID int64, res *Result) error {
	tmp, err := os.CreateTemp("", "pulse-export-*.db")
	if err != nil {
		return eris.Wrap(err, "export: create temp database")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "export: write temp database")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp database")
	}

	db, err := sql.Open("sqlite", "file:"+tmp.Name()+"?mode=ro")
	if err != nil {
		return eris.Wrap(err, "export: open embedded database")
	}
	defer db.Close() //nolint:errcheck

	tables, err := listTables(ctx, db)
	if err != nil {
		return err
	}

	for _, table := range tables {
		spec := tableCategory(table)
		if spec == nil {
			continue
		}
		res.TablesFound = append(res.TablesFound, table)
		if err := extractTable(ctx, db, table, spec, userID, res); err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(ctx.Err(), "export: extract")
			}
			res.Errors = append(res.Errors, CategoryError{Table: table, Category: spec.Category, Err: err})
		}
	}
	return nil
}

// listTables enumerates user tables in name order so extraction is
// deterministic regardless of creation order.
func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "export: enumerate tables")
	}
	defer rows.Close() //nolint:errcheck

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "export: scan table name")
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func extractTable(ctx context.Context, db *sql.DB, table string, spec *categorySpec, userID int64, res *Result) error {
	rows, err := db.QueryContext(ctx, `SELECT * FROM "`+strings.ReplaceAll(table, `"`, `""`)+`"`)
	if err != nil {
		return eris.Wrap(err, "query")
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return eris.Wrap(err, "columns")
	}
	for i := range cols {
		cols[i] = strings.ToLower(cols[i])
	}

	switch spec.kind {
	case kindSleep:
		return extractSleep(rows, cols, userID, res)
	case kindBloodPressure:
		return extractBloodPressure(rows, cols, userID, res)
	default:
		return extractValues(rows, cols, spec, userID, res)
	}
}

// extractValues handles the single-value categories, including the steps
// and SpO2 variants.
func extractValues(rows *sql.Rows, cols []string, spec *categorySpec, userID int64, res *Result) error {
	valIdx := findColumn(cols, spec.valueAliases)
	if valIdx < 0 {
		return eris.Errorf("no value column (tried %s)", strings.Join(spec.valueAliases, ", "))
	}
	tsIdx := findColumn(cols, timestampAliases)
	if tsIdx < 0 {
		return eris.Errorf("no timestamp column (tried %s)", strings.Join(timestampAliases, ", "))
	}

	for rows.Next() {
		raw, err := scanRow(rows, len(cols))
		if err != nil {
			return err
		}
		v, ok := toFloat(raw[valIdx])
		if !ok {
			continue
		}

		rec := model.SignalRecord{
			UserID:     userID,
			RecordedAt: rowTimestamp(raw[tsIdx], res),
			Source:     SourceHealthConnect,
		}
		switch spec.kind {
		case kindSteps:
			rec.ActivityLevel = model.Float(v)
			rec.Steps = model.Int(int64(v))
		case kindSpO2:
			if v <= 1 {
				v *= 100
			}
			rec.SpO2 = model.Float(v)
		default:
			rec.SetValue(spec.signal, v)
		}
		res.Records = append(res.Records, rec)
	}
	return rows.Err()
}

// extractSleep derives a duration in hours from a start/end pair. Sessions
// outside (0, 24) hours are discarded as exporter artifacts.
func extractSleep(rows *sql.Rows, cols []string, userID int64, res *Result) error {
	startIdx := findColumn(cols, sleepStartAliases)
	endIdx := findColumn(cols, sleepEndAliases)
	if startIdx < 0 || endIdx < 0 {
		return eris.New("no start/end columns")
	}

	for rows.Next() {
		raw, err := scanRow(rows, len(cols))
		if err != nil {
			return err
		}
		start, okS := parseTimestamp(raw[startIdx])
		end, okE := parseTimestamp(raw[endIdx])
		if !okS || !okE {
			res.TimestampGaps++
			continue
		}
		h := end.Sub(start).Hours()
		if h <= 0 || h >= 24 {
			continue
		}
		res.Records = append(res.Records, model.SignalRecord{
			UserID:        userID,
			RecordedAt:    start,
			Source:        SourceHealthConnect,
			SleepDuration: model.Float(h),
		})
	}
	return rows.Err()
}

// extractBloodPressure emits paired systolic/diastolic readings. Rows
// missing either side are dropped; a lone value is not a reading.
func extractBloodPressure(rows *sql.Rows, cols []string, userID int64, res *Result) error {
	sysIdx := findColumn(cols, bpSystolicAliases)
	diaIdx := findColumn(cols, bpDiastolicAlias)
	if sysIdx < 0 || diaIdx < 0 {
		return eris.New("no systolic/diastolic columns")
	}
	tsIdx := findColumn(cols, timestampAliases)
	if tsIdx < 0 {
		return eris.Errorf("no timestamp column (tried %s)", strings.Join(timestampAliases, ", "))
	}

	for rows.Next() {
		raw, err := scanRow(rows, len(cols))
		if err != nil {
			return err
		}
		sys, okS := toFloat(raw[sysIdx])
		dia, okD := toFloat(raw[diaIdx])
		if !okS || !okD {
			continue
		}
		res.Records = append(res.Records, model.SignalRecord{
			UserID:      userID,
			RecordedAt:  rowTimestamp(raw[tsIdx], res),
			Source:      SourceHealthConnect,
			BPSystolic:  model.Float(sys),
			BPDiastolic: model.Float(dia),
		})
	}
	return rows.Err()
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, eris.Wrap(err, "scan row")
	}
	return raw, nil
}

// rowTimestamp parses a row's timestamp, defaulting to the parse time when
// the value is unusable. The gap is counted, not fatal.
func rowTimestamp(v any, res *Result) time.Time {
	if ts, ok := parseTimestamp(v); ok {
		return ts
	}
	res.TimestampGaps++
	return time.Now().UTC()
}

// findColumn returns the index of the first alias present, or -1. Alias
// order is the priority order.
func findColumn(cols []string, aliases []string) int {
	for _, alias := range aliases {
		for i, col := range cols {
			if col == alias {
				return i
			}
		}
	}
	return -1
}
