// Package export parses wearable export archives into canonical signal
// records. An archive is a ZIP carrying either an embedded SQLite database
// (Health Connect style) or an XML record dump (Apple Health style); the
// payload is located deterministically and each recognized category is
// extracted independently so one broken table never loses the rest.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// Record sources stamped by the two parse paths.
const (
	SourceHealthConnect = "health_connect"
	SourceAppleHealth   = "apple_health"
)

// sqliteMagic is the first 16 bytes of every SQLite database file.
const sqliteMagic = "SQLite format 3\x00"

// Result is one parsed archive. Records carry no IDs; the writer assigns
// them on insert.
type Result struct {
	Records     []model.SignalRecord
	TablesFound []string
	Errors      []CategoryError

	// TimestampGaps counts rows whose timestamp could not be parsed and was
	// defaulted to the parse time. A data-quality signal, not an error.
	TimestampGaps int
	// Skipped counts XML elements of a recognized type that carried an
	// unusable value or date pair.
	Skipped int
}

// CategoryError is one failed extraction category. Other categories in the
// same archive still run.
type CategoryError struct {
	Table    string
	Category string
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("category %s (table %s): %v", e.Category, e.Table, e.Err)
}

func (e *CategoryError) Unwrap() error { return e.Err }

// MalformedExportError means no parseable payload could be located. The
// parse fails explicitly rather than returning a silent empty result.
type MalformedExportError struct {
	Name   string
	Reason string
}

func (e *MalformedExportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("malformed export %q: %s", e.Name, e.Reason)
	}
	return "malformed export: " + e.Reason
}

type payloadKind int

const (
	payloadSQLite payloadKind = iota
	payloadXML
)

// Parse extracts canonical records from an export archive for one user.
// Category-level failures are collected on the Result; only a missing or
// unreadable payload fails the parse.
func Parse(ctx context.Context, archive []byte, userID int64) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, &MalformedExportError{Reason: "not a zip archive"}
	}

	entry, kind, err := locatePayload(zr)
	if err != nil {
		return nil, err
	}

	data, err := readEntry(entry)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read entry %s", entry.Name)
	}

	res := &Result{}
	switch kind {
	case payloadSQLite:
		err = parseSQLite(ctx, data, userID, res)
	case payloadXML:
		err = parseXML(ctx, data, userID, res)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("export parsed",
		zap.String("payload", entry.Name),
		zap.Int("records", len(res.Records)),
		zap.Int("tables", len(res.TablesFound)),
		zap.Int("category_errors", len(res.Errors)),
		zap.Int("timestamp_gaps", res.TimestampGaps))
	return res, nil
}

// locatePayload picks the entry to parse. Deterministic tie-break:
// database extension (preferring a "health" name) > SQLite magic bytes >
// XML export dump > explicit failure.
func locatePayload(zr *zip.Reader) (*zip.File, payloadKind, error) {
	var dbEntries []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".db", ".sqlite", ".sqlite3":
			dbEntries = append(dbEntries, f)
		}
	}
	if len(dbEntries) > 0 {
		for _, f := range dbEntries {
			if strings.Contains(strings.ToLower(f.Name), "health") {
				return f, payloadSQLite, nil
			}
		}
		return dbEntries[0], payloadSQLite, nil
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if hasSQLiteMagic(f) {
			return f, payloadSQLite, nil
		}
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ToLower(f.Name)
		if strings.HasSuffix(name, ".xml") &&
			(strings.Contains(name, "export") || strings.Contains(name, "health")) {
			return f, payloadXML, nil
		}
	}

	return nil, 0, &MalformedExportError{Reason: "no database or record dump found in archive"}
}

func hasSQLiteMagic(f *zip.File) bool {
	rc, err := f.Open()
	if err != nil {
		return false
	}
	defer rc.Close() //nolint:errcheck

	head := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(rc, head); err != nil {
		return false
	}
	return string(head) == sqliteMagic
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrap(err, "open entry")
	}
	defer rc.Close() //nolint:errcheck
	return io.ReadAll(rc)
}

// toFloat coerces the driver value types a loosely-typed export can hold.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	}
	return 0, false
}

// parseTimestamp normalizes the timestamp shapes seen across exporters.
// Integers above 1e12 are epoch milliseconds, otherwise epoch seconds.
func parseTimestamp(v any) (time.Time, bool) {
	switch x := v.(type) {
	case int64:
		return epochToTime(x), true
	case float64:
		return epochToTime(int64(x)), true
	case string:
		return parseTimeString(x)
	case []byte:
		return parseTimeString(string(x))
	}
	return time.Time{}, false
}

func epochToTime(v int64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochToTime(n), true
	}
	return time.Time{}, false
}
