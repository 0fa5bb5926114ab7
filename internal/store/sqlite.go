package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB

	// Sync locks are process-local; the SQLite deployment model is a single
	// writer process, so an in-memory registry is sufficient.
	lockMu    sync.Mutex
	syncLocks map[int64]bool
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, syncLocks: make(map[int64]bool)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS signal_records (
	id              TEXT PRIMARY KEY,
	user_id         INTEGER NOT NULL,
	recorded_at     DATETIME NOT NULL,
	source          TEXT NOT NULL DEFAULT '',
	heart_rate      REAL,
	hrv             REAL,
	sleep_duration  REAL,
	sleep_quality   REAL,
	activity_level  REAL,
	breathing_rate  REAL,
	bp_systolic     REAL,
	bp_diastolic    REAL,
	blood_sugar     REAL,
	spo2            REAL,
	temperature     REAL,
	weight          REAL,
	distance        REAL,
	calories_active REAL,
	calories_total  REAL,
	steps           INTEGER,
	symptoms        TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_signal_records_user_time ON signal_records(user_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS baselines (
	user_id      INTEGER NOT NULL,
	signal       TEXT NOT NULL,
	mean         REAL NOT NULL,
	std_dev      REAL NOT NULL DEFAULT 0,
	sample_count INTEGER NOT NULL DEFAULT 0,
	computed_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, signal)
);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id               TEXT PRIMARY KEY,
	user_id          INTEGER NOT NULL,
	job_type         TEXT NOT NULL DEFAULT 'source_sync',
	status           TEXT NOT NULL DEFAULT 'pending',
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at     DATETIME,
	files_found      INTEGER NOT NULL DEFAULT 0,
	files_processed  INTEGER NOT NULL DEFAULT 0,
	records_imported INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_user ON ingestion_jobs(user_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status ON ingestion_jobs(status);

CREATE TABLE IF NOT EXISTS processed_files (
	id               TEXT PRIMARY KEY,
	user_id          INTEGER NOT NULL,
	file_id          TEXT NOT NULL,
	file_name        TEXT NOT NULL DEFAULT '',
	checksum         TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'processing',
	records_imported INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	processed_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, file_id)
);

CREATE TABLE IF NOT EXISTS care_scores (
	id              TEXT PRIMARY KEY,
	user_id         INTEGER NOT NULL,
	computed_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	severity        REAL NOT NULL DEFAULT 0,
	persistence     REAL NOT NULL DEFAULT 0,
	cross_signal    REAL NOT NULL DEFAULT 0,
	manual_modifier REAL NOT NULL DEFAULT 0,
	aggregate       REAL NOT NULL,
	drift           REAL NOT NULL DEFAULT 0,
	confidence      REAL NOT NULL DEFAULT 0,
	stability       REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	deviations      TEXT NOT NULL DEFAULT '[]',
	explanation     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_care_scores_user_time ON care_scores(user_id, computed_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id               TEXT PRIMARY KEY,
	user_id          INTEGER NOT NULL,
	type             TEXT NOT NULL,
	title            TEXT NOT NULL,
	message          TEXT NOT NULL DEFAULT '',
	related_user_id  INTEGER,
	related_score_id TEXT,
	priority         TEXT NOT NULL DEFAULT 'normal',
	is_read          INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS care_links (
	patient_id   INTEGER NOT NULL,
	member_id    INTEGER NOT NULL,
	role         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	access_level TEXT NOT NULL DEFAULT 'view',
	PRIMARY KEY (patient_id, member_id, role)
);

CREATE TABLE IF NOT EXISTS users (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'patient'
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertSignalRecords(ctx context.Context, records []model.SignalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert records")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signal_records (id, user_id, recorded_at, source,
			heart_rate, hrv, sleep_duration, sleep_quality, activity_level,
			breathing_rate, bp_systolic, bp_diastolic, blood_sugar, spo2,
			temperature, weight, distance, calories_active, calories_total,
			steps, symptoms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert record")
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.UserID, r.RecordedAt.UTC(), r.Source,
			r.HeartRate, r.HRV, r.SleepDuration, r.SleepQuality, r.ActivityLevel,
			r.BreathingRate, r.BPSystolic, r.BPDiastolic, r.BloodSugar, r.SpO2,
			r.Temperature, r.Weight, r.Distance, r.CaloriesActive, r.CaloriesTotal,
			r.Steps, r.Symptoms,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert signal record")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert records")
	}
	return len(records), nil
}

func (s *SQLiteStore) SignalValues(ctx context.Context, userID int64, signal string, since time.Time) ([]float64, error) {
	col, err := signalColumn(signal)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT CAST(%s AS REAL) FROM signal_records WHERE user_id = ? AND recorded_at >= ? AND %s IS NOT NULL ORDER BY recorded_at`,
		col, col,
	)
	rows, err := s.db.QueryContext(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: signal values %s", signal)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "sqlite: signal values iterate")
}

func (s *SQLiteStore) RecordCountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signal_records WHERE user_id = ? AND recorded_at >= ?`,
		userID, since.UTC(),
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: record count")
}

func (s *SQLiteStore) LatestSignalValues(ctx context.Context, userID int64, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT heart_rate, hrv, sleep_duration, sleep_quality, activity_level, breathing_rate,
		        bp_systolic, bp_diastolic, blood_sugar, spo2, temperature, weight,
		        distance, calories_active, calories_total, steps
		 FROM signal_records WHERE user_id = ? AND recorded_at >= ?
		 ORDER BY recorded_at DESC`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest signal values")
	}
	defer rows.Close()

	latest := make(map[string]float64)
	for rows.Next() {
		var r model.SignalRecord
		if err := rows.Scan(
			&r.HeartRate, &r.HRV, &r.SleepDuration, &r.SleepQuality, &r.ActivityLevel,
			&r.BreathingRate, &r.BPSystolic, &r.BPDiastolic, &r.BloodSugar, &r.SpO2,
			&r.Temperature, &r.Weight, &r.Distance, &r.CaloriesActive, &r.CaloriesTotal,
			&r.Steps,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan latest signal values")
		}
		for _, signal := range model.Signals {
			if _, seen := latest[signal]; seen {
				continue
			}
			if v, ok := r.Value(signal); ok {
				latest[signal] = v
			}
		}
	}
	return latest, eris.Wrap(rows.Err(), "sqlite: latest signal values iterate")
}

func (s *SQLiteStore) SignalRecords(ctx context.Context, userID int64, since time.Time) ([]model.SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, recorded_at, source,
		        heart_rate, hrv, sleep_duration, sleep_quality, activity_level, breathing_rate,
		        bp_systolic, bp_diastolic, blood_sugar, spo2, temperature, weight,
		        distance, calories_active, calories_total, steps, symptoms
		 FROM signal_records WHERE user_id = ? AND recorded_at >= ?
		 ORDER BY recorded_at`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: signal records")
	}
	defer rows.Close()

	var records []model.SignalRecord
	for rows.Next() {
		var r model.SignalRecord
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.RecordedAt, &r.Source,
			&r.HeartRate, &r.HRV, &r.SleepDuration, &r.SleepQuality, &r.ActivityLevel,
			&r.BreathingRate, &r.BPSystolic, &r.BPDiastolic, &r.BloodSugar, &r.SpO2,
			&r.Temperature, &r.Weight, &r.Distance, &r.CaloriesActive, &r.CaloriesTotal,
			&r.Steps, &r.Symptoms,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: signal records iterate")
}

func (s *SQLiteStore) UpsertBaselines(ctx context.Context, baselines []model.Baseline) error {
	if len(baselines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert baselines")
	}
	defer tx.Rollback()

	for _, b := range baselines {
		computedAt := b.ComputedAt
		if computedAt.IsZero() {
			computedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO baselines (user_id, signal, mean, std_dev, sample_count, computed_at) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, signal) DO UPDATE SET mean = excluded.mean, std_dev = excluded.std_dev, sample_count = excluded.sample_count, computed_at = excluded.computed_at`,
			b.UserID, b.Signal, b.Mean, b.StdDev, b.SampleCount, computedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert baseline %s", b.Signal)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert baselines")
}

func (s *SQLiteStore) DeleteBaseline(ctx context.Context, userID int64, signal string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM baselines WHERE user_id = ? AND signal = ?`,
		userID, signal,
	)
	return eris.Wrapf(err, "sqlite: delete baseline %s", signal)
}

func (s *SQLiteStore) Baselines(ctx context.Context, userID int64) (map[string]model.Baseline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, signal, mean, std_dev, sample_count, computed_at FROM baselines WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get baselines")
	}
	defer rows.Close()

	baselines := make(map[string]model.Baseline)
	for rows.Next() {
		var b model.Baseline
		if err := rows.Scan(&b.UserID, &b.Signal, &b.Mean, &b.StdDev, &b.SampleCount, &b.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan baseline")
		}
		baselines[b.Signal] = b
	}
	return baselines, eris.Wrap(rows.Err(), "sqlite: get baselines iterate")
}

func (s *SQLiteStore) BaselineUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM baselines ORDER BY user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: baseline user ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan baseline user id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: baseline user ids iterate")
}

func (s *SQLiteStore) CreateJob(ctx context.Context, userID int64, jobType string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_jobs (id, user_id, job_type, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, jobType, string(model.JobStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.Job{
		ID:        id,
		UserID:    userID,
		JobType:   jobType,
		Status:    model.JobStatusPending,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) MarkJobProcessing(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs SET status = ? WHERE id = ? AND status = ?`,
		string(model.JobStatusProcessing), jobID, string(model.JobStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job processing %s", jobID)
	}
	return checkRowsAffected(res, "pending job", jobID)
}

func (s *SQLiteStore) CloseJob(ctx context.Context, jobID string, status model.JobStatus, filesFound, filesProcessed, recordsImported int, errMsg string) error {
	if !status.Closed() {
		return eris.Errorf("sqlite: close job with non-terminal status %s", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs
		 SET status = ?, completed_at = ?, files_found = ?, files_processed = ?, records_imported = ?, error_message = ?
		 WHERE id = ? AND status IN (?, ?)`,
		string(status), time.Now().UTC(), filesFound, filesProcessed, recordsImported, errMsg,
		jobID, string(model.JobStatusPending), string(model.JobStatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: close job %s", jobID)
	}
	return checkRowsAffected(res, "open job", jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, job_type, status, started_at, completed_at, files_found, files_processed, records_imported, error_message FROM ingestion_jobs WHERE id = ?`,
		jobID,
	)

	var j model.Job
	err := row.Scan(&j.ID, &j.UserID, &j.JobType, &j.Status, &j.StartedAt, &j.CompletedAt,
		&j.FilesFound, &j.FilesProcessed, &j.RecordsImported, &j.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	return &j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, user_id, job_type, status, started_at, completed_at, files_found, files_processed, records_imported, error_message FROM ingestion_jobs WHERE 1=1`
	var args []any

	if filter.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.JobType, &j.Status, &j.StartedAt, &j.CompletedAt,
			&j.FilesFound, &j.FilesProcessed, &j.RecordsImported, &j.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) GetLedgerEntry(ctx context.Context, userID int64, fileID string) (*model.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, file_id, file_name, checksum, status, records_imported, error_message, processed_at FROM processed_files WHERE user_id = ? AND file_id = ?`,
		userID, fileID,
	)

	var e model.LedgerEntry
	err := row.Scan(&e.UserID, &e.FileID, &e.FileName, &e.Checksum, &e.Status,
		&e.RecordsImported, &e.ErrorMessage, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ledger entry %s", fileID)
	}
	return &e, nil
}

func (s *SQLiteStore) CreateLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	status := entry.Status
	if status == "" {
		status = model.LedgerStatusProcessing
	}
	processedAt := entry.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_files (id, user_id, file_id, file_name, checksum, status, records_imported, error_message, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), entry.UserID, entry.FileID, entry.FileName, entry.Checksum,
		string(status), entry.RecordsImported, entry.ErrorMessage, processedAt,
	)
	return eris.Wrapf(err, "sqlite: create ledger entry %s", entry.FileID)
}

func (s *SQLiteStore) CompleteLedgerEntry(ctx context.Context, userID int64, fileID string, records int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processed_files SET status = ?, records_imported = ?, error_message = '', processed_at = ? WHERE user_id = ? AND file_id = ?`,
		string(model.LedgerStatusCompleted), records, time.Now().UTC(), userID, fileID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete ledger entry %s", fileID)
	}
	return checkRowsAffected(res, "ledger entry", fileID)
}

func (s *SQLiteStore) FailLedgerEntry(ctx context.Context, userID int64, fileID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processed_files SET status = ?, error_message = ?, processed_at = ? WHERE user_id = ? AND file_id = ?`,
		string(model.LedgerStatusFailed), errMsg, time.Now().UTC(), userID, fileID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail ledger entry %s", fileID)
	}
	return checkRowsAffected(res, "ledger entry", fileID)
}

func (s *SQLiteStore) DeleteLedgerEntry(ctx context.Context, userID int64, fileID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_files WHERE user_id = ? AND file_id = ?`,
		userID, fileID,
	)
	return eris.Wrapf(err, "sqlite: delete ledger entry %s", fileID)
}

func (s *SQLiteStore) InsertScore(ctx context.Context, score *model.Score) error {
	if score.ID == "" {
		score.ID = uuid.New().String()
	}
	if score.ComputedAt.IsZero() {
		score.ComputedAt = time.Now().UTC()
	}

	devJSON, err := json.Marshal(score.Deviations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal deviations")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO care_scores (id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		score.ID, score.UserID, score.ComputedAt, score.Severity, score.Persistence,
		score.CrossSignal, score.ManualModifier, score.Aggregate, score.Drift,
		score.Confidence, score.Stability, string(score.Status), string(devJSON), score.Explanation,
	)
	return eris.Wrap(err, "sqlite: insert score")
}

func (s *SQLiteStore) LatestScore(ctx context.Context, userID int64) (*model.Score, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation FROM care_scores WHERE user_id = ? ORDER BY computed_at DESC LIMIT 1`,
		userID,
	)
	return scanScore(row)
}

func (s *SQLiteStore) ScoresSince(ctx context.Context, userID int64, since time.Time) ([]model.Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation FROM care_scores WHERE user_id = ? AND computed_at >= ? ORDER BY computed_at DESC`,
		userID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scores since")
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *sc)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: scores since iterate")
}

func (s *SQLiteStore) CreateNotifications(ctx context.Context, notifs []model.Notification) error {
	if len(notifs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin notifications tx")
	}
	defer tx.Rollback()

	for i := range notifs {
		n := &notifs[i]
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		var relatedScoreID *string
		if n.RelatedScoreID != "" {
			relatedScoreID = &n.RelatedScoreID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, user_id, type, title, message, related_user_id, related_score_id, priority, is_read, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedUserID, relatedScoreID,
			n.Priority, n.IsRead, n.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert notification for user %d", n.UserID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit notifications")
}

func (s *SQLiteStore) Notifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, message, related_user_id, related_score_id, priority, is_read, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: notifications")
	}
	defer rows.Close()

	var notifs []model.Notification
	for rows.Next() {
		var n model.Notification
		var relatedScoreID *string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.RelatedUserID, &relatedScoreID, &n.Priority, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notification")
		}
		if relatedScoreID != nil {
			n.RelatedScoreID = *relatedScoreID
		}
		notifs = append(notifs, n)
	}
	return notifs, eris.Wrap(rows.Err(), "sqlite: notifications iterate")
}

func (s *SQLiteStore) AcceptedCareTeam(ctx context.Context, patientID int64) ([]model.CareLink, error) {
	// role DESC puts doctors ahead of caretakers for dispatch ordering.
	rows, err := s.db.QueryContext(ctx,
		`SELECT patient_id, member_id, role, status, access_level FROM care_links WHERE patient_id = ? AND status = ? ORDER BY role DESC, member_id`,
		patientID, string(model.LinkAccepted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: accepted care team")
	}
	defer rows.Close()

	var links []model.CareLink
	for rows.Next() {
		var l model.CareLink
		if err := rows.Scan(&l.PatientID, &l.MemberID, &l.Role, &l.Status, &l.AccessLevel); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan care link")
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: accepted care team iterate")
}

func (s *SQLiteStore) UpsertCareLink(ctx context.Context, link model.CareLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO care_links (patient_id, member_id, role, status, access_level) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (patient_id, member_id, role) DO UPDATE SET status = excluded.status, access_level = excluded.access_level`,
		link.PatientID, link.MemberID, string(link.Role), string(link.Status), link.AccessLevel,
	)
	return eris.Wrap(err, "sqlite: upsert care link")
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, role FROM users WHERE id = ?`,
		userID,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get user %d", userID)
	}
	return &u, nil
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, user model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, role) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role`,
		user.ID, user.Name, user.Role,
	)
	return eris.Wrap(err, "sqlite: upsert user")
}

// AcquireSyncLock reserves the per-user sync slot in the in-process registry.
func (s *SQLiteStore) AcquireSyncLock(ctx context.Context, userID int64) (func(), error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if s.syncLocks[userID] {
		return nil, ErrSyncBusy
	}
	s.syncLocks[userID] = true

	return func() {
		s.lockMu.Lock()
		delete(s.syncLocks, userID)
		s.lockMu.Unlock()
	}, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScore(row scannable) (*model.Score, error) {
	var sc model.Score
	var devJSON []byte

	err := row.Scan(&sc.ID, &sc.UserID, &sc.ComputedAt, &sc.Severity, &sc.Persistence,
		&sc.CrossSignal, &sc.ManualModifier, &sc.Aggregate, &sc.Drift,
		&sc.Confidence, &sc.Stability, &sc.Status, &devJSON, &sc.Explanation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan score")
	}

	if len(devJSON) > 0 {
		if err := json.Unmarshal(devJSON, &sc.Deviations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal deviations")
		}
	}
	return &sc, nil
}
