package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/primary-workspace/pulseai-hackshodh/internal/db"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// ErrSyncBusy is returned by AcquireSyncLock when another sync for the same
// user already holds the lock.
var ErrSyncBusy = eris.New("store: sync already in progress for this user")

// syncLockClass namespaces advisory lock keys so other tools sharing the
// database cannot collide with sync locks.
const syncLockClass = 0x1B5E

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_ledger_entry": `SELECT user_id, file_id, file_name, checksum, status, records_imported, error_message, processed_at FROM processed_files WHERE user_id = $1 AND file_id = $2`,
	"get_job":          `SELECT id, user_id, job_type, status, started_at, completed_at, files_found, files_processed, records_imported, error_message FROM ingestion_jobs WHERE id = $1`,
	"latest_score":     `SELECT id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation FROM care_scores WHERE user_id = $1 ORDER BY computed_at DESC LIMIT 1`,
	"insert_score":     `INSERT INTO care_scores (id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
	"get_baselines":    `SELECT user_id, signal, mean, std_dev, sample_count, computed_at FROM baselines WHERE user_id = $1`,
}

// signalRecordColumns is the COPY column order for signal_records inserts.
var signalRecordColumns = []string{
	"id", "user_id", "recorded_at", "source",
	"heart_rate", "hrv", "sleep_duration", "sleep_quality", "activity_level",
	"breathing_rate", "bp_systolic", "bp_diastolic", "blood_sugar", "spo2",
	"temperature", "weight", "distance", "calories_active", "calories_total",
	"steps", "symptoms",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS signal_records (
	id              TEXT PRIMARY KEY,
	user_id         BIGINT NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL,
	source          TEXT NOT NULL DEFAULT '',
	heart_rate      DOUBLE PRECISION,
	hrv             DOUBLE PRECISION,
	sleep_duration  DOUBLE PRECISION,
	sleep_quality   DOUBLE PRECISION,
	activity_level  DOUBLE PRECISION,
	breathing_rate  DOUBLE PRECISION,
	bp_systolic     DOUBLE PRECISION,
	bp_diastolic    DOUBLE PRECISION,
	blood_sugar     DOUBLE PRECISION,
	spo2            DOUBLE PRECISION,
	temperature     DOUBLE PRECISION,
	weight          DOUBLE PRECISION,
	distance        DOUBLE PRECISION,
	calories_active DOUBLE PRECISION,
	calories_total  DOUBLE PRECISION,
	steps           BIGINT,
	symptoms        TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_signal_records_user_time ON signal_records(user_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS baselines (
	user_id      BIGINT NOT NULL,
	signal       TEXT NOT NULL,
	mean         DOUBLE PRECISION NOT NULL,
	std_dev      DOUBLE PRECISION NOT NULL DEFAULT 0,
	sample_count INTEGER NOT NULL DEFAULT 0,
	computed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, signal)
);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id               TEXT PRIMARY KEY,
	user_id          BIGINT NOT NULL,
	job_type         TEXT NOT NULL DEFAULT 'source_sync',
	status           TEXT NOT NULL DEFAULT 'pending',
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	files_found      INTEGER NOT NULL DEFAULT 0,
	files_processed  INTEGER NOT NULL DEFAULT 0,
	records_imported INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_user ON ingestion_jobs(user_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status ON ingestion_jobs(status);

CREATE TABLE IF NOT EXISTS processed_files (
	id               TEXT PRIMARY KEY,
	user_id          BIGINT NOT NULL,
	file_id          TEXT NOT NULL,
	file_name        TEXT NOT NULL DEFAULT '',
	checksum         TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'processing',
	records_imported INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	processed_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, file_id)
);

CREATE TABLE IF NOT EXISTS care_scores (
	id              TEXT PRIMARY KEY,
	user_id         BIGINT NOT NULL,
	computed_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	severity        DOUBLE PRECISION NOT NULL DEFAULT 0,
	persistence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	cross_signal    DOUBLE PRECISION NOT NULL DEFAULT 0,
	manual_modifier DOUBLE PRECISION NOT NULL DEFAULT 0,
	aggregate       DOUBLE PRECISION NOT NULL,
	drift           DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	stability       DOUBLE PRECISION NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	deviations      JSONB NOT NULL DEFAULT '[]',
	explanation     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_care_scores_user_time ON care_scores(user_id, computed_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id               TEXT PRIMARY KEY,
	user_id          BIGINT NOT NULL,
	type             TEXT NOT NULL,
	title            TEXT NOT NULL,
	message          TEXT NOT NULL DEFAULT '',
	related_user_id  BIGINT,
	related_score_id TEXT,
	priority         TEXT NOT NULL DEFAULT 'normal',
	is_read          BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS care_links (
	patient_id   BIGINT NOT NULL,
	member_id    BIGINT NOT NULL,
	role         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	access_level TEXT NOT NULL DEFAULT 'view',
	PRIMARY KEY (patient_id, member_id, role)
);

CREATE INDEX IF NOT EXISTS idx_care_links_patient ON care_links(patient_id, status);

CREATE TABLE IF NOT EXISTS users (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'patient'
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertSignalRecords(ctx context.Context, records []model.SignalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		rows = append(rows, []any{
			r.ID, r.UserID, r.RecordedAt.UTC(), r.Source,
			r.HeartRate, r.HRV, r.SleepDuration, r.SleepQuality, r.ActivityLevel,
			r.BreathingRate, r.BPSystolic, r.BPDiastolic, r.BloodSugar, r.SpO2,
			r.Temperature, r.Weight, r.Distance, r.CaloriesActive, r.CaloriesTotal,
			r.Steps, r.Symptoms,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "signal_records", signalRecordColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert signal records")
	}
	return int(n), nil
}

func (s *PostgresStore) SignalValues(ctx context.Context, userID int64, signal string, since time.Time) ([]float64, error) {
	col, err := signalColumn(signal)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT (%s)::float8 FROM signal_records WHERE user_id = $1 AND recorded_at >= $2 AND %s IS NOT NULL ORDER BY recorded_at`,
		col, col,
	)
	rows, err := s.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: signal values %s", signal)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "postgres: signal values iterate")
}

func (s *PostgresStore) RecordCountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signal_records WHERE user_id = $1 AND recorded_at >= $2`,
		userID, since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: record count")
}

func (s *PostgresStore) LatestSignalValues(ctx context.Context, userID int64, since time.Time) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT heart_rate, hrv, sleep_duration, sleep_quality, activity_level, breathing_rate,
		        bp_systolic, bp_diastolic, blood_sugar, spo2, temperature, weight,
		        distance, calories_active, calories_total, steps
		 FROM signal_records WHERE user_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest signal values")
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
			return nil, eris.Wrap(err, "postgres: scan latest signal values")
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
	return latest, eris.Wrap(rows.Err(), "postgres: latest signal values iterate")
}

func (s *PostgresStore) SignalRecords(ctx context.Context, userID int64, since time.Time) ([]model.SignalRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, recorded_at, source,
		        heart_rate, hrv, sleep_duration, sleep_quality, activity_level, breathing_rate,
		        bp_systolic, bp_diastolic, blood_sugar, spo2, temperature, weight,
		        distance, calories_active, calories_total, steps, symptoms
		 FROM signal_records WHERE user_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at`,
		userID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: signal records")
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
			return nil, eris.Wrap(err, "postgres: scan signal record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: signal records iterate")
}

func (s *PostgresStore) UpsertBaselines(ctx context.Context, baselines []model.Baseline) error {
	if len(baselines) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(baselines))
	for _, b := range baselines {
		computedAt := b.ComputedAt
		if computedAt.IsZero() {
			computedAt = time.Now().UTC()
		}
		rows = append(rows, []any{b.UserID, b.Signal, b.Mean, b.StdDev, b.SampleCount, computedAt})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "baselines",
		Columns:      []string{"user_id", "signal", "mean", "std_dev", "sample_count", "computed_at"},
		ConflictKeys: []string{"user_id", "signal"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert baselines")
}

func (s *PostgresStore) DeleteBaseline(ctx context.Context, userID int64, signal string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM baselines WHERE user_id = $1 AND signal = $2`,
		userID, signal,
	)
	return eris.Wrapf(err, "postgres: delete baseline %s", signal)
}

func (s *PostgresStore) Baselines(ctx context.Context, userID int64) (map[string]model.Baseline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, signal, mean, std_dev, sample_count, computed_at FROM baselines WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get baselines")
	}
	defer rows.Close()

	baselines := make(map[string]model.Baseline)
	for rows.Next() {
		var b model.Baseline
		if err := rows.Scan(&b.UserID, &b.Signal, &b.Mean, &b.StdDev, &b.SampleCount, &b.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan baseline")
		}
		baselines[b.Signal] = b
	}
	return baselines, eris.Wrap(rows.Err(), "postgres: get baselines iterate")
}

func (s *PostgresStore) BaselineUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM baselines ORDER BY user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: baseline user ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan baseline user id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: baseline user ids iterate")
}

func (s *PostgresStore) CreateJob(ctx context.Context, userID int64, jobType string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingestion_jobs (id, user_id, job_type, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, jobType, string(model.JobStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:        id,
		UserID:    userID,
		JobType:   jobType,
		Status:    model.JobStatusPending,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) MarkJobProcessing(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_jobs SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.JobStatusProcessing), jobID, string(model.JobStatusPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark job processing %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pending job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) CloseJob(ctx context.Context, jobID string, status model.JobStatus, filesFound, filesProcessed, recordsImported int, errMsg string) error {
	if !status.Closed() {
		return eris.Errorf("postgres: close job with non-terminal status %s", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET status = $1, completed_at = $2, files_found = $3, files_processed = $4, records_imported = $5, error_message = $6
		 WHERE id = $7 AND status IN ($8, $9)`,
		string(status), time.Now().UTC(), filesFound, filesProcessed, recordsImported, errMsg,
		jobID, string(model.JobStatusPending), string(model.JobStatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: close job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("open job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, job_type, status, started_at, completed_at, files_found, files_processed, records_imported, error_message FROM ingestion_jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &j.UserID, &j.JobType, &j.Status, &j.StartedAt, &j.CompletedAt,
		&j.FilesFound, &j.FilesProcessed, &j.RecordsImported, &j.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, user_id, job_type, status, started_at, completed_at, files_found, files_processed, records_imported, error_message FROM ingestion_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.UserID != 0 {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.JobType, &j.Status, &j.StartedAt, &j.CompletedAt,
			&j.FilesFound, &j.FilesProcessed, &j.RecordsImported, &j.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) GetLedgerEntry(ctx context.Context, userID int64, fileID string) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, file_id, file_name, checksum, status, records_imported, error_message, processed_at FROM processed_files WHERE user_id = $1 AND file_id = $2`,
		userID, fileID,
	).Scan(&e.UserID, &e.FileID, &e.FileName, &e.Checksum, &e.Status,
		&e.RecordsImported, &e.ErrorMessage, &e.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get ledger entry %s", fileID)
	}
	return &e, nil
}

func (s *PostgresStore) CreateLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	status := entry.Status
	if status == "" {
		status = model.LedgerStatusProcessing
	}
	processedAt := entry.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO processed_files (id, user_id, file_id, file_name, checksum, status, records_imported, error_message, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), entry.UserID, entry.FileID, entry.FileName, entry.Checksum,
		string(status), entry.RecordsImported, entry.ErrorMessage, processedAt,
	)
	return eris.Wrapf(err, "postgres: create ledger entry %s", entry.FileID)
}

func (s *PostgresStore) CompleteLedgerEntry(ctx context.Context, userID int64, fileID string, records int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processed_files SET status = $1, records_imported = $2, error_message = '', processed_at = $3 WHERE user_id = $4 AND file_id = $5`,
		string(model.LedgerStatusCompleted), records, time.Now().UTC(), userID, fileID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete ledger entry %s", fileID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger entry not found: %s", fileID)
	}
	return nil
}

func (s *PostgresStore) FailLedgerEntry(ctx context.Context, userID int64, fileID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processed_files SET status = $1, error_message = $2, processed_at = $3 WHERE user_id = $4 AND file_id = $5`,
		string(model.LedgerStatusFailed), errMsg, time.Now().UTC(), userID, fileID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail ledger entry %s", fileID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger entry not found: %s", fileID)
	}
	return nil
}

func (s *PostgresStore) DeleteLedgerEntry(ctx context.Context, userID int64, fileID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM processed_files WHERE user_id = $1 AND file_id = $2`,
		userID, fileID,
	)
	return eris.Wrapf(err, "postgres: delete ledger entry %s", fileID)
}

func (s *PostgresStore) InsertScore(ctx context.Context, score *model.Score) error {
	if score.ID == "" {
		score.ID = uuid.New().String()
	}
	if score.ComputedAt.IsZero() {
		score.ComputedAt = time.Now().UTC()
	}

	devJSON, err := json.Marshal(score.Deviations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal deviations")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO care_scores (id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		score.ID, score.UserID, score.ComputedAt, score.Severity, score.Persistence,
		score.CrossSignal, score.ManualModifier, score.Aggregate, score.Drift,
		score.Confidence, score.Stability, string(score.Status), devJSON, score.Explanation,
	)
	return eris.Wrap(err, "postgres: insert score")
}

func (s *PostgresStore) LatestScore(ctx context.Context, userID int64) (*model.Score, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation FROM care_scores WHERE user_id = $1 ORDER BY computed_at DESC LIMIT 1`,
		userID,
	)
	sc, err := scanPostgresScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest score")
	}
	return sc, nil
}

func (s *PostgresStore) ScoresSince(ctx context.Context, userID int64, since time.Time) ([]model.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, computed_at, severity, persistence, cross_signal, manual_modifier, aggregate, drift, confidence, stability, status, deviations, explanation FROM care_scores WHERE user_id = $1 AND computed_at >= $2 ORDER BY computed_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scores since")
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		sc, err := scanPostgresScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		scores = append(scores, *sc)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: scores since iterate")
}

func (s *PostgresStore) CreateNotifications(ctx context.Context, notifs []model.Notification) error {
	if len(notifs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin notifications tx")
	}
	defer tx.Rollback(ctx)

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
		if _, err := tx.Exec(ctx,
			`INSERT INTO notifications (id, user_id, type, title, message, related_user_id, related_score_id, priority, is_read, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedUserID, relatedScoreID,
			n.Priority, n.IsRead, n.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert notification for user %d", n.UserID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit notifications")
}

func (s *PostgresStore) Notifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, title, message, related_user_id, related_score_id, priority, is_read, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: notifications")
	}
	defer rows.Close()

	var notifs []model.Notification
	for rows.Next() {
		var n model.Notification
		var relatedScoreID *string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.RelatedUserID, &relatedScoreID, &n.Priority, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan notification")
		}
		if relatedScoreID != nil {
			n.RelatedScoreID = *relatedScoreID
		}
		notifs = append(notifs, n)
	}
	return notifs, eris.Wrap(rows.Err(), "postgres: notifications iterate")
}

func (s *PostgresStore) AcceptedCareTeam(ctx context.Context, patientID int64) ([]model.CareLink, error) {
	// role DESC puts doctors ahead of caretakers for dispatch ordering.
	rows, err := s.pool.Query(ctx,
		`SELECT patient_id, member_id, role, status, access_level FROM care_links WHERE patient_id = $1 AND status = $2 ORDER BY role DESC, member_id`,
		patientID, string(model.LinkAccepted),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: accepted care team")
	}
	defer rows.Close()

	var links []model.CareLink
	for rows.Next() {
		var l model.CareLink
		if err := rows.Scan(&l.PatientID, &l.MemberID, &l.Role, &l.Status, &l.AccessLevel); err != nil {
			return nil, eris.Wrap(err, "postgres: scan care link")
		}
		links = append(links, l)
	}
	return links, eris.Wrap(rows.Err(), "postgres: accepted care team iterate")
}

func (s *PostgresStore) UpsertCareLink(ctx context.Context, link model.CareLink) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO care_links (patient_id, member_id, role, status, access_level) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (patient_id, member_id, role) DO UPDATE SET status = $4, access_level = $5`,
		link.PatientID, link.MemberID, string(link.Role), string(link.Status), link.AccessLevel,
	)
	return eris.Wrap(err, "postgres: upsert care link")
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, role FROM users WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Name, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get user %d", userID)
	}
	return &u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, role) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = $2, role = $3`,
		user.ID, user.Name, user.Role,
	)
	return eris.Wrap(err, "postgres: upsert user")
}

// AcquireSyncLock takes a transaction-scoped advisory lock keyed by user.
// The lock transaction stays open until release is called; if the process
// dies mid-sync the session closes and PostgreSQL frees the lock itself.
func (s *PostgresStore) AcquireSyncLock(ctx context.Context, userID int64) (func(), error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin lock tx")
	}

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, syncLockKey(userID)).Scan(&locked); err != nil {
		_ = tx.Rollback(ctx)
		return nil, eris.Wrapf(err, "postgres: acquire sync lock for user %d", userID)
	}
	if !locked {
		_ = tx.Rollback(ctx)
		return nil, ErrSyncBusy
	}

	return func() { _ = tx.Rollback(context.Background()) }, nil
}

// syncLockKey packs the lock class and user ID into a single advisory key.
func syncLockKey(userID int64) int64 {
	return int64(syncLockClass)<<32 | (userID & 0xFFFFFFFF)
}

// signalColumn maps a canonical signal name to its storage column, rejecting
// anything outside the known set before it reaches query text.
func signalColumn(signal string) (string, error) {
	for _, s := range model.Signals {
		if s == signal {
			return signal, nil
		}
	}
	return "", eris.Errorf("store: unknown signal %q", signal)
}

func scanPostgresScore(row scannable) (*model.Score, error) {
	var sc model.Score
	var devJSON []byte

	err := row.Scan(&sc.ID, &sc.UserID, &sc.ComputedAt, &sc.Severity, &sc.Persistence,
		&sc.CrossSignal, &sc.ManualModifier, &sc.Aggregate, &sc.Drift,
		&sc.Confidence, &sc.Stability, &sc.Status, &devJSON, &sc.Explanation)
	if err != nil {
		return nil, err
	}

	if len(devJSON) > 0 {
		if err := json.Unmarshal(devJSON, &sc.Deviations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal deviations")
		}
	}
	return &sc, nil
}
