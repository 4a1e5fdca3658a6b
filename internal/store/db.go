package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-ingest-pipeline/internal/model"
)

// Store wraps the relational backing store for jobs and processed
// records. All job status transitions go through compare-and-set
// statements so a redelivered job id can never be processed twice.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	// busy timeout keeps concurrent worker batches from tripping
	// over sqlite's single-writer lock
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	jobTable := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		sources TEXT NOT NULL,
		rules TEXT NOT NULL,
		records_processed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	recordTable := `
	CREATE TABLE IF NOT EXISTS processed_records (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		source_type TEXT NOT NULL,
		category TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	// Keeps category-filtered, newest-first reads off full scans
	recordIndex := `
	CREATE INDEX IF NOT EXISTS idx_records_category_created
		ON processed_records (category, created_at);
	`

	for _, stmt := range []string{jobTable, recordTable, recordIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveJob stores a newly submitted job.
func (s *Store) SaveJob(job *model.IngestionJob) error {
	sourcesJSON, err := json.Marshal(job.Sources)
	if err != nil {
		return err
	}
	rulesJSON, err := json.Marshal(job.Rules)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO jobs (id, status, sources, rules, records_processed, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), sourcesJSON, rulesJSON,
		job.RecordsProcessed, job.Error, job.CreatedAt, job.UpdatedAt)
	return err
}

// GetJob fetches a job snapshot by id.
func (s *Store) GetJob(jobID string) (*model.IngestionJob, error) {
	var (
		job         model.IngestionJob
		status      string
		sourcesJSON string
		rulesJSON   string
	)

	err := s.db.QueryRow(
		`SELECT id, status, sources, rules, records_processed, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, jobID).
		Scan(&job.ID, &status, &sourcesJSON, &rulesJSON,
			&job.RecordsProcessed, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(sourcesJSON), &job.Sources); err != nil {
		return nil, fmt.Errorf("decode job sources: %w", err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &job.Rules); err != nil {
		return nil, fmt.Errorf("decode job rules: %w", err)
	}
	return &job, nil
}

// ListJobs returns all jobs, newest first. Entries carry the same
// fields as GetJob so list and single-job views agree.
func (s *Store) ListJobs() ([]*model.IngestionJob, error) {
	rows, err := s.db.Query(
		`SELECT id, status, sources, rules, records_processed, error, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.IngestionJob
	for rows.Next() {
		var (
			job         model.IngestionJob
			status      string
			sourcesJSON string
			rulesJSON   string
		)
		if err := rows.Scan(&job.ID, &status, &sourcesJSON, &rulesJSON,
			&job.RecordsProcessed, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		job.Status = model.JobStatus(status)
		if err := json.Unmarshal([]byte(sourcesJSON), &job.Sources); err != nil {
			return nil, fmt.Errorf("decode job sources: %w", err)
		}
		if err := json.Unmarshal([]byte(rulesJSON), &job.Rules); err != nil {
			return nil, fmt.Errorf("decode job rules: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// ClaimJob transitions a job from pending to running. It returns false
// when the job was already claimed (duplicate queue delivery) or has
// reached a terminal state.
func (s *Store) ClaimJob(jobID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusRunning), time.Now().UTC(), jobID, string(model.StatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinishJob transitions a running job to a terminal state and records
// the processed count plus any aggregated error summary. It returns
// false when the job was not in the running state.
func (s *Store) FinishJob(jobID string, status model.JobStatus, recordsProcessed int, errSummary string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finish job %s: %q is not a terminal status", jobID, status)
	}
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, records_processed = ?, error = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), recordsProcessed, errSummary, time.Now().UTC(),
		jobID, string(model.StatusRunning))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertRecords writes one source batch of processed records inside a
// single transaction, bounding transaction size to the batch.
func (s *Store) InsertRecords(records []*model.ProcessedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO processed_records (id, job_id, source_type, category, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		payloadJSON, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encode record payload: %w", err)
		}
		if _, err := stmt.Exec(rec.ID, rec.JobID, string(rec.SourceType),
			rec.Category, payloadJSON, rec.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QueryRecords returns processed records newest first, optionally
// filtered by category. Limit and offset are assumed validated by the
// caller.
func (s *Store) QueryRecords(category string, limit, offset int) ([]*model.ProcessedRecord, error) {
	query := `SELECT id, job_id, source_type, category, payload, created_at
		 FROM processed_records`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.ProcessedRecord
	for rows.Next() {
		var rec model.ProcessedRecord
		var sourceType, payloadJSON string
		if err := rows.Scan(&rec.ID, &rec.JobID, &sourceType,
			&rec.Category, &payloadJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.SourceType = model.SourceType(sourceType)
		if err := json.Unmarshal([]byte(payloadJSON), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode record payload: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountRecords returns the number of processed records for a job.
func (s *Store) CountRecords(jobID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM processed_records WHERE job_id = ?`, jobID).Scan(&n)
	return n, err
}
