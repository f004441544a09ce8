package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// BeginRun inserts a new run in the running state and returns its id.
func (s *Store) BeginRun(startedAt time.Time) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO runs (started_at, outcome) VALUES (?, ?)`,
		startedAt.UTC().Format(time.RFC3339), OutcomeRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to begin run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// FinishRun records a run's final outcome and counters.
func (s *Store) FinishRun(id int64, outcome string, uploaded, deleted, reused, failed int) error {
	_, err := s.db.Exec(
		`UPDATE runs
		 SET finished_at = ?, outcome = ?, uploaded = ?, deleted = ?, reused = ?, failed = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), outcome, uploaded, deleted, reused, failed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", id, err)
	}
	return nil
}

// RecordEvent appends a per-package outcome to a run.
func (s *Store) RecordEvent(runID int64, pkg, version, action, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO package_events (run_id, package, version, action, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, pkg, version, action, detail, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record event for %s: %w", pkg, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, outcome, uploaded, deleted, reused, failed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Outcome,
			&run.Uploaded, &run.Deleted, &run.Reused, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at for run %d: %w", run.ID, err)
		}
		if finishedAt.Valid {
			run.FinishedAt, err = time.Parse(time.RFC3339, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse finished_at for run %d: %w", run.ID, err)
			}
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// RunEvents returns a run's package events in insertion order.
func (s *Store) RunEvents(runID int64) ([]*PackageEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, package, version, action, detail, created_at
		 FROM package_events WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for run %d: %w", runID, err)
	}
	defer rows.Close()

	var events []*PackageEvent
	for rows.Next() {
		var event PackageEvent
		var version, detail sql.NullString
		var createdAt string

		if err := rows.Scan(&event.ID, &event.RunID, &event.Package,
			&version, &event.Action, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Version = version.String
		event.Detail = detail.String

		event.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for event %d: %w", event.ID, err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}
