package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one collection of one location.
type Run struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at"`
	Command        string `json:"command"`
	Source         string `json:"source"`
	LocationID     int64  `json:"location_id"`
	LocationName   string `json:"location_name"`
	Items          int    `json:"items"`
	RawItems       int    `json:"raw_items"`
	Chunks         int    `json:"chunks"`
	FailedChunks   int    `json:"failed_chunks"`
	FromDatapoints bool   `json:"from_datapoints"`
	DurationMs     int64  `json:"duration_ms"`
}

const runColumns = `id, started_at, command, source, location_id, location_name,
	items, raw_items, chunks, failed_chunks, from_datapoints, duration_ms`

// InsertRun stores r and returns its ID. A missing ID or start time is filled in.
func (d *DB) InsertRun(r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt == "" {
		r.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := d.sql.Exec(
		`INSERT INTO collection_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.Command, r.Source, r.LocationID, r.LocationName,
		r.Items, r.RawItems, r.Chunks, r.FailedChunks, r.FromDatapoints, r.DurationMs,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return r.ID, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.StartedAt, &r.Command, &r.Source, &r.LocationID, &r.LocationName,
		&r.Items, &r.RawItems, &r.Chunks, &r.FailedChunks, &r.FromDatapoints, &r.DurationMs)
	return r, err
}

// GetRuns returns the last N runs (newest first).
func (d *DB) GetRuns(limit int) []Run {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.Query(
		`SELECT `+runColumns+` FROM collection_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return []Run{}
	}
	defer rows.Close()

	records := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records
}

// GetRunByID returns a single run, or nil when it does not exist.
func (d *DB) GetRunByID(id string) *Run {
	r, err := scanRun(d.sql.QueryRow(`SELECT `+runColumns+` FROM collection_runs WHERE id = ?`, id))
	if err != nil {
		return nil
	}
	return &r
}

// ClearRuns deletes runs older than the given number of days together with
// their results, and returns how many runs were removed.
func (d *DB) ClearRuns(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)

	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	for _, table := range []string{"arbitrage_results", "margin_results"} {
		_, err := tx.Exec(
			`DELETE FROM `+table+` WHERE run_id IN (SELECT id FROM collection_runs WHERE started_at < ?)`,
			cutoff,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	result, err := tx.Exec("DELETE FROM collection_runs WHERE started_at < ?", cutoff)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	count, _ := result.RowsAffected()
	return count, nil
}
