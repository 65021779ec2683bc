// Package store provides storage for CarePing.
//
// This file implements the SQLite-backed audit store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/CarePing/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is the SQLite-backed audit store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite audit store. The DSN is a file path; the
// parent directory is created if missing and migrations are applied.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddEvent(ev models.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (id, scenario, event, subject_id, slot, detail, text, time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Scenario, ev.Event, ev.SubjectID, ev.Slot, ev.Detail, ev.Text, ev.Time.Unix(),
	)
	if err != nil {
		slog.Error("SQLiteStore AddEvent failed", "error", err, "subject", ev.SubjectID, "event", ev.Event)
		return fmt.Errorf("failed to insert event for %s: %w", ev.SubjectID, err)
	}
	slog.Debug("SQLiteStore AddEvent succeeded", "subject", ev.SubjectID, "event", ev.Event)
	return nil
}

func (s *SQLiteStore) AddReading(r models.Reading) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (id, subject_id, kind, measure_type, systolic, diastolic, pulse, auto_swapped, recorded_on, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SubjectID, r.Kind, r.MeasureType, r.Systolic, r.Diastolic, r.Pulse, r.AutoSwapped,
		r.RecordedAt.Format("2006-01-02"), r.RecordedAt.Unix(),
	)
	if err != nil {
		slog.Error("SQLiteStore AddReading failed", "error", err, "subject", r.SubjectID, "kind", r.Kind)
		return fmt.Errorf("failed to insert reading for %s: %w", r.SubjectID, err)
	}
	slog.Debug("SQLiteStore AddReading succeeded", "subject", r.SubjectID, "kind", r.Kind)
	return nil
}

func (s *SQLiteStore) HasReadingOn(subjectID, kind, date string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM readings WHERE subject_id = ? AND kind = ? AND recorded_on = ?`,
		subjectID, kind, date,
	).Scan(&n)
	if err != nil {
		slog.Error("SQLiteStore HasReadingOn query failed", "error", err, "subject", subjectID)
		return false, fmt.Errorf("failed to query readings: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetEvents(subjectID string) ([]models.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, scenario, event, subject_id, slot, detail, text, time FROM events WHERE subject_id = ? ORDER BY time`,
		subjectID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var ts int64
		if err := rows.Scan(&ev.ID, &ev.Scenario, &ev.Event, &ev.SubjectID, &ev.Slot, &ev.Detail, &ev.Text, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Time = time.Unix(ts, 0)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return events, nil
}

func (s *SQLiteStore) GetReadings(subjectID string) ([]models.Reading, error) {
	rows, err := s.db.Query(
		`SELECT id, subject_id, kind, measure_type, systolic, diastolic, pulse, auto_swapped, recorded_at
		 FROM readings WHERE subject_id = ? ORDER BY recorded_at`,
		subjectID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetReadings query failed", "error", err)
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var ts int64
		if err := rows.Scan(&r.ID, &r.SubjectID, &r.Kind, &r.MeasureType, &r.Systolic, &r.Diastolic, &r.Pulse, &r.AutoSwapped, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		r.RecordedAt = time.Unix(ts, 0)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading rows: %w", err)
	}
	return readings, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
