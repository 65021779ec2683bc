// Package store provides storage for CarePing.
//
// This file implements the PostgreSQL-backed audit store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/CarePing/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is the PostgreSQL-backed audit store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL audit store from a connection string
// and applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddEvent(ev models.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (id, scenario, event, subject_id, slot, detail, text, time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.Scenario, ev.Event, ev.SubjectID, ev.Slot, ev.Detail, ev.Text, ev.Time.Unix(),
	)
	if err != nil {
		slog.Error("PostgresStore AddEvent failed", "error", err, "subject", ev.SubjectID, "event", ev.Event)
		return fmt.Errorf("failed to insert event for %s: %w", ev.SubjectID, err)
	}
	return nil
}

func (s *PostgresStore) AddReading(r models.Reading) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (id, subject_id, kind, measure_type, systolic, diastolic, pulse, auto_swapped, recorded_on, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.SubjectID, r.Kind, r.MeasureType, r.Systolic, r.Diastolic, r.Pulse, r.AutoSwapped,
		r.RecordedAt.Format("2006-01-02"), r.RecordedAt.Unix(),
	)
	if err != nil {
		slog.Error("PostgresStore AddReading failed", "error", err, "subject", r.SubjectID, "kind", r.Kind)
		return fmt.Errorf("failed to insert reading for %s: %w", r.SubjectID, err)
	}
	return nil
}

func (s *PostgresStore) HasReadingOn(subjectID, kind, date string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM readings WHERE subject_id = $1 AND kind = $2 AND recorded_on = $3`,
		subjectID, kind, date,
	).Scan(&n)
	if err != nil {
		slog.Error("PostgresStore HasReadingOn query failed", "error", err, "subject", subjectID)
		return false, fmt.Errorf("failed to query readings: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) GetEvents(subjectID string) ([]models.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, scenario, event, subject_id, slot, detail, text, time FROM events WHERE subject_id = $1 ORDER BY time`,
		subjectID,
	)
	if err != nil {
		slog.Error("PostgresStore GetEvents query failed", "error", err)
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

func (s *PostgresStore) GetReadings(subjectID string) ([]models.Reading, error) {
	rows, err := s.db.Query(
		`SELECT id, subject_id, kind, measure_type, systolic, diastolic, pulse, auto_swapped, recorded_at
		 FROM readings WHERE subject_id = $1 ORDER BY recorded_at`,
		subjectID,
	)
	if err != nil {
		slog.Error("PostgresStore GetReadings query failed", "error", err)
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
