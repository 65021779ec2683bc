// Package store provides storage for CarePing.
//
// This file defines the audit store abstraction: a persistent record of
// engine-visible events and recorded vital readings, with SQLite, PostgreSQL,
// and in-memory backends.
package store

import (
	"strings"

	"github.com/BTreeMap/CarePing/internal/models"
)

// Store persists audit events and vital readings. Writes are best-effort from
// the engine's perspective: a failed insert is logged and never corrupts
// reminder state.
type Store interface {
	// AddEvent records one engine-visible action.
	AddEvent(ev models.Event) error

	// AddReading records a validated vital-sign reading.
	AddReading(r models.Reading) error

	// HasReadingOn reports whether a reading of kind exists for the subject on
	// the local date (YYYY-MM-DD).
	HasReadingOn(subjectID, kind, date string) (bool, error)

	// GetEvents returns all events for a subject in insertion order.
	GetEvents(subjectID string) ([]models.Event, error)

	// GetReadings returns all readings for a subject in insertion order.
	GetReadings(subjectID string) ([]models.Reading, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
