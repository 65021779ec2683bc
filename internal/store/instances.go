// Package store provides storage for CarePing.
//
// This file implements the in-memory instance store: the single owner of all
// mutable per-occurrence reminder state. The engine is the only mutator;
// timer callbacks and message handlers resolve to the same instance through
// the deterministic occurrence key.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CarePing/internal/models"
)

// InstanceStore owns dose instances and measurement clarify states. Map
// access is guarded internally; transition-level serialization is the
// engine's responsibility.
type InstanceStore struct {
	mu        sync.RWMutex
	instances map[models.OccurrenceKey]*models.DoseInstance
	measures  map[measureKey]*models.MeasureState
}

type measureKey struct {
	subjectID string
	kind      string
	date      string
}

// NewInstanceStore creates an empty instance store.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{
		instances: make(map[models.OccurrenceKey]*models.DoseInstance),
		measures:  make(map[measureKey]*models.MeasureState),
	}
}

// GetOrCreate returns the instance for key, creating it in StatusPending if
// missing. Creation is idempotent: the same key always yields the same
// instance for the process lifetime. Instances are never deleted; they
// accumulate for audit but only today's drive live transitions.
func (s *InstanceStore) GetOrCreate(key models.OccurrenceKey, subjectLabel, doseText, label string, scheduledAt time.Time) *models.DoseInstance {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst, ok := s.instances[key]; ok {
		return inst
	}
	inst := &models.DoseInstance{
		Key:          key,
		SubjectLabel: subjectLabel,
		DoseText:     doseText,
		Label:        label,
		ScheduledAt:  scheduledAt,
		Status:       models.StatusPending,
	}
	s.instances[key] = inst
	slog.Debug("InstanceStore created instance", "key", key.String(), "scheduled_at", scheduledAt)
	return inst
}

// Get returns the instance for key, or nil.
func (s *InstanceStore) Get(key models.OccurrenceKey) *models.DoseInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instances[key]
}

// FindAwaiting returns the subject's instance currently mid-retry-cycle for
// the given date, if any. An active nag cycle represents explicit, timed
// intent, so it takes priority over "latest unconfirmed" when binding a bare
// confirmation.
func (s *InstanceStore) FindAwaiting(subjectID, date string) *models.DoseInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, inst := range s.instances {
		if key.SubjectID == subjectID && key.Date == date && inst.Status == models.StatusAwaiting {
			return inst
		}
	}
	return nil
}

// FindLatestUnconfirmed returns the subject's instance for the given date
// with the latest scheduled timestamp among those not yet confirmed. "Most
// recently due first" is the tie-break when several doses could be pending.
func (s *InstanceStore) FindLatestUnconfirmed(subjectID, date string) *models.DoseInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.DoseInstance
	for key, inst := range s.instances {
		if key.SubjectID != subjectID || key.Date != date || inst.Status == models.StatusConfirmed {
			continue
		}
		if latest == nil || inst.ScheduledAt.After(latest.ScheduledAt) {
			latest = inst
		}
	}
	return latest
}

// MeasureState returns the clarify-state record for (subject, kind, date),
// creating it if missing. Idempotent like GetOrCreate.
func (s *InstanceStore) MeasureState(subjectID, kind, date string) *models.MeasureState {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := measureKey{subjectID: subjectID, kind: kind, date: date}
	if ms, ok := s.measures[k]; ok {
		return ms
	}
	ms := &models.MeasureState{SubjectID: subjectID, Kind: kind, Date: date}
	s.measures[k] = ms
	slog.Debug("InstanceStore created measure state", "subject", subjectID, "kind", kind, "date", date)
	return ms
}

// ClarifyOpen reports whether a clarify dialog is open for (subject, kind,
// date) without creating state.
func (s *InstanceStore) ClarifyOpen(subjectID, kind, date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.measures[measureKey{subjectID: subjectID, kind: kind, date: date}]
	return ok && ms.ClarifyOpen()
}

// AnyClarifyOpen reports whether any measurement kind has an open clarify
// dialog for the subject on the given date. Used to gate the loose
// measurement classification path.
func (s *InstanceStore) AnyClarifyOpen(subjectID, date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, ms := range s.measures {
		if k.subjectID == subjectID && k.date == date && ms.ClarifyOpen() {
			return true
		}
	}
	return false
}
