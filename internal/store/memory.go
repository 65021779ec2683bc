package store

import (
	"sync"

	"github.com/BTreeMap/CarePing/internal/models"
)

// InMemoryStore is an audit store kept entirely in memory. Used when no
// database DSN is configured, and in tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []models.Event
	readings []models.Reading
}

// NewInMemoryStore creates an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddEvent(ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *InMemoryStore) AddReading(r models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return nil
}

func (s *InMemoryStore) HasReadingOn(subjectID, kind, date string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.readings {
		if r.SubjectID == subjectID && r.Kind == kind && r.RecordedAt.Format("2006-01-02") == date {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) GetEvents(subjectID string) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, ev := range s.events {
		if ev.SubjectID == subjectID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetReadings(subjectID string) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reading
	for _, r := range s.readings {
		if r.SubjectID == subjectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
