package scheduler

import (
	"testing"
	"time"
)

func TestAddJobValidExpression(t *testing.T) {
	s := NewScheduler(time.UTC)
	defer s.Stop()

	if err := s.AddJob("0 8 * * *", func() {}); err != nil {
		t.Errorf("AddJob rejected valid expression: %v", err)
	}
}

func TestAddJobInvalidExpression(t *testing.T) {
	s := NewScheduler(time.UTC)
	defer s.Stop()

	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("AddJob accepted invalid expression")
	}
	// 6-field (seconds) expressions are rejected by the 5-field parser.
	if err := s.AddJob("0 0 8 * * *", func() {}); err == nil {
		t.Error("AddJob accepted 6-field expression")
	}
}

func TestAddDailyJob(t *testing.T) {
	s := NewScheduler(time.UTC)
	defer s.Stop()

	if err := s.AddDailyJob(8, 30, func() {}); err != nil {
		t.Errorf("AddDailyJob failed: %v", err)
	}
	if err := s.AddDailyJob(0, 0, func() {}); err != nil {
		t.Errorf("AddDailyJob midnight failed: %v", err)
	}
}
