package store

import (
	"testing"
	"time"

	"github.com/BTreeMap/CarePing/internal/models"
)

func key(slot string) models.OccurrenceKey {
	return models.OccurrenceKey{SubjectID: "olha", Date: "2026-08-25", Slot: slot}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	s := NewInstanceStore()
	at := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)

	first := s.GetOrCreate(key("08:00"), "Ольга", "ліки", "Вт ранок", at)
	second := s.GetOrCreate(key("08:00"), "ignored", "ignored", "ignored", at.Add(time.Hour))
	if first != second {
		t.Fatal("GetOrCreate returned different pointers for the same key")
	}
	if second.DoseText != "ліки" || second.Label != "Вт ранок" {
		t.Errorf("second create overwrote fields: %+v", second)
	}
	if first.Status != models.StatusPending {
		t.Errorf("new instance status = %s, want pending", first.Status)
	}
	if s.Get(key("08:00")) != first {
		t.Error("Get did not return the created instance")
	}
	if s.Get(key("09:00")) != nil {
		t.Error("Get returned instance for unknown key")
	}
}

func TestFindAwaitingWinsOverLatest(t *testing.T) {
	s := NewInstanceStore()
	morning := s.GetOrCreate(key("08:00"), "Ольга", "", "", time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC))
	evening := s.GetOrCreate(key("20:00"), "Ольга", "", "", time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC))

	morning.Status = models.StatusAwaiting
	evening.Status = models.StatusEscalated

	if got := s.FindAwaiting("olha", "2026-08-25"); got != morning {
		t.Error("FindAwaiting did not return the awaiting instance")
	}
	// Latest unconfirmed prefers the most recently due, regardless of awaiting.
	if got := s.FindLatestUnconfirmed("olha", "2026-08-25"); got != evening {
		t.Error("FindLatestUnconfirmed did not return the latest unconfirmed instance")
	}
}

func TestFindLatestUnconfirmedSkipsConfirmed(t *testing.T) {
	s := NewInstanceStore()
	morning := s.GetOrCreate(key("08:00"), "Ольга", "", "", time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC))
	evening := s.GetOrCreate(key("20:00"), "Ольга", "", "", time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC))

	evening.Status = models.StatusConfirmed
	if got := s.FindLatestUnconfirmed("olha", "2026-08-25"); got != morning {
		t.Error("confirmed instance not skipped")
	}
	morning.Status = models.StatusConfirmed
	if got := s.FindLatestUnconfirmed("olha", "2026-08-25"); got != nil {
		t.Error("expected nil when everything is confirmed")
	}
	if got := s.FindAwaiting("olha", "2026-08-25"); got != nil {
		t.Error("expected nil awaiting")
	}
}

func TestFindScopedToSubjectAndDate(t *testing.T) {
	s := NewInstanceStore()
	inst := s.GetOrCreate(key("08:00"), "Ольга", "", "", time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC))
	inst.Status = models.StatusAwaiting

	if s.FindAwaiting("other", "2026-08-25") != nil {
		t.Error("awaiting leaked across subjects")
	}
	if s.FindAwaiting("olha", "2026-08-24") != nil {
		t.Error("awaiting leaked across dates")
	}
}

func TestMeasureState(t *testing.T) {
	s := NewInstanceStore()
	ms := s.MeasureState("olha", "bp", "2026-08-25")
	if ms == nil || ms.ClarifyOpen() {
		t.Fatal("fresh measure state should exist with no open dialog")
	}
	if s.MeasureState("olha", "bp", "2026-08-25") != ms {
		t.Error("MeasureState not idempotent")
	}

	if s.ClarifyOpen("olha", "bp", "2026-08-25") || s.AnyClarifyOpen("olha", "2026-08-25") {
		t.Error("clarify reported open before start")
	}
	ms.ClarifyStartedAt = time.Now()
	if !s.ClarifyOpen("olha", "bp", "2026-08-25") {
		t.Error("ClarifyOpen false after start")
	}
	if !s.AnyClarifyOpen("olha", "2026-08-25") {
		t.Error("AnyClarifyOpen false after start")
	}
	if s.AnyClarifyOpen("olha", "2026-08-26") {
		t.Error("AnyClarifyOpen leaked across dates")
	}
}
