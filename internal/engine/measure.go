// Package engine implements the reminder and escalation state machine.
//
// This file drives the measurement-check flow: the daily prompt, reading
// acceptance with auto-swap, and the re-entrant clarify dialog with its own
// nag and escalation cadence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CarePing/internal/config"
	"github.com/BTreeMap/CarePing/internal/models"
	"github.com/google/uuid"
)

// OnMeasureDue sends the daily measurement prompt. Unlike doses there is no
// awaiting state: the next inbound message is evaluated fresh.
func (e *Engine) OnMeasureDue(ctx context.Context, subjectID, kind string) error {
	if e.stopped.Load() {
		return models.ErrEngineStopped
	}
	s := e.cfg.SubjectByID(subjectID)
	if s == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownSubject, subjectID)
	}

	lock := e.lockSubject(subjectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.messenger.SendSubjectMessage(ctx, s.Channel, measureDuePrompt(s.Label)); err != nil {
		slog.Error("Engine measure prompt delivery failed", "error", err, "subject", subjectID, "kind", kind)
		return nil
	}
	e.logEvent(models.ScenarioMeasure, models.EventDue, subjectID, kind, "", "")
	slog.Info("Engine measure prompt sent", "subject", subjectID, "kind", kind)
	return nil
}

// measureKind resolves which measurement kind a free-text reading belongs to.
// Subjects carry a single kind today; the first configured check wins.
func measureKind(s *config.Subject) string {
	if len(s.MeasureChecks) > 0 {
		return s.MeasureChecks[0].Kind
	}
	return "bp"
}

// recordReading validates and persists an accepted reading, then closes any
// open clarify dialog. Swapped ordering is corrected and flagged, never
// rejected.
func (e *Engine) recordReading(s *config.Subject, date string, verdict models.Verdict, text string) string {
	kind := measureKind(s)
	vals := verdict.Values
	autoSwapped := false
	if vals[0] < vals[1] {
		vals[0], vals[1] = vals[1], vals[0]
		autoSwapped = true
	}

	reading := models.Reading{
		ID:          uuid.NewString(),
		SubjectID:   s.ID,
		Kind:        kind,
		MeasureType: verdict.MeasureType,
		Systolic:    vals[0],
		Diastolic:   vals[1],
		Pulse:       vals[2],
		AutoSwapped: autoSwapped,
		RecordedAt:  e.clock.Now(),
	}
	if err := e.audit.AddReading(reading); err != nil {
		slog.Error("Engine reading persist failed", "error", err, "subject", s.ID, "kind", kind)
	}

	ms := e.instances.MeasureState(s.ID, kind, date)
	ms.RecordedToday = true
	if ms.ClarifyOpen() {
		e.closeClarify(ms)
	}

	e.logEvent(models.ScenarioMeasure, models.EventReadingRecorded, s.ID, kind,
		fmt.Sprintf("%d/%d pulse %d swapped=%t", vals[0], vals[1], vals[2], autoSwapped), text)
	slog.Info("Engine reading recorded", "subject", s.ID, "kind", kind, "type", verdict.MeasureType, "auto_swapped", autoSwapped)
	return readingRecordedAck(verdict.MeasureType, vals[0], vals[1], vals[2])
}

// handleClarify opens the clarify dialog on first entry, arming its nag and
// escalation timers. Re-entry re-prompts without re-arming.
func (e *Engine) handleClarify(s *config.Subject, date string, verdict models.Verdict, text string) string {
	kind := measureKind(s)
	subjectID := s.ID
	ms := e.instances.MeasureState(subjectID, kind, date)
	if !ms.ClarifyOpen() {
		ms.ClarifyStartedAt = e.clock.Now()
		nagID, err := e.timer.ScheduleAfter(e.cfg.ClarifyNagAfter(s), func() { e.onClarifyNagFired(subjectID, kind, date) })
		if err != nil {
			slog.Error("Engine failed to arm clarify nag timer", "error", err, "subject", subjectID)
		}
		escID, err := e.timer.ScheduleAfter(e.cfg.ClarifyEscalateAfter(s), func() { e.onClarifyEscalateFired(subjectID, kind, date) })
		if err != nil {
			slog.Error("Engine failed to arm clarify escalation timer", "error", err, "subject", subjectID)
		}
		ms.ClarifyNagTimerID = nagID
		ms.ClarifyEscalateTimerID = escID
		e.logEvent(models.ScenarioMeasure, models.EventClarifyRequired, subjectID, kind, string(verdict.Type), text)
		slog.Info("Engine clarify dialog opened", "subject", subjectID, "kind", kind, "verdict", verdict.Type)
	}

	switch verdict.Type {
	case models.VerdictMeasureMissingType, models.VerdictMeasureUnknownType:
		return needTypePrompt()
	default:
		return clarifyPrompt()
	}
}

// closeClarify clears the dialog and cancels its timers. Cancellation is
// advisory; the callbacks re-check the dialog state themselves.
func (e *Engine) closeClarify(ms *models.MeasureState) {
	if ms.ClarifyNagTimerID != "" {
		e.timer.Cancel(ms.ClarifyNagTimerID)
		ms.ClarifyNagTimerID = ""
	}
	if ms.ClarifyEscalateTimerID != "" {
		e.timer.Cancel(ms.ClarifyEscalateTimerID)
		ms.ClarifyEscalateTimerID = ""
	}
	ms.ClarifyStartedAt = time.Time{}
}

func (e *Engine) onClarifyNagFired(subjectID, kind, date string) {
	lock := e.lockSubject(subjectID)
	lock.Lock()
	defer lock.Unlock()

	ms := e.instances.MeasureState(subjectID, kind, date)
	if !ms.ClarifyOpen() || ms.RecordedToday {
		slog.Debug("Engine clarify nag no-op", "subject", subjectID, "kind", kind)
		return
	}
	s := e.cfg.SubjectByID(subjectID)
	if s == nil {
		return
	}
	if _, err := e.messenger.SendSubjectMessage(context.Background(), s.Channel, clarifyNagPrompt()); err != nil {
		slog.Error("Engine clarify nag delivery failed", "error", err, "subject", subjectID)
	}
	e.logEvent(models.ScenarioMeasure, models.EventClarifyNag, subjectID, kind, "", "")
	slog.Info("Engine clarify nag sent", "subject", subjectID, "kind", kind)
}

func (e *Engine) onClarifyEscalateFired(subjectID, kind, date string) {
	lock := e.lockSubject(subjectID)
	lock.Lock()
	defer lock.Unlock()

	ms := e.instances.MeasureState(subjectID, kind, date)
	if !ms.ClarifyOpen() || ms.RecordedToday {
		slog.Debug("Engine clarify escalation no-op", "subject", subjectID, "kind", kind)
		return
	}
	s := e.cfg.SubjectByID(subjectID)
	if s == nil {
		return
	}
	if err := e.notifier.NotifyEscalation(context.Background(), s.EscalationTarget, measureEscalationNotice(s.Label)); err != nil {
		slog.Error("Engine clarify escalation delivery failed", "error", err, "subject", subjectID)
	}
	e.closeClarify(ms)
	e.logEvent(models.ScenarioMeasure, models.EventEscalated, subjectID, kind, "", "")
	slog.Warn("Engine escalated measurement check", "subject", subjectID, "kind", kind, "target", s.EscalationTarget)
}
