// Package engine implements the reminder and escalation state machine.
//
// One Engine instance drives every monitored subject: daily due callbacks
// create per-occurrence instances, send prompts, and arm nag/escalation
// timers; inbound text is classified and resolved against the right pending
// instance. Timers and inbound handling run on preemptive goroutines, so all
// transitions for one subject are serialized through a per-subject mutex.
// Timer cancellation is advisory: every callback re-checks status before
// acting.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BTreeMap/CarePing/internal/classify"
	"github.com/BTreeMap/CarePing/internal/config"
	"github.com/BTreeMap/CarePing/internal/models"
	"github.com/BTreeMap/CarePing/internal/store"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Messenger delivers prompts to a subject's channel. Delivery may fail;
// failure is non-fatal except for the very first due prompt.
type Messenger interface {
	SendSubjectMessage(ctx context.Context, channel, text string) (string, error)
}

// Notifier delivers escalation notices to a supervising contact. Single
// best-effort attempt; the engine never retries a failed notification.
type Notifier interface {
	NotifyEscalation(ctx context.Context, target, text string) error
}

// DailyScheduler fires a task every day at a local wall-clock time.
type DailyScheduler interface {
	AddDailyJob(hour, minute int, task func()) error
}

// Clock supplies the current time. Injectable for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct {
	loc *time.Location
}

// NewClock returns a Clock reporting wall time in the given location.
func NewClock(loc *time.Location) Clock {
	return realClock{loc: loc}
}

func (c realClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Engine is the reminder and escalation state machine.
type Engine struct {
	cfg        *config.Config
	classifier *classify.Classifier
	instances  *store.InstanceStore
	audit      store.Store
	messenger  Messenger
	notifier   Notifier
	timer      Timer
	sched      DailyScheduler
	clock      Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	stopped atomic.Bool
}

// New creates an Engine. A nil clock defaults to wall time in the roster
// timezone.
func New(cfg *config.Config, classifier *classify.Classifier, instances *store.InstanceStore, audit store.Store,
	messenger Messenger, notifier Notifier, timer Timer, sched DailyScheduler, clock Clock) *Engine {
	if clock == nil {
		clock = NewClock(cfg.Location())
	}
	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		instances:  instances,
		audit:      audit,
		messenger:  messenger,
		notifier:   notifier,
		timer:      timer,
		sched:      sched,
		clock:      clock,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Start registers the daily due jobs for every subject and fires startup-slot
// doses exactly once.
func (e *Engine) Start(ctx context.Context) error {
	for i := range e.cfg.Subjects {
		s := &e.cfg.Subjects[i]
		for _, d := range s.Doses {
			if d.Time == models.StartupSlot {
				continue
			}
			hour, minute := config.ParseHHMM(d.Time)
			subjectID, slot := s.ID, d.Time
			err := e.sched.AddDailyJob(hour, minute, func() {
				if err := e.OnDoseDue(context.Background(), subjectID, slot); err != nil {
					slog.Error("Engine dose due handling failed", "error", err, "subject", subjectID, "slot", slot)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to schedule dose for %s at %s: %w", subjectID, slot, err)
			}
		}
		for _, mc := range s.MeasureChecks {
			hour, minute := config.ParseHHMM(mc.Time)
			subjectID, kind := s.ID, mc.Kind
			err := e.sched.AddDailyJob(hour, minute, func() {
				if err := e.OnMeasureDue(context.Background(), subjectID, kind); err != nil {
					slog.Error("Engine measure due handling failed", "error", err, "subject", subjectID, "kind", kind)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to schedule measure check for %s (%s): %w", subjectID, kind, err)
			}
		}
	}

	for i := range e.cfg.Subjects {
		s := &e.cfg.Subjects[i]
		for _, d := range s.Doses {
			if d.Time != models.StartupSlot {
				continue
			}
			if err := e.OnDoseDue(ctx, s.ID, models.StartupSlot); err != nil {
				slog.Error("Engine startup dose handling failed", "error", err, "subject", s.ID)
			}
		}
	}

	slog.Info("Engine started", "subjects", len(e.cfg.Subjects))
	return nil
}

// Stop cancels all outstanding timers and rejects further calls.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.timer.Stop()
	slog.Info("Engine stopped")
}

// lockSubject returns the mutex serializing all transitions for one subject.
func (e *Engine) lockSubject(subjectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.locks[subjectID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[subjectID] = m
	}
	return m
}

// OnDoseDue handles a due firing for one dose slot. Idempotent: once the
// occurrence has left Pending, duplicate firings are no-ops.
func (e *Engine) OnDoseDue(ctx context.Context, subjectID, slot string) error {
	if e.stopped.Load() {
		return models.ErrEngineStopped
	}
	if subjectID == "" {
		return models.ErrEmptySubjectID
	}
	s := e.cfg.SubjectByID(subjectID)
	if s == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownSubject, subjectID)
	}

	lock := e.lockSubject(subjectID)
	lock.Lock()
	defer lock.Unlock()

	now := e.clock.Now()
	scheduledAt := now
	var doseText string
	for _, d := range s.Doses {
		if d.Time == slot {
			doseText = d.Text
			break
		}
	}
	if slot != models.StartupSlot {
		hour, minute := config.ParseHHMM(slot)
		scheduledAt = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, e.cfg.Location())
	}

	key := models.OccurrenceKey{SubjectID: subjectID, Date: now.Format(dateLayout), Slot: slot}
	inst := e.instances.GetOrCreate(key, s.Label, doseText, occurrenceLabel(s, scheduledAt), scheduledAt)
	if inst.Status != models.StatusPending {
		// Duplicate delivery, or the subject pre-confirmed.
		slog.Debug("Engine OnDoseDue no-op", "key", key.String(), "status", inst.Status)
		return nil
	}

	if _, err := e.messenger.SendSubjectMessage(ctx, s.Channel, doseDuePrompt(s.Label, inst.Label)); err != nil {
		// No point arming timers for a prompt the subject never saw.
		slog.Error("Engine due prompt delivery failed", "error", err, "key", key.String())
		return nil
	}
	inst.Status = models.StatusAwaiting
	inst.AttemptsSent = 1
	e.logEvent(models.ScenarioDose, models.EventDue, subjectID, slot, inst.Label, "")

	// Both delays count from the original due time, not from each other.
	nagID, err := e.timer.ScheduleAfter(delayFrom(scheduledAt, e.cfg.NagAfter(s), now), func() { e.onNagFired(key) })
	if err != nil {
		slog.Error("Engine failed to arm nag timer", "error", err, "key", key.String())
	}
	escID, err := e.timer.ScheduleAfter(delayFrom(scheduledAt, e.cfg.EscalateAfter(s), now), func() { e.onEscalateFired(key) })
	if err != nil {
		slog.Error("Engine failed to arm escalation timer", "error", err, "key", key.String())
	}
	inst.NagTimerID = nagID
	inst.EscalateTimerID = escID

	slog.Info("Engine dose prompt sent", "key", key.String(), "attempts", inst.AttemptsSent)
	return nil
}

// delayFrom converts "d after base" into a delay from now, clamped at zero.
func delayFrom(base time.Time, d time.Duration, now time.Time) time.Duration {
	delay := base.Add(d).Sub(now)
	if delay < 0 {
		delay = 0
	}
	return delay
}

func (e *Engine) onNagFired(key models.OccurrenceKey) {
	lock := e.lockSubject(key.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	inst := e.instances.Get(key)
	if inst == nil || inst.Status != models.StatusAwaiting {
		slog.Debug("Engine nag no-op", "key", key.String())
		return
	}
	s := e.cfg.SubjectByID(key.SubjectID)
	if s == nil {
		return
	}
	if _, err := e.messenger.SendSubjectMessage(context.Background(), s.Channel, doseNagPrompt(s.Label)); err != nil {
		slog.Error("Engine nag delivery failed", "error", err, "key", key.String())
	}
	inst.AttemptsSent++
	e.logEvent(models.ScenarioDose, models.EventNag, key.SubjectID, key.Slot, inst.Label, "")
	slog.Info("Engine nag sent", "key", key.String(), "attempts", inst.AttemptsSent)
}

func (e *Engine) onEscalateFired(key models.OccurrenceKey) {
	lock := e.lockSubject(key.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	inst := e.instances.Get(key)
	if inst == nil || inst.Status == models.StatusConfirmed || inst.Status == models.StatusEscalated {
		slog.Debug("Engine escalation no-op", "key", key.String())
		return
	}
	s := e.cfg.SubjectByID(key.SubjectID)
	if s == nil {
		return
	}
	ctx := context.Background()
	if _, err := e.messenger.SendSubjectMessage(ctx, s.Channel, doseMissedNotice(inst.Label)); err != nil {
		slog.Error("Engine missed notice delivery failed", "error", err, "key", key.String())
	}
	if err := e.notifier.NotifyEscalation(ctx, s.EscalationTarget, doseEscalationNotice(s.Label, inst.ScheduledAt, e.cfg.Location())); err != nil {
		slog.Error("Engine escalation notice delivery failed", "error", err, "key", key.String())
	}
	inst.Status = models.StatusEscalated
	inst.Escalated = true
	e.logEvent(models.ScenarioDose, models.EventEscalated, key.SubjectID, key.Slot, inst.Label, "")
	slog.Warn("Engine escalated dose occurrence", "key", key.String(), "target", s.EscalationTarget)
}

// OnInboundText classifies text from a subject and applies the resulting
// transition. It returns the verdict and the reply for the caller to deliver.
func (e *Engine) OnInboundText(ctx context.Context, subjectID, text string, receivedAt time.Time) (models.Verdict, string, error) {
	if e.stopped.Load() {
		return models.Verdict{Type: models.VerdictUnknown}, "", models.ErrEngineStopped
	}
	s := e.cfg.SubjectByID(subjectID)
	if s == nil {
		return models.Verdict{Type: models.VerdictUnknown}, "", fmt.Errorf("%w: %s", models.ErrUnknownSubject, subjectID)
	}

	lock := e.lockSubject(subjectID)
	lock.Lock()
	defer lock.Unlock()

	date := receivedAt.In(e.cfg.Location()).Format(dateLayout)
	verdict := e.classifier.Classify(text, e.instances.AnyClarifyOpen(subjectID, date))
	slog.Debug("Engine classified inbound text", "subject", subjectID, "verdict", verdict.Type)

	var reply string
	switch verdict.Type {
	case models.VerdictNegation:
		// A negation never escalates by itself; the normal nag cadence continues.
		reply = negationAck()
		e.logEvent(models.ScenarioDose, models.EventAckNegation, subjectID, "", "", text)
	case models.VerdictConfirmation:
		reply = e.handleConfirmation(ctx, s, date, text)
	case models.VerdictMeasureTyped, models.VerdictMeasureLoose:
		reply = e.recordReading(s, date, verdict, text)
	case models.VerdictMeasureMissingType, models.VerdictMeasureUnknownType, models.VerdictMeasureClarifyNeeded:
		reply = e.handleClarify(s, date, verdict, text)
	default:
		reply = genericAck()
		e.logEvent(models.ScenarioOther, models.EventAck, subjectID, "", string(verdict.Type), text)
	}
	return verdict, reply, nil
}

// handleConfirmation binds a confirmation to the right occurrence: the
// actively awaiting instance first, else the latest unconfirmed one today,
// else an upcoming dose inside the preconfirmation grace window.
func (e *Engine) handleConfirmation(ctx context.Context, s *config.Subject, date, text string) string {
	now := e.clock.Now()

	inst := e.instances.FindAwaiting(s.ID, date)
	if inst == nil {
		inst = e.instances.FindLatestUnconfirmed(s.ID, date)
	}
	if inst == nil {
		inst = e.upcomingWithinGrace(s, date, now)
	}
	if inst == nil {
		e.logEvent(models.ScenarioOther, models.EventAck, s.ID, "", "no pending dose", text)
		return genericAck()
	}
	if inst.Status == models.StatusConfirmed {
		e.logEvent(models.ScenarioDose, models.EventDuplicateIgnore, s.ID, inst.Key.Slot, inst.Label, text)
		return duplicateAck()
	}
	if inst.Status == models.StatusPending {
		if inst.ScheduledAt.Sub(now) > e.cfg.PreconfirmGrace() {
			e.logEvent(models.ScenarioOther, models.EventAck, s.ID, "", "outside preconfirm grace", text)
			return genericAck()
		}
		inst.Preconfirmed = true
	}

	wasEscalated := inst.Status == models.StatusEscalated
	inst.Status = models.StatusConfirmed
	inst.ConfirmedAt = now
	if inst.NagTimerID != "" {
		e.timer.Cancel(inst.NagTimerID)
		inst.NagTimerID = ""
	}
	if inst.EscalateTimerID != "" {
		e.timer.Cancel(inst.EscalateTimerID)
		inst.EscalateTimerID = ""
	}
	e.logEvent(models.ScenarioDose, models.EventConfirmed, s.ID, inst.Key.Slot, inst.Label, text)
	slog.Info("Engine dose confirmed", "key", inst.Key.String(), "preconfirmed", inst.Preconfirmed, "after_escalation", wasEscalated)

	if wasEscalated {
		if err := e.notifier.NotifyEscalation(ctx, s.EscalationTarget, confirmedAfterEscalationNotice(s.Label, inst.Label)); err != nil {
			slog.Error("Engine after-escalation notice delivery failed", "error", err, "subject", s.ID)
		}
	}
	return doseConfirmedAck(inst.Label)
}

// upcomingWithinGrace lazily creates today's next dose occurrence when its due
// time falls inside the preconfirmation grace window. The later due firing for
// a preconfirmed occurrence is a no-op.
func (e *Engine) upcomingWithinGrace(s *config.Subject, date string, now time.Time) *models.DoseInstance {
	grace := e.cfg.PreconfirmGrace()
	var bestSlot, bestText string
	var bestAt time.Time
	for _, d := range s.Doses {
		if d.Time == models.StartupSlot {
			continue
		}
		hour, minute := config.ParseHHMM(d.Time)
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, e.cfg.Location())
		if at.Before(now) || at.Sub(now) > grace {
			continue
		}
		if bestSlot == "" || at.Before(bestAt) {
			bestSlot, bestText, bestAt = d.Time, d.Text, at
		}
	}
	if bestSlot == "" {
		return nil
	}
	key := models.OccurrenceKey{SubjectID: s.ID, Date: date, Slot: bestSlot}
	return e.instances.GetOrCreate(key, s.Label, bestText, occurrenceLabel(s, bestAt), bestAt)
}

// logEvent writes one audit record. Best-effort: a failed insert never
// disturbs reminder state.
func (e *Engine) logEvent(scenario, event, subjectID, slot, detail, text string) {
	ev := models.Event{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		Event:     event,
		SubjectID: subjectID,
		Slot:      slot,
		Detail:    detail,
		Text:      text,
		Time:      e.clock.Now(),
	}
	if err := e.audit.AddEvent(ev); err != nil {
		slog.Error("Engine audit write failed", "error", err, "event", event, "subject", subjectID)
	}
}
