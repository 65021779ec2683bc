// Package models defines the core data structures for CarePing.
//
// It includes subject roster types, per-occurrence reminder state, classifier
// verdicts, and audit records shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a dose occurrence.
type Status string

const (
	// StatusPending indicates the occurrence exists but its due time has not fired.
	StatusPending Status = "pending"
	// StatusAwaiting indicates the due prompt was sent and confirmation is outstanding.
	StatusAwaiting Status = "awaiting"
	// StatusConfirmed indicates the subject confirmed the dose (terminal).
	StatusConfirmed Status = "confirmed"
	// StatusEscalated indicates the escalation target was notified (terminal for
	// the day; a later confirmation is still accepted).
	StatusEscalated Status = "escalated"
)

// StartupSlot is the sentinel dose time meaning "fire once at process start".
const StartupSlot = "*"

// Error variables for better error handling and testability
var (
	ErrUnknownSubject = errors.New("unknown subject")
	ErrEmptySubjectID = errors.New("subject id cannot be empty")
	ErrEngineStopped  = errors.New("engine is stopped")
)

// OccurrenceKey uniquely identifies one calendar-day instantiation of a
// schedule item for one subject. Immutable once created.
type OccurrenceKey struct {
	SubjectID string // stable subject identifier
	Date      string // YYYY-MM-DD in the subject's local timezone
	Slot      string // schedule item time-of-day (HH:MM) or StartupSlot
}

// String renders the key in the slug form used for timer descriptions and logs.
func (k OccurrenceKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.SubjectID, k.Date, k.Slot)
}

// DoseInstance is the mutable runtime record for one dose occurrence.
// Owned by the instance store; the engine is the only mutator.
type DoseInstance struct {
	Key          OccurrenceKey
	SubjectLabel string
	DoseText     string
	Label        string // weekday/day-part label, cached at creation
	ScheduledAt  time.Time
	Status       Status
	AttemptsSent int
	Preconfirmed bool // confirmed ahead of the due time
	Escalated    bool
	ConfirmedAt  time.Time // zero until confirmed

	// Timer handles for the pending nag and escalation callbacks. Cancellation
	// is advisory; every callback re-checks Status before acting.
	NagTimerID      string
	EscalateTimerID string
}

// MeasureState tracks the clarify dialog for one (subject, kind, date).
// Separate from DoseInstance because a measurement check may re-enter
// clarification multiple times before resolving.
type MeasureState struct {
	SubjectID string
	Kind      string
	Date      string

	ClarifyStartedAt time.Time // zero when no dialog is open
	RecordedToday    bool

	ClarifyNagTimerID      string
	ClarifyEscalateTimerID string
}

// ClarifyOpen reports whether a clarification dialog is currently open.
func (m *MeasureState) ClarifyOpen() bool {
	return !m.ClarifyStartedAt.IsZero()
}

// VerdictType labels the outcome of classifying one inbound text.
type VerdictType string

const (
	// VerdictNegation indicates the subject reported not performing the action.
	VerdictNegation VerdictType = "negation"
	// VerdictConfirmation indicates an acknowledgment that the action was done.
	VerdictConfirmation VerdictType = "confirmation"
	// VerdictMeasureTyped indicates a well-formed typed reading (type + 3 ints).
	VerdictMeasureTyped VerdictType = "measure_typed"
	// VerdictMeasureMissingType indicates a bare numeric triple; always rejected.
	VerdictMeasureMissingType VerdictType = "measure_missing_type"
	// VerdictMeasureUnknownType indicates a typed reading with an unrecognized
	// leading token; the subject is asked to retry.
	VerdictMeasureUnknownType VerdictType = "measure_unknown_type"
	// VerdictMeasureLoose indicates three loosely delimited numbers found under
	// measurement intent (keyword or open clarify dialog).
	VerdictMeasureLoose VerdictType = "measure_loose"
	// VerdictMeasureClarifyNeeded indicates measurement intent without a usable
	// reading; opens or continues the clarify dialog.
	VerdictMeasureClarifyNeeded VerdictType = "measure_clarify_needed"
	// VerdictUnknown is the generic fallback; acknowledged but not state-changing.
	VerdictUnknown VerdictType = "unknown"
)

// Verdict is the tagged result of classifying inbound text. Values is only
// populated for the measurement verdicts that carry numbers.
type Verdict struct {
	Type        VerdictType
	MeasureType string // canonical measure type for VerdictMeasureTyped
	Values      [3]int
}

// Reading is a recorded vital-sign measurement.
type Reading struct {
	ID          string
	SubjectID   string
	Kind        string // measurement kind, e.g. "bp"
	MeasureType string // canonical type token, e.g. "швидко"
	Systolic    int
	Diastolic   int
	Pulse       int
	AutoSwapped bool // systolic/diastolic arrived in reversed order
	RecordedAt  time.Time
}

// Event categories for the audit log.
const (
	ScenarioDose    = "dose"
	ScenarioMeasure = "measure"
	ScenarioOther   = "other"
)

// Event names for the audit log.
const (
	EventDue             = "due_sent"
	EventNag             = "nag_sent"
	EventConfirmed       = "confirmed"
	EventEscalated       = "escalated"
	EventClarifyRequired = "clarify_required"
	EventClarifyNag      = "clarify_nag_sent"
	EventReadingRecorded = "reading_recorded"
	EventAck             = "ack"
	EventAckNegation     = "ack_negation"
	EventDuplicateIgnore = "duplicate_ignore"
)

// InboundMessage is one text message received from a chat transport.
type InboundMessage struct {
	From string // canonical sender identifier (E.164 phone)
	Body string
	Time time.Time
}

// Event is one audit record of an engine-visible action.
type Event struct {
	ID        string
	Scenario  string
	Event     string
	SubjectID string
	Slot      string
	Detail    string
	Text      string
	Time      time.Time
}
