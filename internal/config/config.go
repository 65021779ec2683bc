// Package config loads and validates the CarePing subject roster.
//
// The roster describes what must happen and when: doses and measurement
// checks per monitored subject, timing overrides, measure-type tables, and
// occurrence label tables. It is loaded once at startup, validated eagerly,
// and immutable afterwards. Validation enumerates every problem found, not
// just the first.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/CarePing/internal/models"
)

// Default timing values, overridable globally and per subject.
const (
	DefaultNagAfterMinutes             = 15
	DefaultEscalateAfterMinutes        = 60
	DefaultClarifyNagAfterMinutes      = 20
	DefaultClarifyEscalateAfterMinutes = 60
	DefaultPreconfirmGraceMinutes      = 30
	DefaultTimezone                    = "Europe/Kyiv"
	DefaultDaypartThreshold            = "16:00"
)

// Timing holds the reminder cadence delays in minutes. Zero means "use the
// next level of defaults".
type Timing struct {
	NagAfterMinutes             int `json:"nag_after_minutes,omitempty"`
	EscalateAfterMinutes        int `json:"escalate_after_minutes,omitempty"`
	ClarifyNagAfterMinutes      int `json:"clarify_nag_after_minutes,omitempty"`
	ClarifyEscalateAfterMinutes int `json:"clarify_escalate_after_minutes,omitempty"`
}

// Dose is one scheduled dose item. Time is HH:MM local, or "*" meaning fire
// once at process start.
type Dose struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// MeasureCheck is a daily expectation that a reading of Kind arrives by Time.
type MeasureCheck struct {
	Kind string `json:"kind"`
	Time string `json:"time"`
}

// Labels configures the weekday/day-part occurrence labels for a subject.
type Labels struct {
	Weekday        []string `json:"weekday"` // 7 entries, Monday first
	DaypartMorning string   `json:"daypart_morning"`
	DaypartEvening string   `json:"daypart_evening"`
	ThresholdHHMM  string   `json:"threshold_hhmm"`
}

// Subject describes one monitored person.
type Subject struct {
	ID               string         `json:"id"`
	Label            string         `json:"label"`
	Channel          string         `json:"channel"`                     // where prompts are sent
	EscalationTarget string         `json:"escalation_target,omitempty"` // falls back to global
	Timing           Timing         `json:"timing,omitempty"`
	Doses            []Dose         `json:"doses,omitempty"`
	MeasureChecks    []MeasureCheck `json:"measure_checks,omitempty"`
	Labels           Labels         `json:"labels"`
}

// Config is the validated roster plus classifier tables.
type Config struct {
	Timezone               string              `json:"timezone,omitempty"`
	EscalationTarget       string              `json:"escalation_target"`
	Defaults               Timing              `json:"defaults,omitempty"`
	PreconfirmGraceMinutes int                 `json:"preconfirm_grace_minutes,omitempty"`
	Subjects               []Subject           `json:"subjects"`
	MeasureTypes           map[string][]string `json:"measure_types,omitempty"`

	// Optional lexicon overrides; empty keeps the classify package defaults.
	NegationStems   []string `json:"negation_stems,omitempty"`
	ShortAcks       []string `json:"short_acks,omitempty"`
	ConfirmStems    []string `json:"confirm_stems,omitempty"`
	MeasureKeywords []string `json:"measure_keywords,omitempty"`

	loc *time.Location
}

// Load reads, fills in defaults, and validates a roster file.
func Load(path string) (*Config, error) {
	slog.Debug("Config Load invoked", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	slog.Info("Config loaded", "path", path, "subjects", len(cfg.Subjects))
	return &cfg, nil
}

// Finalize applies defaults and validates the configuration. It is exposed so
// tests can build configs in code the way Load builds them from a file.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Defaults.NagAfterMinutes == 0 {
		c.Defaults.NagAfterMinutes = DefaultNagAfterMinutes
	}
	if c.Defaults.EscalateAfterMinutes == 0 {
		c.Defaults.EscalateAfterMinutes = DefaultEscalateAfterMinutes
	}
	if c.Defaults.ClarifyNagAfterMinutes == 0 {
		c.Defaults.ClarifyNagAfterMinutes = DefaultClarifyNagAfterMinutes
	}
	if c.Defaults.ClarifyEscalateAfterMinutes == 0 {
		c.Defaults.ClarifyEscalateAfterMinutes = DefaultClarifyEscalateAfterMinutes
	}
	if c.PreconfirmGraceMinutes == 0 {
		c.PreconfirmGraceMinutes = DefaultPreconfirmGraceMinutes
	}
	if c.MeasureTypes == nil {
		c.MeasureTypes = map[string][]string{
			"швидко":   {"швидко", "різко", "одразу", "швидкий", "quick"},
			"повільно": {"повільно", "поступово", "slow"},
		}
	}
	for i := range c.Subjects {
		s := &c.Subjects[i]
		if s.EscalationTarget == "" {
			s.EscalationTarget = c.EscalationTarget
		}
		if s.Labels.ThresholdHHMM == "" {
			s.Labels.ThresholdHHMM = DefaultDaypartThreshold
		}
		if s.Labels.DaypartMorning == "" {
			s.Labels.DaypartMorning = "ранок"
		}
		if s.Labels.DaypartEvening == "" {
			s.Labels.DaypartEvening = "вечір"
		}
		if len(s.Labels.Weekday) == 0 {
			s.Labels.Weekday = []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Нд"}
		}
	}
}

// validate collects every problem into one error so operators can fix the
// roster in a single pass.
func (c *Config) validate() error {
	var errs []string

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is invalid: %v", c.Timezone, err))
	} else {
		c.loc = loc
	}

	for name, d := range map[string]int{
		"defaults.nag_after_minutes":              c.Defaults.NagAfterMinutes,
		"defaults.escalate_after_minutes":         c.Defaults.EscalateAfterMinutes,
		"defaults.clarify_nag_after_minutes":      c.Defaults.ClarifyNagAfterMinutes,
		"defaults.clarify_escalate_after_minutes": c.Defaults.ClarifyEscalateAfterMinutes,
		"preconfirm_grace_minutes":                c.PreconfirmGraceMinutes,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got %d", name, d))
		}
	}

	if len(c.Subjects) == 0 {
		errs = append(errs, "subjects must not be empty")
	}
	seenIDs := make(map[string]bool)
	for i := range c.Subjects {
		s := &c.Subjects[i]
		prefix := fmt.Sprintf("subject %q", s.ID)
		if s.ID == "" {
			prefix = fmt.Sprintf("subject #%d", i)
			errs = append(errs, prefix+": id is required")
		} else if seenIDs[s.ID] {
			errs = append(errs, prefix+": duplicate id")
		}
		seenIDs[s.ID] = true
		if s.Label == "" {
			errs = append(errs, prefix+": label is required")
		}
		if s.Channel == "" {
			errs = append(errs, prefix+": channel is required")
		}
		if s.EscalationTarget == "" {
			errs = append(errs, prefix+": escalation_target is required (no global default set)")
		}

		seenDoseTimes := make(map[string]bool)
		for _, d := range s.Doses {
			if d.Time != models.StartupSlot && !isHHMM(d.Time) {
				errs = append(errs, fmt.Sprintf("%s: bad HH:MM in dose time: %q", prefix, d.Time))
				continue
			}
			if seenDoseTimes[d.Time] {
				errs = append(errs, fmt.Sprintf("%s: duplicate dose time %q", prefix, d.Time))
			}
			seenDoseTimes[d.Time] = true
		}
		seenChecks := make(map[string]bool)
		for _, mc := range s.MeasureChecks {
			if mc.Kind == "" {
				errs = append(errs, prefix+": measure check kind is required")
			}
			if !isHHMM(mc.Time) {
				errs = append(errs, fmt.Sprintf("%s: bad HH:MM in measure check time: %q", prefix, mc.Time))
				continue
			}
			ck := mc.Kind + "@" + mc.Time
			if seenChecks[ck] {
				errs = append(errs, fmt.Sprintf("%s: duplicate measure check %s", prefix, ck))
			}
			seenChecks[ck] = true
		}

		if len(s.Labels.Weekday) != 7 {
			errs = append(errs, fmt.Sprintf("%s: labels.weekday must have 7 entries, got %d", prefix, len(s.Labels.Weekday)))
		}
		if !isHHMM(s.Labels.ThresholdHHMM) {
			errs = append(errs, fmt.Sprintf("%s: labels.threshold_hhmm must be HH:MM, got %q", prefix, s.Labels.ThresholdHHMM))
		}
	}

	if len(c.MeasureTypes) == 0 {
		errs = append(errs, "measure_types must not be empty")
	}
	for canon, variants := range c.MeasureTypes {
		if canon == "" || len(variants) == 0 {
			errs = append(errs, fmt.Sprintf("measure type %q must have at least one variant", canon))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Location returns the roster timezone. Only valid after Finalize succeeded.
func (c *Config) Location() *time.Location {
	return c.loc
}

// SubjectByID returns the subject with the given id, or nil.
func (c *Config) SubjectByID(id string) *Subject {
	for i := range c.Subjects {
		if c.Subjects[i].ID == id {
			return &c.Subjects[i]
		}
	}
	return nil
}

// Per-subject timing lookups with fallback to global defaults.

func (c *Config) NagAfter(s *Subject) time.Duration {
	return minutesOr(s.Timing.NagAfterMinutes, c.Defaults.NagAfterMinutes)
}

func (c *Config) EscalateAfter(s *Subject) time.Duration {
	return minutesOr(s.Timing.EscalateAfterMinutes, c.Defaults.EscalateAfterMinutes)
}

func (c *Config) ClarifyNagAfter(s *Subject) time.Duration {
	return minutesOr(s.Timing.ClarifyNagAfterMinutes, c.Defaults.ClarifyNagAfterMinutes)
}

func (c *Config) ClarifyEscalateAfter(s *Subject) time.Duration {
	return minutesOr(s.Timing.ClarifyEscalateAfterMinutes, c.Defaults.ClarifyEscalateAfterMinutes)
}

func (c *Config) PreconfirmGrace() time.Duration {
	return time.Duration(c.PreconfirmGraceMinutes) * time.Minute
}

func minutesOr(v, fallback int) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Minute
	}
	return time.Duration(fallback) * time.Minute
}

func isHHMM(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil && len(s) == 5
}

// ParseHHMM splits a validated HH:MM string.
func ParseHHMM(s string) (hour, minute int) {
	t, _ := time.Parse("15:04", s)
	return t.Hour(), t.Minute()
}
