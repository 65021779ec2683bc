package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Timezone:         "UTC",
		EscalationTarget: "+15550001111",
		Subjects: []Subject{{
			ID:      "olha",
			Label:   "Ольга",
			Channel: "+380501112233",
			Doses: []Dose{
				{Time: "08:00", Text: "ранкові ліки"},
				{Time: "20:00", Text: "вечірні ліки"},
			},
			MeasureChecks: []MeasureCheck{{Kind: "bp", Time: "09:00"}},
		}},
	}
}

func TestFinalizeValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if cfg.Location() == nil {
		t.Fatal("Location is nil after Finalize")
	}
	s := cfg.SubjectByID("olha")
	if s == nil {
		t.Fatal("SubjectByID returned nil")
	}
	if s.EscalationTarget != "+15550001111" {
		t.Errorf("escalation target not inherited: %q", s.EscalationTarget)
	}
	if len(s.Labels.Weekday) != 7 {
		t.Errorf("default weekday labels missing: %v", s.Labels.Weekday)
	}
	if cfg.NagAfter(s) != time.Duration(DefaultNagAfterMinutes)*time.Minute {
		t.Errorf("NagAfter default wrong: %v", cfg.NagAfter(s))
	}
}

func TestTimingOverrides(t *testing.T) {
	cfg := validConfig()
	cfg.Subjects[0].Timing = Timing{NagAfterMinutes: 5, EscalateAfterMinutes: 20}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	s := cfg.SubjectByID("olha")
	if cfg.NagAfter(s) != 5*time.Minute {
		t.Errorf("NagAfter override = %v, want 5m", cfg.NagAfter(s))
	}
	if cfg.EscalateAfter(s) != 20*time.Minute {
		t.Errorf("EscalateAfter override = %v, want 20m", cfg.EscalateAfter(s))
	}
	// Clarify delays keep the global defaults.
	if cfg.ClarifyNagAfter(s) != time.Duration(DefaultClarifyNagAfterMinutes)*time.Minute {
		t.Errorf("ClarifyNagAfter = %v, want default", cfg.ClarifyNagAfter(s))
	}
}

func TestValidateEnumeratesAllErrors(t *testing.T) {
	cfg := &Config{
		Timezone: "Mars/Olympus",
		Subjects: []Subject{
			{ID: "a", Label: "", Channel: "", Doses: []Dose{{Time: "25:99"}, {Time: "08:00"}, {Time: "08:00"}}},
			{ID: "a", Label: "Dup", Channel: "+1", MeasureChecks: []MeasureCheck{{Kind: "", Time: "bad"}}},
		},
	}
	err := cfg.Finalize()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"timezone",
		"label is required",
		"channel is required",
		"escalation_target is required",
		"bad HH:MM in dose time",
		"duplicate dose time",
		"duplicate id",
		"measure check kind is required",
		"bad HH:MM in measure check time",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q:\n%s", want, msg)
		}
	}
}

func TestStartupSlotAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Subjects[0].Doses = append(cfg.Subjects[0].Doses, Dose{Time: "*", Text: "стартова доза"})
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize rejected startup slot: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	data := `{
		"timezone": "UTC",
		"escalation_target": "+15550001111",
		"subjects": [{
			"id": "olha",
			"label": "Ольга",
			"channel": "+380501112233",
			"doses": [{"time": "08:00", "text": "ранкові ліки"}]
		}]
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.MeasureTypes) == 0 {
		t.Error("default measure types not applied")
	}
	if cfg.SubjectByID("olha") == nil {
		t.Error("subject not loaded")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseHHMM(t *testing.T) {
	h, m := ParseHHMM("08:30")
	if h != 8 || m != 30 {
		t.Errorf("ParseHHMM(08:30) = %d:%d", h, m)
	}
}
