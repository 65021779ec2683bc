package classify

import (
	"testing"

	"github.com/BTreeMap/CarePing/internal/models"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(map[string][]string{
		"швидко":   {"швидко", "різко", "quick"},
		"повільно": {"повільно", "slow"},
	}, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestClassifyConfirmations(t *testing.T) {
	c := testClassifier(t)
	cases := []string{"ок", "ок!", "так", "ТАК", "ok", "done", "+", "✅", "👍", "прийняв", "я вже прийняла ліки", "выпил таблетку", "took it"}
	for _, text := range cases {
		if v := c.Classify(text, false); v.Type != models.VerdictConfirmation {
			t.Errorf("Classify(%q) = %s, want confirmation", text, v.Type)
		}
	}
}

func TestClassifyNegations(t *testing.T) {
	c := testClassifier(t)
	cases := []string{"ні", "не прийняв", "забула", "пропустив", "нет, не пил"}
	for _, text := range cases {
		if v := c.Classify(text, false); v.Type != models.VerdictNegation {
			t.Errorf("Classify(%q) = %s, want negation", text, v.Type)
		}
	}
}

func TestNegationBeatsConfirmation(t *testing.T) {
	c := testClassifier(t)
	// Both a negation stem and a confirmation stem present.
	if v := c.Classify("ні, ще не прийняв, але зроблю", false); v.Type != models.VerdictNegation {
		t.Errorf("got %s, want negation to win over confirmation", v.Type)
	}
}

func TestNegationStemNeedsWordEdges(t *testing.T) {
	c := testClassifier(t)
	// "не" embedded inside a larger word must not trigger negation.
	if v := c.Classify("незабаром", false); v.Type == models.VerdictNegation {
		t.Errorf("embedded stem classified as negation")
	}
}

func TestClassifyTypedMeasurement(t *testing.T) {
	c := testClassifier(t)
	v := c.Classify("швидко 120 80 60", false)
	if v.Type != models.VerdictMeasureTyped {
		t.Fatalf("got %s, want measure_typed", v.Type)
	}
	if v.MeasureType != "швидко" {
		t.Errorf("MeasureType = %q, want швидко", v.MeasureType)
	}
	if v.Values != [3]int{120, 80, 60} {
		t.Errorf("Values = %v, want [120 80 60]", v.Values)
	}

	// Variant token resolves to the canonical type, case-insensitively.
	v = c.Classify("Quick 118 76 58", false)
	if v.Type != models.VerdictMeasureTyped || v.MeasureType != "швидко" {
		t.Errorf("variant lookup: got %s/%q", v.Type, v.MeasureType)
	}
}

func TestClassifyUnknownTypeToken(t *testing.T) {
	c := testClassifier(t)
	if v := c.Classify("тиск 120 80 60", false); v.Type != models.VerdictMeasureUnknownType {
		t.Errorf("got %s, want measure_unknown_type", v.Type)
	}
}

func TestBareTripleAlwaysRejected(t *testing.T) {
	c := testClassifier(t)
	for _, clarifyOpen := range []bool{false, true} {
		if v := c.Classify("120 80 60", clarifyOpen); v.Type != models.VerdictMeasureMissingType {
			t.Errorf("clarifyOpen=%t: got %s, want measure_missing_type", clarifyOpen, v.Type)
		}
	}
}

func TestLooseMeasurementNeedsGate(t *testing.T) {
	c := testClassifier(t)

	// A domain keyword opens the loose path.
	v := c.Classify("мій тиск сьогодні 120/80, пульс 60", false)
	if v.Type != models.VerdictMeasureLoose {
		t.Fatalf("got %s, want measure_loose", v.Type)
	}
	if v.Values != [3]int{120, 80, 60} {
		t.Errorf("Values = %v, want [120 80 60]", v.Values)
	}

	// Without a keyword or open dialog the same numbers are unknown.
	if v := c.Classify("числа 120/80 і ще 60", false); v.Type != models.VerdictUnknown {
		t.Errorf("ungated: got %s, want unknown", v.Type)
	}

	// An open clarify dialog substitutes for the keyword.
	if v := c.Classify("ось 120/80 і 60", true); v.Type != models.VerdictMeasureLoose {
		t.Errorf("clarify open: got %s, want measure_loose", v.Type)
	}
}

func TestKeywordWithoutNumbers(t *testing.T) {
	c := testClassifier(t)
	if v := c.Classify("тиск поміряв, все добре", false); v.Type != models.VerdictMeasureClarifyNeeded {
		t.Errorf("got %s, want measure_clarify_needed", v.Type)
	}
}

func TestClassifyTotalAndDeterministic(t *testing.T) {
	c := testClassifier(t)
	inputs := []string{
		"", "   ", "привіт", "ok", "не знаю", "швидко 120 80 60", "120 80 60",
		"тиск", "!!!", "швидко 120 80", "abc def", "🙂", "швидко 999 999 999",
	}
	for _, text := range inputs {
		first := c.Classify(text, false)
		second := c.Classify(text, false)
		if first != second {
			t.Errorf("Classify(%q) not deterministic: %v vs %v", text, first, second)
		}
		if first.Type == "" {
			t.Errorf("Classify(%q) returned empty verdict type", text)
		}
	}
}

func TestLexiconOverrides(t *testing.T) {
	c, err := New(map[string][]string{"fast": {"fast"}}, Options{
		NegationStems:   []string{"nope"},
		ShortAcks:       []string{"yep"},
		ConfirmStems:    []string{"swallowed"},
		MeasureKeywords: []string{"bp"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if v := c.Classify("nope", false); v.Type != models.VerdictNegation {
		t.Errorf("override negation: got %s", v.Type)
	}
	if v := c.Classify("yep", false); v.Type != models.VerdictConfirmation {
		t.Errorf("override short ack: got %s", v.Type)
	}
	if v := c.Classify("i swallowed them", false); v.Type != models.VerdictConfirmation {
		t.Errorf("override confirm stem: got %s", v.Type)
	}
	// Default lexicons are replaced, not merged.
	if v := c.Classify("ок", false); v.Type == models.VerdictConfirmation {
		t.Errorf("default short ack still active after override")
	}
}

func TestNewRejectsBadVariants(t *testing.T) {
	if _, err := New(map[string][]string{"швидко": {"швидко 2"}}, Options{}); err == nil {
		t.Errorf("expected error for non-letters variant")
	}
}

func TestCanonicalType(t *testing.T) {
	c := testClassifier(t)
	if got := c.CanonicalType("РІЗКО"); got != "швидко" {
		t.Errorf("CanonicalType(РІЗКО) = %q, want швидко", got)
	}
	if got := c.CanonicalType("тиск"); got != "" {
		t.Errorf("CanonicalType(тиск) = %q, want empty", got)
	}
}
