// Package classify provides deterministic categorization of inbound subject
// text into confirmation, negation, measurement, and fallback verdicts.
//
// Classification is a pure function of the input text (plus the configured
// lexicons) and follows a fixed priority chain:
//
//	negation > confirmation > typed measurement > bare-triple rejection >
//	keyword-gated loose measurement > unknown
//
// Reordering the chain changes observable behavior and must not be done
// silently.
package classify

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/BTreeMap/CarePing/internal/models"
)

// Go's \b is ASCII-only, so word edges around Cyrillic stems are expressed
// explicitly as "not preceded/followed by a letter".
const (
	wordStart = `(?:^|[^\p{L}])`
	wordEnd   = `(?:$|[^\p{L}])`
)

// Default lexicons. Config may override them; these mirror the deployed
// Ukrainian/Russian roster.
var (
	// DefaultNegationStems covers "didn't", "forgot", "missed" inflections.
	DefaultNegationStems = []string{
		`ні`, `нет`, `не`, `не\s+пив`, `не\s*прийм\p{L}*`,
		`забув`, `забула`, `забыл`, `забыла`,
		`пропустив`, `пропустила`, `пропустил`,
	}

	// DefaultShortAcks are matched fully anchored, optional trailing punctuation.
	DefaultShortAcks = []string{
		`так`, `ок`, `окей`, `підтверджую`, `ok`, `okay`, `done`, `yes`, `y`, `\+`, `✅`, `👍`,
	}

	// DefaultConfirmStems are searched anywhere with word edges.
	DefaultConfirmStems = []string{
		`прийняв`, `прийняла`, `прийнято`, `випив`, `випила`, `готово`, `зробив`, `зробила`,
		`принял`, `приняла`, `выпил`, `выпила`, `сделал`, `сделала`,
		`took`, `taken`, `done`,
	}

	// DefaultMeasureKeywords gate the loose measurement path.
	DefaultMeasureKeywords = []string{
		"тиск", "систол", "діастол", "пульс", "ат", "давление", "pressure", "pulse",
	}
)

var (
	typedTripleRe = regexp.MustCompile(`^\s*(\p{L}+)\s+(\d{2,3})\s+(\d{2,3})\s+(\d{2,3})(?:[^0-9]|$)`)
	bareTripleRe  = regexp.MustCompile(`^\s*(\d{2,3})\s+(\d{2,3})\s+(\d{2,3})\s*$`)
	looseTripleRe = regexp.MustCompile(`(\d{2,3})[^0-9]+?(\d{2,3})[^0-9]+?(\d{2,3})`)
	lettersOnlyRe = regexp.MustCompile(`^\p{L}+$`)
)

// Classifier labels inbound free text. Safe for concurrent use; all state is
// immutable after construction.
type Classifier struct {
	negation    *regexp.Regexp
	shortAck    *regexp.Regexp
	confirm     *regexp.Regexp
	keywords    []string
	typeByToken map[string]string // lowercased variant -> canonical measure type
}

// Options overrides the default lexicons. Zero-value fields keep defaults.
type Options struct {
	NegationStems   []string
	ShortAcks       []string
	ConfirmStems    []string
	MeasureKeywords []string
}

// New builds a Classifier from a canonical-type→variants table and optional
// lexicon overrides. Returns an error if any lexicon entry fails to compile
// or any variant is not a letters-only token.
func New(measureTypes map[string][]string, opts Options) (*Classifier, error) {
	negStems := opts.NegationStems
	if negStems == nil {
		negStems = DefaultNegationStems
	}
	shortAcks := opts.ShortAcks
	if shortAcks == nil {
		shortAcks = DefaultShortAcks
	}
	confirmStems := opts.ConfirmStems
	if confirmStems == nil {
		confirmStems = DefaultConfirmStems
	}
	keywords := opts.MeasureKeywords
	if keywords == nil {
		keywords = DefaultMeasureKeywords
	}

	negation, err := regexp.Compile(`(?i)` + wordStart + `(` + strings.Join(negStems, `|`) + `)` + wordEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to compile negation lexicon: %w", err)
	}
	shortAck, err := regexp.Compile(`(?i)^\s*(` + strings.Join(shortAcks, `|`) + `)\s*[.!]?\s*$`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile short ack lexicon: %w", err)
	}
	confirm, err := regexp.Compile(`(?i)` + wordStart + `(` + strings.Join(confirmStems, `|`) + `)` + wordEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to compile confirmation lexicon: %w", err)
	}

	typeByToken := make(map[string]string)
	for canon, variants := range measureTypes {
		for _, v := range variants {
			if !lettersOnlyRe.MatchString(v) {
				return nil, fmt.Errorf("measure type %q variant %q must be letters-only", canon, v)
			}
			typeByToken[strings.ToLower(v)] = canon
		}
	}

	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}

	slog.Debug("Classifier built", "measure_types", len(measureTypes), "variants", len(typeByToken), "keywords", len(lowered))
	return &Classifier{
		negation:    negation,
		shortAck:    shortAck,
		confirm:     confirm,
		keywords:    lowered,
		typeByToken: typeByToken,
	}, nil
}

// CanonicalType resolves a leading measure-type token to its canonical name.
// Returns "" for tokens that are not letters-only or not in the table.
func (c *Classifier) CanonicalType(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" || !lettersOnlyRe.MatchString(t) {
		return ""
	}
	return c.typeByToken[t]
}

// Classify labels text. clarifyOpen reports whether a clarification dialog is
// already open for the sender, which gates the loose measurement path the
// same way a domain keyword does.
func (c *Classifier) Classify(text string, clarifyOpen bool) models.Verdict {
	t := strings.TrimSpace(text)
	if t == "" {
		return models.Verdict{Type: models.VerdictUnknown}
	}

	// Negation runs first: "не прийняв" must not read as a confirmation.
	if c.negation.MatchString(t) {
		return models.Verdict{Type: models.VerdictNegation}
	}

	if c.shortAck.MatchString(t) || c.confirm.MatchString(t) {
		return models.Verdict{Type: models.VerdictConfirmation}
	}

	if m := typedTripleRe.FindStringSubmatch(t); m != nil {
		canon := c.CanonicalType(m[1])
		if canon == "" {
			return models.Verdict{Type: models.VerdictMeasureUnknownType}
		}
		return models.Verdict{
			Type:        models.VerdictMeasureTyped,
			MeasureType: canon,
			Values:      [3]int{mustAtoi(m[2]), mustAtoi(m[3]), mustAtoi(m[4])},
		}
	}

	// Bare numeric triples are never accepted as readings: without a type the
	// numbers could be swapped or misattributed silently.
	if bareTripleRe.MatchString(t) {
		return models.Verdict{Type: models.VerdictMeasureMissingType}
	}

	if c.hasMeasureIntent(t) || clarifyOpen {
		if m := looseTripleRe.FindStringSubmatch(t); m != nil {
			return models.Verdict{
				Type:   models.VerdictMeasureLoose,
				Values: [3]int{mustAtoi(m[1]), mustAtoi(m[2]), mustAtoi(m[3])},
			}
		}
		return models.Verdict{Type: models.VerdictMeasureClarifyNeeded}
	}

	return models.Verdict{Type: models.VerdictUnknown}
}

func (c *Classifier) hasMeasureIntent(text string) bool {
	low := strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

// mustAtoi converts digit-only regexp captures; the patterns guarantee validity.
func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
