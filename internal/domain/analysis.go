package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Severity levels reported for an issue.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Analysis is the structured review of a code snippet. It is stored verbatim
// in Review.AISuggestions. A non-empty Error marks a degraded record produced
// when the model output could not be parsed.
type Analysis struct {
	Summary   string   `json:"summary"`
	Score     int      `json:"score"`
	Issues    []Issue  `json:"issues"`
	Positives []string `json:"positives,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Degraded reports whether the record is a parse-failure placeholder.
func (a Analysis) Degraded() bool { return a.Error != "" }

// Issue is a single finding within an Analysis.
type Issue struct {
	Severity   string  `json:"severity"`
	Category   string  `json:"category"`
	Line       LineRef `json:"line,omitempty"`
	Issue      string  `json:"issue"`
	Suggestion string  `json:"suggestion"`
	Example    string  `json:"example,omitempty"`
}

// LineRef is a source location as reported by the model: a plain line number
// ("12") or a free-form range ("10-14"). Numbers round-trip as JSON numbers.
type LineRef string

// UnmarshalJSON accepts a JSON number, string or null; anything else is kept verbatim.
func (l *LineRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LineRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*l = LineRef(n.String())
		return nil
	}
	// Arrays, objects: keep the raw text rather than rejecting the record.
	*l = LineRef(b)
	return nil
}

// MarshalJSON emits integers as numbers and anything else as a string.
func (l LineRef) MarshalJSON() ([]byte, error) {
	if _, err := strconv.Atoi(string(l)); err == nil {
		return []byte(l), nil
	}
	return json.Marshal(string(l))
}
