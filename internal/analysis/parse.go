package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

const (
	fallbackSummary = "Unable to parse AI response. Please try again."
	fallbackError   = "JSON parsing failed"
)

// Fallback is the record returned when the model output cannot be parsed.
func Fallback() domain.Analysis {
	return domain.Analysis{
		Summary: fallbackSummary,
		Score:   0,
		Issues:  []domain.Issue{},
		Error:   fallbackError,
	}
}

// StripFences removes a leading ``` / ```lang fence and a trailing ``` fence,
// then trims surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && isLangTag(s[:nl]) {
			s = s[nl+1:]
		} else if isLangTag(s) {
			s = ""
		} else if strings.HasPrefix(strings.ToLower(s), "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isLangTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '#' || r == '_') {
			return false
		}
	}
	return true
}

type rawAnalysis struct {
	Summary        string          `json:"summary"`
	Score          json.RawMessage `json:"score"`
	Issues         []domain.Issue  `json:"issues"`
	SecurityIssues []domain.Issue  `json:"security_issues"`
	Positives      []string        `json:"positives"`
	Analysis       *rawAnalysis    `json:"analysis"`
}

// errNotARecord is returned for well-formed JSON that is not an analysis.
var errNotARecord = errors.New("model output is not an analysis record")

// Parse decodes model output into an Analysis. It accepts a bare record or
// one wrapped in {"analysis": {...}}, with or without markdown fences.
// The record must be an object carrying a summary or a score key.
// Severities are normalized and the score is clamped to [0,100].
func Parse(text string) (domain.Analysis, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return domain.Analysis{}, errors.New("empty model output")
	}
	if err := requireRecord([]byte(cleaned)); err != nil {
		return domain.Analysis{}, err
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return domain.Analysis{}, err
	}
	if raw.Analysis != nil {
		raw = *raw.Analysis
	}

	score, err := parseScore(raw.Score)
	if err != nil {
		return domain.Analysis{}, err
	}

	issues := make([]domain.Issue, 0, len(raw.Issues)+len(raw.SecurityIssues))
	for _, is := range append(raw.Issues, raw.SecurityIssues...) {
		is.Severity = normalizeSeverity(is.Severity)
		is.Category = strings.ToUpper(strings.TrimSpace(is.Category))
		issues = append(issues, is)
	}

	return domain.Analysis{
		Summary:   strings.TrimSpace(raw.Summary),
		Score:     score,
		Issues:    issues,
		Positives: raw.Positives,
	}, nil
}

// requireRecord checks by key presence, not zero value, that b (or its
// "analysis" envelope) is an object with a summary or score.
func requireRecord(b []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	if keys == nil {
		return errNotARecord
	}
	if inner, ok := keys["analysis"]; ok {
		return requireRecord(inner)
	}
	_, hasSummary := keys["summary"]
	_, hasScore := keys["score"]
	if !hasSummary && !hasScore {
		return errNotARecord
	}
	return nil
}

// parseScore accepts a JSON number or numeric string; absent means 0.
func parseScore(b json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return 0, nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return ClampScore(f), nil
}

// ClampScore rounds f and clamps it to [0,100].
func ClampScore(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	n := math.Round(f)
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return int(n)
}

func normalizeSeverity(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH", "CRITICAL", "BLOCKER":
		return domain.SeverityHigh
	case "LOW", "INFO", "MINOR", "NIT":
		return domain.SeverityLow
	default:
		return domain.SeverityMedium
	}
}
