package analysis

import (
	"fmt"
	"strings"
)

// Focus narrows what the model is asked to look for.
type Focus string

const (
	FocusGeneral     Focus = "general"
	FocusSecurity    Focus = "security"
	FocusPerformance Focus = "performance"
)

// ParseFocus maps user input to a Focus. Empty input means FocusGeneral.
func ParseFocus(s string) (Focus, bool) {
	switch Focus(strings.ToLower(strings.TrimSpace(s))) {
	case "", FocusGeneral:
		return FocusGeneral, true
	case FocusSecurity:
		return FocusSecurity, true
	case FocusPerformance:
		return FocusPerformance, true
	}
	return "", false
}

const systemPrompt = `You are an expert code reviewer. Analyze code snippets and give professional,
actionable feedback on security, performance, code quality and best practices.
Be constructive and specific.`

const responseFormat = `Respond with ONLY a JSON object (no markdown, no prose) of this shape:
{
  "summary": "1-2 sentence overall assessment",
  "score": 75,
  "issues": [
    {
      "severity": "HIGH",
      "category": "SECURITY",
      "line": 3,
      "issue": "what is wrong",
      "suggestion": "what to do instead",
      "example": "corrected code"
    }
  ],
  "positives": ["what the code does well"]
}
"score" is an integer from 0 (unusable) to 100 (exemplary).
"severity" is one of HIGH, MEDIUM, LOW.
"category" is one of SECURITY, PERFORMANCE, CODE_QUALITY, BEST_PRACTICES, STYLE.`

var focusInstructions = map[Focus]string{
	FocusGeneral: `Review the code snippet below. Identify security vulnerabilities, performance
problems and code quality issues. For each issue give its severity, category, line number(s),
a description, an actionable suggestion and an example of the fix.`,
	FocusSecurity: `Review the code snippet below SPECIFICALLY for security vulnerabilities:
injection (SQL/NoSQL/command), XSS, authentication or authorization bypass, sensitive data
exposure and risky dependencies. Report only security issues.`,
	FocusPerformance: `Review the code snippet below for performance problems: algorithmic
complexity, unnecessary work, memory leaks, network efficiency and database query patterns.
Report only performance issues.`,
}

// SystemPrompt returns the fixed system message sent with every analysis.
func SystemPrompt() string { return systemPrompt }

// BuildPrompt renders the user message for code under the given focus. The
// output depends only on its inputs.
func BuildPrompt(focus Focus, code string) string {
	instr, ok := focusInstructions[focus]
	if !ok {
		instr = focusInstructions[FocusGeneral]
	}
	return fmt.Sprintf("INSTRUCTIONS:\n%s\n\nCODE SNIPPET:\n%s\n\n%s", instr, code, responseFormat)
}
