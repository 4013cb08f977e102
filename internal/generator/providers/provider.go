package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnavailable is returned by a provider that has no credentials.
var ErrUnavailable = errors.New("language model unavailable: no credentials configured")

// ParseCandidates parses a JSON array of reply strings. The array may be
// wrapped in a markdown code block or surrounded by prose.
func ParseCandidates(text string) ([]string, error) {
	jsonText := extractJSON(text)

	var out []string
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, fmt.Errorf("failed to parse candidates JSON: %w (response was: %.500s)", err, text)
	}
	return out, nil
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*?\\])\\s*\\n?```")
	rawArrayRe  = regexp.MustCompile(`(?s)(\[.*\])`)
)

// extractJSON attempts to extract a JSON array from a model response
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := codeBlockRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	if m := rawArrayRe.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return text
}
