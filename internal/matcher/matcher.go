// Package matcher selects new posts that satisfy a configuration's
// keyword rules.
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// RuleError reports a keyword rule that cannot be compiled.
type RuleError struct {
	Rule types.KeywordRule
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid keyword rule %s: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Rule is a compiled keyword rule.
type Rule struct {
	source  types.KeywordRule
	literal string
	re      *regexp.Regexp
}

// Match reports whether the rule matches text.
func (r Rule) Match(text string) bool {
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), r.literal)
}

// String returns the rule as configured.
func (r Rule) String() string {
	return r.source.String()
}

// Compile validates and compiles rules. Empty literal patterns are
// rejected because they would match every post.
func Compile(rules []types.KeywordRule) ([]Rule, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, kr := range rules {
		if strings.TrimSpace(kr.Pattern) == "" {
			return nil, &RuleError{Rule: kr, Err: fmt.Errorf("empty pattern")}
		}
		if kr.Regex {
			re, err := regexp.Compile("(?i)" + kr.Pattern)
			if err != nil {
				return nil, &RuleError{Rule: kr, Err: err}
			}
			compiled = append(compiled, Rule{source: kr, re: re})
			continue
		}
		compiled = append(compiled, Rule{source: kr, literal: strings.ToLower(kr.Pattern)})
	}
	return compiled, nil
}

// ParseRule turns a flag or file value into a rule. Values wrapped in
// slashes (/pattern/) are regular expressions.
func ParseRule(s string) types.KeywordRule {
	if len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		return types.KeywordRule{Pattern: s[1 : len(s)-1], Regex: true}
	}
	return types.KeywordRule{Pattern: s}
}

// KnownKeys is the set of dedup keys already persisted.
type KnownKeys map[types.DedupKey]struct{}

// Add records key as known.
func (k KnownKeys) Add(key types.DedupKey) {
	k[key] = struct{}{}
}

// Has reports whether key is known.
func (k KnownKeys) Has(key types.DedupKey) bool {
	_, ok := k[key]
	return ok
}

// FindNewMatches returns the posts that match at least one rule and are
// not in known, in input order. It performs no I/O. An empty rule set
// matches nothing. Duplicate keys within posts are reported once.
func FindNewMatches(posts []types.RawPost, rules []Rule, known KnownKeys) []types.MatchedPost {
	if len(rules) == 0 {
		return nil
	}

	var matches []types.MatchedPost
	seen := make(map[types.DedupKey]bool)
	for _, p := range posts {
		key := p.Key()
		if known.Has(key) || seen[key] {
			continue
		}
		seen[key] = true

		text := p.Title + " " + p.Body
		var hits []string
		for _, r := range rules {
			if r.Match(text) {
				hits = append(hits, r.String())
			}
		}
		if len(hits) == 0 {
			continue
		}

		matches = append(matches, types.MatchedPost{
			Subreddit:       p.Subreddit,
			ExternalID:      p.ID,
			Title:           p.Title,
			Body:            p.Body,
			Author:          p.Author,
			Permalink:       p.Permalink,
			PostCreatedAt:   p.CreatedAt,
			MatchedKeywords: hits,
		})
	}
	return matches
}
