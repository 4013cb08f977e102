package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxBodyChars = 3000

// BuildPrompt constructs the LLM prompt for drafting replies to one post
func BuildPrompt(req Request) string {
	var sb strings.Builder
	p := req.Post

	sb.WriteString("You are drafting replies to a Reddit post on behalf of a brand that wants to be genuinely useful in the community.\n\n")

	sb.WriteString("## Post\n")
	sb.WriteString(fmt.Sprintf("Subreddit: r/%s\n", p.Subreddit))
	sb.WriteString(fmt.Sprintf("Title: %s\n", p.Title))
	if body := strings.TrimSpace(p.Body); body != "" {
		if len(body) > maxBodyChars {
			body = cutAtRune(body, maxBodyChars) + "..."
		}
		sb.WriteString(fmt.Sprintf("Body:\n%s\n", body))
	}

	if len(req.Snippets) > 0 {
		sb.WriteString("\n## Background\n")
		sb.WriteString("These sources may help. Only link one if it directly answers the question.\n")
		for _, s := range req.Snippets {
			sb.WriteString(fmt.Sprintf("- [%s] %s (%s)\n", s.Source, s.Title, s.URL))
		}
	}

	if g := strings.TrimSpace(req.Guidelines); g != "" {
		sb.WriteString("\n## Subreddit Rules\n")
		sb.WriteString(g)
		sb.WriteString("\nEvery reply MUST follow these rules. Do not write anything that violates them.\n")
	}

	if v := strings.TrimSpace(req.Voice); v != "" {
		sb.WriteString("\n## Voice\n")
		sb.WriteString(v)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Task\n\n")
	sb.WriteString(fmt.Sprintf("Write %d distinct replies. Each reply should:\n", req.Count))
	sb.WriteString("1. Answer the poster's actual question directly, with concrete steps or recommendations\n")
	sb.WriteString("2. Sound like a person, in first person, not like marketing copy\n")
	sb.WriteString("3. Stay between 40 and 150 words\n")
	sb.WriteString("4. Never self-promote, ask for upvotes or DMs, or share contact details\n\n")

	sb.WriteString("IMPORTANT: Respond with ONLY a valid JSON array of strings. No markdown, no code blocks, no explanation - just the raw JSON starting with [ and ending with ].\n\n")
	sb.WriteString("Example structure:\n")
	sb.WriteString(`["First reply...", "Second reply..."]`)
	sb.WriteString("\n")

	return sb.String()
}

// cutAtRune returns the longest prefix of s of at most n bytes that does
// not split a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
