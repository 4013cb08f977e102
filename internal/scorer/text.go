package scorer

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+(?:'[a-z]+)?`)

// words returns the lowercased word tokens of s.
func words(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// contentWords returns the distinct non-stopword tokens of s, in order
// of first appearance.
func contentWords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words(s) {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// sentenceCount counts sentence terminators, treating a trailing
// fragment as a sentence.
func sentenceCount(s string) int {
	n := 0
	inTerm := false
	for _, r := range s {
		switch r {
		case '.', '!', '?', '\n':
			if !inTerm {
				n++
			}
			inTerm = true
		default:
			if !unicode.IsSpace(r) {
				inTerm = false
			}
		}
	}
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)
	if trimmed != "" && !strings.ContainsRune(".!?", rune(trimmed[len(trimmed)-1])) {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

// syllables estimates the syllable count of an English word by counting
// vowel groups, dropping a silent trailing e.
func syllables(w string) int {
	w = strings.Trim(w, "'")
	if w == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range w {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// fleschReadingEase computes the Flesch reading-ease index of s.
func fleschReadingEase(s string) float64 {
	ws := words(s)
	if len(ws) == 0 {
		return 0
	}
	syl := 0
	for _, w := range ws {
		syl += syllables(w)
	}
	wordsPerSentence := float64(len(ws)) / float64(sentenceCount(s))
	syllablesPerWord := float64(syl) / float64(len(ws))
	return 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
}

// countPhrases returns how many of phrases occur in lower, matching on
// word boundaries.
func countPhrases(lower string, phrases []string) int {
	padded := " " + nonWord.ReplaceAllString(lower, " ") + " "
	n := 0
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			n++
		}
	}
	return n
}

// countOccurrences returns how many times any of phrases occurs in
// lower, counting every repetition.
func countOccurrences(lower string, phrases []string) int {
	tokens := strings.Fields(nonWord.ReplaceAllString(lower, " "))
	n := 0
	for _, p := range phrases {
		pw := strings.Fields(p)
		for i := 0; i+len(pw) <= len(tokens); i++ {
			if slices.Equal(tokens[i:i+len(pw)], pw) {
				n++
			}
		}
	}
	return n
}

var nonWord = regexp.MustCompile(`[^a-z0-9']+`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "your": true, "all": true, "any": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true, "has": true,
	"have": true, "him": true, "his": true, "how": true, "its": true, "let": true,
	"may": true, "she": true, "too": true, "use": true, "way": true, "who": true,
	"did": true, "get": true, "got": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "them": true, "then": true, "than": true, "there": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "will": true,
	"would": true, "could": true, "should": true, "about": true, "into": true,
	"just": true, "like": true, "some": true, "been": true, "being": true, "were": true,
	"does": true, "doing": true, "also": true, "very": true, "much": true, "more": true,
	"most": true, "such": true, "only": true, "other": true, "these": true, "those": true,
	"here": true, "why": true, "anyone": true, "someone": true, "something": true,
	"really": true, "know": true, "need": true, "want": true, "thanks": true,
	"i'm": true, "i've": true, "it's": true, "don't": true, "can't": true,
}
