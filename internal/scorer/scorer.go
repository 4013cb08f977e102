// Package scorer rates generated reply candidates on five weighted
// dimensions. Scoring is a pure function of its input text.
package scorer

import (
	"math"
	"regexp"
	"strings"

	"github.com/ibeckermayer/replyscout/internal/types"
)

// GoodThreshold is the sub-score below which feedback is emitted.
const GoodThreshold = 70

// Weights of each dimension in the composite score.
var Weights = map[types.Dimension]float64{
	types.Relevance:    0.25,
	types.Readability:  0.15,
	types.Authenticity: 0.20,
	types.Helpfulness:  0.25,
	types.Compliance:   0.15,
}

var gradeTable = []struct {
	min   int
	grade string
}{
	{95, "A+"}, {90, "A"}, {85, "A-"},
	{80, "B+"}, {75, "B"}, {70, "B-"},
	{65, "C+"}, {60, "C"}, {55, "C-"},
	{50, "D"},
}

// Grade maps a composite score to its letter grade.
func Grade(score int) string {
	for _, g := range gradeTable {
		if score >= g.min {
			return g.grade
		}
	}
	return "F"
}

// Score rates candidate as a reply to post.
func Score(candidate string, post types.MatchedPost) types.Score {
	breakdown := map[types.Dimension]int{
		types.Relevance:    relevance(candidate, post),
		types.Readability:  readability(candidate),
		types.Authenticity: authenticity(candidate),
		types.Helpfulness:  helpfulness(candidate),
		types.Compliance:   compliance(candidate),
	}

	var total float64
	for _, d := range types.Dimensions {
		total += Weights[d] * float64(breakdown[d])
	}

	var feedback []string
	for _, d := range types.Dimensions {
		if breakdown[d] < GoodThreshold {
			feedback = append(feedback, feedbackText[d])
		}
	}

	score := clamp(int(math.Round(total)))
	return types.Score{
		Total:     score,
		Grade:     Grade(score),
		Breakdown: breakdown,
		Feedback:  feedback,
	}
}

var feedbackText = map[types.Dimension]string{
	types.Relevance:    "Relevance: the reply does not engage enough with what the poster wrote; reference their specific situation or question.",
	types.Readability:  "Readability: aim for plain, conversational sentences and a length between roughly 20 and 150 words.",
	types.Authenticity: "Authenticity: the reply reads as promotional or formal; write in first person the way a regular community member would.",
	types.Helpfulness:  "Helpfulness: add concrete steps, a specific recommendation or a reference instead of general encouragement.",
	types.Compliance:   "Compliance: remove self-promotion, contact details or vote requests that subreddit rules usually forbid.",
}

var questionStarts = []string{
	"how", "what", "why", "which", "where", "when", "who", "is", "are", "can",
	"could", "should", "does", "do", "any", "anyone", "recommend", "recommendations",
	"advice", "help",
}

var answerMarkers = []string{
	"you can", "you could", "you should", "you might", "try", "i'd", "i would",
	"i recommend", "i'd recommend", "i suggest", "recommend", "suggest",
	"what worked", "worked for me", "the fix", "the answer", "check", "consider",
}

// isQuestion reports whether the post asks something.
func isQuestion(post types.MatchedPost) bool {
	text := post.Title + " " + post.Body
	if strings.Contains(text, "?") {
		return true
	}
	ws := words(post.Title)
	if len(ws) == 0 {
		return false
	}
	for _, q := range questionStarts {
		if ws[0] == q {
			return true
		}
	}
	return false
}

// relevance scores lexical overlap between candidate and post, with a
// bonus for a reply that answers a question.
func relevance(candidate string, post types.MatchedPost) int {
	postWords := contentWords(post.Title + " " + post.Body)
	if len(postWords) == 0 {
		return 50
	}
	cand := make(map[string]bool)
	for _, w := range contentWords(candidate) {
		cand[w] = true
	}

	// Title words count double; the title states the topic.
	titleWords := make(map[string]bool)
	for _, w := range contentWords(post.Title) {
		titleWords[w] = true
	}

	target := min(len(postWords), 8)
	hits := 0.0
	for _, w := range postWords {
		if !cand[w] {
			continue
		}
		if titleWords[w] {
			hits += 2
		} else {
			hits++
		}
	}
	overlap := math.Min(1, hits/float64(target))
	score := 80 * overlap

	if isQuestion(post) && countPhrases(strings.ToLower(candidate), answerMarkers) > 0 {
		score += 20
	} else if !isQuestion(post) && overlap >= 0.5 {
		score += 10
	}
	return clamp(int(math.Round(score)))
}

// readability maps Flesch reading ease so that 60-80 scores highest and
// penalizes length outside 20-150 words.
func readability(candidate string) int {
	n := len(words(candidate))
	if n == 0 {
		return 0
	}
	fre := fleschReadingEase(candidate)
	var score float64
	switch {
	case fre >= 60 && fre <= 80:
		score = 100
	case fre < 60:
		score = 100 - (60-fre)*2
	default:
		score = 100 - (fre-80)*1.5
	}
	switch {
	case n < 20:
		score -= float64(20-n) * 2.5
	case n > 150:
		score -= float64(n-150) * 0.5
	}
	return clamp(int(math.Round(score)))
}

var firstPerson = []string{"i", "i'm", "i've", "i'd", "i'll", "my", "me", "mine", "myself"}

var conversational = []string{
	"honestly", "tbh", "imo", "imho", "in my experience", "personally", "yeah",
	"haha", "fwiw", "i think", "i feel", "ended up", "for what it's worth", "same here",
}

var promotional = []string{
	"best in class", "limited time", "buy now", "sign up", "check out our",
	"our product", "our platform", "our service", "revolutionary", "game changer",
	"click here", "discount", "world class", "industry leading",
	"cutting edge", "unlock", "supercharge",
}

var formal = []string{
	"furthermore", "moreover", "in conclusion", "we are pleased", "dear", "sincerely",
	"hereby", "therefore", "additionally", "it is important to note", "utilize",
	"kindly", "henceforth", "esteemed",
}

// authenticity rewards first-person and conversational writing and
// penalizes marketing or formal register.
func authenticity(candidate string) int {
	lower := strings.ToLower(candidate)
	score := 55.0
	score += math.Min(25, float64(countPhrases(lower, firstPerson))*10)
	score += math.Min(20, float64(countPhrases(lower, conversational))*10)
	score -= float64(countPhrases(lower, promotional)) * 15
	score -= float64(countPhrases(lower, formal)) * 10
	return clamp(int(math.Round(score)))
}

var (
	listItemRe = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*•])\s+\S`)
	urlRe      = regexp.MustCompile(`https?://\S+`)
	numberRe   = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

var stepWords = []string{"first", "second", "third", "then", "next", "finally", "after that", "step"}

var recommendationWords = []string{
	"recommend", "suggest", "try", "use", "consider", "switch to", "look into", "set",
	"install", "run", "enable", "disable",
}

var referenceWords = []string{"docs", "documentation", "guide", "manual", "wiki", "faq", "tutorial", "book"}

var filler = []string{
	"it depends", "good luck", "just google", "google it", "hope this helps",
	"you'll figure it out", "many ways", "there are many", "do your research",
	"everyone is different", "your mileage may vary",
}

// helpfulness rewards concrete steps, specific recommendations and
// references, and penalizes vague filler.
func helpfulness(candidate string) int {
	lower := strings.ToLower(candidate)
	score := 40.0

	steps := len(listItemRe.FindAllString(candidate, -1)) + countPhrases(lower, stepWords)
	score += math.Min(30, float64(steps)*10)
	score += math.Min(20, float64(countPhrases(lower, recommendationWords))*10)

	refs := len(urlRe.FindAllString(candidate, -1)) + countPhrases(lower, referenceWords)
	if refs > 0 {
		score += 10
	}
	if numberRe.MatchString(urlRe.ReplaceAllString(candidate, "")) {
		score += 5
	}
	score -= math.Min(30, float64(countPhrases(lower, filler))*10)
	return clamp(int(math.Round(score)))
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?\d{1,2}[\s.-]?)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}`)
)

var selfPromotion = []string{
	"our product", "my company", "our company", "my startup", "our startup", "our app",
	"my app", "use my", "check out my", "affiliate", "promo code", "discount code",
	"referral link", "my channel", "my website", "our website", "we offer",
}

var contactPhrases = []string{"dm me", "pm me", "message me", "contact me", "email me", "reach out to me", "hit me up"}

var disallowed = []string{"upvote", "karma", "buy now", "click here", "sub to", "subscribe to my", "follow me"}

var shorteners = []string{"bit.ly/", "tinyurl.com/", "goo.gl/", "t.co/", "ow.ly/"}

// compliance starts from a clean score and deducts per violation of
// common subreddit rules.
func compliance(candidate string) int {
	lower := strings.ToLower(candidate)
	violations := countOccurrences(lower, selfPromotion) +
		countOccurrences(lower, contactPhrases) +
		countOccurrences(lower, disallowed) +
		len(emailRe.FindAllString(candidate, -1)) +
		len(phoneRe.FindAllString(candidate, -1))
	for _, s := range shorteners {
		violations += strings.Count(lower, s)
	}
	return clamp(100 - violations*25)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
