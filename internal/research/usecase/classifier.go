package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"taskflow-backend/internal/research/domain"
)

// Keyword lists are matched against whole words; entries with a space are matched as phrases.
var (
	operationalKeywords = []string{
		"fix", "bug", "debug", "hotfix", "deploy", "redeploy", "refactor", "merge", "rebase",
		"patch", "install", "reinstall", "upgrade", "restart", "reboot", "backup",
		"pay", "buy", "purchase", "order", "clean", "laundry", "groceries",
		"renew", "submit", "reply to", "respond to", "unsubscribe",
	}

	researchKeywords = []string{
		"research", "investigate", "explore", "compare", "comparison", "analyze", "analyse",
		"analysis", "evaluate", "assess", "study", "learn", "understand", "benchmark",
		"competitor", "competitors", "market", "alternatives", "options", "trends",
		"look into", "find out", "dig into", "read up", "deep dive",
		"prepare", "prep", "meeting", "briefing", "background",
	}

	meetingKeywords = []string{
		"meeting", "meet", "call with", "prepare for", "prep for", "briefing", "demo",
		"interview", "pitch", "intro call", "discovery call", "1:1", "sync with", "catch up with",
		"lunch with", "coffee with",
	}

	decideKeywords  = []string{"decide", "choose", "pick", "select", "should we", "should i", "which", "evaluate", "assess"}
	compareKeywords = []string{"compare", "comparison", "vs", "versus", "alternatives", "difference between", "differences"}
	learnKeywords   = []string{"learn", "understand", "how to", "tutorial", "guide", "study", "explain", "read up"}
)

var (
	emailPattern       = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	personPattern      = regexp.MustCompile(`\b(?:with|meet|meeting|call|for)\s+(?:[A-Z][a-z]+)(?:\s+[A-Z][a-z]+)?\b`)
	companySuffix      = regexp.MustCompile(`\b[A-Z][\w&-]*\s+(?:Inc|LLC|Ltd|Corp|Corporation|GmbH|Co|Company|Group|Labs|AG|SA)\b\.?`)
	companyFromPattern = regexp.MustCompile(`\b(?:from|at)\s+[A-Z][\w&-]+`)
)

// Classify decides whether a task is worth researching and which research type applies.
// roleHint is the owner's profile role, for example "sales".
func Classify(title, description, roleHint string) domain.Classification {
	text := title + " " + description
	words := tokenize(text)

	class := domain.Classification{Type: classifyType(text, words, roleHint)}

	switch {
	case containsAny(words, operationalKeywords):
		class.Eligible = false
	case containsAny(words, researchKeywords):
		class.Eligible = true
	}
	return class
}

// classifyType scores meeting signals. A meeting keyword is enough on its own;
// a person or company mention needs both signals unless the owner is in sales.
func classifyType(text string, words string, roleHint string) domain.Type {
	score := 0
	if containsAny(words, meetingKeywords) {
		score += 2
	}
	if emailPattern.MatchString(text) || personPattern.MatchString(text) {
		score++
	}
	if companySuffix.MatchString(text) || companyFromPattern.MatchString(text) {
		score++
	}

	threshold := 2
	if strings.EqualFold(strings.TrimSpace(roleHint), "sales") {
		threshold = 1
	}
	if score >= threshold {
		return domain.TypeMeetingPrep
	}
	return domain.TypeGeneral
}

// DetectIntent maps task text to the intent that drives planning
func DetectIntent(title, description string, typ domain.Type) domain.Intent {
	if typ == domain.TypeMeetingPrep {
		return domain.IntentMeetingPrep
	}
	words := tokenize(title + " " + description)
	switch {
	case containsAny(words, compareKeywords):
		return domain.IntentCompare
	case containsAny(words, decideKeywords):
		return domain.IntentDecide
	case containsAny(words, learnKeywords):
		return domain.IntentLearn
	default:
		return domain.IntentInvestigate
	}
}

// tokenize lowercases text and joins its words with single spaces, padded on both ends
func tokenize(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ':'
	})
	for i, f := range fields {
		fields[i] = strings.Trim(f, ":")
	}
	return " " + strings.Join(fields, " ") + " "
}

func containsAny(words string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(words, " "+k+" ") {
			return true
		}
	}
	return false
}
