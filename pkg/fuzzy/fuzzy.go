// Package fuzzy ranks tasks against a typo-tolerant search query.
package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field weights. A title hit outranks a tag hit, which outranks a description hit.
const (
	titleHit       = 100.0
	wholeWordBonus = 50.0
	typoPenalty    = 15.0
	titlePrefixHit = 40.0
	tagExactHit    = 70.0
	tagPrefixHit   = 35.0
	descriptionHit = 40.0
	descWordBonus  = 10.0

	// descriptions are only scanned this far for matches
	descriptionScan = 500
)

// Query is a normalized search string with its typo budget
type Query struct {
	text      string
	maxEdits  int
	shortText int
}

// NewQuery normalizes q. Longer queries tolerate more typos.
func NewQuery(q string) Query {
	text := Normalize(q)
	edits := 2
	switch n := len([]rune(text)); {
	case n <= 3:
		edits = 1
	case n >= 8:
		edits = 3
	}
	return Query{text: text, maxEdits: edits, shortText: 50}
}

// Empty reports whether nothing searchable is left after normalization
func (q Query) Empty() bool {
	return q.text == ""
}

// Matches reports whether any of the task fields contain the query or a close variant of it
func (q Query) Matches(title, description string, tags []string) bool {
	if q.Empty() {
		return false
	}
	if q.matchesText(title) {
		return true
	}
	for _, tag := range tags {
		if q.matchesText(tag) {
			return true
		}
	}
	if description == "" {
		return false
	}
	if r := []rune(description); len(r) > descriptionScan {
		description = string(r[:descriptionScan])
	}
	return q.matchesText(description)
}

func (q Query) matchesText(raw string) bool {
	text := Normalize(raw)
	if strings.Contains(text, q.text) {
		return true
	}
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, q.text) || Distance(q.text, word) <= q.maxEdits {
			return true
		}
	}
	// short fields are compared whole, with extra slack for long queries
	if len(text) < q.shortText {
		return Distance(q.text, text) <= q.maxEdits+len(q.text)/5
	}
	return false
}

// Score ranks a task for the query. Zero means no field is related.
func (q Query) Score(title, description string, tags []string) float64 {
	if q.Empty() {
		return 0
	}

	score := q.titleScore(Normalize(title))
	for _, tag := range tags {
		switch t := Normalize(tag); {
		case t == q.text:
			score += tagExactHit
		case strings.HasPrefix(t, q.text):
			score += tagPrefixHit
		}
	}

	desc := Normalize(description)
	if strings.Contains(desc, q.text) {
		score += descriptionHit
		if hasWord(desc, q.text) {
			score += descWordBonus
		}
	}
	return score
}

func (q Query) titleScore(title string) float64 {
	if strings.Contains(title, q.text) {
		if hasWord(title, q.text) {
			return titleHit + wholeWordBonus
		}
		return titleHit
	}

	var score float64
	for _, word := range strings.Fields(title) {
		if d := Distance(q.text, word); d <= 2 {
			score += wholeWordBonus - float64(d)*typoPenalty
		}
		if strings.HasPrefix(word, q.text) {
			score += titlePrefixHit
		}
	}
	return score
}

// Distance is the Levenshtein edit distance between the normalized forms of a and b
func Distance(a, b string) int {
	ra := []rune(Normalize(a))
	rb := []rune(Normalize(b))
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// dStroke has no canonical decomposition, so accent folding misses it
var dStroke = strings.NewReplacer("đ", "d", "Đ", "d")

// Normalize lowercases, folds accents and collapses whitespace
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = dStroke.Replace(strings.ToLower(folded))
	return strings.Join(strings.Fields(folded), " ")
}

func hasWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}
