package analyzer

import (
	"strings"
	"unicode"

	"github.com/ternarybob/reperio/internal/models"
)

// stopwords excluded from fallback keyword extraction
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "our": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "we": true, "were": true, "will": true, "with": true, "you": true,
	"your": true, "more": true, "all": true, "can": true, "how": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"home": true, "page": true, "welcome": true, "about": true, "contact": true,
}

// FallbackKeywords derives a keyword set from the scraped title, headings
// and meta keywords when the AI generator is unavailable. Deterministic:
// the same content always yields the same list, in source order.
func FallbackKeywords(content *models.WebsiteContent, maxKeywords int) []models.Keyword {
	if content == nil || maxKeywords < 1 {
		return nil
	}

	type candidate struct {
		text      string
		relevance int
		category  models.KeywordCategory
	}
	var candidates []candidate
	seen := make(map[string]bool)

	add := func(text string, relevance int) {
		phrase := normalizePhrase(text)
		if phrase == "" || seen[phrase] {
			return
		}
		seen[phrase] = true
		candidates = append(candidates, candidate{
			text:      phrase,
			relevance: relevance,
			category:  categorize(phrase),
		})
	}

	add(content.Title, 90)
	for _, page := range content.Pages {
		for _, kw := range page.MetaKeywords {
			add(kw, 80)
		}
	}
	for _, page := range content.Pages {
		for _, heading := range page.Headings {
			add(heading, 70)
		}
	}
	// Single words from the title broaden the set when phrases run out
	for _, word := range strings.Fields(normalizePhrase(content.Title)) {
		add(word, 50)
	}

	keywords := make([]models.Keyword, 0, maxKeywords)
	for _, c := range candidates {
		if len(keywords) >= maxKeywords {
			break
		}
		keywords = append(keywords, models.Keyword{
			Text:        c.text,
			Relevance:   c.relevance,
			Category:    c.category,
			Intent:      models.IntentInformational,
			RankStatus:  models.RankStatusUnknown,
			Competition: models.CompetitionMedium,
		})
	}
	return keywords
}

// normalizePhrase lowercases, strips punctuation and drops stopword-only
// phrases. Returns "" when nothing usable remains. Letters and digits from
// any script are kept; sites are not assumed to be English.
func normalizePhrase(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-':
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		// Byte length: single ASCII letters drop, single multibyte runes stay
		if len(w) < 2 || stopwords[w] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 || len(kept) > 6 {
		return ""
	}
	return strings.Join(kept, " ")
}

func categorize(phrase string) models.KeywordCategory {
	switch len(strings.Fields(phrase)) {
	case 1:
		return models.CategoryPrimary
	case 2:
		return models.CategorySecondary
	default:
		return models.CategoryLongTail
	}
}
