package analyzer

import (
	"strings"

	"github.com/ternarybob/reperio/internal/models"
)

const maxRelatedKeywords = 10

// SanitizeKeywords validates and clamps a generator payload. Provider
// output is never trusted verbatim: scores are clamped into [0,100],
// unknown enumerations mapped to defaults, lists capped, duplicates and
// empty entries dropped.
func SanitizeKeywords(keywords []models.Keyword, maxKeywords int) []models.Keyword {
	if maxKeywords < 1 {
		maxKeywords = len(keywords)
	}
	out := make([]models.Keyword, 0, len(keywords))
	seen := make(map[string]bool)

	for _, kw := range keywords {
		kw.Text = strings.TrimSpace(strings.ToLower(kw.Text))
		if kw.Text == "" || seen[kw.Text] {
			continue
		}
		seen[kw.Text] = true

		if kw.Relevance < 0 {
			kw.Relevance = 0
		} else if kw.Relevance > 100 {
			kw.Relevance = 100
		}

		switch kw.Category {
		case models.CategoryPrimary, models.CategorySecondary, models.CategoryLongTail:
		default:
			kw.Category = categorize(kw.Text)
		}

		switch kw.Intent {
		case models.IntentInformational, models.IntentNavigational,
			models.IntentTransactional, models.IntentCommercial:
		default:
			kw.Intent = models.IntentInformational
		}

		switch kw.Competition {
		case models.CompetitionLow, models.CompetitionMedium, models.CompetitionHigh:
		default:
			kw.Competition = ""
		}

		if len(kw.Related) > maxRelatedKeywords {
			kw.Related = kw.Related[:maxRelatedKeywords]
		}

		kw.RankStatus = models.RankStatusUnknown
		kw.RankPosition = 0
		kw.RankingURL = ""

		out = append(out, kw)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}
