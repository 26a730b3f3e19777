package analyzer

import (
	"hash/fnv"
	"strings"

	"github.com/ternarybob/reperio/internal/models"
)

// EnrichKeyword fills in estimated search volume, competition level, CPC
// and seasonality for one keyword. Pure and deterministic: the same
// keyword text always yields the same metrics, so reruns are stable.
func EnrichKeyword(kw *models.Keyword, opportunityMinVolume int) {
	seed := keywordSeed(kw.Text)
	words := len(strings.Fields(kw.Text))

	kw.SearchVolume = estimateVolume(seed, kw.Category, words)
	kw.Competition = estimateCompetition(seed, kw.Intent, words)
	kw.CPC = estimateCPC(seed, kw.Competition, kw.Intent)
	if kw.Seasonality == "" {
		if seed%5 == 0 {
			kw.Seasonality = "seasonal"
		} else {
			kw.Seasonality = "stable"
		}
	}
	kw.Opportunity = kw.Competition == models.CompetitionLow && kw.SearchVolume >= opportunityMinVolume
}

func keywordSeed(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	return h.Sum64()
}

// estimateVolume scales a hash-derived base by category and phrase length:
// primary terms search highest, long-tail phrases lowest
func estimateVolume(seed uint64, category models.KeywordCategory, words int) int {
	base := int(seed % 9000)
	switch category {
	case models.CategoryPrimary:
		base = base*2 + 2000
	case models.CategorySecondary:
		base = base + 500
	case models.CategoryLongTail:
		base = base/4 + 50
	default:
		base = base + 100
	}
	// Each extra word roughly halves volume
	for i := 2; i < words && base > 20; i++ {
		base /= 2
	}
	return base
}

func estimateCompetition(seed uint64, intent models.SearchIntent, words int) models.CompetitionLevel {
	score := int(seed / 7 % 100)
	switch intent {
	case models.IntentTransactional:
		score += 30
	case models.IntentCommercial:
		score += 20
	}
	// Long phrases compete less
	score -= (words - 1) * 10

	switch {
	case score >= 70:
		return models.CompetitionHigh
	case score >= 35:
		return models.CompetitionMedium
	default:
		return models.CompetitionLow
	}
}

func estimateCPC(seed uint64, competition models.CompetitionLevel, intent models.SearchIntent) float64 {
	cpc := 0.20 + float64(seed%400)/100.0
	switch competition {
	case models.CompetitionHigh:
		cpc *= 2.5
	case models.CompetitionMedium:
		cpc *= 1.5
	}
	if intent == models.IntentTransactional || intent == models.IntentCommercial {
		cpc *= 1.4
	}
	// Round to cents
	return float64(int(cpc*100)) / 100
}
