package analyzer

import (
	"github.com/ternarybob/reperio/internal/models"
)

// ComputeStats derives the final statistics from the full keyword set.
// Pure function: never mutates its input.
func ComputeStats(keywords []models.Keyword) models.KeywordStats {
	stats := models.KeywordStats{
		TotalKeywords: len(keywords),
	}
	if len(keywords) == 0 {
		return stats
	}

	var relevanceSum, volumeSum, highCompetition int
	var cpcSum float64

	for _, kw := range keywords {
		switch kw.Category {
		case models.CategoryPrimary:
			stats.PrimaryCount++
		case models.CategorySecondary:
			stats.SecondaryCount++
		case models.CategoryLongTail:
			stats.LongTailCount++
		}

		switch kw.RankStatus {
		case models.RankStatusRanked:
			stats.RankedKeywords++
			if kw.RankPosition > 0 && kw.RankPosition <= 10 {
				stats.TopTen++
			}
			if kw.RankPosition > 0 && (stats.BestPosition == 0 || kw.RankPosition < stats.BestPosition) {
				stats.BestPosition = kw.RankPosition
				stats.BestKeyword = kw.Text
			}
		case models.RankStatusNotFound:
			stats.NotFound++
		}

		if kw.Opportunity {
			stats.Opportunities++
		}
		if kw.Competition == models.CompetitionHigh {
			highCompetition++
		}

		relevanceSum += kw.Relevance
		volumeSum += kw.SearchVolume
		cpcSum += kw.CPC
	}

	n := float64(len(keywords))
	stats.AvgRelevance = float64(relevanceSum) / n
	stats.AvgSearchVolume = float64(volumeSum) / n
	stats.AvgCPC = cpcSum / n
	stats.HighCompetitionRatio = float64(highCompetition) / n

	return stats
}
