package analyzer

import (
	"testing"

	"github.com/ternarybob/reperio/internal/models"
)

func TestEnrichKeywordIsDeterministic(t *testing.T) {
	a := models.Keyword{Text: "emergency plumber melbourne", Category: models.CategoryLongTail, Intent: models.IntentTransactional}
	b := a

	EnrichKeyword(&a, 500)
	EnrichKeyword(&b, 500)

	if a.SearchVolume != b.SearchVolume || a.Competition != b.Competition ||
		a.CPC != b.CPC || a.Seasonality != b.Seasonality {
		t.Errorf("same keyword produced different metrics: %+v vs %+v", a, b)
	}
}

func TestEnrichKeywordCaseInsensitiveSeed(t *testing.T) {
	lower := models.Keyword{Text: "plumber", Category: models.CategoryPrimary}
	upper := models.Keyword{Text: "Plumber", Category: models.CategoryPrimary}

	EnrichKeyword(&lower, 500)
	EnrichKeyword(&upper, 500)

	if lower.SearchVolume != upper.SearchVolume {
		t.Errorf("case variants diverged: %d vs %d", lower.SearchVolume, upper.SearchVolume)
	}
}

func TestEnrichKeywordPopulatesAllMetrics(t *testing.T) {
	kw := models.Keyword{Text: "best pizza dough recipe", Category: models.CategoryLongTail, Intent: models.IntentInformational}
	EnrichKeyword(&kw, 500)

	if kw.SearchVolume <= 0 {
		t.Errorf("expected positive volume, got %d", kw.SearchVolume)
	}
	switch kw.Competition {
	case models.CompetitionLow, models.CompetitionMedium, models.CompetitionHigh:
	default:
		t.Errorf("unexpected competition level %q", kw.Competition)
	}
	if kw.CPC <= 0 {
		t.Errorf("expected positive CPC, got %f", kw.CPC)
	}
	if kw.Seasonality != "seasonal" && kw.Seasonality != "stable" {
		t.Errorf("unexpected seasonality %q", kw.Seasonality)
	}
}

func TestOpportunityRequiresLowCompetitionAndVolume(t *testing.T) {
	kw := models.Keyword{Text: "some phrase", Category: models.CategoryPrimary}
	EnrichKeyword(&kw, 500)

	expected := kw.Competition == models.CompetitionLow && kw.SearchVolume >= 500
	if kw.Opportunity != expected {
		t.Errorf("opportunity=%v inconsistent with competition=%s volume=%d",
			kw.Opportunity, kw.Competition, kw.SearchVolume)
	}

	// Raising the floor above the estimated volume always clears the flag
	kw2 := models.Keyword{Text: "some phrase", Category: models.CategoryPrimary}
	EnrichKeyword(&kw2, kw.SearchVolume+1)
	if kw2.Opportunity {
		t.Error("opportunity set despite volume below the floor")
	}
}

func TestEnrichKeywordKeepsExistingSeasonality(t *testing.T) {
	kw := models.Keyword{Text: "christmas lights", Category: models.CategorySecondary, Seasonality: "seasonal"}
	EnrichKeyword(&kw, 500)
	if kw.Seasonality != "seasonal" {
		t.Errorf("existing seasonality overwritten to %q", kw.Seasonality)
	}
}
