package services

import (
	"errors"
	"fmt"

	"asin-insights/models"
	"asin-insights/utils"
)

// Priority score weights and normalization caps. They sum to 1.0 and are
// kept fixed so scores stay comparable across runs.
const (
	weightTop4    = 0.30
	weightPage1   = 0.25
	weightReviews = 0.20
	weightClicks  = 0.15
	weightPrice   = 0.10

	capTop4Gap        = 20.0
	capPage1Gap       = 40.0
	capReviewsDeficit = 1000.0

	pricePositionBand = 0.03
	maxActions        = 3
)

// ErrNoCompetitors is returned when there is nothing to compare against
var ErrNoCompetitors = errors.New("at least one competitor is required")

// InsightService computes gaps, priority and actions for one target
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// gaps holds the unrounded figures the score and actions are derived from
type gaps struct {
	kw4         float64
	kwp1        float64
	rating      float64
	reviews     float64
	position    models.PricePosition
	clicksShare float64
}

// Generate computes the competitor average and insights for target
func (s *InsightService) Generate(target models.TargetMetrics, competitors []models.CompetitorMetrics) (models.CompetitorAverage, models.Insights, error) {
	if len(competitors) == 0 {
		return models.CompetitorAverage{}, models.Insights{}, fmt.Errorf("insights for %s: %w", target.ASIN, ErrNoCompetitors)
	}

	avg := CompetitorMean(competitors)
	g := computeGaps(target, competitors, avg)
	score := PriorityScore(g.kw4, g.kwp1, g.reviews, g.clicksShare, g.position)

	insights := models.Insights{
		KW4Gap:         utils.Round(g.kw4, 1),
		KWP1Gap:        utils.Round(g.kwp1, 1),
		RatingGap:      utils.Round(g.rating, 1),
		ReviewsDeficit: utils.RoundInt(g.reviews),
		PricePosition:  g.position,
		ClicksShare:    utils.Round(g.clicksShare, 2),
		PriorityScore:  utils.Round(score, 3),
		Actions:        buildActions(g, avg),
	}

	s.logger.Debug("%s: priority=%.3f price=%s actions=%d",
		target.ASIN, insights.PriorityScore, insights.PricePosition, len(insights.Actions))
	return avg, insights, nil
}

// CompetitorMean averages every numeric competitor field
func CompetitorMean(competitors []models.CompetitorMetrics) models.CompetitorAverage {
	var avg models.CompetitorAverage
	if len(competitors) == 0 {
		return avg
	}
	for _, c := range competitors {
		avg.Price += c.Price
		avg.Rating += c.Rating
		avg.RatingsCount += float64(c.RatingsCount)
		avg.KeywordsTop4 += float64(c.KeywordsTop4)
		avg.KeywordsPage1 += float64(c.KeywordsPage1)
		avg.EstDailyClicks += float64(c.EstDailyClicks)
	}
	n := float64(len(competitors))
	avg.Price /= n
	avg.Rating /= n
	avg.RatingsCount /= n
	avg.KeywordsTop4 /= n
	avg.KeywordsPage1 /= n
	avg.EstDailyClicks /= n
	return avg
}

func computeGaps(target models.TargetMetrics, competitors []models.CompetitorMetrics, avg models.CompetitorAverage) gaps {
	totalCompClicks := 0
	for _, c := range competitors {
		totalCompClicks += c.EstDailyClicks
	}

	return gaps{
		kw4:         avg.KeywordsTop4 - float64(target.KeywordsTop4),
		kwp1:        avg.KeywordsPage1 - float64(target.KeywordsPage1),
		rating:      target.AvgRating - avg.Rating,
		reviews:     avg.RatingsCount - float64(target.RatingsCount),
		position:    ClassifyPrice(target.Price, avg.Price),
		clicksShare: ClicksShare(target.EstDailyClicks, totalCompClicks),
	}
}

// ClassifyPrice places price relative to the competitor mean within a ±3% band
func ClassifyPrice(price, compAvgPrice float64) models.PricePosition {
	if compAvgPrice <= 0 {
		return models.PriceAligned
	}
	d := (price - compAvgPrice) / compAvgPrice
	switch {
	case d > pricePositionBand:
		return models.PriceAbove
	case d < -pricePositionBand:
		return models.PriceBelow
	default:
		return models.PriceAligned
	}
}

// ClicksShare is the target's fraction of all estimated clicks; 0 when nobody has any
func ClicksShare(targetClicks, competitorClicks int) float64 {
	total := targetClicks + competitorClicks
	if total <= 0 {
		return 0
	}
	return float64(targetClicks) / float64(total)
}

// PriorityScore combines the normalized gaps into a 0..1 urgency score
func PriorityScore(kw4Gap, kwp1Gap, reviewsDeficit, clicksShare float64, position models.PricePosition) float64 {
	priceScore := 0.0
	switch position {
	case models.PriceAbove:
		priceScore = 1.0
	case models.PriceAligned:
		priceScore = 0.5
	}

	return weightTop4*utils.Clamp(kw4Gap, 0, capTop4Gap)/capTop4Gap +
		weightPage1*utils.Clamp(kwp1Gap, 0, capPage1Gap)/capPage1Gap +
		weightReviews*utils.Clamp(reviewsDeficit, 0, capReviewsDeficit)/capReviewsDeficit +
		weightClicks*(1-utils.Clamp(clicksShare, 0, 1)) +
		weightPrice*priceScore
}

// buildActions emits at most three actions in a fixed order:
// Page-1 gap, reviews deficit, Top-4 gap, clicks share.
func buildActions(g gaps, avg models.CompetitorAverage) []models.Action {
	actions := make([]models.Action, 0, maxActions)

	if g.kwp1 > 5 {
		effort := models.EffortLow
		switch {
		case g.kwp1 > 20:
			effort = models.EffortHigh
		case g.kwp1 > 10:
			effort = models.EffortMed
		}
		actions = append(actions, models.Action{
			Title:  fmt.Sprintf("Expand Page-1 coverage by ~%d keywords", utils.RoundInt(g.kwp1)),
			Why:    "You trail comp avg on Page-1 listings which limits discoverability.",
			Impact: []string{"↑ clicks", "↑ rank"},
			Effort: effort,
			Target: fmt.Sprintf("Reach ~%d Page-1 keywords", utils.RoundInt(avg.KeywordsPage1)),
		})
	}

	if g.reviews > 200 {
		effort := models.EffortMed
		if g.reviews > 1000 {
			effort = models.EffortHigh
		}
		actions = append(actions, models.Action{
			Title:  fmt.Sprintf("Accelerate review acquisition (~%d additional)", utils.RoundInt(g.reviews)),
			Why:    "Large social proof gap vs comp avg is suppressing CVR and ranking.",
			Impact: []string{"↑ CVR", "↑ rank"},
			Effort: effort,
			Target: fmt.Sprintf("%d total ratings", utils.RoundInt(avg.RatingsCount)),
		})
	}

	if g.kw4 > 2 {
		actions = append(actions, models.Action{
			Title:  fmt.Sprintf("Target ~%d more Top-4 keyword positions", utils.RoundInt(g.kw4)),
			Why:    "Missing key ranking positions limits visibility in prime search results.",
			Impact: []string{"↑ clicks", "↑ CVR"},
			Effort: models.EffortMed,
			Target: fmt.Sprintf("%d Top-4 keywords", utils.RoundInt(avg.KeywordsTop4)),
		})
	}

	if g.clicksShare < 0.3 {
		actions = append(actions, models.Action{
			Title:  "Improve click capture strategy",
			Why:    "Low click share indicates suboptimal title/image optimization.",
			Impact: []string{"↑ clicks"},
			Effort: models.EffortLow,
			Target: "Increase click share to 35%+",
		})
	}

	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	return actions
}
