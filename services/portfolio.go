package services

import (
	"github.com/shopspring/decimal"

	"asin-insights/models"
	"asin-insights/utils"
)

// SummarizePortfolio aggregates the processed identifiers. An empty input
// yields a zero summary.
func SummarizePortfolio(items []models.ProcessedAsinData) models.PortfolioSummary {
	summary := models.PortfolioSummary{ASINsProcessed: len(items)}
	if len(items) == 0 {
		return summary
	}

	var ratingSum, scoreSum float64
	priceSum := decimal.Zero
	clicks := 0
	for _, item := range items {
		ratingSum += item.Target.AvgRating
		scoreSum += item.Insights.PriorityScore
		priceSum = priceSum.Add(decimal.NewFromFloat(item.Target.Price))
		clicks += item.Target.EstDailyClicks
	}

	n := float64(len(items))
	avgPrice, _ := priceSum.Div(decimal.NewFromInt(int64(len(items)))).Round(2).Float64()

	summary.AvgRating = utils.Round(ratingSum/n, 1)
	summary.AvgPrice = avgPrice
	summary.TotalEstClicks = clicks
	summary.AvgPriorityScore = utils.Round(scoreSum/n, 3)
	return summary
}
