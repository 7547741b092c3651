package provider

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"asin-insights/models"
	"asin-insights/services"
	"asin-insights/utils"
)

// Fallback ranges. These values are tuned by hand and kept as-is so that
// offline output stays comparable between runs and releases.
const (
	priceCentsMin, priceCentsMax     = 1400, 4900
	impressionsMin, impressionsMax   = 800, 5000
	clicksMin, clicksMax             = 30, 400
	ratingsMin, ratingsMax           = 100, 5000
	ratingTenthsMin, ratingTenthsMax = 36, 48
	kwTop4Min, kwTop4Max             = 2, 18
	kwPage1Min, kwPage1Max           = 10, 60
	competitorsMin, competitorsMax   = 3, 5

	compPricePctMin, compPricePctMax       = 85, 115
	compRatingDeltaMin, compRatingDeltaMax = -4, 4 // tenths
	compRatingFloor, compRatingCeil        = 3.2, 4.9
	compRatingsPctMin, compRatingsPctMax   = 40, 160
	compTop4DeltaMin, compTop4DeltaMax     = -4, 6
	compPage1DeltaMin, compPage1DeltaMax   = -12, 12
	compClicksPctMin, compClicksPctMax     = 50, 140
)

var (
	fallbackBrands = []string{"RENPHO", "ACME", "GADGY", "FLEXO", "TechPro", "SmartLife"}

	fallbackProductTypes = []string{
		"Wireless Headphones",
		"Smart Watch",
		"Bluetooth Speaker",
		"Fitness Tracker",
		"Phone Case",
		"Kitchen Scale",
		"LED Desk Lamp",
		"Portable Charger",
		"Gaming Mouse",
		"Yoga Mat",
	}

	fallbackAdjectives = []string{
		"Premium",
		"Ultra",
		"Pro",
		"Advanced",
		"Smart",
		"Compact",
		"Ergonomic",
		"High-Performance",
	}
)

// Seed sums the character codes of the identifier
func Seed(asin string) int {
	seed := 0
	for _, r := range asin {
		seed += int(r)
	}
	return seed
}

// SeededRandom maps seed onto an integer in [min, max] using the fractional
// part of sin(seed)*10000. It has no hidden state.
func SeededRandom(seed, min, max int) int {
	x := math.Sin(float64(seed)) * 10000
	frac := x - math.Floor(x)
	return int(math.Floor(frac*float64(max-min+1))) + min
}

// draws binds SeededRandom to one seed. Every call sees the same seed, so
// each value sits at the same relative position within its own range.
type draws struct {
	seed int
}

func (d draws) next(min, max int) int {
	return SeededRandom(d.seed, min, max)
}

func (d draws) pick(values []string) string {
	return values[d.next(0, len(values)-1)]
}

// DeterministicSource synthesizes plausible metrics from the identifier alone.
// The same identifier and source URL always produce identical output.
type DeterministicSource struct{}

// NewDeterministicSource creates the offline metrics source
func NewDeterministicSource() *DeterministicSource {
	return &DeterministicSource{}
}

// Fetch never fails
func (d *DeterministicSource) Fetch(_ context.Context, req Request) (*models.MetricsBundle, error) {
	return d.Generate(req.ASIN, req.SourceURL), nil
}

// Generate builds the target and its competitor set for asin
func (d *DeterministicSource) Generate(asin, sourceURL string) *models.MetricsBundle {
	rnd := draws{seed: Seed(asin)}

	price := centsToPrice(rnd.next(priceCentsMin, priceCentsMax))

	name := ""
	if sourceURL != "" {
		name = services.DeriveProductName(sourceURL)
	}
	if name == "" {
		name = fmt.Sprintf("%s %s", rnd.pick(fallbackAdjectives), rnd.pick(fallbackProductTypes))
	}

	target := models.TargetMetrics{
		ASIN:                asin,
		ProductName:         name,
		Brand:               rnd.pick(fallbackBrands),
		Price:               price,
		EstDailyImpressions: rnd.next(impressionsMin, impressionsMax),
		EstDailyClicks:      rnd.next(clicksMin, clicksMax),
		RatingsCount:        rnd.next(ratingsMin, ratingsMax),
		AvgRating:           float64(rnd.next(ratingTenthsMin, ratingTenthsMax)) / 10,
		KeywordsTop4:        rnd.next(kwTop4Min, kwTop4Max),
		KeywordsPage1:       rnd.next(kwPage1Min, kwPage1Max),
	}

	count := rnd.next(competitorsMin, competitorsMax)
	competitors := make([]models.CompetitorMetrics, 0, count)
	for i := 0; i < count; i++ {
		compName := fmt.Sprintf("%s %s %d", rnd.pick(fallbackAdjectives), rnd.pick(fallbackProductTypes), i+1)
		brand := rnd.pick(fallbackBrands)

		pricePct := float64(rnd.next(compPricePctMin, compPricePctMax)) / 100
		compPrice := utils.Round(price*pricePct, 2)

		ratingDelta := float64(rnd.next(compRatingDeltaMin, compRatingDeltaMax)) / 10
		rating := utils.Round(utils.Clamp(target.AvgRating+ratingDelta, compRatingFloor, compRatingCeil), 1)

		ratingsPct := float64(rnd.next(compRatingsPctMin, compRatingsPctMax)) / 100
		top4 := target.KeywordsTop4 + rnd.next(compTop4DeltaMin, compTop4DeltaMax)
		page1 := target.KeywordsPage1 + rnd.next(compPage1DeltaMin, compPage1DeltaMax)
		clicksPct := float64(rnd.next(compClicksPctMin, compClicksPctMax)) / 100

		competitors = append(competitors, models.CompetitorMetrics{
			Rank:           i + 1,
			CompASIN:       competitorASIN(asin, i),
			ProductName:    compName,
			BrandName:      brand,
			Price:          compPrice,
			Rating:         rating,
			RatingsCount:   utils.RoundInt(float64(target.RatingsCount) * ratingsPct),
			KeywordsTop4:   max(0, top4),
			KeywordsPage1:  max(0, page1),
			EstDailyClicks: utils.RoundInt(float64(target.EstDailyClicks) * clicksPct),
		})
	}

	return &models.MetricsBundle{Target: target, Competitors: competitors}
}

// competitorASIN derives a synthetic id from the target's suffix. The
// leading C and 8-character length keep it from colliding with real ones.
func competitorASIN(asin string, idx int) string {
	suffix := asin
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("C%s%d", strings.ToUpper(suffix), idx)
}

func centsToPrice(cents int) float64 {
	p, _ := decimal.New(int64(cents), -2).Round(2).Float64()
	return p
}
