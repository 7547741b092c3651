// Package provider acquires target and competitor metrics for an identifier.
//
// A remote JSON service is the primary source; a deterministic generator
// seeded from the identifier stands in whenever the remote one fails, so a
// run never aborts because of acquisition problems.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"asin-insights/models"
)

// MaxCompetitors is the largest competitor set kept per target
const MaxCompetitors = 5

// Request identifies what to fetch. SourceURL is optional and only used to
// derive a product name when data has to be synthesized.
type Request struct {
	ASIN      string
	SourceURL string
}

// MetricsSource fetches metrics for one identifier
type MetricsSource interface {
	Fetch(ctx context.Context, req Request) (*models.MetricsBundle, error)
}

// ErrInvalidBundle marks a payload that does not satisfy the metrics contract
var ErrInvalidBundle = errors.New("invalid metrics bundle")

// Validate checks the bundle against the data model invariants and sorts
// competitors by rank, keeping at most MaxCompetitors.
func Validate(b *models.MetricsBundle) error {
	if b == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidBundle)
	}
	t := b.Target
	if t.Price < 0 || t.EstDailyImpressions < 0 || t.EstDailyClicks < 0 || t.RatingsCount < 0 ||
		t.KeywordsTop4 < 0 || t.KeywordsPage1 < 0 {
		return fmt.Errorf("%w: negative target metric", ErrInvalidBundle)
	}
	if t.AvgRating < 0 || t.AvgRating > 5 {
		return fmt.Errorf("%w: avg_rating %.2f out of range", ErrInvalidBundle, t.AvgRating)
	}
	if len(b.Competitors) == 0 {
		return fmt.Errorf("%w: no competitors", ErrInvalidBundle)
	}

	seenRank := make(map[int]bool, len(b.Competitors))
	for _, c := range b.Competitors {
		if c.Rank < 1 || seenRank[c.Rank] {
			return fmt.Errorf("%w: competitor rank %d invalid or repeated", ErrInvalidBundle, c.Rank)
		}
		seenRank[c.Rank] = true
		if c.Price < 0 || c.RatingsCount < 0 || c.KeywordsTop4 < 0 || c.KeywordsPage1 < 0 || c.EstDailyClicks < 0 {
			return fmt.Errorf("%w: negative metric for %s", ErrInvalidBundle, c.CompASIN)
		}
		if c.Rating < 0 || c.Rating > 5 {
			return fmt.Errorf("%w: rating %.2f out of range for %s", ErrInvalidBundle, c.Rating, c.CompASIN)
		}
	}

	sort.SliceStable(b.Competitors, func(i, j int) bool {
		return b.Competitors[i].Rank < b.Competitors[j].Rank
	})
	if len(b.Competitors) > MaxCompetitors {
		b.Competitors = b.Competitors[:MaxCompetitors]
	}
	return nil
}
