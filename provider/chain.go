package provider

import (
	"context"
	"time"

	"asin-insights/models"
	"asin-insights/utils"
)

// FallbackSource tries primary and degrades to fallback on any failure.
// Failures are logged and never returned.
type FallbackSource struct {
	primary  MetricsSource
	fallback MetricsSource
	logger   *utils.Logger
}

// NewFallbackSource composes the two sources. A nil primary means the
// fallback answers every request.
func NewFallbackSource(primary, fallback MetricsSource, logger *utils.Logger) *FallbackSource {
	return &FallbackSource{primary: primary, fallback: fallback, logger: logger}
}

// Fetch returns the primary's bundle when it is valid, the fallback's otherwise
func (f *FallbackSource) Fetch(ctx context.Context, req Request) (*models.MetricsBundle, error) {
	if f.primary != nil {
		bundle, err := f.primary.Fetch(ctx, req)
		if err == nil {
			err = Validate(bundle)
		}
		if err == nil {
			return bundle, nil
		}
		f.logger.Warn("%s for %s, using offline data: %v", models.KindMetricsFetchFailure, req.ASIN, err)
	}
	return f.fallback.Fetch(ctx, req)
}

// NewSource builds the configured chain: remote with offline fallback when
// an endpoint is set, offline only otherwise.
func NewSource(endpoint string, timeout time.Duration, logger *utils.Logger) (MetricsSource, error) {
	offline := NewDeterministicSource()
	if endpoint == "" {
		return NewFallbackSource(nil, offline, logger), nil
	}
	remote, err := NewRemoteSource(endpoint, timeout)
	if err != nil {
		return nil, err
	}
	return NewFallbackSource(remote, offline, logger), nil
}
