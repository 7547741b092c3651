package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"asin-insights/models"
)

const maxResponseBytes = 1 << 20

// RemoteSource posts {"asin": ...} to an external metrics service and
// decodes {"target": ..., "competitors": [...]} from the response.
// It makes a single attempt per call.
type RemoteSource struct {
	endpoint string
	client   *http.Client
}

// NewRemoteSource validates the endpoint and builds a client with the timeout
func NewRemoteSource(endpoint string, timeout time.Duration) (*RemoteSource, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("metrics endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid metrics endpoint scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type remoteRequest struct {
	ASIN string `json:"asin"`
}

// Fetch issues one POST and validates the payload
func (s *RemoteSource) Fetch(ctx context.Context, req Request) (*models.MetricsBundle, error) {
	body, err := json.Marshal(remoteRequest{ASIN: req.ASIN})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var bundle models.MetricsBundle
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := Validate(&bundle); err != nil {
		return nil, err
	}
	if bundle.Target.ASIN == "" {
		bundle.Target.ASIN = req.ASIN
	}
	return &bundle, nil
}
