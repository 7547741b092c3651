// Package pipeline turns an uploaded URL sheet into a RunResult.
//
// A run moves through Parsing, Extracting, Fetching and Computing and ends in
// Done or Failed. Fetches for distinct identifiers run concurrently; insight
// computation and aggregation start only after every fetch has returned.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"asin-insights/models"
	"asin-insights/provider"
	"asin-insights/services"
	"asin-insights/utils"
)

// Stage is a state of a pipeline run
type Stage int

const (
	StageParsing Stage = iota
	StageExtracting
	StageFetching
	StageComputing
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageParsing:
		return "Parsing"
	case StageExtracting:
		return "Extracting"
	case StageFetching:
		return "Fetching"
	case StageComputing:
		return "Computing"
	case StageDone:
		return "Done"
	case StageFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Orchestrator drives one or more independent runs. It holds no per-run
// state, so a single value may serve concurrent runs.
type Orchestrator struct {
	source      provider.MetricsSource
	insights    *services.InsightService
	logger      *utils.Logger
	concurrency int
	now         func() time.Time
	onResolved  func(total int)
	onFetched   func(asin string)
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithConcurrency bounds the number of in-flight fetches
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithClock overrides time.Now for generatedAt and run ids
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithProgress registers a callback invoked after each identifier is fetched.
// It may be called from several goroutines at once.
func WithProgress(fn func(asin string)) Option {
	return func(o *Orchestrator) { o.onFetched = fn }
}

// WithResolved registers a callback invoked once with the number of unique
// identifiers, before fetching starts.
func WithResolved(fn func(total int)) Option {
	return func(o *Orchestrator) { o.onResolved = fn }
}

// New creates an Orchestrator. Unless source already degrades on its own, it
// is wrapped so that failures fall back to deterministic offline data.
func New(source provider.MetricsSource, logger *utils.Logger, opts ...Option) *Orchestrator {
	if _, ok := source.(*provider.FallbackSource); !ok {
		source = provider.NewFallbackSource(source, provider.NewDeterministicSource(), logger)
	}
	o := &Orchestrator{
		source:      source,
		insights:    services.NewInsightService(logger),
		logger:      logger,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// target is one unique identifier with the first row that referenced it
type target struct {
	asin   string
	record models.InputRecord
}

// run tracks the state machine of a single invocation
type run struct {
	stage   Stage
	entered time.Time
	logger  *utils.Logger
}

func newRun(logger *utils.Logger) *run {
	return &run{stage: StageParsing, entered: time.Now(), logger: logger}
}

// advance closes the current stage, logging how long it took
func (r *run) advance(next Stage) {
	r.logger.Elapsed(r.stage.String(), r.entered)
	r.logger.Debug("stage %s -> %s", r.stage, next)
	r.stage = next
	r.entered = time.Now()
}

func (r *run) fail(err error) error {
	r.logger.Elapsed(r.stage.String(), r.entered)
	r.logger.Error("Run failed during %s: %v", r.stage, err)
	r.stage = StageFailed
	return err
}

// Run processes the sheet read from input. On failure no partial result is
// returned and the error is a *models.RunError.
func (o *Orchestrator) Run(ctx context.Context, fileName string, input io.Reader) (*models.RunResult, error) {
	started := o.now()
	runID := newRunID(started)
	logger := o.logger.With("run", runID)
	st := newRun(logger)

	// ================== Parsing ====================
	records, err := ParseInput(input, logger)
	if err != nil {
		return nil, st.fail(err)
	}
	logger.Info("Parsed %d rows from %s", len(records), fileName)

	// ================== Extracting ====================
	st.advance(StageExtracting)
	targets := o.extract(records, logger)
	if len(targets) == 0 {
		return nil, st.fail(models.NewRunError(models.KindNoValidIdentifiers, StageExtracting.String(),
			"no valid Amazon ASINs found in URLs", nil))
	}
	logger.Info("Resolved %d unique identifiers from %d rows", len(targets), len(records))
	if o.onResolved != nil {
		o.onResolved(len(targets))
	}

	// ================== Fetching ====================
	st.advance(StageFetching)
	bundles, err := o.fetchAll(ctx, targets)
	if err != nil {
		return nil, st.fail(err)
	}

	// ================== Computing ====================
	st.advance(StageComputing)
	items := make([]models.ProcessedAsinData, 0, len(targets))
	for i, t := range targets {
		item, err := o.compute(t, bundles[i])
		if err != nil {
			return nil, st.fail(models.NewRunError(models.KindMetricsFetchFailure, StageComputing.String(),
				"metrics unusable for "+t.asin, err))
		}
		items = append(items, item)
	}

	result := &models.RunResult{
		FileName:    fileName,
		RunID:       runID,
		GeneratedAt: started.UTC().Format(time.RFC3339),
		Portfolio:   services.SummarizePortfolio(items),
		ASINs:       items,
		Downloads: models.Downloads{
			HTMLReportURL: fmt.Sprintf("/api/run/%s/report.html", runID),
			ZipURL:        fmt.Sprintf("/api/run/%s/all.zip", runID),
			CSVBundleURL:  fmt.Sprintf("/api/run/%s/data.zip", runID),
		},
	}

	st.advance(StageDone)
	logger.Info("Processed %d identifiers in %s (avg priority %.3f)",
		len(items), time.Since(started).Round(time.Millisecond), result.Portfolio.AvgPriorityScore)
	return result, nil
}

// extract normalizes urls, drops rows without an identifier and keeps the
// first row seen for each identifier.
func (o *Orchestrator) extract(records []models.InputRecord, logger *utils.Logger) []target {
	seen := utils.NewSeenSet()
	var targets []target
	for _, rec := range records {
		rec.URL = services.NormalizeURL(rec.URL)
		asin := services.ExtractASIN(rec.URL)
		if asin == "" {
			logger.Debug("No identifier in %q, skipping", rec.URL)
			continue
		}
		if !seen.Add(asin) {
			logger.Debug("Duplicate identifier %s, keeping first row", asin)
			continue
		}
		targets = append(targets, target{asin: asin, record: rec})
	}
	return targets
}

// fetchAll fetches every identifier concurrently. Each goroutine writes only
// its own slot, and the slice is read after Wait returns.
func (o *Orchestrator) fetchAll(ctx context.Context, targets []target) ([]*models.MetricsBundle, error) {
	bundles := make([]*models.MetricsBundle, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, t := range targets {
		i, t := i, t // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			bundle, err := o.source.Fetch(gctx, provider.Request{ASIN: t.asin, SourceURL: t.record.URL})
			if err != nil {
				return models.NewRunError(models.KindMetricsFetchFailure, StageFetching.String(), t.asin, err)
			}
			bundles[i] = bundle
			if o.onFetched != nil {
				o.onFetched(t.asin)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (o *Orchestrator) compute(t target, bundle *models.MetricsBundle) (models.ProcessedAsinData, error) {
	tm := bundle.Target
	tm.ASIN = t.asin
	if t.record.Brand != "" {
		tm.Brand = t.record.Brand
	}

	compAvg, insights, err := o.insights.Generate(tm, bundle.Competitors)
	if err != nil {
		return models.ProcessedAsinData{}, err
	}

	label := t.record.Label
	if label == "" {
		label = "Product " + t.asin
	}
	return models.ProcessedAsinData{
		ASIN:        t.asin,
		Label:       label,
		Target:      tm,
		CompAvg:     compAvg,
		Competitors: bundle.Competitors,
		Insights:    insights,
		Input:       t.record,
	}, nil
}

// newRunID returns run_<unix-ms>_<9 random chars>
func newRunID(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("run_%d_%s", at.UnixMilli(), suffix)
}
