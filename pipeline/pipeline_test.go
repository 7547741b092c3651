package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"asin-insights/models"
	"asin-insights/provider"
	"asin-insights/utils"
)

type countingSource struct {
	mu    sync.Mutex
	asins []string
	inner provider.MetricsSource
	err   error
}

func (c *countingSource) Fetch(ctx context.Context, req provider.Request) (*models.MetricsBundle, error) {
	c.mu.Lock()
	c.asins = append(c.asins, req.ASIN)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Fetch(ctx, req)
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestOrchestrator(src provider.MetricsSource) *Orchestrator {
	return New(src, utils.NewNopLogger(), WithClock(fixedClock), WithConcurrency(3))
}

const sampleCSV = `url,label,brand,price_floor
https://www.amazon.com/Smart-Scale/dp/B0CC282PBW/ref=sr_1,Scale,MyBrand,19.99
amazon.com/gp/product/B07XJ8C8F5,,,
https://www.amazon.com/dp/b0cc282pbw,Duplicate,Other,
https://example.com/not-a-product,Bad,,
,Empty,,
`

func TestRun_EndToEndOffline(t *testing.T) {
	src := &countingSource{inner: provider.NewDeterministicSource()}
	res, err := newTestOrchestrator(src).Run(context.Background(), "sample.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.ASINs) != 2 {
		t.Fatalf("got %d identifiers, want 2", len(res.ASINs))
	}
	if len(src.asins) != 2 {
		t.Fatalf("fetched %d times, want 2 (duplicates must be ignored)", len(src.asins))
	}

	first := res.ASINs[0]
	if first.ASIN != "B0CC282PBW" || first.Label != "Scale" || first.Target.Brand != "MyBrand" {
		t.Fatalf("first row overrides not applied: %+v", first)
	}
	if first.Target.ProductName != "Smart Scale" {
		t.Fatalf("got product name %q, want name from url", first.Target.ProductName)
	}
	if first.Input.PriceFloor == nil || *first.Input.PriceFloor != 19.99 {
		t.Fatalf("price_floor not carried: %+v", first.Input)
	}
	second := res.ASINs[1]
	if second.ASIN != "B07XJ8C8F5" || second.Label != "Product B07XJ8C8F5" {
		t.Fatalf("unexpected second item: %+v", second)
	}

	if res.Portfolio.ASINsProcessed != 2 {
		t.Fatalf("portfolio count %d", res.Portfolio.ASINsProcessed)
	}
	wantClicks := first.Target.EstDailyClicks + second.Target.EstDailyClicks
	if res.Portfolio.TotalEstClicks != wantClicks {
		t.Fatalf("got total clicks %d, want %d", res.Portfolio.TotalEstClicks, wantClicks)
	}
	if res.GeneratedAt != "2025-03-01T12:00:00Z" {
		t.Fatalf("got generatedAt %q", res.GeneratedAt)
	}
	if !strings.HasPrefix(res.RunID, "run_1740830400000_") || len(res.RunID) != len("run_1740830400000_")+9 {
		t.Fatalf("unexpected run id %q", res.RunID)
	}
	if res.Downloads.HTMLReportURL != "/api/run/"+res.RunID+"/report.html" {
		t.Fatalf("unexpected downloads: %+v", res.Downloads)
	}
}

func TestRun_ReproducibleInsights(t *testing.T) {
	o := newTestOrchestrator(provider.NewDeterministicSource())
	a, err := o.Run(context.Background(), "a.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := o.Run(context.Background(), "a.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ja, _ := json.Marshal(a.ASINs)
	jb, _ := json.Marshal(b.ASINs)
	if string(ja) != string(jb) {
		t.Fatal("two offline runs over the same sheet differ")
	}
}

func TestRun_MissingURLColumn(t *testing.T) {
	src := &countingSource{inner: provider.NewDeterministicSource()}
	_, err := newTestOrchestrator(src).Run(context.Background(), "bad.csv",
		strings.NewReader("link,label\nhttps://amazon.com/dp/B0CC282PBW,x\n"))
	if !errors.Is(err, models.ErrMalformedInput) {
		t.Fatalf("got %v, want MalformedInput", err)
	}
	var re *models.RunError
	if !errors.As(err, &re) || re.Stage != StageParsing.String() {
		t.Fatalf("expected failure in Parsing stage, got %#v", err)
	}
	if len(src.asins) != 0 {
		t.Fatal("no fetch may happen after a parsing failure")
	}
}

func TestRun_EmptyInput(t *testing.T) {
	_, err := newTestOrchestrator(provider.NewDeterministicSource()).Run(context.Background(), "empty.csv", strings.NewReader(""))
	if models.KindOf(err) != models.KindMalformedInput {
		t.Fatalf("got %v, want MalformedInput", err)
	}
}

func TestRun_NoValidIdentifiers(t *testing.T) {
	src := &countingSource{inner: provider.NewDeterministicSource()}
	csv := "url\nhttps://example.com/a\nhttps://amazon.com/dp/SHORT\n"
	res, err := newTestOrchestrator(src).Run(context.Background(), "x.csv", strings.NewReader(csv))
	if res != nil {
		t.Fatal("failed run must not return a partial result")
	}
	if !errors.Is(err, models.ErrNoValidIdentifiers) {
		t.Fatalf("got %v, want NoValidIdentifiers", err)
	}
	if len(src.asins) != 0 {
		t.Fatal("no fetch may happen when nothing was extracted")
	}
}

func TestRun_FetchFailureFallsBack(t *testing.T) {
	src := &countingSource{err: errors.New("remote down")}
	res, err := newTestOrchestrator(src).Run(context.Background(), "x.csv",
		strings.NewReader("url\nhttps://amazon.com/dp/B0CC282PBW\n"))
	if err != nil {
		t.Fatalf("fetch failure must not fail the run: %v", err)
	}
	want := provider.NewDeterministicSource().Generate("B0CC282PBW", "https://amazon.com/dp/B0CC282PBW")
	if res.ASINs[0].Target.Price != want.Target.Price {
		t.Fatalf("expected fallback data, got %+v", res.ASINs[0].Target)
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	total := 0
	o := New(provider.NewDeterministicSource(), utils.NewNopLogger(),
		WithResolved(func(n int) { total = n }),
		WithProgress(func(asin string) {
			mu.Lock()
			seen[asin] = true
			mu.Unlock()
		}))
	if _, err := o.Run(context.Background(), "s.csv", strings.NewReader(sampleCSV)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if total != 2 {
		t.Fatalf("resolved total = %d, want 2", total)
	}
	if len(seen) != 2 || !seen["B0CC282PBW"] || !seen["B07XJ8C8F5"] {
		t.Fatalf("unexpected progress calls: %v", seen)
	}
}

func TestStage_String(t *testing.T) {
	if StageComputing.String() != "Computing" || StageFailed.String() != "Failed" {
		t.Fatal("unexpected stage names")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestRun_LogsStageTimings(t *testing.T) {
	var out lockedBuffer
	o := New(provider.NewDeterministicSource(), utils.NewLoggerTo(&out, "debug"), WithClock(fixedClock))
	if _, err := o.Run(context.Background(), "s.csv", strings.NewReader(sampleCSV)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	logs := out.buf.String()
	for _, stage := range []string{"Parsing", "Extracting", "Fetching", "Computing"} {
		if !strings.Contains(logs, `"step":"`+stage+`"`) {
			t.Fatalf("no timing logged for %s:\n%s", stage, logs)
		}
	}
}
