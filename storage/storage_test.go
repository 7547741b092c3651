package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asin-insights/models"
	"asin-insights/utils"
)

func sampleResult() *models.RunResult {
	return &models.RunResult{
		FileName:    "sample.csv",
		RunID:       "run_1740830400000_abc123def",
		GeneratedAt: "2025-03-01T12:00:00Z",
		Portfolio: models.PortfolioSummary{
			ASINsProcessed: 1, AvgRating: 4.2, AvgPrice: 24.99, TotalEstClicks: 120, AvgPriorityScore: 0.835,
		},
		ASINs: []models.ProcessedAsinData{{
			ASIN:  "B0CC282PBW",
			Label: "Scale <kitchen>",
			Target: models.TargetMetrics{
				ASIN: "B0CC282PBW", ProductName: "Smart Scale", Brand: "MyBrand", Price: 24.99,
				EstDailyImpressions: 900, EstDailyClicks: 120, RatingsCount: 300, AvgRating: 4.2,
				KeywordsTop4: 3, KeywordsPage1: 12,
			},
			Competitors: []models.CompetitorMetrics{
				{Rank: 1, CompASIN: "C282PBW0", ProductName: "Pro Yoga Mat 1", BrandName: "ACME", Price: 21.5, Rating: 4.5, RatingsCount: 1600, KeywordsTop4: 14, KeywordsPage1: 40, EstDailyClicks: 250},
				{Rank: 2, CompASIN: "C282PBW1", ProductName: "Ultra Smart Watch 2", BrandName: "FLEXO", Price: 23, Rating: 4.1, RatingsCount: 1200, KeywordsTop4: 10, KeywordsPage1: 36, EstDailyClicks: 180},
			},
			Insights: models.Insights{
				KW4Gap: 9, KWP1Gap: 26, RatingGap: -0.1, ReviewsDeficit: 1100,
				PricePosition: models.PriceAbove, ClicksShare: 0.22, PriorityScore: 0.835,
				Actions: []models.Action{
					{Title: "Expand Page-1 coverage by ~26 keywords", Why: "w1", Impact: []string{"↑ clicks", "↑ rank"}, Effort: models.EffortHigh, Target: "Reach ~38 Page-1 keywords"},
					{Title: "Accelerate review acquisition (~1100 additional)", Why: "w2", Impact: []string{"↑ CVR"}, Effort: models.EffortHigh, Target: "1400 total ratings"},
				},
			},
		}},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestCSVWriter_WritesTablesAndBundle(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	w := NewCSVWriter(dir, utils.NewNopLogger())
	if err := w.Export(context.Background(), res); err != nil {
		t.Fatalf("Export: %v", err)
	}
	runDir := RunDir(dir, res.RunID)

	targets := readCSV(t, filepath.Join(runDir, TargetsCSV))
	if len(targets) != 2 {
		t.Fatalf("targets rows = %d, want 2", len(targets))
	}
	if targets[1][0] != "B0CC282PBW" || targets[1][4] != "24.99" {
		t.Fatalf("unexpected target row %v", targets[1])
	}

	comps := readCSV(t, filepath.Join(runDir, CompetitorsCSV))
	if len(comps) != 3 {
		t.Fatalf("competitor rows = %d, want 3", len(comps))
	}
	if comps[2][1] != "2" || comps[2][2] != "C282PBW1" {
		t.Fatalf("unexpected competitor row %v", comps[2])
	}

	insights := readCSV(t, filepath.Join(runDir, InsightsCSV))
	if insights[1][5] != "above" || insights[1][7] != "0.835" {
		t.Fatalf("unexpected insight row %v", insights[1])
	}

	actions := readCSV(t, filepath.Join(runDir, ActionsCSV))
	if len(actions) != 3 {
		t.Fatalf("action rows = %d, want 3", len(actions))
	}
	if actions[1][1] != "1" || actions[1][4] != "↑ clicks; ↑ rank" {
		t.Fatalf("unexpected action row %v", actions[1])
	}

	zr, err := zip.OpenReader(filepath.Join(runDir, BundleZip))
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{TargetsCSV, CompetitorsCSV, InsightsCSV, ActionsCSV}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("bundle = %v, want %v", names, want)
	}
}

func TestJSONWriter_RoundTripsResult(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	if err := NewJSONWriter(dir, utils.NewNopLogger()).Export(context.Background(), res); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(RunDir(dir, res.RunID), ResultJSON))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"fileName", "runId", "generatedAt", "portfolio", "asins", "downloads"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("result.json missing %q", key)
		}
	}
}

func TestRenderHTML_EscapesAndListsActions(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, sampleResult()); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "Scale <kitchen>") {
		t.Fatal("label was not escaped")
	}
	for _, want := range []string{"Scale &lt;kitchen&gt;", "B0CC282PBW", "Expand Page-1 coverage by ~26 keywords", "0.835", "22%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q", want)
		}
	}
}

func TestHTMLWriter_WritesFile(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	if err := NewHTMLWriter(dir, utils.NewNopLogger()).Export(context.Background(), res); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(RunDir(dir, res.RunID), ReportHTML)); err != nil {
		t.Fatalf("report.html: %v", err)
	}
}

func TestPDFWriter_MissingHTMLIsGenerationFailure(t *testing.T) {
	err := NewPDFWriter(t.TempDir(), utils.NewNopLogger()).Export(context.Background(), sampleResult())
	if !errors.Is(err, models.ErrGenerationFailure) {
		t.Fatalf("got %v, want GenerationFailure", err)
	}
}

type failingExporter struct{ calls *int }

func (f failingExporter) Name() string { return "failing" }

func (f failingExporter) Export(context.Context, *models.RunResult) error {
	*f.calls++
	return generationError("failing", "boom", nil)
}

func TestExportAll_ContinuesPastFailures(t *testing.T) {
	calls := 0
	dir := t.TempDir()
	res := sampleResult()
	errs := ExportAll(context.Background(), res,
		failingExporter{calls: &calls},
		NewJSONWriter(dir, utils.NewNopLogger()),
		failingExporter{calls: &calls},
	)
	if len(errs) != 2 || calls != 2 {
		t.Fatalf("got %d errors after %d calls, want 2 and 2", len(errs), calls)
	}
	if models.KindOf(errs[0]) != models.KindGenerationFailure {
		t.Fatalf("kind = %q", models.KindOf(errs[0]))
	}
	if _, err := os.Stat(filepath.Join(RunDir(dir, res.RunID), ResultJSON)); err != nil {
		t.Fatalf("json exporter did not run: %v", err)
	}
}

func TestArchiveWriter_ZipsRunDirectory(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	logger := utils.NewNopLogger()
	errs := ExportAll(context.Background(), res,
		NewCSVWriter(dir, logger), NewJSONWriter(dir, logger), NewHTMLWriter(dir, logger), NewArchiveWriter(dir, logger))
	if len(errs) != 0 {
		t.Fatalf("ExportAll: %v", errs)
	}

	zr, err := zip.OpenReader(filepath.Join(RunDir(dir, res.RunID), ArchiveZip))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	got := map[string]bool{}
	for _, f := range zr.File {
		got[f.Name] = true
	}
	for _, want := range []string{TargetsCSV, BundleZip, ResultJSON, ReportHTML} {
		if !got[want] {
			t.Fatalf("archive missing %s", want)
		}
	}
	if got[ArchiveZip] {
		t.Fatal("archive contains itself")
	}
}

func TestArchiveWriter_EmptyRunDirFails(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	if err := os.MkdirAll(RunDir(dir, res.RunID), 0755); err != nil {
		t.Fatal(err)
	}
	err := NewArchiveWriter(dir, utils.NewNopLogger()).Export(context.Background(), res)
	if models.KindOf(err) != models.KindGenerationFailure {
		t.Fatalf("got %v, want GenerationFailure", err)
	}
}
