package storage

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"asin-insights/models"
	"asin-insights/utils"
)

// CSV bundle file names, all written under <dir>/<runId>/
const (
	TargetsCSV     = "targets.csv"
	CompetitorsCSV = "competitors.csv"
	InsightsCSV    = "insights.csv"
	ActionsCSV     = "actions.csv"
	BundleZip      = "data.zip"
)

// CSVWriter writes the run as a set of flat CSV tables plus a zip of them
type CSVWriter struct {
	dir    string
	logger *utils.Logger
}

// NewCSVWriter creates a new CSVWriter rooted at dir
func NewCSVWriter(dir string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{dir: dir, logger: logger}
}

func (w *CSVWriter) Name() string { return "csv" }

// Export writes targets, competitors, insights and actions tables
func (w *CSVWriter) Export(_ context.Context, result *models.RunResult) error {
	runDir := RunDir(w.dir, result.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return generationError(w.Name(), "failed to create output directory", err)
	}

	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{TargetsCSV, targetHeader, targetRows(result)},
		{CompetitorsCSV, competitorHeader, competitorRows(result)},
		{InsightsCSV, insightHeader, insightRows(result)},
		{ActionsCSV, actionHeader, actionRows(result)},
	}

	files := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(runDir, t.name)
		if err := writeCSV(path, t.header, t.rows); err != nil {
			return generationError(w.Name(), "failed to write "+t.name, err)
		}
		files = append(files, path)
	}

	if err := zipFiles(filepath.Join(runDir, BundleZip), files); err != nil {
		return generationError(w.Name(), "failed to build "+BundleZip, err)
	}

	w.logger.Info("CSV bundle written to: %s (%d identifiers)", runDir, len(result.ASINs))
	return nil
}

// RunDir is where every file exporter places the artifacts of one run
func RunDir(root, runID string) string {
	return filepath.Join(root, runID)
}

var (
	targetHeader = []string{
		"asin", "label", "product_name", "brand", "price", "est_daily_impressions",
		"est_daily_clicks", "ratings_count", "avg_rating", "keywords_top4", "keywords_page1",
	}
	competitorHeader = []string{
		"asin", "rank", "comp_asin", "product_name", "brand_name", "price", "rating",
		"ratings_count", "keywords_top4", "keywords_page1", "est_daily_clicks",
	}
	insightHeader = []string{
		"asin", "kw4_gap", "kwp1_gap", "rating_gap", "reviews_deficit",
		"price_position", "clicks_share", "priority_score",
	}
	actionHeader = []string{"asin", "order", "title", "why", "impact", "effort", "target"}
)

func targetRows(result *models.RunResult) [][]string {
	rows := make([][]string, 0, len(result.ASINs))
	for _, a := range result.ASINs {
		t := a.Target
		rows = append(rows, []string{
			a.ASIN, a.Label, t.ProductName, t.Brand, fmtFloat(t.Price, 2),
			strconv.Itoa(t.EstDailyImpressions), strconv.Itoa(t.EstDailyClicks),
			strconv.Itoa(t.RatingsCount), fmtFloat(t.AvgRating, 1),
			strconv.Itoa(t.KeywordsTop4), strconv.Itoa(t.KeywordsPage1),
		})
	}
	return rows
}

func competitorRows(result *models.RunResult) [][]string {
	var rows [][]string
	for _, a := range result.ASINs {
		for _, c := range a.Competitors {
			rows = append(rows, []string{
				a.ASIN, strconv.Itoa(c.Rank), c.CompASIN, c.ProductName, c.BrandName,
				fmtFloat(c.Price, 2), fmtFloat(c.Rating, 1), strconv.Itoa(c.RatingsCount),
				strconv.Itoa(c.KeywordsTop4), strconv.Itoa(c.KeywordsPage1), strconv.Itoa(c.EstDailyClicks),
			})
		}
	}
	return rows
}

func insightRows(result *models.RunResult) [][]string {
	rows := make([][]string, 0, len(result.ASINs))
	for _, a := range result.ASINs {
		in := a.Insights
		rows = append(rows, []string{
			a.ASIN, fmtFloat(in.KW4Gap, 1), fmtFloat(in.KWP1Gap, 1), fmtFloat(in.RatingGap, 1),
			strconv.Itoa(in.ReviewsDeficit), string(in.PricePosition),
			fmtFloat(in.ClicksShare, 2), fmtFloat(in.PriorityScore, 3),
		})
	}
	return rows
}

func actionRows(result *models.RunResult) [][]string {
	var rows [][]string
	for _, a := range result.ASINs {
		for i, act := range a.Insights.Actions {
			rows = append(rows, []string{
				a.ASIN, strconv.Itoa(i + 1), act.Title, act.Why,
				strings.Join(act.Impact, "; "), string(act.Effort), act.Target,
			})
		}
	}
	return rows
}

func fmtFloat(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return file.Sync()
}

func zipFiles(dest string, files []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range files {
		if err := addToZip(zw, path); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addToZip(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
