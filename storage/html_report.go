package storage

import (
	"context"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"asin-insights/models"
	"asin-insights/utils"
)

// ReportHTML is the file name of the rendered report
const ReportHTML = "report.html"

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmtFloat(v*100, 0) + "%" },
	"f1":  func(v float64) string { return fmtFloat(v, 1) },
	"f2":  func(v float64) string { return fmtFloat(v, 2) },
	"f3":  func(v float64) string { return fmtFloat(v, 3) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Competitive insights – {{.FileName}}</title>
<style>
body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;margin:32px;color:#1f2933}
h1{font-size:22px;margin-bottom:4px}
.meta{color:#616e7c;font-size:12px;margin-bottom:24px}
.kpis{display:flex;gap:16px;margin-bottom:24px}
.kpi{border:1px solid #d9e2ec;border-radius:6px;padding:12px 16px;min-width:120px}
.kpi b{display:block;font-size:20px}
table{border-collapse:collapse;width:100%;margin-bottom:24px;font-size:13px}
th,td{border-bottom:1px solid #e4e7eb;padding:6px 8px;text-align:left}
th{background:#f5f7fa}
.above{color:#c62828}.below{color:#2e7d32}.aligned{color:#616e7c}
.asin{page-break-inside:avoid;margin-bottom:28px}
</style>
</head>
<body>
<h1>Competitive insights</h1>
<div class="meta">{{.FileName}} · {{.RunID}} · generated {{.GeneratedAt}}</div>
<div class="kpis">
  <div class="kpi">ASINs<b>{{.Portfolio.ASINsProcessed}}</b></div>
  <div class="kpi">Avg rating<b>{{f1 .Portfolio.AvgRating}}</b></div>
  <div class="kpi">Avg price<b>${{f2 .Portfolio.AvgPrice}}</b></div>
  <div class="kpi">Est. daily clicks<b>{{.Portfolio.TotalEstClicks}}</b></div>
  <div class="kpi">Avg priority<b>{{f3 .Portfolio.AvgPriorityScore}}</b></div>
</div>
<table>
<tr><th>ASIN</th><th>Label</th><th>Price</th><th>Position</th><th>Top-4 gap</th><th>Page-1 gap</th><th>Reviews deficit</th><th>Clicks share</th><th>Priority</th></tr>
{{range .ASINs}}<tr><td>{{.ASIN}}</td><td>{{.Label}}</td><td>${{f2 .Target.Price}}</td><td class="{{.Insights.PricePosition}}">{{.Insights.PricePosition}}</td><td>{{f1 .Insights.KW4Gap}}</td><td>{{f1 .Insights.KWP1Gap}}</td><td>{{.Insights.ReviewsDeficit}}</td><td>{{pct .Insights.ClicksShare}}</td><td>{{f3 .Insights.PriorityScore}}</td></tr>
{{end}}</table>
{{range .ASINs}}<div class="asin">
<h2>{{.Label}} <small>({{.ASIN}} · {{.Target.ProductName}})</small></h2>
<table>
<tr><th>#</th><th>Competitor</th><th>Brand</th><th>Price</th><th>Rating</th><th>Ratings</th><th>Top-4</th><th>Page-1</th><th>Clicks/day</th></tr>
{{range .Competitors}}<tr><td>{{.Rank}}</td><td>{{.ProductName}} ({{.CompASIN}})</td><td>{{.BrandName}}</td><td>${{f2 .Price}}</td><td>{{f1 .Rating}}</td><td>{{.RatingsCount}}</td><td>{{.KeywordsTop4}}</td><td>{{.KeywordsPage1}}</td><td>{{.EstDailyClicks}}</td></tr>
{{end}}</table>
{{if .Insights.Actions}}<ol>
{{range .Insights.Actions}}<li><b>{{.Title}}</b> [{{.Effort}}] – {{.Why}} Target: {{.Target}}</li>
{{end}}</ol>{{else}}<p>No actions recommended.</p>{{end}}
</div>
{{end}}
</body>
</html>
`))

// RenderHTML writes the report for result to w
func RenderHTML(w io.Writer, result *models.RunResult) error {
	return reportTemplate.Execute(w, result)
}

// HTMLWriter renders report.html into the run directory
type HTMLWriter struct {
	dir    string
	logger *utils.Logger
}

// NewHTMLWriter creates a new HTMLWriter rooted at dir
func NewHTMLWriter(dir string, logger *utils.Logger) *HTMLWriter {
	return &HTMLWriter{dir: dir, logger: logger}
}

func (w *HTMLWriter) Name() string { return "html" }

func (w *HTMLWriter) Export(_ context.Context, result *models.RunResult) error {
	runDir := RunDir(w.dir, result.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return generationError(w.Name(), "failed to create output directory", err)
	}
	path := filepath.Join(runDir, ReportHTML)
	file, err := os.Create(path)
	if err != nil {
		return generationError(w.Name(), "failed to create report", err)
	}
	defer file.Close()

	if err := RenderHTML(file, result); err != nil {
		return generationError(w.Name(), "failed to render report", err)
	}
	w.logger.Info("HTML report written to: %s", path)
	return nil
}
