package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"asin-insights/models"
	"asin-insights/utils"
)

// ReportPDF is the file name of the printed report
const ReportPDF = "report.pdf"

// PDFWriter prints report.html to PDF with headless Chrome. It expects the
// HTML exporter to have run first.
type PDFWriter struct {
	dir     string
	timeout time.Duration
	logger  *utils.Logger
}

// NewPDFWriter creates a new PDFWriter rooted at dir
func NewPDFWriter(dir string, logger *utils.Logger) *PDFWriter {
	return &PDFWriter{dir: dir, timeout: 60 * time.Second, logger: logger}
}

func (w *PDFWriter) Name() string { return "pdf" }

// newContext creates a headless browser context (one browser, one tab)
func (w *PDFWriter) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("log-level", "3"), // suppress Chrome logs
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelCtx()
		cancelAlloc()
	}
	return ctx, cancel
}

func (w *PDFWriter) Export(ctx context.Context, result *models.RunResult) error {
	runDir := RunDir(w.dir, result.RunID)
	htmlPath, err := filepath.Abs(filepath.Join(runDir, ReportHTML))
	if err != nil {
		return generationError(w.Name(), "cannot resolve report path", err)
	}
	if _, err := os.Stat(htmlPath); err != nil {
		return generationError(w.Name(), "HTML report missing", err)
	}

	browserCtx, cancel := w.newContext(ctx)
	defer cancel()
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, w.timeout)
	defer cancelTimeout()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(htmlPath)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return generationError(w.Name(), "headless Chrome failed", err)
	}

	path := filepath.Join(runDir, ReportPDF)
	if err := os.WriteFile(path, pdf, 0644); err != nil {
		return generationError(w.Name(), "failed to write "+ReportPDF, err)
	}
	w.logger.Info("PDF report written to: %s (%d bytes)", path, len(pdf))
	return nil
}
