// asin-insights turns a sheet of Amazon product URLs into competitive
// insights for each product and the portfolio as a whole.
//
// Usage:
//
//	asin-insights analyze --input products.csv [--out output] [--pdf] [--json]
//	asin-insights serve --addr :8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"asin-insights/config"
	"asin-insights/models"
	"asin-insights/pipeline"
	"asin-insights/provider"
	"asin-insights/server"
	"asin-insights/services"
	"asin-insights/storage"
	"asin-insights/utils"
)

var version = "dev"

func main() {
	cfg := config.Load()

	app := &cli.App{
		Name:    "asin-insights",
		Usage:   "Competitive insights for Amazon product portfolios",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   cfg.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Value:   cfg.MetricsEndpoint,
				Usage:   "Competitor metrics endpoint; empty uses offline data only",
				EnvVars: []string{"METRICS_ENDPOINT"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: cfg.FetchTimeout,
				Usage: "Per-request timeout for the metrics endpoint",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Value:   cfg.MaxConcurrency,
				Usage:   "Maximum in-flight metric fetches",
				EnvVars: []string{"MAX_CONCURRENCY"},
			},
			&cli.StringFlag{
				Name:    "out",
				Value:   cfg.OutputDir,
				Usage:   "Directory receiving one sub-directory per run",
				EnvVars: []string{"OUTPUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Value:   cfg.DatabaseURL,
				Usage:   "PostgreSQL connection string; empty disables the archive",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.BoolFlag{
				Name:  "pdf",
				Value: cfg.ChromePDF,
				Usage: "Print report.pdf with headless Chrome",
			},
		},

		Before: func(c *cli.Context) error {
			cfg.LogLevel = c.String("log-level")
			cfg.MetricsEndpoint = c.String("endpoint")
			cfg.FetchTimeout = c.Duration("timeout")
			cfg.MaxConcurrency = c.Int("concurrency")
			cfg.OutputDir = c.String("out")
			cfg.DatabaseURL = c.String("database-url")
			cfg.ChromePDF = c.Bool("pdf")
			return nil
		},

		Commands: []*cli.Command{
			analyzeCommand(cfg),
			serveCommand(cfg),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates bad input (2) from everything else (1)
func exitCode(err error) int {
	switch models.KindOf(err) {
	case models.KindMalformedInput, models.KindNoValidIdentifiers:
		return 2
	default:
		return 1
	}
}

// =============================================================================
// ANALYZE COMMAND
// =============================================================================

func analyzeCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Process a URL sheet and write the reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "CSV file with a url column",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON instead of the terminal report",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Hide the progress bar",
			},
		},
		Action: func(c *cli.Context) error {
			return runAnalyze(c, cfg)
		},
	}
}

func runAnalyze(c *cli.Context, cfg *config.Config) error {
	// ================== Bootstrap ====================
	logger := utils.NewLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputPath := c.String("input")
	file, err := os.Open(inputPath)
	if err != nil {
		return models.NewRunError(models.KindMalformedInput, pipeline.StageParsing.String(), "cannot open input", err)
	}
	defer file.Close()

	source, err := provider.NewSource(cfg.MetricsEndpoint, cfg.FetchTimeout, logger)
	if err != nil {
		return err
	}

	// ================== Pipeline ====================
	var bar *progressbar.ProgressBar
	opts := []pipeline.Option{pipeline.WithConcurrency(cfg.MaxConcurrency)}
	if !c.Bool("quiet") && !c.Bool("json") {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("fetching metrics"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts,
			pipeline.WithResolved(func(total int) { bar.ChangeMax(total) }),
			pipeline.WithProgress(func(string) { _ = bar.Add(1) }),
		)
	}

	orchestrator := pipeline.New(source, logger, opts...)
	result, err := orchestrator.Run(ctx, filepath.Base(inputPath), file)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	// ================== Exports ====================
	exporters, closeAll := buildExporters(ctx, cfg, logger)
	defer closeAll()
	for _, exportErr := range storage.ExportAll(ctx, result, exporters...) {
		logger.Warn("%v", exportErr)
	}

	// ================== Report ====================
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	services.PrintRunReport(os.Stdout, result)
	fmt.Println(" Done! Reports →", storage.RunDir(cfg.OutputDir, result.RunID))
	return nil
}

// buildExporters assembles the file exporters plus the opt-in PDF and
// PostgreSQL ones. A database that cannot be reached is logged and skipped.
func buildExporters(ctx context.Context, cfg *config.Config, logger *utils.Logger) ([]storage.Exporter, func()) {
	exporters := []storage.Exporter{
		storage.NewCSVWriter(cfg.OutputDir, logger),
		storage.NewJSONWriter(cfg.OutputDir, logger),
		storage.NewHTMLWriter(cfg.OutputDir, logger),
	}
	if cfg.ChromePDF {
		exporters = append(exporters, storage.NewPDFWriter(cfg.OutputDir, logger))
	}
	exporters = append(exporters, storage.NewArchiveWriter(cfg.OutputDir, logger))

	closeAll := func() {}
	if cfg.DatabaseURL == "" {
		return exporters, closeAll
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pgWriter, err := storage.NewPostgresWriter(pingCtx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("Cannot connect to PostgreSQL, archive disabled: %v", err)
		return exporters, closeAll
	}
	if err := pgWriter.CreateTables(pingCtx); err != nil {
		logger.Error("Failed to create DB tables, archive disabled: %v", err)
		pgWriter.Close()
		return exporters, closeAll
	}
	return append(exporters, pgWriter), pgWriter.Close
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   cfg.ServerAddr,
				Usage:   "Listen address",
				EnvVars: []string{"SERVER_ADDR"},
			},
		},
		Action: func(c *cli.Context) error {
			logger := utils.NewLogger(cfg.LogLevel)
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			source, err := provider.NewSource(cfg.MetricsEndpoint, cfg.FetchTimeout, logger)
			if err != nil {
				return err
			}
			orchestrator := pipeline.New(source, logger, pipeline.WithConcurrency(cfg.MaxConcurrency))

			exporters, closeAll := buildExporters(ctx, cfg, logger)
			defer closeAll()

			logger.Info("Output directory: %s | Concurrency: %d | Endpoint: %q",
				cfg.OutputDir, cfg.MaxConcurrency, cfg.MetricsEndpoint)
			return server.New(orchestrator, cfg.OutputDir, exporters, logger).ListenAndServe(ctx, c.String("addr"))
		},
	}
}
