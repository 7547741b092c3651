package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"asin-insights/models"
	"asin-insights/utils"

	_ "github.com/lib/pq"
)

// PostgresWriter archives completed runs in PostgreSQL
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter creates a new PostgresWriter and pings the DB
func NewPostgresWriter(ctx context.Context, connStr string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Info("Connected to PostgreSQL successfully")
	return &PostgresWriter{db: db, logger: logger}, nil
}

func (w *PostgresWriter) Name() string { return "postgres" }

// CreateTables creates insight_runs and insight_asins if they don't exist
func (w *PostgresWriter) CreateTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS insight_runs (
		run_id             TEXT PRIMARY KEY,
		file_name          TEXT          NOT NULL,
		generated_at       TIMESTAMPTZ   NOT NULL,
		asins_processed    INTEGER       NOT NULL,
		avg_rating         NUMERIC(3,1)  NOT NULL DEFAULT 0,
		avg_price          NUMERIC(10,2) NOT NULL DEFAULT 0,
		total_est_clicks   INTEGER       NOT NULL DEFAULT 0,
		avg_priority_score NUMERIC(5,3)  NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS insight_asins (
		run_id         TEXT         NOT NULL REFERENCES insight_runs (run_id) ON DELETE CASCADE,
		asin           VARCHAR(10)  NOT NULL,
		label          TEXT         NOT NULL,
		price          NUMERIC(10,2) DEFAULT 0,
		price_position VARCHAR(10)  NOT NULL,
		priority_score NUMERIC(5,3) NOT NULL DEFAULT 0,
		payload        JSONB        NOT NULL,
		PRIMARY KEY (run_id, asin)
	);

	CREATE INDEX IF NOT EXISTS idx_insight_asins_asin     ON insight_asins (asin);
	CREATE INDEX IF NOT EXISTS idx_insight_asins_priority ON insight_asins (priority_score);
	`
	if _, err := w.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	w.logger.Info("Tables 'insight_runs' and 'insight_asins' are ready")
	return nil
}

// Export stores the run summary and one row per identifier in a single
// transaction. Re-exporting the same run id is a no-op.
func (w *PostgresWriter) Export(ctx context.Context, result *models.RunResult) (err error) {
	generatedAt, err := time.Parse(time.RFC3339, result.GeneratedAt)
	if err != nil {
		return generationError(w.Name(), "invalid generatedAt", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return generationError(w.Name(), "failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p := result.Portfolio
	res, err := tx.ExecContext(ctx, `
		INSERT INTO insight_runs (run_id, file_name, generated_at, asins_processed,
			avg_rating, avg_price, total_est_clicks, avg_priority_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO NOTHING
	`, result.RunID, result.FileName, generatedAt, p.ASINsProcessed,
		p.AvgRating, p.AvgPrice, p.TotalEstClicks, p.AvgPriorityScore)
	if err != nil {
		return generationError(w.Name(), "failed to insert run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		w.logger.Warn("Run %s already archived, skipping", result.RunID)
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO insight_asins (run_id, asin, label, price, price_position, priority_score, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return generationError(w.Name(), "failed to prepare statement", err)
	}
	defer stmt.Close()

	for _, a := range result.ASINs {
		payload, mErr := json.Marshal(a)
		if mErr != nil {
			err = mErr
			return generationError(w.Name(), "failed to encode "+a.ASIN, err)
		}
		_, err = stmt.ExecContext(ctx, result.RunID, a.ASIN, a.Label, a.Target.Price,
			string(a.Insights.PricePosition), a.Insights.PriorityScore, string(payload))
		if err != nil {
			return generationError(w.Name(), "failed to insert "+a.ASIN, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return generationError(w.Name(), "failed to commit transaction", err)
	}

	w.logger.Info("Archived run %s with %d identifiers in PostgreSQL", result.RunID, len(result.ASINs))
	return nil
}

// Close closes the database connection
func (w *PostgresWriter) Close() {
	if w.db != nil {
		_ = w.db.Close()
	}
}
