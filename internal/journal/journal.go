// Package journal records every trade attempt and outcome in Postgres. The
// journal is optional plumbing: a nil *Journal is safe to call, so the
// worker runs identically with or without a database configured.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hadoku/fidelity-worker/internal/config"
	"github.com/hadoku/fidelity-worker/internal/fidelity"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_log (
	id SERIAL PRIMARY KEY,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity BIGINT NOT NULL,
	account TEXT NOT NULL,
	dry_run BOOLEAN NOT NULL,
	last_price TEXT,
	total_value TEXT,
	success BOOLEAN NOT NULL,
	alert TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trade_log_ticker ON trade_log(ticker);
CREATE INDEX IF NOT EXISTS idx_trade_log_created_at ON trade_log(created_at);
`

// Journal is an open trade log.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to Postgres using the configured DSN fields and creates the
// trade_log table when missing.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*Journal, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trade_log schema: %w", err)
	}

	return &Journal{db: db, log: log}, nil
}

// LogTrade records one attempt and its outcome. Nil-safe; journal failures
// are logged and swallowed so they never fail a trade that already happened.
func (j *Journal) LogTrade(ctx context.Context, req fidelity.TradeRequest, outcome fidelity.TradeOutcome) {
	if j == nil {
		return
	}

	totalValue := outcome.LastPrice.Mul(decimal.NewFromInt(req.Quantity))

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trade_log
			(ticker, side, quantity, account, dry_run, last_price, total_value, success, alert, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.Ticker, string(req.Side), req.Quantity, req.Account, req.DryRun,
		outcome.LastPrice.String(), totalValue.String(),
		outcome.Success, string(outcome.Alert),
		sql.NullString{String: outcome.ErrorMessage, Valid: outcome.ErrorMessage != ""},
	)
	if err != nil {
		j.log.Error("failed to log trade", "err", err, "ticker", req.Ticker)
	}
}

// Close releases the connection pool. Nil-safe.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.db.Close()
}
