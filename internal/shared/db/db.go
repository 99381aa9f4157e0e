package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// reportSchema cria as tabelas de execuções e divergências
const reportSchema = `
CREATE TABLE IF NOT EXISTS scenario_runs (
	run_id         TEXT PRIMARY KEY,
	scenario       TEXT NOT NULL,
	anchor         TEXT NOT NULL,
	passed         BOOLEAN NOT NULL,
	users          INT NOT NULL DEFAULT 0,
	dropped        INT NOT NULL DEFAULT 0,
	checks         INT NOT NULL DEFAULT 0,
	mismatches     INT NOT NULL DEFAULT 0,
	grand_bet      NUMERIC(18,2) NOT NULL DEFAULT 0,
	grand_rebate   NUMERIC(18,2) NOT NULL DEFAULT 0,
	bet_by_tier    JSONB NOT NULL DEFAULT '{}'::jsonb,
	rebate_by_tier JSONB NOT NULL DEFAULT '{}'::jsonb,
	error          TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS scenario_runs_anchor_idx ON scenario_runs (anchor, finished_at DESC);

CREATE TABLE IF NOT EXISTS reconciliation_mismatches (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL,
	scenario   TEXT NOT NULL,
	context    TEXT NOT NULL,
	field      TEXT NOT NULL,
	source     TEXT NOT NULL,
	expected   TEXT NOT NULL,
	actual     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (run_id, context, field, source)
);
CREATE INDEX IF NOT EXISTS reconciliation_mismatches_run_idx ON reconciliation_mismatches (run_id);
`

// EnsureReportSchema aplica o schema de relatórios (idempotente)
func EnsureReportSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, reportSchema); err != nil {
		return fmt.Errorf("ensure report schema: %w", err)
	}
	return nil
}
