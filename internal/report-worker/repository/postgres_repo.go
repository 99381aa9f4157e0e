package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// PostgresRepo persiste execuções de cenário e divergências no Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertRun insere ou atualiza o resumo de uma execução
// ON CONFLICT por run_id torna a reentrega da mensagem idempotente
func (r *PostgresRepo) UpsertRun(ctx context.Context, e events.ScenarioFinished) error {
	betByTier, err := tierJSON(e.BetByTier)
	if err != nil {
		return err
	}
	rebateByTier, err := tierJSON(e.RebateByTier)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO scenario_runs
		  (run_id, scenario, anchor, passed, users, dropped, checks, mismatches,
		   grand_bet, grand_rebate, bet_by_tier, rebate_by_tier, error, started_at, finished_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (run_id) DO UPDATE SET
		  scenario       = EXCLUDED.scenario,
		  anchor         = EXCLUDED.anchor,
		  passed         = EXCLUDED.passed,
		  users          = EXCLUDED.users,
		  dropped        = EXCLUDED.dropped,
		  checks         = EXCLUDED.checks,
		  mismatches     = EXCLUDED.mismatches,
		  grand_bet      = EXCLUDED.grand_bet,
		  grand_rebate   = EXCLUDED.grand_rebate,
		  bet_by_tier    = EXCLUDED.bet_by_tier,
		  rebate_by_tier = EXCLUDED.rebate_by_tier,
		  error          = EXCLUDED.error,
		  started_at     = EXCLUDED.started_at,
		  finished_at    = EXCLUDED.finished_at
	`
	_, err = r.DB.ExecContext(ctx, q,
		e.RunID, e.Scenario, e.Anchor, e.Passed,
		e.Users, e.Dropped, e.Checks, e.Mismatches,
		amount(e.GrandBet), amount(e.GrandRebate), betByTier, rebateByTier,
		e.Error, e.StartedAt, e.FinishedAt,
	)
	return err
}

// InsertMismatch grava uma divergência; repetidas (mesmo run/contexto/campo/fonte) são ignoradas
func (r *PostgresRepo) InsertMismatch(ctx context.Context, m events.MismatchFound) error {
	const q = `
		INSERT INTO reconciliation_mismatches
		  (run_id, scenario, context, field, source, expected, actual, created_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (run_id, context, field, source) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, q,
		m.RunID, m.Scenario, m.Context, m.Field, m.Source, m.Expected, m.Actual, m.Ts,
	)
	return err
}

func tierJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal tiers: %w", err)
	}
	return b, nil
}

// amount evita string vazia em coluna NUMERIC
func amount(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
