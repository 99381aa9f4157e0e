package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/radieske/rebate-verifier/internal/report-service/dto"
)

const runColumns = `run_id, scenario, anchor, passed, users, dropped, checks, mismatches,
	grand_bet::text, grand_rebate::text, bet_by_tier, rebate_by_tier, error, started_at, finished_at`

type ReadRepo struct {
	DB *sql.DB
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (dto.Run, error) {
	var (
		run            dto.Run
		betRaw, rebRaw []byte
	)
	err := s.Scan(&run.RunID, &run.Scenario, &run.Anchor, &run.Passed,
		&run.Users, &run.Dropped, &run.Checks, &run.Mismatches,
		&run.GrandBet, &run.GrandRebate, &betRaw, &rebRaw,
		&run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return run, err
	}
	if err := json.Unmarshal(betRaw, &run.BetByTier); err != nil {
		return run, fmt.Errorf("bet_by_tier: %w", err)
	}
	if err := json.Unmarshal(rebRaw, &run.RebateByTier); err != nil {
		return run, fmt.Errorf("rebate_by_tier: %w", err)
	}
	return run, nil
}

// ListRuns lista as execuções mais recentes primeiro
func (r *ReadRepo) ListRuns(ctx context.Context, f dto.RunFilter) ([]dto.Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Anchor != "" {
		args = append(args, f.Anchor)
		where = append(where, fmt.Sprintf("anchor = $%d", len(args)))
	}
	if f.Scenario != "" {
		args = append(args, f.Scenario)
		where = append(where, fmt.Sprintf("scenario = $%d", len(args)))
	}
	if f.Passed != nil {
		args = append(args, *f.Passed)
		where = append(where, fmt.Sprintf("passed = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)

	q := "SELECT " + runColumns + " FROM scenario_runs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY finished_at DESC LIMIT $%d", len(args))

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []dto.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun retorna sql.ErrNoRows quando a execução não existe
func (r *ReadRepo) GetRun(ctx context.Context, runID string) (dto.Run, error) {
	q := "SELECT " + runColumns + " FROM scenario_runs WHERE run_id = $1"
	return scanRun(r.DB.QueryRowContext(ctx, q, runID))
}

// LatestRun é a execução mais recente de uma âncora
func (r *ReadRepo) LatestRun(ctx context.Context, anchor string) (dto.Run, error) {
	q := "SELECT " + runColumns + " FROM scenario_runs WHERE anchor = $1 ORDER BY finished_at DESC LIMIT 1"
	return scanRun(r.DB.QueryRowContext(ctx, q, anchor))
}

func (r *ReadRepo) ListMismatches(ctx context.Context, runID string) ([]dto.Mismatch, error) {
	const q = `
		SELECT run_id, scenario, context, field, source, expected, actual, created_at
		FROM reconciliation_mismatches
		WHERE run_id = $1
		ORDER BY id;
	`
	rows, err := r.DB.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []dto.Mismatch{}
	for rows.Next() {
		var m dto.Mismatch
		if err := rows.Scan(&m.RunID, &m.Scenario, &m.Context, &m.Field, &m.Source, &m.Expected, &m.Actual, &m.At); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
