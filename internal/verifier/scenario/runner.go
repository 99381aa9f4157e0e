package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/config"
	"github.com/radieske/rebate-verifier/internal/shared/logger"
	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
	"github.com/radieske/rebate-verifier/internal/verifier/reconcile"
	"github.com/radieske/rebate-verifier/internal/verifier/wager"
	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// ErrScenarioFailed casa com o erro agregado de RunAll
var ErrScenarioFailed = errors.New("scenario: failed")

// Publisher recebe o resultado de cada cenário (kafka em produção)
type Publisher interface {
	PublishScenarioFinished(ctx context.Context, e events.ScenarioFinished) error
	PublishMismatches(ctx context.Context, ms []events.MismatchFound) error
}

// Authenticator abre a sessão da âncora para ler as tabelas de histórico pela API
type Authenticator func(ctx context.Context, username, password string) (reconcile.Records, error)

// Registrar cria uma âncora nova para o cenário
type Registrar func(ctx context.Context) (config.Credentials, error)

type Runner struct {
	Log       *zap.Logger
	Anchor    config.Credentials
	Hierarchy *hierarchy.Generator
	Wager     *wager.Simulator
	Verifier  *reconcile.Verifier
	Login     Authenticator
	Register  Registrar // opcional; nil usa sempre Anchor
	Publisher Publisher // opcional
	Now       func() time.Time
	NewID     func() string

	OnScenario func(name string, passed bool, elapsed time.Duration) // métricas
}

// Result é o resultado de um cenário
type Result struct {
	RunID      string
	Scenario   string
	Reports    []*reconcile.Report
	Expected   reconcile.Expected
	Outcome    wager.Outcome
	Err        error // falha de preparação (hierarquia, aposta, lote)
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Result) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, rep := range r.Reports {
		if !rep.Passed() {
			return false
		}
	}
	return true
}

func (r Result) Mismatches() []reconcile.Mismatch {
	var out []reconcile.Mismatch
	for _, rep := range r.Reports {
		out = append(out, rep.Mismatches...)
	}
	return out
}

func (r Result) Checks() int {
	n := 0
	for _, rep := range r.Reports {
		n += rep.Checks
	}
	return n
}

// Failure resume a falha do cenário; nil quando passou
func (r Result) Failure() error {
	if r.Err != nil {
		return r.Err
	}
	var errs []error
	for _, rep := range r.Reports {
		if err := rep.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// RunAll executa os cenários em sequência; cada um tem sua própria hierarquia.
// O erro devolvido reúne os cenários que falharam.
func (r *Runner) RunAll(ctx context.Context, plans []Plan) ([]Result, error) {
	var results []Result
	var failed []error
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.Run(ctx, p)
		results = append(results, res)
		if !res.Passed() {
			failed = append(failed, fmt.Errorf("%s: %w", p.Name, res.Failure()))
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%w: %d of %d: %w", ErrScenarioFailed, len(failed), len(plans), errors.Join(failed...))
	}
	return results, nil
}

// Run executa um cenário e publica o resultado
func (r *Runner) Run(ctx context.Context, plan Plan) Result {
	res := Result{RunID: r.newID(), Scenario: plan.Name, StartedAt: r.now()}
	acct := r.Anchor
	if r.Register != nil {
		fresh, err := r.Register(ctx)
		if err != nil {
			res.Err = fmt.Errorf("scenario: register anchor: %w", err)
		} else {
			acct = fresh
		}
	}
	base := r.Log
	if base == nil {
		base = zap.NewNop()
	}
	log := logger.Scenario(base, res.RunID, plan.Name, acct.Username)
	log.Info("scenario started", zap.String("shape", plan.Shape.Name))

	if res.Err == nil {
		r.execute(ctx, log, acct, plan, &res)
	}

	res.FinishedAt = r.now()
	elapsed := res.FinishedAt.Sub(res.StartedAt)
	if res.Passed() {
		log.Info("scenario passed", zap.Int("checks", res.Checks()), zap.Duration("elapsed", elapsed))
	} else {
		log.Warn("scenario failed",
			zap.Int("checks", res.Checks()),
			zap.Int("mismatches", len(res.Mismatches())),
			zap.Error(res.Failure()),
		)
	}
	if r.OnScenario != nil {
		r.OnScenario(plan.Name, res.Passed(), elapsed)
	}
	r.publish(ctx, log, acct.Username, res)
	return res
}

func (r *Runner) execute(ctx context.Context, log *zap.Logger, acct config.Credentials, plan Plan, res *Result) {
	anchor := hierarchy.User{ID: acct.ID, Username: acct.Username, Password: acct.Password, Tier: 1, Parent: hierarchy.NoParent}
	res.Expected = reconcile.NewExpected(hierarchy.Roster{Anchor: anchor}, nil, "", time.Time{})

	// o ranking compara com o leaderboard anterior às apostas
	var comp reconcile.Competitors
	if plan.has(CheckRanking) {
		c, err := r.Verifier.CollectCompetitors(ctx, anchor.Username)
		if err != nil {
			res.Err = err
			return
		}
		comp = c
	}

	if plan.Wagers() {
		roster, err := r.Hierarchy.Generate(ctx, anchor, plan.Shape)
		if err != nil {
			res.Err = err
			return
		}
		out, err := r.Wager.Run(ctx, roster, plan.Funding)
		res.Outcome = out
		if err != nil {
			res.Err = err
			return
		}
		res.Expected = reconcile.NewExpected(roster, out.Records, out.Month, out.BatchedAt)
		log.Info("oracle computed",
			zap.String("grand_bet", money.Format(res.Expected.Ledger.GrandBet)),
			zap.String("grand_rebate", money.Format(res.Expected.Ledger.GrandRebate)),
			zap.Int("records", len(out.Records)),
			zap.Int("dropped", len(out.Dropped)),
		)
	}

	exp := res.Expected
	v := r.Verifier
	for _, c := range plan.Checks {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return
		}
		switch c {
		case CheckWalletMonth:
			res.Reports = append(res.Reports, v.WalletMonth(ctx, exp))
		case CheckApproveRebate:
			res.Reports = append(res.Reports, v.ApproveRebate(ctx, exp))
		case CheckProfile:
			res.Reports = append(res.Reports, v.ProfileSummary(ctx, exp))
		case CheckLeaderboard:
			res.Reports = append(res.Reports, v.LeaderboardSummary(ctx, exp))
		case CheckMilestone:
			res.Reports = append(res.Reports, v.Milestone(ctx, exp))
		case CheckRanking:
			res.Reports = append(res.Reports, v.Ranking(ctx, exp, comp))
		case CheckTnc:
			res.Reports = append(res.Reports, v.Tnc(ctx))
		case CheckRecords:
			rep, err := r.records(ctx, acct, plan.Records, exp)
			if err != nil {
				res.Err = err
				return
			}
			res.Reports = append(res.Reports, rep)
		}
	}
}

func (r *Runner) records(ctx context.Context, acct config.Credentials, tbl Records, exp reconcile.Expected) (*reconcile.Report, error) {
	var api reconcile.Records
	if r.Login != nil {
		s, err := r.Login(ctx, acct.Username, acct.Password)
		if err != nil {
			return nil, fmt.Errorf("scenario: anchor login: %w", err)
		}
		api = s
	}
	start, end, inRange := tbl.Window.Range(r.now())
	return r.Verifier.RecordTable(ctx, api, exp, reconcile.RecordCheck{
		Kind:    tbl.Kind,
		Tiers:   tbl.Tiers,
		Start:   start,
		End:     end,
		InRange: inRange,
	}), nil
}

// Event converte o resultado no evento publicado
func (r Result) Event(anchor string) events.ScenarioFinished {
	l := r.Expected.Ledger
	e := events.ScenarioFinished{
		RunID:        r.RunID,
		Scenario:     r.Scenario,
		Anchor:       anchor,
		Passed:       r.Passed(),
		Users:        len(r.Outcome.Records),
		Dropped:      len(r.Outcome.Dropped),
		Checks:       r.Checks(),
		Mismatches:   len(r.Mismatches()),
		GrandBet:     money.Format(l.GrandBet),
		GrandRebate:  money.Format(l.GrandRebate),
		BetByTier:    map[string]string{},
		RebateByTier: map[string]string{},
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	for _, t := range ledger.Tiers {
		e.BetByTier[strconv.Itoa(t)] = money.Format(l.Bet(t))
		e.RebateByTier[strconv.Itoa(t)] = money.Format(l.Rebate(t))
	}
	if err := r.Failure(); err != nil {
		e.Error = err.Error()
	}
	return e
}

func (r *Runner) publish(ctx context.Context, log *zap.Logger, anchor string, res Result) {
	if r.Publisher == nil {
		return
	}
	var ms []events.MismatchFound
	for _, m := range res.Mismatches() {
		ms = append(ms, events.MismatchFound{
			RunID:    res.RunID,
			Scenario: res.Scenario,
			Context:  m.Context,
			Field:    m.Field,
			Source:   string(m.Source),
			Expected: m.Expected,
			Actual:   m.Actual,
			Ts:       res.FinishedAt,
		})
	}
	if err := r.Publisher.PublishMismatches(ctx, ms); err != nil {
		log.Warn("publish mismatches failed", zap.Error(err))
	}
	if err := r.Publisher.PublishScenarioFinished(ctx, res.Event(anchor)); err != nil {
		log.Warn("publish scenario failed", zap.Error(err))
	}
}
