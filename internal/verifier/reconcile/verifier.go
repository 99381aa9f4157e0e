package reconcile

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

// Records lê as tabelas de histórico em nome de um usuário autenticado
type Records interface {
	Records(ctx context.Context, q dto.RecordQuery) ([]dto.RecordRow, error)
}

// API são as chamadas administrativas usadas na reconciliação
type API interface {
	Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, error)
	LeaderboardTnc(ctx context.Context) (dto.TncText, error)
	ApproveRebate(ctx context.Context, userID string) error
}

type Options struct {
	Placeholders         []string
	BetTimeLayout        string
	RebateDateLayout     string
	MonthLayout          string
	Tolerance            decimal.Decimal
	MilestoneMinMembers  int
	MilestoneMinTurnover decimal.Decimal
}

func DefaultOptions() Options {
	return Options{
		Placeholders:         []string{"No Record"},
		BetTimeLayout:        "2006-01-02 15:04:05",
		RebateDateLayout:     "02/01/2006 03:04 PM",
		MonthLayout:          "2006-01",
		Tolerance:            money.Cent,
		MilestoneMinMembers:  5,
		MilestoneMinTurnover: decimal.NewFromInt(20000),
	}
}

// Expected é o oráculo de um cenário
type Expected struct {
	Roster    hierarchy.Roster
	Records   []ledger.Record
	Ledger    ledger.Ledger
	Month     string
	BatchedAt time.Time
}

func NewExpected(roster hierarchy.Roster, records []ledger.Record, month string, batchedAt time.Time) Expected {
	return Expected{
		Roster:    roster,
		Records:   records,
		Ledger:    ledger.Aggregate(records),
		Month:     month,
		BatchedAt: batchedAt,
	}
}

// NewMembers é a quantidade de tier 2 exibida como "novos membros efetivos"
func (e Expected) NewMembers() int { return len(e.Roster.Tier2) }

type Verifier struct {
	Log  *zap.Logger
	UI   UI // nil desliga as verificações de tela
	API  API
	Opts Options

	OnMismatch func(context string, n int)
}

func New(log *zap.Logger, ui UI, api API, opts Options) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{Log: log, UI: ui, API: api, Opts: opts}
}

// finish registra o resultado do contexto
func (v *Verifier) finish(rep *Report) *Report {
	fields := []zap.Field{
		zap.String("context", rep.Context),
		zap.Int("checks", rep.Checks),
		zap.Int("mismatches", len(rep.Mismatches)),
	}
	if rep.Skipped != "" {
		fields = append(fields, zap.String("skipped", rep.Skipped))
	}
	if rep.Passed() {
		v.Log.Info("context reconciled", fields...)
		return rep
	}
	for _, m := range rep.Mismatches {
		v.Log.Warn("mismatch",
			zap.String("context", m.Context),
			zap.String("field", m.Field),
			zap.String("source", string(m.Source)),
			zap.String("expected", m.Expected),
			zap.String("actual", m.Actual),
		)
	}
	v.Log.Warn("context failed", fields...)
	if v.OnMismatch != nil {
		v.OnMismatch(rep.Context, len(rep.Mismatches))
	}
	return rep
}

// withUI devolve false (e marca o relatório) quando não há agente de UI
func (v *Verifier) withUI(rep *Report) bool {
	if v.UI == nil {
		rep.Skip("ui agent not configured")
		return false
	}
	return true
}

// field lê um campo obrigatório; ausência ou erro viram divergência
func (v *Verifier) field(ctx context.Context, rep *Report, scope Scope, name string) (Observed, bool) {
	obs, err := v.UI.Field(ctx, scope, name)
	if err != nil {
		rep.Fail(name, SourceUI, "readable", err.Error())
		return obs, false
	}
	if !obs.Present {
		rep.Fail(name, SourceUI, "present", "missing")
		return obs, false
	}
	return obs, true
}

// amount lê um campo monetário. lenient trata texto ilegível como zero.
func (v *Verifier) amount(ctx context.Context, rep *Report, scope Scope, name string, lenient bool) (decimal.Decimal, bool) {
	obs, ok := v.field(ctx, rep, scope, name)
	if !ok {
		return decimal.Zero, false
	}
	d, err := money.ParseOrZero(obs.Text, v.Opts.Placeholders...)
	if err != nil {
		if lenient {
			v.Log.Warn("unreadable amount, assuming zero", zap.String("field", name), zap.String("text", obs.Text))
			return decimal.Zero, true
		}
		rep.Fail(name, SourceUI, "amount", obs.Text)
		return decimal.Zero, false
	}
	return d, true
}

var firstInt = regexp.MustCompile(`\d+`)

// count lê o primeiro inteiro do campo ("5 / 5 members" -> 5)
func (v *Verifier) count(ctx context.Context, rep *Report, scope Scope, name string) (int, bool) {
	obs, ok := v.field(ctx, rep, scope, name)
	if !ok {
		return 0, false
	}
	m := firstInt.FindString(obs.Text)
	n, err := strconv.Atoi(m)
	if err != nil {
		rep.Fail(name, SourceUI, "count", obs.Text)
		return 0, false
	}
	return n, true
}
