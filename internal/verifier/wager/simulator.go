// Package wager financia cada usuário da hierarquia, transfere para um provedor
// elegível e registra a aposta, produzindo os registros usados pelo oráculo.
package wager

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

var (
	// ErrBetRejected: a plataforma recusou a aposta de um usuário financiado
	ErrBetRejected = errors.New("wager: bet rejected")
	// ErrBatchFailed: o lote de comissão do mês não foi criado
	ErrBatchFailed = errors.New("wager: commission batch failed")
	// ErrNoProvider: nenhum provedor aceitou a transferência; o usuário é descartado
	ErrNoProvider = errors.New("wager: no provider accepted the transfer")
)

// FundingRange é o intervalo inteiro [Min, Max] do depósito sorteado
type FundingRange struct {
	Min int64
	Max int64
}

var (
	DefaultFunding       = FundingRange{Min: 1000, Max: 2000}
	ValidTurnoverFunding = FundingRange{Min: 4000, Max: 10000}
)

// Source é a fonte de aleatoriedade (injetável nos testes)
type Source interface {
	IntN(n int) int
}

// Account são as chamadas autenticadas de um usuário
type Account interface {
	SubmitDeposit(ctx context.Context, amount decimal.Decimal) error
	GameProviders(ctx context.Context) ([]dto.GameProvider, error)
	Transfer(ctx context.Context, providerID int, amount decimal.Decimal) error
}

// Platform são as chamadas administrativas usadas na simulação
type Platform interface {
	Open(ctx context.Context, username, password string) (Account, error)
	ApproveDeposit(ctx context.Context, userID string) error
	CommissionRates(ctx context.Context) ([]dto.CommissionRate, error)
	PlaceBet(ctx context.Context, bet dto.BetRequest) error
	CreateCommissionBatch(ctx context.Context, userID, month string) error
}

// Options controla a simulação
type Options struct {
	ExcludedProviders []int
	FallbackFunding   int64
	SettleDelay       time.Duration
	MonthLayout       string
	BetType           int
}

func DefaultOptions() Options {
	return Options{
		ExcludedProviders: []int{32},
		FallbackFunding:   4000,
		SettleDelay:       3 * time.Second,
		MonthLayout:       "2006-01",
		BetType:           1,
	}
}

// Outcome é o resultado da simulação de um cenário
type Outcome struct {
	Records   []ledger.Record
	Dropped   []hierarchy.User
	Month     string
	BatchedAt time.Time
}

type Simulator struct {
	Log  *zap.Logger
	API  Platform
	Opts Options
	Rand Source
	Now  func() time.Time

	OnDropped  func()       // métricas
	OnFallback func()       // aposta sem comissão esperada
	OnError    func(string) // métricas por fase
}

func NewSimulator(log *zap.Logger, api Platform, opts Options) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		Log:  log,
		API:  api,
		Opts: opts,
		Rand: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		Now:  time.Now,
	}
}

func (s *Simulator) fail(stage string) {
	if s.OnError != nil {
		s.OnError(stage)
	}
}

// Run financia e aposta para cada usuário do roster (âncora inclusa), depois cria o lote de comissão
func (s *Simulator) Run(ctx context.Context, roster hierarchy.Roster, funding FundingRange) (Outcome, error) {
	var out Outcome

	for _, u := range roster.Users() {
		rec, ok, err := s.wager(ctx, u, funding)
		if err != nil {
			return out, err
		}
		if !ok {
			out.Dropped = append(out.Dropped, u)
			if s.OnDropped != nil {
				s.OnDropped()
			}
			continue
		}
		out.Records = append(out.Records, rec)
	}

	now := s.Now()
	out.Month = now.Format(s.Opts.MonthLayout)
	if err := s.API.CreateCommissionBatch(ctx, roster.Anchor.ID, out.Month); err != nil {
		s.fail("commission_batch")
		return out, fmt.Errorf("%w: %w", ErrBatchFailed, err)
	}
	out.BatchedAt = now
	s.Log.Info("commission batch created",
		zap.String("anchor", roster.Anchor.Username),
		zap.String("month", out.Month),
		zap.Int("records", len(out.Records)),
		zap.Int("dropped", len(out.Dropped)),
	)

	if s.Opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(s.Opts.SettleDelay):
		}
	}
	return out, nil
}

// amount sorteia o depósito dentro do intervalo
func (s *Simulator) amount(r FundingRange) decimal.Decimal {
	span := r.Max - r.Min
	if span <= 0 {
		return decimal.NewFromInt(r.Min)
	}
	return decimal.NewFromInt(r.Min + int64(s.Rand.IntN(int(span)+1)))
}

// wager executa o fluxo de um usuário. ok=false significa usuário descartado.
func (s *Simulator) wager(ctx context.Context, u hierarchy.User, funding FundingRange) (ledger.Record, bool, error) {
	log := s.Log.With(zap.String("user", u.Username), zap.Int("tier", u.Tier))

	acct, err := s.API.Open(ctx, u.Username, u.Password)
	if err != nil {
		s.fail("login")
		log.Warn("login failed, dropping user", zap.Error(err))
		return ledger.Record{}, false, nil
	}

	amount := s.amount(funding)
	if err := acct.SubmitDeposit(ctx, amount); err != nil {
		s.fail("deposit")
		amount = decimal.NewFromInt(s.Opts.FallbackFunding)
		log.Warn("deposit failed, using fallback amount", zap.Error(err), zap.String("amount", amount.String()))
	}
	if err := s.API.ApproveDeposit(ctx, u.ID); err != nil {
		s.fail("approve_deposit")
		log.Warn("deposit approval failed", zap.Error(err))
	}

	games, err := acct.GameProviders(ctx)
	if err != nil {
		s.fail("game_providers")
		log.Warn("game providers unavailable, dropping user", zap.Error(err))
		return ledger.Record{}, false, nil
	}
	names := make(map[int]string, len(games))
	for _, g := range games {
		names[g.ID] = g.Name
	}

	rec := ledger.Record{
		UserID:     u.ID,
		Username:   u.Username,
		Tier:       u.Tier,
		BetAmount:  amount,
		Percentage: decimal.Zero,
	}

	// tabela lida a cada usuário
	table, err := s.API.CommissionRates(ctx)
	if err != nil {
		s.fail("commission_rates")
		return ledger.Record{}, false, fmt.Errorf("wager: commission rates: %w", err)
	}

	tierKey := fmt.Sprint(u.Tier)
	var eligible []dto.CommissionRate
	for _, row := range table {
		if slices.Contains(s.Opts.ExcludedProviders, row.ProviderID) {
			continue
		}
		if pct, ok := row.Rates[tierKey]; ok && pct.IsPositive() {
			eligible = append(eligible, row)
		}
	}

	failed := make(map[int]bool)
	try := func(providerID int) bool {
		if failed[providerID] {
			return false
		}
		if s.transfer(ctx, log, acct, providerID, amount) {
			return true
		}
		failed[providerID] = true
		return false
	}

	picked, ok := s.eliminate(len(eligible), func(i int) bool {
		row := eligible[i]
		if _, listed := names[row.ProviderID]; !listed {
			return false
		}
		return try(row.ProviderID)
	})
	if ok {
		row := eligible[picked]
		rec.ProviderID = row.ProviderID
		rec.ProviderName = names[row.ProviderID]
		rec.Percentage = row.Rates[tierKey]
		rec.Rates = ledger.RatesFromWire(row.Rates)
	} else {
		// sem provedor elegível: qualquer provedor, sem comissão esperada
		var fallback []dto.GameProvider
		for _, g := range games {
			if g.ID > 0 && !failed[g.ID] {
				fallback = append(fallback, g)
			}
		}
		sort.Slice(fallback, func(i, j int) bool { return fallback[i].ID < fallback[j].ID })

		picked, ok = s.eliminate(len(fallback), func(i int) bool {
			return try(fallback[i].ID)
		})
		if !ok {
			log.Warn("dropping user", zap.Error(ErrNoProvider))
			return ledger.Record{}, false, nil
		}
		rec.ProviderID = fallback[picked].ID
		rec.ProviderName = fallback[picked].Name
		if s.OnFallback != nil {
			s.OnFallback()
		}
		log.Info("bet placed without commission expectation", zap.Int("provider", rec.ProviderID))
	}
	rec.Timestamp = s.Now()

	bet := dto.BetRequest{
		UserID: u.ID,
		Amount: amount,
		GameID: rec.ProviderID,
		Type:   s.Opts.BetType,
		Date:   rec.Timestamp.Format("2006-01-02"),
	}
	if err := s.API.PlaceBet(ctx, bet); err != nil {
		s.fail("place_bet")
		return ledger.Record{}, false, fmt.Errorf("%w: user %s: %w", ErrBetRejected, u.Username, err)
	}

	log.Info("bet placed",
		zap.Int("provider", rec.ProviderID),
		zap.String("amount", amount.String()),
		zap.String("pct", rec.Percentage.String()),
	)
	return rec, true, nil
}

func (s *Simulator) transfer(ctx context.Context, log *zap.Logger, acct Account, providerID int, amount decimal.Decimal) bool {
	if err := acct.Transfer(ctx, providerID, amount); err != nil {
		s.fail("transfer")
		log.Warn("transfer failed, eliminating provider", zap.Int("provider", providerID), zap.Error(err))
		return false
	}
	return true
}

// eliminate sorteia candidatos sem reposição até try aceitar um.
// Cada índice é testado no máximo uma vez.
func (s *Simulator) eliminate(n int, try func(i int) bool) (int, bool) {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for len(pool) > 0 {
		k := s.Rand.IntN(len(pool))
		idx := pool[k]
		if try(idx) {
			return idx, true
		}
		pool = append(pool[:k], pool[k+1:]...)
	}
	return 0, false
}
