// Package ledger calcula os totais esperados (oráculo) a partir das apostas feitas.
// Cada comissão é arredondada por registro antes de qualquer soma.
package ledger

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/shared/money"
)

// Tiers em ordem de exibição
var Tiers = []int{1, 2, 3}

// Record é uma aposta efetivada por um usuário da hierarquia
type Record struct {
	UserID       string
	Username     string
	Tier         int
	ProviderID   int // 0 quando a aposta caiu no fallback sem comissão
	ProviderName string
	BetAmount    decimal.Decimal
	Percentage   decimal.Decimal         // percentual do tier absoluto do usuário
	Rates        map[int]decimal.Decimal // percentuais por tier relativo, snapshot do provedor
	Timestamp    time.Time
}

// Commission é bet × pct / 100 arredondado
func Commission(bet, pct decimal.Decimal) decimal.Decimal {
	return money.Round(bet.Mul(pct).Shift(-2))
}

// Commission do registro no seu próprio tier
func (r Record) Commission() decimal.Decimal {
	return Commission(r.BetAmount, r.Percentage)
}

// CommissionAt usa o percentual do tier relativo (1 = própria aposta)
func (r Record) CommissionAt(relativeTier int) decimal.Decimal {
	pct, ok := r.Rates[relativeTier]
	if !ok {
		return decimal.Zero
	}
	return Commission(r.BetAmount, pct)
}

// RatesFromWire converte o mapa {"1": pct} da API
func RatesFromWire(in map[string]decimal.Decimal) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(in))
	for k, v := range in {
		if n, err := strconv.Atoi(k); err == nil {
			out[n] = v
		}
	}
	return out
}

// Ledger são os totais por tier e gerais
type Ledger struct {
	BetByTier    map[int]decimal.Decimal
	RebateByTier map[int]decimal.Decimal
	GrandBet     decimal.Decimal
	GrandRebate  decimal.Decimal
}

// Zero é o ledger esperado fora do período ou sem apostas
func Zero() Ledger {
	l := Ledger{
		BetByTier:    map[int]decimal.Decimal{},
		RebateByTier: map[int]decimal.Decimal{},
		GrandBet:     decimal.Zero,
		GrandRebate:  decimal.Zero,
	}
	for _, t := range Tiers {
		l.BetByTier[t] = decimal.Zero
		l.RebateByTier[t] = decimal.Zero
	}
	return l
}

// Aggregate soma apostas e comissões por tier
func Aggregate(records []Record) Ledger {
	l := Zero()
	for _, r := range records {
		c := r.Commission()
		l.BetByTier[r.Tier] = l.BetByTier[r.Tier].Add(r.BetAmount)
		l.RebateByTier[r.Tier] = l.RebateByTier[r.Tier].Add(c)
		l.GrandBet = l.GrandBet.Add(r.BetAmount)
		l.GrandRebate = l.GrandRebate.Add(c)
	}
	return l
}

// Bet devolve o turnover do tier (zero se ausente)
func (l Ledger) Bet(tier int) decimal.Decimal {
	if v, ok := l.BetByTier[tier]; ok {
		return v
	}
	return decimal.Zero
}

// Rebate devolve a comissão do tier (zero se ausente)
func (l Ledger) Rebate(tier int) decimal.Decimal {
	if v, ok := l.RebateByTier[tier]; ok {
		return v
	}
	return decimal.Zero
}

// Filter seleciona registros por tier; tier 0 mantém todos
func Filter(records []Record, tier int) []Record {
	if tier == 0 {
		return records
	}
	var out []Record
	for _, r := range records {
		if r.Tier == tier {
			out = append(out, r)
		}
	}
	return out
}

// ByUser agrupa os registros por username, preservando a ordem
func ByUser(records []Record) map[string][]Record {
	out := make(map[string][]Record)
	for _, r := range records {
		out[r.Username] = append(out[r.Username], r)
	}
	return out
}
