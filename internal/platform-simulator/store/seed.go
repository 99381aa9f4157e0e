package store

import "github.com/shopspring/decimal"

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultProviders é o catálogo fixo de provedores do simulador.
// O provedor 40 recusa transferências para exercitar a eliminação de candidatos.
func DefaultProviders() []Provider {
	return []Provider{
		{ID: 11, Name: "Evolution", Rates: map[int]decimal.Decimal{1: pct("0.7"), 2: pct("0.4"), 3: pct("0.2")}},
		{ID: 12, Name: "Pragmatic Play", Rates: map[int]decimal.Decimal{1: pct("0.5"), 2: pct("0.35"), 3: pct("0.15")}},
		{ID: 21, Name: "Playtech", Rates: map[int]decimal.Decimal{1: pct("0.6"), 2: pct("0"), 3: pct("0.25")}},
		{ID: 32, Name: "Sportsbook", Rates: map[int]decimal.Decimal{1: pct("0.8"), 2: pct("0.5"), 3: pct("0.3")}},
		{ID: 40, Name: "Lottery", Rates: map[int]decimal.Decimal{1: pct("1"), 2: pct("1"), 3: pct("1")}, Rejects: true},
	}
}

// Seed carrega provedores e concorrentes padrão do leaderboard
func Seed(s *Store) {
	for _, p := range DefaultProviders() {
		s.AddProvider(p)
	}
	s.AddCompetitor("top_agent_a", 8, pct("150000.00"))
	s.AddCompetitor("top_agent_b", 6, pct("42000.50"))
	s.AddCompetitor("agent_c", 3, pct("900.00"))
}
