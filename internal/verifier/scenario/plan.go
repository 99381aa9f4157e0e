// Package scenario monta e executa os cenários de verificação: cria a
// hierarquia, simula as apostas, calcula o oráculo e reconcilia cada contexto.
package scenario

import (
	"fmt"
	"slices"
	"time"

	"github.com/radieske/rebate-verifier/internal/shared/config"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
	"github.com/radieske/rebate-verifier/internal/verifier/reconcile"
	"github.com/radieske/rebate-verifier/internal/verifier/wager"
)

// Check é um contexto de reconciliação executado após a simulação
type Check int

const (
	CheckWalletMonth Check = iota
	CheckApproveRebate
	CheckRecords
	CheckProfile
	CheckLeaderboard
	CheckMilestone
	CheckRanking
	CheckTnc
)

// Window é a janela de datas das tabelas de histórico
type Window int

const (
	WindowToday Window = iota // contém as apostas do cenário
	WindowPast                // termina antes das apostas
)

// Range resolve a janela em datas de consulta
func (w Window) Range(now time.Time) (start, end time.Time, inRange bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if w == WindowPast {
		return day.AddDate(0, -2, 0), day.AddDate(0, -1, 0), false
	}
	return day, day, true
}

// Records descreve a tabela conferida por CheckRecords
type Records struct {
	Kind   dto.RecordKind
	Tiers  []int
	Window Window
}

var allTierFilters = []int{reconcile.AllTiers, 1, 2, 3}

type Plan struct {
	Name    string
	Shape   hierarchy.Shape // Tier2 == 0: cenário sem apostas
	Funding wager.FundingRange
	Checks  []Check
	Records Records
}

// Wagers indica se o cenário cria hierarquia e apostas
func (p Plan) Wagers() bool { return p.Shape.Tier2 > 0 }

func (p Plan) has(c Check) bool { return slices.Contains(p.Checks, c) }

// Catalog devolve todos os cenários conhecidos, na ordem de execução
func Catalog() []Plan {
	records := func(name string, kind dto.RecordKind, tiers []int, w Window) Plan {
		return Plan{
			Name:    name,
			Shape:   hierarchy.ShapeOnePerTier,
			Funding: wager.DefaultFunding,
			Checks:  []Check{CheckRecords},
			Records: Records{Kind: kind, Tiers: tiers, Window: w},
		}
	}
	return []Plan{
		{Name: "rebate-month", Shape: hierarchy.ShapeDefault, Funding: wager.DefaultFunding, Checks: []Check{CheckWalletMonth}},
		{Name: "approve-rebate", Shape: hierarchy.ShapeDefault, Funding: wager.DefaultFunding, Checks: []Check{CheckApproveRebate}},
		records("rebate-records-in-range", dto.RecordRebate, []int{reconcile.AllTiers}, WindowToday),
		records("rebate-records-out-of-range", dto.RecordRebate, []int{reconcile.AllTiers}, WindowPast),
		records("agent-records-in-range", dto.RecordAgent, allTierFilters, WindowToday),
		records("agent-records-out-of-range", dto.RecordAgent, allTierFilters, WindowPast),
		records("downline-records", dto.RecordDownline, allTierFilters, WindowToday),
		records("bet-records", dto.RecordBet, allTierFilters, WindowToday),
		{Name: "profile-summary", Shape: hierarchy.ShapeDefault, Funding: wager.DefaultFunding, Checks: []Check{CheckProfile}},
		{Name: "leaderboard-summary", Shape: hierarchy.ShapeDefault, Funding: wager.DefaultFunding, Checks: []Check{CheckLeaderboard}},
		{Name: "milestone-valid", Shape: hierarchy.ShapeValid, Funding: wager.ValidTurnoverFunding, Checks: []Check{CheckMilestone}},
		{Name: "milestone-invalid-downline", Shape: hierarchy.ShapeOnePerTier, Funding: wager.ValidTurnoverFunding, Checks: []Check{CheckMilestone}},
		{Name: "milestone-invalid-turnover", Shape: hierarchy.ShapeValid, Funding: wager.DefaultFunding, Checks: []Check{CheckMilestone}},
		{Name: "ranking", Shape: hierarchy.ShapeValid, Funding: wager.ValidTurnoverFunding, Checks: []Check{CheckRanking}},
		{Name: "leaderboard-tnc", Checks: []Check{CheckTnc}},
	}
}

// Lookup busca um cenário do catálogo pelo nome
func Lookup(name string) (Plan, error) {
	for _, p := range Catalog() {
		if p.Name == name {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("scenario: unknown plan %q", name)
}

// Select resolve os cenários pedidos e aplica os ajustes do arquivo de fixtures.
// Sem nomes, usa os cenários listados nas fixtures; sem esses, o catálogo inteiro.
func Select(names []string, fx []config.ScenarioFixture) ([]Plan, error) {
	overrides := make(map[string]config.ScenarioFixture, len(fx))
	for _, f := range fx {
		overrides[f.Name] = f
	}
	if len(names) == 0 {
		for _, f := range fx {
			names = append(names, f.Name)
		}
	}

	var plans []Plan
	if len(names) == 0 {
		plans = Catalog()
	} else {
		for _, n := range names {
			p, err := Lookup(n)
			if err != nil {
				return nil, err
			}
			plans = append(plans, p)
		}
	}

	for i, p := range plans {
		f, ok := overrides[p.Name]
		if !ok {
			continue
		}
		if f.Shape != "" {
			shape, err := hierarchy.ShapeByName(f.Shape)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", p.Name, err)
			}
			p.Shape = shape
		}
		if f.FundingMin > 0 && f.FundingMax >= f.FundingMin {
			p.Funding = wager.FundingRange{Min: f.FundingMin, Max: f.FundingMax}
		}
		plans[i] = p
	}
	return plans, nil
}
