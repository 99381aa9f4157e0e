package dto

import (
	"time"

	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// Run é o resumo persistido de uma execução de cenário
type Run struct {
	RunID        string            `json:"runId"`
	Scenario     string            `json:"scenario"`
	Anchor       string            `json:"anchor"`
	Passed       bool              `json:"passed"`
	Users        int               `json:"users"`
	Dropped      int               `json:"dropped"`
	Checks       int               `json:"checks"`
	Mismatches   int               `json:"mismatches"`
	GrandBet     string            `json:"grandBet"`
	GrandRebate  string            `json:"grandRebate"`
	BetByTier    map[string]string `json:"betByTier"`
	RebateByTier map[string]string `json:"rebateByTier"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	FinishedAt   time.Time         `json:"finishedAt"`
}

// Mismatch é uma divergência registrada para uma execução
type Mismatch struct {
	RunID    string    `json:"runId"`
	Scenario string    `json:"scenario"`
	Context  string    `json:"context"`
	Field    string    `json:"field"`
	Source   string    `json:"source"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
	At       time.Time `json:"at"`
}

// RunFilter restringe a listagem de execuções; campos vazios não filtram
type RunFilter struct {
	Anchor   string
	Scenario string
	Passed   *bool
	Limit    int
}

// FromEvent converte o evento em cache para o formato da API
func FromEvent(e events.ScenarioFinished) Run {
	return Run{
		RunID:        e.RunID,
		Scenario:     e.Scenario,
		Anchor:       e.Anchor,
		Passed:       e.Passed,
		Users:        e.Users,
		Dropped:      e.Dropped,
		Checks:       e.Checks,
		Mismatches:   e.Mismatches,
		GrandBet:     e.GrandBet,
		GrandRebate:  e.GrandRebate,
		BetByTier:    e.BetByTier,
		RebateByTier: e.RebateByTier,
		Error:        e.Error,
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
	}
}
