package events

import "time"

// Evento publicado pelo rebate-verifier ao final de cada cenário.
// Valores monetários trafegam como string com 2 casas.
type ScenarioFinished struct {
	RunID        string            `json:"run_id"`
	Scenario     string            `json:"scenario"`
	Anchor       string            `json:"anchor"` // username do tier 1
	Passed       bool              `json:"passed"`
	Users        int               `json:"users"`
	Dropped      int               `json:"dropped"`
	Checks       int               `json:"checks"`
	Mismatches   int               `json:"mismatches"`
	GrandBet     string            `json:"grand_bet"`
	GrandRebate  string            `json:"grand_rebate"`
	BetByTier    map[string]string `json:"bet_by_tier"`
	RebateByTier map[string]string `json:"rebate_by_tier"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}
