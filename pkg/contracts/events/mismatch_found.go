package events

import "time"

// MismatchFound registra uma divergência entre o valor esperado e o exibido
type MismatchFound struct {
	RunID    string    `json:"run_id"`
	Scenario string    `json:"scenario"`
	Context  string    `json:"context"` // ex: "wallet-month", "records/agent/2"
	Field    string    `json:"field"`
	Source   string    `json:"source"` // "ui" | "api"
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
	Ts       time.Time `json:"ts"`
}
