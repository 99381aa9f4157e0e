package reconcile

import (
	"context"
	"fmt"
	"maps"
)

// Views lidas pelo agente de UI
const (
	ViewProfile            = "profile"
	ViewLeaderboard        = "leaderboard"
	ViewLeaderboardRanking = "leaderboard.ranking"
	ViewLeaderboardTnc     = "leaderboard.tnc"
	ViewRebateTotal        = "rebate.total"
	ViewRebateHistory      = "rebate.history"
	ViewAgentRecord        = "rebate.agent_record"
	ViewWallet             = "wallet"
)

// Filtros de escopo
const (
	FilterMonth      = "month"
	FilterTier       = "tier"
	FilterRecordType = "record_type"
	FilterStart      = "start"
	FilterEnd        = "end"
)

// Controles com opções (dropdowns)
const ControlMonth = "month-select"

// Campos exibidos
const (
	FieldProfileTurnover  = "turnover-amount"
	FieldProfileEffective = "effective-amount"
	FieldAvatar           = "profile_avatar"
	FieldMilestoneCheck   = "milestone-check-0"
	FieldEffectiveNewAdd  = "effective_new_add"
	FieldLeaderTurnover   = "turnover_amount"
	FieldTotalTurnover    = "total_turnover_value"
	FieldTotalRebate      = "total_rebate_value"
	FieldTotalBalance     = "total_balance"
)

// Colunas das tabelas
const (
	ColUsername  = "username"
	ColName      = "name"
	ColParent    = "parent"
	ColTier      = "tier"
	ColTurnover  = "turnover"
	ColRebate    = "rebate"
	ColBetAmount = "bet_amount"
	ColBetTime   = "bet_time"
	ColDate      = "date"
	ColFromUser  = "from_user"
	ColAmount    = "amount"
	ColText      = "text"
)

// FieldTierItemAmount é o turnover do tier (índice 0 = tier 1) no leaderboard
func FieldTierItemAmount(index int) string { return fmt.Sprintf("tier_item_%d_amount", index) }

// FieldTierTurnover e FieldTierRebate são os valores por tier na aba de total
func FieldTierTurnover(tier int) string { return fmt.Sprintf("t%d_turnover_value", tier) }
func FieldTierRebate(tier int) string   { return fmt.Sprintf("t%d_rebate_value", tier) }

// Scope identifica uma tela e os filtros aplicados nela
type Scope struct {
	View    string
	Filters map[string]string
}

func NewScope(view string) Scope {
	return Scope{View: view, Filters: map[string]string{}}
}

// With devolve uma cópia com o filtro aplicado
func (s Scope) With(key, value string) Scope {
	out := Scope{View: s.View, Filters: maps.Clone(s.Filters)}
	if out.Filters == nil {
		out.Filters = map[string]string{}
	}
	out.Filters[key] = value
	return out
}

// Observed é um campo lido da tela
type Observed struct {
	Text    string            `json:"text"`
	Present bool              `json:"present"`
	Visible bool              `json:"visible"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Row é uma linha de tabela, com as células nomeadas pela coluna
type Row struct {
	Position int               `json:"position"`
	Cells    map[string]string `json:"cells"`
}

func (r Row) Cell(name string) string { return r.Cells[name] }

// UI é o colaborador que lê a interface; cada chamada reflete o estado atual
type UI interface {
	Field(ctx context.Context, scope Scope, name string) (Observed, error)
	Rows(ctx context.Context, scope Scope) ([]Row, error)
	Options(ctx context.Context, scope Scope, control string) ([]string, error)
}
