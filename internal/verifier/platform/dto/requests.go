package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/shared/money"
)

// MainWallet é a carteira de origem das transferências
const MainWallet = 0

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TransferRequest struct {
	SourceID int          `json:"source_id"`
	TargetID int          `json:"target_id"`
	Amount   money.Amount `json:"amount"`
}

// DepositRequest segue o formulário de recarga (multipart)
type DepositRequest struct {
	Amount       decimal.Decimal
	PayType      string
	TransferType string
	BankID       int
}

// BetRequest aciona a aposta de teste para um usuário
type BetRequest struct {
	UserID string
	Amount decimal.Decimal
	GameID int
	Type   int
	Date   string // dia da aposta, usado para filtrar os registros
}

// RecordKind identifica a tabela de histórico consultada
type RecordKind string

const (
	RecordAgent    RecordKind = "all"
	RecordDownline RecordKind = "downline"
	RecordBet      RecordKind = "bet"
	RecordRebate   RecordKind = "rebate"
)

// RecordQuery filtra uma tabela de histórico por tier e intervalo de datas
type RecordQuery struct {
	Kind  RecordKind
	Tier  string // "all", "1", "2", "3"
	Start time.Time
	End   time.Time
}
