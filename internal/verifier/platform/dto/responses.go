package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/shared/money"
)

// ID aceita identificadores numéricos ou string
type ID string

func (i *ID) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if bytes.Equal(raw, []byte("null")) {
		*i = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*i = ID(strings.TrimSpace(s))
		return nil
	}
	*i = ID(string(raw))
	return nil
}

func (i ID) String() string { return string(i) }

// Int converte o ID para inteiro (0 se não numérico)
func (i ID) Int() int {
	n, _ := strconv.Atoi(string(i))
	return n
}

// Envelope é o formato padrão de resposta {code, message, data}
type Envelope struct {
	Code    ID              `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// OK indica sucesso; respostas sem code são aceitas
func (e Envelope) OK() bool {
	return e.Code == "" || e.Code == "200" || e.Code == "0"
}

type LoginData struct {
	Token string `json:"token"`
}

type DownlineUser struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Parent   string `json:"parent,omitempty"`
}

// Downline é a resposta da criação de hierarquia
type Downline struct {
	Tier2 []DownlineUser `json:"tier2"`
	Tier3 []DownlineUser `json:"tier3"`
}

// CommissionRate traz os percentuais por tier relativo de um provedor
type CommissionRate struct {
	ProviderID   int                        `json:"provider_id"`
	ProviderName string                     `json:"provider_name,omitempty"`
	Rates        map[string]decimal.Decimal `json:"rebate_percentage"`
}

type GameProvider struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type LeaderboardEntry struct {
	Name               string       `json:"name"`
	ValidMembers       int          `json:"valid_members"`
	TotalValidTurnover money.Amount `json:"total_valid_turnover"`
	Avatar             string       `json:"avatar"`
}

type Leaderboard struct {
	Entries []LeaderboardEntry `json:"leaderboard"`
}

// TncText aceita o texto corrido ou a lista de itens
type TncText struct {
	Text  string
	Items []string
}

func (t *TncText) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '[' {
		return json.Unmarshal(raw, &t.Items)
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, &t.Text)
}

func (t TncText) MarshalJSON() ([]byte, error) {
	if t.Items != nil {
		return json.Marshal(t.Items)
	}
	return json.Marshal(t.Text)
}

type Tnc struct {
	Tnc TncText `json:"tnc"`
}

// RecordRow é uma linha de qualquer tabela de histórico; campos ausentes ficam zerados
type RecordRow struct {
	Username  string       `json:"username,omitempty"`
	Name      string       `json:"name,omitempty"`
	Parent    string       `json:"parent,omitempty"`
	Tier      ID           `json:"tier,omitempty"`
	Turnover  money.Amount `json:"turnover"`
	Rebate    money.Amount `json:"rebate"`
	BetAmount money.Amount `json:"bet_amount"`
	BetTime   string       `json:"bet_time,omitempty"`
	Date      string       `json:"date,omitempty"`
	FromUser  string       `json:"from_user,omitempty"`
	Amount    money.Amount `json:"amount"`
}

// RecordList cobre as duas chaves usadas pela plataforma ("list" e "data")
type RecordList struct {
	List []RecordRow `json:"list"`
	Data []RecordRow `json:"data"`
}

func (l RecordList) Rows() []RecordRow {
	if len(l.List) > 0 {
		return l.List
	}
	return l.Data
}
