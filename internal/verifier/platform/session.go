package platform

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

// QueryDateLayout é o formato dos filtros start_date/end_date
const QueryDateLayout = "2006-01-02"

// Session são as chamadas autenticadas de um usuário
type Session struct {
	client   *Client
	token    string
	Username string
}

// SubmitDeposit envia o formulário de recarga
func (s *Session) SubmitDeposit(ctx context.Context, amount decimal.Decimal) error {
	fields := map[string]string{
		"amount":       amount.String(),
		"paytype":      "bank",
		"transferType": "2",
		"bankId":       "9",
	}
	return s.client.postForm(ctx, "submit_deposit", s.token, s.client.Routes.SubmitDeposit, fields, nil)
}

// GameProviders lista os provedores disponíveis para transferência
func (s *Session) GameProviders(ctx context.Context) ([]dto.GameProvider, error) {
	var out []dto.GameProvider
	err := s.client.get(ctx, "game_providers", s.token, s.client.Routes.GameProviders, nil, &out)
	return out, err
}

// Transfer move saldo da carteira principal para o provedor
func (s *Session) Transfer(ctx context.Context, providerID int, amount decimal.Decimal) error {
	req := dto.TransferRequest{
		SourceID: dto.MainWallet,
		TargetID: providerID,
		Amount:   money.NewAmount(amount),
	}
	return s.client.postJSON(ctx, "transfer", s.token, s.client.Routes.Transfer, req, nil)
}

// Records consulta uma tabela de histórico do afiliado
func (s *Session) Records(ctx context.Context, q dto.RecordQuery) ([]dto.RecordRow, error) {
	v := url.Values{}
	v.Set("type", string(q.Kind))
	if q.Tier != "" {
		v.Set("tier", q.Tier)
	}
	if !q.Start.IsZero() {
		v.Set("start_date", q.Start.Format(QueryDateLayout))
	}
	if !q.End.IsZero() {
		v.Set("end_date", q.End.Format(QueryDateLayout))
	}
	v.Set("page_size", strconv.Itoa(500))

	var out dto.RecordList
	if err := s.client.get(ctx, "records_"+string(q.Kind), s.token, s.client.Routes.Records, v, &out); err != nil {
		return nil, err
	}
	return out.Rows(), nil
}
