// Package platform é o cliente HTTP da API da plataforma de afiliados.
// Toda chamada passa pela política de retry compartilhada.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/shared/retry"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

// ErrRejected indica que a plataforma respondeu 200 com code de falha
var ErrRejected = errors.New("platform: request rejected")

// APIError carrega code/message do envelope
type APIError struct {
	Op      string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code %s: %s", e.Op, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return ErrRejected }

type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Routes   Routes
	Policy   retry.Policy
	Language string
	Log      *zap.Logger
}

func New(base string, timeout time.Duration, policy retry.Policy, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Routes:  DefaultRoutes(),
		Policy:  policy,
		Log:     log,
	}
}

// request monta uma requisição nova a cada tentativa
type request func(ctx context.Context) (*http.Request, error)

func (c *Client) call(ctx context.Context, op, token string, build request, out any) error {
	return retry.Run(ctx, c.Policy, op, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return retry.Permanent(fmt.Errorf("%s: build request: %w", op, err))
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if c.Language != "" {
			req.Header.Set("language", c.Language)
		}

		res, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		if err != nil {
			return err
		}
		if res.StatusCode != http.StatusOK {
			c.Log.Warn("platform call failed",
				zap.String("op", op),
				zap.Int("status", res.StatusCode),
			)
			return &retry.StatusError{Op: op, StatusCode: res.StatusCode, Body: snippet(body)}
		}
		return decode(op, body, out)
	})
}

// decode valida o envelope e preenche out com data
func decode(op string, body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if out == nil {
			return nil
		}
		return retry.Permanent(fmt.Errorf("%s: unexpected body %q", op, snippet(body)))
	}

	var env dto.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return retry.Permanent(fmt.Errorf("%s: decode envelope: %w", op, err))
	}
	if !env.OK() {
		return retry.Permanent(&APIError{Op: op, Code: env.Code.String(), Message: env.Message})
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return retry.Permanent(fmt.Errorf("%s: decode data: %w", op, err))
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func (c *Client) get(ctx context.Context, op, token, path string, q url.Values, out any) error {
	return c.call(ctx, op, token, func(ctx context.Context) (*http.Request, error) {
		u := c.BaseURL + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, out)
}

func (c *Client) postJSON(ctx context.Context, op, token, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	return c.call(ctx, op, token, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (c *Client) postForm(ctx context.Context, op, token, path string, fields map[string]string, out any) error {
	return c.call(ctx, op, token, func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}, out)
}

// Login autentica um usuário e devolve a sessão com o token
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var data dto.LoginData
	err := c.postJSON(ctx, "login", "", c.Routes.Login, dto.LoginRequest{Username: username, Password: password}, &data)
	if err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, fmt.Errorf("login %s: empty token", username)
	}
	return &Session{client: c, token: data.Token, Username: username}, nil
}

// RegisterAnchor cria um afiliado tier 1 novo pela rota de teste
func (c *Client) RegisterAnchor(ctx context.Context) (dto.DownlineUser, error) {
	var out dto.DownlineUser
	if err := c.postJSON(ctx, "register", "", c.Routes.Register, struct{}{}, &out); err != nil {
		return out, err
	}
	if out.ID == "" || out.Username == "" {
		return out, errors.New("register: incomplete account")
	}
	return out, nil
}

// CreateDownline cria tier2 e tier3 sob a âncora
func (c *Client) CreateDownline(ctx context.Context, anchorID string, tier2, tier3 int) (dto.Downline, error) {
	q := url.Values{}
	q.Set("user_id", anchorID)
	q.Set("tier2", strconv.Itoa(tier2))
	q.Set("tier3", strconv.Itoa(tier3))

	var out dto.Downline
	err := c.get(ctx, "create_downline", "", c.Routes.CreateDownline, q, &out)
	return out, err
}

// CommissionRates devolve a tabela de percentuais por provedor
func (c *Client) CommissionRates(ctx context.Context) ([]dto.CommissionRate, error) {
	var out []dto.CommissionRate
	err := c.get(ctx, "commission_rates", "", c.Routes.CommissionRates, nil, &out)
	return out, err
}

// ApproveDeposit aprova o depósito pendente do usuário
func (c *Client) ApproveDeposit(ctx context.Context, userID string) error {
	q := url.Values{}
	q.Set("user_id", userID)
	return c.get(ctx, "approve_deposit", "", c.Routes.ApproveDeposit, q, nil)
}

// PlaceBet registra uma aposta de teste
func (c *Client) PlaceBet(ctx context.Context, bet dto.BetRequest) error {
	q := url.Values{}
	q.Set("user_id", bet.UserID)
	q.Set("amount", money.Format(bet.Amount))
	q.Set("type", strconv.Itoa(bet.Type))
	q.Set("game_id", strconv.Itoa(bet.GameID))
	q.Set("date", bet.Date)
	return c.get(ctx, "place_bet", "", c.Routes.PlaceBet, q, nil)
}

// CreateCommissionBatch gera o lote de rebate do mês para a âncora
func (c *Client) CreateCommissionBatch(ctx context.Context, userID, month string) error {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("month", month)
	return c.get(ctx, "create_rebate", "", c.Routes.CreateRebate, q, nil)
}

// ApproveRebate aprova o rebate pendente e credita o saldo
func (c *Client) ApproveRebate(ctx context.Context, userID string) error {
	q := url.Values{}
	q.Set("user_id", userID)
	return c.get(ctx, "approve_rebate", "", c.Routes.ApproveRebate, q, nil)
}

// Leaderboard devolve o ranking de afiliados
func (c *Client) Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, error) {
	var out dto.Leaderboard
	err := c.get(ctx, "leaderboard", "", c.Routes.Leaderboard, nil, &out)
	return out.Entries, err
}

// LeaderboardTnc devolve os termos do leaderboard no idioma do cliente
func (c *Client) LeaderboardTnc(ctx context.Context) (dto.TncText, error) {
	var out dto.Tnc
	err := c.get(ctx, "leaderboard_tnc", "", c.Routes.LeaderboardTnc, nil, &out)
	return out.Tnc, err
}
