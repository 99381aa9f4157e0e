// Package uiagent fala com o sidecar que lê a interface do afiliado num navegador.
// O sidecar devolve campos, linhas de tabela e opções de dropdown já extraídos.
package uiagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/retry"
	"github.com/radieske/rebate-verifier/internal/verifier/reconcile"
)

type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Policy   retry.Policy
	Account  string // usuário logado no navegador
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
		Policy:  policy,
		Log:     log,
	}
}

type query struct {
	Account  string            `json:"account,omitempty"`
	Language string            `json:"language,omitempty"`
	View     string            `json:"view"`
	Filters  map[string]string `json:"filters,omitempty"`
	Name     string            `json:"name,omitempty"`
	Control  string            `json:"control,omitempty"`
}

type rowsResponse struct {
	Rows []reconcile.Row `json:"rows"`
}

type optionsResponse struct {
	Options []string `json:"options"`
}

func (c *Client) query(scope reconcile.Scope) query {
	return query{Account: c.Account, Language: c.Language, View: scope.View, Filters: scope.Filters}
}

// Field lê um campo da tela
func (c *Client) Field(ctx context.Context, scope reconcile.Scope, name string) (reconcile.Observed, error) {
	q := c.query(scope)
	q.Name = name
	var out reconcile.Observed
	err := c.post(ctx, "ui_field", "/v1/field", q, &out)
	return out, err
}

// Rows lê as linhas da tabela visível no escopo
func (c *Client) Rows(ctx context.Context, scope reconcile.Scope) ([]reconcile.Row, error) {
	var out rowsResponse
	if err := c.post(ctx, "ui_rows", "/v1/rows", c.query(scope), &out); err != nil {
		return nil, err
	}
	for i := range out.Rows {
		out.Rows[i].Position = i
	}
	return out.Rows, nil
}

// Options lista as opções de um dropdown
func (c *Client) Options(ctx context.Context, scope reconcile.Scope, control string) ([]string, error) {
	q := c.query(scope)
	q.Control = control
	var out optionsResponse
	if err := c.post(ctx, "ui_options", "/v1/options", q, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("uiagent: %s: %w", op, err)
	}
	return retry.Run(ctx, c.Policy, op, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		if err != nil {
			return err
		}
		if res.StatusCode != http.StatusOK {
			c.Log.Warn("ui agent call failed", zap.String("op", op), zap.Int("status", res.StatusCode))
			return &retry.StatusError{Op: op, StatusCode: res.StatusCode, Body: string(raw)}
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return retry.Permanent(fmt.Errorf("uiagent: %s: decode: %w", op, err))
		}
		return nil
	})
}

var _ reconcile.UI = (*Client)(nil)
