// Package retry aplica a política de novas tentativas usada em todas as
// chamadas de rede (API da plataforma e agente de UI).
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/url"
	"slices"
	"time"
)

// ErrExhausted indica que todas as tentativas falharam
var ErrExhausted = errors.New("retry: attempts exhausted")

// StatusError é uma resposta HTTP fora de 200
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
}

// PermanentError encerra as tentativas imediatamente
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marca err como não recuperável
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TransientError força nova tentativa para erros que não são de rede
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marca err como recuperável
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Observer recebe cada falha (op, tentativa começando em 1, erro)
type Observer func(op string, attempt int, err error)

// Policy define orçamento e espera entre tentativas
type Policy struct {
	MaxAttempts       int
	Delay             time.Duration
	BusyDelay         time.Duration // espera para status "ocupado" (ex.: 524)
	BusyStatuses      []int
	TransientStatuses []int
	Multiplier        float64 // 0 ou 1 = espera fixa
	Jitter            float64 // fração da espera, 0..1
	Observer          Observer
}

// DefaultPolicy: 3 tentativas, 2s entre elas, 5s quando o gateway responde 524
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		Delay:             2 * time.Second,
		BusyDelay:         5 * time.Second,
		BusyStatuses:      []int{524},
		TransientStatuses: []int{408, 425, 429, 500, 502, 503, 504, 520, 522, 524},
		Multiplier:        1,
	}
}

// Retryable decide se err merece nova tentativa
func (p Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return slices.Contains(p.TransientStatuses, se.StatusCode)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func (p Policy) wait(delay time.Duration, err error) time.Duration {
	var se *StatusError
	if p.BusyDelay > 0 && errors.As(err, &se) && slices.Contains(p.BusyStatuses, se.StatusCode) {
		delay = p.BusyDelay
	}
	if p.Jitter > 0 && delay > 0 {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) - spread + rand.Float64()*2*spread)
	}
	return delay
}

// Do executa fn até MaxAttempts vezes. Erros não recuperáveis voltam na hora;
// esgotado o orçamento, o erro casa com ErrExhausted e carrega a última falha.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := p.Delay
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		last = err
		if p.Observer != nil {
			p.Observer(op, attempt, err)
		}

		if !p.Retryable(err) {
			var pe *PermanentError
			if errors.As(err, &pe) {
				return zero, pe.Err
			}
			return zero, err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.wait(delay, err)):
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempts, last)
}

// Run é Do para operações sem valor de retorno
func Run(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
