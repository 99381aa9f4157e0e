// Package reconcile compara o oráculo com o que a plataforma exibe (UI) e
// devolve (API), acumulando divergências por contexto.
package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/shared/money"
)

// ErrMismatch casa com qualquer *MismatchError
var ErrMismatch = errors.New("reconcile: mismatch")

// Source é a origem do valor observado
type Source string

const (
	SourceUI  Source = "ui"
	SourceAPI Source = "api"
)

// Mismatch é uma divergência entre esperado e observado
type Mismatch struct {
	Context  string
	Field    string
	Source   Source
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s/%s [%s]: expected %q, got %q", m.Context, m.Field, m.Source, m.Expected, m.Actual)
}

// MismatchError reúne todas as divergências de um contexto
type MismatchError struct {
	Context    string
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("reconcile %s: %d mismatch(es): %s", e.Context, len(e.Mismatches), strings.Join(parts, "; "))
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Report acumula verificações de um contexto; nunca para na primeira falha
type Report struct {
	Context    string
	Checks     int
	Mismatches []Mismatch
	Skipped    string
}

func NewReport(context string) *Report {
	return &Report{Context: context}
}

// Fail registra uma divergência
func (r *Report) Fail(field string, src Source, expected, actual string) {
	r.Checks++
	r.Mismatches = append(r.Mismatches, Mismatch{
		Context:  r.Context,
		Field:    field,
		Source:   src,
		Expected: expected,
		Actual:   actual,
	})
}

// Pass conta uma verificação bem-sucedida
func (r *Report) Pass() { r.Checks++ }

// Amount compara valores monetários exatamente (após arredondar)
func (r *Report) Amount(field string, src Source, expected, actual decimal.Decimal) bool {
	if money.Equal(expected, actual) {
		r.Pass()
		return true
	}
	r.Fail(field, src, money.Format(expected), money.Format(actual))
	return false
}

// AmountWithin compara com tolerância
func (r *Report) AmountWithin(field string, src Source, expected, actual, tol decimal.Decimal) bool {
	if money.Within(expected, actual, tol) {
		r.Pass()
		return true
	}
	r.Fail(field, src, money.Format(expected), money.Format(actual))
	return false
}

// Text compara textos já normalizados pelo chamador
func (r *Report) Text(field string, src Source, expected, actual string) bool {
	if expected == actual {
		r.Pass()
		return true
	}
	r.Fail(field, src, expected, actual)
	return false
}

// Count compara contagens
func (r *Report) Count(field string, src Source, expected, actual int) bool {
	return r.Text(field, src, strconv.Itoa(expected), strconv.Itoa(actual))
}

// Skip marca o contexto como não verificado (ex.: sem agente de UI)
func (r *Report) Skip(reason string) { r.Skipped = reason }

func (r *Report) Passed() bool { return len(r.Mismatches) == 0 }

// Merge incorpora outro relatório, mantendo o contexto de cada divergência
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Checks += other.Checks
	r.Mismatches = append(r.Mismatches, other.Mismatches...)
}

// Err devolve nil ou *MismatchError
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	return &MismatchError{Context: r.Context, Mismatches: r.Mismatches}
}
