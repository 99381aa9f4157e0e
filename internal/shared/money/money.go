// Package money concentra o parsing e o arredondamento de valores monetários.
// Todo valor é decimal exato (shopspring/decimal), nunca float.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places é a escala monetária (centavos)
const Places = 2

var (
	// Cent é a tolerância padrão para comparações monetárias
	Cent = decimal.New(1, -Places)

	// ErrNoToken indica que a posição pedida não existe no texto
	ErrNoToken = errors.New("money: token not found")

	currencyCodes = []string{"MYR", "RM"}
)

// ParseError descreve um texto que não pôde ser lido como valor
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("money: cannot parse %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("money: cannot parse %q", e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// strip remove códigos de moeda e separadores de milhar, preservando espaços
func strip(text string) string {
	s := text
	for _, code := range currencyCodes {
		s = strings.ReplaceAll(s, code, " ")
	}
	return strings.ReplaceAll(s, ",", "")
}

// Parse lê um texto exibido ("MYR 1,234.56", "RM 10", "1234") como decimal exato
func Parse(text string) (decimal.Decimal, error) {
	s := strings.Join(strings.Fields(strip(text)), "")
	if s == "" {
		return decimal.Zero, &ParseError{Text: text}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Text: text, Err: err}
	}
	return d, nil
}

// ParseOrZero trata texto vazio ou placeholder de "sem registro" como zero
func ParseOrZero(text string, placeholders ...string) (decimal.Decimal, error) {
	t := strings.TrimSpace(text)
	if t == "" || t == "-" {
		return decimal.Zero, nil
	}
	for _, p := range placeholders {
		if p != "" && strings.EqualFold(t, strings.TrimSpace(p)) {
			return decimal.Zero, nil
		}
	}
	return Parse(t)
}

// ParseToken lê o token numérico na posição indicada após separar por espaços.
// Posições negativas contam a partir do fim (-1 = último).
func ParseToken(text string, position int) (decimal.Decimal, error) {
	fields := strings.Fields(strip(text))
	idx := position
	if idx < 0 {
		idx = len(fields) + idx
	}
	if idx < 0 || idx >= len(fields) {
		return decimal.Zero, &ParseError{Text: text, Err: ErrNoToken}
	}
	d, err := decimal.NewFromString(fields[idx])
	if err != nil {
		return decimal.Zero, &ParseError{Text: text, Err: err}
	}
	return d, nil
}

// Round arredonda para 2 casas, metade para longe do zero
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// FromFloat converte um float vindo de fixture/config, já arredondado
func FromFloat(f float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(f))
}

// FromInt converte um inteiro em valor monetário
func FromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// FromString é Parse seguido de Round
func FromString(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	return Round(d), nil
}

// Equal compara dois valores após arredondar ambos
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}

// Within compara com tolerância, arredondando ambos os lados antes
func Within(a, b, tol decimal.Decimal) bool {
	return Round(a).Sub(Round(b)).Abs().LessThanOrEqual(tol)
}

// Format devolve o valor com exatamente 2 casas
func Format(d decimal.Decimal) string {
	return Round(d).StringFixed(Places)
}

// Sum soma uma lista de valores sem arredondamento intermediário
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
