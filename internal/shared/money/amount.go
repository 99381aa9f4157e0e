package money

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount é um valor monetário vindo da API: aceita número ou string
// ("1,234.56", "MYR 10") e nunca passa por float.
type Amount struct {
	decimal.Decimal
}

// NewAmount embrulha um decimal
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		d, err := ParseOrZero(s)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(string(raw)))
	if err != nil {
		return &ParseError{Text: string(raw), Err: err}
	}
	a.Decimal = d
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(Format(a.Decimal))
}

func (a Amount) String() string { return Format(a.Decimal) }
