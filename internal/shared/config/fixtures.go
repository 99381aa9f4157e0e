package config

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// Credentials identifica a conta âncora (tier 1) usada nos cenários
type Credentials struct {
	ID       string `toml:"id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Layouts guarda os formatos de data exibidos pela plataforma
type Layouts struct {
	BetTime    string `toml:"bet_time"`    // coluna de horário no registro de apostas
	RebateDate string `toml:"rebate_date"` // coluna de data no histórico de rebate
	QueryDate  string `toml:"query_date"`  // filtros start/end da API
	Month      string `toml:"month"`       // mês do lote de comissão
}

// ScenarioFixture ajusta um cenário do catálogo
type ScenarioFixture struct {
	Name       string `toml:"name"`
	Shape      string `toml:"shape"`
	FundingMin int64  `toml:"funding_min"`
	FundingMax int64  `toml:"funding_max"`
}

// Fixtures é o conteúdo do arquivo TOML de dados de teste
type Fixtures struct {
	Language  string            `toml:"language"`
	Anchor    Credentials       `toml:"anchor"`
	NoRecord  map[string]string `toml:"no_record"` // idioma -> texto de "sem registro"
	Layouts   Layouts           `toml:"layouts"`
	Routes    map[string]string `toml:"routes"` // sobrescreve rotas da API
	Scenarios []ScenarioFixture `toml:"scenario"`
}

// DefaultFixtures devolve os valores usados quando o arquivo omite campos
func DefaultFixtures() Fixtures {
	return Fixtures{
		Language: "en",
		NoRecord: map[string]string{
			"en": "No Record",
			"ms": "Tiada Rekod",
			"zh": "暂无记录",
		},
		Layouts: Layouts{
			BetTime:    "2006-01-02 15:04:05",
			RebateDate: "02/01/2006 03:04 PM",
			QueryDate:  "2006-01-02",
			Month:      "2006-01",
		},
		Routes: map[string]string{},
	}
}

// LoadFixtures lê o arquivo TOML sobre os defaults
func LoadFixtures(path string) (Fixtures, error) {
	f := DefaultFixtures()
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return f, fmt.Errorf("config: decode fixtures %s: %w", path, err)
	}
	f.fill()
	return f, nil
}

// ParseFixtures lê fixtures de um texto TOML (usado em testes e no simulador)
func ParseFixtures(data string) (Fixtures, error) {
	f := DefaultFixtures()
	if _, err := toml.Decode(data, &f); err != nil {
		return f, fmt.Errorf("config: decode fixtures: %w", err)
	}
	f.fill()
	return f, nil
}

func (f *Fixtures) fill() {
	d := DefaultFixtures()
	if f.Language == "" {
		f.Language = d.Language
	}
	if f.Layouts.BetTime == "" {
		f.Layouts.BetTime = d.Layouts.BetTime
	}
	if f.Layouts.RebateDate == "" {
		f.Layouts.RebateDate = d.Layouts.RebateDate
	}
	if f.Layouts.QueryDate == "" {
		f.Layouts.QueryDate = d.Layouts.QueryDate
	}
	if f.Layouts.Month == "" {
		f.Layouts.Month = d.Layouts.Month
	}
	if f.NoRecord == nil {
		f.NoRecord = d.NoRecord
	}
	if f.Routes == nil {
		f.Routes = map[string]string{}
	}
}

// Placeholders devolve os textos de "sem registro", idioma atual primeiro
func (f Fixtures) Placeholders() []string {
	var out []string
	if p, ok := f.NoRecord[f.Language]; ok {
		out = append(out, p)
	}
	langs := make([]string, 0, len(f.NoRecord))
	for lang := range f.NoRecord {
		if lang != f.Language {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	for _, lang := range langs {
		out = append(out, f.NoRecord[lang])
	}
	return out
}
