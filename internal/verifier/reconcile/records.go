package reconcile

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

// AllTiers é o filtro "todos" das tabelas
const AllTiers = 0

// RecordCheck descreve uma tabela de histórico a conferir
type RecordCheck struct {
	Kind    dto.RecordKind
	Tiers   []int // AllTiers, 1, 2, 3
	Start   time.Time
	End     time.Time
	InRange bool // false: a janela não contém as apostas do cenário
}

// RecordContext nomeia o contexto de uma tabela ("bet-records", "agent-records"...)
func RecordContext(kind dto.RecordKind) string {
	name := string(kind)
	if kind == dto.RecordAgent {
		name = "agent"
	}
	return name + "-records"
}

// expectedRow é uma linha esperada; só os campos preenchidos são comparados
type expectedRow struct {
	Username string
	At       time.Time
	Text     map[string]string
	Exact    map[string]decimal.Decimal
	Near     map[string]decimal.Decimal
}

// RecordTable confere a tabela na UI e na API para cada filtro de tier.
// Todos os tiers são verificados antes do relatório ser devolvido.
func (v *Verifier) RecordTable(ctx context.Context, api Records, exp Expected, chk RecordCheck) *Report {
	rep := NewReport(RecordContext(chk.Kind))
	tiers := chk.Tiers
	if len(tiers) == 0 {
		tiers = []int{AllTiers}
	}

	uiOn := v.withUI(rep)
	for _, tier := range tiers {
		var pool []expectedRow
		if chk.InRange {
			pool = v.expectedRows(chk.Kind, exp, tier)
		}
		label := tierLabel(tier)

		if api != nil {
			rows, err := api.Records(ctx, dto.RecordQuery{Kind: chk.Kind, Tier: tierValue(tier), Start: chk.Start, End: chk.End})
			if err != nil {
				rep.Fail(label, SourceAPI, "readable", err.Error())
			} else {
				v.compareTable(rep, SourceAPI, label, chk.Kind, apiRows(rows), pool)
			}
		}

		if !uiOn {
			continue
		}
		rows, err := v.UI.Rows(ctx, v.recordScope(chk, tier))
		if err != nil {
			rep.Fail(label, SourceUI, "readable", err.Error())
			continue
		}
		v.compareTable(rep, SourceUI, label, chk.Kind, rows, pool)
	}
	return v.finish(rep)
}

func tierValue(tier int) string {
	if tier == AllTiers {
		return "all"
	}
	return strconv.Itoa(tier)
}

func tierLabel(tier int) string { return "tier=" + tierValue(tier) }

func (v *Verifier) recordScope(chk RecordCheck, tier int) Scope {
	view := ViewAgentRecord
	if chk.Kind == dto.RecordBet || chk.Kind == dto.RecordRebate {
		view = ViewRebateHistory
	}
	return NewScope(view).
		With(FilterRecordType, string(chk.Kind)).
		With(FilterTier, tierValue(tier)).
		With(FilterStart, chk.Start.Format(time.DateOnly)).
		With(FilterEnd, chk.End.Format(time.DateOnly))
}

// apiRows converte as linhas da API para o mesmo formato lido da tela
func apiRows(in []dto.RecordRow) []Row {
	out := make([]Row, 0, len(in))
	for i, r := range in {
		out = append(out, Row{Position: i, Cells: map[string]string{
			ColUsername:  r.Username,
			ColName:      r.Name,
			ColParent:    r.Parent,
			ColTier:      r.Tier.String(),
			ColTurnover:  r.Turnover.String(),
			ColRebate:    r.Rebate.String(),
			ColBetAmount: r.BetAmount.String(),
			ColBetTime:   r.BetTime,
			ColDate:      r.Date,
			ColFromUser:  r.FromUser,
			ColAmount:    r.Amount.String(),
		}})
	}
	return out
}

// expectedRows monta o pool esperado de uma tabela e filtro de tier
func (v *Verifier) expectedRows(kind dto.RecordKind, exp Expected, tier int) []expectedRow {
	var out []expectedRow
	switch kind {
	case dto.RecordDownline:
		var members []hierarchy.User
		for _, u := range slices.Concat(exp.Roster.Tier2, exp.Roster.Tier3) {
			if tier == AllTiers || u.Tier == tier {
				members = append(members, u)
			}
		}
		for _, e := range ledger.DownlineRollup(exp.Records, exp.Roster, members) {
			out = append(out, expectedRow{
				Username: e.Username,
				Text:     map[string]string{ColTier: strconv.Itoa(e.Tier)},
				Exact:    map[string]decimal.Decimal{ColTurnover: e.Turnover},
				Near:     map[string]decimal.Decimal{ColRebate: e.Rebate},
			})
		}
	case dto.RecordBet:
		for _, r := range ledger.Filter(exp.Records, tier) {
			out = append(out, expectedRow{
				Username: r.Username,
				At:       r.Timestamp,
				Exact:    map[string]decimal.Decimal{ColBetAmount: r.BetAmount},
			})
		}
	case dto.RecordRebate:
		for _, r := range ledger.Filter(exp.Records, tier) {
			out = append(out, expectedRow{
				Username: r.Username,
				At:       exp.BatchedAt,
				Text:     map[string]string{ColTier: strconv.Itoa(r.Tier)},
				Near:     map[string]decimal.Decimal{ColAmount: r.Commission()},
			})
		}
	default:
		for _, r := range ledger.Filter(exp.Records, tier) {
			parent := hierarchy.NoParent
			if u, ok := exp.Roster.Lookup(r.Username); ok {
				parent = u.Parent
			}
			out = append(out, expectedRow{
				Username: r.Username,
				Text:     map[string]string{ColParent: parent},
				Exact:    map[string]decimal.Decimal{ColTurnover: r.BetAmount},
				Near:     map[string]decimal.Decimal{ColRebate: r.Commission()},
			})
		}
	}
	return out
}

// rowUser é a identidade da linha: from_user no histórico de rebate, username nas demais
func rowUser(kind dto.RecordKind, r Row) string {
	if kind == dto.RecordRebate {
		if u := strings.TrimSpace(r.Cell(ColFromUser)); u != "" {
			return u
		}
	}
	return strings.TrimSpace(r.Cell(ColUsername))
}

// timeColumn é a coluna de horário usada na chave e na comparação
func (v *Verifier) timeColumn(kind dto.RecordKind) (col, layout string) {
	switch kind {
	case dto.RecordBet:
		return ColBetTime, v.Opts.BetTimeLayout
	case dto.RecordRebate:
		return ColDate, v.Opts.RebateDateLayout
	}
	return "", ""
}

// sameMinute aceita a virada de minuto entre a ação e o registro na plataforma
func sameMinute(layout, text string, at time.Time) bool {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(text), at.Location())
	if err != nil {
		return false
	}
	d := t.Truncate(time.Minute).Sub(at.Truncate(time.Minute))
	return d >= -time.Minute && d <= time.Minute
}

func (v *Verifier) compareTable(rep *Report, src Source, label string, kind dto.RecordKind, rows []Row, pool []expectedRow) {
	if len(pool) == 0 {
		v.expectEmpty(rep, src, label, rows)
		return
	}

	timeCol, layout := v.timeColumn(kind)
	match := func(r Row, e expectedRow) bool {
		if rowUser(kind, r) != e.Username {
			return false
		}
		if kind == dto.RecordBet {
			return sameMinute(layout, r.Cell(timeCol), e.At)
		}
		return true
	}
	pairs, unmatched, leftover := Greedy(rows, pool, match)

	for _, p := range pairs {
		field := fmt.Sprintf("%s/%s", label, p.Expected.Username)
		v.compareRow(rep, src, field, p.Row, p.Expected)
		if kind == dto.RecordRebate {
			if sameMinute(layout, p.Row.Cell(timeCol), p.Expected.At) {
				rep.Pass()
			} else {
				rep.Fail(field+"/"+timeCol, src, p.Expected.At.Format(layout), p.Row.Cell(timeCol))
			}
		}
	}
	for _, r := range unmatched {
		rep.Fail(fmt.Sprintf("%s/row %d", label, r.Position+1), src, "matching record", describeRow(kind, r, timeCol))
	}
	for _, e := range leftover {
		rep.Fail(fmt.Sprintf("%s/%s", label, e.Username), src, "row", "missing")
	}
	v.Log.Debug("table compared",
		zap.String("table", label),
		zap.String("source", string(src)),
		zap.Int("rows", len(rows)),
		zap.Int("matched", len(pairs)),
	)
}

func describeRow(kind dto.RecordKind, r Row, timeCol string) string {
	s := rowUser(kind, r)
	if timeCol != "" && r.Cell(timeCol) != "" {
		s += " @ " + r.Cell(timeCol)
	}
	if s == "" {
		s = "(empty)"
	}
	return s
}

// cellsText lista as células da linha em ordem de coluna
func cellsText(r Row) string {
	parts := make([]string, 0, len(r.Cells))
	for _, col := range slices.Sorted(maps.Keys(r.Cells)) {
		parts = append(parts, col+"="+strings.TrimSpace(r.Cells[col]))
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " ")
}

// compareRow confere as colunas em ordem alfabética; comissões usam a tolerância
func (v *Verifier) compareRow(rep *Report, src Source, field string, r Row, e expectedRow) {
	for _, col := range slices.Sorted(maps.Keys(e.Text)) {
		want := e.Text[col]
		got := strings.TrimSpace(r.Cell(col))
		if col == ColTier {
			got = firstInt.FindString(got)
		}
		rep.Text(field+"/"+col, src, want, got)
	}
	for _, col := range slices.Sorted(maps.Keys(e.Exact)) {
		want := e.Exact[col]
		got, err := money.ParseOrZero(r.Cell(col), v.Opts.Placeholders...)
		if err != nil {
			rep.Fail(field+"/"+col, src, money.Format(want), r.Cell(col))
			continue
		}
		rep.Amount(field+"/"+col, src, want, got)
	}
	for _, col := range slices.Sorted(maps.Keys(e.Near)) {
		want := e.Near[col]
		got, err := money.ParseOrZero(r.Cell(col), v.Opts.Placeholders...)
		if err != nil {
			rep.Fail(field+"/"+col, src, money.Format(want), r.Cell(col))
			continue
		}
		rep.AmountWithin(field+"/"+col, src, want, got, v.Opts.Tolerance)
	}
}

var numericCols = []string{ColTurnover, ColRebate, ColBetAmount, ColAmount}

// expectEmpty: cada linha deve ser o placeholder de "sem registro" ou ter todos os valores zerados
func (v *Verifier) expectEmpty(rep *Report, src Source, label string, rows []Row) {
	if len(rows) == 0 {
		rep.Pass()
		return
	}
	for _, r := range rows {
		field := fmt.Sprintf("%s/row %d", label, r.Position+1)
		if v.isPlaceholder(r) {
			rep.Pass()
			continue
		}
		numeric := 0
		for _, col := range numericCols {
			text, ok := r.Cells[col]
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			numeric++
			got, err := money.ParseOrZero(text, v.Opts.Placeholders...)
			if err != nil {
				rep.Fail(field+"/"+col, src, money.Format(decimal.Zero), text)
				continue
			}
			rep.Amount(field+"/"+col, src, decimal.Zero, got)
		}
		if numeric == 0 {
			rep.Fail(field, src, "placeholder or zero row", cellsText(r))
		}
	}
}

func (v *Verifier) isPlaceholder(r Row) bool {
	for _, text := range r.Cells {
		t := strings.TrimSpace(text)
		for _, p := range v.Opts.Placeholders {
			if p != "" && strings.EqualFold(t, strings.TrimSpace(p)) {
				return true
			}
		}
	}
	return false
}
