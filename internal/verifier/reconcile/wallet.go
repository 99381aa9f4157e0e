package reconcile

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
)

const ContextWalletMonth = "wallet-month"

// WalletMonth percorre todas as opções do filtro de mês da aba de rebate.
// O mês do lote deve bater com o oráculo; os demais devem estar zerados.
func (v *Verifier) WalletMonth(ctx context.Context, exp Expected) *Report {
	rep := NewReport(ContextWalletMonth)
	if !v.withUI(rep) {
		return v.finish(rep)
	}

	base := NewScope(ViewRebateTotal)
	options, err := v.UI.Options(ctx, base, ControlMonth)
	if err != nil {
		rep.Fail(ControlMonth, SourceUI, "options", err.Error())
		return v.finish(rep)
	}
	if len(options) == 0 {
		rep.Fail(ControlMonth, SourceUI, ">= 1 option", "0")
		return v.finish(rep)
	}

	seen := false
	for _, opt := range options {
		scope := base.With(FilterMonth, opt)
		if exp.Month != "" && strings.Contains(opt, exp.Month) {
			seen = true
			v.monthTotals(ctx, rep, scope, exp.Ledger, false)
			continue
		}
		v.monthTotals(ctx, rep, scope, ledger.Zero(), true)
	}
	if !seen {
		rep.Fail(ControlMonth, SourceUI, exp.Month, strings.Join(options, ","))
	}
	return v.finish(rep)
}

// monthTotals compara os valores por tier e os totais de uma opção de mês
func (v *Verifier) monthTotals(ctx context.Context, rep *Report, scope Scope, want ledger.Ledger, zero bool) {
	for _, t := range ledger.Tiers {
		label := scope.Filters[FilterMonth] + "/tier" + strconv.Itoa(t)
		if got, ok := v.amount(ctx, rep, scope, FieldTierTurnover(t), zero); ok {
			rep.Amount(label+"/turnover", SourceUI, want.Bet(t), got)
		}
		if got, ok := v.amount(ctx, rep, scope, FieldTierRebate(t), zero); ok {
			v.rebate(rep, label+"/rebate", want.Rebate(t), got, zero)
		}
	}

	label := scope.Filters[FilterMonth]
	if got, ok := v.amount(ctx, rep, scope, FieldTotalTurnover, zero); ok {
		rep.Amount(label+"/total_turnover", SourceUI, want.GrandBet, got)
	}
	if got, ok := v.amount(ctx, rep, scope, FieldTotalRebate, zero); ok {
		v.rebate(rep, label+"/total_rebate", want.GrandRebate, got, zero)
	}
}

// rebate é exato quando o esperado é zero e tolerante a um centavo caso contrário
func (v *Verifier) rebate(rep *Report, field string, want, got decimal.Decimal, exact bool) {
	if exact {
		rep.Amount(field, SourceUI, want, got)
		return
	}
	rep.AmountWithin(field, SourceUI, want, got, v.Opts.Tolerance)
}
