package reconcile

import (
	"context"
)

const ContextApproveRebate = "approve-rebate"

// ApproveRebate aprova o rebate da âncora e confere o saldo:
// saldo depois = saldo antes + rebate total exibido.
func (v *Verifier) ApproveRebate(ctx context.Context, exp Expected) *Report {
	rep := NewReport(ContextApproveRebate)
	if !v.withUI(rep) {
		if err := v.API.ApproveRebate(ctx, exp.Roster.Anchor.ID); err != nil {
			rep.Fail("approve", SourceAPI, "ok", err.Error())
		} else {
			rep.Pass()
		}
		return v.finish(rep)
	}

	wallet := NewScope(ViewWallet)
	before, ok := v.amount(ctx, rep, wallet, FieldTotalBalance, false)
	if !ok {
		return v.finish(rep)
	}
	shown, ok := v.amount(ctx, rep, NewScope(ViewRebateTotal), FieldTotalRebate, false)
	if !ok {
		return v.finish(rep)
	}
	rep.AmountWithin(FieldTotalRebate, SourceUI, exp.Ledger.GrandRebate, shown, v.Opts.Tolerance)

	if err := v.API.ApproveRebate(ctx, exp.Roster.Anchor.ID); err != nil {
		rep.Fail("approve", SourceAPI, "ok", err.Error())
		return v.finish(rep)
	}

	if after, ok := v.amount(ctx, rep, wallet, FieldTotalBalance, false); ok {
		rep.Amount(FieldTotalBalance, SourceUI, before.Add(shown), after)
	}
	return v.finish(rep)
}
