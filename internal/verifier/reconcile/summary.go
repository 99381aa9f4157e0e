package reconcile

import (
	"context"
	"strconv"

	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
)

const (
	ContextProfile     = "profile-summary"
	ContextLeaderboard = "leaderboard-summary"
	ContextMilestone   = "milestone"
)

// ProfileSummary confere turnover total e novos membros no perfil
func (v *Verifier) ProfileSummary(ctx context.Context, exp Expected) *Report {
	rep := NewReport(ContextProfile)
	if !v.withUI(rep) {
		return v.finish(rep)
	}
	scope := NewScope(ViewProfile)
	if got, ok := v.amount(ctx, rep, scope, FieldProfileTurnover, false); ok {
		rep.Amount(FieldProfileTurnover, SourceUI, exp.Ledger.GrandBet, got)
	}
	if n, ok := v.count(ctx, rep, scope, FieldProfileEffective); ok {
		rep.Count(FieldProfileEffective, SourceUI, exp.NewMembers(), n)
	}
	return v.finish(rep)
}

// LeaderboardSummary confere turnover por tier, total e novos membros
func (v *Verifier) LeaderboardSummary(ctx context.Context, exp Expected) *Report {
	rep := NewReport(ContextLeaderboard)
	if !v.withUI(rep) {
		return v.finish(rep)
	}
	scope := NewScope(ViewLeaderboard)
	if n, ok := v.count(ctx, rep, scope, FieldEffectiveNewAdd); ok {
		rep.Count(FieldEffectiveNewAdd, SourceUI, exp.NewMembers(), n)
	}
	for i, t := range ledger.Tiers {
		name := FieldTierItemAmount(i)
		if got, ok := v.amount(ctx, rep, scope, name, false); ok {
			rep.Amount(name, SourceUI, exp.Ledger.Bet(t), got)
		}
	}
	if got, ok := v.amount(ctx, rep, scope, FieldLeaderTurnover, false); ok {
		rep.Amount(FieldLeaderTurnover, SourceUI, exp.Ledger.GrandBet, got)
	}
	return v.finish(rep)
}

// MilestoneReached é o oráculo do marco: membros e turnover mínimos
func (v *Verifier) MilestoneReached(exp Expected) bool {
	return exp.NewMembers() >= v.Opts.MilestoneMinMembers &&
		exp.Ledger.GrandBet.GreaterThanOrEqual(v.Opts.MilestoneMinTurnover)
}

// Milestone confere o ícone de marco atingido no leaderboard e no perfil
func (v *Verifier) Milestone(ctx context.Context, exp Expected) *Report {
	rep := NewReport(ContextMilestone)
	if !v.withUI(rep) {
		return v.finish(rep)
	}
	want := v.MilestoneReached(exp)
	for _, view := range []string{ViewLeaderboard, ViewProfile} {
		obs, err := v.UI.Field(ctx, NewScope(view), FieldMilestoneCheck)
		field := view + "/" + FieldMilestoneCheck
		if err != nil {
			rep.Fail(field, SourceUI, "readable", err.Error())
			continue
		}
		rep.Text(field, SourceUI, strconv.FormatBool(want), strconv.FormatBool(obs.Present && obs.Visible))
	}
	return v.finish(rep)
}
