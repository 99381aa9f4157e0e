package reconcile

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/ledger"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scopeKey(s Scope) string {
	keys := make([]string, 0, len(s.Filters))
	for k, v := range s.Filters {
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)
	return s.View + "?" + strings.Join(keys, "&")
}

// fakeUI responde por escopo; campos e linhas não cadastrados ficam ausentes
type fakeUI struct {
	fields  map[string]Observed
	rows    map[string][]Row
	options map[string][]string
	err     error
}

func newFakeUI() *fakeUI {
	return &fakeUI{fields: map[string]Observed{}, rows: map[string][]Row{}, options: map[string][]string{}}
}

func (f *fakeUI) set(s Scope, name, text string) {
	f.fields[scopeKey(s)+"#"+name] = Observed{Text: text, Present: true, Visible: true}
}

func (f *fakeUI) Field(_ context.Context, s Scope, name string) (Observed, error) {
	if f.err != nil {
		return Observed{}, f.err
	}
	return f.fields[scopeKey(s)+"#"+name], nil
}

func (f *fakeUI) Rows(_ context.Context, s Scope) ([]Row, error) {
	return f.rows[scopeKey(s)], f.err
}

func (f *fakeUI) Options(_ context.Context, s Scope, control string) ([]string, error) {
	return f.options[scopeKey(s)+"#"+control], f.err
}

type fakeAPI struct {
	board     []dto.LeaderboardEntry
	tnc       dto.TncText
	approved  []string
	onApprove func()
}

func (a *fakeAPI) Leaderboard(context.Context) ([]dto.LeaderboardEntry, error) { return a.board, nil }
func (a *fakeAPI) LeaderboardTnc(context.Context) (dto.TncText, error)        { return a.tnc, nil }
func (a *fakeAPI) ApproveRebate(_ context.Context, id string) error {
	a.approved = append(a.approved, id)
	if a.onApprove != nil {
		a.onApprove()
	}
	return nil
}

type fakeRecords map[string][]dto.RecordRow

func (f fakeRecords) Records(_ context.Context, q dto.RecordQuery) ([]dto.RecordRow, error) {
	return f[string(q.Kind)+"/"+q.Tier], nil
}

var (
	betAt   = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)
	batchAt = time.Date(2026, 10, 19, 14, 31, 0, 0, time.UTC)
)

func fixture() Expected {
	roster := hierarchy.Roster{
		Anchor: hierarchy.User{ID: "1", Username: "agent", Tier: 1, Parent: hierarchy.NoParent},
		Tier2:  []hierarchy.User{{ID: "2", Username: "t2", Tier: 2, Parent: "agent"}},
		Tier3:  []hierarchy.User{{ID: "3", Username: "t3", Tier: 3, Parent: "t2"}},
	}
	records := []ledger.Record{
		{UserID: "2", Username: "t2", Tier: 2, BetAmount: d("5000"), Percentage: d("2"),
			Rates: map[int]decimal.Decimal{1: d("0.5"), 2: d("2"), 3: d("1")}, Timestamp: betAt},
		{UserID: "3", Username: "t3", Tier: 3, BetAmount: d("1000"), Percentage: d("1"),
			Rates: map[int]decimal.Decimal{1: d("0.7"), 2: d("0.4"), 3: d("1")}, Timestamp: betAt},
	}
	return NewExpected(roster, records, "2026-10", batchAt)
}

func newVerifier(ui UI, api API) *Verifier {
	return New(nil, ui, api, DefaultOptions())
}

func TestRankPosition(t *testing.T) {
	comp := []decimal.Decimal{d("100"), d("500"), d("300")}
	assert.Equal(t, 2, RankPosition(comp, d("300")))
	assert.Equal(t, 1, RankPosition(comp, d("600")))
	assert.Equal(t, 4, RankPosition(comp, d("50")))
	assert.Equal(t, 1, RankPosition(nil, d("0")))
}

func TestUnwrapAvatar(t *testing.T) {
	src := "https://site.test/_next/image?url=https%3A%2F%2Fcdn.test%2Favatar%2F7.png&w=128&q=75"
	assert.Equal(t, "https://cdn.test/avatar/7.png", UnwrapAvatar(src))
	assert.Equal(t, "https://cdn.test/a.png", UnwrapAvatar("https://cdn.test/a.png"))
}

func TestParseTurnover(t *testing.T) {
	assert.Equal(t, "1234.5", parseTurnover("Turnover: RM 1,234.50").String())
	assert.True(t, parseTurnover("Turnover: --").IsZero())
}

func TestGreedy_NeverDoubleMatches(t *testing.T) {
	rows := []Row{
		{Position: 0, Cells: map[string]string{ColUsername: "alice"}},
		{Position: 1, Cells: map[string]string{ColUsername: "alice"}},
		{Position: 2, Cells: map[string]string{ColUsername: "bob"}},
	}
	pool := []string{"alice", "carol"}
	pairs, unmatched, leftover := Greedy(rows, pool, func(r Row, name string) bool {
		return r.Cell(ColUsername) == name
	})
	require.Len(t, pairs, 1)
	assert.Equal(t, 0, pairs[0].Row.Position)
	assert.Len(t, unmatched, 2)
	assert.Equal(t, []string{"carol"}, leftover)
	assert.Equal(t, []string{"alice", "carol"}, pool)
}

func TestReport_ErrCarriesEveryMismatch(t *testing.T) {
	rep := NewReport("x")
	rep.Amount("a", SourceUI, d("1.00"), d("1.004"))
	rep.Amount("b", SourceUI, d("1.00"), d("2"))
	rep.AmountWithin("c", SourceAPI, d("1.00"), d("1.01"), money.Cent)
	rep.Text("d", SourceAPI, "x", "y")
	assert.Equal(t, 4, rep.Checks)

	err := rep.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.Len(t, me.Mismatches, 2)
	assert.Nil(t, NewReport("y").Err())
}

func TestWalletMonth_CurrentAndOtherMonths(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	base := NewScope(ViewRebateTotal)
	ui.options[scopeKey(base)+"#"+ControlMonth] = []string{"2026-10", "2026-09"}

	cur := base.With(FilterMonth, "2026-10")
	ui.set(cur, FieldTierTurnover(1), "MYR 0.00")
	ui.set(cur, FieldTierTurnover(2), "MYR 5,000.00")
	ui.set(cur, FieldTierTurnover(3), "MYR 1,000.00")
	ui.set(cur, FieldTierRebate(1), "MYR 0.00")
	ui.set(cur, FieldTierRebate(2), "MYR 100.01")
	ui.set(cur, FieldTierRebate(3), "MYR 10.00")
	ui.set(cur, FieldTotalTurnover, "MYR 6,000.00")
	ui.set(cur, FieldTotalRebate, "MYR 110.00")

	prev := base.With(FilterMonth, "2026-09")
	for _, tier := range ledger.Tiers {
		ui.set(prev, FieldTierTurnover(tier), "MYR 0.00")
		ui.set(prev, FieldTierRebate(tier), "-")
	}
	ui.set(prev, FieldTotalTurnover, "MYR 0.00")
	ui.set(prev, FieldTotalRebate, "MYR 0.00")

	rep := newVerifier(ui, &fakeAPI{}).WalletMonth(context.Background(), exp)
	assert.True(t, rep.Passed(), rep.Mismatches)
	assert.Equal(t, 16, rep.Checks)

	ui.set(prev, FieldTotalTurnover, "MYR 12.00")
	rep = newVerifier(ui, &fakeAPI{}).WalletMonth(context.Background(), exp)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "2026-09/total_turnover", rep.Mismatches[0].Field)
	assert.Equal(t, "0.00", rep.Mismatches[0].Expected)
}

func TestWalletMonth_CurrentMonthMissing(t *testing.T) {
	ui := newFakeUI()
	ui.options[scopeKey(NewScope(ViewRebateTotal))+"#"+ControlMonth] = []string{"2026-08"}
	rep := newVerifier(ui, &fakeAPI{}).WalletMonth(context.Background(), fixture())
	assert.False(t, rep.Passed())
}

func TestSummaries(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	profile := NewScope(ViewProfile)
	ui.set(profile, FieldProfileTurnover, "6,000.00")
	ui.set(profile, FieldProfileEffective, "1")
	board := NewScope(ViewLeaderboard)
	ui.set(board, FieldEffectiveNewAdd, "1 / 5")
	ui.set(board, FieldTierItemAmount(0), "RM 0")
	ui.set(board, FieldTierItemAmount(1), "RM 5,000")
	ui.set(board, FieldTierItemAmount(2), "RM 1,000")
	ui.set(board, FieldLeaderTurnover, "RM 6,000.00")

	v := newVerifier(ui, &fakeAPI{})
	rep := v.ProfileSummary(context.Background(), exp)
	assert.True(t, rep.Passed(), rep.Mismatches)
	assert.Equal(t, 2, rep.Checks)

	rep = v.LeaderboardSummary(context.Background(), exp)
	assert.True(t, rep.Passed(), rep.Mismatches)
	assert.Equal(t, 5, rep.Checks)

	ui.set(board, FieldTierItemAmount(2), "RM 1,000.01")
	rep = v.LeaderboardSummary(context.Background(), exp)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, FieldTierItemAmount(2), rep.Mismatches[0].Field)
}

func TestSummary_MissingFieldIsMismatch(t *testing.T) {
	rep := newVerifier(newFakeUI(), &fakeAPI{}).ProfileSummary(context.Background(), fixture())
	assert.Len(t, rep.Mismatches, 2)
	assert.Equal(t, "missing", rep.Mismatches[0].Actual)
}

func TestMilestone(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	v := newVerifier(ui, &fakeAPI{})
	assert.False(t, v.MilestoneReached(exp))

	rep := v.Milestone(context.Background(), exp)
	assert.True(t, rep.Passed(), rep.Mismatches)

	ui.set(NewScope(ViewProfile), FieldMilestoneCheck, "")
	rep = v.Milestone(context.Background(), exp)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, ViewProfile+"/"+FieldMilestoneCheck, rep.Mismatches[0].Field)

	for i := 0; i < 4; i++ {
		exp.Roster.Tier2 = append(exp.Roster.Tier2, hierarchy.User{Username: "x", Tier: 2})
	}
	assert.False(t, v.MilestoneReached(exp), "turnover below threshold")
	exp.Ledger.GrandBet = d("20000")
	assert.True(t, v.MilestoneReached(exp))
}

func TestRanking(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	ui.fields[scopeKey(NewScope(ViewLeaderboard))+"#"+FieldAvatar] = Observed{
		Present: true,
		Attrs:   map[string]string{"src": "/_next/image?url=https%3A%2F%2Fcdn.test%2Fa.png&w=64"},
	}
	ui.rows[scopeKey(NewScope(ViewLeaderboardRanking))] = []Row{
		{Cells: map[string]string{ColName: "top", ColTurnover: "Turnover: RM 9,000.00"}},
		{Cells: map[string]string{ColName: "agent", ColTurnover: "Turnover: RM 1.00"}},
		{Cells: map[string]string{ColName: "low", ColTurnover: "Turnover: RM 500.00"}},
	}
	api := &fakeAPI{board: []dto.LeaderboardEntry{
		{Name: "top", ValidMembers: 9, TotalValidTurnover: money.NewAmount(d("9000"))},
		{Name: "agent", ValidMembers: 1, TotalValidTurnover: money.NewAmount(d("6000")), Avatar: "https://cdn.test/a.png"},
		{Name: "low", ValidMembers: 1, TotalValidTurnover: money.NewAmount(d("500"))},
	}}
	v := newVerifier(ui, api)

	comp, err := v.CollectCompetitors(context.Background(), "agent")
	require.NoError(t, err)
	assert.Len(t, comp.Turnovers, 2)
	assert.Equal(t, "https://cdn.test/a.png", comp.Avatar)

	rep := v.Ranking(context.Background(), exp, comp)
	assert.True(t, rep.Passed(), rep.Mismatches)
	assert.Equal(t, 4, rep.Checks)

	api.board = api.board[:1]
	rep = v.Ranking(context.Background(), exp, comp)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "rank", rep.Mismatches[0].Field)
}

func TestCollectCompetitors_WithoutUIUsesAPI(t *testing.T) {
	api := &fakeAPI{board: []dto.LeaderboardEntry{
		{Name: "agent", TotalValidTurnover: money.NewAmount(d("1"))},
		{Name: "other", TotalValidTurnover: money.NewAmount(d("300"))},
	}}
	comp, err := newVerifier(nil, api).CollectCompetitors(context.Background(), "agent")
	require.NoError(t, err)
	require.Len(t, comp.Turnovers, 1)
	assert.Equal(t, "300", comp.Turnovers[0].String())
	assert.Empty(t, comp.Avatar)
}

func TestSplitTnc(t *testing.T) {
	items := SplitTnc(dto.TncText{Text: "Intro 1. First rule. 2. Second, rule!\n3. Third"})
	assert.Equal(t, []string{"Intro", "1. First rule.", "2. Second, rule!", "3. Third"}, items)

	items = SplitTnc(dto.TncText{Text: "alpha\n\n beta \n\ngamma"})
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, items)

	assert.Equal(t, []string{"x"}, SplitTnc(dto.TncText{Items: []string{"x"}}))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "1firstrule2segundaregra", NormalizeText("1. First  Rule!\n2. Segunda regra."))
	assert.Equal(t, "排行榜规则", NormalizeText("排行榜 规则。"))
}

func TestTnc(t *testing.T) {
	ui := newFakeUI()
	ui.rows[scopeKey(NewScope(ViewLeaderboardTnc))] = []Row{
		{Cells: map[string]string{ColText: "1. Turnover counts daily."}},
		{Cells: map[string]string{ColText: "2. Members must deposit"}},
	}
	api := &fakeAPI{tnc: dto.TncText{Text: "1. Turnover counts daily.\n2. Members must deposit."}}
	rep := newVerifier(ui, api).Tnc(context.Background())
	assert.True(t, rep.Passed(), rep.Mismatches)

	ui.rows[scopeKey(NewScope(ViewLeaderboardTnc))] = ui.rows[scopeKey(NewScope(ViewLeaderboardTnc))][:1]
	rep = newVerifier(ui, api).Tnc(context.Background())
	assert.False(t, rep.Passed())
}

func TestApproveRebate_BalanceIncreasesByDisplayedRebate(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	wallet := NewScope(ViewWallet)
	ui.set(wallet, FieldTotalBalance, "MYR 1,000.00")
	ui.set(NewScope(ViewRebateTotal), FieldTotalRebate, "MYR 110.00")
	api := &fakeAPI{onApprove: func() { ui.set(wallet, FieldTotalBalance, "MYR 1,110.00") }}

	rep := newVerifier(ui, api).ApproveRebate(context.Background(), exp)
	assert.True(t, rep.Passed(), rep.Mismatches)
	assert.Equal(t, []string{"1"}, api.approved)

	ui.set(wallet, FieldTotalBalance, "MYR 1,000.00")
	api.onApprove = nil
	rep = newVerifier(ui, api).ApproveRebate(context.Background(), exp)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "1110.00", rep.Mismatches[0].Expected)
}

func TestNoUI_SkipsScreenChecks(t *testing.T) {
	v := newVerifier(nil, &fakeAPI{})
	rep := v.ProfileSummary(context.Background(), fixture())
	assert.True(t, rep.Passed())
	assert.NotEmpty(t, rep.Skipped)
	assert.Zero(t, rep.Checks)
}

func recordScopeFor(v *Verifier, kind dto.RecordKind, tier int, day time.Time) Scope {
	return v.recordScope(RecordCheck{Kind: kind, Start: day, End: day}, tier)
}

func TestRecordTable_BetRecordsInRange(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	v := newVerifier(ui, &fakeAPI{})
	ui.rows[scopeKey(recordScopeFor(v, dto.RecordBet, AllTiers, betAt))] = []Row{
		{Position: 0, Cells: map[string]string{ColUsername: "t3", ColBetTime: "2026-10-19 14:30:40", ColBetAmount: "MYR 1,000.00"}},
		{Position: 1, Cells: map[string]string{ColUsername: "t2", ColBetTime: "2026-10-19 14:30:12", ColBetAmount: "MYR 5,000.00"}},
	}
	api := fakeRecords{"bet/all": {
		{Username: "t2", BetTime: "2026-10-19 14:30:12", BetAmount: money.NewAmount(d("5000"))},
		{Username: "t3", BetTime: "2026-10-19 14:31:02", BetAmount: money.NewAmount(d("1000"))},
	}}

	rep := v.RecordTable(context.Background(), api, exp, RecordCheck{
		Kind: dto.RecordBet, Tiers: []int{AllTiers}, Start: betAt, End: betAt, InRange: true,
	})
	assert.True(t, rep.Passed(), rep.Mismatches)
	assert.Equal(t, "bet-records", rep.Context)
}

func TestRecordTable_DuplicateAndMissingRowsFail(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	v := newVerifier(ui, &fakeAPI{})
	ui.rows[scopeKey(recordScopeFor(v, dto.RecordBet, 2, betAt))] = []Row{
		{Position: 0, Cells: map[string]string{ColUsername: "t2", ColBetTime: "2026-10-19 14:30:12", ColBetAmount: "MYR 5,000.00"}},
		{Position: 1, Cells: map[string]string{ColUsername: "t2", ColBetTime: "2026-10-19 14:30:12", ColBetAmount: "MYR 5,000.00"}},
	}
	ui.rows[scopeKey(recordScopeFor(v, dto.RecordBet, 3, betAt))] = nil

	rep := v.RecordTable(context.Background(), nil, exp, RecordCheck{
		Kind: dto.RecordBet, Tiers: []int{2, 3}, Start: betAt, End: betAt, InRange: true,
	})
	require.Len(t, rep.Mismatches, 2)
	assert.Equal(t, "tier=2/row 2", rep.Mismatches[0].Field)
	assert.Equal(t, "tier=3/t3", rep.Mismatches[1].Field)
	assert.Equal(t, "missing", rep.Mismatches[1].Actual)
}

func TestRecordTable_AgentAndRebateFields(t *testing.T) {
	exp := fixture()
	api := fakeRecords{
		"all/all": {
			{Username: "t2", Parent: "agent", Turnover: money.NewAmount(d("5000")), Rebate: money.NewAmount(d("100"))},
			{Username: "t3", Parent: "agent", Turnover: money.NewAmount(d("1000")), Rebate: money.NewAmount(d("10"))},
		},
		"rebate/all": {
			{FromUser: "t2", Tier: "2", Amount: money.NewAmount(d("100")), Date: "19/10/2026 02:31 PM"},
			{FromUser: "t3", Tier: "3", Amount: money.NewAmount(d("10")), Date: "19/10/2026 02:31 PM"},
		},
	}
	v := newVerifier(nil, &fakeAPI{})

	rep := v.RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordAgent, InRange: true})
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "tier=all/t3/parent", rep.Mismatches[0].Field)
	assert.Equal(t, "t2", rep.Mismatches[0].Expected)

	rep = v.RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordRebate, InRange: true})
	assert.True(t, rep.Passed(), rep.Mismatches)
}

func TestRecordTable_DownlineRollup(t *testing.T) {
	exp := fixture()
	api := fakeRecords{"downline/all": {
		{Username: "t2", Tier: "2", Turnover: money.NewAmount(d("6000")), Rebate: money.NewAmount(d("29.01"))},
		{Username: "t3", Tier: "3", Turnover: money.NewAmount(d("1000")), Rebate: money.NewAmount(d("7"))},
	}}
	rep := newVerifier(nil, &fakeAPI{}).RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordDownline, InRange: true})
	assert.True(t, rep.Passed(), rep.Mismatches)
}

func TestRecordTable_OutOfRangeZeroOracle(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	v := newVerifier(ui, &fakeAPI{})
	old := betAt.AddDate(0, -2, 0)
	chk := RecordCheck{Kind: dto.RecordAgent, Tiers: []int{AllTiers, 2}, Start: old, End: old}

	ui.rows[scopeKey(recordScopeFor(v, dto.RecordAgent, AllTiers, old))] = []Row{
		{Cells: map[string]string{ColUsername: "No Record"}},
	}
	ui.rows[scopeKey(recordScopeFor(v, dto.RecordAgent, 2, old))] = []Row{
		{Cells: map[string]string{ColUsername: "t2", ColTurnover: "MYR 0.00", ColRebate: "MYR 0.00"}},
	}
	api := fakeRecords{"all/2": {{Username: "t2"}}}

	rep := v.RecordTable(context.Background(), api, exp, chk)
	assert.True(t, rep.Passed(), rep.Mismatches)

	ui.rows[scopeKey(recordScopeFor(v, dto.RecordAgent, 2, old))][0].Cells[ColRebate] = "MYR 3.00"
	rep = v.RecordTable(context.Background(), api, exp, chk)
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, SourceUI, rep.Mismatches[0].Source)
	assert.Equal(t, "tier=2/row 1/rebate", rep.Mismatches[0].Field)
}

func TestRecordContext(t *testing.T) {
	assert.Equal(t, "agent-records", RecordContext(dto.RecordAgent))
	assert.Equal(t, "downline-records", RecordContext(dto.RecordDownline))
}

func TestRecordTable_CommissionWithinCent(t *testing.T) {
	exp := fixture()
	api := fakeRecords{
		"all/all": {
			{Username: "t2", Parent: "agent", Turnover: money.NewAmount(d("5000")), Rebate: money.NewAmount(d("100.01"))},
			{Username: "t3", Parent: "t2", Turnover: money.NewAmount(d("1000")), Rebate: money.NewAmount(d("9.99"))},
		},
		"rebate/all": {
			{FromUser: "t2", Tier: "2", Amount: money.NewAmount(d("100.01")), Date: "19/10/2026 02:31 PM"},
			{FromUser: "t3", Tier: "3", Amount: money.NewAmount(d("9.99")), Date: "19/10/2026 02:31 PM"},
		},
	}
	v := newVerifier(nil, &fakeAPI{})

	rep := v.RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordAgent, InRange: true})
	assert.True(t, rep.Passed(), rep.Mismatches)
	rep = v.RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordRebate, InRange: true})
	assert.True(t, rep.Passed(), rep.Mismatches)

	api["all/all"][0].Rebate = money.NewAmount(d("100.02"))
	api["rebate/all"][0].Amount = money.NewAmount(d("99.98"))
	rep = v.RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordAgent, InRange: true})
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "tier=all/t2/rebate", rep.Mismatches[0].Field)
	rep = v.RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordRebate, InRange: true})
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "tier=all/t2/amount", rep.Mismatches[0].Field)
}

func TestRecordTable_TurnoverStaysExact(t *testing.T) {
	exp := fixture()
	api := fakeRecords{"all/all": {
		{Username: "t2", Parent: "agent", Turnover: money.NewAmount(d("5000.01")), Rebate: money.NewAmount(d("100"))},
		{Username: "t3", Parent: "t2", Turnover: money.NewAmount(d("1000")), Rebate: money.NewAmount(d("10"))},
	}}
	rep := newVerifier(nil, &fakeAPI{}).RecordTable(context.Background(), api, exp, RecordCheck{Kind: dto.RecordAgent, InRange: true})
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "tier=all/t2/turnover", rep.Mismatches[0].Field)
}

func TestCompareRow_MismatchOrderIsStable(t *testing.T) {
	v := newVerifier(nil, &fakeAPI{})
	e := expectedRow{
		Username: "t2",
		Text:     map[string]string{ColTier: "2", ColParent: "agent", ColFromUser: "t2"},
		Exact:    map[string]decimal.Decimal{ColTurnover: d("1"), ColBetAmount: d("2"), ColAmount: d("3")},
		Near:     map[string]decimal.Decimal{ColRebate: d("4")},
	}
	r := Row{Cells: map[string]string{ColTier: "9", ColParent: "x", ColFromUser: "y"}}
	want := []string{
		"t2/" + ColFromUser, "t2/" + ColParent, "t2/" + ColTier,
		"t2/" + ColAmount, "t2/" + ColBetAmount, "t2/" + ColTurnover,
		"t2/" + ColRebate,
	}

	for range 20 {
		rep := NewReport("t")
		v.compareRow(rep, SourceAPI, "t2", r, e)
		got := make([]string, 0, len(rep.Mismatches))
		for _, m := range rep.Mismatches {
			got = append(got, m.Field)
		}
		require.Equal(t, want, got)
	}
}

func TestRecordTable_OutOfRangeRowWithoutValuesFails(t *testing.T) {
	exp := fixture()
	ui := newFakeUI()
	v := newVerifier(ui, &fakeAPI{})
	old := betAt.AddDate(0, -2, 0)
	ui.rows[scopeKey(recordScopeFor(v, dto.RecordAgent, 2, old))] = []Row{
		{Cells: map[string]string{ColUsername: "t2", ColParent: "agent"}},
	}

	rep := v.RecordTable(context.Background(), nil, exp, RecordCheck{Kind: dto.RecordAgent, Tiers: []int{2}, Start: old, End: old})
	require.Len(t, rep.Mismatches, 1)
	assert.Equal(t, "tier=2/row 1", rep.Mismatches[0].Field)
	assert.Equal(t, "placeholder or zero row", rep.Mismatches[0].Expected)
	assert.Contains(t, rep.Mismatches[0].Actual, "username=t2")
}
