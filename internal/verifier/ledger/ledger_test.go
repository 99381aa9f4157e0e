package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rates(t1, t2, t3 string) map[int]decimal.Decimal {
	return map[int]decimal.Decimal{1: d(t1), 2: d(t2), 3: d(t3)}
}

func TestCommission_HalfUpPerRecord(t *testing.T) {
	assert.Equal(t, "6.25", money.Format(Commission(d("1000"), d("0.625"))))
	assert.Equal(t, "5.00", money.Format(Commission(d("333.33"), d("1.5"))))
}

func TestAggregate_SumsRoundedCommissions(t *testing.T) {
	recs := []Record{
		{Username: "a", Tier: 2, BetAmount: d("1000.5"), Percentage: d("1")},
		{Username: "b", Tier: 2, BetAmount: d("1000.5"), Percentage: d("1")},
		{Username: "c", Tier: 2, BetAmount: d("1000.5"), Percentage: d("1")},
	}
	l := Aggregate(recs)
	assert.Equal(t, "30.03", money.Format(l.Rebate(2)))
	assert.Equal(t, "3001.50", money.Format(l.GrandBet))
}

func TestAggregate_EndToEndShape(t *testing.T) {
	recs := []Record{
		{Username: "t2", Tier: 2, BetAmount: d("5000"), Percentage: d("2")},
		{Username: "t3", Tier: 3, BetAmount: d("1000"), Percentage: d("1")},
	}
	l := Aggregate(recs)
	assert.Equal(t, "100.00", money.Format(l.Rebate(2)))
	assert.Equal(t, "10.00", money.Format(l.Rebate(3)))
	assert.True(t, l.Rebate(1).IsZero())
	assert.Equal(t, "110.00", money.Format(l.GrandRebate))
	assert.Equal(t, "6000.00", money.Format(l.GrandBet))
}

func TestZero(t *testing.T) {
	z := Zero()
	for _, tier := range Tiers {
		assert.True(t, z.Bet(tier).IsZero())
		assert.True(t, z.Rebate(tier).IsZero())
	}
	assert.True(t, z.GrandRebate.IsZero())
	assert.Equal(t, Aggregate(nil), z)
}

func TestFilterAndByUser(t *testing.T) {
	recs := []Record{{Username: "a", Tier: 2}, {Username: "b", Tier: 3}, {Username: "a", Tier: 2}}
	assert.Len(t, Filter(recs, 0), 3)
	assert.Len(t, Filter(recs, 2), 2)
	assert.Empty(t, Filter(recs, 1))
	assert.Len(t, ByUser(recs)["a"], 2)
}

func TestRatesFromWire(t *testing.T) {
	r := RatesFromWire(map[string]decimal.Decimal{"1": d("0.5"), "2": d("0.3"), "x": d("9")})
	assert.Len(t, r, 2)
	assert.Equal(t, "0.3", r[2].String())
}

func TestCommissionAt_MissingTierIsZero(t *testing.T) {
	r := Record{BetAmount: d("100"), Rates: map[int]decimal.Decimal{1: d("1")}}
	assert.True(t, r.CommissionAt(3).IsZero())
	assert.Equal(t, "1.00", money.Format(r.CommissionAt(1)))
}

func TestDownlineRollup(t *testing.T) {
	roster := hierarchy.Roster{
		Anchor: hierarchy.User{Username: "agent", Tier: 1, Parent: hierarchy.NoParent},
		Tier2:  []hierarchy.User{{Username: "t2", Tier: 2, Parent: "agent"}},
		Tier3:  []hierarchy.User{{Username: "t3", Tier: 3, Parent: "t2"}},
	}
	recs := []Record{
		{Username: "t2", Tier: 2, BetAmount: d("5000"), Percentage: d("2"), Rates: rates("0.5", "2", "1")},
		{Username: "t3", Tier: 3, BetAmount: d("1000"), Percentage: d("1"), Rates: rates("0.7", "0.4", "1")},
	}

	got := DownlineRollup(recs, roster, roster.Users())
	require.Len(t, got, 3)

	// âncora: própria (sem apostas), t2 no tier relativo 2, t3 no tier relativo 3
	assert.Equal(t, "6000.00", money.Format(got[0].Turnover))
	assert.Equal(t, "110.00", money.Format(got[0].Rebate))

	// t2: própria aposta no tier "1" e a do t3 no tier "2"
	assert.Equal(t, "t2", got[1].Username)
	assert.Equal(t, "6000.00", money.Format(got[1].Turnover))
	assert.Equal(t, "29.00", money.Format(got[1].Rebate))

	// t3: só a própria aposta no tier "1"
	assert.Equal(t, "1000.00", money.Format(got[2].Turnover))
	assert.Equal(t, "7.00", money.Format(got[2].Rebate))
}
