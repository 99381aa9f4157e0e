package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/rebate-verifier/internal/shared/retry"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Delay = time.Millisecond
	p.BusyDelay = time.Millisecond
	return p
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second, testPolicy(), nil)
}

func writeEnvelope(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": "msg", "data": data})
}

func TestLogin_SendsCredentialsAndReturnsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "agent01", req.Username)
		writeEnvelope(w, 200, map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeEnvelope(w, 200, []dto.GameProvider{{ID: 7, Name: "Slots"}})
	})
	c := newTestClient(t, mux)

	s, err := c.Login(context.Background(), "agent01", "pw")
	require.NoError(t, err)
	games, err := s.GameProviders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dto.GameProvider{{ID: 7, Name: "Slots"}}, games)
}

func TestCall_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(524)
			return
		}
		writeEnvelope(w, 200, []dto.CommissionRate{{ProviderID: 1, Rates: map[string]decimal.Decimal{"1": decimal.RequireFromString("0.625")}}})
	}))

	rates, err := c.CommissionRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "0.625", rates[0].Rates["1"].String())
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_ExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := c.ApproveRebate(context.Background(), "1")
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_EnvelopeFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, 500, nil)
	}))

	err := c.PlaceBet(context.Background(), dto.BetRequest{UserID: "9", Amount: decimal.NewFromInt(100), GameID: 3, Type: 1, Date: "2026-10-19"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_ClientErrorStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	err := c.CreateCommissionBatch(context.Background(), "1", "2026-10")
	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPlaceBet_Query(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/test/bet/place", r.URL.Path)
		assert.Equal(t, "9", q.Get("user_id"))
		assert.Equal(t, "4500.00", q.Get("amount"))
		assert.Equal(t, "1", q.Get("type"))
		assert.Equal(t, "3", q.Get("game_id"))
		assert.Equal(t, "2026-10-19", q.Get("date"))
		w.WriteHeader(http.StatusOK)
	}))

	err := c.PlaceBet(context.Background(), dto.BetRequest{UserID: "9", Amount: decimal.NewFromInt(4500), GameID: 3, Type: 1, Date: "2026-10-19"})
	assert.NoError(t, err)
}

func TestRecords_AcceptsListOrData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, map[string]string{"token": "t"})
	})
	mux.HandleFunc("/api/affiliate/records", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2026-10-01", q.Get("start_date"))
		if q.Get("type") == "bet" {
			writeEnvelope(w, 200, map[string]any{"data": []map[string]any{{"username": "u1", "bet_amount": "1,000.50"}}})
			return
		}
		writeEnvelope(w, 200, map[string]any{"list": []map[string]any{{"username": "u2", "tier": 2, "turnover": 500}}})
	})
	c := newTestClient(t, mux)
	s, err := c.Login(context.Background(), "a", "b")
	require.NoError(t, err)

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	bets, err := s.Records(context.Background(), dto.RecordQuery{Kind: dto.RecordBet, Tier: "all", Start: start, End: start})
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, "1000.50", bets[0].BetAmount.String())

	agents, err := s.Records(context.Background(), dto.RecordQuery{Kind: dto.RecordAgent, Tier: "2", Start: start, End: start})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, dto.ID("2"), agents[0].Tier)
	assert.Equal(t, "500.00", agents[0].Turnover.String())
}

func TestLeaderboardTnc_TextOrList(t *testing.T) {
	var asList bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ms", r.Header.Get("language"))
		if asList {
			writeEnvelope(w, 200, map[string]any{"tnc": []string{"a", "b"}})
			return
		}
		writeEnvelope(w, 200, map[string]any{"tnc": "1. a 2. b"})
	}))
	c.Language = "ms"

	tnc, err := c.LeaderboardTnc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1. a 2. b", tnc.Text)

	asList = true
	tnc, err = c.LeaderboardTnc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tnc.Items)
}

func TestRoutesOverride(t *testing.T) {
	r := DefaultRoutes().Override(map[string]string{"login": "/v2/login", "unknown": "/x"})
	assert.Equal(t, "/v2/login", r.Login)
	assert.Equal(t, DefaultRoutes().Transfer, r.Transfer)
}
