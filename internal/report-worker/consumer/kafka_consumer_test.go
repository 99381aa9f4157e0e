package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/pkg/contracts/events"
	"github.com/radieske/rebate-verifier/pkg/contracts/topics"
)

// scriptedReader entrega as mensagens em ordem e cancela o contexto no fim
type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

type fakeRepo struct {
	runs       []events.ScenarioFinished
	mismatches []events.MismatchFound
	runErr     error
}

func (f *fakeRepo) UpsertRun(_ context.Context, e events.ScenarioFinished) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.runs = append(f.runs, e)
	return nil
}

func (f *fakeRepo) InsertMismatch(_ context.Context, m events.MismatchFound) error {
	f.mismatches = append(f.mismatches, m)
	return nil
}

type fakeCache struct {
	latest map[string]events.ScenarioFinished
	err    error
}

func (f *fakeCache) SetLatest(_ context.Context, e events.ScenarioFinished) error {
	if f.err != nil {
		return f.err
	}
	f.latest[e.Anchor] = e
	return nil
}

type fakeDLQ struct{ msgs []kafka.Message }

func (f *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func message(t *testing.T, topic string, v any) kafka.Message {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Key: []byte("k"), Value: b}
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func newProcessor(msgs ...kafka.Message) (*Processor, *fakeRepo, *fakeCache, *fakeDLQ, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &fakeRepo{}
	cache := &fakeCache{latest: map[string]events.ScenarioFinished{}}
	dlq := &fakeDLQ{}
	p := &Processor{
		Log:                   zap.NewNop(),
		Reader:                &scriptedReader{msgs: msgs, cancel: cancel},
		Repo:                  repo,
		Cache:                 cache,
		DLQ:                   dlq,
		TopicScenarioFinished: topics.ScenarioFinished,
		TopicMismatchFound:    topics.MismatchFound,
	}
	return p, repo, cache, dlq, ctx
}

func TestProcessor_PersistsRunsAndMismatches(t *testing.T) {
	run := events.ScenarioFinished{
		RunID: "r1", Scenario: "bet-records", Anchor: "agent01", Passed: false,
		GrandBet: "1500.00", BetByTier: map[string]string{"2": "1500.00"},
		FinishedAt: time.Now(),
	}
	mm := events.MismatchFound{RunID: "r1", Scenario: "bet-records", Context: "records/bet/all", Field: "row[0].amount", Source: "api", Expected: "6.00", Actual: "5.00"}

	p, repo, cache, dlq, ctx := newProcessor(
		message(t, topics.ScenarioFinished, run),
		message(t, topics.MismatchFound, mm),
	)
	var broadcast []string
	persisted := 0
	p.OnPersist = func() { persisted++ }
	p.OnAfterPersist = func(e events.ScenarioFinished) { broadcast = append(broadcast, e.RunID) }

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, repo.runs, 1)
	assert.Equal(t, "1500.00", repo.runs[0].BetByTier["2"])
	require.Len(t, repo.mismatches, 1)
	assert.Equal(t, "row[0].amount", repo.mismatches[0].Field)
	assert.Equal(t, "r1", cache.latest["agent01"].RunID)
	assert.Equal(t, []string{"r1"}, broadcast)
	assert.Equal(t, 2, persisted)
	assert.Empty(t, dlq.msgs)
}

func TestProcessor_DeadLettersUndecodable(t *testing.T) {
	bad := kafka.Message{Topic: topics.ScenarioFinished, Value: []byte("{not json")}
	noID := message(t, topics.MismatchFound, events.MismatchFound{Field: "x"})

	p, repo, _, dlq, ctx := newProcessor(bad, noID)
	stages := map[string]int{}
	p.OnError = func(s string) { stages[s]++ }

	_ = p.Run(ctx)
	assert.Empty(t, repo.runs)
	assert.Empty(t, repo.mismatches)
	require.Len(t, dlq.msgs, 2)
	assert.Equal(t, topics.ScenarioFinished, header(dlq.msgs[0], "source_topic"))
	assert.Equal(t, "decode", header(dlq.msgs[0], "stage"))
	assert.Equal(t, "empty run_id", header(dlq.msgs[1], "error"))
	assert.Equal(t, 2, stages["decode"])
}

func TestProcessor_CacheFailureDoesNotBlockPersistence(t *testing.T) {
	p, repo, cache, _, ctx := newProcessor(message(t, topics.ScenarioFinished, events.ScenarioFinished{RunID: "r2", Anchor: "a"}))
	cache.err = errors.New("redis down")
	stages := map[string]int{}
	p.OnError = func(s string) { stages[s]++ }

	_ = p.Run(ctx)
	assert.Len(t, repo.runs, 1)
	assert.Equal(t, 1, stages["cache"])
}

func TestProcessor_DBFailureGoesToDLQ(t *testing.T) {
	p, repo, _, dlq, ctx := newProcessor(message(t, topics.ScenarioFinished, events.ScenarioFinished{RunID: "r3", Anchor: "a"}))
	repo.runErr = errors.New("conn refused")
	called := false
	p.OnAfterPersist = func(events.ScenarioFinished) { called = true }

	_ = p.Run(ctx)
	assert.False(t, called)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "db_upsert", header(dlq.msgs[0], "stage"))
	assert.Equal(t, "conn refused", header(dlq.msgs[0], "error"))
}

func TestProcessor_IgnoresUnknownTopic(t *testing.T) {
	p, repo, _, dlq, ctx := newProcessor(kafka.Message{Topic: "other", Value: []byte("{}")})
	stages := map[string]int{}
	p.OnError = func(s string) { stages[s]++ }

	_ = p.Run(ctx)
	assert.Empty(t, repo.runs)
	assert.Empty(t, dlq.msgs)
	assert.Equal(t, 1, stages["topic"])
}
