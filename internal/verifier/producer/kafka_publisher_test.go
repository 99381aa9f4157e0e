package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/rebate-verifier/internal/shared/kafka"
	"github.com/radieske/rebate-verifier/pkg/contracts/events"
	"github.com/radieske/rebate-verifier/pkg/contracts/topics"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishScenarioFinished(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, topics.ScenarioFinished, topics.MismatchFound)

	require.NoError(t, p.PublishScenarioFinished(context.Background(), events.ScenarioFinished{
		RunID: "r1", Scenario: "profile-summary", Anchor: "agent01", Passed: true, GrandBet: "6000.00",
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, topics.ScenarioFinished, w.msgs[0].Topic)
	assert.Equal(t, "agent01", string(w.msgs[0].Key))

	var got events.ScenarioFinished
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "6000.00", got.GrandBet)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestPublishMismatches_Batch(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w, topics.ScenarioFinished, topics.MismatchFound)

	require.NoError(t, p.PublishMismatches(context.Background(), nil))
	assert.Empty(t, w.msgs)

	require.NoError(t, p.PublishMismatches(context.Background(), []events.MismatchFound{
		{RunID: "r1", Field: "a"}, {RunID: "r1", Field: "b"},
	}))
	require.Len(t, w.msgs, 2)
	for _, m := range w.msgs {
		assert.Equal(t, topics.MismatchFound, m.Topic)
		assert.Equal(t, "r1", string(m.Key))
	}
}
