package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/radieske/rebate-verifier/internal/shared/kafka"
	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// KafkaPublisher publica o resultado de cada cenário e as divergências encontradas.
// O writer não tem tópico fixo; cada evento vai para o seu tópico.
type KafkaPublisher struct {
	Writer        kafka.MessageWriter
	TopicScenario string
	TopicMismatch string
}

func NewKafkaPublisher(w kafka.MessageWriter, scenarioTopic, mismatchTopic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, TopicScenario: scenarioTopic, TopicMismatch: mismatchTopic}
}

// PublishScenarioFinished usa a âncora como chave para manter a ordem por afiliado
func (p *KafkaPublisher) PublishScenarioFinished(ctx context.Context, e events.ScenarioFinished) error {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("producer: marshal scenario: %w", err)
	}
	return kafka.WriteJSONTo(ctx, p.Writer, p.TopicScenario, e.Anchor, b)
}

// PublishMismatches envia todas as divergências de um run num único lote
func (p *KafkaPublisher) PublishMismatches(ctx context.Context, ms []events.MismatchFound) error {
	if len(ms) == 0 {
		return nil
	}
	now := time.Now()
	msgs := make([]kafka.Message, 0, len(ms))
	for _, m := range ms {
		if m.Ts.IsZero() {
			m.Ts = now
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("producer: marshal mismatch: %w", err)
		}
		msgs = append(msgs, kafka.Message{Topic: p.TopicMismatch, Key: []byte(m.RunID), Value: b, Time: now})
	}
	return p.Writer.WriteMessages(ctx, msgs...)
}
