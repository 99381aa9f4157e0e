package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/rebate-verifier/internal/shared/kafka"
	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// Reader é o subconjunto de *kafka.Reader usado pelo processor
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Repo persiste execuções e divergências
type Repo interface {
	UpsertRun(ctx context.Context, e events.ScenarioFinished) error
	InsertMismatch(ctx context.Context, m events.MismatchFound) error
}

// Cache mantém a última execução por âncora
type Cache interface {
	SetLatest(ctx context.Context, e events.ScenarioFinished) error
}

// Processor consome os eventos do verificador, faz cache e persiste no banco
// Mensagens que não podem ser decodificadas ou gravadas seguem para a DLQ
type Processor struct {
	Log    *zap.Logger
	Reader Reader
	Repo   Repo
	Cache  Cache
	DLQ    sharedkafka.MessageWriter // opcional

	TopicScenarioFinished string
	TopicMismatchFound    string

	OnConsumed      func()       // métricas (counter++)
	OnCached        func()       // métricas
	OnPersist       func()       // métricas
	OnDeadLettered  func()       // métricas
	OnError         func(string) // métricas por fase
	OnAfterPersist  func(events.ScenarioFinished)
	OnMismatchSaved func(events.MismatchFound)
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		switch m.Topic {
		case p.TopicScenarioFinished:
			p.handleRun(ctx, m)
		case p.TopicMismatchFound:
			p.handleMismatch(ctx, m)
		default:
			p.Log.Warn("unexpected topic", zap.String("topic", m.Topic))
			p.fail("topic")
		}
	}
}

func (p *Processor) handleRun(ctx context.Context, m kafka.Message) {
	var ev events.ScenarioFinished
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.RunID == "" {
		p.Log.Warn("invalid run message", zap.Error(err), zap.ByteString("key", m.Key))
		p.fail("decode")
		p.deadLetter(ctx, m, "decode", err)
		return
	}

	// Atualiza cache Redis com a última execução da âncora
	if err := p.Cache.SetLatest(ctx, ev); err != nil {
		p.Log.Warn("redis set failed", zap.Error(err))
		p.fail("cache")
		// não bloqueia persistência se falhar o cache
	} else if p.OnCached != nil {
		p.OnCached()
	}

	if err := p.Repo.UpsertRun(ctx, ev); err != nil {
		p.Log.Warn("db upsert failed", zap.String("run_id", ev.RunID), zap.Error(err))
		p.fail("db_upsert")
		p.deadLetter(ctx, m, "db_upsert", err)
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	p.Log.Debug("run persisted",
		zap.String("run_id", ev.RunID),
		zap.String("scenario", ev.Scenario),
		zap.Bool("passed", ev.Passed),
	)
	if p.OnAfterPersist != nil {
		p.OnAfterPersist(ev)
	}
}

func (p *Processor) handleMismatch(ctx context.Context, m kafka.Message) {
	var ev events.MismatchFound
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.RunID == "" {
		p.Log.Warn("invalid mismatch message", zap.Error(err), zap.ByteString("key", m.Key))
		p.fail("decode")
		p.deadLetter(ctx, m, "decode", err)
		return
	}

	if err := p.Repo.InsertMismatch(ctx, ev); err != nil {
		p.Log.Warn("db insert mismatch failed", zap.String("run_id", ev.RunID), zap.Error(err))
		p.fail("db_mismatch")
		p.deadLetter(ctx, m, "db_mismatch", err)
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	if p.OnMismatchSaved != nil {
		p.OnMismatchSaved(ev)
	}
}

// deadLetter reenvia a mensagem original com o estágio e o erro nos headers
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, stage string, cause error) {
	if p.DLQ == nil {
		return
	}
	reason := "empty run_id"
	if cause != nil {
		reason = cause.Error()
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(m.Topic)},
			{Key: "stage", Value: []byte(stage)},
			{Key: "error", Value: []byte(reason)},
		},
	}
	if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
		p.Log.Error("dlq publish failed", zap.String("stage", stage), zap.Error(err))
		p.fail("dlq")
		return
	}
	if p.OnDeadLettered != nil {
		p.OnDeadLettered()
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
