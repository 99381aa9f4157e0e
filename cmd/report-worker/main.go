package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/report-worker/cache"
	"github.com/radieske/rebate-verifier/internal/report-worker/consumer"
	"github.com/radieske/rebate-verifier/internal/report-worker/pubsub"
	"github.com/radieske/rebate-verifier/internal/report-worker/repository"
	sharedcache "github.com/radieske/rebate-verifier/internal/shared/cache"
	"github.com/radieske/rebate-verifier/internal/shared/config"
	"github.com/radieske/rebate-verifier/internal/shared/db"
	"github.com/radieske/rebate-verifier/internal/shared/kafka"
	"github.com/radieske/rebate-verifier/internal/shared/logger"
	"github.com/radieske/rebate-verifier/internal/shared/metrics"
	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	schemaCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.EnsureReportSchema(schemaCtx, pg); err != nil {
		log.Fatal("report schema", zap.Error(err))
	}
	done()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	rcache := cache.NewRedisCache(redisClient, 24*time.Hour)
	repo := repository.NewPostgresRepo(pg)

	// Consumer group único para os dois tópicos do verificador
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "report-worker", cfg.TopicScenarioFinished, cfg.TopicMismatchFound)
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicReportDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "report_worker_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "report_worker_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "report_worker_db_writes_total", Help: "escritas no banco (runs+mismatches)"})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{Name: "report_worker_dlq_total", Help: "mensagens enviadas à DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "report_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, deadLettered, errorsBy)

	broadcaster := pubsub.NewRedisBroadcaster(redisClient)
	broadcast := func(anchor, kind string, payload any) {
		b, _ := json.Marshal(pubsub.WSUpdate{Anchor: anchor, Kind: kind, Payload: payload})

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := broadcaster.Publish(ctx, cfg.RedisPubSubChannel, b); err != nil {
			log.Warn("ws broadcast publish failed", zap.Error(err))
		}
	}

	proc := &consumer.Processor{
		Log:                   log,
		Reader:                reader,
		Repo:                  repo,
		Cache:                 rcache,
		DLQ:                   dlq,
		TopicScenarioFinished: cfg.TopicScenarioFinished,
		TopicMismatchFound:    cfg.TopicMismatchFound,
		OnConsumed:            func() { consumed.Inc() },
		OnCached:              func() { cached.Inc() },
		OnPersist:             func() { persist.Inc() },
		OnDeadLettered:        func() { deadLettered.Inc() },
		OnError:               func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		// Após persistir, avisa o report-service (WS) via Redis Pub/Sub
		OnAfterPersist: func(ev events.ScenarioFinished) { broadcast(ev.Anchor, "run", ev) },
		OnMismatchSaved: func(m events.MismatchFound) {
			broadcast("", "mismatch", m)
		},
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(
		func(ctx context.Context) error { return pg.PingContext(ctx) },
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	))
	defer msrv.Close()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("report-worker started",
		zap.String("runs_topic", cfg.TopicScenarioFinished),
		zap.String("mismatch_topic", cfg.TopicMismatchFound),
		zap.String("dlq", cfg.TopicReportDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("report-worker stopped")
}
