package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/config"
	"github.com/radieske/rebate-verifier/internal/shared/kafka"
	"github.com/radieske/rebate-verifier/internal/shared/logger"
	"github.com/radieske/rebate-verifier/internal/shared/metrics"
	"github.com/radieske/rebate-verifier/internal/shared/retry"
	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
	"github.com/radieske/rebate-verifier/internal/verifier/platform"
	"github.com/radieske/rebate-verifier/internal/verifier/producer"
	"github.com/radieske/rebate-verifier/internal/verifier/reconcile"
	"github.com/radieske/rebate-verifier/internal/verifier/scenario"
	"github.com/radieske/rebate-verifier/internal/verifier/uiagent"
	"github.com/radieske/rebate-verifier/internal/verifier/wager"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	fx, err := config.LoadFixtures(cfg.FixturesFile)
	if err != nil {
		log.Fatal("fixtures", zap.Error(err))
	}
	if fx.Anchor.Username == "" && !cfg.FreshAnchor {
		log.Fatal("fixtures without anchor credentials", zap.String("file", cfg.FixturesFile))
	}

	// Métricas Prometheus da execução
	scenarios := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rebate_verifier_scenarios_total", Help: "cenários executados por resultado"}, []string{"scenario", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "rebate_verifier_scenario_seconds", Help: "duração dos cenários", Buckets: prometheus.ExponentialBuckets(1, 2, 10)}, []string{"scenario"})
	mismatches := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rebate_verifier_mismatches_total", Help: "divergências por contexto"}, []string{"context"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rebate_verifier_retries_total", Help: "tentativas falhas por operação"}, []string{"op"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "rebate_verifier_dropped_users_total", Help: "usuários descartados sem provedor"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{Name: "rebate_verifier_fallback_bets_total", Help: "apostas sem comissão esperada"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rebate_verifier_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(scenarios, duration, mismatches, retries, dropped, fallbacks, errorsBy)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.Delay = cfg.RetryDelay
	policy.BusyDelay = cfg.RetryBusyDelay
	policy.Multiplier = cfg.RetryMultiplier
	policy.Jitter = cfg.RetryJitter
	policy.Observer = func(op string, attempt int, err error) {
		retries.WithLabelValues(op).Inc()
		log.Debug("attempt failed", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
	}

	client := platform.New(cfg.PlatformURL, cfg.HTTPTimeout, policy, log.Named("platform"))
	client.Routes = client.Routes.Override(fx.Routes)
	client.Language = fx.Language

	// agente de UI é opcional; sem ele só a API é conferida
	var ui reconcile.UI
	if cfg.UIAgentURL != "" {
		agent := uiagent.New(cfg.UIAgentURL, cfg.HTTPTimeout, policy, log.Named("ui"))
		agent.Account = fx.Anchor.Username
		agent.Language = fx.Language
		ui = agent
	} else {
		log.Warn("UI_AGENT_URL not set, UI checks will be skipped")
	}

	opts := reconcile.DefaultOptions()
	opts.Placeholders = fx.Placeholders()
	opts.BetTimeLayout = fx.Layouts.BetTime
	opts.RebateDateLayout = fx.Layouts.RebateDate
	opts.MonthLayout = fx.Layouts.Month
	opts.MilestoneMinMembers = cfg.MilestoneMinMembers
	opts.MilestoneMinTurnover = decimal.NewFromInt(cfg.MilestoneMinTurnover)
	verifier := reconcile.New(log.Named("reconcile"), ui, client, opts)
	verifier.OnMismatch = func(context string, n int) { mismatches.WithLabelValues(context).Add(float64(n)) }

	sim := wager.NewSimulator(log.Named("wager"), wager.FromClient(client), wager.Options{
		ExcludedProviders: cfg.ExcludedProviders,
		FallbackFunding:   cfg.FallbackFunding,
		SettleDelay:       cfg.SettleDelay,
		MonthLayout:       fx.Layouts.Month,
		BetType:           1,
	})
	sim.OnDropped = dropped.Inc
	sim.OnFallback = fallbacks.Inc
	sim.OnError = func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	// writer sem tópico fixo: cada evento vai para o seu tópico
	writer := kafka.NewWriter(cfg.KafkaBrokers, "")
	defer writer.Close()

	runner := &scenario.Runner{
		Log:       log,
		Anchor:    fx.Anchor,
		Hierarchy: hierarchy.NewGenerator(log.Named("hierarchy"), client),
		Wager:     sim,
		Verifier:  verifier,
		Login: func(ctx context.Context, username, password string) (reconcile.Records, error) {
			return client.Login(ctx, username, password)
		},
		Publisher: producer.NewKafkaPublisher(writer, cfg.TopicScenarioFinished, cfg.TopicMismatchFound),
		OnScenario: func(name string, passed bool, elapsed time.Duration) {
			scenarios.WithLabelValues(name, strconv.FormatBool(passed)).Inc()
			duration.WithLabelValues(name).Observe(elapsed.Seconds())
		},
	}
	if cfg.FreshAnchor {
		runner.Register = func(ctx context.Context) (config.Credentials, error) {
			u, err := client.RegisterAnchor(ctx)
			if err != nil {
				return config.Credentials{}, err
			}
			return config.Credentials{ID: u.ID.String(), Username: u.Username, Password: u.Password}, nil
		}
	}

	plans, err := scenario.Select(cfg.Scenarios, fx.Scenarios)
	if err != nil {
		log.Fatal("scenario selection", zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	// Sinalização para interromper entre cenários (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("rebate-verifier started",
		zap.Int("scenarios", len(plans)),
		zap.String("platform", cfg.PlatformURL),
		zap.Bool("ui", ui != nil),
		zap.Bool("fresh_anchor", cfg.FreshAnchor),
	)
	results, err := runner.RunAll(ctx, plans)
	passed := 0
	for _, r := range results {
		if r.Passed() {
			passed++
		}
	}
	log.Info("rebate-verifier finished", zap.Int("passed", passed), zap.Int("total", len(plans)))

	if err != nil {
		if errors.Is(err, scenario.ErrScenarioFailed) {
			log.Error("verification failed", zap.Error(err))
		} else {
			log.Error("verification aborted", zap.Error(err))
		}
		cancel()
		_ = writer.Close()
		_ = log.Sync()
		os.Exit(1)
	}
}
