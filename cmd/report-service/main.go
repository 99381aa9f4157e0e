package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/report-service/cache"
	httpapi "github.com/radieske/rebate-verifier/internal/report-service/http"
	"github.com/radieske/rebate-verifier/internal/report-service/repo"
	"github.com/radieske/rebate-verifier/internal/report-service/ws"
	sharedcache "github.com/radieske/rebate-verifier/internal/shared/cache"
	"github.com/radieske/rebate-verifier/internal/shared/config"
	"github.com/radieske/rebate-verifier/internal/shared/db"
	"github.com/radieske/rebate-verifier/internal/shared/logger"
	"github.com/radieske/rebate-verifier/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// conecta com db Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	// conecta com cache Redis
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// atualizações em tempo real vindas do report-worker
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)

	api := &httpapi.API{
		Log:      log,
		ReadRepo: &repo.ReadRepo{DB: pg},
		Cache:    cache.New(redisClient),
		WS:       hub,
	}

	// sobe servidor de métricas e health
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(
		func(ctx context.Context) error { return pg.PingContext(ctx) },
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	))

	public := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("report api listening", zap.String("addr", public.Addr))
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = public.Shutdown(shutdown)
	_ = msrv.Shutdown(shutdown)
	log.Info("report-service stopped")
}
