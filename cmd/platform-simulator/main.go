package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	simhttp "github.com/radieske/rebate-verifier/internal/platform-simulator/http"
	"github.com/radieske/rebate-verifier/internal/platform-simulator/store"
	"github.com/radieske/rebate-verifier/internal/shared/config"
	"github.com/radieske/rebate-verifier/internal/shared/logger"
	"github.com/radieske/rebate-verifier/internal/shared/metrics"
	"github.com/radieske/rebate-verifier/internal/verifier/platform"
)

var (
	// Métricas Prometheus das chamadas recebidas
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_sim_requests_total",
		Help: "Requisições recebidas por rota e status",
	}, []string{"route", "status"})
	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_sim_request_seconds",
		Help:    "Latência das requisições por rota",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument conta as requisições pelo padrão de rota do chi
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		requestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(requestsTotal, requestLatency)

	// as fixtures definem a âncora semeada, os formatos de data e as rotas
	fx, err := config.LoadFixtures(cfg.FixturesFile)
	if err != nil {
		log.Warn("fixtures not loaded, using defaults", zap.Error(err))
		fx = config.DefaultFixtures()
	}

	st := store.New()
	st.MonthLayout = fx.Layouts.Month
	store.Seed(st)
	if fx.Anchor.Username != "" {
		id, _ := strconv.Atoi(fx.Anchor.ID)
		a := st.AddAffiliate(id, fx.Anchor.Username, fx.Anchor.Password, "")
		log.Info("anchor seeded", zap.Int("user_id", a.ID), zap.String("username", a.Username))
	}

	srv := simhttp.NewServer(log, st, platform.DefaultRoutes().Override(fx.Routes), simhttp.Layouts{
		BetTime:    fx.Layouts.BetTime,
		RebateDate: fx.Layouts.RebateDate,
	}, simhttp.DefaultTnc())

	// ==== MÉTRICAS (/healthz, /metrics)
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	// ==== API PÚBLICA
	public := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           srv.Router(instrument),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("platform simulator running", zap.String("addr", public.Addr))
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = public.Shutdown(shutdown)
	_ = msrv.Shutdown(shutdown)
	log.Info("platform simulator stopped")
}
