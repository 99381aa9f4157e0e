package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/report-service/dto"
	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// RunReader é a leitura de execuções usada pela API (Postgres em produção)
type RunReader interface {
	ListRuns(ctx context.Context, f dto.RunFilter) ([]dto.Run, error)
	GetRun(ctx context.Context, runID string) (dto.Run, error)
	LatestRun(ctx context.Context, anchor string) (dto.Run, error)
	ListMismatches(ctx context.Context, runID string) ([]dto.Mismatch, error)
}

// LatestCache devolve o último resumo por âncora gravado pelo report-worker
type LatestCache interface {
	GetLatest(ctx context.Context, anchor string, dst any) (bool, error)
}

// API expõe os endpoints REST de consulta das execuções de verificação
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	Log      *zap.Logger
	ReadRepo RunReader
	Cache    LatestCache  // opcional
	WS       http.Handler // opcional; atualizações em tempo real
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/runs", a.listRuns)                       // Lista execuções (filtros: anchor, scenario, passed, limit)
	r.Get("/v1/runs/{id}", a.getRun)                    // Resumo de uma execução
	r.Get("/v1/runs/{id}/mismatches", a.listMismatches) // Divergências de uma execução
	r.Get("/v1/anchors/{username}/latest", a.latestRun) // Última execução de uma âncora
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if a.Log != nil {
		a.Log.Error("report query failed", zap.Error(err))
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (a *API) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := dto.RunFilter{Anchor: q.Get("anchor"), Scenario: q.Get("scenario")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		f.Limit = n
	}
	if v := q.Get("passed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid passed"})
			return
		}
		f.Passed = &b
	}

	runs, err := a.ReadRepo.ListRuns(r.Context(), f)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *API) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.ReadRepo.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) listMismatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.ReadRepo.GetRun(r.Context(), id); err != nil {
		a.fail(w, err)
		return
	}
	mm, err := a.ReadRepo.ListMismatches(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mm)
}

// latestRun prefere o cache; cai para o banco quando a chave expirou
func (a *API) latestRun(w http.ResponseWriter, r *http.Request) {
	anchor := chi.URLParam(r, "username")

	if a.Cache != nil {
		var ev events.ScenarioFinished
		ok, err := a.Cache.GetLatest(r.Context(), anchor, &ev)
		if err != nil && a.Log != nil {
			a.Log.Warn("cache read failed", zap.String("anchor", anchor), zap.Error(err))
		}
		if ok && err == nil {
			writeJSON(w, http.StatusOK, dto.FromEvent(ev))
			return
		}
	}

	run, err := a.ReadRepo.LatestRun(r.Context(), anchor)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
