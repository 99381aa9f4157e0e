package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/platform-simulator/store"
	"github.com/radieske/rebate-verifier/internal/shared/money"
	"github.com/radieske/rebate-verifier/internal/verifier/platform"
	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

// Codes do envelope de resposta
const (
	CodeOK           = "200"
	CodeBadRequest   = "400"
	CodeUnauthorized = "401"
	CodeRejected     = "500"
)

// Layouts de data exibidos nas tabelas de histórico
type Layouts struct {
	BetTime    string
	RebateDate string
}

// Server expõe a API simulada da plataforma de afiliados
type Server struct {
	log     *zap.Logger
	store   *store.Store
	routes  platform.Routes
	layouts Layouts
	tnc     map[string]dto.TncText // idioma -> termos
}

// NewServer instancia o simulador; tnc["en"] é usado quando o idioma não tem texto
func NewServer(log *zap.Logger, st *store.Store, routes platform.Routes, layouts Layouts, tnc map[string]dto.TncText) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, store: st, routes: routes, layouts: layouts, tnc: tnc}
}

type ctxKey struct{}

// Router retorna o roteador chi com todas as rotas da plataforma
func (s *Server) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mw...)

	r.Post(s.routes.Login, s.login)
	r.Post(s.routes.Register, s.register)
	r.Get(s.routes.CreateDownline, s.createDownline)
	r.Get(s.routes.CommissionRates, s.commissionRates)
	r.Get(s.routes.ApproveDeposit, s.approveDeposit)
	r.Get(s.routes.PlaceBet, s.placeBet)
	r.Get(s.routes.CreateRebate, s.createRebate)
	r.Get(s.routes.ApproveRebate, s.approveRebate)
	r.Get(s.routes.Leaderboard, s.leaderboard)
	r.Get(s.routes.LeaderboardTnc, s.leaderboardTnc)

	// rotas da sessão do usuário
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post(s.routes.SubmitDeposit, s.submitDeposit)
		r.Get(s.routes.GameProviders, s.gameProviders)
		r.Post(s.routes.Transfer, s.transfer)
		r.Get(s.routes.Records, s.records)
	})
	return r
}

// writeEnvelope responde sempre 200 com {code, message, data}, como a plataforma real
func writeEnvelope(w http.ResponseWriter, code, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func ok(w http.ResponseWriter, data any) { writeEnvelope(w, CodeOK, "success", data) }

func (s *Server) reject(w http.ResponseWriter, op string, err error) {
	code := CodeRejected
	switch {
	case errors.Is(err, store.ErrUnauthorized), errors.Is(err, store.ErrBadCredentials):
		code = CodeUnauthorized
	case errors.Is(err, store.ErrUnknownUser), errors.Is(err, store.ErrUnknownProvider):
		code = CodeBadRequest
	}
	s.log.Info("request rejected", zap.String("op", op), zap.String("code", code), zap.Error(err))
	writeEnvelope(w, code, err.Error(), nil)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		id, err := s.store.Authenticate(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func sessionUser(r *http.Request) int {
	id, _ := r.Context().Value(ctxKey{}).(int)
	return id
}

func queryInt(r *http.Request, key string) (int, bool) {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	return n, err == nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	token, err := s.store.Login(req.Username, req.Password)
	if err != nil {
		s.reject(w, "login", err)
		return
	}
	ok(w, dto.LoginData{Token: token})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	u := s.store.Register()
	s.log.Info("affiliate registered", zap.Int("user_id", u.ID), zap.String("username", u.Username))
	ok(w, dto.DownlineUser{ID: dto.ID(strconv.Itoa(u.ID)), Username: u.Username, Password: u.Password})
}

func (s *Server) createDownline(w http.ResponseWriter, r *http.Request) {
	anchor, ok1 := queryInt(r, "user_id")
	t2, ok2 := queryInt(r, "tier2")
	t3, ok3 := queryInt(r, "tier3")
	if !ok1 || !ok2 || !ok3 {
		http.Error(w, "user_id, tier2 and tier3 required", http.StatusBadRequest)
		return
	}
	tier2, tier3, err := s.store.CreateDownline(anchor, t2, t3)
	if err != nil {
		s.reject(w, "create_downline", err)
		return
	}
	names := make(map[int]string, len(tier2))
	var out dto.Downline
	for _, u := range tier2 {
		names[u.ID] = u.Username
		out.Tier2 = append(out.Tier2, downlineUser(u, ""))
	}
	for _, u := range tier3 {
		out.Tier3 = append(out.Tier3, downlineUser(u, names[u.ParentID]))
	}
	ok(w, out)
}

func downlineUser(u store.User, parent string) dto.DownlineUser {
	return dto.DownlineUser{ID: dto.ID(strconv.Itoa(u.ID)), Username: u.Username, Password: u.Password, Parent: parent}
}

func (s *Server) commissionRates(w http.ResponseWriter, r *http.Request) {
	var out []dto.CommissionRate
	for _, p := range s.store.Providers() {
		rates := make(map[string]decimal.Decimal, len(p.Rates))
		for t, pct := range p.Rates {
			rates[strconv.Itoa(t)] = pct
		}
		out = append(out, dto.CommissionRate{ProviderID: p.ID, ProviderName: p.Name, Rates: rates})
	}
	ok(w, out)
}

func (s *Server) submitDeposit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	amount, err := money.Parse(r.FormValue("amount"))
	if err != nil {
		http.Error(w, "bad amount", http.StatusBadRequest)
		return
	}
	if err := s.store.SubmitDeposit(sessionUser(r), amount); err != nil {
		s.reject(w, "submit_deposit", err)
		return
	}
	ok(w, nil)
}

func (s *Server) approveDeposit(w http.ResponseWriter, r *http.Request) {
	id, valid := queryInt(r, "user_id")
	if !valid {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	if err := s.store.ApproveDeposit(id); err != nil {
		s.reject(w, "approve_deposit", err)
		return
	}
	ok(w, nil)
}

func (s *Server) gameProviders(w http.ResponseWriter, r *http.Request) {
	var out []dto.GameProvider
	for _, p := range s.store.Providers() {
		out = append(out, dto.GameProvider{ID: p.ID, Name: p.Name})
	}
	ok(w, out)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.SourceID != dto.MainWallet {
		http.Error(w, "only transfers from the main wallet are supported", http.StatusBadRequest)
		return
	}
	if err := s.store.Transfer(sessionUser(r), req.TargetID, req.Amount.Decimal); err != nil {
		s.reject(w, "transfer", err)
		return
	}
	ok(w, nil)
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	id, ok1 := queryInt(r, "user_id")
	game, ok2 := queryInt(r, "game_id")
	amount, err := money.Parse(r.URL.Query().Get("amount"))
	if !ok1 || !ok2 || err != nil {
		http.Error(w, "user_id, game_id and amount required", http.StatusBadRequest)
		return
	}
	bet, err := s.store.PlaceBet(id, game, amount, r.URL.Query().Get("date"))
	if err != nil {
		s.reject(w, "place_bet", err)
		return
	}
	ok(w, map[string]string{"bet_id": bet.ID})
}

func (s *Server) createRebate(w http.ResponseWriter, r *http.Request) {
	id, valid := queryInt(r, "user_id")
	month := r.URL.Query().Get("month")
	if !valid || month == "" {
		http.Error(w, "user_id and month required", http.StatusBadRequest)
		return
	}
	b, err := s.store.CreateBatch(id, month)
	if err != nil {
		s.reject(w, "create_rebate", err)
		return
	}
	s.log.Info("commission batch created", zap.Int("user_id", id), zap.String("month", month), zap.String("amount", money.Format(b.Amount)))
	ok(w, map[string]any{"batch_id": b.ID, "amount": money.NewAmount(b.Amount)})
}

func (s *Server) approveRebate(w http.ResponseWriter, r *http.Request) {
	id, valid := queryInt(r, "user_id")
	if !valid {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	total, err := s.store.ApproveRebate(id)
	if err != nil {
		s.reject(w, "approve_rebate", err)
		return
	}
	ok(w, map[string]any{"amount": money.NewAmount(total)})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	var out dto.Leaderboard
	for _, st := range s.store.Leaderboard() {
		out.Entries = append(out.Entries, dto.LeaderboardEntry{
			Name:               st.User.Username,
			ValidMembers:       st.ValidMembers,
			TotalValidTurnover: money.NewAmount(st.Turnover),
			Avatar:             st.User.Avatar,
		})
	}
	ok(w, out)
}

func (s *Server) leaderboardTnc(w http.ResponseWriter, r *http.Request) {
	text, found := s.tnc[r.Header.Get("language")]
	if !found {
		text = s.tnc["en"]
	}
	ok(w, dto.Tnc{Tnc: text})
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{Start: q.Get("start_date"), End: q.Get("end_date")}
	if t := q.Get("tier"); t != "" && t != "all" {
		n, err := strconv.Atoi(t)
		if err != nil {
			http.Error(w, "bad tier", http.StatusBadRequest)
			return
		}
		f.Tier = n
	}
	kind := q.Get("type")
	entries, err := s.store.Records(sessionUser(r), kind, f)
	if err != nil {
		s.reject(w, "records", err)
		return
	}
	rows := make([]dto.RecordRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, s.recordRow(kind, e))
	}
	ok(w, dto.RecordList{List: rows})
}

// recordRow preenche só as colunas que a tabela exibe
func (s *Server) recordRow(kind string, e store.Entry) dto.RecordRow {
	tier := dto.ID(strconv.Itoa(e.Tier))
	switch kind {
	case store.KindDownline:
		return dto.RecordRow{Username: e.Username, Tier: tier, Turnover: money.NewAmount(e.Turnover), Rebate: money.NewAmount(e.Rebate)}
	case store.KindBet:
		return dto.RecordRow{Username: e.Username, BetAmount: money.NewAmount(e.Turnover), BetTime: s.format(e.At, s.layouts.BetTime)}
	case store.KindRebate:
		return dto.RecordRow{FromUser: e.Username, Tier: tier, Amount: money.NewAmount(e.Rebate), Date: s.format(e.At, s.layouts.RebateDate)}
	}
	return dto.RecordRow{Username: e.Username, Parent: e.Parent, Tier: tier, Turnover: money.NewAmount(e.Turnover), Rebate: money.NewAmount(e.Rebate)}
}

func (s *Server) format(t time.Time, layout string) string {
	if layout == "" {
		layout = time.DateTime
	}
	return t.Format(layout)
}
