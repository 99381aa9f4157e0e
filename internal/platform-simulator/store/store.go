// Package store é o estado em memória do simulador da plataforma de afiliados:
// usuários, carteiras, apostas e lotes de comissão.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/shared/money"
)

var (
	ErrUnknownUser      = errors.New("unknown user")
	ErrBadCredentials   = errors.New("invalid username or password")
	ErrUnauthorized     = errors.New("invalid token")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrProviderRejected = errors.New("provider rejected transfer")
	ErrInsufficient     = errors.New("insufficient balance")
	ErrNothingPending   = errors.New("nothing pending")
)

// MaxDepth é a profundidade da hierarquia (tier 1 a 3)
const MaxDepth = 3

// NoParent é o pai exibido para afiliados tier 1
const NoParent = "-"

type User struct {
	ID       int
	Username string
	Password string
	Tier     int
	ParentID int // 0 para afiliados tier 1
	Avatar   string

	Balance decimal.Decimal
	Pending decimal.Decimal // depósito aguardando aprovação
	Wallets map[int]decimal.Decimal

	// valores fixos de concorrentes semeados no leaderboard
	SeedMembers  int
	SeedTurnover decimal.Decimal
}

// Provider é um provedor de jogos e seus percentuais por tier relativo
type Provider struct {
	ID      int
	Name    string
	Rates   map[int]decimal.Decimal
	Rejects bool // recusa toda transferência
}

type Bet struct {
	ID         string
	UserID     int
	ProviderID int
	Amount     decimal.Decimal
	Date       string // dia informado na aposta
	At         time.Time
	Rates      map[int]decimal.Decimal // snapshot do provedor no momento da aposta
	BatchID    string
}

// Batch é o lote de comissão de um afiliado para um mês
type Batch struct {
	ID       string
	AnchorID int
	Month    string
	At       time.Time
	Amount   decimal.Decimal
	Approved bool
}

// Store guarda o estado; todos os métodos são seguros para uso concorrente
type Store struct {
	mu        sync.Mutex
	users     map[int]*User
	byName    map[string]int
	tokens    map[string]int
	providers []Provider
	bets      []*Bet
	batches   []*Batch
	nextID    int

	Now         func() time.Time
	MonthLayout string
}

func New() *Store {
	return &Store{
		users:       make(map[int]*User),
		byName:      make(map[string]int),
		tokens:      make(map[string]int),
		nextID:      1000,
		Now:         time.Now,
		MonthLayout: "2006-01",
	}
}

func (s *Store) add(u *User) *User {
	s.nextID++
	u.ID = s.nextID
	if u.Username == "" {
		u.Username = fmt.Sprintf("sim%d", u.ID)
	}
	if u.Password == "" {
		u.Password = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	u.Balance = decimal.Zero
	u.Pending = decimal.Zero
	u.Wallets = make(map[int]decimal.Decimal)
	s.users[u.ID] = u
	s.byName[u.Username] = u.ID
	return u
}

// AddAffiliate cria um afiliado tier 1. ID zero gera um identificador novo.
func (s *Store) AddAffiliate(id int, username, password, avatar string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, taken := s.users[id]; taken {
		return *existing
	}
	last := s.nextID
	if id > 0 {
		s.nextID = id - 1
	}
	u := s.add(&User{Username: username, Password: password, Tier: 1, Avatar: avatar})
	s.nextID = max(last, u.ID)
	return *u
}

// AddCompetitor semeia um concorrente fixo no leaderboard
func (s *Store) AddCompetitor(username string, members int, turnover decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.add(&User{Username: username, Tier: 1})
	u.SeedMembers = members
	u.SeedTurnover = turnover
}

func (s *Store) AddProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

// Providers devolve os provedores ordenados por id
func (s *Store) Providers() []Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Provider, len(s.providers))
	copy(out, s.providers)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) provider(id int) (Provider, bool) {
	for _, p := range s.providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

func (s *Store) user(id int) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownUser, id)
	}
	return u, nil
}

// User devolve uma cópia do usuário
func (s *Store) User(id int) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(id)
	if err != nil {
		return User{}, err
	}
	return *u, nil
}

func (s *Store) Login(username, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[username]
	if !ok || s.users[id].Password != password {
		return "", ErrBadCredentials
	}
	token := uuid.NewString()
	s.tokens[token] = id
	return token, nil
}

// Authenticate resolve o token de sessão
func (s *Store) Authenticate(token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return 0, ErrUnauthorized
	}
	return id, nil
}

// CreateDownline cria tier2 filhos da âncora e tier3 distribuídos entre eles
func (s *Store) CreateDownline(anchorID, tier2, tier3 int) ([]User, []User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	anchor, err := s.user(anchorID)
	if err != nil {
		return nil, nil, err
	}
	if anchor.Tier != 1 {
		return nil, nil, fmt.Errorf("user %d is not a tier 1 affiliate", anchorID)
	}
	if tier2 < 1 || tier3 < 0 {
		return nil, nil, fmt.Errorf("invalid shape %d/%d", tier2, tier3)
	}
	var t2, t3 []User
	for i := 0; i < tier2; i++ {
		u := s.add(&User{Username: fmt.Sprintf("%s_t2_%d", anchor.Username, s.nextID+1), Tier: 2, ParentID: anchor.ID})
		t2 = append(t2, *u)
	}
	for i := 0; i < tier3; i++ {
		parent := t2[i%len(t2)]
		u := s.add(&User{Username: fmt.Sprintf("%s_t3_%d", anchor.Username, s.nextID+1), Tier: 3, ParentID: parent.ID})
		t3 = append(t3, *u)
	}
	return t2, t3, nil
}

func (s *Store) SubmitDeposit(userID int, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("invalid deposit amount %s", amount)
	}
	u.Pending = u.Pending.Add(amount)
	return nil
}

// ApproveDeposit credita o depósito pendente na carteira principal
func (s *Store) ApproveDeposit(userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	if u.Pending.IsZero() {
		return fmt.Errorf("deposit: %w", ErrNothingPending)
	}
	u.Balance = u.Balance.Add(u.Pending)
	u.Pending = decimal.Zero
	return nil
}

// Transfer move saldo da carteira principal para a carteira do provedor
func (s *Store) Transfer(userID, providerID int, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	p, ok := s.provider(providerID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownProvider, providerID)
	}
	if p.Rejects {
		return fmt.Errorf("%w: %s", ErrProviderRejected, p.Name)
	}
	if amount.GreaterThan(u.Balance) {
		return fmt.Errorf("%w: %s > %s", ErrInsufficient, money.Format(amount), money.Format(u.Balance))
	}
	u.Balance = u.Balance.Sub(amount)
	u.Wallets[providerID] = u.Wallets[providerID].Add(amount)
	return nil
}

// PlaceBet debita a carteira do provedor e registra a aposta
func (s *Store) PlaceBet(userID, providerID int, amount decimal.Decimal, date string) (Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID)
	if err != nil {
		return Bet{}, err
	}
	p, ok := s.provider(providerID)
	if !ok {
		return Bet{}, fmt.Errorf("%w: %d", ErrUnknownProvider, providerID)
	}
	if amount.GreaterThan(u.Wallets[providerID]) {
		return Bet{}, fmt.Errorf("%w: provider wallet %d", ErrInsufficient, providerID)
	}
	u.Wallets[providerID] = u.Wallets[providerID].Sub(amount)
	b := &Bet{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProviderID: providerID,
		Amount:     money.Round(amount),
		Date:       date,
		At:         s.Now(),
		Rates:      p.Rates,
	}
	s.bets = append(s.bets, b)
	return *b, nil
}

// depth é a distância de userID até ancestor (0 = o próprio); -1 se não descende
func (s *Store) depth(userID, ancestor int) int {
	d := 0
	for id := userID; id != 0 && d < MaxDepth; d++ {
		if id == ancestor {
			return d
		}
		u, ok := s.users[id]
		if !ok {
			return -1
		}
		id = u.ParentID
	}
	return -1
}

// commission é a comissão da aposta vista por um ancestral na profundidade d
func commission(b *Bet, d int) decimal.Decimal {
	pct, ok := b.Rates[d+1]
	if !ok {
		return decimal.Zero
	}
	return money.Round(b.Amount.Mul(pct).Shift(-2))
}

// CreateBatch agrupa as apostas sem lote da subárvore do afiliado no mês
func (s *Store) CreateBatch(anchorID int, month string) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(anchorID); err != nil {
		return Batch{}, err
	}
	b := &Batch{ID: uuid.NewString(), AnchorID: anchorID, Month: month, At: s.Now(), Amount: decimal.Zero}
	for _, bet := range s.bets {
		if bet.BatchID != "" || bet.At.Format(s.MonthLayout) != month {
			continue
		}
		d := s.depth(bet.UserID, anchorID)
		if d < 0 {
			continue
		}
		bet.BatchID = b.ID
		b.Amount = b.Amount.Add(commission(bet, d))
	}
	s.batches = append(s.batches, b)
	return *b, nil
}

// ApproveRebate credita os lotes pendentes do afiliado
func (s *Store) ApproveRebate(userID int) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	found := false
	for _, b := range s.batches {
		if b.AnchorID != userID || b.Approved {
			continue
		}
		b.Approved = true
		found = true
		total = total.Add(b.Amount)
	}
	if !found {
		return decimal.Zero, fmt.Errorf("rebate: %w", ErrNothingPending)
	}
	u.Balance = u.Balance.Add(total)
	return total, nil
}

// Standing é a linha de um afiliado no leaderboard
type Standing struct {
	User         User
	ValidMembers int
	Turnover     decimal.Decimal
}

// Leaderboard ordena os afiliados tier 1 por turnover da subárvore (apostas próprias inclusas)
func (s *Store) Leaderboard() []Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Standing
	for _, u := range s.users {
		if u.Tier != 1 {
			continue
		}
		st := Standing{User: *u, ValidMembers: u.SeedMembers, Turnover: u.SeedTurnover}
		for _, c := range s.users {
			if c.ParentID == u.ID {
				st.ValidMembers++
			}
		}
		for _, b := range s.bets {
			if s.depth(b.UserID, u.ID) >= 0 {
				st.Turnover = st.Turnover.Add(b.Amount)
			}
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Turnover.Equal(out[j].Turnover) {
			return out[i].Turnover.GreaterThan(out[j].Turnover)
		}
		return out[i].User.ID < out[j].User.ID
	})
	return out
}

// Filter restringe uma tabela de histórico. Tier 0 = todos; datas em "2006-01-02", vazias = sem limite.
type Filter struct {
	Tier  int
	Start string
	End   string
}

func (f Filter) tier(t int) bool { return f.Tier == 0 || f.Tier == t }

func (f Filter) day(at time.Time) bool {
	d := at.Format(time.DateOnly)
	return (f.Start == "" || d >= f.Start) && (f.End == "" || d <= f.End)
}

// Entry é uma linha de histórico antes da formatação
type Entry struct {
	Username string
	Parent   string
	Tier     int
	Turnover decimal.Decimal
	Rebate   decimal.Decimal
	At       time.Time
}

// Tipos de tabela de histórico
const (
	KindAgent    = "all"
	KindDownline = "downline"
	KindBet      = "bet"
	KindRebate   = "rebate"
)

// Records monta uma tabela de histórico do afiliado
func (s *Store) Records(anchorID int, kind string, f Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(anchorID); err != nil {
		return nil, err
	}
	batches := make(map[string]*Batch, len(s.batches))
	for _, b := range s.batches {
		batches[b.ID] = b
	}

	var out []Entry
	switch kind {
	case KindDownline:
		for _, m := range s.sortedUsers() {
			if m.ID == anchorID || s.depth(m.ID, anchorID) < 0 || !f.tier(m.Tier) {
				continue
			}
			e := Entry{Username: m.Username, Tier: m.Tier, Turnover: decimal.Zero, Rebate: decimal.Zero}
			for _, b := range s.bets {
				d := s.depth(b.UserID, m.ID)
				if d < 0 || !f.day(b.At) {
					continue
				}
				e.Turnover = e.Turnover.Add(b.Amount)
				e.Rebate = e.Rebate.Add(commission(b, d))
			}
			out = append(out, e)
		}
	case KindAgent, KindBet, KindRebate:
		for _, b := range s.bets {
			d := s.depth(b.UserID, anchorID)
			u := s.users[b.UserID]
			if d < 0 || !f.tier(u.Tier) {
				continue
			}
			e := Entry{Username: u.Username, Parent: NoParent, Tier: u.Tier, Turnover: b.Amount, Rebate: commission(b, d), At: b.At}
			if p, ok := s.users[u.ParentID]; ok {
				e.Parent = p.Username
			}
			if kind == KindRebate {
				batch, ok := batches[b.BatchID]
				if !ok || batch.AnchorID != anchorID {
					continue
				}
				e.At = batch.At
			}
			if !f.day(e.At) {
				continue
			}
			out = append(out, e)
		}
	default:
		return nil, fmt.Errorf("unknown record type %q", kind)
	}
	return out, nil
}

func (s *Store) sortedUsers() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Register cria um afiliado tier 1 com credenciais geradas
func (s *Store) Register() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.add(&User{Tier: 1})
}
