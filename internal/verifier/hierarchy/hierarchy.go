// Package hierarchy cria a árvore de afiliados (tier 2 e tier 3) sob uma âncora.
package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/verifier/platform/dto"
)

// NoParent é o pai exibido para a âncora
const NoParent = "-"

// ErrHierarchyFailed indica que a criação da árvore não completou no orçamento de retry
var ErrHierarchyFailed = errors.New("hierarchy: downline creation failed")

// Shape define quantos usuários criar em cada tier
type Shape struct {
	Name  string
	Tier2 int
	Tier3 int
}

var (
	ShapeValid      = Shape{Name: "valid", Tier2: 5, Tier3: 1}
	ShapeOnePerTier = Shape{Name: "one-per-tier", Tier2: 1, Tier3: 1}
	ShapeDefault    = Shape{Name: "default", Tier2: 2, Tier3: 2}
)

// ShapeByName resolve o nome usado nas fixtures
func ShapeByName(name string) (Shape, error) {
	switch name {
	case "", ShapeDefault.Name:
		return ShapeDefault, nil
	case ShapeValid.Name:
		return ShapeValid, nil
	case ShapeOnePerTier.Name:
		return ShapeOnePerTier, nil
	}
	return Shape{}, fmt.Errorf("hierarchy: unknown shape %q", name)
}

type User struct {
	ID       string
	Username string
	Password string
	Tier     int
	Parent   string // username do pai; NoParent para a âncora
}

// Roster é a árvore criada; a âncora é o tier 1
type Roster struct {
	Anchor User
	Tier2  []User
	Tier3  []User
}

// Users devolve todos os usuários, âncora primeiro
func (r Roster) Users() []User {
	out := make([]User, 0, 1+len(r.Tier2)+len(r.Tier3))
	out = append(out, r.Anchor)
	out = append(out, r.Tier2...)
	return append(out, r.Tier3...)
}

// ByTier devolve os usuários do tier pedido
func (r Roster) ByTier(tier int) []User {
	switch tier {
	case 1:
		return []User{r.Anchor}
	case 2:
		return r.Tier2
	case 3:
		return r.Tier3
	}
	return nil
}

// Children devolve os filhos diretos de um usuário
func (r Roster) Children(username string) []User {
	var out []User
	for _, u := range r.Users() {
		if u.Parent == username {
			out = append(out, u)
		}
	}
	return out
}

// Lookup busca um usuário pelo username
func (r Roster) Lookup(username string) (User, bool) {
	for _, u := range r.Users() {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

// Member é um usuário da subárvore com a profundidade relativa à raiz (raiz = 0)
type Member struct {
	User
	Depth int
}

// Subtree devolve o usuário e seus descendentes em largura
func (r Roster) Subtree(username string) []Member {
	root, ok := r.Lookup(username)
	if !ok {
		return nil
	}
	out := []Member{{User: root}}
	for i := 0; i < len(out); i++ {
		for _, c := range r.Children(out[i].Username) {
			out = append(out, Member{User: c, Depth: out[i].Depth + 1})
		}
	}
	return out
}

// Creator é a chamada de criação de hierarquia da plataforma
type Creator interface {
	CreateDownline(ctx context.Context, anchorID string, tier2, tier3 int) (dto.Downline, error)
}

type Generator struct {
	Log *zap.Logger
	API Creator
}

func NewGenerator(log *zap.Logger, api Creator) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{Log: log, API: api}
}

// Generate cria a hierarquia na forma pedida. Sem pai informado pela API,
// o tier 3 de índice i fica sob o tier 2 de índice i mod len(tier2).
func (g *Generator) Generate(ctx context.Context, anchor User, shape Shape) (Roster, error) {
	if shape.Tier2 < 1 || shape.Tier3 < 0 {
		return Roster{}, fmt.Errorf("hierarchy: invalid shape %+v", shape)
	}
	anchor.Tier = 1
	anchor.Parent = NoParent

	created, err := g.API.CreateDownline(ctx, anchor.ID, shape.Tier2, shape.Tier3)
	if err != nil {
		return Roster{}, fmt.Errorf("%w: %w", ErrHierarchyFailed, err)
	}
	if len(created.Tier2) != shape.Tier2 || len(created.Tier3) != shape.Tier3 {
		return Roster{}, fmt.Errorf("%w: got %d/%d users, want %d/%d",
			ErrHierarchyFailed, len(created.Tier2), len(created.Tier3), shape.Tier2, shape.Tier3)
	}

	roster := Roster{Anchor: anchor}
	for _, u := range created.Tier2 {
		roster.Tier2 = append(roster.Tier2, User{
			ID:       u.ID.String(),
			Username: u.Username,
			Password: u.Password,
			Tier:     2,
			Parent:   anchor.Username,
		})
	}
	for i, u := range created.Tier3 {
		parent := u.Parent
		if parent == "" {
			parent = roster.Tier2[i%len(roster.Tier2)].Username
		}
		roster.Tier3 = append(roster.Tier3, User{
			ID:       u.ID.String(),
			Username: u.Username,
			Password: u.Password,
			Tier:     3,
			Parent:   parent,
		})
	}

	g.Log.Info("downline created",
		zap.String("anchor", anchor.Username),
		zap.String("shape", shape.Name),
		zap.Int("tier2", len(roster.Tier2)),
		zap.Int("tier3", len(roster.Tier3)),
	)
	return roster, nil
}
