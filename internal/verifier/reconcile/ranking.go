package reconcile

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rebate-verifier/internal/shared/money"
)

const ContextRanking = "ranking"

// Competitors é o leaderboard observado antes do cenário
type Competitors struct {
	Turnovers []decimal.Decimal
	Avatar    string // vazio quando não há agente de UI
}

var turnoverText = regexp.MustCompile(`(?i)turnover:\s*(?:RM|MYR)?\s*([\d,.]+)`)

// parseTurnover lê "Turnover: RM 1,234.50"; texto ilegível vale zero
func parseTurnover(text string) decimal.Decimal {
	if m := turnoverText.FindStringSubmatch(text); m != nil {
		if d, err := money.Parse(m[1]); err == nil {
			return d
		}
		return decimal.Zero
	}
	if d, err := money.Parse(text); err == nil {
		return d
	}
	return decimal.Zero
}

// UnwrapAvatar extrai a URL original de um src "/_next/image?url=...&w=..."
func UnwrapAvatar(src string) string {
	const marker = "/_next/image?url="
	i := strings.Index(src, marker)
	if i < 0 {
		return src
	}
	encoded := src[i+len(marker):]
	if j := strings.IndexByte(encoded, '&'); j >= 0 {
		encoded = encoded[:j]
	}
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}

// RankPosition devolve a posição (1-based) que o turnover do usuário ocupa
// entre os concorrentes ordenados de forma decrescente.
func RankPosition(competitors []decimal.Decimal, user decimal.Decimal) int {
	sorted := make([]decimal.Decimal, len(competitors))
	copy(sorted, competitors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].GreaterThan(sorted[j]) })
	for i, c := range sorted {
		if user.GreaterThanOrEqual(c) {
			return i + 1
		}
	}
	return len(sorted) + 1
}

// CollectCompetitors lê o top-3 e o ranking antes das apostas.
// Sem agente de UI usa o leaderboard da API. A linha da própria âncora é ignorada.
func (v *Verifier) CollectCompetitors(ctx context.Context, anchor string) (Competitors, error) {
	var out Competitors
	if v.UI == nil {
		entries, err := v.API.Leaderboard(ctx)
		if err != nil {
			return out, fmt.Errorf("reconcile: leaderboard snapshot: %w", err)
		}
		for _, e := range entries {
			if e.Name == anchor {
				continue
			}
			out.Turnovers = append(out.Turnovers, e.TotalValidTurnover.Decimal)
		}
		return out, nil
	}

	scope := NewScope(ViewLeaderboard)
	avatar, err := v.UI.Field(ctx, scope, FieldAvatar)
	if err != nil {
		return out, fmt.Errorf("reconcile: avatar: %w", err)
	}
	src := avatar.Attrs["src"]
	if src == "" {
		src = avatar.Text
	}
	out.Avatar = UnwrapAvatar(src)

	rows, err := v.UI.Rows(ctx, NewScope(ViewLeaderboardRanking))
	if err != nil {
		return out, fmt.Errorf("reconcile: ranking rows: %w", err)
	}
	for _, r := range rows {
		if r.Cell(ColName) == anchor {
			continue
		}
		out.Turnovers = append(out.Turnovers, parseTurnover(r.Cell(ColTurnover)))
	}
	v.Log.Info("competitors collected", zap.Int("count", len(out.Turnovers)), zap.String("avatar", out.Avatar))
	return out, nil
}

// Ranking confere a linha da âncora na posição esperada do leaderboard da API
func (v *Verifier) Ranking(ctx context.Context, exp Expected, comp Competitors) *Report {
	rep := NewReport(ContextRanking)
	rank := RankPosition(comp.Turnovers, exp.Ledger.GrandBet)

	entries, err := v.API.Leaderboard(ctx)
	if err != nil {
		rep.Fail("leaderboard", SourceAPI, "readable", err.Error())
		return v.finish(rep)
	}
	if rank > len(entries) {
		rep.Fail("rank", SourceAPI, fmt.Sprintf("row %d", rank), fmt.Sprintf("%d rows", len(entries)))
		return v.finish(rep)
	}

	row := entries[rank-1]
	rep.Text("name", SourceAPI, exp.Roster.Anchor.Username, row.Name)
	rep.Count("valid_members", SourceAPI, exp.NewMembers(), row.ValidMembers)
	rep.Amount("total_valid_turnover", SourceAPI, exp.Ledger.GrandBet, row.TotalValidTurnover.Decimal)
	if comp.Avatar != "" {
		rep.Text("avatar", SourceAPI, comp.Avatar, UnwrapAvatar(row.Avatar))
	}
	return v.finish(rep)
}
