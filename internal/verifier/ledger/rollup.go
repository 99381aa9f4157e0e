package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/rebate-verifier/internal/verifier/hierarchy"
)

// DownlineEntry é a linha esperada no registro de downline de um membro
type DownlineEntry struct {
	Username string
	Tier     int
	Turnover decimal.Decimal
	Rebate   decimal.Decimal
}

// DownlineRollup soma, para cada membro, as apostas da sua subárvore.
// A aposta de um descendente na profundidade d usa o percentual do tier relativo d+1.
func DownlineRollup(records []Record, roster hierarchy.Roster, members []hierarchy.User) []DownlineEntry {
	byUser := ByUser(records)
	out := make([]DownlineEntry, 0, len(members))
	for _, m := range members {
		e := DownlineEntry{Username: m.Username, Tier: m.Tier, Turnover: decimal.Zero, Rebate: decimal.Zero}
		for _, node := range roster.Subtree(m.Username) {
			for _, r := range byUser[node.Username] {
				e.Turnover = e.Turnover.Add(r.BetAmount)
				e.Rebate = e.Rebate.Add(r.CommissionAt(node.Depth + 1))
			}
		}
		out = append(out, e)
	}
	return out
}
