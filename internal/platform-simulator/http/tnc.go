package httpapi

import "github.com/radieske/rebate-verifier/internal/verifier/platform/dto"

// DefaultTnc são os termos do leaderboard servidos pelo simulador
func DefaultTnc() map[string]dto.TncText {
	return map[string]dto.TncText{
		"en": {Text: "Leaderboard Terms and Conditions\n" +
			"1. The leaderboard ranks affiliates by total valid turnover of their downline.\n" +
			"2. A valid member is a direct downline who placed at least one settled bet this month.\n" +
			"3. Rebates are credited after the monthly commission batch is approved.\n" +
			"4. The platform may void turnover from abusive or duplicated accounts."},
		"ms": {Items: []string{
			"Papan pendahulu menyusun ahli gabungan mengikut jumlah pusing ganti sah.",
			"Ahli sah ialah downline langsung yang membuat sekurang-kurangnya satu pertaruhan.",
			"Rebat dikreditkan selepas kelompok komisen bulanan diluluskan.",
		}},
	}
}
