package platform

// Routes são os caminhos da API; o arquivo de fixtures pode sobrescrever qualquer um
type Routes struct {
	Login           string
	Register        string
	CreateDownline  string
	CommissionRates string
	SubmitDeposit   string
	ApproveDeposit  string
	GameProviders   string
	Transfer        string
	PlaceBet        string
	CreateRebate    string
	ApproveRebate   string
	Leaderboard     string
	LeaderboardTnc  string
	Records         string
}

func DefaultRoutes() Routes {
	return Routes{
		Login:           "/api/login",
		Register:        "/api/test/user/register",
		CreateDownline:  "/api/test/downline/create",
		CommissionRates: "/api/test/rebate/percentage",
		SubmitDeposit:   "/api/recharge",
		ApproveDeposit:  "/api/test/deposit/approve",
		GameProviders:   "/api/games",
		Transfer:        "/api/transfers",
		PlaceBet:        "/api/test/bet/place",
		CreateRebate:    "/api/test/rebate/create",
		ApproveRebate:   "/api/test/rebate/approve",
		Leaderboard:     "/api/test/leaderboard/ranking",
		LeaderboardTnc:  "/api/leaderboard/tnc",
		Records:         "/api/affiliate/records",
	}
}

// Override aplica as rotas do arquivo de fixtures (chaves snake_case)
func (r Routes) Override(m map[string]string) Routes {
	set := func(dst *string, key string) {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
	set(&r.Login, "login")
	set(&r.Register, "register")
	set(&r.CreateDownline, "create_downline")
	set(&r.CommissionRates, "commission_rates")
	set(&r.SubmitDeposit, "submit_deposit")
	set(&r.ApproveDeposit, "approve_deposit")
	set(&r.GameProviders, "game_providers")
	set(&r.Transfer, "transfer")
	set(&r.PlaceBet, "place_bet")
	set(&r.CreateRebate, "create_rebate")
	set(&r.ApproveRebate, "approve_rebate")
	set(&r.Leaderboard, "leaderboard")
	set(&r.LeaderboardTnc, "leaderboard_tnc")
	set(&r.Records, "records")
	return r
}
