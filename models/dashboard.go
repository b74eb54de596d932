package models

type DashboardStats struct {
	UsersTotal        int `json:"users_total"`
	TeamsTotal        int `json:"teams_total"`
	TournamentsTotal  int `json:"tournaments_total"`
	ActiveTournaments int `json:"active_tournaments"`
	MatchesLive       int `json:"matches_live"`
}

// TournamentCheckinStats — сводка чек-ина по одному турниру.
type TournamentCheckinStats struct {
	TournamentID   int `json:"tournament_id"`
	Confirmed      int `json:"confirmed"`
	CheckedIn      int `json:"checked_in"`
	NotCheckedIn   int `json:"not_checked_in"`
	NoShow         int `json:"no_show"`
	MatchesTotal   int `json:"matches_total"`
	MatchesLive    int `json:"matches_live"`
	MatchesPlayed  int `json:"matches_played"`
	MatchesPending int `json:"matches_pending"`
}
