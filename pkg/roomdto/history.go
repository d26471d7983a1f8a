package roomdto

import "time"

// GameSummary is one finished game in history listings.
type GameSummary struct {
	ID          string     `json:"id"`
	Room        string     `json:"room"`
	White       string     `json:"white"`
	Black       string     `json:"black"`
	Winner      string     `json:"winner"`
	Result      string     `json:"result"`
	TotalMoves  int        `json:"totalMoves"`
	DurationSec int        `json:"durationSec"`
	Bot         bool       `json:"bot"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
}

type PlayerStats struct {
	Player     string     `json:"player"`
	TotalGames int        `json:"totalGames"`
	Wins       int        `json:"wins"`
	Losses     int        `json:"losses"`
	Draws      int        `json:"draws"`
	WinRate    float64    `json:"winRate"`
	LastPlayed *time.Time `json:"lastPlayed"`
}

// RoomInfo is one open room in the lobby listing.
type RoomInfo struct {
	Room        string `json:"room"`
	TimeControl int    `json:"timeControl"`
	Bot         bool   `json:"bot"`
	Waiting     bool   `json:"waiting"`
	Finished    bool   `json:"finished"`
	Moves       int    `json:"moves"`
}
