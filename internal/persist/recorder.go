// Package persist records match lifecycles outside the process.
//
// Every write is best effort: the room core never blocks on a recorder and
// never changes match state because a write failed.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/park285/chessroom/pkg/roomdto"
)

// ErrUnknownMatch is returned when a record id was never created.
var ErrUnknownMatch = errors.New("unknown match record")

// Status values stored with each record.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// keep at most this many recent moves per record.
const lastMovesCap = 20

type MatchInfo struct {
	ID          string        `json:"id"`
	Room        string        `json:"room"`
	White       string        `json:"white"`
	Black       string        `json:"black"`
	TimeControl time.Duration `json:"-"`
	Bot         bool          `json:"bot"`
	StartedAt   time.Time     `json:"startedAt"`
}

type MoveEntry struct {
	Number   int       `json:"number"`
	Notation string    `json:"notation"`
	At       time.Time `json:"timestamp"`
}

type ChatEntry struct {
	Player  string    `json:"player"`
	Color   string    `json:"color"`
	Message string    `json:"message"`
	At      time.Time `json:"timestamp"`
}

// Result is the final state of a finished match. Winner is white, black or
// draw.
type Result struct {
	Winner     string
	Reason     string
	EndedAt    time.Time
	History    []string
	TotalMoves int
}

// Recorder receives the lifecycle of every match. CreateMatch may be called
// again for the same id to update player names.
type Recorder interface {
	CreateMatch(ctx context.Context, info MatchInfo) error
	RecordMove(ctx context.Context, id string, mv MoveEntry) error
	RecordChat(ctx context.Context, id string, msg ChatEntry) error
	EndMatch(ctx context.Context, id string, res Result) error
	AbandonMatch(ctx context.Context, id string) error
}

// History answers read-only queries over completed matches.
type History interface {
	RecentGames(ctx context.Context, limit int) ([]roomdto.GameSummary, error)
	PlayerStats(ctx context.Context, player string) (roomdto.PlayerStats, error)
	Leaderboard(ctx context.Context, limit int) ([]roomdto.PlayerStats, error)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
