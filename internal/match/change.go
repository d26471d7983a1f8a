package match

import (
	"time"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/rules"
)

// Snapshot is a consistent copy of the match taken under its guard.
type Snapshot struct {
	Room        string
	Board       rules.Matrix
	Turn        domain.Color
	Check       bool
	Outcome     domain.Outcome
	Reason      domain.Reason
	White       time.Duration
	Black       time.Duration
	TimeControl time.Duration
	Moves       int
	DrawOffer   domain.Color
	LastMove    *rules.Move
	Bot         bool
	WhitePlayer string
	BlackPlayer string
	StartedAt   time.Time
	EndedAt     time.Time
	Version     uint64
}

func (s Snapshot) Finished() bool { return s.Outcome != domain.NoOutcome }

// Played describes a committed move.
type Played struct {
	Move     rules.Move
	Notation string
	By       domain.Color
	Number   int
}

// Change is what a transition committed. Callers broadcast from it after the
// guard is released.
type Change struct {
	Snapshot Snapshot
	Move     *Played
	// Finished is set only by the transition that ended the match.
	Finished bool
	// History holds every move in notation when Finished is set.
	History []string

	Reset       bool
	WasFinished bool

	DrawOffered  domain.Color
	DrawDeclined bool
}

// BotToMove reports whether the opponent task should run after this change.
func (c Change) BotToMove() bool {
	s := c.Snapshot
	return s.Bot && !s.Finished() && s.Turn == BotColor
}

func (m *Match) snapshotLocked() Snapshot {
	var last *rules.Move
	if m.last != nil {
		mv := *m.last
		last = &mv
	}
	return Snapshot{
		Room:        m.room,
		Board:       m.board.Matrix(),
		Turn:        m.board.Turn(),
		Check:       m.board.IsCheck(),
		Outcome:     m.outcome,
		Reason:      m.reason,
		White:       m.clock.Remaining(domain.White),
		Black:       m.clock.Remaining(domain.Black),
		TimeControl: m.clock.Control(),
		Moves:       m.moves,
		DrawOffer:   m.drawOffer,
		LastMove:    last,
		Bot:         m.cfg.Bot,
		WhitePlayer: m.white,
		BlackPlayer: m.black,
		StartedAt:   m.startedAt,
		EndedAt:     m.endedAt,
		Version:     m.version,
	}
}

func (m *Match) changeLocked(ch Change) Change {
	ch.Snapshot = m.snapshotLocked()
	if ch.Finished {
		ch.History = append([]string(nil), m.history...)
	}
	return ch
}

// Snapshot returns the current state without settling the clock.
func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}
