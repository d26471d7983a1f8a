// Package match holds the per-room game record and every transition that can
// be applied to it.
//
// All state lives behind one mutex per match. Every exported method takes the
// guard for its whole read-modify-write sequence and returns a Change built
// under the guard, so callers broadcast after the guard is released without
// ever re-reading live fields.
package match

import (
	"sync"
	"time"

	"github.com/park285/chessroom/internal/clock"
	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/rules"
)

// BotColor is the side the synthetic opponent plays.
const BotColor = domain.Black

type Config struct {
	TimeControl time.Duration
	Bot         bool
}

type Option func(*Match)

// WithNow replaces the wall clock, mainly for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Match) { m.now = now }
}

type Match struct {
	room   string
	cfg    Config
	oracle rules.Oracle
	now    func() time.Time

	mu        sync.Mutex
	board     rules.Board
	clock     clock.Clock
	white     string
	black     string
	outcome   domain.Outcome
	reason    domain.Reason
	drawOffer domain.Color
	moves     int
	history   []string
	last      *rules.Move
	version   uint64
	startedAt time.Time
	endedAt   time.Time
}

// New starts a match for room with creator seated as white. The clock starts
// running immediately.
func New(room, creator string, cfg Config, oracle rules.Oracle, opts ...Option) *Match {
	m := &Match{room: room, cfg: cfg, oracle: oracle, now: time.Now, white: creator}
	for _, opt := range opts {
		opt(m)
	}
	if cfg.Bot {
		m.black = domain.BotPlayer
	}
	now := m.now()
	m.board = oracle.NewBoard()
	m.clock = clock.New(cfg.TimeControl, now)
	m.startedAt = now
	return m
}

func (m *Match) Room() string { return m.room }

func (m *Match) Config() Config { return m.cfg }

// Seat places player in the free black seat. The white player cannot take
// it as well.
func (m *Match) Seat(player string) (domain.Color, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Bot {
		return domain.NoColor, domain.ErrBotMatch
	}
	if player == m.white {
		return domain.NoColor, domain.ErrAlreadySeated
	}
	if m.black != "" {
		return domain.NoColor, domain.ErrRoomFull
	}
	m.black = player
	return domain.Black, nil
}

// SeatOf returns the color player holds, or NoColor for spectators.
func (m *Match) SeatOf(player string) domain.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch player {
	case "":
		return domain.NoColor
	case m.white:
		return domain.White
	case m.black:
		return domain.Black
	default:
		return domain.NoColor
	}
}

// SetOutcome records a terminal result. Recording the same result again is a
// no-op; any different result is rejected once one exists.
func (m *Match) SetOutcome(o domain.Outcome, r domain.Reason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.setOutcomeLocked(o, r, m.now())
	return err
}

func (m *Match) setOutcomeLocked(o domain.Outcome, r domain.Reason, now time.Time) (bool, error) {
	if o == domain.NoOutcome {
		return false, domain.ErrOutcomeConflict
	}
	switch {
	case m.outcome == domain.NoOutcome:
		m.outcome, m.reason = o, r
		m.drawOffer = domain.NoColor
		m.endedAt = now
		m.version++
		return true, nil
	case m.outcome == o && m.reason == r:
		return false, nil
	default:
		return false, domain.ErrOutcomeConflict
	}
}

func (m *Match) finishedLocked() bool { return m.outcome != domain.NoOutcome }

// settleLocked debits elapsed time from the side to move and ends the match
// on a flag fall. It reports whether this call ended the match.
func (m *Match) settleLocked(now time.Time) bool {
	if m.finishedLocked() {
		return false
	}
	side := m.board.Turn()
	if !m.clock.Settle(now, side) {
		return false
	}
	ended, _ := m.setOutcomeLocked(domain.WinFor(side.Opposite()), domain.Timeout, now)
	return ended
}

// applyLocked commits a legal move and evaluates terminal conditions.
func (m *Match) applyLocked(next rules.Board, mv rules.Move, notation string, now time.Time) Change {
	by := m.board.Turn()
	m.board = next
	m.moves++
	m.history = append(m.history, notation)
	m.last = &mv
	m.drawOffer = domain.NoColor
	m.version++

	ch := Change{Move: &Played{Move: mv, Notation: notation, By: by, Number: m.moves}}
	if o, r := rules.Terminal(next); o != domain.NoOutcome {
		ch.Finished, _ = m.setOutcomeLocked(o, r, now)
	}
	return m.changeLocked(ch)
}
