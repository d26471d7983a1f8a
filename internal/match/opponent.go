package match

import (
	"fmt"
)

// Ticket records the transition version an opponent task observed before it
// released the guard to think.
type Ticket struct {
	version uint64
}

// BeginOpponent settles the clock and decides whether the synthetic player
// should think about a move. The Change carries Finished when the settlement
// ended the match by timeout.
func (m *Match) BeginOpponent() (Ticket, Change, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.changeLocked(Change{Finished: m.settleLocked(m.now())})
	if m.finishedLocked() || !m.cfg.Bot || m.board.Turn() != BotColor {
		return Ticket{}, ch, false
	}
	return Ticket{version: m.version}, ch, true
}

// FinishOpponent re-validates t and plays the legal move chosen by pick. It
// returns false when any transition committed while the task was unlocked,
// leaving the match untouched.
func (m *Match) FinishOpponent(t Ticket, pick func(n int) int) (Change, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finishedLocked() || m.version != t.version || m.board.Turn() != BotColor {
		return Change{}, false, nil
	}
	now := m.now()
	if m.settleLocked(now) {
		return m.changeLocked(Change{Finished: true}), true, nil
	}
	legal := m.board.LegalMoves()
	if len(legal) == 0 {
		return Change{}, false, nil
	}
	i := pick(len(legal))
	if i < 0 || i >= len(legal) {
		return Change{}, false, fmt.Errorf("picker returned %d of %d moves", i, len(legal))
	}
	mv := legal[i]
	notation := m.board.Notate(mv)
	next, err := m.board.Apply(mv)
	if err != nil {
		return Change{}, false, fmt.Errorf("apply %s: %w", mv.UCI(), err)
	}
	return m.applyLocked(next, mv, notation, now), true, nil
}
