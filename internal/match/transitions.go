package match

import (
	"time"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/rules"
)

// Settle brings the clock up to date and ends the match if the side to move
// has run out of time. Clock queries and the timeout sweeper both go through
// here. The returned Change has Finished set only if this call ended the
// match; a finished match is left untouched.
func (m *Match) Settle() Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changeLocked(Change{Finished: m.settleLocked(m.now())})
}

// guardActive settles the clock and rejects the transition if the match is
// over. When the settlement itself ended the match the returned Change must
// still be broadcast.
func (m *Match) guardActive() (Change, error) {
	if m.settleLocked(m.now()) {
		return m.changeLocked(Change{Finished: true}), domain.ErrMatchFinished
	}
	if m.finishedLocked() {
		return Change{}, domain.ErrMatchFinished
	}
	return Change{}, nil
}

// Submit plays mv for seat. Any error leaves the match as it was, except that
// a flag fall observed on entry is committed and returned with
// ErrMatchFinished.
func (m *Match) Submit(seat domain.Color, mv rules.Move) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, err := m.guardActive(); err != nil {
		return ch, err
	}
	if seat == domain.NoColor {
		return Change{}, domain.ErrNotSeated
	}
	if seat != m.board.Turn() || (m.cfg.Bot && seat == BotColor) {
		return Change{}, domain.ErrNotYourTurn
	}
	if !mv.From.Valid() || !mv.To.Valid() {
		return Change{}, domain.ErrBadSquare
	}
	if !m.board.IsLegal(mv) {
		return Change{}, domain.ErrIllegalMove
	}
	notation := m.board.Notate(mv)
	next, err := m.board.Apply(mv)
	if err != nil {
		return Change{}, err
	}
	return m.applyLocked(next, mv, notation, m.now()), nil
}

func (m *Match) Resign(seat domain.Color) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, err := m.guardActive(); err != nil {
		return ch, err
	}
	if seat == domain.NoColor {
		return Change{}, domain.ErrNotSeated
	}
	ended, err := m.setOutcomeLocked(domain.WinFor(seat.Opposite()), domain.Resignation, m.now())
	if err != nil {
		return Change{}, err
	}
	return m.changeLocked(Change{Finished: ended}), nil
}

func (m *Match) OfferDraw(seat domain.Color) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, err := m.guardActive(); err != nil {
		return ch, err
	}
	if seat == domain.NoColor {
		return Change{}, domain.ErrNotSeated
	}
	m.drawOffer = seat
	return m.changeLocked(Change{DrawOffered: seat}), nil
}

// RespondDraw accepts or declines the opponent's pending offer.
func (m *Match) RespondDraw(seat domain.Color, accept bool) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, err := m.guardActive(); err != nil {
		return ch, err
	}
	switch {
	case seat == domain.NoColor:
		return Change{}, domain.ErrNotSeated
	case m.drawOffer == domain.NoColor:
		return Change{}, domain.ErrNoDrawOffer
	case m.drawOffer == seat:
		return Change{}, domain.ErrOwnDrawOffer
	}
	if !accept {
		m.drawOffer = domain.NoColor
		return m.changeLocked(Change{DrawDeclined: true}), nil
	}
	ended, err := m.setOutcomeLocked(domain.Draw, domain.Agreement, m.now())
	if err != nil {
		return Change{}, err
	}
	return m.changeLocked(Change{Finished: ended}), nil
}

// Reset starts a new game in place with a fresh board and full clocks. It is
// the only transition allowed on a finished match.
func (m *Match) Reset() Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	was := m.finishedLocked()
	m.board = m.oracle.NewBoard()
	m.clock.Reset(now)
	m.outcome, m.reason = domain.NoOutcome, domain.NoReason
	m.drawOffer = domain.NoColor
	m.moves = 0
	m.history = nil
	m.last = nil
	m.startedAt = now
	m.endedAt = time.Time{}
	m.version++
	return m.changeLocked(Change{Reset: true, WasFinished: was})
}

// LegalTargets settles the clock and lists destinations for the piece on
// from. A finished match has none. The Change is non-empty only when the
// settlement ended the match.
func (m *Match) LegalTargets(from rules.Square) ([]rules.Square, Change, error) {
	if !from.Valid() {
		return nil, Change{}, domain.ErrBadSquare
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleLocked(m.now()) {
		return nil, m.changeLocked(Change{Finished: true}), nil
	}
	if m.finishedLocked() {
		return nil, Change{}, nil
	}
	return m.board.LegalTargets(from), Change{}, nil
}
