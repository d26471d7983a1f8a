package rooms

import (
	"github.com/park285/chessroom/internal/clock"
	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/rules"
	"github.com/park285/chessroom/pkg/roomdto"
)

func squareOf(sq rules.Square) roomdto.Square {
	return roomdto.Square{Row: sq.Row, Col: sq.Col}
}

func ruleSquare(sq roomdto.Square) rules.Square {
	return rules.Square{Row: sq.Row, Col: sq.Col}
}

func stateOf(s match.Snapshot) roomdto.State {
	return roomdto.State{
		Board:              [8][8]string(s.Board),
		Turn:               s.Turn.String(),
		Check:              s.Check,
		Winner:             roomdto.StringPtr(s.Outcome.Winner()),
		Reason:             roomdto.StringPtr(s.Reason.String()),
		WhiteTime:          clock.Seconds(s.White),
		BlackTime:          clock.Seconds(s.Black),
		WhiteTimeFormatted: clock.Format(s.White),
		BlackTimeFormatted: clock.Format(s.Black),
		Moves:              s.Moves,
		DrawOffer:          roomdto.StringPtr(s.DrawOffer.String()),
		Bot:                s.Bot,
	}
}

func timesOf(s match.Snapshot) roomdto.TimeUpdate {
	return roomdto.TimeUpdate{
		WhiteTime:          clock.Seconds(s.White),
		BlackTime:          clock.Seconds(s.Black),
		WhiteTimeFormatted: clock.Format(s.White),
		BlackTimeFormatted: clock.Format(s.Black),
	}
}

func updateOf(ch match.Change) roomdto.GameUpdate {
	up := roomdto.GameUpdate{State: stateOf(ch.Snapshot)}
	if ch.Move != nil {
		up.LastMove = &roomdto.LastMove{From: squareOf(ch.Move.Move.From), To: squareOf(ch.Move.Move.To)}
		up.MoveNotation = roomdto.StringPtr(ch.Move.Notation)
	}
	return up
}

// senderOf names a chat or typing sender by seat.
func senderOf(seat domain.Color) string {
	if seat == domain.NoColor {
		return "spectator"
	}
	return seat.String()
}
