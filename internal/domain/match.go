package domain

import "strings"

// Color identifies a side of the board.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return ""
	}
}

// Opposite returns the other side. NoColor maps to itself.
func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func ParseColor(s string) Color {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White
	case "black", "b":
		return Black
	default:
		return NoColor
	}
}

// Outcome is the recorded result of a match.
type Outcome uint8

const (
	NoOutcome Outcome = iota
	WhiteWon
	BlackWon
	Draw
)

// Winner renders the outcome the way clients expect it ("white", "black",
// "draw" or "").
func (o Outcome) Winner() string {
	switch o {
	case WhiteWon:
		return "white"
	case BlackWon:
		return "black"
	case Draw:
		return "draw"
	default:
		return ""
	}
}

// WinFor returns the outcome in which c wins.
func WinFor(c Color) Outcome {
	switch c {
	case White:
		return WhiteWon
	case Black:
		return BlackWon
	default:
		return NoOutcome
	}
}

// Reason explains how a match ended.
type Reason uint8

const (
	NoReason Reason = iota
	Checkmate
	Timeout
	Resignation
	Agreement
	DrawRule
)

func (r Reason) String() string {
	switch r {
	case Checkmate:
		return "checkmate"
	case Timeout:
		return "timeout"
	case Resignation:
		return "resign"
	case Agreement:
		return "agreement"
	case DrawRule:
		return "draw"
	default:
		return ""
	}
}

// BotPlayer marks the synthetic opponent's seat.
const BotPlayer = "bot"
