// Package rules defines what the match core needs from a move-legality engine
// and provides an implementation backed by corentings/chess.
package rules

import (
	"strings"

	"github.com/park285/chessroom/internal/domain"
)

// Square uses board-matrix coordinates: row 0 is rank 8, col 0 is file a.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < 8 && s.Col >= 0 && s.Col < 8
}

// Algebraic returns the square name, e.g. "e4".
func (s Square) Algebraic() string {
	if !s.Valid() {
		return ""
	}
	return string(rune('a'+s.Col)) + string(rune('8'-s.Row))
}

// ParseSquare reads an algebraic square name.
func ParseSquare(name string) (Square, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) != 2 {
		return Square{}, false
	}
	sq := Square{Row: int('8' - name[1]), Col: int(name[0] - 'a')}
	return sq, sq.Valid()
}

type PieceKind uint8

const (
	NoPromotion PieceKind = iota
	Queen
	Rook
	Bishop
	Knight
)

func (k PieceKind) letter() string {
	switch k {
	case Queen:
		return "q"
	case Rook:
		return "r"
	case Bishop:
		return "b"
	case Knight:
		return "n"
	default:
		return ""
	}
}

// ParsePromotion maps q/r/b/n to a piece kind. Empty input means no
// promotion was requested; anything else unknown falls back to a queen.
func ParsePromotion(s string) PieceKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoPromotion
	case "r":
		return Rook
	case "b":
		return Bishop
	case "n":
		return Knight
	default:
		return Queen
	}
}

type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
}

// UCI renders the move in long algebraic form, e.g. "e7e8q".
func (m Move) UCI() string {
	return m.From.Algebraic() + m.To.Algebraic() + m.Promotion.letter()
}

// Matrix is the board as rows of piece letters, "." for empty squares and
// uppercase for white.
type Matrix [8][8]string

// Board is one immutable position. Apply returns a new Board.
type Board interface {
	Turn() domain.Color
	LegalTargets(from Square) []Square
	LegalMoves() []Move
	IsLegal(mv Move) bool
	Apply(mv Move) (Board, error)
	// Notate describes mv, played from this position, in standard notation.
	Notate(mv Move) string
	IsCheck() bool
	IsCheckmate() bool
	IsStalemate() bool
	IsDraw() bool
	Matrix() Matrix
	FEN() string
}

// Oracle produces fresh starting positions.
type Oracle interface {
	NewBoard() Board
}

// Terminal classifies b. It returns NoOutcome while play can continue.
func Terminal(b Board) (domain.Outcome, domain.Reason) {
	switch {
	case b.IsCheckmate():
		return domain.WinFor(b.Turn().Opposite()), domain.Checkmate
	case b.IsStalemate(), b.IsDraw():
		return domain.Draw, domain.DrawRule
	default:
		return domain.NoOutcome, domain.NoReason
	}
}
