package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chessroom/internal/domain"
)

// Standard is the Oracle for orthodox chess.
type Standard struct{}

func (Standard) NewBoard() Board { return &board{game: nchess.NewGame()} }

type board struct {
	game *nchess.Game
}

func (b *board) Turn() domain.Color {
	if b.game.Position().Turn() == nchess.White {
		return domain.White
	}
	return domain.Black
}

func (b *board) LegalMoves() []Move {
	valid := b.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		out = append(out, Move{
			From:      squareOf(mv.S1()),
			To:        squareOf(mv.S2()),
			Promotion: kindOf(mv.Promo()),
		})
	}
	return out
}

func (b *board) LegalTargets(from Square) []Square {
	var out []Square
	seen := make(map[Square]bool)
	for _, mv := range b.LegalMoves() {
		if mv.From != from || seen[mv.To] {
			continue
		}
		seen[mv.To] = true
		out = append(out, mv.To)
	}
	return out
}

// normalize fills in a queen promotion for a bare pawn move to the last rank.
func (b *board) normalize(m Move) Move {
	if m.Promotion != NoPromotion {
		return m
	}
	for _, mv := range b.LegalMoves() {
		if mv.From == m.From && mv.To == m.To && mv.Promotion == Queen {
			m.Promotion = Queen
			break
		}
	}
	return m
}

func (b *board) IsLegal(m Move) bool {
	m = b.normalize(m)
	for _, mv := range b.LegalMoves() {
		if mv == m {
			return true
		}
	}
	return false
}

func (b *board) Apply(m Move) (Board, error) {
	if !m.From.Valid() || !m.To.Valid() {
		return nil, domain.ErrBadSquare
	}
	m = b.normalize(m)
	if !b.IsLegal(m) {
		return nil, domain.ErrIllegalMove
	}
	next := b.game.Clone()
	mv, err := nchess.UCINotation{}.Decode(next.Position(), m.UCI())
	if err != nil {
		return nil, domain.ErrIllegalMove
	}
	if err := next.Move(mv, nil); err != nil {
		return nil, domain.ErrIllegalMove
	}
	return &board{game: next}, nil
}

func (b *board) Notate(m Move) string {
	m = b.normalize(m)
	pos := b.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, m.UCI())
	if err != nil {
		return m.UCI()
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if strings.TrimSpace(san) == "" {
		return m.UCI()
	}
	return san
}

func (b *board) IsCheck() bool {
	moves := b.game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(nchess.Check)
}

func (b *board) IsCheckmate() bool {
	return b.game.Outcome() != nchess.NoOutcome && b.game.Method() == nchess.Checkmate
}

func (b *board) IsStalemate() bool {
	return b.game.Outcome() == nchess.Draw && b.game.Method() == nchess.Stalemate
}

// IsDraw covers automatic draws plus repetition and fifty-move positions
// that are only claimable under the library's rules.
func (b *board) IsDraw() bool {
	if b.game.Outcome() == nchess.Draw {
		return true
	}
	for _, m := range b.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return true
		}
	}
	return false
}

func (b *board) Matrix() Matrix {
	var out Matrix
	for r := range out {
		for c := range out[r] {
			out[r][c] = "."
		}
	}
	for sq, piece := range b.game.Position().Board().SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		s := squareOf(sq)
		out[s.Row][s.Col] = pieceLetter(piece)
	}
	return out
}

func (b *board) FEN() string { return b.game.FEN() }

func squareOf(sq nchess.Square) Square {
	return Square{Row: 7 - int(sq.Rank()), Col: int(sq.File())}
}

func kindOf(pt nchess.PieceType) PieceKind {
	switch pt {
	case nchess.Queen:
		return Queen
	case nchess.Rook:
		return Rook
	case nchess.Bishop:
		return Bishop
	case nchess.Knight:
		return Knight
	default:
		return NoPromotion
	}
}

func pieceLetter(p nchess.Piece) string {
	var s string
	switch p.Type() {
	case nchess.King:
		s = "k"
	case nchess.Queen:
		s = "q"
	case nchess.Rook:
		s = "r"
	case nchess.Bishop:
		s = "b"
	case nchess.Knight:
		s = "n"
	case nchess.Pawn:
		s = "p"
	default:
		return "."
	}
	if p.Color() == nchess.White {
		return strings.ToUpper(s)
	}
	return s
}
