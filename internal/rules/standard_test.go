package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chessroom/internal/domain"
)

func sq(t *testing.T, name string) Square {
	t.Helper()
	s, ok := ParseSquare(name)
	require.True(t, ok, name)
	return s
}

func play(t *testing.T, b Board, moves ...string) Board {
	t.Helper()
	for _, m := range moves {
		next, err := b.Apply(Move{From: sq(t, m[:2]), To: sq(t, m[2:4]), Promotion: ParsePromotion(m[4:])})
		require.NoError(t, err, m)
		b = next
	}
	return b
}

func TestSquareMapping(t *testing.T) {
	e2 := sq(t, "e2")
	assert.Equal(t, Square{Row: 6, Col: 4}, e2)
	assert.Equal(t, "a8", Square{Row: 0, Col: 0}.Algebraic())
	assert.Equal(t, "h1", Square{Row: 7, Col: 7}.Algebraic())
	_, ok := ParseSquare("i9")
	assert.False(t, ok)
}

func TestStartingPosition(t *testing.T) {
	b := Standard{}.NewBoard()

	assert.Equal(t, domain.White, b.Turn())
	assert.Len(t, b.LegalMoves(), 20)
	assert.ElementsMatch(t, []Square{sq(t, "e3"), sq(t, "e4")}, b.LegalTargets(sq(t, "e2")))
	assert.Empty(t, b.LegalTargets(sq(t, "e7")), "black pieces cannot move on white's turn")

	m := b.Matrix()
	assert.Equal(t, "r", m[0][0])
	assert.Equal(t, "K", m[7][4])
	assert.Equal(t, ".", m[4][4])
	assert.False(t, b.IsCheck())
}

func TestApplyIsImmutableAndNotates(t *testing.T) {
	b := Standard{}.NewBoard()
	e4 := Move{From: sq(t, "e2"), To: sq(t, "e4")}

	assert.Equal(t, "e4", b.Notate(e4))
	next, err := b.Apply(e4)
	require.NoError(t, err)

	assert.Equal(t, domain.Black, next.Turn())
	assert.Equal(t, "P", next.Matrix()[4][4])
	assert.Equal(t, "P", b.Matrix()[6][4], "original position must be untouched")
	assert.Equal(t, domain.White, b.Turn())
}

func TestApplyRejectsIllegal(t *testing.T) {
	b := Standard{}.NewBoard()

	_, err := b.Apply(Move{From: sq(t, "e2"), To: sq(t, "e5")})
	assert.ErrorIs(t, err, domain.ErrIllegalMove)
	assert.ErrorIs(t, err, domain.ErrIllegalAction)

	_, err = b.Apply(Move{From: Square{Row: 9, Col: 0}, To: sq(t, "a3")})
	assert.ErrorIs(t, err, domain.ErrBadSquare)
	assert.False(t, b.IsLegal(Move{From: sq(t, "e7"), To: sq(t, "e5")}))
}

func TestCheckmateIsTerminal(t *testing.T) {
	b := play(t, Standard{}.NewBoard(), "f2f3", "e7e5", "g2g4", "d8h4")

	assert.True(t, b.IsCheck())
	assert.True(t, b.IsCheckmate())
	assert.Empty(t, b.LegalMoves())
	outcome, reason := Terminal(b)
	assert.Equal(t, domain.BlackWon, outcome)
	assert.Equal(t, domain.Checkmate, reason)
}

func TestBarePromotionDefaultsToQueen(t *testing.T) {
	b := play(t, Standard{}.NewBoard(),
		"h2h4", "g7g5", "h4g5", "h7h6", "g5h6", "f8g7", "h6g7", "g8f6")

	promo := Move{From: sq(t, "g7"), To: sq(t, "h8")}
	assert.True(t, b.IsLegal(promo))
	assert.Contains(t, b.Notate(promo), "=Q")

	next, err := b.Apply(promo)
	require.NoError(t, err)
	assert.Equal(t, "Q", next.Matrix()[0][7])

	under, err := b.Apply(Move{From: sq(t, "g7"), To: sq(t, "h8"), Promotion: Knight})
	require.NoError(t, err)
	assert.Equal(t, "N", under.Matrix()[0][7])
}

func TestParsePromotion(t *testing.T) {
	assert.Equal(t, NoPromotion, ParsePromotion(""))
	assert.Equal(t, Rook, ParsePromotion("R"))
	assert.Equal(t, Queen, ParsePromotion("x"))
	assert.Equal(t, "e7e8n", Move{From: Square{Row: 1, Col: 4}, To: Square{Row: 0, Col: 4}, Promotion: Knight}.UCI())
}
