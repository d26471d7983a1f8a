package persist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPGN(t *testing.T) {
	h := pgnHeader{
		Room:        "lobby",
		White:       `Ann "the rook"`,
		Black:       "Bob",
		TimeControl: 5 * time.Minute,
		Date:        time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	pgn := buildPGN(h, Result{Winner: "black", Reason: "checkmate", History: []string{"f3", "e5", "g4", "Qh4#"}})

	assert.Contains(t, pgn, `[Date "2026.03.04"]`)
	assert.Contains(t, pgn, `[White "Ann 'the rook'"]`)
	assert.Contains(t, pgn, `[TimeControl "300"]`)
	assert.Contains(t, pgn, `[Termination "checkmate"]`)
	assert.Contains(t, pgn, `[Result "0-1"]`)
	assert.Contains(t, pgn, "1. f3 e5 2. g4 Qh4# 0-1")
}

func TestResultToPGN(t *testing.T) {
	assert.Equal(t, "1-0", resultToPGN("white"))
	assert.Equal(t, "0-1", resultToPGN("Black"))
	assert.Equal(t, "1/2-1/2", resultToPGN("draw"))
	assert.Equal(t, "*", resultToPGN(""))
}

func TestAppendCappedKeepsTail(t *testing.T) {
	var raw []byte
	var err error
	for i := 1; i <= 25; i++ {
		raw, err = appendCapped(raw, MoveEntry{Number: i, Notation: "e4"}, lastMovesCap)
		require.NoError(t, err)
	}
	var got []MoveEntry
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, lastMovesCap)
	assert.Equal(t, 6, got[0].Number)
	assert.Equal(t, 25, got[len(got)-1].Number)

	_, err = appendCapped([]byte("{"), MoveEntry{}, 1)
	assert.Error(t, err)
}

func TestWinRate(t *testing.T) {
	assert.Zero(t, winRate(0, 0))
	assert.Equal(t, 66.67, winRate(2, 3))
	assert.Equal(t, 100.0, winRate(4, 4))
}
