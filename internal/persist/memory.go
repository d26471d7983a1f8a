package persist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/chessroom/pkg/roomdto"
)

type memRecord struct {
	info    MatchInfo
	status  string
	winner  string
	reason  string
	endedAt time.Time
	total   int
	moves   []MoveEntry
	chat    []ChatEntry
	pgn     string
}

// Memory is an in-process Recorder and History used when no database is
// configured.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*memRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*memRecord)}
}

func (m *Memory) CreateMatch(_ context.Context, info MatchInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[info.ID]; ok {
		rec.info.White, rec.info.Black = info.White, info.Black
		return nil
	}
	m.records[info.ID] = &memRecord{info: info, status: StatusActive}
	return nil
}

func (m *Memory) RecordMove(_ context.Context, id string, mv MoveEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	rec.moves = append(rec.moves, mv)
	if len(rec.moves) > lastMovesCap {
		rec.moves = append([]MoveEntry(nil), rec.moves[len(rec.moves)-lastMovesCap:]...)
	}
	rec.total = mv.Number
	return nil
}

func (m *Memory) RecordChat(_ context.Context, id string, msg ChatEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	rec.chat = append(rec.chat, msg)
	return nil
}

func (m *Memory) EndMatch(_ context.Context, id string, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	rec.status = StatusCompleted
	rec.winner, rec.reason = res.Winner, res.Reason
	rec.endedAt = res.EndedAt
	rec.total = res.TotalMoves
	rec.pgn = buildPGN(pgnHeader{
		Room: rec.info.Room, White: rec.info.White, Black: rec.info.Black,
		TimeControl: rec.info.TimeControl, Date: res.EndedAt,
	}, res)
	return nil
}

func (m *Memory) AbandonMatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	if rec.status == StatusActive {
		rec.status = StatusAbandoned
		rec.endedAt = time.Now()
	}
	return nil
}

// Status reports the stored status of a record.
func (m *Memory) Status(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// Moves returns the recent moves kept for a record.
func (m *Memory) Moves(id string) []MoveEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[id]; ok {
		return append([]MoveEntry(nil), rec.moves...)
	}
	return nil
}

func (m *Memory) Chat(id string) []ChatEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[id]; ok {
		return append([]ChatEntry(nil), rec.chat...)
	}
	return nil
}

func (m *Memory) PGN(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[id]; ok {
		return rec.pgn
	}
	return ""
}

func (m *Memory) completed() []*memRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*memRecord, 0, len(m.records))
	for _, rec := range m.records {
		if rec.status == StatusCompleted {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

func (m *Memory) RecentGames(_ context.Context, limit int) ([]roomdto.GameSummary, error) {
	recs := m.completed()
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].endedAt.Equal(recs[j].endedAt) {
			return recs[i].endedAt.After(recs[j].endedAt)
		}
		return recs[i].info.ID > recs[j].info.ID
	})
	if n := clampLimit(limit, 20, 100); len(recs) > n {
		recs = recs[:n]
	}
	out := make([]roomdto.GameSummary, 0, len(recs))
	for _, rec := range recs {
		ended := rec.endedAt
		out = append(out, roomdto.GameSummary{
			ID:          rec.info.ID,
			Room:        rec.info.Room,
			White:       rec.info.White,
			Black:       rec.info.Black,
			Winner:      rec.winner,
			Result:      rec.reason,
			TotalMoves:  rec.total,
			DurationSec: durationSeconds(rec.info.StartedAt, rec.endedAt),
			Bot:         rec.info.Bot,
			StartedAt:   rec.info.StartedAt,
			EndedAt:     &ended,
		})
	}
	return out, nil
}

func (m *Memory) tally() map[string]*roomdto.PlayerStats {
	stats := make(map[string]*roomdto.PlayerStats)
	count := func(player, color string, rec *memRecord) {
		player = strings.TrimSpace(player)
		if player == "" {
			return
		}
		st, ok := stats[player]
		if !ok {
			st = &roomdto.PlayerStats{Player: player}
			stats[player] = st
		}
		st.TotalGames++
		switch rec.winner {
		case color:
			st.Wins++
		case "draw":
			st.Draws++
		default:
			st.Losses++
		}
		if st.LastPlayed == nil || rec.endedAt.After(*st.LastPlayed) {
			ended := rec.endedAt
			st.LastPlayed = &ended
		}
	}
	for _, rec := range m.completed() {
		count(rec.info.White, "white", rec)
		count(rec.info.Black, "black", rec)
	}
	for _, st := range stats {
		st.WinRate = winRate(st.Wins, st.TotalGames)
	}
	return stats
}

func (m *Memory) PlayerStats(_ context.Context, player string) (roomdto.PlayerStats, error) {
	if st, ok := m.tally()[strings.TrimSpace(player)]; ok {
		return *st, nil
	}
	return roomdto.PlayerStats{Player: player}, nil
}

func (m *Memory) Leaderboard(_ context.Context, limit int) ([]roomdto.PlayerStats, error) {
	stats := m.tally()
	out := make([]roomdto.PlayerStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.TotalGames != b.TotalGames {
			return a.TotalGames < b.TotalGames
		}
		return a.Player < b.Player
	})
	if n := clampLimit(limit, 10, 100); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
