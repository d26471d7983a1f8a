package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const journalTTL = 24 * time.Hour

func journalKey(id string) string { return "chessroom:match:" + strings.TrimSpace(id) }
func movesKey(id string) string   { return journalKey(id) + ":moves" }
func chatKey(id string) string    { return journalKey(id) + ":chat" }

// Journal keeps a short-lived copy of each match in Redis so that other
// nodes and operators can inspect recent rooms.
type Journal struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewJournal(rdb *redis.Client) *Journal {
	return &Journal{rdb: rdb, ttl: journalTTL}
}

// JournalEntry is a record read back from Redis.
type JournalEntry struct {
	Info    MatchInfo
	Status  string
	Winner  string
	Reason  string
	EndedAt time.Time
	Total   int
	PGN     string
	Moves   []MoveEntry
	Chat    []ChatEntry
}

func (j *Journal) CreateMatch(ctx context.Context, info MatchInfo) error {
	key := journalKey(info.ID)
	_, err := j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "status", StatusActive)
		pipe.HSetNX(ctx, key, "started_at", info.StartedAt.UTC().Format(time.RFC3339Nano))
		pipe.HSet(ctx, key,
			"room", info.Room,
			"white", info.White,
			"black", info.Black,
			"time_control", int(info.TimeControl/time.Second),
			"bot", strconv.FormatBool(info.Bot),
		)
		pipe.Expire(ctx, key, j.ttl)
		return nil
	})
	return err
}

func (j *Journal) RecordMove(ctx context.Context, id string, mv MoveEntry) error {
	if err := j.mustExist(ctx, id); err != nil {
		return err
	}
	raw, err := json.Marshal(mv)
	if err != nil {
		return err
	}
	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, movesKey(id), raw)
		pipe.LTrim(ctx, movesKey(id), -lastMovesCap, -1)
		pipe.HSet(ctx, journalKey(id), "total_moves", mv.Number)
		pipe.Expire(ctx, movesKey(id), j.ttl)
		return nil
	})
	return err
}

func (j *Journal) RecordChat(ctx context.Context, id string, msg ChatEntry) error {
	if err := j.mustExist(ctx, id); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, chatKey(id), raw)
		pipe.Expire(ctx, chatKey(id), j.ttl)
		return nil
	})
	return err
}

func (j *Journal) EndMatch(ctx context.Context, id string, res Result) error {
	e, err := j.Load(ctx, id)
	if err != nil {
		return err
	}
	h := pgnHeader{Room: e.Info.Room, White: e.Info.White, Black: e.Info.Black, TimeControl: e.Info.TimeControl, Date: res.EndedAt}
	return j.rdb.HSet(ctx, journalKey(id),
		"status", StatusCompleted,
		"winner", res.Winner,
		"reason", res.Reason,
		"ended_at", res.EndedAt.UTC().Format(time.RFC3339Nano),
		"total_moves", res.TotalMoves,
		"pgn", buildPGN(h, res),
	).Err()
}

func (j *Journal) AbandonMatch(ctx context.Context, id string) error {
	status, err := j.rdb.HGet(ctx, journalKey(id), "status").Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	if err != nil {
		return err
	}
	if status != StatusActive {
		return nil
	}
	return j.rdb.HSet(ctx, journalKey(id), "status", StatusAbandoned).Err()
}

func (j *Journal) mustExist(ctx context.Context, id string) error {
	n, err := j.rdb.Exists(ctx, journalKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	return nil
}

// Load reads a record with its recent moves and chat.
func (j *Journal) Load(ctx context.Context, id string) (*JournalEntry, error) {
	var (
		fields *redis.MapStringStringCmd
		moves  *redis.StringSliceCmd
		chat   *redis.StringSliceCmd
	)
	_, err := j.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, journalKey(id))
		moves = pipe.LRange(ctx, movesKey(id), 0, -1)
		chat = pipe.LRange(ctx, chatKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	h := fields.Val()
	if len(h) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}

	e := &JournalEntry{
		Info: MatchInfo{
			ID:    id,
			Room:  h["room"],
			White: h["white"],
			Black: h["black"],
			Bot:   h["bot"] == "true",
		},
		Status: h["status"],
		Winner: h["winner"],
		Reason: h["reason"],
		PGN:    h["pgn"],
	}
	if n, err := strconv.Atoi(h["time_control"]); err == nil {
		e.Info.TimeControl = time.Duration(n) * time.Second
	}
	e.Total, _ = strconv.Atoi(h["total_moves"])
	e.Info.StartedAt, _ = time.Parse(time.RFC3339Nano, h["started_at"])
	if v := h["ended_at"]; v != "" {
		e.EndedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	for _, raw := range moves.Val() {
		var mv MoveEntry
		if err := json.Unmarshal([]byte(raw), &mv); err == nil {
			e.Moves = append(e.Moves, mv)
		}
	}
	for _, raw := range chat.Val() {
		var msg ChatEntry
		if err := json.Unmarshal([]byte(raw), &msg); err == nil {
			e.Chat = append(e.Chat, msg)
		}
	}
	return e, nil
}
