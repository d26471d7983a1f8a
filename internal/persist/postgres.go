package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chessroom/pkg/roomdto"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
    id TEXT PRIMARY KEY,
    room_name TEXT NOT NULL,
    game_status TEXT NOT NULL DEFAULT 'active',
    white_player_name TEXT,
    black_player_name TEXT,
    winner TEXT,
    game_result TEXT,
    total_moves INTEGER NOT NULL DEFAULT 0,
    time_control INTEGER NOT NULL,
    game_duration INTEGER,
    is_bot_game BOOLEAN NOT NULL DEFAULT FALSE,
    started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ended_at TIMESTAMPTZ,
    last_moves JSONB NOT NULL DEFAULT '[]'::jsonb,
    chat_history JSONB NOT NULL DEFAULT '[]'::jsonb,
    pgn TEXT
);
CREATE INDEX IF NOT EXISTS idx_games_room ON games(room_name);
CREATE INDEX IF NOT EXISTS idx_games_started ON games(started_at);
CREATE INDEX IF NOT EXISTS idx_games_status ON games(game_status);
CREATE INDEX IF NOT EXISTS idx_games_white ON games(white_player_name);
CREATE INDEX IF NOT EXISTS idx_games_black ON games(black_player_name);
`

// Postgres stores one row per match in the games table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) CreateMatch(ctx context.Context, info MatchInfo) error {
	const q = `INSERT INTO games (
        id, room_name, white_player_name, black_player_name,
        time_control, is_bot_game, started_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7)
      ON CONFLICT (id) DO UPDATE SET
        white_player_name=EXCLUDED.white_player_name,
        black_player_name=EXCLUDED.black_player_name`
	_, err := p.db.ExecContext(ctx, q,
		info.ID, info.Room, nullString(info.White), nullString(info.Black),
		int(info.TimeControl/time.Second), info.Bot, info.StartedAt,
	)
	return err
}

func (p *Postgres) RecordMove(ctx context.Context, id string, mv MoveEntry) error {
	return p.appendJSON(ctx, id, "last_moves", mv, lastMovesCap, mv.Number)
}

func (p *Postgres) RecordChat(ctx context.Context, id string, msg ChatEntry) error {
	return p.appendJSON(ctx, id, "chat_history", msg, 0, -1)
}

// appendJSON appends entry to a JSONB list column under a row lock. A
// non-negative moves also updates total_moves.
func (p *Postgres) appendJSON(ctx context.Context, id, column string, entry any, max, moves int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx, "SELECT "+column+" FROM games WHERE id = $1 FOR UPDATE", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	if err != nil {
		return err
	}
	next, err := appendCapped(raw, entry, max)
	if err != nil {
		return err
	}
	if moves >= 0 {
		_, err = tx.ExecContext(ctx, "UPDATE games SET "+column+" = $2, total_moves = $3 WHERE id = $1", id, string(next), moves)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE games SET "+column+" = $2 WHERE id = $1", id, string(next))
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) EndMatch(ctx context.Context, id string, res Result) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		h            pgnHeader
		white, black sql.NullString
		control      int
		started      time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT room_name, white_player_name, black_player_name, time_control, started_at
           FROM games WHERE id = $1 FOR UPDATE`, id,
	).Scan(&h.Room, &white, &black, &control, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownMatch, id)
	}
	if err != nil {
		return err
	}
	h.White, h.Black = white.String, black.String
	h.TimeControl = time.Duration(control) * time.Second
	h.Date = res.EndedAt

	_, err = tx.ExecContext(ctx,
		`UPDATE games SET game_status = $2, winner = $3, game_result = $4, ended_at = $5,
            game_duration = $6, total_moves = $7, pgn = $8
          WHERE id = $1`,
		id, StatusCompleted, res.Winner, res.Reason, res.EndedAt,
		durationSeconds(started, res.EndedAt), res.TotalMoves, buildPGN(h, res),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// AbandonMatch leaves completed rows alone.
func (p *Postgres) AbandonMatch(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE games SET game_status = $2, ended_at = NOW() WHERE id = $1 AND game_status = $3`,
		id, StatusAbandoned, StatusActive)
	return err
}

func (p *Postgres) RecentGames(ctx context.Context, limit int) ([]roomdto.GameSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, room_name, COALESCE(white_player_name,''), COALESCE(black_player_name,''),
            COALESCE(winner,''), COALESCE(game_result,''), total_moves, COALESCE(game_duration,0),
            is_bot_game, started_at, ended_at
           FROM games WHERE game_status = $1
          ORDER BY ended_at DESC LIMIT $2`,
		StatusCompleted, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []roomdto.GameSummary{}
	for rows.Next() {
		var (
			g     roomdto.GameSummary
			ended sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.Room, &g.White, &g.Black, &g.Winner, &g.Result,
			&g.TotalMoves, &g.DurationSec, &g.Bot, &g.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			g.EndedAt = &ended.Time
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// perPlayer flattens completed games to one row per seated player.
const perPlayer = `
    SELECT white_player_name AS player, 'white' AS color, winner, ended_at
      FROM games WHERE game_status = 'completed' AND white_player_name IS NOT NULL
    UNION ALL
    SELECT black_player_name AS player, 'black' AS color, winner, ended_at
      FROM games WHERE game_status = 'completed' AND black_player_name IS NOT NULL`

const tally = `COUNT(*),
    COALESCE(SUM(CASE WHEN winner = color THEN 1 ELSE 0 END), 0) AS wins,
    COALESCE(SUM(CASE WHEN winner <> color AND winner <> 'draw' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN winner = 'draw' THEN 1 ELSE 0 END), 0),
    MAX(ended_at)`

func (p *Postgres) PlayerStats(ctx context.Context, player string) (roomdto.PlayerStats, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+tally+" FROM ("+perPlayer+") g WHERE player = $1", player)
	st, err := scanStats(row)
	st.Player = player
	return st, err
}

func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]roomdto.PlayerStats, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT player, "+tally+" FROM ("+perPlayer+") g GROUP BY player ORDER BY wins DESC, COUNT(*) ASC, player LIMIT $1",
		clampLimit(limit, 10, 100))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []roomdto.PlayerStats{}
	for rows.Next() {
		var (
			st   roomdto.PlayerStats
			last sql.NullTime
		)
		if err := rows.Scan(&st.Player, &st.TotalGames, &st.Wins, &st.Losses, &st.Draws, &last); err != nil {
			return nil, err
		}
		finishStats(&st, last)
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStats(row *sql.Row) (roomdto.PlayerStats, error) {
	var (
		st   roomdto.PlayerStats
		last sql.NullTime
	)
	if err := row.Scan(&st.TotalGames, &st.Wins, &st.Losses, &st.Draws, &last); err != nil {
		return st, err
	}
	finishStats(&st, last)
	return st, nil
}

func finishStats(st *roomdto.PlayerStats, last sql.NullTime) {
	st.WinRate = winRate(st.Wins, st.TotalGames)
	if last.Valid {
		st.LastPlayed = &last.Time
	}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
