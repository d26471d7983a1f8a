// Package rooms is the session command surface. It routes each command
// through the registry to the room's match, then commits the resulting
// change: broadcast, persistence and opponent scheduling all happen after the
// match guard has been released.
package rooms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/persist"
	"github.com/park285/chessroom/internal/registry"
	"github.com/park285/chessroom/internal/rules"
	"github.com/park285/chessroom/pkg/roomdto"
)

const (
	defaultTimeControl = 300 * time.Second
	maxTimeControl     = 3 * time.Hour
	maxChatRunes       = 500
)

// Publisher delivers events to everyone in a room.
type Publisher interface {
	Publish(ctx context.Context, room string, ev roomdto.Event) error
	PublishExcept(ctx context.Context, room, skip string, ev roomdto.Event) error
}

// Scheduler starts an opponent task for a match whose bot is to move.
type Scheduler interface {
	Schedule(ctx context.Context, m *match.Match) bool
}

type Service struct {
	reg    *registry.Registry
	oracle rules.Oracle
	pub    Publisher
	rec    persist.Recorder
	bot    Scheduler
	base   context.Context

	control   func(seconds int) time.Duration
	now       func() time.Time
	newID     func() string
	matchOpts []match.Option
}

type Option func(*Service)

func WithRecorder(r persist.Recorder) Option {
	return func(s *Service) { s.rec = r }
}

// WithTimeControl sets how a requested time control in seconds is turned into
// a clock budget.
func WithTimeControl(fn func(seconds int) time.Duration) Option {
	return func(s *Service) { s.control = fn }
}

// WithNow replaces the wall clock for the service and every match it creates.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.matchOpts = append(s.matchOpts, match.WithNow(now))
	}
}

// WithIDs replaces the persistence correlation id generator.
func WithIDs(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithBaseContext sets the context opponent tasks run under. It should
// outlive individual connections.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) { s.base = ctx }
}

func New(reg *registry.Registry, oracle rules.Oracle, pub Publisher, opts ...Option) *Service {
	s := &Service{
		reg:     reg,
		oracle:  oracle,
		pub:     pub,
		base:    context.Background(),
		control: clampControl,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachOpponent wires the opponent runner. The runner itself reports back
// through OpponentMoved, so it is attached after construction.
func (s *Service) AttachOpponent(sch Scheduler) { s.bot = sch }

func clampControl(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultTimeControl
	}
	d := time.Duration(seconds) * time.Second
	if d > maxTimeControl {
		return maxTimeControl
	}
	return d
}

// MatchTimedOut commits a timeout found by the sweeper.
func (s *Service) MatchTimedOut(ctx context.Context, m *match.Match, ch match.Change) {
	s.commit(ctx, m, ch)
}

// OpponentMoved commits the result of an opponent task.
func (s *Service) OpponentMoved(ctx context.Context, m *match.Match, ch match.Change) {
	s.commit(ctx, m, ch)
}

// commit publishes a state-changing transition and records it. Changes from
// a match that has since been removed or replaced are dropped.
func (s *Service) commit(ctx context.Context, m *match.Match, ch match.Change) {
	if ch.Move == nil && !ch.Finished && !ch.Reset {
		return
	}
	room := m.Room()
	if !s.reg.Holds(room, m) {
		return
	}
	s.publish(ctx, room, "", roomdto.EventGameUpdate, updateOf(ch))

	rec, hasRec := s.reg.Record(room, m)
	snap := ch.Snapshot
	if ch.Move != nil {
		obslog.L().Debug("match_move",
			zap.String("room", room),
			zap.String("by", ch.Move.By.String()),
			zap.String("move", ch.Move.Move.UCI()),
			zap.String("san", ch.Move.Notation),
		)
		if hasRec {
			entry := persist.MoveEntry{Number: ch.Move.Number, Notation: ch.Move.Notation, At: s.now()}
			s.persist(ctx, "move", rec.ID, func(ctx context.Context) error { return s.rec.RecordMove(ctx, rec.ID, entry) })
		}
	}
	if ch.Finished {
		obslog.L().Info("match_finish",
			zap.String("room", room),
			zap.String("winner", snap.Outcome.Winner()),
			zap.String("reason", snap.Reason.String()),
			zap.Int("moves", snap.Moves),
		)
		if hasRec {
			res := persist.Result{
				Winner:     snap.Outcome.Winner(),
				Reason:     snap.Reason.String(),
				EndedAt:    snap.EndedAt,
				History:    ch.History,
				TotalMoves: snap.Moves,
			}
			s.persist(ctx, "end", rec.ID, func(ctx context.Context) error { return s.rec.EndMatch(ctx, rec.ID, res) })
		}
	}
	if ch.BotToMove() && s.bot != nil {
		s.bot.Schedule(s.base, m)
	}
}

func (s *Service) publish(ctx context.Context, room, skip, typ string, data any) {
	ev := roomdto.Event{Type: typ, Data: data}
	var err error
	if skip == "" {
		err = s.pub.Publish(ctx, room, ev)
	} else {
		err = s.pub.PublishExcept(ctx, room, skip, ev)
	}
	if err != nil {
		obslog.L().Warn("broadcast_error", zap.String("room", room), zap.String("type", typ), zap.Error(err))
	}
}

// persist runs one recorder call. Failures are logged and never returned.
func (s *Service) persist(ctx context.Context, op, id string, fn func(ctx context.Context) error) {
	if s.rec == nil || id == "" {
		return
	}
	if err := fn(ctx); err != nil && !errors.Is(err, persist.ErrQueueFull) {
		obslog.L().Warn("persist_error", zap.String("op", op), zap.String("record", id), zap.Error(err))
	}
}

func (s *Service) persistCreate(ctx context.Context, rec registry.Record, snap match.Snapshot) {
	info := persist.MatchInfo{
		ID:          rec.ID,
		Room:        snap.Room,
		White:       rec.White,
		Black:       rec.Black,
		TimeControl: snap.TimeControl,
		Bot:         snap.Bot,
		StartedAt:   snap.StartedAt,
	}
	s.persist(ctx, "create", rec.ID, func(ctx context.Context) error { return s.rec.CreateMatch(ctx, info) })
}
