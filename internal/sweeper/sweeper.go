// Package sweeper ends matches whose running clock has reached zero, whether
// or not any client is polling.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/obslog"
)

// DefaultInterval is the sweep cadence.
const DefaultInterval = 500 * time.Millisecond

type Source interface {
	Snapshot() []*match.Match
}

// Handler receives matches ended by a sweep. It runs after the match guard
// is released.
type Handler interface {
	MatchTimedOut(ctx context.Context, m *match.Match, ch match.Change)
}

type HandlerFunc func(ctx context.Context, m *match.Match, ch match.Change)

func (f HandlerFunc) MatchTimedOut(ctx context.Context, m *match.Match, ch match.Change) {
	f(ctx, m, ch)
}

type Sweeper struct {
	src      Source
	handler  Handler
	interval time.Duration
}

func New(src Source, handler Handler, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{src: src, handler: handler, interval: interval}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep settles every registered match once and returns how many it ended.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ended := 0
	for _, m := range s.src.Snapshot() {
		ok, err := s.sweepOne(ctx, m)
		if err != nil {
			obslog.L().Error("sweep_room_error", zap.String("room", m.Room()), zap.Error(err))
			continue
		}
		if ok {
			ended++
		}
	}
	return ended
}

func (s *Sweeper) sweepOne(ctx context.Context, m *match.Match) (ended bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ch := m.Settle()
	if !ch.Finished {
		return false, nil
	}
	obslog.L().Info("sweep_timeout",
		zap.String("room", m.Room()),
		zap.String("winner", ch.Snapshot.Outcome.Winner()),
	)
	if s.handler != nil {
		s.handler.MatchTimedOut(ctx, m, ch)
	}
	return true, nil
}
