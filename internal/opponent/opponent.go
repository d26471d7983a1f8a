// Package opponent runs the synthetic player's moves.
//
// A task settles the clock under the match guard, thinks with no lock held,
// then re-validates the match before playing a uniformly random legal move.
// Anything committed while it was thinking turns the task into a no-op.
package opponent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/obslog"
)

// DefaultDelay is the simulated thinking time.
const DefaultDelay = time.Second

// Handler receives changes committed by a task, after the guard is released.
type Handler interface {
	OpponentMoved(ctx context.Context, m *match.Match, ch match.Change)
}

type HandlerFunc func(ctx context.Context, m *match.Match, ch match.Change)

func (f HandlerFunc) OpponentMoved(ctx context.Context, m *match.Match, ch match.Change) {
	f(ctx, m, ch)
}

type Runner struct {
	handler Handler
	delay   time.Duration
	pick    func(n int) int
	sleep   func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Runner)

func WithDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

// WithPicker replaces the uniform random choice among n legal moves.
func WithPicker(pick func(n int) int) Option {
	return func(r *Runner) { r.pick = pick }
}

// WithSleep replaces the thinking pause, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

func New(h Handler, opts ...Option) *Runner {
	r := &Runner{handler: h, delay: DefaultDelay, pick: rand.IntN, sleep: sleepContext}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule starts a task for m in its own goroutine. After Close it does
// nothing and reports false.
func (r *Runner) Schedule(ctx context.Context, m *match.Match) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		obslog.L().Debug("bot_schedule_closed", zap.String("room", m.Room()))
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Play(ctx, m)
	}()
	return true
}

// Wait blocks until every scheduled task has returned.
func (r *Runner) Wait() { r.wg.Wait() }

// Close refuses further tasks and waits for the running ones.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// Play runs one task to completion and reports whether it committed a move.
func (r *Runner) Play(ctx context.Context, m *match.Match) (moved bool) {
	defer func() {
		if rec := recover(); rec != nil {
			obslog.L().Error("bot_error", zap.String("room", m.Room()), zap.Error(fmt.Errorf("panic: %v", rec)))
			moved = false
		}
	}()

	ticket, ch, ok := m.BeginOpponent()
	if ch.Finished {
		r.emit(ctx, m, ch)
	}
	if !ok {
		return false
	}

	if err := r.sleep(ctx, r.delay); err != nil {
		obslog.L().Debug("bot_abort", zap.String("room", m.Room()), zap.Error(err))
		return false
	}

	ch, ok, err := m.FinishOpponent(ticket, r.pick)
	if err != nil {
		obslog.L().Error("bot_error", zap.String("room", m.Room()), zap.Error(err))
		return false
	}
	if !ok {
		obslog.L().Debug("bot_abort", zap.String("room", m.Room()), zap.String("reason", "stale"))
		return false
	}
	if ch.Move != nil {
		obslog.L().Info("bot_move",
			zap.String("room", m.Room()),
			zap.String("move", ch.Move.Move.UCI()),
			zap.String("san", ch.Move.Notation),
		)
	}
	r.emit(ctx, m, ch)
	return ch.Move != nil
}

func (r *Runner) emit(ctx context.Context, m *match.Match, ch match.Change) {
	if r.handler != nil {
		r.handler.OpponentMoved(ctx, m, ch)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
