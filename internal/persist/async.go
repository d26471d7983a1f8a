package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/obslog"
)

var (
	ErrQueueFull = errors.New("persist queue full")
	ErrClosed    = errors.New("persist executor closed")
)

type job struct {
	id string
	op string
	fn func(ctx context.Context) error
}

// Async runs recorder calls off the caller's goroutine. Calls for the same
// record id share a lane and run in submission order. A full lane drops the
// call.
type Async struct {
	rec     Recorder
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	lanes  []chan job
	wg     sync.WaitGroup
}

func NewAsync(rec Recorder, workers, queue int, timeout time.Duration) *Async {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	a := &Async{rec: rec, timeout: timeout, lanes: make([]chan job, workers)}
	for i := range a.lanes {
		lane := make(chan job, queue)
		a.lanes[i] = lane
		a.wg.Add(1)
		go a.work(lane)
	}
	return a
}

func (a *Async) work(lane <-chan job) {
	defer a.wg.Done()
	for j := range lane {
		a.run(j)
	}
}

func (a *Async) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("persist_error", zap.String("op", j.op), zap.String("record", j.id), zap.Any("panic", r))
		}
	}()
	if err := j.fn(ctx); err != nil {
		obslog.L().Warn("persist_error", zap.String("op", j.op), zap.String("record", j.id), zap.Error(err))
	}
}

func (a *Async) submit(id, op string, fn func(ctx context.Context) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	lane := a.lanes[xxhash.Sum64String(id)%uint64(len(a.lanes))]
	select {
	case lane <- job{id: id, op: op, fn: fn}:
		return nil
	default:
		obslog.L().Warn("persist_queue_full", zap.String("op", op), zap.String("record", id))
		return fmt.Errorf("%w: %s", ErrQueueFull, op)
	}
}

func (a *Async) CreateMatch(_ context.Context, info MatchInfo) error {
	return a.submit(info.ID, "create", func(ctx context.Context) error { return a.rec.CreateMatch(ctx, info) })
}

func (a *Async) RecordMove(_ context.Context, id string, mv MoveEntry) error {
	return a.submit(id, "move", func(ctx context.Context) error { return a.rec.RecordMove(ctx, id, mv) })
}

func (a *Async) RecordChat(_ context.Context, id string, msg ChatEntry) error {
	return a.submit(id, "chat", func(ctx context.Context) error { return a.rec.RecordChat(ctx, id, msg) })
}

func (a *Async) EndMatch(_ context.Context, id string, res Result) error {
	res.History = append([]string(nil), res.History...)
	return a.submit(id, "end", func(ctx context.Context) error { return a.rec.EndMatch(ctx, id, res) })
}

func (a *Async) AbandonMatch(_ context.Context, id string) error {
	return a.submit(id, "abandon", func(ctx context.Context) error { return a.rec.AbandonMatch(ctx, id) })
}

// Close stops accepting calls and waits for queued ones to finish.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	for _, lane := range a.lanes {
		close(lane)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
