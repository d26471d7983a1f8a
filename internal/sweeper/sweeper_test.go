package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/rules"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type listSource []*match.Match

func (l listSource) Snapshot() []*match.Match { return l }

func newMatch(room string, control time.Duration, clk *fakeNow) *match.Match {
	m := match.New(room, "alice", match.Config{TimeControl: control}, rules.Standard{}, match.WithNow(clk.Now))
	_, _ = m.Seat("bob")
	return m
}

func TestSweepEndsExpiredMatchOnly(t *testing.T) {
	clk := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	short := newMatch("short", 5*time.Second, clk)
	long := newMatch("long", time.Minute, clk)

	var got []match.Change
	s := New(listSource{short, long}, HandlerFunc(func(_ context.Context, _ *match.Match, ch match.Change) {
		got = append(got, ch)
	}), time.Second)

	assert.Zero(t, s.Sweep(context.Background()))
	clk.Advance(6 * time.Second)
	assert.Equal(t, 1, s.Sweep(context.Background()))

	require.Len(t, got, 1)
	assert.Equal(t, "short", got[0].Snapshot.Room)
	assert.Equal(t, domain.BlackWon, got[0].Snapshot.Outcome)
	assert.Equal(t, domain.Timeout, got[0].Snapshot.Reason)
	assert.False(t, long.Snapshot().Finished())
	assert.Equal(t, 54*time.Second, long.Snapshot().White)

	// finished matches are skipped on later sweeps
	clk.Advance(time.Second)
	assert.Zero(t, s.Sweep(context.Background()))
	assert.Len(t, got, 1)
}

func TestSweepAndQueryAgreeOnTimeout(t *testing.T) {
	clk := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	m := newMatch("r", 5*time.Second, clk)
	clk.Advance(6 * time.Second)

	var swept atomic.Int32
	s := New(listSource{m}, HandlerFunc(func(context.Context, *match.Match, match.Change) { swept.Add(1) }), time.Second)

	var queried atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Sweep(context.Background()) }()
	go func() {
		defer wg.Done()
		if m.Settle().Finished {
			queried.Add(1)
		}
	}()
	wg.Wait()

	assert.Equal(t, int32(1), swept.Load()+queried.Load(), "exactly one path observes the timeout")
	snap := m.Snapshot()
	assert.Equal(t, domain.BlackWon, snap.Outcome)
	assert.Equal(t, domain.Timeout, snap.Reason)
}

func TestSweepIsolatesHandlerPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	defer obslog.Replace(zap.New(core))()

	clk := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	a := newMatch("a", time.Second, clk)
	b := newMatch("b", time.Second, clk)
	clk.Advance(2 * time.Second)

	calls := 0
	s := New(listSource{a, b}, HandlerFunc(func(_ context.Context, m *match.Match, _ match.Change) {
		calls++
		if m.Room() == "a" {
			panic("broken room")
		}
	}), time.Second)

	assert.Equal(t, 1, s.Sweep(context.Background()))
	assert.Equal(t, 2, calls)
	assert.True(t, b.Snapshot().Finished())
	assert.Equal(t, 1, logs.FilterMessage("sweep_room_error").Len())

	// the guard of the panicking room was released
	_, err := a.Resign(domain.White)
	assert.ErrorIs(t, err, domain.ErrMatchFinished)
}

func TestRunStopsOnCancel(t *testing.T) {
	clk := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	m := newMatch("r", time.Second, clk)
	clk.Advance(2 * time.Second)

	done := make(chan struct{})
	s := New(listSource{m}, HandlerFunc(func(context.Context, *match.Match, match.Change) { close(done) }), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never fired")
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
