package opponent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/rules"
)

type recorder struct {
	mu      sync.Mutex
	changes []match.Change
}

func (r *recorder) OpponentMoved(_ context.Context, _ *match.Match, ch match.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, ch)
	r.mu.Unlock()
}

func (r *recorder) all() []match.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]match.Change(nil), r.changes...)
}

func botMatchAfterE4(t *testing.T) *match.Match {
	t.Helper()
	m := match.New("bot", "alice", match.Config{TimeControl: time.Minute, Bot: true}, rules.Standard{})
	from, _ := rules.ParseSquare("e2")
	to, _ := rules.ParseSquare("e4")
	_, err := m.Submit(domain.White, rules.Move{From: from, To: to})
	require.NoError(t, err)
	return m
}

func TestPlayMakesOneLegalMove(t *testing.T) {
	rec := &recorder{}
	r := New(rec, WithDelay(time.Millisecond))
	m := botMatchAfterE4(t)

	assert.True(t, r.Play(context.Background(), m))
	changes := rec.all()
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].Move)
	assert.Equal(t, domain.Black, changes[0].Move.By)
	assert.Equal(t, domain.White, m.Snapshot().Turn)

	// nothing to do on white's turn
	assert.False(t, r.Play(context.Background(), m))
	assert.Len(t, rec.all(), 1)
}

func TestResignationDuringThinkingWins(t *testing.T) {
	m := botMatchAfterE4(t)
	thinking := make(chan struct{})
	release := make(chan struct{})
	rec := &recorder{}
	r := New(rec, WithSleep(func(ctx context.Context, _ time.Duration) error {
		close(thinking)
		<-release
		return nil
	}))

	r.Schedule(context.Background(), m)
	<-thinking
	_, err := m.Resign(domain.White)
	require.NoError(t, err)
	close(release)
	r.Wait()

	assert.Empty(t, rec.all())
	s := m.Snapshot()
	assert.Equal(t, domain.BlackWon, s.Outcome)
	assert.Equal(t, domain.Resignation, s.Reason)
	assert.Equal(t, 1, s.Moves)
}

func TestThinkingHoldsNoLock(t *testing.T) {
	m := botMatchAfterE4(t)
	thinking := make(chan struct{})
	release := make(chan struct{})
	r := New(nil, WithSleep(func(context.Context, time.Duration) error {
		close(thinking)
		<-release
		return nil
	}))
	r.Schedule(context.Background(), m)
	<-thinking

	done := make(chan struct{})
	go func() {
		_ = m.Snapshot()
		_ = m.Settle()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("match guard held during thinking delay")
	}
	close(release)
	r.Wait()
	assert.Equal(t, 2, m.Snapshot().Moves)
}

func TestCancelledContextAborts(t *testing.T) {
	m := botMatchAfterE4(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil, WithDelay(time.Hour))

	assert.False(t, r.Play(ctx, m))
	assert.Equal(t, 1, m.Snapshot().Moves)
}

func TestCloseRefusesNewTasks(t *testing.T) {
	rec := &recorder{}
	r := New(rec, WithDelay(time.Millisecond))
	m := botMatchAfterE4(t)

	r.Close()
	assert.False(t, r.Schedule(context.Background(), m))
	r.Wait()
	assert.Empty(t, rec.all())
	assert.Equal(t, 1, m.Snapshot().Moves)
}

func TestCloseWaitsForRunningTask(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	r := New(rec, WithSleep(func(ctx context.Context, _ time.Duration) error {
		<-release
		return nil
	}))
	m := botMatchAfterE4(t)
	require.True(t, r.Schedule(context.Background(), m))

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a task was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-closed
	assert.Len(t, rec.all(), 1)
}

func TestPickerChoosesAmongLegalMoves(t *testing.T) {
	seen := 0
	r := New(nil, WithDelay(0), WithPicker(func(n int) int {
		seen = n
		return n - 1
	}))
	m := botMatchAfterE4(t)
	require.True(t, r.Play(context.Background(), m))
	assert.Equal(t, 20, seen, "black has twenty replies to 1.e4")
}
