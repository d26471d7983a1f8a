package persist

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type hookServer struct {
	mu     sync.Mutex
	fails  int
	status int
	got    []ResultEvent
}

func (h *hookServer) handle(ctx *fasthttp.RequestCtx) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fails > 0 {
		h.fails--
		ctx.SetStatusCode(h.status)
		return
	}
	var ev ResultEvent
	if err := json.Unmarshal(ctx.PostBody(), &ev); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	h.got = append(h.got, ev)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (h *hookServer) events() []ResultEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ResultEvent(nil), h.got...)
}

func startHook(t *testing.T, h *hookServer) *Webhook {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewWebhook("http://hook.local/results",
		WithWebhookDialer(func(string) (net.Conn, error) { return ln.Dial() }),
		WithWebhookTimeout(time.Second),
	)
}

func TestWebhookPostsResults(t *testing.T) {
	h := &hookServer{}
	w := startHook(t, h)
	ctx := context.Background()

	require.NoError(t, w.CreateMatch(ctx, MatchInfo{ID: "m"}))
	require.NoError(t, w.EndMatch(ctx, "m", Result{Winner: "white", Reason: "timeout", TotalMoves: 1, EndedAt: time.Now()}))
	require.NoError(t, w.AbandonMatch(ctx, "n"))

	got := h.events()
	require.Len(t, got, 2)
	assert.Equal(t, StatusCompleted, got[0].Status)
	assert.Equal(t, "1-0", got[0].PGNResult)
	assert.Equal(t, "timeout", got[0].Reason)
	assert.Equal(t, StatusAbandoned, got[1].Status)
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	h := &hookServer{fails: 2, status: fasthttp.StatusServiceUnavailable}
	w := startHook(t, h)
	require.NoError(t, w.EndMatch(context.Background(), "m", Result{Winner: "draw"}))
	assert.Len(t, h.events(), 1)
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	h := &hookServer{fails: 1, status: fasthttp.StatusBadRequest}
	w := startHook(t, h)
	err := w.EndMatch(context.Background(), "m", Result{Winner: "draw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.Empty(t, h.events())
}
