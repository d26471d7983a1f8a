package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Webhook posts final results to an external endpoint. Moves and chat are
// not forwarded.
type Webhook struct {
	url      string
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
}

type WebhookOption func(*Webhook)

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.timeout = d }
}

func WithWebhookRetry(max int) WebhookOption {
	return func(w *Webhook) { w.retryMax = max }
}

// WithWebhookDialer replaces the TCP dialer, mainly for in-memory listeners.
func WithWebhookDialer(dial func(addr string) (net.Conn, error)) WebhookOption {
	return func(w *Webhook) { w.http.Dial = dial }
}

func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:      strings.TrimSpace(url),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout:  5 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ResultEvent is the JSON body sent for every finished or abandoned match.
type ResultEvent struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Winner     string    `json:"winner,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	TotalMoves int       `json:"totalMoves"`
	History    []string  `json:"history,omitempty"`
	PGNResult  string    `json:"pgnResult"`
	At         time.Time `json:"at"`
}

func (w *Webhook) CreateMatch(context.Context, MatchInfo) error        { return nil }
func (w *Webhook) RecordMove(context.Context, string, MoveEntry) error { return nil }
func (w *Webhook) RecordChat(context.Context, string, ChatEntry) error { return nil }

func (w *Webhook) EndMatch(ctx context.Context, id string, res Result) error {
	return w.post(ctx, ResultEvent{
		ID:         id,
		Status:     StatusCompleted,
		Winner:     res.Winner,
		Reason:     res.Reason,
		TotalMoves: res.TotalMoves,
		History:    res.History,
		PGNResult:  resultToPGN(res.Winner),
		At:         res.EndedAt,
	})
}

func (w *Webhook) AbandonMatch(ctx context.Context, id string) error {
	return w.post(ctx, ResultEvent{ID: id, Status: StatusAbandoned, PGNResult: resultToPGN(""), At: time.Now()})
}

func (w *Webhook) post(ctx context.Context, ev ResultEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("webhook status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func (w *Webhook) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
