package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/pkg/roomdto"
)

const channelPrefix = "chessroom:room:"

type envelope struct {
	Node string          `json:"node"`
	Room string          `json:"room"`
	Skip string          `json:"skip,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RedisRelay publishes room events over Redis pub/sub so that every node
// delivers them to its own subscribers, including the publishing node.
type RedisRelay struct {
	rdb   *redis.Client
	local *Hub
	node  string
	ready chan struct{}
}

func NewRedisRelay(rdb *redis.Client, local *Hub, node string) *RedisRelay {
	return &RedisRelay{rdb: rdb, local: local, node: node, ready: make(chan struct{})}
}

func channel(room string) string { return channelPrefix + room }

// Ready is closed once the pattern subscription is confirmed.
func (r *RedisRelay) Ready() <-chan struct{} { return r.ready }

func (r *RedisRelay) Publish(ctx context.Context, room string, ev roomdto.Event) error {
	return r.PublishExcept(ctx, room, "", ev)
}

// PublishExcept falls back to local delivery when Redis is unavailable.
func (r *RedisRelay) PublishExcept(ctx context.Context, room, skip string, ev roomdto.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	payload, err := json.Marshal(envelope{Node: r.node, Room: room, Skip: skip, Type: ev.Type, Data: data})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, channel(room), payload).Err(); err != nil {
		obslog.L().Warn("relay_error", zap.String("room", room), zap.String("type", ev.Type), zap.Error(err))
		return r.local.PublishExcept(ctx, room, skip, ev)
	}
	return nil
}

// Run forwards relayed events to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	close(r.ready)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		obslog.L().Warn("relay_error", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	room := env.Room
	if room == "" {
		room = strings.TrimPrefix(msg.Channel, channelPrefix)
	}
	_ = r.local.PublishExcept(ctx, room, env.Skip, roomdto.Event{Type: env.Type, Data: env.Data})
}
