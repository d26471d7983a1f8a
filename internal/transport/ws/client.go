package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chessroom/internal/broadcast"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/rooms"
	"github.com/park285/chessroom/pkg/roomdto"
)

const (
	writeTimeout = 5 * time.Second
	pingTimeout  = 3 * time.Second
)

// client is one accepted connection. Its id is the player identity the
// room service sees.
type client struct {
	id   string
	conn *websocket.Conn
	hub  *broadcast.Hub
	send chan roomdto.Event

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClient(id string, conn *websocket.Conn, hub *broadcast.Hub, buffer int) *client {
	return &client{
		id:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan roomdto.Event, buffer),
		stopCh: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Deliver queues a room event. A closed room drops the subscription.
func (c *client) Deliver(ev roomdto.Event) {
	if ev.Type == roomdto.EventRoomClosed {
		if room := closedRoom(ev.Data); room != "" {
			c.hub.Unsubscribe(room, c.id)
		}
	}
	c.enqueue(ev)
}

// enqueue never blocks; a client that cannot keep up loses events.
func (c *client) enqueue(ev roomdto.Event) {
	if c.isStopping() {
		return
	}
	select {
	case c.send <- ev:
	default:
		obslog.L().Warn("ws_drop", zap.String("conn", c.id), zap.String("type", ev.Type))
	}
}

func (c *client) reply(typ string, data any) {
	c.enqueue(roomdto.Event{Type: typ, Data: data})
}

// attach answers with the seat first and then subscribes, so the reply is
// queued ahead of anything broadcast to the room.
func (c *client) attach(replyType string) rooms.Attach {
	return func(seated roomdto.Seated) {
		c.reply(replyType, seated)
		c.hub.Subscribe(seated.Room, c)
	}
}

func (c *client) writeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case ev := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, ev)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("conn", c.id), zap.Error(err))
				c.stop()
				_ = c.conn.Close(websocket.StatusGoingAway, "write failure")
				return
			}
		}
	}
}

func (c *client) pingLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				c.stop()
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *client) stop() { c.stopOnce.Do(func() { close(c.stopCh) }) }

func (c *client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// closedRoom reads the room name from a room_closed payload, which is a
// typed value locally and raw JSON when it came through the relay.
func closedRoom(data any) string {
	switch d := data.(type) {
	case roomdto.RoomClosed:
		return d.Room
	case *roomdto.RoomClosed:
		if d != nil {
			return d.Room
		}
	case json.RawMessage:
		var rc roomdto.RoomClosed
		if json.Unmarshal(d, &rc) == nil {
			return rc.Room
		}
	}
	return ""
}
