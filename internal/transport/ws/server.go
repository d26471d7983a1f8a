// Package ws serves the room protocol over WebSocket and exposes the small
// HTTP surface next to it.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chessroom/internal/broadcast"
	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/msgcat"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/persist"
	"github.com/park285/chessroom/internal/render"
	"github.com/park285/chessroom/internal/rooms"
	"github.com/park285/chessroom/pkg/roomdto"
)

const (
	defaultSendBuffer   = 64
	defaultPingInterval = 30 * time.Second
	maxFrameBytes       = 64 << 10
)

var (
	errBadRequest  = errors.New("malformed request")
	errUnknownType = errors.New("unknown request type")
)

// Rooms is the command surface a connection drives.
type Rooms interface {
	CreateRoom(ctx context.Context, conn string, req roomdto.CreateRoomRequest, attach rooms.Attach) (roomdto.Seated, error)
	JoinRoom(ctx context.Context, conn string, req roomdto.JoinRoomRequest, attach rooms.Attach) (roomdto.Seated, error)
	WatchRoom(ctx context.Context, conn, room string, attach rooms.Attach) (roomdto.Seated, error)
	LeaveRoom(ctx context.Context, room string) error
	LegalTargets(ctx context.Context, room string, from roomdto.Square) (roomdto.PossibleMoves, error)
	QueryClock(ctx context.Context, room string) (roomdto.TimeUpdate, error)
	SubmitMove(ctx context.Context, conn string, req roomdto.MoveRequest) error
	Resign(ctx context.Context, conn, room string) error
	OfferDraw(ctx context.Context, conn, room string) error
	RespondDraw(ctx context.Context, conn string, req roomdto.RespondDrawRequest) error
	Reset(ctx context.Context, room string) error
	Chat(ctx context.Context, conn string, req roomdto.SendMessageRequest) error
	Typing(ctx context.Context, conn, room string, typing bool) error
	Board(room string) (match.Snapshot, error)
	RoomCount() int
	Lobby() []roomdto.RoomInfo
}

type handler func(ctx context.Context, c *client, data json.RawMessage) error

type Server struct {
	rooms    Rooms
	hub      *broadcast.Hub
	cat      *msgcat.Catalog
	history  persist.History
	renderer *render.Renderer

	origins      []string
	sendBuffer   int
	pingInterval time.Duration

	routes map[string]handler
}

type Option func(*Server)

func WithCatalog(c *msgcat.Catalog) Option { return func(s *Server) { s.cat = c } }

// WithHistory enables the /api endpoints.
func WithHistory(h persist.History) Option { return func(s *Server) { s.history = h } }

func WithRenderer(r *render.Renderer) Option { return func(s *Server) { s.renderer = r } }

// WithOriginPatterns lists the cross-origin hosts allowed to open a socket.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithPingInterval sets the keepalive period. Zero disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

func New(r Rooms, hub *broadcast.Hub, opts ...Option) *Server {
	s := &Server{
		rooms:        r,
		hub:          hub,
		renderer:     render.New(),
		sendBuffer:   defaultSendBuffer,
		pingInterval: defaultPingInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes = s.buildRoutes()
	if s.cat != nil {
		keys := append(domain.RejectionKeys(), "errors.bad_request", "errors.unknown_type")
		if missing := s.cat.Missing(keys...); len(missing) > 0 {
			obslog.L().Warn("messages_missing", zap.Strings("keys", missing))
		}
	}
	return s
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	c := newClient(uuid.NewString(), conn, s.hub, s.sendBuffer)
	ctx, cancel := context.WithCancel(r.Context())
	obslog.L().Info("ws_connect", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))

	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.pingLoop(ctx, s.pingInterval)

	readErr := s.readLoop(ctx, c)

	c.stop()
	cancel()
	c.wg.Wait()
	left := s.hub.UnsubscribeAll(c.id)
	_ = conn.Close(websocket.StatusNormalClosure, "")

	fields := []zap.Field{zap.String("conn", c.id), zap.Strings("rooms", left)}
	if st := websocket.CloseStatus(readErr); st != websocket.StatusNormalClosure && st != websocket.StatusGoingAway {
		fields = append(fields, zap.Error(readErr))
	}
	obslog.L().Info("ws_close", fields...)
}

func (s *Server) readLoop(ctx context.Context, c *client) error {
	for {
		_, raw, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		var f roomdto.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.reject(c, "frame", errBadRequest)
			continue
		}
		s.dispatch(ctx, c, f)
	}
}

// dispatch runs one inbound frame. Frames from a single connection are
// handled in arrival order.
func (s *Server) dispatch(ctx context.Context, c *client, f roomdto.Frame) {
	h, ok := s.routes[f.Type]
	if !ok {
		s.reject(c, f.Type, errUnknownType)
		return
	}
	if err := h(ctx, c, f.Data); err != nil {
		s.reject(c, f.Type, err)
	}
}

func (s *Server) reject(c *client, typ string, err error) {
	key := domain.RejectionKey(err)
	switch {
	case errors.Is(err, errBadRequest):
		key = "errors.bad_request"
	case errors.Is(err, errUnknownType):
		key = "errors.unknown_type"
	}
	fallback := err.Error()
	if key == "errors.internal" {
		obslog.L().Warn("ws_command_error", zap.String("conn", c.id), zap.String("type", typ), zap.Error(err))
		fallback = "internal error"
	} else {
		obslog.L().Debug("ws_reject", zap.String("conn", c.id), zap.String("type", typ), zap.String("key", key))
	}
	msg := s.cat.Text(key, map[string]string{"type": typ}, fallback)
	c.reply(roomdto.EventError, roomdto.Error{Message: msg})
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errBadRequest
	}
	return v, nil
}

func (s *Server) buildRoutes() map[string]handler {
	return map[string]handler{
		roomdto.CmdCreateRoom: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.CreateRoomRequest](data)
			if err != nil {
				return err
			}
			_, err = s.rooms.CreateRoom(ctx, c.id, req, c.attach(roomdto.EventRoomCreated))
			return err
		},
		roomdto.CmdJoinRoom: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.JoinRoomRequest](data)
			if err != nil {
				return err
			}
			_, err = s.rooms.JoinRoom(ctx, c.id, req, c.attach(roomdto.EventRoomJoined))
			return err
		},
		roomdto.CmdWatchRoom: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RoomRequest](data)
			if err != nil {
				return err
			}
			_, err = s.rooms.WatchRoom(ctx, c.id, req.Room, c.attach(roomdto.EventRoomJoined))
			return err
		},
		roomdto.CmdLeaveRoom: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RoomRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.LeaveRoom(ctx, req.Room)
		},
		roomdto.CmdPossibleMoves: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.PossibleMovesRequest](data)
			if err != nil {
				return err
			}
			moves, err := s.rooms.LegalTargets(ctx, req.Room, req.From)
			if err != nil {
				return err
			}
			c.reply(roomdto.EventPossibleMoves, moves)
			return nil
		},
		roomdto.CmdGetTime: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RoomRequest](data)
			if err != nil {
				return err
			}
			tu, err := s.rooms.QueryClock(ctx, req.Room)
			if err != nil {
				return err
			}
			c.reply(roomdto.EventTimeUpdate, tu)
			return nil
		},
		roomdto.CmdMove: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.MoveRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.SubmitMove(ctx, c.id, req)
		},
		roomdto.CmdResign: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RoomRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.Resign(ctx, c.id, req.Room)
		},
		roomdto.CmdOfferDraw: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RoomRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.OfferDraw(ctx, c.id, req.Room)
		},
		roomdto.CmdRespondDraw: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RespondDrawRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.RespondDraw(ctx, c.id, req)
		},
		roomdto.CmdResetGame: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.RoomRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.Reset(ctx, req.Room)
		},
		roomdto.CmdSendMessage: func(ctx context.Context, c *client, data json.RawMessage) error {
			req, err := decode[roomdto.SendMessageRequest](data)
			if err != nil {
				return err
			}
			return s.rooms.Chat(ctx, c.id, req)
		},
		roomdto.CmdTyping:     s.typing(true),
		roomdto.CmdStopTyping: s.typing(false),
	}
}

func (s *Server) typing(on bool) handler {
	return func(ctx context.Context, c *client, data json.RawMessage) error {
		req, err := decode[roomdto.RoomRequest](data)
		if err != nil {
			return err
		}
		return s.rooms.Typing(ctx, c.id, req.Room, on)
	}
}
