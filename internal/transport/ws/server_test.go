package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chessroom/internal/broadcast"
	"github.com/park285/chessroom/internal/msgcat"
	"github.com/park285/chessroom/internal/persist"
	"github.com/park285/chessroom/internal/registry"
	"github.com/park285/chessroom/internal/rooms"
	"github.com/park285/chessroom/internal/rules"
	"github.com/park285/chessroom/pkg/roomdto"
)

type env struct {
	ts  *httptest.Server
	svc *rooms.Service
	mem *persist.Memory
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	hub := broadcast.NewHub()
	mem := persist.NewMemory()
	svc := rooms.New(registry.New(), rules.Standard{}, hub, rooms.WithRecorder(mem))
	cat, err := msgcat.New("")
	require.NoError(t, err)
	base := []Option{WithCatalog(cat), WithHistory(mem), WithPingInterval(0)}
	srv := New(svc, hub, append(base, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &env{ts: ts, svc: svc, mem: mem}
}

func (e *env) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(e.ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, roomdto.Event{Type: typ, Data: data}))
}

func next(t *testing.T, c *websocket.Conn) roomdto.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f roomdto.Frame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	return f
}

// expect skips frames until one of type typ arrives.
func expect(t *testing.T, c *websocket.Conn, typ string, into any) {
	t.Helper()
	for i := 0; i < 16; i++ {
		f := next(t, c)
		if f.Type != typ {
			continue
		}
		if into != nil {
			require.NoError(t, json.Unmarshal(f.Data, into))
		}
		return
	}
	t.Fatalf("no %s frame", typ)
}

func TestCreateJoinAndMove(t *testing.T) {
	e := newEnv(t)
	white, black := e.dial(t), e.dial(t)

	send(t, white, roomdto.CmdCreateRoom, roomdto.CreateRoomRequest{Room: "lobby", TimeControl: 60, Name: "Ann"})
	var created roomdto.Seated
	expect(t, white, roomdto.EventRoomCreated, &created)
	assert.Equal(t, "white", created.Color)
	assert.Equal(t, 60, created.State.WhiteTime)

	send(t, black, roomdto.CmdJoinRoom, roomdto.JoinRoomRequest{Room: "lobby", Name: "Bob"})
	first := next(t, black)
	require.Equal(t, roomdto.EventRoomJoined, first.Type)
	var joined roomdto.Seated
	require.NoError(t, json.Unmarshal(first.Data, &joined))
	assert.Equal(t, "black", joined.Color)
	assert.Equal(t, roomdto.EventGameStart, next(t, black).Type)
	expect(t, white, roomdto.EventGameStart, nil)

	send(t, white, roomdto.CmdMove, roomdto.MoveRequest{
		Room: "lobby",
		From: roomdto.Square{Row: 6, Col: 4},
		To:   roomdto.Square{Row: 4, Col: 4},
	})
	for _, c := range []*websocket.Conn{white, black} {
		var up roomdto.GameUpdate
		expect(t, c, roomdto.EventGameUpdate, &up)
		require.NotNil(t, up.MoveNotation)
		assert.Equal(t, "e4", *up.MoveNotation)
		assert.Equal(t, "black", up.State.Turn)
		assert.Equal(t, "P", up.State.Board[4][4])
	}

	send(t, black, roomdto.CmdPossibleMoves, roomdto.PossibleMovesRequest{Room: "lobby", From: roomdto.Square{Row: 1, Col: 4}})
	var pm roomdto.PossibleMoves
	expect(t, black, roomdto.EventPossibleMoves, &pm)
	assert.ElementsMatch(t, []roomdto.Square{{Row: 2, Col: 4}, {Row: 3, Col: 4}}, pm.Moves)

	send(t, black, roomdto.CmdGetTime, roomdto.RoomRequest{Room: "lobby"})
	var tu roomdto.TimeUpdate
	expect(t, black, roomdto.EventTimeUpdate, &tu)
	assert.InDelta(t, 60, tu.WhiteTime, 1)
}

func TestRejectionsAreReported(t *testing.T) {
	e := newEnv(t)
	c := e.dial(t)

	cases := []struct {
		typ  string
		data any
		want string
	}{
		{"bogus", nil, "Unknown request type bogus"},
		{roomdto.CmdMove, "not an object", "Malformed move request"},
		{roomdto.CmdJoinRoom, roomdto.JoinRoomRequest{Room: "nowhere"}, "Room does not exist"},
		{roomdto.CmdCreateRoom, roomdto.CreateRoomRequest{Room: "  "}, "Room name is required"},
	}
	for _, tc := range cases {
		send(t, c, tc.typ, tc.data)
		f := next(t, c)
		require.Equal(t, roomdto.EventError, f.Type, tc.typ)
		var msg roomdto.Error
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, tc.want, msg.Message)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{")))
	f := next(t, c)
	require.Equal(t, roomdto.EventError, f.Type)
	assert.Contains(t, string(f.Data), "Malformed frame request")
}

func TestSpectatorAndTypingAndLeave(t *testing.T) {
	e := newEnv(t)
	white, black, watcher := e.dial(t), e.dial(t), e.dial(t)

	send(t, white, roomdto.CmdCreateRoom, roomdto.CreateRoomRequest{Room: "lobby"})
	expect(t, white, roomdto.EventRoomCreated, nil)
	send(t, black, roomdto.CmdJoinRoom, roomdto.JoinRoomRequest{Room: "lobby"})
	expect(t, black, roomdto.EventGameStart, nil)
	expect(t, white, roomdto.EventGameStart, nil)

	send(t, watcher, roomdto.CmdWatchRoom, roomdto.RoomRequest{Room: "lobby"})
	var seated roomdto.Seated
	expect(t, watcher, roomdto.EventRoomJoined, &seated)
	assert.Equal(t, "spectator", seated.Color)

	send(t, white, roomdto.CmdTyping, roomdto.RoomRequest{Room: "lobby"})
	var typing roomdto.Typing
	expect(t, watcher, roomdto.EventUserTyping, &typing)
	assert.Equal(t, "white", typing.Sender)

	send(t, watcher, roomdto.CmdSendMessage, roomdto.SendMessageRequest{Room: "lobby", Message: " hi "})
	var chat roomdto.ChatMessage
	expect(t, black, roomdto.EventChatMessage, &chat)
	assert.Equal(t, roomdto.ChatMessage{Sender: "spectator", Message: "hi"}, chat)

	send(t, black, roomdto.CmdLeaveRoom, roomdto.RoomRequest{Room: "lobby"})
	for _, c := range []*websocket.Conn{white, black, watcher} {
		var closed roomdto.RoomClosed
		expect(t, c, roomdto.EventRoomClosed, &closed)
		assert.Equal(t, "lobby", closed.Room)
	}
	assert.Zero(t, e.svc.RoomCount())
}

func TestHealthAndBoard(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.CreateRoom(context.Background(), "c1", roomdto.CreateRoomRequest{Room: "lobby"}, nil)
	require.NoError(t, err)

	res, err := http.Get(e.ts.URL + "/healthz")
	require.NoError(t, err)
	var h health
	require.NoError(t, json.NewDecoder(res.Body).Decode(&h))
	res.Body.Close()
	assert.Equal(t, health{Status: "ok", Rooms: 1}, h)

	res, err = http.Get(e.ts.URL + "/api/rooms")
	require.NoError(t, err)
	var open []roomdto.RoomInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&open))
	res.Body.Close()
	require.Len(t, open, 1)
	assert.True(t, open[0].Waiting)

	res, err = http.Get(e.ts.URL + "/rooms/lobby/board.png")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.Header.Get("Content-Type"))
	_, err = png.Decode(bytes.NewReader(body))
	require.NoError(t, err)

	res, err = http.Get(e.ts.URL + "/rooms/nowhere/board.png")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHistoryEndpoints(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, e.mem.CreateMatch(ctx, persist.MatchInfo{ID: "g1", Room: "lobby", White: "Ann", Black: "Bob", StartedAt: start}))
	require.NoError(t, e.mem.EndMatch(ctx, "g1", persist.Result{Winner: "white", Reason: "resign", EndedAt: start.Add(time.Minute)}))

	get := func(path string, into any) {
		t.Helper()
		res, err := http.Get(e.ts.URL + path)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode, path)
		require.NoError(t, json.NewDecoder(res.Body).Decode(into))
	}

	var games []roomdto.GameSummary
	get("/api/games/recent?limit=5", &games)
	require.Len(t, games, 1)
	assert.Equal(t, "g1", games[0].ID)
	assert.Equal(t, 60, games[0].DurationSec)

	var st roomdto.PlayerStats
	get("/api/players/Ann/stats", &st)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 100.0, st.WinRate)

	var board []roomdto.PlayerStats
	get("/api/leaderboard", &board)
	require.Len(t, board, 2)
	assert.Equal(t, "Ann", board[0].Player)
}

func TestHistoryDisabled(t *testing.T) {
	hub := broadcast.NewHub()
	svc := rooms.New(registry.New(), rules.Standard{}, hub)
	ts := httptest.NewServer(New(svc, hub, WithPingInterval(0)).Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/leaderboard")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestClosedRoomPayloads(t *testing.T) {
	assert.Equal(t, "a", closedRoom(roomdto.RoomClosed{Room: "a"}))
	assert.Equal(t, "b", closedRoom(json.RawMessage(`{"room":"b"}`)))
	assert.Equal(t, "", closedRoom(json.RawMessage(`nope`)))
	assert.Equal(t, "", closedRoom(nil))
}
