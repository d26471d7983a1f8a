package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chessroom/pkg/roomdto"
)

// roomcheck opens a bot room on a running server, plays 1. e4 and prints
// whatever comes back for a short window.
func main() {
	wsURL := os.Getenv("ROOMCHECK_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:5000/ws"
	}
	room := "roomcheck-" + uuid.NewString()[:8]

	dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, _, err := websocket.Dial(dctx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	send := func(typ string, data any) {
		if err := wsjson.Write(ctx, conn, roomdto.Event{Type: typ, Data: data}); err != nil {
			log.Fatalf("send %s: %v", typ, err)
		}
	}

	send(roomdto.CmdCreateRoom, roomdto.CreateRoomRequest{Room: room, Bot: true, TimeControl: 60, Name: "roomcheck"})
	send(roomdto.CmdMove, roomdto.MoveRequest{
		Room: room,
		From: roomdto.Square{Row: 6, Col: 4},
		To:   roomdto.Square{Row: 4, Col: 4},
	})

	updates := 0
read:
	for updates < 2 {
		var f roomdto.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			log.Printf("read error: %v", err)
			break
		}
		fmt.Printf("%s %s\n", f.Type, f.Data)
		switch f.Type {
		case roomdto.EventGameUpdate:
			updates++
		case roomdto.EventError:
			log.Printf("server rejected a command")
			break read
		}
	}

	send(roomdto.CmdLeaveRoom, roomdto.RoomRequest{Room: room})
	if updates < 2 {
		os.Exit(1)
	}
	log.Printf("room %s ok: move and bot reply received", room)
}
