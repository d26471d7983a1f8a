// Package roomdto holds the JSON shapes exchanged with room clients.
package roomdto

import "encoding/json"

// Frame is the envelope for every message in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Outbound event names.
const (
	EventRoomCreated    = "room_created"
	EventRoomJoined     = "room_joined"
	EventGameStart      = "game_start"
	EventGameUpdate     = "game_update"
	EventPossibleMoves  = "possible_moves"
	EventTimeUpdate     = "time_update"
	EventDrawOffered    = "draw_offered"
	EventDrawDeclined   = "draw_declined"
	EventChatMessage    = "chat_message"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventRoomClosed     = "room_closed"
	EventError          = "error"
)

// Inbound request names.
const (
	CmdCreateRoom    = "create_room"
	CmdJoinRoom      = "join_room"
	CmdWatchRoom     = "watch_room"
	CmdLeaveRoom     = "leave_room"
	CmdPossibleMoves = "get_possible_moves"
	CmdGetTime       = "get_time"
	CmdMove          = "move"
	CmdResign        = "resign"
	CmdOfferDraw     = "offer_draw"
	CmdRespondDraw   = "respond_draw"
	CmdResetGame     = "reset_game"
	CmdSendMessage   = "send_message"
	CmdTyping        = "typing"
	CmdStopTyping    = "stop_typing"
)
