package roomdto

type CreateRoomRequest struct {
	Room        string `json:"room"`
	Bot         bool   `json:"bot"`
	TimeControl int    `json:"timeControl"`
	Name        string `json:"name"`
}

type JoinRoomRequest struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// RoomRequest covers commands that only name a room.
type RoomRequest struct {
	Room string `json:"room"`
}

type PossibleMovesRequest struct {
	Room string `json:"room"`
	From Square `json:"from"`
}

type MoveRequest struct {
	Room      string `json:"room"`
	From      Square `json:"from"`
	To        Square `json:"to"`
	Promotion string `json:"promotion"`
}

type RespondDrawRequest struct {
	Room   string `json:"room"`
	Accept bool   `json:"accept"`
}

type SendMessageRequest struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}
