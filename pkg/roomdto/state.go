package roomdto

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// State is the full-room snapshot sent with every committed transition.
type State struct {
	Board              [8][8]string `json:"board"`
	Turn               string       `json:"turn"`
	Check              bool         `json:"check"`
	Winner             *string      `json:"winner"`
	Reason             *string      `json:"reason"`
	WhiteTime          int          `json:"whiteTime"`
	BlackTime          int          `json:"blackTime"`
	WhiteTimeFormatted string       `json:"whiteTimeFormatted"`
	BlackTimeFormatted string       `json:"blackTimeFormatted"`
	Moves              int          `json:"moves"`
	DrawOffer          *string      `json:"drawOffer"`
	Bot                bool         `json:"bot"`
}

type LastMove struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

type GameUpdate struct {
	State        State     `json:"state"`
	LastMove     *LastMove `json:"lastMove"`
	MoveNotation *string   `json:"moveNotation"`
}

type GameStart struct {
	State State `json:"state"`
}

// Seated answers create_room and join_room.
type Seated struct {
	Room  string `json:"room"`
	Color string `json:"color"`
	State State  `json:"state"`
	Bot   bool   `json:"bot"`
}

type PossibleMoves struct {
	Moves []Square `json:"moves"`
}

type TimeUpdate struct {
	WhiteTime          int    `json:"whiteTime"`
	BlackTime          int    `json:"blackTime"`
	WhiteTimeFormatted string `json:"whiteTimeFormatted"`
	BlackTimeFormatted string `json:"blackTimeFormatted"`
}

type DrawOffered struct {
	FromColor string `json:"fromColor"`
}

type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type Typing struct {
	Sender string `json:"sender"`
}

type RoomClosed struct {
	Room string `json:"room"`
}

type Error struct {
	Message string `json:"message"`
}

// StringPtr returns nil for empty strings so optional fields encode as null.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
