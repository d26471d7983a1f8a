package domain

import "errors"

// Error taxonomy. Every rejection returned to a caller unwraps to one of these.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrIllegalAction = errors.New("illegal action")
)

// Rejection is a caller-visible failure. Key names the message catalog entry
// used to render it for clients.
type Rejection struct {
	Kind error
	Key  string
	msg  string
}

func reject(kind error, key, msg string) *Rejection {
	return &Rejection{Kind: kind, Key: key, msg: msg}
}

func (r *Rejection) Error() string { return r.msg }

func (r *Rejection) Unwrap() error { return r.Kind }

var (
	ErrRoomNotFound    = reject(ErrNotFound, "errors.room_not_found", "room does not exist")
	ErrRoomExists      = reject(ErrConflict, "errors.room_exists", "room already exists")
	ErrRoomFull        = reject(ErrConflict, "errors.room_full", "room is full")
	ErrAlreadySeated   = reject(ErrConflict, "errors.already_seated", "already playing in this room")
	ErrBotMatch        = reject(ErrConflict, "errors.bot_match", "cannot join bot game")
	ErrOutcomeConflict = reject(ErrConflict, "errors.outcome_conflict", "match already has a different outcome")

	ErrIllegalMove   = reject(ErrIllegalAction, "errors.illegal_move", "illegal move")
	ErrMatchFinished = reject(ErrIllegalAction, "errors.match_finished", "game already finished")
	ErrNotYourTurn   = reject(ErrIllegalAction, "errors.not_your_turn", "not your turn")
	ErrNotSeated     = reject(ErrIllegalAction, "errors.not_seated", "not a player in this room")
	ErrNoDrawOffer   = reject(ErrIllegalAction, "errors.no_draw_offer", "no draw offer pending")
	ErrOwnDrawOffer  = reject(ErrIllegalAction, "errors.own_draw_offer", "cannot answer your own draw offer")
	ErrBadSquare     = reject(ErrIllegalAction, "errors.bad_square", "square out of range")
	ErrBadRoom       = reject(ErrIllegalAction, "errors.bad_room", "room name is required")
)

var rejections = []*Rejection{
	ErrRoomNotFound, ErrRoomExists, ErrRoomFull, ErrAlreadySeated, ErrBotMatch, ErrOutcomeConflict,
	ErrIllegalMove, ErrMatchFinished, ErrNotYourTurn, ErrNotSeated, ErrNoDrawOffer,
	ErrOwnDrawOffer, ErrBadSquare, ErrBadRoom,
}

// RejectionKeys lists the catalog key of every rejection, "errors.internal"
// included.
func RejectionKeys() []string {
	keys := make([]string, 0, len(rejections)+1)
	for _, r := range rejections {
		keys = append(keys, r.Key)
	}
	return append(keys, "errors.internal")
}

// RejectionKey returns the catalog key for err, or "errors.internal".
func RejectionKey(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Key
	}
	return "errors.internal"
}
