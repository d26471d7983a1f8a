package rooms

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/persist"
	"github.com/park285/chessroom/internal/registry"
	"github.com/park285/chessroom/internal/rules"
	"github.com/park285/chessroom/pkg/roomdto"
)

// Attach is called once a connection holds a seat, before anything is
// broadcast to the room, so the caller can subscribe in time.
type Attach func(seated roomdto.Seated)

// CreateRoom creates a room with conn seated as white.
func (s *Service) CreateRoom(ctx context.Context, conn string, req roomdto.CreateRoomRequest, attach Attach) (roomdto.Seated, error) {
	cfg := match.Config{TimeControl: s.control(req.TimeControl), Bot: req.Bot}
	m, err := s.reg.Create(req.Room, func(room string) *match.Match {
		return match.New(room, conn, cfg, s.oracle, s.matchOpts...)
	})
	if err != nil {
		return roomdto.Seated{}, err
	}
	room := m.Room()
	rec := registry.Record{ID: s.newID(), White: strings.TrimSpace(req.Name)}
	if req.Bot {
		rec.Black = domain.BotPlayer
	}
	s.reg.BindRecord(room, m, rec)
	snap := m.Snapshot()
	s.persistCreate(ctx, rec, snap)

	obslog.L().Info("room_create",
		zap.String("room", room),
		zap.Bool("bot", req.Bot),
		zap.Duration("time_control", cfg.TimeControl),
	)
	seated := roomdto.Seated{Room: room, Color: domain.White.String(), State: stateOf(snap), Bot: req.Bot}
	if attach != nil {
		attach(seated)
	}
	return seated, nil
}

// JoinRoom seats conn as black and announces the start of the game.
func (s *Service) JoinRoom(ctx context.Context, conn string, req roomdto.JoinRoomRequest, attach Attach) (roomdto.Seated, error) {
	color, m, err := s.reg.Join(req.Room, conn)
	if err != nil {
		return roomdto.Seated{}, err
	}
	room := m.Room()
	if rec, ok := s.reg.Record(room, m); ok {
		rec.Black = strings.TrimSpace(req.Name)
		if s.reg.SwapRecord(room, m, rec.ID, rec) {
			s.persistCreate(ctx, rec, m.Snapshot())
		}
	}
	snap := m.Snapshot()
	obslog.L().Info("room_join", zap.String("room", room), zap.String("color", color.String()))

	seated := roomdto.Seated{Room: room, Color: color.String(), State: stateOf(snap), Bot: snap.Bot}
	if attach != nil {
		attach(seated)
	}
	s.publish(ctx, room, "", roomdto.EventGameStart, roomdto.GameStart{State: stateOf(snap)})
	return seated, nil
}

// WatchRoom lets conn follow a room without a seat.
func (s *Service) WatchRoom(_ context.Context, conn, room string, attach Attach) (roomdto.Seated, error) {
	m, err := s.reg.Get(room)
	if err != nil {
		return roomdto.Seated{}, err
	}
	snap := m.Snapshot()
	obslog.L().Debug("room_watch", zap.String("room", m.Room()), zap.String("conn", conn))
	seated := roomdto.Seated{Room: m.Room(), Color: senderOf(domain.NoColor), State: stateOf(snap), Bot: snap.Bot}
	if attach != nil {
		attach(seated)
	}
	return seated, nil
}

// LeaveRoom removes the room. A match still in progress is recorded as
// abandoned.
func (s *Service) LeaveRoom(ctx context.Context, room string) error {
	m, rec, ok := s.reg.Remove(room)
	if !ok {
		return domain.ErrRoomNotFound
	}
	snap := m.Snapshot()
	if !snap.Finished() {
		s.persist(ctx, "abandon", rec.ID, func(ctx context.Context) error { return s.rec.AbandonMatch(ctx, rec.ID) })
	}
	obslog.L().Info("room_remove", zap.String("room", m.Room()), zap.Bool("finished", snap.Finished()))
	s.publish(ctx, m.Room(), "", roomdto.EventRoomClosed, roomdto.RoomClosed{Room: m.Room()})
	return nil
}

func (s *Service) LegalTargets(ctx context.Context, room string, from roomdto.Square) (roomdto.PossibleMoves, error) {
	m, err := s.reg.Get(room)
	if err != nil {
		return roomdto.PossibleMoves{}, err
	}
	targets, ch, err := m.LegalTargets(ruleSquare(from))
	if err != nil {
		return roomdto.PossibleMoves{}, err
	}
	s.commit(ctx, m, ch)
	out := roomdto.PossibleMoves{Moves: make([]roomdto.Square, 0, len(targets))}
	for _, sq := range targets {
		out.Moves = append(out.Moves, squareOf(sq))
	}
	return out, nil
}

// QueryClock settles the running clock and reports both remainings. A flag
// fall seen here is committed like any other transition.
func (s *Service) QueryClock(ctx context.Context, room string) (roomdto.TimeUpdate, error) {
	m, err := s.reg.Get(room)
	if err != nil {
		return roomdto.TimeUpdate{}, err
	}
	ch := m.Settle()
	s.commit(ctx, m, ch)
	return timesOf(ch.Snapshot), nil
}

func (s *Service) SubmitMove(ctx context.Context, conn string, req roomdto.MoveRequest) error {
	m, err := s.reg.Get(req.Room)
	if err != nil {
		return err
	}
	mv := rules.Move{
		From:      ruleSquare(req.From),
		To:        ruleSquare(req.To),
		Promotion: rules.ParsePromotion(req.Promotion),
	}
	ch, err := m.Submit(m.SeatOf(conn), mv)
	s.commit(ctx, m, ch)
	return err
}

func (s *Service) Resign(ctx context.Context, conn, room string) error {
	m, err := s.reg.Get(room)
	if err != nil {
		return err
	}
	ch, err := m.Resign(m.SeatOf(conn))
	s.commit(ctx, m, ch)
	return err
}

// OfferDraw tells everyone but the offering connection about the offer.
func (s *Service) OfferDraw(ctx context.Context, conn, room string) error {
	m, err := s.reg.Get(room)
	if err != nil {
		return err
	}
	ch, err := m.OfferDraw(m.SeatOf(conn))
	s.commit(ctx, m, ch)
	if err != nil {
		return err
	}
	s.publish(ctx, m.Room(), conn, roomdto.EventDrawOffered, roomdto.DrawOffered{FromColor: ch.DrawOffered.String()})
	return nil
}

func (s *Service) RespondDraw(ctx context.Context, conn string, req roomdto.RespondDrawRequest) error {
	m, err := s.reg.Get(req.Room)
	if err != nil {
		return err
	}
	ch, err := m.RespondDraw(m.SeatOf(conn), req.Accept)
	s.commit(ctx, m, ch)
	if err != nil {
		return err
	}
	if ch.DrawDeclined {
		s.publish(ctx, m.Room(), "", roomdto.EventDrawDeclined, struct{}{})
	}
	return nil
}

// Reset starts a new game in the room under a new persistence record. The
// previous record is abandoned if its game was still running.
func (s *Service) Reset(ctx context.Context, room string) error {
	m, err := s.reg.Get(room)
	if err != nil {
		return err
	}
	room = m.Room()
	old, hadRec := s.reg.Record(room, m)
	ch := m.Reset()
	if hadRec {
		next := old
		next.ID = s.newID()
		// A concurrent reset already rotated the record; its new record
		// stays bound and this id is never created.
		if s.reg.SwapRecord(room, m, old.ID, next) {
			if !ch.WasFinished {
				s.persist(ctx, "abandon", old.ID, func(ctx context.Context) error { return s.rec.AbandonMatch(ctx, old.ID) })
			}
			s.persistCreate(ctx, next, ch.Snapshot)
		} else {
			obslog.L().Debug("record_rotate_lost", zap.String("room", room), zap.String("record", next.ID))
		}
	}
	obslog.L().Info("match_reset", zap.String("room", room), zap.Bool("was_finished", ch.WasFinished))
	s.commit(ctx, m, ch)
	return nil
}

// Chat relays a message to the room under the sender's seat. Blank messages
// are ignored and long ones are cut.
func (s *Service) Chat(ctx context.Context, conn string, req roomdto.SendMessageRequest) error {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil
	}
	if utf8.RuneCountInString(msg) > maxChatRunes {
		msg = string([]rune(msg)[:maxChatRunes])
	}
	m, err := s.reg.Get(req.Room)
	if err != nil {
		return err
	}
	seat := m.SeatOf(conn)
	sender := senderOf(seat)
	s.publish(ctx, m.Room(), "", roomdto.EventChatMessage, roomdto.ChatMessage{Sender: sender, Message: msg})

	if rec, ok := s.reg.Record(m.Room(), m); ok {
		entry := persist.ChatEntry{Player: playerName(rec, seat), Color: sender, Message: msg, At: s.now()}
		s.persist(ctx, "chat", rec.ID, func(ctx context.Context) error { return s.rec.RecordChat(ctx, rec.ID, entry) })
	}
	return nil
}

// Typing relays a typing indicator to everyone but conn.
func (s *Service) Typing(ctx context.Context, conn, room string, typing bool) error {
	m, err := s.reg.Get(room)
	if err != nil {
		return err
	}
	typ := roomdto.EventUserStopTyping
	if typing {
		typ = roomdto.EventUserTyping
	}
	s.publish(ctx, m.Room(), conn, typ, roomdto.Typing{Sender: senderOf(m.SeatOf(conn))})
	return nil
}

// Board returns the room's current snapshot without settling the clock.
func (s *Service) Board(room string) (match.Snapshot, error) {
	m, err := s.reg.Get(room)
	if err != nil {
		return match.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// RoomCount reports how many rooms are open.
func (s *Service) RoomCount() int { return s.reg.Len() }

// Lobby lists open rooms, those still waiting for a second player first.
func (s *Service) Lobby() []roomdto.RoomInfo {
	ms := s.reg.Snapshot()
	out := make([]roomdto.RoomInfo, 0, len(ms))
	for _, m := range ms {
		snap := m.Snapshot()
		out = append(out, roomdto.RoomInfo{
			Room:        snap.Room,
			TimeControl: int(snap.TimeControl / time.Second),
			Bot:         snap.Bot,
			Waiting:     !snap.Bot && snap.BlackPlayer == "",
			Finished:    snap.Finished(),
			Moves:       snap.Moves,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Waiting != out[j].Waiting {
			return out[i].Waiting
		}
		return out[i].Room < out[j].Room
	})
	return out
}

func playerName(rec registry.Record, seat domain.Color) string {
	switch seat {
	case domain.White:
		return rec.White
	case domain.Black:
		return rec.Black
	default:
		return ""
	}
}
