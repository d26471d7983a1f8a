package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
	"github.com/park285/chessroom/internal/obslog"
	"github.com/park285/chessroom/internal/persist"
	"github.com/park285/chessroom/internal/render"
	"github.com/park285/chessroom/pkg/roomdto"
)

// Handler returns the HTTP routes, the WebSocket endpoint included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /rooms/{room}/board.png", s.boardPNG)
	mux.HandleFunc("GET /api/rooms", s.lobby)
	mux.HandleFunc("GET /api/games/recent", s.recentGames)
	mux.HandleFunc("GET /api/players/{name}/stats", s.playerStats)
	mux.HandleFunc("GET /api/leaderboard", s.leaderboard)
	return mux
}

type health struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, health{Status: "ok", Rooms: s.rooms.RoomCount()})
}

func (s *Server) lobby(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rooms.Lobby())
}

func (s *Server) boardPNG(w http.ResponseWriter, r *http.Request) {
	snap, err := s.rooms.Board(r.PathValue("room"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	img, err := s.renderer.RenderPNG(r.Context(), render.Board{
		Matrix:   snap.Board,
		LastMove: snap.LastMove,
		Caption:  captionOf(snap),
	})
	if err != nil {
		obslog.L().Warn("render_error", zap.String("room", snap.Room), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

func captionOf(s match.Snapshot) string {
	if s.Finished() {
		return fmt.Sprintf("%s: %s (%s)", s.Room, s.Outcome.Winner(), s.Reason)
	}
	return fmt.Sprintf("%s: %s to move", s.Room, s.Turn)
}

func (s *Server) recentGames(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	games, err := s.history.RecentGames(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.historyError(w, "recent", err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) playerStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	st, err := s.history.PlayerStats(r.Context(), r.PathValue("name"))
	if err != nil {
		s.historyError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	rows, err := s.history.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.historyError(w, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) historyError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, persist.ErrUnknownMatch) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	obslog.L().Warn("history_error", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "history unavailable")
}

// queryInt returns 0 for a missing or malformed value; the history layer
// substitutes its default.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIllegalAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, roomdto.Error{Message: msg})
}
