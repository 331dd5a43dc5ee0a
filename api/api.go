package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"rps-arena/game"
	"rps-arena/identity"
	"rps-arena/room"
	"rps-arena/websocket"
)

// Server wires the HTTP surface over the three core components plus the
// built-in user store.
type Server struct {
	rooms   *room.Registry
	games   *game.Engine
	users   *identity.Store
	sockets *websocket.Binder
}

func NewServer(rooms *room.Registry, games *game.Engine, users *identity.Store, sockets *websocket.Binder) *Server {
	return &Server{rooms: rooms, games: games, users: users, sockets: sockets}
}

func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/users/register", s.registerHandler).Methods("POST")
	r.HandleFunc("/api/users/login", s.loginHandler).Methods("POST")
	r.HandleFunc("/api/users/{userId}", s.getUserHandler).Methods("GET")

	r.HandleFunc("/api/rooms", s.createRoomHandler).Methods("POST")
	r.HandleFunc("/api/rooms", s.listRoomsHandler).Methods("GET")
	r.HandleFunc("/api/rooms/user/{userId}", s.getUserRoomHandler).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}", s.getRoomHandler).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/join", s.joinRoomHandler).Methods("POST")
	r.HandleFunc("/api/rooms/{roomId}/leave", s.leaveRoomHandler).Methods("POST")

	r.HandleFunc("/api/game/start", s.startGameHandler).Methods("POST")
	r.HandleFunc("/api/game/move", s.makeMoveHandler).Methods("POST")
	r.HandleFunc("/api/game/player/{userId}", s.getPlayerGameHandler).Methods("GET")
	r.HandleFunc("/api/game/{gameId}/status", s.getGameStatusHandler).Methods("GET")

	r.HandleFunc("/ws", websocket.Handler(s.sockets, s.games))
	r.HandleFunc("/health", s.healthHandler).Methods("GET")

	return handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

func (s *Server) Start(addr string, allowedOrigins []string) error {
	log.Info().Str("addr", addr).Msg("Server started")
	return http.ListenAndServe(addr, s.Router(allowedOrigins))
}

// statusFor maps core error kinds onto HTTP status codes: not-found 404,
// state conflicts 409, bad input 400, upstream verification failures 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrNotInRoom),
		errors.Is(err, game.ErrMatchNotFound),
		errors.Is(err, game.ErrNotInMatch),
		errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyInRoom),
		errors.Is(err, game.ErrMatchNotActive),
		errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidMove),
		errors.Is(err, game.ErrPlayerCount),
		errors.Is(err, identity.ErrUsernameTaken),
		errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrVerifyFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

func writeSuccess(w http.ResponseWriter, status int, key string, v interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		key:       v,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
		})
		return false
	}
	return true
}

func missingField(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// --- users ---

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		missingField(w, "Username and password required")
		return
	}

	user, err := s.users.Register(body.Username, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "user", user)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		missingField(w, "Username and password required")
		return
	}

	user, sessionID, err := s.users.Login(body.Username, body.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"sessionId": sessionID,
		"user":      user,
	})
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user", user)
}

// --- rooms ---

func (s *Server) createRoomHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostUserID string `json:"hostUserId"`
		RoomName   string `json:"roomName"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.HostUserID == "" {
		missingField(w, "Host user ID required")
		return
	}

	created, err := s.rooms.CreateRoom(body.HostUserID, body.RoomName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "room", created)
}

func (s *Server) joinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" {
		missingField(w, "User ID required")
		return
	}

	joined, err := s.rooms.JoinRoom(body.UserID, mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "room", joined)
}

func (s *Server) leaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" {
		missingField(w, "User ID required")
		return
	}

	left, err := s.rooms.LeaveRoom(body.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "room", left)
}

func (s *Server) getRoomHandler(w http.ResponseWriter, r *http.Request) {
	found, err := s.rooms.GetRoom(mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "room", found)
}

func (s *Server) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "rooms", s.rooms.ListRooms())
}

func (s *Server) getUserRoomHandler(w http.ResponseWriter, r *http.Request) {
	found, err := s.rooms.GetRoomForUser(mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "room", found)
}

// --- game ---

// startGameHandler is the engine entry point used when the room registry
// runs in a separate process; the in-process registry calls the engine
// directly.
func (s *Server) startGameHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoomID  string   `json:"roomId"`
		Players []string `json:"players"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RoomID == "" || len(body.Players) == 0 {
		missingField(w, "Room ID and players required")
		return
	}

	match, err := s.games.StartMatch(body.RoomID, body.Players)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "game", match)
}

func (s *Server) makeMoveHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		GameID string `json:"gameId"`
		Move   string `json:"move"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" || body.GameID == "" || body.Move == "" {
		missingField(w, "User ID, game ID, and move required")
		return
	}

	match, err := s.games.SubmitMove(body.UserID, body.GameID, game.Move(body.Move))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "game", match)
}

func (s *Server) getGameStatusHandler(w http.ResponseWriter, r *http.Request) {
	match, err := s.games.GetMatch(mux.Vars(r)["gameId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "game", match)
}

func (s *Server) getPlayerGameHandler(w http.ResponseWriter, r *http.Request) {
	match, err := s.games.GetMatchForPlayer(mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "game", match)
}

// --- health ---

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	roomCount, usersInRooms := s.rooms.Counts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":          "rps-arena",
		"status":           "healthy",
		"timestamp":        time.Now().Format(time.RFC3339),
		"rooms":            roomCount,
		"activeUsers":      usersInRooms,
		"activeGames":      s.games.Count(),
		"connectedClients": s.sockets.Count(),
	})
}
