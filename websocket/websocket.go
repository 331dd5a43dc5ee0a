package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"rps-arena/events"
	"rps-arena/game"
)

// Conn is the slice of a websocket connection the binder needs. Tests
// substitute an in-memory fake.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type binding struct {
	mu   sync.Mutex // serializes writes to one connection
	conn Conn
}

func (b *binding) write(v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.WriteJSON(v)
}

// Binder maps a player identity to its single live outbound connection.
// Delivery is fire and forget: an unbound or failing recipient is simply
// skipped, there is no queueing or retry.
type Binder struct {
	mu    sync.Mutex
	conns map[string]*binding
}

func NewBinder() *Binder {
	return &Binder{conns: make(map[string]*binding)}
}

// Bind registers the connection for a player, silently replacing any
// previous one. Closing the replaced connection is the caller's problem.
func (b *Binder) Bind(userID string, c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[userID] = &binding{conn: c}
	log.Info().Str("userID", userID).Msg("Connection bound")
}

func (b *Binder) Unbind(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, userID)
}

// release unbinds only if the identity is still bound to this exact
// connection, so a rebind is not torn down by the old reader exiting.
func (b *Binder) release(userID string, c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bd, ok := b.conns[userID]; ok && bd.conn == c {
		delete(b.conns, userID)
	}
}

// SendToOne delivers the event if a live binding exists and reports
// whether it actually went out.
func (b *Binder) SendToOne(userID string, e events.Event) bool {
	b.mu.Lock()
	bd, ok := b.conns[userID]
	b.mu.Unlock()
	if !ok {
		return false
	}

	if err := bd.write(events.Wrap(e)); err != nil {
		log.Error().Err(err).Str("userID", userID).Str("event", e.EventType()).Msg("Failed to deliver event")
		return false
	}
	return true
}

// SendToMany fans out to each recipient independently; partial delivery
// is expected and only reflected in the returned count.
func (b *Binder) SendToMany(userIDs []string, e events.Event) int {
	delivered := 0
	for _, id := range userIDs {
		if b.SendToOne(id, e) {
			delivered++
		}
	}
	return delivered
}

func (b *Binder) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is the inbound envelope {type, data}.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type makeMovePayload struct {
	GameID string `json:"gameId"`
	Move   string `json:"move"`
}

type gameStatusPayload struct {
	GameID string `json:"gameId"`
}

// Handler upgrades the connection, binds it to the userId from the query
// string and dispatches inbound messages to the match engine. Replies go
// back to the sender only; a read error just drops the binding.
func Handler(binder *Binder, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "User ID is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Str("userID", userID).Msg("WebSocket upgrade error")
			return
		}
		defer conn.Close()

		binder.Bind(userID, conn)
		defer binder.release(userID, conn)
		log.Info().Str("userID", userID).Msg("WebSocket connection established")

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("userID", userID).Msg("WebSocket closed")
				return
			}

			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				binder.SendToOne(userID, events.Error{Message: "Invalid message format"})
				continue
			}

			dispatch(binder, engine, userID, msg)
		}
	}
}

func dispatch(binder *Binder, engine *game.Engine, userID string, msg clientMessage) {
	switch msg.Type {
	case "make_move":
		var p makeMovePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			binder.SendToOne(userID, events.Error{Message: "Invalid message format"})
			return
		}
		match, err := engine.SubmitMove(userID, p.GameID, game.Move(p.Move))
		if err != nil {
			binder.SendToOne(userID, events.MoveResult{Success: false, Error: err.Error()})
			return
		}
		binder.SendToOne(userID, events.MoveResult{Success: true, Game: match})

	case "get_game_status":
		var p gameStatusPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			binder.SendToOne(userID, events.Error{Message: "Invalid message format"})
			return
		}
		match, err := engine.GetMatch(p.GameID)
		if err != nil {
			binder.SendToOne(userID, events.GameStatus{Success: false, Error: err.Error()})
			return
		}
		binder.SendToOne(userID, events.GameStatus{Success: true, Game: match})

	default:
		binder.SendToOne(userID, events.Error{Message: "Unknown message type"})
	}
}
