package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rps-arena/identity"
	"rps-arena/utils"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrAlreadyInRoom = errors.New("already in room")
var ErrNotInRoom = errors.New("user not in any room")
var ErrVerifyFailed = errors.New("failed to verify user")

// MaxPlayers is fixed: this service only pairs two-player matches.
const MaxPlayers = 2

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusReady   Status = "ready"
	StatusActive  Status = "active"
)

type Room struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HostID     string    `json:"hostId"`
	Players    []string  `json:"players"` // seat order = join order
	MaxPlayers int       `json:"maxPlayers"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r *Room) clone() *Room {
	c := *r
	c.Players = append([]string(nil), r.Players...)
	return &c
}

// Summary is the listing shape: membership is reduced to a count.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HostID      string    `json:"hostId"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GameStarter is the match engine as seen from the registry. The call is
// synchronous; a failure is logged and the join is not rolled back.
type GameStarter interface {
	StartMatch(roomID string, players []string) error
}

// StarterFunc adapts a plain function to GameStarter.
type StarterFunc func(roomID string, players []string) error

func (f StarterFunc) StartMatch(roomID string, players []string) error {
	return f(roomID, players)
}

// Disconnector tears down a player's broadcast binding when they leave.
type Disconnector interface {
	Unbind(userID string)
}

// Registry owns all room state. Rooms are only ever mutated through its
// methods, behind one mutex.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	userRooms map[string]string // userID -> roomID

	verifier     identity.Verifier
	starter      GameStarter
	disconnector Disconnector
}

func NewRegistry(verifier identity.Verifier, starter GameStarter, disconnector Disconnector) *Registry {
	return &Registry{
		rooms:        make(map[string]*Room),
		userRooms:    make(map[string]string),
		verifier:     verifier,
		starter:      starter,
		disconnector: disconnector,
	}
}

func (reg *Registry) verify(userID string) error {
	ok, err := reg.verifier.Exists(userID)
	if err != nil {
		return ErrVerifyFailed
	}
	if !ok {
		return identity.ErrUserNotFound
	}
	return nil
}

// CreateRoom allocates a new waiting room with the host as sole member.
func (reg *Registry) CreateRoom(hostID, name string) (*Room, error) {
	if err := reg.verify(hostID); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := utils.GenerateUUIDString()
	if name == "" {
		name = fmt.Sprintf("Room %s", utils.ShortID(id, 8))
	}

	room := &Room{
		ID:         id,
		Name:       name,
		HostID:     hostID,
		Players:    []string{hostID},
		MaxPlayers: MaxPlayers,
		Status:     StatusWaiting,
		CreatedAt:  time.Now(),
	}
	reg.rooms[id] = room
	reg.userRooms[hostID] = id

	log.Info().Str("roomID", id).Str("hostID", hostID).Msg("Room created")
	return room.clone(), nil
}

// JoinRoom appends the user to the room. Filling the room hands the
// player set to the match engine; if that call fails the room is left in
// ready state and the join stands.
func (reg *Registry) JoinRoom(userID, roomID string) (*Room, error) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if len(room.Players) >= room.MaxPlayers {
		reg.mu.Unlock()
		return nil, ErrRoomFull
	}
	if contains(room.Players, userID) {
		reg.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	reg.mu.Unlock()

	// Verification is an outbound call; don't hold the table lock across it.
	if err := reg.verify(userID); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	// Re-check: the room may have changed while we were verifying.
	room, ok = reg.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if len(room.Players) >= room.MaxPlayers {
		return nil, ErrRoomFull
	}
	if contains(room.Players, userID) {
		return nil, ErrAlreadyInRoom
	}

	room.Players = append(room.Players, userID)
	reg.userRooms[userID] = roomID
	log.Info().Str("roomID", roomID).Str("userID", userID).Msg("Player joined room")

	if len(room.Players) == room.MaxPlayers {
		room.Status = StatusReady
		if err := reg.starter.StartMatch(roomID, append([]string(nil), room.Players...)); err != nil {
			log.Error().Err(err).Str("roomID", roomID).Msg("Failed to start match")
		} else {
			room.Status = StatusActive
		}
	}

	return room.clone(), nil
}

// LeaveRoom removes the user from their current room. The last member out
// deletes the room; otherwise the host seat falls to the first remaining
// member and the room goes back to waiting. A match bound to the room is
// deliberately left running in the engine.
func (reg *Registry) LeaveRoom(userID string) (*Room, error) {
	reg.mu.Lock()

	roomID, ok := reg.userRooms[userID]
	if !ok {
		reg.mu.Unlock()
		return nil, ErrNotInRoom
	}
	room, ok := reg.rooms[roomID]
	if !ok {
		delete(reg.userRooms, userID)
		reg.mu.Unlock()
		return nil, ErrRoomNotFound
	}

	room.Players = remove(room.Players, userID)
	delete(reg.userRooms, userID)

	if len(room.Players) == 0 {
		delete(reg.rooms, roomID)
		log.Info().Str("roomID", roomID).Msg("Room deleted, last player left")
	} else {
		if room.HostID == userID {
			room.HostID = room.Players[0]
			log.Info().Str("roomID", roomID).Str("hostID", room.HostID).Msg("Host reassigned")
		}
		room.Status = StatusWaiting
	}

	snapshot := room.clone()
	reg.mu.Unlock()

	if reg.disconnector != nil {
		reg.disconnector.Unbind(userID)
	}

	log.Info().Str("roomID", roomID).Str("userID", userID).Msg("Player left room")
	return snapshot, nil
}

func (reg *Registry) GetRoom(roomID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.clone(), nil
}

func (reg *Registry) GetRoomForUser(userID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomID, ok := reg.userRooms[userID]
	if !ok {
		return nil, ErrNotInRoom
	}
	room, ok := reg.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.clone(), nil
}

func (reg *Registry) ListRooms() []Summary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	summaries := make([]Summary, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		summaries = append(summaries, Summary{
			ID:          room.ID,
			Name:        room.Name,
			HostID:      room.HostID,
			PlayerCount: len(room.Players),
			MaxPlayers:  room.MaxPlayers,
			Status:      room.Status,
			CreatedAt:   room.CreatedAt,
		})
	}
	return summaries
}

// Counts reports table sizes for the health endpoint.
func (reg *Registry) Counts() (rooms, usersInRooms int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms), len(reg.userRooms)
}

func contains(players []string, userID string) bool {
	for _, p := range players {
		if p == userID {
			return true
		}
	}
	return false
}

func remove(players []string, userID string) []string {
	out := players[:0]
	for _, p := range players {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}
