package game

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rps-arena/events"
	"rps-arena/utils"
)

var ErrMatchNotFound = errors.New("match not found")
var ErrMatchNotActive = errors.New("match is not active")
var ErrNotYourTurn = errors.New("not your turn")
var ErrInvalidMove = errors.New("invalid move")
var ErrNotInMatch = errors.New("player not in any match")
var ErrPlayerCount = errors.New("exactly two players required")

type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

// beats maps each move to the move it defeats.
var beats = map[Move]Move{
	MoveRock:     MoveScissors,
	MovePaper:    MoveRock,
	MoveScissors: MovePaper,
}

func ValidMove(m Move) bool {
	_, ok := beats[m]
	return ok
}

// RoundLimit is fixed: every match is best-of-three.
const RoundLimit = 3

type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Match is one game between two seated players. Seats 0 and 1 are fixed
// for the whole match; Winner stays empty on a drawn match.
type Match struct {
	ID           string               `json:"id"`
	RoomID       string               `json:"roomId"`
	Players      [2]string            `json:"players"`
	CurrentTurn  string               `json:"currentTurn"`
	PendingMoves map[string]Move      `json:"moves"`
	Rounds       []events.RoundResult `json:"rounds"`
	CurrentRound int                  `json:"currentRound"`
	RoundLimit   int                  `json:"maxRounds"`
	Status       Status               `json:"status"`
	Winner       string               `json:"winner"`
	CreatedAt    time.Time            `json:"createdAt"`
}

func (m *Match) clone() *Match {
	c := *m
	c.PendingMoves = make(map[string]Move, len(m.PendingMoves))
	for k, v := range m.PendingMoves {
		c.PendingMoves[k] = v
	}
	c.Rounds = append([]events.RoundResult(nil), m.Rounds...)
	return &c
}

func (m *Match) seatOf(userID string) (int, bool) {
	switch userID {
	case m.Players[0]:
		return 0, true
	case m.Players[1]:
		return 1, true
	}
	return 0, false
}

// Broadcaster fans an event out to a set of players, best effort. The
// returned count is how many were actually delivered; the engine never
// waits on or reacts to it beyond logging.
type Broadcaster interface {
	SendToMany(userIDs []string, e events.Event) int
}

// Engine owns all match state behind one mutex.
type Engine struct {
	mu            sync.Mutex
	matches       map[string]*Match
	playerMatches map[string]string // userID -> matchID, latest match wins
	broadcaster   Broadcaster
}

func NewEngine(b Broadcaster) *Engine {
	return &Engine{
		matches:       make(map[string]*Match),
		playerMatches: make(map[string]string),
		broadcaster:   b,
	}
}

// StartMatch creates a match from a filled room. Seat order follows the
// given player order and seat 0 opens round 1.
func (e *Engine) StartMatch(roomID string, players []string) (*Match, error) {
	if len(players) != 2 {
		return nil, ErrPlayerCount
	}

	e.mu.Lock()

	match := &Match{
		ID:           utils.GenerateUUIDString(),
		RoomID:       roomID,
		Players:      [2]string{players[0], players[1]},
		CurrentTurn:  players[0],
		PendingMoves: make(map[string]Move),
		CurrentRound: 1,
		RoundLimit:   RoundLimit,
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
	e.matches[match.ID] = match
	for _, p := range players {
		e.playerMatches[p] = match.ID
	}

	snapshot := match.clone()
	e.mu.Unlock()

	log.Info().Str("matchID", match.ID).Str("roomID", roomID).Strs("players", players).Msg("Match started")
	e.broadcaster.SendToMany(players, events.MatchStarted{
		MatchID:     match.ID,
		Players:     match.Players,
		CurrentTurn: match.CurrentTurn,
		Round:       match.CurrentRound,
		RoundLimit:  match.RoundLimit,
	})

	return snapshot, nil
}

// SubmitMove records a move for the player whose turn it is. The first
// move of a round passes the turn to the other seat; the second resolves
// the round and either opens the next one or finishes the match.
func (e *Engine) SubmitMove(userID, matchID string, mv Move) (*Match, error) {
	e.mu.Lock()

	match, ok := e.matches[matchID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrMatchNotFound
	}
	if match.Status != StatusActive {
		e.mu.Unlock()
		return nil, ErrMatchNotActive
	}
	if match.CurrentTurn != userID {
		e.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	if !ValidMove(mv) {
		e.mu.Unlock()
		return nil, ErrInvalidMove
	}

	match.PendingMoves[userID] = mv

	var emit events.Event
	players := match.Players[:]

	if len(match.PendingMoves) < len(match.Players) {
		seat, _ := match.seatOf(userID)
		match.CurrentTurn = match.Players[1-seat]
		emit = events.MoveMade{
			MatchID:     match.ID,
			Player:      userID,
			CurrentTurn: match.CurrentTurn,
		}
	} else {
		result := resolveRound(match)
		match.Rounds = append(match.Rounds, result)
		match.PendingMoves = make(map[string]Move)

		if match.CurrentRound >= match.RoundLimit {
			score := tally(match.Rounds)
			match.Status = StatusFinished
			match.Winner = matchWinner(match, score)
			emit = events.GameEnded{
				MatchID:    match.ID,
				Winner:     match.Winner,
				Rounds:     append([]events.RoundResult(nil), match.Rounds...),
				FinalScore: score,
			}
			log.Info().Str("matchID", match.ID).Str("winner", match.Winner).Msg("Match finished")
		} else {
			match.CurrentRound++
			match.CurrentTurn = match.Players[0] // seat 0 opens every round
			emit = events.RoundEnded{
				MatchID:        match.ID,
				CompletedRound: result.Round,
				Result:         result,
				NextRound:      match.CurrentRound,
				CurrentTurn:    match.CurrentTurn,
			}
		}
	}

	snapshot := match.clone()
	e.mu.Unlock()

	delivered := e.broadcaster.SendToMany(players, emit)
	log.Debug().Str("matchID", matchID).Str("event", emit.EventType()).Int("delivered", delivered).Msg("Broadcast sent")

	return snapshot, nil
}

func (e *Engine) GetMatch(matchID string) (*Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	match, ok := e.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return match.clone(), nil
}

// GetMatchForPlayer returns the player's most recent match.
func (e *Engine) GetMatchForPlayer(userID string) (*Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	matchID, ok := e.playerMatches[userID]
	if !ok {
		return nil, ErrNotInMatch
	}
	match, ok := e.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return match.clone(), nil
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.matches)
}

// resolveRound compares the two pending moves. Both are guaranteed
// present by the caller.
func resolveRound(m *Match) events.RoundResult {
	move0 := m.PendingMoves[m.Players[0]]
	move1 := m.PendingMoves[m.Players[1]]

	return events.RoundResult{
		Round:  m.CurrentRound,
		Moves:  events.SeatMoves{Seat0: string(move0), Seat1: string(move1)},
		Winner: compareMoves(move0, move1),
	}
}

// compareMoves returns the seat label of the round winner, or empty for a
// draw.
func compareMoves(move0, move1 Move) string {
	if move0 == move1 {
		return ""
	}
	if beats[move0] == move1 {
		return "seat0"
	}
	return "seat1"
}

func tally(rounds []events.RoundResult) events.Score {
	var score events.Score
	for _, r := range rounds {
		switch r.Winner {
		case "seat0":
			score.Seat0++
		case "seat1":
			score.Seat1++
		}
	}
	return score
}

// matchWinner maps the seat with strictly more round wins back to a
// player identity; equal counts mean no winner.
func matchWinner(m *Match, score events.Score) string {
	switch {
	case score.Seat0 > score.Seat1:
		return m.Players[0]
	case score.Seat1 > score.Seat0:
		return m.Players[1]
	default:
		return ""
	}
}
