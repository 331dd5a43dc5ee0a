package events

// Event is the closed set of payloads pushed to clients over the
// broadcast channel. Every variant carries its own wire type tag so the
// envelope can be built without a string-keyed registry.
type Event interface {
	EventType() string
}

// Envelope is the wire form of every outbound event: {"type": ..., "data": ...}.
type Envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

func Wrap(e Event) Envelope {
	return Envelope{Type: e.EventType(), Data: e}
}

type MatchStarted struct {
	MatchID     string    `json:"matchId"`
	Players     [2]string `json:"players"`
	CurrentTurn string    `json:"currentTurn"`
	Round       int       `json:"round"`
	RoundLimit  int       `json:"roundLimit"`
}

func (MatchStarted) EventType() string { return "match_started" }

type MoveMade struct {
	MatchID     string `json:"matchId"`
	Player      string `json:"player"`
	CurrentTurn string `json:"currentTurn"`
}

func (MoveMade) EventType() string { return "move_made" }

// SeatMoves records the revealed moves of one round, keyed by seat rather
// than identity. Callers map seats back to players via the match's seating.
type SeatMoves struct {
	Seat0 string `json:"seat0"`
	Seat1 string `json:"seat1"`
}

// RoundResult is one completed round. Winner is "seat0" or "seat1", or
// empty for a drawn round.
type RoundResult struct {
	Round  int       `json:"round"`
	Moves  SeatMoves `json:"moves"`
	Winner string    `json:"winner,omitempty"`
}

type RoundEnded struct {
	MatchID        string      `json:"matchId"`
	CompletedRound int         `json:"completedRound"`
	Result         RoundResult `json:"result"`
	NextRound      int         `json:"nextRound"`
	CurrentTurn    string      `json:"currentTurn"`
}

func (RoundEnded) EventType() string { return "round_ended" }

type Score struct {
	Seat0 int `json:"seat0"`
	Seat1 int `json:"seat1"`
}

type GameEnded struct {
	MatchID    string        `json:"matchId"`
	Winner     string        `json:"winner"`
	Rounds     []RoundResult `json:"rounds"`
	FinalScore Score         `json:"finalScore"`
}

func (GameEnded) EventType() string { return "game_ended" }

type Error struct {
	Message string `json:"message"`
}

func (Error) EventType() string { return "error" }

// MoveResult is the direct reply to a make_move channel message. It goes
// only to the submitting player; the shared state change travels as
// move_made / round_ended / game_ended.
type MoveResult struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Game    interface{} `json:"game,omitempty"`
}

func (MoveResult) EventType() string { return "move_result" }

// GameStatus is the direct reply to a get_game_status channel message.
type GameStatus struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Game    interface{} `json:"game,omitempty"`
}

func (GameStatus) EventType() string { return "game_status" }
