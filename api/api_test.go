package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"rps-arena/game"
	"rps-arena/identity"
	"rps-arena/room"
	"rps-arena/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	users := identity.NewStore()
	binder := websocket.NewBinder()
	engine := game.NewEngine(binder)
	starter := room.StarterFunc(func(roomID string, players []string) error {
		_, err := engine.StartMatch(roomID, players)
		return err
	})
	rooms := room.NewRegistry(users, starter, binder)

	server := NewServer(rooms, engine, users, binder)
	srv := httptest.NewServer(server.Router([]string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func registerUser(t *testing.T, baseURL, username string) string {
	t.Helper()
	status, body := postJSON(t, baseURL+"/api/users/register", map[string]string{
		"username": username,
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, status)
	user := body["user"].(map[string]interface{})
	return user["id"].(string)
}

func createFilledRoom(t *testing.T, baseURL, hostID, guestID string) string {
	t.Helper()
	status, body := postJSON(t, baseURL+"/api/rooms", map[string]string{"hostUserId": hostID})
	require.Equal(t, http.StatusCreated, status)
	created := body["room"].(map[string]interface{})
	roomID := created["id"].(string)

	status, body = postJSON(t, baseURL+"/api/rooms/"+roomID+"/join", map[string]string{"userId": guestID})
	require.Equal(t, http.StatusOK, status)
	joined := body["room"].(map[string]interface{})
	require.Equal(t, "active", joined["status"])
	return roomID
}

func TestFullMatchOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	alice := registerUser(t, srv.URL, "alice")
	bob := registerUser(t, srv.URL, "bob")
	createFilledRoom(t, srv.URL, alice, bob)

	status, body := getJSON(t, srv.URL+"/api/game/player/"+alice)
	require.Equal(t, http.StatusOK, status)
	match := body["game"].(map[string]interface{})
	gameID := match["id"].(string)
	require.Equal(t, alice, match["currentTurn"])

	// Out-of-turn and invalid moves are rejected without touching state.
	status, _ = postJSON(t, srv.URL+"/api/game/move", map[string]string{
		"userId": bob, "gameId": gameID, "move": "rock",
	})
	require.Equal(t, http.StatusConflict, status)
	status, _ = postJSON(t, srv.URL+"/api/game/move", map[string]string{
		"userId": alice, "gameId": gameID, "move": "lizard",
	})
	require.Equal(t, http.StatusBadRequest, status)

	// Alice sweeps all three rounds.
	for round := 0; round < 3; round++ {
		status, _ = postJSON(t, srv.URL+"/api/game/move", map[string]string{
			"userId": alice, "gameId": gameID, "move": "rock",
		})
		require.Equal(t, http.StatusOK, status)
		status, _ = postJSON(t, srv.URL+"/api/game/move", map[string]string{
			"userId": bob, "gameId": gameID, "move": "scissors",
		})
		require.Equal(t, http.StatusOK, status)
	}

	status, body = getJSON(t, srv.URL+"/api/game/"+gameID+"/status")
	require.Equal(t, http.StatusOK, status)
	final := body["game"].(map[string]interface{})
	require.Equal(t, "finished", final["status"])
	require.Equal(t, alice, final["winner"])
	require.Len(t, final["rounds"].([]interface{}), 3)

	// A finished match accepts no more moves.
	status, _ = postJSON(t, srv.URL+"/api/game/move", map[string]string{
		"userId": alice, "gameId": gameID, "move": "rock",
	})
	require.Equal(t, http.StatusConflict, status)
}

func TestLeaveDuringMatchKeepsMatchRunning(t *testing.T) {
	srv := newTestServer(t)

	alice := registerUser(t, srv.URL, "alice")
	bob := registerUser(t, srv.URL, "bob")
	roomID := createFilledRoom(t, srv.URL, alice, bob)

	status, body := postJSON(t, srv.URL+"/api/rooms/"+roomID+"/leave", map[string]string{"userId": alice})
	require.Equal(t, http.StatusOK, status)
	left := body["room"].(map[string]interface{})
	require.Equal(t, bob, left["hostId"])
	require.Equal(t, "waiting", left["status"])

	// The bound match is untouched by the departure.
	status, body = getJSON(t, srv.URL+"/api/game/player/"+bob)
	require.Equal(t, http.StatusOK, status)
	match := body["game"].(map[string]interface{})
	require.Equal(t, "active", match["status"])
}

func TestRoomErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	alice := registerUser(t, srv.URL, "alice")
	bob := registerUser(t, srv.URL, "bob")
	carol := registerUser(t, srv.URL, "carol")

	// Unknown host on create.
	status, body := postJSON(t, srv.URL+"/api/rooms", map[string]string{"hostUserId": "ghost"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, false, body["success"])

	// Unknown room on join.
	status, _ = postJSON(t, srv.URL+"/api/rooms/missing/join", map[string]string{"userId": alice})
	require.Equal(t, http.StatusNotFound, status)

	// Full room on join.
	roomID := createFilledRoom(t, srv.URL, alice, bob)
	status, _ = postJSON(t, srv.URL+"/api/rooms/"+roomID+"/join", map[string]string{"userId": carol})
	require.Equal(t, http.StatusConflict, status)

	// Leaving while in no room.
	status, _ = postJSON(t, srv.URL+"/api/rooms/"+roomID+"/leave", map[string]string{"userId": carol})
	require.Equal(t, http.StatusNotFound, status)

	// Missing fields are validation failures.
	status, _ = postJSON(t, srv.URL+"/api/rooms", map[string]string{})
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = postJSON(t, srv.URL+"/api/game/move", map[string]string{"userId": alice})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHealthReportsTableSizes(t *testing.T) {
	srv := newTestServer(t)

	alice := registerUser(t, srv.URL, "alice")
	bob := registerUser(t, srv.URL, "bob")
	createFilledRoom(t, srv.URL, alice, bob)

	status, body := getJSON(t, srv.URL+"/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, float64(1), body["rooms"])
	require.Equal(t, float64(2), body["activeUsers"])
	require.Equal(t, float64(1), body["activeGames"])
	require.Equal(t, float64(0), body["connectedClients"])
}

func TestListRoomsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	alice := registerUser(t, srv.URL, "alice")
	status, body := postJSON(t, srv.URL+"/api/rooms", map[string]string{
		"hostUserId": alice,
		"roomName":   "friday night",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body = getJSON(t, srv.URL+"/api/rooms")
	require.Equal(t, http.StatusOK, status)
	rooms := body["rooms"].([]interface{})
	require.Len(t, rooms, 1)
	summary := rooms[0].(map[string]interface{})
	require.Equal(t, "friday night", summary["name"])
	require.Equal(t, float64(1), summary["playerCount"])
	require.Equal(t, "waiting", summary["status"])
}
