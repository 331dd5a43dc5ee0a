package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rps-arena/utils"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUsernameTaken = errors.New("username already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")

// Verifier is the contract the room registry consumes: confirm that a
// player identity exists. A non-nil error means the lookup itself failed
// and the triggering operation must fail hard; it is never retried here.
type Verifier interface {
	Exists(userID string) (bool, error)
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	password string
}

// Store is the built-in user directory. It keeps credentials in plain
// memory; hardening them is out of scope for this service.
type Store struct {
	mu       sync.Mutex
	users    map[string]*User
	sessions map[string]string // sessionID -> userID
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*User),
		sessions: make(map[string]string),
	}
}

func (s *Store) Register(username, password string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return nil, ErrUsernameTaken
		}
	}

	user := &User{
		ID:        utils.GenerateUUIDString(),
		Username:  username,
		Status:    "offline",
		CreatedAt: time.Now(),
		password:  password,
	}
	s.users[user.ID] = user

	log.Info().Str("userID", user.ID).Str("username", username).Msg("User registered")
	return user, nil
}

// Login returns the user and a fresh session id.
func (s *Store) Login(username, password string) (*User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username && u.password == password {
			u.Status = "online"
			sessionID := utils.GenerateUUIDString()
			s.sessions[sessionID] = u.ID
			return u, sessionID, nil
		}
	}
	return nil, "", ErrInvalidCredentials
}

func (s *Store) Get(userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Store) Exists(userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok, nil
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// HTTPVerifier checks identities against an external user service,
// for deployments where user management runs as its own process.
type HTTPVerifier struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *HTTPVerifier) Exists(userID string) (bool, error) {
	resp, err := v.Client.Get(fmt.Sprintf("%s/api/users/%s", v.BaseURL, userID))
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("User verification call failed")
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("user service returned status %d", resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Success, nil
}
