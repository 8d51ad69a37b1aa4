// Package session holds the per-operator state: the password gate and the
// selection, last results and query cache scoped to one dashboard session.
package session

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"crmsms/internal/engine"
	"crmsms/internal/models"
	"crmsms/internal/warehouse"
)

// ErrBadPassword is returned when the gate password does not match.
var ErrBadPassword = errors.New("wrong password")

// Session is the explicit session-scoped context object. Created on login,
// discarded on logout; nothing in it persists or expires on its own.
type Session struct {
	ID        string
	CreatedAt time.Time

	Selection   *engine.Selection
	LastResults []models.StoreRow
	LastFilter  *models.FilterDescriptor
	Memo        *warehouse.Memoizer
}

// Manager gates access behind the shared secret and tracks live sessions.
type Manager struct {
	password string
	cacheTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a manager for the given gate password. cacheTTL sizes
// each session's query memoizer window.
func NewManager(password string, cacheTTL time.Duration) *Manager {
	return &Manager{
		password: password,
		cacheTTL: cacheTTL,
		sessions: map[string]*Session{},
	}
}

// Login checks the shared secret and creates a fresh session. The compare is
// constant-time; there is no lockout or rate limit beyond what the caller
// adds.
func (m *Manager) Login(password string) (*Session, error) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) != 1 {
		return nil, ErrBadPassword
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Selection: engine.NewSelection(),
		Memo:      warehouse.NewMemoizer(m.cacheTTL),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get resolves a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Logout discards the session and everything accumulated in it. Unknown IDs
// are a no-op.
func (m *Manager) Logout(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
