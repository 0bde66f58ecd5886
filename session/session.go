// session/session.go
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/chessrelay/network"
)

// Session is one live connection: a stable handle, a mutable display name,
// and the room it is routed to.
type Session struct {
	ID        string
	Conn      network.Connection
	RoomID    string
	CreatedAt time.Time

	displayName string
	mutex       sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	return &Session{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
}

// NewHandle returns a fresh connection handle.
func NewHandle() string {
	return uuid.NewString()
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) DisplayName() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.displayName
}

func (s *Session) SetDisplayName(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.displayName = name
}

// Send pushes a server event to the client.
func (s *Session) Send(event string, payload any) error {
	msg, err := network.NewMessage(event, payload)
	if err != nil {
		return err
	}
	if err := s.Conn.Send(msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", event, s.ID, err)
	}
	return nil
}

// Reply answers the request that carried ack.
func (s *Session) Reply(ack uint64, payload any) error {
	msg, err := network.NewAck(ack, payload)
	if err != nil {
		return err
	}
	if err := s.Conn.Send(msg); err != nil {
		return fmt.Errorf("reply to %s: %w", s.ID, err)
	}
	return nil
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// HandleOf returns the identity key used for all membership comparisons.
func HandleOf(s *Session) string {
	return s.GetID()
}

// Manager is the connection registry.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// SetDisplayName stores name against the connection. Unknown handles are
// ignored.
func (m *Manager) SetDisplayName(sessionID, name string) {
	if s, ok := m.Get(sessionID); ok {
		s.SetDisplayName(name)
	}
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
