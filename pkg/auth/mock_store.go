package auth

import "sync"

// MockStore is an in-memory Store with error injection for tests
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]Session

	SaveError   error
	LoadError   error
	DeleteError error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{sessions: make(map[string]Session)}
}

// Save stores a copy of the session
func (m *MockStore) Save(session *Session) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if session == nil || session.Username == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	cp.Cookies = append([]Cookie(nil), session.Cookies...)
	m.sessions[session.Username] = cp
	return nil
}

// Load returns a copy of the stored session
func (m *MockStore) Load(username string) (*Session, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[username]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Cookies = append([]Cookie(nil), s.Cookies...)
	return &s, nil
}

// Delete removes the session
func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[username]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, username)
	return nil
}

// Exists checks whether a session is stored
func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[username]
	return ok
}

// Count returns the number of stored sessions
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
