// Package auth persists Instagram login sessions per account so a later
// login can reuse them instead of sending the password again.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"igbackend/pkg/logger"
)

// Cookie is the persisted form of an http.Cookie
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Session is an opaque per-account bundle of authenticated cookies
type Session struct {
	Username string    `json:"username"`
	UserID   string    `json:"user_id,omitempty"`
	Cookies  []Cookie  `json:"cookies"`
	Source   string    `json:"source,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// CookieValue returns the value of the named cookie or ""
func (s *Session) CookieValue(name string) string {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// HTTPCookies converts the bundle for use with a cookie jar
func (s *Session) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}

// FromHTTPCookies converts cookies read from a jar or a browser store
func FromHTTPCookies(cookies []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}

// Redacted returns a copy safe for logs: cookie values are masked
func (s *Session) Redacted() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Cookies = make([]Cookie, len(s.Cookies))
	for i, c := range s.Cookies {
		c.Value = maskString(c.Value)
		cp.Cookies[i] = c
	}
	return &cp
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Store persists session bundles
type Store interface {
	Save(session *Session) error
	Load(username string) (*Session, error)
	Delete(username string) error
	Exists(username string) bool
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Manager saves to the first store that accepts a session and loads from
// the first store that has one
type Manager struct {
	stores []Store
	log    logger.Logger
}

// NewManager creates a session manager: system keyring first (when enabled
// and reachable), then an encrypted file under dir, then the environment.
func NewManager(dir string, useKeyring bool, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var stores []Store
	if useKeyring {
		if ks, err := NewKeyringStore(); err == nil {
			stores = append(stores, ks)
		} else {
			log.WithError(err).Debug("System keyring unavailable, using encrypted file store")
		}
	}

	fs, err := NewEncryptedFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs, NewEnvironmentStore())

	return &Manager{stores: stores, log: log}, nil
}

// NewManagerWithStores builds a Manager over explicit stores
func NewManagerWithStores(log logger.Logger, stores ...Store) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{stores: stores, log: log}
}

// Save persists the session using the first store that accepts it
func (m *Manager) Save(session *Session) error {
	if session == nil || session.Username == "" {
		return ErrInvalidSession
	}
	if len(session.Cookies) == 0 {
		return fmt.Errorf("%w: no cookies", ErrInvalidSession)
	}
	session.SavedAt = time.Now().UTC()

	var errs []error
	for _, store := range m.stores {
		err := store.Save(session)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("failed to save session: %w", errors.Join(errs...))
}

// Load returns the saved session for username
func (m *Manager) Load(username string) (*Session, error) {
	for _, store := range m.stores {
		session, err := store.Load(username)
		if err == nil && session != nil {
			return session, nil
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.log.WithError(err).WithField("username", username).Debug("Session store lookup failed")
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, username)
}

// Delete removes the session from every store
func (m *Manager) Delete(username string) error {
	deleted := false
	var errs []error
	for _, store := range m.stores {
		err := store.Delete(username)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to delete session: %w", errors.Join(errs...))
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, username)
	}
	return nil
}

// Exists reports whether any store holds a session for username
func (m *Manager) Exists(username string) bool {
	for _, store := range m.stores {
		if store.Exists(username) {
			return true
		}
	}
	return false
}

// validUsername rejects names that cannot be used as file or keyring keys
func validUsername(username string) bool {
	return username != "" && !strings.ContainsAny(username, `/\:`) && username != "." && username != ".."
}
