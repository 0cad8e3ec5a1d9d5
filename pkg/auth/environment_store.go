package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvSessionID = "IGBACKEND_SESSIONID"
	EnvCSRFToken = "IGBACKEND_CSRFTOKEN"
	EnvUsername  = "IGBACKEND_SESSION_USER"
)

// EnvironmentStore exposes a read-only session assembled from environment
// variables, for headless hosts without a browser or keychain
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(*Session) error {
	return ErrStoreUnavailable
}

// Load returns the environment session when it belongs to username
func (e *EnvironmentStore) Load(username string) (*Session, error) {
	sessionID := os.Getenv(EnvSessionID)
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	if owner := os.Getenv(EnvUsername); owner != "" && owner != username {
		return nil, ErrSessionNotFound
	}

	cookies := []Cookie{{Name: "sessionid", Value: sessionID, Domain: ".instagram.com", Path: "/", Secure: true, HttpOnly: true}}
	if csrf := os.Getenv(EnvCSRFToken); csrf != "" {
		cookies = append(cookies, Cookie{Name: "csrftoken", Value: csrf, Domain: ".instagram.com", Path: "/", Secure: true})
	}

	return &Session{
		Username: username,
		Cookies:  cookies,
		Source:   "environment",
		SavedAt:  time.Now().UTC(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials apply to username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Load(username)
	return err == nil
}
