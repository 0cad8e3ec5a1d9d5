package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "igbackend"
	keyringPrefix  = "session_"
)

// KeyringStore keeps session bundles in the system keychain
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unreachable
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "probe_availability"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)

	return &KeyringStore{}, nil
}

// Save stores the session as JSON under session_<username>
func (k *KeyringStore) Save(session *Session) error {
	if session == nil || !validUsername(session.Username) {
		return ErrInvalidSession
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Some keychains cap secret size; the manager then falls back to the file store
	if err := keyring.Set(keyringService, keyringPrefix+session.Username, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Load reads the session for username
func (k *KeyringStore) Load(username string) (*Session, error) {
	if !validUsername(username) {
		return nil, ErrInvalidSession
	}

	data, err := keyring.Get(keyringService, keyringPrefix+username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the session for username
func (k *KeyringStore) Delete(username string) error {
	if !validUsername(username) {
		return ErrInvalidSession
	}

	if err := keyring.Delete(keyringService, keyringPrefix+username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if the keychain holds a session for username
func (k *KeyringStore) Exists(username string) bool {
	if !validUsername(username) {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+username)
	return err == nil
}
