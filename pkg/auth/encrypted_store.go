package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// PassphraseEnv overrides the generated passphrase file
const PassphraseEnv = "IGBACKEND_PASSPHRASE"

// EncryptedFileStore keeps one AES-GCM encrypted file per account:
// <dir>/session-<username>.enc
type EncryptedFileStore struct {
	dir        string
	passphrase string
	mu         sync.RWMutex
}

// sealedFile is the on-disk envelope
type sealedFile struct {
	Version  int       `json:"version"`
	Salt     string    `json:"salt"`
	Data     string    `json:"data"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore creates the directory and loads or generates the passphrase
func NewEncryptedFileStore(dir string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	store := &EncryptedFileStore{dir: dir}
	passphrase, err := store.getPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	store.passphrase = passphrase

	return store, nil
}

func (e *EncryptedFileStore) path(username string) string {
	return filepath.Join(e.dir, "session-"+username+".enc")
}

// Save encrypts and writes the session, replacing any previous file
func (e *EncryptedFileStore) Save(session *Session) error {
	if session == nil || !validUsername(session.Username) {
		return ErrInvalidSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	encrypted, err := encrypt(plaintext, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	content, err := json.MarshalIndent(sealedFile{
		Version:  1,
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Data:     base64.StdEncoding.EncodeToString(encrypted),
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	target := e.path(session.Username)
	tempFile := target + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Load decrypts the session for username
func (e *EncryptedFileStore) Load(username string) (*Session, error) {
	if !validUsername(username) {
		return nil, ErrInvalidSession
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	content, err := os.ReadFile(e.path(username))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sealed sealedFile
	if err := json.Unmarshal(content, &sealed); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(sealed.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	encrypted, err := base64.StdEncoding.DecodeString(sealed.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plaintext, err := decrypt(encrypted, e.key(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &session, nil
}

// Delete removes the session file
func (e *EncryptedFileStore) Delete(username string) error {
	if !validUsername(username) {
		return ErrInvalidSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.Remove(e.path(username)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Exists checks whether a session file is present
func (e *EncryptedFileStore) Exists(username string) bool {
	if !validUsername(username) {
		return false
	}
	_, err := os.Stat(e.path(username))
	return err == nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// getPassphrase reads IGBACKEND_PASSPHRASE or <dir>/.passphrase, generating the file on first use
func (e *EncryptedFileStore) getPassphrase() (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	passphraseFile := filepath.Join(e.dir, ".passphrase")
	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// encrypt encrypts data using AES-GCM; the nonce is prepended
func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt reverses encrypt
func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
