// Package session owns the single active Instagram session of the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"igbackend/pkg/auth"
	errs "igbackend/pkg/errors"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
)

// Login methods reported to callers
const (
	MethodPassword       = "password"
	MethodSession        = "session"
	MethodBrowserCookies = "browser_cookies"
)

// State is the outcome of a status check
type State string

const (
	StateNotLoggedIn  State = "not_logged_in"
	StateOK           State = "ok"
	StateRateLimited  State = "rate_limited"
	StateSessionError State = "session_error"
	StateError        State = "error"
)

var (
	// ErrCredentialsRequired is returned for a password login without both fields
	ErrCredentialsRequired = errors.New("username and password required (or set use_browser_cookies)")
	// ErrBrowserCookiesFailed is returned when no browser holds a usable session
	ErrBrowserCookiesFailed = errors.New("no browser holds a usable Instagram session")
)

// DefaultBrowsers is the browser preference order for cookie import
var DefaultBrowsers = []string{"chrome", "edge", "firefox", "opera", "safari"}

// Credentials is a login request
type Credentials struct {
	Username          string
	Password          string
	UseBrowserCookies bool
}

// LoginResult describes a successful login
type LoginResult struct {
	Username string
	Method   string
}

// Status is the answer to a status check
type Status struct {
	LoggedIn   bool
	LoggedInAs string
	State      State
	Error      string
}

// Store persists session bundles. *auth.Manager implements it.
type Store interface {
	Save(session *auth.Session) error
	Load(username string) (*auth.Session, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager holds the process-wide active adapter and the account it is
// logged in as. Handlers get adapter snapshots; login and logout swap the
// handle, so an in-flight download keeps the adapter it started with.
type Manager struct {
	// loginMu serializes logins; mu guards adapter and user only and is
	// never held across Instagram calls
	loginMu  sync.Mutex
	mu       sync.Mutex
	factory  instagram.Factory
	store    Store
	browsers []string
	log      logger.Logger

	adapter instagram.Adapter
	user    string
}

// NewManager creates a manager. store may be nil to disable persistence.
func NewManager(factory instagram.Factory, store Store, browsers []string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	return &Manager{
		factory:  factory,
		store:    store,
		browsers: browsers,
		log:      log.WithField("component", "session"),
	}
}

// Adapter returns the current adapter, creating an anonymous one on first use
func (m *Manager) Adapter() instagram.Adapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adapter == nil {
		m.adapter = m.factory()
	}
	return m.adapter
}

// LoggedInAs returns the active account or ""
func (m *Manager) LoggedInAs() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// NormalizeUsername is the canonical form accounts are stored and compared in
func NormalizeUsername(username string) string {
	return strings.ToLower(instagram.SanitizeUsername(username))
}

// Login authenticates and makes the result the active session. Logins are
// serialized.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	username := NormalizeUsername(creds.Username)
	if !creds.UseBrowserCookies && (username == "" || creds.Password == "") {
		return nil, ErrCredentialsRequired
	}

	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	m.mu.Lock()
	if m.user != "" && (creds.UseBrowserCookies || m.user != username) {
		m.log.InfoWithFields("discarding active session", map[string]interface{}{
			"previous": m.user,
		})
		m.adapter = nil
		m.user = ""
	}
	m.mu.Unlock()

	if creds.UseBrowserCookies {
		return m.loginWithBrowser(ctx)
	}
	return m.loginWithPassword(ctx, username, creds.Password)
}

func (m *Manager) loginWithPassword(ctx context.Context, username, password string) (*LoginResult, error) {
	if adapter, ok := m.reuseSaved(ctx, username); ok {
		m.activate(adapter, username)
		return &LoginResult{Username: username, Method: MethodSession}, nil
	}

	adapter := m.factory()
	if err := adapter.Login(ctx, username, password); err != nil {
		return nil, err
	}

	m.persist(adapter, username, MethodPassword)
	m.activate(adapter, username)
	return &LoginResult{Username: username, Method: MethodPassword}, nil
}

// reuseSaved restores a saved bundle for username and keeps it if
// Instagram still recognises it. A rate-limited check counts as valid;
// bundles that fail verification are deleted.
func (m *Manager) reuseSaved(ctx context.Context, username string) (instagram.Adapter, bool) {
	if m.store == nil || !m.store.Exists(username) {
		return nil, false
	}

	saved, err := m.store.Load(username)
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) {
			m.log.WithError(err).Warn("could not load saved session")
		}
		return nil, false
	}

	adapter := m.factory()
	if err := adapter.ImportSession(saved); err != nil {
		m.log.WithError(err).Warn("saved session is unusable")
		m.forget(username)
		return nil, false
	}

	name, err := adapter.TestLogin(ctx)
	switch {
	case err != nil && errs.Is(err, errs.ErrorTypeRateLimit):
		m.log.WithField("username", username).Warn("rate limited while verifying saved session, assuming it is still valid")
		return adapter, true
	case err != nil:
		m.log.WithError(err).WithField("username", username).Info("saved session failed verification, logging in fresh")
		m.forget(username)
		return nil, false
	case !strings.EqualFold(name, username):
		m.log.WithFields(map[string]interface{}{
			"username": username,
			"session":  name,
		}).Info("saved session belongs to another account, logging in fresh")
		m.forget(username)
		return nil, false
	}
	return adapter, true
}

// forget deletes a stale saved bundle; failures are logged and ignored
func (m *Manager) forget(username string) {
	if err := m.store.Delete(username); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		m.log.WithError(err).WithField("username", username).Warn("could not delete stale session")
	}
}

func (m *Manager) loginWithBrowser(ctx context.Context) (*LoginResult, error) {
	var failures []error
	for _, browser := range m.browsers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		adapter := m.factory()
		username, err := adapter.LoadBrowserCookies(ctx, browser)
		if err != nil {
			m.log.WithError(err).WithField("browser", browser).Debug("browser cookies unusable")
			failures = append(failures, fmt.Errorf("%s: %w", browser, err))
			continue
		}
		username = NormalizeUsername(username)

		m.persist(adapter, username, "browser:"+browser)
		m.activate(adapter, username)
		m.log.WithFields(map[string]interface{}{
			"browser":  browser,
			"username": username,
		}).Info("logged in using browser cookies")
		return &LoginResult{Username: username, Method: MethodBrowserCookies}, nil
	}

	return nil, fmt.Errorf("%w (%w)", ErrBrowserCookiesFailed, errors.Join(failures...))
}

// persist saves the adapter's session; failures are logged and ignored
func (m *Manager) persist(adapter instagram.Adapter, username, source string) {
	if m.store == nil {
		return
	}
	bundle := adapter.ExportSession()
	bundle.Username = username
	bundle.Source = source
	if err := m.store.Save(bundle); err != nil {
		m.log.WithError(err).WithField("username", username).Warn("could not save session")
	}
}

func (m *Manager) activate(adapter instagram.Adapter, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapter = adapter
	m.user = username
}

// Logout discards the active session. Saved bundles are kept.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user != "" {
		m.log.WithField("username", m.user).Info("logged out")
	}
	m.adapter = nil
	m.user = ""
}

// Status verifies the active session with Instagram. It never changes the
// session, so repeated calls report the same account.
func (m *Manager) Status(ctx context.Context) Status {
	m.mu.Lock()
	adapter, user := m.adapter, m.user
	m.mu.Unlock()

	if user == "" || adapter == nil {
		return Status{State: StateNotLoggedIn}
	}

	name, err := adapter.TestLogin(ctx)
	if err != nil {
		switch errs.Classify(err) {
		case errs.ErrorTypeRateLimit:
			return Status{LoggedIn: true, LoggedInAs: user, State: StateRateLimited, Error: err.Error()}
		case errs.ErrorTypeLoginRequired, errs.ErrorTypeChallengeRequired, errs.ErrorTypeCheckpointRequired:
			return Status{LoggedInAs: user, State: StateSessionError, Error: err.Error()}
		default:
			return Status{LoggedIn: true, LoggedInAs: user, State: StateError, Error: err.Error()}
		}
	}
	if !strings.EqualFold(name, user) {
		return Status{LoggedInAs: user, State: StateSessionError, Error: fmt.Sprintf("session identifies as %q", name)}
	}
	return Status{LoggedIn: true, LoggedInAs: user, State: StateOK}
}
