package instagram

import (
	"context"
	"iter"
	"strings"
	"sync"

	"igbackend/pkg/auth"
	errs "igbackend/pkg/errors"
	"igbackend/pkg/storage"
)

// MockAdapter is an in-memory Adapter for tests. Downloads write small
// placeholder files so workspace post-processing can be observed.
type MockAdapter struct {
	mu sync.Mutex

	Profiles   map[string]*Profile
	ProfileErr error

	PostList []*Post
	// PageErr is yielded after PostList when set
	PageErr error
	// DownloadErrs are returned in order for a shortcode, one per attempt
	DownloadErrs map[string][]error

	StoryContainers []StoryContainer
	StoriesErr      error
	StoryErrs       map[string]error

	// Accounts maps username to password for Login
	Accounts map[string]string
	LoginErr error
	// SessionUser is what TestLogin reports for an imported session;
	// empty means the session is rejected
	SessionUser  string
	TestLoginErr error
	// BrowserUsers maps a browser name to the account logged in there
	BrowserUsers map[string]string

	username string
	session  *auth.Session

	attempts map[string]int
	calls    []string
}

// NewMockAdapter creates an anonymous mock
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Profiles:     make(map[string]*Profile),
		DownloadErrs: make(map[string][]error),
		StoryErrs:    make(map[string]error),
		Accounts:     make(map[string]string),
		BrowserUsers: make(map[string]string),
		attempts:     make(map[string]int),
	}
}

func (m *MockAdapter) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the recorded method calls
func (m *MockAdapter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Attempts returns how often DownloadPost was called for a shortcode
func (m *MockAdapter) Attempts(shortcode string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[shortcode]
}

func (m *MockAdapter) ResolveProfile(ctx context.Context, username string) (*Profile, error) {
	m.record("ResolveProfile:" + username)
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	p, ok := m.Profiles[username]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, "Profile %s not found", username)
	}
	return p, nil
}

func (m *MockAdapter) Posts(ctx context.Context, profile *Profile) iter.Seq2[*Post, error] {
	return func(yield func(*Post, error) bool) {
		for _, p := range m.PostList {
			if !yield(p, nil) {
				return
			}
		}
		if m.PageErr != nil {
			yield(nil, m.PageErr)
		}
	}
}

func (m *MockAdapter) DownloadPost(ctx context.Context, post *Post, ws *storage.Workspace, kind storage.Kind) ([]string, error) {
	m.mu.Lock()
	attempt := m.attempts[post.Shortcode]
	m.attempts[post.Shortcode] = attempt + 1
	var err error
	if queued := m.DownloadErrs[post.Shortcode]; attempt < len(queued) {
		err = queued[attempt]
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	path, err := ws.Save(kind, storage.FileName(post.TakenAt, post.Shortcode, 0, extension(post.IsVideo)), strings.NewReader(post.Shortcode))
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (m *MockAdapter) Stories(ctx context.Context, userIDs ...string) ([]StoryContainer, error) {
	m.record("Stories")
	if m.StoriesErr != nil {
		return nil, m.StoriesErr
	}
	return m.StoryContainers, nil
}

func (m *MockAdapter) DownloadStoryItem(ctx context.Context, item StoryItem, ws *storage.Workspace) (string, error) {
	if err := m.StoryErrs[item.ID]; err != nil {
		return "", err
	}
	return ws.Save(storage.KindStory, storage.FileName(item.TakenAt, item.ID, 0, extension(item.IsVideo)), strings.NewReader(item.ID))
}

func (m *MockAdapter) Login(ctx context.Context, username, password string) error {
	m.record("Login:" + username)
	if m.LoginErr != nil {
		return m.LoginErr
	}
	if pw, ok := m.Accounts[username]; !ok || pw != password {
		return errs.New(errs.ErrorTypeInvalidCredentials, 0, "Login error: incorrect password")
	}
	m.mu.Lock()
	m.username = username
	m.session = &auth.Session{Username: username, Cookies: []auth.Cookie{{Name: "sessionid", Value: "sess-" + username}}}
	m.mu.Unlock()
	return nil
}

func (m *MockAdapter) TestLogin(ctx context.Context) (string, error) {
	m.record("TestLogin")
	if m.TestLoginErr != nil {
		return "", m.TestLoginErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", nil
	}
	if m.SessionUser != "" {
		return m.SessionUser, nil
	}
	return m.username, nil
}

func (m *MockAdapter) LoadBrowserCookies(ctx context.Context, browser string) (string, error) {
	m.record("LoadBrowserCookies:" + browser)
	user, ok := m.BrowserUsers[browser]
	if !ok {
		return "", errs.New(errs.ErrorTypeLoginRequired, 0, "no Instagram session in %s", browser)
	}
	m.mu.Lock()
	m.username = user
	m.session = &auth.Session{Username: user, Cookies: []auth.Cookie{{Name: "sessionid", Value: browser}}}
	m.mu.Unlock()
	return user, nil
}

func (m *MockAdapter) ExportSession() *auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return &auth.Session{}
	}
	cp := *m.session
	return &cp
}

func (m *MockAdapter) ImportSession(session *auth.Session) error {
	m.record("ImportSession:" + session.Username)
	if session.CookieValue("sessionid") == "" {
		return auth.ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.session = &cp
	m.username = session.Username
	return nil
}

func (m *MockAdapter) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username != ""
}

func (m *MockAdapter) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

var _ Adapter = (*MockAdapter)(nil)
