package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igbackend/pkg/auth"
	errs "igbackend/pkg/errors"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
)

// harness hands out pre-built mocks in order so tests can configure each
// adapter the manager will create
type harness struct {
	queue   []*instagram.MockAdapter
	created []*instagram.MockAdapter
	setup   func(*instagram.MockAdapter)
}

func (h *harness) factory() instagram.Adapter {
	var m *instagram.MockAdapter
	if len(h.queue) > 0 {
		m, h.queue = h.queue[0], h.queue[1:]
	} else {
		m = instagram.NewMockAdapter()
		if h.setup != nil {
			h.setup(m)
		}
	}
	h.created = append(h.created, m)
	return m
}

func newTestManager(t *testing.T, h *harness, store Store) (*Manager, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	return NewManager(h.factory, store, nil, log), log
}

func withAccount(user, pw string) func(*instagram.MockAdapter) {
	return func(m *instagram.MockAdapter) { m.Accounts[user] = pw }
}

func TestAdapterIsLazyAndStable(t *testing.T) {
	h := &harness{}
	m, _ := newTestManager(t, h, nil)

	assert.Empty(t, h.created)
	a := m.Adapter()
	b := m.Adapter()
	assert.Same(t, a, b)
	assert.Len(t, h.created, 1)
	assert.Empty(t, m.LoggedInAs())
}

func TestLoginRequiresCredentials(t *testing.T) {
	m, _ := newTestManager(t, &harness{}, nil)

	_, err := m.Login(context.Background(), Credentials{Username: "alice"})
	assert.ErrorIs(t, err, ErrCredentialsRequired)
	_, err = m.Login(context.Background(), Credentials{Password: "pw"})
	assert.ErrorIs(t, err, ErrCredentialsRequired)
}

func TestPasswordLoginPersistsSession(t *testing.T) {
	store := auth.NewMockStore()
	h := &harness{setup: withAccount("alice", "pw")}
	m, _ := newTestManager(t, h, auth.NewManagerWithStores(logger.NewNopLogger(), store))

	res, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, &LoginResult{Username: "alice", Method: MethodPassword}, res)
	assert.Equal(t, "alice", m.LoggedInAs())
	assert.True(t, m.Adapter().IsLoggedIn())

	saved, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "password", saved.Source)
	assert.Equal(t, "sess-alice", saved.CookieValue("sessionid"))
}

func TestPasswordLoginInvalidCredentials(t *testing.T) {
	h := &harness{setup: withAccount("alice", "pw")}
	m, _ := newTestManager(t, h, nil)

	_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeInvalidCredentials, errs.Classify(err))
	assert.Empty(t, m.LoggedInAs())
}

func TestPasswordLoginReusesSavedSession(t *testing.T) {
	store := auth.NewMockStore()
	require.NoError(t, store.Save(&auth.Session{
		Username: "alice",
		Cookies:  []auth.Cookie{{Name: "sessionid", Value: "saved"}},
	}))

	h := &harness{}
	m, _ := newTestManager(t, h, store)

	res, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "irrelevant"})
	require.NoError(t, err)
	assert.Equal(t, MethodSession, res.Method)
	require.Len(t, h.created, 1)
	assert.NotContains(t, h.created[0].Calls(), "Login:alice")
}

func TestPasswordLoginSavedSessionRateLimited(t *testing.T) {
	store := auth.NewMockStore()
	require.NoError(t, store.Save(&auth.Session{
		Username: "alice",
		Cookies:  []auth.Cookie{{Name: "sessionid", Value: "saved"}},
	}))

	limited := instagram.NewMockAdapter()
	limited.TestLoginErr = errs.New(errs.ErrorTypeRateLimit, 429, "too many requests")
	h := &harness{queue: []*instagram.MockAdapter{limited}}
	m, log := newTestManager(t, h, store)

	res, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, MethodSession, res.Method)
	assert.True(t, log.HasMessage("assuming it is still valid"))
}

func TestPasswordLoginSavedSessionForOtherAccount(t *testing.T) {
	store := auth.NewMockStore()
	require.NoError(t, store.Save(&auth.Session{
		Username: "alice",
		Cookies:  []auth.Cookie{{Name: "sessionid", Value: "saved"}},
	}))

	stale := instagram.NewMockAdapter()
	stale.SessionUser = "mallory"
	fresh := instagram.NewMockAdapter()
	fresh.Accounts["alice"] = "pw"
	h := &harness{queue: []*instagram.MockAdapter{stale, fresh}}
	m, _ := newTestManager(t, h, store)

	res, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, MethodPassword, res.Method)
	assert.Contains(t, fresh.Calls(), "Login:alice")
	assert.Same(t, fresh, m.Adapter())

	saved, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "sess-alice", saved.CookieValue("sessionid"), "the stale bundle is replaced")
}

func TestRejectedSavedSessionIsDeleted(t *testing.T) {
	store := auth.NewMockStore()
	require.NoError(t, store.Save(&auth.Session{
		Username: "alice",
		Cookies:  []auth.Cookie{{Name: "sessionid", Value: "expired"}},
	}))

	stale := instagram.NewMockAdapter()
	stale.TestLoginErr = errs.New(errs.ErrorTypeLoginRequired, 401, "login required")
	fresh := instagram.NewMockAdapter()
	fresh.Accounts["alice"] = "pw"
	h := &harness{queue: []*instagram.MockAdapter{stale, fresh}}
	m, _ := newTestManager(t, h, store)

	_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.False(t, store.Exists("alice"))
	assert.Empty(t, m.LoggedInAs())
}

func TestStaleSessionDeleteFailureIsNotFatal(t *testing.T) {
	store := auth.NewMockStore()
	require.NoError(t, store.Save(&auth.Session{
		Username: "alice",
		Cookies:  []auth.Cookie{{Name: "sessionid", Value: "saved"}},
	}))
	store.DeleteError = errors.New("read-only filesystem")

	stale := instagram.NewMockAdapter()
	stale.SessionUser = "mallory"
	fresh := instagram.NewMockAdapter()
	fresh.Accounts["alice"] = "pw"
	h := &harness{queue: []*instagram.MockAdapter{stale, fresh}}
	m, log := newTestManager(t, h, store)

	res, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, MethodPassword, res.Method)
	assert.True(t, log.HasMessage("could not delete stale session"))
}

func TestNoSavedSessionSkipsVerification(t *testing.T) {
	h := &harness{setup: withAccount("alice", "pw")}
	m, _ := newTestManager(t, h, auth.NewMockStore())

	_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Len(t, h.created, 1)
	assert.NotContains(t, h.created[0].Calls(), "TestLogin")
}

func TestLoginNormalizesUsername(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMockStore()
	h := &harness{setup: withAccount("alice", "pw")}
	m, _ := newTestManager(t, h, store)

	res, err := m.Login(ctx, Credentials{Username: " @Alice ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, "alice", m.LoggedInAs())
	assert.True(t, store.Exists("alice"))
	assert.False(t, store.Exists("@Alice"))

	status := m.Status(ctx)
	assert.Equal(t, StateOK, status.State)
	assert.True(t, status.LoggedIn)

	res, err = m.Login(ctx, Credentials{Username: "https://www.instagram.com/ALICE/", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, MethodSession, res.Method, "the saved bundle matches regardless of spelling")
	assert.Equal(t, "alice", m.LoggedInAs())
}

func TestStatusIgnoresUsernameCase(t *testing.T) {
	h := &harness{setup: withAccount("alice", "pw")}
	m, _ := newTestManager(t, h, nil)

	_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	h.created[len(h.created)-1].SessionUser = "Alice"

	assert.Equal(t, StateOK, m.Status(context.Background()).State)
}

// blockingLogin holds Login open until released
type blockingLogin struct {
	*instagram.MockAdapter
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLogin) Login(ctx context.Context, username, password string) error {
	close(b.entered)
	<-b.release
	return b.MockAdapter.Login(ctx, username, password)
}

func TestLoginDoesNotBlockReaders(t *testing.T) {
	slow := &blockingLogin{
		MockAdapter: instagram.NewMockAdapter(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	slow.Accounts["alice"] = "pw"
	m := NewManager(func() instagram.Adapter { return slow }, nil, nil, logger.NewNopLogger())

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
		done <- err
	}()
	<-slow.entered

	read := make(chan string, 1)
	go func() {
		m.Adapter()
		read <- m.LoggedInAs()
	}()
	select {
	case who := <-read:
		assert.Empty(t, who, "the login has not finished yet")
	case <-time.After(2 * time.Second):
		t.Fatal("readers waited for an in-flight login")
	}

	close(slow.release)
	require.NoError(t, <-done)
	assert.Equal(t, "alice", m.LoggedInAs())
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	store := auth.NewMockStore()
	store.SaveError = errors.New("disk full")
	h := &harness{setup: withAccount("alice", "pw")}
	m, log := newTestManager(t, h, store)

	res, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.True(t, log.HasMessage("could not save session"))
}

func TestLoginAsDifferentAccountDiscardsSession(t *testing.T) {
	h := &harness{setup: func(m *instagram.MockAdapter) {
		m.Accounts["alice"] = "pw"
		m.Accounts["bob"] = "pw"
	}}
	m, _ := newTestManager(t, h, nil)

	_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	first := m.Adapter()

	_, err = m.Login(context.Background(), Credentials{Username: "bob", Password: "bad"})
	require.Error(t, err)
	assert.Empty(t, m.LoggedInAs(), "failed login as another account still drops the old session")
	assert.NotSame(t, first, m.Adapter())

	_, err = m.Login(context.Background(), Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", m.LoggedInAs())
}

func TestBrowserLoginPreferenceOrder(t *testing.T) {
	store := auth.NewMockStore()
	h := &harness{setup: func(m *instagram.MockAdapter) {
		m.BrowserUsers["firefox"] = "carol"
		m.BrowserUsers["safari"] = "dave"
	}}
	m, _ := newTestManager(t, h, store)

	res, err := m.Login(context.Background(), Credentials{UseBrowserCookies: true})
	require.NoError(t, err)
	assert.Equal(t, &LoginResult{Username: "carol", Method: MethodBrowserCookies}, res)
	assert.Equal(t, "carol", m.LoggedInAs())

	// chrome and edge were tried first, each on a fresh adapter
	require.Len(t, h.created, 3)
	assert.Equal(t, []string{"LoadBrowserCookies:chrome"}, h.created[0].Calls())
	assert.Equal(t, []string{"LoadBrowserCookies:edge"}, h.created[1].Calls())
	assert.Equal(t, []string{"LoadBrowserCookies:firefox"}, h.created[2].Calls())

	saved, err := store.Load("carol")
	require.NoError(t, err)
	assert.Equal(t, "browser:firefox", saved.Source)
}

func TestBrowserLoginAllFail(t *testing.T) {
	h := &harness{}
	m, _ := newTestManager(t, h, nil)

	_, err := m.Login(context.Background(), Credentials{UseBrowserCookies: true})
	require.ErrorIs(t, err, ErrBrowserCookiesFailed)
	assert.Len(t, h.created, len(DefaultBrowsers))
	assert.Empty(t, m.LoggedInAs())
}

func TestLogoutKeepsSavedBundle(t *testing.T) {
	store := auth.NewMockStore()
	h := &harness{setup: withAccount("alice", "pw")}
	m, _ := newTestManager(t, h, store)

	_, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	inFlight := m.Adapter()

	m.Logout()
	m.Logout()
	assert.Empty(t, m.LoggedInAs())
	assert.NotSame(t, inFlight, m.Adapter())
	assert.True(t, inFlight.IsLoggedIn(), "a snapshot taken before logout is untouched")
	assert.True(t, store.Exists("alice"))
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("not logged in", func(t *testing.T) {
		m, _ := newTestManager(t, &harness{}, nil)
		assert.Equal(t, Status{State: StateNotLoggedIn}, m.Status(ctx))
	})

	tests := []struct {
		name     string
		mutate   func(*instagram.MockAdapter)
		loggedIn bool
		state    State
	}{
		{"ok", func(*instagram.MockAdapter) {}, true, StateOK},
		{"rate limited", func(a *instagram.MockAdapter) {
			a.TestLoginErr = errs.New(errs.ErrorTypeRateLimit, 429, "too many requests")
		}, true, StateRateLimited},
		{"throttled behind login wall", func(a *instagram.MockAdapter) {
			a.TestLoginErr = errs.FromStatusCode(401, `{"message":"Please wait a few minutes before you try again.","require_login":true,"status":"fail"}`)
		}, true, StateRateLimited},
		{"session rejected", func(a *instagram.MockAdapter) {
			a.TestLoginErr = errs.New(errs.ErrorTypeLoginRequired, 401, "login required")
		}, false, StateSessionError},
		{"other account", func(a *instagram.MockAdapter) { a.SessionUser = "mallory" }, false, StateSessionError},
		{"unexpected failure", func(a *instagram.MockAdapter) {
			a.TestLoginErr = errors.New("boom")
		}, true, StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harness{setup: withAccount("alice", "pw")}
			m, _ := newTestManager(t, h, nil)
			_, err := m.Login(ctx, Credentials{Username: "alice", Password: "pw"})
			require.NoError(t, err)
			tt.mutate(h.created[len(h.created)-1])

			first := m.Status(ctx)
			second := m.Status(ctx)
			assert.Equal(t, first, second, "status is idempotent")
			assert.Equal(t, tt.loggedIn, first.LoggedIn)
			assert.Equal(t, tt.state, first.State)
			assert.Equal(t, "alice", first.LoggedInAs)
			assert.Equal(t, "alice", m.LoggedInAs(), "status never mutates the session")
		})
	}
}
