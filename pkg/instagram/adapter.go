package instagram

import (
	"context"
	"iter"

	"igbackend/pkg/auth"
	"igbackend/pkg/logger"
	"igbackend/pkg/storage"
)

// Adapter is everything the session manager and the download orchestrator
// need from Instagram. Client is the production implementation.
type Adapter interface {
	// ResolveProfile looks up an account by name
	ResolveProfile(ctx context.Context, username string) (*Profile, error)
	// Posts lazily pages through the profile's timeline, newest first.
	// A paging failure is yielded once and ends the sequence.
	Posts(ctx context.Context, profile *Profile) iter.Seq2[*Post, error]
	// DownloadPost saves the media of a post and returns the written paths.
	// Files already on disk are skipped and count as success.
	DownloadPost(ctx context.Context, post *Post, ws *storage.Workspace, kind storage.Kind) ([]string, error)
	// Stories lists the story containers of the given user ids
	Stories(ctx context.Context, userIDs ...string) ([]StoryContainer, error)
	// DownloadStoryItem saves one story frame into the stories folder
	DownloadStoryItem(ctx context.Context, item StoryItem, ws *storage.Workspace) (string, error)

	// Login performs a password login
	Login(ctx context.Context, username, password string) error
	// TestLogin asks Instagram who the session belongs to. An empty name
	// with a nil error means the session is not authenticated.
	TestLogin(ctx context.Context) (string, error)
	// LoadBrowserCookies imports an authenticated cookie set from a browser
	LoadBrowserCookies(ctx context.Context, browser string) (string, error)
	// ExportSession returns the session bundle for persistence
	ExportSession() *auth.Session
	// ImportSession restores a bundle produced by ExportSession
	ImportSession(session *auth.Session) error

	IsLoggedIn() bool
	Username() string
}

// Factory builds a fresh anonymous adapter
type Factory func() Adapter

// NewFactory returns a Factory producing Clients with the given options
func NewFactory(opts Options, log logger.Logger) Factory {
	return func() Adapter {
		return NewClient(opts, log)
	}
}

var _ Adapter = (*Client)(nil)
