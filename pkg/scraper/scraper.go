package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/history"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
	"igbackend/pkg/retry"
	"igbackend/pkg/storage"
)

// ErrUsernameRequired is returned for a request without a usable username
var ErrUsernameRequired = errors.New("username parameter required")

// Options configures a Scraper
type Options struct {
	// Root is the download directory; each account gets a folder below it
	Root string
	// WriteRunLog appends a summary to <root>/<account>/download_log.txt
	WriteRunLog bool
	// History records finished runs when set
	History history.Recorder
	// Sleep replaces retry.Wait, mostly in tests
	Sleep retry.SleepFunc
	// Now replaces time.Now, mostly in tests
	Now func() time.Time
	Logger logger.Logger
}

// Scraper runs download requests
type Scraper struct {
	sessions    SessionSource
	root        string
	writeRunLog bool
	history     history.Recorder
	sleep       retry.SleepFunc
	now         func() time.Time
	logger      logger.Logger

	locksMu sync.Mutex
	locks   map[string]*accountLock
}

// accountLock is a per-account mutex; refs counts holders and waiters so
// the entry can be dropped once nobody needs it
type accountLock struct {
	ch   chan struct{}
	refs int
}

// New creates a Scraper
func New(sessions SessionSource, opts Options) *Scraper {
	s := &Scraper{
		sessions:    sessions,
		root:        opts.Root,
		writeRunLog: opts.WriteRunLog,
		history:     opts.History,
		sleep:       opts.Sleep,
		now:         opts.Now,
		logger:      opts.Logger,
		locks:       make(map[string]*accountLock),
	}
	if s.sleep == nil {
		s.sleep = retry.Wait
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	s.logger = s.logger.WithField("component", "scraper")
	return s
}

// lockAccount serializes runs for one account. It gives up when ctx ends.
func (s *Scraper) lockAccount(ctx context.Context, account string) (func(), error) {
	key := strings.ToLower(account)

	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &accountLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				s.releaseLock(key, l)
			})
		}, nil
	case <-ctx.Done():
		s.releaseLock(key, l)
		return nil, ctx.Err()
	}
}

func (s *Scraper) releaseLock(key string, l *accountLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

// Download runs req to completion. Per-item failures are part of the
// result; the returned error is reserved for failures that abort the run.
func (s *Scraper) Download(ctx context.Context, req Request) (*Result, error) {
	req.Username = instagram.SanitizeUsername(req.Username)
	if req.Username == "" {
		return nil, ErrUsernameRequired
	}
	if req.Delay < 0 {
		req.Delay = 0
	}
	if req.Backoff < 0 {
		req.Backoff = 0
	}

	unlock, err := s.lockAccount(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	defer unlock()

	adapter := s.sessions.Adapter()
	loggedIn := adapter.IsLoggedIn()

	res := newResult(uuid.NewString(), req.Username, s.now())
	res.StoriesRequest = req.IncludeStories
	log := s.logger.WithFields(map[string]interface{}{
		"username": req.Username,
		"run_id":   res.RunID,
	})

	log.InfoWithFields("Starting download", map[string]interface{}{
		"limit":         req.Limit,
		"include_posts": req.IncludePosts,
		"include_reels": req.IncludeReels,
		"stories":       req.IncludeStories,
		"logged_in":     loggedIn,
	})

	profile, err := s.resolve(ctx, adapter, req.Username, loggedIn)
	if err != nil {
		log.WithError(err).Warn("Profile resolution failed")
		return nil, err
	}
	res.ProfileInfo = ProfileInfo{
		Username:   profile.Username,
		MediaCount: profile.MediaCount,
		IsPrivate:  profile.IsPrivate,
		LoggedIn:   loggedIn,
	}

	ws, err := storage.NewWorkspace(s.root, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare download folders: %w", err)
	}
	res.Folders = ws.Folders()

	if err := s.downloadPosts(ctx, adapter, profile, ws, req, res, log); err != nil {
		return nil, err
	}
	if err := s.downloadStories(ctx, adapter, profile, ws, req, res, loggedIn, log); err != nil {
		return nil, err
	}

	s.tidy(ws, log)
	res.FinishedAt = s.now()
	s.record(ctx, ws, res, log)

	log.InfoWithFields("Download completed", map[string]interface{}{
		"attempted":          res.Count,
		"posts_downloaded":   res.Stats.PostsDownloaded,
		"reels_downloaded":   res.Stats.ReelsDownloaded,
		"rate_limit_retries": res.Stats.RateLimitRetries,
		"stories_status":     res.StoriesStatus,
		"errors":             res.Errors(),
		"duration":           res.FinishedAt.Sub(res.StartedAt),
	})

	return res, nil
}

// resolve looks up the profile and turns failures into typed errors
func (s *Scraper) resolve(ctx context.Context, adapter instagram.Adapter, username string, loggedIn bool) (*instagram.Profile, error) {
	profile, err := adapter.ResolveProfile(ctx, username)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, resolveError(username, err)
	}
	if profile.IsPrivate && !loggedIn {
		return nil, errs.New(errs.ErrorTypeLoginRequired, 401, "Profile '%s' is private and requires login", username)
	}
	return profile, nil
}

func resolveError(username string, err error) error {
	switch t := errs.Classify(err); t {
	case errs.ErrorTypeNotFound:
		return errs.New(t, 404, "Profile '%s' not found", username)
	case errs.ErrorTypeLoginRequired:
		return errs.New(t, 401, "Profile '%s' is private and requires login", username)
	case errs.ErrorTypeUnknown:
		return fmt.Errorf("failed to resolve profile %s: %w", username, err)
	default:
		var typed *errs.Error
		if errors.As(err, &typed) {
			return err
		}
		return &errs.Error{Type: t, Message: err.Error()}
	}
}

func wanted(kind storage.Kind, req Request) bool {
	if kind == storage.KindReel {
		return req.IncludeReels
	}
	return req.IncludePosts
}

// downloadPosts walks the timeline until Limit items were attempted
func (s *Scraper) downloadPosts(ctx context.Context, adapter instagram.Adapter, profile *instagram.Profile, ws *storage.Workspace, req Request, res *Result, log logger.Logger) error {
	if req.Limit <= 0 || (!req.IncludePosts && !req.IncludeReels) {
		return nil
	}

	for post, err := range adapter.Posts(ctx, profile) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.WithError(err).Warn("Timeline paging failed, ending posts phase")
			res.addPostError("", err)
			break
		}

		kind := storage.KindPost
		if post.IsVideo {
			kind = storage.KindReel
		}
		if !wanted(kind, req) {
			continue
		}

		res.Count++
		files, err := s.downloadPost(ctx, adapter, post, ws, kind, req, res)
		logger.LogDownload(log, req.Username, post.Shortcode, string(kind), err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			res.addPostError(post.Shortcode, err)
		} else {
			log.DebugWithFields("Saved post files", map[string]interface{}{
				"shortcode": post.Shortcode,
				"files":     len(files),
			})
			res.addPost(post, kind)
		}

		if req.Delay > 0 {
			if err := s.sleep(ctx, req.Delay); err != nil {
				return err
			}
		}
		if res.Count >= req.Limit {
			break
		}
	}
	return nil
}

// downloadPost makes up to three attempts, pausing Backoff × attempt after
// each transient failure, the last one included
func (s *Scraper) downloadPost(ctx context.Context, adapter instagram.Adapter, post *instagram.Post, ws *storage.Workspace, kind storage.Kind, req Request, res *Result) ([]string, error) {
	cfg := retry.DefaultConfig(req.Backoff)
	cfg.Sleep = s.sleep
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		res.Stats.RateLimitRetries++
		logger.LogRateLimit(s.logger, req.Username, attempt, delay)
	}

	return retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]string, error) {
		return adapter.DownloadPost(ctx, post, ws, kind)
	})
}

// downloadStories saves up to StoriesLimit items across all containers,
// one attempt each
func (s *Scraper) downloadStories(ctx context.Context, adapter instagram.Adapter, profile *instagram.Profile, ws *storage.Workspace, req Request, res *Result, loggedIn bool, log logger.Logger) error {
	if !req.IncludeStories {
		res.StoriesStatus = StoriesNotRequested
		return nil
	}
	if !loggedIn {
		res.StoriesStatus = StoriesLoginRequired
		res.addStoryError(StoriesLoginRequiredError)
		return nil
	}

	containers, err := adapter.Stories(ctx, profile.UserID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithError(err).Warn("Story enumeration failed")
		res.StoriesStatus = StoriesError
		res.addStoryError(err.Error())
		return nil
	}

	grabbed := 0
outer:
	for _, container := range containers {
		for _, item := range container.Items {
			if grabbed >= req.StoriesLimit {
				break outer
			}
			_, err := adapter.DownloadStoryItem(ctx, item, ws)
			logger.LogDownload(log, req.Username, item.ID, string(storage.KindStory), err)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				res.addStoryError(err.Error())
			} else {
				res.addStory(item)
			}
			grabbed++
		}
	}

	switch {
	case len(containers) == 0:
		res.StoriesStatus = StoriesNone
	case grabbed == 0:
		res.StoriesStatus = StoriesEmpty
	default:
		res.StoriesStatus = StoriesDownloaded
	}
	return nil
}

// tidy removes stray files and prefixes story media; failures only log
func (s *Scraper) tidy(ws *storage.Workspace, log logger.Logger) {
	if removed, err := ws.Cleanup(); err != nil {
		log.WithError(err).Warn("Cleanup incomplete")
	} else if removed > 0 {
		log.DebugWithFields("Removed stray files", map[string]interface{}{"count": removed})
	}
	if _, err := ws.PrefixStories(); err != nil {
		log.WithError(err).Warn("Could not prefix story files")
	}
}

// record appends the run log and stores history; failures only log
func (s *Scraper) record(ctx context.Context, ws *storage.Workspace, res *Result, log logger.Logger) {
	if s.writeRunLog {
		if err := ws.AppendRunLog(res.runLog()); err != nil {
			log.WithError(err).Warn("Could not append run log")
		}
	}
	if s.history != nil {
		if err := s.history.Record(ctx, res.History()); err != nil {
			log.WithError(err).Warn("Could not record run history")
		}
	}
}
